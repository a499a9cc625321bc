package service

import (
	"context"
	"errors"
	"testing"

	"github.com/mindscape-ai/mindscape/ai"
	"github.com/mindscape-ai/mindscape/domain"
	"github.com/mindscape-ai/mindscape/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newContradiction(t *testing.T) (*ContradictionService, *ai.MockProvider) {
	t.Helper()
	mock := ai.NewMockProvider()
	return NewContradictionService(driver.NewMemory(), mock, zap.NewNop()), mock
}

func TestAreContradictoryPrefersAI(t *testing.T) {
	s, mock := newContradiction(t)
	verdict := true
	mock.ContradictionResponse = &verdict

	got, source := s.AreContradictory(context.Background(), "a", "b")
	assert.True(t, got)
	assert.Equal(t, "ai", source)
}

func TestAreContradictoryHeuristicFallback(t *testing.T) {
	s, mock := newContradiction(t)
	mock.ContradictionError = errors.New("provider down")
	ctx := context.Background()

	got, source := s.AreContradictory(ctx, "the market will grow", "the market will not grow")
	assert.True(t, got)
	assert.Equal(t, "heuristic", source)

	// Both negated, or neither: no contradiction.
	got, _ = s.AreContradictory(ctx, "it will never work", "it will not work")
	assert.False(t, got)
	got, _ = s.AreContradictory(ctx, "it works", "it runs")
	assert.False(t, got)
}

func TestAreContradictoryUndecidedFallsBack(t *testing.T) {
	s, mock := newContradiction(t)
	mock.ContradictionResponse = nil // undecided

	got, source := s.AreContradictory(context.Background(), "latency is fine", "latency is not fine")
	assert.True(t, got)
	assert.Equal(t, "heuristic", source)
}

func TestNegationCues(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"this is false", true},
		{"never again", true},
		{"no evidence found", true},
		{"the report was incorrect", true},
		{"notably robust", false}, // substring, not a token
		{"all good", false},
	}
	for _, tc := range cases {
		if got := hasNegationCue(tc.text); got != tc.want {
			t.Errorf("hasNegationCue(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestIndexIsIdempotentAndOrderIndependent(t *testing.T) {
	s, _ := newContradiction(t)
	ctx := context.Background()

	first, err := s.Index(ctx, "t1", "belief-x", "belief-y", "direct")
	require.NoError(t, err)

	second, err := s.Index(ctx, "t1", "belief-y", "belief-x", "direct")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.DiscoveredAt, second.DiscoveredAt)

	all, err := s.List(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestIndexRejectsDegeneratePairs(t *testing.T) {
	s, _ := newContradiction(t)
	ctx := context.Background()

	_, err := s.Index(ctx, "t1", "b1", "b1", "direct")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = s.Index(ctx, "t1", "", "b1", "direct")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestResolveIsExplicitOnly(t *testing.T) {
	s, _ := newContradiction(t)
	ctx := context.Background()

	c, err := s.Index(ctx, "t1", "b1", "b2", "direct")
	require.NoError(t, err)
	assert.False(t, c.Resolved)

	active, err := s.Active(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, active, 1)

	resolved, err := s.Resolve(ctx, "t1", c.ID)
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)

	active, err = s.Active(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, active)

	// Re-indexing a resolved pair returns the resolved record; it does not
	// silently reopen.
	again, err := s.Index(ctx, "t1", "b2", "b1", "direct")
	require.NoError(t, err)
	assert.True(t, again.Resolved)
}
