package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mindscape-ai/mindscape/ai"
	"github.com/mindscape-ai/mindscape/domain"
	"github.com/mindscape-ai/mindscape/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSummarizer(t *testing.T) (*SummarizerService, *ai.MockProvider) {
	t.Helper()
	mock := ai.NewMockProvider()
	return NewSummarizerService(driver.NewMemory(), mock, NewMDLScorer(), zap.NewNop()), mock
}

func records(contents ...string) []domain.MemoryRecord {
	out := make([]domain.MemoryRecord, len(contents))
	for i, c := range contents {
		out[i] = domain.MemoryRecord{
			ID:        string(rune('a' + i)),
			Content:   c,
			CreatedAt: int64(1_700_000_000 + i),
		}
	}
	return out
}

func TestChunkSize(t *testing.T) {
	assert.Equal(t, 15, ChunkSize(0))
	assert.Equal(t, 15, ChunkSize(1))
	assert.Equal(t, 75, ChunkSize(2))
	assert.Equal(t, 300, ChunkSize(3))
	assert.Equal(t, 300, ChunkSize(7))
}

func TestSummarizeChunkCachesByMemberSet(t *testing.T) {
	s, mock := newSummarizer(t)
	ctx := context.Background()

	recs := records("first event", "second event")
	out, fellBack, err := s.SummarizeChunk(ctx, recs, 1)
	require.NoError(t, err)
	assert.False(t, fellBack)
	assert.Equal(t, "Mock summary", out)
	assert.Len(t, mock.SummarizeCalls, 1)

	// Same member set, reversed order: cache hit, no second provider call.
	reversed := []domain.MemoryRecord{recs[1], recs[0]}
	out2, _, err := s.SummarizeChunk(ctx, reversed, 1)
	require.NoError(t, err)
	assert.Equal(t, out, out2)
	assert.Len(t, mock.SummarizeCalls, 1)
}

func TestSummarizeFallbackTruncates(t *testing.T) {
	s, mock := newSummarizer(t)
	mock.SummarizeError = errors.New("provider down")
	ctx := context.Background()

	long := strings.Repeat("words of narrative content here ", 30)
	out, fellBack, err := s.SummarizeChunk(ctx, records(long), 2)
	require.NoError(t, err)
	assert.True(t, fellBack)
	assert.NotEmpty(t, out)
	assert.Less(t, len(out), len(long))
	// Fallback results are not cached, so recovery retries the provider.
	mock.SummarizeError = nil
	_, fellBack, err = s.SummarizeChunk(ctx, records(long), 2)
	require.NoError(t, err)
	assert.False(t, fellBack)
}

func TestSummarizeLayerStoresSummary(t *testing.T) {
	s, _ := newSummarizer(t)
	ctx := context.Background()

	recs := records("alpha", "beta", "gamma")
	summary, err := s.SummarizeLayer(ctx, "t1", domain.LayerWarm, recs, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.LayerWarm, summary.Layer)
	assert.Len(t, summary.MemberIDs, 3)
	assert.Equal(t, "Mock summary", summary.Content)

	loaded, err := s.LayerSummary(ctx, "t1", domain.LayerWarm)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, summary.Content, loaded.Content)

	// Missing layers come back nil, not an error.
	none, err := s.LayerSummary(ctx, "t1", domain.LayerCold)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSummarizeLayerDeltaFoldsNewMemories(t *testing.T) {
	s, mock := newSummarizer(t)
	ctx := context.Background()

	_, err := s.SummarizeLayer(ctx, "t1", domain.LayerWarm, records("initial batch of events"), 1)
	require.NoError(t, err)

	mock.SummarizeResponse = "Updated summary"
	updated, err := s.SummarizeLayerDelta(ctx, "t1", domain.LayerWarm, records("fresh arrival"))
	require.NoError(t, err)
	assert.Equal(t, "Updated summary", updated.Content)
	assert.Len(t, updated.MemberIDs, 2)
}

func TestTruncateToRatio(t *testing.T) {
	content := "alpha beta gamma delta epsilon"

	full := truncateToRatio(content, 1.0)
	assert.Equal(t, content, full)

	half := truncateToRatio(content, 0.5)
	assert.Less(t, len(half), len(content))
	// Cuts at a word boundary.
	assert.False(t, strings.HasSuffix(half, "gam"))
	assert.True(t, strings.HasPrefix(content, half))
}
