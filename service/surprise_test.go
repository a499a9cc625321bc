package service

import (
	"context"
	"testing"

	"github.com/mindscape-ai/mindscape/ai"
	"github.com/mindscape-ai/mindscape/domain"
	"github.com/mindscape-ai/mindscape/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSurprise(t *testing.T) (*SurpriseService, *NarrativeService, *EpistemicService) {
	t.Helper()
	d := driver.NewMemory()
	logger := zap.NewNop()
	conf := NewConfidenceService(d, logger)
	epistemic := NewEpistemicService(d, ai.NewMockProvider(), conf, logger)
	narrative := NewNarrativeService(d, NewTimeIndex(d, logger), logger)
	return NewSurpriseService(d, epistemic, logger), narrative, epistemic
}

func TestFirstMemoryIsMaximallyNovel(t *testing.T) {
	s, _, _ := newSurprise(t)
	ctx := context.Background()

	score, components, err := s.Score(ctx, SurpriseInput{
		Tenant:     "t1",
		Agent:      "a1",
		Content:    "something entirely new",
		Provenance: domain.Provenance{Source: "agent"},
	}, domain.DefaultSurpriseWeights())
	require.NoError(t, err)
	assert.Equal(t, 1.0, components.Novelty)
	// novelty 0.35*1 + evidence 0.15*0.6
	assert.InDelta(t, 0.44, score, 1e-9)
}

func TestDuplicateContentScoresLowNovelty(t *testing.T) {
	s, narrative, _ := newSurprise(t)
	ctx := context.Background()

	_, err := narrative.Store(ctx, "t1", "a1", domain.IngestData{Content: "the deploy pipeline is green"})
	require.NoError(t, err)

	_, components, err := s.Score(ctx, SurpriseInput{
		Tenant:     "t1",
		Agent:      "a1",
		Content:    "the deploy pipeline is green",
		Provenance: domain.Provenance{Source: "agent"},
	}, domain.DefaultSurpriseWeights())
	require.NoError(t, err)
	assert.Equal(t, 0.0, components.Novelty)
}

func TestNoveltyIsPerAgent(t *testing.T) {
	s, narrative, _ := newSurprise(t)
	ctx := context.Background()

	_, err := narrative.Store(ctx, "t1", "other-agent", domain.IngestData{Content: "shared observation text"})
	require.NoError(t, err)

	// Same content, different agent: still novel for this agent.
	_, components, err := s.Score(ctx, SurpriseInput{
		Tenant:     "t1",
		Agent:      "a1",
		Content:    "shared observation text",
		Provenance: domain.Provenance{Source: "agent"},
	}, domain.DefaultSurpriseWeights())
	require.NoError(t, err)
	assert.Equal(t, 1.0, components.Novelty)
}

func TestExternalSignalActsAsFloor(t *testing.T) {
	s, narrative, _ := newSurprise(t)
	ctx := context.Background()

	_, err := narrative.Store(ctx, "t1", "a1", domain.IngestData{Content: "baseline content"})
	require.NoError(t, err)

	mag := 0.95
	score, components, err := s.Score(ctx, SurpriseInput{
		Tenant:     "t1",
		Agent:      "a1",
		Content:    "baseline content",
		Provenance: domain.Provenance{Source: "agent"},
		Signal:     &domain.SurpriseSignal{Magnitude: &mag, Momentum: 0.4},
	}, domain.DefaultSurpriseWeights())
	require.NoError(t, err)
	assert.Equal(t, 0.95, score, "external beats a low internal score")
	assert.Equal(t, 0.95, components.External)
	assert.Equal(t, 0.4, components.Momentum)

	// A small external magnitude cannot drag a high internal score down.
	small := 0.01
	score, _, err = s.Score(ctx, SurpriseInput{
		Tenant:     "t1",
		Agent:      "a1",
		Content:    "completely different fresh topic",
		Provenance: domain.Provenance{Source: "user"},
		Signal:     &domain.SurpriseSignal{Magnitude: &small},
	}, domain.DefaultSurpriseWeights())
	require.NoError(t, err)
	assert.Greater(t, score, 0.01)
}

func TestContradictionFractionFeedsScore(t *testing.T) {
	s, _, _ := newSurprise(t)
	ctx := context.Background()

	base := SurpriseInput{
		Tenant:     "t1",
		Agent:      "a1",
		Content:    "fresh claim",
		Provenance: domain.Provenance{Source: "agent"},
	}
	calm, _, err := s.Score(ctx, base, domain.DefaultSurpriseWeights())
	require.NoError(t, err)

	contradicted := base
	contradicted.ContradictionFraction = 1.0
	tense, _, err := s.Score(ctx, contradicted, domain.DefaultSurpriseWeights())
	require.NoError(t, err)
	assert.InDelta(t, 0.25, tense-calm, 1e-9, "contradiction weight is 0.25 by default")
}

func TestDisagreementAcrossAgents(t *testing.T) {
	s, _, epistemic := newSurprise(t)
	ctx := context.Background()

	// Another agent holds a confident overlapping belief.
	strong := domain.Confidence{Min: 0.85, Max: 0.98, Mean: 0.92}
	_, _, err := epistemic.RecordBelief(ctx, "t1",
		domain.Claim{Text: "the cache layer causes the latency spike", Confidence: &strong},
		domain.Provenance{Source: "agent", Agent: "other-agent"})
	require.NoError(t, err)

	_, components, err := s.Score(ctx, SurpriseInput{
		Tenant:  "t1",
		Agent:   "a1",
		Content: "latency investigation",
		Claims: []ResolvedClaim{{
			Text:       "the cache layer causes the latency spike",
			Confidence: domain.Confidence{Min: 0.1, Max: 0.4, Mean: 0.25},
		}},
		Provenance: domain.Provenance{Source: "agent"},
	}, domain.DefaultSurpriseWeights())
	require.NoError(t, err)
	assert.Equal(t, 1.0, components.Disagreement)
}
