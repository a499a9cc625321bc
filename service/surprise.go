package service

import (
	"context"
	"sort"

	"github.com/mindscape-ai/mindscape/domain"
	"go.uber.org/zap"
)

const (
	// noveltyWindow is how many recent memories of the agent the novelty
	// component compares against.
	noveltyWindow = 20
	// disagreementOverlap is the claim similarity above which another
	// agent's belief counts as being about the same thing.
	disagreementOverlap = 0.5
	// disagreementGap is the mean-confidence difference that counts as a
	// disagreement.
	disagreementGap = 0.2
)

// SurpriseInput carries everything the scorer needs; contradiction findings
// are computed upstream so the engine can index the pairs it discovers.
type SurpriseInput struct {
	Tenant                string
	Agent                 string
	Content               string
	Claims                []ResolvedClaim
	Provenance            domain.Provenance
	ContradictionFraction float64
	ConfidenceShift       float64
	Signal                *domain.SurpriseSignal
}

// ResolvedClaim is a claim with its final confidence, after AI scoring or
// defaulting.
type ResolvedClaim struct {
	Text       string
	Confidence domain.Confidence
}

// SurpriseService computes the weighted surprise score that drives layer
// placement, compression level and retention.
type SurpriseService struct {
	driver    domain.Driver
	epistemic *EpistemicService
	logger    *zap.Logger
}

func NewSurpriseService(d domain.Driver, epistemic *EpistemicService, logger *zap.Logger) *SurpriseService {
	return &SurpriseService{driver: d, epistemic: epistemic, logger: logger}
}

// Score combines the five components under the tenant's weights. When an
// external signal carries a magnitude, the final score is
// max(external, internal) so neither side can hide a surprise the other saw.
func (s *SurpriseService) Score(ctx context.Context, in SurpriseInput, weights domain.SurpriseWeights) (float64, domain.SurpriseComponents, error) {
	w := weights.Normalized()

	novelty, err := s.novelty(ctx, in.Tenant, in.Agent, in.Content)
	if err != nil {
		return 0, domain.SurpriseComponents{}, err
	}

	disagreement, err := s.disagreement(ctx, in.Tenant, in.Agent, in.Claims)
	if err != nil {
		return 0, domain.SurpriseComponents{}, err
	}

	components := domain.SurpriseComponents{
		Novelty:         novelty,
		Contradiction:   clamp01(in.ContradictionFraction),
		Evidence:        in.Provenance.EvidenceQuality(),
		ConfidenceShift: clamp01(in.ConfidenceShift),
		Disagreement:    disagreement,
	}

	internal := clamp01(w.Novelty*components.Novelty +
		w.Contradiction*components.Contradiction +
		w.Evidence*components.Evidence +
		w.ConfidenceShift*components.ConfidenceShift +
		w.Disagreement*components.Disagreement)

	final := internal
	if in.Signal != nil && in.Signal.Magnitude != nil {
		components.External = clamp01(*in.Signal.Magnitude)
		components.Momentum = in.Signal.Momentum
		if components.External > final {
			final = components.External
		}
	}
	return final, components, nil
}

// novelty is 1 minus the best token overlap against the agent's most recent
// memories. A first memory is maximally novel.
func (s *SurpriseService) novelty(ctx context.Context, tenant, agent, content string) (float64, error) {
	results, err := s.driver.Query(ctx, domain.QuerySpec{Pattern: domain.MemoryPattern(tenant)})
	if err != nil {
		return 0, err
	}

	var recent []domain.MemoryRecord
	for _, kv := range results {
		var record domain.MemoryRecord
		if err := unmarshal(kv.Value, &record); err != nil {
			continue
		}
		if record.Agent != agent {
			continue
		}
		recent = append(recent, record)
	}
	if len(recent) == 0 {
		return 1, nil
	}

	sort.Slice(recent, func(i, j int) bool { return recent[i].Timestamp() > recent[j].Timestamp() })
	if len(recent) > noveltyWindow {
		recent = recent[:noveltyWindow]
	}

	best := 0.0
	for _, r := range recent {
		if sim := textSimilarity(content, r.Content); sim > best {
			best = sim
		}
	}
	return clamp01(1 - best), nil
}

// disagreement is the fraction of incoming claims on which another agent
// holds an overlapping active belief with a materially different mean
// confidence.
func (s *SurpriseService) disagreement(ctx context.Context, tenant, agent string, claims []ResolvedClaim) (float64, error) {
	if len(claims) == 0 {
		return 0, nil
	}
	active, err := s.epistemic.Active(ctx, tenant)
	if err != nil {
		return 0, err
	}

	disagreed := 0
	for _, claim := range claims {
		for _, b := range active {
			if b.Provenance.Agent == agent || b.Provenance.Agent == "" {
				continue
			}
			if textSimilarity(claim.Text, b.Claim) < disagreementOverlap {
				continue
			}
			diff := claim.Confidence.Mean - b.Confidence.Mean
			if diff < 0 {
				diff = -diff
			}
			if diff >= disagreementGap {
				disagreed++
				break
			}
		}
	}
	return float64(disagreed) / float64(len(claims)), nil
}
