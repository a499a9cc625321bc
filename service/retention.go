package service

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/mindscape-ai/mindscape/domain"
	"go.uber.org/zap"
)

// RetentionRecommendation is one advisory verdict. The evaluator never
// mutates anything; callers decide whether to act.
type RetentionRecommendation struct {
	MemoryID string  `json:"memory_id"`
	Score    float64 `json:"score"`
	Reason   string  `json:"reason"`
}

// RetentionReport is the full evaluation output, deterministic for a given
// store state and clock.
type RetentionReport struct {
	Tenant      string                    `json:"tenant"`
	EvaluatedAt int64                     `json:"evaluated_at"`
	Evaluated   int                       `json:"evaluated"`
	Promote     []RetentionRecommendation `json:"promote,omitempty"`
	Compress    []RetentionRecommendation `json:"compress,omitempty"`
	Keep        []RetentionRecommendation `json:"keep,omitempty"`
}

// RetentionService scores memories for retention and produces
// recommendations only.
type RetentionService struct {
	adaptive      *AdaptiveStore
	contradiction *ContradictionService
	logger        *zap.Logger
}

func NewRetentionService(adaptive *AdaptiveStore, contradiction *ContradictionService, logger *zap.Logger) *RetentionService {
	return &RetentionService{adaptive: adaptive, contradiction: contradiction, logger: logger}
}

// Evaluate scores every unsuppressed projection of the tenant (optionally
// one agent) under the policy's weights and sorts each bucket by id so the
// same state always yields the same report.
func (r *RetentionService) Evaluate(ctx context.Context, tenant, agent string, cfg domain.TenantConfig) (*RetentionReport, error) {
	if tenant == "" {
		return nil, fmt.Errorf("%w: tenant is required", domain.ErrInvalidInput)
	}
	policy := cfg.Normalized().RetentionPolicy
	weights := policy.RetentionWeights

	memories, err := r.adaptive.List(ctx, tenant, agent)
	if err != nil {
		return nil, err
	}

	contested, err := r.contestedBeliefs(ctx, tenant)
	if err != nil {
		return nil, err
	}

	now := nowUnix()
	report := &RetentionReport{Tenant: tenant, EvaluatedAt: now}

	for _, mem := range memories {
		if mem.Suppressed {
			continue
		}
		report.Evaluated++

		ageDays := float64(now-mem.CreatedAt) / 86_400.0
		if ageDays < 0 {
			ageDays = 0
		}
		recency := math.Exp2(-ageDays / policy.TemporalHalfLifeDays)

		inContradiction := 0.0
		for _, bid := range mem.BeliefIDs {
			if _, ok := contested[bid]; ok {
				inContradiction = 1.0
				break
			}
		}

		usage := math.Min(1, float64(mem.UsageCount)/usageSaturation)

		score := weights.Surprise*mem.SurpriseScore +
			weights.Contradiction*inContradiction +
			weights.Temporal*recency +
			weights.Evidence*mem.SurpriseComponents.Evidence +
			weights.Usage*usage

		rec := RetentionRecommendation{MemoryID: mem.ID, Score: score}
		switch {
		case score >= policy.PromotionThreshold && mem.EffectiveLayer(now) != domain.LayerHot:
			rec.Reason = fmt.Sprintf("score %.2f above promotion threshold %.2f", score, policy.PromotionThreshold)
			report.Promote = append(report.Promote, rec)
		case score < policy.CompressionThreshold && ageDays >= float64(policy.CompressionAgeDays):
			rec.Reason = fmt.Sprintf("score %.2f below compression threshold %.2f after %d days",
				score, policy.CompressionThreshold, int(ageDays))
			report.Compress = append(report.Compress, rec)
		default:
			rec.Reason = "within retention band"
			report.Keep = append(report.Keep, rec)
		}
	}

	sortRecs(report.Promote)
	sortRecs(report.Compress)
	sortRecs(report.Keep)
	return report, nil
}

func sortRecs(recs []RetentionRecommendation) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].MemoryID < recs[j].MemoryID })
}

// contestedBeliefs is the set of belief ids appearing in any unresolved
// contradiction.
func (r *RetentionService) contestedBeliefs(ctx context.Context, tenant string) (map[string]struct{}, error) {
	active, err := r.contradiction.Active(ctx, tenant)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(active)*2)
	for _, c := range active {
		set[c.BeliefA] = struct{}{}
		set[c.BeliefB] = struct{}{}
	}
	return set, nil
}

// DecayUsage applies the policy's decay rate to usage counts, flooring at
// zero. Called from the retention job so unused memories cool off over time.
func (r *RetentionService) DecayUsage(ctx context.Context, tenant string, cfg domain.TenantConfig) (int, error) {
	policy := cfg.Normalized().RetentionPolicy
	memories, err := r.adaptive.List(ctx, tenant, "")
	if err != nil {
		return 0, err
	}

	decayed := 0
	for i := range memories {
		mem := &memories[i]
		if mem.UsageCount == 0 {
			continue
		}
		next := int(math.Floor(float64(mem.UsageCount) * (1 - policy.DecayRate)))
		if next == mem.UsageCount {
			next = mem.UsageCount - 1
		}
		if next < 0 {
			next = 0
		}
		mem.UsageCount = next
		mem.UpdatedAt = nowUnix()
		if err := r.adaptive.Put(ctx, mem); err != nil {
			return decayed, err
		}
		decayed++
	}
	return decayed, nil
}
