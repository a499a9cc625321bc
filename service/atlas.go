package service

import (
	"math"
	"sort"

	"github.com/mindscape-ai/mindscape/domain"
)

// Importance weighting: relevance, recency, surprise, usage, context fit.
const (
	importanceAlpha   = 0.30
	importanceBeta    = 0.20
	importanceGamma   = 0.25
	importanceDelta   = 0.15
	importanceEpsilon = 0.10

	// usageSaturation is the access count at which the usage component
	// reaches 1.
	usageSaturation = 20

	// usageLearningRate blends observed utility into stored importance.
	usageLearningRate = 0.2

	// defaultDiversity is the rerank penalty weight against already
	// selected content.
	defaultDiversity = 0.3
)

// ImportanceInput is one memory's scoring context.
type ImportanceInput struct {
	Content      string
	Query        string
	Surprise     float64
	UsageCount   int
	AgeDays      float64
	HalfLifeDays float64
}

// RankedMemory pairs an adaptive record with the text it would contribute
// to a context and its computed importance.
type RankedMemory struct {
	Memory     domain.AdaptiveMemory
	Content    string
	Importance float64
}

// RerankOptions tune the greedy diversity-aware selection.
type RerankOptions struct {
	TokenBudget     int
	QueryContext    string
	DiversityFactor float64
}

// AtlasService scores and orders memories for context assembly. It is pure
// computation; all storage effects stay with the caller.
type AtlasService struct{}

func NewAtlasService() *AtlasService {
	return &AtlasService{}
}

// Importance is the weighted blend of relevance to the query, exponential
// recency decay, surprise, saturating usage and query containment.
func (a *AtlasService) Importance(in ImportanceInput) float64 {
	halfLife := in.HalfLifeDays
	if halfLife <= 0 {
		halfLife = domain.DefaultRetentionPolicy().TemporalHalfLifeDays
	}
	recency := math.Exp2(-in.AgeDays / halfLife)
	usage := math.Min(1, float64(in.UsageCount)/usageSaturation)

	relevance := 0.0
	contextFit := 0.0
	if in.Query != "" {
		relevance = textSimilarity(in.Content, in.Query)
		contextFit = textContainment(in.Query, in.Content)
	}

	return clamp01(importanceAlpha*relevance +
		importanceBeta*recency +
		importanceGamma*clamp01(in.Surprise) +
		importanceDelta*usage +
		importanceEpsilon*contextFit)
}

// Rerank greedily selects memories by importance with a diversity penalty
// against what is already picked, never exceeding the token budget. The
// highest-importance memory always leads; candidates that no longer fit are
// skipped rather than truncated.
func (a *AtlasService) Rerank(items []RankedMemory, opts RerankOptions) []RankedMemory {
	if len(items) == 0 {
		return nil
	}
	diversity := opts.DiversityFactor
	if diversity <= 0 {
		diversity = defaultDiversity
	}

	remaining := make([]RankedMemory, len(items))
	copy(remaining, items)
	// Deterministic tie-breaks regardless of input order.
	sort.Slice(remaining, func(i, j int) bool {
		if remaining[i].Importance != remaining[j].Importance {
			return remaining[i].Importance > remaining[j].Importance
		}
		return remaining[i].Memory.ID < remaining[j].Memory.ID
	})

	budget := opts.TokenBudget
	var picked []RankedMemory

	for len(remaining) > 0 {
		bestIdx := -1
		bestScore := math.Inf(-1)
		for i, cand := range remaining {
			cost := domain.EstimateTokens(cand.Content)
			if budget > 0 && cost > budget {
				continue
			}
			score := cand.Importance
			if len(picked) > 0 {
				maxSim := 0.0
				for _, p := range picked {
					if sim := textSimilarity(cand.Content, p.Content); sim > maxSim {
						maxSim = sim
					}
				}
				score -= diversity * maxSim
			}
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}
		chosen := remaining[bestIdx]
		picked = append(picked, chosen)
		if budget > 0 {
			budget -= domain.EstimateTokens(chosen.Content)
		}
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return picked
}

// UpdateImportance blends an observed utility signal into the stored
// importance with a fixed learning rate.
func (a *AtlasService) UpdateImportance(current, utility float64) float64 {
	return clamp01((1-usageLearningRate)*current + usageLearningRate*clamp01(utility))
}
