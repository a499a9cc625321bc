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

func newRetention(t *testing.T) (*RetentionService, *AdaptiveStore, *ContradictionService) {
	t.Helper()
	d := driver.NewMemory()
	logger := zap.NewNop()
	adaptive := NewAdaptiveStore(d, logger)
	contra := NewContradictionService(d, ai.NewMockProvider(), logger)
	return NewRetentionService(adaptive, contra, logger), adaptive, contra
}

func putAdaptive(t *testing.T, store *AdaptiveStore, mem domain.AdaptiveMemory) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), &mem))
}

func TestEvaluateBucketsRecommendations(t *testing.T) {
	r, adaptive, _ := newRetention(t)
	ctx := context.Background()

	now := int64(1_700_000_000)
	withClock(t, now, func() {
		// Fresh, high-surprise, heavily used, not hot: promotion candidate.
		putAdaptive(t, adaptive, domain.AdaptiveMemory{
			ID: "promote-me", Tenant: "t1", Agent: "a1",
			SurpriseScore:      0.95,
			SurpriseComponents: domain.SurpriseComponents{Evidence: 0.9},
			Layer:              domain.LayerWarm,
			UsageCount:         25,
			CreatedAt:          now - 3600,
		})
		// Old, low-surprise, unused: compression candidate.
		putAdaptive(t, adaptive, domain.AdaptiveMemory{
			ID: "compress-me", Tenant: "t1", Agent: "a1",
			SurpriseScore: 0.05,
			Layer:         domain.LayerCold,
			CreatedAt:     now - 40*86_400,
		})
		// Middle of the road: keep.
		putAdaptive(t, adaptive, domain.AdaptiveMemory{
			ID: "keep-me", Tenant: "t1", Agent: "a1",
			SurpriseScore:      0.5,
			SurpriseComponents: domain.SurpriseComponents{Evidence: 0.6},
			Layer:              domain.LayerHot,
			UsageCount:         5,
			CreatedAt:          now - 3600,
		})

		report, err := r.Evaluate(ctx, "t1", "a1", domain.DefaultTenantConfig())
		require.NoError(t, err)
		assert.Equal(t, 3, report.Evaluated)

		require.Len(t, report.Promote, 1)
		assert.Equal(t, "promote-me", report.Promote[0].MemoryID)
		require.Len(t, report.Compress, 1)
		assert.Equal(t, "compress-me", report.Compress[0].MemoryID)
		require.Len(t, report.Keep, 1)
	})
}

func TestEvaluateIsDeterministic(t *testing.T) {
	r, adaptive, _ := newRetention(t)
	ctx := context.Background()

	now := int64(1_700_000_000)
	withClock(t, now, func() {
		for _, id := range []string{"zeta", "alpha", "mid"} {
			putAdaptive(t, adaptive, domain.AdaptiveMemory{
				ID: id, Tenant: "t1", SurpriseScore: 0.5, Layer: domain.LayerHot,
				CreatedAt: now - 100,
			})
		}
		first, err := r.Evaluate(ctx, "t1", "", domain.DefaultTenantConfig())
		require.NoError(t, err)
		second, err := r.Evaluate(ctx, "t1", "", domain.DefaultTenantConfig())
		require.NoError(t, err)
		assert.Equal(t, first, second)

		// Keep bucket sorted by id.
		require.Len(t, first.Keep, 3)
		assert.Equal(t, "alpha", first.Keep[0].MemoryID)
		assert.Equal(t, "zeta", first.Keep[2].MemoryID)
	})
}

func TestEvaluateContradictionBoost(t *testing.T) {
	r, adaptive, contra := newRetention(t)
	ctx := context.Background()

	now := int64(1_700_000_000)
	withClock(t, now, func() {
		base := domain.AdaptiveMemory{
			Tenant: "t1", SurpriseScore: 0.3, Layer: domain.LayerWarm,
			CreatedAt: now - 86_400,
		}
		plain := base
		plain.ID = "plain"
		putAdaptive(t, adaptive, plain)

		contested := base
		contested.ID = "contested"
		contested.BeliefIDs = []string{"b1"}
		putAdaptive(t, adaptive, contested)

		_, err := contra.Index(ctx, "t1", "b1", "b2", "direct")
		require.NoError(t, err)

		report, err := r.Evaluate(ctx, "t1", "", domain.DefaultTenantConfig())
		require.NoError(t, err)

		scores := map[string]float64{}
		for _, bucket := range [][]RetentionRecommendation{report.Promote, report.Compress, report.Keep} {
			for _, rec := range bucket {
				scores[rec.MemoryID] = rec.Score
			}
		}
		assert.Greater(t, scores["contested"], scores["plain"],
			"membership in an unresolved contradiction must raise retention")
	})
}

func TestEvaluateSkipsSuppressed(t *testing.T) {
	r, adaptive, _ := newRetention(t)
	ctx := context.Background()

	putAdaptive(t, adaptive, domain.AdaptiveMemory{
		ID: "hidden", Tenant: "t1", Suppressed: true, CreatedAt: nowUnix(),
	})
	report, err := r.Evaluate(ctx, "t1", "", domain.DefaultTenantConfig())
	require.NoError(t, err)
	assert.Zero(t, report.Evaluated)
}

func TestDecayUsage(t *testing.T) {
	r, adaptive, _ := newRetention(t)
	ctx := context.Background()

	putAdaptive(t, adaptive, domain.AdaptiveMemory{ID: "m1", Tenant: "t1", UsageCount: 100})
	putAdaptive(t, adaptive, domain.AdaptiveMemory{ID: "m2", Tenant: "t1", UsageCount: 1})
	putAdaptive(t, adaptive, domain.AdaptiveMemory{ID: "m3", Tenant: "t1", UsageCount: 0})

	decayed, err := r.DecayUsage(ctx, "t1", domain.DefaultTenantConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, decayed)

	m1, err := adaptive.Get(ctx, "t1", "m1")
	require.NoError(t, err)
	assert.Equal(t, 95, m1.UsageCount)

	m2, err := adaptive.Get(ctx, "t1", "m2")
	require.NoError(t, err)
	assert.Equal(t, 0, m2.UsageCount)
}
