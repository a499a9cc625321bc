package domain

import (
	"math"
	"testing"
)

func TestRetentionWeights_Normalized(t *testing.T) {
	w := RetentionWeights{Surprise: 2, Contradiction: 1, Temporal: 1, Evidence: 0.5, Usage: 0.5}
	n := w.Normalized()
	sum := n.Surprise + n.Contradiction + n.Temporal + n.Evidence + n.Usage
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("normalised weights sum = %f, want 1.0", sum)
	}
	if math.Abs(n.Surprise-0.4) > 1e-9 {
		t.Errorf("surprise weight = %f, want 0.4", n.Surprise)
	}
}

func TestRetentionWeights_ZeroFallsBackToDefaults(t *testing.T) {
	n := RetentionWeights{}.Normalized()
	if n != DefaultRetentionWeights() {
		t.Errorf("zero weights should normalise to defaults, got %+v", n)
	}
}

func TestSurpriseWeights_Defaults(t *testing.T) {
	d := DefaultSurpriseWeights()
	sum := d.Novelty + d.Contradiction + d.Evidence + d.ConfidenceShift + d.Disagreement
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("default surprise weights sum = %f, want 1.0", sum)
	}
	if d.Novelty != 0.35 || d.Contradiction != 0.25 {
		t.Errorf("unexpected defaults: %+v", d)
	}
}

func TestTenantConfig_Normalized_FillsThresholds(t *testing.T) {
	cfg := TenantConfig{}.Normalized()
	if cfg.RetentionPolicy.PromotionThreshold != 0.75 {
		t.Errorf("promotion threshold = %f, want default 0.75", cfg.RetentionPolicy.PromotionThreshold)
	}
	if cfg.RetentionPolicy.CompressionAgeDays != 30 {
		t.Errorf("compression age = %d, want default 30", cfg.RetentionPolicy.CompressionAgeDays)
	}
	if cfg.CompressionStrategy != "hierarchical" {
		t.Errorf("strategy = %q, want hierarchical", cfg.CompressionStrategy)
	}
}

func TestTenantConfig_Normalized_KeepsExplicitValues(t *testing.T) {
	cfg := TenantConfig{
		RetentionPolicy: RetentionPolicy{
			Name:                 "aggressive",
			CompressionThreshold: 0.35,
			CompressionAgeDays:   10,
		},
	}.Normalized()
	if cfg.RetentionPolicy.CompressionThreshold != 0.35 {
		t.Errorf("explicit threshold overwritten: %f", cfg.RetentionPolicy.CompressionThreshold)
	}
	if cfg.RetentionPolicy.Name != "aggressive" {
		t.Errorf("explicit name overwritten: %s", cfg.RetentionPolicy.Name)
	}
}
