package domain

// RetentionWeights drive the retention score. Weights are normalised to sum
// to 1.0 when the config is written.
type RetentionWeights struct {
	Surprise      float64 `json:"surprise"`
	Contradiction float64 `json:"contradiction"`
	Temporal      float64 `json:"temporal"`
	Evidence      float64 `json:"evidence"`
	Usage         float64 `json:"usage"`
}

func (w RetentionWeights) sum() float64 {
	return w.Surprise + w.Contradiction + w.Temporal + w.Evidence + w.Usage
}

// Normalized rescales the weights to sum to 1.0; zero weights fall back to
// the defaults.
func (w RetentionWeights) Normalized() RetentionWeights {
	s := w.sum()
	if s <= 0 {
		return DefaultRetentionWeights()
	}
	return RetentionWeights{
		Surprise:      w.Surprise / s,
		Contradiction: w.Contradiction / s,
		Temporal:      w.Temporal / s,
		Evidence:      w.Evidence / s,
		Usage:         w.Usage / s,
	}
}

func DefaultRetentionWeights() RetentionWeights {
	return RetentionWeights{Surprise: 0.30, Contradiction: 0.20, Temporal: 0.20, Evidence: 0.15, Usage: 0.15}
}

// SurpriseWeights combine the five surprise components.
type SurpriseWeights struct {
	Novelty         float64 `json:"novelty"`
	Contradiction   float64 `json:"contradiction"`
	Evidence        float64 `json:"evidence"`
	ConfidenceShift float64 `json:"confidence_shift"`
	Disagreement    float64 `json:"disagreement"`
}

func (w SurpriseWeights) sum() float64 {
	return w.Novelty + w.Contradiction + w.Evidence + w.ConfidenceShift + w.Disagreement
}

func (w SurpriseWeights) Normalized() SurpriseWeights {
	s := w.sum()
	if s <= 0 {
		return DefaultSurpriseWeights()
	}
	return SurpriseWeights{
		Novelty:         w.Novelty / s,
		Contradiction:   w.Contradiction / s,
		Evidence:        w.Evidence / s,
		ConfidenceShift: w.ConfidenceShift / s,
		Disagreement:    w.Disagreement / s,
	}
}

func DefaultSurpriseWeights() SurpriseWeights {
	return SurpriseWeights{Novelty: 0.35, Contradiction: 0.25, Evidence: 0.15, ConfidenceShift: 0.15, Disagreement: 0.10}
}

// RetentionPolicy holds per-tenant advisory thresholds. The evaluator only
// produces recommendations; nothing here triggers mutation.
type RetentionPolicy struct {
	Name                 string           `json:"name"`
	RetentionWeights     RetentionWeights `json:"retention_weights"`
	PromotionThreshold   float64          `json:"promotion_threshold"`
	CompressionThreshold float64          `json:"compression_threshold"`
	CompressionAgeDays   int              `json:"compression_age_days"`
	DecayRate            float64          `json:"decay_rate"`
	TemporalHalfLifeDays float64          `json:"temporal_half_life_days"`
}

func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		Name:                 "default",
		RetentionWeights:     DefaultRetentionWeights(),
		PromotionThreshold:   0.75,
		CompressionThreshold: 0.30,
		CompressionAgeDays:   30,
		DecayRate:            0.05,
		TemporalHalfLifeDays: 7,
	}
}

// TenantConfig is everything a tenant can tune, stored under
// adaptive_config:{tenant}:{field}.
type TenantConfig struct {
	RetentionPolicy     RetentionPolicy `json:"retention_policy"`
	SurpriseWeights     SurpriseWeights `json:"surprise_weights"`
	CompressionStrategy string          `json:"compression_strategy,omitempty"`
}

func DefaultTenantConfig() TenantConfig {
	return TenantConfig{
		RetentionPolicy:     DefaultRetentionPolicy(),
		SurpriseWeights:     DefaultSurpriseWeights(),
		CompressionStrategy: "hierarchical",
	}
}

// Normalized returns the config with all weight maps rescaled and zero-value
// thresholds filled from defaults.
func (c TenantConfig) Normalized() TenantConfig {
	def := DefaultRetentionPolicy()
	p := c.RetentionPolicy
	p.RetentionWeights = p.RetentionWeights.Normalized()
	if p.Name == "" {
		p.Name = def.Name
	}
	if p.PromotionThreshold == 0 {
		p.PromotionThreshold = def.PromotionThreshold
	}
	if p.CompressionThreshold == 0 {
		p.CompressionThreshold = def.CompressionThreshold
	}
	if p.CompressionAgeDays == 0 {
		p.CompressionAgeDays = def.CompressionAgeDays
	}
	if p.DecayRate == 0 {
		p.DecayRate = def.DecayRate
	}
	if p.TemporalHalfLifeDays == 0 {
		p.TemporalHalfLifeDays = def.TemporalHalfLifeDays
	}
	c.RetentionPolicy = p
	c.SurpriseWeights = c.SurpriseWeights.Normalized()
	if c.CompressionStrategy == "" {
		c.CompressionStrategy = "hierarchical"
	}
	return c
}
