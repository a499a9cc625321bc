package domain

// Layer is the age/surprise-derived temporal classification of a memory.
type Layer string

const (
	LayerHot    Layer = "hot"
	LayerWarm   Layer = "warm"
	LayerCold   Layer = "cold"
	LayerFrozen Layer = "frozen"
)

func AllLayers() []Layer {
	return []Layer{LayerHot, LayerWarm, LayerCold, LayerFrozen}
}

func ValidLayer(l string) bool {
	switch Layer(l) {
	case LayerHot, LayerWarm, LayerCold, LayerFrozen:
		return true
	}
	return false
}

// Classification windows in seconds.
const (
	HotWindowSecs  = 86_400
	WarmWindowSecs = 604_800
	ColdWindowSecs = 2_592_000
)

// LayerForAge classifies by elapsed seconds since the record's timestamp.
func LayerForAge(ageSecs int64) Layer {
	switch {
	case ageSecs <= HotWindowSecs:
		return LayerHot
	case ageSecs <= WarmWindowSecs:
		return LayerWarm
	case ageSecs <= ColdWindowSecs:
		return LayerCold
	default:
		return LayerFrozen
	}
}

// LayerForSurprise places a fresh memory by its surprise score. Boundaries
// are strict so 0.1 lands frozen and 0.5 lands warm.
func LayerForSurprise(s float64) Layer {
	switch {
	case s > 0.7:
		return LayerHot
	case s > 0.3:
		return LayerWarm
	case s > 0.1:
		return LayerCold
	default:
		return LayerFrozen
	}
}

// DemoteOnly returns the older of the recorded and age-derived layers.
// Read-fixup never promotes; only explicit promote calls do.
func DemoteOnly(recorded, aged Layer) Layer {
	if layerRank(aged) > layerRank(recorded) {
		return aged
	}
	return recorded
}

func layerRank(l Layer) int {
	switch l {
	case LayerHot:
		return 0
	case LayerWarm:
		return 1
	case LayerCold:
		return 2
	default:
		return 3
	}
}

// CompressionLevelForSurprise maps surprise inversely to compression:
// high surprise keeps the record uncompressed. Strict boundaries, so
// 0.5 -> 2 and 0.1 -> 4.
func CompressionLevelForSurprise(s float64) int {
	switch {
	case s > 0.7:
		return 0
	case s > 0.5:
		return 1
	case s > 0.3:
		return 2
	case s > 0.1:
		return 3
	default:
		return 4
	}
}

// CompressionTargets are the target byte fractions per level 0..4.
var CompressionTargets = [5]float64{1.00, 0.70, 0.40, 0.20, 0.10}

// SurpriseComponents is the stored breakdown of a surprise score.
type SurpriseComponents struct {
	Novelty         float64 `json:"novelty"`
	Contradiction   float64 `json:"contradiction"`
	Evidence        float64 `json:"evidence"`
	ConfidenceShift float64 `json:"confidence_shift"`
	Disagreement    float64 `json:"disagreement"`
	External        float64 `json:"external,omitempty"`
	Momentum        float64 `json:"momentum,omitempty"`
}

// SurpriseSignal is an optional externally supplied surprise measurement.
// When Magnitude is set the internal score acts as a floor check:
// final = max(external, internal).
type SurpriseSignal struct {
	Magnitude  *float64           `json:"magnitude,omitempty"`
	Momentum   float64            `json:"momentum,omitempty"`
	Components map[string]float64 `json:"components,omitempty"`
}

// AdaptiveMemory is the surprise-annotated projection of a MemoryRecord.
type AdaptiveMemory struct {
	ID                 string             `json:"id"`
	Tenant             string             `json:"tenant"`
	Agent              string             `json:"agent"`
	CoreMemoryID       string             `json:"core_memory_id"`
	BeliefIDs          []string           `json:"belief_ids,omitempty"`
	SurpriseScore      float64            `json:"surprise_score"`
	SurpriseComponents SurpriseComponents `json:"surprise_components"`
	Layer              Layer              `json:"layer"`
	Importance         float64            `json:"importance"`
	UsageCount         int                `json:"usage_count"`
	LastAccessTS       int64              `json:"last_access_ts,omitempty"`
	CompressionLevel   int                `json:"compression_level"`
	CompressedPayload  string             `json:"compressed_payload,omitempty"`
	Suppressed         bool               `json:"suppressed,omitempty"`
	CreatedAt          int64              `json:"created_at"`
	UpdatedAt          int64              `json:"updated_at"`
}

// EffectiveLayer applies demote-only age fixup at read time.
func (a *AdaptiveMemory) EffectiveLayer(now int64) Layer {
	return DemoteOnly(a.Layer, LayerForAge(now-a.CreatedAt))
}
