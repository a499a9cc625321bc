package domain

// BeliefState is the epistemic lifecycle state of a claim.
type BeliefState string

const (
	StateHypothesis BeliefState = "hypothesis"
	StateAccepted   BeliefState = "accepted"
	StateContested  BeliefState = "contested"
	StateDeprecated BeliefState = "deprecated"
	StateRejected   BeliefState = "rejected"
)

func ValidBeliefState(s string) bool {
	switch BeliefState(s) {
	case StateHypothesis, StateAccepted, StateContested, StateDeprecated, StateRejected:
		return true
	}
	return false
}

// lifecycleTransitions is the full transition table. Any attempt outside it
// fails with ErrInvalidTransition.
var lifecycleTransitions = map[BeliefState][]BeliefState{
	StateHypothesis: {StateAccepted, StateContested, StateRejected},
	StateAccepted:   {StateContested, StateDeprecated},
	StateContested:  {StateAccepted, StateRejected, StateDeprecated},
	StateDeprecated: {StateContested},
	StateRejected:   {StateHypothesis},
}

// CanTransition reports whether from -> to is a valid lifecycle walk.
func CanTransition(from, to BeliefState) bool {
	for _, allowed := range lifecycleTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the valid targets from a state.
func AllowedTransitions(from BeliefState) []BeliefState {
	return lifecycleTransitions[from]
}

// Provenance records where a belief came from.
type Provenance struct {
	Source   string `json:"source"`
	MemoryID string `json:"memory_id"`
	Agent    string `json:"agent"`
}

// EvidenceQuality maps a provenance source to a quality score in [0,1] used
// by surprise and retention scoring.
func (p Provenance) EvidenceQuality() float64 {
	switch p.Source {
	case "user", "user_statement":
		return 0.9
	case "tool", "tool_output":
		return 0.8
	case "agent", "agent_inference":
		return 0.6
	case "derived":
		return 0.5
	case "inferred":
		return 0.4
	default:
		return 0.5
	}
}

// Belief is the current record of an epistemic unit. The version chain is
// append-only: len(versions) == Version - 1, each version holding the
// pre-transition snapshot.
type Belief struct {
	ID         string      `json:"id"`
	Tenant     string      `json:"tenant"`
	Claim      string      `json:"claim"`
	Confidence Confidence  `json:"confidence"`
	State      BeliefState `json:"state"`
	Provenance Provenance  `json:"provenance"`
	Version    int         `json:"version"`
	CreatedAt  int64       `json:"created_at"`
	UpdatedAt  int64       `json:"updated_at"`
}

// Active reports whether the belief participates in contradiction checks and
// context snapshots.
func (b *Belief) Active() bool {
	switch b.State {
	case StateHypothesis, StateAccepted, StateContested:
		return true
	}
	return false
}

// BeliefVersion is an immutable snapshot written on every transition.
type BeliefVersion struct {
	VersionID        string      `json:"version_id"`
	BeliefID         string      `json:"belief_id"`
	Version          int         `json:"version"`
	State            BeliefState `json:"state"`
	PreviousState    BeliefState `json:"previous_state"`
	Confidence       Confidence  `json:"confidence"`
	TransitionReason string      `json:"transition_reason"`
	CreatedAt        int64       `json:"created_at"`
}

// LifecycleTransition is one entry of a belief's append-only lifecycle record.
type LifecycleTransition struct {
	From   BeliefState `json:"from"`
	To     BeliefState `json:"to"`
	Reason string      `json:"reason"`
	At     int64       `json:"at"`
}

// LifecycleRecord aggregates a belief's transitions under lifecycle:{tenant}:{belief_id}.
type LifecycleRecord struct {
	BeliefID    string                `json:"belief_id"`
	Transitions []LifecycleTransition `json:"transitions"`
}

// ConfidencePoint is one immutable sample of a belief's confidence series.
// The key embeds the timestamp so points are naturally ordered.
type ConfidencePoint struct {
	BeliefID   string     `json:"belief_id"`
	Confidence Confidence `json:"confidence"`
	Timestamp  int64      `json:"timestamp"`
}

// Contradiction links two beliefs found to be in tension. IDs are
// order-independent so indexing is idempotent.
type Contradiction struct {
	ID           string `json:"id"`
	BeliefA      string `json:"belief_a"`
	BeliefB      string `json:"belief_b"`
	Type         string `json:"type"`
	DiscoveredAt int64  `json:"discovered_at"`
	Resolved     bool   `json:"resolved"`
}
