package domain

import "testing"

func TestCanTransition_Table(t *testing.T) {
	tests := []struct {
		from, to BeliefState
		want     bool
	}{
		{StateHypothesis, StateAccepted, true},
		{StateHypothesis, StateContested, true},
		{StateHypothesis, StateRejected, true},
		{StateHypothesis, StateDeprecated, false},
		{StateHypothesis, StateHypothesis, false},
		{StateAccepted, StateContested, true},
		{StateAccepted, StateDeprecated, true},
		{StateAccepted, StateRejected, false},
		{StateAccepted, StateHypothesis, false},
		{StateContested, StateAccepted, true},
		{StateContested, StateRejected, true},
		{StateContested, StateDeprecated, true},
		{StateContested, StateHypothesis, false},
		{StateDeprecated, StateContested, true},
		{StateDeprecated, StateAccepted, false},
		{StateRejected, StateHypothesis, true},
		{StateRejected, StateAccepted, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCanTransition_RejectedCanOnlyReopen(t *testing.T) {
	allowed := AllowedTransitions(StateRejected)
	if len(allowed) != 1 || allowed[0] != StateHypothesis {
		t.Errorf("rejected should only reopen to hypothesis, got %v", allowed)
	}
}

func TestValidBeliefState(t *testing.T) {
	for _, s := range []string{"hypothesis", "accepted", "contested", "deprecated", "rejected"} {
		if !ValidBeliefState(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	for _, s := range []string{"", "Accepted", "unknown", "archived"} {
		if ValidBeliefState(s) {
			t.Errorf("expected %q to be invalid", s)
		}
	}
}

func TestBelief_Active(t *testing.T) {
	active := []BeliefState{StateHypothesis, StateAccepted, StateContested}
	for _, s := range active {
		b := &Belief{State: s}
		if !b.Active() {
			t.Errorf("state %s should be active", s)
		}
	}
	for _, s := range []BeliefState{StateDeprecated, StateRejected} {
		b := &Belief{State: s}
		if b.Active() {
			t.Errorf("state %s should not be active", s)
		}
	}
}

func TestConfidence_Valid(t *testing.T) {
	ok := Confidence{Min: 0.3, Mean: 0.5, Max: 0.7}
	if !ok.Valid() {
		t.Error("ordered interval should be valid")
	}
	bad := []Confidence{
		{Min: 0.6, Mean: 0.5, Max: 0.7},
		{Min: 0.3, Mean: 0.8, Max: 0.7},
		{Min: -0.1, Mean: 0.5, Max: 0.7},
		{Min: 0.3, Mean: 0.5, Max: 1.2},
	}
	for _, c := range bad {
		if c.Valid() {
			t.Errorf("interval %+v should be invalid", c)
		}
	}
}

func TestProvenance_EvidenceQuality(t *testing.T) {
	tests := []struct {
		source string
		want   float64
	}{
		{"user", 0.9},
		{"tool", 0.8},
		{"agent", 0.6},
		{"derived", 0.5},
		{"inferred", 0.4},
		{"something_else", 0.5},
	}
	for _, tt := range tests {
		p := Provenance{Source: tt.source}
		if got := p.EvidenceQuality(); got != tt.want {
			t.Errorf("EvidenceQuality(%s) = %f, want %f", tt.source, got, tt.want)
		}
	}
}
