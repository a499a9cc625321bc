package domain

import "testing"

func TestContradictionID_OrderIndependent(t *testing.T) {
	a := ContradictionID("belief-1", "belief-2")
	b := ContradictionID("belief-2", "belief-1")
	if a != b {
		t.Errorf("contradiction id must be order independent: %s != %s", a, b)
	}
	if a == ContradictionID("belief-1", "belief-3") {
		t.Error("different pairs must not collide")
	}
}

func TestKeyNamespaces(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{MemoryKey("t1", "m1"), "mindscape:t1:memory:m1"},
		{StratifyKey("t1", "a1", LayerHot), "stratify:t1:a1:hot"},
		{SummaryKey("t1", LayerWarm), "summary:t1:warm"},
		{BeliefKey("t1", "b1"), "gnosis:t1:belief:b1"},
		{BeliefVersionKey("t1", "b1", "v1"), "gnosis:t1:belief:b1:version:v1"},
		{LifecycleKey("t1", "b1"), "lifecycle:t1:b1"},
		{ConfidenceKey("t1", "b1", 42), "confidence:t1:b1:42"},
		{ContradictionKey("t1", "c1"), "contradictions:t1:c1"},
		{AdaptiveKey("t1", "a1"), "adaptive_memory:t1:a1"},
		{AdaptiveConfigKey("t1", "retention_policy"), "adaptive_config:t1:retention_policy"},
		{JobKey("j1"), "job:j1"},
		{AuditKey("t1", 7), "audit:t1:7"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("key = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestDayBucket(t *testing.T) {
	if DayBucket(0) != 0 {
		t.Error("bucket of 0 should be 0")
	}
	if DayBucket(86_399) != 0 {
		t.Error("last second of day 0 should bucket to 0")
	}
	if DayBucket(86_400) != 1 {
		t.Error("first second of day 1 should bucket to 1")
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"12345678", 2},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.in); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
