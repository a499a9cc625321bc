package service

import (
	"strings"
	"testing"
)

func TestMDLEntropy(t *testing.T) {
	m := NewMDLScorer()

	if got := m.Entropy(""); got != 0 {
		t.Errorf("empty entropy = %f, want 0", got)
	}
	if got := m.Entropy("aaaaaaaa"); got != 0 {
		t.Errorf("uniform entropy = %f, want 0", got)
	}

	low := m.Entropy("abababababab")
	high := m.Entropy("the quick brown fox jumps over the lazy dog")
	if low >= high {
		t.Errorf("expected varied text entropy (%f) above repeated pairs (%f)", high, low)
	}
}

func TestMDLRedundancy(t *testing.T) {
	m := NewMDLScorer()

	if got := m.Redundancy("each word here is unique"); got != 0 {
		t.Errorf("unique words redundancy = %f, want 0", got)
	}

	got := m.Redundancy("again again again again")
	if got != 0.75 {
		t.Errorf("repeated word redundancy = %f, want 0.75", got)
	}
}

func TestMDLStructureBonus(t *testing.T) {
	m := NewMDLScorer()

	cases := []struct {
		name    string
		content string
		want    float64
	}{
		{"plain", "just a sentence with nothing special", 0},
		{"bullets", "- first\n- second", 0.2},
		{"code", "```go\nfunc main() {}\n```", 0.3},
		{"numbered", "1. do this\n2. then that", 0.2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := m.StructureBonus(tc.content)
			if got < tc.want {
				t.Errorf("StructureBonus(%q) = %f, want >= %f", tc.content, got, tc.want)
			}
		})
	}
}

func TestMDLTargetRatioBounds(t *testing.T) {
	m := NewMDLScorer()

	inputs := []string{
		"",
		"aaaa aaaa aaaa aaaa aaaa aaaa aaaa aaaa",
		strings.Repeat("the same filler text over and over ", 40),
		"A dense unique paragraph: quarks, leptons, bosons; each term appears exactly once, maximizing novelty per byte.",
		"```\ncode block\n```\n# Header\n- bullet one\n- bullet two",
	}
	for _, in := range inputs {
		ratio := m.TargetRatio(in)
		if ratio < 0.2 || ratio > 0.8 {
			t.Errorf("TargetRatio(%.20q...) = %f, outside [0.2, 0.8]", in, ratio)
		}
	}
}

func TestMDLRepetitiveCompressesHarder(t *testing.T) {
	m := NewMDLScorer()

	repetitive := strings.Repeat("heartbeat ok heartbeat ok ", 30)
	dense := "Retrospective: the cache invalidation bug traced to a stale epoch counter; decision: version every key, rejected alternative: global flush."

	if m.TargetRatio(repetitive) >= m.TargetRatio(dense) {
		t.Errorf("repetitive content should compress harder: repetitive=%f dense=%f",
			m.TargetRatio(repetitive), m.TargetRatio(dense))
	}
}
