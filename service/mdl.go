package service

import (
	"math"
	"strings"
)

// MDLScorer derives a content-aware compression target from minimum
// description length proxies: byte entropy, word-level redundancy and
// structural markers. Dense novel prose keeps more of itself than
// repetitive log spew.
type MDLScorer struct{}

func NewMDLScorer() *MDLScorer {
	return &MDLScorer{}
}

// Entropy is the Shannon entropy of the byte distribution, in bits.
func (m *MDLScorer) Entropy(content string) float64 {
	if content == "" {
		return 0
	}
	var counts [256]int
	for i := 0; i < len(content); i++ {
		counts[content[i]]++
	}
	total := float64(len(content))
	h := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		h -= p * math.Log2(p)
	}
	return h
}

// Redundancy is 1 - unique_words/total_words; 0 for empty content.
func (m *MDLScorer) Redundancy(content string) float64 {
	words := tokenize(content)
	if len(words) == 0 {
		return 0
	}
	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[w] = struct{}{}
	}
	return 1 - float64(len(unique))/float64(len(words))
}

// StructureBonus rewards formatting worth preserving verbatim: code fences,
// bullet and numbered lists, headers. Capped at 1.
func (m *MDLScorer) StructureBonus(content string) float64 {
	bonus := 0.0
	if strings.Contains(content, "```") {
		bonus += 0.3
	}
	var bullets, numbered, headers bool
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* "):
			bullets = true
		case strings.HasPrefix(trimmed, "#"):
			headers = true
		default:
			if len(trimmed) > 2 && trimmed[0] >= '0' && trimmed[0] <= '9' {
				if dot := strings.IndexByte(trimmed, '.'); dot > 0 && dot < 4 {
					numbered = true
				}
			}
		}
	}
	if bullets {
		bonus += 0.2
	}
	if numbered {
		bonus += 0.2
	}
	if headers {
		bonus += 0.3
	}
	if bonus > 1 {
		bonus = 1
	}
	return bonus
}

// TargetRatio converts the proxies into a retained-fraction in [0.2, 0.8].
// Higher entropy pushes the ratio up (keep more), higher redundancy pushes
// it down, structure nudges it up.
func (m *MDLScorer) TargetRatio(content string) float64 {
	h := m.Entropy(content)
	r := m.Redundancy(content)
	s := m.StructureBonus(content)

	ratio := 0.3 + (h-3.5)*0.05 - (r-0.5)*0.1 + s*0.1
	if ratio < 0.2 {
		ratio = 0.2
	}
	if ratio > 0.8 {
		ratio = 0.8
	}
	return ratio
}
