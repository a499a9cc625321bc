// Package service contains the memory engine: narrative storage, temporal
// stratification, the epistemic belief graph, the adaptive surprise layer
// and the orchestrator that ties them into one ingestion path and one
// context path.
package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/mindscape-ai/mindscape/domain"
)

// timeNow is swapped in tests that need deterministic clocks.
var timeNow = time.Now

func nowUnix() int64 {
	return timeNow().Unix()
}

func marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	return raw, nil
}

func unmarshal(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal %T: %w", v, err)
	}
	return nil
}

// tokenize lower-cases and splits on any non-alphanumeric rune.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range tokenize(s) {
		set[t] = struct{}{}
	}
	return set
}

// textSimilarity is Jaccard overlap of token sets, the vector-free fallback
// used for novelty, dedup candidates and rerank diversity.
func textSimilarity(a, b string) float64 {
	sa, sb := tokenSet(a), tokenSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	inter := 0
	for t := range sa {
		if _, ok := sb[t]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}

// textContainment is the fraction of query tokens present in content.
func textContainment(query, content string) float64 {
	sq := tokenSet(query)
	if len(sq) == 0 {
		return 0
	}
	sc := tokenSet(content)
	hits := 0
	for t := range sq {
		if _, ok := sc[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(sq))
}

func appendOnce(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func isNotFoundErr(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
