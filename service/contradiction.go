package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/mindscape-ai/mindscape/domain"
	"go.uber.org/zap"
)

// Detection sources recorded on the contradiction type.
const (
	contradictionSourceAI        = "ai"
	contradictionSourceHeuristic = "heuristic"
)

// negationCues drive the deterministic fallback: two overlapping claims
// where exactly one carries a cue are treated as contradictory.
var negationCues = map[string]struct{}{
	"not": {}, "never": {}, "no": {}, "false": {}, "incorrect": {},
}

// ContradictionService detects and indexes tensions between beliefs.
// Detection prefers the AI provider and falls back to the negation-cue
// heuristic; indexing is deterministic and idempotent; nothing here ever
// resolves a contradiction on its own.
type ContradictionService struct {
	driver   domain.Driver
	provider domain.AIProvider
	logger   *zap.Logger
}

func NewContradictionService(d domain.Driver, provider domain.AIProvider, logger *zap.Logger) *ContradictionService {
	return &ContradictionService{driver: d, provider: provider, logger: logger}
}

func hasNegationCue(text string) bool {
	for _, tok := range tokenize(text) {
		if _, ok := negationCues[tok]; ok {
			return true
		}
	}
	return false
}

// heuristicContradiction: contradictory iff exactly one side is negated.
// Callers only compare claims that already overlap enough to be about the
// same thing.
func heuristicContradiction(a, b string) bool {
	return hasNegationCue(a) != hasNegationCue(b)
}

// AreContradictory decides whether two claims conflict. The returned source
// reports which path decided, so callers can flag degraded AI results.
func (s *ContradictionService) AreContradictory(ctx context.Context, a, b string) (contradictory bool, source string) {
	verdict, err := s.provider.DetectContradiction(ctx, a, b)
	if err == nil && verdict != nil {
		return *verdict, contradictionSourceAI
	}
	if err != nil {
		s.logger.Debug("contradiction detection fell back to heuristic", zap.Error(err))
	}
	return heuristicContradiction(a, b), contradictionSourceHeuristic
}

// Index records a contradiction between two beliefs. The id is derived from
// the sorted pair, so re-indexing the same pair in either order returns the
// existing record unchanged.
func (s *ContradictionService) Index(ctx context.Context, tenant, beliefA, beliefB, ctype string) (*domain.Contradiction, error) {
	if beliefA == "" || beliefB == "" || beliefA == beliefB {
		return nil, fmt.Errorf("%w: contradiction requires two distinct beliefs", domain.ErrInvalidInput)
	}

	cid := domain.ContradictionID(beliefA, beliefB)
	key := domain.ContradictionKey(tenant, cid)

	raw, err := s.driver.Read(ctx, key)
	if err == nil {
		var existing domain.Contradiction
		if err := unmarshal(raw, &existing); err != nil {
			return nil, err
		}
		return &existing, nil
	}

	a, b := beliefA, beliefB
	if b < a {
		a, b = b, a
	}
	record := &domain.Contradiction{
		ID:           cid,
		BeliefA:      a,
		BeliefB:      b,
		Type:         ctype,
		DiscoveredAt: nowUnix(),
	}
	out, err := marshal(record)
	if err != nil {
		return nil, err
	}
	meta := domain.WriteMeta{Tenant: tenant, Type: "contradiction", Timestamp: record.DiscoveredAt}
	if err := s.driver.Write(ctx, key, out, meta); err != nil {
		return nil, fmt.Errorf("index contradiction: %w", err)
	}
	return record, nil
}

// Resolve marks a contradiction resolved. This is the only path that flips
// the flag; state transitions and new evidence never do it implicitly.
func (s *ContradictionService) Resolve(ctx context.Context, tenant, cid string) (*domain.Contradiction, error) {
	key := domain.ContradictionKey(tenant, cid)
	raw, err := s.driver.Read(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read contradiction %s: %w", cid, err)
	}
	var record domain.Contradiction
	if err := unmarshal(raw, &record); err != nil {
		return nil, err
	}
	if record.Resolved {
		return &record, nil
	}
	record.Resolved = true
	out, err := marshal(&record)
	if err != nil {
		return nil, err
	}
	meta := domain.WriteMeta{Tenant: tenant, Type: "contradiction"}
	if err := s.driver.Write(ctx, key, out, meta); err != nil {
		return nil, fmt.Errorf("resolve contradiction: %w", err)
	}
	return &record, nil
}

// List returns a tenant's contradictions, unresolved-first then by id.
func (s *ContradictionService) List(ctx context.Context, tenant string) ([]domain.Contradiction, error) {
	results, err := s.driver.Query(ctx, domain.QuerySpec{Pattern: domain.ContradictionPattern(tenant)})
	if err != nil {
		return nil, fmt.Errorf("query contradictions: %w", err)
	}
	records := make([]domain.Contradiction, 0, len(results))
	for _, kv := range results {
		var c domain.Contradiction
		if err := unmarshal(kv.Value, &c); err != nil {
			s.logger.Warn("skipping undecodable contradiction", zap.String("key", kv.Key), zap.Error(err))
			continue
		}
		records = append(records, c)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Resolved != records[j].Resolved {
			return !records[i].Resolved
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

// Active returns only unresolved contradictions.
func (s *ContradictionService) Active(ctx context.Context, tenant string) ([]domain.Contradiction, error) {
	all, err := s.List(ctx, tenant)
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, c := range all {
		if !c.Resolved {
			active = append(active, c)
		}
	}
	return active, nil
}
