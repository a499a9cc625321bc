package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/mindscape-ai/mindscape/domain"
	"go.uber.org/zap"
)

// AdaptiveStore persists the surprise-annotated projections under
// adaptive_memory:{tenant}:{id}. Projections are mutable: usage counts,
// layer moves and compression all update in place while the narrative
// original stays frozen.
type AdaptiveStore struct {
	driver domain.Driver
	logger *zap.Logger
}

func NewAdaptiveStore(d domain.Driver, logger *zap.Logger) *AdaptiveStore {
	return &AdaptiveStore{driver: d, logger: logger}
}

func (s *AdaptiveStore) Get(ctx context.Context, tenant, id string) (*domain.AdaptiveMemory, error) {
	raw, err := s.driver.Read(ctx, domain.AdaptiveKey(tenant, id))
	if err != nil {
		return nil, fmt.Errorf("read adaptive memory %s: %w", id, err)
	}
	var mem domain.AdaptiveMemory
	if err := unmarshal(raw, &mem); err != nil {
		return nil, err
	}
	return &mem, nil
}

func (s *AdaptiveStore) Put(ctx context.Context, mem *domain.AdaptiveMemory) error {
	raw, err := marshal(mem)
	if err != nil {
		return err
	}
	meta := domain.WriteMeta{Tenant: mem.Tenant, Type: "adaptive_memory", Timestamp: mem.UpdatedAt}
	if err := s.driver.Write(ctx, domain.AdaptiveKey(mem.Tenant, mem.ID), raw, meta); err != nil {
		return fmt.Errorf("write adaptive memory %s: %w", mem.ID, err)
	}
	return nil
}

// List returns a tenant's projections ordered by id, optionally filtered by
// agent. Suppressed entries are included; callers filter where it matters.
func (s *AdaptiveStore) List(ctx context.Context, tenant, agent string) ([]domain.AdaptiveMemory, error) {
	results, err := s.driver.Query(ctx, domain.QuerySpec{Pattern: domain.AdaptivePattern(tenant)})
	if err != nil {
		return nil, fmt.Errorf("query adaptive memories: %w", err)
	}
	memories := make([]domain.AdaptiveMemory, 0, len(results))
	for _, kv := range results {
		var mem domain.AdaptiveMemory
		if err := unmarshal(kv.Value, &mem); err != nil {
			s.logger.Warn("skipping undecodable adaptive memory", zap.String("key", kv.Key), zap.Error(err))
			continue
		}
		if agent != "" && mem.Agent != agent {
			continue
		}
		memories = append(memories, mem)
	}
	sort.Slice(memories, func(i, j int) bool { return memories[i].ID < memories[j].ID })
	return memories, nil
}

// FindByCoreID resolves the projection pointing at a narrative record.
func (s *AdaptiveStore) FindByCoreID(ctx context.Context, tenant, coreID string) (*domain.AdaptiveMemory, error) {
	all, err := s.List(ctx, tenant, "")
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].CoreMemoryID == coreID {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no adaptive memory for core %s", domain.ErrNotFound, coreID)
}
