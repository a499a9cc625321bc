package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/mindscape-ai/mindscape/domain"
	"github.com/mindscape-ai/mindscape/driver"
	"go.uber.org/zap"
)

// memoryIndexScope is the scope all narrative records index under; agent and
// type filters apply after the range lookup.
const memoryIndexScope = "memory"

// maxLineageDepth caps parent-chain walks so a cycle in metadata cannot
// spin a request forever.
const maxLineageDepth = 100

// NarrativeService owns the append-only narrative store. Records never
// change after write; corrections arrive as new records pointing back
// through ParentID.
type NarrativeService struct {
	driver    domain.Driver
	timeIndex *TimeIndex
	logger    *zap.Logger
}

func NewNarrativeService(d domain.Driver, idx *TimeIndex, logger *zap.Logger) *NarrativeService {
	return &NarrativeService{driver: d, timeIndex: idx, logger: logger}
}

// Store validates and persists one narrative record, then indexes it by its
// effective timestamp.
func (n *NarrativeService) Store(ctx context.Context, tenant, agent string, data domain.IngestData) (*domain.MemoryRecord, error) {
	if tenant == "" {
		return nil, fmt.Errorf("%w: tenant is required", domain.ErrInvalidInput)
	}
	if agent == "" {
		return nil, fmt.Errorf("%w: agent is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(data.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", domain.ErrInvalidInput)
	}

	now := nowUnix()
	record := &domain.MemoryRecord{
		ID:        uuid.NewString(),
		Tenant:    tenant,
		Agent:     agent,
		Type:      data.Type,
		Content:   data.Content,
		Metadata:  data.Metadata,
		ParentID:  data.ParentID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	raw, err := marshal(record)
	if err != nil {
		return nil, err
	}

	meta := domain.WriteMeta{Tenant: tenant, Type: "memory", Immutable: true, Timestamp: record.Timestamp()}
	if err := n.driver.Write(ctx, domain.MemoryKey(tenant, record.ID), raw, meta); err != nil {
		return nil, fmt.Errorf("store memory: %w", err)
	}

	if err := n.timeIndex.Add(ctx, tenant, memoryIndexScope, record.ID, record.Timestamp()); err != nil {
		// The record is durable; a missing index entry only degrades range
		// queries, so log and move on.
		n.logger.Warn("time index update failed",
			zap.String("tenant", tenant),
			zap.String("memory_id", record.ID),
			zap.Error(err))
	}

	return record, nil
}

// Get loads one record by id.
func (n *NarrativeService) Get(ctx context.Context, tenant, id string) (*domain.MemoryRecord, error) {
	raw, err := n.driver.Read(ctx, domain.MemoryKey(tenant, id))
	if err != nil {
		return nil, fmt.Errorf("read memory %s: %w", id, err)
	}
	var record domain.MemoryRecord
	if err := unmarshal(raw, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// GetMulti loads records by id, skipping ids that no longer resolve.
func (n *NarrativeService) GetMulti(ctx context.Context, tenant string, ids []string) ([]domain.MemoryRecord, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = domain.MemoryKey(tenant, id)
	}
	values, err := driver.ReadMulti(ctx, n.driver, keys)
	if err != nil {
		return nil, fmt.Errorf("read memories: %w", err)
	}

	records := make([]domain.MemoryRecord, 0, len(values))
	for _, key := range keys {
		raw, ok := values[key]
		if !ok {
			continue
		}
		var record domain.MemoryRecord
		if err := unmarshal(raw, &record); err != nil {
			n.logger.Warn("skipping undecodable memory", zap.String("key", key), zap.Error(err))
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// Retrieve selects records by the query's filters. Bounded time ranges go
// through the day-bucket index; unbounded queries scan the namespace.
// Results are ascending by effective timestamp.
func (n *NarrativeService) Retrieve(ctx context.Context, tenant string, q domain.MemoryQuery) ([]domain.MemoryRecord, error) {
	if tenant == "" {
		return nil, fmt.Errorf("%w: tenant is required", domain.ErrInvalidInput)
	}

	var records []domain.MemoryRecord
	if q.From > 0 && q.To > 0 {
		entries, err := n.timeIndex.Query(ctx, tenant, memoryIndexScope, q.From, q.To)
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}
		records, err = n.GetMulti(ctx, tenant, ids)
		if err != nil {
			return nil, err
		}
	} else {
		results, err := n.driver.Query(ctx, domain.QuerySpec{Pattern: domain.MemoryPattern(tenant)})
		if err != nil {
			return nil, fmt.Errorf("query memories: %w", err)
		}
		for _, kv := range results {
			var record domain.MemoryRecord
			if err := unmarshal(kv.Value, &record); err != nil {
				n.logger.Warn("skipping undecodable memory", zap.String("key", kv.Key), zap.Error(err))
				continue
			}
			ts := record.Timestamp()
			if q.From > 0 && ts < q.From {
				continue
			}
			if q.To > 0 && ts > q.To {
				continue
			}
			records = append(records, record)
		}
	}

	filtered := records[:0]
	for _, r := range records {
		if q.Agent != "" && r.Agent != q.Agent {
			continue
		}
		if q.Type != "" && r.Type != q.Type {
			continue
		}
		filtered = append(filtered, r)
	}
	records = filtered

	sort.Slice(records, func(i, j int) bool {
		ti, tj := records[i].Timestamp(), records[j].Timestamp()
		if ti != tj {
			return ti < tj
		}
		return records[i].ID < records[j].ID
	})

	if q.Limit > 0 && len(records) > q.Limit {
		records = records[:q.Limit]
	}
	if q.MaxTokens > 0 {
		budget := q.MaxTokens
		kept := records[:0]
		for _, r := range records {
			cost := domain.EstimateRecordTokens(&r)
			if cost > budget {
				break
			}
			budget -= cost
			kept = append(kept, r)
		}
		records = kept
	}
	return records, nil
}

// Lineage walks the ParentID chain from a record to its root, returning the
// record first and oldest ancestor last.
func (n *NarrativeService) Lineage(ctx context.Context, tenant, id string) ([]domain.MemoryRecord, error) {
	seen := make(map[string]struct{})
	var chain []domain.MemoryRecord

	current := id
	for depth := 0; current != "" && depth < maxLineageDepth; depth++ {
		if _, dup := seen[current]; dup {
			n.logger.Warn("lineage cycle detected", zap.String("tenant", tenant), zap.String("memory_id", current))
			break
		}
		seen[current] = struct{}{}

		record, err := n.Get(ctx, tenant, current)
		if err != nil {
			if len(chain) > 0 {
				// A dangling parent pointer truncates the chain, it does not
				// fail the lookup.
				break
			}
			return nil, err
		}
		chain = append(chain, *record)
		current = record.ParentID
	}
	return chain, nil
}
