package driver

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mindscape-ai/mindscape/domain"
)

type memoryEntry struct {
	value []byte
	meta  domain.WriteMeta
}

// Memory is an in-process driver with the full optional capability set.
// It backs the service tests and works as a single-process deployment.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	sets    map[string]map[string]struct{}
	queues  map[string][]string
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		sets:    make(map[string]map[string]struct{}),
		queues:  make(map[string][]string),
	}
}

func (m *Memory) Write(ctx context.Context, key string, value []byte, meta domain.WriteMeta) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCancelled, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.entries[key]; ok && existing.meta.Immutable {
		return fmt.Errorf("%w: %s", domain.ErrImmutable, key)
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	m.entries[key] = memoryEntry{value: cp, meta: meta}
	return nil
}

func (m *Memory) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCancelled, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}
	cp := make([]byte, len(e.value))
	copy(cp, e.value)
	return cp, nil
}

func (m *Memory) Query(ctx context.Context, q domain.QuerySpec) ([]domain.KeyValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCancelled, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0)
	for k, e := range m.entries {
		if !MatchPattern(q.Pattern, k) {
			continue
		}
		if q.From > 0 && e.meta.Timestamp < q.From {
			continue
		}
		if q.To > 0 && e.meta.Timestamp > q.To {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if q.Limit > 0 && len(keys) > q.Limit {
		keys = keys[:q.Limit]
	}

	out := make([]domain.KeyValue, 0, len(keys))
	for _, k := range keys {
		v := m.entries[k].value
		cp := make([]byte, len(v))
		copy(cp, v)
		out = append(out, domain.KeyValue{Key: k, Value: cp})
	}
	return out, nil
}

func (m *Memory) Count(ctx context.Context, pattern string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrCancelled, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for k := range m.entries {
		if MatchPattern(pattern, k) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[key]
	return ok, nil
}

func (m *Memory) GetMetadata(ctx context.Context, key string) (domain.WriteMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return domain.WriteMeta{}, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}
	return e.meta, nil
}

func (m *Memory) WriteMulti(ctx context.Context, items []domain.Item) error {
	for _, it := range items {
		if err := m.Write(ctx, it.Key, it.Value, it.Meta); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) ReadMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if e, ok := m.entries[k]; ok {
			cp := make([]byte, len(e.value))
			copy(cp, e.value)
			out[k] = cp
		}
	}
	return out, nil
}

func (m *Memory) AddToSet(ctx context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[key]
	if !ok {
		s = make(map[string]struct{})
		m.sets[key] = s
	}
	s[member] = struct{}{}
	return nil
}

func (m *Memory) RemoveFromSet(ctx context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sets[key]; ok {
		delete(s, member)
	}
	return nil
}

func (m *Memory) GetSetMembers(ctx context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.sets[key]
	members := make([]string, 0, len(s))
	for member := range s {
		members = append(members, member)
	}
	sort.Strings(members)
	return members, nil
}

func (m *Memory) IsSetMember(ctx context.Context, key, member string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sets[key]
	if !ok {
		return false, nil
	}
	_, found := s[member]
	return found, nil
}

func (m *Memory) PushQueue(ctx context.Context, queue, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[queue] = append(m.queues[queue], id)
	return nil
}

func (m *Memory) PopQueue(ctx context.Context, queue string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queues[queue]
	if len(q) == 0 {
		return "", fmt.Errorf("%w: queue %s empty", domain.ErrNotFound, queue)
	}
	id := q[0]
	m.queues[queue] = q[1:]
	return id, nil
}

var (
	_ domain.Driver      = (*Memory)(nil)
	_ domain.BatchDriver = (*Memory)(nil)
	_ domain.SetDriver   = (*Memory)(nil)
	_ domain.QueueDriver = (*Memory)(nil)
)
