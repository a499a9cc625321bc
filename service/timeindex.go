package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mindscape-ai/mindscape/domain"
	"github.com/mindscape-ai/mindscape/driver"
	"go.uber.org/zap"
)

// TimeIndex maintains day-bucketed secondary indexes so range queries never
// scan a whole namespace. Members encode the timestamp so a bucket can be
// filtered without reading the indexed records.
type TimeIndex struct {
	driver domain.Driver
	logger *zap.Logger
}

// IndexEntry is one indexed record reference.
type IndexEntry struct {
	ID        string
	Timestamp int64
}

func NewTimeIndex(d domain.Driver, logger *zap.Logger) *TimeIndex {
	return &TimeIndex{driver: d, logger: logger}
}

// Zero-padded so lexicographic member order matches chronological order.
func indexMember(ts int64, id string) string {
	return fmt.Sprintf("%012d|%s", ts, id)
}

func parseIndexMember(member string) (IndexEntry, bool) {
	i := strings.IndexByte(member, '|')
	if i <= 0 || i == len(member)-1 {
		return IndexEntry{}, false
	}
	ts, err := strconv.ParseInt(member[:i], 10, 64)
	if err != nil {
		return IndexEntry{}, false
	}
	return IndexEntry{ID: member[i+1:], Timestamp: ts}, true
}

// Add indexes an id under its day bucket. Re-adding the same entry is a
// no-op, so ingest retries stay idempotent.
func (t *TimeIndex) Add(ctx context.Context, tenant, scope, id string, ts int64) error {
	key := domain.TimeIndexKey(tenant, scope, domain.DayBucket(ts))
	meta := domain.WriteMeta{Tenant: tenant, Type: "timeindex", Timestamp: ts}
	if err := driver.AddToSet(ctx, t.driver, key, indexMember(ts, id), meta); err != nil {
		return fmt.Errorf("index %s/%s: %w", scope, id, err)
	}
	return nil
}

// Remove drops an entry, used when a memory is forgotten.
func (t *TimeIndex) Remove(ctx context.Context, tenant, scope, id string, ts int64) error {
	key := domain.TimeIndexKey(tenant, scope, domain.DayBucket(ts))
	meta := domain.WriteMeta{Tenant: tenant, Type: "timeindex"}
	return driver.RemoveFromSet(ctx, t.driver, key, indexMember(ts, id), meta)
}

// Query returns entries with from <= ts <= to, ascending. Zero bounds are
// rejected to keep unbounded scans out of the index path.
func (t *TimeIndex) Query(ctx context.Context, tenant, scope string, from, to int64) ([]IndexEntry, error) {
	if from <= 0 || to <= 0 || to < from {
		return nil, fmt.Errorf("%w: time index query requires a bounded range", domain.ErrInvalidInput)
	}

	var out []IndexEntry
	for bucket := domain.DayBucket(from); bucket <= domain.DayBucket(to); bucket++ {
		key := domain.TimeIndexKey(tenant, scope, bucket)
		members, err := driver.GetSetMembers(ctx, t.driver, key)
		if err != nil {
			return nil, fmt.Errorf("read index bucket %d: %w", bucket, err)
		}
		for _, m := range members {
			entry, ok := parseIndexMember(m)
			if !ok {
				t.logger.Warn("skipping malformed index member",
					zap.String("tenant", tenant), zap.String("member", m))
				continue
			}
			if entry.Timestamp >= from && entry.Timestamp <= to {
				out = append(out, entry)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
