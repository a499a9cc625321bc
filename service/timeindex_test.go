package service

import (
	"context"
	"testing"

	"github.com/mindscape-ai/mindscape/domain"
	"github.com/mindscape-ai/mindscape/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTimeIndexAddAndQuery(t *testing.T) {
	idx := NewTimeIndex(driver.NewMemory(), zap.NewNop())
	ctx := context.Background()

	base := int64(1_700_000_000)
	require.NoError(t, idx.Add(ctx, "t1", "memory", "a", base))
	require.NoError(t, idx.Add(ctx, "t1", "memory", "b", base+10))
	// Next day bucket.
	require.NoError(t, idx.Add(ctx, "t1", "memory", "c", base+90_000))

	entries, err := idx.Query(ctx, "t1", "memory", base, base+100_000)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "a", entries[0].ID)
	assert.Equal(t, "b", entries[1].ID)
	assert.Equal(t, "c", entries[2].ID)

	// Narrow range excludes the next-day entry.
	entries, err = idx.Query(ctx, "t1", "memory", base, base+60)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestTimeIndexIdempotentAdd(t *testing.T) {
	idx := NewTimeIndex(driver.NewMemory(), zap.NewNop())
	ctx := context.Background()

	base := int64(1_700_000_000)
	require.NoError(t, idx.Add(ctx, "t1", "memory", "a", base))
	require.NoError(t, idx.Add(ctx, "t1", "memory", "a", base))

	entries, err := idx.Query(ctx, "t1", "memory", base-1, base+1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTimeIndexRemove(t *testing.T) {
	idx := NewTimeIndex(driver.NewMemory(), zap.NewNop())
	ctx := context.Background()

	base := int64(1_700_000_000)
	require.NoError(t, idx.Add(ctx, "t1", "memory", "a", base))
	require.NoError(t, idx.Remove(ctx, "t1", "memory", "a", base))

	entries, err := idx.Query(ctx, "t1", "memory", base-1, base+1)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTimeIndexRejectsUnboundedRange(t *testing.T) {
	idx := NewTimeIndex(driver.NewMemory(), zap.NewNop())

	_, err := idx.Query(context.Background(), "t1", "memory", 0, 100)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestParseIndexMember(t *testing.T) {
	entry, ok := parseIndexMember(indexMember(1_700_000_000, "mem-1"))
	require.True(t, ok)
	assert.Equal(t, "mem-1", entry.ID)
	assert.Equal(t, int64(1_700_000_000), entry.Timestamp)

	for _, malformed := range []string{"", "|", "123|", "|abc", "notanumber|id"} {
		_, ok := parseIndexMember(malformed)
		assert.False(t, ok, "member %q", malformed)
	}
}

func TestTimeIndexTenantIsolation(t *testing.T) {
	idx := NewTimeIndex(driver.NewMemory(), zap.NewNop())
	ctx := context.Background()

	base := int64(1_700_000_000)
	require.NoError(t, idx.Add(ctx, "t1", "memory", "a", base))
	require.NoError(t, idx.Add(ctx, "t2", "memory", "b", base))

	entries, err := idx.Query(ctx, "t1", "memory", base-1, base+1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].ID)
}
