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

func newNarrative(t *testing.T) (*NarrativeService, domain.Driver) {
	t.Helper()
	d := driver.NewMemory()
	logger := zap.NewNop()
	return NewNarrativeService(d, NewTimeIndex(d, logger), logger), d
}

func TestNarrativeStoreAndGet(t *testing.T) {
	n, _ := newNarrative(t)
	ctx := context.Background()

	record, err := n.Store(ctx, "t1", "agent-1", domain.IngestData{
		Type:    "observation",
		Content: "deploy completed without errors",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "t1", record.Tenant)
	assert.Equal(t, "agent-1", record.Agent)

	got, err := n.Get(ctx, "t1", record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.Content, got.Content)
}

func TestNarrativeStoreValidation(t *testing.T) {
	n, _ := newNarrative(t)
	ctx := context.Background()

	cases := []struct {
		name          string
		tenant, agent string
		data          domain.IngestData
	}{
		{"missing tenant", "", "a", domain.IngestData{Content: "x"}},
		{"missing agent", "t", "", domain.IngestData{Content: "x"}},
		{"empty content", "t", "a", domain.IngestData{Content: "   "}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := n.Store(ctx, tc.tenant, tc.agent, tc.data)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestNarrativeRecordsAreImmutable(t *testing.T) {
	n, d := newNarrative(t)
	ctx := context.Background()

	record, err := n.Store(ctx, "t1", "agent-1", domain.IngestData{Content: "original"})
	require.NoError(t, err)

	err = d.Write(ctx, domain.MemoryKey("t1", record.ID), []byte(`{"content":"tampered"}`),
		domain.WriteMeta{Tenant: "t1", Type: "memory"})
	assert.ErrorIs(t, err, domain.ErrImmutable)
}

func TestNarrativeRetrieveFilters(t *testing.T) {
	n, _ := newNarrative(t)
	ctx := context.Background()

	_, err := n.Store(ctx, "t1", "agent-1", domain.IngestData{Type: "observation", Content: "alpha event"})
	require.NoError(t, err)
	_, err = n.Store(ctx, "t1", "agent-2", domain.IngestData{Type: "decision", Content: "beta event"})
	require.NoError(t, err)

	byAgent, err := n.Retrieve(ctx, "t1", domain.MemoryQuery{Agent: "agent-1"})
	require.NoError(t, err)
	require.Len(t, byAgent, 1)
	assert.Equal(t, "alpha event", byAgent[0].Content)

	byType, err := n.Retrieve(ctx, "t1", domain.MemoryQuery{Type: "decision"})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "beta event", byType[0].Content)
}

func TestNarrativeRetrieveTimeRange(t *testing.T) {
	n, _ := newNarrative(t)
	ctx := context.Background()

	// Metadata timestamps override CreatedAt as the effective event time.
	past := int64(1_600_000_000)
	_, err := n.Store(ctx, "t1", "a", domain.IngestData{
		Content:  "old event",
		Metadata: map[string]any{"timestamp": past},
	})
	require.NoError(t, err)
	_, err = n.Store(ctx, "t1", "a", domain.IngestData{Content: "recent event"})
	require.NoError(t, err)

	records, err := n.Retrieve(ctx, "t1", domain.MemoryQuery{From: past - 100, To: past + 100})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "old event", records[0].Content)
}

func TestNarrativeRetrieveTokenBudget(t *testing.T) {
	n, _ := newNarrative(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := n.Store(ctx, "t1", "a", domain.IngestData{
			Content: "twenty-byte payload!", // 5 tokens each
		})
		require.NoError(t, err)
	}

	records, err := n.Retrieve(ctx, "t1", domain.MemoryQuery{MaxTokens: 12})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestNarrativeLineage(t *testing.T) {
	n, _ := newNarrative(t)
	ctx := context.Background()

	root, err := n.Store(ctx, "t1", "a", domain.IngestData{Content: "initial belief about the system"})
	require.NoError(t, err)
	child, err := n.Store(ctx, "t1", "a", domain.IngestData{Content: "revised after new evidence", ParentID: root.ID})
	require.NoError(t, err)
	leaf, err := n.Store(ctx, "t1", "a", domain.IngestData{Content: "final correction", ParentID: child.ID})
	require.NoError(t, err)

	chain, err := n.Lineage(ctx, "t1", leaf.ID)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, leaf.ID, chain[0].ID)
	assert.Equal(t, child.ID, chain[1].ID)
	assert.Equal(t, root.ID, chain[2].ID)
}

func TestNarrativeLineageDanglingParent(t *testing.T) {
	n, _ := newNarrative(t)
	ctx := context.Background()

	orphan, err := n.Store(ctx, "t1", "a", domain.IngestData{Content: "references a purged parent", ParentID: "gone"})
	require.NoError(t, err)

	chain, err := n.Lineage(ctx, "t1", orphan.ID)
	require.NoError(t, err)
	assert.Len(t, chain, 1)
}
