package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mindscape-ai/mindscape/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Chunk sizes per summarization level, in memories per chunk.
const (
	chunkSizeL1 = 15
	chunkSizeL2 = 75
	chunkSizeL3 = 300
)

// LayerSummary is the stored rollup of a layer's memories.
type LayerSummary struct {
	Tenant     string       `json:"tenant"`
	Layer      domain.Layer `json:"layer"`
	Level      int          `json:"level"`
	Content    string       `json:"content"`
	MemberIDs  []string     `json:"member_ids"`
	AIFallback bool         `json:"ai_fallback,omitempty"`
	CreatedAt  int64        `json:"created_at"`
}

// SummarizerService turns batches of memories into compressed summaries.
// Identical in-flight requests collapse through singleflight, completed
// results are cached by member-set hash, and provider failures degrade to a
// deterministic truncation so summarization never hard-fails.
type SummarizerService struct {
	driver   domain.Driver
	provider domain.AIProvider
	mdl      *MDLScorer
	logger   *zap.Logger

	group singleflight.Group
	cache sync.Map // cache key -> summary text
}

func NewSummarizerService(d domain.Driver, provider domain.AIProvider, mdl *MDLScorer, logger *zap.Logger) *SummarizerService {
	return &SummarizerService{driver: d, provider: provider, mdl: mdl, logger: logger}
}

// ChunkSize returns how many memories one summarization call covers at a
// level. Levels above 3 reuse the widest chunk.
func ChunkSize(level int) int {
	switch {
	case level <= 1:
		return chunkSizeL1
	case level == 2:
		return chunkSizeL2
	default:
		return chunkSizeL3
	}
}

// summaryCacheKey hashes the sorted member ids plus level, so the same set
// of memories summarised twice reuses the first result regardless of order.
func summaryCacheKey(ids []string, level int) string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)
	h := sha256.New()
	fmt.Fprintf(h, "L%d|", level)
	for _, id := range sorted {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

type summarizeResult struct {
	text       string
	aiFallback bool
}

// Summarize compresses content to the ratio, preferring the provider and
// falling back to deterministic truncation.
func (s *SummarizerService) summarize(ctx context.Context, content string, ratio float64, level int, delta bool, previous string) summarizeResult {
	out, err := s.provider.Summarize(ctx, content, domain.SummarizeOptions{
		Level:                  level,
		TargetCompression:      ratio,
		DeltaMode:              delta,
		PreviousSummary:        previous,
		PreserveContradictions: true,
		PreserveDecisions:      true,
	})
	if err == nil && out != "" {
		return summarizeResult{text: out}
	}
	if err != nil {
		s.logger.Warn("summarization fell back to truncation",
			zap.Int("level", level), zap.Error(err))
	}
	return summarizeResult{text: truncateToRatio(content, ratio), aiFallback: true}
}

// truncateToRatio keeps the leading fraction of the content, cut at a word
// boundary where possible.
func truncateToRatio(content string, ratio float64) string {
	if ratio <= 0 || ratio >= 1 {
		return content
	}
	limit := int(float64(len(content)) * ratio)
	if limit >= len(content) {
		return content
	}
	if limit < 1 {
		limit = 1
	}
	cut := content[:limit]
	if idx := strings.LastIndexByte(cut, ' '); idx > limit/2 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut)
}

// SummarizeChunk compresses one ordered chunk of memories, collapsing
// duplicate concurrent requests and reusing cached results for the same
// member set.
func (s *SummarizerService) SummarizeChunk(ctx context.Context, records []domain.MemoryRecord, level int) (string, bool, error) {
	if len(records) == 0 {
		return "", false, nil
	}

	ids := make([]string, len(records))
	var joined strings.Builder
	for i, r := range records {
		ids[i] = r.ID
		if i > 0 {
			joined.WriteString("\n\n")
		}
		joined.WriteString(r.Content)
	}
	content := joined.String()
	key := summaryCacheKey(ids, level)

	if cached, ok := s.cache.Load(key); ok {
		return cached.(string), false, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		if cached, ok := s.cache.Load(key); ok {
			return summarizeResult{text: cached.(string)}, nil
		}
		ratio := s.mdl.TargetRatio(content)
		res := s.summarize(ctx, content, ratio, level, false, "")
		if !res.aiFallback {
			s.cache.Store(key, res.text)
		}
		return res, nil
	})
	if err != nil {
		return "", false, err
	}
	res := v.(summarizeResult)
	return res.text, res.aiFallback, nil
}

// SummarizeLayer rolls up a layer's memories into a stored LayerSummary at
// the given level. Records are chunked in chronological order; chunk
// summaries are concatenated.
func (s *SummarizerService) SummarizeLayer(ctx context.Context, tenant string, layer domain.Layer, records []domain.MemoryRecord, level int) (*LayerSummary, error) {
	if level < 1 {
		level = 1
	}
	sorted := make([]domain.MemoryRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		ti, tj := sorted[i].Timestamp(), sorted[j].Timestamp()
		if ti != tj {
			return ti < tj
		}
		return sorted[i].ID < sorted[j].ID
	})

	size := ChunkSize(level)
	var parts []string
	var memberIDs []string
	anyFallback := false
	for start := 0; start < len(sorted); start += size {
		end := start + size
		if end > len(sorted) {
			end = len(sorted)
		}
		chunk := sorted[start:end]
		text, fellBack, err := s.SummarizeChunk(ctx, chunk, level)
		if err != nil {
			return nil, err
		}
		anyFallback = anyFallback || fellBack
		if text != "" {
			parts = append(parts, text)
		}
		for _, r := range chunk {
			memberIDs = append(memberIDs, r.ID)
		}
	}

	summary := &LayerSummary{
		Tenant:     tenant,
		Layer:      layer,
		Level:      level,
		Content:    strings.Join(parts, "\n\n"),
		MemberIDs:  memberIDs,
		AIFallback: anyFallback,
		CreatedAt:  nowUnix(),
	}
	if err := s.storeSummary(ctx, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// SummarizeLayerDelta folds new memories into an existing layer summary
// instead of re-reading the whole layer.
func (s *SummarizerService) SummarizeLayerDelta(ctx context.Context, tenant string, layer domain.Layer, fresh []domain.MemoryRecord) (*LayerSummary, error) {
	previous, err := s.LayerSummary(ctx, tenant, layer)
	if err != nil || previous == nil || previous.Content == "" {
		return s.SummarizeLayer(ctx, tenant, layer, fresh, 1)
	}

	var joined strings.Builder
	memberIDs := append([]string(nil), previous.MemberIDs...)
	for i, r := range fresh {
		if i > 0 {
			joined.WriteString("\n\n")
		}
		joined.WriteString(r.Content)
		memberIDs = append(memberIDs, r.ID)
	}

	ratio := s.mdl.TargetRatio(joined.String())
	res := s.summarize(ctx, joined.String(), ratio, previous.Level, true, previous.Content)

	summary := &LayerSummary{
		Tenant:     tenant,
		Layer:      layer,
		Level:      previous.Level,
		Content:    res.text,
		MemberIDs:  memberIDs,
		AIFallback: res.aiFallback,
		CreatedAt:  nowUnix(),
	}
	if err := s.storeSummary(ctx, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// LayerSummary loads the latest stored summary for a layer; nil when none
// exists yet.
func (s *SummarizerService) LayerSummary(ctx context.Context, tenant string, layer domain.Layer) (*LayerSummary, error) {
	raw, err := s.driver.Read(ctx, domain.SummaryKey(tenant, layer))
	if err != nil {
		if isNotFoundErr(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read layer summary: %w", err)
	}
	var summary LayerSummary
	if err := unmarshal(raw, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *SummarizerService) storeSummary(ctx context.Context, summary *LayerSummary) error {
	raw, err := marshal(summary)
	if err != nil {
		return err
	}
	meta := domain.WriteMeta{Tenant: summary.Tenant, Type: "summary", Timestamp: summary.CreatedAt}
	if err := s.driver.Write(ctx, domain.SummaryKey(summary.Tenant, summary.Layer), raw, meta); err != nil {
		return fmt.Errorf("store layer summary: %w", err)
	}
	return nil
}
