package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/mindscape-ai/mindscape/domain"
	"go.uber.org/zap"
)

// minExplicitCompressionLevel is the floor applied when a caller compresses
// a memory without naming a level.
const minExplicitCompressionLevel = 2

// HierarchicalSummary groups memories by surprise-derived compression level
// and carries one summary per populated level.
type HierarchicalSummary struct {
	ByLevel map[int][]LevelEntry `json:"by_level"`
	Stats   CompressionStats     `json:"stats"`
}

// LevelEntry is one memory's contribution at its level: level 0 keeps the
// original content, deeper levels carry compressed text.
type LevelEntry struct {
	MemoryID string `json:"memory_id"`
	Content  string `json:"content"`
}

// CompressionStats summarises a compression pass.
type CompressionStats struct {
	CountsByLevel    map[int]int `json:"counts_by_level"`
	OriginalTokens   int         `json:"original_tokens"`
	CompressedTokens int         `json:"compressed_tokens"`
	AIFallbacks      int         `json:"ai_fallbacks"`
}

// CompressorService applies surprise-weighted hierarchical compression:
// high-surprise memories stay verbatim, low-surprise memories shrink
// aggressively. Originals are never touched; compression only annotates the
// adaptive projection.
type CompressorService struct {
	driver     domain.Driver
	summarizer *SummarizerService
	adaptive   *AdaptiveStore
	logger     *zap.Logger
}

func NewCompressorService(d domain.Driver, summarizer *SummarizerService, adaptive *AdaptiveStore, logger *zap.Logger) *CompressorService {
	return &CompressorService{driver: d, summarizer: summarizer, adaptive: adaptive, logger: logger}
}

// BuildHierarchy groups records by their surprise-derived level and
// produces per-level content: level 0 verbatim, deeper levels summarised
// toward their target fraction.
func (c *CompressorService) BuildHierarchy(ctx context.Context, records []domain.MemoryRecord, surpriseByID map[string]float64) (*HierarchicalSummary, error) {
	out := &HierarchicalSummary{
		ByLevel: make(map[int][]LevelEntry),
		Stats:   CompressionStats{CountsByLevel: make(map[int]int)},
	}

	grouped := make(map[int][]domain.MemoryRecord)
	for _, r := range records {
		level := domain.CompressionLevelForSurprise(surpriseByID[r.ID])
		grouped[level] = append(grouped[level], r)
	}

	levels := make([]int, 0, len(grouped))
	for level := range grouped {
		levels = append(levels, level)
	}
	sort.Ints(levels)

	for _, level := range levels {
		group := grouped[level]
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
		out.Stats.CountsByLevel[level] = len(group)

		for _, r := range group {
			out.Stats.OriginalTokens += domain.EstimateRecordTokens(&r)
			entry := LevelEntry{MemoryID: r.ID}
			if level == 0 {
				entry.Content = r.Content
			} else {
				text, fellBack, err := c.compressContent(ctx, r.Content, level)
				if err != nil {
					return nil, err
				}
				if fellBack {
					out.Stats.AIFallbacks++
				}
				entry.Content = text
			}
			out.Stats.CompressedTokens += domain.EstimateTokens(entry.Content)
			out.ByLevel[level] = append(out.ByLevel[level], entry)
		}
	}
	return out, nil
}

func (c *CompressorService) compressContent(ctx context.Context, content string, level int) (string, bool, error) {
	target := domain.CompressionTargets[4]
	if level >= 0 && level < len(domain.CompressionTargets) {
		target = domain.CompressionTargets[level]
	}
	if target >= 1 {
		return content, false, nil
	}
	res := c.summarizer.summarize(ctx, content, target, level, false, "")
	return res.text, res.aiFallback, nil
}

// Compress applies imperative compression to one adaptive memory. A level
// below 1 means "derive from the stored surprise, but at least level 2".
// The narrative original is immutable and untouched; only the adaptive
// projection gains a compressed payload.
func (c *CompressorService) Compress(ctx context.Context, tenant, adaptiveID string, level int) (*domain.AdaptiveMemory, error) {
	mem, err := c.adaptive.Get(ctx, tenant, adaptiveID)
	if err != nil {
		return nil, err
	}

	if level < 1 {
		level = domain.CompressionLevelForSurprise(mem.SurpriseScore)
		if level < minExplicitCompressionLevel {
			level = minExplicitCompressionLevel
		}
	}
	if level > 4 {
		level = 4
	}
	if level <= mem.CompressionLevel {
		// Already at or past this depth; compression never inflates.
		return mem, nil
	}

	raw, err := c.driver.Read(ctx, domain.MemoryKey(tenant, mem.CoreMemoryID))
	if err != nil {
		return nil, fmt.Errorf("read core memory %s: %w", mem.CoreMemoryID, err)
	}
	var core domain.MemoryRecord
	if err := unmarshal(raw, &core); err != nil {
		return nil, err
	}

	text, fellBack, err := c.compressContent(ctx, core.Content, level)
	if err != nil {
		return nil, err
	}
	if fellBack {
		c.logger.Debug("imperative compression used truncation fallback",
			zap.String("tenant", tenant), zap.String("adaptive_id", adaptiveID))
	}

	mem.CompressionLevel = level
	mem.CompressedPayload = text
	mem.UpdatedAt = nowUnix()
	if err := c.adaptive.Put(ctx, mem); err != nil {
		return nil, err
	}
	return mem, nil
}
