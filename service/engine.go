package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/mindscape-ai/mindscape/domain"
	"go.uber.org/zap"
)

// Degraded step flags reported on partial ingest outcomes.
const (
	DegradedBeliefCancelled       = "belief_recording_cancelled"
	DegradedBeliefFailed          = "belief_recording_failed"
	DegradedConfidenceFallback    = "ai_confidence_fallback"
	DegradedContradictionFallback = "ai_contradiction_fallback"
	DegradedSurpriseFailed        = "surprise_scoring_failed"
	DegradedProjectionFailed      = "adaptive_projection_failed"
	DegradedLayerCheckFailed      = "layer_check_failed"
	DegradedAuditFailed           = "audit_failed"
)

const (
	// contradictionCandidateOverlap is the claim similarity required before
	// a belief pair is even tested for contradiction.
	contradictionCandidateOverlap = 0.25
	// highSurpriseFloor and highSurpriseLimit shape the context's
	// high-surprise callout list.
	highSurpriseFloor = 0.7
	highSurpriseLimit = 10
	// contextOverrunTolerance is the slack allowed over the requested
	// budget before assembly is considered broken.
	contextOverrunTolerance = 1.05
)

// StoreResult reports what a single ingest produced. Degraded lists the
// steps that fell back or were skipped; an empty list means the full
// pipeline ran.
type StoreResult struct {
	MemoryID      string                    `json:"memory_id"`
	AdaptiveID    string                    `json:"adaptive_id,omitempty"`
	BeliefIDs     []string                  `json:"belief_ids,omitempty"`
	SurpriseScore float64                   `json:"surprise_score"`
	Components    domain.SurpriseComponents `json:"surprise_components"`
	Layer         domain.Layer              `json:"layer,omitempty"`
	Degraded      []string                  `json:"degraded,omitempty"`
}

// ContextOptions tune context assembly.
type ContextOptions struct {
	MaxTokens    int    `json:"max_tokens"`
	QueryContext string `json:"query_context,omitempty"`
}

// ContextSnapshot is the assembled working context: layered narrative,
// the belief snapshot, unresolved contradictions, advisory retention
// verdicts and the high-surprise callout.
type ContextSnapshot struct {
	Tenant         string                  `json:"tenant"`
	Agent          string                  `json:"agent"`
	Layers         []LayerContext          `json:"layers"`
	Beliefs        []domain.Belief         `json:"beliefs,omitempty"`
	Contradictions []domain.Contradiction  `json:"contradictions,omitempty"`
	HighSurprise   []domain.AdaptiveMemory `json:"high_surprise,omitempty"`
	Retention      *RetentionReport        `json:"retention,omitempty"`
	Compression    CompressionStats        `json:"compression"`
	TokensUsed     int                     `json:"tokens_used"`
	TokenBudget    int                     `json:"token_budget"`
	BuiltAt        int64                   `json:"built_at"`
}

// UsageEvent reports that a memory was consulted and how useful it was.
type UsageEvent struct {
	MemoryID string  `json:"memory_id"`
	Utility  float64 `json:"utility"`
}

// Engine is the embedding-facing facade over the full substrate. One engine
// serves many tenants; every operation is tenant-scoped.
type Engine struct {
	driver        domain.Driver
	provider      domain.AIProvider
	logger        *zap.Logger
	metrics       *Metrics
	timeIndex     *TimeIndex
	narrative     *NarrativeService
	confidence    *ConfidenceService
	epistemic     *EpistemicService
	contradiction *ContradictionService
	surprise      *SurpriseService
	adaptive      *AdaptiveStore
	atlas         *AtlasService
	summarizer    *SummarizerService
	stratifier    *StratifierService
	compressor    *CompressorService
	retention     *RetentionService
	jobs          *JobService
	audit         *AuditEmitter
}

// NewEngine wires the full component graph over one driver and one AI
// provider. A nil sink disables audit; a nil logger falls back to no-op.
func NewEngine(d domain.Driver, provider domain.AIProvider, sink domain.AuditSink, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		driver:   d,
		provider: provider,
		logger:   logger,
		metrics:  NewMetrics(),
	}

	e.audit = NewAuditEmitter(sink, logger)
	e.timeIndex = NewTimeIndex(d, logger)
	e.narrative = NewNarrativeService(d, e.timeIndex, logger)
	e.confidence = NewConfidenceService(d, logger)
	e.epistemic = NewEpistemicService(d, provider, e.confidence, logger)
	e.contradiction = NewContradictionService(d, provider, logger)
	e.surprise = NewSurpriseService(d, e.epistemic, logger)
	e.adaptive = NewAdaptiveStore(d, logger)
	e.atlas = NewAtlasService()
	e.summarizer = NewSummarizerService(d, provider, NewMDLScorer(), logger)
	e.compressor = NewCompressorService(d, e.summarizer, e.adaptive, logger)
	e.retention = NewRetentionService(e.adaptive, e.contradiction, logger)
	e.jobs = NewJobService(d, e.audit, logger)
	e.stratifier = NewStratifierService(d, e.summarizer, e.jobs, logger)

	e.jobs.RegisterHandler(domain.JobSummarization, e.runSummarizationJob)
	e.jobs.RegisterHandler(domain.JobRetentionEvaluation, e.runRetentionJob)
	return e
}

// Start launches background job processing. Optional; embedders that prefer
// synchronous control can call Jobs().RunQueuedNow instead.
func (e *Engine) Start() { e.jobs.Start() }

// Stop drains background workers.
func (e *Engine) Stop() { e.jobs.Stop() }

// Jobs exposes the job service for scheduling and test control.
func (e *Engine) Jobs() *JobService { return e.jobs }

// Metrics exposes the Prometheus collectors.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// StoreMemory is the single ingestion path. The narrative write is the only
// hard failure; every later stage degrades into a recorded flag so the
// caller always learns what did and did not happen.
func (e *Engine) StoreMemory(ctx context.Context, tenant, agent string, data domain.IngestData, sig *domain.SurpriseSignal) (*StoreResult, error) {
	record, err := e.narrative.Store(ctx, tenant, agent, data)
	if err != nil {
		return nil, err
	}
	result := &StoreResult{MemoryID: record.ID}
	e.metrics.IngestTotal.WithLabelValues(tenant).Inc()

	defer func() {
		if len(result.Degraded) > 0 {
			e.metrics.DegradedIngests.Inc()
		}
	}()

	// Belief recording. Cancellation between the narrative write and here
	// leaves a readable memory with no beliefs, by design.
	prov := domain.Provenance{Source: provenanceSource(data), MemoryID: record.ID, Agent: agent}
	var resolved []ResolvedClaim
	for _, claim := range data.Claims {
		if ctx.Err() != nil {
			result.Degraded = append(result.Degraded, DegradedBeliefCancelled)
			e.emitIngestAudit(context.WithoutCancel(ctx), tenant, record.ID, result)
			return result, nil
		}
		belief, fellBack, err := e.epistemic.RecordBelief(ctx, tenant, claim, prov)
		if err != nil {
			if errors.Is(err, domain.ErrCancelled) {
				result.Degraded = append(result.Degraded, DegradedBeliefCancelled)
				e.emitIngestAudit(context.WithoutCancel(ctx), tenant, record.ID, result)
				return result, nil
			}
			result.Degraded = appendOnce(result.Degraded, DegradedBeliefFailed)
			e.logger.Warn("belief recording failed",
				zap.String("tenant", tenant), zap.String("memory_id", record.ID), zap.Error(err))
			continue
		}
		if fellBack {
			result.Degraded = appendOnce(result.Degraded, DegradedConfidenceFallback)
			e.metrics.AIFallbacks.Inc()
		}
		result.BeliefIDs = append(result.BeliefIDs, belief.ID)
		resolved = append(resolved, ResolvedClaim{Text: claim.Text, Confidence: belief.Confidence})
	}

	// Contradiction detection against the active belief graph.
	contradictionFrac, confShift := e.detectContradictions(ctx, tenant, result)

	// Surprise scoring.
	cfg, err := e.TenantConfig(ctx, tenant)
	if err != nil {
		cfg = domain.DefaultTenantConfig()
	}
	score, components, err := e.surprise.Score(ctx, SurpriseInput{
		Tenant:                tenant,
		Agent:                 agent,
		Content:               record.Content,
		Claims:                resolved,
		Provenance:            prov,
		ContradictionFraction: contradictionFrac,
		ConfidenceShift:       confShift,
		Signal:                sig,
	}, cfg.SurpriseWeights)
	if err != nil {
		result.Degraded = append(result.Degraded, DegradedSurpriseFailed)
		e.emitIngestAudit(context.WithoutCancel(ctx), tenant, record.ID, result)
		return result, nil
	}
	result.SurpriseScore = score
	result.Components = components
	e.metrics.SurpriseScores.Observe(score)

	// Adaptive projection.
	layer := domain.LayerForSurprise(score)
	now := nowUnix()
	projection := &domain.AdaptiveMemory{
		ID:                 record.ID,
		Tenant:             tenant,
		Agent:              agent,
		CoreMemoryID:       record.ID,
		BeliefIDs:          result.BeliefIDs,
		SurpriseScore:      score,
		SurpriseComponents: components,
		Layer:              layer,
		Importance: e.atlas.Importance(ImportanceInput{
			Content:      record.Content,
			Surprise:     score,
			HalfLifeDays: cfg.RetentionPolicy.TemporalHalfLifeDays,
		}),
		CompressionLevel: domain.CompressionLevelForSurprise(score),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := e.adaptive.Put(ctx, projection); err != nil {
		result.Degraded = append(result.Degraded, DegradedProjectionFailed)
		e.emitIngestAudit(context.WithoutCancel(ctx), tenant, record.ID, result)
		return result, nil
	}
	result.AdaptiveID = projection.ID
	result.Layer = layer

	// Stratification pressure and possible summarization dispatch.
	if err := e.stratifier.RecordIngest(ctx, tenant, agent, layer); err != nil {
		result.Degraded = append(result.Degraded, DegradedLayerCheckFailed)
		e.logger.Warn("layer pressure update failed",
			zap.String("tenant", tenant), zap.String("memory_id", record.ID), zap.Error(err))
	}

	e.emitIngestAudit(ctx, tenant, record.ID, result)
	return result, nil
}

func provenanceSource(data domain.IngestData) string {
	if data.Metadata != nil {
		if s, ok := data.Metadata["source"].(string); ok && s != "" {
			return s
		}
	}
	if data.Type != "" {
		return data.Type
	}
	return "agent"
}

func (e *Engine) emitIngestAudit(ctx context.Context, tenant, memoryID string, result *StoreResult) {
	ok := e.audit.Emit(ctx, tenant, "memory_stored", "engine", map[string]any{
		"memory_id": memoryID,
		"beliefs":   len(result.BeliefIDs),
		"surprise":  result.SurpriseScore,
		"degraded":  result.Degraded,
	})
	if !ok {
		result.Degraded = appendOnce(result.Degraded, DegradedAuditFailed)
	}
}

// detectContradictions tests each newly recorded belief against overlapping
// active beliefs, indexes findings, and returns the contradicted fraction
// plus the largest confidence shift observed on the contradicted side.
func (e *Engine) detectContradictions(ctx context.Context, tenant string, result *StoreResult) (frac, confShift float64) {
	if len(result.BeliefIDs) == 0 {
		return 0, 0
	}
	active, err := e.epistemic.Active(ctx, tenant)
	if err != nil {
		e.logger.Warn("contradiction scan skipped", zap.String("tenant", tenant), zap.Error(err))
		return 0, 0
	}

	newSet := make(map[string]struct{}, len(result.BeliefIDs))
	for _, id := range result.BeliefIDs {
		newSet[id] = struct{}{}
	}

	contradicted := 0
	for _, newID := range result.BeliefIDs {
		newBelief, err := e.epistemic.Get(ctx, tenant, newID)
		if err != nil {
			continue
		}
		found := false
		for _, existing := range active {
			if _, isNew := newSet[existing.ID]; isNew {
				continue
			}
			if textSimilarity(newBelief.Claim, existing.Claim) < contradictionCandidateOverlap {
				continue
			}
			conflict, source := e.contradiction.AreContradictory(ctx, newBelief.Claim, existing.Claim)
			if source == contradictionSourceHeuristic {
				result.Degraded = appendOnce(result.Degraded, DegradedContradictionFallback)
			}
			if !conflict {
				continue
			}
			found = true
			if _, err := e.contradiction.Index(ctx, tenant, newBelief.ID, existing.ID, "direct"); err != nil {
				e.logger.Warn("contradiction index failed", zap.Error(err))
			}
			// Both sides become contested when the FSM allows it.
			for _, id := range []string{newBelief.ID, existing.ID} {
				if _, err := e.epistemic.Transition(ctx, tenant, id, domain.StateContested, "contradiction detected"); err != nil &&
					!errors.Is(err, domain.ErrInvalidTransition) {
					e.logger.Warn("contested transition failed", zap.String("belief_id", id), zap.Error(err))
				}
			}
			shift := newBelief.Confidence.Mean - existing.Confidence.Mean
			if shift < 0 {
				shift = -shift
			}
			if shift > confShift {
				confShift = shift
			}
		}
		if found {
			contradicted++
		}
	}
	return float64(contradicted) / float64(len(result.BeliefIDs)), confShift
}

// BuildOptimizedContext assembles the layered, reranked, budget-bounded
// working context.
func (e *Engine) BuildOptimizedContext(ctx context.Context, tenant, agent string, opts ContextOptions) (*ContextSnapshot, error) {
	if tenant == "" || agent == "" {
		return nil, fmt.Errorf("%w: tenant and agent are required", domain.ErrInvalidInput)
	}
	if opts.MaxTokens <= 0 {
		return nil, fmt.Errorf("%w: max_tokens must be positive", domain.ErrInvalidInput)
	}

	cfg, err := e.TenantConfig(ctx, tenant)
	if err != nil {
		cfg = domain.DefaultTenantConfig()
	}

	projections, err := e.adaptive.List(ctx, tenant, agent)
	if err != nil {
		return nil, err
	}

	now := nowUnix()
	var coreIDs []string
	visible := projections[:0]
	for _, p := range projections {
		if p.Suppressed {
			continue
		}
		visible = append(visible, p)
		coreIDs = append(coreIDs, p.CoreMemoryID)
	}
	projections = visible

	records, err := e.narrative.GetMulti(ctx, tenant, coreIDs)
	if err != nil {
		return nil, err
	}
	recordByID := make(map[string]domain.MemoryRecord, len(records))
	for _, r := range records {
		recordByID[r.ID] = r
	}

	// Partition by effective (demote-only) layer, compressed payloads
	// standing in for deep-compressed content.
	byLayer := make(map[domain.Layer][]domain.MemoryRecord)
	compression := CompressionStats{CountsByLevel: make(map[int]int)}
	var ranked []RankedMemory
	for _, p := range projections {
		record, ok := recordByID[p.CoreMemoryID]
		if !ok {
			continue
		}
		content := record.Content
		if p.CompressedPayload != "" {
			content = p.CompressedPayload
		}
		compression.CountsByLevel[p.CompressionLevel]++
		compression.OriginalTokens += domain.EstimateRecordTokens(&record)
		compression.CompressedTokens += domain.EstimateTokens(content)

		layer := p.EffectiveLayer(now)
		ageDays := float64(now-p.CreatedAt) / 86_400.0
		ranked = append(ranked, RankedMemory{
			Memory:  p,
			Content: content,
			Importance: e.atlas.Importance(ImportanceInput{
				Content:      content,
				Query:        opts.QueryContext,
				Surprise:     p.SurpriseScore,
				UsageCount:   p.UsageCount,
				AgeDays:      ageDays,
				HalfLifeDays: cfg.RetentionPolicy.TemporalHalfLifeDays,
			}),
		})
		presented := record
		presented.Content = content
		byLayer[layer] = append(byLayer[layer], presented)
	}

	// Rerank the hot layer under its budget share so the most important,
	// least redundant records lead.
	hotBudget := int(float64(opts.MaxTokens) * layerBudgetShares[domain.LayerHot])
	hotRanked := e.atlas.Rerank(filterRankedByLayer(ranked, now, domain.LayerHot), RerankOptions{
		TokenBudget:  hotBudget,
		QueryContext: opts.QueryContext,
	})
	hotRecords := make([]domain.MemoryRecord, 0, len(hotRanked))
	for _, rm := range hotRanked {
		if record, ok := recordByID[rm.Memory.CoreMemoryID]; ok {
			record.Content = rm.Content
			hotRecords = append(hotRecords, record)
		}
	}
	byLayer[domain.LayerHot] = hotRecords

	layers, err := e.stratifier.BuildContext(ctx, tenant, byLayer, opts.MaxTokens)
	if err != nil {
		return nil, err
	}

	snapshot := &ContextSnapshot{
		Tenant:      tenant,
		Agent:       agent,
		Layers:      layers,
		Compression: compression,
		TokenBudget: opts.MaxTokens,
		BuiltAt:     now,
	}
	for _, lc := range layers {
		snapshot.TokensUsed += lc.Tokens
	}
	if limit := int(float64(opts.MaxTokens) * contextOverrunTolerance); snapshot.TokensUsed > limit {
		return nil, fmt.Errorf("context assembly exceeded budget: %d > %d", snapshot.TokensUsed, limit)
	}

	if snapshot.Beliefs, err = e.epistemic.Active(ctx, tenant); err != nil {
		return nil, err
	}
	if snapshot.Contradictions, err = e.contradiction.Active(ctx, tenant); err != nil {
		return nil, err
	}
	if snapshot.Retention, err = e.retention.Evaluate(ctx, tenant, agent, cfg); err != nil {
		return nil, err
	}

	// High-surprise callout: top entries at or above the floor.
	high := make([]domain.AdaptiveMemory, 0)
	for _, p := range projections {
		if p.SurpriseScore >= highSurpriseFloor {
			high = append(high, p)
		}
	}
	sort.Slice(high, func(i, j int) bool {
		if high[i].SurpriseScore != high[j].SurpriseScore {
			return high[i].SurpriseScore > high[j].SurpriseScore
		}
		return high[i].ID < high[j].ID
	})
	if len(high) > highSurpriseLimit {
		high = high[:highSurpriseLimit]
	}
	snapshot.HighSurprise = high

	e.metrics.ContextBuilds.WithLabelValues(tenant).Inc()
	e.metrics.ContextTokens.Observe(float64(snapshot.TokensUsed))
	return snapshot, nil
}

func filterRankedByLayer(ranked []RankedMemory, now int64, layer domain.Layer) []RankedMemory {
	var out []RankedMemory
	for _, rm := range ranked {
		if rm.Memory.EffectiveLayer(now) == layer {
			out = append(out, rm)
		}
	}
	return out
}

// Query retrieves narrative records by filters and time range.
func (e *Engine) Query(ctx context.Context, tenant string, q domain.MemoryQuery) ([]domain.MemoryRecord, error) {
	return e.narrative.Retrieve(ctx, tenant, q)
}

// GetMemoryLineage walks a record's ParentID chain back to its root.
func (e *Engine) GetMemoryLineage(ctx context.Context, tenant, memoryID string) ([]domain.MemoryRecord, error) {
	return e.narrative.Lineage(ctx, tenant, memoryID)
}

// UpdateBelief drives one lifecycle transition and audits it.
func (e *Engine) UpdateBelief(ctx context.Context, tenant, beliefID string, to domain.BeliefState, reason string) (*domain.Belief, error) {
	belief, err := e.epistemic.Transition(ctx, tenant, beliefID, to, reason)
	if err != nil {
		return nil, err
	}
	e.audit.Emit(ctx, tenant, "belief_transitioned", "engine", map[string]any{
		"belief_id": beliefID,
		"state":     string(to),
		"version":   belief.Version,
		"reason":    reason,
	})
	return belief, nil
}

// RecordMemoryUsage feeds observed utility back into importance and usage
// counts.
func (e *Engine) RecordMemoryUsage(ctx context.Context, tenant string, events []UsageEvent) error {
	now := nowUnix()
	for _, ev := range events {
		mem, err := e.adaptive.Get(ctx, tenant, ev.MemoryID)
		if err != nil {
			if isNotFoundErr(err) {
				continue
			}
			return err
		}
		mem.UsageCount++
		mem.LastAccessTS = now
		mem.Importance = e.atlas.UpdateImportance(mem.Importance, ev.Utility)
		mem.UpdatedAt = now
		if err := e.adaptive.Put(ctx, mem); err != nil {
			return err
		}
	}
	e.audit.Emit(ctx, tenant, "usage_recorded", "engine", map[string]any{"events": len(events)})
	return nil
}

// EvaluateRetention produces advisory retention recommendations.
func (e *Engine) EvaluateRetention(ctx context.Context, tenant, agent string) (*RetentionReport, error) {
	cfg, err := e.TenantConfig(ctx, tenant)
	if err != nil {
		cfg = domain.DefaultTenantConfig()
	}
	return e.retention.Evaluate(ctx, tenant, agent, cfg)
}

// ConfigureAdaptive stores the tenant's normalised configuration.
func (e *Engine) ConfigureAdaptive(ctx context.Context, tenant string, cfg domain.TenantConfig) (*domain.TenantConfig, error) {
	if tenant == "" {
		return nil, fmt.Errorf("%w: tenant is required", domain.ErrInvalidInput)
	}
	normalized := cfg.Normalized()

	fields := map[string]any{
		"retention_policy":     normalized.RetentionPolicy,
		"surprise_weights":     normalized.SurpriseWeights,
		"compression_strategy": normalized.CompressionStrategy,
	}
	for field, value := range fields {
		raw, err := marshal(value)
		if err != nil {
			return nil, err
		}
		meta := domain.WriteMeta{Tenant: tenant, Type: "adaptive_config"}
		if err := e.driver.Write(ctx, domain.AdaptiveConfigKey(tenant, field), raw, meta); err != nil {
			return nil, fmt.Errorf("write config field %s: %w", field, err)
		}
	}
	e.audit.Emit(ctx, tenant, "config_updated", "engine", map[string]any{
		"policy": normalized.RetentionPolicy.Name,
	})
	return &normalized, nil
}

// TenantConfig loads the tenant's configuration, defaulting any missing
// field.
func (e *Engine) TenantConfig(ctx context.Context, tenant string) (domain.TenantConfig, error) {
	cfg := domain.DefaultTenantConfig()

	if raw, err := e.driver.Read(ctx, domain.AdaptiveConfigKey(tenant, "retention_policy")); err == nil {
		var p domain.RetentionPolicy
		if err := unmarshal(raw, &p); err == nil {
			cfg.RetentionPolicy = p
		}
	} else if !isNotFoundErr(err) {
		return cfg, err
	}
	if raw, err := e.driver.Read(ctx, domain.AdaptiveConfigKey(tenant, "surprise_weights")); err == nil {
		var w domain.SurpriseWeights
		if err := unmarshal(raw, &w); err == nil {
			cfg.SurpriseWeights = w
		}
	} else if !isNotFoundErr(err) {
		return cfg, err
	}
	if raw, err := e.driver.Read(ctx, domain.AdaptiveConfigKey(tenant, "compression_strategy")); err == nil {
		var s string
		if err := unmarshal(raw, &s); err == nil && s != "" {
			cfg.CompressionStrategy = s
		}
	} else if !isNotFoundErr(err) {
		return cfg, err
	}
	return cfg.Normalized(), nil
}

// GetMetrics returns the tenant's store census.
func (e *Engine) GetMetrics(ctx context.Context, tenant string) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{Tenant: tenant, TakenAt: nowUnix()}

	var err error
	if snap.MemoryCount, err = e.driver.Count(ctx, domain.MemoryPattern(tenant)); err != nil {
		return nil, fmt.Errorf("count memories: %w", err)
	}
	if snap.AdaptiveCount, err = e.driver.Count(ctx, domain.AdaptivePattern(tenant)); err != nil {
		return nil, fmt.Errorf("count adaptive memories: %w", err)
	}
	if snap.ContradictionCount, err = e.driver.Count(ctx, domain.ContradictionPattern(tenant)); err != nil {
		return nil, fmt.Errorf("count contradictions: %w", err)
	}
	if snap.AuditEvents, err = e.driver.Count(ctx, fmt.Sprintf("audit:%s:*", tenant)); err != nil {
		return nil, fmt.Errorf("count audit events: %w", err)
	}

	beliefs, err := e.epistemic.List(ctx, tenant)
	if err != nil {
		return nil, err
	}
	snap.BeliefCount = len(beliefs)

	active, err := e.contradiction.Active(ctx, tenant)
	if err != nil {
		return nil, err
	}
	snap.ActiveContradictions = len(active)
	return snap, nil
}

// CompressMemory imperatively compresses one adaptive memory. Level below 1
// derives from the stored surprise with a floor of 2.
func (e *Engine) CompressMemory(ctx context.Context, tenant, adaptiveID string, level int) (*domain.AdaptiveMemory, error) {
	mem, err := e.compressor.Compress(ctx, tenant, adaptiveID, level)
	if err != nil {
		return nil, err
	}
	e.audit.Emit(ctx, tenant, "memory_compressed", "engine", map[string]any{
		"adaptive_id": adaptiveID,
		"level":       mem.CompressionLevel,
	})
	return mem, nil
}

// PromoteMemory moves a memory to the hot layer explicitly. This is the
// only path that promotes; read-time fixup only ever demotes.
func (e *Engine) PromoteMemory(ctx context.Context, tenant, adaptiveID string) (*domain.AdaptiveMemory, error) {
	mem, err := e.adaptive.Get(ctx, tenant, adaptiveID)
	if err != nil {
		return nil, err
	}
	now := nowUnix()
	mem.Layer = domain.LayerHot
	// Promotion resets the age baseline so fixup does not immediately
	// demote it again.
	mem.CreatedAt = now
	mem.UpdatedAt = now
	if err := e.adaptive.Put(ctx, mem); err != nil {
		return nil, err
	}
	e.audit.Emit(ctx, tenant, "memory_promoted", "engine", map[string]any{"adaptive_id": adaptiveID})
	return mem, nil
}

// ForgetMemory suppresses a memory from retrieval and context assembly. The
// narrative record stays immutable and readable by direct id; only the
// projection is hidden.
func (e *Engine) ForgetMemory(ctx context.Context, tenant, adaptiveID string) error {
	mem, err := e.adaptive.Get(ctx, tenant, adaptiveID)
	if err != nil {
		return err
	}
	mem.Suppressed = true
	mem.UpdatedAt = nowUnix()
	if err := e.adaptive.Put(ctx, mem); err != nil {
		return err
	}
	e.audit.Emit(ctx, tenant, "memory_forgotten", "engine", map[string]any{"adaptive_id": adaptiveID})
	return nil
}

// ResolveContradiction marks a contradiction handled.
func (e *Engine) ResolveContradiction(ctx context.Context, tenant, contradictionID string) (*domain.Contradiction, error) {
	record, err := e.contradiction.Resolve(ctx, tenant, contradictionID)
	if err != nil {
		return nil, err
	}
	e.audit.Emit(ctx, tenant, "contradiction_resolved", "engine", map[string]any{
		"contradiction_id": contradictionID,
	})
	return record, nil
}

// BeliefHistory returns the version chain, lifecycle log and confidence
// drift of one belief.
func (e *Engine) BeliefHistory(ctx context.Context, tenant, beliefID string) ([]domain.BeliefVersion, *domain.LifecycleRecord, DriftStats, error) {
	versions, err := e.epistemic.VersionChain(ctx, tenant, beliefID)
	if err != nil {
		return nil, nil, DriftStats{}, err
	}
	lifecycle, err := e.epistemic.Lifecycle(ctx, tenant, beliefID)
	if err != nil {
		return nil, nil, DriftStats{}, err
	}
	points, err := e.confidence.Series(ctx, tenant, beliefID)
	if err != nil {
		return nil, nil, DriftStats{}, err
	}
	return versions, lifecycle, e.confidence.Drift(points), nil
}

// SnapshotBeliefsAt reconstructs the belief graph as of a past timestamp.
func (e *Engine) SnapshotBeliefsAt(ctx context.Context, tenant string, ts int64) ([]domain.Belief, error) {
	return e.epistemic.SnapshotAt(ctx, tenant, ts)
}

// runSummarizationJob is the background handler behind stratification
// triggers: roll up the layer, then reset its pressure.
func (e *Engine) runSummarizationJob(ctx context.Context, job domain.Job) error {
	projections, err := e.adaptive.List(ctx, job.Tenant, job.Agent)
	if err != nil {
		e.metrics.JobRuns.WithLabelValues(string(job.Type), "error").Inc()
		return err
	}

	now := nowUnix()
	var coreIDs []string
	for _, p := range projections {
		if p.Suppressed {
			continue
		}
		if p.EffectiveLayer(now) == job.Layer {
			coreIDs = append(coreIDs, p.CoreMemoryID)
		}
	}
	records, err := e.narrative.GetMulti(ctx, job.Tenant, coreIDs)
	if err != nil {
		e.metrics.JobRuns.WithLabelValues(string(job.Type), "error").Inc()
		return err
	}

	if len(records) > 0 {
		summary, err := e.summarizer.SummarizeLayer(ctx, job.Tenant, job.Layer, records, 1)
		if err != nil {
			e.metrics.JobRuns.WithLabelValues(string(job.Type), "error").Inc()
			return err
		}
		if summary.AIFallback {
			e.metrics.AIFallbacks.Inc()
		}
	}

	if err := e.stratifier.MarkSummarized(ctx, job.Tenant, job.Agent, job.Layer); err != nil {
		e.metrics.JobRuns.WithLabelValues(string(job.Type), "error").Inc()
		return err
	}
	e.metrics.JobRuns.WithLabelValues(string(job.Type), "ok").Inc()
	return nil
}

// runRetentionJob decays usage counts and audits the advisory report.
func (e *Engine) runRetentionJob(ctx context.Context, job domain.Job) error {
	cfg, err := e.TenantConfig(ctx, job.Tenant)
	if err != nil {
		cfg = domain.DefaultTenantConfig()
	}
	decayed, err := e.retention.DecayUsage(ctx, job.Tenant, cfg)
	if err != nil {
		e.metrics.JobRuns.WithLabelValues(string(job.Type), "error").Inc()
		return err
	}
	report, err := e.retention.Evaluate(ctx, job.Tenant, job.Agent, cfg)
	if err != nil {
		e.metrics.JobRuns.WithLabelValues(string(job.Type), "error").Inc()
		return err
	}
	e.audit.Emit(ctx, job.Tenant, "retention_evaluated", "jobs", map[string]any{
		"evaluated": report.Evaluated,
		"promote":   len(report.Promote),
		"compress":  len(report.Compress),
		"decayed":   decayed,
	})
	e.metrics.JobRuns.WithLabelValues(string(job.Type), "ok").Inc()
	return nil
}
