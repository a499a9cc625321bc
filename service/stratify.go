package service

import (
	"context"
	"fmt"

	"github.com/mindscape-ai/mindscape/domain"
	"go.uber.org/zap"
)

// Per-layer summarization triggers: ingest count since last rollup, or
// elapsed seconds since it. Frozen never triggers; it only receives
// demotions.
var (
	layerCountThresholds = map[domain.Layer]int{
		domain.LayerHot:  50,
		domain.LayerWarm: 100,
		domain.LayerCold: 200,
	}
	layerIntervals = map[domain.Layer]int64{
		domain.LayerHot:  3_600,
		domain.LayerWarm: 86_400,
		domain.LayerCold: 604_800,
	}
)

// Context budget shares per layer; the remainder after hot/warm/cold goes
// to frozen.
var layerBudgetShares = map[domain.Layer]float64{
	domain.LayerHot:    0.50,
	domain.LayerWarm:   0.30,
	domain.LayerCold:   0.15,
	domain.LayerFrozen: 0.05,
}

// coolLayerSampleSize is how many records a cool layer contributes when no
// summary exists yet.
const coolLayerSampleSize = 5

// pendingDispatchMarker is the sentinel stored when a trigger fired but no
// job id came back (dispatch failed or no dispatcher). It keeps the trigger
// observable and lets the next ingest retry the dispatch.
const pendingDispatchMarker = "pending"

// Dispatcher enqueues background work; the stratifier only ever asks for
// summarization jobs.
type Dispatcher interface {
	Dispatch(ctx context.Context, job domain.Job) (string, error)
}

// LayerState is the per tenant/agent/layer bookkeeping under
// stratify:{tenant}:{agent}:{layer}.
type LayerState struct {
	Tenant        string       `json:"tenant"`
	Agent         string       `json:"agent"`
	Layer         domain.Layer `json:"layer"`
	IngestCount   int          `json:"ingest_count"`
	LastSummaryTS int64        `json:"last_summary_ts"`
	PendingJobID  string       `json:"pending_job_id,omitempty"`
	UpdatedAt     int64        `json:"updated_at"`
}

// LayerContext is one layer's contribution to an assembled context: full
// records for hot, a summary (or sampled records) for cooler layers.
type LayerContext struct {
	Layer   domain.Layer          `json:"layer"`
	Records []domain.MemoryRecord `json:"records,omitempty"`
	Summary string                `json:"summary,omitempty"`
	Tokens  int                   `json:"tokens"`
}

// StratifierService tracks per-layer ingest pressure, fires summarization
// jobs when a layer crosses its threshold, and allocates context budget
// across layers.
type StratifierService struct {
	driver     domain.Driver
	summarizer *SummarizerService
	dispatcher Dispatcher
	logger     *zap.Logger
}

func NewStratifierService(d domain.Driver, summarizer *SummarizerService, dispatcher Dispatcher, logger *zap.Logger) *StratifierService {
	return &StratifierService{driver: d, summarizer: summarizer, dispatcher: dispatcher, logger: logger}
}

func (s *StratifierService) loadState(ctx context.Context, tenant, agent string, layer domain.Layer) (*LayerState, error) {
	raw, err := s.driver.Read(ctx, domain.StratifyKey(tenant, agent, layer))
	if err != nil {
		if isNotFoundErr(err) {
			return &LayerState{Tenant: tenant, Agent: agent, Layer: layer}, nil
		}
		return nil, fmt.Errorf("read layer state: %w", err)
	}
	var state LayerState
	if err := unmarshal(raw, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *StratifierService) saveState(ctx context.Context, state *LayerState) error {
	state.UpdatedAt = nowUnix()
	raw, err := marshal(state)
	if err != nil {
		return err
	}
	meta := domain.WriteMeta{Tenant: state.Tenant, Type: "stratify"}
	key := domain.StratifyKey(state.Tenant, state.Agent, state.Layer)
	if err := s.driver.Write(ctx, key, raw, meta); err != nil {
		return fmt.Errorf("write layer state: %w", err)
	}
	return nil
}

// RecordIngest bumps the layer's counter and dispatches a summarization job
// when the count threshold or time interval trips. A layer with a job
// already pending never dispatches a second one.
func (s *StratifierService) RecordIngest(ctx context.Context, tenant, agent string, layer domain.Layer) error {
	state, err := s.loadState(ctx, tenant, agent, layer)
	if err != nil {
		return err
	}
	state.IngestCount++

	if s.shouldSummarize(state) && (state.PendingJobID == "" || state.PendingJobID == pendingDispatchMarker) {
		// The marker is written even when dispatch fails, so the trigger
		// stays visible and the next ingest retries.
		state.PendingJobID = pendingDispatchMarker
		if s.dispatcher != nil {
			jobID, err := s.dispatcher.Dispatch(ctx, domain.Job{
				Type:   domain.JobSummarization,
				Tenant: tenant,
				Agent:  agent,
				Layer:  layer,
			})
			if err != nil {
				s.logger.Warn("summarization dispatch failed",
					zap.String("tenant", tenant), zap.String("layer", string(layer)), zap.Error(err))
			} else {
				state.PendingJobID = jobID
			}
		}
	}
	return s.saveState(ctx, state)
}

func (s *StratifierService) shouldSummarize(state *LayerState) bool {
	threshold, ok := layerCountThresholds[state.Layer]
	if !ok {
		return false
	}
	if state.IngestCount >= threshold {
		return true
	}
	interval := layerIntervals[state.Layer]
	return state.LastSummaryTS > 0 && nowUnix()-state.LastSummaryTS >= interval
}

// MarkSummarized resets the layer's pressure after a rollup completes.
func (s *StratifierService) MarkSummarized(ctx context.Context, tenant, agent string, layer domain.Layer) error {
	state, err := s.loadState(ctx, tenant, agent, layer)
	if err != nil {
		return err
	}
	state.IngestCount = 0
	state.LastSummaryTS = nowUnix()
	state.PendingJobID = ""
	return s.saveState(ctx, state)
}

// ClearPending drops the pending marker without resetting pressure, used
// when a job fails terminally.
func (s *StratifierService) ClearPending(ctx context.Context, tenant, agent string, layer domain.Layer) error {
	state, err := s.loadState(ctx, tenant, agent, layer)
	if err != nil {
		return err
	}
	state.PendingJobID = ""
	return s.saveState(ctx, state)
}

// BuildContext allocates the token budget across layers (50/30/15/5) and
// fills each share: hot layers carry full records in the order given,
// cooler layers substitute their stored summary, falling back to a small
// sample of records when none exists.
func (s *StratifierService) BuildContext(ctx context.Context, tenant string, byLayer map[domain.Layer][]domain.MemoryRecord, maxTokens int) ([]LayerContext, error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("%w: token budget must be positive", domain.ErrInvalidInput)
	}

	var contexts []LayerContext
	for _, layer := range domain.AllLayers() {
		budget := int(float64(maxTokens) * layerBudgetShares[layer])
		records := byLayer[layer]
		if budget <= 0 || len(records) == 0 {
			continue
		}

		lc := LayerContext{Layer: layer}
		if layer == domain.LayerHot {
			for _, r := range records {
				cost := domain.EstimateRecordTokens(&r)
				if lc.Tokens+cost > budget {
					break
				}
				lc.Records = append(lc.Records, r)
				lc.Tokens += cost
			}
		} else {
			summary, err := s.summarizer.LayerSummary(ctx, tenant, layer)
			if err != nil {
				return nil, err
			}
			if summary != nil && summary.Content != "" && domain.EstimateTokens(summary.Content) <= budget {
				lc.Summary = summary.Content
				lc.Tokens = domain.EstimateTokens(summary.Content)
			} else {
				sample := records
				if len(sample) > coolLayerSampleSize {
					sample = sample[:coolLayerSampleSize]
				}
				for _, r := range sample {
					cost := domain.EstimateRecordTokens(&r)
					if lc.Tokens+cost > budget {
						break
					}
					lc.Records = append(lc.Records, r)
					lc.Tokens += cost
				}
			}
		}
		if lc.Tokens > 0 {
			contexts = append(contexts, lc)
		}
	}
	return contexts, nil
}
