package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/mindscape-ai/mindscape/domain"
	"go.uber.org/zap"
)

// AuditEmitter forwards state-change events to the configured sink. Events
// are emitted synchronously from the mutating goroutine so per-task order
// is preserved; a sink failure degrades to a warning, never fails the
// mutation it describes.
type AuditEmitter struct {
	sink   domain.AuditSink
	logger *zap.Logger
}

func NewAuditEmitter(sink domain.AuditSink, logger *zap.Logger) *AuditEmitter {
	return &AuditEmitter{sink: sink, logger: logger}
}

// Emit sends one event. Returns whether the sink accepted it, so callers
// can surface a degraded flag.
func (a *AuditEmitter) Emit(ctx context.Context, tenant, action, component string, data map[string]any) bool {
	if a.sink == nil {
		return true
	}
	event := domain.AuditEvent{
		Tenant: tenant,
		Action: action,
		Data:   data,
		Meta:   domain.AuditMeta{Component: component, Timestamp: nowUnix()},
	}
	if err := a.sink.Emit(ctx, event); err != nil {
		a.logger.Warn("audit emit failed",
			zap.String("tenant", tenant), zap.String("action", action), zap.Error(err))
		return false
	}
	return true
}

// DriverSink is an audit sink persisting events as an append-only sequence
// under audit:{tenant}:{seq}. Sequence numbers are recovered from the store
// on first use, so restarts continue where the last write left off.
type DriverSink struct {
	driver domain.Driver
	logger *zap.Logger

	mu   sync.Mutex
	seqs map[string]int64
}

func NewDriverSink(d domain.Driver, logger *zap.Logger) *DriverSink {
	return &DriverSink{driver: d, logger: logger, seqs: make(map[string]int64)}
}

func (s *DriverSink) nextSeq(ctx context.Context, tenant string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq, ok := s.seqs[tenant]
	if !ok {
		count, err := s.driver.Count(ctx, fmt.Sprintf("audit:%s:*", tenant))
		if err != nil {
			return 0, fmt.Errorf("recover audit sequence: %w", err)
		}
		seq = int64(count)
	}
	s.seqs[tenant] = seq + 1
	return seq, nil
}

func (s *DriverSink) Emit(ctx context.Context, event domain.AuditEvent) error {
	seq, err := s.nextSeq(ctx, event.Tenant)
	if err != nil {
		return err
	}
	raw, err := marshal(&event)
	if err != nil {
		return err
	}
	meta := domain.WriteMeta{Tenant: event.Tenant, Type: "audit", Immutable: true, Timestamp: event.Meta.Timestamp}
	if err := s.driver.Write(ctx, domain.AuditKey(event.Tenant, seq), raw, meta); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

var _ domain.AuditSink = (*DriverSink)(nil)
