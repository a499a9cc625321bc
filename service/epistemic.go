package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mindscape-ai/mindscape/domain"
	"go.uber.org/zap"
)

const (
	transitionRetries      = 5
	transitionRetryBackoff = 50 * time.Millisecond
)

// EpistemicService owns the belief graph: current belief records, their
// append-only version chains, lifecycle logs and the confidence series.
type EpistemicService struct {
	driver     domain.Driver
	provider   domain.AIProvider
	confidence *ConfidenceService
	logger     *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewEpistemicService(d domain.Driver, provider domain.AIProvider, conf *ConfidenceService, logger *zap.Logger) *EpistemicService {
	return &EpistemicService{
		driver:     d,
		provider:   provider,
		confidence: conf,
		logger:     logger,
		locks:      make(map[string]*sync.Mutex),
	}
}

// beliefLock serialises transitions per belief within this process. Cross
// process writers are handled by the optimistic version check.
func (e *EpistemicService) beliefLock(tenant, beliefID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := tenant + "/" + beliefID
	l, ok := e.locks[key]
	if !ok {
		l = &sync.Mutex{}
		e.locks[key] = l
	}
	return l
}

// RecordBelief creates a belief in the hypothesis state from a claim. When
// the claim carries no usable confidence the provider scores it; a provider
// failure falls back to the default interval and is reported through aiFellBack.
func (e *EpistemicService) RecordBelief(ctx context.Context, tenant string, claim domain.Claim, prov domain.Provenance) (belief *domain.Belief, aiFellBack bool, err error) {
	if tenant == "" {
		return nil, false, fmt.Errorf("%w: tenant is required", domain.ErrInvalidInput)
	}
	if claim.Text == "" {
		return nil, false, fmt.Errorf("%w: claim text is required", domain.ErrInvalidInput)
	}

	var conf domain.Confidence
	switch {
	case claim.Confidence != nil && claim.Confidence.Valid():
		conf = *claim.Confidence
	default:
		scored, scoreErr := e.provider.ScoreEpistemicConfidence(ctx, claim.Text, prov.Source)
		if scoreErr != nil || !scored.Valid() {
			conf = domain.DefaultConfidence()
			aiFellBack = true
			e.logger.Debug("confidence scoring fell back to default",
				zap.String("tenant", tenant), zap.Error(scoreErr))
		} else {
			conf = scored
		}
	}

	now := nowUnix()
	belief = &domain.Belief{
		ID:         uuid.NewString(),
		Tenant:     tenant,
		Claim:      claim.Text,
		Confidence: conf,
		State:      domain.StateHypothesis,
		Provenance: prov,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := e.writeBelief(ctx, belief); err != nil {
		return nil, aiFellBack, err
	}

	lifecycle := domain.LifecycleRecord{BeliefID: belief.ID}
	if err := e.writeLifecycle(ctx, tenant, &lifecycle); err != nil {
		return nil, aiFellBack, err
	}

	if err := e.confidence.RecordPoint(ctx, tenant, belief.ID, conf, now); err != nil {
		e.logger.Warn("initial confidence point write failed",
			zap.String("tenant", tenant), zap.String("belief_id", belief.ID), zap.Error(err))
	}

	return belief, aiFellBack, nil
}

// Get loads the current record of a belief.
func (e *EpistemicService) Get(ctx context.Context, tenant, beliefID string) (*domain.Belief, error) {
	raw, err := e.driver.Read(ctx, domain.BeliefKey(tenant, beliefID))
	if err != nil {
		return nil, fmt.Errorf("read belief %s: %w", beliefID, err)
	}
	var b domain.Belief
	if err := unmarshal(raw, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// List returns every belief of a tenant, ordered by id.
func (e *EpistemicService) List(ctx context.Context, tenant string) ([]domain.Belief, error) {
	results, err := e.driver.Query(ctx, domain.QuerySpec{Pattern: domain.BeliefPattern(tenant)})
	if err != nil {
		return nil, fmt.Errorf("query beliefs: %w", err)
	}
	beliefs := make([]domain.Belief, 0, len(results))
	for _, kv := range results {
		var b domain.Belief
		if err := unmarshal(kv.Value, &b); err != nil {
			e.logger.Warn("skipping undecodable belief", zap.String("key", kv.Key), zap.Error(err))
			continue
		}
		// Version snapshots live under the same prefix; they have no claim
		// record of their own.
		if b.ID == "" || b.Claim == "" {
			continue
		}
		beliefs = append(beliefs, b)
	}
	sort.Slice(beliefs, func(i, j int) bool { return beliefs[i].ID < beliefs[j].ID })
	return beliefs, nil
}

// Active returns beliefs in hypothesis, accepted or contested state.
func (e *EpistemicService) Active(ctx context.Context, tenant string) ([]domain.Belief, error) {
	all, err := e.List(ctx, tenant)
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, b := range all {
		if b.Active() {
			active = append(active, b)
		}
	}
	return active, nil
}

// Transition moves a belief through the lifecycle FSM, snapshotting the
// transition as an immutable version record and appending to the lifecycle
// log. Concurrent writers are detected by an optimistic version check and
// retried with backoff; persistent interference surfaces as ErrConflict.
func (e *EpistemicService) Transition(ctx context.Context, tenant, beliefID string, to domain.BeliefState, reason string) (*domain.Belief, error) {
	if !domain.ValidBeliefState(string(to)) {
		return nil, fmt.Errorf("%w: unknown belief state %q", domain.ErrInvalidInput, to)
	}

	lock := e.beliefLock(tenant, beliefID)
	lock.Lock()
	defer lock.Unlock()

	var lastErr error
	for attempt := 0; attempt < transitionRetries; attempt++ {
		if attempt > 0 {
			backoff := transitionRetryBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: transition retry interrupted", domain.ErrCancelled)
			case <-time.After(backoff):
			}
		}

		b, err := e.Get(ctx, tenant, beliefID)
		if err != nil {
			return nil, err
		}

		if !domain.CanTransition(b.State, to) {
			return nil, fmt.Errorf("%w: %s -> %s (allowed: %v)",
				domain.ErrInvalidTransition, b.State, to, domain.AllowedTransitions(b.State))
		}

		updated, err := e.applyTransition(ctx, tenant, b, to, reason)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		lastErr = err
		e.logger.Debug("transition version conflict, retrying",
			zap.String("belief_id", beliefID), zap.Int("attempt", attempt+1))
	}
	return nil, fmt.Errorf("transition %s after %d attempts: %w", beliefID, transitionRetries, lastErr)
}

func (e *EpistemicService) applyTransition(ctx context.Context, tenant string, b *domain.Belief, to domain.BeliefState, reason string) (*domain.Belief, error) {
	now := nowUnix()
	from := b.State
	startVersion := b.Version

	next := *b
	next.State = to
	next.Version = startVersion + 1
	next.UpdatedAt = now

	// Optimistic check: another writer bumping the version between the
	// caller's read and here shows up as a changed version number. A losing
	// transition must leave the immutable version chain untouched, so the
	// snapshot is written only after the belief record advances.
	current, err := e.Get(ctx, tenant, b.ID)
	if err != nil {
		return nil, err
	}
	if current.Version != startVersion {
		return nil, fmt.Errorf("%w: belief %s moved from version %d to %d",
			domain.ErrConflict, b.ID, startVersion, current.Version)
	}

	if err := e.writeBelief(ctx, &next); err != nil {
		return nil, err
	}

	version := domain.BeliefVersion{
		VersionID:        uuid.NewString(),
		BeliefID:         b.ID,
		Version:          next.Version,
		State:            to,
		PreviousState:    from,
		Confidence:       b.Confidence,
		TransitionReason: reason,
		CreatedAt:        now,
	}
	rawVersion, err := marshal(&version)
	if err != nil {
		return nil, err
	}
	versionMeta := domain.WriteMeta{Tenant: tenant, Type: "belief_version", Immutable: true, Timestamp: now}
	if err := e.driver.Write(ctx, domain.BeliefVersionKey(tenant, b.ID, version.VersionID), rawVersion, versionMeta); err != nil {
		return nil, fmt.Errorf("write belief version: %w", err)
	}

	lifecycle, err := e.Lifecycle(ctx, tenant, b.ID)
	if err != nil {
		lifecycle = &domain.LifecycleRecord{BeliefID: b.ID}
	}
	lifecycle.Transitions = append(lifecycle.Transitions, domain.LifecycleTransition{
		From: from, To: to, Reason: reason, At: now,
	})
	if err := e.writeLifecycle(ctx, tenant, lifecycle); err != nil {
		return nil, err
	}

	return &next, nil
}

// UpdateConfidence revises a belief's confidence interval and appends a
// point to the series. It does not advance the lifecycle.
func (e *EpistemicService) UpdateConfidence(ctx context.Context, tenant, beliefID string, conf domain.Confidence) (*domain.Belief, error) {
	if !conf.Valid() {
		return nil, fmt.Errorf("%w: confidence interval out of order", domain.ErrInvalidInput)
	}

	lock := e.beliefLock(tenant, beliefID)
	lock.Lock()
	defer lock.Unlock()

	b, err := e.Get(ctx, tenant, beliefID)
	if err != nil {
		return nil, err
	}
	now := nowUnix()
	b.Confidence = conf
	b.UpdatedAt = now
	if err := e.writeBelief(ctx, b); err != nil {
		return nil, err
	}
	if err := e.confidence.RecordPoint(ctx, tenant, beliefID, conf, now); err != nil {
		e.logger.Warn("confidence point write failed",
			zap.String("tenant", tenant), zap.String("belief_id", beliefID), zap.Error(err))
	}
	return b, nil
}

// Lifecycle returns the append-only transition log of a belief.
func (e *EpistemicService) Lifecycle(ctx context.Context, tenant, beliefID string) (*domain.LifecycleRecord, error) {
	raw, err := e.driver.Read(ctx, domain.LifecycleKey(tenant, beliefID))
	if err != nil {
		return nil, fmt.Errorf("read lifecycle %s: %w", beliefID, err)
	}
	var rec domain.LifecycleRecord
	if err := unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// VersionChain returns the transition snapshots of a belief in version order.
// Length is always Version - 1.
func (e *EpistemicService) VersionChain(ctx context.Context, tenant, beliefID string) ([]domain.BeliefVersion, error) {
	results, err := e.driver.Query(ctx, domain.QuerySpec{Pattern: domain.BeliefVersionPattern(tenant, beliefID)})
	if err != nil {
		return nil, fmt.Errorf("query belief versions: %w", err)
	}
	versions := make([]domain.BeliefVersion, 0, len(results))
	for _, kv := range results {
		var v domain.BeliefVersion
		if err := unmarshal(kv.Value, &v); err != nil {
			e.logger.Warn("skipping undecodable version", zap.String("key", kv.Key), zap.Error(err))
			continue
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].Version < versions[j].Version })
	return versions, nil
}

// SnapshotAt reconstructs every belief's state as of ts by replaying version
// chains. Beliefs created after ts are absent.
func (e *EpistemicService) SnapshotAt(ctx context.Context, tenant string, ts int64) ([]domain.Belief, error) {
	beliefs, err := e.List(ctx, tenant)
	if err != nil {
		return nil, err
	}

	var snapshot []domain.Belief
	for _, b := range beliefs {
		if b.CreatedAt > ts {
			continue
		}
		versions, err := e.VersionChain(ctx, tenant, b.ID)
		if err != nil {
			return nil, err
		}

		past := b
		past.State = domain.StateHypothesis
		past.Version = 1
		past.UpdatedAt = past.CreatedAt
		for _, v := range versions {
			if v.CreatedAt > ts {
				break
			}
			past.State = v.State
			past.Version = v.Version
			past.Confidence = v.Confidence
			past.UpdatedAt = v.CreatedAt
		}
		snapshot = append(snapshot, past)
	}
	return snapshot, nil
}

func (e *EpistemicService) writeBelief(ctx context.Context, b *domain.Belief) error {
	raw, err := marshal(b)
	if err != nil {
		return err
	}
	meta := domain.WriteMeta{Tenant: b.Tenant, Type: "belief", Timestamp: b.UpdatedAt}
	if err := e.driver.Write(ctx, domain.BeliefKey(b.Tenant, b.ID), raw, meta); err != nil {
		return fmt.Errorf("write belief %s: %w", b.ID, err)
	}
	return nil
}

func (e *EpistemicService) writeLifecycle(ctx context.Context, tenant string, rec *domain.LifecycleRecord) error {
	raw, err := marshal(rec)
	if err != nil {
		return err
	}
	meta := domain.WriteMeta{Tenant: tenant, Type: "lifecycle"}
	if err := e.driver.Write(ctx, domain.LifecycleKey(tenant, rec.BeliefID), raw, meta); err != nil {
		return fmt.Errorf("write lifecycle %s: %w", rec.BeliefID, err)
	}
	return nil
}
