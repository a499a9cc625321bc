package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mindscape-ai/mindscape/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	jobQueueName       = "jobs"
	defaultPollPeriod  = time.Second
	defaultConcurrency = 4
	// perTenantWorkers bounds how many jobs of one tenant run at once, so a
	// noisy tenant cannot monopolise the pool.
	perTenantWorkers = 2
)

// JobHandler executes one job. A returned error requeues the job until the
// attempt limit.
type JobHandler func(ctx context.Context, job domain.Job) error

// JobService persists jobs through the driver and runs them on a bounded
// background pool. Claims are best-effort status flips; handlers must stay
// idempotent.
type JobService struct {
	driver   domain.Driver
	audit    *AuditEmitter
	logger   *zap.Logger
	handlers map[domain.JobType]JobHandler

	pollPeriod  time.Duration
	concurrency int

	mu      sync.Mutex
	tenants map[string]chan struct{}

	stopCh  chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

func NewJobService(d domain.Driver, audit *AuditEmitter, logger *zap.Logger) *JobService {
	return &JobService{
		driver:      d,
		audit:       audit,
		logger:      logger,
		handlers:    make(map[domain.JobType]JobHandler),
		pollPeriod:  defaultPollPeriod,
		concurrency: defaultConcurrency,
		tenants:     make(map[string]chan struct{}),
		stopCh:      make(chan struct{}),
	}
}

// RegisterHandler binds a handler to a job type. Must be called before Start.
func (j *JobService) RegisterHandler(t domain.JobType, h JobHandler) {
	j.handlers[t] = h
}

// SetPollPeriod overrides the queue poll interval, mainly for tests.
func (j *JobService) SetPollPeriod(d time.Duration) {
	if d > 0 {
		j.pollPeriod = d
	}
}

// SetConcurrency overrides the worker pool width.
func (j *JobService) SetConcurrency(n int) {
	if n > 0 {
		j.concurrency = n
	}
}

// Dispatch persists a job and enqueues its id. Returns the job id.
func (j *JobService) Dispatch(ctx context.Context, job domain.Job) (string, error) {
	if !domain.ValidJobType(string(job.Type)) {
		return "", fmt.Errorf("%w: unknown job type %q", domain.ErrInvalidInput, job.Type)
	}
	if job.Tenant == "" {
		return "", fmt.Errorf("%w: job tenant is required", domain.ErrInvalidInput)
	}

	job.ID = uuid.NewString()
	job.Status = domain.JobQueued
	job.CreatedAt = nowUnix()
	job.Attempts = 0

	if err := j.writeJob(ctx, &job); err != nil {
		return "", err
	}
	if q, ok := j.driver.(domain.QueueDriver); ok {
		if err := q.PushQueue(ctx, jobQueueName, job.ID); err != nil {
			return "", fmt.Errorf("enqueue job %s: %w", job.ID, err)
		}
	}
	return job.ID, nil
}

// Get loads a job by id.
func (j *JobService) Get(ctx context.Context, id string) (*domain.Job, error) {
	raw, err := j.driver.Read(ctx, domain.JobKey(id))
	if err != nil {
		return nil, fmt.Errorf("read job %s: %w", id, err)
	}
	var job domain.Job
	if err := unmarshal(raw, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (j *JobService) writeJob(ctx context.Context, job *domain.Job) error {
	raw, err := marshal(job)
	if err != nil {
		return err
	}
	meta := domain.WriteMeta{Tenant: job.Tenant, Type: "job"}
	if err := j.driver.Write(ctx, domain.JobKey(job.ID), raw, meta); err != nil {
		return fmt.Errorf("write job %s: %w", job.ID, err)
	}
	return nil
}

// Start launches the polling worker. Stop drains it.
func (j *JobService) Start() {
	j.wg.Add(1)
	go j.run()
}

// Stop signals the worker loop and waits for in-flight jobs to finish.
func (j *JobService) Stop() {
	j.stopped.Do(func() { close(j.stopCh) })
	j.wg.Wait()
}

func (j *JobService) run() {
	defer j.wg.Done()
	ticker := time.NewTicker(j.pollPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopCh:
			return
		case <-ticker.C:
			j.drainOnce()
		}
	}
}

// drainOnce claims and executes every currently queued job, bounded by the
// pool width globally and per tenant.
func (j *JobService) drainOnce() {
	ctx := context.Background()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)

	for {
		job, ok := j.nextQueued(ctx)
		if !ok {
			break
		}
		g.Go(func() error {
			j.execute(gctx, job)
			return nil
		})
	}
	_ = g.Wait()
}

// nextQueued pops from the native queue when the driver has one, otherwise
// scans the job namespace for the oldest queued job.
func (j *JobService) nextQueued(ctx context.Context) (*domain.Job, bool) {
	if q, ok := j.driver.(domain.QueueDriver); ok {
		id, err := q.PopQueue(ctx, jobQueueName)
		if err != nil {
			if !isNotFoundErr(err) {
				j.logger.Warn("queue pop failed", zap.Error(err))
			}
			return nil, false
		}
		job, err := j.Get(ctx, id)
		if err != nil {
			j.logger.Warn("queued job missing", zap.String("job_id", id), zap.Error(err))
			return nil, false
		}
		if job.Status != domain.JobQueued {
			return nil, false
		}
		return job, true
	}

	results, err := j.driver.Query(ctx, domain.QuerySpec{Pattern: domain.JobPattern})
	if err != nil {
		j.logger.Warn("job scan failed", zap.Error(err))
		return nil, false
	}
	var oldest *domain.Job
	for _, kv := range results {
		var job domain.Job
		if err := unmarshal(kv.Value, &job); err != nil {
			continue
		}
		if job.Status != domain.JobQueued {
			continue
		}
		if oldest == nil || job.CreatedAt < oldest.CreatedAt ||
			(job.CreatedAt == oldest.CreatedAt && job.ID < oldest.ID) {
			copied := job
			oldest = &copied
		}
	}
	if oldest == nil {
		return nil, false
	}
	// Claim by flipping status; a lost race means another worker already
	// runs it and the idempotent handler makes the duplicate harmless.
	oldest.Status = domain.JobRunning
	if err := j.writeJob(ctx, oldest); err != nil {
		j.logger.Warn("job claim failed", zap.String("job_id", oldest.ID), zap.Error(err))
		return nil, false
	}
	return oldest, true
}

func (j *JobService) tenantSlot(tenant string) chan struct{} {
	j.mu.Lock()
	defer j.mu.Unlock()
	slot, ok := j.tenants[tenant]
	if !ok {
		slot = make(chan struct{}, perTenantWorkers)
		j.tenants[tenant] = slot
	}
	return slot
}

func (j *JobService) execute(ctx context.Context, job *domain.Job) {
	slot := j.tenantSlot(job.Tenant)
	slot <- struct{}{}
	defer func() { <-slot }()

	handler, ok := j.handlers[job.Type]
	if !ok {
		j.logger.Error("no handler for job type", zap.String("type", string(job.Type)))
		job.Status = domain.JobFailed
		_ = j.writeJob(ctx, job)
		return
	}

	job.Status = domain.JobRunning
	job.Attempts++
	if err := j.writeJob(ctx, job); err != nil {
		j.logger.Warn("job status write failed", zap.String("job_id", job.ID), zap.Error(err))
	}

	err := handler(ctx, *job)
	switch {
	case err == nil:
		job.Status = domain.JobDone
	case job.Attempts >= domain.MaxJobAttempts:
		job.Status = domain.JobFailed
		j.logger.Error("job failed terminally",
			zap.String("job_id", job.ID), zap.Int("attempts", job.Attempts), zap.Error(err))
		if j.audit != nil {
			j.audit.Emit(ctx, job.Tenant, "job_failed", "jobs", map[string]any{
				"job_id":   job.ID,
				"type":     string(job.Type),
				"attempts": job.Attempts,
				"error":    err.Error(),
			})
		}
	default:
		job.Status = domain.JobQueued
		j.logger.Warn("job failed, requeued",
			zap.String("job_id", job.ID), zap.Int("attempts", job.Attempts), zap.Error(err))
		if q, ok := j.driver.(domain.QueueDriver); ok {
			if qerr := q.PushQueue(ctx, jobQueueName, job.ID); qerr != nil {
				j.logger.Warn("requeue failed", zap.String("job_id", job.ID), zap.Error(qerr))
			}
		}
	}
	if err := j.writeJob(ctx, job); err != nil {
		j.logger.Warn("job status write failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

// RunQueuedNow executes pending jobs synchronously, used by tests and by
// callers that want deterministic completion instead of waiting for a poll
// tick.
func (j *JobService) RunQueuedNow(ctx context.Context) {
	for {
		job, ok := j.nextQueued(ctx)
		if !ok {
			return
		}
		j.execute(ctx, job)
	}
}

var _ Dispatcher = (*JobService)(nil)
