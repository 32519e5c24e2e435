// Package worker runs recommendation requests in the background.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ewilliams-labs/fetchify/internal/core/domain"
	"github.com/ewilliams-labs/fetchify/internal/core/ports"
	"github.com/ewilliams-labs/fetchify/internal/logging"
	"github.com/ewilliams-labs/fetchify/internal/metrics"
)

var (
	// ErrQueueFull is returned by Submit when no queue slot is free.
	ErrQueueFull = errors.New("worker: queue full")
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("worker: pool stopped")
	// ErrUnknownJob is returned for ids the pool never issued or already forgot.
	ErrUnknownJob = errors.New("worker: unknown job")
)

// Status is the lifecycle position of a job.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusRunning  Status = "running"
	StatusDone     Status = "done"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Terminal reports whether s is a final status.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusCanceled
}

// Recommender is the engine a job runs against.
type Recommender interface {
	Recommend(ctx context.Context, catalog ports.CatalogProvider, q domain.Query) (domain.Result, error)
}

// Job is one recommendation request bound to the caller's catalog client.
type Job struct {
	Catalog ports.CatalogProvider
	Query   domain.Query
	// CorrelationID is carried into the job's logs.
	CorrelationID string
}

// Snapshot is a point-in-time copy of a job's state.
type Snapshot struct {
	ID          string         `json:"id"`
	Status      Status         `json:"status"`
	Mode        domain.Mode    `json:"mode"`
	Result      *domain.Result `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	SubmittedAt time.Time      `json:"submitted_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
}

type entry struct {
	id     string
	job    Job
	ctx    context.Context
	cancel context.CancelFunc
	snap   Snapshot
}

// Config sizes a Pool.
type Config struct {
	Workers   int
	QueueSize int
	// Retention is how long finished jobs stay readable. Zero keeps them for 10 minutes.
	Retention time.Duration
}

// Pool manages background workers for async recommendation jobs.
type Pool struct {
	rec       Recommender
	jobs      chan *entry
	retention time.Duration
	now       func() time.Time

	base   context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	byID   map[string]*entry
	closed bool
}

// NewPool creates a pool and starts its workers.
func NewPool(rec Recommender, cfg Config) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 10 * time.Minute
	}
	base, stop := context.WithCancel(context.Background())
	p := &Pool{
		rec:       rec,
		jobs:      make(chan *entry, cfg.QueueSize),
		retention: cfg.Retention,
		now:       time.Now,
		base:      base,
		stop:      stop,
		byID:      make(map[string]*entry),
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for e := range p.jobs {
				p.process(e)
			}
		}()
	}
	return p
}

// Submit queues a job without blocking and returns its id.
func (p *Pool) Submit(job Job) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", ErrStopped
	}
	p.prune()

	ctx, cancel := context.WithCancel(p.base)
	if job.CorrelationID != "" {
		ctx = logging.ContextWithCorrelationID(ctx, job.CorrelationID)
	}
	e := &entry{
		id:     uuid.NewString(),
		job:    job,
		ctx:    ctx,
		cancel: cancel,
		snap: Snapshot{
			Status:      StatusQueued,
			Mode:        job.Query.Mode,
			SubmittedAt: p.now(),
		},
	}
	e.snap.ID = e.id

	select {
	case p.jobs <- e:
	default:
		cancel()
		logging.Ctx(ctx).Warn().Msg("job queue full, rejecting")
		return "", ErrQueueFull
	}
	p.byID[e.id] = e
	metrics.JobsInFlight.Inc()
	return e.id, nil
}

// Get returns a snapshot of the job.
func (p *Pool) Get(id string) (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.byID[id]
	if !ok {
		return Snapshot{}, ErrUnknownJob
	}
	return e.snap, nil
}

// Cancel cancels the job's context. A queued job never runs; a running job stops at its
// next cancellation check. Canceling a finished job is a no-op.
func (p *Pool) Cancel(id string) (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.byID[id]
	if !ok {
		return Snapshot{}, ErrUnknownJob
	}
	if !e.snap.Status.Terminal() {
		e.cancel()
		if e.snap.Status == StatusQueued {
			p.finish(e, StatusCanceled, nil, context.Canceled)
		}
	}
	return e.snap, nil
}

// Stop cancels every pending job and waits for the workers to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.stop()
	p.wg.Wait()
}

func (p *Pool) process(e *entry) {
	log := logging.Ctx(e.ctx).With().Str("job_id", e.id).Logger()

	p.mu.Lock()
	if e.snap.Status.Terminal() {
		p.mu.Unlock()
		return
	}
	if e.ctx.Err() != nil {
		p.finish(e, StatusCanceled, nil, e.ctx.Err())
		p.mu.Unlock()
		return
	}
	started := p.now()
	e.snap.Status = StatusRunning
	e.snap.StartedAt = &started
	p.mu.Unlock()

	log.Info().Str("mode", string(e.job.Query.Mode)).Msg("job started")
	res, err := p.rec.Recommend(e.ctx, e.job.Catalog, e.job.Query)

	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case err == nil:
		p.finish(e, StatusDone, &res, nil)
		log.Info().Int("items", len(res.Items)).Str("miss", res.Miss).Msg("job done")
	case errors.Is(err, context.Canceled):
		p.finish(e, StatusCanceled, nil, err)
		log.Info().Msg("job canceled")
	default:
		p.finish(e, StatusFailed, nil, err)
		log.Warn().Err(err).Msg("job failed")
	}
}

// finish must be called with p.mu held.
func (p *Pool) finish(e *entry, status Status, res *domain.Result, err error) {
	if e.snap.Status.Terminal() {
		return
	}
	now := p.now()
	e.snap.Status = status
	e.snap.Result = res
	e.snap.FinishedAt = &now
	if err != nil {
		e.snap.Error = err.Error()
	}
	e.cancel()
	metrics.JobsInFlight.Dec()
}

// prune drops finished jobs older than the retention window. Called with p.mu held.
func (p *Pool) prune() {
	cutoff := p.now().Add(-p.retention)
	for id, e := range p.byID {
		if e.snap.FinishedAt != nil && e.snap.FinishedAt.Before(cutoff) {
			delete(p.byID, id)
		}
	}
}
