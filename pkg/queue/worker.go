package queue

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/carlosapgomes/triage-automation/pkg/config"
	"github.com/carlosapgomes/triage-automation/pkg/metrics"
	"github.com/carlosapgomes/triage-automation/pkg/models"
)

// retriableCauses are the spec §4.6 cause labels the worker treats as
// retriable; everything else (notably "fatal") is terminal immediately.
var retriableCauses = map[string]bool{
	"download": true, "extract": true, "llm1": true, "llm2": true,
	"chat_post": true, "parse": true, "db": true,
}

// HandlerError carries the cause label a step handler raises so the
// worker can classify retriable vs fatal without string-matching.
type HandlerError struct {
	Cause   string
	Details string
	Err     error
}

func (e *HandlerError) Error() string {
	if e.Err != nil {
		return e.Cause + ": " + e.Err.Error()
	}
	return e.Cause + ": " + e.Details
}

func (e *HandlerError) Unwrap() error { return e.Err }

// Retriable reports whether the worker should requeue with backoff
// rather than fail the job immediately.
func (e *HandlerError) Retriable() bool {
	if e.Cause == "fatal" {
		return false
	}
	return retriableCauses[e.Cause]
}

// Handler dispatches a leased Job by its JobType. Implemented by
// pkg/pipeline.Dispatcher; kept as an interface here so pkg/queue has no
// import-time dependency on the step handlers.
type Handler interface {
	Handle(ctx context.Context, job *models.Job) error
}

// WorkerStatus tracks whether a worker is currently leasing/processing
// a job or idle between polls.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// WorkerHealth is a health snapshot for one worker goroutine.
type WorkerHealth struct {
	ID            string       `json:"id"`
	Status        WorkerStatus `json:"status"`
	CurrentJobID  int64        `json:"current_job_id,omitempty"`
	JobsProcessed int          `json:"jobs_processed"`
	LastActivity  time.Time    `json:"last_activity"`
}

// OnJobFailed is invoked once a job reaches the terminal failed state,
// whether by exhausting retries or by an immediate fatal classification.
// pkg/pipeline wires this to move the case to FAILED and enqueue
// post_room1_final_failure (spec §4.6, §7 "FatalHandler(cause)") — kept
// as a callback here rather than a pipeline import so pkg/queue stays
// job-shape-agnostic.
type OnJobFailed func(ctx context.Context, job *models.Job, herr *HandlerError)

// Worker is a single queue worker: poll, lease, dispatch, acknowledge.
// At most one lease is held at a time per worker (spec §4.6).
type Worker struct {
	id       string
	store    *Store
	cfg      config.QueueConfig
	handler  Handler
	onFailed OnJobFailed

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu            sync.RWMutex
	status        WorkerStatus
	currentJobID  int64
	jobsProcessed int
	lastActivity  time.Time
}

// NewWorker constructs a Worker. onFailed may be nil.
func NewWorker(id string, store *Store, cfg config.QueueConfig, handler Handler, onFailed OnJobFailed) *Worker {
	return &Worker{
		id:           id,
		store:        store,
		cfg:          cfg,
		handler:      handler,
		onFailed:     onFailed,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for the loop to exit. Safe
// to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns a snapshot of this worker's state.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID: w.id, Status: w.status, CurrentJobID: w.currentJobID,
		JobsProcessed: w.jobsProcessed, LastActivity: w.lastActivity,
	}
}

// run is the main worker loop.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	log := slog.With("worker_id", w.id)
	log.Info("worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoJobAvailable) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("error leasing job", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

// sleep waits for the given duration or until stop is signalled.
func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess leases one job, dispatches it, and acknowledges the
// result. Errors from the store itself (not the handler) bubble up so
// the caller can distinguish "no work" from "lease failed".
func (w *Worker) pollAndProcess(ctx context.Context) error {
	job, err := w.store.Lease(ctx)
	if err != nil {
		return err
	}

	log := slog.With("job_id", job.ID, "job_type", job.JobType, "worker_id", w.id)
	w.setStatus(WorkerStatusWorking, job.ID)
	defer w.setStatus(WorkerStatusIdle, 0)

	err = w.handler.Handle(ctx, job)
	switch {
	case err == nil:
		if ackErr := w.store.AckSuccess(ctx, job.ID); ackErr != nil {
			log.Error("failed to ack success", "error", ackErr)
		}
		metrics.RecordJobOutcome(job.JobType, "success")
	default:
		var herr *HandlerError
		if !errors.As(err, &herr) {
			herr = &HandlerError{Cause: "fatal", Err: err}
		}
		if herr.Retriable() {
			terminal, ackErr := w.store.AckRetry(ctx, job.ID, herr.Cause, herr.Error())
			if ackErr != nil {
				log.Error("failed to ack retry", "error", ackErr)
				break
			}
			if terminal {
				log.Warn("job exhausted retries, marked failed", "cause", herr.Cause)
				metrics.RecordJobFailure(job.JobType, herr.Cause)
				if w.onFailed != nil {
					w.onFailed(ctx, job, herr)
				}
			} else {
				metrics.RecordJobOutcome(job.JobType, "retry")
			}
		} else {
			if ackErr := w.store.AckFatal(ctx, job.ID, herr.Cause, herr.Error()); ackErr != nil {
				log.Error("failed to ack fatal", "error", ackErr)
			} else {
				metrics.RecordJobFailure(job.JobType, herr.Cause)
				if w.onFailed != nil {
					w.onFailed(ctx, job, herr)
				}
			}
		}
	}

	w.mu.Lock()
	w.jobsProcessed++
	w.mu.Unlock()
	return nil
}

// pollInterval returns the poll duration with jitter applied, in the
// range [base-jitter, base+jitter].
func (w *Worker) pollInterval() time.Duration {
	base := w.cfg.PollInterval
	jitter := w.cfg.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}

// setStatus updates the worker's health tracking state.
func (w *Worker) setStatus(status WorkerStatus, jobID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentJobID = jobID
	w.lastActivity = time.Now()
}

// Pool supervises a fixed set of Workers through a Start/Stop/Health
// lifecycle. Jobs here have no API-triggered cancel path, so there is
// no cancellation registration to manage.
type Pool struct {
	workers []*Worker
}

// NewPool constructs a Pool of cfg.WorkerCount workers sharing one
// Store and Handler. onFailed may be nil.
func NewPool(store *Store, cfg config.QueueConfig, handler Handler, onFailed OnJobFailed) *Pool {
	workers := make([]*Worker, 0, cfg.WorkerCount)
	for i := 0; i < cfg.WorkerCount; i++ {
		workers = append(workers, NewWorker("worker-"+strconv.Itoa(i), store, cfg, handler, onFailed))
	}
	return &Pool{workers: workers}
}

// Start boots every worker in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		w.Start(ctx)
	}
}

// Stop gracefully stops every worker, waiting for in-flight jobs to
// finish their current Handle call.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		w.Stop()
	}
}

// Health returns a snapshot for every worker in the pool.
func (p *Pool) Health() []WorkerHealth {
	out := make([]WorkerHealth, 0, len(p.workers))
	for _, w := range p.workers {
		out = append(out, w.Health())
	}
	return out
}
