// Package queue implements the durable job queue (C4): enqueue, lease
// with FOR UPDATE SKIP LOCKED, and success/retry/fatal acknowledgement
// with exponential backoff. A single generic job_type row serves every
// pipeline step (C6/C7) rather than one table per step.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"

	"github.com/carlosapgomes/triage-automation/pkg/config"
	"github.com/carlosapgomes/triage-automation/pkg/metrics"
	"github.com/carlosapgomes/triage-automation/pkg/models"
)

// ErrNoJobAvailable is returned by Lease when no queued job is ready.
var ErrNoJobAvailable = errors.New("no job available")

// Store is the job queue repository.
type Store struct {
	db     *sqlx.DB
	queue  config.QueueConfig
}

// NewStore constructs a Store over a *sqlx.DB.
func NewStore(db *sqlx.DB, queueCfg config.QueueConfig) *Store {
	return &Store{db: db, queue: queueCfg}
}

// Enqueue inserts a new job in StatusQueued, ready to run at runAfter
// (defaults to now when zero).
func (s *Store) Enqueue(ctx context.Context, caseID *string, jobType string, payload any, runAfter time.Time) (*models.Job, error) {
	if runAfter.IsZero() {
		runAfter = time.Now().UTC()
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}
	now := time.Now().UTC()
	var id int64
	err = s.db.QueryRowxContext(ctx, `
		INSERT INTO jobs (case_id, job_type, payload, status, attempts, run_after, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6, $6)
		RETURNING id`,
		caseID, jobType, raw, models.JobQueued, runAfter, now).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	return &models.Job{
		ID: id, CaseID: caseID, JobType: jobType, Payload: raw,
		Status: models.JobQueued, RunAfter: runAfter, CreatedAt: now, UpdatedAt: now,
	}, nil
}

// Lease atomically claims the oldest ready job (status=queued,
// run_after<=now), ordered FIFO, taking a row lock via FOR UPDATE SKIP
// LOCKED so concurrent workers never double-claim. Returns
// ErrNoJobAvailable when nothing is ready.
func (s *Store) Lease(ctx context.Context) (*models.Job, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin lease tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var job models.Job
	err = tx.GetContext(ctx, &job, `
		SELECT * FROM jobs
		WHERE status = $1 AND run_after <= $2
		ORDER BY id ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`,
		models.JobQueued, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoJobAvailable
		}
		return nil, fmt.Errorf("lease query: %w", err)
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `UPDATE jobs SET status = $1, updated_at = $2 WHERE id = $3`,
		models.JobRunning, now, job.ID)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit lease: %w", err)
	}
	job.Status = models.JobRunning
	job.UpdatedAt = now
	return &job, nil
}

// AckSuccess transitions a leased job running -> done.
func (s *Store) AckSuccess(ctx context.Context, jobID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE jobs SET status = $1, updated_at = $2 WHERE id = $3`,
		models.JobDone, time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("ack success: %w", err)
	}
	return nil
}

// AckRetry transitions running -> queued (or -> failed once the bumped
// attempts count reaches MaxAttempts), bumping attempts and scheduling run_after via
// exponential backoff. Returns true if the job moved to the terminal
// failed state so the caller can enqueue the post_room1_final_failure
// follow-up job.
func (s *Store) AckRetry(ctx context.Context, jobID int64, cause, details string) (terminalFailure bool, err error) {
	var attempts int
	if err := s.db.GetContext(ctx, &attempts, `SELECT attempts FROM jobs WHERE id = $1`, jobID); err != nil {
		return false, fmt.Errorf("read attempts: %w", err)
	}
	attempts++
	lastError := fmt.Sprintf("%s:%s", cause, details)

	if attempts >= s.queue.MaxAttempts {
		_, err := s.db.ExecContext(ctx, `
			UPDATE jobs SET status = $1, attempts = $2, last_error = $3, updated_at = $4 WHERE id = $5`,
			models.JobFailed, attempts, lastError, time.Now().UTC(), jobID)
		if err != nil {
			return false, fmt.Errorf("ack retry -> failed: %w", err)
		}
		return true, nil
	}

	delay := computeBackoff(s.queue, attempts)
	_, err = s.db.ExecContext(ctx, `
		UPDATE jobs SET status = $1, attempts = $2, run_after = $3, last_error = $4, updated_at = $5
		WHERE id = $6`,
		models.JobQueued, attempts, time.Now().UTC().Add(delay), lastError, time.Now().UTC(), jobID)
	if err != nil {
		return false, fmt.Errorf("ack retry -> queued: %w", err)
	}
	return false, nil
}

// AckFatal transitions running -> failed immediately, with no further
// retry regardless of attempts remaining.
func (s *Store) AckFatal(ctx context.Context, jobID int64, cause, details string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = $1, last_error = $2, updated_at = $3 WHERE id = $4`,
		models.JobFailed, fmt.Sprintf("%s:%s", cause, details), time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("ack fatal: %w", err)
	}
	return nil
}

// ReconcileOrphanedLeases runs at process boot: any job left `running`
// from a prior process (crash, kill -9) is requeued so it is retried.
// This is the at-least-once delivery pillar described in spec §4.4 —
// there is no explicit lease deadline because this reconciliation makes
// leases self-healing on the next boot.
func (s *Store) ReconcileOrphanedLeases(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET status = $1, updated_at = $2 WHERE status = $3`,
		models.JobQueued, time.Now().UTC(), models.JobRunning)
	if err != nil {
		return 0, fmt.Errorf("reconcile orphaned leases: %w", err)
	}
	return res.RowsAffected()
}

// CountByStatus returns the number of jobs in each of the four
// lifecycle statuses, used by the queue-depth metrics sampler.
func (s *Store) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT status, count(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs by status: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{
		string(models.JobQueued): 0, string(models.JobRunning): 0,
		string(models.JobDone): 0, string(models.JobFailed): 0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan job status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// RunDepthSampler polls CountByStatus on a ticker and publishes the
// results as the triage_queue_depth gauge, until ctx is cancelled.
// Intended to run in its own goroutine from the worker binary's
// composition root.
func (s *Store) RunDepthSampler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			counts, err := s.CountByStatus(ctx)
			if err != nil {
				continue
			}
			for status, count := range counts {
				metrics.SetQueueDepth(status, float64(count))
			}
		}
	}
}

// computeBackoff returns the delay before the nth retry, exponential
// with a floor and cap (spec §4.4: "2^attempts seconds, bounded").
func computeBackoff(cfg config.QueueConfig, attempts int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.BackoffFloor
	b.MaxInterval = cfg.BackoffCap
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	var delay time.Duration
	for i := 0; i < attempts; i++ {
		delay = b.NextBackOff()
		if delay == backoff.Stop {
			return cfg.BackoffCap
		}
	}
	if delay > cfg.BackoffCap {
		return cfg.BackoffCap
	}
	return delay
}
