package config

import "time"

// QueueConfig contains job queue and worker pool configuration. These
// values control how jobs in the case-lifecycle job queue (C4) are
// polled, leased, and retried.
type QueueConfig struct {
	// WorkerCount is the number of worker goroutines per worker process.
	// Each worker independently polls and leases jobs.
	WorkerCount int

	// PollInterval is the base interval for checking for ready jobs.
	PollInterval time.Duration

	// PollIntervalJitter is the random jitter added to PollInterval.
	// Actual interval: PollInterval ± PollIntervalJitter.
	PollIntervalJitter time.Duration

	// MaxAttempts is the attempts count at which a retriable failure
	// moves a job to the terminal failed state instead of requeueing it,
	// so a job is requeued at most MaxAttempts-1 times (spec §4.4).
	MaxAttempts int

	// BackoffFloor is the minimum backoff delay after the first failure.
	BackoffFloor time.Duration

	// BackoffCap bounds the exponential backoff delay.
	BackoffCap time.Duration

	// GracefulShutdownTimeout is the max time to wait for the current job
	// to finish during shutdown.
	GracefulShutdownTimeout time.Duration
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		WorkerCount:             3,
		PollInterval:            1 * time.Second,
		PollIntervalJitter:      300 * time.Millisecond,
		MaxAttempts:             8,
		BackoffFloor:            2 * time.Second,
		BackoffCap:              5 * time.Minute,
		GracefulShutdownTimeout: 30 * time.Second,
	}
}
