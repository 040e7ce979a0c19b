package interfaces

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrJobNotFound reports missing jobs when looking them up by ID or key.
	ErrJobNotFound = errors.New("outbox: job not found")
)

// JobQueue stores deferred deliveries such as teardown flushes until a worker
// sends them.
type JobQueue interface {
	// Enqueue registers a job. If a job with the same key is still pending it is
	// replaced, so the newest payload for a key wins.
	Enqueue(ctx context.Context, spec JobSpec) (*Job, error)
	// CancelByKey cancels the pending job associated to the supplied key.
	CancelByKey(ctx context.Context, key string) error
	// GetByKey returns the stored job that matches the supplied key.
	GetByKey(ctx context.Context, key string) (*Job, error)
	// ListDue returns pending jobs scheduled to run at or before the supplied instant.
	ListDue(ctx context.Context, until time.Time, limit int) ([]*Job, error)
	// Pending reports how many jobs are still waiting for delivery.
	Pending(ctx context.Context) (int, error)
	// MarkDone marks the job as delivered.
	MarkDone(ctx context.Context, id string) error
	// MarkFailed updates the job after a failed attempt.
	MarkFailed(ctx context.Context, id string, err error) error
	// MarkCanceled retires the job without further attempts. A newer job that
	// took over its key is left untouched.
	MarkCanceled(ctx context.Context, id string, err error) error
}

// JobStatus describes the lifecycle of a queued job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusCompleted JobStatus = "completed"
	JobStatusCanceled  JobStatus = "canceled"
	JobStatusFailed    JobStatus = "failed"
)

// JobSpec captures the required information to enqueue a job.
type JobSpec struct {
	// Key uniquely identifies the job so that new requests replace pending entries.
	Key string
	// Type describes the action to perform (e.g. blocksync.block.flush).
	Type string
	// RunAt specifies when the job should execute. Zero means now.
	RunAt time.Time
	// Payload carries the data required by the worker.
	Payload map[string]any
	// MaxAttempts limits retries when delivery fails. Zero uses the queue default.
	MaxAttempts int
}

// Job represents a stored job entry with metadata managed by the queue.
type Job struct {
	JobSpec
	ID        string
	Attempt   int
	LastError string
	Status    JobStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
