package outbox

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-blocksync/internal/reconcile"
	"github.com/goliatone/go-blocksync/pkg/interfaces"
	"github.com/oklog/ulid/v2"
)

const defaultMaxAttempts = 3

// NewMemoryQueue creates an in-process job queue. Jobs live as long as the
// process, which outlives every editing session that enqueues into it.
func NewMemoryQueue(opts ...QueueOption) interfaces.JobQueue {
	q := &memoryQueue{
		now:        time.Now,
		id:         func() string { return ulid.Make().String() },
		jobs:       make(map[string]*interfaces.Job),
		keys:       make(map[string]string),
		maxAttempt: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// QueueOption customises the in-memory queue.
type QueueOption func(*memoryQueue)

// WithQueueClock overrides the queue clock, used mainly for tests.
func WithQueueClock(clock func() time.Time) QueueOption {
	return func(q *memoryQueue) {
		if clock != nil {
			q.now = clock
		}
	}
}

// WithJobIDGenerator overrides the ULID generator used for job identifiers.
func WithJobIDGenerator(generator func() string) QueueOption {
	return func(q *memoryQueue) {
		if generator != nil {
			q.id = generator
		}
	}
}

// WithDefaultMaxAttempts sets the attempt limit applied when a JobSpec leaves it unset.
func WithDefaultMaxAttempts(limit int) QueueOption {
	return func(q *memoryQueue) {
		if limit > 0 {
			q.maxAttempt = limit
		}
	}
}

type memoryQueue struct {
	mu         sync.Mutex
	now        func() time.Time
	id         func() string
	maxAttempt int
	jobs       map[string]*interfaces.Job
	keys       map[string]string
}

func (q *memoryQueue) Enqueue(_ context.Context, spec interfaces.JobSpec) (*interfaces.Job, error) {
	if spec.Type == "" {
		return nil, ErrJobTypeRequired
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	job := &interfaces.Job{
		JobSpec: interfaces.JobSpec{
			Key:         spec.Key,
			Type:        spec.Type,
			RunAt:       spec.RunAt,
			Payload:     reconcile.CloneRecord(spec.Payload),
			MaxAttempts: spec.MaxAttempts,
		},
		ID:        q.id(),
		Status:    interfaces.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if job.RunAt.IsZero() {
		job.RunAt = now
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = q.maxAttempt
	}

	if job.Key != "" {
		if previous, ok := q.keys[job.Key]; ok {
			delete(q.jobs, previous)
		}
		q.keys[job.Key] = job.ID
	}
	q.jobs[job.ID] = job

	return cloneJob(job), nil
}

func (q *memoryQueue) CancelByKey(_ context.Context, key string) error {
	if key == "" {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	id, ok := q.keys[key]
	if !ok {
		return interfaces.ErrJobNotFound
	}
	job := q.jobs[id]
	if job == nil {
		return interfaces.ErrJobNotFound
	}
	job.Status = interfaces.JobStatusCanceled
	job.UpdatedAt = q.now()
	delete(q.keys, key)
	return nil
}

func (q *memoryQueue) GetByKey(_ context.Context, key string) (*interfaces.Job, error) {
	if key == "" {
		return nil, interfaces.ErrJobNotFound
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	id, ok := q.keys[key]
	if !ok {
		return nil, interfaces.ErrJobNotFound
	}
	job, ok := q.jobs[id]
	if !ok {
		return nil, interfaces.ErrJobNotFound
	}
	return cloneJob(job), nil
}

func (q *memoryQueue) ListDue(_ context.Context, until time.Time, limit int) ([]*interfaces.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	due := make([]*interfaces.Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		if job.Status != interfaces.JobStatusPending || job.RunAt.After(until) {
			continue
		}
		due = append(due, cloneJob(job))
	}
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].RunAt.Equal(due[j].RunAt) {
			return due[i].CreatedAt.Before(due[j].CreatedAt)
		}
		return due[i].RunAt.Before(due[j].RunAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (q *memoryQueue) Pending(context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	count := 0
	for _, job := range q.jobs {
		if job.Status == interfaces.JobStatusPending {
			count++
		}
	}
	return count, nil
}

func (q *memoryQueue) MarkDone(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return interfaces.ErrJobNotFound
	}
	job.Status = interfaces.JobStatusCompleted
	job.UpdatedAt = q.now()
	q.releaseKey(job)
	return nil
}

func (q *memoryQueue) MarkFailed(_ context.Context, id string, failure error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return interfaces.ErrJobNotFound
	}
	job.Attempt++
	job.UpdatedAt = q.now()
	job.LastError = ""
	if failure != nil {
		job.LastError = failure.Error()
	}
	if job.MaxAttempts > 0 && job.Attempt >= job.MaxAttempts {
		job.Status = interfaces.JobStatusFailed
		q.releaseKey(job)
		return nil
	}
	job.Status = interfaces.JobStatusPending
	return nil
}

func (q *memoryQueue) MarkCanceled(_ context.Context, id string, reason error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return interfaces.ErrJobNotFound
	}
	job.Attempt++
	job.Status = interfaces.JobStatusCanceled
	job.UpdatedAt = q.now()
	job.LastError = ""
	if reason != nil {
		job.LastError = reason.Error()
	}
	q.releaseKey(job)
	return nil
}

// releaseKey frees the key slot once a job reached a terminal state, only if
// the slot still points at that job.
func (q *memoryQueue) releaseKey(job *interfaces.Job) {
	if job.Key == "" {
		return
	}
	if current, ok := q.keys[job.Key]; ok && current == job.ID {
		delete(q.keys, job.Key)
	}
}

func cloneJob(job *interfaces.Job) *interfaces.Job {
	if job == nil {
		return nil
	}
	clone := *job
	clone.Payload = reconcile.CloneRecord(job.Payload)
	return &clone
}
