package outbox

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/goliatone/go-blocksync/internal/logging"
	"github.com/goliatone/go-blocksync/internal/syncerr"
	"github.com/goliatone/go-blocksync/pkg/interfaces"
)

const (
	defaultBatchSize     = 50
	defaultSendTimeout   = 5 * time.Second
	defaultRetryInterval = time.Second
)

// Outbox delivers teardown flushes on behalf of editing sessions that no
// longer exist. Flush only enqueues; a worker started with Start or Run (or a
// final Drain) performs the network calls with a context owned by the
// process rather than the session.
type Outbox struct {
	queue         interfaces.JobQueue
	client        interfaces.SyncClient
	logger        interfaces.Logger
	now           func() time.Time
	batchSize     int
	maxAttempts   int
	sendTimeout   time.Duration
	retryInterval time.Duration
	wake          chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var _ interfaces.Flusher = (*Outbox)(nil)

// Option configures an Outbox.
type Option func(*Outbox)

// WithQueue replaces the default in-memory queue.
func WithQueue(queue interfaces.JobQueue) Option {
	return func(o *Outbox) {
		if queue != nil {
			o.queue = queue
		}
	}
}

// WithLogger sets the logger used for delivery events.
func WithLogger(logger interfaces.Logger) Option {
	return func(o *Outbox) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the clock used to select due jobs.
func WithClock(clock func() time.Time) Option {
	return func(o *Outbox) {
		if clock != nil {
			o.now = clock
		}
	}
}

// WithBatchSize limits how many jobs a single Process call delivers.
func WithBatchSize(size int) Option {
	return func(o *Outbox) {
		if size > 0 {
			o.batchSize = size
		}
	}
}

// WithMaxAttempts sets the attempt limit for each flush.
func WithMaxAttempts(limit int) Option {
	return func(o *Outbox) {
		if limit > 0 {
			o.maxAttempts = limit
		}
	}
}

// WithSendTimeout bounds each delivery request.
func WithSendTimeout(timeout time.Duration) Option {
	return func(o *Outbox) {
		if timeout > 0 {
			o.sendTimeout = timeout
		}
	}
}

// WithRetryInterval sets how long the worker waits before retrying failed jobs.
func WithRetryInterval(interval time.Duration) Option {
	return func(o *Outbox) {
		if interval > 0 {
			o.retryInterval = interval
		}
	}
}

// New builds an Outbox delivering through client.
func New(client interfaces.SyncClient, opts ...Option) (*Outbox, error) {
	if client == nil {
		return nil, ErrClientRequired
	}
	o := &Outbox{
		client:        client,
		logger:        logging.NoOp(),
		now:           time.Now,
		batchSize:     defaultBatchSize,
		maxAttempts:   defaultMaxAttempts,
		sendTimeout:   defaultSendTimeout,
		retryInterval: defaultRetryInterval,
		wake:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.queue == nil {
		o.queue = NewMemoryQueue(WithQueueClock(o.now))
	}
	return o, nil
}

// Flush implements interfaces.Flusher. It never blocks on the network.
func (o *Outbox) Flush(req interfaces.FlushRequest) {
	if req.Content == nil {
		req.Content = map[string]any{}
	}
	job, err := o.queue.Enqueue(context.Background(), interfaces.JobSpec{
		Key:         FlushJobKey(req.BlockID),
		Type:        JobTypeBlockFlush,
		Payload:     flushPayload(req),
		MaxAttempts: o.maxAttempts,
	})
	if err != nil {
		o.logger.Error("outbox.flush.enqueue_failed", "block_id", req.BlockID, "error", err)
		return
	}
	o.logger.Debug("outbox.flush.enqueued", "block_id", req.BlockID, "job_id", job.ID)

	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// Pending reports how many flushes still wait for delivery.
func (o *Outbox) Pending(ctx context.Context) (int, error) {
	return o.queue.Pending(ctx)
}

// Process delivers the jobs that are due and returns how many were sent.
func (o *Outbox) Process(ctx context.Context) (int, error) {
	jobs, err := o.queue.ListDue(ctx, o.now(), o.batchSize)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, job := range jobs {
		if job == nil {
			continue
		}
		err := o.deliver(ctx, job)
		switch {
		case err == nil:
			_ = o.queue.MarkDone(ctx, job.ID)
			sent++
			o.logger.Info("outbox.flush.sent", "job_id", job.ID, "key", job.Key, "attempt", job.Attempt+1)
		case permanent(err):
			if cancelErr := o.queue.MarkCanceled(ctx, job.ID, err); cancelErr != nil && !errors.Is(cancelErr, interfaces.ErrJobNotFound) {
				o.logger.Warn("outbox.flush.cancel_failed", "job_id", job.ID, "error", cancelErr)
			}
			o.logger.Warn("outbox.flush.dropped", "job_id", job.ID, "key", job.Key, "error", err)
		default:
			_ = o.queue.MarkFailed(ctx, job.ID, err)
			o.logger.Warn("outbox.flush.failed", "job_id", job.ID, "key", job.Key, "attempt", job.Attempt+1, "error", err)
		}
	}
	return sent, nil
}

func (o *Outbox) deliver(ctx context.Context, job *interfaces.Job) error {
	if job.Type != JobTypeBlockFlush {
		return ErrUnknownJobType
	}
	req, err := parseFlushPayload(job.Payload)
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, o.sendTimeout)
	defer cancel()
	sendCtx = interfaces.ContextWithAttemptID(sendCtx, job.ID)

	_, err = o.client.Save(sendCtx, req.BlockID, req.Content)
	if syncerr.IsMalformedResponse(err) {
		// The write reached the backend; only its echo was unreadable.
		return nil
	}
	return err
}

// permanent reports failures that a retry cannot fix.
func permanent(err error) bool {
	if errors.Is(err, ErrInvalidPayload) || errors.Is(err, ErrUnknownJobType) {
		return true
	}
	status := syncerr.Status(err)
	return status >= http.StatusBadRequest && status < http.StatusInternalServerError
}

// Run processes jobs whenever a flush is enqueued and retries failed ones on
// the retry interval, until ctx is done.
func (o *Outbox) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.wake:
		case <-ticker.C:
		}
		if _, err := o.Process(ctx); err != nil {
			o.logger.Error("outbox.process.failed", "error", err)
		}
	}
}

// Start runs the worker on its own goroutine with a context detached from
// parent cancellation. Stop ends it.
func (o *Outbox) Start(parent context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		return
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	done := make(chan struct{})
	o.cancel, o.done = cancel, done
	go func() {
		defer close(done)
		_ = o.Run(ctx)
	}()
}

// Stop ends a worker started with Start and waits for it to return.
func (o *Outbox) Stop() {
	o.mu.Lock()
	cancel, done := o.cancel, o.done
	o.cancel, o.done = nil, nil
	o.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Drain delivers pending flushes until none remain or ctx is done. Failed
// jobs are retried on the retry interval until they exhaust their attempts.
func (o *Outbox) Drain(ctx context.Context) error {
	for {
		if _, err := o.Process(ctx); err != nil {
			return err
		}
		pending, err := o.queue.Pending(ctx)
		if err != nil {
			return err
		}
		if pending == 0 {
			return nil
		}
		timer := time.NewTimer(o.retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
