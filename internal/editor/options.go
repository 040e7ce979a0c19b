package editor

import (
	"context"
	"time"

	"github.com/goliatone/go-blocksync/internal/reconcile"
	"github.com/goliatone/go-blocksync/pkg/interfaces"
	"github.com/oklog/ulid/v2"
)

// DefaultDebounceDelay is the quiet period after the last mutation before a
// background save starts.
const DefaultDebounceDelay = 300 * time.Millisecond

// Timer is the handle of an armed debounce.
type Timer interface {
	Stop() bool
}

// AfterFunc arms f to run once after d. time.AfterFunc satisfies it through
// an adapter; tests inject a manual clock.
type AfterFunc func(d time.Duration, f func()) Timer

// ErrorHandler receives failures of background saves, which have no caller
// to return them to.
type ErrorHandler func(blockID string, err error)

// Option configures a Session.
type Option func(*Session)

// WithDebounceDelay overrides DefaultDebounceDelay.
func WithDebounceDelay(delay time.Duration) Option {
	return func(s *Session) {
		if delay > 0 {
			s.delay = delay
		}
	}
}

// WithRequestTimeout bounds each save request. Zero leaves the request
// unbounded.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(s *Session) {
		if timeout >= 0 {
			s.requestTimeout = timeout
		}
	}
}

// WithAfterFunc replaces the timer implementation.
func WithAfterFunc(fn AfterFunc) Option {
	return func(s *Session) {
		if fn != nil {
			s.afterFunc = fn
		}
	}
}

// WithFlusher sets the transport used for the teardown flush.
func WithFlusher(flusher interfaces.Flusher) Option {
	return func(s *Session) {
		if flusher != nil {
			s.flusher = flusher
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithErrorHandler registers a callback for background save failures.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(s *Session) {
		s.onError = handler
	}
}

// WithPolicy sets the merge policy of the session draft.
func WithPolicy(policy reconcile.Policy) Option {
	return func(s *Session) {
		s.policy = policy
	}
}

// WithClock overrides the clock used for diagnostics.
func WithClock(clock func() time.Time) Option {
	return func(s *Session) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithContext sets the parent context of background saves. Cancellation of
// ctx is ignored so a save in flight is never aborted by the engine.
func WithContext(ctx context.Context) Option {
	return func(s *Session) {
		if ctx != nil {
			s.baseCtx = context.WithoutCancel(ctx)
		}
	}
}

// WithAttemptIDGenerator overrides the ULID generator for save attempt ids.
func WithAttemptIDGenerator(generator func() string) Option {
	return func(s *Session) {
		if generator != nil {
			s.attemptID = generator
		}
	}
}

// WithPageID records the page the block belongs to, for logging.
func WithPageID(pageID string) Option {
	return func(s *Session) {
		s.pageID = pageID
	}
}

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func newAttemptID() string {
	return ulid.Make().String()
}
