package editor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goliatone/go-blocksync/internal/draft"
	"github.com/goliatone/go-blocksync/internal/logging"
	"github.com/goliatone/go-blocksync/internal/reconcile"
	"github.com/goliatone/go-blocksync/internal/syncerr"
	"github.com/goliatone/go-blocksync/pkg/interfaces"
	"github.com/google/uuid"
)

var (
	ErrSessionClosed   = errors.New("editor: session closed")
	ErrClientRequired  = errors.New("editor: sync client is required")
	ErrBlockIDRequired = errors.New("editor: block id is required")

	errSavePanicked = errors.New("editor: save aborted by panic")
)

// Result describes the draft after a save attempt.
type Result struct {
	Content    map[string]any
	Dirty      bool
	Suppressed bool
	AttemptID  string
}

// Snapshot is a diagnostic view of a Session.
type Snapshot struct {
	BlockID     uuid.UUID
	Phase       Phase
	State       SaveState
	Dirty       bool
	Saves       int
	Failures    int
	LastError   error
	LastSavedAt time.Time
}

// Session is the editing session of one block. It owns the draft store and
// arbitrates between debounced background saves, manual saves and teardown
// so that at most one save per block is in flight.
//
// Lock order is Session.mu then the store lock. Network calls never run
// under Session.mu.
type Session struct {
	blockID        uuid.UUID
	pageID         string
	client         interfaces.SyncClient
	store          *draft.Store
	policy         reconcile.Policy
	flusher        interfaces.Flusher
	logger         interfaces.Logger
	afterFunc      AfterFunc
	delay          time.Duration
	requestTimeout time.Duration
	onError        ErrorHandler
	now            func() time.Time
	attemptID      func() string
	baseCtx        context.Context

	mu          sync.Mutex
	phase       Phase
	timer       Timer
	generation  uint64
	lastErr     error
	saves       int
	failures    int
	lastSavedAt time.Time
}

// NewSession opens an editing session on blockID whose server content is
// initial. The session starts clean.
func NewSession(client interfaces.SyncClient, blockID uuid.UUID, initial map[string]any, opts ...Option) (*Session, error) {
	if client == nil {
		return nil, ErrClientRequired
	}
	if blockID == uuid.Nil {
		return nil, ErrBlockIDRequired
	}
	s := &Session{
		blockID:   blockID,
		client:    client,
		policy:    reconcile.DefaultPolicy(),
		logger:    logging.NoOp(),
		afterFunc: realAfterFunc,
		delay:     DefaultDebounceDelay,
		now:       time.Now,
		attemptID: newAttemptID,
		baseCtx:   context.Background(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.store = draft.NewStore(initial, draft.WithPolicy(s.policy))
	s.logger = logging.WithBlockContext(s.logger, blockID.String(), s.pageID, "")
	if s.flusher == nil {
		s.flusher = newDetachedFlusher(client, s.requestTimeout, s.logger)
	}
	return s, nil
}

// BlockID returns the block edited by the session.
func (s *Session) BlockID() uuid.UUID {
	return s.blockID
}

// Content returns a copy of the current draft.
func (s *Session) Content() map[string]any {
	return s.store.Read()
}

// LastSaved returns the content last confirmed persisted.
func (s *Session) LastSaved() map[string]any {
	return s.store.LastSaved()
}

// Dirty reports whether the draft differs from both baselines.
func (s *Session) Dirty() bool {
	return s.store.Dirty()
}

// Phase returns the current scheduling phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// State classifies the draft as clean, dirty or saving.
func (s *Session) State() SaveState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// LastError returns the failure of the most recent save, nil after a success.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Snapshot returns the diagnostic state of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		BlockID:     s.blockID,
		Phase:       s.phase,
		State:       s.stateLocked(),
		Dirty:       s.store.Dirty(),
		Saves:       s.saves,
		Failures:    s.failures,
		LastError:   s.lastErr,
		LastSavedAt: s.lastSavedAt,
	}
}

func (s *Session) stateLocked() SaveState {
	switch {
	case s.phase.inFlight():
		return SaveStateSaving
	case s.store.Dirty():
		return SaveStateDirty
	default:
		return SaveStateClean
	}
}

// Update merges partial into the draft and returns the merged content. A
// dirty draft re-arms the debounce. While a save is in flight the mutation is
// only stored; the save re-arms the debounce when it releases.
func (s *Session) Update(partial map[string]any) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase.closed() {
		return nil, ErrSessionClosed
	}
	content, dirty := s.store.Update(partial)
	switch {
	case s.phase.inFlight():
	case dirty:
		s.armLocked()
	case s.phase == PhasePending:
		s.cancelTimerLocked()
		s.phase = PhaseIdle
	}
	return content, nil
}

// Save persists the current draft now. A pending debounce is cancelled. If a
// save is already in flight the call is suppressed and returns a Result with
// Suppressed set and a nil error.
func (s *Session) Save(ctx context.Context) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.phase.closed() {
		s.mu.Unlock()
		return Result{}, ErrSessionClosed
	}
	if s.phase.inFlight() {
		phase := s.phase
		s.mu.Unlock()
		s.logger.Debug("editor.save.suppressed", "phase", phase.String(), "reason", syncerr.GuardConflict("manual save"))
		return Result{Content: s.store.Read(), Dirty: s.store.Dirty(), Suppressed: true}, nil
	}
	s.cancelTimerLocked()
	s.phase = PhaseManualSaving
	snapshot := s.store.Read()
	s.mu.Unlock()

	return s.run(ctx, snapshot, TriggerManual)
}

// Revert replaces the draft with the server baseline.
func (s *Session) Revert() (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase.closed() {
		return nil, ErrSessionClosed
	}
	server := s.store.Server()
	s.store.Replace(server)
	if s.phase == PhasePending {
		s.cancelTimerLocked()
		s.phase = PhaseIdle
	}
	s.logger.Info("editor.draft.reverted")
	return server, nil
}

// SetServerBaseline records content observed on the backend outside this
// session, for example by a page refresh. A clean idle draft follows the
// server; a dirty draft is kept and only its classification changes. It
// returns the resulting dirty flag.
func (s *Session) SetServerBaseline(content map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasDirty := s.store.Dirty()
	dirty := s.store.SetServer(content)
	if !wasDirty && s.phase == PhaseIdle {
		dirty = s.store.Replace(content)
	}
	if !dirty && s.phase == PhasePending {
		s.cancelTimerLocked()
		s.phase = PhaseIdle
	}
	return dirty
}

// Close ends the session. A pending debounce is cancelled and a dirty draft
// is handed to the Flusher. When a save is in flight the decision waits for
// it to release, so teardown never sends a second concurrent request and
// skips the flush when that save already persisted the latest draft. Close is
// idempotent and never blocks on the network.
func (s *Session) Close() error {
	s.mu.Lock()
	switch {
	case s.phase.closed():
		s.mu.Unlock()
		return nil
	case s.phase.inFlight():
		s.phase = PhaseClosing
		s.mu.Unlock()
		s.logger.Debug("editor.close.deferred")
		return nil
	}
	s.cancelTimerLocked()
	s.phase = PhaseClosed
	dirty := s.store.Dirty()
	content := s.store.Read()
	s.mu.Unlock()

	if dirty {
		s.flush(content)
	}
	return nil
}

func (s *Session) flush(content map[string]any) {
	s.logger.Info("editor.flush.requested")
	s.flusher.Flush(interfaces.FlushRequest{BlockID: s.blockID, Content: content})
}

func (s *Session) armLocked() {
	s.cancelTimerLocked()
	generation := s.generation
	s.phase = PhasePending
	s.timer = s.afterFunc(s.delay, func() { s.fire(generation) })
}

// cancelTimerLocked stops the armed timer. Bumping the generation makes a
// callback that already started ignore itself.
func (s *Session) cancelTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.generation++
}

func (s *Session) fire(generation uint64) {
	s.mu.Lock()
	if s.phase != PhasePending || generation != s.generation {
		phase := s.phase
		s.mu.Unlock()
		s.logger.Debug("editor.debounce.skipped", "phase", phase.String())
		return
	}
	s.timer = nil
	s.phase = PhaseSaving
	snapshot := s.store.Read()
	s.mu.Unlock()

	// Timer goroutines have no caller to unwind to; run already reported
	// errSavePanicked through release.
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("editor.save.panicked", "panic", r)
		}
	}()
	_, _ = s.run(s.baseCtx, snapshot, TriggerDebounce)
}

func (s *Session) run(ctx context.Context, snapshot map[string]any, trigger Trigger) (Result, error) {
	attemptID := s.attemptID()
	logger := logging.WithFields(s.logger, map[string]any{
		"attempt_id": attemptID,
		"trigger":    string(trigger),
	})
	logger.Debug("editor.save.start")
	started := s.now()

	completed := false
	defer func() {
		if !completed {
			s.release(snapshot, nil, errSavePanicked, trigger, logger)
		}
	}()
	saved, err := s.invoke(ctx, attemptID, snapshot)
	completed = true

	result, err := s.release(snapshot, saved, err, trigger, logger)
	result.AttemptID = attemptID
	if err == nil {
		logger.Info("editor.save.succeeded", "duration", s.now().Sub(started), "dirty", result.Dirty)
	}
	return result, err
}

func (s *Session) invoke(ctx context.Context, attemptID string, snapshot map[string]any) (*interfaces.Block, error) {
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}
	ctx = interfaces.ContextWithAttemptID(ctx, attemptID)
	ctx = logging.ContextWithFields(ctx, map[string]any{"attempt_id": attemptID})
	return s.client.Save(ctx, s.blockID, reconcile.CloneRecord(snapshot))
}

// release applies a save outcome and clears the in-flight phase. It is the
// only way out of PhaseSaving and PhaseManualSaving.
func (s *Session) release(snapshot map[string]any, saved *interfaces.Block, err error, trigger Trigger, logger interfaces.Logger) (Result, error) {
	malformed := syncerr.IsMalformedResponse(err)

	s.mu.Lock()
	closing := s.phase == PhaseClosing
	changed := !s.store.Matches(snapshot)
	if err == nil || malformed {
		baseline := snapshot
		if err == nil && saved != nil && saved.Content != nil {
			baseline = saved.Content
		}
		s.store.SetLastSaved(baseline)
		if !changed {
			s.store.Replace(baseline)
		}
		s.saves++
		s.lastSavedAt = s.now()
		s.lastErr = nil
	} else {
		s.failures++
		s.lastErr = err
	}

	dirty := s.store.Dirty()
	content := s.store.Read()
	flush := false
	switch {
	case closing:
		s.phase = PhaseClosed
		flush = dirty
	case changed && dirty:
		s.armLocked()
	default:
		s.phase = PhaseIdle
	}
	s.mu.Unlock()

	if malformed {
		logger.Warn("editor.save.malformed_response", "error", err)
		err = nil
	}
	if err != nil {
		logger.Warn("editor.save.failed", "error", err, "recoverable", syncerr.Recoverable(err))
		if trigger == TriggerDebounce && s.onError != nil {
			s.onError(s.blockID.String(), err)
		}
	}
	if flush {
		s.flush(content)
	}
	return Result{Content: content, Dirty: dirty}, err
}
