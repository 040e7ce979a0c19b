// Package filewatch turns edits of a JSON file into draft mutations.
package filewatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/goliatone/go-blocksync/internal/logging"
	"github.com/goliatone/go-blocksync/pkg/interfaces"
)

// DefaultSettleDelay absorbs the burst of events editors emit for one save.
const DefaultSettleDelay = 150 * time.Millisecond

var (
	ErrTargetRequired = errors.New("filewatch: target is required")
	ErrPathRequired   = errors.New("filewatch: path is required")
	ErrNotObject      = errors.New("filewatch: file must hold a JSON object")
)

// Target receives the decoded file content. *editor.Session satisfies it.
type Target interface {
	Update(partial map[string]any) (map[string]any, error)
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettleDelay overrides DefaultSettleDelay.
func WithSettleDelay(delay time.Duration) Option {
	return func(w *Watcher) {
		if delay > 0 {
			w.settle = delay
		}
	}
}

// WithLogger sets the watcher logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithErrorHandler receives read, decode and update failures.
func WithErrorHandler(handler func(error)) Option {
	return func(w *Watcher) {
		w.onError = handler
	}
}

// Watcher applies the content of one JSON file to a Target every time the
// file is written.
type Watcher struct {
	path    string
	target  Target
	settle  time.Duration
	logger  interfaces.Logger
	onError func(error)

	mu      sync.Mutex
	timer   *time.Timer
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
	applied int
}

func New(path string, target Target, opts ...Option) (*Watcher, error) {
	if target == nil {
		return nil, ErrTargetRequired
	}
	if path == "" {
		return nil, ErrPathRequired
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("filewatch: resolve %q: %w", path, err)
	}
	w := &Watcher{
		path:   abs,
		target: target,
		settle: DefaultSettleDelay,
		logger: logging.NoOp(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Path returns the absolute path of the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Applied returns how many times file content reached the target.
func (w *Watcher) Applied() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.applied
}

// Start watches the directory of the file until ctx is done or Close is
// called. Editors that save by rename are covered because the directory, not
// the file, is watched.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("filewatch: create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("filewatch: watch %q: %w", filepath.Dir(w.path), err)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	w.watcher = watcher
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.loop(ctx, watcher, w.done)
	w.logger.Info("filewatch.started", "path", w.path)
	return nil
}

// Close stops watching and cancels a pending apply.
func (w *Watcher) Close() error {
	w.mu.Lock()
	watcher, cancel, done := w.watcher, w.cancel, w.done
	w.watcher, w.cancel, w.done = nil, nil, nil
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	if watcher == nil {
		return nil
	}
	cancel()
	err := watcher.Close()
	<-done
	return err
}

func (w *Watcher) loop(ctx context.Context, watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if abs, _ := filepath.Abs(event.Name); abs != w.path {
				continue
			}
			w.arm()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.report(fmt.Errorf("filewatch: watcher: %w", err))
		}
	}
}

func (w *Watcher) arm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.settle, func() {
		if err := w.Load(); err != nil {
			w.report(err)
		}
	})
}

// Load reads the file and applies its content to the target immediately.
func (w *Watcher) Load() error {
	content, err := ReadJSON(w.path)
	if err != nil {
		return err
	}
	if _, err := w.target.Update(content); err != nil {
		return fmt.Errorf("filewatch: apply %q: %w", w.path, err)
	}
	w.mu.Lock()
	w.applied++
	w.mu.Unlock()
	w.logger.Debug("filewatch.applied", "path", w.path)
	return nil
}

func (w *Watcher) report(err error) {
	w.logger.Warn("filewatch.failed", "path", w.path, "error", err)
	if w.onError != nil {
		w.onError(err)
	}
}

// ReadJSON decodes the JSON object stored at path. Numbers are kept as
// json.Number so integer content survives the round trip.
func ReadJSON(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("filewatch: read %q: %w", path, err)
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var content map[string]any
	if err := decoder.Decode(&content); err != nil {
		return nil, fmt.Errorf("filewatch: decode %q: %w", path, err)
	}
	if content == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotObject, path)
	}
	return content, nil
}

// WriteJSON stores content at path as indented JSON through a temporary file
// and a rename, so a watcher never observes a partial document.
func WriteJSON(path string, content map[string]any) error {
	raw, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Errorf("filewatch: encode: %w", err)
	}
	raw = append(raw, '\n')
	tmp, err := os.CreateTemp(filepath.Dir(path), ".blocksync-*.json")
	if err != nil {
		return fmt.Errorf("filewatch: write %q: %w", path, err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("filewatch: write %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("filewatch: write %q: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("filewatch: write %q: %w", path, err)
	}
	return nil
}
