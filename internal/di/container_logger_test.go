package di_test

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-blocksync/internal/di"
	"github.com/goliatone/go-blocksync/internal/runtimeconfig"
	"github.com/goliatone/go-blocksync/pkg/interfaces"
	"github.com/goliatone/go-blocksync/pkg/testsupport"
	"github.com/google/uuid"
)

func TestContainerLogsBunStorageConfiguration(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Storage.Provider = "bun"
	cfg.Storage.DSN = fmt.Sprintf("file:di_logging_%d?mode=memory&cache=shared", time.Now().UnixNano())

	logs := &logRecorder{}
	container, err := di.NewContainer(cfg, di.WithLoggerProvider(logs))
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}
	t.Cleanup(func() { _ = container.Close(context.Background()) })

	entry, ok := logs.find("storage.configured")
	if !ok {
		t.Fatalf("expected storage.configured entry, got %#v", logs.all())
	}
	if entry.fields["driver"] != "sqlite3" || entry.fields["module"] != "blocksync.di" {
		t.Fatalf("unexpected storage fields %#v", entry.fields)
	}
}

func TestContainerLogsTeardownFlushThroughOutbox(t *testing.T) {
	logs := &logRecorder{}
	fake := testsupport.NewFakeSyncClient()
	cfg := runtimeconfig.DefaultConfig()
	cfg.Sync.DebounceDelay = time.Hour
	container, err := di.NewContainer(cfg, di.WithLoggerProvider(logs), di.WithSyncClient(fake))
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}
	registry, err := container.EditorRegistry()
	if err != nil {
		t.Fatalf("editor registry: %v", err)
	}
	blockID := uuid.New()
	session, err := registry.Open(&interfaces.Block{ID: blockID, Content: map[string]any{"title": "A"}})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := session.Update(map[string]any{"title": "B"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := container.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	requested, ok := logs.find("editor.flush.requested")
	if !ok || requested.fields["module"] != "blocksync.editor" {
		t.Fatalf("expected editor flush request entry, got %#v", logs.all())
	}
	sent, ok := logs.find("outbox.flush.sent")
	if !ok || sent.fields["module"] != "blocksync.outbox" {
		t.Fatalf("expected outbox delivery entry, got %#v", logs.all())
	}
	if fake.SaveCount() != 1 {
		t.Fatalf("expected one flushed save, got %d", fake.SaveCount())
	}
}

type logEntry struct {
	level  string
	msg    string
	fields map[string]any
}

// logRecorder is a LoggerProvider that keeps every entry in memory. The
// outbox worker logs from its own goroutine, so entries are guarded.
type logRecorder struct {
	mu      sync.Mutex
	entries []logEntry
}

func (r *logRecorder) GetLogger(name string) interfaces.Logger {
	return &recordedLogger{rec: r, fields: map[string]any{"logger": name}}
}

func (r *logRecorder) add(entry logEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *logRecorder) all() []logEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]logEntry(nil), r.entries...)
}

func (r *logRecorder) find(msg string) (logEntry, bool) {
	for _, entry := range r.all() {
		if entry.msg == msg {
			return entry, true
		}
	}
	return logEntry{}, false
}

type recordedLogger struct {
	rec    *logRecorder
	fields map[string]any
}

var _ interfaces.FieldsLogger = (*recordedLogger)(nil)

func (l *recordedLogger) Trace(msg string, args ...any) { l.log("trace", msg, args) }
func (l *recordedLogger) Debug(msg string, args ...any) { l.log("debug", msg, args) }
func (l *recordedLogger) Info(msg string, args ...any)  { l.log("info", msg, args) }
func (l *recordedLogger) Warn(msg string, args ...any)  { l.log("warn", msg, args) }
func (l *recordedLogger) Error(msg string, args ...any) { l.log("error", msg, args) }
func (l *recordedLogger) Fatal(msg string, args ...any) { l.log("fatal", msg, args) }

func (l *recordedLogger) WithFields(fields map[string]any) interfaces.Logger {
	merged := maps.Clone(l.fields)
	maps.Copy(merged, fields)
	return &recordedLogger{rec: l.rec, fields: merged}
}

func (l *recordedLogger) WithContext(context.Context) interfaces.Logger { return l }

func (l *recordedLogger) log(level, msg string, args []any) {
	fields := maps.Clone(l.fields)
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok && key != "" {
			fields[key] = args[i+1]
		}
	}
	l.rec.add(logEntry{level: level, msg: msg, fields: fields})
}
