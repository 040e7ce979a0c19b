package logging

import (
	"context"
	"testing"

	"github.com/goliatone/go-blocksync/pkg/interfaces"
)

type recordingLogger struct {
	fields   []map[string]any
	contexts []context.Context
}

func (r *recordingLogger) Trace(string, ...any) {}
func (r *recordingLogger) Debug(string, ...any) {}
func (r *recordingLogger) Info(string, ...any)  {}
func (r *recordingLogger) Warn(string, ...any)  {}
func (r *recordingLogger) Error(string, ...any) {}
func (r *recordingLogger) Fatal(string, ...any) {}

func (r *recordingLogger) WithFields(fields map[string]any) interfaces.Logger {
	if fields == nil {
		fields = map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	r.fields = append(r.fields, copied)
	return r
}

func (r *recordingLogger) WithContext(ctx context.Context) interfaces.Logger {
	r.contexts = append(r.contexts, ctx)
	return r
}

type stubProvider struct {
	requested []string
	logger    interfaces.Logger
}

func (s *stubProvider) GetLogger(name string) interfaces.Logger {
	s.requested = append(s.requested, name)
	return s.logger
}

func TestModuleLoggerFallsBackToNoOp(t *testing.T) {
	logger := ModuleLogger(nil, "blocksync.test")
	if _, ok := logger.(noopLogger); !ok {
		t.Fatalf("expected noopLogger fallback, got %T", logger)
	}
	// Ensure WithContext/WithFields do not panic.
	ctx := context.Background()
	logger = logger.WithContext(ctx)
	logger = WithFields(logger, map[string]any{"foo": "bar"})
	logger.Debug("noop")
}

func TestModuleLoggerUsesProviderAndAnnotatesFields(t *testing.T) {
	rec := &recordingLogger{}
	provider := &stubProvider{logger: rec}

	logger := ModuleLogger(provider, editorModule)

	if len(provider.requested) != 1 || provider.requested[0] != editorModule {
		t.Fatalf("expected module %s, got %v", editorModule, provider.requested)
	}

	if len(rec.fields) != 1 {
		t.Fatalf("expected module fields to be applied once, got %d", len(rec.fields))
	}

	if got, ok := rec.fields[0]["module"]; !ok || got != editorModule {
		t.Fatalf("expected module field %s, got %v", editorModule, rec.fields[0]["module"])
	}

	logger.Info("with provider")
}

func TestModuleLoggerDefaultsToRootModule(t *testing.T) {
	rec := &recordingLogger{}
	provider := &stubProvider{logger: rec}

	_ = ModuleLogger(provider, "")

	if len(provider.requested) != 1 || provider.requested[0] != rootModule {
		t.Fatalf("expected default module %s, got %v", rootModule, provider.requested)
	}
	if rec.fields[0]["module"] != rootModule {
		t.Fatalf("expected module field %s, got %v", rootModule, rec.fields[0]["module"])
	}
}

func TestSyncLoggerRequestsSyncModule(t *testing.T) {
	provider := &stubProvider{logger: &recordingLogger{}}
	_ = SyncLogger(provider)
	if len(provider.requested) == 0 || provider.requested[0] != syncModule {
		t.Fatalf("expected sync module request, got %v", provider.requested)
	}
}

func TestOutboxLoggerRequestsOutboxModule(t *testing.T) {
	provider := &stubProvider{logger: &recordingLogger{}}
	_ = OutboxLogger(provider)
	if len(provider.requested) == 0 || provider.requested[0] != outboxModule {
		t.Fatalf("expected outbox module request, got %v", provider.requested)
	}
}

func TestWithBlockContextSkipsEmptyValues(t *testing.T) {
	rec := &recordingLogger{}

	_ = WithBlockContext(rec, " 42 ", "", "saving")

	if len(rec.fields) != 1 {
		t.Fatalf("expected one fields application, got %d", len(rec.fields))
	}
	fields := rec.fields[0]
	if fields[fieldBlockID] != "42" || fields[fieldPhase] != "saving" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if _, ok := fields[fieldPageID]; ok {
		t.Fatalf("expected empty page id to be skipped, got %v", fields)
	}
}

func TestContextFieldsRoundTrip(t *testing.T) {
	ctx := ContextWithFields(context.Background(), map[string]any{"attempt_id": "a1"})
	ctx = ContextWithFields(ctx, map[string]any{"block_id": "b1"})

	fields := ContextFields(ctx)
	if fields["attempt_id"] != "a1" || fields["block_id"] != "b1" {
		t.Fatalf("expected merged context fields, got %v", fields)
	}
	fields["attempt_id"] = "mutated"
	if ContextFields(ctx)["attempt_id"] != "a1" {
		t.Fatalf("expected ContextFields to return a copy")
	}
}
