package console_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-blocksync/internal/logging"
	"github.com/goliatone/go-blocksync/internal/logging/console"
)

func TestConsoleLoggerWritesStructuredEntry(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2024, 3, 14, 15, 9, 26, 535897000, time.UTC)

	minLevel := console.LevelDebug
	provider := console.NewProvider(console.Options{
		Writer:   &buf,
		TimeFunc: func() time.Time { return now },
		MinLevel: &minLevel,
	})

	logger := provider.GetLogger("blocksync.editor")
	logger = logging.WithFields(logger, map[string]any{"module": "blocksync.editor"})
	ctx := logging.ContextWithFields(context.Background(), map[string]any{
		"attempt_id": "01HV8J5Q3M",
	})
	logger = logger.WithContext(ctx)

	blockID := uuid.MustParse("8a51a9b1-2d30-4b2c-8ecd-2c0b87dfa999")
	logger.Info("editor.save.succeeded",
		"block_id", blockID,
		"duration", 150*time.Millisecond,
		"trigger", "manual",
	)

	got := strings.TrimSpace(buf.String())
	want := "2024-03-14T15:09:26.535897Z INFO editor.save.succeeded attempt_id=01HV8J5Q3M block_id=8a51a9b1-2d30-4b2c-8ecd-2c0b87dfa999 duration=150ms logger=blocksync.editor module=blocksync.editor trigger=manual"
	if got != want {
		t.Fatalf("unexpected log entry\nwant: %s\ngot:  %s", want, got)
	}
}

func TestConsoleLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	minLevel := console.LevelInfo
	provider := console.NewProvider(console.Options{
		Writer:   &buf,
		TimeFunc: time.Now,
		MinLevel: &minLevel,
	})

	logger := provider.GetLogger("blocksync.test")
	logger.Debug("ignored.debug", "foo", "bar")
	logger.Info("included.info", "foo", "bar")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected single log line, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "included.info") {
		t.Fatalf("expected info log to be written, got %s", lines[0])
	}
}

func TestConsoleLoggerQuotesValuesAndKeepsOddArgs(t *testing.T) {
	var buf bytes.Buffer
	provider := console.NewProvider(console.Options{Writer: &buf})

	provider.GetLogger("blocksync.sync").Warn("sync.request.failed", "error", errors.New("connection refused"), "dangling")

	line := buf.String()
	if !strings.Contains(line, `error="connection refused"`) {
		t.Fatalf("expected quoted error value, got %s", line)
	}
	if !strings.Contains(line, "arg_1=dangling") {
		t.Fatalf("expected dangling argument kept positionally, got %s", line)
	}
}

func TestParseLevel(t *testing.T) {
	if level, ok := console.ParseLevel("WARNING"); !ok || level != console.LevelWarn {
		t.Fatalf("expected warn level, got %v %v", level, ok)
	}
	if level, ok := console.ParseLevel("verbose"); ok || level != console.LevelInfo {
		t.Fatalf("expected info fallback for unknown level, got %v %v", level, ok)
	}
}
