package logging

import (
	"context"
	"strings"

	"github.com/goliatone/go-blocksync/pkg/interfaces"
)

const (
	rootModule    = "blocksync"
	editorModule  = "blocksync.editor"
	syncModule    = "blocksync.sync"
	outboxModule  = "blocksync.outbox"
	serverModule  = "blocksync.server"
	refreshModule = "blocksync.refresh"
)

const (
	fieldBlockID = "block_id"
	fieldPageID  = "page_id"
	fieldPhase   = "phase"
)

// ModuleLogger returns a module-scoped logger, defaulting to a no-op
// implementation when no provider is supplied. The returned logger attaches
// the module identifier as structured context so downstream entries can be
// filtered predictably.
func ModuleLogger(provider interfaces.LoggerProvider, module string) interfaces.Logger {
	if module == "" {
		module = rootModule
	}

	logger := NoOp()
	if provider != nil {
		if provided := provider.GetLogger(module); provided != nil {
			logger = provided
		}
	}

	return WithFields(logger, map[string]any{
		"module": module,
	})
}

// EditorLogger returns the logger namespace reserved for editing sessions.
func EditorLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, editorModule)
}

// SyncLogger returns the logger namespace reserved for the sync client.
func SyncLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, syncModule)
}

// OutboxLogger returns the logger namespace reserved for teardown flush delivery.
func OutboxLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, outboxModule)
}

// ServerLogger returns the logger namespace reserved for the block backend.
func ServerLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, serverModule)
}

// RefreshLogger returns the logger namespace reserved for server baseline refreshes.
func RefreshLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, refreshModule)
}

// WithBlockContext enriches the logger with the block, page and phase being
// worked on. Empty values are ignored.
func WithBlockContext(logger interfaces.Logger, blockID, pageID, phase string) interfaces.Logger {
	fields := map[string]any{}
	if trimmed := strings.TrimSpace(blockID); trimmed != "" {
		fields[fieldBlockID] = trimmed
	}
	if trimmed := strings.TrimSpace(pageID); trimmed != "" {
		fields[fieldPageID] = trimmed
	}
	if trimmed := strings.TrimSpace(phase); trimmed != "" {
		fields[fieldPhase] = trimmed
	}
	return WithFields(logger, fields)
}

// NoOp returns a logger that drops every log entry. It satisfies the Logger
// contract so services can safely operate when logging is disabled.
func NoOp() interfaces.Logger {
	return noopLogger{}
}

type noopLogger struct{}

var _ interfaces.Logger = noopLogger{}

func (noopLogger) Trace(string, ...any) {}
func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Fatal(string, ...any) {}

func (n noopLogger) WithFields(map[string]any) interfaces.Logger {
	return n
}

func (n noopLogger) WithContext(context.Context) interfaces.Logger {
	return n
}
