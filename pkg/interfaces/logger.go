package interfaces

import "context"

// Logger is the leveled, key/value logger used across blocksync. Its method
// set matches github.com/goliatone/go-logger, whose loggers plug in through
// internal/logging/gologger.
type Logger interface {
	Trace(msg string, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Fatal(msg string, args ...any)
	WithContext(ctx context.Context) Logger
}

// LoggerProvider returns the logger of a module such as "blocksync.editor".
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// FieldsLogger is implemented by loggers that can bind fields (block_id,
// attempt_id) to every later entry.
type FieldsLogger interface {
	WithFields(fields map[string]any) Logger
}
