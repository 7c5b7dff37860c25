package slabtape

import (
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with tape-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// This is the default for every tape.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithTape adds the tape id field to the logger.
func (l *Logger) WithTape(id uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("tape", id),
	}
}

// LogEvict logs a slab eviction.
func (l *Logger) LogEvict(slab int, offset int64, bytes int, d time.Duration, err error) {
	if err != nil {
		l.Error("slab eviction failed",
			"slab", slab,
			"error", err,
		)
		return
	}
	l.Debug("slab evicted",
		"slab", slab,
		"offset", offset,
		"bytes", bytes,
		"duration", d,
	)
}

// LogReload logs a slab reload.
func (l *Logger) LogReload(slab int, offset int64, bytes int, d time.Duration, err error) {
	if err != nil {
		l.Error("slab reload failed",
			"slab", slab,
			"offset", offset,
			"error", err,
		)
		return
	}
	l.Debug("slab reloaded",
		"slab", slab,
		"offset", offset,
		"bytes", bytes,
		"duration", d,
	)
}

// LogSpillOpen logs creation of the scratch file.
func (l *Logger) LogSpillOpen(path string, err error) {
	if err != nil {
		l.Error("scratch file open failed",
			"path", path,
			"error", err,
		)
		return
	}
	l.Info("scratch file opened",
		"path", path,
	)
}

// LogSpillClose logs removal of the scratch file.
func (l *Logger) LogSpillClose(path string, written, read int64, err error) {
	if err != nil {
		l.Error("scratch file close failed",
			"path", path,
			"error", err,
		)
		return
	}
	l.Info("scratch file removed",
		"path", path,
		"slabs_written", written,
		"slabs_read", read,
	)
}
