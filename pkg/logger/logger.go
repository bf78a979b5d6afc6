package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
)

// Logger is the logging interface used by the library.
type Logger interface {
	Info(msg string, obj any)
	Warn(msg string, obj any)
	Debug(msg string, obj any)
	Error(msg string, obj any)
}

// NopLogger discards all log messages.
type NopLogger struct{}

func (NopLogger) Info(string, any)  {}
func (NopLogger) Warn(string, any)  {}
func (NopLogger) Debug(string, any) {}
func (NopLogger) Error(string, any) {}

type slogLogger struct {
	l *slog.Logger
}

// New builds a logger that writes key=value lines to w.
// Debug records are dropped unless verbose is set.
func New(w io.Writer, verbose bool) Logger {
	if w == nil {
		return NopLogger{}
	}
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slogLogger{l: slog.New(handler)}
}

// FromSlog wraps an existing slog logger.
func FromSlog(l *slog.Logger) Logger {
	if l == nil {
		return NopLogger{}
	}
	return slogLogger{l: l}
}

func (l slogLogger) log(level slog.Level, msg string, obj any) {
	l.l.Log(context.Background(), level, msg, attrs(obj)...)
}

// attrs flattens obj into slog key/value pairs. Maps keep sorted key order.
func attrs(obj any) []any {
	switch v := obj.(type) {
	case nil:
		return nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]any, 0, len(keys)*2)
		for _, k := range keys {
			out = append(out, k, v[k])
		}
		return out
	case error:
		return []any{"error", v.Error()}
	default:
		return []any{"obj", fmt.Sprintf("%+v", v)}
	}
}

func (l slogLogger) Info(msg string, obj any)  { l.log(slog.LevelInfo, msg, obj) }
func (l slogLogger) Warn(msg string, obj any)  { l.log(slog.LevelWarn, msg, obj) }
func (l slogLogger) Debug(msg string, obj any) { l.log(slog.LevelDebug, msg, obj) }
func (l slogLogger) Error(msg string, obj any) { l.log(slog.LevelError, msg, obj) }

// Debug writes a debug log when enabled and logger is non-nil.
func Debug(enabled bool, logger Logger, msg string, obj any) {
	if !enabled || logger == nil {
		return
	}
	logger.Debug(msg, obj)
}

// Debugf is a compatibility helper for format-style debug logging.
func Debugf(enabled bool, logger Logger, format string, args ...any) {
	Debug(enabled, logger, fmt.Sprintf(format, args...), nil)
}

// Info writes an info log when logger is non-nil.
func Info(logger Logger, msg string, obj any) {
	if logger == nil {
		return
	}
	logger.Info(msg, obj)
}

// Warn writes a warning log when logger is non-nil.
func Warn(logger Logger, msg string, obj any) {
	if logger == nil {
		return
	}
	logger.Warn(msg, obj)
}

// Error writes an error log when logger is non-nil.
func Error(logger Logger, msg string, obj any) {
	if logger == nil {
		return
	}
	logger.Error(msg, obj)
}
