// Package logger is the process-wide structured logger.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger *slog.Logger

// Initialize replaces the process logger. Records logged with a context
// that carries a sampled span get trace_id and span_id attributes.
func Initialize(config Config) error {
	level := parseLogLevel(config.Level)

	var sinks []slog.Handler
	if config.ConsoleEnabled {
		sinks = append(sinks, newHandler(consoleWriter(config.ConsoleOutput), config.ConsoleFormat, level))
	}
	if config.FileEnabled {
		if dir := filepath.Dir(config.FilePath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		rotating := &lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    config.FileMaxSizeMB,
			MaxBackups: config.FileMaxBackups,
			MaxAge:     config.FileMaxAgeDays,
		}
		sinks = append(sinks, newHandler(rotating, config.FileFormat, level))
	}

	var h slog.Handler
	switch len(sinks) {
	case 0:
		h = newHandler(os.Stderr, "text", level)
	case 1:
		h = sinks[0]
	default:
		h = fanout(sinks)
	}
	logger = slog.New(traceHandler{h})
	return nil
}

func consoleWriter(output string) io.Writer {
	if strings.EqualFold(output, "stdout") {
		return os.Stdout
	}
	return os.Stderr
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func log(ctx context.Context, level slog.Level, msg string, args []any) {
	if logger == nil {
		return
	}
	logger.Log(ctx, level, msg, args...)
}

// Debug logs at DEBUG.
func Debug(msg string, args ...any) { log(context.Background(), slog.LevelDebug, msg, args) }

// Info logs at INFO.
func Info(msg string, args ...any) { log(context.Background(), slog.LevelInfo, msg, args) }

// Warning logs at WARN.
func Warning(msg string, args ...any) { log(context.Background(), slog.LevelWarn, msg, args) }

// Error logs at ERROR.
func Error(msg string, args ...any) { log(context.Background(), slog.LevelError, msg, args) }

// DebugContext logs at DEBUG with the trace ids found in ctx.
func DebugContext(ctx context.Context, msg string, args ...any) {
	log(ctx, slog.LevelDebug, msg, args)
}

// InfoContext logs at INFO with the trace ids found in ctx.
func InfoContext(ctx context.Context, msg string, args ...any) {
	log(ctx, slog.LevelInfo, msg, args)
}

// WarningContext logs at WARN with the trace ids found in ctx.
func WarningContext(ctx context.Context, msg string, args ...any) {
	log(ctx, slog.LevelWarn, msg, args)
}

// traceHandler adds the ids of the span in the record's context.
type traceHandler struct {
	slog.Handler
}

func (h traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return traceHandler{h.Handler.WithAttrs(attrs)}
}

func (h traceHandler) WithGroup(name string) slog.Handler {
	return traceHandler{h.Handler.WithGroup(name)}
}

// fanout writes each record to every sink enabled for its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
