// Package logging defines the correlated Logger interface every component
// logs through, plus three concrete backends: a log/slog default, and
// zerolog/zap alternatives selected by the CLI's --log-format flag. The
// core engine never imports zerolog or zap directly — only this interface.
package logging

import (
	"context"
	"log/slog"

	"timelyworlds/engine/telemetry/tracing"
)

// Logger is the minimal correlated logging surface the engine uses.
type Logger interface {
	InfoCtx(ctx context.Context, msg string, attrs ...any)
	ErrorCtx(ctx context.Context, msg string, attrs ...any)
}

// New returns the default, slog-backed Logger.
func New(base *slog.Logger) Logger {
	if base == nil {
		base = slog.Default()
	}
	return &slogLogger{base: base}
}

type slogLogger struct{ base *slog.Logger }

func (l *slogLogger) InfoCtx(ctx context.Context, msg string, attrs ...any) {
	l.base.InfoContext(ctx, msg, withTrace(ctx, attrs)...)
}

func (l *slogLogger) ErrorCtx(ctx context.Context, msg string, attrs ...any) {
	l.base.ErrorContext(ctx, msg, withTrace(ctx, attrs)...)
}

// withTrace appends alternating key/value pairs so every backend (slog,
// zerolog, zap) can fold them in with the same convention.
func withTrace(ctx context.Context, attrs []any) []any {
	epochID, scenarioID := tracing.ExtractIDs(ctx)
	if epochID == "" && scenarioID == "" {
		return attrs
	}
	if epochID != "" {
		attrs = append(attrs, "epoch_id", epochID)
	}
	if scenarioID != "" {
		attrs = append(attrs, "scenario_id", scenarioID)
	}
	return attrs
}
