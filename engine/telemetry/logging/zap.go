package logging

import (
	"context"

	"go.uber.org/zap"

	"timelyworlds/engine/telemetry/tracing"
)

// NewZap adapts a *zap.Logger to the Logger interface, selected by
// --log-format=zap.
func NewZap(base *zap.Logger) Logger {
	return &zapLogger{base: base}
}

type zapLogger struct{ base *zap.Logger }

func (l *zapLogger) InfoCtx(ctx context.Context, msg string, attrs ...any) {
	l.base.Info(msg, fieldsFrom(ctx, attrs)...)
}

func (l *zapLogger) ErrorCtx(ctx context.Context, msg string, attrs ...any) {
	l.base.Error(msg, fieldsFrom(ctx, attrs)...)
}

func fieldsFrom(ctx context.Context, attrs []any) []zap.Field {
	withTrace := withTrace(ctx, attrs)
	fields := make([]zap.Field, 0, len(withTrace)/2)
	for i := 0; i+1 < len(withTrace); i += 2 {
		key, ok := withTrace[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, withTrace[i+1]))
	}
	return fields
}
