package logging

import (
	"context"

	"github.com/rs/zerolog"

	"timelyworlds/engine/telemetry/tracing"
)

// NewZerolog adapts a zerolog.Logger to the Logger interface, selected by
// --log-format=zerolog.
func NewZerolog(base zerolog.Logger) Logger {
	return &zerologLogger{base: base}
}

type zerologLogger struct{ base zerolog.Logger }

func (l *zerologLogger) InfoCtx(ctx context.Context, msg string, attrs ...any) {
	event := l.base.Info()
	attachTrace(ctx, event)
	attachFields(event, attrs)
	event.Msg(msg)
}

func (l *zerologLogger) ErrorCtx(ctx context.Context, msg string, attrs ...any) {
	event := l.base.Error()
	attachTrace(ctx, event)
	attachFields(event, attrs)
	event.Msg(msg)
}

func attachTrace(ctx context.Context, event *zerolog.Event) {
	epochID, scenarioID := tracing.ExtractIDs(ctx)
	if epochID != "" {
		event.Str("epoch_id", epochID)
	}
	if scenarioID != "" {
		event.Str("scenario_id", scenarioID)
	}
}

// attachFields accepts slog-style key/value pairs (alternating key string,
// value any) and folds them into the zerolog event.
func attachFields(event *zerolog.Event, attrs []any) {
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		event.Interface(key, attrs[i+1])
	}
}
