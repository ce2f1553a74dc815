package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"timelyworlds/engine/telemetry/tracing"
)

func TestSlogLoggerWritesEpochIDWhenStamped(t *testing.T) {
	var buf bytes.Buffer
	logger := New(slog.New(slog.NewJSONHandler(&buf, nil)))

	ctx := tracing.WithEpoch(context.Background(), 5)

	logger.InfoCtx(ctx, "hello", "k", "v")

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("expected valid json line, got %q: %v", buf.String(), err)
	}
	if decoded["epoch_id"] != "5" {
		t.Fatalf("expected an epoch_id field, got %+v", decoded)
	}
	if decoded["k"] != "v" {
		t.Fatalf("expected k=v attr, got %+v", decoded)
	}
}

func TestSlogLoggerOmitsEpochFieldWithoutStamping(t *testing.T) {
	var buf bytes.Buffer
	logger := New(slog.New(slog.NewJSONHandler(&buf, nil)))
	logger.InfoCtx(context.Background(), "hello")
	if strings.Contains(buf.String(), "epoch_id") {
		t.Fatalf("expected no epoch_id without stamping, got %q", buf.String())
	}
}

func TestZerologLoggerFoldsAttrsAndEpochScenario(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerolog(zerolog.New(&buf))

	ctx := tracing.WithEpoch(context.Background(), 2)
	ctx = tracing.WithScenario(ctx, 11)

	logger.ErrorCtx(ctx, "boom", "count", 3)

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("expected valid json line, got %q: %v", buf.String(), err)
	}
	if decoded["epoch_id"] != "2" {
		t.Fatalf("expected epoch_id, got %+v", decoded)
	}
	if decoded["scenario_id"] != "11" {
		t.Fatalf("expected scenario_id, got %+v", decoded)
	}
	if decoded["count"] != float64(3) {
		t.Fatalf("expected count=3, got %+v", decoded)
	}
	if decoded["level"] != "error" {
		t.Fatalf("expected level=error, got %+v", decoded)
	}
}

func TestZapLoggerForwardsFieldsAsZapFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := NewZap(zap.New(core))

	logger.InfoCtx(context.Background(), "started", "workers", 4)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0].Message != "started" {
		t.Fatalf("expected message 'started', got %q", entries[0].Message)
	}
	if got, ok := entries[0].ContextMap()["workers"]; !ok || got != int64(4) {
		t.Fatalf("expected workers=4 field, got %+v", entries[0].ContextMap())
	}
}
