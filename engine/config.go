package engine

import (
	"errors"
	"math"
	"time"

	"timelyworlds/engine/model"
	"timelyworlds/engine/predictor"
	"timelyworlds/engine/subscription"
)

// Config is the public configuration surface for the Engine facade. It
// narrows the beam parameters from §6 plus the domain hooks (predictor,
// base-aggregate value extractor) an embedder must supply, since C1 and the
// payload shape are explicitly out of the core's scope (§1).
type Config struct {
	Beam model.BeamConfig

	// K bounds both the base top-K and every scenario's top-K.
	K int

	// Predictor is the domain's C1 implementation.
	Predictor predictor.Predictor

	// ValueOf extracts the base-aggregate contribution from one event
	// (e.g. an order total, a WIP delta).
	ValueOf func(model.EventEnvelope) int64

	// Subscriptions is the fixed predicate set the subscription engine
	// evaluates every epoch.
	Subscriptions []subscription.Predicate

	// AlertDedupCapacity bounds the diagnostic re-delivery guard in
	// engine/subscription; 0 disables it.
	AlertDedupCapacity int

	// MetricsBackend selects the Provider implementation New builds: "noop"
	// (default) or "prom". Any other value falls back to noop; an OTel
	// provider is passed in through NewWithProvider instead.
	MetricsBackend string

	// EpochDeadline bounds how long the epoch driver waits for the
	// frontier probe before surfacing a Frontier-stall error. 0 disables
	// the deadline (wait indefinitely, bounded only by ctx).
	EpochDeadline time.Duration
	// EpochBackoffBase and EpochBackoffMax bound the driver's poll backoff.
	EpochBackoffBase time.Duration
	EpochBackoffMax  time.Duration

	// HealthTTL caches health evaluation results for this long.
	HealthTTL time.Duration
}

// Defaults returns a Config with conservative beam parameters and a noop
// metrics backend; callers must still supply Predictor and ValueOf.
func Defaults() Config {
	return Config{
		Beam: model.BeamConfig{
			MaxDepth:        3,
			BeamWidth:       8,
			MinProb:         0.05,
			BranchProb:      0.5,
			DeltaMultiplier: 1.0,
			MinDelta:        math.MinInt64 / 2,
		},
		K:                  10,
		AlertDedupCapacity: 256,
		MetricsBackend:     "noop",
		EpochDeadline:      5 * time.Second,
		EpochBackoffBase:   time.Millisecond,
		EpochBackoffMax:    50 * time.Millisecond,
		HealthTTL:          200 * time.Millisecond,
	}
}

// Validate reports the Configuration error class (§7): invalid numeric beam
// parameters, or missing domain hooks, are fatal at startup.
func (c Config) Validate() error {
	if err := c.Beam.Validate(); err != nil {
		return err
	}
	if c.K <= 0 {
		return &model.ConfigError{Field: "K", Reason: "must be > 0"}
	}
	if c.Predictor == nil {
		return errors.New("config: Predictor must be set")
	}
	if c.ValueOf == nil {
		return errors.New("config: ValueOf must be set")
	}
	return nil
}
