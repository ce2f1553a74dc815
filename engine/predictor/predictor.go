// Package predictor defines the predictor contract (C1): a pure, total
// function from a domain event to an integer delta. Predictors must never
// fail; implementations that cannot estimate a value return a configured
// floor instead.
package predictor

import (
	"math"

	"timelyworlds/engine/model"
)

// Predictor is a pure function: event -> predicted integer delta. It must be
// side-effect-free and total (no panics).
type Predictor func(model.EventEnvelope) int64

// Const returns a predictor that always reports delta, useful for tests and
// for domains without a richer estimator.
func Const(delta int64) Predictor {
	return func(model.EventEnvelope) int64 { return delta }
}

// FromFloat64 adapts a float64-valued estimator into a Predictor, clamping
// NaN, +Inf and out-of-int64-range results to floor. This is the
// "predictor inconsistency" class from §7: non-fatal, silent, and resolved
// by clamping rather than propagating an error.
func FromFloat64(floor int64, f func(model.EventEnvelope) float64) Predictor {
	return func(ev model.EventEnvelope) int64 {
		v := f(ev)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return floor
		}
		if v >= math.MaxInt64 || v < math.MinInt64 {
			return floor
		}
		return int64(v)
	}
}
