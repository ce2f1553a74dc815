// Package metrics provides the minimal metrics provider abstraction used
// internally by the engine facade and event bus. Callers either select a
// backend via engine.Config.MetricsBackend or construct a Provider
// themselves and pass it to engine.NewWithProvider.
package metrics

import "context"

// Provider is the minimal metrics provider contract.
type Provider interface {
	NewCounter(opts CounterOpts) Counter
	NewGauge(opts GaugeOpts) Gauge
	Health(ctx context.Context) error
}

// Counter is a monotonically increasing measurement.
type Counter interface{ Inc(delta float64, labels ...string) }

// Gauge is a point-in-time measurement that can move in either direction.
type Gauge interface {
	Set(v float64, labels ...string)
	Add(delta float64, labels ...string)
}

// CommonOpts names and documents one metric.
type CommonOpts struct {
	Namespace, Subsystem, Name, Help string
	Labels                           []string
}

// CounterOpts configures a Counter.
type CounterOpts struct{ CommonOpts }

// GaugeOpts configures a Gauge.
type GaugeOpts struct{ CommonOpts }

// noop backend -------------------------------------------------------------

type noopProvider struct{}
type noopCounter struct{}
type noopGauge struct{}

// NewNoopProvider returns a Provider that discards every measurement.
func NewNoopProvider() Provider { return noopProvider{} }

func (noopProvider) NewCounter(CounterOpts) Counter   { return noopCounter{} }
func (noopProvider) NewGauge(GaugeOpts) Gauge         { return noopGauge{} }
func (noopProvider) Health(context.Context) error     { return nil }
func (noopCounter) Inc(float64, ...string)            {}
func (noopGauge) Set(float64, ...string)              {}
func (noopGauge) Add(float64, ...string)               {}
