package metrics

import (
	"context"
	"math"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// otelProvider backs Provider with an OpenTelemetry SDK MeterProvider. It
// is built by the host with NewOTelProvider and handed to
// engine.NewWithProvider; engine.Config.MetricsBackend does not select it.
type otelProvider struct {
	mp    *sdkmetric.MeterProvider
	meter metric.Meter
}

// NewOTelProvider returns a Provider over reader, along with the underlying
// MeterProvider so the caller controls its Shutdown.
func NewOTelProvider(reader sdkmetric.Reader) (Provider, *sdkmetric.MeterProvider) {
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return &otelProvider{mp: mp, meter: mp.Meter("timelyworlds")}, mp
}

func (p *otelProvider) NewCounter(opts CounterOpts) Counter {
	c, _ := p.meter.Float64Counter(metricName(opts.CommonOpts), metric.WithDescription(opts.Help))
	return &otelCounter{counter: c}
}

func (p *otelProvider) NewGauge(opts GaugeOpts) Gauge {
	g := &otelGauge{}
	_, _ = p.meter.Float64ObservableGauge(
		metricName(opts.CommonOpts),
		metric.WithDescription(opts.Help),
		metric.WithFloat64Callback(func(_ context.Context, obs metric.Float64Observer) error {
			obs.Observe(g.load())
			return nil
		}),
	)
	return g
}

func (p *otelProvider) Health(context.Context) error { return nil }

func metricName(o CommonOpts) string {
	name := o.Name
	if o.Subsystem != "" {
		name = o.Subsystem + "_" + name
	}
	if o.Namespace != "" {
		name = o.Namespace + "_" + name
	}
	return name
}

type otelCounter struct{ counter metric.Float64Counter }

func (c *otelCounter) Inc(delta float64, labels ...string) {
	c.counter.Add(context.Background(), delta, metric.WithAttributes(attrsFromLabels(labels)...))
}

func attrsFromLabels(labels []string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for i, l := range labels {
		attrs = append(attrs, attribute.String(labelKey(i), l))
	}
	return attrs
}

func labelKey(i int) string {
	const base = "label"
	if i == 0 {
		return base
	}
	return base + string(rune('0'+i))
}

// otelGauge stores the last observed value atomically; the SDK pulls it via
// the registered asynchronous callback rather than a synchronous push.
type otelGauge struct{ bits atomic.Uint64 }

func (g *otelGauge) Set(v float64, _ ...string) { g.bits.Store(math.Float64bits(v)) }
func (g *otelGauge) Add(delta float64, _ ...string) {
	for {
		old := g.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if g.bits.CompareAndSwap(old, next) {
			return
		}
	}
}
func (g *otelGauge) load() float64 { return math.Float64frombits(g.bits.Load()) }
