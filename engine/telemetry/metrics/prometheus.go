package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// promProvider backs Provider with a dedicated prometheus.Registry so the
// engine's metrics never collide with whatever else the host process
// registers against prometheus.DefaultRegisterer.
type promProvider struct {
	reg *prometheus.Registry
}

// NewPrometheusProvider returns a Provider that registers every metric
// against a fresh registry, exposed by the caller via promhttp.Handler.
func NewPrometheusProvider() (Provider, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return &promProvider{reg: reg}, reg
}

func (p *promProvider) NewCounter(opts CounterOpts) Counter {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: opts.Namespace, Subsystem: opts.Subsystem, Name: opts.Name, Help: opts.Help,
	}, opts.Labels)
	p.reg.MustRegister(vec)
	return &promCounter{vec: vec}
}

func (p *promProvider) NewGauge(opts GaugeOpts) Gauge {
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: opts.Namespace, Subsystem: opts.Subsystem, Name: opts.Name, Help: opts.Help,
	}, opts.Labels)
	p.reg.MustRegister(vec)
	return &promGauge{vec: vec}
}

func (p *promProvider) Health(context.Context) error { return nil }

type promCounter struct{ vec *prometheus.CounterVec }

func (c *promCounter) Inc(delta float64, labels ...string) { c.vec.WithLabelValues(labels...).Add(delta) }

type promGauge struct{ vec *prometheus.GaugeVec }

func (g *promGauge) Set(v float64, labels ...string)      { g.vec.WithLabelValues(labels...).Set(v) }
func (g *promGauge) Add(delta float64, labels ...string)  { g.vec.WithLabelValues(labels...).Add(delta) }
