package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestNoopProviderDiscardsEverything(t *testing.T) {
	p := NewNoopProvider()
	c := p.NewCounter(CounterOpts{CommonOpts: CommonOpts{Name: "x"}})
	g := p.NewGauge(GaugeOpts{CommonOpts: CommonOpts{Name: "y"}})
	c.Inc(1)
	g.Set(5)
	g.Add(3)
	if err := p.Health(context.Background()); err != nil {
		t.Fatalf("expected noop health to always succeed, got %v", err)
	}
}

func TestPrometheusProviderCounterIsObservable(t *testing.T) {
	p, reg := NewPrometheusProvider()
	c := p.NewCounter(CounterOpts{CommonOpts: CommonOpts{
		Namespace: "tw", Subsystem: "test", Name: "events_total", Help: "test counter",
	}})
	c.Inc(1)
	c.Inc(2)

	vec := c.(*promCounter).vec
	got := testutil.ToFloat64(vec.WithLabelValues())
	if got != 3 {
		t.Fatalf("expected counter value 3, got %v", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if len(mfs) != 1 || mfs[0].GetName() != "tw_test_events_total" {
		t.Fatalf("expected one gathered family named tw_test_events_total, got %+v", mfs)
	}
}

func TestPrometheusProviderGaugeLabeled(t *testing.T) {
	p, reg := NewPrometheusProvider()
	g := p.NewGauge(GaugeOpts{CommonOpts: CommonOpts{
		Namespace: "tw", Name: "active", Labels: []string{"scenario"},
	}})
	g.Set(4, "s1")
	g.Add(1, "s1")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if len(mfs) != 1 {
		t.Fatalf("expected 1 metric family, got %d", len(mfs))
	}
}

func TestOTelProviderCounterAndGaugeDoNotPanic(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	p, mp := NewOTelProvider(reader)
	defer mp.Shutdown(context.Background())

	c := p.NewCounter(CounterOpts{CommonOpts: CommonOpts{Namespace: "tw", Name: "events_total"}})
	g := p.NewGauge(GaugeOpts{CommonOpts: CommonOpts{Namespace: "tw", Name: "active"}})
	c.Inc(1)
	g.Set(2)
	g.Add(1)

	var out sdkmetric.ResourceMetrics
	if err := reader.Collect(context.Background(), &out); err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if len(out.ScopeMetrics) == 0 {
		t.Fatalf("expected at least one scope of collected metrics")
	}
}
