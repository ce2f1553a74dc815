package engine

import (
	"context"
	"testing"
	"time"

	"timelyworlds/engine/domain/retail"
	"timelyworlds/engine/model"
	"timelyworlds/engine/subscription"
	"timelyworlds/engine/telemetry/events"
	"timelyworlds/engine/telemetry/health"
)

func testConfig() Config {
	cfg := Defaults()
	cfg.Predictor = retail.FractionPredictor(0.5, 0)
	cfg.ValueOf = retail.AggregateValue
	cfg.Beam.BeamWidth = 4
	cfg.Beam.MaxDepth = 2
	cfg.Beam.MinProb = 0.01
	cfg.Beam.BranchProb = 1
	cfg.Subscriptions = []subscription.Predicate{
		subscription.ValueThreshold{Value: 100, ProbThreshold: 0},
	}
	cfg.EpochDeadline = time.Second
	return cfg
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := Defaults()
	if _, err := New(cfg, nil); err == nil {
		t.Fatalf("expected an error for a config missing Predictor/ValueOf")
	}
}

func TestStepAppliesEventsAndAdvancesFrontier(t *testing.T) {
	eng, err := New(testConfig(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	out, err := eng.Step(context.Background(), 1, EpochInput{
		Events: []model.EventEnvelope{
			retail.NewOrderEvent(1, retail.Order{CustomerID: 1, TotalCents: 500}),
			retail.NewOrderEvent(1, retail.Order{CustomerID: 2, TotalCents: 200}),
		},
	})
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if len(out.BaseTopK) == 0 {
		t.Fatalf("expected a non-empty base top-K")
	}
	if out.BaseTopK[0].Key != 1 || out.BaseTopK[0].Value != 500 {
		t.Fatalf("expected customer 1 (500) to lead the top-K, got %+v", out.BaseTopK)
	}

	snap := eng.Snapshot()
	if snap.Epoch != 1 {
		t.Fatalf("expected frontier to advance to epoch 1, got %d", snap.Epoch)
	}
	if snap.Metrics.BaseEvents != 2 {
		t.Fatalf("expected 2 base events counted, got %d", snap.Metrics.BaseEvents)
	}
}

func TestStepCreatesScenariosAndEmitsScenarioTopK(t *testing.T) {
	eng, err := New(testConfig(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	out, err := eng.Step(context.Background(), 1, EpochInput{
		Events: []model.EventEnvelope{
			retail.NewOrderEvent(1, retail.Order{CustomerID: 1, TotalCents: 500}),
		},
	})
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if len(out.Created) == 0 {
		t.Fatalf("expected at least one scenario created by the beam expander")
	}
	for _, s := range out.Created {
		if _, ok := out.ScenarioTopK[s.ID]; !ok {
			t.Fatalf("expected a scenario top-K entry for created scenario %d", s.ID)
		}
	}
}

func TestStepFiresAlertsAboveThreshold(t *testing.T) {
	eng, err := New(testConfig(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	out, err := eng.Step(context.Background(), 1, EpochInput{
		Events: []model.EventEnvelope{
			retail.NewOrderEvent(1, retail.Order{CustomerID: 1, TotalCents: 5000}),
		},
	})
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if len(out.Alerts) == 0 {
		t.Fatalf("expected an alert for a scenario top-K entry above the threshold")
	}
	snap := eng.Snapshot()
	if snap.Metrics.ScenarioAlerts == 0 {
		t.Fatalf("expected ScenarioAlerts counter to reflect fired alerts")
	}
}

func TestHealthSnapshotReportsHealthyByDefault(t *testing.T) {
	eng, err := New(testConfig(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	snap := eng.HealthSnapshot(context.Background())
	if snap.Overall != health.StatusHealthy {
		t.Fatalf("expected overall status healthy, got %q", snap.Overall)
	}
}

func TestRegisterEventObserverReceivesScenarioEvents(t *testing.T) {
	eng, err := New(testConfig(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan events.Event, 8)
	if err := eng.RegisterEventObserver(ctx, func(ev events.Event) {
		received <- ev
	}, 16); err != nil {
		t.Fatalf("RegisterEventObserver failed: %v", err)
	}

	_, err = eng.Step(ctx, 1, EpochInput{
		Events: []model.EventEnvelope{
			retail.NewOrderEvent(1, retail.Order{CustomerID: 1, TotalCents: 500}),
		},
	})
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	select {
	case ev := <-received:
		if ev.Fields["run_id"] != eng.Snapshot().RunID {
			t.Fatalf("expected the scenario event to carry the engine's run_id, got %+v", ev.Fields)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for an observed scenario event")
	}
}
