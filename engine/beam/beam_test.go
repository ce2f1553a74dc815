package beam

import (
	"testing"

	"timelyworlds/engine/model"
	"timelyworlds/engine/predictor"
	"timelyworlds/engine/registry"
)

func baseCfg() model.BeamConfig {
	return model.BeamConfig{
		MaxDepth:        3,
		BeamWidth:       8,
		MinProb:         0.05,
		BranchProb:      0.5,
		DeltaMultiplier: 1.0,
		MinDelta:        -1 << 40,
	}
}

func TestExpandCreatesOneChildFromRootOnFirstEvent(t *testing.T) {
	reg := registry.New()
	e := New(baseCfg(), predictor.Const(10))
	outcome := e.Expand(reg, model.EventEnvelope{GroupKey: 1})

	if len(outcome.Created) != 1 {
		t.Fatalf("expected exactly one child from the root, got %d: %+v", len(outcome.Created), outcome.Created)
	}
	child := outcome.Created[0]
	if child.Depth != 1 {
		t.Fatalf("expected depth 1, got %d", child.Depth)
	}
	if child.Weight != 0.5 {
		t.Fatalf("expected weight 0.5 (1.0 * branch_prob), got %v", child.Weight)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected registry to hold the new child, got len %d", reg.Len())
	}
	ov, ok := reg.Overlay(child.ID)
	if !ok || ov.Delta != 10 {
		t.Fatalf("expected overlay delta 10 for the new child, got %+v ok=%v", ov, ok)
	}
}

func TestExpandZeroBeamWidthRetiresEverythingCreated(t *testing.T) {
	cfg := baseCfg()
	cfg.BeamWidth = 0
	reg := registry.New()
	e := New(cfg, predictor.Const(1))
	outcome := e.Expand(reg, model.EventEnvelope{GroupKey: 1})

	if reg.Len() != 0 {
		t.Fatalf("expected nothing to survive beam_width=0, got %d active", reg.Len())
	}
	if len(outcome.Created) != 1 {
		t.Fatalf("expected one scenario created before eviction, got %d", len(outcome.Created))
	}
	if len(outcome.Retired) != 1 {
		t.Fatalf("expected the created scenario to be immediately retired, got %d", len(outcome.Retired))
	}
}

func TestExpandZeroMaxDepthCreatesNothing(t *testing.T) {
	cfg := baseCfg()
	cfg.MaxDepth = 0
	reg := registry.New()
	e := New(cfg, predictor.Const(1))
	outcome := e.Expand(reg, model.EventEnvelope{GroupKey: 1})

	if len(outcome.Created) != 0 {
		t.Fatalf("expected no scenarios created at max_depth=0, got %d", len(outcome.Created))
	}
	if reg.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", reg.Len())
	}
}

func TestExpandZeroBranchProbSkipsChildrenWhenMinProbPositive(t *testing.T) {
	cfg := baseCfg()
	cfg.BranchProb = 0
	cfg.MinProb = 0.01
	reg := registry.New()
	e := New(cfg, predictor.Const(1))
	outcome := e.Expand(reg, model.EventEnvelope{GroupKey: 1})

	if len(outcome.Created) != 0 {
		t.Fatalf("expected branch_prob=0 with min_prob>0 to admit no children, got %d", len(outcome.Created))
	}
}

func TestExpandCullsLowWeightAndOverDepthScenarios(t *testing.T) {
	cfg := baseCfg()
	cfg.MinProb = 0.3
	reg := registry.New()
	reg.Insert(model.ScenarioMeta{ID: 1, Weight: 0.1, Depth: 1}, model.OverlayEntry{ScenarioID: 1})
	reg.Insert(model.ScenarioMeta{ID: 2, Weight: 0.9, Depth: 1}, model.OverlayEntry{ScenarioID: 2})
	reg.Insert(model.ScenarioMeta{ID: 3, Weight: 0.9, Depth: 3}, model.OverlayEntry{ScenarioID: 3})

	e := New(cfg, predictor.Const(1))
	outcome := e.Expand(reg, model.EventEnvelope{GroupKey: 1})

	retiredIDs := map[uint64]bool{}
	for _, m := range outcome.Retired {
		retiredIDs[m.ID] = true
	}
	if !retiredIDs[1] {
		t.Fatalf("expected scenario 1 (weight below MinProb) to be retired")
	}
	if !retiredIDs[3] {
		t.Fatalf("expected scenario 3 (depth at MaxDepth) to be retired")
	}

	stillActive := false
	for _, m := range reg.IterActive() {
		if m.ID == 2 {
			stillActive = true
		}
	}
	if !stillActive {
		t.Fatalf("expected scenario 2 to survive culling")
	}
}

func TestExpandOverflowBeyondBeamWidthIsRetired(t *testing.T) {
	cfg := baseCfg()
	cfg.BeamWidth = 1
	cfg.MinProb = 0
	reg := registry.New()
	reg.Insert(model.ScenarioMeta{ID: 1, Weight: 0.9, Depth: 0}, model.OverlayEntry{ScenarioID: 1})
	reg.Insert(model.ScenarioMeta{ID: 2, Weight: 0.1, Depth: 0}, model.OverlayEntry{ScenarioID: 2})

	e := New(cfg, predictor.Const(1))
	e.Expand(reg, model.EventEnvelope{GroupKey: 1})

	if reg.Len() != 1 {
		t.Fatalf("expected beam_width=1 to keep exactly one scenario, got %d", reg.Len())
	}
	active := reg.IterActive()
	if active[0].Weight != 0.9 {
		t.Fatalf("expected the highest-weight scenario to survive, got weight %v", active[0].Weight)
	}
}

func TestScaledDeltaAppliesMultiplierAndFloor(t *testing.T) {
	cfg := baseCfg()
	cfg.DeltaMultiplier = 2.0
	cfg.MinDelta = 5
	e := New(cfg, predictor.Const(1))
	if got := e.scaledDelta(model.EventEnvelope{}); got != 5 {
		t.Fatalf("expected scaled delta 2 clamped up to floor 5, got %d", got)
	}

	cfg.MinDelta = -100
	e = New(cfg, predictor.Const(10))
	if got := e.scaledDelta(model.EventEnvelope{}); got != 20 {
		t.Fatalf("expected 10 * 2.0 = 20, got %d", got)
	}
}
