// Package beam implements the beam expander (C3): the per-event state
// transition that culls, branches, re-ranks and evicts the scenario tree
// kept in a registry.Registry. Expand is a pure function over its declared
// inputs (the registry it mutates and the event it consumes) — no other
// side effects occur, so the dataflow input stage can call it directly and
// emit the resulting diff set with nothing further to reconcile.
package beam

import (
	"math"
	"sort"

	"timelyworlds/engine/model"
	"timelyworlds/engine/predictor"
	"timelyworlds/engine/registry"
)

// scaleEpsilon bounds the delta_multiplier no-op check in step 2 of §4.3.
const scaleEpsilon = 1e-9

// ExpansionOutcome is the order-independent set of changes one Expand call
// produced. Consumers must treat each slice as a set.
type ExpansionOutcome struct {
	Created         []model.ScenarioMeta
	Retired         []model.ScenarioMeta
	OverlaysAdded   []model.OverlayEntry
	OverlaysRemoved []model.OverlayEntry
}

// Expander owns the beam parameters and predictor for one domain.
type Expander struct {
	cfg       model.BeamConfig
	predictor predictor.Predictor
}

// New constructs an Expander. cfg is assumed already validated by the
// caller (engine.New surfaces the Configuration error class at startup).
func New(cfg model.BeamConfig, p predictor.Predictor) *Expander {
	return &Expander{cfg: cfg, predictor: p}
}

// rootMeta is the synthetic, never-materialized root scenario used only to
// seed parent enumeration.
var rootMeta = model.ScenarioMeta{ID: 0, Parent: nil, Depth: 0, Weight: 1.0}

// Expand runs the six-step algorithm from §4.3 against reg, mutating it in
// place and returning the outcome. It never fails: every edge case degrades
// to zero created scenarios.
func (e *Expander) Expand(reg *registry.Registry, event model.EventEnvelope) ExpansionOutcome {
	// Step 1: cull.
	var survivors, retiredInitial []model.ScenarioMeta
	for _, m := range reg.IterActive() {
		if m.Weight >= e.cfg.MinProb && m.Depth < e.cfg.MaxDepth {
			survivors = append(survivors, m)
		} else {
			retiredInitial = append(retiredInitial, m)
		}
	}

	// Step 2: predicted delta.
	delta := e.scaledDelta(event)

	// Step 3: parent stream.
	parents := make([]model.ScenarioMeta, 0, len(survivors)+1)
	parents = append(parents, rootMeta)
	parents = append(parents, survivors...)

	// Step 4: child generation.
	var created []model.ScenarioMeta
	var overlaysAdded []model.OverlayEntry
	for _, parent := range parents {
		if parent.Depth >= e.cfg.MaxDepth {
			continue
		}
		childWeight := parent.Weight * e.cfg.BranchProb
		if childWeight < e.cfg.MinProb {
			continue
		}
		var parentID *uint64
		if parent.ID != rootMeta.ID {
			id := parent.ID
			parentID = &id
		}
		child := model.ScenarioMeta{
			ID:     reg.AllocID(),
			Parent: parentID,
			Depth:  parent.Depth + 1,
			Weight: childWeight,
		}
		overlay := model.OverlayEntry{ScenarioID: child.ID, GroupKey: event.GroupKey, Delta: delta}
		created = append(created, child)
		overlaysAdded = append(overlaysAdded, overlay)
	}
	for _, ov := range overlaysAdded {
		reg.SetOverlay(ov)
	}

	// Step 5: beam enforcement.
	candidates := make([]model.ScenarioMeta, 0, len(survivors)+len(created))
	candidates = append(candidates, survivors...)
	candidates = append(candidates, created...)
	sort.SliceStable(candidates, func(i, j int) bool { return model.LessWeight(candidates[i], candidates[j]) })

	width := e.cfg.BeamWidth
	if width > len(candidates) {
		width = len(candidates)
	}
	kept := candidates[:width]
	overflow := candidates[width:]

	retired := make([]model.ScenarioMeta, 0, len(retiredInitial)+len(overflow))
	retired = append(retired, retiredInitial...)
	retired = append(retired, overflow...)

	reg.ReplaceActive(kept)

	// Step 6: overlay cleanup for every retired scenario.
	var overlaysRemoved []model.OverlayEntry
	for _, m := range retired {
		if ov, ok := reg.Overlay(m.ID); ok {
			reg.Remove(m.ID)
			overlaysRemoved = append(overlaysRemoved, ov)
		}
	}

	return ExpansionOutcome{
		Created:         created,
		Retired:         retired,
		OverlaysAdded:   overlaysAdded,
		OverlaysRemoved: overlaysRemoved,
	}
}

func (e *Expander) scaledDelta(event model.EventEnvelope) int64 {
	raw := e.predictor(event)
	if math.Abs(e.cfg.DeltaMultiplier-1.0) > scaleEpsilon {
		raw = int64(math.Round(float64(raw) * e.cfg.DeltaMultiplier))
	}
	if raw < e.cfg.MinDelta {
		return e.cfg.MinDelta
	}
	return raw
}
