// Package overlay implements the overlay join and per-scenario top-K (C5).
// It fuses the base top-K and base aggregate produced by engine/view with
// the per-scenario overlay deltas produced by engine/beam, broadcasting the
// base top-K to every active scenario and recomputing each scenario's
// bounded top-K from the union.
//
// C5 holds no persistent state beyond the per-scenario top-K index it must
// cache to emit compensating retractions; every datum it consumes is
// sourced from the registry or the base view on each call.
package overlay

import (
	"timelyworlds/engine/model"
	"timelyworlds/engine/view"
)

// Join owns one engine/view.TopK per active scenario id.
type Join struct {
	k     int
	topKs map[uint64]*view.TopK
}

// New returns a Join bounding each scenario's top-K at k entries.
func New(k int) *Join {
	return &Join{k: k, topKs: make(map[uint64]*view.TopK)}
}

// Result is one scenario's recomputed top-K plus the diffs needed to reach
// it from the previous epoch's view.
type Result struct {
	ScenarioID uint64
	TopK       []model.TopKEntry
	Diffs      []model.Diff[model.TopKEntry]
}

// Recompute fuses baseTopK and baseAggregate with overlays for every
// scenario in active, pruning top-K state for any scenario no longer
// active. The candidate set per scenario is a superset of its true top-K
// (§4.5 completeness guarantee, non-negative-delta caveat in §9).
func (j *Join) Recompute(
	baseTopK []model.TopKEntry,
	baseAggregate *view.Aggregate,
	active []model.ScenarioMeta,
	overlays map[uint64]model.OverlayEntry,
) []Result {
	liveIDs := make(map[uint64]struct{}, len(active))
	for _, s := range active {
		liveIDs[s.ID] = struct{}{}
	}
	for id := range j.topKs {
		if _, ok := liveIDs[id]; !ok {
			delete(j.topKs, id)
		}
	}

	results := make([]Result, 0, len(active))
	for _, s := range active {
		topK, ok := j.topKs[s.ID]
		if !ok {
			topK = view.NewTopK(j.k)
			j.topKs[s.ID] = topK
		}
		candidates := j.candidatesFor(s.ID, baseTopK, baseAggregate, overlays)
		newTopK, diffs := topK.Recompute(candidates)
		results = append(results, Result{ScenarioID: s.ID, TopK: newTopK, Diffs: diffs})
	}
	return results
}

// candidatesFor builds the per-scenario candidate set: the broadcast base
// top-K floor (step 1) plus the scenario's single overlay applied to the
// base value at its grouping key (step 2).
func (j *Join) candidatesFor(
	scenarioID uint64,
	baseTopK []model.TopKEntry,
	baseAggregate *view.Aggregate,
	overlays map[uint64]model.OverlayEntry,
) []model.TopKEntry {
	byKey := make(map[uint64]int64, len(baseTopK)+1)
	for _, e := range baseTopK {
		byKey[e.Key] = e.Value
	}
	if ov, ok := overlays[scenarioID]; ok {
		base, _ := baseAggregate.Value(ov.GroupKey)
		byKey[ov.GroupKey] = base + ov.Delta
	}
	out := make([]model.TopKEntry, 0, len(byKey))
	for key, value := range byKey {
		out = append(out, model.TopKEntry{Key: key, Value: value})
	}
	return out
}
