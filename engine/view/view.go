// Package view implements the incremental view core (C4): a per-key
// aggregate maintained under inserts and retractions, and a base top-K
// derived from it. Every operator here is diff-oriented: callers push
// model.Diff batches in and receive model.Diff batches out, and the current
// truth at any logical time is the sum of all diffs observed so far.
package view

import (
	"sort"

	"timelyworlds/engine/model"
)

// Aggregate maintains sum(value_i * multiplicity_i) per grouping key.
type Aggregate struct {
	sums map[uint64]int64
}

// NewAggregate returns an empty per-key aggregate.
func NewAggregate() *Aggregate {
	return &Aggregate{sums: make(map[uint64]int64)}
}

// Apply folds in diffs and returns the (key, old, new) changes for every key
// whose sum actually moved, so callers can emit a retraction of the old
// value and an insertion of the new one without conflating the two.
func (a *Aggregate) Apply(diffs []model.Diff[model.KeyValue]) []KeyChange {
	deltas := make(map[uint64]int64, len(diffs))
	for _, d := range diffs {
		deltas[d.Value.Key] += d.Value.Value * d.Multiplicity
	}
	changes := make([]KeyChange, 0, len(deltas))
	for key, delta := range deltas {
		if delta == 0 {
			continue
		}
		old, hadOld := a.sums[key]
		next := old + delta
		if next == 0 {
			delete(a.sums, key)
		} else {
			a.sums[key] = next
		}
		changes = append(changes, KeyChange{Key: key, Old: old, New: next, HadOld: hadOld})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Key < changes[j].Key })
	return changes
}

// Value returns the current sum for key and whether the key is present.
func (a *Aggregate) Value(key uint64) (int64, bool) {
	v, ok := a.sums[key]
	return v, ok
}

// Snapshot returns a defensive copy of the full key -> sum map.
func (a *Aggregate) Snapshot() map[uint64]int64 {
	out := make(map[uint64]int64, len(a.sums))
	for k, v := range a.sums {
		out[k] = v
	}
	return out
}

// KeyChange describes one grouping key's aggregate moving from Old to New.
// HadOld distinguishes "key newly appeared" (no retraction to emit) from
// "key's value changed" (retract Old, insert New).
type KeyChange struct {
	Key    uint64
	Old    int64
	New    int64
	HadOld bool
}

// TopK maintains the bounded, ordered top-K view over a single logical
// group (the base world has exactly one; §4.5 broadcasts it per scenario).
// Top-K is not natively diff-friendly (§9): it is realized here as an
// ordered index that recomputes the bounded prefix and emits compensating
// retractions for whatever was displaced.
type TopK struct {
	k       int
	current []model.TopKEntry
}

// NewTopK returns an empty top-K view bounded at k entries.
func NewTopK(k int) *TopK {
	return &TopK{k: k}
}

// Recompute takes the full candidate set for this epoch (typically every
// key in an Aggregate's Snapshot), sorts it, and returns the new bounded
// top-K plus the diffs (retractions for entries that fell out, insertions
// for entries that are new or moved) needed to bring a downstream consumer
// from the previous top-K to the new one.
func (t *TopK) Recompute(candidates []model.TopKEntry) (topK []model.TopKEntry, diffs []model.Diff[model.TopKEntry]) {
	sorted := make([]model.TopKEntry, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return model.LessEntry(sorted[i], sorted[j]) })
	if t.k >= 0 && len(sorted) > t.k {
		sorted = sorted[:t.k]
	}

	prevByKey := make(map[uint64]model.TopKEntry, len(t.current))
	for _, e := range t.current {
		prevByKey[e.Key] = e
	}
	nextByKey := make(map[uint64]model.TopKEntry, len(sorted))
	for _, e := range sorted {
		nextByKey[e.Key] = e
	}

	for _, e := range t.current {
		if cur, ok := nextByKey[e.Key]; !ok || cur.Value != e.Value {
			diffs = append(diffs, model.Retract(e))
		}
	}
	for _, e := range sorted {
		if prev, ok := prevByKey[e.Key]; !ok || prev.Value != e.Value {
			diffs = append(diffs, model.Insert(e))
		}
	}

	t.current = sorted
	return sorted, diffs
}

// Current returns the top-K view as of the last Recompute call.
func (t *TopK) Current() []model.TopKEntry {
	out := make([]model.TopKEntry, len(t.current))
	copy(out, t.current)
	return out
}
