// Package model holds the data types shared across the branching-futures
// engine: event envelopes, scenario metadata, overlay entries, and the
// generic diff record every incremental operator consumes and produces.
package model

import "math"

// Prob is a probability weight in [0,1]. NaN is tolerated by callers that
// compare weights (see LessWeight) rather than rejected here.
type Prob = float64

// EventEnvelope is the opaque record carried by the base event stream.
// Domain payloads (retail orders, manufacturing operations) are attached via
// Payload and read back through domain-specific accessors; the core never
// inspects Payload directly.
type EventEnvelope struct {
	Domain         string
	Kind           string
	Epoch          int64
	Source         string
	FingerprintKey string
	GroupKey       uint64
	Payload        any
}

// Diff is the multiset-with-retractions record every incremental operator
// speaks: Multiplicity > 0 is an insertion, < 0 a retraction. At any logical
// time the current truth of a view is the sum of all diffs observed so far.
type Diff[T any] struct {
	Value        T
	Multiplicity int64
}

// Insert wraps v as a single insertion diff.
func Insert[T any](v T) Diff[T] { return Diff[T]{Value: v, Multiplicity: 1} }

// Retract wraps v as a single retraction diff.
func Retract[T any](v T) Diff[T] { return Diff[T]{Value: v, Multiplicity: -1} }

// ScenarioMeta is the identity and weight of one node in the scenario tree.
// Parent is nil for a scenario whose parent is the implicit, never-materialized
// root (id 0).
type ScenarioMeta struct {
	ID     uint64
	Parent *uint64
	Depth  uint32
	Weight Prob
}

// OverlayEntry is the single predicted delta attached to one scenario and
// one grouping key. A scenario carries at most one overlay for its entire
// lifetime.
type OverlayEntry struct {
	ScenarioID uint64
	GroupKey   uint64
	Delta      int64
}

// KeyValue pairs a grouping key with its aggregate or candidate value.
type KeyValue struct {
	Key   uint64
	Value int64
}

// TopKEntry is one member of a bounded top-K sequence, ordered by Value
// descending and Key ascending.
type TopKEntry struct {
	Value int64
	Key   uint64
}

// LessEntry orders TopKEntry the way both base and scenario top-K must:
// value descending, then key ascending.
func LessEntry(a, b TopKEntry) bool {
	if a.Value != b.Value {
		return a.Value > b.Value
	}
	return a.Key < b.Key
}

// LessWeight orders scenario weight descending with a lower-id tiebreak,
// sinking NaN to the tail (Open Question resolution: a total order that
// treats any NaN as the smallest possible weight).
func LessWeight(a, b ScenarioMeta) bool {
	an, bn := math.IsNaN(a.Weight), math.IsNaN(b.Weight)
	if an != bn {
		return !an // the non-NaN one sorts first
	}
	if !an && a.Weight != b.Weight {
		return a.Weight > b.Weight
	}
	return a.ID < b.ID
}

// BeamConfig holds the per-domain beam parameters from the external
// interfaces table.
type BeamConfig struct {
	MaxDepth        uint32
	BeamWidth       int
	MinProb         Prob
	BranchProb      Prob
	DeltaMultiplier float64
	MinDelta        int64
}

// Validate reports the Configuration error class (§7): numerically invalid
// beam parameters are fatal at startup.
func (c BeamConfig) Validate() error {
	switch {
	case c.BeamWidth < 0:
		return &ConfigError{Field: "BeamWidth", Reason: "must be >= 0"}
	case c.MinProb < 0 || c.MinProb > 1 || math.IsNaN(c.MinProb):
		return &ConfigError{Field: "MinProb", Reason: "must be in [0,1]"}
	case c.BranchProb < 0 || c.BranchProb > 1 || math.IsNaN(c.BranchProb):
		return &ConfigError{Field: "BranchProb", Reason: "must be in [0,1]"}
	}
	return nil
}

// ConfigError reports an invalid, fatal-at-startup configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string { return "config: " + e.Field + " " + e.Reason }
