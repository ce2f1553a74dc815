// Package subscription implements the subscription engine (C6): declarative
// predicates over the scenario top-K stream joined with scenario weights.
// An alert fires at most once per epoch per distinct tuple because that is
// a property of the incremental view it reads — a diff only exists when a
// tuple actually entered or left a scenario's top-K this epoch.
package subscription

import (
	"container/list"

	"timelyworlds/engine/model"
	"timelyworlds/engine/overlay"
)

// Alert is one subscription firing: scenario s's top-K gained (key, value)
// with the scenario's current probability weight.
type Alert struct {
	ScenarioID uint64
	Key        uint64
	Value      int64
	Weight     model.Prob
}

// Predicate decides whether one scenario top-K membership should alert.
type Predicate interface {
	Match(key uint64, value int64, weight model.Prob) bool
}

// TargetMembership fires when a designated grouping key enters any
// scenario's top-K with sufficient probability.
type TargetMembership struct {
	Target    uint64
	Threshold model.Prob
}

func (p TargetMembership) Match(key uint64, _ int64, weight model.Prob) bool {
	return key == p.Target && weight >= p.Threshold
}

// ValueThreshold fires when any top-K member exceeds a numeric threshold in
// a sufficiently probable scenario.
type ValueThreshold struct {
	Value         int64
	ProbThreshold model.Prob
}

func (p ValueThreshold) Match(_ uint64, value int64, weight model.Prob) bool {
	return value >= p.Value && weight >= p.ProbThreshold
}

// Engine evaluates a fixed predicate set against per-scenario top-K diffs
// each epoch.
type Engine struct {
	predicates []Predicate
	dedup      *dedupCache
}

// New returns a subscription engine over predicates. recentCapacity bounds
// the diagnostic re-delivery guard (0 disables it).
func New(predicates []Predicate, recentCapacity int) *Engine {
	return &Engine{predicates: predicates, dedup: newDedupCache(recentCapacity)}
}

// Evaluate inspects every scenario top-K insertion diff this epoch (an
// entry that is new or whose value moved) and fires an Alert for each one
// that matches any predicate at the scenario's current weight. weightOf
// resolves a scenario id to its current weight; a scenario absent from it
// (already retired this epoch) is skipped.
func (e *Engine) Evaluate(results []overlay.Result, weightOf func(scenarioID uint64) (model.Prob, bool)) []Alert {
	var alerts []Alert
	for _, r := range results {
		weight, ok := weightOf(r.ScenarioID)
		if !ok {
			continue
		}
		for _, d := range r.Diffs {
			if d.Multiplicity <= 0 {
				continue
			}
			entry := d.Value
			if !e.matches(entry.Key, entry.Value, weight) {
				continue
			}
			alert := Alert{ScenarioID: r.ScenarioID, Key: entry.Key, Value: entry.Value, Weight: weight}
			if e.dedup.seen(dedupKey{scenarioID: r.ScenarioID, key: entry.Key, value: entry.Value}) {
				continue
			}
			alerts = append(alerts, alert)
		}
	}
	return alerts
}

func (e *Engine) matches(key uint64, value int64, weight model.Prob) bool {
	for _, p := range e.predicates {
		if p.Match(key, value, weight) {
			return true
		}
	}
	return false
}

// dedupKey identifies an alert tuple independent of the scenario's current
// probability weight: (scenario, key, value) is what makes two firings the
// "same" alert, so a scenario whose weight merely drifts epoch-to-epoch
// while re-entering the identical top-K slot doesn't re-fire.
type dedupKey struct {
	scenarioID uint64
	key        uint64
	value      int64
}

// dedupCache is a bounded LRU of recently-fired alert tuples, grounded on
// the teacher's resources.Manager page cache. Evaluate drops any matching
// insertion whose tuple is still in the cache, so a tuple that leaves and
// re-enters a scenario's top-K within the cache's horizon does not fire a
// second time.
type dedupCache struct {
	capacity int
	lru      *list.List
	index    map[dedupKey]*list.Element
}

func newDedupCache(capacity int) *dedupCache {
	return &dedupCache{capacity: capacity, lru: list.New(), index: make(map[dedupKey]*list.Element)}
}

func (c *dedupCache) seen(k dedupKey) bool {
	if c.capacity <= 0 {
		return false
	}
	if el, ok := c.index[k]; ok {
		c.lru.MoveToFront(el)
		return true
	}
	el := c.lru.PushFront(k)
	c.index[k] = el
	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.index, oldest.Value.(dedupKey))
		}
	}
	return false
}
