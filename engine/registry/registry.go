// Package registry implements the scenario registry (C2): the active set of
// scenario metadata, the overlay map, and the monotonic id allocator. It is
// exclusively owned by the beam expander's host worker — callers must not
// share one Registry across goroutines.
package registry

import (
	"sort"

	"timelyworlds/engine/model"
)

// Registry holds the active scenario set and its overlay map. The zero value
// is not usable; construct with New.
type Registry struct {
	nextID  uint64
	active  []model.ScenarioMeta
	overlay map[uint64]model.OverlayEntry
}

// New returns an empty registry with the id allocator starting at 1, per §4.2.
func New() *Registry {
	return &Registry{nextID: 1, overlay: make(map[uint64]model.OverlayEntry)}
}

// AllocID returns a fresh, never-reused (within process lifetime) scenario id.
func (r *Registry) AllocID() uint64 {
	id := r.nextID
	r.nextID++
	return id
}

// Insert adds meta to the active set (re-sorting by weight) and records its
// overlay. Callers are responsible for beam-width enforcement; Insert does
// not cap the active set itself.
func (r *Registry) Insert(meta model.ScenarioMeta, overlay model.OverlayEntry) {
	r.active = append(r.active, meta)
	r.overlay[meta.ID] = overlay
	if meta.ID >= r.nextID {
		r.nextID = meta.ID + 1
	}
	r.resort()
}

// SetOverlay records an overlay without touching the active set. The beam
// expander uses this while it is still assembling the new active set (step
// 4 of §4.3), before ReplaceActive installs it (step 5).
func (r *Registry) SetOverlay(overlay model.OverlayEntry) {
	r.overlay[overlay.ScenarioID] = overlay
}

// Remove retires id: drops it from the active set and deletes its overlay.
// Removing an id that is not active is a no-op.
func (r *Registry) Remove(id uint64) {
	for i, m := range r.active {
		if m.ID == id {
			r.active = append(r.active[:i], r.active[i+1:]...)
			break
		}
	}
	delete(r.overlay, id)
}

// ReplaceActive swaps the active set wholesale (used by the beam expander
// after re-ranking) without touching the overlay map.
func (r *Registry) ReplaceActive(active []model.ScenarioMeta) {
	r.active = active
	r.resort()
}

// IterActive returns a defensive copy of the active set, ordered by weight
// descending with lower-id tiebreak.
func (r *Registry) IterActive() []model.ScenarioMeta {
	out := make([]model.ScenarioMeta, len(r.active))
	copy(out, r.active)
	return out
}

// Len returns the number of active scenarios.
func (r *Registry) Len() int { return len(r.active) }

// Overlay returns the overlay for id and whether it is present.
func (r *Registry) Overlay(id uint64) (model.OverlayEntry, bool) {
	ov, ok := r.overlay[id]
	return ov, ok
}

// Overlays returns a defensive copy of the overlay map.
func (r *Registry) Overlays() map[uint64]model.OverlayEntry {
	out := make(map[uint64]model.OverlayEntry, len(r.overlay))
	for k, v := range r.overlay {
		out[k] = v
	}
	return out
}

func (r *Registry) resort() {
	sort.SliceStable(r.active, func(i, j int) bool {
		return model.LessWeight(r.active[i], r.active[j])
	})
}
