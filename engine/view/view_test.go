package view

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"timelyworlds/engine/model"
)

func TestAggregateApplyEmitsChangesOnlyForMovedKeys(t *testing.T) {
	a := NewAggregate()
	changes := a.Apply([]model.Diff[model.KeyValue]{
		model.Insert(model.KeyValue{Key: 1, Value: 10}),
		model.Insert(model.KeyValue{Key: 2, Value: 5}),
	})
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d: %+v", len(changes), changes)
	}

	changes = a.Apply([]model.Diff[model.KeyValue]{
		model.Insert(model.KeyValue{Key: 1, Value: 0}),
	})
	if len(changes) != 0 {
		t.Fatalf("expected zero-delta diff to emit no change, got %+v", changes)
	}
}

func TestAggregateRetractDeletesKeyAtZero(t *testing.T) {
	a := NewAggregate()
	a.Apply([]model.Diff[model.KeyValue]{model.Insert(model.KeyValue{Key: 1, Value: 10})})
	a.Apply([]model.Diff[model.KeyValue]{model.Retract(model.KeyValue{Key: 1, Value: 10})})
	if _, ok := a.Value(1); ok {
		t.Fatalf("expected key 1 to be deleted once its sum returns to zero")
	}
}

func TestAggregateValueAndSnapshot(t *testing.T) {
	a := NewAggregate()
	a.Apply([]model.Diff[model.KeyValue]{model.Insert(model.KeyValue{Key: 1, Value: 7})})
	v, ok := a.Value(1)
	if !ok || v != 7 {
		t.Fatalf("expected value 7, got %d ok=%v", v, ok)
	}
	snap := a.Snapshot()
	snap[1] = 999
	v2, _ := a.Value(1)
	if v2 != 7 {
		t.Fatalf("expected Snapshot to return a defensive copy, got %d", v2)
	}
}

func TestTopKRecomputeTruncatesAndOrders(t *testing.T) {
	topK := NewTopK(2)
	current, diffs := topK.Recompute([]model.TopKEntry{
		{Key: 1, Value: 10},
		{Key: 2, Value: 30},
		{Key: 3, Value: 20},
	})
	if len(current) != 2 {
		t.Fatalf("expected top-2, got %d", len(current))
	}
	want := []model.TopKEntry{{Key: 2, Value: 30}, {Key: 3, Value: 20}}
	if diff := cmp.Diff(want, current); diff != "" {
		t.Fatalf("unexpected top-K (-want +got):\n%s", diff)
	}
	insertCount := 0
	for _, d := range diffs {
		if d.Multiplicity > 0 {
			insertCount++
		}
	}
	if insertCount != 2 {
		t.Fatalf("expected 2 insertion diffs on first recompute, got %d", insertCount)
	}
}

func TestTopKRecomputeEmitsRetractionForDisplacedEntry(t *testing.T) {
	topK := NewTopK(1)
	topK.Recompute([]model.TopKEntry{{Key: 1, Value: 10}})
	_, diffs := topK.Recompute([]model.TopKEntry{{Key: 1, Value: 10}, {Key: 2, Value: 50}})

	var retracted, inserted bool
	for _, d := range diffs {
		if d.Multiplicity < 0 && d.Value.Key == 1 {
			retracted = true
		}
		if d.Multiplicity > 0 && d.Value.Key == 2 {
			inserted = true
		}
	}
	if !retracted {
		t.Fatalf("expected key 1 retracted once displaced, diffs=%+v", diffs)
	}
	if !inserted {
		t.Fatalf("expected key 2 inserted, diffs=%+v", diffs)
	}
}

func TestTopKRecomputeNoDiffWhenUnchanged(t *testing.T) {
	topK := NewTopK(2)
	topK.Recompute([]model.TopKEntry{{Key: 1, Value: 10}})
	_, diffs := topK.Recompute([]model.TopKEntry{{Key: 1, Value: 10}})
	if len(diffs) != 0 {
		t.Fatalf("expected no diffs for an unchanged top-K, got %+v", diffs)
	}
}
