// Package events implements the scenario-lifecycle and alert notification
// bus (C6/C7's observer surface): Publish never blocks on a slow
// subscriber. A full subscriber channel drops the event and increments the
// bus's total drop counter, rather than backpressuring Engine.Step — a stalled
// diagnostics consumer must never slow down epoch advancement.
package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"timelyworlds/engine/telemetry/metrics"
	"timelyworlds/engine/telemetry/tracing"
)

const (
	CategoryScenario = "scenario"
	CategoryAlert    = "alert"
	CategoryHealth   = "health"
	CategoryEpoch    = "epoch"
)

// Event is one scenario-lifecycle or alert notification delivered to
// subscribers. EpochID/ScenarioID are populated by PublishCtx from the
// context Engine.Step stamps via tracing.WithEpoch/WithScenario; Publish
// leaves them as given.
type Event struct {
	Time       time.Time
	Category   string
	Type       string
	Severity   string
	EpochID    string
	ScenarioID string
	Fields     map[string]any
}

// Subscription is a live subscriber's channel handle.
type Subscription interface {
	C() <-chan Event
	Close() error
	ID() int64
}

// BusStats summarizes delivery and backpressure behavior for the whole
// bus. There is exactly one diagnostics consumer class here (scenario/alert
// observers registered via Engine.RegisterEventObserver), so drops are
// tracked in aggregate rather than per subscriber.
type BusStats struct {
	Subscribers int64
	Published   uint64
	Dropped     uint64
}

// Bus fans out published events to every current subscriber.
type Bus interface {
	Publish(ev Event) error
	PublishCtx(ctx context.Context, ev Event) error
	Subscribe(buffer int) (Subscription, error)
	Unsubscribe(sub Subscription) error
	Stats() BusStats
}

// NewBus returns a Bus instrumented against provider (pass
// metrics.NewNoopProvider() to disable instrumentation).
func NewBus(provider metrics.Provider) Bus {
	b := &eventBus{subs: make(map[int64]*subscriber), provider: provider}
	b.initMetrics()
	return b
}

type eventBus struct {
	mu        sync.RWMutex
	subs      map[int64]*subscriber
	nextID    int64
	published atomic.Uint64
	dropped   atomic.Uint64

	provider   metrics.Provider
	mPublished metrics.Counter
	mDropped   metrics.Counter
}

func (b *eventBus) initMetrics() {
	if b.provider == nil {
		return
	}
	b.mPublished = b.provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "timelyworlds", Subsystem: "events", Name: "published_total", Help: "Total scenario/alert events published",
	}})
	b.mDropped = b.provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "timelyworlds", Subsystem: "events", Name: "dropped_total", Help: "Total events dropped because a subscriber's buffer was full",
	}})
}

func (b *eventBus) Publish(ev Event) error {
	if ev.Category == "" {
		return errors.New("event missing category")
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	b.mu.RLock()
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	b.published.Add(1)
	if b.mPublished != nil {
		b.mPublished.Inc(1)
	}
	for _, s := range subs {
		select {
		case s.ch <- ev:
		default:
			b.dropped.Add(1)
			if b.mDropped != nil {
				b.mDropped.Inc(1)
			}
		}
	}
	return nil
}

// PublishCtx stamps ev's EpochID/ScenarioID from ctx (if not already set)
// before publishing, so every scenario-lifecycle and alert event carries
// which epoch and scenario produced it.
func (b *eventBus) PublishCtx(ctx context.Context, ev Event) error {
	if ev.EpochID == "" && ev.ScenarioID == "" {
		ev.EpochID, ev.ScenarioID = tracing.ExtractIDs(ctx)
	}
	return b.Publish(ev)
}

func (b *eventBus) Subscribe(buffer int) (Subscription, error) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	id := atomic.AddInt64(&b.nextID, 1)
	sub := &subscriber{id: id, ch: ch, bus: b}
	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()
	return sub, nil
}

func (b *eventBus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return nil
	}
	id := sub.ID()
	b.mu.Lock()
	s := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()
	if s != nil {
		close(s.ch)
	}
	return nil
}

func (b *eventBus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return BusStats{Subscribers: int64(len(b.subs)), Published: b.published.Load(), Dropped: b.dropped.Load()}
}

type subscriber struct {
	id  int64
	ch  chan Event
	bus *eventBus
}

func (s *subscriber) C() <-chan Event { return s.ch }
func (s *subscriber) ID() int64       { return s.id }
func (s *subscriber) Close() error    { return s.bus.Unsubscribe(s) }
