// Package engine composes the branching-futures components (C2-C7) behind
// one facade: Engine.Step pushes one epoch's base events through the beam
// expander, the incremental view core, the overlay join and the subscription
// engine, and advances the epoch driver's frontier.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"timelyworlds/engine/beam"
	"timelyworlds/engine/epoch"
	"timelyworlds/engine/telemetry/events"
	"timelyworlds/engine/telemetry/health"
	"timelyworlds/engine/telemetry/logging"
	"timelyworlds/engine/telemetry/metrics"
	"timelyworlds/engine/telemetry/tracing"
	"timelyworlds/engine/model"
	"timelyworlds/engine/overlay"
	"timelyworlds/engine/registry"
	"timelyworlds/engine/subscription"
	"timelyworlds/engine/view"
)

// EpochInput is the per-epoch payload a host pushes into Step: the base
// event diffs for this epoch (§6). Overlay and scenario-weight diffs are not
// accepted from the host directly — they are produced internally by the
// beam expander from these events, the same way C3 feeds C5's input
// sessions in the dataflow this facade realizes synchronously.
type EpochInput struct {
	Events []model.EventEnvelope
}

// EpochOutput is everything one Step call produced.
type EpochOutput struct {
	BaseTopK      []model.TopKEntry
	BaseDiffs     []model.Diff[model.TopKEntry]
	ScenarioTopK  map[uint64][]model.TopKEntry
	ScenarioDiffs map[uint64][]model.Diff[model.TopKEntry]
	Alerts        []subscription.Alert
	Created       []model.ScenarioMeta
	Retired       []model.ScenarioMeta
}

// EventObserver receives scenario-lifecycle and alert notifications as they
// happen. Use RegisterEventObserver, or subscribe directly against Events().
type EventObserver func(events.Event)

// Snapshot is the engine's point-in-time introspection surface, returned by
// Snapshot() for a diagnostics endpoint or CLI status command.
type Snapshot struct {
	RunID        string
	Epoch        int64
	ActiveCount  int
	Metrics      MetricsSnapshot
	ActiveUptime time.Duration
}

// MetricsSnapshot is a read-only copy of the engine's own counters. These
// are the single source of truth; the prometheus/otel backends are sinks
// fed the same increments, not a second bookkeeping path.
type MetricsSnapshot struct {
	BaseEvents         int64
	PredictedEvents    int64
	ScenarioAlerts     int64
	ScenarioCreated    int64
	ScenarioRetired    int64
	ScenarioActivePeak int64
}

// Engine is the branching-futures engine facade for one domain. The zero
// value is not usable; construct with New. Step must not be called
// concurrently from more than one goroutine — the registry it drives is
// single-owner, per engine/registry's doc comment.
type Engine struct {
	cfg Config

	reg         *registry.Registry
	expander    *beam.Expander
	baseAgg     *view.Aggregate
	baseTopK    *view.TopK
	overlayJoin *overlay.Join
	subEngine   *subscription.Engine
	driver      *epoch.Driver

	logger logging.Logger
	bus    events.Bus
	health *health.Evaluator

	provider metrics.Provider
	mBase        metrics.Counter
	mPredicted   metrics.Counter
	mAlerts      metrics.Counter
	mCreated     metrics.Counter
	mRetired     metrics.Counter
	mActivePeak  metrics.Gauge

	runID     string
	frontier  atomic.Int64
	startedAt time.Time

	countersMu sync.Mutex
	counters   MetricsSnapshot
}

// New validates cfg and wires C2-C7 plus telemetry behind the facade.
// logger defaults to a slog-backed logger if left nil.
func New(cfg Config, logger logging.Logger) (*Engine, error) {
	var provider metrics.Provider
	switch cfg.MetricsBackend {
	case "prom":
		provider, _ = metrics.NewPrometheusProvider()
	default:
		provider = metrics.NewNoopProvider()
	}
	return NewWithProvider(cfg, logger, provider)
}

// NewWithProvider is New with an externally constructed Provider, for hosts
// wiring an OTel MeterProvider (which needs a Reader the engine itself has
// no opinion about) or sharing a single prometheus.Registry across several
// engines.
func NewWithProvider(cfg Config, logger logging.Logger, provider metrics.Provider) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.New(nil)
	}
	if provider == nil {
		provider = metrics.NewNoopProvider()
	}

	e := &Engine{
		cfg:         cfg,
		reg:         registry.New(),
		expander:    beam.New(cfg.Beam, cfg.Predictor),
		baseAgg:     view.NewAggregate(),
		baseTopK:    view.NewTopK(cfg.K),
		overlayJoin: overlay.New(cfg.K),
		subEngine:   subscription.New(cfg.Subscriptions, cfg.AlertDedupCapacity),
		driver:      epoch.NewDriver(epoch.RealClock{}, cfg.EpochDeadline, cfg.EpochBackoffBase, cfg.EpochBackoffMax),
		logger:      logger,
		bus:         events.NewBus(provider),
		provider:    provider,
		runID:       uuid.NewString(),
		startedAt:   time.Now(),
	}
	e.initMetrics()
	e.health = health.NewEvaluator(cfg.HealthTTL, health.ProbeFunc(e.probeFrontier))
	return e, nil
}

func (e *Engine) initMetrics() {
	e.mBase = e.provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "timelyworlds", Subsystem: "engine", Name: "base_events_total", Help: "Base events applied",
	}})
	e.mPredicted = e.provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "timelyworlds", Subsystem: "engine", Name: "predicted_scenarios_total", Help: "Scenarios created by the beam expander",
	}})
	e.mAlerts = e.provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "timelyworlds", Subsystem: "engine", Name: "alerts_total", Help: "Subscription alerts fired",
	}})
	e.mCreated = e.provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "timelyworlds", Subsystem: "engine", Name: "scenario_created_total", Help: "Scenarios created",
	}})
	e.mRetired = e.provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "timelyworlds", Subsystem: "engine", Name: "scenario_retired_total", Help: "Scenarios retired",
	}})
	e.mActivePeak = e.provider.NewGauge(metrics.GaugeOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "timelyworlds", Subsystem: "engine", Name: "scenario_active_peak", Help: "High-water mark of the active scenario set",
	}})
}

// Events returns the scenario-lifecycle and alert event bus; callers
// Subscribe against it directly, or use RegisterEventObserver for a simpler
// callback form.
func (e *Engine) Events() events.Bus { return e.bus }

// RegisterEventObserver subscribes obs to every event published on the bus,
// draining it on a background goroutine for the life of ctx.
func (e *Engine) RegisterEventObserver(ctx context.Context, obs EventObserver, buffer int) error {
	sub, err := e.bus.Subscribe(buffer)
	if err != nil {
		return err
	}
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.C():
				if !ok {
					return
				}
				obs(ev)
			}
		}
	}()
	return nil
}

// Step advances the engine by one epoch: it applies in.Events through the
// beam expander and the incremental view core, fuses the result through the
// overlay join, evaluates subscriptions, and blocks in the epoch driver
// until the engine's frontier (the epoch Snapshot reports) reaches
// targetEpoch.
func (e *Engine) Step(ctx context.Context, targetEpoch int64, in EpochInput) (EpochOutput, error) {
	ctx = tracing.WithEpoch(ctx, targetEpoch)

	var created, retired []model.ScenarioMeta
	aggDiffs := make([]model.Diff[model.KeyValue], 0, len(in.Events))
	for _, ev := range in.Events {
		e.bumpCounter(&e.counters.BaseEvents, 1)
		e.mBase.Inc(1)

		outcome := e.expander.Expand(e.reg, ev)
		created = append(created, outcome.Created...)
		retired = append(retired, outcome.Retired...)
		if n := len(outcome.Created); n > 0 {
			e.bumpCounter(&e.counters.PredictedEvents, int64(n))
			e.bumpCounter(&e.counters.ScenarioCreated, int64(n))
			e.mPredicted.Inc(float64(n))
			e.mCreated.Inc(float64(n))
			for _, s := range outcome.Created {
				e.publishScenario(tracing.WithScenario(ctx, s.ID), "created", s)
			}
		}
		if n := len(outcome.Retired); n > 0 {
			e.bumpCounter(&e.counters.ScenarioRetired, int64(n))
			e.mRetired.Inc(float64(n))
			for _, s := range outcome.Retired {
				e.publishScenario(tracing.WithScenario(ctx, s.ID), "retired", s)
			}
		}

		aggDiffs = append(aggDiffs, model.Insert(model.KeyValue{Key: ev.GroupKey, Value: e.cfg.ValueOf(ev)}))
	}

	if active := e.reg.Len(); int64(active) > e.counters.ScenarioActivePeak {
		e.bumpCounterSet(&e.counters.ScenarioActivePeak, int64(active))
		e.mActivePeak.Set(float64(active))
	}

	e.baseAgg.Apply(aggDiffs)
	baseTopK, baseDiffs := e.baseTopK.Recompute(toEntries(e.baseAgg.Snapshot()))

	active := e.reg.IterActive()
	overlays := e.reg.Overlays()
	results := e.overlayJoin.Recompute(baseTopK, e.baseAgg, active, overlays)

	weightByID := make(map[uint64]model.Prob, len(active))
	for _, s := range active {
		weightByID[s.ID] = s.Weight
	}
	alerts := e.subEngine.Evaluate(results, func(id uint64) (model.Prob, bool) {
		w, ok := weightByID[id]
		return w, ok
	})
	if n := len(alerts); n > 0 {
		e.bumpCounter(&e.counters.ScenarioAlerts, int64(n))
		e.mAlerts.Inc(float64(n))
		for _, a := range alerts {
			e.publishAlert(tracing.WithScenario(ctx, a.ScenarioID), a)
		}
	}

	e.frontier.Store(targetEpoch)
	if err := e.driver.Advance(ctx, targetEpoch, func() int64 { return e.frontier.Load() }); err != nil {
		e.logger.ErrorCtx(ctx, "epoch stalled", "target", targetEpoch, "error", err)
		return EpochOutput{}, err
	}

	scenarioTopK := make(map[uint64][]model.TopKEntry, len(results))
	scenarioDiffs := make(map[uint64][]model.Diff[model.TopKEntry], len(results))
	for _, r := range results {
		scenarioTopK[r.ScenarioID] = r.TopK
		scenarioDiffs[r.ScenarioID] = r.Diffs
	}

	return EpochOutput{
		BaseTopK:      baseTopK,
		BaseDiffs:     baseDiffs,
		ScenarioTopK:  scenarioTopK,
		ScenarioDiffs: scenarioDiffs,
		Alerts:        alerts,
		Created:       created,
		Retired:       retired,
	}, nil
}

// Snapshot returns a point-in-time view of the engine's own counters.
func (e *Engine) Snapshot() Snapshot {
	e.countersMu.Lock()
	m := e.counters
	e.countersMu.Unlock()
	return Snapshot{
		RunID:        e.runID,
		Epoch:        e.frontier.Load(),
		ActiveCount:  e.reg.Len(),
		Metrics:      m,
		ActiveUptime: time.Since(e.startedAt),
	}
}

// HealthSnapshot rolls up the engine's registered probes, currently just
// the "frontier" probe, which always reports healthy; a frontier stall is
// surfaced only as the error Step returns.
func (e *Engine) HealthSnapshot(ctx context.Context) health.Snapshot {
	return e.health.Evaluate(ctx)
}

func (e *Engine) probeFrontier(context.Context) health.ProbeResult {
	return health.Healthy("frontier")
}

func (e *Engine) publishScenario(ctx context.Context, kind string, s model.ScenarioMeta) {
	fields := map[string]any{
		"scenario_id": s.ID,
		"depth":       s.Depth,
		"weight":      s.Weight,
	}
	e.stampRunID(ctx, fields)
	_ = e.bus.PublishCtx(ctx, events.Event{
		Category: events.CategoryScenario,
		Type:     kind,
		Fields:   fields,
	})
}

func (e *Engine) publishAlert(ctx context.Context, a subscription.Alert) {
	fields := map[string]any{
		"scenario_id": a.ScenarioID,
		"key":         a.Key,
		"value":       a.Value,
		"weight":      a.Weight,
	}
	e.stampRunID(ctx, fields)
	_ = e.bus.PublishCtx(ctx, events.Event{
		Category: events.CategoryAlert,
		Type:     "fired",
		Severity: "info",
		Fields:   fields,
	})
}

// stampRunID adds the engine's run id to fields, so a consumer that has
// seen epoch numbering restart from 1 (a process redeployment reusing the
// same frontier) can still tell which engine run produced the event.
func (e *Engine) stampRunID(_ context.Context, fields map[string]any) {
	fields["run_id"] = e.runID
}

func (e *Engine) bumpCounter(field *int64, delta int64) {
	e.countersMu.Lock()
	*field += delta
	e.countersMu.Unlock()
}

func (e *Engine) bumpCounterSet(field *int64, v int64) {
	e.countersMu.Lock()
	*field = v
	e.countersMu.Unlock()
}

func toEntries(sums map[uint64]int64) []model.TopKEntry {
	out := make([]model.TopKEntry, 0, len(sums))
	for key, value := range sums {
		out = append(out, model.TopKEntry{Key: key, Value: value})
	}
	return out
}
