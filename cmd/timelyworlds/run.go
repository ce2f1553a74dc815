package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"timelyworlds/cmd/timelyworlds/internal/runconfig"
	"timelyworlds/cmd/timelyworlds/internal/workload"
	"timelyworlds/engine"
	"timelyworlds/engine/adapters/httpapi"
	"timelyworlds/engine/domain/manufacturing"
	"timelyworlds/engine/domain/retail"
	"timelyworlds/engine/telemetry/events"
	"timelyworlds/engine/telemetry/logging"
	"timelyworlds/engine/telemetry/metrics"
	"timelyworlds/engine/subscription"
)

var runFlags struct {
	beamWidth       int
	minProb         float64
	branchProb      float64
	maxDepth        uint32
	deltaMultiplier float64
	minDelta        int64
	k               int
	epochs          int
	eventsPerEpoch  int
	seed            int64
	metricsAddr     string
	metricsBackend  string
	alertThreshold  int64
	configPath      string
	watchConfig     bool
}

var runCmd = &cobra.Command{
	Use:   "run retail|manufacturing",
	Args:  cobra.ExactArgs(1),
	Short: "Run the engine against a synthetic workload for one domain",
	RunE:  runEngine,
}

func init() {
	f := runCmd.Flags()
	f.IntVar(&runFlags.beamWidth, "beam-width", 8, "maximum active scenarios kept after each epoch")
	f.Float64Var(&runFlags.minProb, "min-prob", 0.05, "minimum scenario weight before culling")
	f.Float64Var(&runFlags.branchProb, "branch-prob", 0.5, "per-child branch probability multiplier")
	f.Uint32Var(&runFlags.maxDepth, "max-depth", 3, "maximum scenario tree depth")
	f.Float64Var(&runFlags.deltaMultiplier, "delta-multiplier", 1.0, "scale applied to the predictor's raw delta")
	f.Int64Var(&runFlags.minDelta, "min-delta", -1<<40, "floor clamp applied to the scaled delta")
	f.IntVar(&runFlags.k, "k", 10, "top-K bound for the base view and every scenario")
	f.IntVar(&runFlags.epochs, "epochs", 20, "number of epochs to run")
	f.IntVar(&runFlags.eventsPerEpoch, "events-per-epoch", 25, "synthetic events generated per epoch")
	f.Int64Var(&runFlags.seed, "seed", 1, "workload generator seed")
	f.StringVar(&runFlags.metricsAddr, "metrics-addr", "", "if set, serve /metrics and /healthz on this address")
	f.StringVar(&runFlags.metricsBackend, "metrics-backend", "noop", "metrics provider: noop or prom")
	f.Int64Var(&runFlags.alertThreshold, "alert-threshold", 10000, "alert fires when a scenario top-K value is at or above this value")
	f.StringVar(&runFlags.configPath, "config", "", "optional YAML file overriding beam/K/alert-threshold flags")
	f.BoolVar(&runFlags.watchConfig, "watch-config", false, "hot-reload --config's alert_threshold on file change")
}

func runEngine(cmd *cobra.Command, args []string) error {
	domain := args[0]

	cfg := engine.Defaults()
	cfg.Beam.BeamWidth = runFlags.beamWidth
	cfg.Beam.MinProb = runFlags.minProb
	cfg.Beam.BranchProb = runFlags.branchProb
	cfg.Beam.MaxDepth = runFlags.maxDepth
	cfg.Beam.DeltaMultiplier = runFlags.deltaMultiplier
	cfg.Beam.MinDelta = runFlags.minDelta
	cfg.K = runFlags.k

	threshold := runconfig.NewLiveThreshold(runFlags.alertThreshold)
	cfg.Subscriptions = []subscription.Predicate{threshold}

	if runFlags.configPath != "" {
		rc, err := runconfig.Load(runFlags.configPath)
		if err != nil {
			return err
		}
		rc.ApplyBeam(&cfg.Beam)
		if rc.K > 0 {
			cfg.K = rc.K
		}
		if rc.AlertThreshold != 0 {
			threshold.Set(rc.AlertThreshold)
		}
	}

	var gen workload.Generator
	switch domain {
	case "retail":
		cfg.Predictor = retail.FractionPredictor(0.2, 0)
		cfg.ValueOf = retail.AggregateValue
		gen = workload.NewRetail(runFlags.seed, 50, 20000)
	case "manufacturing":
		cfg.Predictor = manufacturing.ThroughputPredictor(0.3, 0)
		cfg.ValueOf = manufacturing.AggregateValue
		gen = workload.NewManufacturing(runFlags.seed, 20, 500)
	default:
		return fmt.Errorf("unknown domain %q: want retail or manufacturing", domain)
	}

	logger, err := buildLogger(logFormat)
	if err != nil {
		return err
	}

	var promReg *prometheus.Registry
	var provider metrics.Provider
	switch runFlags.metricsBackend {
	case "prom":
		provider, promReg = metrics.NewPrometheusProvider()
	case "noop", "":
		provider = metrics.NewNoopProvider()
	default:
		return fmt.Errorf("unknown --metrics-backend %q", runFlags.metricsBackend)
	}

	eng, err := engine.NewWithProvider(cfg, logger, provider)
	if err != nil {
		return fmt.Errorf("engine init: %w", err)
	}

	ctx := context.Background()
	if err := eng.RegisterEventObserver(ctx, logEvent(logger), 64); err != nil {
		return fmt.Errorf("event observer: %w", err)
	}

	if runFlags.configPath != "" && runFlags.watchConfig {
		watcher, err := runconfig.Watch(runFlags.configPath, func(rc *runconfig.File) {
			if rc.AlertThreshold != 0 {
				threshold.Set(rc.AlertThreshold)
				logger.InfoCtx(ctx, "config reloaded", "alert_threshold", rc.AlertThreshold)
			}
		})
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		defer watcher.Close()
	}

	if runFlags.metricsAddr != "" {
		go serveMetrics(runFlags.metricsAddr, eng, promReg)
	}

	for e := int64(1); e <= int64(runFlags.epochs); e++ {
		in := engine.EpochInput{Events: gen.Epoch(e, runFlags.eventsPerEpoch)}
		out, err := eng.Step(ctx, e, in)
		if err != nil {
			return fmt.Errorf("epoch %d: %w", e, err)
		}
		logger.InfoCtx(ctx, "epoch complete",
			"epoch", e,
			"created", len(out.Created),
			"retired", len(out.Retired),
			"alerts", len(out.Alerts),
		)
	}

	snap := eng.Snapshot()
	fmt.Printf("final epoch=%d active=%d base_events=%d scenarios_created=%d scenarios_retired=%d alerts=%d peak_active=%d\n",
		snap.Epoch, snap.ActiveCount, snap.Metrics.BaseEvents, snap.Metrics.ScenarioCreated,
		snap.Metrics.ScenarioRetired, snap.Metrics.ScenarioAlerts, snap.Metrics.ScenarioActivePeak)
	return nil
}

// logEvent adapts a logging.Logger into an engine.EventObserver, logging
// every scenario-lifecycle and alert notification as it is published.
func logEvent(logger logging.Logger) engine.EventObserver {
	return func(ev events.Event) {
		attrs := make([]any, 0, 2+2*len(ev.Fields))
		attrs = append(attrs, "category", ev.Category, "type", ev.Type)
		for k, v := range ev.Fields {
			attrs = append(attrs, k, v)
		}
		logger.InfoCtx(context.Background(), "engine event", attrs...)
	}
}

func buildLogger(format string) (logging.Logger, error) {
	switch format {
	case "zerolog":
		return logging.NewZerolog(zerolog.New(os.Stdout).With().Timestamp().Logger()), nil
	case "zap":
		z, err := zap.NewProduction()
		if err != nil {
			return nil, err
		}
		return logging.NewZap(z), nil
	case "slog", "":
		return logging.New(slog.New(slog.NewTextHandler(os.Stdout, nil))), nil
	default:
		return nil, fmt.Errorf("unknown --log-format %q", format)
	}
}

func serveMetrics(addr string, eng *engine.Engine, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/healthz", httpapi.NewHealthHandler(httpapi.HealthHandlerOptions{Source: eng, IncludeProbes: true}))
	if reg != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	_ = server.ListenAndServe()
}
