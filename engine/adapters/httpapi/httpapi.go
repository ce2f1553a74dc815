// Package httpapi wires the engine facade's introspection surface onto
// net/http: a JSON /healthz handler over engine.HealthSnapshot, the way the
// teacher's engine/adapters/telemetryhttp exposes its own engine. It has no
// /metrics handler; the CLI serves that with promhttp directly.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"timelyworlds/engine/telemetry/health"
)

// HealthSource is the subset of *engine.Engine the health handler needs;
// satisfied by (*engine.Engine).HealthSnapshot.
type HealthSource interface {
	HealthSnapshot(ctx context.Context) health.Snapshot
}

type healthResponse struct {
	Overall Status      `json:"overall"`
	Probes  []probeJSON `json:"probes,omitempty"`
	Checked time.Time   `json:"checked_at"`
}

type Status = health.Status

type probeJSON struct {
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// HealthHandlerOptions configures NewHealthHandler.
type HealthHandlerOptions struct {
	Source        HealthSource
	IncludeProbes bool
}

// NewHealthHandler serves the rolled-up health snapshot as JSON, returning
// 200 for healthy/degraded and 503 for unhealthy.
func NewHealthHandler(opts HealthHandlerOptions) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if opts.Source == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "engine not configured"})
			return
		}
		snap := opts.Source.HealthSnapshot(r.Context())
		resp := healthResponse{Overall: snap.Overall, Checked: time.Now()}
		if opts.IncludeProbes {
			for _, p := range snap.Probes {
				resp.Probes = append(resp.Probes, probeJSON{Name: p.Name, Status: p.Status, Detail: p.Detail, CheckedAt: p.CheckedAt})
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if snap.Overall == health.StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
}
