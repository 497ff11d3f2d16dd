// Package health exposes a minimal operability surface for a process
// embedding the agent execution core: tool registry size, key pool
// availability, and circuit breaker states. It is not part of the core's
// own contract (§10 of the specification) — a host process binds it
// alongside the metrics endpoint purely for operator visibility.
package health

import (
	"encoding/json"
	"net/http"

	"github.com/sidepanelai/agentcore/internal/circuit"
	"github.com/sidepanelai/agentcore/internal/keypool"
	"github.com/sidepanelai/agentcore/internal/registry"
	"github.com/sidepanelai/agentcore/internal/tools/browser"
)

// Summary is the JSON body /healthz returns.
type Summary struct {
	Status             string   `json:"status"`
	ToolCount          int      `json:"toolCount"`
	ActiveKeys         int      `json:"activeKeys"`
	OpenBreakers       []string `json:"openBreakers"`
	BrowserInstances   int      `json:"browserInstances"`
	BrowserMaxInstances int     `json:"browserMaxInstances"`
}

// Handler builds an http.Handler reporting reg, keys, breakers and the
// browser pool's state. Status is "degraded" when there are no active keys,
// any breaker is open, or the browser pool has been closed.
func Handler(reg *registry.Registry, keys *keypool.Pool, breakers *circuit.Registry, pool *browser.Pool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats := pool.Stats()
		summary := Summary{
			Status:              "ok",
			ToolCount:           len(reg.List()),
			ActiveKeys:          keys.ActiveCount(),
			OpenBreakers:        breakers.OpenBreakers(),
			BrowserInstances:    stats.AvailableInstances,
			BrowserMaxInstances: stats.MaxInstances,
		}
		statusCode := http.StatusOK
		if summary.ActiveKeys == 0 || len(summary.OpenBreakers) > 0 || stats.IsClosed {
			summary.Status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(summary)
	})
}
