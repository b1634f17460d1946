package handlers

import (
	"net/http"
	"time"

	"github.com/docspp/cluster/internal/namenode"
)

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness probe: is the process running?
//   - Readiness probe: does the coordinator have at least one live Storage
//     Node to route to?
type HealthHandler struct {
	coordinator *namenode.Coordinator
	startTime   time.Time
}

// NewHealthHandler creates a new health handler. coordinator may be nil,
// in which case readiness returns unhealthy.
func NewHealthHandler(coordinator *namenode.Coordinator) *HealthHandler {
	return &HealthHandler{
		coordinator: coordinator,
		startTime:   time.Now(),
	}
}

// Liveness handles GET /health - simple liveness probe.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	writeJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{
		"service":    "docspp-nn",
		"started_at": h.startTime.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
		"uptime_sec": int64(uptime.Seconds()),
	}))
}

// Readiness handles GET /health/ready - readiness probe. Returns 200 OK
// if the coordinator exists and has at least one live Storage Node,
// since a Name Node with no live Storage Nodes cannot route any request.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.coordinator == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("coordinator not initialized"))
		return
	}

	sns := h.coordinator.SNRegistry().List()
	if len(sns) == 0 {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("no storage nodes registered"))
		return
	}

	live := 0
	for _, sn := range sns {
		if sn.Alive {
			live++
		}
	}
	if live == 0 {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("no live storage nodes"))
		return
	}

	writeJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{
		"storage_nodes": map[string]interface{}{
			"registered": len(sns),
			"live":       live,
		},
		"clients": h.coordinator.ClientRegistry().Count(),
	}))
}
