package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vibeteen/mural/pkg/metrics"
)

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// HealthHandler serves liveness and metrics.
type HealthHandler struct {
	statsProvider StatsProvider
	metrics       http.Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(statsProvider StatsProvider) *HealthHandler {
	return &HealthHandler{
		statsProvider: statsProvider,
		metrics:       promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// HandleHealth handles GET /healthz with the service statistics. A stopped
// service answers 503.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	stats := h.statsProvider.GetStats()
	status := http.StatusOK
	if started, _ := stats["started"].(bool); !started {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, stats)
}

// HandleMetrics handles GET /metrics from the custom registry.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}
