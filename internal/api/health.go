package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Pinger is a dependency whose reachability is reported by the readiness check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles readiness checks.
type HealthHandler struct {
	journal Pinger
	timeout time.Duration
}

// NewHealthHandler creates a health handler. journal may be nil when the
// turn journal is disabled.
func NewHealthHandler(journal Pinger) *HealthHandler {
	return &HealthHandler{journal: journal, timeout: 5 * time.Second}
}

// Ready returns the health status of the API and its dependencies.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	switch {
	case h.journal == nil:
		checks["journal"] = "disabled"
	case h.journal.Ping(ctx) != nil:
		slog.Error("Readiness check failed", "dependency", "journal")
		status["status"] = "degraded"
		checks["journal"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	default:
		checks["journal"] = "ok"
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the readiness route. Liveness is served by the
// heartbeat middleware on /health.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health/ready", h.Ready)
}
