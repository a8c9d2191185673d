package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/callprep/internal/store"
	"github.com/go-chi/chi/v5"
)

const healthCheckTimeout = 5 * time.Second

// HealthHandler reports the status of the API and its session store.
type HealthHandler struct {
	repo    store.Repository
	started time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(repo store.Repository) *HealthHandler {
	return &HealthHandler{repo: repo, started: time.Now()}
}

// Status returns the health of the API and its dependencies.
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]any{
		"status": "healthy",
		"checks": checks,
		"uptime": time.Since(h.started).Round(time.Second).String(),
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
		if n, err := h.repo.CountSessions(ctx); err == nil {
			status["sessions"] = n
		}
	}

	JSON(w, statusCode, status)
}

// RegisterRoutes registers the status route. The bare /health heartbeat is
// served by chi middleware.
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/status", h.Status)
}
