package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// healthCheckTimeout bounds how long a single dependency probe may take.
const healthCheckTimeout = 2 * time.Second

// HealthCheckFunc probes a single dependency.
type HealthCheckFunc func(ctx context.Context) error

// HealthHandler serves the health-check endpoint. Beyond liveness it runs
// the registered dependency probes (database, cache, object storage) and
// reports each one's state.
type HealthHandler struct {
	checks map[string]HealthCheckFunc
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler with the given dependency probes.
// A nil or empty checks map yields a plain liveness endpoint.
func NewHealthHandler(checks map[string]HealthCheckFunc, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, logger: logger}
}

// HealthCheck responds with the server status and the state of each
// registered dependency. Any failing probe degrades the overall status and
// the response code becomes 503.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK

	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := check(ctx)
		cancel()

		if err != nil {
			h.logger.Warn("health check failed", "dependency", name, "error", err)
			deps[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	payload := map[string]any{
		"status":    status,
		"service":   "marketd",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if len(deps) > 0 {
		payload["dependencies"] = deps
	}

	writeJSON(w, code, payload)
}
