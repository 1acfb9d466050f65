package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

const defaultHealthTimeout = 2 * time.Second

// HealthHandlers serves GET/HEAD /healthz.
type HealthHandlers struct {
	// Checks are keyed by dependency name, e.g. "postgres" or "redis".
	Checks  map[string]HealthCheck
	Timeout time.Duration
	Logger  *slog.Logger
}

// Health runs every check and answers 200 when all pass, otherwise 503.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = defaultHealthTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.Checks[name](ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = "unavailable"
			if h.Logger != nil {
				h.Logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
			}
			continue
		}
		results[name] = "ok"
	}

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		return
	}

	body := map[string]any{"status": "ok"}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if len(results) > 0 {
		body["checks"] = results
	}
	WriteJSON(w, status, body)
}
