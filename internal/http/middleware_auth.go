package httpx

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	domainauth "github.com/target/gatekeeper/internal/domain/auth"
	"github.com/target/gatekeeper/internal/observability/metrics"
	"github.com/target/gatekeeper/internal/observability/statsd"
)

// GuardConfig configures RequireGuards.
type GuardConfig struct {
	Guards  []domainauth.Guard
	Metrics statsd.Sink
	Logger  *slog.Logger
}

// RequireGuards evaluates the configured guards against the principal that
// Identify placed in the context. Only Proceed reaches next.
func RequireGuards(cfg GuardConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			out := domainauth.Evaluate(p, r.URL.RequestURI(), cfg.Guards...)
			metrics.EmitGuardOutcome(cfg.Metrics, out.Kind.String())

			if out.Kind != domainauth.Proceed {
				logger.DebugContext(r.Context(), "request stopped by guard",
					"path", r.URL.Path,
					"principal", p.String(),
					"outcome", out.Kind.String(),
				)
				WriteOutcome(w, r, out)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), out.Principal)))
		})
	}
}

// RequireAuthenticated admits any signed-in principal.
func RequireAuthenticated(loginPath string, sink statsd.Sink) func(http.Handler) http.Handler {
	return RequireGuards(GuardConfig{
		Guards:  []domainauth.Guard{domainauth.AuthenticatedGuard{LoginPath: loginPath}},
		Metrics: sink,
	})
}

// RequireAdmin admits only admins. Anonymous callers are sent to login first.
func RequireAdmin(loginPath string, sink statsd.Sink) func(http.Handler) http.Handler {
	return RequireGuards(GuardConfig{
		Guards: []domainauth.Guard{
			domainauth.AuthenticatedGuard{LoginPath: loginPath},
			domainauth.AdminGuard{LoginPath: loginPath},
		},
		Metrics: sink,
	})
}

// WriteOutcome answers a request that a guard or the admission controller stopped.
// Browsers are redirected to login; API callers get 401 JSON carrying the login location.
func WriteOutcome(w http.ResponseWriter, r *http.Request, out domainauth.Outcome) {
	switch out.Kind {
	case domainauth.Redirect:
		if isBrowserRequest(r) {
			http.Redirect(w, r, out.Location, http.StatusSeeOther)
			return
		}
		WriteJSON(w, http.StatusUnauthorized, map[string]string{
			"error":    "authentication_required",
			"message":  "authentication required",
			"location": out.Location,
		})
	case domainauth.Forbidden:
		if isBrowserRequest(r) {
			http.Error(w, "Access Denied: You don't have permission to access this resource", http.StatusForbidden)
			return
		}
		WriteError(w, ErrorParams{
			Code:    http.StatusForbidden,
			ErrCode: "insufficient_permissions",
			Err:     errors.New("insufficient permissions"),
		})
	case domainauth.Throttled:
		writeThrottled(w, 0)
	default:
		// Proceed is never written.
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "internal_error",
			Err:     errors.New("internal server error"),
		})
	}
}

// writeThrottled writes 429 with Retry-After in whole seconds, at least one.
func writeThrottled(w http.ResponseWriter, retryAfter time.Duration) {
	secs := max(int(math.Ceil(retryAfter.Seconds())), 1)
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	WriteError(w, ErrorParams{
		Code:    http.StatusTooManyRequests,
		ErrCode: "too_many_requests",
		Err:     domainauth.ErrThrottled,
	})
}
