package httpx

import (
	"context"
	"net/http"

	domainauth "github.com/target/gatekeeper/internal/domain/auth"
	"github.com/target/gatekeeper/internal/observability/metrics"
	"github.com/target/gatekeeper/internal/observability/statsd"
)

// AdmissionChecker decides whether address may make another request in namespace.
// *service.AdmissionController implements it.
type AdmissionChecker interface {
	Check(ctx context.Context, namespace, address string) domainauth.Decision
}

// AdmissionConfig configures Admit.
type AdmissionConfig struct {
	Checker AdmissionChecker
	// Namespace separates the buckets of one route from every other route.
	Namespace         string
	TrustProxyHeaders bool
	Metrics           statsd.Sink
}

// Admit consumes one admission token per request and answers 429 once the
// caller's bucket is empty. Rejected requests never reach next.
func Admit(cfg AdmissionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if cfg.Checker == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := cfg.Checker.Check(r.Context(), cfg.Namespace, ClientIP(r, cfg.TrustProxyHeaders))
			if !d.Allowed {
				metrics.EmitGuardOutcome(cfg.Metrics, domainauth.Throttled.String())
				writeThrottled(w, d.RetryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
