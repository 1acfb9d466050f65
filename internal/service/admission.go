package service

import (
	"context"
	"log/slog"

	domainauth "github.com/target/gatekeeper/internal/domain/auth"
	"github.com/target/gatekeeper/internal/observability/metrics"
	"github.com/target/gatekeeper/internal/observability/statsd"
	"github.com/target/gatekeeper/internal/ports"
)

// AdmissionControllerOptions groups dependencies for AdmissionController.
type AdmissionControllerOptions struct {
	Store   ports.AdmissionStore
	Metrics statsd.Sink
	Logger  *slog.Logger
}

// AdmissionController rate limits sensitive routes per source address.
// Each namespace (one per route) has its own buckets.
type AdmissionController struct {
	store   ports.AdmissionStore
	metrics statsd.Sink
	logger  *slog.Logger
}

// NewAdmissionController constructs an AdmissionController.
func NewAdmissionController(opts AdmissionControllerOptions) *AdmissionController {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AdmissionController{
		store:   opts.Store,
		metrics: opts.Metrics,
		logger:  logger.With("component", "admission"),
	}
}

// BucketKey joins namespace and address into a store key.
func BucketKey(namespace, address string) string {
	if address == "" {
		address = "unknown"
	}
	return namespace + "|" + address
}

// Check consumes one token for address in namespace.
//
// A failing store admits the request: the limiter protects the hasher, and an
// outage of the limiter backend must not lock every user out. The failure is
// logged and counted.
func (a *AdmissionController) Check(ctx context.Context, namespace, address string) domainauth.Decision {
	d, err := a.store.Take(ctx, BucketKey(namespace, address))
	if err != nil {
		a.logger.WarnContext(ctx, "admission store unavailable, admitting request",
			"namespace", namespace,
			"error", err,
		)
		metrics.EmitAdmissionStoreError(a.metrics, namespace)
		return domainauth.Decision{Allowed: true}
	}
	metrics.EmitAdmission(a.metrics, namespace, d.Allowed)
	if !d.Allowed {
		a.logger.InfoContext(ctx, "request throttled", "namespace", namespace, "retry_after", d.RetryAfter)
	}
	return d
}
