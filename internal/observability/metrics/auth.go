package metrics

import (
	"time"

	obserrors "github.com/target/gatekeeper/internal/observability/errors"
	"github.com/target/gatekeeper/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultError    = "error"
	ResultAllowed  = "allowed"
	ResultRejected = "rejected"
)

// LoginMetric captures a single login attempt.
type LoginMetric struct {
	Result   string
	Duration time.Duration
	Err      error
}

// EmitLogin records login outcomes. Failures never carry the identifier.
func EmitLogin(sink statsd.Sink, in LoginMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{"result": in.Result}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("auth.login", 1, tags)
	if in.Duration > 0 {
		sink.Timing("auth.login.duration", in.Duration, CloneTags(tags))
	}
}

// EmitTokenRejected counts session tokens that failed verification, by reason.
func EmitTokenRejected(sink statsd.Sink, reason string) {
	if sink == nil {
		return
	}
	sink.Count("auth.token.rejected", 1, map[string]string{"reason": reason})
}

// EmitAdmission counts admission decisions per route namespace.
func EmitAdmission(sink statsd.Sink, namespace string, allowed bool) {
	if sink == nil {
		return
	}
	result := ResultAllowed
	if !allowed {
		result = ResultRejected
	}
	sink.Count("auth.admission", 1, map[string]string{"namespace": namespace, "result": result})
}

// EmitGuardOutcome counts authorization decisions by outcome.
func EmitGuardOutcome(sink statsd.Sink, outcome string) {
	if sink == nil {
		return
	}
	sink.Count("auth.guard", 1, map[string]string{"outcome": outcome})
}

// EmitAdmissionStoreError counts store failures that were admitted anyway.
func EmitAdmissionStoreError(sink statsd.Sink, namespace string) {
	if sink == nil {
		return
	}
	sink.Count("auth.admission.store_error", 1, map[string]string{"namespace": namespace})
}

// EmitRegister records registration outcomes.
func EmitRegister(sink statsd.Sink, result string) {
	if sink == nil {
		return
	}
	sink.Count("auth.register", 1, map[string]string{"result": result})
}

// EmitNotify records one operator notification delivery attempt.
func EmitNotify(sink statsd.Sink, sinkName string, err error) {
	if sink == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	sink.Count("ops.notify", 1, map[string]string{"sink": sinkName, "result": result})
}

// EmitHashInflight reports the number of running password derivations.
func EmitHashInflight(sink statsd.Sink, n int64) {
	if sink == nil {
		return
	}
	sink.Gauge("auth.hash.inflight", float64(n), nil)
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
