// Package promsink exposes auth metrics for Prometheus scraping. It adapts the
// statsd.Sink calls made by the metrics package onto pre-registered vectors.
package promsink

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/target/gatekeeper/internal/observability/statsd"
)

const namespace = "gatekeeper"

var _ statsd.Sink = (*Sink)(nil)

// Sink records known metric names. Names without a registered series are ignored.
type Sink struct {
	counters map[string]labelled[*prometheus.CounterVec]
	timings  map[string]labelled[*prometheus.HistogramVec]
	gauges   map[string]labelled[*prometheus.GaugeVec]
}

type labelled[V any] struct {
	vec    V
	labels []string
}

// New registers the auth series on reg.
func New(reg prometheus.Registerer) *Sink {
	s := &Sink{
		counters: map[string]labelled[*prometheus.CounterVec]{},
		timings:  map[string]labelled[*prometheus.HistogramVec]{},
		gauges:   map[string]labelled[*prometheus.GaugeVec]{},
	}

	s.counter(reg, "auth.login", "Login attempts by result.", "result", "error_class")
	s.counter(reg, "auth.token.rejected", "Session tokens that failed verification.", "reason")
	s.counter(reg, "auth.admission", "Admission decisions per route namespace.", "namespace", "result")
	s.counter(reg, "auth.admission.store_error", "Admission store failures that were admitted.", "namespace")
	s.counter(reg, "auth.guard", "Authorization outcomes.", "outcome")
	s.counter(reg, "auth.register", "Registration attempts by result.", "result")
	s.counter(reg, "ops.notify", "Operational notifications by sink and result.", "sink", "result")
	s.timing(reg, "auth.login.duration", "Login latency including password verification.", "result", "error_class")
	s.gauge(reg, "auth.hash.inflight", "Password derivations currently running.")

	return s
}

func seriesName(metric string) string {
	return strings.ReplaceAll(metric, ".", "_")
}

func (s *Sink) counter(reg prometheus.Registerer, metric, help string, labels ...string) {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      seriesName(metric) + "_total",
		Help:      help,
	}, labels)
	reg.MustRegister(vec)
	s.counters[metric] = labelled[*prometheus.CounterVec]{vec: vec, labels: labels}
}

func (s *Sink) timing(reg prometheus.Registerer, metric, help string, labels ...string) {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      seriesName(metric) + "_seconds",
		Help:      help,
		Buckets:   prometheus.DefBuckets,
	}, labels)
	reg.MustRegister(vec)
	s.timings[metric] = labelled[*prometheus.HistogramVec]{vec: vec, labels: labels}
}

func (s *Sink) gauge(reg prometheus.Registerer, metric, help string, labels ...string) {
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      seriesName(metric),
		Help:      help,
	}, labels)
	reg.MustRegister(vec)
	s.gauges[metric] = labelled[*prometheus.GaugeVec]{vec: vec, labels: labels}
}

// values picks the label values in declared order; missing tags become "".
func values(labels []string, tags map[string]string) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = tags[l]
	}
	return out
}

// Count implements statsd.Sink.
func (s *Sink) Count(name string, value int64, tags map[string]string) {
	if s == nil {
		return
	}
	if c, ok := s.counters[name]; ok && value > 0 {
		c.vec.WithLabelValues(values(c.labels, tags)...).Add(float64(value))
	}
}

// Gauge implements statsd.Sink.
func (s *Sink) Gauge(name string, value float64, tags map[string]string) {
	if s == nil {
		return
	}
	if g, ok := s.gauges[name]; ok {
		g.vec.WithLabelValues(values(g.labels, tags)...).Set(value)
	}
}

// Timing implements statsd.Sink.
func (s *Sink) Timing(name string, value time.Duration, tags map[string]string) {
	if s == nil {
		return
	}
	if h, ok := s.timings[name]; ok {
		h.vec.WithLabelValues(values(h.labels, tags)...).Observe(value.Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
