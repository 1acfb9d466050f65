// Package opsalert fans security events out to every configured operator sink.
package opsalert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/target/gatekeeper/internal/observability/metrics"
	"github.com/target/gatekeeper/internal/observability/notify"
	"github.com/target/gatekeeper/internal/observability/statsd"
)

// SinkRegistration pairs a sink implementation with a human-readable name for logging.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the notifier.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
	// Cooldown suppresses repeats of the same dedup key. Zero disables suppression.
	Cooldown time.Duration
	Now      func() time.Time
	Metrics  statsd.Sink
}

// Service dispatches security events to all registered sinks.
type Service struct {
	logger   *slog.Logger
	sinks    []SinkRegistration
	cooldown time.Duration
	now      func() time.Time
	metrics  statsd.Sink

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewService constructs a notifier.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "ops_alert")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		if entry.Name == "" {
			entry.Name = "sink"
		}
		sinks = append(sinks, entry)
	}

	return &Service{
		logger:   logger,
		sinks:    sinks,
		cooldown: opts.Cooldown,
		now:      now,
		metrics:  opts.Metrics,
		lastSent: make(map[string]time.Time),
	}
}

// Notify delivers event to every sink concurrently and waits for all of them.
// Delivery errors are logged, never returned.
func (s *Service) Notify(ctx context.Context, event notify.SecurityEvent) {
	if s == nil || len(s.sinks) == 0 {
		return
	}
	if event.Severity == "" {
		event.Severity = notify.SeverityCritical
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if s.suppressed(event.DedupKey(), event.OccurredAt) {
		s.logger.DebugContext(ctx, "security event suppressed by cooldown", "kind", event.Kind)
		return
	}

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := entry.Sink.SendSecurityEvent(ctx, event)
			metrics.EmitNotify(s.metrics, entry.Name, err)
			if err != nil {
				s.logger.ErrorContext(ctx, "security event delivery error",
					"sink", entry.Name,
					"kind", event.Kind,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}

// Enabled reports whether the notifier has any active sinks.
func (s *Service) Enabled() bool {
	return s != nil && len(s.sinks) > 0
}

func (s *Service) suppressed(key string, at time.Time) bool {
	if s.cooldown <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastSent[key]; ok && at.Sub(last) < s.cooldown {
		return true
	}
	s.lastSent[key] = at
	return false
}
