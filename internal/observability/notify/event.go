package notify

import (
	"context"
	"strconv"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// Security event kinds.
const (
	KindCorruptCredentialStore = "corrupt_credential_store"
)

// SecurityEvent is an operational condition an operator must act on.
// It never carries credentials or token material.
type SecurityEvent struct {
	Kind       string
	Summary    string
	UserID     int64
	Error      string
	ErrorClass string
	Severity   string
	OccurredAt time.Time
	Metadata   map[string]string
}

// DedupKey groups repeated occurrences of the same condition.
func (e SecurityEvent) DedupKey() string {
	if e.UserID > 0 {
		return e.Kind + ":user:" + strconv.FormatInt(e.UserID, 10)
	}
	return e.Kind
}

// Sink describes a destination capable of consuming security events.
type Sink interface {
	SendSecurityEvent(ctx context.Context, event SecurityEvent) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, event SecurityEvent) error

// SendSecurityEvent implements the Sink interface.
func (f SinkFunc) SendSecurityEvent(ctx context.Context, event SecurityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}
