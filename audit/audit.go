// Package audit delivers security-relevant events to an external sink.
// Every tenant switch, access denial, token rotation, and reuse detection
// produced by the authorization core passes through a Sink.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event types recorded by the core.
const (
	EventTenantResolved  = "tenant.resolved"
	EventTenantSwitch    = "tenant.switch"
	EventAccessDenied    = "access.denied"
	EventTokenIssued     = "token.issued"
	EventTokenRotated    = "token.rotated"
	EventTokenReuse      = "token.reuse_detected"
	EventTokensRevoked   = "token.revoked_all"
	EventRoleMutated     = "role.mutated"
	EventGrantChanged    = "role.grant_changed"
)

// Event is a single audit record.
type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	UserID    string            `json:"user_id,omitempty"`
	TenantID  string            `json:"tenant_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Sink receives audit events. Implementations must be safe for concurrent
// use; Record must not block on slow downstreams.
type Sink interface {
	Record(ctx context.Context, event Event)
}

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// NewEvent fills in the id and timestamp for an event.
func NewEvent(eventType, userID, tenantID string, metadata map[string]string) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		UserID:    userID,
		TenantID:  tenantID,
		Metadata:  metadata,
		Timestamp: NowTimeFunc().UTC(),
	}
}

// LogSink writes audit events as structured log lines.
type LogSink struct {
	logger zerolog.Logger
}

var _ Sink = (*LogSink)(nil)

// NewLogSink creates a sink that emits events through the given logger.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(ctx context.Context, event Event) {
	entry := s.logger.Info().
		Str("audit_id", event.ID).
		Str("event", event.Type).
		Time("ts", event.Timestamp)
	if event.UserID != "" {
		entry = entry.Str("user_id", event.UserID)
	}
	if event.TenantID != "" {
		entry = entry.Str("tenant_id", event.TenantID)
	}
	for k, v := range event.Metadata {
		entry = entry.Str(k, v)
	}
	entry.Msg("audit event")
}

// NopSink discards all events.
type NopSink struct{}

var _ Sink = NopSink{}

func (NopSink) Record(context.Context, Event) {}
