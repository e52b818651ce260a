package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	otellogger "github.com/octabyte/bm-session/otel/logger"
)

type Type string

const (
	TypeLogin         Type = "session.login"
	TypeLogout        Type = "session.logout"
	TypeRefreshFailed Type = "session.refresh_failed"
	TypeRouted        Type = "session.routed"
)

// Event is a session lifecycle notification. Route and Reason are only set
// for TypeRouted.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	UserID     uint64    `json:"user_id,omitempty"`
	TenantID   uint64    `json:"tenant_id,omitempty"`
	Route      string    `json:"route,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	TraceID    string    `json:"trace_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Emit fills in the ID and timestamp and publishes the event. Publish
// failures are logged and swallowed; session flows never fail on them.
func Emit(ctx context.Context, publisher Publisher, event Event) {
	if publisher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if event.TraceID == "" {
		event.TraceID = otellogger.GetTraceID(ctx)
	}
	if err := publisher.Publish(ctx, event); err != nil {
		otellogger.ErrorCtx(ctx, "failed to publish session event", err,
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
		)
	}
}
