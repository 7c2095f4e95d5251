package users

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventAccountStatusChanged ActivityEventType = "user.status.changed"
	ActivityEventAccountLocked        ActivityEventType = "user.account.locked"
	ActivityEventAccountUnlocked      ActivityEventType = "user.account.unlocked"
	ActivityEventEmailVerified        ActivityEventType = "user.email.verified"
	ActivityEventUserRegistered       ActivityEventType = "user.registered"
	ActivityEventRoleAssigned         ActivityEventType = "user.role.assigned"
	ActivityEventLoginSuccess         ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure         ActivityEventType = "auth.login.failure"
)

// ActorRef identifies who/what triggered an action.
type ActorRef struct {
	ID   string
	Type string
	Role UserRole
}

// ActivityEvent captures audit-friendly information about an action.
// Login failures carry the internal reason (wrong password vs. locked)
// in Metadata even though the caller-facing error does not distinguish.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	FromStatus AccountStatus
	ToStatus   AccountStatus
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
