package users

import (
	"context"
	"time"
)

// NotificationKind enumerates out-of-band messages the core triggers.
type NotificationKind string

const (
	NotificationAccountVerification NotificationKind = "account.verification"
	NotificationEmailVerified       NotificationKind = "account.verified"
	NotificationAccountLocked       NotificationKind = "account.locked"
	NotificationAccountUnlocked     NotificationKind = "account.unlocked"
)

// Notification is the payload handed to the Notifier collaborator.
type Notification struct {
	Kind     NotificationKind
	User     *User
	Metadata map[string]any
}

// Notifier delivers out-of-band messages (typically email). Delivery is
// fire-and-forget from the core's perspective: a failed send never
// rolls back the state transition that triggered it.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification) error

// Send implements Notifier.
func (f NotifierFunc) Send(ctx context.Context, n Notification) error {
	if f == nil {
		return nil
	}
	return f(ctx, n)
}

type noopNotifier struct{}

func (noopNotifier) Send(context.Context, Notification) error {
	return nil
}

func normalizeNotifier(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

// dispatchNotification sends in the background so transitions commit
// regardless of delivery outcome. The detached context deliberately
// outlives the request that triggered the transition.
func dispatchNotification(logger Logger, notifier Notifier, n Notification) {
	if logger == nil {
		logger = defLogger{}
	}
	sender := normalizeNotifier(notifier)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := sender.Send(ctx, n); err != nil {
			logger.Warn("notifier send error", "kind", n.Kind, "error", err)
		}
	}()
}
