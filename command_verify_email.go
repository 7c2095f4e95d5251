package users

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// VerifyEmailMessage completes the one-time email verification flow for
// an account. The token exchange that proves ownership of the address
// happens outside the core; by the time this command runs the caller
// has already established which user id verified.
type VerifyEmailMessage struct {
	UserID     uuid.UUID `json:"user_id"`
	Actor      ActorRef
	OnResponse func(u *User)
}

func (e VerifyEmailMessage) Type() string { return "user.verify_email" }

type VerifyEmailHandler struct {
	repo     RepositoryManager
	machine  AccountStateMachine
	notifier Notifier
	logger   Logger
}

func NewVerifyEmailHandler(repo RepositoryManager, machine AccountStateMachine) *VerifyEmailHandler {
	return &VerifyEmailHandler{
		repo:     repo,
		machine:  machine,
		notifier: noopNotifier{},
		logger:   defLogger{},
	}
}

func (h *VerifyEmailHandler) WithNotifier(n Notifier) *VerifyEmailHandler {
	h.notifier = normalizeNotifier(n)
	return h
}

func (h *VerifyEmailHandler) WithLogger(l Logger) *VerifyEmailHandler {
	if l != nil {
		h.logger = l
	}
	return h
}

func (h *VerifyEmailHandler) Execute(ctx context.Context, event VerifyEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during email verification")
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyEmailHandler) execute(ctx context.Context, event VerifyEmailMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetByIdentifier(ctx, event.UserID.String())
	if err != nil {
		if goerrors.IsNotFound(err) {
			return ErrIdentityNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for verification")
	}

	if user.EmailVerified {
		if event.OnResponse != nil {
			event.OnResponse(user)
		}
		return nil
	}

	if user.IsLocked {
		// flag-only update: verifying the address must not unlock the
		// account, so this bypasses the status transition graph
		updated, err := h.repo.Users().MarkEmailVerified(ctx, user)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark email verified")
		}
		user.EmailVerified = updated.EmailVerified
	} else {
		user, err = h.machine.Transition(ctx, event.Actor, user, AccountStatusVerified,
			WithTransitionReason("email verification completed"))
		if err != nil {
			return err
		}
	}

	dispatchNotification(h.logger, h.notifier, Notification{
		Kind: NotificationEmailVerified,
		User: user,
	})

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}
