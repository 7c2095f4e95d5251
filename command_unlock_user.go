package users

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// UnlockUserMessage is the administrative action that releases a locked
// account. It resets the failed-login counter and returns the account
// to the state its verification flag implies.
type UnlockUserMessage struct {
	UserID     uuid.UUID `json:"user_id"`
	Actor      ActorRef
	Reason     string `json:"reason"`
	OnResponse func(u *User)
}

func (e UnlockUserMessage) Type() string { return "user.unlock" }

type UnlockUserHandler struct {
	repo     RepositoryManager
	machine  AccountStateMachine
	notifier Notifier
	logger   Logger
}

func NewUnlockUserHandler(repo RepositoryManager, machine AccountStateMachine) *UnlockUserHandler {
	return &UnlockUserHandler{
		repo:     repo,
		machine:  machine,
		notifier: noopNotifier{},
		logger:   defLogger{},
	}
}

func (h *UnlockUserHandler) WithNotifier(n Notifier) *UnlockUserHandler {
	h.notifier = normalizeNotifier(n)
	return h
}

func (h *UnlockUserHandler) WithLogger(l Logger) *UnlockUserHandler {
	if l != nil {
		h.logger = l
	}
	return h
}

func (h *UnlockUserHandler) Execute(ctx context.Context, event UnlockUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account unlock")
	default:
		return h.execute(ctx, event)
	}
}

func (h *UnlockUserHandler) execute(ctx context.Context, event UnlockUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetByIdentifier(ctx, event.UserID.String())
	if err != nil {
		if goerrors.IsNotFound(err) {
			return ErrIdentityNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for unlock")
	}

	if !user.IsLocked {
		if event.OnResponse != nil {
			event.OnResponse(user)
		}
		return nil
	}

	target := AccountStatusPending
	if user.EmailVerified {
		target = AccountStatusVerified
	}

	reason := event.Reason
	if reason == "" {
		reason = "administrative unlock"
	}

	user, err = h.machine.Transition(ctx, event.Actor, user, target,
		WithTransitionReason(reason))
	if err != nil {
		return err
	}

	dispatchNotification(h.logger, h.notifier, Notification{
		Kind: NotificationAccountUnlocked,
		User: user,
	})

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}
