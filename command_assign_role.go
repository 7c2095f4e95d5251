package users

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AssignRoleMessage changes an account's role. Signup never takes a
// role; this command is the only way to grant one.
type AssignRoleMessage struct {
	UserID     uuid.UUID `json:"user_id"`
	Role       UserRole  `json:"role"`
	Actor      ActorRef
	OnResponse func(u *User)
}

func (e AssignRoleMessage) Type() string { return "user.assign_role" }

type AssignRoleHandler struct {
	repo   RepositoryManager
	sink   ActivitySink
	logger Logger
}

func NewAssignRoleHandler(repo RepositoryManager) *AssignRoleHandler {
	return &AssignRoleHandler{
		repo:   repo,
		sink:   noopActivitySink{},
		logger: defLogger{},
	}
}

func (h *AssignRoleHandler) WithActivitySink(sink ActivitySink) *AssignRoleHandler {
	h.sink = normalizeActivitySink(sink)
	return h
}

func (h *AssignRoleHandler) WithLogger(l Logger) *AssignRoleHandler {
	if l != nil {
		h.logger = l
	}
	return h
}

func (h *AssignRoleHandler) Execute(ctx context.Context, event AssignRoleMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during role assignment")
	default:
		return h.execute(ctx, event)
	}
}

func (h *AssignRoleHandler) execute(ctx context.Context, event AssignRoleMessage) error {
	role, ok := ParseRole(string(event.Role))
	// stored accounts are always at least AUTHENTICATED
	if !ok || role == RoleAnonymous {
		return goerrors.New("unknown or unassignable role", goerrors.CategoryValidation).
			WithTextCode("INVALID_ROLE").
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"role": string(event.Role)})
	}

	user := &User{}
	var previous UserRole

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().GetByIdentifierTx(ctx, tx, event.UserID.String())
		if err != nil {
			if goerrors.IsNotFound(err) {
				return ErrIdentityNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for role assignment")
		}

		previous = user.Role
		if previous == role {
			return nil
		}

		user.Role = role
		if user, err = h.repo.Users().UpdateTx(ctx, tx, user, repository.UpdateByID(user.ID.String())); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not update user role")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "role assignment transaction failed")
	}

	if previous != role {
		h.recordAssignment(ctx, event.Actor, user, previous)
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}

func (h *AssignRoleHandler) recordAssignment(ctx context.Context, actor ActorRef, user *User, previous UserRole) {
	sink := normalizeActivitySink(h.sink)
	err := sink.Record(ctx, ActivityEvent{
		EventType: ActivityEventRoleAssigned,
		Actor:     actor,
		UserID:    user.ID.String(),
		Metadata: map[string]any{
			"from_role": string(previous),
			"to_role":   string(user.Role),
		},
	})
	if err != nil {
		h.logger.Warn("activity sink record error: %v", err)
	}
}
