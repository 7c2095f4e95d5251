package users

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UpdateProfileMessage applies a partial profile edit. Validation runs
// before anything touches the store; if any field fails, nothing is
// persisted.
type UpdateProfileMessage struct {
	UserID     uuid.UUID `json:"user_id"`
	Payload    UpdateProfilePayload
	OnResponse func(u *User)
}

func (e UpdateProfileMessage) Type() string { return "user.update_profile" }

type UpdateProfileHandler struct {
	repo   RepositoryManager
	logger Logger
}

func NewUpdateProfileHandler(repo RepositoryManager) *UpdateProfileHandler {
	return &UpdateProfileHandler{
		repo:   repo,
		logger: defLogger{},
	}
}

func (h *UpdateProfileHandler) WithLogger(l Logger) *UpdateProfileHandler {
	if l != nil {
		h.logger = l
	}
	return h
}

func (h *UpdateProfileHandler) Execute(ctx context.Context, event UpdateProfileMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during profile update")
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateProfileHandler) execute(ctx context.Context, event UpdateProfileMessage) error {
	if err := event.Payload.Validate(); err != nil {
		return err
	}

	user := &User{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().GetByIdentifierTx(ctx, tx, event.UserID.String())
		if err != nil {
			if goerrors.IsNotFound(err) {
				return ErrIdentityNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for update")
		}

		applyProfileUpdate(user, event.Payload)

		if user, err = h.repo.Users().UpdateTx(ctx, tx, user, repository.UpdateByID(user.ID.String())); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not update user profile")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "profile update transaction failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}

func applyProfileUpdate(user *User, payload UpdateProfilePayload) {
	if payload.Email != nil {
		user.Email = NormalizeEmail(*payload.Email)
	}
	if payload.Nickname != nil {
		user.Nickname = *payload.Nickname
	}
	if payload.FirstName != nil {
		user.FirstName = *payload.FirstName
	}
	if payload.LastName != nil {
		user.LastName = *payload.LastName
	}
	if payload.Bio != nil {
		user.Bio = *payload.Bio
	}
	if payload.ProfilePictureURL != nil {
		user.ProfilePictureURL = *payload.ProfilePictureURL
	}
	if payload.LinkedinProfileURL != nil {
		user.LinkedinProfileURL = *payload.LinkedinProfileURL
	}
	if payload.GithubProfileURL != nil {
		user.GithubProfileURL = *payload.GithubProfileURL
	}
	if payload.Phone != nil {
		user.Phone = *payload.Phone
	}
	if payload.IsProfessional != nil {
		user.IsProfessional = *payload.IsProfessional
	}
}
