package users_test

import (
	"context"
	"testing"

	repository "github.com/goliatone/go-repository-bun"
	users "github.com/goliatone/go-users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestUnlockUserHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("restores a verified account", func(t *testing.T) {
		repo := &MockRepositoryManager{}
		store := &MockUsers{}
		sink := &capturingSink{}
		notifier, sent := newChannelNotifier()

		machine := users.NewAccountStateMachine(store,
			users.WithStateMachineActivitySink(sink),
			users.WithStateMachineLogger(testLogger{}),
		)
		handler := users.NewUnlockUserHandler(repo, machine).
			WithNotifier(notifier).
			WithLogger(testLogger{})

		locked := &users.User{
			ID:                  uuid.New(),
			Email:               "locked@example.com",
			EmailVerified:       true,
			IsLocked:            true,
			FailedLoginAttempts: 4,
		}

		repo.On("Users").Return(store)
		store.On("GetByIdentifier", mock.Anything, locked.ID.String()).
			Return(locked, nil).Once()

		released := *locked
		released.IsLocked = false
		released.FailedLoginAttempts = 0
		store.On("SetLocked", mock.Anything, locked, false).
			Return(&released, nil).Once()

		var responded *users.User
		err := handler.Execute(ctx, users.UnlockUserMessage{
			UserID:     locked.ID,
			Actor:      users.ActorRef{ID: "admin-1", Type: "user", Role: users.RoleAdmin},
			Reason:     "support ticket 4821",
			OnResponse: func(u *users.User) { responded = u },
		})
		require.NoError(t, err)

		require.NotNil(t, responded)
		assert.False(t, responded.IsLocked)
		assert.Equal(t, 0, responded.FailedLoginAttempts)
		assert.Equal(t, users.AccountStatusVerified, responded.Status())

		require.Len(t, sink.events, 1)
		assert.Equal(t, users.AccountStatusLocked, sink.events[0].FromStatus)
		assert.Equal(t, users.AccountStatusVerified, sink.events[0].ToStatus)
		assert.Equal(t, "support ticket 4821", sink.events[0].Metadata["reason"])

		n := awaitNotification(t, sent)
		assert.Equal(t, users.NotificationAccountUnlocked, n.Kind)

		store.AssertExpectations(t)
	})

	t.Run("never verified account returns to pending", func(t *testing.T) {
		repo := &MockRepositoryManager{}
		store := &MockUsers{}
		sink := &capturingSink{}

		machine := users.NewAccountStateMachine(store,
			users.WithStateMachineActivitySink(sink),
		)
		handler := users.NewUnlockUserHandler(repo, machine).WithLogger(testLogger{})

		locked := &users.User{
			ID:                  uuid.New(),
			Email:               "never@example.com",
			IsLocked:            true,
			FailedLoginAttempts: 4,
		}

		repo.On("Users").Return(store)
		store.On("GetByIdentifier", mock.Anything, locked.ID.String()).
			Return(locked, nil).Once()

		released := *locked
		released.IsLocked = false
		released.FailedLoginAttempts = 0
		store.On("SetLocked", mock.Anything, locked, false).
			Return(&released, nil).Once()

		var responded *users.User
		err := handler.Execute(ctx, users.UnlockUserMessage{
			UserID:     locked.ID,
			OnResponse: func(u *users.User) { responded = u },
		})
		require.NoError(t, err)

		require.NotNil(t, responded)
		assert.Equal(t, users.AccountStatusPending, responded.Status())
		assert.False(t, responded.EmailVerified)

		require.Len(t, sink.events, 1)
		assert.Equal(t, users.AccountStatusPending, sink.events[0].ToStatus)
		// no caller-supplied reason, the default applies
		assert.Equal(t, "administrative unlock", sink.events[0].Metadata["reason"])

		store.AssertNotCalled(t, "MarkEmailVerified", mock.Anything, mock.Anything)
	})

	t.Run("not locked is a no-op", func(t *testing.T) {
		repo := &MockRepositoryManager{}
		store := &MockUsers{}

		machine := users.NewAccountStateMachine(store)
		handler := users.NewUnlockUserHandler(repo, machine).WithLogger(testLogger{})

		active := &users.User{ID: uuid.New(), Email: "active@example.com", EmailVerified: true}

		repo.On("Users").Return(store)
		store.On("GetByIdentifier", mock.Anything, active.ID.String()).
			Return(active, nil).Once()

		var responded *users.User
		err := handler.Execute(ctx, users.UnlockUserMessage{
			UserID:     active.ID,
			OnResponse: func(u *users.User) { responded = u },
		})
		require.NoError(t, err)
		assert.Same(t, active, responded)

		store.AssertNotCalled(t, "SetLocked", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown user", func(t *testing.T) {
		repo := &MockRepositoryManager{}
		store := &MockUsers{}

		machine := users.NewAccountStateMachine(store)
		handler := users.NewUnlockUserHandler(repo, machine).WithLogger(testLogger{})

		userID := uuid.New()

		repo.On("Users").Return(store)
		store.On("GetByIdentifier", mock.Anything, userID.String()).
			Return(nil, repository.NewRecordNotFound()).Once()

		err := handler.Execute(ctx, users.UnlockUserMessage{UserID: userID})
		assert.ErrorIs(t, err, users.ErrIdentityNotFound)
	})
}
