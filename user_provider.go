package users

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
)

// DefaultMaxLoginAttempts is the documented fallback lockout threshold
// when the configuration omits max_login_attempts.
const DefaultMaxLoginAttempts = 4

// UserTracker is a store we can use to retrieve users and commit login
// attempt bookkeeping. TrackAttemptedLogin must atomically increment
// the failure counter and flip the lock flag once the threshold is
// reached, so concurrent attempts never lose increments or race the
// lock transition.
type UserTracker interface {
	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error)
	TrackAttemptedLogin(ctx context.Context, user *User, maxAttempts int) (*User, error)
	TrackSuccessfulLogin(ctx context.Context, user *User) error
}

// UserProvider resolves identities against the user store and applies
// the login attempt policy.
type UserProvider struct {
	store                UserTracker
	maxLoginAttempts     int
	requireVerifiedEmail bool
	Validator            func(*User) error
	logger               Logger
	activitySink         ActivitySink
	notifier             Notifier
}

// NewUserProvider will create a new UserProvider
func NewUserProvider(store UserTracker) *UserProvider {
	return &UserProvider{
		store:            store,
		maxLoginAttempts: DefaultMaxLoginAttempts,
		logger:           defLogger{},
		activitySink:     noopActivitySink{},
		notifier:         noopNotifier{},
		Validator:        defaultValidator,
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	if l != nil {
		u.logger = l
	}
	return u
}

// WithMaxLoginAttempts sets the lockout threshold. Values below 1 keep
// the documented default.
func (u *UserProvider) WithMaxLoginAttempts(max int) *UserProvider {
	if max > 0 {
		u.maxLoginAttempts = max
	}
	return u
}

// WithRequireVerifiedEmail gates authentication on email verification.
// Off by default: verification gates features, not login.
func (u *UserProvider) WithRequireVerifiedEmail(require bool) *UserProvider {
	u.requireVerifiedEmail = require
	return u
}

// WithActivitySink configures an ActivitySink for lockout audit events.
func (u *UserProvider) WithActivitySink(sink ActivitySink) *UserProvider {
	u.activitySink = normalizeActivitySink(sink)
	return u
}

// WithNotifier configures the out-of-band notifier used when the
// lockout policy trips.
func (u *UserProvider) WithNotifier(n Notifier) *UserProvider {
	u.notifier = normalizeNotifier(n)
	return u
}

func (u *UserProvider) validate(user *User) error {
	if u.Validator != nil {
		return u.Validator(user)
	}
	return defaultValidator(user)
}

// VerifyIdentity runs login attempt processing: locked accounts are
// rejected before the password is even looked at, a mismatch increments
// the failure counter (locking the account when the threshold is
// reached, while still reporting plain invalid credentials), and a
// match atomically resets the counter and stamps last_login_at.
func (u *UserProvider) VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error) {
	user, err := u.store.GetByIdentifier(ctx, NormalizeEmail(identifier))
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during verification")
	}

	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := statusAuthError(user.Status()); err != nil {
		return nil, err
	}

	if u.requireVerifiedEmail && !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		tracked, err2 := u.store.TrackAttemptedLogin(ctx, user, u.maxLoginAttempts)
		if err2 != nil {
			return nil, goerrors.Wrap(err2, goerrors.CategoryInternal, "failed to track login attempt")
		}

		if tracked != nil && tracked.IsLocked && !user.IsLocked {
			u.onAccountLocked(ctx, tracked)
		}

		return nil, ErrInvalidCredentials
	}

	if err := u.store.TrackSuccessfulLogin(ctx, user); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to track successful login")
	}
	user.FailedLoginAttempts = 0

	if err := u.validate(user); err != nil {
		return nil, err
	}

	return identityFromUser(user), nil
}

// FindIdentityByIdentifier resolves an identity without touching the
// attempt counters, e.g. when rebuilding an identity from a session.
func (u *UserProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	user, err := u.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if user == nil {
		return nil, ErrIdentityNotFound
	}

	if err := statusAuthError(user.Status()); err != nil {
		return nil, err
	}

	if err := u.validate(user); err != nil {
		return nil, err
	}

	return identityFromUser(user), nil
}

func (u *UserProvider) onAccountLocked(ctx context.Context, user *User) {
	sink := normalizeActivitySink(u.activitySink)
	err := sink.Record(ctx, ActivityEvent{
		EventType: ActivityEventAccountLocked,
		Actor:     ActorRef{Type: "system"},
		UserID:    user.ID.String(),
		ToStatus:  AccountStatusLocked,
		Metadata: map[string]any{
			"failed_login_attempts": user.FailedLoginAttempts,
		},
	})
	if err != nil {
		u.logger.Warn("activity sink record error: %v", err)
	}

	dispatchNotification(u.logger, u.notifier, Notification{
		Kind: NotificationAccountLocked,
		User: user,
	})
}

type authIdentity struct {
	id       string
	nickname string
	email    string
	role     UserRole
}

func identityFromUser(user *User) authIdentity {
	return authIdentity{
		id:       user.ID.String(),
		email:    user.Email,
		nickname: user.Nickname,
		role:     user.Role,
	}
}

func (a authIdentity) ID() string {
	return a.id
}

func (a authIdentity) Nickname() string {
	return a.nickname
}

func (a authIdentity) Email() string {
	return a.email
}

func (a authIdentity) Role() UserRole {
	return a.role
}

var _ Identity = authIdentity{}

func defaultValidator(u *User) error {
	if u.Role.IsValid() {
		return nil
	}
	return goerrors.New("user has an unknown or invalid role", goerrors.CategoryAuth).
		WithTextCode("INVALID_ROLE").
		WithMetadata(map[string]any{"role": string(u.Role), "user_id": u.ID.String()})
}
