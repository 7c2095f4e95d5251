package users

import (
	"context"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var TrackAttemptedLoginSQL = `UPDATE "users" AS "usr"
SET
	"failed_login_attempts" = "usr"."failed_login_attempts" + 1,
	"login_attempt_at" = ?,
	"is_locked" = "usr"."is_locked" OR ("usr"."failed_login_attempts" + 1 >= ?)
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var LockUserSQL = `UPDATE "users" AS "usr"
SET
	"is_locked" = TRUE
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var UnlockUserSQL = `UPDATE "users" AS "usr"
SET
	"is_locked" = FALSE,
	"failed_login_attempts" = 0,
	"login_attempt_at" = NULL
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var MarkEmailVerifiedSQL = `UPDATE "users" AS "usr"
SET
	"email_verified" = TRUE
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var ResetUserPasswordSQL = `UPDATE "users" AS "usr"
SET
	"email_verified" = TRUE,
	"password_hash" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

type Users interface {
	repository.Repository[*User]

	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error)
	GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error)

	TrackAttemptedLogin(ctx context.Context, user *User, maxAttempts int) (*User, error)
	TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *User, maxAttempts int) (*User, error)
	TrackSuccessfulLogin(ctx context.Context, user *User) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)

	MarkEmailVerified(ctx context.Context, user *User) (*User, error)
	MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	SetLocked(ctx context.Context, user *User, locked bool) (*User, error)
	SetLockedTx(ctx context.Context, tx bun.IDB, user *User, locked bool) (*User, error)

	ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users              = (*users)(nil)
	_ UserTracker        = (*users)(nil)
	_ AccountStatusStore = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	return a.CreateTx(ctx, tx, user)
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

type identifierOption struct {
	column string
	value  any
}

// resolveUserIdentifier maps an opaque identifier onto lookup columns:
// UUIDs match ids, anything with an @ matches the normalized email,
// everything else falls back to the nickname.
func resolveUserIdentifier(identifier string) []identifierOption {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil
	}

	if id, err := uuid.Parse(identifier); err == nil {
		return []identifierOption{{column: "id", value: id}}
	}

	if strings.Contains(identifier, "@") {
		return []identifierOption{{column: "email", value: NormalizeEmail(identifier)}}
	}

	return []identifierOption{
		{column: "nickname", value: identifier},
		{column: "email", value: NormalizeEmail(identifier)},
	}
}

func (a *users) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

func (a *users) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	options := resolveUserIdentifier(identifier)

	for _, opt := range options {
		record := &User{}

		err := tx.NewSelect().
			Model(record).
			Where("?TableAlias."+opt.column+" = ?", opt.value).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}

		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func (a *users) TrackSuccessfulLogin(ctx context.Context, user *User) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, user)
}

func (a *users) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error {
	// single UPDATE so the counter reset and timestamp commit together
	loggedInAt := time.Now()
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"last_login_at" = ?,
			"login_attempt_at" = NULL,
			"failed_login_attempts" = 0
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, loggedInAt, user.ID).Exec(ctx)

	if err == nil {
		user.LastLoginAt = &loggedInAt
	}

	return err
}

func (a *users) TrackAttemptedLogin(ctx context.Context, user *User, maxAttempts int) (*User, error) {
	return a.TrackAttemptedLoginTx(ctx, a.db, user, maxAttempts)
}

// TrackAttemptedLoginTx increments the failure counter and flips the
// lock flag once the threshold is reached, in one atomic statement so
// concurrent attempts cannot lose increments or race the lock.
func (a *users) TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *User, maxAttempts int) (*User, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxLoginAttempts
	}

	now := time.Now()
	res, err := a.Repository.RawTx(ctx, tx, TrackAttemptedLoginSQL, now, maxAttempts, user.ID.String())
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": user.ID.String(),
			})
	}

	return res[0], nil
}

func (a *users) MarkEmailVerified(ctx context.Context, user *User) (*User, error) {
	return a.MarkEmailVerifiedTx(ctx, a.db, user)
}

func (a *users) MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	return a.execReturningOne(ctx, tx, MarkEmailVerifiedSQL, user.ID.String())
}

func (a *users) SetLocked(ctx context.Context, user *User, locked bool) (*User, error) {
	return a.SetLockedTx(ctx, a.db, user, locked)
}

// SetLockedTx locks or unlocks an account. Unlocking also resets the
// failed attempt counter, the invariant the lockout policy relies on.
func (a *users) SetLockedTx(ctx context.Context, tx bun.IDB, user *User, locked bool) (*User, error) {
	query := UnlockUserSQL
	if locked {
		query = LockUserSQL
	}
	return a.execReturningOne(ctx, tx, query, user.ID.String())
}

func (a *users) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.ResetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *users) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	_, err := a.execReturningOne(ctx, tx, ResetUserPasswordSQL, passwordHash, id.String())
	return err
}

func (a *users) execReturningOne(ctx context.Context, tx bun.IDB, query string, args ...any) (*User, error) {
	res, err := a.Repository.RawTx(ctx, tx, query, args...)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"query": "users update",
			})
	}

	return res[0], nil
}
