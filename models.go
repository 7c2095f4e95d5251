package users

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountStatus is the lifecycle state derived from the verification
// and lock flags on a user record.
type AccountStatus string

const (
	// AccountStatusPending is a created account whose email is not verified yet
	AccountStatusPending AccountStatus = "pending"
	// AccountStatusVerified is an account that completed email verification
	AccountStatusVerified AccountStatus = "verified"
	// AccountStatusLocked is an account locked out by the failed-login policy
	AccountStatusLocked AccountStatus = "locked"
)

// User is the user model
type User struct {
	bun.BaseModel       `bun:"table:users,alias:usr"`
	ID                  uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role                UserRole   `bun:"user_role,notnull" json:"role,omitempty"`
	Email               string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Nickname            string     `bun:"nickname,notnull,unique" json:"nickname,omitempty"`
	FirstName           string     `bun:"first_name" json:"first_name,omitempty"`
	LastName            string     `bun:"last_name" json:"last_name,omitempty"`
	Bio                 string     `bun:"bio" json:"bio,omitempty"`
	ProfilePictureURL   string     `bun:"profile_picture_url" json:"profile_picture_url,omitempty"`
	LinkedinProfileURL  string     `bun:"linkedin_profile_url" json:"linkedin_profile_url,omitempty"`
	GithubProfileURL    string     `bun:"github_profile_url" json:"github_profile_url,omitempty"`
	Phone               string     `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash        string     `bun:"password_hash" json:"-"`
	EmailVerified       bool       `bun:"email_verified" json:"email_verified,omitempty"`
	IsLocked            bool       `bun:"is_locked" json:"is_locked,omitempty"`
	IsProfessional      bool       `bun:"is_professional" json:"is_professional,omitempty"`
	FailedLoginAttempts int        `bun:"failed_login_attempts" json:"failed_login_attempts,omitempty"`
	LoginAttemptAt      *time.Time `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LastLoginAt         *time.Time `bun:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt           *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt           *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt           *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Status derives the lifecycle state from the persisted flags. The lock
// flag wins over verification so a locked account never authenticates.
func (u *User) Status() AccountStatus {
	if u == nil {
		return ""
	}
	if u.IsLocked {
		return AccountStatusLocked
	}
	if u.EmailVerified {
		return AccountStatusVerified
	}
	return AccountStatusPending
}

// IsPending reports whether the account still awaits email verification
func (u *User) IsPending() bool {
	return u.Status() == AccountStatusPending
}

// IsVerified reports whether the account completed email verification
func (u *User) IsVerified() bool {
	return u.Status() == AccountStatusVerified
}

// NormalizeEmail lower-cases and trims the login handle
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Role == "" {
		record.Role = RoleAuthenticated
	}
	record.Email = NormalizeEmail(record.Email)
	if record.Nickname == "" && strings.Contains(record.Email, "@") {
		record.Nickname = strings.Split(record.Email, "@")[0]
	}
}
