package users

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ErrInvalidCredentials is the uniform authentication failure returned
// for unknown accounts and wrong passwords alike, so callers cannot
// enumerate accounts. Audit events carry the real reason.
var ErrInvalidCredentials = goerrors.New("invalid email or password", goerrors.CategoryAuth).
	WithTextCode("INVALID_CREDENTIALS").
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountLocked is returned when login is attempted against a locked
// account, regardless of password correctness.
var ErrAccountLocked = goerrors.New("account is locked", goerrors.CategoryAuth).
	WithTextCode("ACCOUNT_LOCKED").
	WithCode(goerrors.CodeUnauthorized)

// ErrEmailNotVerified gates authentication when the surrounding policy
// requires verified accounts (Config.GetRequireVerifiedEmail).
var ErrEmailNotVerified = goerrors.New("account email is not verified", goerrors.CategoryAuth).
	WithTextCode("EMAIL_NOT_VERIFIED").
	WithCode(goerrors.CodeUnauthorized)

// ErrDuplicateEmail is returned when registering an email that is
// already taken.
var ErrDuplicateEmail = goerrors.New("email is already registered", goerrors.CategoryConflict).
	WithTextCode("DUPLICATE_EMAIL").
	WithCode(goerrors.CodeConflict)

// ErrTokenInvalid is the uniform verification failure for expired,
// malformed, and forged tokens. Verification never tells callers which.
var ErrTokenInvalid = goerrors.New("invalid authentication token", goerrors.CategoryAuth).
	WithTextCode("TOKEN_INVALID").
	WithCode(goerrors.CodeUnauthorized)

// ErrEmptyUpdate rejects profile updates that carry no recognized field.
var ErrEmptyUpdate = goerrors.New("update payload must include at least one field", goerrors.CategoryValidation).
	WithTextCode("EMPTY_UPDATE").
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid account state transition", goerrors.CategoryValidation).
	WithTextCode("INVALID_ACCOUNT_STATE_TRANSITION").
	WithCode(goerrors.CodeBadRequest)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrNoEmptyString rejects empty plaintext passwords before hashing
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is the internal mismatch result from the
// password hasher. It never leaves the core; Auther maps it to
// ErrInvalidCredentials.
var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToMapClaims unable to get claims from token
var ErrUnableToMapClaims = goerrors.New("unable to map claims", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// statusAuthError maps a derived account status to the error a login
// attempt against it should produce.
func statusAuthError(status AccountStatus) error {
	if status == AccountStatusLocked {
		return ErrAccountLocked
	}
	return nil
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
