package users

import (
	"net/url"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

var nicknameRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// LoginRequest carries the credential pair for authentication.
type LoginRequest struct {
	Identifier string `json:"identifier" form:"identifier"`
	Password   string `json:"password" form:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return AsValidationError(validation.ValidateStruct(&r,
		validation.Field(
			&r.Identifier,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	))
}

// CreateUserPayload is the self-service registration payload. Role is
// deliberately absent: privileged roles are assigned through
// AssignRoleMessage, never at signup.
type CreateUserPayload struct {
	Email              string `json:"email"`
	Password           string `json:"password"`
	Nickname           string `json:"nickname"`
	FirstName          string `json:"first_name"`
	LastName           string `json:"last_name"`
	Bio                string `json:"bio"`
	ProfilePictureURL  string `json:"profile_picture_url"`
	LinkedinProfileURL string `json:"linkedin_profile_url"`
	GithubProfileURL   string `json:"github_profile_url"`
	Phone              string `json:"phone_number"`
}

// Validate will validate the payload
func (r CreateUserPayload) Validate() error {
	return AsValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(&r.Nickname, validation.Length(3, 50), validation.Match(nicknameRegex)),
		validation.Field(&r.FirstName, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Length(1, 200)),
		validation.Field(&r.Bio, validation.Length(0, 2000)),
		validation.Field(&r.ProfilePictureURL, validation.By(validateHTTPURL)),
		validation.Field(&r.LinkedinProfileURL, validation.By(validateHTTPURL)),
		validation.Field(&r.GithubProfileURL, validation.By(validateHTTPURL)),
		validation.Field(&r.Phone, validation.By(validatePhone)),
	))
}

// UpdateProfilePayload is a partial profile edit. Nil fields are left
// untouched; a payload with every field nil is rejected.
type UpdateProfilePayload struct {
	Email              *string `json:"email"`
	Nickname           *string `json:"nickname"`
	FirstName          *string `json:"first_name"`
	LastName           *string `json:"last_name"`
	Bio                *string `json:"bio"`
	ProfilePictureURL  *string `json:"profile_picture_url"`
	LinkedinProfileURL *string `json:"linkedin_profile_url"`
	GithubProfileURL   *string `json:"github_profile_url"`
	Phone              *string `json:"phone_number"`
	IsProfessional     *bool   `json:"is_professional"`
}

// IsEmpty reports whether the payload carries no recognized field.
func (r UpdateProfilePayload) IsEmpty() bool {
	return r.Email == nil &&
		r.Nickname == nil &&
		r.FirstName == nil &&
		r.LastName == nil &&
		r.Bio == nil &&
		r.ProfilePictureURL == nil &&
		r.LinkedinProfileURL == nil &&
		r.GithubProfileURL == nil &&
		r.Phone == nil &&
		r.IsProfessional == nil
}

// Validate will validate the payload. Validation is pure: it never
// touches the store or the network.
func (r UpdateProfilePayload) Validate() error {
	if r.IsEmpty() {
		return ErrEmptyUpdate
	}

	return AsValidationError(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Length(6, 100), is.Email),
		validation.Field(&r.Nickname, validation.Length(3, 50), validation.Match(nicknameRegex)),
		validation.Field(&r.FirstName, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Length(1, 200)),
		validation.Field(&r.Bio, validation.Length(0, 2000)),
		validation.Field(&r.ProfilePictureURL, validation.By(validateHTTPURL)),
		validation.Field(&r.LinkedinProfileURL, validation.By(validateHTTPURL)),
		validation.Field(&r.GithubProfileURL, validation.By(validateHTTPURL)),
		validation.Field(&r.Phone, validation.By(validatePhone)),
	))
}

// validateHTTPURL accepts absent values and otherwise requires a
// scheme://host shaped http(s) URL.
func validateHTTPURL(value any) error {
	raw, ok := stringValue(value)
	if !ok || raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return goerrors.New("must be a valid http(s) URL", goerrors.CategoryValidation)
	}

	return nil
}

// validatePhone accepts absent values and otherwise requires an E.164
// formatted number.
func validatePhone(value any) error {
	raw, ok := stringValue(value)
	if !ok || raw == "" {
		return nil
	}

	num, err := phonenumbers.Parse(raw, "")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return goerrors.New("must be a valid E.164 phone number", goerrors.CategoryValidation)
	}

	return nil
}

func stringValue(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case *string:
		if v == nil {
			return "", false
		}
		return *v, true
	default:
		return "", false
	}
}

// AsValidationError converts ozzo field errors into the module's rich
// error shape: CategoryValidation, a text code, and per-field messages
// in metadata. Single-field failures keep their specific code so
// callers can react to INVALID_EMAIL_FORMAT vs INVALID_URL_FORMAT.
func AsValidationError(err error) error {
	if err == nil {
		return nil
	}

	fieldErrors, ok := err.(validation.Errors)
	if !ok {
		return err
	}

	fields := map[string]any{}
	textCode := "VALIDATION_ERROR"
	for field, ferr := range fieldErrors {
		fields[field] = ferr.Error()
		if len(fieldErrors) == 1 {
			textCode = fieldTextCode(field)
		}
	}

	return goerrors.New("invalid payload", goerrors.CategoryValidation).
		WithTextCode(textCode).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{"fields": fields})
}

func fieldTextCode(field string) string {
	switch {
	case field == "email" || field == "identifier":
		return "INVALID_EMAIL_FORMAT"
	case strings.HasSuffix(field, "_url"):
		return "INVALID_URL_FORMAT"
	case field == "nickname":
		return "INVALID_NICKNAME"
	case field == "phone_number":
		return "INVALID_PHONE_FORMAT"
	default:
		return "VALIDATION_ERROR"
	}
}
