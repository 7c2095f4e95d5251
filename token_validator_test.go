package users_test

import (
	"testing"

	users "github.com/goliatone/go-users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenValidatorFunc(t *testing.T) {
	claims := newTestClaims("ADMIN")

	validator := users.TokenValidatorFunc(func(tokenString string) (users.AuthClaims, error) {
		if tokenString == "good" {
			return claims, nil
		}
		return nil, users.ErrTokenInvalid
	})

	got, err := validator.Validate("good")
	require.NoError(t, err)
	assert.Equal(t, claims, got)

	_, err = validator.Validate("bad")
	assert.ErrorIs(t, err, users.ErrTokenInvalid)
}

func TestTokenValidatorFuncNil(t *testing.T) {
	var validator users.TokenValidatorFunc
	_, err := validator.Validate("anything")
	assert.ErrorIs(t, err, users.ErrTokenInvalid)
}

func TestMultiTokenValidator(t *testing.T) {
	primary := newTestTokenService(60)
	secondary := users.NewTokenService(
		[]byte("secondary-key"),
		"HS256",
		60,
		"other-issuer",
		nil,
		testLogger{},
	)

	multi := users.NewMultiTokenValidator(primary, secondary)

	identity := TestIdentity{id: uuid.New().String(), role: users.RoleAuthenticated}

	t.Run("first validator accepts", func(t *testing.T) {
		token, err := primary.Generate(identity)
		require.NoError(t, err)

		claims, err := multi.Validate(token)
		require.NoError(t, err)
		assert.Equal(t, identity.ID(), claims.UserID())
	})

	t.Run("falls through to second validator", func(t *testing.T) {
		token, err := secondary.Generate(identity)
		require.NoError(t, err)

		claims, err := multi.Validate(token)
		require.NoError(t, err)
		assert.Equal(t, identity.ID(), claims.UserID())
	})

	t.Run("no validator accepts", func(t *testing.T) {
		claims, err := multi.Validate("garbage")
		assert.Nil(t, claims)
		assert.ErrorIs(t, err, users.ErrTokenInvalid)
	})
}

func TestMultiTokenValidatorFiltersNil(t *testing.T) {
	multi := users.NewMultiTokenValidator(nil, nil)
	_, err := multi.Validate("anything")
	assert.ErrorIs(t, err, users.ErrTokenInvalid)
}
