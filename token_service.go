package users

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// DefaultTokenTTL is the documented fallback when the configuration
// omits access_token_expire_minutes.
const DefaultTokenTTL = 15 * time.Minute

// TokenService mints and verifies access tokens
type TokenService interface {
	TokenValidator
	Generate(identity Identity, ttl ...time.Duration) (string, error)
	SignClaims(claims *JWTClaims) (string, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey    []byte
	signingMethod jwt.SigningMethod
	tokenTTL      time.Duration
	issuer        string
	audience      jwt.ClaimStrings
	logger        Logger
}

// NewTokenService creates a new TokenService instance. ttlMinutes <= 0
// falls back to DefaultTokenTTL; unknown signing methods fall back to
// HS256.
func NewTokenService(signingKey []byte, signingMethod string, ttlMinutes int, issuer string, audience []string, logger Logger) *TokenServiceImpl {
	if logger == nil {
		logger = defLogger{}
	}

	ttl := DefaultTokenTTL
	if ttlMinutes > 0 {
		ttl = time.Duration(ttlMinutes) * time.Minute
	}

	method := jwt.GetSigningMethod(signingMethod)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		if signingMethod != "" {
			logger.Warn("TokenService unsupported signing method, using HS256", "method", signingMethod)
		}
		method = jwt.SigningMethodHS256
	}

	return &TokenServiceImpl{
		signingKey:    signingKey,
		signingMethod: method,
		tokenTTL:      ttl,
		issuer:        issuer,
		audience:      audience,
		logger:        logger,
	}
}

// TTL exposes the effective token lifetime
func (ts *TokenServiceImpl) TTL() time.Duration {
	return ts.tokenTTL
}

// Generate creates a signed token bound to the identity's id and role.
// An optional ttl overrides the configured lifetime for this token only.
func (ts *TokenServiceImpl) Generate(identity Identity, ttl ...time.Duration) (string, error) {
	lifetime := ts.tokenTTL
	if len(ttl) > 0 && ttl[0] > 0 {
		lifetime = ttl[0]
	}

	now := time.Now()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
		UID:      identity.ID(),
		UserRole: identity.Role().String(),
	}

	ensureTokenID(&claims.RegisteredClaims)

	return ts.SignClaims(claims)
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	// role claims are always stored in the canonical upper-case form
	claims.UserRole = normalizeRole(claims.UserRole)

	token := jwt.NewWithClaims(ts.signingMethod, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and verifies a token string, returning structured
// claims. Every failure, signature mismatch, malformed input, or
// expiry, surfaces as the same ErrTokenInvalid; the real reason is only
// logged for audit.
func (ts *TokenServiceImpl) Validate(tokenString string) (AuthClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, ErrTokenInvalid
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		ts.logger.Debug("TokenService validate rejected token", "error", err)
		return nil, ErrTokenInvalid
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService validate could not decode or validate claims")
	return nil, ErrTokenInvalid
}

var _ TokenService = (*TokenServiceImpl)(nil)
