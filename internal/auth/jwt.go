// Package auth provides the credential primitives of the feed: password
// hashing, session token issue/verify, and the HTTP middleware that turns a
// request's bearer token into a model.Viewer.
//
// SESSION TOKENS ARE STATELESS:
// A token is a JWT signed with HS256. Everything needed to trust it (user id,
// username, expiry) is inside the token, and the signature proves the server
// issued it. Verification is a pure function of (secret, token, now): no
// session table, no lookup.
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Payload: {"sub":"42","username":"alice","iss":"feed","iat":...,"exp":...}
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/social-feed/internal/model"
)

// TokenTTL is the fixed lifetime of a session token.
const TokenTTL = time.Hour

const issuer = "feed"

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), ttl: TokenTTL}, nil
}

// claims is the JWT payload. "sub" holds the decimal user id.
type claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Issue signs a token for the user that expires TokenTTL after now.
func (s *TokenService) Issue(userID int64, username string, now time.Time) (string, error) {
	return s.issue(userID, username, now, now.Add(s.ttl))
}

func (s *TokenService) issue(userID int64, username string, now, expires time.Time) (string, error) {
	c := claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a token string at instant now.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid and the algorithm is HS256 (no "none" / RS confusion)
//   - ExpiresAt is present and after now
//   - Issuer matches
//
// An optional "Bearer " prefix is stripped first.
func (s *TokenService) Validate(tokenStr string, now time.Time) (model.Viewer, error) {
	tokenStr = StripBearer(tokenStr)
	if tokenStr == "" {
		return model.Anonymous(), errors.New("auth: empty token")
	}

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return model.Anonymous(), fmt.Errorf("auth: token expired")
		}
		return model.Anonymous(), fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return model.Anonymous(), fmt.Errorf("auth: invalid token claims")
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return model.Anonymous(), fmt.Errorf("auth: token has no valid subject")
	}

	return model.Authenticated(userID, c.Username), nil
}

// Verify is Validate without the error: any failure degrades to the
// anonymous viewer and ok=false.
func (s *TokenService) Verify(tokenStr string, now time.Time) (model.Viewer, bool) {
	v, err := s.Validate(tokenStr, now)
	if err != nil {
		return model.Anonymous(), false
	}
	return v, true
}

// StripBearer removes a leading "Bearer " (case-insensitive) and surrounding
// whitespace.
func StripBearer(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 7 && strings.EqualFold(s[:7], "bearer ") {
		s = strings.TrimSpace(s[7:])
	}
	return s
}
