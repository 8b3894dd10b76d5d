package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/sakif/social-feed/internal/apperror"
	"github.com/sakif/social-feed/internal/auth"
	"github.com/sakif/social-feed/internal/model"
	"github.com/sakif/social-feed/internal/repository"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]{3,32}$`)

// AuthService handles registration, credential checks and session tokens.
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ PasswordService (argon2id)
//	                   ↘ TokenService (JWT)
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
	now       func() time.Time
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
		now:       time.Now,
	}
}

// AuthResult bundles the user record and the issued token so the handler
// can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a user with a fresh salt. A taken username returns an
// error matching apperror.ErrConflict; the existing account is untouched.
func (s *AuthService) Register(ctx context.Context, username, password string) (*model.User, error) {
	if !usernamePattern.MatchString(username) {
		return nil, apperror.ValidationFailed("username",
			"username must be 3-32 characters of letters, digits, '_', '-' or '.'")
	}
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d-%d bytes", MinPasswordLength, MaxPasswordLength))
	}

	salt, err := s.passwords.NewSalt()
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}
	hash, err := s.passwords.Hash(password, salt)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	user := &model.User{Username: username, Salt: salt, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			s.logger.Info("registration rejected: username taken", slog.String("username", username))
		}
		return nil, fmt.Errorf("service/auth: creating user %q: %w", username, err)
	}

	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// VerifyCredentials returns the user whose password matches.
//
// "No such user" and "wrong password" produce the same error, and the
// unknown-user path still pays for one hash so timing doesn't tell them
// apart either.
func (s *AuthService) VerifyCredentials(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.passwords.Burn(password)
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: loading credentials: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, user.Salt, password); err != nil {
		return nil, apperror.InvalidCredentials()
	}
	return user, nil
}

// Login verifies credentials and issues a session token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	user, err := s.VerifyCredentials(ctx, username, password)
	if err != nil {
		if errors.Is(err, apperror.ErrInvalidCredentials) {
			s.logger.Info("login failed", slog.String("username", username))
		}
		return nil, err
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)
	return &AuthResult{User: user, Token: token}, nil
}

// IssueToken signs a session token for user, valid for auth.TokenTTL.
func (s *AuthService) IssueToken(user *model.User) (string, error) {
	token, err := s.tokens.Issue(user.ID, user.Username, s.now())
	if err != nil {
		return "", fmt.Errorf("service/auth: generating token for user %d: %w", user.ID, err)
	}
	return token, nil
}

// VerifyToken returns the viewer a token identifies. Absent, malformed,
// forged and expired tokens all yield (Anonymous, false).
func (s *AuthService) VerifyToken(token string) (model.Viewer, bool) {
	return s.tokens.Verify(token, s.now())
}

// GetUserByID returns the user for the given id.
func (s *AuthService) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %d: %w", id, err)
	}
	return user, nil
}
