// Package service provides business-logic services for authentication
// and the project/task lifecycle, delegating persistence to
// repository interfaces.
package service

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/taskboard/internal/apperr"
	"github.com/atinyakov/taskboard/internal/models"
)

// UserRepository defines the persistence operations required by the
// authentication service.
type UserRepository interface {
	// Create inserts a new user. Duplicate login or email yields a
	// Conflict error.
	Create(ctx context.Context, login, email, passwordHash string, now time.Time) (*models.User, error)
	// GetByLogin fetches a user by login, NotFound when absent.
	GetByLogin(ctx context.Context, login string) (*models.User, error)
	// UpdateLastLogin bumps the last_login timestamp.
	UpdateLastLogin(ctx context.Context, userID int64, now time.Time) error
}

// TokenIssuer issues and validates access tokens bound to a login.
type TokenIssuer interface {
	Issue(login string) (string, error)
	Parse(tokenString string) (string, error)
}

// AuthService implements registration, login and token refresh.
type AuthService struct {
	repo   UserRepository
	tokens TokenIssuer
}

// NewAuthService constructs an AuthService using the provided
// repository and token issuer.
func NewAuthService(repo UserRepository, tokens TokenIssuer) *AuthService {
	return &AuthService{repo: repo, tokens: tokens}
}

// Register creates a new user with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, login, password, email string) (*models.User, error) {
	if login == "" {
		return nil, apperr.Validation("login must not be empty")
	}
	if password == "" {
		return nil, apperr.Validation("password must not be empty")
	}
	if !strings.Contains(email, "@") {
		return nil, apperr.Validation("invalid email address")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	return s.repo.Create(ctx, login, email, string(hash), time.Now().UTC())
}

// Login verifies the credentials and returns a signed access token.
// Wrong login and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, login, password string) (string, error) {
	user, err := s.repo.GetByLogin(ctx, login)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return "", apperr.Auth("incorrect login or password")
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", apperr.Auth("incorrect login or password")
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		return "", err
	}

	return s.tokens.Issue(login)
}

// Refresh exchanges a still-valid token for a fresh one, confirming
// the bound user still exists.
func (s *AuthService) Refresh(ctx context.Context, tokenString string) (string, error) {
	login, err := s.tokens.Parse(tokenString)
	if err != nil {
		return "", err
	}

	if _, err := s.repo.GetByLogin(ctx, login); err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return "", apperr.Auth("invalid refresh token")
		}
		return "", err
	}

	return s.tokens.Issue(login)
}

// CurrentUser returns the profile of the authenticated login.
func (s *AuthService) CurrentUser(ctx context.Context, login string) (*models.User, error) {
	return s.repo.GetByLogin(ctx, login)
}
