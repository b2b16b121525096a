package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/atinyakov/taskboard/internal/apperr"
	"github.com/atinyakov/taskboard/internal/middleware"
	"github.com/atinyakov/taskboard/internal/models"
)

// AuthService defines the authentication operations required by the
// HTTP handlers.
type AuthService interface {
	// Register creates a new user account.
	Register(ctx context.Context, login, password, email string) (*models.User, error)
	// Login verifies credentials and returns a signed access token.
	Login(ctx context.Context, login, password string) (string, error)
	// Refresh exchanges a still-valid token for a fresh one.
	Refresh(ctx context.Context, tokenString string) (string, error)
	// CurrentUser resolves an authenticated login to its user record.
	CurrentUser(ctx context.Context, login string) (*models.User, error)
}

// AuthHandler handles registration, login and token refresh requests.
type AuthHandler struct {
	AuthService AuthService
}

// RegisterRequest is the JSON payload for user registration.
type RegisterRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// LoginRequest is the JSON payload for credential login.
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// TokenResponse carries an issued access token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Register handles user registration requests. Duplicate logins or
// emails yield 409.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	user, err := h.AuthService.Register(r.Context(), req.Login, req.Password, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// Login handles credential login requests and returns a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	token, err := h.AuthService.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// Refresh exchanges the bearer token in the Authorization header for
// a fresh one.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	if header == "" {
		http.Error(w, "authorization required", http.StatusUnauthorized)
		return
	}

	token, err := h.AuthService.Refresh(r.Context(), strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.AuthService)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// currentUser resolves the login stored by the auth middleware to the
// full user record.
func currentUser(r *http.Request, auth AuthService) (*models.User, error) {
	login := middleware.GetUserFromContext(r.Context())
	if login == "" {
		return nil, apperr.Auth("authorization required")
	}
	return auth.CurrentUser(r.Context(), login)
}
