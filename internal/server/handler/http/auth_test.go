package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/atinyakov/taskboard/internal/apperr"
	"github.com/atinyakov/taskboard/internal/models"
)

// fakeAuthService implements AuthService for testing.
type fakeAuthService struct {
	registerUser *models.User
	registerErr  error
	loginToken   string
	loginErr     error
	refreshToken string
	refreshErr   error
	currentUser  *models.User
	currentErr   error
}

func (f *fakeAuthService) Register(ctx context.Context, login, password, email string) (*models.User, error) {
	return f.registerUser, f.registerErr
}
func (f *fakeAuthService) Login(ctx context.Context, login, password string) (string, error) {
	return f.loginToken, f.loginErr
}
func (f *fakeAuthService) Refresh(ctx context.Context, tokenString string) (string, error) {
	return f.refreshToken, f.refreshErr
}
func (f *fakeAuthService) CurrentUser(ctx context.Context, login string) (*models.User, error) {
	return f.currentUser, f.currentErr
}

// fakeParser accepts any token and binds it to a fixed login.
type fakeParser struct {
	login string
	err   error
}

func (f *fakeParser) Parse(tokenString string) (string, error) {
	return f.login, f.err
}

func newTestRouter(auth *fakeAuthService, projects ProjectService, tasks TaskService, parser *fakeParser) http.Handler {
	authHandler := &AuthHandler{AuthService: auth}
	projectHandler := &ProjectHandler{ProjectService: projects, AuthService: auth}
	taskHandler := &TaskHandler{TaskService: tasks, AuthService: auth}
	return NewRouter(authHandler, projectHandler, taskHandler, parser, zap.NewNop())
}

func doJSON(t *testing.T, handler http.Handler, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf *bytes.Buffer
	if body != "" {
		buf = bytes.NewBufferString(body)
	} else {
		buf = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAuthHandler_Register(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		service      *fakeAuthService
		expectedCode int
	}{
		{
			name:         "invalid JSON",
			body:         `not a json`,
			service:      &fakeAuthService{},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "validation error",
			body:         `{"login":"","password":"pw","email":"a@b.c"}`,
			service:      &fakeAuthService{registerErr: apperr.Validation("login must not be empty")},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "duplicate user",
			body:         `{"login":"bob","password":"pw","email":"a@b.c"}`,
			service:      &fakeAuthService{registerErr: apperr.Conflict("user already exists")},
			expectedCode: http.StatusConflict,
		},
		{
			name:         "repository failure",
			body:         `{"login":"bob","password":"pw","email":"a@b.c"}`,
			service:      &fakeAuthService{registerErr: errors.New("db down")},
			expectedCode: http.StatusInternalServerError,
		},
		{
			name:         "success",
			body:         `{"login":"bob","password":"pw","email":"a@b.c"}`,
			service:      &fakeAuthService{registerUser: &models.User{ID: 1, Login: "bob"}},
			expectedCode: http.StatusCreated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(tt.service, nil, nil, &fakeParser{})
			rec := doJSON(t, router, "POST", "/api/register", tt.body, "")

			if rec.Code != tt.expectedCode {
				t.Fatalf("expected status %d, got %d: %s", tt.expectedCode, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		service      *fakeAuthService
		expectedCode int
	}{
		{
			name:         "bad credentials",
			body:         `{"login":"bob","password":"wrong"}`,
			service:      &fakeAuthService{loginErr: apperr.Auth("incorrect login or password")},
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "success",
			body:         `{"login":"bob","password":"pw"}`,
			service:      &fakeAuthService{loginToken: "signed-token"},
			expectedCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(tt.service, nil, nil, &fakeParser{})
			rec := doJSON(t, router, "POST", "/api/login", tt.body, "")

			if rec.Code != tt.expectedCode {
				t.Fatalf("expected status %d, got %d", tt.expectedCode, rec.Code)
			}
			if tt.expectedCode == http.StatusOK {
				var resp TokenResponse
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if resp.AccessToken != "signed-token" || resp.TokenType != "bearer" {
					t.Errorf("unexpected token response: %+v", resp)
				}
			}
		})
	}
}

func TestAuthHandler_Refresh(t *testing.T) {
	service := &fakeAuthService{refreshToken: "fresh-token"}
	router := newTestRouter(service, nil, nil, &fakeParser{})

	rec := doJSON(t, router, "POST", "/api/refresh", "", "stale-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp TokenResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.AccessToken != "fresh-token" {
		t.Errorf("access_token = %q; want %q", resp.AccessToken, "fresh-token")
	}
}

func TestAuthHandler_RefreshWithoutHeader(t *testing.T) {
	router := newTestRouter(&fakeAuthService{}, nil, nil, &fakeParser{})

	rec := doJSON(t, router, "POST", "/api/refresh", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestAuthHandler_Me(t *testing.T) {
	service := &fakeAuthService{currentUser: &models.User{ID: 7, Login: "bob", Email: "bob@example.com"}}
	router := newTestRouter(service, nil, nil, &fakeParser{login: "bob"})

	rec := doJSON(t, router, "GET", "/api/user", "", "valid")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var user models.User
	if err := json.NewDecoder(rec.Body).Decode(&user); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if user.ID != 7 || user.Login != "bob" {
		t.Errorf("unexpected user: %+v", user)
	}
}

func TestProtectedRoutes_RejectMissingToken(t *testing.T) {
	router := newTestRouter(&fakeAuthService{}, nil, nil, &fakeParser{err: errors.New("bad token")})

	rec := doJSON(t, router, "GET", "/api/user", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}
