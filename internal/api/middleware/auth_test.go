package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/izpodvypodvert/todoapi/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockUserResolver struct {
	mock.Mock
}

func (m *MockUserResolver) UserFromToken(ctx context.Context, token string) (*domain.User, error) {
	args := m.Called(ctx, token)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func newTestUser(superuser bool) *domain.User {
	return &domain.User{
		ID:          uuid.MustParse("6f1c2b9e-5d4a-4c3b-9a8e-7f6d5c4b3a21"),
		Email:       "alice@example.com",
		Username:    "alice",
		IsActive:    true,
		IsSuperuser: superuser,
	}
}

func TestBearerAuth_Success(t *testing.T) {
	user := newTestUser(false)
	resolver := new(MockUserResolver)
	resolver.On("UserFromToken", mock.Anything, "tok-123").Return(user, nil)

	var captured *domain.User
	handler := BearerAuth(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetUser(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer tok-123")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, user, captured)
	resolver.AssertExpectations(t)
}

func TestBearerAuth_SchemeIsCaseInsensitive(t *testing.T) {
	resolver := new(MockUserResolver)
	resolver.On("UserFromToken", mock.Anything, "tok-123").Return(newTestUser(false), nil)

	handler := BearerAuth(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer tok-123")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBearerAuth_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz"},
		{name: "no token", header: "Bearer "},
		{name: "no separator", header: "Bearertok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := new(MockUserResolver)
			handler := BearerAuth(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
			resolver.AssertNotCalled(t, "UserFromToken", mock.Anything, mock.Anything)
		})
	}
}

func TestBearerAuth_InvalidToken(t *testing.T) {
	resolver := new(MockUserResolver)
	resolver.On("UserFromToken", mock.Anything, "expired").Return(nil, domain.ErrInvalidToken)

	handler := BearerAuth(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer expired")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "unauthorized")
}

func TestBearerAuth_StoreFailureIsServerError(t *testing.T) {
	resolver := new(MockUserResolver)
	resolver.On("UserFromToken", mock.Anything, "tok").Return(nil, errors.New("connection refused"))

	handler := BearerAuth(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestBearerAuth_FillsUserHolder(t *testing.T) {
	user := newTestUser(false)
	resolver := new(MockUserResolver)
	resolver.On("UserFromToken", mock.Anything, "tok").Return(user, nil)

	holder := &userHolder{}
	handler := BearerAuth(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(withUserHolder(req.Context(), holder))
	req.Header.Set("Authorization", "Bearer tok")

	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, user.ID.String(), holder.id)
}

func TestRequireSuperuser(t *testing.T) {
	tests := []struct {
		name   string
		user   *domain.User
		status int
	}{
		{name: "anonymous", user: nil, status: http.StatusUnauthorized},
		{name: "regular user", user: newTestUser(false), status: http.StatusForbidden},
		{name: "superuser", user: newTestUser(true), status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireSuperuser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/v1/users/x", nil)
			if tt.user != nil {
				req = req.WithContext(WithUser(req.Context(), tt.user))
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestGetUser_Empty(t *testing.T) {
	assert.Nil(t, GetUser(context.Background()))
}
