package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/izpodvypodvert/todoapi/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) Register(ctx context.Context, input domain.UserCreate) (*domain.User, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockAccountService) Login(ctx context.Context, email, password string) (string, error) {
	args := m.Called(ctx, email, password)
	return args.String(0), args.Error(1)
}

func (m *MockAccountService) ForgotPassword(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *MockAccountService) ResetPassword(ctx context.Context, token, password string) (*domain.User, error) {
	args := m.Called(ctx, token, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockAccountService) RequestVerify(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *MockAccountService) Verify(ctx context.Context, token string) (*domain.User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func testUser() *domain.User {
	return &domain.User{
		ID:             uuid.MustParse("0b6b3c1e-8f0a-4f5e-9a55-2b9e7d5c1f00"),
		Email:          "alice@example.com",
		Username:       "alice",
		HashedPassword: "$argon2id$secret",
		IsActive:       true,
		CreatedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func decodeData(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(body, &resp))
	data, ok := resp["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %s", body)
	return data
}

func TestAuthHandler_Register_Success(t *testing.T) {
	svc := new(MockAccountService)
	handler := NewAuthHandler(svc)

	user := testUser()
	svc.On("Register", mock.Anything, domain.UserCreate{
		Email:    "alice@example.com",
		Username: "alice",
		Password: "correct horse",
	}).Return(user, nil)

	body := `{"email":"alice@example.com","username":" alice ","password":"correct horse"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.Register(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w.Body.Bytes())
	assert.Equal(t, user.ID.String(), data["id"])
	assert.Equal(t, "alice", data["username"])
	assert.NotContains(t, w.Body.String(), "argon2")
	svc.AssertExpectations(t)
}

func TestAuthHandler_Register_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{name: "invalid json", body: `{bad`, message: "invalid request body"},
		{name: "missing email", body: `{"username":"a","password":"p"}`, message: "email is required"},
		{name: "bad email", body: `{"email":"nope","username":"a","password":"p"}`, message: "email must be a valid email address"},
		{name: "missing password", body: `{"email":"a@b.co","username":"a"}`, message: "password is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockAccountService)
			handler := NewAuthHandler(svc)

			req := httptest.NewRequest(http.MethodPost, "/v1/auth/register", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			handler.Register(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.message)
			svc.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
		})
	}
}

func TestAuthHandler_Register_Duplicate(t *testing.T) {
	svc := new(MockAccountService)
	handler := NewAuthHandler(svc)
	svc.On("Register", mock.Anything, mock.Anything).Return(nil, domain.ErrRegisterUserExists)

	body := `{"email":"alice@example.com","username":"alice","password":"correct horse"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.Register(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already exists")
}

func TestAuthHandler_Login_Form(t *testing.T) {
	svc := new(MockAccountService)
	handler := NewAuthHandler(svc)
	svc.On("Login", mock.Anything, "alice@example.com", "correct horse").Return("jwt-token", nil)

	form := url.Values{"username": {"alice@example.com"}, "password": {"correct horse"}}
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/jwt/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	handler.Login(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w.Body.Bytes())
	assert.Equal(t, "jwt-token", data["access_token"])
	assert.Equal(t, "bearer", data["token_type"])
	svc.AssertExpectations(t)
}

func TestAuthHandler_Login_JSON(t *testing.T) {
	svc := new(MockAccountService)
	handler := NewAuthHandler(svc)
	svc.On("Login", mock.Anything, "alice@example.com", "pw").Return("jwt-token", nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/jwt/login",
		bytes.NewReader([]byte(`{"email":"alice@example.com","password":"pw"}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.Login(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestAuthHandler_Login_BadCredentials(t *testing.T) {
	svc := new(MockAccountService)
	handler := NewAuthHandler(svc)
	svc.On("Login", mock.Anything, "alice@example.com", "wrong").Return("", domain.ErrBadCredentials)

	form := url.Values{"username": {"alice@example.com"}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/jwt/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	handler.Login(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid email or password")
}

func TestAuthHandler_Login_MissingFormField(t *testing.T) {
	svc := new(MockAccountService)
	handler := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/jwt/login", strings.NewReader("username=alice%40example.com"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	handler.Login(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "password is required")
}

func TestAuthHandler_Logout(t *testing.T) {
	handler := NewAuthHandler(new(MockAccountService))
	w := httptest.NewRecorder()

	handler.Logout(w, httptest.NewRequest(http.MethodPost, "/v1/auth/jwt/logout", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAuthHandler_ForgotPassword_AlwaysAccepted(t *testing.T) {
	svc := new(MockAccountService)
	handler := NewAuthHandler(svc)
	svc.On("ForgotPassword", mock.Anything, "ghost@example.com").Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/forgot-password",
		strings.NewReader(`{"email":"ghost@example.com"}`))
	w := httptest.NewRecorder()

	handler.ForgotPassword(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	svc.AssertExpectations(t)
}

func TestAuthHandler_ResetPassword(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := new(MockAccountService)
		handler := NewAuthHandler(svc)
		svc.On("ResetPassword", mock.Anything, "tok", "new password").Return(testUser(), nil)

		req := httptest.NewRequest(http.MethodPost, "/v1/auth/reset-password",
			strings.NewReader(`{"token":"tok","password":"new password"}`))
		w := httptest.NewRecorder()

		handler.ResetPassword(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("bad token", func(t *testing.T) {
		svc := new(MockAccountService)
		handler := NewAuthHandler(svc)
		svc.On("ResetPassword", mock.Anything, "used", "new password").Return(nil, domain.ErrResetPasswordBadToken)

		req := httptest.NewRequest(http.MethodPost, "/v1/auth/reset-password",
			strings.NewReader(`{"token":"used","password":"new password"}`))
		w := httptest.NewRecorder()

		handler.ResetPassword(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "password reset link is invalid")
	})
}

func TestAuthHandler_RequestVerifyToken(t *testing.T) {
	svc := new(MockAccountService)
	handler := NewAuthHandler(svc)
	svc.On("RequestVerify", mock.Anything, "alice@example.com").Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/request-verify-token",
		strings.NewReader(`{"email":"alice@example.com"}`))
	w := httptest.NewRecorder()

	handler.RequestVerifyToken(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	svc.AssertExpectations(t)
}

func TestAuthHandler_VerifyEmail(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := new(MockAccountService)
		handler := NewAuthHandler(svc)
		svc.On("Verify", mock.Anything, "tok").Return(testUser(), nil)

		req := httptest.NewRequest(http.MethodPost, "/v1/auth/verify-email", strings.NewReader(`{"token":"tok"}`))
		w := httptest.NewRecorder()

		handler.VerifyEmail(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "email verified successfully", decodeData(t, w.Body.Bytes())["message"])
	})

	t.Run("already verified", func(t *testing.T) {
		svc := new(MockAccountService)
		handler := NewAuthHandler(svc)
		svc.On("Verify", mock.Anything, "tok").Return(nil, domain.ErrVerifyUserAlreadyVerified)

		req := httptest.NewRequest(http.MethodPost, "/v1/auth/verify-email", strings.NewReader(`{"token":"tok"}`))
		w := httptest.NewRecorder()

		handler.VerifyEmail(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "already verified")
	})
}
