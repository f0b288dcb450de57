package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/izpodvypodvert/todoapi/internal/api/handlers"
	"github.com/izpodvypodvert/todoapi/internal/api/middleware"
	"github.com/izpodvypodvert/todoapi/internal/domain"
	"github.com/izpodvypodvert/todoapi/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver map[string]*domain.User

func (f fakeResolver) UserFromToken(_ context.Context, token string) (*domain.User, error) {
	if u, ok := f[token]; ok {
		return u, nil
	}
	return nil, domain.ErrInvalidToken
}

// memoryTodos keeps todos per owner the way the store does.
type memoryTodos struct {
	mu     sync.Mutex
	nextID int64
	todos  map[int64]*domain.Todo
}

func newMemoryTodos() *memoryTodos {
	return &memoryTodos{todos: make(map[int64]*domain.Todo)}
}

func (m *memoryTodos) GetAll(_ context.Context, owner *domain.User) ([]*domain.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Todo
	for id := int64(1); id <= m.nextID; id++ {
		if t, ok := m.todos[id]; ok && t.UserID == owner.ID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memoryTodos) GetByID(_ context.Context, owner *domain.User, id int64) (*domain.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.todos[id]
	if !ok || t.UserID != owner.ID {
		return nil, domain.NotFound(domain.EntityTodo, id)
	}
	return t, nil
}

func (m *memoryTodos) Create(_ context.Context, owner *domain.User, input domain.TodoCreate) (*domain.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t := &domain.Todo{ID: m.nextID, Title: input.Title, Description: input.Description, UserID: owner.ID}
	m.todos[t.ID] = t
	return t, nil
}

func (m *memoryTodos) Update(ctx context.Context, owner *domain.User, id int64, input domain.TodoUpdate) (*domain.Todo, error) {
	t, err := m.GetByID(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if input.Title != nil {
		t.Title = *input.Title
	}
	if input.Description.Set {
		t.Description = input.Description.Value
	}
	return t, nil
}

func (m *memoryTodos) Delete(_ context.Context, owner *domain.User, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.todos[id]
	if !ok || t.UserID != owner.ID {
		return 0, nil
	}
	delete(m.todos, id)
	return 1, nil
}

type stubAccounts struct{}

func (stubAccounts) Register(_ context.Context, in domain.UserCreate) (*domain.User, error) {
	return &domain.User{ID: uuid.New(), Email: in.Email, Username: in.Username, IsActive: true}, nil
}
func (stubAccounts) Login(context.Context, string, string) (string, error) { return "tok", nil }
func (stubAccounts) ForgotPassword(context.Context, string) error         { return nil }
func (stubAccounts) ResetPassword(context.Context, string, string) (*domain.User, error) {
	return nil, domain.ErrResetPasswordBadToken
}
func (stubAccounts) RequestVerify(context.Context, string) error { return nil }
func (stubAccounts) Verify(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrVerifyUserBadToken
}

type stubUsers struct{}

func (stubUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	return nil, domain.NotFound(domain.EntityUser, id)
}
func (stubUsers) UpdateUser(_ context.Context, u *domain.User, _ domain.UserUpdate, _ bool) (*domain.User, error) {
	return u, nil
}
func (stubUsers) DeleteUser(_ context.Context, id uuid.UUID) error {
	return domain.NotFound(domain.EntityUser, id)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

var (
	alice = &domain.User{ID: uuid.MustParse("11111111-1111-4111-8111-111111111111"), Email: "alice@example.com", IsActive: true}
	bob   = &domain.User{ID: uuid.MustParse("22222222-2222-4222-8222-222222222222"), Email: "bob@example.com", IsActive: true}
	root  = &domain.User{ID: uuid.MustParse("33333333-3333-4333-8333-333333333333"), Email: "root@example.com", IsActive: true, IsSuperuser: true}
)

func newTestRouter(mutate func(cfg *RouterConfig)) http.Handler {
	cfg := RouterConfig{
		Logger:      logger.NewForTests(),
		Users:       fakeResolver{"alice-token": alice, "bob-token": bob, "root-token": root},
		AuthHandler: handlers.NewAuthHandler(stubAccounts{}),
		UserHandler: handlers.NewUserHandler(stubUsers{}),
		TodoHandler: handlers.NewTodoHandler(newMemoryTodos()),
		CORSOrigins: []string{"http://localhost:5173"},
		DB:          pingFunc(func(context.Context) error { return nil }),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewRouter(cfg)
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := do(t, newTestRouter(nil), http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"status":"ok"}}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHealth_DatabaseDown(t *testing.T) {
	router := newTestRouter(func(cfg *RouterConfig) {
		cfg.DB = pingFunc(func(context.Context) error { return errors.New("connection refused") })
	})

	w := do(t, router, http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestTodos_RequireAuthentication(t *testing.T) {
	router := newTestRouter(nil)

	assert.Equal(t, http.StatusUnauthorized, do(t, router, http.MethodGet, "/v1/todos", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, router, http.MethodGet, "/v1/todos", "forged", "").Code)
}

func TestTodos_UsersAreIsolated(t *testing.T) {
	router := newTestRouter(nil)

	w := do(t, router, http.MethodPost, "/v1/todos", "alice-token", `{"title":"alice's task"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Data struct {
			ID      int64  `json:"id"`
			OwnerID string `json:"owner_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, alice.ID.String(), created.Data.OwnerID)

	w = do(t, router, http.MethodGet, "/v1/todos", "bob-token", "")
	assert.JSONEq(t, `{"data":[]}`, w.Body.String())

	w = do(t, router, http.MethodGet, "/v1/todos/1", "bob-token", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"todo 1 not found"}`, w.Body.String())

	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodPatch, "/v1/todos/1", "bob-token", `{"title":"mine now"}`).Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodDelete, "/v1/todos/1", "bob-token", "").Code)

	w = do(t, router, http.MethodPut, "/v1/todos/1", "alice-token", `{"title":"renamed"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "renamed")

	assert.Equal(t, http.StatusNoContent, do(t, router, http.MethodDelete, "/v1/todos/1", "alice-token", "").Code)
}

func TestUsers_SuperuserRoutes(t *testing.T) {
	router := newTestRouter(nil)
	path := "/v1/users/" + alice.ID.String()

	assert.Equal(t, http.StatusForbidden, do(t, router, http.MethodGet, path, "alice-token", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, path, "root-token", "").Code)

	w := do(t, router, http.MethodGet, "/v1/users/me", "alice-token", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice@example.com")
}

func TestOAuthRoutes_OnlyWhenConfigured(t *testing.T) {
	w := do(t, newTestRouter(nil), http.MethodGet, "/v1/auth/google/login", "", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthRoutes_RateLimited(t *testing.T) {
	router := newTestRouter(func(cfg *RouterConfig) {
		cfg.AuthLimiter = middleware.NewRateLimiter(1, nil)
	})

	body := `{"email":"carol@example.com","username":"carol","password":"correct horse"}`
	assert.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/v1/auth/register", "", body).Code)

	w := do(t, router, http.MethodPost, "/v1/auth/register", "", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusUnauthorized, do(t, router, http.MethodGet, "/v1/todos", "", "").Code)
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/v1/todos", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()

	newTestRouter(nil).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(func(cfg *RouterConfig) {
		cfg.MetricsHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		})
	})

	w := do(t, router, http.MethodGet, "/metrics", "", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# metrics", w.Body.String())
}
