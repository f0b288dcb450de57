//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/izpodvypodvert/todoapi/internal/api/handlers"
	"github.com/izpodvypodvert/todoapi/internal/api/middleware"
	"github.com/izpodvypodvert/todoapi/internal/auth"
	"github.com/izpodvypodvert/todoapi/internal/domain"
	"github.com/izpodvypodvert/todoapi/internal/logger"
	"github.com/izpodvypodvert/todoapi/internal/metrics"
	"github.com/izpodvypodvert/todoapi/internal/repository"
	"github.com/izpodvypodvert/todoapi/internal/server"
	"github.com/izpodvypodvert/todoapi/internal/service"
	"github.com/izpodvypodvert/todoapi/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	Postgres     *testutil.Postgres
	Pool         *pgxpool.Pool
	Users        *service.UserManager
	ServerURL    string
	ServerCloser func()
	BinaryDir    string
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with a database and server
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pg := testutil.StartPostgres(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pg)

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	users, serverURL, serverCloser := startServer(t, pool, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		Postgres:     pg,
		Pool:         pool,
		Users:        users,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// RegisterAndLogin creates an account through the API and returns its token.
func (e *E2ETestEnv) RegisterAndLogin(email, username, password string) string {
	if _, err := e.Post("/v1/auth/register", map[string]string{
		"email":    email,
		"username": username,
		"password": password,
	}, ""); err != nil {
		e.T.Fatalf("failed to register %s: %v", email, err)
	}

	return e.Login(email, password)
}

// Login returns a fresh access token for an existing account.
func (e *E2ETestEnv) Login(email, password string) string {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)
	resp, err := e.PostForm("/v1/auth/jwt/login", form)
	if err != nil {
		e.T.Fatalf("failed to login %s: %v", email, err)
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(resp.Data, &token); err != nil {
		e.T.Fatalf("failed to parse token: %v", err)
	}
	return token.AccessToken
}

// BuildBinaries builds the todo and todoapid binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "todoapi-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	for _, name := range []string{"todo", "todoapid"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, name), "./cmd/"+name)
		cmd.Dir = "../.."
		if out, err := cmd.CombinedOutput(); err != nil {
			e.T.Fatalf("failed to build %s: %v\n%s", name, err, out)
		}
	}
}

// RunTodo runs the todo CLI with configDir as its config home.
func (e *E2ETestEnv) RunTodo(configDir string, env []string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "todo"), args...)
	cmd.Dir = configDir
	cmd.Env = append(os.Environ(),
		"HOME="+configDir,
		"XDG_CONFIG_HOME="+configDir,
		"TODO_API_URL="+e.ServerURL,
		"TODO_TOKEN=",
	)
	cmd.Env = append(cmd.Env, env...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	Status int
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, token string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil, token)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body any, token string) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body, token)
}

// Patch performs a PATCH request
func (e *E2ETestEnv) Patch(path string, body any, token string) (*APIResponse, error) {
	return e.doRequest(http.MethodPatch, path, body, token)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path, token string) (*APIResponse, error) {
	return e.doRequest(http.MethodDelete, path, nil, token)
}

// PostForm performs a form-urlencoded POST request
func (e *E2ETestEnv) PostForm(path string, form url.Values) (*APIResponse, error) {
	req, err := http.NewRequest(http.MethodPost, e.ServerURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.send(req)
}

func (e *E2ETestEnv) doRequest(method, path string, body any, token string) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	return e.send(req)
}

// send returns the parsed envelope. Statuses of 400 and above come back
// as an error carrying the status and message.
func (e *E2ETestEnv) send(req *http.Request) (*APIResponse, error) {
	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	apiResp := &APIResponse{Status: resp.StatusCode}
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, apiResp); err != nil {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
	}

	if resp.StatusCode >= 400 {
		return apiResp, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return apiResp, nil
}

// startServer starts the HTTP server with the production wiring
func startServer(t *testing.T, pool *pgxpool.Pool, port int) (*service.UserManager, string, func()) {
	registry := repository.NewDefaultRegistry()
	if err := registry.Require(domain.EntityTodo, domain.EntityUser, domain.EntityOAuthAccount); err != nil {
		t.Fatalf("registry incomplete: %v", err)
	}

	promRegistry := prometheus.NewRegistry()
	collector := metrics.NewCollector(promRegistry)
	tx := repository.NewTxManager(pool, registry, repository.WithObserver(collector))

	tokens, err := auth.NewTokens("e2e-secret-e2e-secret-e2e-secret", time.Hour)
	if err != nil {
		t.Fatalf("failed to create tokens: %v", err)
	}
	hasher := auth.NewPasswordHasher(auth.Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 16, SaltLen: 8})

	users, err := service.NewUserManager(tx, hasher, tokens)
	if err != nil {
		t.Fatalf("failed to create user manager: %v", err)
	}
	todos, err := service.NewTodoService(tx)
	if err != nil {
		t.Fatalf("failed to create todo service: %v", err)
	}

	router := server.NewRouter(server.RouterConfig{
		Logger:         logger.NewForTests(),
		Users:          users,
		AuthHandler:    handlers.NewAuthHandler(users),
		UserHandler:    handlers.NewUserHandler(users),
		TodoHandler:    handlers.NewTodoHandler(todos),
		Metrics:        collector,
		MetricsHandler: metrics.Handler(promRegistry),
		AuthLimiter:    middleware.NewRateLimiter(600, collector),
		DB:             pool,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return users, serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
