//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type todoPayload struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	OwnerID     string  `json:"owner_id"`
}

type userPayload struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	IsActive    bool   `json:"is_active"`
	IsSuperuser bool   `json:"is_superuser"`
}

func decode[T any](t *testing.T, resp *APIResponse) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Data, &v))
	return v
}

func TestE2E_TodoLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	alice := env.RegisterAndLogin("alice@example.com", "alice", "correct horse")
	bob := env.RegisterAndLogin("bob@example.com", "bob", "battery staple")

	meResp, err := env.Get("/v1/users/me", alice)
	require.NoError(t, err)
	me := decode[userPayload](t, meResp)
	assert.Equal(t, "alice@example.com", me.Email)

	created, err := env.Post("/v1/todos", map[string]any{"title": "Buy milk", "description": "2 litres"}, alice)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, created.Status)
	todo := decode[todoPayload](t, created)
	assert.Equal(t, me.ID, todo.OwnerID)
	require.NotNil(t, todo.Description)

	t.Run("owner sees the todo", func(t *testing.T) {
		resp, err := env.Get("/v1/todos", alice)
		require.NoError(t, err)
		todos := decode[[]todoPayload](t, resp)
		require.Len(t, todos, 1)
		assert.Equal(t, todo.ID, todos[0].ID)
	})

	t.Run("other users get not found", func(t *testing.T) {
		resp, err := env.Get("/v1/todos", bob)
		require.NoError(t, err)
		assert.JSONEq(t, `[]`, string(resp.Data))

		path := fmt.Sprintf("/v1/todos/%d", todo.ID)
		resp, err = env.Get(path, bob)
		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, resp.Status)

		resp, err = env.Patch(path, map[string]any{"title": "stolen"}, bob)
		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, resp.Status)

		resp, err = env.Delete(path, bob)
		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, resp.Status)
	})

	t.Run("owner updates and deletes", func(t *testing.T) {
		path := fmt.Sprintf("/v1/todos/%d", todo.ID)
		resp, err := env.Patch(path, map[string]any{"title": "Buy oat milk"}, alice)
		require.NoError(t, err)
		updated := decode[todoPayload](t, resp)
		assert.Equal(t, "Buy oat milk", updated.Title)
		require.NotNil(t, updated.Description)
		assert.Equal(t, "2 litres", *updated.Description)

		resp, err = env.Delete(path, alice)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.Status)

		resp, err = env.Get(path, alice)
		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, resp.Status)
	})
}

func TestE2E_AuthErrors(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	env.RegisterAndLogin("alice@example.com", "alice", "correct horse")

	t.Run("duplicate registration", func(t *testing.T) {
		resp, err := env.Post("/v1/auth/register", map[string]string{
			"email": "ALICE@example.com", "username": "alice2", "password": "correct horse",
		}, "")
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.Status)
	})

	t.Run("invalid body", func(t *testing.T) {
		resp, err := env.Post("/v1/auth/register", map[string]string{"email": "not-an-email"}, "")
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.Status)
		assert.NotEmpty(t, resp.Error)
	})

	t.Run("missing token", func(t *testing.T) {
		resp, err := env.Get("/v1/todos", "")
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.Status)
	})

	t.Run("garbage token", func(t *testing.T) {
		resp, err := env.Get("/v1/todos", "not.a.token")
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.Status)
	})

	t.Run("regular user cannot administer users", func(t *testing.T) {
		token := env.RegisterAndLogin("carol@example.com", "carol", "correct horse")
		resp, err := env.Get("/v1/users/00000000-0000-0000-0000-000000000000", token)
		require.Error(t, err)
		assert.Equal(t, http.StatusForbidden, resp.Status)
	})
}

func TestE2E_SuperuserDeactivatesUser(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	_, created, err := env.Users.EnsureSuperuser(env.Ctx, "root@example.com", "root-password")
	require.NoError(t, err)
	require.True(t, created)

	aliceToken := env.RegisterAndLogin("alice@example.com", "alice", "correct horse")
	meResp, err := env.Get("/v1/users/me", aliceToken)
	require.NoError(t, err)
	alice := decode[userPayload](t, meResp)

	rootToken := env.Login("root@example.com", "root-password")

	resp, err := env.Patch("/v1/users/"+alice.ID, map[string]any{"is_active": false}, rootToken)
	require.NoError(t, err)
	assert.False(t, decode[userPayload](t, resp).IsActive)

	resp, err = env.Get("/v1/todos", aliceToken)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
}

func TestE2E_MetricsAndHealth(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	token := env.RegisterAndLogin("alice@example.com", "alice", "correct horse")
	_, err := env.Get("/v1/todos", token)
	require.NoError(t, err)

	resp, err := env.HTTPClient.Get(env.ServerURL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := new(bytes.Buffer)
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), `todoapi_http_requests_total{method="GET",route="/v1/todos`)
	assert.Contains(t, body.String(), `todoapi_transactions_total{outcome="commit"}`)
}

func TestE2E_CLI(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.BuildBinaries()

	env.RegisterAndLogin("alice@example.com", "alice", "correct horse")
	home := t.TempDir()

	out, err := env.RunTodo(home, nil, "auth", "login", "--email", "alice@example.com", "--password", "correct horse")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Successfully logged in")

	out, err = env.RunTodo(home, nil, "add", "Buy milk", "--description", "2 litres", "--output")
	require.NoError(t, err, out)
	var todo todoPayload
	require.NoError(t, json.Unmarshal([]byte(out), &todo))
	assert.Equal(t, "Buy milk", todo.Title)

	out, err = env.RunTodo(home, nil, "list")
	require.NoError(t, err, out)
	assert.Contains(t, out, fmt.Sprintf("%d\tBuy milk", todo.ID))

	id := fmt.Sprint(todo.ID)
	out, err = env.RunTodo(home, nil, "update", id, "--title", "Buy oat milk")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Title: Buy oat milk")

	out, err = env.RunTodo(home, nil, "whoami", "--output")
	require.NoError(t, err, out)
	assert.Contains(t, out, `"email": "alice@example.com"`)

	out, err = env.RunTodo(home, nil, "delete", id)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Deleted todo "+id)

	out, err = env.RunTodo(home, nil, "get", id)
	require.Error(t, err)
	assert.Contains(t, out, "404")

	out, err = env.RunTodo(home, nil, "auth", "logout")
	require.NoError(t, err, out)

	out, err = env.RunTodo(home, nil, "list")
	require.Error(t, err)
	assert.Contains(t, out, "401")
}
