package api

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"

	domain "github.com/example/todo-api/domain/todo"
	"github.com/example/todo-api/modules/todo"
	"github.com/go-monolith/mono"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startMonoApp runs the todo and api modules inside a mono application so
// every request crosses the service bus.
func startMonoApp(t *testing.T) *fiber.App {
	t.Helper()

	app, err := mono.NewMonoApplication(
		mono.WithLogLevel(mono.LogLevelError),
	)
	require.NoError(t, err)

	todoModule := todo.NewModule(todo.Config{
		Backend: todo.BackendSQLite,
		DBPath:  filepath.Join(t.TempDir(), "todos.db"),
	}, app.Logger())
	apiModule := NewModule(Config{Addr: "127.0.0.1:0"}, app.Logger())
	apiModule.AddHealthCheck("todo", todoModule)

	require.NoError(t, app.Register(todoModule))
	require.NoError(t, app.Register(apiModule))
	require.NoError(t, app.Start(context.Background()))
	t.Cleanup(func() {
		_ = app.Stop(context.Background())
	})

	require.NotNil(t, apiModule.app)
	return apiModule.app
}

func TestBus_TodoLifecycle(t *testing.T) {
	app := startMonoApp(t)

	resp, body := doRequest(t, app, http.MethodPost, "/api/v1/todos", `{"title":"Buy milk","description":"2%"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created domain.Todo
	require.NoError(t, json.Unmarshal(body, &created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, domain.StatusOngoing, created.Status)

	path := "/api/v1/todos/" + created.ID

	resp, body = doRequest(t, app, http.MethodPut, path, `{"status":"completed"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var updated domain.Todo
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, domain.StatusCompleted, updated.Status)
	assert.Equal(t, "Buy milk", updated.Title)
	assert.Equal(t, "2%", updated.Description)

	resp, body = doRequest(t, app, http.MethodGet, "/api/v1/todos", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var all []domain.Todo
	require.NoError(t, json.Unmarshal(body, &all))
	require.Len(t, all, 1)
	assert.Equal(t, created.ID, all[0].ID)

	resp, body = doRequest(t, app, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Todo deleted successfully"}`, string(body))

	resp, body = doRequest(t, app, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Todo not found"}`, string(body))

	resp, _ = doRequest(t, app, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doRequest(t, app, http.MethodPut, path, `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBus_ErrorMapping(t *testing.T) {
	app := startMonoApp(t)

	resp, body := doRequest(t, app, http.MethodGet, "/api/v1/todos", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	resp, body = doRequest(t, app, http.MethodPost, "/api/v1/todos", `{"title":5,"description":true}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created domain.Todo
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "5", created.Title)
	assert.Equal(t, "true", created.Description)

	path := "/api/v1/todos/" + created.ID
	resp, body = doRequest(t, app, http.MethodPut, path, `{"status":"archived"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Contains(t, errResp.Message, "status")

	resp, body = doRequest(t, app, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got domain.Todo
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, domain.StatusOngoing, got.Status)

	resp, _ = doRequest(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
