package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	domain "github.com/example/todo-api/domain/todo"
	"github.com/example/todo-api/modules/activity"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)         {}
func (m *mockLogger) Info(msg string, args ...any)          {}
func (m *mockLogger) Warn(msg string, args ...any)          {}
func (m *mockLogger) Error(msg string, args ...any)         {}
func (m *mockLogger) With(args ...any) types.Logger         { return m }
func (m *mockLogger) WithError(err error) types.Logger      { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

// mockPort implements todo.TodoPort for testing.
type mockPort struct {
	listFunc   func(ctx context.Context) ([]domain.Todo, error)
	getFunc    func(ctx context.Context, id string) (*domain.Todo, error)
	createFunc func(ctx context.Context, d domain.Draft) (*domain.Todo, error)
	updateFunc func(ctx context.Context, id string, p domain.Patch) (*domain.Todo, error)
	deleteFunc func(ctx context.Context, id string) error
}

func (m *mockPort) List(ctx context.Context) ([]domain.Todo, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, errors.New("not implemented")
}

func (m *mockPort) Get(ctx context.Context, id string) (*domain.Todo, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockPort) Create(ctx context.Context, d domain.Draft) (*domain.Todo, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, d)
	}
	return nil, errors.New("not implemented")
}

func (m *mockPort) Update(ctx context.Context, id string, p domain.Patch) (*domain.Todo, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, p)
	}
	return nil, errors.New("not implemented")
}

func (m *mockPort) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return errors.New("not implemented")
}

// newTestApp builds the Fiber app around port without listening.
func newTestApp(t *testing.T, port *mockPort) (*Module, *fiber.App) {
	t.Helper()

	m := NewModule(Config{}, &mockLogger{})
	m.port = port
	app, err := m.newApp()
	require.NoError(t, err)
	return m, app
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func sampleTodo(id string, status domain.Status) *domain.Todo {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return &domain.Todo{
		ID:          id,
		Title:       "Buy milk",
		Description: "2%",
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestListTodos(t *testing.T) {
	tests := []struct {
		name       string
		listFunc   func(ctx context.Context) ([]domain.Todo, error)
		wantStatus int
		wantBody   string
	}{
		{
			name: "empty list is an array",
			listFunc: func(ctx context.Context) ([]domain.Todo, error) {
				return nil, nil
			},
			wantStatus: http.StatusOK,
			wantBody:   `[]`,
		},
		{
			name: "store failure",
			listFunc: func(ctx context.Context) ([]domain.Todo, error) {
				return nil, &domain.PersistenceError{Op: domain.OpRead, Err: errors.New("connection refused")}
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"message":"connection refused"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, app := newTestApp(t, &mockPort{listFunc: tt.listFunc})

			resp, body := doRequest(t, app, http.MethodGet, "/api/v1/todos", "")
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.JSONEq(t, tt.wantBody, string(body))
		})
	}
}

func TestListTodos_Shape(t *testing.T) {
	_, app := newTestApp(t, &mockPort{
		listFunc: func(ctx context.Context) ([]domain.Todo, error) {
			return []domain.Todo{*sampleTodo("abc", domain.StatusOngoing)}, nil
		},
	})

	resp, body := doRequest(t, app, http.MethodGet, "/api/v1/todos", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var items []map[string]any
	require.NoError(t, json.Unmarshal(body, &items))
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, "abc", item["id"])
	assert.Equal(t, "Buy milk", item["title"])
	assert.Equal(t, "2%", item["description"])
	assert.Equal(t, "ongoing", item["status"])
	assert.Equal(t, "2024-01-02T03:04:05Z", item["createdAt"])
	assert.Equal(t, "2024-01-02T03:04:05Z", item["updatedAt"])
	assert.NotContains(t, item, "_id")
	assert.Len(t, item, 6)
}

func TestCreateTodo(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		createFunc func(ctx context.Context, d domain.Draft) (*domain.Todo, error)
		wantStatus int
		wantDraft  *domain.Draft
	}{
		{
			name:       "created",
			body:       `{"title":"Buy milk","description":"2%"}`,
			wantStatus: http.StatusCreated,
			wantDraft:  &domain.Draft{Title: "Buy milk", Description: "2%"},
		},
		{
			name:       "status in body ignored",
			body:       `{"title":"Buy milk","status":"completed"}`,
			wantStatus: http.StatusCreated,
			wantDraft:  &domain.Draft{Title: "Buy milk"},
		},
		{
			name:       "empty body",
			body:       "",
			wantStatus: http.StatusCreated,
			wantDraft:  &domain.Draft{},
		},
		{
			name:       "scalars cast to strings",
			body:       `{"title":5,"description":true}`,
			wantStatus: http.StatusCreated,
			wantDraft:  &domain.Draft{Title: "5", Description: "true"},
		},
		{
			name:       "wrong type",
			body:       `{"title":["a"]}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "store rejects write",
			body: `{"title":"x"}`,
			createFunc: func(ctx context.Context, d domain.Draft) (*domain.Todo, error) {
				return nil, &domain.PersistenceError{Op: domain.OpWrite, Err: errors.New("disk full")}
			},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *domain.Draft
			port := &mockPort{createFunc: tt.createFunc}
			if port.createFunc == nil {
				port.createFunc = func(ctx context.Context, d domain.Draft) (*domain.Todo, error) {
					got = &d
					todo := sampleTodo("new-id", domain.StatusOngoing)
					todo.Title, todo.Description = d.Title, d.Description
					return todo, nil
				}
			}
			_, app := newTestApp(t, port)

			resp, body := doRequest(t, app, http.MethodPost, "/api/v1/todos", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode, string(body))

			if tt.wantDraft != nil {
				require.NotNil(t, got)
				assert.Equal(t, *tt.wantDraft, *got)

				var created domain.Todo
				require.NoError(t, json.Unmarshal(body, &created))
				assert.Equal(t, "new-id", created.ID)
				assert.Equal(t, domain.StatusOngoing, created.Status)
			} else {
				var errResp ErrorResponse
				require.NoError(t, json.Unmarshal(body, &errResp))
				assert.NotEmpty(t, errResp.Message)
			}
		})
	}
}

func TestGetTodo(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{name: "found", wantStatus: http.StatusOK},
		{name: "missing", err: domain.ErrNotFound, wantStatus: http.StatusNotFound, wantBody: `{"message":"Todo not found"}`},
		{
			name:       "malformed id",
			err:        &domain.PersistenceError{Op: domain.OpRead, Err: errors.New("Cast to ObjectId failed")},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"message":"Cast to ObjectId failed"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, app := newTestApp(t, &mockPort{
				getFunc: func(ctx context.Context, id string) (*domain.Todo, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					return sampleTodo(id, domain.StatusOngoing), nil
				},
			})

			resp, body := doRequest(t, app, http.MethodGet, "/api/v1/todos/abc", "")
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, string(body))
				return
			}

			var got domain.Todo
			require.NoError(t, json.Unmarshal(body, &got))
			assert.Equal(t, "abc", got.ID)
		})
	}
}

func TestUpdateTodo(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		check      func(t *testing.T, p domain.Patch)
	}{
		{
			name:       "status only",
			body:       `{"status":"completed"}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, p domain.Patch) {
				require.NotNil(t, p.Status)
				assert.Equal(t, domain.StatusCompleted, *p.Status)
				assert.Nil(t, p.Title)
				assert.Nil(t, p.Description)
			},
		},
		{
			name:       "full edit buffer",
			body:       `{"id":"abc","title":"t","description":"d","status":"ongoing"}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, p domain.Patch) {
				require.NotNil(t, p.Title)
				assert.Equal(t, "t", *p.Title)
				assert.Equal(t, "d", *p.Description)
			},
		},
		{name: "unknown status", body: `{"status":"archived"}`, wantStatus: http.StatusBadRequest},
		{name: "missing", body: `{"title":"x"}`, err: domain.ErrNotFound, wantStatus: http.StatusNotFound},
		{
			name:       "store failure",
			body:       `{"title":"x"}`,
			err:        &domain.PersistenceError{Op: domain.OpWrite, Err: errors.New("locked")},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			_, app := newTestApp(t, &mockPort{
				updateFunc: func(ctx context.Context, id string, p domain.Patch) (*domain.Todo, error) {
					called = true
					if tt.err != nil {
						return nil, tt.err
					}
					if tt.check != nil {
						tt.check(t, p)
					}
					todo := sampleTodo(id, domain.StatusOngoing)
					p.Apply(todo)
					return todo, nil
				},
			})

			resp, body := doRequest(t, app, http.MethodPut, "/api/v1/todos/abc", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode, string(body))

			if tt.wantStatus == http.StatusBadRequest && tt.err == nil {
				assert.False(t, called, "invalid body must not reach the store")
			}
			if tt.wantStatus == http.StatusNotFound {
				assert.JSONEq(t, `{"message":"Todo not found"}`, string(body))
			}
		})
	}
}

func TestDeleteTodo(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{name: "deleted", wantStatus: http.StatusOK, wantBody: `{"message":"Todo deleted successfully"}`},
		{name: "missing", err: domain.ErrNotFound, wantStatus: http.StatusNotFound, wantBody: `{"message":"Todo not found"}`},
		{
			name:       "store failure",
			err:        &domain.PersistenceError{Op: domain.OpRead, Err: errors.New("timeout")},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"message":"timeout"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, app := newTestApp(t, &mockPort{
				deleteFunc: func(ctx context.Context, id string) error {
					return tt.err
				},
			})

			resp, body := doRequest(t, app, http.MethodDelete, "/api/v1/todos/abc", "")
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.JSONEq(t, tt.wantBody, string(body))
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(domain.ErrNotFound))
	assert.Equal(t, http.StatusBadRequest, statusFor(&domain.ValidationError{Message: "x"}))
	assert.Equal(t, http.StatusBadRequest, statusFor(&domain.PersistenceError{Op: domain.OpWrite, Err: errors.New("x")}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(&domain.PersistenceError{Op: domain.OpRead, Err: errors.New("x")}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("bus timeout")))
}

type stubHealth struct {
	status mono.HealthStatus
}

func (s stubHealth) Health(context.Context) mono.HealthStatus { return s.status }

func TestHealth(t *testing.T) {
	m, app := newTestApp(t, &mockPort{})
	m.AddHealthCheck("todo", stubHealth{status: mono.HealthStatus{Healthy: true, Message: "operational"}})

	resp, body := doRequest(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "todo-api", health.Service)

	m.AddHealthCheck("cache", stubHealth{status: mono.HealthStatus{Healthy: false, Message: "down"}})
	resp, _ = doRequest(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

type stubActivity []activity.Entry

func (s stubActivity) Recent(limit int) []activity.Entry {
	if limit > len(s) {
		limit = len(s)
	}
	return s[:limit]
}

func TestListActivity(t *testing.T) {
	m, app := newTestApp(t, &mockPort{})

	resp, body := doRequest(t, app, http.MethodGet, "/api/v1/activity", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	m.SetActivity(stubActivity{{TodoID: "1", Type: "todo_created"}, {TodoID: "2", Type: "todo_created"}})
	resp, body = doRequest(t, app, http.MethodGet, "/api/v1/activity?limit=1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var entries []activity.Entry
	require.NoError(t, json.Unmarshal(body, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "1", entries[0].TodoID)
}

func TestMiddleware_RequestIDAndMetrics(t *testing.T) {
	_, app := newTestApp(t, &mockPort{
		listFunc: func(ctx context.Context) ([]domain.Todo, error) { return nil, nil },
	})

	resp, _ := doRequest(t, app, http.MethodGet, "/api/v1/todos", "")
	assert.Len(t, resp.Header.Get(fiber.HeaderXRequestID), 21)

	resp, body := doRequest(t, app, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "todo_http_requests_total")
}

func TestStart_RequiresPort(t *testing.T) {
	m := NewModule(Config{Addr: ":0"}, &mockLogger{})
	assert.Error(t, m.Start(context.Background()))
}
