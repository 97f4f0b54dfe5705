// Package controller holds the client-side state of the todo UI and
// reconciles it with responses from the REST API.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/example/todo-api/client"
	domain "github.com/example/todo-api/domain/todo"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNoEdit is returned by SubmitEdit when no edit form is open.
	ErrNoEdit = errors.New("no todo is being edited")

	// ErrNoStagedDelete is returned by ConfirmDelete when nothing is staged.
	ErrNoStagedDelete = errors.New("no todo is staged for deletion")

	// ErrUnknownTodo is returned when an id is not in the local list.
	ErrUnknownTodo = errors.New("todo not in local list")
)

// API is the subset of the REST client the controller drives.
type API interface {
	List(ctx context.Context) ([]domain.Todo, error)
	Create(ctx context.Context, d domain.Draft) (*domain.Todo, error)
	Replace(ctx context.Context, t domain.Todo) (*domain.Todo, error)
	Complete(ctx context.Context, id string) (*domain.Todo, error)
	Delete(ctx context.Context, id string) error
}

// Logger receives failures. *log.Logger from charmbracelet/log satisfies it.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}

// Field names a form input.
type Field string

const (
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldStatus      Field = "status"
)

// Controller owns the local todo list and the create, edit and delete forms.
// The local list changes only after the server confirms an operation.
// Methods are safe for concurrent use; no lock is held during network calls.
type Controller struct {
	api    API
	logger Logger

	mu         sync.Mutex
	cache      Cache
	createOpen bool
	createBuf  domain.Draft
	editOpen   bool
	editBuf    domain.Todo
	deleteID   string

	toggles singleflight.Group
}

// New creates a controller with an empty local list.
func New(api API, logger Logger) *Controller {
	return &Controller{
		api:    api,
		logger: logger,
	}
}

// Mount loads the full list from the server and replaces the local list.
func (c *Controller) Mount(ctx context.Context) error {
	todos, err := c.api.List(ctx)
	if err != nil {
		c.logger.Error("failed to load todos", "err", err)
		return err
	}

	c.mu.Lock()
	c.cache = c.cache.Replace(todos)
	c.mu.Unlock()

	c.logger.Debug("todos loaded", "count", len(todos))
	return nil
}

// Snapshot returns the current local list.
func (c *Controller) Snapshot() Cache {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache
}

// Ongoing returns the todos with status ongoing.
func (c *Controller) Ongoing() []domain.Todo {
	return c.Snapshot().WithStatus(domain.StatusOngoing)
}

// Completed returns the todos with status completed.
func (c *Controller) Completed() []domain.Todo {
	return c.Snapshot().WithStatus(domain.StatusCompleted)
}

// OpenCreate shows the create form.
func (c *Controller) OpenCreate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.createOpen = true
}

// CloseCreate hides the create form and clears its buffer.
func (c *Controller) CloseCreate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.createOpen = false
	c.createBuf = domain.Draft{}
}

// CreateForm returns the create buffer and whether the form is open.
func (c *Controller) CreateForm() (domain.Draft, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createBuf, c.createOpen
}

// SetCreateField writes one field of the create buffer.
func (c *Controller) SetCreateField(field Field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch field {
	case FieldTitle:
		c.createBuf.Title = value
	case FieldDescription:
		c.createBuf.Description = value
	default:
		return fmt.Errorf("field %q is not part of the create form", field)
	}
	return nil
}

// SubmitCreate sends the create buffer. On success the returned todo is
// appended, the buffer cleared and the form closed.
func (c *Controller) SubmitCreate(ctx context.Context) error {
	c.mu.Lock()
	draft := c.createBuf
	c.mu.Unlock()

	created, err := c.api.Create(ctx, draft)
	if err != nil {
		c.logger.Error("failed to create todo", "title", draft.Title, "err", err)
		return err
	}

	c.mu.Lock()
	c.cache = c.cache.Upsert(*created)
	c.createBuf = domain.Draft{}
	c.createOpen = false
	c.mu.Unlock()
	return nil
}

// ToggleComplete marks a todo completed. Concurrent calls for the same id
// share one request.
func (c *Controller) ToggleComplete(ctx context.Context, id string) error {
	v, err, shared := c.toggles.Do(id, func() (any, error) {
		return c.api.Complete(ctx, id)
	})
	if err != nil {
		c.logger.Error("failed to complete todo", "id", id, "err", err)
		c.forgetIfGone(id, err)
		return err
	}
	if shared {
		c.logger.Debug("completion request shared", "id", id)
	}

	updated := v.(*domain.Todo)
	c.mu.Lock()
	c.cache = c.cache.ReplaceByID(*updated)
	c.mu.Unlock()
	return nil
}

// OpenEdit opens the edit form seeded with the local copy of the todo.
func (c *Controller) OpenEdit(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.cache.Find(id)
	if !ok {
		return fmt.Errorf("edit %s: %w", id, ErrUnknownTodo)
	}
	c.editBuf = t
	c.editOpen = true
	return nil
}

// CloseEdit hides the edit form and clears its buffer.
func (c *Controller) CloseEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.editOpen = false
	c.editBuf = domain.Todo{}
}

// EditForm returns the edit buffer and whether the form is open.
func (c *Controller) EditForm() (domain.Todo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editBuf, c.editOpen
}

// SetEditField writes one field of the edit buffer.
func (c *Controller) SetEditField(field Field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch field {
	case FieldTitle:
		c.editBuf.Title = value
	case FieldDescription:
		c.editBuf.Description = value
	case FieldStatus:
		c.editBuf.Status = domain.Status(value)
	default:
		return fmt.Errorf("field %q is not part of the edit form", field)
	}
	return nil
}

// SubmitEdit sends the whole edit buffer, id included. On success the entry
// is replaced, the buffer cleared and the form closed.
func (c *Controller) SubmitEdit(ctx context.Context) error {
	c.mu.Lock()
	buf, open := c.editBuf, c.editOpen
	c.mu.Unlock()
	if !open {
		return ErrNoEdit
	}

	updated, err := c.api.Replace(ctx, buf)
	if err != nil {
		c.logger.Error("failed to update todo", "id", buf.ID, "err", err)
		c.forgetIfGone(buf.ID, err)
		return err
	}

	c.mu.Lock()
	c.cache = c.cache.ReplaceByID(*updated)
	c.editBuf = domain.Todo{}
	c.editOpen = false
	c.mu.Unlock()
	return nil
}

// StageDelete opens the delete confirmation for id.
func (c *Controller) StageDelete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteID = id
}

// CancelDelete closes the delete confirmation.
func (c *Controller) CancelDelete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteID = ""
}

// PendingDelete returns the staged id, if any.
func (c *Controller) PendingDelete() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleteID, c.deleteID != ""
}

// ConfirmDelete deletes the staged todo. On success the entry is removed and
// the confirmation closed.
func (c *Controller) ConfirmDelete(ctx context.Context) error {
	id, ok := c.PendingDelete()
	if !ok {
		return ErrNoStagedDelete
	}

	if err := c.api.Delete(ctx, id); err != nil {
		c.logger.Error("failed to delete todo", "id", id, "err", err)
		c.forgetIfGone(id, err)
		return err
	}

	c.mu.Lock()
	c.cache = c.cache.Remove(id)
	if c.deleteID == id {
		c.deleteID = ""
	}
	c.mu.Unlock()
	return nil
}

// forgetIfGone drops id from the local list, and closes any form targeting
// it, when err says the server no longer has it.
func (c *Controller) forgetIfGone(id string, err error) {
	if !client.IsNotFound(err) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = c.cache.Remove(id)
	if c.editOpen && c.editBuf.ID == id {
		c.editOpen = false
		c.editBuf = domain.Todo{}
	}
	if c.deleteID == id {
		c.deleteID = ""
	}
	c.logger.Debug("todo gone on server, dropped locally", "id", id)
}
