package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/example/todo-api/controller"
	domain "github.com/example/todo-api/domain/todo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryAPI is an in-memory controller.API.
type memoryAPI struct {
	mu     sync.Mutex
	todos  []domain.Todo
	nextID int
	failOn string
}

var errUnavailable = errors.New("service unavailable")

func (a *memoryAPI) List(context.Context) ([]domain.Todo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failOn == "list" {
		return nil, errUnavailable
	}
	return append([]domain.Todo(nil), a.todos...), nil
}

func (a *memoryAPI) Create(_ context.Context, d domain.Draft) (*domain.Todo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failOn == "create" {
		return nil, errUnavailable
	}
	a.nextID++
	t := domain.NewTodo(fmt.Sprintf("id-%d", a.nextID), d, time.Now())
	a.todos = append(a.todos, *t)
	return t, nil
}

func (a *memoryAPI) Replace(_ context.Context, t domain.Todo) (*domain.Todo, error) {
	return a.update(t.ID, func(cur *domain.Todo) {
		cur.Title = t.Title
		cur.Description = t.Description
		cur.Status = t.Status
	})
}

func (a *memoryAPI) Complete(_ context.Context, id string) (*domain.Todo, error) {
	return a.update(id, func(cur *domain.Todo) { cur.Status = domain.StatusCompleted })
}

func (a *memoryAPI) update(id string, fn func(*domain.Todo)) (*domain.Todo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.todos {
		if a.todos[i].ID == id {
			fn(&a.todos[i])
			a.todos[i].UpdatedAt = time.Now()
			t := a.todos[i]
			return &t, nil
		}
	}
	return nil, errors.New("Todo not found")
}

func (a *memoryAPI) Delete(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.todos {
		if a.todos[i].ID == id {
			a.todos = append(a.todos[:i], a.todos[i+1:]...)
			return nil
		}
	}
	return errors.New("Todo not found")
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
	space = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
)

func send(t *testing.T, m tea.Model, msg tea.Msg) (tea.Model, tea.Cmd) {
	t.Helper()
	return m.Update(msg)
}

// exec runs a controller command and feeds its result back into the model.
func exec(t *testing.T, m tea.Model, cmd tea.Cmd) tea.Model {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	_, ok := msg.(resultMsg)
	require.True(t, ok, "expected resultMsg, got %T", msg)
	next, _ := m.Update(msg)
	return next
}

func newTestModel(t *testing.T, api *memoryAPI) (tea.Model, *controller.Controller) {
	t.Helper()
	ctrl := controller.New(api, log.New(io.Discard))
	m := New(ctrl, time.Second)
	return exec(t, m, m.Init()), ctrl
}

func TestModel_AddCompleteDelete(t *testing.T) {
	api := &memoryAPI{}
	m, ctrl := newTestModel(t, api)

	m, _ = send(t, m, runes("a"))
	assert.Equal(t, modeCreate, m.(Model).mode)

	m, _ = send(t, m, runes("Buy milk"))
	m, cmd := send(t, m, enter)
	m = exec(t, m, cmd)

	require.Len(t, ctrl.Ongoing(), 1)
	assert.Equal(t, "Buy milk", ctrl.Ongoing()[0].Title)
	assert.Equal(t, modeBrowse, m.(Model).mode)
	assert.Contains(t, m.View(), "Buy milk")

	m, cmd = send(t, m, space)
	m = exec(t, m, cmd)
	assert.Empty(t, ctrl.Ongoing())
	require.Len(t, ctrl.Completed(), 1)

	m, _ = send(t, m, runes("d"))
	assert.Equal(t, modeConfirmDelete, m.(Model).mode)
	assert.Contains(t, m.View(), `Delete "Buy milk"?`)

	m, cmd = send(t, m, runes("y"))
	m = exec(t, m, cmd)
	assert.Equal(t, 0, ctrl.Snapshot().Len())
	assert.Equal(t, modeBrowse, m.(Model).mode)
	assert.Empty(t, api.todos)
}

func TestModel_Edit(t *testing.T) {
	api := &memoryAPI{todos: []domain.Todo{*domain.NewTodo("x", domain.Draft{Title: "Draft"}, time.Now().Add(-time.Minute))}}
	m, ctrl := newTestModel(t, api)

	m, _ = send(t, m, runes("e"))
	require.Equal(t, modeEdit, m.(Model).mode)

	m, _ = send(t, m, runes(" v2"))
	m, cmd := send(t, m, enter)
	m = exec(t, m, cmd)

	got, ok := ctrl.Snapshot().Find("x")
	require.True(t, ok)
	assert.Equal(t, "Draft v2", got.Title)
	assert.Equal(t, modeBrowse, m.(Model).mode)
}

func TestModel_CancelFormsAndDelete(t *testing.T) {
	api := &memoryAPI{todos: []domain.Todo{*domain.NewTodo("x", domain.Draft{Title: "Keep"}, time.Now())}}
	m, ctrl := newTestModel(t, api)

	m, _ = send(t, m, runes("a"))
	m, _ = send(t, m, runes("abandoned"))
	m, _ = send(t, m, esc)
	assert.Equal(t, modeBrowse, m.(Model).mode)
	_, open := ctrl.CreateForm()
	assert.False(t, open)

	m, _ = send(t, m, runes("d"))
	m, _ = send(t, m, runes("n"))
	assert.Equal(t, modeBrowse, m.(Model).mode)
	_, staged := ctrl.PendingDelete()
	assert.False(t, staged)
	assert.Equal(t, 1, ctrl.Snapshot().Len())
}

func TestModel_FailedCreateKeepsFormWithoutErrorText(t *testing.T) {
	api := &memoryAPI{}
	m, ctrl := newTestModel(t, api)

	api.failOn = "create"
	m, _ = send(t, m, runes("a"))
	m, _ = send(t, m, runes("x"))
	m, cmd := send(t, m, enter)
	m = exec(t, m, cmd)

	assert.Equal(t, modeCreate, m.(Model).mode)
	assert.Empty(t, m.(Model).status)
	assert.False(t, strings.Contains(m.View(), errUnavailable.Error()))
	assert.Equal(t, 0, ctrl.Snapshot().Len())

	draft, open := ctrl.CreateForm()
	assert.True(t, open)
	assert.Equal(t, "x", draft.Title)
}

func TestModel_Quit(t *testing.T) {
	m, _ := newTestModel(t, &memoryAPI{})

	_, cmd := send(t, m, runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
