package todo

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/todo-api/domain/todo"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// todoAdapter implements TodoPort over the todo module's request-reply services.
type todoAdapter struct {
	container mono.ServiceContainer
}

// NewTodoAdapter creates an adapter from the container received via
// SetDependencyServiceContainer.
func NewTodoAdapter(container mono.ServiceContainer) TodoPort {
	if container == nil {
		panic("todo adapter requires non-nil ServiceContainer")
	}
	return &todoAdapter{container: container}
}

// List fetches every todo via services.todo.list.
func (a *todoAdapter) List(ctx context.Context) ([]domain.Todo, error) {
	req := ListRequest{}
	var resp ListResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"list",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("list service call failed: %w", err)
	}
	if resp.Error != nil {
		return nil, resp.Error.Err()
	}
	if resp.Todos == nil {
		resp.Todos = []domain.Todo{}
	}
	return resp.Todos, nil
}

// Get fetches one todo via services.todo.get.
func (a *todoAdapter) Get(ctx context.Context, id string) (*domain.Todo, error) {
	req := GetRequest{ID: id}
	var resp TodoResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"get",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("get service call failed: %w", err)
	}
	return unwrapTodo(resp)
}

// Create inserts a todo via services.todo.create.
func (a *todoAdapter) Create(ctx context.Context, d domain.Draft) (*domain.Todo, error) {
	req := CreateRequest{Title: d.Title, Description: d.Description}
	var resp TodoResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"create",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("create service call failed: %w", err)
	}
	return unwrapTodo(resp)
}

// Update patches a todo via services.todo.update.
func (a *todoAdapter) Update(ctx context.Context, id string, p domain.Patch) (*domain.Todo, error) {
	req := UpdateRequest{ID: id, Patch: p}
	var resp TodoResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"update",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("update service call failed: %w", err)
	}
	return unwrapTodo(resp)
}

// Delete removes a todo via services.todo.delete.
func (a *todoAdapter) Delete(ctx context.Context, id string) error {
	req := DeleteRequest{ID: id}
	var resp DeleteResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"delete",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return fmt.Errorf("delete service call failed: %w", err)
	}
	if resp.Error != nil {
		return resp.Error.Err()
	}
	if !resp.Deleted {
		return fmt.Errorf("todo not deleted: %s", id)
	}
	return nil
}

func unwrapTodo(resp TodoResponse) (*domain.Todo, error) {
	if resp.Error != nil {
		return nil, resp.Error.Err()
	}
	if resp.Todo == nil {
		return nil, fmt.Errorf("empty todo reply")
	}
	return resp.Todo, nil
}
