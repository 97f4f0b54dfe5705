package todo

import (
	"context"

	domain "github.com/example/todo-api/domain/todo"
)

// TodoPort is the interface driving adapters use to reach the todo core.
// Both the in-process Service and the bus adapter implement it.
type TodoPort interface {
	List(ctx context.Context) ([]domain.Todo, error)
	Get(ctx context.Context, id string) (*domain.Todo, error)
	Create(ctx context.Context, d domain.Draft) (*domain.Todo, error)
	Update(ctx context.Context, id string, p domain.Patch) (*domain.Todo, error)
	Delete(ctx context.Context, id string) error
}
