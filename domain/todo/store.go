package todo

import "context"

// Store is the document collection holding todos.
//
// Implementations return ErrNotFound when the id matches nothing and wrap
// every other failure in a PersistenceError.
type Store interface {
	FindAll(ctx context.Context) ([]Todo, error)
	FindByID(ctx context.Context, id string) (*Todo, error)
	Insert(ctx context.Context, d Draft) (*Todo, error)
	UpdateByID(ctx context.Context, id string, p Patch) (*Todo, error)
	DeleteByID(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
