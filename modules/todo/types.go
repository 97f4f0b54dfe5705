package todo

import (
	"errors"

	domain "github.com/example/todo-api/domain/todo"
)

// ErrorKind classifies a failure carried across the service bus.
type ErrorKind string

const (
	KindNotFound         ErrorKind = "not_found"
	KindValidation       ErrorKind = "validation"
	KindPersistenceRead  ErrorKind = "persistence_read"
	KindPersistenceWrite ErrorKind = "persistence_write"
	KindInternal         ErrorKind = "internal"
)

// ServiceError is the error half of every reply payload.
type ServiceError struct {
	Kind    ErrorKind `json:"kind"`
	Field   string    `json:"field,omitempty"`
	Message string    `json:"message"`
}

// newServiceError classifies err for transport. It returns nil for a nil error.
func newServiceError(err error) *ServiceError {
	if err == nil {
		return nil
	}

	if errors.Is(err, domain.ErrNotFound) {
		return &ServiceError{Kind: KindNotFound, Message: domain.ErrNotFound.Error()}
	}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return &ServiceError{Kind: KindValidation, Field: ve.Field, Message: ve.Message}
	}

	if op, ok := domain.PersistenceOp(err); ok {
		kind := KindPersistenceRead
		if op == domain.OpWrite {
			kind = KindPersistenceWrite
		}
		return &ServiceError{Kind: kind, Message: err.Error()}
	}

	return &ServiceError{Kind: KindInternal, Message: err.Error()}
}

// Err rebuilds the domain error on the calling side of the bus.
func (e *ServiceError) Err() error {
	if e == nil {
		return nil
	}

	switch e.Kind {
	case KindNotFound:
		return domain.ErrNotFound
	case KindValidation:
		return &domain.ValidationError{Field: e.Field, Message: e.Message}
	case KindPersistenceRead:
		return &domain.PersistenceError{Op: domain.OpRead, Err: errors.New(e.Message)}
	case KindPersistenceWrite:
		return &domain.PersistenceError{Op: domain.OpWrite, Err: errors.New(e.Message)}
	default:
		return errors.New(e.Message)
	}
}

// CreateRequest is the payload for services.todo.create.
type CreateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// GetRequest is the payload for services.todo.get.
type GetRequest struct {
	ID string `json:"id"`
}

// ListRequest is the payload for services.todo.list.
type ListRequest struct{}

// UpdateRequest is the payload for services.todo.update.
type UpdateRequest struct {
	ID    string       `json:"id"`
	Patch domain.Patch `json:"patch"`
}

// DeleteRequest is the payload for services.todo.delete.
type DeleteRequest struct {
	ID string `json:"id"`
}

// TodoResponse carries a single todo or an error.
type TodoResponse struct {
	Todo  *domain.Todo  `json:"todo,omitempty"`
	Error *ServiceError `json:"error,omitempty"`
}

// ListResponse carries every todo or an error.
type ListResponse struct {
	Todos []domain.Todo `json:"todos"`
	Error *ServiceError `json:"error,omitempty"`
}

// DeleteResponse reports a deletion.
type DeleteResponse struct {
	Deleted bool          `json:"deleted"`
	Error   *ServiceError `json:"error,omitempty"`
}
