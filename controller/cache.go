package controller

import domain "github.com/example/todo-api/domain/todo"

// Cache is an immutable, ordered snapshot of the todos known to the client.
// Every mutation returns a new Cache and matches entries by id.
type Cache struct {
	todos []domain.Todo
}

// NewCache builds a cache holding a copy of todos.
func NewCache(todos []domain.Todo) Cache {
	return Cache{todos: clone(todos)}
}

// Todos returns a copy of the cached todos in order.
func (c Cache) Todos() []domain.Todo {
	return clone(c.todos)
}

// Len returns the number of cached todos.
func (c Cache) Len() int {
	return len(c.todos)
}

// Find returns the cached todo with the given id.
func (c Cache) Find(id string) (domain.Todo, bool) {
	if i := c.index(id); i >= 0 {
		return c.todos[i], true
	}
	return domain.Todo{}, false
}

// Replace discards the current contents in favour of list.
func (c Cache) Replace(list []domain.Todo) Cache {
	return NewCache(list)
}

// Upsert replaces the entry with t's id in place, or appends t when absent.
// A todo older than the cached entry (by UpdatedAt) is ignored.
func (c Cache) Upsert(t domain.Todo) Cache {
	i := c.index(t.ID)
	if i < 0 {
		next := make([]domain.Todo, len(c.todos), len(c.todos)+1)
		copy(next, c.todos)
		return Cache{todos: append(next, t)}
	}
	if t.UpdatedAt.Before(c.todos[i].UpdatedAt) {
		return c
	}
	next := clone(c.todos)
	next[i] = t
	return Cache{todos: next}
}

// ReplaceByID replaces the entry with t's id in place. It is a no-op when
// the id is absent or t is older than the cached entry (by UpdatedAt).
func (c Cache) ReplaceByID(t domain.Todo) Cache {
	i := c.index(t.ID)
	if i < 0 || t.UpdatedAt.Before(c.todos[i].UpdatedAt) {
		return c
	}
	next := clone(c.todos)
	next[i] = t
	return Cache{todos: next}
}

// Remove drops the entry with the given id. Removing an unknown id is a no-op.
func (c Cache) Remove(id string) Cache {
	i := c.index(id)
	if i < 0 {
		return c
	}
	next := make([]domain.Todo, 0, len(c.todos)-1)
	next = append(next, c.todos[:i]...)
	next = append(next, c.todos[i+1:]...)
	return Cache{todos: next}
}

// WithStatus returns the cached todos carrying status s, in order.
func (c Cache) WithStatus(s domain.Status) []domain.Todo {
	out := make([]domain.Todo, 0, len(c.todos))
	for _, t := range c.todos {
		if t.Status == s {
			out = append(out, t)
		}
	}
	return out
}

func (c Cache) index(id string) int {
	for i := range c.todos {
		if c.todos[i].ID == id {
			return i
		}
	}
	return -1
}

func clone(todos []domain.Todo) []domain.Todo {
	out := make([]domain.Todo, len(todos))
	copy(out, todos)
	return out
}
