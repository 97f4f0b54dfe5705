package todo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	kvjetstream "github.com/go-monolith/mono/plugin/kv-jetstream"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
)

const maxUpdateRetries = 5

// KVStore keeps todos as JSON documents in a JetStream KV bucket keyed by id.
type KVStore struct {
	bucket kvjetstream.KVStoragePort
}

var _ Store = (*KVStore)(nil)

// NewKVStore wraps a KV bucket.
func NewKVStore(bucket kvjetstream.KVStoragePort) *KVStore {
	return &KVStore{bucket: bucket}
}

// FindAll returns every todo, oldest first.
func (s *KVStore) FindAll(_ context.Context) ([]Todo, error) {
	todos := make([]Todo, 0)

	keys, err := s.bucket.Keys()
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) || errors.Is(err, kvjetstream.ErrKeyNotFound) {
			return todos, nil
		}
		return nil, readError("failed to list todos", err)
	}

	for _, key := range keys {
		t, err := s.get(key)
		if errors.Is(err, ErrNotFound) {
			// deleted between Keys and Get
			continue
		}
		if err != nil {
			return nil, err
		}
		todos = append(todos, *t)
	}

	sort.SliceStable(todos, func(i, j int) bool {
		return todos[i].CreatedAt.Before(todos[j].CreatedAt)
	})
	return todos, nil
}

// FindByID returns the todo stored under id.
func (s *KVStore) FindByID(_ context.Context, id string) (*Todo, error) {
	return s.get(id)
}

func (s *KVStore) get(id string) (*Todo, error) {
	data, err := s.bucket.Get(id)
	if err != nil {
		if errors.Is(err, kvjetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, readError("failed to get todo", err)
	}

	var t Todo
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, readError("failed to decode todo", err)
	}
	return &t, nil
}

// Insert stores a new todo. Create fails if the key already exists.
func (s *KVStore) Insert(_ context.Context, d Draft) (*Todo, error) {
	t := NewTodo(uuid.New().String(), d, time.Now().UTC())

	data, err := json.Marshal(t)
	if err != nil {
		return nil, writeError("failed to encode todo", err)
	}
	if _, err := s.bucket.Create(t.ID, data, 0); err != nil {
		return nil, writeError("failed to create todo", err)
	}
	return t, nil
}

// UpdateByID applies p using a revision check, retrying on concurrent writes.
func (s *KVStore) UpdateByID(_ context.Context, id string, p Patch) (*Todo, error) {
	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		entry, err := s.bucket.GetEntry(id)
		if err != nil {
			if errors.Is(err, kvjetstream.ErrKeyNotFound) {
				return nil, ErrNotFound
			}
			return nil, writeError("failed to get todo", err)
		}

		var t Todo
		if err := json.Unmarshal(entry.Value, &t); err != nil {
			return nil, writeError("failed to decode todo", err)
		}

		p.Apply(&t)
		t.UpdatedAt = time.Now().UTC()

		data, err := json.Marshal(t)
		if err != nil {
			return nil, writeError("failed to encode todo", err)
		}

		_, err = s.bucket.Update(id, data, 0, entry.Revision)
		if err == nil {
			return &t, nil
		}
		if !errors.Is(err, kvjetstream.ErrRevisionMismatch) {
			return nil, writeError("failed to update todo", err)
		}
	}
	return nil, writeError("failed to update todo", fmt.Errorf("revision changed %d times", maxUpdateRetries))
}

// DeleteByID removes the todo.
func (s *KVStore) DeleteByID(_ context.Context, id string) error {
	if _, err := s.bucket.Get(id); err != nil {
		if errors.Is(err, kvjetstream.ErrKeyNotFound) {
			return ErrNotFound
		}
		return readError("failed to get todo", err)
	}
	if err := s.bucket.Delete(id); err != nil {
		return readError("failed to delete todo", err)
	}
	return nil
}

// Ping reads a sentinel key; a miss means the bucket answered.
func (s *KVStore) Ping(_ context.Context) error {
	_, err := s.bucket.Get("__health_check__")
	if err != nil && !errors.Is(err, kvjetstream.ErrKeyNotFound) {
		return fmt.Errorf("kv bucket unavailable: %w", err)
	}
	return nil
}

// Close is a no-op; the plugin owns the connection.
func (s *KVStore) Close(_ context.Context) error {
	return nil
}
