package activity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/example/todo-api/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// DefaultCapacity bounds how many entries the log keeps.
const DefaultCapacity = 500

// Entry is one recorded todo lifecycle event.
type Entry struct {
	TodoID    string    `json:"todo_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Module subscribes to todo events and keeps a bounded activity log.
type Module struct {
	entries  []Entry
	capacity int
	mu       sync.RWMutex
	logger   types.Logger
}

var (
	_ mono.Module              = (*Module)(nil)
	_ mono.EventConsumerModule = (*Module)(nil)
)

// NewModule creates an activity module holding up to capacity entries.
func NewModule(capacity int, logger types.Logger) *Module {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Module{
		entries:  make([]Entry, 0, capacity),
		capacity: capacity,
		logger:   logger,
	}
}

func (m *Module) Name() string {
	return "activity"
}

func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.TodoCreatedV1, m.handleTodoCreated, m); err != nil {
		return fmt.Errorf("failed to register TodoCreated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.TodoUpdatedV1, m.handleTodoUpdated, m); err != nil {
		return fmt.Errorf("failed to register TodoUpdated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.TodoDeletedV1, m.handleTodoDeleted, m); err != nil {
		return fmt.Errorf("failed to register TodoDeleted consumer: %w", err)
	}

	m.logger.Info("Registered event consumers", "events", "TodoCreated, TodoUpdated, TodoDeleted")
	return nil
}

func (m *Module) handleTodoCreated(_ context.Context, event events.TodoCreatedEvent, _ *mono.Msg) error {
	m.record(event.TodoID, "todo_created", fmt.Sprintf("Todo '%s' created", event.Title), event.CreatedAt)
	return nil
}

func (m *Module) handleTodoUpdated(_ context.Context, event events.TodoUpdatedEvent, _ *mono.Msg) error {
	msg := fmt.Sprintf("Todo '%s' updated (%s), status %s", event.Title, strings.Join(event.Fields, ", "), event.Status)
	if event.Status == "completed" && len(event.Fields) == 1 && event.Fields[0] == "status" {
		msg = fmt.Sprintf("Todo '%s' completed", event.Title)
	}
	m.record(event.TodoID, "todo_updated", msg, event.UpdatedAt)
	return nil
}

func (m *Module) handleTodoDeleted(_ context.Context, event events.TodoDeletedEvent, _ *mono.Msg) error {
	m.record(event.TodoID, "todo_deleted", fmt.Sprintf("Todo %s deleted", event.TodoID), event.DeletedAt)
	return nil
}

func (m *Module) record(id, entryType, message string, at time.Time) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) == m.capacity {
		copy(m.entries, m.entries[1:])
		m.entries = m.entries[:len(m.entries)-1]
	}
	m.entries = append(m.entries, Entry{
		TodoID:    id,
		Type:      entryType,
		Message:   message,
		Timestamp: at,
	})

	m.logger.Debug("Activity recorded", "todo_id", id, "type", entryType)
}

// Recent returns up to limit entries, newest first. A non-positive limit returns all.
func (m *Module) Recent(limit int) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.entries)
	if limit <= 0 || limit > n {
		limit = n
	}

	result := make([]Entry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		result = append(result, m.entries[i])
	}
	return result
}

func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Activity module started, listening for todo events")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Activity module stopped")
	return nil
}
