package todo

import (
	"context"
	"sort"
	"sync"
	"time"

	domain "github.com/example/todo-api/domain/todo"
	"github.com/example/todo-api/events"
	"github.com/example/todo-api/modules/cache"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"golang.org/x/sync/singleflight"
)

const listCacheKey = "list"

func cacheKeyByID(id string) string {
	return "id:" + id
}

// Service implements the todo operations over a Store with read-through caching.
type Service struct {
	store    domain.Store
	cache    cache.CacheService
	eventBus mono.EventBus
	logger   types.Logger
	sfGroup  singleflight.Group

	// genMu orders cache fills against invalidations. A fill only lands when
	// the key's generation is unchanged since its store read began.
	genMu sync.Mutex
	gens  map[string]uint64
}

// fill is a store read tagged with the generation it started under.
type fill struct {
	val any
	gen uint64
}

var _ TodoPort = (*Service)(nil)

// NewService creates a todo service. eventBus may be nil.
func NewService(store domain.Store, c cache.CacheService, eventBus mono.EventBus, logger types.Logger) *Service {
	if c == nil {
		c = cache.Disabled()
	}
	return &Service{
		store:    store,
		cache:    c,
		eventBus: eventBus,
		logger:   logger,
		gens:     make(map[string]uint64),
	}
}

// List returns every todo.
func (s *Service) List(ctx context.Context) ([]domain.Todo, error) {
	var cached []domain.Todo
	found, err := s.cache.Get(ctx, listCacheKey, &cached)
	if err != nil {
		s.logger.Warn("Cache read failed", "key", listCacheKey, "error", err)
	}
	if found {
		return cached, nil
	}

	val, err, _ := s.sfGroup.Do(listCacheKey, func() (any, error) {
		gen := s.generation(listCacheKey)
		todos, err := s.store.FindAll(ctx)
		return fill{val: todos, gen: gen}, err
	})
	if err != nil {
		return nil, err
	}
	f := val.(fill)
	todos := f.val.([]domain.Todo)

	s.fillCache(ctx, listCacheKey, f.gen, todos)
	return todos, nil
}

// Get returns the todo with the given id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Todo, error) {
	key := cacheKeyByID(id)

	var cached domain.Todo
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("Cache read failed", "key", key, "error", err)
	}
	if found {
		return &cached, nil
	}

	val, err, _ := s.sfGroup.Do(key, func() (any, error) {
		gen := s.generation(key)
		t, err := s.store.FindByID(ctx, id)
		return fill{val: t, gen: gen}, err
	})
	if err != nil {
		return nil, err
	}
	f := val.(fill)
	t := *f.val.(*domain.Todo)

	s.fillCache(ctx, key, f.gen, t)
	return &t, nil
}

// Create inserts a new todo with status ongoing.
func (s *Service) Create(ctx context.Context, d domain.Draft) (*domain.Todo, error) {
	t, err := s.store.Insert(ctx, d)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, "")
	s.logger.Info("Todo created", "id", t.ID)

	s.publish(func(bus mono.EventBus) error {
		return events.TodoCreatedV1.Publish(bus, events.TodoCreatedEvent{
			TodoID:    t.ID,
			Title:     t.Title,
			Status:    string(t.Status),
			CreatedAt: t.CreatedAt,
		}, nil)
	})
	return t, nil
}

// Update applies p to the todo and returns the stored result.
func (s *Service) Update(ctx context.Context, id string, p domain.Patch) (*domain.Todo, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	t, err := s.store.UpdateByID(ctx, id, p)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	s.logger.Info("Todo updated", "id", id, "status", t.Status)

	s.publish(func(bus mono.EventBus) error {
		return events.TodoUpdatedV1.Publish(bus, events.TodoUpdatedEvent{
			TodoID:    t.ID,
			Title:     t.Title,
			Status:    string(t.Status),
			Fields:    patchFields(p),
			UpdatedAt: t.UpdatedAt,
		}, nil)
	})
	return t, nil
}

// Delete removes the todo permanently.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteByID(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx, id)
	s.logger.Info("Todo deleted", "id", id)

	s.publish(func(bus mono.EventBus) error {
		return events.TodoDeletedV1.Publish(bus, events.TodoDeletedEvent{
			TodoID:    id,
			DeletedAt: time.Now().UTC(),
		}, nil)
	})
	return nil
}

func (s *Service) generation(key string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[key]
}

// fillCache stores value under key unless key was invalidated after gen was read.
func (s *Service) fillCache(ctx context.Context, key string, gen uint64, value any) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.gens[key] != gen {
		s.logger.Debug("Skipping cache fill after invalidation", "key", key)
		return
	}
	if err := s.cache.Set(ctx, key, value); err != nil {
		s.logger.Warn("Cache write failed", "key", key, "error", err)
	}
}

// bump advances the generation of keys and forgets their in-flight reads.
func (s *Service) bump(keys ...string) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	for _, key := range keys {
		s.gens[key]++
		s.sfGroup.Forget(key)
	}
}

// invalidate drops the list entry and, when id is set, the entry for id.
func (s *Service) invalidate(ctx context.Context, id string) {
	if id != "" {
		s.bump(listCacheKey, cacheKeyByID(id))
	} else {
		s.bump(listCacheKey)
	}

	if id != "" {
		if err := s.cache.Delete(ctx, cacheKeyByID(id)); err != nil {
			s.logger.Warn("Cache invalidation failed", "id", id, "error", err)
		}
	}
	if err := s.cache.DeletePattern(ctx, listCacheKey+"*"); err != nil {
		s.logger.Warn("Cache invalidation failed", "key", listCacheKey, "error", err)
	}
}

func (s *Service) publish(fn func(mono.EventBus) error) {
	if s.eventBus == nil {
		return
	}
	if err := fn(s.eventBus); err != nil {
		s.logger.Warn("Failed to publish todo event", "error", err)
	}
}

func patchFields(p domain.Patch) []string {
	fields := make([]string, 0, 3)
	for name := range p.Fields() {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields
}

// Ping checks the underlying store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// CacheStats exposes the cache counters for health reporting.
func (s *Service) CacheStats() cache.StatsSnapshot {
	return s.cache.Stats()
}
