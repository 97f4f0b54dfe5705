package todo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/example/todo-api/domain/todo"
	"github.com/example/todo-api/events"
	"github.com/example/todo-api/modules/cache"
	"github.com/go-monolith/mono"
	kvjetstream "github.com/go-monolith/mono/plugin/kv-jetstream"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Store backends selectable through Config.Backend.
const (
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
	BackendKV     = "kv"
)

// KVBucket is the bucket the kv backend reads from the kv plugin.
const KVBucket = "todos"

// Config selects and configures the store backend.
type Config struct {
	Backend         string
	DBPath          string
	DBDebug         bool
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
}

// Module provides todo services (core domain).
type Module struct {
	config   Config
	store    domain.Store
	service  *Service
	kv       *kvjetstream.PluginModule
	cache    *cache.PluginModule
	eventBus mono.EventBus
	logger   types.Logger
}

var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.UsePluginModule       = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new todo module.
func NewModule(config Config, logger types.Logger) *Module {
	return &Module{
		config: config,
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "todo"
}

// SetPlugin receives the cache and kv plugins from the framework.
func (m *Module) SetPlugin(alias string, plugin mono.PluginModule) {
	switch alias {
	case "cache":
		cachePlugin, ok := plugin.(*cache.PluginModule)
		if !ok {
			m.logger.Error("Invalid plugin type for cache", "alias", alias)
			return
		}
		m.cache = cachePlugin
	case "kv":
		kv, ok := plugin.(*kvjetstream.PluginModule)
		if !ok {
			m.logger.Error("Invalid plugin type for kv",
				"alias", alias,
				"expected", "*kvjetstream.PluginModule")
			return
		}
		m.kv = kv
	}
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module publishes.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.TodoCreatedV1.ToBase(),
		events.TodoUpdatedV1.ToBase(),
		events.TodoDeletedV1.ToBase(),
	}
}

// RegisterServices registers request-reply services.
// The framework prefixes names, so "create" becomes "services.todo.create".
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "create", json.Unmarshal, json.Marshal, m.handleCreate,
	); err != nil {
		return fmt.Errorf("failed to register create service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "get", json.Unmarshal, json.Marshal, m.handleGet,
	); err != nil {
		return fmt.Errorf("failed to register get service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "list", json.Unmarshal, json.Marshal, m.handleList,
	); err != nil {
		return fmt.Errorf("failed to register list service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "update", json.Unmarshal, json.Marshal, m.handleUpdate,
	); err != nil {
		return fmt.Errorf("failed to register update service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "delete", json.Unmarshal, json.Marshal, m.handleDelete,
	); err != nil {
		return fmt.Errorf("failed to register delete service: %w", err)
	}

	m.logger.Info("Registered services", "services", "services.todo.{create,get,list,update,delete}")
	return nil
}

// Start opens the configured store and builds the service.
func (m *Module) Start(ctx context.Context) error {
	store, err := m.openStore(ctx)
	if err != nil {
		return err
	}
	m.store = store

	var c cache.CacheService
	if m.cache != nil {
		c = m.cache.Port()
	}
	if c == nil {
		m.logger.Warn("Cache plugin not set, caching disabled")
		c = cache.Disabled()
	}

	if m.eventBus == nil {
		m.logger.Warn("EventBus not set, events will not be published")
	}

	m.service = NewService(store, c, m.eventBus, m.logger)
	m.logger.Info("Todo module started", "backend", m.config.Backend)
	return nil
}

func (m *Module) openStore(ctx context.Context) (domain.Store, error) {
	switch m.config.Backend {
	case BackendSQLite, "":
		store, err := domain.OpenSQLite(m.config.DBPath, m.config.DBDebug)
		if err != nil {
			return nil, err
		}
		m.logger.Info("Connected to SQLite database", "path", m.config.DBPath)
		return store, nil

	case BackendMongo:
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		store, err := domain.ConnectMongo(dialCtx, m.config.MongoURI, m.config.MongoDatabase, m.config.MongoCollection)
		if err != nil {
			return nil, err
		}
		m.logger.Info("Connected to MongoDB",
			"database", m.config.MongoDatabase,
			"collection", m.config.MongoCollection)
		return store, nil

	case BackendKV:
		if m.kv == nil {
			return nil, fmt.Errorf("required plugin 'kv' not registered")
		}
		bucket := m.kv.Bucket(KVBucket)
		if bucket == nil {
			return nil, fmt.Errorf("bucket '%s' not found in KV plugin", KVBucket)
		}
		return domain.NewKVStore(bucket), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", m.config.Backend)
	}
}

// Stop closes the store.
func (m *Module) Stop(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	if err := m.store.Close(ctx); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	m.logger.Info("Todo module stopped")
	return nil
}

// Health pings the store and reports cache counters.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.service == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "store not initialized",
		}
	}

	if err := m.service.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: err.Error(),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"backend": m.config.Backend,
			"cache":   m.service.CacheStats(),
		},
	}
}

func (m *Module) handleCreate(ctx context.Context, req CreateRequest, _ *mono.Msg) (TodoResponse, error) {
	t, err := m.service.Create(ctx, domain.Draft{Title: req.Title, Description: req.Description})
	return TodoResponse{Todo: t, Error: newServiceError(err)}, nil
}

func (m *Module) handleGet(ctx context.Context, req GetRequest, _ *mono.Msg) (TodoResponse, error) {
	t, err := m.service.Get(ctx, req.ID)
	return TodoResponse{Todo: t, Error: newServiceError(err)}, nil
}

func (m *Module) handleList(ctx context.Context, _ ListRequest, _ *mono.Msg) (ListResponse, error) {
	todos, err := m.service.List(ctx)
	return ListResponse{Todos: todos, Error: newServiceError(err)}, nil
}

func (m *Module) handleUpdate(ctx context.Context, req UpdateRequest, _ *mono.Msg) (TodoResponse, error) {
	t, err := m.service.Update(ctx, req.ID, req.Patch)
	return TodoResponse{Todo: t, Error: newServiceError(err)}, nil
}

func (m *Module) handleDelete(ctx context.Context, req DeleteRequest, _ *mono.Msg) (DeleteResponse, error) {
	err := m.service.Delete(ctx, req.ID)
	return DeleteResponse{Deleted: err == nil, Error: newServiceError(err)}, nil
}
