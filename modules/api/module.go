package api

import (
	"context"
	"fmt"
	"time"

	"github.com/example/todo-api/modules/activity"
	"github.com/example/todo-api/modules/todo"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jaevor/go-nanoid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds the HTTP server settings.
type Config struct {
	Addr           string
	AllowedOrigins string
	AccessLog      bool
}

// ActivityReader is the read side of the activity log.
type ActivityReader interface {
	Recent(limit int) []activity.Entry
}

// HealthChecker reports the health of a component included in GET /health.
type HealthChecker interface {
	Health(ctx context.Context) mono.HealthStatus
}

// Module is the driving adapter exposing the todo REST API over Fiber.
// It reaches the todo core through TodoPort.
type Module struct {
	config   Config
	app      *fiber.App
	port     todo.TodoPort
	activity ActivityReader
	checks   map[string]HealthChecker
	logger   types.Logger
}

var (
	_ mono.Module                = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new API module.
func NewModule(config Config, logger types.Logger) *Module {
	return &Module{
		config: config,
		checks: make(map[string]HealthChecker),
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"todo"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "todo" {
		m.port = todo.NewTodoAdapter(container)
	}
}

// SetActivity attaches the activity log served at /api/v1/activity.
func (m *Module) SetActivity(reader ActivityReader) {
	m.activity = reader
}

// AddHealthCheck includes another module in GET /health.
func (m *Module) AddHealthCheck(name string, module HealthChecker) {
	m.checks[name] = module
}

// Start builds the Fiber app and starts listening.
func (m *Module) Start(_ context.Context) error {
	if m.port == nil {
		return fmt.Errorf("todo dependency not set")
	}

	app, err := m.newApp()
	if err != nil {
		return err
	}
	m.app = app

	// Wait briefly to catch immediate startup errors (port in use, permission denied)
	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(m.config.Addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	m.logger.Info("HTTP server started", "addr", m.config.Addr)
	return nil
}

// newApp assembles middleware and routes.
func (m *Module) newApp() (*fiber.App, error) {
	generate, err := nanoid.Standard(21)
	if err != nil {
		return nil, fmt.Errorf("failed to create request id generator: %w", err)
	}

	app := fiber.New(fiber.Config{
		AppName:               "Todo API",
		DisableStartupMessage: true,
		ErrorHandler:          m.errorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: generate,
	}))
	if m.config.AccessLog {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path} ${locals:requestid}\n",
		}))
	}

	allowedOrigins := m.config.AllowedOrigins
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Content-Type,X-Request-ID",
	}))
	app.Use(metricsMiddleware)

	m.registerRoutes(app)
	return app, nil
}

// registerRoutes sets up all HTTP routes.
func (m *Module) registerRoutes(app *fiber.App) {
	app.Get("/health", m.healthHandler)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1")

	todos := api.Group("/todos")
	todos.Get("/", m.listTodos)
	todos.Post("/", m.createTodo)
	todos.Get("/:id", m.getTodo)
	todos.Put("/:id", m.updateTodo)
	todos.Delete("/:id", m.deleteTodo)

	api.Get("/activity", m.listActivity)
}

// Stop gracefully shuts down the HTTP server.
func (m *Module) Stop(ctx context.Context) error {
	if m.app != nil {
		if err := m.app.ShutdownWithContext(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}
	m.logger.Info("HTTP server stopped")
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"addr": m.config.Addr,
		},
	}
}

// errorHandler handles errors returned by handlers and middleware.
func (m *Module) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	m.logger.Error("HTTP error", "code", code, "message", message, "error", err)

	return c.Status(code).JSON(ErrorResponse{Message: message})
}
