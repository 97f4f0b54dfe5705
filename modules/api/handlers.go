package api

import (
	"errors"
	"time"

	domain "github.com/example/todo-api/domain/todo"
	"github.com/gofiber/fiber/v2"
)

const deletedMessage = "Todo deleted successfully"

// listTodos handles GET /api/v1/todos.
func (m *Module) listTodos(c *fiber.Ctx) error {
	todos, err := m.port.List(c.UserContext())
	if err != nil {
		return m.fail(c, "list", err)
	}
	if todos == nil {
		todos = []domain.Todo{}
	}
	return c.JSON(todos)
}

// createTodo handles POST /api/v1/todos.
func (m *Module) createTodo(c *fiber.Ctx) error {
	draft, err := domain.DecodeDraft(c.Body())
	if err != nil {
		return m.fail(c, "create", err)
	}

	created, err := m.port.Create(c.UserContext(), draft)
	if err != nil {
		return m.fail(c, "create", err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// getTodo handles GET /api/v1/todos/:id.
func (m *Module) getTodo(c *fiber.Ctx) error {
	t, err := m.port.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return m.fail(c, "get", err)
	}
	return c.JSON(t)
}

// updateTodo handles PUT /api/v1/todos/:id.
func (m *Module) updateTodo(c *fiber.Ctx) error {
	patch, err := domain.DecodePatch(c.Body())
	if err != nil {
		return m.fail(c, "update", err)
	}

	updated, err := m.port.Update(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		return m.fail(c, "update", err)
	}
	return c.JSON(updated)
}

// deleteTodo handles DELETE /api/v1/todos/:id.
func (m *Module) deleteTodo(c *fiber.Ctx) error {
	if err := m.port.Delete(c.UserContext(), c.Params("id")); err != nil {
		return m.fail(c, "delete", err)
	}
	return c.JSON(MessageResponse{Message: deletedMessage})
}

// listActivity handles GET /api/v1/activity.
func (m *Module) listActivity(c *fiber.Ctx) error {
	if m.activity == nil {
		return c.JSON([]any{})
	}
	return c.JSON(m.activity.Recent(c.QueryInt("limit", 50)))
}

// healthHandler handles GET /health.
func (m *Module) healthHandler(c *fiber.Ctx) error {
	status := "healthy"
	code := fiber.StatusOK
	details := make(map[string]any, len(m.checks))

	for name, module := range m.checks {
		h := module.Health(c.UserContext())
		details[name] = h
		if !h.Healthy {
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}
	}

	return c.Status(code).JSON(HealthResponse{
		Status:    status,
		Service:   "todo-api",
		Timestamp: time.Now().UTC(),
		Details:   details,
	})
}

// statusFor maps a domain error onto the HTTP status of the REST contract.
// Store read failures are server errors; rejected writes are client errors.
func statusFor(err error) int {
	if errors.Is(err, domain.ErrNotFound) {
		return fiber.StatusNotFound
	}
	if domain.IsValidation(err) {
		return fiber.StatusBadRequest
	}
	if op, ok := domain.PersistenceOp(err); ok && op == domain.OpWrite {
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

func (m *Module) fail(c *fiber.Ctx, operation string, err error) error {
	code := statusFor(err)
	if code == fiber.StatusInternalServerError {
		m.logger.Error("Todo request failed", "operation", operation, "id", c.Params("id"), "error", err)
	} else {
		m.logger.Debug("Todo request rejected", "operation", operation, "status", code, "error", err)
	}
	return c.Status(code).JSON(ErrorResponse{Message: err.Error()})
}
