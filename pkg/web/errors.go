package web

import (
	"errors"

	"github.com/dukex/nodeflow/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func problem(c fiber.Ctx, status int, problemType, detail string) error {
	p := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(status).JSON(p)
}

func badRequest(c fiber.Ctx, detail string) error {
	return problem(c, fiber.StatusBadRequest, "validation_error", detail)
}

func unauthenticated(c fiber.Ctx) error {
	return problem(c, fiber.StatusUnauthorized, "unauthenticated", "a principal is required")
}

// handleServiceError maps service errors onto problem responses. Internal
// errors are logged and their detail is withheld from the client.
func (h *APIHandlers) handleServiceError(c fiber.Ctx, err error) error {
	var serviceErr *services.ServiceError

	detail := err.Error()
	if errors.As(err, &serviceErr) && serviceErr.Message != "" {
		detail = serviceErr.Message
	}

	switch {
	case services.IsValidationError(err):
		return badRequest(c, detail)

	case errors.Is(err, services.ErrUnauthenticated):
		return unauthenticated(c)

	case errors.Is(err, services.ErrNotEntitled):
		return problem(c, fiber.StatusForbidden, "not_entitled", detail)

	case services.IsNotFoundError(err):
		return problem(c, fiber.StatusNotFound, "workflow_not_found", "workflow not found")

	case services.IsConflictError(err):
		return problem(c, fiber.StatusConflict, "version_conflict", detail)

	default:
		h.logger.ErrorContext(c.Context(), "Request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)

		return problem(c, fiber.StatusInternalServerError, "internal_error", "internal server error")
	}
}
