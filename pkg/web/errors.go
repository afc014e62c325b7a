package web

import (
	"errors"

	"github.com/dukex/workgraph/pkg/graph"
	"github.com/dukex/workgraph/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

// ValidationProblem is a 400 problem document listing every violation of a definition.
type ValidationProblem struct {
	*problems.DefaultProblem

	Violations []graph.Violation `json:"violations"`
	Warnings   []string          `json:"warnings,omitempty"`
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

func problemType(err error, fallback string) string {
	var serr *services.ServiceError
	if errors.As(err, &serr) && serr.Code != "" {
		return serr.Code
	}

	return fallback
}

// handleServiceError maps service errors onto problem documents.
func (h *APIHandlers) handleServiceError(c fiber.Ctx, err error) error {
	var verr *services.ValidationError

	switch {
	case errors.As(err, &verr):
		problem := &ValidationProblem{
			DefaultProblem: problems.NewStatusProblem(400).
				WithInstance(c.Path()).
				WithType("workflow_invalid").
				WithDetail(err.Error()),
			Violations: verr.Violations,
			Warnings:   verr.Warnings,
		}

		return c.Status(fiber.StatusBadRequest).JSON(problem)

	case services.IsValidationError(err):
		problem := problems.NewStatusProblem(400).
			WithInstance(c.Path()).
			WithType(problemType(err, "validation_error")).
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadRequest).JSON(problem)

	case services.IsNotFound(err):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType(problemType(err, "not_found")).
			WithDetail(err.Error())

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType(problemType(err, "conflict")).
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	default:
		h.logger.ErrorContext(c.Context(), "request failed", "path", c.Path(), "method", c.Method(), "error", err)

		return internalError(c, err)
	}
}
