package controllers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/theleywin/Backend-Social-Feed/src/lib"
	"github.com/theleywin/Backend-Social-Feed/src/services"
)

// respondError maps a service error to its status code and JSON body.
func respondError(c *fiber.Ctx, err error) error {
	var (
		verr     *services.ValidationError
		conflict *services.ConflictError
		notFound *services.NotFoundError
		authz    *services.AuthorizationError
		storeErr *services.StoreError
	)

	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{verr.Field: verr.Message})
	case errors.As(err, &conflict):
		slog.Debug("Conflict", "path", c.Path(), "error", conflict.Message)
		return c.Status(fiber.StatusBadRequest).JSON(lib.ErrorResponse(conflict.Message))
	case errors.As(err, &notFound):
		slog.Debug("Not found", "path", c.Path(), "error", notFound.Message)
		return c.Status(fiber.StatusNotFound).JSON(lib.ErrorResponse(notFound.Message))
	case errors.As(err, &authz):
		return c.Status(fiber.StatusForbidden).JSON(lib.ErrorResponse(authz.Error()))
	case errors.As(err, &storeErr):
		slog.Error("Store error", "path", c.Path(), "code", storeErr.Code, "error", storeErr.Err)
		return c.Status(fiber.StatusInternalServerError).JSON(lib.ErrorResponse(storeErr.Code))
	default:
		slog.Error("Unexpected error", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(lib.ErrorResponse("Internal server error"))
	}
}

// ErrorHandler is the app-level fallback for errors no handler answered,
// such as unknown routes or oversized bodies.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		slog.Error("Request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(lib.ErrorResponse(err.Error()))
}
