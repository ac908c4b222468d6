package middleware

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"thriftly_backend/models"
)

// ErrorHandler writes every error as {"Error": message}. Domain errors answer
// 200 and clients read the envelope; storage failures answer 500 and their
// causes are logged, not returned. A *fiber.Error keeps its own code.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Something went wrong"

	var appErr *models.AppError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &appErr):
		msg = appErr.Message
		if appErr.Kind != models.KindStorage {
			code = fiber.StatusOK
		} else {
			slog.Error("request failed",
				"method", c.Method(), "path", c.Path(), "request_id", c.GetRespHeader(fiber.HeaderXRequestID), "error", err)
		}
	case errors.As(err, &fiberErr):
		code = fiberErr.Code
		msg = fiberErr.Message
	default:
		slog.Error("unhandled error", "method", c.Method(), "path", c.Path(), "error", err)
	}

	return c.Status(code).JSON(models.ErrorResponse(msg))
}
