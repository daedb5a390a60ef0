package serverutils

import (
	"errors"

	"rag-chat-be/internal/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware turns errors returned by handlers into the JSON
// error envelope. Fiber errors keep their status; everything else is mapped
// through the apperror taxonomy.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
		}

		status := apperror.HTTPStatus(err)
		return ctx.Status(status).JSON(ErrorResponse(status, apperror.Message(err)))
	}
}
