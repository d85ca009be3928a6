package serverutils

import (
	"errors"

	"ai-assistant-be/pkg/conversation"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware maps application errors to HTTP responses so
// controllers can simply `return err`.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var appErr *AppError
		if errors.As(err, &appErr) {
			return ctx.Status(appErr.Code).JSON(ErrorResponse(appErr.Message))
		}

		if errors.Is(err, conversation.ErrNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(ErrorResponse("Conversation not found"))
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Message))
		}

		return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse("Internal server error"))
	}
}
