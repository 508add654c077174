package handlers

import (
	"errors"
	"strings"

	mw "edulearn-connect/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// NewErrorHandler returns the app-wide Fiber error handler. API routes get
// JSON, pages get plain text. Error details are hidden in production.
func NewErrorHandler(isProduction bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		lg := mw.GetRequestFileLogger(c)
		code := fiber.StatusInternalServerError
		var e *fiber.Error
		if errors.As(err, &e) && e != nil {
			code = e.Code
		}

		fields := []zap.Field{
			zap.Int("status", code),
			zap.String("path", c.Path()),
			zap.String("method", c.Method()),
			zap.String("ip", c.IP()),
			zap.Error(err),
		}
		if code == fiber.StatusNotFound {
			lg.Warn("Resource not found", fields...)
		} else {
			lg.Error("Unhandled request error", fields...)
			mw.GetRequestSQLiteLogger(c).Error("Unhandled request error", fields...)
		}

		message := "An unexpected error occurred"
		if code == fiber.StatusNotFound {
			message = "Not Found"
		}
		detail := ""
		if !isProduction && err != nil {
			detail = err.Error()
		}

		if strings.HasPrefix(c.Path(), "/api/") {
			resp := fiber.Map{"error": message}
			if detail != "" {
				resp["detail"] = detail
			}
			return c.Status(code).JSON(resp)
		}
		if detail != "" {
			message += ": " + detail
		}
		return c.Status(code).SendString(message)
	}
}
