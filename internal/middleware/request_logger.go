package middleware

import (
	"edulearn-connect/internal/logging"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestLoggers injects request-scoped file and SQLite loggers into c.Locals(),
// both tagged with a request_id. An incoming X-Request-ID is reused when it is a
// valid UUID, otherwise a new one is generated. The id is echoed in the response.
func RequestLoggers(baseFileLogger, baseSQLiteLogger *zap.Logger) fiber.Handler {
	if baseFileLogger == nil {
		baseFileLogger = zap.NewNop()
	}
	if baseSQLiteLogger == nil {
		baseSQLiteLogger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}

		c.Set(RequestIDHeader, requestID)
		c.Locals(RequestIDKey, requestID)

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
		}
		c.Locals(RequestFileLoggerKey, baseFileLogger.With(fields...))
		c.Locals(RequestSQLiteLoggerKey, baseSQLiteLogger.With(fields...))

		return c.Next()
	}
}

// GetRequestFileLogger returns the request-scoped file/console logger,
// falling back to the global file logger.
func GetRequestFileLogger(c *fiber.Ctx) *zap.Logger {
	if logger, ok := c.Locals(RequestFileLoggerKey).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return logging.GetFileLogger()
}

// GetRequestSQLiteLogger returns the request-scoped SQLite logger,
// falling back to the global SQLite logger (which might be Nop).
func GetRequestSQLiteLogger(c *fiber.Ctx) *zap.Logger {
	if logger, ok := c.Locals(RequestSQLiteLoggerKey).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return logging.GetSQLiteLogger()
}

// GetRequestID returns the request ID stored in Locals, or "".
func GetRequestID(c *fiber.Ctx) string {
	if reqID, ok := c.Locals(RequestIDKey).(string); ok {
		return reqID
	}
	return ""
}
