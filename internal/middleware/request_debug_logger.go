package middleware

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gofiber/fiber/v2"
)

const maxBodyLogSize = 1024

// Matches plain and URL-encoded (%40) addresses.
var emailPattern = regexp.MustCompile(`([A-Za-z0-9._+-])[A-Za-z0-9._+-]*(@|%40)([A-Za-z0-9.-]+)`)

// RequestDebugLogger dumps request headers and text bodies at Debug level, then
// the response status and latency. Multipart bodies are summarized by size only.
func RequestDebugLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		logger := GetRequestFileLogger(c)
		startTime := time.Now()

		if logger.Core().Enabled(zapcore.DebugLevel) {
			headersMap := make(map[string]string)
			c.Request().Header.VisitAll(func(key, value []byte) {
				headerKey := string(key)
				if headerKey == "Authorization" || headerKey == "Cookie" {
					headersMap[headerKey] = "*** HIDDEN ***"
				} else {
					headersMap[headerKey] = string(value)
				}
			})

			logger.Debug("Incoming Request Details",
				zap.String("ip", c.IP()),
				zap.Any("headers", headersMap),
				zap.String("body", describeBody(string(c.Request().Header.ContentType()), c.BodyRaw())),
			)
		}

		err := c.Next()

		logger.Debug("Request Handled",
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(startTime)),
		)
		return err
	}
}

// describeBody renders a request body for debug logs.
func describeBody(contentType string, body []byte) string {
	switch {
	case len(body) == 0:
		return "(Empty Body)"
	case strings.HasPrefix(contentType, fiber.MIMEMultipartForm):
		return "(Multipart body, size: " + byteCount(len(body)) + ")"
	case strings.Contains(contentType, "json") || strings.Contains(contentType, "xml") ||
		strings.Contains(contentType, "text") || strings.Contains(contentType, "form"):
		s := string(body)
		if len(s) > maxBodyLogSize {
			s = s[:maxBodyLogSize] + "... (truncated)"
		}
		return sanitizeSensitiveData(s)
	default:
		return "(Binary or non-text body, size: " + byteCount(len(body)) + ")"
	}
}

// sanitizeSensitiveData masks e-mail addresses, keeping the first character and the domain.
func sanitizeSensitiveData(body string) string {
	return emailPattern.ReplaceAllString(body, `$1***$2$3`)
}

func byteCount(n int) string {
	return strconv.Itoa(n) + " bytes"
}
