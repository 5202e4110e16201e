package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type correlationIDKey struct{}

var correlationKey = correlationIDKey{}

// CorrelationID ensures every request carries a correlation identifier so a
// session's start, answers and finalize can be tied together in the logs.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Get("X-Correlation-ID"))
		if id == "" {
			id = strings.TrimSpace(c.Get("X-Request-ID"))
		}
		if id == "" {
			id = uuid.NewString()
		}

		c.Locals("correlation_id", id)
		c.Set("X-Correlation-ID", id)
		c.SetUserContext(context.WithValue(c.Context(), correlationKey, id))

		return c.Next()
	}
}

// CorrelationIDFromContext extracts the correlation identifier from a
// context, if present.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationKey).(string); ok {
		return id
	}
	return ""
}

// GetCorrelationID returns the correlation identifier bound to the active
// request.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals("correlation_id").(string); ok {
		return id
	}
	return CorrelationIDFromContext(c.Context())
}
