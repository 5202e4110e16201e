package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/evalhub/assess-go-api/internal/utils"
)

// RateLimit builds a per-student rate limiter for session and judge
// endpoints. Limits key on the authenticated user, falling back to the
// client IP for unauthenticated traffic.
func RateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Second
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			userID := fmt.Sprintf("%v", c.Locals("user_id"))
			if userID == "" || userID == "0" || userID == "<nil>" {
				userID = c.IP()
			}
			return fmt.Sprintf("%s:%s", identifier, userID)
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.SendError(c, fiber.StatusTooManyRequests, "rate limit exceeded, slow down")
		},
	})
}
