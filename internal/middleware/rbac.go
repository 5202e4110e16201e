package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/evalhub/assess-go-api/internal/utils"
)

// RequireRole gates a route group on the role claim set by JWTProtected.
// The student surface takes a single role; the manage surface takes the
// staff roles.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		normalized := strings.ToLower(strings.TrimSpace(role))
		if normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		// JWTProtected only ever stores the role as a string.
		role, _ := c.Locals("user_role").(string)
		role = strings.ToLower(strings.TrimSpace(role))
		if _, ok := allowed[role]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}
