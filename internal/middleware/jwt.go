package middleware

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/evalhub/assess-go-api/internal/utils"
)

// JWTProtected returns a middleware that validates JWT bearer tokens.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get("Authorization")
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		if userID := extractUserIDFromClaims(claims); userID != nil {
			c.Locals("user_id", *userID)
		}
		if role := extractUserRoleFromClaims(claims); role != "" {
			c.Locals("user_role", role)
		}
		if departmentID, ok := claims["department_id"]; ok {
			if normalized, err := normalizeUserID(departmentID); err == nil {
				c.Locals("department_id", normalized)
			}
		}
		if groups := extractGroupsFromClaims(claims); len(groups) > 0 {
			c.Locals("user_groups", groups)
		}

		return c.Next()
	}
}

func extractGroupsFromClaims(claims jwt.MapClaims) []string {
	value, ok := claims["groups"]
	if !ok {
		return nil
	}

	switch v := value.(type) {
	case []interface{}:
		groups := make([]string, 0, len(v))
		for _, item := range v {
			if str, strOk := item.(string); strOk {
				trimmed := strings.TrimSpace(str)
				if trimmed != "" {
					groups = append(groups, trimmed)
				}
			}
		}
		return groups
	case string:
		parts := strings.Split(v, ",")
		groups := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				groups = append(groups, trimmed)
			}
		}
		return groups
	default:
		return nil
	}
}

func extractUserIDFromClaims(claims jwt.MapClaims) *uint {
	keys := []string{"sub", "user_id", "id"}
	for _, key := range keys {
		if value, ok := claims[key]; ok {
			if normalized, err := normalizeUserID(value); err == nil {
				return &normalized
			}
		}
	}

	return nil
}

func normalizeUserID(value interface{}) (uint, error) {
	switch v := value.(type) {
	case float64:
		if v < 0 {
			return 0, fmt.Errorf("invalid subject")
		}
		return uint(v), nil
	case string:
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, err
		}
		return uint(parsed), nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("invalid subject")
		}
		return uint(v), nil
	default:
		return 0, fmt.Errorf("unsupported subject type")
	}
}

func extractUserRoleFromClaims(claims jwt.MapClaims) string {
	candidates := []string{"role", "roles"}
	for _, key := range candidates {
		if value, ok := claims[key]; ok {
			if role := normalizeRole(value); role != "" {
				return role
			}
		}
	}
	return ""
}

func normalizeRole(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case []interface{}:
		for _, item := range v {
			if str, ok := item.(string); ok {
				role := strings.ToLower(strings.TrimSpace(str))
				if role != "" {
					return role
				}
			}
		}
	default:
		return ""
	}
	return ""
}
