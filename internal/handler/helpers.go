package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/evalhub/assess-go-api/internal/middleware"
	"github.com/evalhub/assess-go-api/internal/policy"
)

func parseUintParam(c *fiber.Ctx, key string) (uint, error) {
	raw := strings.TrimSpace(c.Params(key))
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || parsed == 0 {
		return 0, fmt.Errorf("invalid %s parameter", key)
	}
	return uint(parsed), nil
}

func userIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
		if id, ok := v.(int); ok {
			if id < 0 {
				return 0
			}
			return uint(id)
		}
	}
	return 0
}

func userRoleFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_role"); v != nil {
		if role, ok := v.(string); ok {
			return role
		}
	}
	return ""
}

func departmentIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals("department_id"); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

func userGroupsFromContext(c *fiber.Ctx) []string {
	if v := c.Locals("user_groups"); v != nil {
		if groups, ok := v.([]string); ok {
			return groups
		}
	}
	return nil
}

func actorFromContext(c *fiber.Ctx) policy.Actor {
	return policy.Actor{
		ID:           userIDFromContext(c),
		Role:         userRoleFromContext(c),
		DepartmentID: departmentIDFromContext(c),
		Groups:       userGroupsFromContext(c),
	}
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}
