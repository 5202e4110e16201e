package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/evalhub/assess-go-api/internal/config"
	"github.com/evalhub/assess-go-api/internal/utils"
)

// HealthCheck reports liveness. Readiness of the judge backend is observable
// through the judge metrics, not here.
func HealthCheck(cfg config.Config) fiber.Handler {
	startedAt := time.Now().UTC()

	return func(c *fiber.Ctx) error {
		return utils.SendSuccess(c, "service healthy", fiber.Map{
			"status":      "ok",
			"service":     cfg.AppName,
			"environment": cfg.AppEnv,
			"started_at":  startedAt,
			"uptime_secs": int64(time.Since(startedAt).Seconds()),
		})
	}
}
