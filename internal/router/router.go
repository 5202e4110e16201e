package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/evalhub/assess-go-api/internal/config"
	"github.com/evalhub/assess-go-api/internal/handler"
	"github.com/evalhub/assess-go-api/internal/middleware"
	"github.com/evalhub/assess-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SessionHandler    *handler.SessionHandler
	ResultHandler     *handler.ResultHandler
	AssessmentHandler *handler.AssessmentHandler
	JWTMiddleware     fiber.Handler
	SessionLimiter    fiber.Handler
	JudgeLimiter      fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	api.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Student-facing assessment session surface
	if deps.SessionHandler != nil {
		assessments := api.Group("/assessments", jwtMiddleware, middleware.RequireRole("student"))
		deps.SessionHandler.Register(assessments, deps.SessionLimiter, deps.JudgeLimiter)

		if deps.ResultHandler != nil {
			deps.ResultHandler.RegisterStudent(assessments)
		}
	}

	// Instructor manage surface
	if deps.AssessmentHandler != nil {
		manage := api.Group("/manage/assessments", jwtMiddleware, middleware.RequireRole("admin", "hod", "teacher"))
		deps.AssessmentHandler.Register(manage)

		if deps.ResultHandler != nil {
			deps.ResultHandler.RegisterManage(manage)
		}
	}
}
