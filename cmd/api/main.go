package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/evalhub/assess-go-api/internal/config"
	"github.com/evalhub/assess-go-api/internal/database"
	"github.com/evalhub/assess-go-api/internal/handler"
	"github.com/evalhub/assess-go-api/internal/middleware"
	"github.com/evalhub/assess-go-api/internal/models"
	"github.com/evalhub/assess-go-api/internal/repository"
	"github.com/evalhub/assess-go-api/internal/router"
	"github.com/evalhub/assess-go-api/internal/service"
	"github.com/evalhub/assess-go-api/pkg/judge"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Question{},
		&models.TestCase{},
		&models.Assessment{},
		&models.AssessmentQuestion{},
		&models.Submission{},
		&models.McqAnswer{},
		&models.CodingAttempt{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	judgeClient, err := judge.NewHTTPClient(judge.Config{
		BaseURL:      cfg.JudgeBaseURL,
		APIKey:       cfg.JudgeAPIKey,
		PollInterval: cfg.JudgePollEvery,
		MaxPolls:     cfg.JudgeMaxPolls,
		Logger:       logger,
	})
	if err != nil {
		log.Fatalf("failed to create judge client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	assessmentRepo := repository.NewAssessmentRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)

	judgeLimits := judge.Limits{
		CPUTime: cfg.JudgeCPULimit,
		Memory:  int64(cfg.JudgeMemoryMB) * 1024 * 1024,
	}

	events := service.NewEventPublisher(natsConn, "", logger)

	sessionService := service.NewSessionService(assessmentRepo, submissionRepo, logger)
	attemptService := service.NewAttemptService(assessmentRepo, submissionRepo, questionRepo, judgeClient, validate, logger, judgeLimits)
	resultService := service.NewResultService(assessmentRepo, submissionRepo, events, redisClient, cfg.LeaderboardTTL, logger)
	assessmentService := service.NewAssessmentService(assessmentRepo, questionRepo, validate, logger)

	sessionHandler := handler.NewSessionHandler(sessionService, attemptService, validate, logger)
	resultHandler := handler.NewResultHandler(resultService, logger)
	assessmentHandler := handler.NewAssessmentHandler(assessmentService, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SessionHandler:    sessionHandler,
		ResultHandler:     resultHandler,
		AssessmentHandler: assessmentHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
		SessionLimiter:    middleware.RateLimit("session", cfg.SessionRateMax, cfg.SessionRateEvery),
		JudgeLimiter:      middleware.RateLimit("judge", cfg.SessionRateMax, cfg.SessionRateEvery),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
