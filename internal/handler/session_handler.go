package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/evalhub/assess-go-api/internal/dto"
	"github.com/evalhub/assess-go-api/internal/service"
	"github.com/evalhub/assess-go-api/internal/utils"
)

// SessionHandler exposes the student-facing assessment session endpoints.
type SessionHandler struct {
	sessions  service.SessionService
	attempts  service.AttemptService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(sessions service.SessionService, attempts service.AttemptService, validator *validator.Validate, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions:  sessions,
		attempts:  attempts,
		validator: validator,
		logger:    logger.With().Str("component", "session_handler").Logger(),
	}
}

// Register wires the handler endpoints into the router group.
func (h *SessionHandler) Register(router fiber.Router, sessionLimiter fiber.Handler, judgeLimiter fiber.Handler) {
	router.Get("", h.list)
	if sessionLimiter != nil {
		router.Post("/:id/session", sessionLimiter, h.start)
	} else {
		router.Post("/:id/session", h.start)
	}
	router.Post("/:id/mcq", h.submitMcq)
	if judgeLimiter != nil {
		router.Post("/:id/coding", judgeLimiter, h.submitCoding)
	} else {
		router.Post("/:id/coding", h.submitCoding)
	}
	router.Post("/:id/integrity", h.recordIntegrity)
}

func (h *SessionHandler) list(c *fiber.Ctx) error {
	actor := actorFromContext(c)
	if actor.ID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	assessments, err := h.sessions.ListAccessible(c.Context(), actor)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assessments retrieved", assessments)
}

func (h *SessionHandler) start(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	actor := actorFromContext(c)
	if actor.ID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	meta := service.SessionMeta{
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
	}

	session, err := h.sessions.Start(c.Context(), id, actor, meta)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "session started", session)
}

func (h *SessionHandler) submitMcq(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.McqAnswerRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	actor := actorFromContext(c)
	if actor.ID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	answer, err := h.attempts.SubmitMcq(c.Context(), id, actor, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "answer recorded", answer)
}

func (h *SessionHandler) submitCoding(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.CodingAttemptRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	actor := actorFromContext(c)
	if actor.ID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	attempt, err := h.attempts.SubmitCoding(c.Context(), id, actor, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "attempt judged", attempt)
}

func (h *SessionHandler) recordIntegrity(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.IntegrityEventRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	actor := actorFromContext(c)
	if actor.ID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	if err := h.attempts.RecordIntegrityEvent(c.Context(), id, actor, payload); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "event recorded", nil)
}

func (h *SessionHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrAssessmentNotFound), errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrUnknownQuestion):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrForbidden), errors.Is(err, service.ErrNotAccessible):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrAlreadySubmitted), errors.Is(err, service.ErrSessionClosed),
		errors.Is(err, service.ErrAttemptLimitExceeded):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrJudgeUnavailable):
		return utils.SendError(c, fiber.StatusServiceUnavailable, err.Error())
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("session operation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
