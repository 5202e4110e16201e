package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/evalhub/assess-go-api/internal/service"
	"github.com/evalhub/assess-go-api/internal/utils"
)

// ResultHandler exposes finalize, result and leaderboard endpoints.
type ResultHandler struct {
	results service.ResultService
	logger  zerolog.Logger
}

// NewResultHandler constructs the handler.
func NewResultHandler(results service.ResultService, logger zerolog.Logger) *ResultHandler {
	return &ResultHandler{
		results: results,
		logger:  logger.With().Str("component", "result_handler").Logger(),
	}
}

// RegisterStudent wires the student-facing endpoints.
func (h *ResultHandler) RegisterStudent(router fiber.Router) {
	router.Post("/:id/finalize", h.finalize)
	router.Get("/:id/result", h.studentResult)
}

// RegisterManage wires the instructor-facing endpoints.
func (h *ResultHandler) RegisterManage(router fiber.Router) {
	router.Get("/:id/leaderboard", h.leaderboard)
	router.Post("/:id/ranks", h.assignRanks)
}

func (h *ResultHandler) finalize(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	actor := actorFromContext(c)
	if actor.ID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	result, err := h.results.Finalize(c.Context(), id, actor)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission finalized", result)
}

func (h *ResultHandler) studentResult(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	actor := actorFromContext(c)
	if actor.ID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	result, err := h.results.StudentResult(c.Context(), id, actor)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "result retrieved", result)
}

func (h *ResultHandler) leaderboard(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	leaderboard, err := h.results.Leaderboard(c.Context(), id, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "leaderboard retrieved", leaderboard)
}

func (h *ResultHandler) assignRanks(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	ranked, err := h.results.AssignRanks(c.Context(), id, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "ranks assigned", fiber.Map{"ranked": ranked})
}

func (h *ResultHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrAssessmentNotFound), errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrForbidden), errors.Is(err, service.ErrResultsNotAvailable):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrNotInProgress):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("result operation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
