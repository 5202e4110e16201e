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

// AssessmentHandler exposes the instructor authoring endpoints.
type AssessmentHandler struct {
	assessments service.AssessmentService
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewAssessmentHandler constructs the handler.
func NewAssessmentHandler(assessments service.AssessmentService, validator *validator.Validate, logger zerolog.Logger) *AssessmentHandler {
	return &AssessmentHandler{
		assessments: assessments,
		validator:   validator,
		logger:      logger.With().Str("component", "assessment_handler").Logger(),
	}
}

// Register wires the handler endpoints into the router group.
func (h *AssessmentHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Post("/:id/publish", h.publish)
	router.Delete("/:id", h.remove)
}

func (h *AssessmentHandler) create(c *fiber.Ctx) error {
	var payload dto.AssessmentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assessment, err := h.assessments.Create(c.Context(), actorFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assessment created", assessment)
}

func (h *AssessmentHandler) list(c *fiber.Ctx) error {
	assessments, err := h.assessments.List(c.Context(), actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assessments retrieved", assessments)
}

func (h *AssessmentHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assessment, err := h.assessments.Get(c.Context(), id, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assessment retrieved", assessment)
}

func (h *AssessmentHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AssessmentUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	assessment, err := h.assessments.Update(c.Context(), id, actorFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assessment updated", assessment)
}

func (h *AssessmentHandler) publish(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assessment, err := h.assessments.Publish(c.Context(), id, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assessment published", assessment)
}

func (h *AssessmentHandler) remove(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.assessments.Delete(c.Context(), id, actorFromContext(c)); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assessment deleted", nil)
}

func (h *AssessmentHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrAssessmentNotFound), errors.Is(err, service.ErrUnknownQuestion):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrForbidden):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrAssessmentLocked), errors.Is(err, service.ErrAssessmentHasSubmissions):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("assessment operation failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
