package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/evalhub/assess-go-api/internal/dto"
	"github.com/evalhub/assess-go-api/internal/models"
	"github.com/evalhub/assess-go-api/internal/policy"
	"github.com/evalhub/assess-go-api/internal/repository"
)

// AssessmentService covers the authoring lifecycle: draft, edit, publish,
// soft delete. Editing is allowed only before the assessment goes active.
type AssessmentService interface {
	Create(ctx context.Context, actor policy.Actor, payload dto.AssessmentCreateRequest) (dto.AssessmentResponse, error)
	Update(ctx context.Context, id uint, actor policy.Actor, payload dto.AssessmentUpdateRequest) (dto.AssessmentResponse, error)
	Publish(ctx context.Context, id uint, actor policy.Actor) (dto.AssessmentResponse, error)
	Delete(ctx context.Context, id uint, actor policy.Actor) error
	Get(ctx context.Context, id uint, actor policy.Actor) (dto.AssessmentResponse, error)
	List(ctx context.Context, actor policy.Actor) ([]dto.AssessmentResponse, error)
}

type assessmentService struct {
	assessments repository.AssessmentRepository
	questions   repository.QuestionRepository
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAssessmentService constructs the authoring service.
func NewAssessmentService(assessments repository.AssessmentRepository, questions repository.QuestionRepository, validate *validator.Validate, logger zerolog.Logger) AssessmentService {
	return &assessmentService{
		assessments: assessments,
		questions:   questions,
		validator:   validate,
		logger:      logger.With().Str("component", "assessment_service").Logger(),
		now:         time.Now,
	}
}

func (s *assessmentService) Create(ctx context.Context, actor policy.Actor, payload dto.AssessmentCreateRequest) (dto.AssessmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssessmentResponse{}, err
	}
	if !policy.CanCreateAssessment(actor) {
		return dto.AssessmentResponse{}, ErrForbidden
	}

	manifest, err := s.buildManifest(ctx, payload.Questions)
	if err != nil {
		return dto.AssessmentResponse{}, err
	}

	assessment := models.Assessment{
		Title:           payload.Title,
		Description:     payload.Description,
		DepartmentID:    payload.DepartmentID,
		Groups:          strings.Join(payload.Groups, ","),
		StartTime:       payload.StartTime,
		DurationMinutes: payload.DurationMinutes,
		IsActive:        true,

		ShuffleQuestions:       payload.ShuffleQuestions,
		ShuffleOptions:         payload.ShuffleOptions,
		ShowResultsImmediately: payload.ShowResultsImmediately,
		AllowLateSubmission:    payload.AllowLateSubmission,
		ShowCorrectAnswers:     payload.ShowCorrectAnswers,
		PreventTabSwitch:       payload.PreventTabSwitch,
		NegativeMarking:        payload.NegativeMarking,
		NegativeMarkingValue:   payload.NegativeMarkingValue,
		PassingScore:           payload.PassingScore,

		CreatedBy: actor.ID,
		Questions: manifest,
	}
	assessment.RecomputeEndTime()

	if !policy.CanManageAssessment(actor, assessment) {
		return dto.AssessmentResponse{}, ErrForbidden
	}

	if err := s.assessments.Create(ctx, &assessment); err != nil {
		return dto.AssessmentResponse{}, err
	}

	s.logger.Info().Uint("assessment_id", assessment.ID).Uint("created_by", actor.ID).Msg("assessment created")
	return dto.NewAssessmentResponse(assessment, s.now()), nil
}

func (s *assessmentService) Update(ctx context.Context, id uint, actor policy.Actor, payload dto.AssessmentUpdateRequest) (dto.AssessmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssessmentResponse{}, err
	}

	assessment, err := s.load(ctx, id)
	if err != nil {
		return dto.AssessmentResponse{}, err
	}
	if !policy.CanManageAssessment(actor, assessment) {
		return dto.AssessmentResponse{}, ErrForbidden
	}

	now := s.now()
	switch assessment.Phase(now) {
	case models.AssessmentPhaseDraft, models.AssessmentPhaseUpcoming:
	default:
		return dto.AssessmentResponse{}, ErrAssessmentLocked
	}

	if payload.Title != nil {
		assessment.Title = *payload.Title
	}
	if payload.Description != nil {
		assessment.Description = *payload.Description
	}
	if len(payload.Groups) > 0 {
		assessment.Groups = strings.Join(payload.Groups, ",")
	}
	if payload.StartTime != nil {
		assessment.StartTime = *payload.StartTime
	}
	if payload.DurationMinutes != nil {
		assessment.DurationMinutes = *payload.DurationMinutes
	}
	if payload.ShuffleQuestions != nil {
		assessment.ShuffleQuestions = *payload.ShuffleQuestions
	}
	if payload.ShuffleOptions != nil {
		assessment.ShuffleOptions = *payload.ShuffleOptions
	}
	if payload.ShowResultsImmediately != nil {
		assessment.ShowResultsImmediately = *payload.ShowResultsImmediately
	}
	if payload.AllowLateSubmission != nil {
		assessment.AllowLateSubmission = *payload.AllowLateSubmission
	}
	if payload.ShowCorrectAnswers != nil {
		assessment.ShowCorrectAnswers = *payload.ShowCorrectAnswers
	}
	if payload.PreventTabSwitch != nil {
		assessment.PreventTabSwitch = *payload.PreventTabSwitch
	}
	if payload.NegativeMarking != nil {
		assessment.NegativeMarking = *payload.NegativeMarking
	}
	if payload.NegativeMarkingValue != nil {
		assessment.NegativeMarkingValue = *payload.NegativeMarkingValue
	}
	if payload.PassingScore != nil {
		assessment.PassingScore = *payload.PassingScore
	}

	// End time always follows start time and duration.
	assessment.RecomputeEndTime()

	if payload.Questions != nil {
		manifest, manifestErr := s.buildManifest(ctx, payload.Questions)
		if manifestErr != nil {
			return dto.AssessmentResponse{}, manifestErr
		}
		if replaceErr := s.assessments.ReplaceManifest(ctx, assessment.ID, manifest); replaceErr != nil {
			return dto.AssessmentResponse{}, replaceErr
		}
		assessment.Questions = manifest
	}

	saved := assessment
	saved.Questions = nil
	if err := s.assessments.Update(ctx, &saved); err != nil {
		return dto.AssessmentResponse{}, err
	}

	return dto.NewAssessmentResponse(assessment, now), nil
}

func (s *assessmentService) Publish(ctx context.Context, id uint, actor policy.Actor) (dto.AssessmentResponse, error) {
	assessment, err := s.load(ctx, id)
	if err != nil {
		return dto.AssessmentResponse{}, err
	}
	if !policy.CanManageAssessment(actor, assessment) {
		return dto.AssessmentResponse{}, ErrForbidden
	}

	if !assessment.IsPublished {
		if err := s.assessments.SetPublished(ctx, id, true); err != nil {
			return dto.AssessmentResponse{}, err
		}
		assessment.IsPublished = true
		s.logger.Info().Uint("assessment_id", id).Msg("assessment published")
	}

	return dto.NewAssessmentResponse(assessment, s.now()), nil
}

func (s *assessmentService) Delete(ctx context.Context, id uint, actor policy.Actor) error {
	assessment, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !policy.CanManageAssessment(actor, assessment) {
		return ErrForbidden
	}

	deleted, err := s.assessments.SoftDelete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		count, countErr := s.assessments.CountSubmissions(ctx, id)
		if countErr != nil {
			return countErr
		}
		if count > 0 {
			return ErrAssessmentHasSubmissions
		}
		return ErrAssessmentNotFound
	}

	s.logger.Info().Uint("assessment_id", id).Msg("assessment soft deleted")
	return nil
}

func (s *assessmentService) Get(ctx context.Context, id uint, actor policy.Actor) (dto.AssessmentResponse, error) {
	assessment, err := s.load(ctx, id)
	if err != nil {
		return dto.AssessmentResponse{}, err
	}
	if !policy.CanManageAssessment(actor, assessment) {
		return dto.AssessmentResponse{}, ErrForbidden
	}
	return dto.NewAssessmentResponse(assessment, s.now()), nil
}

func (s *assessmentService) List(ctx context.Context, actor policy.Actor) ([]dto.AssessmentResponse, error) {
	filter := repository.AssessmentFilter{}
	if strings.EqualFold(actor.Role, policy.RoleTeacher) || strings.EqualFold(actor.Role, policy.RoleHOD) {
		filter.DepartmentID = &actor.DepartmentID
	}

	assessments, err := s.assessments.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	now := s.now()
	responses := make([]dto.AssessmentResponse, 0, len(assessments))
	for _, assessment := range assessments {
		responses = append(responses, dto.NewAssessmentResponse(assessment, now))
	}
	return responses, nil
}

func (s *assessmentService) load(ctx context.Context, id uint) (models.Assessment, error) {
	assessment, err := s.assessments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assessment{}, ErrAssessmentNotFound
		}
		return models.Assessment{}, err
	}
	if !assessment.IsActive {
		return models.Assessment{}, ErrAssessmentNotFound
	}
	return assessment, nil
}

// buildManifest validates question references and assigns stable positions.
func (s *assessmentService) buildManifest(ctx context.Context, entries []dto.ManifestEntryRequest) ([]models.AssessmentQuestion, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	ids := make([]uint, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.QuestionID)
	}

	questions, err := s.questions.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Question, len(questions))
	for _, question := range questions {
		byID[question.ID] = question
	}

	manifest := make([]models.AssessmentQuestion, 0, len(entries))
	for i, entry := range entries {
		question, ok := byID[entry.QuestionID]
		if !ok || question.Kind != entry.Kind {
			return nil, ErrUnknownQuestion
		}

		maxAttempts := entry.MaxAttempts
		if maxAttempts <= 0 {
			maxAttempts = 1
		}

		manifest = append(manifest, models.AssessmentQuestion{
			QuestionID:  entry.QuestionID,
			Kind:        entry.Kind,
			Points:      entry.Points,
			MaxAttempts: maxAttempts,
			Position:    i,
		})
	}
	return manifest, nil
}
