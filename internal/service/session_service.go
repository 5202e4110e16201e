package service

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/evalhub/assess-go-api/internal/dto"
	"github.com/evalhub/assess-go-api/internal/models"
	"github.com/evalhub/assess-go-api/internal/policy"
	"github.com/evalhub/assess-go-api/internal/repository"
	"github.com/evalhub/assess-go-api/internal/scoring"
)

// SessionMeta captures client fingerprint data snapshotted at session start.
type SessionMeta struct {
	IPAddress string
	UserAgent string
}

// SessionService governs the per-student assessment session lifecycle.
type SessionService interface {
	Start(ctx context.Context, assessmentID uint, actor policy.Actor, meta SessionMeta) (dto.SessionStartResponse, error)
	ListAccessible(ctx context.Context, actor policy.Actor) ([]dto.AssessmentResponse, error)
}

type sessionService struct {
	assessments repository.AssessmentRepository
	submissions repository.SubmissionRepository
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSessionService constructs the session state machine service.
func NewSessionService(assessments repository.AssessmentRepository, submissions repository.SubmissionRepository, logger zerolog.Logger) SessionService {
	return &sessionService{
		assessments: assessments,
		submissions: submissions,
		logger:      logger.With().Str("component", "session_service").Logger(),
		now:         time.Now,
	}
}

func (s *sessionService) Start(ctx context.Context, assessmentID uint, actor policy.Actor, meta SessionMeta) (dto.SessionStartResponse, error) {
	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SessionStartResponse{}, ErrAssessmentNotFound
		}
		return dto.SessionStartResponse{}, err
	}

	if !policy.CanTakeAssessment(actor, assessment) {
		return dto.SessionStartResponse{}, ErrForbidden
	}

	now := s.now()
	if !assessment.IsAccessible(now) {
		return dto.SessionStartResponse{}, ErrNotAccessible
	}

	submission, err := s.submissions.GetByPair(ctx, assessment.ID, actor.ID)
	switch {
	case err == nil:
		if submission.Status == models.SubmissionStatusSubmitted {
			return dto.SessionStartResponse{}, ErrAlreadySubmitted
		}
		if submission.Status == models.SubmissionStatusExpired {
			return dto.SessionStartResponse{}, ErrSessionClosed
		}
		if !assessment.AllowLateSubmission && submission.DeadlinePassed(now) {
			if _, markErr := s.submissions.MarkExpiredIfOverdue(ctx, submission.ID, now); markErr != nil {
				return dto.SessionStartResponse{}, markErr
			}
			return dto.SessionStartResponse{}, ErrSessionClosed
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		submission = models.Submission{
			AssessmentID: assessment.ID,
			StudentID:    actor.ID,
			Status:       models.SubmissionStatusInProgress,
			StartedAt:    now,
			Deadline:     studentDeadline(assessment, now),
			MaxScore:     assessment.TotalPoints(),
			IPAddress:    meta.IPAddress,
			UserAgent:    meta.UserAgent,
		}
		if createErr := s.submissions.Create(ctx, &submission); createErr != nil {
			return dto.SessionStartResponse{}, createErr
		}
		s.logger.Info().
			Uint("assessment_id", assessment.ID).
			Uint("student_id", actor.ID).
			Time("deadline", submission.Deadline).
			Msg("session started")
	default:
		return dto.SessionStartResponse{}, err
	}

	return s.buildSessionPayload(assessment, submission, now), nil
}

func (s *sessionService) ListAccessible(ctx context.Context, actor policy.Actor) ([]dto.AssessmentResponse, error) {
	now := s.now()
	responses := make([]dto.AssessmentResponse, 0)

	for _, group := range actor.Groups {
		assessments, err := s.assessments.List(ctx, repository.AssessmentFilter{PublishedOnly: true, Group: group})
		if err != nil {
			return nil, err
		}
		for _, assessment := range assessments {
			if containsAssessment(responses, assessment.ID) {
				continue
			}
			responses = append(responses, dto.NewAssessmentResponse(assessment, now))
		}
	}

	return responses, nil
}

// studentDeadline computes the binding cutoff for one student's session:
// start + duration, capped at the global end so latecomers to a long-open
// window never gain extra time past it.
func studentDeadline(assessment models.Assessment, startedAt time.Time) time.Time {
	deadline := startedAt.Add(time.Duration(assessment.DurationMinutes) * time.Minute)
	if deadline.After(assessment.EndTime) {
		deadline = assessment.EndTime
	}
	return deadline
}

func (s *sessionService) buildSessionPayload(assessment models.Assessment, submission models.Submission, now time.Time) dto.SessionStartResponse {
	manifest := assessment.Questions
	if assessment.ShuffleQuestions {
		rng := rand.New(rand.NewSource(sessionSeed(submission.ID, 0)))
		manifest = scoring.Shuffle(manifest, rng)
	}

	questions := make([]dto.QuestionView, 0, len(manifest))
	for _, entry := range manifest {
		questions = append(questions, buildQuestionView(assessment, submission.ID, entry))
	}

	remaining := int64(submission.Deadline.Sub(now).Seconds())
	if remaining < 0 {
		remaining = 0
	}

	return dto.SessionStartResponse{
		SubmissionID:     submission.ID,
		AssessmentID:     assessment.ID,
		Title:            assessment.Title,
		Description:      assessment.Description,
		StartedAt:        submission.StartedAt,
		Deadline:         submission.Deadline,
		RemainingSeconds: remaining,
		PreventTabSwitch: assessment.PreventTabSwitch,
		Questions:        questions,
	}
}

// buildQuestionView strips everything a student must not see: solution code,
// the correct option, hidden test case outputs. Options are permuted per
// session when the shuffle policy is on.
func buildQuestionView(assessment models.Assessment, submissionID uint, entry models.AssessmentQuestion) dto.QuestionView {
	question := entry.Question
	view := dto.QuestionView{
		QuestionID:  entry.QuestionID,
		Kind:        entry.Kind,
		Title:       question.Title,
		Prompt:      question.Prompt,
		Points:      entry.Points,
		MaxAttempts: entry.MaxAttempts,
	}

	switch entry.Kind {
	case models.QuestionKindMCQ:
		options := []string(question.Options)
		if assessment.ShuffleOptions {
			rng := rand.New(rand.NewSource(sessionSeed(submissionID, entry.QuestionID)))
			options, _ = scoring.ShuffleOptions(options, question.CorrectOption, rng)
		}
		view.Options = options
	case models.QuestionKindCoding:
		view.LanguageID = question.LanguageID
		cases := make([]dto.TestCaseView, 0, len(question.TestCases))
		for _, tc := range question.TestCases {
			cases = append(cases, dto.NewTestCaseView(tc))
		}
		view.TestCases = cases
	}

	return view
}

// sessionSeed derives the deterministic shuffle seed for a session, so a
// resumed session sees the same ordering and answer submission can remap
// shuffled indices back to the stored originals.
func sessionSeed(submissionID, questionID uint) int64 {
	return int64(submissionID)*1_000_003 + int64(questionID)
}

// shuffledOptionIndex maps a student-visible option index back to the
// original option index for a shuffled session.
func shuffledOptionIndex(submissionID uint, question models.Question, selected int) int {
	options := []string(question.Options)
	if selected < 0 || selected >= len(options) {
		return selected
	}

	order := make([]int, len(options))
	for i := range order {
		order[i] = i
	}
	rng := rand.New(rand.NewSource(sessionSeed(submissionID, question.ID)))
	order = scoring.Shuffle(order, rng)
	return order[selected]
}

func containsAssessment(responses []dto.AssessmentResponse, id uint) bool {
	for _, r := range responses {
		if r.ID == id {
			return true
		}
	}
	return false
}
