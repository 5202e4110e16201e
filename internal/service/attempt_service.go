package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/evalhub/assess-go-api/internal/dto"
	"github.com/evalhub/assess-go-api/internal/models"
	"github.com/evalhub/assess-go-api/internal/policy"
	"github.com/evalhub/assess-go-api/internal/repository"
	"github.com/evalhub/assess-go-api/internal/scoring"
	"github.com/evalhub/assess-go-api/pkg/judge"
)

// AttemptService records MCQ answers, coding attempts and integrity events
// against an in-progress session.
type AttemptService interface {
	SubmitMcq(ctx context.Context, assessmentID uint, actor policy.Actor, payload dto.McqAnswerRequest) (dto.McqAnswerResponse, error)
	SubmitCoding(ctx context.Context, assessmentID uint, actor policy.Actor, payload dto.CodingAttemptRequest) (dto.CodingAttemptResponse, error)
	RecordIntegrityEvent(ctx context.Context, assessmentID uint, actor policy.Actor, payload dto.IntegrityEventRequest) error
}

type attemptService struct {
	assessments repository.AssessmentRepository
	submissions repository.SubmissionRepository
	questions   repository.QuestionRepository
	judge       judge.Client
	validator   *validator.Validate
	logger      zerolog.Logger
	limits      judge.Limits
	now         func() time.Time
}

// NewAttemptService constructs the attempt orchestrator.
func NewAttemptService(assessments repository.AssessmentRepository, submissions repository.SubmissionRepository, questions repository.QuestionRepository, judgeClient judge.Client, validate *validator.Validate, logger zerolog.Logger, limits judge.Limits) AttemptService {
	return &attemptService{
		assessments: assessments,
		submissions: submissions,
		questions:   questions,
		judge:       judgeClient,
		validator:   validate,
		logger:      logger.With().Str("component", "attempt_service").Logger(),
		limits:      limits,
		now:         time.Now,
	}
}

func (s *attemptService) SubmitMcq(ctx context.Context, assessmentID uint, actor policy.Actor, payload dto.McqAnswerRequest) (dto.McqAnswerResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.McqAnswerResponse{}, err
	}

	assessment, submission, err := s.openSession(ctx, assessmentID, actor)
	if err != nil {
		return dto.McqAnswerResponse{}, err
	}

	entry, ok := assessment.ManifestEntry(payload.QuestionID)
	if !ok || entry.Kind != models.QuestionKindMCQ {
		return dto.McqAnswerResponse{}, ErrUnknownQuestion
	}

	question := entry.Question

	// The student answers against the shuffled order; store the original
	// index so scoring and audit work on unshuffled data.
	originalIndex := payload.SelectedOption
	if assessment.ShuffleOptions {
		originalIndex = shuffledOptionIndex(submission.ID, question, payload.SelectedOption)
	}

	now := s.now()
	answer := models.McqAnswer{
		SubmissionID:   submission.ID,
		QuestionID:     payload.QuestionID,
		SelectedOption: payload.SelectedOption,
		OriginalOption: originalIndex,
		IsCorrect:      originalIndex == question.CorrectOption,
		AttemptCount:   1,
		AnsweredAt:     now,
	}

	if err := s.submissions.UpsertMcqAnswer(ctx, &answer); err != nil {
		return dto.McqAnswerResponse{}, err
	}

	return dto.McqAnswerResponse{
		QuestionID:     answer.QuestionID,
		SelectedOption: answer.SelectedOption,
		AttemptCount:   answer.AttemptCount,
		AnsweredAt:     answer.AnsweredAt,
	}, nil
}

func (s *attemptService) SubmitCoding(ctx context.Context, assessmentID uint, actor policy.Actor, payload dto.CodingAttemptRequest) (dto.CodingAttemptResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CodingAttemptResponse{}, err
	}

	assessment, submission, err := s.openSession(ctx, assessmentID, actor)
	if err != nil {
		return dto.CodingAttemptResponse{}, err
	}

	entry, ok := assessment.ManifestEntry(payload.QuestionID)
	if !ok || entry.Kind != models.QuestionKindCoding {
		return dto.CodingAttemptResponse{}, ErrUnknownQuestion
	}

	question := entry.Question
	if len(question.TestCases) == 0 {
		return dto.CodingAttemptResponse{}, ErrUnknownQuestion
	}

	count, err := s.submissions.CountAttempts(ctx, submission.ID, payload.QuestionID)
	if err != nil {
		return dto.CodingAttemptResponse{}, err
	}
	if int(count) >= entry.MaxAttempts {
		return dto.CodingAttemptResponse{}, ErrAttemptLimitExceeded
	}

	cases := make([]judge.BatchCase, 0, len(question.TestCases))
	for _, tc := range question.TestCases {
		cases = append(cases, judge.BatchCase{Stdin: tc.Input, ExpectedOutput: tc.ExpectedOutput})
	}

	results := s.judge.RunBatch(ctx, payload.SourceCode, payload.LanguageID, cases, s.limits)

	// When the judge was unreachable for every case the attempt carries no
	// verdict at all; surface the outage instead of consuming an attempt.
	if allUnavailable(results) {
		return dto.CodingAttemptResponse{}, ErrJudgeUnavailable
	}

	passed := make([]bool, len(results))
	degraded := false
	totalPassed := 0
	runs := make([]dto.TestCaseRun, 0, len(results))
	for i, result := range results {
		passed[i] = result.Passed()
		if passed[i] {
			totalPassed++
		}
		if result.Degraded() {
			degraded = true
		}
		runs = append(runs, buildTestCaseRun(question.TestCases[i], result))
	}

	score := scoring.AttemptScore(question.TestCases, passed, entry.Points)

	attempt := models.CodingAttempt{
		SubmissionID:   submission.ID,
		QuestionID:     payload.QuestionID,
		AttemptNumber:  int(count) + 1,
		SourceCode:     payload.SourceCode,
		LanguageID:     payload.LanguageID,
		ExecutionID:    uuid.NewString(),
		TotalPassed:    totalPassed,
		TotalTestCases: len(results),
		Score:          score,
		JudgeDegraded:  degraded,
		SubmittedAt:    s.now(),
	}
	if encoded, encodeErr := json.Marshal(runs); encodeErr == nil {
		attempt.TestResults = datatypes.JSON(encoded)
	}

	if err := s.appendAttempt(ctx, submission.ID, payload.QuestionID, entry.MaxAttempts, &attempt); err != nil {
		return dto.CodingAttemptResponse{}, err
	}

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("question_id", payload.QuestionID).
		Int("attempt", attempt.AttemptNumber).
		Int("passed", totalPassed).
		Int("total", len(results)).
		Bool("judge_degraded", degraded).
		Msg("coding attempt recorded")

	return dto.CodingAttemptResponse{
		QuestionID:     payload.QuestionID,
		AttemptNumber:  attempt.AttemptNumber,
		MaxAttempts:    entry.MaxAttempts,
		ExecutionID:    attempt.ExecutionID,
		TotalPassed:    totalPassed,
		TotalTestCases: len(results),
		Score:          score,
		JudgeDegraded:  degraded,
		Completed:      attempt.AllPassed() || attempt.AttemptNumber >= entry.MaxAttempts,
		SubmittedAt:    attempt.SubmittedAt,
		TestResults:    runs,
	}, nil
}

// appendAttempt serializes attempt-number claims under the unique index.
// A conflict means a concurrent submit claimed the slot; re-check the count
// once so the limit is enforced rather than exceeded.
func (s *attemptService) appendAttempt(ctx context.Context, submissionID, questionID uint, maxAttempts int, attempt *models.CodingAttempt) error {
	err := s.submissions.AppendCodingAttempt(ctx, attempt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrAttemptConflict) {
		return err
	}

	count, countErr := s.submissions.CountAttempts(ctx, submissionID, questionID)
	if countErr != nil {
		return countErr
	}
	if int(count) >= maxAttempts {
		return ErrAttemptLimitExceeded
	}

	attempt.AttemptNumber = int(count) + 1
	if retryErr := s.submissions.AppendCodingAttempt(ctx, attempt); retryErr != nil {
		if errors.Is(retryErr, repository.ErrAttemptConflict) {
			return ErrAttemptLimitExceeded
		}
		return retryErr
	}
	return nil
}

func (s *attemptService) RecordIntegrityEvent(ctx context.Context, assessmentID uint, actor policy.Actor, payload dto.IntegrityEventRequest) error {
	if err := s.validator.Struct(payload); err != nil {
		return err
	}

	_, submission, err := s.openSession(ctx, assessmentID, actor)
	if err != nil {
		return err
	}

	events := appendSuspiciousEvent(submission.SuspiciousEvents, payload, s.now())
	return s.submissions.AddTabSwitch(ctx, submission.ID, events)
}

// openSession loads the assessment and the caller's in-progress submission,
// applying the on-read expiry check.
func (s *attemptService) openSession(ctx context.Context, assessmentID uint, actor policy.Actor) (models.Assessment, models.Submission, error) {
	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assessment{}, models.Submission{}, ErrAssessmentNotFound
		}
		return models.Assessment{}, models.Submission{}, err
	}

	if !policy.CanTakeAssessment(actor, assessment) {
		return models.Assessment{}, models.Submission{}, ErrForbidden
	}

	submission, err := s.submissions.GetByPair(ctx, assessment.ID, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assessment{}, models.Submission{}, ErrSubmissionNotFound
		}
		return models.Assessment{}, models.Submission{}, err
	}

	if submission.Status != models.SubmissionStatusInProgress {
		return models.Assessment{}, models.Submission{}, ErrSessionClosed
	}

	now := s.now()
	if !assessment.AllowLateSubmission && submission.DeadlinePassed(now) {
		if _, markErr := s.submissions.MarkExpiredIfOverdue(ctx, submission.ID, now); markErr != nil {
			return models.Assessment{}, models.Submission{}, markErr
		}
		return models.Assessment{}, models.Submission{}, ErrSessionClosed
	}
	// Late submission stretches answer mutation past the per-student
	// deadline, but never past the assessment window itself. The session
	// stays in_progress so a late finalize is still possible.
	if assessment.AllowLateSubmission && now.After(assessment.EndTime) {
		return models.Assessment{}, models.Submission{}, ErrSessionClosed
	}

	return assessment, submission, nil
}

func buildTestCaseRun(tc models.TestCase, result judge.ExecutionResult) dto.TestCaseRun {
	run := dto.TestCaseRun{
		TestCaseID:    tc.ID,
		Passed:        result.Passed(),
		IsHidden:      tc.IsHidden,
		StatusName:    result.StatusName,
		TimeSecs:      result.TimeSecs,
		MemoryKB:      result.MemoryKB(),
		JudgeDegraded: result.Degraded(),
	}
	if !tc.IsHidden {
		run.Stdout = result.Stdout
		run.Stderr = result.Stderr
		run.CompileOutput = result.CompileOutput
	}
	return run
}

func allUnavailable(results []judge.ExecutionResult) bool {
	if len(results) == 0 {
		return true
	}
	for _, result := range results {
		if result.StatusID != judge.StatusUnavailable {
			return false
		}
	}
	return true
}

type suspiciousEvent struct {
	Kind       string    `json:"kind"`
	Detail     string    `json:"detail,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// appendSuspiciousEvent treats the stored log as append-only JSON.
func appendSuspiciousEvent(stored datatypes.JSON, payload dto.IntegrityEventRequest, now time.Time) []byte {
	var events []suspiciousEvent
	if len(stored) > 0 {
		_ = json.Unmarshal(stored, &events)
	}
	events = append(events, suspiciousEvent{Kind: payload.Kind, Detail: payload.Detail, RecordedAt: now})

	encoded, err := json.Marshal(events)
	if err != nil {
		return nil
	}
	return encoded
}
