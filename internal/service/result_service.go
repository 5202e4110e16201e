package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/evalhub/assess-go-api/internal/dto"
	"github.com/evalhub/assess-go-api/internal/models"
	"github.com/evalhub/assess-go-api/internal/policy"
	"github.com/evalhub/assess-go-api/internal/repository"
	"github.com/evalhub/assess-go-api/internal/scoring"
)

// ResultService finalizes submissions, assigns ranks and serves both the
// redacted student view and the full instructor leaderboard.
type ResultService interface {
	Finalize(ctx context.Context, assessmentID uint, actor policy.Actor) (dto.StudentResultResponse, error)
	StudentResult(ctx context.Context, assessmentID uint, actor policy.Actor) (dto.StudentResultResponse, error)
	Leaderboard(ctx context.Context, assessmentID uint, actor policy.Actor) (dto.LeaderboardResponse, error)
	AssignRanks(ctx context.Context, assessmentID uint, actor policy.Actor) (int, error)
}

type resultService struct {
	assessments repository.AssessmentRepository
	submissions repository.SubmissionRepository
	events      EventPublisher
	cache       *redis.Client
	cacheTTL    time.Duration
	tracer      trace.Tracer
	logger      zerolog.Logger
	now         func() time.Time
}

// NewResultService constructs the finalize/ranking service.
func NewResultService(assessments repository.AssessmentRepository, submissions repository.SubmissionRepository, events EventPublisher, cache *redis.Client, cacheTTL time.Duration, logger zerolog.Logger) ResultService {
	return &resultService{
		assessments: assessments,
		submissions: submissions,
		events:      events,
		cache:       cache,
		cacheTTL:    cacheTTL,
		tracer:      otel.Tracer("github.com/evalhub/assess-go-api/internal/service/result"),
		logger:      logger.With().Str("component", "result_service").Logger(),
		now:         time.Now,
	}
}

// Finalize transitions the caller's submission from in_progress to submitted
// and computes final scores. Idempotent: a submission that is already
// submitted returns its stored result unchanged.
func (s *resultService) Finalize(ctx context.Context, assessmentID uint, actor policy.Actor) (dto.StudentResultResponse, error) {
	ctx, span := s.tracer.Start(ctx, "result.finalize")
	span.SetAttributes(
		attribute.Int64("assessment_id", int64(assessmentID)),
		attribute.Int64("student_id", int64(actor.ID)),
	)
	defer span.End()

	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentResultResponse{}, ErrAssessmentNotFound
		}
		return dto.StudentResultResponse{}, err
	}

	if !policy.CanTakeAssessment(actor, assessment) {
		return dto.StudentResultResponse{}, ErrForbidden
	}

	submission, err := s.submissions.GetByPair(ctx, assessment.ID, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentResultResponse{}, ErrSubmissionNotFound
		}
		return dto.StudentResultResponse{}, err
	}

	if submission.Status == models.SubmissionStatusSubmitted {
		return s.buildStudentResult(ctx, assessment, submission, true)
	}
	if submission.Status == models.SubmissionStatusExpired {
		return dto.StudentResultResponse{}, ErrNotInProgress
	}

	now := s.now()
	if !assessment.AllowLateSubmission && submission.DeadlinePassed(now) {
		// The session ran out before the student came back; expire it
		// instead of accepting a finalize hours past the deadline.
		if _, markErr := s.submissions.MarkExpiredIfOverdue(ctx, submission.ID, now); markErr != nil {
			return dto.StudentResultResponse{}, markErr
		}
		return dto.StudentResultResponse{}, ErrNotInProgress
	}

	loaded, err := s.submissions.GetWithAnswers(ctx, submission.ID)
	if err != nil {
		return dto.StudentResultResponse{}, err
	}

	scored := scoreSubmission(assessment, loaded, now)

	updated, err := s.submissions.FinalizeIfInProgress(ctx, &scored)
	if err != nil {
		span.SetStatus(codes.Error, "finalize write failed")
		return dto.StudentResultResponse{}, err
	}
	if !updated {
		// A concurrent finalize won; return the stored result untouched.
		stored, readErr := s.submissions.GetByPair(ctx, assessment.ID, actor.ID)
		if readErr != nil {
			return dto.StudentResultResponse{}, readErr
		}
		if stored.Status != models.SubmissionStatusSubmitted {
			return dto.StudentResultResponse{}, ErrNotInProgress
		}
		return s.buildStudentResult(ctx, assessment, stored, true)
	}

	s.invalidateLeaderboard(ctx, assessment.ID)
	s.events.PublishSubmissionFinalized(SubmissionFinalizedEvent{
		SubmissionID: scored.ID,
		AssessmentID: assessment.ID,
		StudentID:    actor.ID,
		TotalScore:   scored.TotalScore,
		Percentage:   scored.Percentage,
		Grade:        scored.Grade,
		Passed:       scored.Passed,
		SubmittedAt:  *scored.SubmittedAt,
	})

	s.logger.Info().
		Uint("submission_id", scored.ID).
		Float64("total_score", scored.TotalScore).
		Str("grade", scored.Grade).
		Msg("submission finalized")

	return s.buildStudentResult(ctx, assessment, scored, true)
}

func (s *resultService) StudentResult(ctx context.Context, assessmentID uint, actor policy.Actor) (dto.StudentResultResponse, error) {
	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentResultResponse{}, ErrAssessmentNotFound
		}
		return dto.StudentResultResponse{}, err
	}

	if !policy.CanTakeAssessment(actor, assessment) {
		return dto.StudentResultResponse{}, ErrForbidden
	}

	submission, err := s.submissions.GetByPair(ctx, assessment.ID, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentResultResponse{}, ErrSubmissionNotFound
		}
		return dto.StudentResultResponse{}, err
	}

	if !submission.IsTerminal() {
		return dto.StudentResultResponse{}, ErrNotInProgress
	}

	now := s.now()
	if !assessment.ShowResultsImmediately && assessment.Phase(now) != models.AssessmentPhaseCompleted {
		return dto.StudentResultResponse{}, ErrResultsNotAvailable
	}

	return s.buildStudentResult(ctx, assessment, submission, true)
}

func (s *resultService) Leaderboard(ctx context.Context, assessmentID uint, actor policy.Actor) (dto.LeaderboardResponse, error) {
	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.LeaderboardResponse{}, ErrAssessmentNotFound
		}
		return dto.LeaderboardResponse{}, err
	}

	if !policy.CanViewLeaderboard(actor, assessment) {
		return dto.LeaderboardResponse{}, ErrForbidden
	}

	cacheKey := leaderboardCacheKey(assessment.ID)
	if s.cache != nil {
		if cached, cacheErr := s.cache.Get(ctx, cacheKey).Result(); cacheErr == nil {
			var response dto.LeaderboardResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				s.logger.Debug().Uint("assessment_id", assessment.ID).Msg("leaderboard cache hit")
				return response, nil
			}
		} else if !errors.Is(cacheErr, redis.Nil) {
			s.logger.Warn().Err(cacheErr).Msg("failed to read leaderboard cache")
		}
	}

	terminal, err := s.submissions.ListTerminal(ctx, assessment.ID)
	if err != nil {
		return dto.LeaderboardResponse{}, err
	}

	// Stored ranks may lag behind a fresh finalize; fill gaps from the
	// current standings so the board never shows rank 0.
	fallback := denseRanks(terminal)
	entries := make([]dto.LeaderboardEntry, 0, len(terminal))
	for _, submission := range terminal {
		entry := dto.NewLeaderboardEntry(submission)
		if entry.Rank == 0 {
			entry.Rank = fallback[submission.ID]
		}
		entries = append(entries, entry)
	}

	response := dto.LeaderboardResponse{
		AssessmentID: assessment.ID,
		Title:        assessment.Title,
		Entries:      entries,
		GeneratedAt:  s.now(),
	}

	if s.cache != nil {
		if payload, marshalErr := json.Marshal(response); marshalErr == nil {
			if setErr := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); setErr != nil {
				s.logger.Warn().Err(setErr).Msg("failed to store leaderboard cache")
			}
		}
	}

	return response, nil
}

// AssignRanks recomputes standings for all finalized submissions in one full
// pass over the terminal sort order (score desc, faster first, earlier
// submit first). Ranks are dense and 1-based: submissions with an identical
// sort key share a rank, the next distinct key takes the following rank.
// Returns the number of ranked submissions.
func (s *resultService) AssignRanks(ctx context.Context, assessmentID uint, actor policy.Actor) (int, error) {
	ctx, span := s.tracer.Start(ctx, "result.assign_ranks")
	span.SetAttributes(attribute.Int64("assessment_id", int64(assessmentID)))
	defer span.End()

	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrAssessmentNotFound
		}
		return 0, err
	}

	if !policy.CanManageAssessment(actor, assessment) {
		return 0, ErrForbidden
	}

	// Expire stragglers first so they never occupy a rank slot.
	if !assessment.AllowLateSubmission {
		if _, expireErr := s.submissions.ExpireOverdue(ctx, assessment.ID, s.now()); expireErr != nil {
			return 0, expireErr
		}
	}

	terminal, err := s.submissions.ListTerminal(ctx, assessment.ID)
	if err != nil {
		return 0, err
	}

	ranks := denseRanks(terminal)

	if err := s.submissions.UpdateRanks(ctx, ranks); err != nil {
		span.SetStatus(codes.Error, "rank write failed")
		return 0, err
	}

	s.invalidateLeaderboard(ctx, assessment.ID)
	s.logger.Info().Uint("assessment_id", assessment.ID).Int("ranked", len(ranks)).Msg("ranks assigned")
	return len(ranks), nil
}

// denseRanks maps submissions, already in terminal sort order, to dense
// 1-based ranks. Equal (total score, time taken, submitted at) triples share
// one rank.
func denseRanks(terminal []models.Submission) map[uint]int {
	ranks := make(map[uint]int, len(terminal))
	rank := 0
	var prev models.Submission
	for i, submission := range terminal {
		if i == 0 || !sameStanding(prev, submission) {
			rank++
		}
		ranks[submission.ID] = rank
		prev = submission
	}
	return ranks
}

func sameStanding(a, b models.Submission) bool {
	if a.TotalScore != b.TotalScore || a.TimeTakenSecs != b.TimeTakenSecs {
		return false
	}
	if a.SubmittedAt == nil || b.SubmittedAt == nil {
		return a.SubmittedAt == b.SubmittedAt
	}
	return a.SubmittedAt.Equal(*b.SubmittedAt)
}

// scoreSubmission is the deterministic scoring pass over recorded answers.
// Re-running it on the same inputs yields identical output.
func scoreSubmission(assessment models.Assessment, submission models.Submission, now time.Time) models.Submission {
	mcqInputs := make([]scoring.McqInput, 0)
	codingInputs := make([]scoring.CodingInput, 0)

	answersByQuestion := make(map[uint]models.McqAnswer, len(submission.McqAnswers))
	for _, answer := range submission.McqAnswers {
		answersByQuestion[answer.QuestionID] = answer
	}

	bestByQuestion := make(map[uint]float64)
	for _, attempt := range submission.CodingAttempts {
		if attempt.Score > bestByQuestion[attempt.QuestionID] {
			bestByQuestion[attempt.QuestionID] = attempt.Score
		}
	}

	for _, entry := range assessment.Questions {
		switch entry.Kind {
		case models.QuestionKindMCQ:
			answer, answered := answersByQuestion[entry.QuestionID]
			mcqInputs = append(mcqInputs, scoring.McqInput{
				Answered:  answered,
				IsCorrect: answered && answer.IsCorrect,
				Points:    entry.Points,
			})
		case models.QuestionKindCoding:
			codingInputs = append(codingInputs, scoring.CodingInput{BestScore: bestByQuestion[entry.QuestionID]})
		}
	}

	submission.MCQScore = scoring.ScoreMcq(mcqInputs, assessment.NegativeMarking, assessment.NegativeMarkingValue)
	submission.CodingScore = scoring.ScoreCoding(codingInputs)
	submission.TotalScore = submission.MCQScore + submission.CodingScore
	submission.MaxScore = assessment.TotalPoints()
	submission.Percentage = scoring.Percentage(submission.TotalScore, submission.MaxScore)
	submission.Grade = scoring.Grade(submission.Percentage)
	submission.Passed = submission.Percentage >= assessment.PassingScore

	submittedAt := now
	submission.SubmittedAt = &submittedAt
	submission.TimeTakenSecs = int64(submittedAt.Sub(submission.StartedAt).Seconds())
	submission.Status = models.SubmissionStatusSubmitted

	return submission
}

func (s *resultService) buildStudentResult(ctx context.Context, assessment models.Assessment, submission models.Submission, includeDetails bool) (dto.StudentResultResponse, error) {
	response := dto.StudentResultResponse{
		SubmissionID:  submission.ID,
		AssessmentID:  assessment.ID,
		Status:        submission.Status,
		MCQScore:      submission.MCQScore,
		CodingScore:   submission.CodingScore,
		TotalScore:    submission.TotalScore,
		MaxScore:      submission.MaxScore,
		Percentage:    submission.Percentage,
		Grade:         submission.Grade,
		Passed:        submission.Passed,
		Rank:          submission.Rank,
		TimeTakenSecs: submission.TimeTakenSecs,
		SubmittedAt:   submission.SubmittedAt,
	}

	if !includeDetails {
		return response, nil
	}

	loaded := submission
	if len(loaded.McqAnswers) == 0 && len(loaded.CodingAttempts) == 0 {
		withAnswers, err := s.submissions.GetWithAnswers(ctx, submission.ID)
		if err != nil {
			return dto.StudentResultResponse{}, err
		}
		loaded = withAnswers
	}

	revealCorrect := assessment.ShowCorrectAnswers && assessment.Phase(s.now()) == models.AssessmentPhaseCompleted
	for _, answer := range loaded.McqAnswers {
		view := dto.McqResultView{
			QuestionID:     answer.QuestionID,
			SelectedOption: answer.SelectedOption,
			IsCorrect:      answer.IsCorrect,
		}
		if revealCorrect {
			if entry, ok := assessment.ManifestEntry(answer.QuestionID); ok {
				correct := entry.Question.CorrectOption
				view.CorrectOption = &correct
			}
		}
		response.McqResults = append(response.McqResults, view)
	}

	codingViews := make(map[uint]*dto.CodingResultView)
	order := make([]uint, 0)
	for _, attempt := range loaded.CodingAttempts {
		view, ok := codingViews[attempt.QuestionID]
		if !ok {
			view = &dto.CodingResultView{QuestionID: attempt.QuestionID}
			codingViews[attempt.QuestionID] = view
			order = append(order, attempt.QuestionID)
		}
		view.Attempts++
		if attempt.Score > view.BestScore {
			view.BestScore = attempt.Score
		}
		if attempt.AllPassed() {
			view.Completed = true
		}
		if attempt.JudgeDegraded {
			view.JudgeDegraded = true
		}
	}
	for _, questionID := range order {
		response.CodingResults = append(response.CodingResults, *codingViews[questionID])
	}

	return response, nil
}

func (s *resultService) invalidateLeaderboard(ctx context.Context, assessmentID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, leaderboardCacheKey(assessmentID)).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate leaderboard cache")
	}
}

func leaderboardCacheKey(assessmentID uint) string {
	return fmt.Sprintf("leaderboard:assessment:%d", assessmentID)
}
