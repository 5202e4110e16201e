package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/evalhub/assess-go-api/internal/models"
)

// ErrAttemptConflict indicates a concurrent writer claimed the same attempt
// number; the caller should re-check the attempt count before retrying.
var ErrAttemptConflict = errors.New("attempt number already taken")

// SubmissionRepository persists assessment submissions, answers and attempts.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	Update(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	GetByPair(ctx context.Context, assessmentID, studentID uint) (models.Submission, error)
	GetWithAnswers(ctx context.Context, id uint) (models.Submission, error)

	UpsertMcqAnswer(ctx context.Context, answer *models.McqAnswer) error
	AppendCodingAttempt(ctx context.Context, attempt *models.CodingAttempt) error
	CountAttempts(ctx context.Context, submissionID, questionID uint) (int64, error)

	FinalizeIfInProgress(ctx context.Context, submission *models.Submission) (bool, error)
	ExpireOverdue(ctx context.Context, assessmentID uint, now time.Time) (int64, error)
	MarkExpiredIfOverdue(ctx context.Context, id uint, now time.Time) (bool, error)

	AddTabSwitch(ctx context.Context, id uint, events []byte) error
	ListTerminal(ctx context.Context, assessmentID uint) ([]models.Submission, error)
	UpdateRanks(ctx context.Context, ranks map[uint]int) error
}

// NewSubmissionRepository constructs a submission repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

type submissionRepository struct {
	db *gorm.DB
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Save(submission).Error
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).First(&submission, id).Error
	if err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) GetByPair(ctx context.Context, assessmentID, studentID uint) (models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).
		Where("assessment_id = ? AND student_id = ?", assessmentID, studentID).
		First(&submission).Error
	if err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) GetWithAnswers(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).
		Preload("McqAnswers").
		Preload("CodingAttempts", func(db *gorm.DB) *gorm.DB {
			return db.Order("question_id ASC, attempt_number ASC")
		}).
		First(&submission, id).Error
	if err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

// UpsertMcqAnswer keeps the latest effective answer per question and bumps
// the attempt counter on re-answers.
func (r *submissionRepository) UpsertMcqAnswer(ctx context.Context, answer *models.McqAnswer) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "submission_id"}, {Name: "question_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"selected_option": answer.SelectedOption,
			"original_option": answer.OriginalOption,
			"is_correct":      answer.IsCorrect,
			"answered_at":     answer.AnsweredAt,
			"attempt_count":   gorm.Expr("mcq_answers.attempt_count + 1"),
		}),
	}).Create(answer).Error
}

// AppendCodingAttempt inserts an attempt under the unique
// (submission, question, attempt_number) index. A duplicate-key failure means
// a concurrent writer won the race for this slot.
func (r *submissionRepository) AppendCodingAttempt(ctx context.Context, attempt *models.CodingAttempt) error {
	err := r.db.WithContext(ctx).Create(attempt).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAttemptConflict
	}
	return err
}

func (r *submissionRepository) CountAttempts(ctx context.Context, submissionID, questionID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CodingAttempt{}).
		Where("submission_id = ? AND question_id = ?", submissionID, questionID).
		Count(&count).Error
	return count, err
}

// FinalizeIfInProgress writes the scored submission only if it is still
// in_progress. Returns false when another finalize won the race.
func (r *submissionRepository) FinalizeIfInProgress(ctx context.Context, submission *models.Submission) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ? AND status = ?", submission.ID, models.SubmissionStatusInProgress).
		Updates(map[string]interface{}{
			"status":          models.SubmissionStatusSubmitted,
			"submitted_at":    submission.SubmittedAt,
			"time_taken_secs": submission.TimeTakenSecs,
			"mcq_score":       submission.MCQScore,
			"coding_score":    submission.CodingScore,
			"total_score":     submission.TotalScore,
			"max_score":       submission.MaxScore,
			"percentage":      submission.Percentage,
			"grade":           submission.Grade,
			"passed":          submission.Passed,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ExpireOverdue flips in_progress submissions whose student-local deadline
// has passed to expired. Used when late submission is disallowed.
func (r *submissionRepository) ExpireOverdue(ctx context.Context, assessmentID uint, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("assessment_id = ? AND status = ? AND deadline < ?", assessmentID, models.SubmissionStatusInProgress, now).
		Update("status", models.SubmissionStatusExpired)
	return result.RowsAffected, result.Error
}

func (r *submissionRepository) MarkExpiredIfOverdue(ctx context.Context, id uint, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ? AND status = ? AND deadline < ?", id, models.SubmissionStatusInProgress, now).
		Update("status", models.SubmissionStatusExpired)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *submissionRepository) AddTabSwitch(ctx context.Context, id uint, events []byte) error {
	updates := map[string]interface{}{
		"tab_switches": gorm.Expr("tab_switches + 1"),
	}
	if events != nil {
		updates["suspicious_events"] = events
	}
	return r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ListTerminal returns finalized submissions ordered for rank assignment:
// score descending, faster completion first, earlier submission first.
func (r *submissionRepository) ListTerminal(ctx context.Context, assessmentID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	err := r.db.WithContext(ctx).
		Where("assessment_id = ? AND status = ?", assessmentID, models.SubmissionStatusSubmitted).
		Order("total_score DESC, time_taken_secs ASC, submitted_at ASC").
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *submissionRepository) UpdateRanks(ctx context.Context, ranks map[uint]int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for id, rank := range ranks {
			if err := tx.Model(&models.Submission{}).
				Where("id = ?", id).
				Update("rank", rank).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
