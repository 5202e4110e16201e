package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/evalhub/assess-go-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Question{},
		&models.TestCase{},
		&models.Assessment{},
		&models.AssessmentQuestion{},
		&models.Submission{},
		&models.McqAnswer{},
		&models.CodingAttempt{},
	))
	return db
}

func seedSubmission(t *testing.T, db *gorm.DB, assessmentID, studentID uint, status string, deadline time.Time) models.Submission {
	t.Helper()
	submission := models.Submission{
		AssessmentID: assessmentID,
		StudentID:    studentID,
		Status:       status,
		StartedAt:    deadline.Add(-30 * time.Minute),
		Deadline:     deadline,
	}
	require.NoError(t, db.Create(&submission).Error)
	return submission
}

func TestSubmissionRepositoryUpsertMcqAnswerOverwritesAndCountsAttempts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	submission := seedSubmission(t, db, 1, 1, models.SubmissionStatusInProgress, time.Now().Add(time.Hour))

	first := models.McqAnswer{
		SubmissionID:   submission.ID,
		QuestionID:     7,
		SelectedOption: 2,
		OriginalOption: 0,
		IsCorrect:      true,
		AnsweredAt:     time.Now(),
	}
	require.NoError(t, repo.UpsertMcqAnswer(ctx, &first))

	second := models.McqAnswer{
		SubmissionID:   submission.ID,
		QuestionID:     7,
		SelectedOption: 1,
		OriginalOption: 3,
		IsCorrect:      false,
		AnsweredAt:     time.Now(),
	}
	require.NoError(t, repo.UpsertMcqAnswer(ctx, &second))

	var stored []models.McqAnswer
	require.NoError(t, db.Where("submission_id = ?", submission.ID).Find(&stored).Error)
	require.Len(t, stored, 1, "re-answer must overwrite, not append")
	require.Equal(t, 1, stored[0].SelectedOption)
	require.Equal(t, 3, stored[0].OriginalOption)
	require.False(t, stored[0].IsCorrect)
	require.Equal(t, 2, stored[0].AttemptCount)
}

func TestSubmissionRepositoryAppendCodingAttemptRejectsDuplicateNumber(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	submission := seedSubmission(t, db, 1, 1, models.SubmissionStatusInProgress, time.Now().Add(time.Hour))

	attempt := models.CodingAttempt{
		SubmissionID:  submission.ID,
		QuestionID:    9,
		AttemptNumber: 1,
		SourceCode:    "print(1)",
		LanguageID:    71,
		SubmittedAt:   time.Now(),
	}
	require.NoError(t, repo.AppendCodingAttempt(ctx, &attempt))

	duplicate := models.CodingAttempt{
		SubmissionID:  submission.ID,
		QuestionID:    9,
		AttemptNumber: 1,
		SourceCode:    "print(2)",
		LanguageID:    71,
		SubmittedAt:   time.Now(),
	}
	err := repo.AppendCodingAttempt(ctx, &duplicate)
	require.ErrorIs(t, err, ErrAttemptConflict)

	count, err := repo.CountAttempts(ctx, submission.ID, 9)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestSubmissionRepositoryFinalizeIfInProgressIsOneShot(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	submission := seedSubmission(t, db, 1, 1, models.SubmissionStatusInProgress, time.Now().Add(time.Hour))

	submittedAt := time.Now()
	submission.SubmittedAt = &submittedAt
	submission.TimeTakenSecs = 900
	submission.TotalScore = 10
	submission.MaxScore = 15
	submission.Percentage = 66.67
	submission.Grade = "D"

	ok, err := repo.FinalizeIfInProgress(ctx, &submission)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.FinalizeIfInProgress(ctx, &submission)
	require.NoError(t, err)
	require.False(t, ok, "second finalize must lose the conditional update")

	stored, err := repo.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusSubmitted, stored.Status)
	require.Equal(t, 10.0, stored.TotalScore)
	require.Equal(t, "D", stored.Grade)
}

func TestSubmissionRepositoryExpireOverdueOnlyFlipsInProgress(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	now := time.Now()
	overdue := seedSubmission(t, db, 1, 1, models.SubmissionStatusInProgress, now.Add(-time.Minute))
	current := seedSubmission(t, db, 1, 2, models.SubmissionStatusInProgress, now.Add(time.Hour))
	done := seedSubmission(t, db, 1, 3, models.SubmissionStatusSubmitted, now.Add(-time.Minute))

	flipped, err := repo.ExpireOverdue(ctx, 1, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), flipped)

	stored, err := repo.GetByID(ctx, overdue.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusExpired, stored.Status)

	stored, err = repo.GetByID(ctx, current.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusInProgress, stored.Status)

	stored, err = repo.GetByID(ctx, done.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusSubmitted, stored.Status)
}

func TestSubmissionRepositoryListTerminalOrdersForRanking(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	now := time.Now()
	finalized := func(studentID uint, score float64, taken int64, submittedAt time.Time) models.Submission {
		s := seedSubmission(t, db, 1, studentID, models.SubmissionStatusSubmitted, now)
		s.TotalScore = score
		s.TimeTakenSecs = taken
		s.SubmittedAt = &submittedAt
		require.NoError(t, db.Save(&s).Error)
		return s
	}

	slow := finalized(1, 80, 300, now.Add(-time.Minute))
	fast := finalized(2, 80, 200, now)
	top := finalized(3, 95, 900, now)
	seedSubmission(t, db, 1, 4, models.SubmissionStatusInProgress, now.Add(time.Hour))

	ordered, err := repo.ListTerminal(ctx, 1)
	require.NoError(t, err)
	require.Len(t, ordered, 3)
	require.Equal(t, top.ID, ordered[0].ID)
	require.Equal(t, fast.ID, ordered[1].ID, "same score resolves by shorter time taken")
	require.Equal(t, slow.ID, ordered[2].ID)
}

func TestSubmissionRepositoryUpdateRanks(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	first := seedSubmission(t, db, 1, 1, models.SubmissionStatusSubmitted, time.Now())
	second := seedSubmission(t, db, 1, 2, models.SubmissionStatusSubmitted, time.Now())

	require.NoError(t, repo.UpdateRanks(ctx, map[uint]int{first.ID: 1, second.ID: 2}))

	stored, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Rank)
	require.Equal(t, 1, *stored.Rank)

	stored, err = repo.GetByID(ctx, second.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Rank)
	require.Equal(t, 2, *stored.Rank)
}

func TestSubmissionRepositoryAddTabSwitchIncrements(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	submission := seedSubmission(t, db, 1, 1, models.SubmissionStatusInProgress, time.Now().Add(time.Hour))

	require.NoError(t, repo.AddTabSwitch(ctx, submission.ID, []byte(`[{"kind":"tab_switch"}]`)))
	require.NoError(t, repo.AddTabSwitch(ctx, submission.ID, nil))

	stored, err := repo.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stored.TabSwitches)
	require.JSONEq(t, `[{"kind":"tab_switch"}]`, string(stored.SuspiciousEvents))
}
