package dto

import (
	"time"

	"github.com/evalhub/assess-go-api/internal/models"
)

// McqResultView shows a student their own MCQ outcome after finalize.
// The correct option is included only when the assessment policy allows it.
type McqResultView struct {
	QuestionID     uint `json:"question_id"`
	SelectedOption int  `json:"selected_option"`
	IsCorrect      bool `json:"is_correct"`
	CorrectOption  *int `json:"correct_option,omitempty"`
}

// CodingResultView summarises a student's best outcome for one coding question.
type CodingResultView struct {
	QuestionID    uint    `json:"question_id"`
	Attempts      int     `json:"attempts"`
	BestScore     float64 `json:"best_score"`
	Completed     bool    `json:"completed"`
	JudgeDegraded bool    `json:"judge_degraded"`
}

// StudentResultResponse is the redacted per-student result view.
type StudentResultResponse struct {
	SubmissionID  uint               `json:"submission_id"`
	AssessmentID  uint               `json:"assessment_id"`
	Status        string             `json:"status"`
	MCQScore      float64            `json:"mcq_score"`
	CodingScore   float64            `json:"coding_score"`
	TotalScore    float64            `json:"total_score"`
	MaxScore      float64            `json:"max_score"`
	Percentage    float64            `json:"percentage"`
	Grade         string             `json:"grade"`
	Passed        bool               `json:"passed"`
	Rank          *int               `json:"rank"`
	TimeTakenSecs int64              `json:"time_taken_secs"`
	SubmittedAt   *time.Time         `json:"submitted_at"`
	McqResults    []McqResultView    `json:"mcq_results,omitempty"`
	CodingResults []CodingResultView `json:"coding_results,omitempty"`
}

// LeaderboardEntry is one row of the instructor's ranked view.
type LeaderboardEntry struct {
	Rank          int        `json:"rank"`
	SubmissionID  uint       `json:"submission_id"`
	StudentID     uint       `json:"student_id"`
	TotalScore    float64    `json:"total_score"`
	Percentage    float64    `json:"percentage"`
	Grade         string     `json:"grade"`
	Passed        bool       `json:"passed"`
	TimeTakenSecs int64      `json:"time_taken_secs"`
	SubmittedAt   *time.Time `json:"submitted_at"`
	TabSwitches   int        `json:"tab_switches"`
}

// LeaderboardResponse is the full ranked view for one assessment.
type LeaderboardResponse struct {
	AssessmentID uint               `json:"assessment_id"`
	Title        string             `json:"title"`
	Entries      []LeaderboardEntry `json:"entries"`
	GeneratedAt  time.Time          `json:"generated_at"`
}

// NewLeaderboardEntry maps a ranked submission into a leaderboard row.
func NewLeaderboardEntry(model models.Submission) LeaderboardEntry {
	rank := 0
	if model.Rank != nil {
		rank = *model.Rank
	}
	return LeaderboardEntry{
		Rank:          rank,
		SubmissionID:  model.ID,
		StudentID:     model.StudentID,
		TotalScore:    model.TotalScore,
		Percentage:    model.Percentage,
		Grade:         model.Grade,
		Passed:        model.Passed,
		TimeTakenSecs: model.TimeTakenSecs,
		SubmittedAt:   model.SubmittedAt,
		TabSwitches:   model.TabSwitches,
	}
}
