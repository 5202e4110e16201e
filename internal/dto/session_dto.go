package dto

import (
	"time"

	"github.com/evalhub/assess-go-api/internal/models"
)

// TestCaseView is the student-visible slice of a test case. Hidden cases
// never expose their expected output.
type TestCaseView struct {
	ID             uint    `json:"id"`
	Input          string  `json:"input,omitempty"`
	ExpectedOutput string  `json:"expected_output,omitempty"`
	IsHidden       bool    `json:"is_hidden"`
	Points         float64 `json:"points"`
}

// QuestionView is the student-visible form of a manifest question. Solution
// code and correct answers are stripped; options may be shuffled per policy.
type QuestionView struct {
	QuestionID  uint           `json:"question_id"`
	Kind        string         `json:"kind"`
	Title       string         `json:"title"`
	Prompt      string         `json:"prompt"`
	Points      float64        `json:"points"`
	MaxAttempts int            `json:"max_attempts"`
	Options     []string       `json:"options,omitempty"`
	LanguageID  int            `json:"language_id,omitempty"`
	TestCases   []TestCaseView `json:"test_cases,omitempty"`
}

// SessionStartResponse is returned when a student starts or resumes a session.
type SessionStartResponse struct {
	SubmissionID     uint           `json:"submission_id"`
	AssessmentID     uint           `json:"assessment_id"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	StartedAt        time.Time      `json:"started_at"`
	Deadline         time.Time      `json:"deadline"`
	RemainingSeconds int64          `json:"remaining_seconds"`
	PreventTabSwitch bool           `json:"prevent_tab_switch"`
	Questions        []QuestionView `json:"questions"`
}

// McqAnswerRequest records one MCQ selection.
type McqAnswerRequest struct {
	QuestionID     uint `json:"question_id" validate:"required,gt=0"`
	SelectedOption int  `json:"selected_option" validate:"gte=0"`
}

// McqAnswerResponse acknowledges a recorded MCQ answer without revealing
// correctness before finalize.
type McqAnswerResponse struct {
	QuestionID     uint      `json:"question_id"`
	SelectedOption int       `json:"selected_option"`
	AttemptCount   int       `json:"attempt_count"`
	AnsweredAt     time.Time `json:"answered_at"`
}

// CodingAttemptRequest submits code for one coding question.
type CodingAttemptRequest struct {
	QuestionID uint   `json:"question_id" validate:"required,gt=0"`
	SourceCode string `json:"source_code" validate:"required,min=1"`
	LanguageID int    `json:"language_id" validate:"required,gt=0"`
}

// TestCaseRun is the outcome of one test case within a coding attempt.
// Hidden cases omit expected and actual outputs.
type TestCaseRun struct {
	TestCaseID    uint    `json:"test_case_id"`
	Passed        bool    `json:"passed"`
	IsHidden      bool    `json:"is_hidden"`
	StatusName    string  `json:"status_name"`
	Stdout        string  `json:"stdout,omitempty"`
	Stderr        string  `json:"stderr,omitempty"`
	CompileOutput string  `json:"compile_output,omitempty"`
	TimeSecs      float64 `json:"time_secs"`
	MemoryKB      int64   `json:"memory_kb"`
	JudgeDegraded bool    `json:"judge_degraded"`
}

// CodingAttemptResponse summarises one judged attempt.
type CodingAttemptResponse struct {
	QuestionID     uint          `json:"question_id"`
	AttemptNumber  int           `json:"attempt_number"`
	MaxAttempts    int           `json:"max_attempts"`
	ExecutionID    string        `json:"execution_id"`
	TotalPassed    int           `json:"total_passed"`
	TotalTestCases int           `json:"total_test_cases"`
	Score          float64       `json:"score"`
	JudgeDegraded  bool          `json:"judge_degraded"`
	Completed      bool          `json:"completed"`
	SubmittedAt    time.Time     `json:"submitted_at"`
	TestResults    []TestCaseRun `json:"test_results"`
}

// IntegrityEventRequest records a proctoring signal from the client.
type IntegrityEventRequest struct {
	Kind   string `json:"kind" validate:"required,oneof=tab_switch window_blur fullscreen_exit copy_paste"`
	Detail string `json:"detail" validate:"omitempty,max=512"`
}

// NewTestCaseView redacts a test case for student consumption.
func NewTestCaseView(tc models.TestCase) TestCaseView {
	view := TestCaseView{
		ID:       tc.ID,
		IsHidden: tc.IsHidden,
		Points:   tc.Points,
	}
	if !tc.IsHidden {
		view.Input = tc.Input
		view.ExpectedOutput = tc.ExpectedOutput
	}
	return view
}
