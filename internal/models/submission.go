package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission statuses. A submission is terminal once submitted or expired.
const (
	SubmissionStatusInProgress = "in_progress"
	SubmissionStatusSubmitted  = "submitted"
	SubmissionStatusExpired    = "expired"
)

// Submission is one student's session against one assessment. Created lazily
// on session start, finalized exactly once, never deleted.
type Submission struct {
	ID           uint `gorm:"primaryKey" json:"id"`
	AssessmentID uint `gorm:"not null;uniqueIndex:idx_submission_student" json:"assessment_id"`
	StudentID    uint `gorm:"not null;uniqueIndex:idx_submission_student" json:"student_id"`

	Status        string     `gorm:"size:32;not null" json:"status"`
	StartedAt     time.Time  `gorm:"not null" json:"started_at"`
	Deadline      time.Time  `gorm:"not null" json:"deadline"`
	SubmittedAt   *time.Time `json:"submitted_at"`
	TimeTakenSecs int64      `gorm:"default:0" json:"time_taken_secs"`

	MCQScore    float64 `gorm:"default:0" json:"mcq_score"`
	CodingScore float64 `gorm:"default:0" json:"coding_score"`
	TotalScore  float64 `gorm:"default:0" json:"total_score"`
	MaxScore    float64 `gorm:"default:0" json:"max_score"`
	Percentage  float64 `gorm:"default:0" json:"percentage"`
	Grade       string  `gorm:"size:4" json:"grade"`
	Passed      bool    `gorm:"default:false" json:"passed"`
	Rank        *int    `json:"rank"`

	TabSwitches      int            `gorm:"default:0" json:"tab_switches"`
	SuspiciousEvents datatypes.JSON `json:"suspicious_events"`
	IPAddress        string         `gorm:"size:64" json:"ip_address"`
	UserAgent        string         `gorm:"size:512" json:"user_agent"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Assessment     Assessment      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"assessment"`
	McqAnswers     []McqAnswer     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"mcq_answers"`
	CodingAttempts []CodingAttempt `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"coding_attempts"`
}

// IsTerminal reports whether the submission can no longer be mutated.
func (s Submission) IsTerminal() bool {
	return s.Status == SubmissionStatusSubmitted || s.Status == SubmissionStatusExpired
}

// DeadlinePassed reports whether the student-local deadline has elapsed.
func (s Submission) DeadlinePassed(now time.Time) bool {
	return now.After(s.Deadline)
}

// McqAnswer holds the latest effective answer for one MCQ question.
// Upsert semantics: a re-answer overwrites, AttemptCount records how often.
type McqAnswer struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SubmissionID   uint      `gorm:"not null;uniqueIndex:idx_mcq_answer_question" json:"submission_id"`
	QuestionID     uint      `gorm:"not null;uniqueIndex:idx_mcq_answer_question" json:"question_id"`
	SelectedOption int       `gorm:"not null" json:"selected_option"`
	OriginalOption int       `gorm:"not null" json:"original_option"`
	IsCorrect      bool      `gorm:"default:false" json:"is_correct"`
	AttemptCount   int       `gorm:"default:1" json:"attempt_count"`
	AnsweredAt     time.Time `gorm:"not null" json:"answered_at"`
}

// CodingAttempt is one judged run of student code against a coding question's
// test cases. The (submission, question, attempt_number) triple is unique so
// concurrent appends cannot exceed the attempt ceiling.
type CodingAttempt struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	SubmissionID   uint           `gorm:"not null;uniqueIndex:idx_coding_attempt_number" json:"submission_id"`
	QuestionID     uint           `gorm:"not null;uniqueIndex:idx_coding_attempt_number" json:"question_id"`
	AttemptNumber  int            `gorm:"not null;uniqueIndex:idx_coding_attempt_number" json:"attempt_number"`
	SourceCode     string         `gorm:"type:text;not null" json:"source_code"`
	LanguageID     int            `gorm:"not null" json:"language_id"`
	ExecutionID    string         `gorm:"size:64" json:"execution_id"`
	TestResults    datatypes.JSON `json:"test_results"`
	TotalPassed    int            `gorm:"default:0" json:"total_passed"`
	TotalTestCases int            `gorm:"default:0" json:"total_test_cases"`
	Score          float64        `gorm:"default:0" json:"score"`
	JudgeDegraded  bool           `gorm:"default:false" json:"judge_degraded"`
	SubmittedAt    time.Time      `gorm:"not null" json:"submitted_at"`
}

// AllPassed reports whether every test case passed on this attempt.
func (a CodingAttempt) AllPassed() bool {
	return a.TotalTestCases > 0 && a.TotalPassed == a.TotalTestCases
}
