package models

import (
	"time"

	"gorm.io/datatypes"
)

// Question is a bank entry referenced by assessment manifests. The core
// treats the question store as read-only.
type Question struct {
	ID            uint                        `gorm:"primaryKey" json:"id"`
	Kind          string                      `gorm:"size:16;not null" json:"kind"`
	Title         string                      `gorm:"size:255;not null" json:"title"`
	Prompt        string                      `gorm:"type:text" json:"prompt"`
	Options       datatypes.JSONSlice[string] `json:"options"`
	CorrectOption int                         `gorm:"default:0" json:"correct_option"`
	LanguageID    int                         `gorm:"default:0" json:"language_id"`
	SolutionCode  string                      `gorm:"type:text" json:"solution_code"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
	TestCases     []TestCase                  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"test_cases"`
}

// TestCase is one input/expected-output pair for a coding question. Hidden
// cases keep their expected output out of student-facing views.
type TestCase struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	QuestionID     uint    `gorm:"not null;index" json:"question_id"`
	Input          string  `gorm:"type:text" json:"input"`
	ExpectedOutput string  `gorm:"type:text" json:"expected_output"`
	IsHidden       bool    `gorm:"default:false" json:"is_hidden"`
	Points         float64 `gorm:"default:0" json:"points"`
}
