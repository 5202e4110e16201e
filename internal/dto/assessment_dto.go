package dto

import (
	"time"

	"github.com/evalhub/assess-go-api/internal/models"
)

// ManifestEntryRequest references one question with its points and attempt cap.
type ManifestEntryRequest struct {
	QuestionID  uint    `json:"question_id" validate:"required,gt=0"`
	Kind        string  `json:"kind" validate:"required,oneof=mcq coding"`
	Points      float64 `json:"points" validate:"required,gt=0"`
	MaxAttempts int     `json:"max_attempts" validate:"omitempty,gte=1"`
}

// AssessmentCreateRequest creates a draft assessment.
type AssessmentCreateRequest struct {
	Title           string                 `json:"title" validate:"required,min=3,max=255"`
	Description     string                 `json:"description"`
	DepartmentID    uint                   `json:"department_id" validate:"required,gt=0"`
	Groups          []string               `json:"groups" validate:"required,min=1,dive,required"`
	StartTime       time.Time              `json:"start_time" validate:"required"`
	DurationMinutes int                    `json:"duration_minutes" validate:"required,gt=0"`
	Questions       []ManifestEntryRequest `json:"questions" validate:"omitempty,dive"`

	ShuffleQuestions       bool    `json:"shuffle_questions"`
	ShuffleOptions         bool    `json:"shuffle_options"`
	ShowResultsImmediately bool    `json:"show_results_immediately"`
	AllowLateSubmission    bool    `json:"allow_late_submission"`
	ShowCorrectAnswers     bool    `json:"show_correct_answers"`
	PreventTabSwitch       bool    `json:"prevent_tab_switch"`
	NegativeMarking        bool    `json:"negative_marking"`
	NegativeMarkingValue   float64 `json:"negative_marking_value" validate:"omitempty,gte=0"`
	PassingScore           float64 `json:"passing_score" validate:"omitempty,gte=0,lte=100"`
}

// AssessmentUpdateRequest edits a draft or upcoming assessment.
type AssessmentUpdateRequest struct {
	Title           *string                `json:"title" validate:"omitempty,min=3,max=255"`
	Description     *string                `json:"description"`
	Groups          []string               `json:"groups" validate:"omitempty,min=1,dive,required"`
	StartTime       *time.Time             `json:"start_time"`
	DurationMinutes *int                   `json:"duration_minutes" validate:"omitempty,gt=0"`
	Questions       []ManifestEntryRequest `json:"questions" validate:"omitempty,dive"`

	ShuffleQuestions       *bool    `json:"shuffle_questions"`
	ShuffleOptions         *bool    `json:"shuffle_options"`
	ShowResultsImmediately *bool    `json:"show_results_immediately"`
	AllowLateSubmission    *bool    `json:"allow_late_submission"`
	ShowCorrectAnswers     *bool    `json:"show_correct_answers"`
	PreventTabSwitch       *bool    `json:"prevent_tab_switch"`
	NegativeMarking        *bool    `json:"negative_marking"`
	NegativeMarkingValue   *float64 `json:"negative_marking_value" validate:"omitempty,gte=0"`
	PassingScore           *float64 `json:"passing_score" validate:"omitempty,gte=0,lte=100"`
}

// AssessmentResponse is the instructor view of an assessment.
type AssessmentResponse struct {
	ID              uint      `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	DepartmentID    uint      `json:"department_id"`
	Groups          []string  `json:"groups"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	EndTime         time.Time `json:"end_time"`
	Phase           string    `json:"phase"`
	IsPublished     bool      `json:"is_published"`
	TotalPoints     float64   `json:"total_points"`
	QuestionCount   int       `json:"question_count"`

	ShuffleQuestions       bool    `json:"shuffle_questions"`
	ShuffleOptions         bool    `json:"shuffle_options"`
	ShowResultsImmediately bool    `json:"show_results_immediately"`
	AllowLateSubmission    bool    `json:"allow_late_submission"`
	ShowCorrectAnswers     bool    `json:"show_correct_answers"`
	PreventTabSwitch       bool    `json:"prevent_tab_switch"`
	NegativeMarking        bool    `json:"negative_marking"`
	NegativeMarkingValue   float64 `json:"negative_marking_value"`
	PassingScore           float64 `json:"passing_score"`

	CreatedBy uint      `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAssessmentResponse converts an Assessment model into a DTO. Phase is
// computed against the supplied clock, never read from storage.
func NewAssessmentResponse(model models.Assessment, now time.Time) AssessmentResponse {
	return AssessmentResponse{
		ID:              model.ID,
		Title:           model.Title,
		Description:     model.Description,
		DepartmentID:    model.DepartmentID,
		Groups:          model.GroupsSlice(),
		StartTime:       model.StartTime,
		DurationMinutes: model.DurationMinutes,
		EndTime:         model.EndTime,
		Phase:           model.Phase(now),
		IsPublished:     model.IsPublished,
		TotalPoints:     model.TotalPoints(),
		QuestionCount:   len(model.Questions),

		ShuffleQuestions:       model.ShuffleQuestions,
		ShuffleOptions:         model.ShuffleOptions,
		ShowResultsImmediately: model.ShowResultsImmediately,
		AllowLateSubmission:    model.AllowLateSubmission,
		ShowCorrectAnswers:     model.ShowCorrectAnswers,
		PreventTabSwitch:       model.PreventTabSwitch,
		NegativeMarking:        model.NegativeMarking,
		NegativeMarkingValue:   model.NegativeMarkingValue,
		PassingScore:           model.PassingScore,

		CreatedBy: model.CreatedBy,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}
