package models

import (
	"strings"
	"time"
)

// Assessment phases derived from the clock; only draft/published are stored.
const (
	AssessmentPhaseDraft     = "draft"
	AssessmentPhaseUpcoming  = "upcoming"
	AssessmentPhaseActive    = "active"
	AssessmentPhaseCompleted = "completed"
)

// Question kinds referenced by the assessment manifest.
const (
	QuestionKindMCQ    = "mcq"
	QuestionKindCoding = "coding"
)

// Assessment represents a timed, group-scoped exam authored by an instructor.
type Assessment struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Title           string    `gorm:"size:255;not null" json:"title"`
	Description     string    `gorm:"type:text" json:"description"`
	DepartmentID    uint      `gorm:"not null" json:"department_id"`
	Groups          string    `gorm:"type:text;not null" json:"groups"`
	StartTime       time.Time `gorm:"not null" json:"start_time"`
	DurationMinutes int       `gorm:"not null" json:"duration_minutes"`
	EndTime         time.Time `gorm:"not null" json:"end_time"`
	IsPublished     bool      `gorm:"default:false" json:"is_published"`
	IsActive        bool      `gorm:"default:true" json:"is_active"`

	ShuffleQuestions       bool    `gorm:"default:false" json:"shuffle_questions"`
	ShuffleOptions         bool    `gorm:"default:false" json:"shuffle_options"`
	ShowResultsImmediately bool    `gorm:"default:false" json:"show_results_immediately"`
	AllowLateSubmission    bool    `gorm:"default:false" json:"allow_late_submission"`
	ShowCorrectAnswers     bool    `gorm:"default:false" json:"show_correct_answers"`
	PreventTabSwitch       bool    `gorm:"default:false" json:"prevent_tab_switch"`
	NegativeMarking        bool    `gorm:"default:false" json:"negative_marking"`
	NegativeMarkingValue   float64 `gorm:"default:0" json:"negative_marking_value"`
	PassingScore           float64 `gorm:"default:40" json:"passing_score"`

	CreatedBy uint                 `gorm:"not null" json:"created_by"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
	Questions []AssessmentQuestion `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"questions"`
}

// AssessmentQuestion is one manifest entry: a question reference with its
// point value and attempt ceiling, ordered by Position.
type AssessmentQuestion struct {
	ID           uint     `gorm:"primaryKey" json:"id"`
	AssessmentID uint     `gorm:"not null;index" json:"assessment_id"`
	QuestionID   uint     `gorm:"not null" json:"question_id"`
	Kind         string   `gorm:"size:16;not null" json:"kind"`
	Points       float64  `gorm:"not null" json:"points"`
	MaxAttempts  int      `gorm:"default:1" json:"max_attempts"`
	Position     int      `gorm:"not null" json:"position"`
	Question     Question `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"question"`
}

// RecomputeEndTime keeps EndTime consistent with StartTime and duration.
// Call whenever either field changes.
func (a *Assessment) RecomputeEndTime() {
	a.EndTime = a.StartTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Phase computes the lifecycle phase from the clock. Never stored.
func (a Assessment) Phase(now time.Time) string {
	if !a.IsPublished {
		return AssessmentPhaseDraft
	}
	if now.Before(a.StartTime) {
		return AssessmentPhaseUpcoming
	}
	if now.After(a.EndTime) {
		return AssessmentPhaseCompleted
	}
	return AssessmentPhaseActive
}

// IsAccessible reports whether a student may start or continue a session now.
func (a Assessment) IsAccessible(now time.Time) bool {
	if !a.IsPublished || !a.IsActive {
		return false
	}
	switch a.Phase(now) {
	case AssessmentPhaseActive:
		return true
	case AssessmentPhaseCompleted:
		return a.AllowLateSubmission
	default:
		return false
	}
}

// GroupsSlice returns the target groups as a slice of strings.
func (a Assessment) GroupsSlice() []string {
	if a.Groups == "" {
		return nil
	}

	parts := strings.Split(a.Groups, ",")
	groups := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			groups = append(groups, trimmed)
		}
	}
	return groups
}

// TotalPoints sums the manifest point values across both question kinds.
func (a Assessment) TotalPoints() float64 {
	total := 0.0
	for _, q := range a.Questions {
		total += q.Points
	}
	return total
}

// ManifestEntry returns the manifest row for a question, if present.
func (a Assessment) ManifestEntry(questionID uint) (AssessmentQuestion, bool) {
	for _, q := range a.Questions {
		if q.QuestionID == questionID {
			return q, true
		}
	}
	return AssessmentQuestion{}, false
}
