// Package policy centralises capability checks so role decisions are not
// scattered through services as string comparisons.
package policy

import (
	"strings"

	"github.com/evalhub/assess-go-api/internal/models"
)

// Known roles.
const (
	RoleAdmin   = "admin"
	RoleHOD     = "hod"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Actor is the authenticated principal a capability check runs against.
type Actor struct {
	ID           uint
	Role         string
	DepartmentID uint
	Groups       []string
}

func (a Actor) role() string {
	return strings.ToLower(strings.TrimSpace(a.Role))
}

// CanManageAssessment reports whether the actor may author or edit
// assessments in the assessment's department.
func CanManageAssessment(actor Actor, assessment models.Assessment) bool {
	switch actor.role() {
	case RoleAdmin:
		return true
	case RoleHOD, RoleTeacher:
		return actor.DepartmentID == assessment.DepartmentID
	default:
		return false
	}
}

// CanCreateAssessment reports whether the actor may create assessments at all.
func CanCreateAssessment(actor Actor) bool {
	switch actor.role() {
	case RoleAdmin, RoleHOD, RoleTeacher:
		return true
	default:
		return false
	}
}

// CanTakeAssessment reports whether the actor's group membership intersects
// the assessment's target groups.
func CanTakeAssessment(actor Actor, assessment models.Assessment) bool {
	if actor.role() != RoleStudent {
		return false
	}

	targets := assessment.GroupsSlice()
	if len(targets) == 0 {
		return false
	}

	member := make(map[string]struct{}, len(actor.Groups))
	for _, group := range actor.Groups {
		normalized := strings.ToLower(strings.TrimSpace(group))
		if normalized != "" {
			member[normalized] = struct{}{}
		}
	}

	for _, target := range targets {
		if _, ok := member[strings.ToLower(target)]; ok {
			return true
		}
	}
	return false
}

// CanViewLeaderboard reports whether the actor may see the full ranked view,
// including other students' identities.
func CanViewLeaderboard(actor Actor, assessment models.Assessment) bool {
	return CanManageAssessment(actor, assessment)
}
