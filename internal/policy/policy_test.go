package policy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/evalhub/assess-go-api/internal/models"
)

func TestCanManageAssessment(t *testing.T) {
	assessment := models.Assessment{DepartmentID: 7}

	require.True(t, CanManageAssessment(Actor{Role: "admin"}, assessment))
	require.True(t, CanManageAssessment(Actor{Role: "Teacher", DepartmentID: 7}, assessment))
	require.True(t, CanManageAssessment(Actor{Role: "hod", DepartmentID: 7}, assessment))
	require.False(t, CanManageAssessment(Actor{Role: "teacher", DepartmentID: 9}, assessment))
	require.False(t, CanManageAssessment(Actor{Role: "student", DepartmentID: 7}, assessment))
}

func TestCanTakeAssessmentGroupIntersection(t *testing.T) {
	assessment := models.Assessment{Groups: "cs-2a, cs-2b"}

	require.True(t, CanTakeAssessment(Actor{Role: "student", Groups: []string{"cs-2b"}}, assessment))
	require.True(t, CanTakeAssessment(Actor{Role: "student", Groups: []string{"CS-2A"}}, assessment), "group match is case insensitive")
	require.False(t, CanTakeAssessment(Actor{Role: "student", Groups: []string{"cs-3a"}}, assessment))
	require.False(t, CanTakeAssessment(Actor{Role: "teacher", Groups: []string{"cs-2a"}}, assessment), "only students take assessments")
	require.False(t, CanTakeAssessment(Actor{Role: "student", Groups: []string{"cs-2a"}}, models.Assessment{}), "empty target set denies everyone")
}
