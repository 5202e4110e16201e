package handler_test

import (
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/evalhub/assess-go-api/internal/dto"
	"github.com/evalhub/assess-go-api/internal/models"
)

func teacherIdentity() *testIdentity {
	return &testIdentity{userID: 100, role: "teacher", departmentID: 1}
}

func TestManageCreateAndPublishAssessment(t *testing.T) {
	app, db := setupAssessmentApp(t, teacherIdentity())

	question := models.Question{
		Kind:          models.QuestionKindMCQ,
		Title:         "Capital of France",
		Options:       []string{"Paris", "London"},
		CorrectOption: 0,
	}
	require.NoError(t, db.Create(&question).Error)

	resp := postJSON(t, app, "/api/v1/manage/assessments", dto.AssessmentCreateRequest{
		Title:           "Unit Quiz",
		DepartmentID:    1,
		Groups:          []string{"CS-2024-A"},
		StartTime:       time.Now().Add(24 * time.Hour),
		DurationMinutes: 45,
		Questions: []dto.ManifestEntryRequest{
			{QuestionID: question.ID, Kind: models.QuestionKindMCQ, Points: 5},
		},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var createResp struct {
		Success bool                   `json:"success"`
		Data    dto.AssessmentResponse `json:"data"`
	}
	decodeResponse(t, resp, &createResp)
	require.True(t, createResp.Success)
	require.Equal(t, models.AssessmentPhaseDraft, createResp.Data.Phase)
	require.Equal(t, 5.0, createResp.Data.TotalPoints)

	base := "/api/v1/manage/assessments/" + strconv.FormatUint(uint64(createResp.Data.ID), 10)
	resp = postJSON(t, app, base+"/publish", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var publishResp struct {
		Data dto.AssessmentResponse `json:"data"`
	}
	decodeResponse(t, resp, &publishResp)
	require.True(t, publishResp.Data.IsPublished)
	require.Equal(t, models.AssessmentPhaseUpcoming, publishResp.Data.Phase)
}

func TestManageCreateRejectsInvalidPayload(t *testing.T) {
	app, _ := setupAssessmentApp(t, teacherIdentity())

	resp := postJSON(t, app, "/api/v1/manage/assessments", dto.AssessmentCreateRequest{
		Title: "x",
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestManageUpdateLockedWhileActive(t *testing.T) {
	app, db := setupAssessmentApp(t, teacherIdentity())
	assessment := seedLiveAssessment(t, db)

	payload := map[string]interface{}{"title": "Renamed Midterm"}
	var body = httptest.NewRequest("PUT", "/api/v1/manage/assessments/"+strconv.FormatUint(uint64(assessment.ID), 10), jsonBody(t, payload))
	body.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(body, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestManageDeleteConflictsWithSubmissions(t *testing.T) {
	app, db := setupAssessmentApp(t, teacherIdentity())
	assessment := seedLiveAssessment(t, db)

	submission := models.Submission{
		AssessmentID: assessment.ID,
		StudentID:    42,
		Status:       models.SubmissionStatusInProgress,
		StartedAt:    time.Now(),
		Deadline:     time.Now().Add(30 * time.Minute),
	}
	require.NoError(t, db.Create(&submission).Error)

	req := httptest.NewRequest("DELETE", "/api/v1/manage/assessments/"+strconv.FormatUint(uint64(assessment.ID), 10), nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestManageEndpointsRejectStudents(t *testing.T) {
	app, db := setupAssessmentApp(t, studentIdentity())
	assessment := seedLiveAssessment(t, db)

	req := httptest.NewRequest("GET", "/api/v1/manage/assessments/"+strconv.FormatUint(uint64(assessment.ID), 10), nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestManageLeaderboardReturnsRankedEntries(t *testing.T) {
	app, db := setupAssessmentApp(t, teacherIdentity())
	assessment := seedLiveAssessment(t, db)

	submittedAt := time.Now()
	for i, score := range []float64{15, 10} {
		submission := models.Submission{
			AssessmentID:  assessment.ID,
			StudentID:     uint(50 + i),
			Status:        models.SubmissionStatusSubmitted,
			StartedAt:     submittedAt.Add(-20 * time.Minute),
			Deadline:      submittedAt.Add(10 * time.Minute),
			SubmittedAt:   &submittedAt,
			TimeTakenSecs: int64(600 + i),
			TotalScore:    score,
			MaxScore:      15,
		}
		require.NoError(t, db.Create(&submission).Error)
	}

	req := httptest.NewRequest("GET", "/api/v1/manage/assessments/"+strconv.FormatUint(uint64(assessment.ID), 10)+"/leaderboard", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var leaderboardResp struct {
		Data dto.LeaderboardResponse `json:"data"`
	}
	decodeResponse(t, resp, &leaderboardResp)
	require.Len(t, leaderboardResp.Data.Entries, 2)
	require.Equal(t, 1, leaderboardResp.Data.Entries[0].Rank)
	require.Equal(t, 15.0, leaderboardResp.Data.Entries[0].TotalScore)
	require.Equal(t, 2, leaderboardResp.Data.Entries[1].Rank)
}

func TestManageAssignRanksEndpoint(t *testing.T) {
	app, db := setupAssessmentApp(t, teacherIdentity())
	assessment := seedLiveAssessment(t, db)

	submittedAt := time.Now()
	submission := models.Submission{
		AssessmentID:  assessment.ID,
		StudentID:     42,
		Status:        models.SubmissionStatusSubmitted,
		StartedAt:     submittedAt.Add(-20 * time.Minute),
		Deadline:      submittedAt.Add(10 * time.Minute),
		SubmittedAt:   &submittedAt,
		TimeTakenSecs: 1200,
		TotalScore:    10,
		MaxScore:      15,
	}
	require.NoError(t, db.Create(&submission).Error)

	resp := postJSON(t, app, "/api/v1/manage/assessments/"+strconv.FormatUint(uint64(assessment.ID), 10)+"/ranks", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var stored models.Submission
	require.NoError(t, db.First(&stored, submission.ID).Error)
	require.NotNil(t, stored.Rank)
	require.Equal(t, 1, *stored.Rank)
}
