package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/evalhub/assess-go-api/internal/config"
	"github.com/evalhub/assess-go-api/internal/dto"
	"github.com/evalhub/assess-go-api/internal/handler"
	"github.com/evalhub/assess-go-api/internal/models"
	"github.com/evalhub/assess-go-api/internal/repository"
	"github.com/evalhub/assess-go-api/internal/router"
	"github.com/evalhub/assess-go-api/internal/service"
	"github.com/evalhub/assess-go-api/pkg/judge"
)

// stubJudge accepts the first case and fails the rest.
type stubJudge struct{}

func (stubJudge) Submit(context.Context, judge.SubmissionRequest) (string, error) {
	return "", judge.ErrUnavailable
}

func (stubJudge) Poll(context.Context, string) (judge.ExecutionResult, error) {
	return judge.ExecutionResult{}, judge.ErrUnavailable
}

func (stubJudge) RunBatch(_ context.Context, _ string, _ int, cases []judge.BatchCase, _ judge.Limits) []judge.ExecutionResult {
	results := make([]judge.ExecutionResult, len(cases))
	for i := range cases {
		status := judge.StatusWrongAnswer
		name := "Wrong Answer"
		if i == 0 {
			status = judge.StatusAccepted
			name = "Accepted"
		}
		results[i] = judge.ExecutionResult{StatusID: status, StatusName: name}
	}
	return results
}

type nopPublisher struct{}

func (nopPublisher) PublishSubmissionFinalized(service.SubmissionFinalizedEvent) {}

type testIdentity struct {
	userID       uint
	role         string
	departmentID uint
	groups       []string
}

func setupAssessmentApp(t *testing.T, identity *testIdentity) (*fiber.App, *gorm.DB) {
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

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	assessmentRepo := repository.NewAssessmentRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)

	sessionService := service.NewSessionService(assessmentRepo, submissionRepo, logger)
	attemptService := service.NewAttemptService(assessmentRepo, submissionRepo, questionRepo, stubJudge{}, validate, logger, judge.Limits{})
	resultService := service.NewResultService(assessmentRepo, submissionRepo, nopPublisher{}, nil, time.Minute, logger)
	assessmentService := service.NewAssessmentService(assessmentRepo, questionRepo, validate, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		SessionHandler:    handler.NewSessionHandler(sessionService, attemptService, validate, logger),
		ResultHandler:     handler.NewResultHandler(resultService, logger),
		AssessmentHandler: handler.NewAssessmentHandler(assessmentService, validate, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			c.Locals("user_id", identity.userID)
			c.Locals("user_role", identity.role)
			c.Locals("department_id", identity.departmentID)
			c.Locals("user_groups", identity.groups)
			return c.Next()
		},
	})

	return app, db
}

func seedLiveAssessment(t *testing.T, db *gorm.DB) models.Assessment {
	t.Helper()

	mcq := models.Question{
		Kind:          models.QuestionKindMCQ,
		Title:         "Capital of France",
		Prompt:        "Pick the capital of France.",
		Options:       []string{"Paris", "London", "Berlin", "Madrid"},
		CorrectOption: 0,
	}
	require.NoError(t, db.Create(&mcq).Error)

	coding := models.Question{
		Kind:       models.QuestionKindCoding,
		Title:      "Sum",
		Prompt:     "Print the sum of two integers.",
		LanguageID: 71,
		TestCases: []models.TestCase{
			{Input: "1 2", ExpectedOutput: "3"},
			{Input: "5 5", ExpectedOutput: "10", IsHidden: true},
		},
	}
	require.NoError(t, db.Create(&coding).Error)

	assessment := models.Assessment{
		Title:           "Programming Midterm",
		DepartmentID:    1,
		Groups:          "CS-2024-A",
		StartTime:       time.Now().Add(-5 * time.Minute),
		DurationMinutes: 30,
		IsPublished:     true,
		IsActive:        true,
		PassingScore:    40,
		CreatedBy:       100,
		Questions: []models.AssessmentQuestion{
			{QuestionID: mcq.ID, Kind: models.QuestionKindMCQ, Points: 5, MaxAttempts: 1, Position: 1},
			{QuestionID: coding.ID, Kind: models.QuestionKindCoding, Points: 10, MaxAttempts: 3, Position: 2},
		},
	}
	assessment.RecomputeEndTime()
	require.NoError(t, db.Create(&assessment).Error)
	return assessment
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func jsonBody(t *testing.T, payload interface{}) *bytes.Buffer {
	t.Helper()
	var body bytes.Buffer
	require.NoError(t, json.NewEncoder(&body).Encode(payload))
	return &body
}

func postJSON(t *testing.T, app *fiber.App, path string, payload interface{}) *http.Response {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest("POST", path, &body)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func studentIdentity() *testIdentity {
	return &testIdentity{userID: 42, role: "student", groups: []string{"CS-2024-A"}}
}

func TestSessionEndpointsDriveAFullSitting(t *testing.T) {
	app, db := setupAssessmentApp(t, studentIdentity())
	assessment := seedLiveAssessment(t, db)
	base := "/api/v1/assessments/" + strconv.FormatUint(uint64(assessment.ID), 10)

	resp := postJSON(t, app, base+"/session", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var startResp struct {
		Success bool                     `json:"success"`
		Data    dto.SessionStartResponse `json:"data"`
	}
	decodeResponse(t, resp, &startResp)
	require.True(t, startResp.Success)
	require.NotZero(t, startResp.Data.SubmissionID)
	require.Len(t, startResp.Data.Questions, 2)
	require.Positive(t, startResp.Data.RemainingSeconds)

	var mcqID, codingID uint
	for _, question := range startResp.Data.Questions {
		switch question.Kind {
		case models.QuestionKindMCQ:
			mcqID = question.QuestionID
		case models.QuestionKindCoding:
			codingID = question.QuestionID
		}
	}

	resp = postJSON(t, app, base+"/mcq", dto.McqAnswerRequest{QuestionID: mcqID, SelectedOption: 0})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = postJSON(t, app, base+"/coding", dto.CodingAttemptRequest{
		QuestionID: codingID,
		SourceCode: "print(3)",
		LanguageID: 71,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var codingResp struct {
		Data dto.CodingAttemptResponse `json:"data"`
	}
	decodeResponse(t, resp, &codingResp)
	require.Equal(t, 1, codingResp.Data.AttemptNumber)
	require.Equal(t, 1, codingResp.Data.TotalPassed)
	require.InDelta(t, 5.0, codingResp.Data.Score, 0.001)

	resp = postJSON(t, app, base+"/integrity", dto.IntegrityEventRequest{Kind: "tab_switch"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = postJSON(t, app, base+"/finalize", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var finalResp struct {
		Data dto.StudentResultResponse `json:"data"`
	}
	decodeResponse(t, resp, &finalResp)
	require.Equal(t, models.SubmissionStatusSubmitted, finalResp.Data.Status)
	require.InDelta(t, 10.0, finalResp.Data.TotalScore, 0.001)
	require.Equal(t, "D", finalResp.Data.Grade)
}

func TestSessionStartConflictsAfterFinalize(t *testing.T) {
	app, db := setupAssessmentApp(t, studentIdentity())
	assessment := seedLiveAssessment(t, db)
	base := "/api/v1/assessments/" + strconv.FormatUint(uint64(assessment.ID), 10)

	resp := postJSON(t, app, base+"/session", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = postJSON(t, app, base+"/finalize", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = postJSON(t, app, base+"/session", nil)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestSessionEndpointsRejectNonStudents(t *testing.T) {
	app, db := setupAssessmentApp(t, &testIdentity{userID: 7, role: "teacher", departmentID: 1})
	assessment := seedLiveAssessment(t, db)

	resp := postJSON(t, app, "/api/v1/assessments/"+strconv.FormatUint(uint64(assessment.ID), 10)+"/session", nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestSessionStartUnknownAssessmentReturnsNotFound(t *testing.T) {
	app, _ := setupAssessmentApp(t, studentIdentity())

	resp := postJSON(t, app, "/api/v1/assessments/999/session", nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestListAssessmentsReturnsAccessibleOnly(t *testing.T) {
	app, db := setupAssessmentApp(t, studentIdentity())
	seedLiveAssessment(t, db)

	other := models.Assessment{
		Title:           "Other Cohort Quiz",
		DepartmentID:    1,
		Groups:          "EE-2024",
		StartTime:       time.Now().Add(-5 * time.Minute),
		DurationMinutes: 30,
		IsPublished:     true,
		IsActive:        true,
		CreatedBy:       100,
	}
	other.RecomputeEndTime()
	require.NoError(t, db.Create(&other).Error)

	req := httptest.NewRequest("GET", "/api/v1/assessments", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var listResp struct {
		Data []dto.AssessmentResponse `json:"data"`
	}
	decodeResponse(t, resp, &listResp)
	require.Len(t, listResp.Data, 1)
	require.Equal(t, "Programming Midterm", listResp.Data[0].Title)
}

func TestMcqRejectsMalformedBody(t *testing.T) {
	app, db := setupAssessmentApp(t, studentIdentity())
	assessment := seedLiveAssessment(t, db)
	base := "/api/v1/assessments/" + strconv.FormatUint(uint64(assessment.ID), 10)

	resp := postJSON(t, app, base+"/session", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	req := httptest.NewRequest("POST", base+"/mcq", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
