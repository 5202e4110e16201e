package service

import "errors"

// Sentinel errors surfaced to handlers, which map them onto HTTP statuses.
var (
	// ErrAssessmentNotFound indicates the assessment cannot be located or is inactive.
	ErrAssessmentNotFound = errors.New("assessment not found")

	// ErrSubmissionNotFound indicates no submission exists for the requested pair.
	ErrSubmissionNotFound = errors.New("submission not found")

	// ErrForbidden indicates the actor is not entitled to the target assessment or group.
	ErrForbidden = errors.New("forbidden")

	// ErrNotAccessible indicates the assessment is unpublished or outside its time window.
	ErrNotAccessible = errors.New("assessment not accessible")

	// ErrAlreadySubmitted indicates the student has already finalized this assessment.
	ErrAlreadySubmitted = errors.New("assessment already submitted")

	// ErrNotInProgress indicates an invalid state transition was attempted.
	ErrNotInProgress = errors.New("submission not in progress")

	// ErrSessionClosed indicates a mutation arrived after the session ended.
	ErrSessionClosed = errors.New("session closed")

	// ErrAttemptLimitExceeded indicates the per-question attempt ceiling was reached.
	ErrAttemptLimitExceeded = errors.New("attempt limit exceeded")

	// ErrUnknownQuestion indicates the question is not part of the assessment manifest.
	ErrUnknownQuestion = errors.New("question not in assessment")

	// ErrJudgeUnavailable indicates the external judge could not serve the attempt.
	// Distinct from a zero score: the attempt is not consumed.
	ErrJudgeUnavailable = errors.New("judge unavailable")

	// ErrAssessmentLocked indicates an edit was attempted after the assessment went active.
	ErrAssessmentLocked = errors.New("assessment can no longer be edited")

	// ErrAssessmentHasSubmissions blocks deleting an assessment with recorded work.
	ErrAssessmentHasSubmissions = errors.New("assessment has submissions")

	// ErrResultsNotAvailable indicates results are withheld until the window closes.
	ErrResultsNotAvailable = errors.New("results not yet available")
)
