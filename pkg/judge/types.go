package judge

import "time"

// Judge execution status identifiers, mirroring the remote service's codes.
const (
	StatusInQueue          = 1
	StatusProcessing       = 2
	StatusAccepted         = 3
	StatusWrongAnswer      = 4
	StatusTimeLimit        = 5
	StatusCompilationError = 6
	StatusRuntimeError     = 7
	StatusInternalError    = 13

	// StatusPollTimeout is assigned locally when the poller exhausts its
	// attempt budget without the remote reaching a terminal status. It is
	// scored as failed but logged distinctly from a code-logic failure.
	StatusPollTimeout = -1

	// StatusUnavailable is assigned locally when the remote could not be
	// reached for this test case during a batch run.
	StatusUnavailable = -2
)

// IsTerminal reports whether a remote status will not change with further
// polling.
func IsTerminal(statusID int) bool {
	return statusID >= StatusAccepted || statusID < 0
}

// ExecutionResult is the normalized outcome of one judged run.
type ExecutionResult struct {
	Token         string
	StatusID      int
	StatusName    string
	Stdout        string
	Stderr        string
	CompileOutput string
	TimeSecs      float64
	MemoryBytes   int64
	ExitCode      int
}

// Terminal reports whether this result is final.
func (r ExecutionResult) Terminal() bool {
	return IsTerminal(r.StatusID)
}

// Passed reports whether the run was accepted by the judge.
func (r ExecutionResult) Passed() bool {
	return r.StatusID == StatusAccepted
}

// Degraded reports whether the result reflects an infrastructure failure
// rather than a verdict on the submitted code.
func (r ExecutionResult) Degraded() bool {
	return r.StatusID == StatusPollTimeout || r.StatusID == StatusUnavailable || r.StatusID == StatusInternalError
}

// MemoryKB returns peak memory in kilobytes.
func (r ExecutionResult) MemoryKB() int64 {
	return r.MemoryBytes / 1024
}

// SubmissionRequest describes one source+stdin pair to judge.
type SubmissionRequest struct {
	SourceCode     string
	LanguageID     int
	Stdin          string
	ExpectedOutput string
	Limits         Limits
}

// Limits bounds a single execution on the judge side.
type Limits struct {
	CPUTime time.Duration
	Memory  int64
}

// BatchCase is one test case inside a batch run.
type BatchCase struct {
	Stdin          string
	ExpectedOutput string
}
