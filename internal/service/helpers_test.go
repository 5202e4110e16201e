package service

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/evalhub/assess-go-api/pkg/judge"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// scriptedJudge replays canned per-case results without touching the network.
type scriptedJudge struct {
	run func(cases []judge.BatchCase) []judge.ExecutionResult
}

func (j *scriptedJudge) Submit(ctx context.Context, req judge.SubmissionRequest) (string, error) {
	return "", judge.ErrUnavailable
}

func (j *scriptedJudge) Poll(ctx context.Context, token string) (judge.ExecutionResult, error) {
	return judge.ExecutionResult{}, judge.ErrUnavailable
}

func (j *scriptedJudge) RunBatch(ctx context.Context, sourceCode string, languageID int, cases []judge.BatchCase, limits judge.Limits) []judge.ExecutionResult {
	return j.run(cases)
}

// acceptAll marks every case accepted.
func acceptAll(cases []judge.BatchCase) []judge.ExecutionResult {
	results := make([]judge.ExecutionResult, len(cases))
	for i := range cases {
		results[i] = judge.ExecutionResult{StatusID: judge.StatusAccepted, StatusName: "Accepted", Stdout: cases[i].ExpectedOutput}
	}
	return results
}

// acceptFirstOnly passes the first case and fails the rest.
func acceptFirstOnly(cases []judge.BatchCase) []judge.ExecutionResult {
	results := make([]judge.ExecutionResult, len(cases))
	for i := range cases {
		if i == 0 {
			results[i] = judge.ExecutionResult{StatusID: judge.StatusAccepted, StatusName: "Accepted"}
			continue
		}
		results[i] = judge.ExecutionResult{StatusID: judge.StatusWrongAnswer, StatusName: "Wrong Answer"}
	}
	return results
}

// unavailableAll simulates a judge outage for the whole batch.
func unavailableAll(cases []judge.BatchCase) []judge.ExecutionResult {
	results := make([]judge.ExecutionResult, len(cases))
	for i := range cases {
		results[i] = judge.ExecutionResult{StatusID: judge.StatusUnavailable, StatusName: "Judge Unavailable"}
	}
	return results
}

// capturePublisher records finalized events in memory.
type capturePublisher struct {
	events []SubmissionFinalizedEvent
}

func (p *capturePublisher) PublishSubmissionFinalized(event SubmissionFinalizedEvent) {
	p.events = append(p.events, event)
}
