package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeJudge emulates the remote judge: submissions get tokens, polls step
// through queued → terminal per a scripted status sequence.
type fakeJudge struct {
	mu        sync.Mutex
	nextToken int64
	scripts   map[string][]int
	byStdin   func(stdin string) []int
	stdout    map[string]string
	failSub   bool
}

func (f *fakeJudge) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /submissions", func(w http.ResponseWriter, r *http.Request) {
		if f.failSub {
			w.WriteHeader(http.StatusBadGateway)
			return
		}

		var payload struct {
			Stdin          string `json:"stdin"`
			ExpectedOutput string `json:"expected_output"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)

		f.mu.Lock()
		token := fmt.Sprintf("tok-%d", atomic.AddInt64(&f.nextToken, 1))
		if f.byStdin != nil {
			f.scripts[token] = f.byStdin(payload.Stdin)
		}
		f.stdout[token] = payload.ExpectedOutput
		f.mu.Unlock()

		_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
	})
	mux.HandleFunc("GET /submissions/", func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(strings.SplitN(r.URL.Path, "?", 2)[0], "/submissions/")

		f.mu.Lock()
		script := f.scripts[token]
		status := StatusAccepted
		if len(script) > 0 {
			status = script[0]
			if len(script) > 1 {
				f.scripts[token] = script[1:]
			}
		}
		stdout := f.stdout[token]
		f.mu.Unlock()

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    map[string]interface{}{"id": status, "description": "scripted"},
			"stdout":    stdout,
			"time":      "0.042",
			"memory":    2048,
			"exit_code": 0,
		})
	})
	return mux
}

func newFakeJudge() *fakeJudge {
	return &fakeJudge{scripts: map[string][]int{}, stdout: map[string]string{}}
}

func newTestClient(t *testing.T, server *httptest.Server, maxPolls int) *HTTPClient {
	t.Helper()
	client, err := NewHTTPClient(Config{
		BaseURL:      server.URL,
		PollInterval: time.Millisecond,
		MaxPolls:     maxPolls,
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)
	return client
}

func TestSubmitAndPollTerminal(t *testing.T) {
	fake := newFakeJudge()
	fake.byStdin = func(string) []int { return []int{StatusInQueue, StatusProcessing, StatusAccepted} }
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := newTestClient(t, server, 10)

	token, err := client.Submit(context.Background(), SubmissionRequest{SourceCode: "print(1)", LanguageID: 71, ExpectedOutput: "1"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	result, err := client.pollUntilTerminal(context.Background(), token)
	require.NoError(t, err)
	require.True(t, result.Passed())
	require.Equal(t, 0.042, result.TimeSecs)
	require.Equal(t, int64(2048*1024), result.MemoryBytes)
	require.Equal(t, int64(2048), result.MemoryKB())
}

func TestSubmitUnavailableOnServerError(t *testing.T) {
	fake := newFakeJudge()
	fake.failSub = true
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := newTestClient(t, server, 5)

	_, err := client.Submit(context.Background(), SubmissionRequest{SourceCode: "x", LanguageID: 71})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestPollBudgetExhaustedYieldsTimeout(t *testing.T) {
	fake := newFakeJudge()
	fake.byStdin = func(string) []int { return []int{StatusProcessing} }
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := newTestClient(t, server, 3)

	token, err := client.Submit(context.Background(), SubmissionRequest{SourceCode: "loop", LanguageID: 71})
	require.NoError(t, err)

	result, err := client.pollUntilTerminal(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, StatusPollTimeout, result.StatusID)
	require.True(t, result.Terminal())
	require.True(t, result.Degraded())
	require.False(t, result.Passed())
}

func TestRunBatchIsolatesCaseFailures(t *testing.T) {
	fake := newFakeJudge()
	fake.byStdin = func(stdin string) []int {
		switch stdin {
		case "case-2":
			return []int{StatusInternalError}
		case "case-3":
			return []int{StatusWrongAnswer}
		default:
			return []int{StatusAccepted}
		}
	}
	server := httptest.NewServer(fake.handler())
	defer server.Close()

	client := newTestClient(t, server, 5)

	results := client.RunBatch(context.Background(), "code", 71, []BatchCase{
		{Stdin: "case-1", ExpectedOutput: "a"},
		{Stdin: "case-2", ExpectedOutput: "b"},
		{Stdin: "case-3", ExpectedOutput: "c"},
	}, Limits{})

	require.Len(t, results, 3)
	require.True(t, results[0].Passed())
	require.True(t, results[1].Degraded(), "judge-side error marks the case degraded")
	require.False(t, results[2].Passed())
	require.False(t, results[2].Degraded(), "wrong answer is a verdict, not degradation")
}
