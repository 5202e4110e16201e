// Package judge wraps the external code-execution service behind a
// submit/poll client with bounded polling and batch fan-out.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	judgeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "assess",
		Subsystem: "judge",
		Name:      "execution_duration_seconds",
		Help:      "Wall time from submit to terminal status per execution",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})

	judgeTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "assess",
		Subsystem: "judge",
		Name:      "poll_timeouts_total",
		Help:      "Number of executions that exhausted the poll budget",
	})

	judgeUnavailable = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "assess",
		Subsystem: "judge",
		Name:      "unavailable_total",
		Help:      "Number of requests that failed to reach the judge",
	})
)

// ErrUnavailable indicates the judge service could not be reached or
// answered with a server error. Callers must not score this as a failed
// attempt.
var ErrUnavailable = errors.New("judge unavailable")

// Client submits code to the external judge and retrieves results.
type Client interface {
	Submit(ctx context.Context, req SubmissionRequest) (string, error)
	Poll(ctx context.Context, token string) (ExecutionResult, error)
	RunBatch(ctx context.Context, sourceCode string, languageID int, cases []BatchCase, limits Limits) []ExecutionResult
}

// Config groups judge client configuration values.
type Config struct {
	BaseURL      string
	APIKey       string
	PollInterval time.Duration
	MaxPolls     int
	HTTPTimeout  time.Duration
	Logger       zerolog.Logger
}

// HTTPClient talks to a Judge0-compatible REST API.
type HTTPClient struct {
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	maxPolls     int
	httpClient   *http.Client
	tracer       trace.Tracer
	logger       zerolog.Logger
}

// NewHTTPClient constructs a judge client from config.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("judge base url must not be empty")
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 30
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}

	return &HTTPClient{
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		pollInterval: cfg.PollInterval,
		maxPolls:     cfg.MaxPolls,
		httpClient:   &http.Client{Timeout: cfg.HTTPTimeout},
		tracer:       otel.Tracer("github.com/evalhub/assess-go-api/pkg/judge"),
		logger:       cfg.Logger.With().Str("component", "judge_client").Logger(),
	}, nil
}

type submitPayload struct {
	SourceCode     string  `json:"source_code"`
	LanguageID     int     `json:"language_id"`
	Stdin          string  `json:"stdin,omitempty"`
	ExpectedOutput string  `json:"expected_output,omitempty"`
	CPUTimeLimit   float64 `json:"cpu_time_limit,omitempty"`
	MemoryLimit    int64   `json:"memory_limit,omitempty"`
}

type submitResponse struct {
	Token string `json:"token"`
}

type pollResponse struct {
	Status struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr"`
	CompileOutput string `json:"compile_output"`
	Time          string `json:"time"`
	Memory        int64  `json:"memory"`
	ExitCode      int    `json:"exit_code"`
}

// Submit sends one source+stdin pair and returns the execution token.
func (c *HTTPClient) Submit(ctx context.Context, req SubmissionRequest) (string, error) {
	payload := submitPayload{
		SourceCode:     req.SourceCode,
		LanguageID:     req.LanguageID,
		Stdin:          req.Stdin,
		ExpectedOutput: req.ExpectedOutput,
	}
	if req.Limits.CPUTime > 0 {
		payload.CPUTimeLimit = req.Limits.CPUTime.Seconds()
	}
	if req.Limits.Memory > 0 {
		// The judge expects its memory limit in kilobytes.
		payload.MemoryLimit = req.Limits.Memory / 1024
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode submission: %w", err)
	}

	url := c.baseURL + "/submissions?base64_encoded=false&wait=false"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-Auth-Token", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		judgeUnavailable.Inc()
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		judgeUnavailable.Inc()
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("judge rejected submission: status %d", resp.StatusCode)
	}

	var decoded submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode submission response: %w", err)
	}
	if decoded.Token == "" {
		return "", fmt.Errorf("judge returned empty token")
	}

	return decoded.Token, nil
}

// Poll fetches the current state of an execution. The returned result is
// only final once Terminal() reports true.
func (c *HTTPClient) Poll(ctx context.Context, token string) (ExecutionResult, error) {
	url := c.baseURL + "/submissions/" + token + "?base64_encoded=false"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("build request: %w", err)
	}
	if c.apiKey != "" {
		httpReq.Header.Set("X-Auth-Token", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		judgeUnavailable.Inc()
		return ExecutionResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		judgeUnavailable.Inc()
		return ExecutionResult{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return ExecutionResult{}, fmt.Errorf("judge poll failed: status %d", resp.StatusCode)
	}

	var decoded pollResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return ExecutionResult{}, fmt.Errorf("decode poll response: %w", err)
	}

	timeSecs := 0.0
	if decoded.Time != "" {
		if parsed, parseErr := strconv.ParseFloat(decoded.Time, 64); parseErr == nil {
			timeSecs = parsed
		}
	}

	return ExecutionResult{
		Token:         token,
		StatusID:      decoded.Status.ID,
		StatusName:    decoded.Status.Description,
		Stdout:        decoded.Stdout,
		Stderr:        decoded.Stderr,
		CompileOutput: decoded.CompileOutput,
		TimeSecs:      timeSecs,
		MemoryBytes:   decoded.Memory * 1024,
		ExitCode:      decoded.ExitCode,
	}, nil
}

// RunBatch judges every test case concurrently and polls each execution
// independently. A failure on one case never aborts the others; failed cases
// carry a local degraded status instead.
func (c *HTTPClient) RunBatch(ctx context.Context, sourceCode string, languageID int, cases []BatchCase, limits Limits) []ExecutionResult {
	ctx, span := c.tracer.Start(ctx, "judge.run_batch")
	span.SetAttributes(
		attribute.Int("judge.language_id", languageID),
		attribute.Int("judge.case_count", len(cases)),
	)
	defer span.End()

	results := make([]ExecutionResult, len(cases))
	var wg sync.WaitGroup
	for i, testCase := range cases {
		wg.Add(1)
		go func(idx int, tc BatchCase) {
			defer wg.Done()
			results[idx] = c.runCase(ctx, SubmissionRequest{
				SourceCode:     sourceCode,
				LanguageID:     languageID,
				Stdin:          tc.Stdin,
				ExpectedOutput: tc.ExpectedOutput,
				Limits:         limits,
			})
		}(i, testCase)
	}
	wg.Wait()

	return results
}

func (c *HTTPClient) runCase(ctx context.Context, req SubmissionRequest) ExecutionResult {
	start := time.Now()

	token, err := c.Submit(ctx, req)
	if err != nil {
		c.logger.Warn().Err(err).Msg("judge submission failed")
		judgeDuration.WithLabelValues("unavailable").Observe(time.Since(start).Seconds())
		return ExecutionResult{StatusID: StatusUnavailable, StatusName: "Judge Unavailable", Stderr: err.Error()}
	}

	result, err := c.pollUntilTerminal(ctx, token)
	switch {
	case err != nil:
		c.logger.Warn().Err(err).Str("token", token).Msg("judge polling failed")
		judgeDuration.WithLabelValues("unavailable").Observe(time.Since(start).Seconds())
		return ExecutionResult{Token: token, StatusID: StatusUnavailable, StatusName: "Judge Unavailable", Stderr: err.Error()}
	case result.StatusID == StatusPollTimeout:
		judgeDuration.WithLabelValues("timeout").Observe(time.Since(start).Seconds())
	case result.Passed():
		judgeDuration.WithLabelValues("accepted").Observe(time.Since(start).Seconds())
	default:
		judgeDuration.WithLabelValues("rejected").Observe(time.Since(start).Seconds())
	}

	return result
}

func (c *HTTPClient) pollUntilTerminal(ctx context.Context, token string) (ExecutionResult, error) {
	var last ExecutionResult
	for attempt := 0; attempt < c.maxPolls; attempt++ {
		result, err := c.Poll(ctx, token)
		if err != nil {
			return ExecutionResult{}, err
		}
		if result.Terminal() {
			return result, nil
		}
		last = result

		select {
		case <-ctx.Done():
			return ExecutionResult{}, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}

	judgeTimeouts.Inc()
	c.logger.Warn().Str("token", token).Int("max_polls", c.maxPolls).Msg("judge poll budget exhausted")
	last.Token = token
	last.StatusID = StatusPollTimeout
	last.StatusName = "Poll Timeout"
	return last, nil
}
