// internal/clients/runner.go
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/t1ww/code-battle/internal/models"
)

// Sentinel outputs the execution service substitutes for a failing case.
const (
	OutputCompilationError = "[Compilation Error]"
	OutputRuntimeError     = "[Runtime Error]"
	OutputTimeout          = "[Timeout]"
)

// RunRequest is the payload for one sandboxed execution.
type RunRequest struct {
	Code      string            `json:"code"`
	TestCases []models.TestCase `json:"test_cases"`
	Language  string            `json:"language"`
	ScorePct  float64           `json:"score_pct"`
}

// RunCaseResult is one test case outcome from the sandbox.
type RunCaseResult struct {
	Passed bool   `json:"passed"`
	Output string `json:"actual_output"`
}

// RunResult is the sandbox's verdict for a submission.
type RunResult struct {
	Passed     bool            `json:"passed"`
	TotalScore float64         `json:"total_score"`
	Results    []RunCaseResult `json:"results"`
}

// RunnerClient talks to the sandboxed code execution service. Resource
// limiting is the sandbox's problem; this client only enforces a request
// deadline so a stuck run cannot pin a goroutine forever.
type RunnerClient struct {
	baseURL string
	http    *http.Client
	log     *logrus.Logger
}

func NewRunnerClient(baseURL string, log *logrus.Logger) *RunnerClient {
	return &RunnerClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
}

// Run submits code against the question's test cases.
func (c *RunnerClient) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding run request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execution service unavailable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("execution service returned %s", resp.Status)
	}

	var result RunResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding run result: %w", err)
	}
	return &result, nil
}
