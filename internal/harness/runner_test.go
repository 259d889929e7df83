package harness

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stubcheck/internal/checker"
	"stubcheck/pkg/logging"
)

func TestMain(m *testing.M) {
	logging.InitForCLI(logging.LevelError, io.Discard)
	os.Exit(m.Run())
}

// scriptedInvoker returns a different canned result for each invocation.
type scriptedInvoker struct {
	results []checker.Result
	calls   int
}

func (s *scriptedInvoker) Invoke(_ context.Context, _ checker.RunOptions) (*checker.Result, error) {
	result := s.results[s.calls%len(s.results)]
	s.calls++
	return &result, nil
}

func (s *scriptedInvoker) IsDaemon() bool { return false }

func writeScenarioFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test-cases.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunFiles_AllPass(t *testing.T) {
	path := writeScenarioFile(t, `
- case: first
  main: "x = 1"
- case: second
  main: "y = 2"
`)

	invoker := &scriptedInvoker{results: []checker.Result{{}}}
	runner := NewRunner(invoker, NewReporter(false, ""), nil, DefaultConfig())

	result, err := runner.RunFiles(context.Background(), []string{path})
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalCases)
	assert.Equal(t, 2, result.PassedCases)
	assert.Zero(t, result.FailedCases)
	assert.Zero(t, result.ErrorCases)
	assert.Equal(t, 2, invoker.calls)
}

func TestRunFiles_CompileErrorAbortsBatch(t *testing.T) {
	path := writeScenarioFile(t, `
- case: fine
  main: "x = 1"
- case: broken
  main: "y = 2"
  no_such_field: true
`)

	invoker := &scriptedInvoker{results: []checker.Result{{}}}
	runner := NewRunner(invoker, NewReporter(false, ""), nil, DefaultConfig())

	_, err := runner.RunFiles(context.Background(), []string{path})
	require.Error(t, err)
	assert.Zero(t, invoker.calls)
}

func TestRunFiles_CaseFilter(t *testing.T) {
	path := writeScenarioFile(t, `
- case: wanted
  main: "x = 1"
- case: unwanted
  main: "y = 2"
`)

	config := DefaultConfig()
	config.Case = "wanted"

	invoker := &scriptedInvoker{results: []checker.Result{{}}}
	runner := NewRunner(invoker, NewReporter(false, ""), nil, config)

	result, err := runner.RunFiles(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalCases)
	require.Len(t, result.CaseResults, 1)
	assert.Equal(t, "wanted", result.CaseResults[0].Name)
}

func TestRunFiles_FailFast(t *testing.T) {
	path := writeScenarioFile(t, `
- case: fails
  main: "x = 1"
  out: "main:1: error: never emitted"
- case: skipped_by_failfast
  main: "y = 2"
`)

	config := DefaultConfig()
	config.FailFast = true

	invoker := &scriptedInvoker{results: []checker.Result{{}}}
	runner := NewRunner(invoker, NewReporter(false, ""), nil, config)

	result, err := runner.RunFiles(context.Background(), []string{path})
	require.NoError(t, err)

	assert.Equal(t, 1, result.FailedCases)
	assert.Len(t, result.CaseResults, 1)
	assert.Equal(t, 1, invoker.calls)
}

func TestRunFiles_FailureAnchoredAtCaseLine(t *testing.T) {
	path := writeScenarioFile(t, `
- case: anchored
  main: "x = 1"
  out: "main:1: error: never emitted"
`)

	invoker := &scriptedInvoker{results: []checker.Result{{}}}
	runner := NewRunner(invoker, NewReporter(false, ""), nil, DefaultConfig())

	result, err := runner.RunFiles(context.Background(), []string{path})
	require.NoError(t, err)
	require.Len(t, result.CaseResults, 1)

	caseResult := result.CaseResults[0]
	assert.Equal(t, OutcomeFailed, caseResult.Outcome)
	// "main" key line of the authored case
	assert.Contains(t, caseResult.Error, path+":3:")
}

func TestRunFiles_JSONReport(t *testing.T) {
	path := writeScenarioFile(t, `
- case: reported
  main: "x = 1"
`)
	reportPath := filepath.Join(t.TempDir(), "report.json")

	invoker := &scriptedInvoker{results: []checker.Result{{}}}
	runner := NewRunner(invoker, NewReporter(false, reportPath), nil, DefaultConfig())

	_, err := runner.RunFiles(context.Background(), []string{path})
	require.NoError(t, err)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)

	var saved SuiteResult
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, 1, saved.TotalCases)
	require.Len(t, saved.CaseResults, 1)
	assert.Equal(t, "reported", saved.CaseResults[0].Name)
}

func TestClassify(t *testing.T) {
	caseResult := CaseResult{File: "test-x.yml", Line: 4}

	outcome, msg := classify(&checker.NoticesDiffError{Diff: "d"}, caseResult)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Contains(t, msg, "test-x.yml:4:")

	outcome, msg = classify(&checker.ExitError{Program: "mypy", Code: 2, Summary: "crash"}, caseResult)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Contains(t, msg, "crash")

	outcome, _ = classify(assert.AnError, caseResult)
	assert.Equal(t, OutcomeError, outcome)
}

func TestValidateConfig(t *testing.T) {
	config := DefaultConfig()
	assert.NoError(t, ValidateConfig(config))

	config.Timeout = -time.Second
	assert.Error(t, ValidateConfig(config))
}
