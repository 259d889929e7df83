// Package harness orchestrates a whole run: it compiles scenario files,
// executes every compiled case variant in isolation, and reports results.
package harness

import "time"

// CaseOutcome represents the outcome of one executed case variant.
type CaseOutcome string

const (
	// OutcomePassed indicates the case passed.
	OutcomePassed CaseOutcome = "PASSED"
	// OutcomeFailed indicates an expectation mismatch or a clean checker
	// failure.
	OutcomeFailed CaseOutcome = "FAILED"
	// OutcomeError indicates a defect in the harness itself.
	OutcomeError CaseOutcome = "ERROR"
)

// Config defines the overall execution configuration.
type Config struct {
	// Timeout is the overall execution timeout.
	Timeout time.Duration `yaml:"timeout"`
	// Case filters execution to matching case names.
	Case string `yaml:"case,omitempty"`
	// FailFast stops execution on first failure.
	FailFast bool `yaml:"fail_fast"`
	// Verbose enables detailed output.
	Verbose bool `yaml:"verbose"`
	// Debug enables debug logging.
	Debug bool `yaml:"debug"`
	// Daemon serves invocations through the checker daemon instead of a
	// fresh process per case.
	Daemon bool `yaml:"daemon"`
	// OnlyLocalStub makes the checker ignore diagnostics originating from
	// third-party installed packages.
	OnlyLocalStub bool `yaml:"only_local_stub"`
	// PythonVersion is the checker runtime's major.minor version, used as
	// the shared-cache key segment.
	PythonVersion string `yaml:"python_version"`
	// ReportPath is the path to save a detailed JSON report.
	ReportPath string `yaml:"report_path,omitempty"`
}

// CaseResult is the result of one executed case variant.
type CaseResult struct {
	// Name is the externally visible case identifier.
	Name string `json:"name"`
	// File and Line anchor the case in its scenario file.
	File string `json:"file"`
	Line int    `json:"line"`

	Outcome  CaseOutcome   `json:"outcome"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// SuiteResult is the overall result of one run.
type SuiteResult struct {
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	TotalCases  int `json:"total_cases"`
	PassedCases int `json:"passed_cases"`
	FailedCases int `json:"failed_cases"`
	ErrorCases  int `json:"error_cases"`

	CaseResults []CaseResult `json:"case_results"`
}
