package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"stubcheck/internal/cache"
	"stubcheck/internal/checker"
	"stubcheck/internal/compiler"
	"stubcheck/internal/scenario"
	"stubcheck/pkg/logging"
)

// Runner executes compiled cases sequentially. Cases never overlap: each one
// owns its scenario directory and the shared cache is only ever touched by
// the case currently running.
type Runner struct {
	invoker  checker.Invoker
	reporter *Reporter
	shared   *cache.SharedCache
	config   Config
}

// NewRunner wires a runner from its collaborators.
func NewRunner(invoker checker.Invoker, reporter *Reporter, shared *cache.SharedCache, config Config) *Runner {
	return &Runner{
		invoker:  invoker,
		reporter: reporter,
		shared:   shared,
		config:   config,
	}
}

// RunFiles compiles every scenario file and executes the resulting case
// variants. Compilation is all-or-nothing: a shape error in any file aborts
// the run before a single case executes.
func (r *Runner) RunFiles(ctx context.Context, paths []string) (*SuiteResult, error) {
	var cases []compiler.CompiledCase
	env := compiler.DefaultSkipEnv()
	for _, path := range paths {
		docs, err := compiler.LoadFile(path)
		if err != nil {
			return nil, err
		}
		compiled, err := compiler.Compile(docs, env)
		if err != nil {
			return nil, err
		}
		cases = append(cases, compiled...)
	}

	if r.config.Case != "" {
		cases = filterCases(cases, r.config.Case)
	}

	result := &SuiteResult{
		StartTime:   time.Now(),
		TotalCases:  len(cases),
		CaseResults: make([]CaseResult, 0, len(cases)),
	}

	r.reporter.ReportStart(r.config, len(cases))

	for _, c := range cases {
		caseResult := r.runCase(ctx, c)
		result.CaseResults = append(result.CaseResults, caseResult)
		r.updateCounters(result, caseResult)
		r.reporter.ReportCaseResult(caseResult)

		if r.config.FailFast && caseResult.Outcome != OutcomePassed {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	r.reporter.ReportSuiteResult(*result)

	return result, nil
}

// runCase executes one case variant in a fresh scenario directory.
func (r *Runner) runCase(ctx context.Context, c compiler.CompiledCase) CaseResult {
	caseResult := CaseResult{
		Name:    c.TestName(),
		File:    c.File,
		Line:    c.StartingLine,
		Outcome: OutcomePassed,
	}
	start := time.Now()
	defer func() {
		caseResult.Duration = time.Since(start)
	}()

	r.reporter.ReportCaseStart(caseResult.Name)

	dir, err := os.MkdirTemp("", "stubcheck-scenario-")
	if err != nil {
		caseResult.Outcome = OutcomeError
		caseResult.Error = fmt.Sprintf("create scenario directory: %v", err)
		return caseResult
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logging.Warn("harness", "remove scenario directory %s: %v", dir, err)
		}
	}()

	state := scenario.NewState(dir)
	state.Info.SharedCache = r.shared
	state.Info.IgnoreSitePackageErrors = r.config.OnlyLocalStub

	runner := scenario.NewRunner(state, r.invoker)
	runErr := runner.Run(ctx, c)

	if err := runner.Teardown(); err != nil && runErr == nil {
		runErr = err
	}

	if runErr != nil {
		caseResult.Outcome, caseResult.Error = classify(runErr, caseResult)
	}
	return caseResult
}

// classify maps a run error onto its reporting shape. Expectation mismatches
// are rendered anchored at the case's declared line with no stack; clean
// checker exits surface only their short summary; anything else is a harness
// defect reported in full.
func classify(err error, caseResult CaseResult) (CaseOutcome, string) {
	var diffErr *checker.NoticesDiffError
	if errors.As(err, &diffErr) {
		return OutcomeFailed, fmt.Sprintf("%s:%d: %s", caseResult.File, caseResult.Line, diffErr.Error())
	}

	var exitErr *checker.ExitError
	if errors.As(err, &exitErr) {
		return OutcomeFailed, exitErr.Error()
	}

	return OutcomeError, fmt.Sprintf("%+v", err)
}

func (r *Runner) updateCounters(suite *SuiteResult, caseResult CaseResult) {
	switch caseResult.Outcome {
	case OutcomePassed:
		suite.PassedCases++
	case OutcomeFailed:
		suite.FailedCases++
	case OutcomeError:
		suite.ErrorCases++
	}
}

func filterCases(cases []compiler.CompiledCase, name string) []compiler.CompiledCase {
	var filtered []compiler.CompiledCase
	for _, c := range cases {
		if c.Case == name || c.TestName() == name {
			filtered = append(filtered, c)
		}
	}
	return filtered
}
