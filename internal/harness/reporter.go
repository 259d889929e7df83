package harness

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"stubcheck/pkg/logging"
)

const timeRounding = time.Millisecond

// Reporter writes run progress to the console and, optionally, a JSON
// report to disk.
type Reporter struct {
	verbose    bool
	reportPath string
}

// NewReporter creates a reporter.
func NewReporter(verbose bool, reportPath string) *Reporter {
	return &Reporter{verbose: verbose, reportPath: reportPath}
}

// ReportStart is called when execution begins.
func (r *Reporter) ReportStart(config Config, total int) {
	fmt.Printf("🧪 Running %d case(s)\n", total)

	if r.verbose {
		fmt.Printf("⚙️  Configuration:\n")
		fmt.Printf("   • Case filter: %s\n", stringOrDefault(config.Case, "all"))
		fmt.Printf("   • Fail fast: %t\n", config.FailFast)
		fmt.Printf("   • Daemon mode: %t\n", config.Daemon)
		fmt.Printf("   • Timeout: %v\n", config.Timeout)
		if config.ReportPath != "" {
			fmt.Printf("   • Report path: %s\n", config.ReportPath)
		}
		fmt.Printf("\n")
	}
}

// ReportCaseStart is called when a case begins.
func (r *Reporter) ReportCaseStart(name string) {
	if r.verbose {
		fmt.Printf("🎯 %s\n", name)
	}
}

// ReportCaseResult is called when a case completes.
func (r *Reporter) ReportCaseResult(result CaseResult) {
	symbol := outcomeSymbol(result.Outcome)

	if r.verbose {
		fmt.Printf("%s %s (%v)\n", symbol, result.Name, result.Duration)
	} else {
		fmt.Printf("%s %s\n", symbol, result.Name)
	}

	if result.Error != "" {
		for _, line := range strings.Split(strings.TrimRight(result.Error, "\n"), "\n") {
			fmt.Printf("   %s\n", line)
		}
	}
}

// ReportSuiteResult is called when the whole run completes.
func (r *Reporter) ReportSuiteResult(result SuiteResult) {
	fmt.Printf("\n📊 Results: %d passed, %d failed, %d errors (of %d) in %v\n",
		result.PassedCases, result.FailedCases, result.ErrorCases,
		result.TotalCases, result.Duration.Round(timeRounding))

	if r.reportPath != "" {
		if err := r.saveReport(result); err != nil {
			logging.Error("reporter", err, "save report to %s", r.reportPath)
		} else if r.verbose {
			fmt.Printf("📄 Report saved to %s\n", r.reportPath)
		}
	}
}

func (r *Reporter) saveReport(result SuiteResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(r.reportPath, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func outcomeSymbol(outcome CaseOutcome) string {
	switch outcome {
	case OutcomePassed:
		return "✅"
	case OutcomeFailed:
		return "❌"
	case OutcomeError:
		return "💥"
	default:
		return "❓"
	}
}

func stringOrDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
