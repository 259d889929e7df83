package harness

import (
	"fmt"
	"os"
	"time"

	"stubcheck/internal/cache"
	"stubcheck/internal/checker"
	"stubcheck/pkg/logging"
)

// DefaultConfig returns the default execution configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:       10 * time.Minute,
		PythonVersion: "3.12",
	}
}

// Framework holds all components needed for one session, including the
// session-scoped shared cache directory.
type Framework struct {
	Runner   *Runner
	Reporter *Reporter
	Shared   *cache.SharedCache

	cacheDir string
}

// NewFramework creates a fully configured framework. The shared cache lives
// for the whole session and is torn down by Cleanup.
func NewFramework(config Config) (*Framework, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	cacheDir, err := os.MkdirTemp("", "stubcheck-shared-cache-")
	if err != nil {
		return nil, fmt.Errorf("create shared cache directory: %w", err)
	}
	shared := cache.NewSharedCache(cacheDir, config.PythonVersion)

	var invoker checker.Invoker
	if config.Daemon {
		invoker = checker.NewDaemonInvoker()
	} else {
		invoker = checker.NewBatchInvoker()
	}

	reporter := NewReporter(config.Verbose, config.ReportPath)
	runner := NewRunner(invoker, reporter, shared, config)

	return &Framework{
		Runner:   runner,
		Reporter: reporter,
		Shared:   shared,
		cacheDir: cacheDir,
	}, nil
}

// Cleanup removes the session's shared cache directory.
func (f *Framework) Cleanup() {
	if f.cacheDir == "" {
		return
	}
	if err := os.RemoveAll(f.cacheDir); err != nil {
		logging.Warn("harness", "remove shared cache directory %s: %v", f.cacheDir, err)
	}
	f.cacheDir = ""
}

// ValidateConfig validates an execution configuration.
func ValidateConfig(config Config) error {
	if config.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if config.PythonVersion == "" {
		return fmt.Errorf("python version must be set")
	}
	return nil
}
