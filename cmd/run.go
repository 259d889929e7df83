package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"stubcheck/internal/harness"
	"stubcheck/pkg/logging"
)

var (
	runTimeout       time.Duration
	runVerbose       bool
	runDebug         bool
	runCase          string
	runReportPath    string
	runFailFast      bool
	runDaemon        bool
	runOnlyLocalStub bool
	runPythonVersion string
	runWatch         bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [scenario files...]",
	Short: "Compile and execute scenario files against the type checker",
	Long: `The run command compiles declarative YAML scenario files into concrete
type-checker invocations and verifies each case's diagnostics against its
expected output.

Each case gets a clean, isolated working directory. Parametrized cases are
expanded into one variant per parameter mapping, and skip predicates are
evaluated at compile time.

Caching modes per case:
- default: the session-wide shared cache directory is used and the entries
  a case touched are evicted when it finishes
- disable_cache: the case runs non-incremental against a null cache target

Example usage:
  stubcheck run tests/test-basic.yml        # Run one scenario file
  stubcheck run tests/                      # Run every scenario file in a directory
  stubcheck run --case=foo tests/           # Run a single case by name
  stubcheck run --daemon tests/             # Serve invocations through dmypy
  stubcheck run --fail-fast --verbose tests # Stop on first failure
  stubcheck run --watch tests/              # Re-run when scenario files change`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	// Execution configuration
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 10*time.Minute, "Overall execution timeout")
	runCmd.Flags().StringVar(&runPythonVersion, "python-version", "3.12", "Checker runtime major.minor version (shared cache key)")

	// Output and debugging
	runCmd.Flags().BoolVar(&runVerbose, "verbose", false, "Enable verbose output")
	runCmd.Flags().BoolVar(&runDebug, "debug", false, "Enable debug logging")

	// Case selection and reporting
	runCmd.Flags().StringVar(&runCase, "case", "", "Run a specific case by name")
	runCmd.Flags().StringVar(&runReportPath, "report", "", "Path to save a detailed JSON report (default: stdout only)")

	// Execution control
	runCmd.Flags().BoolVar(&runFailFast, "fail-fast", false, "Stop execution on first failure")
	runCmd.Flags().BoolVar(&runDaemon, "daemon", false, "Serve invocations through the checker daemon")
	runCmd.Flags().BoolVar(&runOnlyLocalStub, "only-local-stub", false, "Ignore diagnostics from third-party installed packages")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "Watch scenario files and re-run on change")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle interrupts gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, stopping...")
		cancel()
	}()

	level := logging.LevelWarn
	if runDebug {
		level = logging.LevelDebug
	}
	logging.InitForCLI(level, os.Stderr)

	paths, err := collectScenarioFiles(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Printf("⚠️  No scenario files found\n")
		fmt.Printf("💡 Scenario files are YAML lists named test-*.yml or test_*.yaml\n")
		return nil
	}

	config := harness.Config{
		Timeout:       runTimeout,
		Case:          runCase,
		FailFast:      runFailFast,
		Verbose:       runVerbose,
		Debug:         runDebug,
		Daemon:        runDaemon,
		OnlyLocalStub: runOnlyLocalStub,
		PythonVersion: runPythonVersion,
		ReportPath:    runReportPath,
	}

	framework, err := harness.NewFramework(config)
	if err != nil {
		return fmt.Errorf("create harness: %w", err)
	}
	defer framework.Cleanup()

	if runWatch {
		return watchAndRun(ctx, framework, config, paths)
	}

	timeoutCtx, timeoutCancel := context.WithTimeout(ctx, runTimeout)
	defer timeoutCancel()

	result, err := framework.Runner.RunFiles(timeoutCtx, paths)
	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}

	if result.FailedCases > 0 || result.ErrorCases > 0 {
		os.Exit(1)
	}
	return nil
}

// collectScenarioFiles expands each argument into scenario files. Directory
// arguments contribute every test-*.yml / test_*.yaml file they contain.
func collectScenarioFiles(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("read directory %s: %w", arg, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if isScenarioFile(entry.Name()) {
				paths = append(paths, filepath.Join(arg, entry.Name()))
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func isScenarioFile(name string) bool {
	ext := filepath.Ext(name)
	if ext != ".yml" && ext != ".yaml" {
		return false
	}
	base := filepath.Base(name)
	return len(base) > 5 && (base[:5] == "test-" || base[:5] == "test_")
}

// watchAndRun executes the scenario files once, then re-runs them whenever
// one changes on disk.
func watchAndRun(ctx context.Context, framework *harness.Framework, config harness.Config, paths []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	watched := map[string]bool{}
	for _, path := range paths {
		dir := filepath.Dir(path)
		if watched[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		watched[dir] = true
	}

	runOnce := func() {
		runCtx, runCancel := context.WithTimeout(ctx, config.Timeout)
		defer runCancel()
		if _, err := framework.Runner.RunFiles(runCtx, paths); err != nil {
			fmt.Printf("❌ %v\n", err)
		}
	}

	runOnce()
	fmt.Printf("👀 Watching %d scenario file(s) for changes...\n", len(paths))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !isScenarioFile(event.Name) {
				continue
			}
			fmt.Printf("🔄 %s changed, re-running\n", event.Name)
			runOnce()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn("watch", "watcher error: %v", err)
		}
	}
}
