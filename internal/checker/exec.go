package checker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"stubcheck/pkg/logging"
)

// BatchInvoker runs a fresh checker process per invocation.
type BatchInvoker struct {
	// Program is the checker executable, "mypy" by default.
	Program string
	// DefaultArgs are prepended to every derived argument list.
	DefaultArgs []string
}

// NewBatchInvoker returns an invoker that spawns one mypy process per run.
func NewBatchInvoker() *BatchInvoker {
	return &BatchInvoker{Program: "mypy"}
}

// IsDaemon always reports false for batch invocations.
func (b *BatchInvoker) IsDaemon() bool { return false }

// Invoke runs the checker once, plus a follow-up pass when requested.
func (b *BatchInvoker) Invoke(ctx context.Context, opts RunOptions) (*Result, error) {
	args := append(append([]string{}, b.DefaultArgs...), opts.Args...)
	result, err := runProgram(ctx, b.Program, args, opts)
	if err != nil {
		return nil, err
	}
	if opts.DoFollowup {
		result, err = runProgram(ctx, b.Program, args, opts)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// DaemonInvoker serves invocations through a long-lived checker daemon.
// The daemon owns its own incremental state across invocations.
type DaemonInvoker struct {
	// Program is the daemon executable, "dmypy" by default.
	Program string
	// RunArgs prefix every invocation, "run --" by default.
	RunArgs []string
}

// NewDaemonInvoker returns an invoker backed by the checker daemon.
func NewDaemonInvoker() *DaemonInvoker {
	return &DaemonInvoker{Program: "dmypy", RunArgs: []string{"run", "--"}}
}

// IsDaemon always reports true.
func (d *DaemonInvoker) IsDaemon() bool { return true }

// Invoke issues one blocking run against the daemon. Follow-up passes are
// never issued; the daemon manages its own re-analysis.
func (d *DaemonInvoker) Invoke(ctx context.Context, opts RunOptions) (*Result, error) {
	args := append(append([]string{}, d.RunArgs...), opts.Args...)
	return runProgram(ctx, d.Program, args, opts)
}

func runProgram(ctx context.Context, program string, args []string, opts RunOptions) (*Result, error) {
	args = append(append([]string{}, args...), opts.CheckPaths...)

	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Dir = opts.WorkDir
	cmd.Env = os.Environ()
	for name, value := range opts.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", name, value))
	}

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	logging.Debug("checker", "running %s %s in %s", program, strings.Join(args, " "), opts.WorkDir)

	exitCode := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("run %s: %w", program, err)
		}
		exitCode = exitErr.ExitCode()
	}

	// Exit status 0 and 1 are normal runs (1 means notices were reported);
	// anything above is the checker bailing out.
	if exitCode > 1 {
		return nil, &ExitError{
			Program: program,
			Code:    exitCode,
			Summary: lastNonEmptyLine(output.String()),
		}
	}

	notices, err := ParseNotices(strings.Split(output.String(), "\n"))
	if err != nil {
		return nil, err
	}
	if opts.IgnoreSitePackageErrors {
		notices = dropSitePackageNotices(notices)
	}

	return &Result{
		Notices:  notices,
		ExitCode: exitCode,
		Output:   output.String(),
	}, nil
}

func dropSitePackageNotices(notices []Notice) []Notice {
	kept := notices[:0]
	for _, n := range notices {
		if strings.Contains(n.Path, "site-packages") {
			continue
		}
		kept = append(kept, n)
	}
	return kept
}

func lastNonEmptyLine(output string) string {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i]
		}
	}
	return ""
}
