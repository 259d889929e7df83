// Package checker defines the boundary to the external type-checker process:
// the invoker interface, the structured notices it produces, and the
// comparison of observed notices against a case's expectations.
package checker

import (
	"context"
	"fmt"
)

// Severity is the diagnostic severity reported by the checker.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityNote    Severity = "note"
	SeverityWarning Severity = "warning"
)

// Notice is one structured diagnostic produced by the checker.
type Notice struct {
	Path     string   `json:"path"`
	Line     int      `json:"line"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// String renders the notice in the checker's own output shape.
func (n Notice) String() string {
	return fmt.Sprintf("%s:%d: %s: %s", n.Path, n.Line, n.Severity, n.Message)
}

// RunOptions describe one checker invocation.
type RunOptions struct {
	// WorkDir is the scenario's working directory.
	WorkDir string
	// Args is the final derived argument list, cache-dir handling included.
	Args []string
	// Env holds environment variable overrides applied on top of the
	// ambient environment.
	Env map[string]string
	// CheckPaths are the analysis entry points.
	CheckPaths []string
	// DoFollowup requests an automatic second pass after the first run.
	DoFollowup bool
	// IgnoreSitePackageErrors drops notices that originate from
	// third-party installed packages.
	IgnoreSitePackageErrors bool
}

// Result is the structured outcome of one checker invocation.
type Result struct {
	Notices  []Notice
	ExitCode int
	// Output is the raw combined stdout/stderr, kept for failure rendering.
	Output string
}

// Invoker runs the external checker process and returns its notices.
type Invoker interface {
	Invoke(ctx context.Context, opts RunOptions) (*Result, error)
	// IsDaemon reports whether invocations are served by a long-lived
	// process that manages its own incremental state.
	IsDaemon() bool
}

// ExitError reports that the checker process terminated abnormally. The
// process has already explained itself on its own output, so callers surface
// only the short summary, never a stack.
type ExitError struct {
	Program string
	Code    int
	Summary string
}

func (e *ExitError) Error() string {
	if e.Summary != "" {
		return fmt.Sprintf("%s exited with status %d: %s", e.Program, e.Code, e.Summary)
	}
	return fmt.Sprintf("%s exited with status %d", e.Program, e.Code)
}
