package checker

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/go-cmp/cmp"
)

// noticeLine matches the checker's "path:line: severity: message" shape.
var noticeLine = regexp.MustCompile(`^([^:\s][^:]*):(\d+): (error|note|warning): (.*)$`)

// AugmentExpected amends each expected-output line's leading path segment to
// carry the source extension. Authors write "main:5: error: bad"; the checker
// reports "main.py:5: error: bad". Lines without a colon pass through.
func AugmentExpected(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, ":") {
			first := strings.SplitN(line, ":", 2)[0]
			if !strings.HasSuffix(first, ".py") {
				line = strings.Replace(line, first, first+".py", 1)
			}
		}
		lines = append(lines, line)
	}
	return lines
}

// ParseNotices parses checker output lines into structured notices.
// Lines that do not carry the notice shape (blank lines, summary lines) are
// ignored.
func ParseNotices(lines []string) ([]Notice, error) {
	var notices []Notice
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := noticeLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		lineno, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, fmt.Errorf("parse notice line %q: %w", line, err)
		}
		notices = append(notices, Notice{
			Path:     m[1],
			Line:     lineno,
			Severity: Severity(m[3]),
			Message:  m[4],
		})
	}
	return notices, nil
}

// ParseExpected parses a case's expected-output text into notices, amending
// the path extension on each line first.
func ParseExpected(out string) ([]Notice, error) {
	if strings.TrimSpace(out) == "" {
		return nil, nil
	}
	notices, err := ParseNotices(AugmentExpected(out))
	if err != nil {
		return nil, err
	}
	return notices, nil
}

// NoticesDiffError reports that observed notices differ from a case's
// expectations. Diff carries an expected-vs-actual rendering; callers print
// it without a stack.
type NoticesDiffError struct {
	Expected []Notice
	Actual   []Notice
	Diff     string
}

func (e *NoticesDiffError) Error() string {
	return "observed notices differ from expected notices\n" + e.Diff
}

// Compare checks observed notices against expected notices. With regex set,
// each expected message is matched as a pattern against the observed message
// at the same position; otherwise the match is exact.
func Compare(expected, actual []Notice, regex bool) error {
	if matches(expected, actual, regex) {
		return nil
	}
	return &NoticesDiffError{
		Expected: expected,
		Actual:   actual,
		Diff:     renderDiff(expected, actual),
	}
}

func matches(expected, actual []Notice, regex bool) bool {
	if len(expected) != len(actual) {
		return false
	}
	for i, want := range expected {
		got := actual[i]
		if want.Path != got.Path || want.Line != got.Line || want.Severity != got.Severity {
			return false
		}
		if regex {
			re, err := regexp.Compile(want.Message)
			if err != nil || !re.MatchString(got.Message) {
				return false
			}
		} else if want.Message != got.Message {
			return false
		}
	}
	return true
}

func renderDiff(expected, actual []Notice) string {
	var sb strings.Builder
	sb.WriteString("expected:\n")
	writeNotices(&sb, expected)
	sb.WriteString("actual:\n")
	writeNotices(&sb, actual)
	if diff := cmp.Diff(noticeLines(expected), noticeLines(actual)); diff != "" {
		sb.WriteString("diff (-expected +actual):\n")
		sb.WriteString(diff)
	}
	return sb.String()
}

func writeNotices(sb *strings.Builder, notices []Notice) {
	if len(notices) == 0 {
		sb.WriteString("  (none)\n")
		return
	}
	for _, n := range notices {
		fmt.Fprintf(sb, "  %s\n", n)
	}
}

func noticeLines(notices []Notice) []string {
	lines := make([]string, 0, len(notices))
	for _, n := range notices {
		lines = append(lines, n.String())
	}
	return lines
}
