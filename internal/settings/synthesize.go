// Package settings synthesizes the scenario's generated settings module by
// structurally editing its source text. Edits are anchored on a real parse of
// the module, never on textual search-and-replace, so user-authored
// surrounding code is left untouched.
package settings

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ContenttypesApp is always the first entry of the synthesized
// applications list.
const ContenttypesApp = "django.contrib.contenttypes"

// MonkeypatchSnippet is the fixed injection toggled at the top of the module.
const MonkeypatchSnippet = "import django_stubs_ext\ndjango_stubs_ext.monkeypatch()\n"

const (
	appsVariable   = "INSTALLED_APPS"
	secretVariable = "SECRET_KEY"
	secretDefault  = "SECRET_KEY = '1'"
)

// Options control one synthesis pass.
type Options struct {
	// InstalledApps are appended to the module's applications list.
	InstalledApps []string
	// Monkeypatch re-inserts the monkeypatch snippet at the top of the file.
	Monkeypatch bool
	// SkipAppsEdit leaves the applications list alone; set when the case
	// supplies custom settings that already declare it.
	SkipAppsEdit bool
}

// DeclaresInstalledApps reports whether user-authored settings text already
// carries the applications list, making the user's declaration
// authoritative.
func DeclaresInstalledApps(content string) bool {
	return strings.Contains(content, appsVariable)
}

// Found records which variables existed in the module before editing.
type Found struct {
	InstalledApps bool
	SecretKey     bool
}

// assignment is one top-level "NAME = value" statement located in the parse.
type assignment struct {
	name       string
	valueStart uint32
	valueEnd   uint32
	isList     bool
	elements   []string
}

// Synthesize edits the base settings-module source and reports the variables
// discovered before the edit.
//
// The applications-list edit is a semantic list operation: the existing list
// literal is parsed, the contenttypes app is guaranteed first, declared apps
// are merged in with deduplication, and the literal is re-serialized without
// disturbing unrelated statements. The secret variable is only discovered; a
// default assignment is appended when absent, an existing value is never
// overwritten. The monkeypatch snippet is removed and conditionally
// re-inserted, so repeated synthesis is idempotent.
func Synthesize(ctx context.Context, base string, opts Options) (string, Found, error) {
	// Strip the snippet first so the structural pass sees a stable module
	// regardless of how many times synthesis already ran.
	content := strings.ReplaceAll(base, MonkeypatchSnippet, "")

	if !opts.SkipAppsEdit && !strings.Contains(content, appsVariable) {
		content = content + "\n" + appsVariable + "=[]"
	}

	assignments, err := topLevelAssignments(ctx, content)
	if err != nil {
		return "", Found{}, err
	}

	found := Found{}
	var apps *assignment
	for i := range assignments {
		switch assignments[i].name {
		case appsVariable:
			found.InstalledApps = true
			apps = &assignments[i]
		case secretVariable:
			found.SecretKey = true
		}
	}

	if !opts.SkipAppsEdit {
		if apps == nil {
			return "", found, fmt.Errorf("settings module has no top-level %s assignment", appsVariable)
		}
		literal := serializeList(mergeApps(apps.elements, opts.InstalledApps))
		content = content[:apps.valueStart] + literal + content[apps.valueEnd:]
	}

	if !found.SecretKey {
		content = content + "\n" + secretDefault
	}

	if opts.Monkeypatch {
		content = MonkeypatchSnippet + content
	}

	return content, found, nil
}

// topLevelAssignments parses the module and locates every top-level
// simple-name assignment statement.
func topLevelAssignments(ctx context.Context, src string) ([]assignment, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, []byte(src))
	if err != nil {
		return nil, fmt.Errorf("parse settings module: %w", err)
	}
	defer tree.Close()

	var assignments []assignment
	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		stmt := root.NamedChild(i)
		if stmt.Type() != "expression_statement" || stmt.NamedChildCount() == 0 {
			continue
		}
		expr := stmt.NamedChild(0)
		if expr.Type() != "assignment" {
			continue
		}
		left := expr.ChildByFieldName("left")
		right := expr.ChildByFieldName("right")
		if left == nil || right == nil || left.Type() != "identifier" {
			continue
		}

		a := assignment{
			name:       src[left.StartByte():left.EndByte()],
			valueStart: right.StartByte(),
			valueEnd:   right.EndByte(),
		}
		if right.Type() == "list" {
			a.isList = true
			a.elements = listStrings(right, src)
		}
		assignments = append(assignments, a)
	}
	return assignments, nil
}

// listStrings extracts the string elements of a list literal node.
func listStrings(list *sitter.Node, src string) []string {
	var elements []string
	for i := 0; i < int(list.NamedChildCount()); i++ {
		item := list.NamedChild(i)
		if item.Type() != "string" {
			continue
		}
		text := src[item.StartByte():item.EndByte()]
		elements = append(elements, strings.Trim(text, `"'`))
	}
	return elements
}

// mergeApps guarantees the contenttypes app first, keeps pre-existing
// entries, and appends declared apps not already present.
func mergeApps(existing, declared []string) []string {
	merged := []string{ContenttypesApp}
	seen := map[string]bool{ContenttypesApp: true}
	for _, app := range append(append([]string{}, existing...), declared...) {
		if seen[app] {
			continue
		}
		seen[app] = true
		merged = append(merged, app)
	}
	return merged
}

func serializeList(elements []string) string {
	quoted := make([]string, 0, len(elements))
	for _, el := range elements {
		quoted = append(quoted, fmt.Sprintf("%q", el))
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
