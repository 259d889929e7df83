// Package compiler turns declarative scenario documents into validated,
// normalized case records, expanding parametrized variants and evaluating
// skip predicates.
package compiler

import (
	"fmt"
	"sort"
	"strings"

	"stubcheck/pkg/logging"
)

// DefaultSettingsModule is the dotted path of the generated settings module
// unless a case overrides it.
const DefaultSettingsModule = "mysettings"

// FileEntry is one declared file of a case.
type FileEntry struct {
	Path    string
	Content string
}

// CompiledCase is one normalized, fully-resolved case variant. Variants
// expanded from the same document differ only in ItemParams.
type CompiledCase struct {
	Case         string
	File         string
	StartingLine int

	Out  string
	Main string

	Files []FileEntry
	Start []string

	Regex        bool
	ExpectFail   bool
	Monkeypatch  bool
	DisableCache bool

	MypyConfig     string
	InstalledApps  []string
	CustomSettings string
	SettingsModule string

	Env map[string]string

	// ItemParams is empty unless the case originated from parametrization.
	ItemParams Params
}

// TestName is the externally visible case identifier: the case name alone,
// or "case[key=val,...]" with parameters in authored order.
func (c *CompiledCase) TestName() string {
	if len(c.ItemParams) == 0 {
		return c.Case
	}
	parts := make([]string, 0, len(c.ItemParams))
	for _, p := range c.ItemParams {
		parts = append(parts, fmt.Sprintf("%s=%v", p.Key, p.Value))
	}
	return fmt.Sprintf("%s[%s]", c.Case, strings.Join(parts, ","))
}

// knownFields are the declarable document fields; anything else is fatal.
var knownFields = map[string]bool{
	"case":                   true,
	"main":                   true,
	"out":                    true,
	"skip":                   true,
	"files":                  true,
	"start":                  true,
	"regex":                  true,
	"mypy_config":            true,
	"expect_fail":            true,
	"monkeypatch":            true,
	"disable_cache":          true,
	"installed_apps":         true,
	"custom_settings":        true,
	"django_settings_module": true,
	"env":                    true,
	"parametrized":           true,
}

// Compile parses a batch of raw documents into compiled case variants. The
// whole batch is schema-validated before any document is processed; variants
// whose skip predicate holds are not yielded.
func Compile(docs []Document, env SkipEnv) ([]CompiledCase, error) {
	if err := validateDocuments(docs); err != nil {
		return nil, err
	}

	var cases []CompiledCase
	for _, doc := range docs {
		expanded, err := compileDocument(doc, env)
		if err != nil {
			return nil, err
		}
		cases = append(cases, expanded...)
	}
	return cases, nil
}

func compileDocument(doc Document, env SkipEnv) ([]CompiledCase, error) {
	// The line marker is injected by the document loader; losing it is a
	// defect in this harness, not in the authored document.
	if doc.Line <= 0 {
		return nil, fmt.Errorf("internal: document in %s is missing its starting-line marker", doc.File)
	}

	base := CompiledCase{
		File:           doc.File,
		StartingLine:   doc.Line,
		Start:          []string{"main.py"},
		SettingsModule: DefaultSettingsModule,
		Env:            map[string]string{},
	}

	var skip any
	for name, value := range doc.Fields {
		if !knownFields[name] {
			return nil, fmt.Errorf("%s line %d: unknown field %q", doc.File, doc.Line, name)
		}
		switch name {
		case "case":
			base.Case, _ = value.(string)
		case "main":
			base.Main, _ = value.(string)
		case "out":
			base.Out, _ = value.(string)
		case "skip":
			skip = value
		case "files":
			base.Files = normalizeFiles(value)
		case "start":
			base.Start = normalizeStart(value, base.Start)
		case "regex":
			base.Regex, _ = value.(bool)
		case "mypy_config":
			base.MypyConfig, _ = value.(string)
		case "expect_fail":
			base.ExpectFail, _ = value.(bool)
		case "monkeypatch":
			base.Monkeypatch, _ = value.(bool)
		case "disable_cache":
			base.DisableCache, _ = value.(bool)
		case "installed_apps":
			base.InstalledApps = normalizeStrings(value)
		case "custom_settings":
			base.CustomSettings, _ = value.(string)
		case "django_settings_module":
			if module, ok := value.(string); ok && module != "" {
				base.SettingsModule = module
			}
		case "env":
			base.Env = normalizeEnv(value)
		case "parametrized":
			// Ordered copy already captured on the document.
		}
	}

	if !isIdentifier(base.Case) {
		return nil, fmt.Errorf("%s line %d: invalid case name %q, only '[a-zA-Z0-9_]' is allowed", doc.File, doc.Line, base.Case)
	}

	variants, err := expandParametrized(doc.Parametrized)
	if err != nil {
		return nil, fmt.Errorf("%s line %d: case %q: %w", doc.File, doc.Line, base.Case, err)
	}

	var cases []CompiledCase
	for _, params := range variants {
		clone := cloneCase(base)
		clone.ItemParams = params

		skipped, err := EvalSkip(skip, env)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: case %q: %w", doc.File, doc.Line, base.Case, err)
		}
		if skipped {
			logging.Debug("compiler", "case %s skipped", clone.TestName())
			continue
		}
		cases = append(cases, clone)
	}
	return cases, nil
}

// expandParametrized flattens parameter mappings into one variant each. All
// mappings must share an identical key set; a mismatch fails the document,
// never a single entry. Keys prefixed with "__" are stripped from the
// resulting parameters but still count towards key-set identity.
func expandParametrized(entries []Params) ([]Params, error) {
	if len(entries) == 0 {
		return []Params{nil}, nil
	}

	first := keySignature(entries[0])
	variants := make([]Params, 0, len(entries))
	for i, entry := range entries {
		if sig := keySignature(entry); sig != first {
			return nil, fmt.Errorf(
				"all parametrized entries must have the same keys: first entry has [%s] but [%s] was spotted at position %d",
				first, sig, i)
		}
		var params Params
		for _, p := range entry {
			if strings.HasPrefix(p.Key, "__") {
				continue
			}
			params = append(params, p)
		}
		variants = append(variants, params)
	}
	return variants, nil
}

func keySignature(params Params) string {
	keys := make([]string, 0, len(params))
	for _, p := range params {
		keys = append(keys, p.Key)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

// normalizeFiles turns the declared files value into path/content pairs. A
// malformed value is treated as empty, preserving permissive legacy
// behavior.
func normalizeFiles(value any) []FileEntry {
	list, ok := value.([]any)
	if !ok {
		return nil
	}
	var files []FileEntry
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		path, ok := entry["path"].(string)
		if !ok {
			continue
		}
		content, _ := entry["content"].(string)
		files = append(files, FileEntry{Path: path, Content: content})
	}
	return files
}

// normalizeEnv splits "NAME=value" strings on the first '='. Entries lacking
// '=' map the whole string to an empty value. A malformed env value is
// treated as empty.
func normalizeEnv(value any) map[string]string {
	env := map[string]string{}
	list, ok := value.([]any)
	if !ok {
		return env
	}
	for _, item := range list {
		entry, ok := item.(string)
		if !ok {
			continue
		}
		name, val, _ := strings.Cut(entry, "=")
		env[name] = val
	}
	return env
}

// normalizeStart accepts a single string or a list of strings.
func normalizeStart(value any, fallback []string) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case []any:
		if paths := normalizeStrings(v); paths != nil {
			return paths
		}
	}
	return fallback
}

func normalizeStrings(value any) []string {
	list, ok := value.([]any)
	if !ok {
		return nil
	}
	var strs []string
	for _, item := range list {
		if s, ok := item.(string); ok {
			strs = append(strs, s)
		}
	}
	return strs
}

func cloneCase(base CompiledCase) CompiledCase {
	clone := base
	clone.Files = append([]FileEntry{}, base.Files...)
	clone.Start = append([]string{}, base.Start...)
	clone.InstalledApps = append([]string{}, base.InstalledApps...)
	clone.Env = make(map[string]string, len(base.Env))
	for k, v := range base.Env {
		clone.Env[k] = v
	}
	return clone
}

// isIdentifier reports whether name is a valid ASCII identifier.
func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
