// Package mypycfg builds the effective checker configuration for a scenario
// by merging ini-style fragments section/key-wise.
package mypycfg

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// PluginSection is the plugin settings section every effective configuration
// ends with unless a fragment already declares it.
const PluginSection = "[mypy.plugins.django-stubs]"

// DefaultConfig is the configuration baseline every scenario starts from.
// Case fragments are merged on top of it.
const DefaultConfig = `
[mypy]
allow_redefinition = true
check_untyped_defs = true
ignore_missing_imports = false
incremental = true
strict_optional = true
show_traceback = true
warn_unused_ignores = true
warn_redundant_casts = true
warn_unused_configs = false
warn_unreachable = true
disallow_untyped_defs = true
disallow_incomplete_defs = true
disable_error_code = empty-body
force_uppercase_builtins = true
force_union_syntax = true
plugins =
    mypy_django_plugin.main,
    mypy.plugins.proper_plugin

[mypy-yaml.*]
disallow_untyped_defs = false
disallow_incomplete_defs = false
ignore_errors = true

[mypy-cryptography.*]
ignore_errors = true
`

var loadOptions = ini.LoadOptions{
	// Fragments come from hand-written YAML blocks: tolerate python-style
	// continuation values and keys without values.
	AllowPythonMultilineValues: true,
	AllowBooleanKeys:           true,
}

// Merge combines ini fragments into one configuration text. Later fragments
// override earlier ones at (section, key) granularity; sections absent from
// earlier fragments are created. Whitespace-only or comment-only fragments
// are tolerated.
func Merge(fragments ...string) (string, error) {
	merged := ini.Empty(loadOptions)

	for i, fragment := range fragments {
		fragment = strings.TrimSpace(fragment)
		if fragment == "" {
			continue
		}
		if err := merged.Append([]byte(fragment)); err != nil {
			return "", fmt.Errorf("merge config fragment %d: %w", i, err)
		}
	}
	// Append parses lazily; force the reload so malformed fragments fail
	// here rather than at write time.
	if err := merged.Reload(); err != nil {
		return "", fmt.Errorf("merge config fragments: %w", err)
	}

	var buf bytes.Buffer
	if _, err := merged.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("serialize merged config: %w", err)
	}
	return buf.String(), nil
}

// WithPluginSection appends the framework plugin section pointing at the
// scenario's settings module, unless the merged text already declares it.
func WithPluginSection(merged, settingsModule string) string {
	if strings.Contains(merged, PluginSection) {
		return merged
	}
	return strings.Join([]string{
		merged,
		PluginSection,
		fmt.Sprintf("django_settings_module = %s", settingsModule),
	}, "\n")
}
