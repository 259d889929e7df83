package compiler

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stubcheck/pkg/logging"
)

func TestMain(m *testing.M) {
	logging.InitForCLI(logging.LevelError, io.Discard)
	os.Exit(m.Run())
}

// neverSkip is a closed environment where no skip predicate holds.
var neverSkip = SkipEnv{
	Platform: "linux",
	OSName:   "posix",
	Getenv:   func(string) (string, bool) { return "", false },
}

func compileYAML(t *testing.T, doc string) ([]CompiledCase, error) {
	t.Helper()
	docs, err := LoadDocuments([]byte(doc), "test-cases.yml")
	require.NoError(t, err)
	return Compile(docs, neverSkip)
}

func TestCompile_Defaults(t *testing.T) {
	cases, err := compileYAML(t, `
- case: minimal
  main: "reveal_type(1)"
`)
	require.NoError(t, err)
	require.Len(t, cases, 1)

	c := cases[0]
	assert.Equal(t, "minimal", c.Case)
	assert.Equal(t, "minimal", c.TestName())
	assert.Equal(t, []string{"main.py"}, c.Start)
	assert.Equal(t, DefaultSettingsModule, c.SettingsModule)
	assert.False(t, c.Regex)
	assert.False(t, c.DisableCache)
	assert.Empty(t, c.ItemParams)
}

func TestCompile_AllFields(t *testing.T) {
	cases, err := compileYAML(t, `
- case: full
  main: "x = 1"
  out: "main:1: error: nope"
  regex: true
  expect_fail: true
  monkeypatch: true
  disable_cache: true
  start: ["a.py", "b.py"]
  mypy_config: |
    [mypy]
    warn_unreachable = false
  installed_apps:
    - myapp
  custom_settings: "DEBUG = True"
  django_settings_module: proj.settings
  env:
    - DJANGO_DEBUG=1
    - MARKER
  files:
    - path: myapp/models.py
      content: "class A: pass"
`)
	require.NoError(t, err)
	require.Len(t, cases, 1)

	c := cases[0]
	assert.True(t, c.Regex)
	assert.True(t, c.ExpectFail)
	assert.True(t, c.Monkeypatch)
	assert.True(t, c.DisableCache)
	assert.Equal(t, []string{"a.py", "b.py"}, c.Start)
	assert.Equal(t, "proj.settings", c.SettingsModule)
	assert.Equal(t, []string{"myapp"}, c.InstalledApps)
	assert.Equal(t, map[string]string{"DJANGO_DEBUG": "1", "MARKER": ""}, c.Env)
	require.Len(t, c.Files, 1)
	assert.Equal(t, "myapp/models.py", c.Files[0].Path)
}

func TestCompile_StartAsSingleString(t *testing.T) {
	cases, err := compileYAML(t, `
- case: single_start
  main: "x = 1"
  start: other.py
`)
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, []string{"other.py"}, cases[0].Start)
}

func TestCompile_ParametrizedExpansion(t *testing.T) {
	cases, err := compileYAML(t, `
- case: param
  main: "x = {{ .value }}"
  parametrized:
    - value: 1
      rt: int
    - value: "'s'"
      rt: str
`)
	require.NoError(t, err)
	require.Len(t, cases, 2)

	// Names preserve the authored parameter order, not a sorted one.
	assert.Equal(t, "param[value=1,rt=int]", cases[0].TestName())
	assert.Equal(t, "param[value='s',rt=str]", cases[1].TestName())
}

func TestCompile_ParametrizedHiddenKeys(t *testing.T) {
	cases, err := compileYAML(t, `
- case: hidden
  main: "x = 1"
  parametrized:
    - value: 1
      __note: internal only
    - value: 2
      __note: still internal
`)
	require.NoError(t, err)
	require.Len(t, cases, 2)

	// Double-underscore keys count for key-set identity but never surface.
	assert.Equal(t, "hidden[value=1]", cases[0].TestName())
	assert.Equal(t, "hidden[value=2]", cases[1].TestName())
}

func TestCompile_ParametrizedKeyMismatch(t *testing.T) {
	_, err := compileYAML(t, `
- case: mismatch
  main: "x = 1"
  parametrized:
    - value: 1
      rt: int
    - value: 2
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all parametrized entries must have the same keys")
	assert.Contains(t, err.Error(), "position 1")
}

func TestCompile_UnknownField(t *testing.T) {
	_, err := compileYAML(t, `
- case: stray
  main: "x = 1"
  typo_field: true
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown field "typo_field"`)
}

func TestCompile_InvalidCaseName(t *testing.T) {
	tests := []struct {
		name     string
		caseName string
	}{
		{"hyphen", "bad-name"},
		{"space", "bad name"},
		{"leading digit", "1bad"},
		{"empty", "''"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileYAML(t, "- case: "+tt.caseName+"\n  main: \"x = 1\"\n")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid case name")
		})
	}
}

func TestCompile_MissingCaseIsBatchFatal(t *testing.T) {
	_, err := compileYAML(t, `
- case: good
  main: "x = 1"
- main: "y = 2"
`)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "test-cases.yml", verr.File)
}

func TestCompile_SkipVariants(t *testing.T) {
	env := neverSkip

	cases, err := func() ([]CompiledCase, error) {
		docs, err := LoadDocuments([]byte(`
- case: skipped
  main: "x = 1"
  skip: true
- case: kept
  main: "x = 1"
  skip: false
- case: expr_skipped
  main: "x = 1"
  skip: sys.platform == 'linux'
`), "test-cases.yml")
		require.NoError(t, err)
		return Compile(docs, env)
	}()
	require.NoError(t, err)

	require.Len(t, cases, 1)
	assert.Equal(t, "kept", cases[0].Case)
}

func TestCloneCase_VariantIsolation(t *testing.T) {
	cases, err := compileYAML(t, `
- case: iso
  main: "x = 1"
  env:
    - SHARED=yes
  parametrized:
    - v: 1
    - v: 2
`)
	require.NoError(t, err)
	require.Len(t, cases, 2)

	cases[0].Env["SHARED"] = "mutated"
	assert.Equal(t, "yes", cases[1].Env["SHARED"])
}
