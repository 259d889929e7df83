package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubEnv(platform, osName string, vars map[string]string) SkipEnv {
	return SkipEnv{
		Platform: platform,
		OSName:   osName,
		Getenv: func(name string) (string, bool) {
			v, ok := vars[name]
			return v, ok
		},
	}
}

func TestEvalSkip_Literals(t *testing.T) {
	env := stubEnv("linux", "posix", nil)

	tests := []struct {
		name string
		skip any
		want bool
	}{
		{"nil", nil, false},
		{"bool true", true, true},
		{"bool false", false, false},
		{"string True", "True", true},
		{"string False", "False", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvalSkip(tt.skip, env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalSkip_NonStringNonBool(t *testing.T) {
	_, err := EvalSkip(42, stubEnv("linux", "posix", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "skip must be a boolean or a string")
}

func TestEvalSkip_Expressions(t *testing.T) {
	env := stubEnv("win32", "nt", map[string]string{
		"CI":          "true",
		"DJANGO_MODE": "plugin",
		"EMPTY":       "",
	})

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"platform equality", "sys.platform == 'win32'", true},
		{"platform inequality", "sys.platform != 'linux'", true},
		{"os name", "os.name == 'nt'", true},
		{"double quotes", `sys.platform == "win32"`, true},
		{"membership", "'win' in sys.platform", true},
		{"negated membership", "'darwin' not in sys.platform", true},
		{"environ subscript", "os.environ['CI'] == 'true'", true},
		{"environ get hit", "os.environ.get('DJANGO_MODE') == 'plugin'", true},
		{"environ get miss with default", "os.environ.get('MISSING', 'x') == 'x'", true},
		{"environ get miss bare", "os.environ.get('MISSING')", false},
		{"bare truthiness set", "os.environ.get('CI')", true},
		{"bare truthiness empty", "os.environ.get('EMPTY')", false},
		{"conjunction", "sys.platform == 'win32' and os.name == 'nt'", true},
		{"disjunction", "sys.platform == 'linux' or os.name == 'nt'", true},
		{"negation", "not sys.platform == 'linux'", true},
		{"grouping", "not (sys.platform == 'linux' or os.name == 'posix')", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvalSkip(tt.expr, env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalSkip_ExpressionErrors(t *testing.T) {
	env := stubEnv("linux", "posix", nil)

	tests := []struct {
		name string
		expr string
	}{
		{"missing environ key", "os.environ['ABSENT'] == 'x'"},
		{"unknown symbol", "sys.maxsize == '1'"},
		{"unterminated string", "sys.platform == 'linux"},
		{"trailing garbage", "sys.platform == 'linux' sys.platform"},
		{"lone equals", "sys.platform = 'linux'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EvalSkip(tt.expr, env)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "skip expression")
		})
	}
}

func TestDefaultSkipEnv(t *testing.T) {
	env := DefaultSkipEnv()
	assert.NotEmpty(t, env.Platform)
	assert.Contains(t, []string{"posix", "nt"}, env.OSName)
	require.NotNil(t, env.Getenv)
}
