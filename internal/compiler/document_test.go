package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDocuments_LineAnchors(t *testing.T) {
	docs, err := LoadDocuments([]byte(`- case: first
  out: ""
  main: |
    x = 1

- case: second
`), "test-lines.yml")
	require.NoError(t, err)
	require.Len(t, docs, 2)

	// The anchor points at the "main" key when present; otherwise at the
	// mapping itself.
	assert.Equal(t, 3, docs[0].Line)
	assert.Equal(t, 6, docs[1].Line)
	assert.Equal(t, "test-lines.yml", docs[0].File)
}

func TestLoadDocuments_EmptyInput(t *testing.T) {
	docs, err := LoadDocuments(nil, "empty.yml")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestLoadDocuments_TopLevelShape(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"mapping at top level", "case: nope\n", "must be a YAML list"},
		{"scalar entry", "- just a string\n", "case entries must be mappings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadDocuments([]byte(tt.input), "bad.yml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadDocuments_ParametrizedOrder(t *testing.T) {
	docs, err := LoadDocuments([]byte(`- case: ordered
  parametrized:
    - zeta: 1
      alpha: 2
      mid: 3
`), "test-order.yml")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Len(t, docs[0].Parametrized, 1)

	keys := make([]string, 0, 3)
	for _, p := range docs[0].Parametrized[0] {
		keys = append(keys, p.Key)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, keys)
}

func TestLoadDocuments_FieldValues(t *testing.T) {
	docs, err := LoadDocuments([]byte(`- case: typed
  regex: true
  installed_apps:
    - one
    - two
`), "test-typed.yml")
	require.NoError(t, err)
	require.Len(t, docs, 1)

	fields := docs[0].Fields
	assert.Equal(t, true, fields["regex"])
	assert.Equal(t, []any{"one", "two"}, fields["installed_apps"])
}
