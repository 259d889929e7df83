package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifacts(t *testing.T, root, version, relPath string) {
	t.Helper()
	base := filepath.Join(root, version, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(base), 0o755))
	require.NoError(t, os.WriteFile(base+".data.json", []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(base+".meta.json", []byte("{}"), 0o644))
}

func TestEvict_RemovesArtifactPair(t *testing.T) {
	root := t.TempDir()
	writeArtifacts(t, root, "3.12", "main")

	shared := NewSharedCache(root, "3.12")
	require.NoError(t, shared.Evict("main.py"))

	assert.NoFileExists(t, filepath.Join(root, "3.12", "main.data.json"))
	assert.NoFileExists(t, filepath.Join(root, "3.12", "main.meta.json"))
	// The cache root itself always survives.
	assert.DirExists(t, root)
}

func TestEvict_PrunesEmptyAncestors(t *testing.T) {
	root := t.TempDir()
	writeArtifacts(t, root, "3.12", filepath.Join("myapp", "models"))

	shared := NewSharedCache(root, "3.12")
	require.NoError(t, shared.Evict(filepath.Join("myapp", "models.py")))

	assert.NoDirExists(t, filepath.Join(root, "3.12", "myapp"))
	assert.NoDirExists(t, filepath.Join(root, "3.12"))
	assert.DirExists(t, root)
}

func TestEvict_StopsAtPopulatedAncestor(t *testing.T) {
	root := t.TempDir()
	writeArtifacts(t, root, "3.12", filepath.Join("myapp", "models"))
	writeArtifacts(t, root, "3.12", filepath.Join("myapp", "views"))

	shared := NewSharedCache(root, "3.12")
	require.NoError(t, shared.Evict(filepath.Join("myapp", "models.py")))

	// Sibling artifacts keep their directory alive.
	assert.DirExists(t, filepath.Join(root, "3.12", "myapp"))
	assert.FileExists(t, filepath.Join(root, "3.12", "myapp", "views.data.json"))
}

func TestEvict_MissingArtifactsTolerated(t *testing.T) {
	root := t.TempDir()

	shared := NewSharedCache(root, "3.12")
	assert.NoError(t, shared.Evict("never/written.py"))
	assert.DirExists(t, root)
}

func TestSharedCache_Dir(t *testing.T) {
	shared := NewSharedCache("/tmp/cache-root", "3.12")
	assert.Equal(t, "/tmp/cache-root", shared.Dir())
}
