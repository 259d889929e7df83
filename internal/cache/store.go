// Package cache tracks on-disk incremental-analysis artifacts shared across
// a whole test session and evicts the entries a scenario touched when it
// tears down.
package cache

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"stubcheck/pkg/logging"
)

// Artifact suffixes the checker writes per cached source file.
const (
	dataSuffix = ".data.json"
	metaSuffix = ".meta.json"
)

// SharedCache is a session-scoped cache directory handed to the checker via
// its cache-dir option. Entries are keyed by the checker runtime's
// major.minor version and the source-relative path without its extension.
type SharedCache struct {
	root    string
	version string
}

// NewSharedCache returns a cache rooted at root for the given checker
// runtime version ("major.minor", e.g. "3.12").
func NewSharedCache(root, version string) *SharedCache {
	return &SharedCache{root: root, version: version}
}

// Dir returns the cache root passed to the checker.
func (c *SharedCache) Dir() string { return c.root }

// Evict removes the artifact pair for one source-relative path, then prunes
// ancestor directories that became empty, stopping at the first non-empty
// directory or at the cache root. Missing artifacts are not errors.
func (c *SharedCache) Evict(relPath string) error {
	base := filepath.Join(c.root, c.version, trimSourceExt(relPath))

	for _, suffix := range []string{dataSuffix, metaSuffix} {
		if err := os.Remove(base + suffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	logging.Debug("cache", "evicted artifacts for %s", relPath)

	for dir := filepath.Dir(base); ; dir = filepath.Dir(dir) {
		if dir == c.root || !within(c.root, dir) {
			break
		}

		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			break
		}

		if err := os.Remove(dir); err != nil {
			return err
		}
	}

	return nil
}

func trimSourceExt(relPath string) string {
	return strings.TrimSuffix(relPath, filepath.Ext(relPath))
}

func within(root, dir string) bool {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
