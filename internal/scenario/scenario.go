// Package scenario projects one compiled case onto disk and drives the
// checker invocation for it: configuration merging, settings synthesis,
// cache-mode argument derivation, and teardown eviction.
package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"stubcheck/internal/cache"
	"stubcheck/internal/compiler"
	"stubcheck/internal/mypycfg"
)

// ConfigFilename is the checker configuration file written into every
// scenario directory.
const ConfigFilename = "mypy.ini"

// Info carries the per-case knobs resolved from a compiled case plus the
// session-scoped resources injected by the harness.
type Info struct {
	// SharedCache is the session-scoped cache handle, nil when the session
	// runs without one.
	SharedCache *cache.SharedCache
	// IgnoreSitePackageErrors drops notices from third-party packages.
	IgnoreSitePackageErrors bool

	SettingsModule string
	Regex          bool
	Start          []string
	Monkeypatch    bool
	DisableCache   bool
	InstalledApps  []string
	CustomSettings string
	Env            map[string]string
}

// State is the mutable per-case scenario: the working directory, the
// effective configuration text as it accumulates merges, and every file
// materialized so far.
type State struct {
	Info    Info
	RootDir string

	// Config is the effective configuration text.
	Config string
	// Files maps relative paths to the content written there.
	Files map[string]string

	// touched preserves write order for teardown eviction.
	touched []string
}

// NewState returns a scenario rooted at dir, seeded with the default
// configuration baseline.
func NewState(dir string) *State {
	return &State{
		RootDir: dir,
		Config:  mypycfg.DefaultConfig,
		Files:   map[string]string{},
		Info: Info{
			SettingsModule: compiler.DefaultSettingsModule,
			Start:          []string{"main.py"},
		},
	}
}

// SetFile materializes content at the relative path and records the write.
func (s *State) SetFile(relPath, content string) error {
	full := filepath.Join(s.RootDir, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", relPath, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", relPath, err)
	}
	if _, known := s.Files[relPath]; !known {
		s.touched = append(s.touched, relPath)
	}
	s.Files[relPath] = content
	return nil
}

// TouchedFiles returns every materialized relative path in write order.
func (s *State) TouchedFiles() []string {
	return append([]string{}, s.touched...)
}

// SettingsPath is the settings module's on-disk relative path.
func (s *State) SettingsPath() string {
	return filepath.FromSlash(strings.ReplaceAll(s.Info.SettingsModule, ".", "/")) + ".py"
}
