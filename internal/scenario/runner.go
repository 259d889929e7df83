package scenario

import (
	"context"
	"fmt"

	"stubcheck/internal/checker"
	"stubcheck/internal/compiler"
	"stubcheck/internal/mypycfg"
	"stubcheck/internal/settings"
	"stubcheck/pkg/logging"
)

// Runner executes one compiled case: it projects the case onto the scenario
// directory, derives the invocation arguments, runs the checker, and checks
// the observed notices against the case's expectations.
type Runner struct {
	State   *State
	Invoker checker.Invoker
	// Args is the base argument list before cache-mode derivation.
	Args []string
}

// NewRunner returns a runner for one scenario directory.
func NewRunner(state *State, invoker checker.Invoker) *Runner {
	return &Runner{State: state, Invoker: invoker}
}

// Run executes the case. A nil return is a pass; a *checker.NoticesDiffError
// is a normal expectation-mismatch failure; a *checker.ExitError is a clean,
// already-explained checker failure; anything else is a defect in the
// harness.
func (r *Runner) Run(ctx context.Context, c compiler.CompiledCase) error {
	r.applyCase(c)

	if err := r.projectFiles(c); err != nil {
		return err
	}
	if err := r.writeConfig(c); err != nil {
		return err
	}
	if err := r.synthesizeSettings(ctx); err != nil {
		return err
	}

	args, doFollowup := DeriveArgs(r.Args, r.State.Info, r.Invoker.IsDaemon())

	opts := checker.RunOptions{
		WorkDir:                 r.State.RootDir,
		Args:                    args,
		Env:                     r.State.Info.Env,
		CheckPaths:              r.State.Info.Start,
		DoFollowup:              doFollowup,
		IgnoreSitePackageErrors: r.State.Info.IgnoreSitePackageErrors,
	}

	result, err := r.Invoker.Invoke(ctx, opts)
	if err != nil {
		return err
	}

	return r.check(c, result)
}

// Teardown evicts shared-cache artifacts for every file this scenario
// touched. It is called exactly once per case, after Run.
func (r *Runner) Teardown() error {
	shared := r.State.Info.SharedCache
	if shared == nil {
		return nil
	}
	for _, path := range r.State.TouchedFiles() {
		if err := shared.Evict(path); err != nil {
			return fmt.Errorf("evict cache for %s: %w", path, err)
		}
	}
	return nil
}

// applyCase copies the case's resolved toggles onto the scenario state.
func (r *Runner) applyCase(c compiler.CompiledCase) {
	info := &r.State.Info
	info.Regex = c.Regex
	info.Start = append([]string{}, c.Start...)
	info.Monkeypatch = c.Monkeypatch
	info.DisableCache = c.DisableCache
	info.InstalledApps = append([]string{}, c.InstalledApps...)
	info.CustomSettings = c.CustomSettings
	info.Env = c.Env
	if c.SettingsModule != "" {
		info.SettingsModule = c.SettingsModule
	}
}

// projectFiles writes the main source and every declared file, rendering
// each through the case's parameters.
func (r *Runner) projectFiles(c compiler.CompiledCase) error {
	main, err := Render(c.Main, c.ItemParams)
	if err != nil {
		return fmt.Errorf("render main template: %w", err)
	}
	if err := r.State.SetFile("main.py", main); err != nil {
		return err
	}

	for _, file := range c.Files {
		content, err := Render(file.Content, c.ItemParams)
		if err != nil {
			return fmt.Errorf("render template for %s: %w", file.Path, err)
		}
		if err := r.State.SetFile(file.Path, content); err != nil {
			return err
		}
	}
	return nil
}

// writeConfig merges the case's configuration fragment over the baseline and
// materializes the effective configuration.
func (r *Runner) writeConfig(c compiler.CompiledCase) error {
	fragment, err := Render(c.MypyConfig, c.ItemParams)
	if err != nil {
		return fmt.Errorf("render config fragment: %w", err)
	}

	merged, err := mypycfg.Merge(r.State.Config, fragment)
	if err != nil {
		return err
	}
	r.State.Config = mypycfg.WithPluginSection(merged, r.State.Info.SettingsModule)

	return r.State.SetFile(ConfigFilename, r.State.Config)
}

// synthesizeSettings builds the settings module. Custom settings are
// authoritative: when they already declare the applications list, the list
// edit is skipped entirely.
func (r *Runner) synthesizeSettings(ctx context.Context) error {
	info := r.State.Info
	path := r.State.SettingsPath()

	base := r.State.Files[path]
	skipAppsEdit := false
	if info.CustomSettings != "" {
		base = info.CustomSettings
		skipAppsEdit = settings.DeclaresInstalledApps(base)
	}

	content, found, err := settings.Synthesize(ctx, base, settings.Options{
		InstalledApps: info.InstalledApps,
		Monkeypatch:   info.Monkeypatch,
		SkipAppsEdit:  skipAppsEdit,
	})
	if err != nil {
		return fmt.Errorf("synthesize settings module %s: %w", path, err)
	}

	logging.Debug("scenario", "settings module %s: apps declared pre-edit: %t, secret declared pre-edit: %t",
		path, found.InstalledApps, found.SecretKey)

	return r.State.SetFile(path, content)
}

// check compares the run outcome against the case's expectations.
func (r *Runner) check(c compiler.CompiledCase, result *checker.Result) error {
	expected, err := checker.ParseExpected(c.Out)
	if err != nil {
		return fmt.Errorf("parse expected output for %s: %w", c.TestName(), err)
	}

	if err := checker.Compare(expected, result.Notices, c.Regex); err != nil {
		return err
	}

	hasErrors := false
	for _, n := range expected {
		if n.Severity == checker.SeverityError {
			hasErrors = true
			break
		}
	}
	wantNonZero := c.ExpectFail || hasErrors
	if gotNonZero := result.ExitCode != 0; gotNonZero != wantNonZero {
		return &checker.ExitError{
			Program: "checker",
			Code:    result.ExitCode,
			Summary: fmt.Sprintf("expected failure: %t, exit status: %d", c.ExpectFail, result.ExitCode),
		}
	}

	return nil
}
