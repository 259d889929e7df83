package scenario

import "runtime"

// nullCacheDir is the platform's discard target for the checker's cache.
func nullCacheDir() string {
	if runtime.GOOS == "windows" {
		return "nul"
	}
	return "/dev/null"
}

// DeriveArgs applies the cache-mode policy to the checker's argument list
// and reports whether a follow-up pass is still allowed.
//
// Disabled and shared caching are mutually exclusive; disabled wins when a
// case sets both. Daemon invokers manage their own incremental state, so the
// incremental flags are left alone for them.
func DeriveArgs(args []string, info Info, isDaemon bool) (derived []string, doFollowup bool) {
	derived = append([]string{}, args...)
	doFollowup = true

	useShared := info.SharedCache != nil && !info.DisableCache

	if info.DisableCache || useShared {
		derived = removeCacheDirPair(derived)
	}

	switch {
	case info.DisableCache:
		if !isDaemon {
			derived = removeFlag(derived, "--incremental")
			if !hasFlag(derived, "--no-incremental") {
				derived = append(derived, "--no-incremental")
			}
		}
		derived = append(derived, "--cache-dir", nullCacheDir())
		doFollowup = false
	case useShared:
		if !isDaemon {
			if !hasFlag(derived, "--incremental") {
				derived = append(derived, "--incremental")
			}
			derived = removeFlag(derived, "--no-incremental")
		}
		derived = append(derived, "--cache-dir", info.SharedCache.Dir())
	}

	return derived, doFollowup
}

// removeCacheDirPair drops an existing "--cache-dir <dir>" pair.
func removeCacheDirPair(args []string) []string {
	for i, arg := range args {
		if arg == "--cache-dir" && i+1 < len(args) {
			return append(args[:i:i], args[i+2:]...)
		}
	}
	return args
}

func removeFlag(args []string, flag string) []string {
	for i, arg := range args {
		if arg == flag {
			return append(args[:i:i], args[i+1:]...)
		}
	}
	return args
}

func hasFlag(args []string, flag string) bool {
	for _, arg := range args {
		if arg == flag {
			return true
		}
	}
	return false
}
