package system

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// BrewPrefixes are the standard Homebrew and Linuxbrew prefixes for this host.
func BrewPrefixes() []string {
	var prefixes []string
	if p := os.Getenv("HOMEBREW_PREFIX"); p != "" {
		prefixes = append(prefixes, p)
	}
	switch runtime.GOOS {
	case "darwin":
		prefixes = append(prefixes, "/opt/homebrew", "/usr/local")
	case "linux":
		prefixes = append(prefixes, "/home/linuxbrew/.linuxbrew")
		if home, err := os.UserHomeDir(); err == nil {
			prefixes = append(prefixes, filepath.Join(home, ".linuxbrew"))
		}
	}
	return prefixes
}

// PythonSearchDirs lists directories searched for an interpreter after PATH:
// the runtime keg's bin dir under each Homebrew prefix, then the usual
// system locations. Duplicates are dropped.
func PythonSearchDirs(kegName string) []string {
	var dirs []string
	for _, prefix := range BrewPrefixes() {
		dirs = append(dirs,
			filepath.Join(prefix, "opt", kegName, "bin"),
			filepath.Join(prefix, "opt", kegName, "libexec", "bin"),
			filepath.Join(prefix, "bin"),
		)
	}
	dirs = append(dirs, "/usr/local/bin", "/usr/bin")
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".local", "bin"))
	}

	seen := make(map[string]bool, len(dirs))
	out := dirs[:0]
	for _, d := range dirs {
		d = filepath.Clean(d)
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

// SplitPath returns the entries of a PATH-style list, skipping empty ones.
func SplitPath(pathList string) []string {
	var out []string
	for _, p := range strings.Split(pathList, string(os.PathListSeparator)) {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
