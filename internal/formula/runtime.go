package formula

import (
	"fmt"
	"strconv"
	"strings"
)

// Runtime is a parsed runtime dependency such as python@3.12.
type Runtime struct {
	Name  string
	Major int
	Minor int
	// Pinned is false for a bare "python", which accepts any Python 3.
	Pinned bool
	// MinorPinned is false for "python@3".
	MinorPinned bool
}

// ParseRuntime parses "python", "python@3" or "python@3.12".
func ParseRuntime(req string) (Runtime, error) {
	name, version, hasVersion := strings.Cut(strings.TrimSpace(req), "@")
	if name != "python" {
		return Runtime{}, fmt.Errorf("unsupported runtime %q (only python is supported)", req)
	}
	rt := Runtime{Name: name, Major: 3}
	if !hasVersion {
		return rt, nil
	}

	majorStr, minorStr, hasMinor := strings.Cut(version, ".")
	major, err := strconv.Atoi(majorStr)
	if err != nil || major <= 0 {
		return Runtime{}, fmt.Errorf("invalid runtime version in %q", req)
	}
	rt.Major = major
	rt.Pinned = true
	if hasMinor {
		minor, err := strconv.Atoi(minorStr)
		if err != nil || minor < 0 {
			return Runtime{}, fmt.Errorf("invalid runtime version in %q", req)
		}
		rt.Minor = minor
		rt.MinorPinned = true
	}
	return rt, nil
}

// String renders the runtime back in formula syntax.
func (r Runtime) String() string {
	switch {
	case r.MinorPinned:
		return fmt.Sprintf("%s@%d.%d", r.Name, r.Major, r.Minor)
	case r.Pinned:
		return fmt.Sprintf("%s@%d", r.Name, r.Major)
	default:
		return r.Name
	}
}

// Matches reports whether an interpreter of the given version satisfies r.
func (r Runtime) Matches(major, minor int) bool {
	if major != r.Major {
		return false
	}
	return !r.MinorPinned || minor == r.Minor
}

// Candidates lists executable names to try, most specific first.
func (r Runtime) Candidates() []string {
	if r.MinorPinned {
		return []string{
			fmt.Sprintf("python%d.%d", r.Major, r.Minor),
			fmt.Sprintf("python%d", r.Major),
			"python",
		}
	}
	return []string{fmt.Sprintf("python%d", r.Major), "python"}
}

// KegName is the Homebrew formula name providing this runtime, e.g.
// python@3.12. It is used to search the keg's bin directory.
func (r Runtime) KegName() string {
	if r.MinorPinned {
		return fmt.Sprintf("%s@%d.%d", r.Name, r.Major, r.Minor)
	}
	return fmt.Sprintf("%s@%d", r.Name, r.Major)
}
