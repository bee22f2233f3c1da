// Package venv provisions the isolated Python environment a formula is
// installed into.
package venv

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bohica-labs/writescore-installer/internal/failure"
	"github.com/bohica-labs/writescore-installer/internal/formula"
	"github.com/bohica-labs/writescore-installer/internal/utils/logger"
	"github.com/bohica-labs/writescore-installer/internal/utils/shell"
	"github.com/bohica-labs/writescore-installer/internal/utils/system"
)

const stepProvision = "provision"

const versionProbe = "import sys; print('%d.%d.%d' % sys.version_info[:3])"

var (
	// LookPath finds an executable on PATH.
	LookPath = exec.LookPath
	// SearchDirs lists the extra directories probed for an interpreter.
	SearchDirs = system.PythonSearchDirs
)

// Interpreter is a Python executable with a known version.
type Interpreter struct {
	Path  string `json:"path"`
	Major int    `json:"major"`
	Minor int    `json:"minor"`
	Patch int    `json:"patch"`
}

// Version returns the dotted version, e.g. 3.12.4.
func (i Interpreter) Version() string {
	return fmt.Sprintf("%d.%d.%d", i.Major, i.Minor, i.Patch)
}

// Environment is a provisioned virtual environment.
type Environment struct {
	Root        string
	Interpreter Interpreter
}

// BinDir is where the environment's entry points live.
func (e *Environment) BinDir() string {
	return filepath.Join(e.Root, "bin")
}

// Python is the environment's own interpreter.
func (e *Environment) Python() string {
	return filepath.Join(e.BinDir(), "python")
}

// Command builds an invocation of the environment's interpreter.
func (e *Environment) Command(args ...string) shell.Command {
	return shell.Command{
		Path: e.Python(),
		Args: args,
		Env: []string{
			"VIRTUAL_ENV=" + e.Root,
			"PIP_DISABLE_PIP_VERSION_CHECK=1",
			"PYTHONDONTWRITEBYTECODE=1",
		},
	}
}

// Discard removes the environment. Discarding twice is not an error.
func (e *Environment) Discard() error {
	if e == nil || e.Root == "" {
		return nil
	}
	if err := os.RemoveAll(e.Root); err != nil {
		return fmt.Errorf("failed to discard environment %s: %w", e.Root, err)
	}
	logger.Logger().Debugf("discarded environment %s", e.Root)
	return nil
}

// ParseVersion parses "3.12.4" (or "Python 3.12.4") into its parts.
func ParseVersion(s string) (major, minor, patch int, err error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "Python"))
	parts := strings.Split(s, ".")
	if len(parts) < 2 {
		return 0, 0, 0, fmt.Errorf("unrecognised python version %q", s)
	}
	nums := make([]int, 3)
	for i := 0; i < len(parts) && i < 3; i++ {
		// tolerate suffixes such as 3.13.0rc1
		digits := parts[i]
		if end := strings.IndexFunc(digits, func(r rune) bool { return r < '0' || r > '9' }); end >= 0 {
			digits = digits[:end]
		}
		n, convErr := strconv.Atoi(digits)
		if convErr != nil {
			return 0, 0, 0, fmt.Errorf("unrecognised python version %q", s)
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], nil
}

// Probe runs the interpreter at path and reports its version.
func Probe(ctx context.Context, path string) (Interpreter, error) {
	out, err := shell.ExecCmdSilent(ctx, shell.Command{Path: path, Args: []string{"-c", versionProbe}})
	if err != nil {
		return Interpreter{}, err
	}
	major, minor, patch, err := ParseVersion(out)
	if err != nil {
		return Interpreter{}, err
	}
	return Interpreter{Path: path, Major: major, Minor: minor, Patch: patch}, nil
}

func candidatePaths(rt formula.Runtime) []string {
	var paths []string
	seen := map[string]bool{}
	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		paths = append(paths, p)
	}

	names := rt.Candidates()
	for _, name := range names {
		if p, err := LookPath(name); err == nil {
			add(p)
		}
	}
	for _, dir := range SearchDirs(rt.KegName()) {
		for _, name := range names {
			p := filepath.Join(dir, name)
			if st, err := os.Stat(p); err == nil && !st.IsDir() && st.Mode()&0111 != 0 {
				add(p)
			}
		}
	}
	return paths
}

// ResolveInterpreter finds an interpreter satisfying rt. A non-empty
// override is the only candidate considered.
func ResolveInterpreter(ctx context.Context, rt formula.Runtime, override string) (Interpreter, error) {
	log := logger.Logger()

	candidates := []string{override}
	if override == "" {
		candidates = candidatePaths(rt)
	}

	var rejected []string
	for _, p := range candidates {
		interp, err := Probe(ctx, p)
		if err != nil {
			log.Debugf("skipping %s: %v", p, err)
			rejected = append(rejected, p+" (unusable)")
			continue
		}
		if rt.Matches(interp.Major, interp.Minor) {
			log.Infof("using %s (Python %s) for %s", interp.Path, interp.Version(), rt)
			return interp, nil
		}
		rejected = append(rejected, fmt.Sprintf("%s (%s)", p, interp.Version()))
	}

	names := rt.Candidates()
	hint := system.RuntimeInstallHint(rt.KegName(), names[0])
	if len(rejected) == 0 {
		return Interpreter{}, failure.Environment(stepProvision,
			"%s is not available: none of %s found; try: %s", rt, strings.Join(names, ", "), hint)
	}
	return Interpreter{}, failure.Environment(stepProvision,
		"%s is not available: tried %s; try: %s", rt, strings.Join(rejected, ", "), hint)
}

// Provision creates a virtual environment at root bound to an interpreter
// satisfying rt. root must not exist yet. Nothing is left behind on failure.
func Provision(ctx context.Context, rt formula.Runtime, root, override string) (*Environment, error) {
	log := logger.Logger()

	interp, err := ResolveInterpreter(ctx, rt, override)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(root); err == nil {
		return nil, failure.Environment(stepProvision, "environment directory %s already exists", root)
	}
	if err := os.MkdirAll(filepath.Dir(root), 0755); err != nil {
		return nil, failure.Environment(stepProvision, "creating %s: %v", filepath.Dir(root), err)
	}

	env := &Environment{Root: root, Interpreter: interp}
	log.Infof("creating virtual environment in %s", root)
	if _, err := shell.ExecCmd(ctx, shell.Command{Path: interp.Path, Args: []string{"-m", "venv", root}}); err != nil {
		env.Discard()
		return nil, failure.Environment(stepProvision, "%s -m venv failed: %v", interp.Path, err)
	}
	if _, err := os.Stat(env.Python()); err != nil {
		env.Discard()
		return nil, failure.Environment(stepProvision, "virtual environment has no interpreter at %s", env.Python())
	}
	return env, nil
}
