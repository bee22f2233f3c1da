package installer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bohica-labs/writescore-installer/internal/failure"
	"github.com/bohica-labs/writescore-installer/internal/formula"
	"github.com/bohica-labs/writescore-installer/internal/utils/logger"
	"github.com/bohica-labs/writescore-installer/internal/utils/shell"
	"github.com/bohica-labs/writescore-installer/internal/venv"
)

const (
	stepStage       = "stage"
	stepInstall     = "install"
	stepLink        = "link"
	stepPostInstall = "post-install"
	stepTest        = "test"
)

// pip prints these when the dependency graph cannot be satisfied.
var pipConflictMarkers = []string{
	"ResolutionImpossible",
	"No matching distribution found",
	"Could not find a version that satisfies",
	"conflicting dependencies",
}

// conflictSummary returns pip's most telling error line, or "".
func conflictSummary(output string) string {
	lines := strings.Split(output, "\n")
	for _, marker := range pipConflictMarkers {
		for _, line := range lines {
			if strings.Contains(line, marker) {
				return strings.TrimSpace(line)
			}
		}
	}
	return ""
}

// InstallDependencies installs the staged source at srcDir and its
// transitive dependencies into env.
func InstallDependencies(ctx context.Context, env *venv.Environment, d formula.Descriptor, srcDir string) error {
	log := logger.Logger()

	for key := range shell.GetOSProxyEnvirons() {
		log.Debugf("pip inherits %s from the environment", key)
	}

	log.Infof("upgrading pip in %s", env.Root)
	if out, err := shell.ExecCmdWithStream(ctx, env.Command("-m", "pip", "install", "--upgrade", "pip")); err != nil {
		return dependencyError("pip", out, err)
	}

	log.Infof("installing %s and its dependencies", d.FullName())
	if out, err := shell.ExecCmdWithStream(ctx, env.Command("-m", "pip", "install", srcDir)); err != nil {
		return dependencyError(d.FullName(), out, err)
	}
	return nil
}

func dependencyError(what, output string, err error) error {
	if summary := conflictSummary(output); summary != "" {
		return failure.DependencyResolution(stepInstall, "could not install %s: %s", what, summary)
	}
	return failure.DependencyResolution(stepInstall, "could not install %s: %v", what, err)
}

// Link symlinks each declared binary from the environment into binDir and
// returns the links created. An existing symlink is replaced; any other
// file in the way is an error.
func Link(env *venv.Environment, d formula.Descriptor, binDir string) ([]string, error) {
	if err := os.MkdirAll(binDir, 0755); err != nil {
		return nil, failure.Environment(stepLink, "creating %s: %v", binDir, err)
	}

	var links []string
	for _, name := range d.Binaries {
		src := filepath.Join(env.BinDir(), name)
		if _, err := os.Stat(src); err != nil {
			return links, failure.DependencyResolution(stepLink, "%s did not provide entry point %s", d.FullName(), name)
		}

		dst := filepath.Join(binDir, name)
		if fi, err := os.Lstat(dst); err == nil {
			if fi.Mode()&os.ModeSymlink == 0 {
				return links, failure.Environment(stepLink, "refusing to overwrite %s: not a symlink", dst)
			}
			if err := os.Remove(dst); err != nil {
				return links, failure.Environment(stepLink, "removing stale link %s: %v", dst, err)
			}
		}
		if err := os.Symlink(src, dst); err != nil {
			return links, failure.Environment(stepLink, "linking %s: %v", dst, err)
		}
		logger.Logger().Debugf("linked %s -> %s", dst, src)
		links = append(links, dst)
	}
	return links, nil
}

// RunPostInstallActions runs each action with the environment's interpreter
// in order. The first failure stops the rest. It returns the commands that
// completed.
func RunPostInstallActions(ctx context.Context, env *venv.Environment, actions []formula.Action) ([]string, error) {
	log := logger.Logger()

	var ran []string
	for i, action := range actions {
		cmd := env.Command(action.Args...)
		if action.Description != "" {
			log.Infof("post-install %d/%d: %s", i+1, len(actions), action.Description)
		} else {
			log.Infof("post-install %d/%d: %s", i+1, len(actions), cmd)
		}
		if _, err := shell.ExecCmdWithStream(ctx, cmd); err != nil {
			return ran, failure.PostInstall(stepPostInstall, "action %d (%s) failed: %v", i+1, cmd, err)
		}
		ran = append(ran, cmd.String())
	}
	return ran, nil
}

// EmitCaveats prints text under a heading. Blank text prints nothing.
func EmitCaveats(w io.Writer, text string) {
	text = strings.TrimRight(text, "\n")
	if strings.TrimSpace(text) == "" {
		return
	}
	if _, err := fmt.Fprintf(w, "==> Caveats\n%s\n", text); err != nil {
		logger.Logger().Warnf("failed to print caveats: %v", err)
	}
}

// SmokeTestCommand builds the smoke test invocation of the linked binary.
func SmokeTestCommand(d formula.Descriptor, binDir string) shell.Command {
	binary := d.Test.Binary
	if binary == "" {
		binary = d.Name
	}
	return shell.Command{Path: filepath.Join(binDir, binary), Args: d.Test.Args}
}

// RunSmokeTest runs cmd and checks that its output contains expected,
// literally and case-sensitively.
func RunSmokeTest(ctx context.Context, cmd shell.Command, expected string) error {
	out, err := shell.ExecCmd(ctx, cmd)
	if err != nil {
		return failure.Verification(stepTest, "%s failed: %v", cmd, err)
	}
	if !strings.Contains(out, expected) {
		return failure.Verification(stepTest, "output of %s does not contain %q: %q", cmd, expected, strings.TrimSpace(out))
	}
	logger.Logger().Infof("smoke test passed: %s", strings.TrimSpace(out))
	return nil
}
