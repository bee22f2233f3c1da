package installer

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/bohica-labs/writescore-installer/internal/config/manifest"
	"github.com/bohica-labs/writescore-installer/internal/failure"
	"github.com/bohica-labs/writescore-installer/internal/formula"
	"github.com/bohica-labs/writescore-installer/internal/utils/shell"
	"github.com/bohica-labs/writescore-installer/internal/venv"
	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"
)

// fakeHost answers every external command the pipeline runs.
type fakeHost struct {
	t         *testing.T
	pythonVer string
	// failures keyed by a substring of the command line
	failures map[string]string
	version  string
	calls    []string
}

func (h *fakeHost) record(c shell.Command) string {
	line := c.String()
	h.calls = append(h.calls, line)
	return line
}

func (h *fakeHost) fail(line string) (string, error) {
	for match, out := range h.failures {
		if strings.Contains(line, match) {
			return out, errors.New("exit status 1")
		}
	}
	return "", nil
}

func (h *fakeHost) count(substr string) int {
	n := 0
	for _, c := range h.calls {
		if strings.Contains(c, substr) {
			n++
		}
	}
	return n
}

func newFakeHost(t *testing.T) *fakeHost {
	t.Helper()
	h := &fakeHost{t: t, pythonVer: "3.12.4", failures: map[string]string{}, version: "WriteScore 6.4.0"}

	pyDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(pyDir, "python3.12"), []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}

	origLook, origDirs := venv.LookPath, venv.SearchDirs
	origExec, origSilent, origStream := shell.ExecCmd, shell.ExecCmdSilent, shell.ExecCmdWithStream
	t.Cleanup(func() {
		venv.LookPath, venv.SearchDirs = origLook, origDirs
		shell.ExecCmd, shell.ExecCmdSilent, shell.ExecCmdWithStream = origExec, origSilent, origStream
	})

	venv.LookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	venv.SearchDirs = func(string) []string { return []string{pyDir} }

	shell.ExecCmdSilent = func(_ context.Context, c shell.Command) (string, error) {
		if len(c.Args) == 2 && c.Args[0] == "-c" {
			return h.pythonVer + "\n", nil
		}
		if c.Path == "uname" {
			return "x86_64\n", nil
		}
		return "", errors.New("not available")
	}

	shell.ExecCmd = func(_ context.Context, c shell.Command) (string, error) {
		line := h.record(c)
		if len(c.Args) == 3 && c.Args[1] == "venv" {
			if out, err := h.fail(line); err != nil {
				return out, err
			}
			root := c.Args[2]
			if err := os.MkdirAll(filepath.Join(root, "bin"), 0755); err != nil {
				return "", err
			}
			return "", os.WriteFile(filepath.Join(root, "bin", "python"), nil, 0755)
		}
		if out, err := h.fail(line); err != nil {
			return out, err
		}
		if strings.HasSuffix(c.Path, "/writescore") {
			return h.version + "\n", nil
		}
		h.t.Fatalf("unexpected command %s", line)
		return "", nil
	}

	shell.ExecCmdWithStream = func(_ context.Context, c shell.Command) (string, error) {
		line := h.record(c)
		if out, err := h.fail(line); err != nil {
			return out, err
		}
		// pip installing the staged source provides the entry point
		if len(c.Args) == 4 && c.Args[1] == "pip" && c.Args[2] == "install" {
			bin := filepath.Dir(c.Path)
			return "Successfully installed writescore-6.4.0\n", os.WriteFile(filepath.Join(bin, "writescore"), []byte("#!/bin/sh\n"), 0755)
		}
		return "", nil
	}
	return h
}

func sdistArchive(t *testing.T) (string, string) {
	t.Helper()
	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	files := map[string]string{
		"writescore-6.4.0/pyproject.toml":              "[project]\nname = \"writescore\"\n",
		"writescore-6.4.0/src/writescore/__init__.py": "__version__ = \"6.4.0\"\n",
	}
	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		tw.WriteHeader(&tar.Header{Name: n, Mode: 0644, Size: int64(len(files[n])), Typeflag: tar.TypeReg})
		tw.Write([]byte(files[n]))
	}
	tw.Close()

	var gzBuf bytes.Buffer
	gz := gzip.NewWriter(&gzBuf)
	gz.Write(tarBuf.Bytes())
	gz.Close()

	path := filepath.Join(t.TempDir(), "writescore-6.4.0.tar.gz")
	if err := os.WriteFile(path, gzBuf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256(gzBuf.Bytes())
	return path, hex.EncodeToString(sum[:])
}

func testDescriptor(t *testing.T) formula.Descriptor {
	t.Helper()
	path, digest := sdistArchive(t)
	d := formula.WriteScore()
	d.URL = "file://" + path
	d.SHA256 = digest
	return d
}

func testOptions(t *testing.T) (Options, *bytes.Buffer) {
	t.Helper()
	root := t.TempDir()
	out := &bytes.Buffer{}
	return Options{
		Layout:    NewLayout(filepath.Join(root, "prefix"), ""),
		CacheDir:  filepath.Join(root, "cache"),
		WorkDir:   filepath.Join(root, "work"),
		ReportDir: filepath.Join(root, "work", "reports"),
		Progress:  io.Discard,
		Out:       out,
		RunTest:   true,
	}, out
}

func TestInstallSucceeds(t *testing.T) {
	h := newFakeHost(t)
	d := testDescriptor(t)
	opts, out := testOptions(t)

	res, err := Install(context.Background(), d, opts)
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	if res.Keg != opts.Layout.KegDir(d) {
		t.Errorf("unexpected keg %s", res.Keg)
	}
	if _, err := os.Stat(res.Env.Python()); err != nil {
		t.Errorf("environment not created: %v", err)
	}
	if n := h.count("spacy download en_core_web_sm"); n != 1 {
		t.Errorf("expected model download exactly once, got %d", n)
	}
	if h.count("pip install --upgrade pip") != 1 {
		t.Error("pip was not upgraded")
	}
	if !strings.Contains(out.String(), "==> Caveats") || !strings.Contains(out.String(), "writescore analyze document.md") {
		t.Errorf("caveats not emitted: %q", out.String())
	}
	if h.count("writescore --version") != 1 {
		t.Error("smoke test not run")
	}

	link := filepath.Join(opts.Layout.BinDir(), "writescore")
	target, err := os.Readlink(link)
	if err != nil || target != filepath.Join(res.Env.BinDir(), "writescore") {
		t.Errorf("bad link %s -> %s: %v", link, target, err)
	}

	receipt, err := InstalledReceipt(d, opts.Layout)
	if err != nil {
		t.Fatalf("reading receipt: %v", err)
	}
	if receipt.Source.SHA256 != d.SHA256 || receipt.Runtime.Version != "3.12.4" || !receipt.SmokeTested {
		t.Errorf("unexpected receipt %+v", receipt)
	}
	if len(receipt.PostInstall) != 1 {
		t.Errorf("expected one post-install entry, got %v", receipt.PostInstall)
	}

	entries, err := os.ReadDir(opts.WorkDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "stage-") {
			t.Errorf("staging dir %s left behind", e.Name())
		}
	}
	if _, err := os.Stat(filepath.Join(opts.ReportDir, "install-writescore_6_4_0.txt")); err != nil {
		t.Errorf("step report missing: %v", err)
	}
}

func TestInstallDoesNotModifyDescriptor(t *testing.T) {
	newFakeHost(t)
	d := testDescriptor(t)
	before := d.Clone()
	opts, _ := testOptions(t)

	if _, err := Install(context.Background(), d, opts); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if diff := cmp.Diff(before, d); diff != "" {
		t.Errorf("descriptor modified (-before +after):\n%s", diff)
	}
}

func TestInstallChecksumMismatch(t *testing.T) {
	h := newFakeHost(t)
	d := testDescriptor(t)
	actual := d.SHA256
	d.SHA256 = "abc" + strings.Repeat("0", 61)
	opts, out := testOptions(t)

	_, err := Install(context.Background(), d, opts)
	if !errors.Is(err, failure.ErrIntegrity) {
		t.Fatalf("expected IntegrityError, got %v", err)
	}
	if !strings.Contains(err.Error(), d.SHA256) || !strings.Contains(err.Error(), actual) {
		t.Errorf("message should name both digests: %v", err)
	}
	if _, err := os.Stat(opts.Layout.Cellar); !os.IsNotExist(err) {
		t.Error("environment created despite checksum mismatch")
	}
	if len(h.calls) != 0 {
		t.Errorf("no command should run, got %v", h.calls)
	}
	if out.Len() != 0 {
		t.Error("caveats emitted for failed install")
	}
}

func TestInstallMissingRuntime(t *testing.T) {
	h := newFakeHost(t)
	h.pythonVer = "3.11.2"
	d := testDescriptor(t)
	opts, _ := testOptions(t)

	_, err := Install(context.Background(), d, opts)
	if !errors.Is(err, failure.ErrEnvironment) {
		t.Fatalf("expected EnvironmentError, got %v", err)
	}
	if _, err := os.Stat(opts.Layout.KegDir(d)); !os.IsNotExist(err) {
		t.Error("keg left behind")
	}
	if h.count("pip") != 0 {
		t.Error("pip should not run without an environment")
	}
}

func TestInstallFailuresDiscardEnvironment(t *testing.T) {
	tests := []struct {
		name      string
		failOn    string
		output    string
		wantKind  error
		wantInMsg string
	}{
		{
			name:      "unresolvable constraints",
			failOn:    "pip install /",
			output:    "ERROR: Cannot install writescore because these package versions have conflicting dependencies.\nERROR: ResolutionImpossible: for help visit https://pip.pypa.io\n",
			wantKind:  failure.ErrDependencyResolution,
			wantInMsg: "ResolutionImpossible",
		},
		{
			name:      "model download fails",
			failOn:    "spacy download",
			output:    "ERROR: HTTP error 404",
			wantKind:  failure.ErrPostInstall,
			wantInMsg: "action 1",
		},
		{
			name:      "wrong version output",
			failOn:    "",
			wantKind:  failure.ErrVerification,
			wantInMsg: "WriteScore",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newFakeHost(t)
			if tt.failOn != "" {
				h.failures[tt.failOn] = tt.output
			} else {
				h.version = "writescore 6.4.0"
			}
			d := testDescriptor(t)
			opts, out := testOptions(t)

			_, err := Install(context.Background(), d, opts)
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("expected %v, got %v", tt.wantKind, err)
			}
			if !strings.Contains(err.Error(), tt.wantInMsg) {
				t.Errorf("expected %q in %v", tt.wantInMsg, err)
			}
			if _, err := os.Stat(opts.Layout.KegDir(d)); !os.IsNotExist(err) {
				t.Error("failed keg not removed")
			}
			if _, err := os.Lstat(filepath.Join(opts.Layout.BinDir(), "writescore")); !os.IsNotExist(err) {
				t.Error("link left behind after failure")
			}
			if out.Len() != 0 {
				t.Error("caveats emitted for failed install")
			}
		})
	}
}

func TestInstallKeepFailed(t *testing.T) {
	h := newFakeHost(t)
	h.failures["spacy download"] = "boom"
	d := testDescriptor(t)
	opts, _ := testOptions(t)
	opts.KeepFailed = true

	if _, err := Install(context.Background(), d, opts); !errors.Is(err, failure.ErrPostInstall) {
		t.Fatalf("expected PostInstallError, got %v", err)
	}
	if _, err := os.Stat(opts.Layout.LibexecDir(d)); err != nil {
		t.Errorf("failed keg should be kept: %v", err)
	}
}

func TestInstallKeepFailedProvision(t *testing.T) {
	h := newFakeHost(t)
	h.failures["-m venv"] = "Error: ensurepip is not available"
	d := testDescriptor(t)
	opts, _ := testOptions(t)
	opts.KeepFailed = true

	if _, err := Install(context.Background(), d, opts); !errors.Is(err, failure.ErrEnvironment) {
		t.Fatalf("expected EnvironmentError, got %v", err)
	}
	if _, err := os.Stat(opts.Layout.KegDir(d)); err != nil {
		t.Errorf("failed keg should be kept: %v", err)
	}

	opts.KeepFailed = false
	if _, err := Install(context.Background(), d, opts); !errors.Is(err, failure.ErrEnvironment) {
		t.Fatalf("expected EnvironmentError, got %v", err)
	}
	if _, err := os.Stat(opts.Layout.KegDir(d)); !os.IsNotExist(err) {
		t.Error("failed keg not removed")
	}
}

func kegFiles(t *testing.T, keg string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(keg, func(p string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(keg, p)
		files = append(files, rel)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return files
}

func TestInstallTwiceIsIdempotent(t *testing.T) {
	h := newFakeHost(t)
	d := testDescriptor(t)
	opts, _ := testOptions(t)

	first, err := Install(context.Background(), d, opts)
	if err != nil {
		t.Fatalf("first install failed: %v", err)
	}
	firstFiles := kegFiles(t, first.Keg)

	second, err := Install(context.Background(), d, opts)
	if err != nil {
		t.Fatalf("second install failed: %v", err)
	}
	if diff := cmp.Diff(firstFiles, kegFiles(t, second.Keg)); diff != "" {
		t.Errorf("keg differs between installs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first.Links, second.Links); diff != "" {
		t.Errorf("links differ (-first +second):\n%s", diff)
	}
	if h.count("venv") != 2 {
		t.Errorf("expected a fresh environment per install, got %d", h.count("venv"))
	}

	bins, _ := os.ReadDir(opts.Layout.BinDir())
	if len(bins) != 1 {
		t.Errorf("expected one linked binary, got %d", len(bins))
	}
}

func TestRunSmokeTest(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		err     error
		wantErr bool
	}{
		{name: "exact", output: "WriteScore 6.4.0\n"},
		{name: "embedded", output: "This is WriteScore, version 6.4.0"},
		{name: "wrong case", output: "writescore 6.4.0", wantErr: true},
		{name: "empty", output: "", wantErr: true},
		{name: "command fails", output: "WriteScore", err: errors.New("exit status 2"), wantErr: true},
	}

	orig := shell.ExecCmd
	defer func() { shell.ExecCmd = orig }()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shell.ExecCmd = func(context.Context, shell.Command) (string, error) { return tt.output, tt.err }
			err := RunSmokeTest(context.Background(), shell.Command{Path: "/p/bin/writescore", Args: []string{"--version"}}, "WriteScore")
			if tt.wantErr {
				if !errors.Is(err, failure.ErrVerification) {
					t.Fatalf("expected VerificationError, got %v", err)
				}
				if !strings.HasPrefix(err.Error(), "test: ") {
					t.Errorf("message should name the step: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRunPostInstallActionsAbortsRemaining(t *testing.T) {
	var ran []string
	orig := shell.ExecCmdWithStream
	defer func() { shell.ExecCmdWithStream = orig }()
	shell.ExecCmdWithStream = func(_ context.Context, c shell.Command) (string, error) {
		ran = append(ran, c.Args[0])
		if c.Args[0] == "second" {
			return "", errors.New("exit status 1")
		}
		return "", nil
	}

	env := &venv.Environment{Root: "/keg/libexec"}
	actions := []formula.Action{{Args: []string{"first"}}, {Args: []string{"second"}}, {Args: []string{"third"}}}
	done, err := RunPostInstallActions(context.Background(), env, actions)
	if !errors.Is(err, failure.ErrPostInstall) {
		t.Fatalf("expected PostInstallError, got %v", err)
	}
	if !strings.Contains(err.Error(), "action 2") {
		t.Errorf("message should name the action: %v", err)
	}
	if diff := cmp.Diff([]string{"first", "second"}, ran); diff != "" {
		t.Errorf("unexpected actions run (-want +got):\n%s", diff)
	}
	if len(done) != 1 {
		t.Errorf("expected one completed action, got %v", done)
	}
}

func TestEmitCaveats(t *testing.T) {
	var buf bytes.Buffer
	EmitCaveats(&buf, "  \n")
	if buf.Len() != 0 {
		t.Errorf("blank caveats printed %q", buf.String())
	}

	EmitCaveats(&buf, formula.WriteScoreCaveats)
	if !strings.HasPrefix(buf.String(), "==> Caveats\nWriteScore has been installed") {
		t.Errorf("unexpected caveats output %q", buf.String())
	}
	if strings.HasSuffix(buf.String(), "\n\n") {
		t.Error("caveats should end with a single newline")
	}
}

func TestConflictSummary(t *testing.T) {
	out := "Collecting writescore\nERROR: No matching distribution found for spacy>=9\n"
	if got := conflictSummary(out); got != "ERROR: No matching distribution found for spacy>=9" {
		t.Errorf("unexpected summary %q", got)
	}
	if got := conflictSummary("network unreachable"); got != "" {
		t.Errorf("expected no summary, got %q", got)
	}
}

func TestLinkRefusesRegularFile(t *testing.T) {
	root := t.TempDir()
	env := &venv.Environment{Root: filepath.Join(root, "libexec")}
	os.MkdirAll(env.BinDir(), 0755)
	os.WriteFile(filepath.Join(env.BinDir(), "writescore"), nil, 0755)

	binDir := filepath.Join(root, "bin")
	os.MkdirAll(binDir, 0755)
	os.WriteFile(filepath.Join(binDir, "writescore"), []byte("someone else's"), 0755)

	_, err := Link(env, formula.WriteScore(), binDir)
	if !errors.Is(err, failure.ErrEnvironment) {
		t.Fatalf("expected EnvironmentError, got %v", err)
	}
}

func TestLinkMissingEntryPoint(t *testing.T) {
	root := t.TempDir()
	env := &venv.Environment{Root: filepath.Join(root, "libexec")}

	_, err := Link(env, formula.WriteScore(), filepath.Join(root, "bin"))
	if !errors.Is(err, failure.ErrDependencyResolution) {
		t.Fatalf("expected DependencyResolutionError, got %v", err)
	}
}

func TestUninstall(t *testing.T) {
	newFakeHost(t)
	d := testDescriptor(t)
	opts, _ := testOptions(t)

	if _, err := Install(context.Background(), d, opts); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	other := filepath.Join(opts.Layout.BinDir(), "other")
	if err := os.Symlink("/usr/bin/true", other); err != nil {
		t.Fatal(err)
	}

	if err := Uninstall(d, opts.Layout); err != nil {
		t.Fatalf("Uninstall failed: %v", err)
	}
	if _, err := os.Stat(opts.Layout.RackDir(d)); !os.IsNotExist(err) {
		t.Error("rack not removed")
	}
	if _, err := os.Lstat(filepath.Join(opts.Layout.BinDir(), "writescore")); !os.IsNotExist(err) {
		t.Error("link not removed")
	}
	if _, err := os.Lstat(other); err != nil {
		t.Error("unrelated link removed")
	}

	if err := Uninstall(d, opts.Layout); !errors.Is(err, ErrNotInstalled) {
		t.Errorf("expected ErrNotInstalled, got %v", err)
	}
}

func TestUninstallRejectsPathVersion(t *testing.T) {
	opts, _ := testOptions(t)
	sibling := filepath.Join(opts.Layout.Cellar, "otherpkg", "1.0")
	if err := os.MkdirAll(sibling, 0755); err != nil {
		t.Fatal(err)
	}

	d := formula.WriteScore()
	d.Version = ".."
	if err := Uninstall(d, opts.Layout); err == nil || !strings.Contains(err.Error(), "invalid version") {
		t.Fatalf("expected invalid version error, got %v", err)
	}
	if _, err := os.Stat(sibling); err != nil {
		t.Errorf("other keg removed: %v", err)
	}
}

func TestTestInstalledKeg(t *testing.T) {
	h := newFakeHost(t)
	d := testDescriptor(t)
	opts, _ := testOptions(t)
	opts.RunTest = false

	if err := Test(context.Background(), d, opts.Layout); !errors.Is(err, ErrNotInstalled) {
		t.Fatalf("expected ErrNotInstalled, got %v", err)
	}
	if _, err := Install(context.Background(), d, opts); err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if h.count("--version") != 0 {
		t.Fatal("smoke test should not run without RunTest")
	}
	if err := Test(context.Background(), d, opts.Layout); err != nil {
		t.Fatalf("Test failed: %v", err)
	}
	receipt, _ := InstalledReceipt(d, opts.Layout)
	if receipt.SmokeTested {
		t.Error("receipt should record that no smoke test ran during install")
	}
	if _, err := manifest.ReadReceipt(manifest.ReceiptPath(opts.Layout.KegDir(d))); err != nil {
		t.Error(err)
	}
}
