// Package installer runs the install pipeline for a formula:
// verify, stage, provision, install, link, post-install, optional smoke
// test, receipt, caveats. Every step is fatal on failure and the keg is
// removed again.
package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/bohica-labs/writescore-installer/internal/archive"
	"github.com/bohica-labs/writescore-installer/internal/config/manifest"
	"github.com/bohica-labs/writescore-installer/internal/failure"
	"github.com/bohica-labs/writescore-installer/internal/formula"
	"github.com/bohica-labs/writescore-installer/internal/pkgfetcher"
	"github.com/bohica-labs/writescore-installer/internal/utils/logger"
	"github.com/bohica-labs/writescore-installer/internal/utils/system"
	"github.com/bohica-labs/writescore-installer/internal/venv"
	"github.com/google/uuid"
)

// Options controls one install.
type Options struct {
	Layout   Layout
	CacheDir string
	// WorkDir holds the staged source while installing.
	WorkDir string
	// ReportDir receives the step report; empty disables it.
	ReportDir string
	// Python overrides interpreter discovery.
	Python     string
	HTTPClient *http.Client
	// Progress receives the download progress bar.
	Progress io.Writer
	// Out receives caveats.
	Out io.Writer
	// RunTest runs the smoke test after installing.
	RunTest bool
	// KeepFailed leaves a failed keg on disk for inspection.
	KeepFailed bool
}

func (o Options) out() io.Writer {
	if o.Out != nil {
		return o.Out
	}
	return os.Stdout
}

func (o Options) fetchOptions() pkgfetcher.Options {
	return pkgfetcher.Options{CacheDir: o.CacheDir, Client: o.HTTPClient, Progress: o.Progress}
}

// Result describes a finished install.
type Result struct {
	Keg     string
	Env     *venv.Environment
	Links   []string
	Receipt manifest.Receipt
}

// Fetch downloads the formula's archive and verifies its digest and, when
// the formula declares one, its signature.
func Fetch(ctx context.Context, d formula.Descriptor, opts Options) (pkgfetcher.Result, error) {
	fopts := opts.fetchOptions()
	res, err := pkgfetcher.FetchAndVerify(ctx, d.URL, d.SHA256, fopts)
	if err != nil {
		return res, err
	}
	if d.SignatureURL != "" {
		if err := pkgfetcher.VerifySignature(ctx, res.Path, d.SignatureURL, d.SigningKey, fopts); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Install installs d. The caller's descriptor is never modified. An
// existing keg for the same version is replaced.
func Install(ctx context.Context, d formula.Descriptor, opts Options) (result *Result, err error) {
	log := logger.Logger()
	d = d.Normalize()
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid formula: %w", err)
	}
	rt, err := formula.ParseRuntime(d.DependsOn)
	if err != nil {
		return nil, fmt.Errorf("invalid formula: %w", err)
	}

	report := logger.NewStepReport(d.FullName())
	defer func() {
		if err != nil {
			report.Add("FAILED: %v", err)
		}
		writeReport(report, opts.ReportDir)
	}()

	log.Infof("installing %s", d.FullName())

	fetched, err := Fetch(ctx, d, opts)
	if err != nil {
		return nil, err
	}
	report.Add("verified %s sha256 %s", filepath.Base(fetched.Path), fetched.SHA256)

	stageDir := filepath.Join(opts.WorkDir, "stage-"+uuid.NewString())
	defer os.RemoveAll(stageDir)
	srcDir, err := archive.Extract(fetched.Path, d.ArchiveName(), stageDir)
	if err != nil {
		return nil, failure.Integrity(stepStage, "%v", err)
	}
	report.Add("staged source in %s", srcDir)

	keg := opts.Layout.KegDir(d)
	if _, statErr := os.Stat(keg); statErr == nil {
		log.Infof("removing existing keg %s", keg)
		if err := Uninstall(d, opts.Layout); err != nil {
			return nil, fmt.Errorf("failed to remove existing keg: %w", err)
		}
	}

	env, err := venv.Provision(ctx, rt, opts.Layout.LibexecDir(d), opts.Python)
	if err != nil {
		if opts.KeepFailed {
			log.Warnf("keeping failed keg %s", keg)
		} else {
			removeKeg(opts.Layout, d)
		}
		return nil, err
	}
	report.Add("provisioned %s with Python %s", env.Root, env.Interpreter.Version())

	var links []string
	defer func() {
		if err == nil {
			return
		}
		if opts.KeepFailed {
			log.Warnf("keeping failed keg %s", keg)
			return
		}
		for _, l := range links {
			os.Remove(l)
		}
		if discardErr := env.Discard(); discardErr != nil {
			log.Warnf("%v", discardErr)
		}
		removeKeg(opts.Layout, d)
	}()

	if err = InstallDependencies(ctx, env, d, srcDir); err != nil {
		return nil, err
	}
	report.Add("installed %s into %s", d.FullName(), env.Root)

	links, err = Link(env, d, opts.Layout.BinDir())
	if err != nil {
		return nil, err
	}
	report.Add("linked %v", links)

	ran, err := RunPostInstallActions(ctx, env, d.PostInstall)
	if err != nil {
		return nil, err
	}
	for _, c := range ran {
		report.Add("ran %s", c)
	}

	if opts.RunTest && d.HasSmokeTest() {
		if err = RunSmokeTest(ctx, SmokeTestCommand(d, opts.Layout.BinDir()), d.Test.Expect); err != nil {
			return nil, err
		}
		report.Add("smoke test passed")
	}

	receipt := manifest.NewReceipt(d.Name, d.Version)
	receipt.Source = manifest.SourceInfo{
		URL:       d.URL,
		SHA256:    fetched.SHA256,
		SizeBytes: fetched.Size,
		Signed:    d.SignatureURL != "",
	}
	receipt.Runtime = manifest.RuntimeInfo{
		Requirement: rt.String(),
		Interpreter: env.Interpreter.Path,
		Version:     env.Interpreter.Version(),
	}
	receipt.Host = hostInfo(ctx)
	receipt.Binaries = d.Binaries
	receipt.PostInstall = ran
	receipt.SmokeTested = opts.RunTest && d.HasSmokeTest()
	if err = manifest.WriteReceiptToFile(receipt, manifest.ReceiptPath(keg)); err != nil {
		return nil, err
	}

	EmitCaveats(opts.out(), d.Caveats)

	log.Infof("installed %s in %s", d.FullName(), keg)
	return &Result{Keg: keg, Env: env, Links: links, Receipt: receipt}, nil
}

// Test runs the smoke test of an installed keg.
func Test(ctx context.Context, d formula.Descriptor, layout Layout) error {
	if !d.HasSmokeTest() {
		return fmt.Errorf("%s declares no test", d.FullName())
	}
	if _, err := InstalledReceipt(d, layout); err != nil {
		return err
	}
	return RunSmokeTest(ctx, SmokeTestCommand(d, layout.BinDir()), d.Test.Expect)
}

// ErrNotInstalled is returned for a formula with no keg.
var ErrNotInstalled = errors.New("not installed")

// InstalledReceipt reads the receipt of d's keg.
func InstalledReceipt(d formula.Descriptor, layout Layout) (manifest.Receipt, error) {
	path := manifest.ReceiptPath(layout.KegDir(d))
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return manifest.Receipt{}, fmt.Errorf("%s: %w", d.FullName(), ErrNotInstalled)
	}
	return manifest.ReadReceipt(path)
}

func hostInfo(ctx context.Context) manifest.HostInfo {
	info, err := system.GetHostOsInfo(ctx)
	if err != nil {
		logger.Logger().Debugf("host detection incomplete: %v", err)
	}
	return manifest.HostInfo{OS: info.OS, Arch: info.Arch, Name: info.Name, Version: info.Version}
}

func writeReport(report *logger.StepReport, dir string) {
	if dir == "" || len(report.Items) == 0 {
		return
	}
	path, err := report.WriteTo(dir)
	if err != nil {
		logger.Logger().Warnf("failed to write step report: %v", err)
		return
	}
	logger.Logger().Debugf("step report written to %s", path)
}
