package pkgfetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/bohica-labs/writescore-installer/internal/failure"
	"github.com/bohica-labs/writescore-installer/internal/utils/logger"
	"github.com/bohica-labs/writescore-installer/internal/utils/network"
	"github.com/schollz/progressbar/v3"
)

const (
	stepFetch  = "fetch"
	stepVerify = "verify"
)

// Options controls where archives are cached and how they are downloaded.
type Options struct {
	CacheDir string
	Client   *http.Client
	// Progress receives the progress bar. Nil means stderr; io.Discard hides it.
	Progress io.Writer
}

// Result describes a verified archive on disk.
type Result struct {
	Path   string
	SHA256 string
	Size   int64
	Cached bool
}

func (o Options) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	return network.NewSecureHTTPClient(10 * time.Minute)
}

func (o Options) progress() io.Writer {
	if o.Progress != nil {
		return o.Progress
	}
	return os.Stderr
}

func archiveName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && path.Base(u.Path) != "/" && path.Base(u.Path) != "." {
		return path.Base(u.Path)
	}
	return "download"
}

// CachePath returns where the archive for rawURL with the given digest is
// cached. The digest prefix keeps a re-published archive from colliding
// with an old one of the same name.
func CachePath(cacheDir, rawURL, digest string) string {
	prefix := digest
	if len(prefix) > 16 {
		prefix = prefix[:16]
	}
	return filepath.Join(cacheDir, prefix+"--"+archiveName(rawURL))
}

// ComputeSHA256 returns the hex SHA-256 digest of the file at p.
func ComputeSHA256(p string) (string, int64, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hashing %s: %w", p, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// FetchAndVerify downloads rawURL into the cache and checks its SHA-256
// digest against expectedDigest. A mismatching file is never left in the
// cache. A cached file whose digest already matches is returned without
// touching the network.
func FetchAndVerify(ctx context.Context, rawURL, expectedDigest string, opts Options) (Result, error) {
	log := logger.Logger()
	expected := strings.ToLower(strings.TrimSpace(expectedDigest))
	if expected == "" {
		return Result{}, failure.Integrity(stepVerify, "no expected sha256 for %s", rawURL)
	}

	if opts.CacheDir == "" {
		return Result{}, fmt.Errorf("no cache directory configured")
	}
	if err := os.MkdirAll(opts.CacheDir, 0755); err != nil {
		return Result{}, fmt.Errorf("creating cache directory: %w", err)
	}
	dest := CachePath(opts.CacheDir, rawURL, expected)

	if got, size, err := ComputeSHA256(dest); err == nil {
		if got == expected {
			log.Infof("using cached %s", filepath.Base(dest))
			return Result{Path: dest, SHA256: got, Size: size, Cached: true}, nil
		}
		log.Warnf("cached %s has sha256 %s, expected %s; downloading again", filepath.Base(dest), got, expected)
		if err := os.Remove(dest); err != nil {
			return Result{}, fmt.Errorf("removing stale cache entry: %w", err)
		}
	}

	tmp := dest + ".incomplete"
	got, size, err := download(ctx, rawURL, tmp, archiveName(rawURL), opts)
	if err != nil {
		os.Remove(tmp)
		return Result{}, err
	}

	if got != expected {
		os.Remove(tmp)
		return Result{}, failure.Integrity(stepVerify,
			"sha256 mismatch for %s: expected %s, got %s", rawURL, expected, got)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return Result{}, fmt.Errorf("moving download into cache: %w", err)
	}

	log.Infof("verified %s (sha256 %s, %d bytes)", filepath.Base(dest), got, size)
	return Result{Path: dest, SHA256: got, Size: size}, nil
}

// download writes rawURL to dest and returns the digest of what was written.
func download(ctx context.Context, rawURL, dest, name string, opts Options) (string, int64, error) {
	body, size, err := open(ctx, rawURL, opts)
	if err != nil {
		return "", 0, err
	}
	defer body.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", 0, fmt.Errorf("creating %s: %w", dest, err)
	}
	defer out.Close()

	bar := progressbar.NewOptions64(size,
		progressbar.OptionSetWriter(opts.progress()),
		progressbar.OptionSetDescription("downloading "+name),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(opts.progress()) }),
	)

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(out, h, bar), body)
	if err != nil {
		return "", n, failure.Integrity(stepFetch, "reading %s: %v", rawURL, err)
	}
	if size > 0 && n != size {
		return "", n, failure.Integrity(stepFetch, "short read from %s: got %d of %d bytes", rawURL, n, size)
	}
	if err := bar.Finish(); err != nil {
		logger.Logger().Debugf("progress bar: %v", err)
	}

	if err := out.Sync(); err != nil {
		return "", n, fmt.Errorf("flushing %s: %w", dest, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// open returns a reader for rawURL and its length, -1 if unknown.
func open(ctx context.Context, rawURL string, opts Options) (io.ReadCloser, int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, 0, failure.Integrity(stepFetch, "invalid url %q: %v", rawURL, err)
	}

	switch u.Scheme {
	case "file":
		f, err := os.Open(u.Path)
		if err != nil {
			return nil, 0, failure.Integrity(stepFetch, "opening %s: %v", u.Path, err)
		}
		st, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, 0, failure.Integrity(stepFetch, "stat %s: %v", u.Path, err)
		}
		return f, st.Size(), nil

	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, 0, failure.Integrity(stepFetch, "building request for %s: %v", rawURL, err)
		}
		req.Header.Set("User-Agent", "writescore-installer")
		resp, err := opts.client().Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, 0, err
			}
			return nil, 0, failure.Integrity(stepFetch, "downloading %s: %v", rawURL, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, 0, failure.Integrity(stepFetch, "downloading %s: bad status: %s", rawURL, resp.Status)
		}
		return resp.Body, resp.ContentLength, nil

	default:
		return nil, 0, failure.Integrity(stepFetch, "unsupported url scheme %q", u.Scheme)
	}
}
