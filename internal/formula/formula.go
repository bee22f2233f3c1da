// Package formula describes a package to install: where its source comes
// from, how to check it, which runtime it needs and what to run after the
// install. Descriptors are values; the installer never changes one.
package formula

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"slices"
	"strings"
)

// Action is one post-install step, run as `<env python> <args...>`.
type Action struct {
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Args        []string `yaml:"args" json:"args"`
}

// SmokeTest runs an installed binary and checks its output.
type SmokeTest struct {
	// Binary defaults to the descriptor name.
	Binary string   `yaml:"binary,omitempty" json:"binary,omitempty"`
	Args   []string `yaml:"args,omitempty" json:"args,omitempty"`
	Expect string   `yaml:"expect,omitempty" json:"expect,omitempty"`
}

// Descriptor is the package descriptor.
type Descriptor struct {
	Name         string    `yaml:"name" json:"name"`
	Desc         string    `yaml:"desc,omitempty" json:"desc,omitempty"`
	Homepage     string    `yaml:"homepage,omitempty" json:"homepage,omitempty"`
	Version      string    `yaml:"version" json:"version"`
	URL          string    `yaml:"url" json:"url"`
	SHA256       string    `yaml:"sha256" json:"sha256"`
	License      string    `yaml:"license,omitempty" json:"license,omitempty"`
	DependsOn    string    `yaml:"depends_on" json:"depends_on"`
	Binaries     []string  `yaml:"binaries,omitempty" json:"binaries,omitempty"`
	PostInstall  []Action  `yaml:"post_install,omitempty" json:"post_install,omitempty"`
	Caveats      string    `yaml:"caveats,omitempty" json:"caveats,omitempty"`
	Test         SmokeTest `yaml:"test,omitempty" json:"test,omitempty"`
	SignatureURL string    `yaml:"signature_url,omitempty" json:"signature_url,omitempty"`
	SigningKey   string    `yaml:"signing_key,omitempty" json:"signing_key,omitempty"`
}

var (
	nameRe    = regexp.MustCompile(`^[a-z0-9][a-z0-9._+-]*$`)
	versionRe = regexp.MustCompile(`^[0-9A-Za-z][0-9A-Za-z._+-]*$`)
	sha256Re  = regexp.MustCompile(`^[0-9a-f]{64}$`)
)

// Clone returns a deep copy so callers can never alias the original slices.
func (d Descriptor) Clone() Descriptor {
	c := d
	c.Binaries = slices.Clone(d.Binaries)
	if d.PostInstall != nil {
		c.PostInstall = make([]Action, len(d.PostInstall))
		for i, a := range d.PostInstall {
			c.PostInstall[i] = Action{Description: a.Description, Args: slices.Clone(a.Args)}
		}
	}
	c.Test.Args = slices.Clone(d.Test.Args)
	return c
}

// Normalize returns a copy with the digest lowercased, whitespace trimmed
// and defaults filled in.
func (d Descriptor) Normalize() Descriptor {
	c := d.Clone()
	c.Name = strings.TrimSpace(c.Name)
	c.Version = strings.TrimSpace(c.Version)
	c.URL = strings.TrimSpace(c.URL)
	c.SHA256 = strings.ToLower(strings.TrimSpace(c.SHA256))
	c.DependsOn = strings.TrimSpace(c.DependsOn)
	if len(c.Binaries) == 0 && c.Name != "" {
		c.Binaries = []string{c.Name}
	}
	if c.Test.Binary == "" && len(c.Test.Args) > 0 {
		c.Test.Binary = c.Name
	}
	return c
}

// Validate checks the descriptor's invariants.
func (d Descriptor) Validate() error {
	if !nameRe.MatchString(d.Name) {
		return fmt.Errorf("invalid name %q", d.Name)
	}
	if d.Version == "" {
		return fmt.Errorf("%s: version must not be empty", d.Name)
	}
	// the version is a keg directory name
	if !versionRe.MatchString(d.Version) {
		return fmt.Errorf("%s: invalid version %q", d.Name, d.Version)
	}
	u, err := url.Parse(d.URL)
	if err != nil {
		return fmt.Errorf("%s: invalid url %q: %w", d.Name, d.URL, err)
	}
	switch u.Scheme {
	case "http", "https", "file":
	default:
		return fmt.Errorf("%s: unsupported url scheme %q", d.Name, u.Scheme)
	}
	if !sha256Re.MatchString(d.SHA256) {
		return fmt.Errorf("%s: sha256 must be 64 lowercase hex characters", d.Name)
	}
	if _, err := ParseRuntime(d.DependsOn); err != nil {
		return fmt.Errorf("%s: %w", d.Name, err)
	}
	for _, b := range d.Binaries {
		if b == "" || b == "." || b == ".." || strings.ContainsAny(b, `/\`) {
			return fmt.Errorf("%s: invalid binary name %q", d.Name, b)
		}
	}
	for i, a := range d.PostInstall {
		if len(a.Args) == 0 {
			return fmt.Errorf("%s: post_install[%d] has no arguments", d.Name, i)
		}
	}
	if len(d.Test.Args) > 0 && d.Test.Expect == "" {
		return fmt.Errorf("%s: test.expect must be set when test.args is", d.Name)
	}
	if (d.SignatureURL == "") != (d.SigningKey == "") {
		return fmt.Errorf("%s: signature_url and signing_key must be set together", d.Name)
	}
	return nil
}

// ArchiveName returns the file name of the source archive.
func (d Descriptor) ArchiveName() string {
	u, err := url.Parse(d.URL)
	if err != nil || path.Base(u.Path) == "/" || path.Base(u.Path) == "." {
		return d.Name + "-" + d.Version + ".tar.gz"
	}
	return path.Base(u.Path)
}

// HasSmokeTest reports whether a smoke test is declared.
func (d Descriptor) HasSmokeTest() bool {
	return len(d.Test.Args) > 0
}

// FullName is name@version.
func (d Descriptor) FullName() string {
	return d.Name + "@" + d.Version
}
