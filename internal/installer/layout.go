package installer

import (
	"path/filepath"

	"github.com/bohica-labs/writescore-installer/internal/formula"
)

// Layout locates kegs and linked binaries on disk.
//
//	<cellar>/<name>/<version>/           keg
//	<cellar>/<name>/<version>/libexec/   virtual environment
//	<prefix>/bin/<binary>                symlink into libexec/bin
type Layout struct {
	Prefix string
	Cellar string
}

// NewLayout returns a layout with Cellar defaulting to <prefix>/Cellar.
func NewLayout(prefix, cellar string) Layout {
	if cellar == "" {
		cellar = filepath.Join(prefix, "Cellar")
	}
	return Layout{Prefix: prefix, Cellar: cellar}
}

func (l Layout) BinDir() string {
	return filepath.Join(l.Prefix, "bin")
}

func (l Layout) RackDir(d formula.Descriptor) string {
	return filepath.Join(l.Cellar, d.Name)
}

func (l Layout) KegDir(d formula.Descriptor) string {
	return filepath.Join(l.RackDir(d), d.Version)
}

func (l Layout) LibexecDir(d formula.Descriptor) string {
	return filepath.Join(l.KegDir(d), "libexec")
}
