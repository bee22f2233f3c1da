package installer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bohica-labs/writescore-installer/internal/formula"
	"github.com/bohica-labs/writescore-installer/internal/utils/logger"
)

// Uninstall removes d's keg and every link in the bin directory that points
// into it.
func Uninstall(d formula.Descriptor, layout Layout) error {
	if err := d.Normalize().Validate(); err != nil {
		return fmt.Errorf("invalid formula: %w", err)
	}
	keg := layout.KegDir(d)
	if _, err := os.Stat(keg); os.IsNotExist(err) {
		return fmt.Errorf("%s: %w", d.FullName(), ErrNotInstalled)
	}

	removed, err := unlinkKeg(keg, layout.BinDir())
	if err != nil {
		return err
	}
	for _, l := range removed {
		logger.Logger().Debugf("unlinked %s", l)
	}

	if err := removeKeg(layout, d); err != nil {
		return err
	}
	logger.Logger().Infof("uninstalled %s", d.FullName())
	return nil
}

// unlinkKeg removes symlinks in binDir whose target lies inside keg.
func unlinkKeg(keg, binDir string) ([]string, error) {
	entries, err := os.ReadDir(binDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", binDir, err)
	}

	prefix := filepath.Clean(keg) + string(filepath.Separator)
	var removed []string
	for _, e := range entries {
		if e.Type()&os.ModeSymlink == 0 {
			continue
		}
		link := filepath.Join(binDir, e.Name())
		target, err := os.Readlink(link)
		if err != nil {
			continue
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(binDir, target)
		}
		if !strings.HasPrefix(filepath.Clean(target), prefix) {
			continue
		}
		if err := os.Remove(link); err != nil {
			return removed, fmt.Errorf("failed to remove link %s: %w", link, err)
		}
		removed = append(removed, link)
	}
	return removed, nil
}

// removeKeg deletes the keg and the rack directory once it is empty.
func removeKeg(layout Layout, d formula.Descriptor) error {
	if err := os.RemoveAll(layout.KegDir(d)); err != nil {
		return fmt.Errorf("failed to remove keg %s: %w", layout.KegDir(d), err)
	}
	rack := layout.RackDir(d)
	if entries, err := os.ReadDir(rack); err == nil && len(entries) == 0 {
		os.Remove(rack)
	}
	return nil
}
