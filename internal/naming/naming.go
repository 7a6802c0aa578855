// Package naming provides infrastructure-level naming conventions for
// snapshot overlay files. The overlay filename is the sole source of
// truth for which snapshot owns a given disk file, so every component
// that touches overlays must go through this package.
package naming

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// snapshotNamePattern matches names that are safe to embed in overlay
// filenames and libvirt snapshot metadata.
var snapshotNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// ValidateSnapshotName checks that a snapshot name can be embedded in an
// overlay filename without ambiguity.
func ValidateSnapshotName(name string) error {
	if name == "" {
		return fmt.Errorf("snapshot name is required")
	}
	if !snapshotNamePattern.MatchString(name) {
		return fmt.Errorf("snapshot name must start with an alphanumeric character and contain only alphanumerics, dots, hyphens, or underscores, got %q", name)
	}
	return nil
}

// OverlayPath computes the overlay filename for one disk of a snapshot.
// The overlay is a sibling of the base image.
//
// Example: basePath /images/web.qcow2, snapshot "s1" → /images/web.s1.qcow2
func OverlayPath(basePath, snapshotName string) string {
	dir := filepath.Dir(basePath)
	base := filepath.Base(basePath)

	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if ext == "" {
		// Images without a suffix still get a qcow2 overlay.
		return filepath.Join(dir, fmt.Sprintf("%s.%s.qcow2", stem, snapshotName))
	}

	return filepath.Join(dir, fmt.Sprintf("%s.%s%s", stem, snapshotName, ext))
}

// OverlayFormat returns the storage driver format for snapshot overlays.
// External snapshots are always qcow2 regardless of the base image format,
// since only qcow2 supports backing files.
func OverlayFormat() string {
	return "qcow2"
}
