// Package linker creates link artifacts pointing from a deleted duplicate's
// former location to the kept file.
//
// The Service interface keeps the engine free of any platform mechanism:
// the default implementation writes relative symlinks, and platforms with
// native shortcut formats can substitute their own Service.
package linker

import (
	"fmt"
	"os"
	"path/filepath"
)

// Suffix is appended to a deleted path to form its link artifact location.
const Suffix = ".lnk"

// Service creates a link artifact at location pointing to target. A failure
// is reported, never raised through the deletion path.
type Service interface {
	Link(target, location string) error
}

// Symlink is the default Service. It creates relative symlinks atomically
// via a temp name and rename, so a crash never leaves a half-made artifact
// at the final location.
type Symlink struct{}

// Link creates a symlink at location pointing to target.
func (Symlink) Link(target, location string) error {
	// Verify the target exists first, so we never leave a dangling link.
	if _, err := os.Stat(target); err != nil {
		return fmt.Errorf("link target missing: %w", err)
	}

	rel, err := filepath.Rel(filepath.Dir(location), target)
	if err != nil {
		rel = target // fall back to absolute
	}

	tmp := location + ".tmp"
	_ = os.Remove(tmp)
	if err := os.Symlink(rel, tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, location); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
