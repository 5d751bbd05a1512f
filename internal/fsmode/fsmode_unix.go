//go:build !windows

package fsmode

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/meigma/carton/core"
)

// Probe returns the neutral mode bits for a file described by info.
// info should come from Lstat so symlink permissions are not followed.
func Probe(info fs.FileInfo) int64 {
	return ToBits(info.Mode().Perm())
}

// Apply sets the permissions described by bits on path. bits 0 leaves the
// file untouched.
func Apply(path string, bits int64) error {
	if bits == 0 {
		return nil
	}
	return os.Chmod(path, FromBits(bits))
}

// Symlink creates a symbolic link at path pointing to target. Platforms or
// filesystems without symlink support surface ErrSymlinkUnsupported.
func Symlink(target, path string) error {
	err := os.Symlink(target, path)
	if err == nil {
		return nil
	}
	if errors.Is(err, errors.ErrUnsupported) {
		return fmt.Errorf("%w: %v", core.ErrSymlinkUnsupported, err)
	}
	return err
}
