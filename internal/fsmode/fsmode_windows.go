//go:build windows

package fsmode

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"

	"github.com/meigma/carton/core"
)

// Probe returns the DOS attribute subset for a file described by info.
// Only the read-only and hidden attributes are representable.
func Probe(info fs.FileInfo) int64 {
	var bits int64
	if sys, ok := info.Sys().(*syscall.Win32FileAttributeData); ok {
		if sys.FileAttributes&syscall.FILE_ATTRIBUTE_READONLY != 0 {
			bits |= core.DOSReadOnly
		}
		if sys.FileAttributes&syscall.FILE_ATTRIBUTE_HIDDEN != 0 {
			bits |= core.DOSHidden
		}
		return bits
	}
	if info.Mode().Perm()&0o200 == 0 {
		bits |= core.DOSReadOnly
	}
	return bits
}

// Apply sets the DOS attributes described by bits on path. Bits outside the
// read-only and hidden positions are ignored. bits 0 leaves the file
// untouched.
func Apply(path string, bits int64) error {
	if bits&(core.DOSReadOnly|core.DOSHidden) == 0 {
		return nil
	}
	p, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	attrs, err := syscall.GetFileAttributes(p)
	if err != nil {
		return err
	}
	if bits&core.DOSReadOnly != 0 {
		attrs |= syscall.FILE_ATTRIBUTE_READONLY
	}
	if bits&core.DOSHidden != 0 {
		attrs |= syscall.FILE_ATTRIBUTE_HIDDEN
	}
	return syscall.SetFileAttributes(p, attrs)
}

// Symlink creates a symbolic link at path pointing to target. Creating
// symlinks on Windows requires elevated privileges or developer mode, so a
// privilege failure surfaces as ErrSymlinkUnsupported rather than a plain
// I/O error.
func Symlink(target, path string) error {
	err := os.Symlink(target, path)
	if err == nil {
		return nil
	}
	var errno syscall.Errno
	if errors.As(err, &errno) && errno == syscall.ERROR_PRIVILEGE_NOT_HELD {
		return fmt.Errorf("%w: %v", core.ErrSymlinkUnsupported, err)
	}
	if errors.Is(err, errors.ErrUnsupported) {
		return fmt.Errorf("%w: %v", core.ErrSymlinkUnsupported, err)
	}
	return err
}
