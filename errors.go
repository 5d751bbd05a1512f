package carton

import "github.com/meigma/carton/core"

// Sentinel errors for common failure conditions.
// Re-exported from core package.
var (
	// ErrInvalidName indicates an archive entry name is empty or malformed.
	ErrInvalidName = core.ErrInvalidName

	// ErrPathTraversal indicates an entry name contains a ".." segment.
	ErrPathTraversal = core.ErrPathTraversal

	// ErrInvalidSymlink indicates a symlink entry with an empty or escaping target.
	ErrInvalidSymlink = core.ErrInvalidSymlink

	// ErrConfiguration indicates a bad codec option value.
	ErrConfiguration = core.ErrConfiguration

	// ErrSymlinkUnsupported indicates symlink creation is unavailable on this platform.
	ErrSymlinkUnsupported = core.ErrSymlinkUnsupported

	// ErrInvalidArchive indicates a corrupt or unreadable archive stream.
	ErrInvalidArchive = core.ErrInvalidArchive

	// ErrExtractLimits indicates extraction safety limits were exceeded.
	ErrExtractLimits = core.ErrExtractLimits

	// ErrClosed indicates an operation was attempted on a closed resource.
	ErrClosed = core.ErrClosed
)
