// Package core provides the shared types and interfaces for carton.
//
// This package exists to break import cycles between the root carton package
// and internal implementation packages. The carton package re-exports all
// public types from this package, so external users should import carton
// directly, not carton/core.
package core

import (
	"errors"
	"io"
	"time"
)

// Sentinel errors for common failure conditions.
var (
	// ErrInvalidName indicates an archive entry name is empty or malformed.
	ErrInvalidName = errors.New("carton: invalid entry name")

	// ErrPathTraversal indicates an entry name contains a ".." segment.
	ErrPathTraversal = errors.New("carton: path traversal detected")

	// ErrInvalidSymlink indicates a symlink entry has an empty target, or a
	// target that escapes the extraction root under the Disallow policy.
	ErrInvalidSymlink = errors.New("carton: invalid symlink entry")

	// ErrConfiguration indicates a bad codec option value.
	ErrConfiguration = errors.New("carton: invalid codec configuration")

	// ErrSymlinkUnsupported indicates symlink creation is unavailable or
	// permission-restricted on this platform.
	ErrSymlinkUnsupported = errors.New("carton: symlinks not supported")

	// ErrInvalidArchive indicates a corrupt or unreadable archive stream.
	ErrInvalidArchive = errors.New("carton: invalid archive")

	// ErrExtractLimits indicates extraction safety limits were exceeded.
	ErrExtractLimits = errors.New("carton: extraction limits exceeded")

	// ErrClosed indicates an operation was attempted on a closed resource.
	ErrClosed = errors.New("carton: resource closed")
)

// DOS attribute bits used in Entry.Mode on non-POSIX platforms.
const (
	DOSReadOnly int64 = 0b01
	DOSHidden   int64 = 0b10
)

// EntryKind identifies the type of an archive entry.
type EntryKind int

const (
	// KindFile is a regular file entry.
	KindFile EntryKind = iota
	// KindDir is a directory entry.
	KindDir
	// KindSymlink is a symbolic link entry.
	KindSymlink
)

// String returns a string representation of the EntryKind.
func (k EntryKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Entry describes one archived object. Entries are created per archive
// member and consumed immediately; they are never mutated after construction.
type Entry struct {
	// Name is the normalized relative path: '/'-separated, no leading or
	// trailing slash, never empty. Codecs normalize names on read, but the
	// extractor re-validates before touching the filesystem since archive
	// content is untrusted.
	Name string

	// Kind is the entry type.
	Kind EntryKind

	// Mode is a platform-neutral permission bitmask. Depending on the
	// source it holds POSIX permission bits, DOS attribute bits, or 0.
	// Zero means "unspecified, use defaults".
	Mode int64

	// Size is the byte length for file entries. -1 means unknown until
	// the content is streamed.
	Size int64

	// LinkTarget is the symlink target, set only when Kind is KindSymlink.
	// May be relative or absolute.
	LinkTarget string

	// ModTime is the entry modification time. The zero value means
	// unspecified.
	ModTime time.Time
}

// SymlinkPolicy governs symlink targets that reference outside the archive,
// for example "foo -> /opt/foo" or "foo -> ../foo".
type SymlinkPolicy int

const (
	// SymlinkAllow extracts the link target verbatim with no check. The
	// link can point to a completely different object when the archive was
	// produced on another host.
	SymlinkAllow SymlinkPolicy = iota

	// SymlinkDisallow rejects symlinks whose target is absolute or resolves
	// outside the extraction root.
	SymlinkDisallow

	// SymlinkRelativizeAbsolute rewrites absolute targets under the
	// extraction root. A link to /opt/foo extracted into /foo/bar becomes
	// a link to /foo/bar/opt/foo.
	SymlinkRelativizeAbsolute
)

// ErrorAction is the decision returned by an extraction error handler.
type ErrorAction int

const (
	// BailOut propagates the error to the caller, leaving already
	// extracted objects in place. This is the default when no handler
	// is configured.
	BailOut ErrorAction = iota

	// Abort stops extraction, deletes everything this call produced in
	// reverse creation order, and returns without error.
	Abort

	// Retry re-attempts the failed entry without advancing to the next
	// one. The entry filter is not consulted again.
	Retry

	// Skip abandons the failed entry and proceeds to the next.
	Skip

	// SkipAll behaves as Skip for this and every subsequent failure in
	// the extraction call, without consulting the handler again.
	SkipAll
)

// ErrorHandler decides how extraction proceeds after a per-entry failure.
type ErrorHandler func(entry Entry, err error) ErrorAction

// Filter decides whether a builder entry is included in the archive.
// fsPath is the source path for filesystem-backed entries and empty for
// in-memory content.
type Filter func(name, fsPath string) bool

// ExtractLimits defines safety limits for extraction. Limit violations are
// terminal: they propagate to the caller without consulting the error
// handler.
type ExtractLimits struct {
	MaxFiles     int   // Maximum number of file entries (0 = no limit)
	MaxTotalSize int64 // Maximum total extracted size (0 = no limit)
	MaxFileSize  int64 // Maximum single file size (0 = no limit)
}

// WriteCodec is the write side of a format adapter. Implementations wrap a
// destination stream and encode entries in a concrete archive format.
// Entries are written in call order; Close finalizes the format trailer and
// releases the underlying stream exactly once.
type WriteCodec interface {
	// WriteDir emits a single directory record.
	WriteDir(name string, mtime time.Time) error

	// WriteFile emits a file or symlink record. size may be -1 for
	// streamed sources of unknown length. mode 0 means the format
	// default. A non-empty linkTarget makes this a symlink record and
	// src is ignored.
	WriteFile(name string, src io.Reader, size int64, mtime time.Time, mode int64, linkTarget string) error

	// Close flushes and finalizes the archive.
	Close() error
}

// ReadCodec is the read side of a format adapter. Implementations decode a
// concrete archive format into a sequence of entries.
//
// Iteration is strictly sequential: Open is only valid for the entry most
// recently returned by Next, and at most one content stream is open at a
// time.
type ReadCodec interface {
	// Next returns the next entry, or io.EOF after the last one.
	Next() (Entry, error)

	// Open returns the content stream for a file entry. The caller closes
	// the stream before calling Next again.
	Open(entry Entry) (io.ReadCloser, error)

	// Close releases the underlying stream.
	Close() error
}
