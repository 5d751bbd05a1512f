package carton

import "github.com/meigma/carton/core"

// Entry describes one archived object.
// Re-exported from core package.
type Entry = core.Entry

// EntryKind identifies the type of an archive entry.
// Re-exported from core package.
type EntryKind = core.EntryKind

// Entry kinds.
const (
	KindFile    = core.KindFile
	KindDir     = core.KindDir
	KindSymlink = core.KindSymlink
)

// DOS attribute bits used in Entry.Mode on non-POSIX platforms.
const (
	DOSReadOnly = core.DOSReadOnly
	DOSHidden   = core.DOSHidden
)
