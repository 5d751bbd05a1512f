package carton

import "github.com/meigma/carton/core"

// SymlinkPolicy governs symlink targets that reference outside the archive.
// Re-exported from core package.
type SymlinkPolicy = core.SymlinkPolicy

// Symlink policies.
const (
	SymlinkAllow              = core.SymlinkAllow
	SymlinkDisallow           = core.SymlinkDisallow
	SymlinkRelativizeAbsolute = core.SymlinkRelativizeAbsolute
)

// ErrorAction is the decision returned by an extraction error handler.
// Re-exported from core package.
type ErrorAction = core.ErrorAction

// Error handler decisions.
const (
	BailOut = core.BailOut
	Abort   = core.Abort
	Retry   = core.Retry
	Skip    = core.Skip
	SkipAll = core.SkipAll
)

// ErrorHandler decides how extraction proceeds after a per-entry failure.
// Re-exported from core package.
type ErrorHandler = core.ErrorHandler

// Filter decides whether a builder entry is included in the archive.
// Re-exported from core package.
type Filter = core.Filter

// ExtractLimits defines safety limits for extraction.
// Re-exported from core package.
type ExtractLimits = core.ExtractLimits
