package carton

import (
	"github.com/meigma/carton/core"
	"github.com/meigma/carton/internal/pathname"
)

// WriteCodec is the write side of a format adapter.
// Re-exported from core package.
type WriteCodec = core.WriteCodec

// ReadCodec is the read side of a format adapter.
// Re-exported from core package.
type ReadCodec = core.ReadCodec

// NormalizeName canonicalizes a raw entry name the way the engines do:
// surrounding whitespace trimmed, backslashes converted to slashes, outer
// slashes dropped. Returns ErrInvalidName when nothing remains. Codec
// implementations should pass every name read from an archive through this
// before constructing an Entry.
func NormalizeName(raw string) (string, error) {
	return pathname.Normalize(raw)
}
