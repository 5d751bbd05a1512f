// Package pathname canonicalizes and validates archive entry names.
//
// Archive content is untrusted input: names may use backslash separators,
// carry redundant or leading slashes, or smuggle ".." segments. Every name
// crossing the engine boundary passes through this package.
package pathname

import (
	"fmt"
	"path"
	"strings"

	"github.com/meigma/carton/core"
)

// Normalize canonicalizes a raw entry name: surrounding whitespace is
// trimmed, backslashes become slashes, and leading and trailing slashes are
// dropped. Returns ErrInvalidName when nothing remains.
func Normalize(raw string) (string, error) {
	name := strings.Trim(strings.ReplaceAll(strings.TrimSpace(raw), `\`, "/"), "/")
	if name == "" {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidName, raw)
	}
	return name, nil
}

// EnsureValid rejects names containing a ".." path segment with
// ErrPathTraversal. Both slash and backslash separators are considered so a
// name cannot hide a traversal behind the platform-foreign separator.
func EnsureValid(name string) error {
	if !strings.Contains(name, "..") {
		return nil
	}
	for _, seg := range strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return fmt.Errorf("%w: %q", core.ErrPathTraversal, name)
		}
	}
	return nil
}

// Split canonicalizes p and returns its path segments. "." and ".."
// elements are resolved before splitting, so "a//b/", "a/./b" and "a\b"
// all yield the same segments. A path that still starts with ".." after
// resolution is rejected with ErrPathTraversal.
func Split(p string) ([]string, error) {
	norm, err := Normalize(p)
	if err != nil {
		return nil, err
	}
	clean := strings.TrimPrefix(path.Clean(norm), "/")
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return nil, fmt.Errorf("%w: %q", core.ErrPathTraversal, p)
	}
	return strings.Split(clean, "/"), nil
}

// Strip removes prefix from name and reports whether it applied. The prefix
// must be a strict, non-exhaustive leading sub-sequence of name's segments:
// an entry equal to the prefix itself does not match.
func Strip(name string, prefix []string) (string, bool) {
	segs, err := Split(name)
	if err != nil {
		return "", false
	}
	if len(prefix) >= len(segs) {
		return "", false
	}
	for i, p := range prefix {
		if segs[i] != p {
			return "", false
		}
	}
	return strings.Join(segs[len(prefix):], "/"), true
}
