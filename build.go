package carton

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/meigma/carton/core"
	"github.com/meigma/carton/internal/fsmode"
	"github.com/meigma/carton/internal/pathname"
)

// AddOption configures a single Builder add operation.
type AddOption func(*addConfig)

// addConfig holds per-entry configuration.
type addConfig struct {
	modTime time.Time
}

// WithModTime sets an explicit modification time for the entry. When not
// set, filesystem-backed entries use the source file's modification time
// and in-memory entries use the current time.
func WithModTime(t time.Time) AddOption {
	return func(c *addConfig) {
		c.modTime = t
	}
}

// Builder packs entries into an archive through a WriteCodec.
//
// Names are normalized and validated, timestamps and permission bits are
// resolved, and entries are handed to the codec in call order. The Builder
// performs no duplicate-name detection; avoiding collisions is the caller's
// responsibility.
//
// A Builder is not safe for concurrent use.
type Builder struct {
	codec  core.WriteCodec
	filter core.Filter
	logger *slog.Logger
	closed bool
}

// NewBuilder creates a Builder writing through codec. logger may be nil to
// disable logging.
func NewBuilder(codec core.WriteCodec, logger *slog.Logger) *Builder {
	return &Builder{codec: codec, logger: logger}
}

// log returns the logger, falling back to a discard logger if nil.
func (b *Builder) log() *slog.Logger {
	if b.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.logger
}

// SetFilter replaces the active entry filter. A nil filter accepts all
// entries. The filter sees the normalized entry name and, for
// filesystem-backed entries, the source path.
func (b *Builder) SetFilter(f Filter) {
	b.filter = f
}

func (b *Builder) accept(name, fsPath string) bool {
	return b.filter == nil || b.filter(name, fsPath)
}

// AddBytes adds a file entry with in-memory content. If the active filter
// rejects the name, the call is a no-op.
func (b *Builder) AddBytes(name string, data []byte, opts ...AddOption) error {
	cfg := applyAddOptions(opts)
	entryName, err := b.checkName(name)
	if err != nil {
		return err
	}
	if !b.accept(entryName, "") {
		return nil
	}
	return b.codec.WriteFile(entryName, bytes.NewReader(data), int64(len(data)), orNow(cfg.modTime), 0, "")
}

// AddReader adds a file entry streamed from r. The content length is
// unknown to the codec until the stream is drained. If the active filter
// rejects the name, the call is a no-op and r is not consumed.
func (b *Builder) AddReader(name string, r io.Reader, opts ...AddOption) error {
	cfg := applyAddOptions(opts)
	entryName, err := b.checkName(name)
	if err != nil {
		return err
	}
	if !b.accept(entryName, "") {
		return nil
	}
	return b.codec.WriteFile(entryName, r, -1, orNow(cfg.modTime), 0, "")
}

// AddFile adds a file entry backed by the filesystem object at path. Size,
// modification time, permission bits and symlink target are read from file
// metadata; symlinks are archived as symlink entries, not followed.
func (b *Builder) AddFile(name, path string, opts ...AddOption) error {
	cfg := applyAddOptions(opts)
	entryName, err := b.checkName(name)
	if err != nil {
		return err
	}
	if !b.accept(entryName, path) {
		return nil
	}
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	return b.writeFromFS(entryName, path, info, cfg)
}

// AddDir adds a single directory entry. Ancestor entries are not
// synthesized.
func (b *Builder) AddDir(name string, opts ...AddOption) error {
	cfg := applyAddOptions(opts)
	entryName, err := b.checkName(name)
	if err != nil {
		return err
	}
	if !b.accept(entryName, "") {
		return nil
	}
	return b.codec.WriteDir(entryName, orNow(cfg.modTime))
}

// AddTree walks the directory tree rooted at root in a pre-order,
// depth-first traversal and adds every directory, file and symlink found.
// Entry names are prefix joined with the path relative to root; the root
// directory itself is emitted only when prefix is non-empty.
//
// When the filter rejects a directory, its entire subtree is skipped. When
// it rejects a file or symlink, only that entry is skipped.
//
// Symlinked directories are archived as symlink entries and never followed,
// so a link back into its own tree cannot cause the walk to loop.
func (b *Builder) AddTree(prefix, root string, opts ...AddOption) error {
	cfg := applyAddOptions(opts)
	if b.closed {
		return ErrClosed
	}
	if prefix != "" {
		var err error
		if prefix, err = normalizeName(prefix); err != nil {
			return err
		}
	}
	b.log().Debug("adding tree", "root", root, "prefix", prefix)

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := prefix
		if rel != "." {
			name = joinName(prefix, filepath.ToSlash(rel))
		}

		if d.IsDir() {
			if name == "" {
				return nil // root of an unprefixed tree
			}
			if !b.accept(name, path) {
				return fs.SkipDir
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			b.log().Debug("entry added", "name", name, "kind", core.KindDir)
			return b.codec.WriteDir(name, orModTime(cfg.modTime, info))
		}

		if !b.accept(name, path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return b.writeFromFS(name, path, info, cfg)
	})
}

// Close finalizes the archive and releases the codec. It is safe to call
// after a failed add; later calls return nil without touching the codec
// again.
func (b *Builder) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	return b.codec.Close()
}

// writeFromFS emits a file or symlink entry from filesystem metadata.
func (b *Builder) writeFromFS(name, path string, info fs.FileInfo, cfg addConfig) error {
	mtime := orModTime(cfg.modTime, info)
	mode := fsmode.Probe(info)

	if info.Mode()&fs.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err != nil {
			return err
		}
		b.log().Debug("entry added", "name", name, "kind", core.KindSymlink, "target", target)
		return b.codec.WriteFile(name, nil, 0, mtime, mode, target)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrInvalidName, path)
	}

	f, err := os.Open(path) //nolint:gosec // G304: caller-supplied source path is intentional
	if err != nil {
		return err
	}
	defer f.Close()

	b.log().Debug("entry added", "name", name, "kind", core.KindFile, "size", info.Size())
	return b.codec.WriteFile(name, f, info.Size(), mtime, mode, "")
}

// checkName guards the builder state and normalizes a caller-supplied name.
// Builder-side validation failures always propagate; there is no skip and
// continue semantics for a corrupt write request.
func (b *Builder) checkName(name string) (string, error) {
	if b.closed {
		return "", ErrClosed
	}
	return normalizeName(name)
}

func normalizeName(name string) (string, error) {
	norm, err := pathname.Normalize(name)
	if err != nil {
		return "", err
	}
	if err := pathname.EnsureValid(norm); err != nil {
		return "", err
	}
	return norm, nil
}

func joinName(prefix, rel string) string {
	if prefix == "" {
		return rel
	}
	return prefix + "/" + rel
}

func applyAddOptions(opts []AddOption) addConfig {
	var cfg addConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

func orModTime(t time.Time, info fs.FileInfo) time.Time {
	if t.IsZero() {
		return info.ModTime()
	}
	return t
}
