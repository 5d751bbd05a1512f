package zipcodec

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/meigma/carton/core"
	"github.com/meigma/carton/internal/fsmode"
)

// Compile-time interface implementation check.
var _ core.ReadCodec = (*Reader)(nil)

// Reader iterates the entries of a zip archive. Zip central directories
// allow random access, so any entry returned by Next can be opened at any
// time, and more than once.
type Reader struct {
	zr     *zip.Reader
	byName map[string]*zip.File
	pos    int
	closed bool
}

// NewReader creates a Reader over a zip archive of the given size.
func NewReader(ra io.ReaderAt, size int64) (*Reader, error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidArchive, err)
	}
	zr.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})

	byName := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		if _, dup := byName[f.Name]; !dup {
			byName[f.Name] = f
		}
	}
	return &Reader{zr: zr, byName: byName}, nil
}

// Next returns the next entry in central directory order. It returns
// io.EOF after the last entry.
func (r *Reader) Next() (core.Entry, error) {
	if r.closed {
		return core.Entry{}, core.ErrClosed
	}
	if r.pos >= len(r.zr.File) {
		return core.Entry{}, io.EOF
	}
	f := r.zr.File[r.pos]
	r.pos++

	mode := f.Mode()
	entry := core.Entry{
		Name:    f.Name,
		Size:    int64(f.UncompressedSize64), //nolint:gosec // G115: zip sizes fit int64
		ModTime: f.Modified,
	}

	switch {
	case mode.IsDir() || strings.HasSuffix(f.Name, "/"):
		entry.Kind = core.KindDir
		entry.Mode = fsmode.ToBits(mode.Perm())
		entry.Size = 0
	case mode&fs.ModeSymlink != 0:
		entry.Kind = core.KindSymlink
		entry.Mode = fsmode.ToBits(mode.Perm())
		target, err := readLinkTarget(f)
		if err != nil {
			return core.Entry{}, err
		}
		entry.LinkTarget = target
		entry.Size = 0
	default:
		entry.Kind = core.KindFile
		entry.Mode = entryMode(f)
	}
	return entry, nil
}

// Open returns the content of entry. When the entry matches the one most
// recently returned by Next it is resolved by position, so archives with
// duplicate names stream each occurrence's own content in a Next/Open loop.
// Out-of-sequence lookups resolve by name to the first occurrence.
func (r *Reader) Open(entry core.Entry) (io.ReadCloser, error) {
	if r.closed {
		return nil, core.ErrClosed
	}
	var f *zip.File
	if r.pos > 0 && r.zr.File[r.pos-1].Name == entry.Name {
		f = r.zr.File[r.pos-1]
	} else {
		f = r.byName[entry.Name]
	}
	if f == nil {
		return nil, fmt.Errorf("%w: no entry named %q", core.ErrInvalidArchive, entry.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", core.ErrInvalidArchive, entry.Name, err)
	}
	return rc, nil
}

// Close marks the reader closed. The underlying ReaderAt is not closed.
func (r *Reader) Close() error {
	r.closed = true
	return nil
}

// entryMode extracts file permissions. Archives written on FAT systems
// carry DOS attribute flags instead of POSIX bits; those are surfaced as
// the DOSReadOnly and DOSHidden flags.
func entryMode(f *zip.File) int64 {
	if f.CreatorVersion>>8 == 0 { // FAT
		var m int64
		if f.ExternalAttrs&0x01 != 0 {
			m |= core.DOSReadOnly
		}
		if f.ExternalAttrs&0x02 != 0 {
			m |= core.DOSHidden
		}
		if m != 0 {
			return m
		}
		return 0o644
	}
	bits := fsmode.ToBits(f.Mode().Perm())
	if bits == 0 {
		return 0o644
	}
	return bits
}

func readLinkTarget(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("%w: open symlink %s: %v", core.ErrInvalidArchive, f.Name, err)
	}
	defer rc.Close()
	target, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("%w: read symlink %s: %v", core.ErrInvalidArchive, f.Name, err)
	}
	return string(target), nil
}
