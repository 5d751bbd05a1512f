package tarcodec

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/meigma/carton/core"
)

// Compile-time interface implementation check.
var _ core.ReadCodec = (*Reader)(nil)

// Reader iterates the entries of a tar stream, auto-detecting gzip, zstd
// and lz4 compression from the leading magic bytes. Hardlink, device and
// fifo entries have no portable filesystem representation and are skipped.
type Reader struct {
	tr           *tar.Reader
	decompressor io.ReadCloser
	current      string
	opened       bool
	closed       bool
}

// NewReader creates a Reader over the archive stream r.
func NewReader(r io.Reader) (*Reader, error) {
	decompressor, err := detectDecompressor(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidArchive, err)
	}
	return &Reader{tr: tar.NewReader(decompressor), decompressor: decompressor}, nil
}

// Next advances to the next entry and returns its metadata. It returns
// io.EOF after the last entry.
func (r *Reader) Next() (core.Entry, error) {
	if r.closed {
		return core.Entry{}, core.ErrClosed
	}
	for {
		header, err := r.tr.Next()
		if errors.Is(err, io.EOF) {
			return core.Entry{}, io.EOF
		}
		if err != nil {
			return core.Entry{}, fmt.Errorf("%w: %v", core.ErrInvalidArchive, err)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			r.current = header.Name
			r.opened = false
			return core.Entry{
				Name:    header.Name,
				Kind:    core.KindDir,
				Mode:    header.Mode & 0o777,
				ModTime: mtimeOf(header),
			}, nil
		case tar.TypeSymlink:
			r.current = header.Name
			r.opened = false
			return core.Entry{
				Name:       header.Name,
				Kind:       core.KindSymlink,
				Mode:       header.Mode & 0o777,
				LinkTarget: header.Linkname,
				ModTime:    mtimeOf(header),
			}, nil
		case tar.TypeReg:
			mode := header.Mode & 0o777
			if mode == 0 {
				mode = 0o644
			}
			r.current = header.Name
			r.opened = false
			return core.Entry{
				Name:    header.Name,
				Kind:    core.KindFile,
				Mode:    mode,
				Size:    header.Size,
				ModTime: mtimeOf(header),
			}, nil
		default:
			// Hardlinks, devices and fifos are skipped, not errors.
			continue
		}
	}
}

// Open returns the content of entry. Tar is a sequential format, so only
// the entry most recently returned by Next can be opened, and only once.
func (r *Reader) Open(entry core.Entry) (io.ReadCloser, error) {
	if r.closed {
		return nil, core.ErrClosed
	}
	if entry.Name != r.current {
		return nil, fmt.Errorf("%w: cannot open %q, positioned at %q", core.ErrInvalidArchive, entry.Name, r.current)
	}
	if r.opened {
		return nil, fmt.Errorf("%w: entry %q already consumed", core.ErrInvalidArchive, entry.Name)
	}
	r.opened = true
	return io.NopCloser(r.tr), nil
}

// Close releases the decompression filter. The underlying reader is not
// closed.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.decompressor.Close()
}

func mtimeOf(header *tar.Header) time.Time {
	if header.ModTime.IsZero() {
		return time.Unix(0, 0)
	}
	return header.ModTime
}
