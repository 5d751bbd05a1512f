package tarcodec

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/meigma/carton/core"
)

// Compile-time interface implementation check.
var _ core.WriteCodec = (*Writer)(nil)

// Writer emits archive entries as a tar stream, optionally wrapped in a
// compression filter. Entries are written in call order; tar imposes no
// ordering constraints of its own.
type Writer struct {
	tw         *tar.Writer
	compressor io.WriteCloser
	closed     bool
}

// NewWriter creates a Writer emitting to w.
func NewWriter(w io.Writer, opts Options) (*Writer, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	compressor, err := newCompressor(w, opts)
	if err != nil {
		return nil, err
	}
	sink := w
	if compressor != nil {
		sink = compressor
	}
	return &Writer{tw: tar.NewWriter(sink), compressor: compressor}, nil
}

// WriteDir writes a directory entry.
func (w *Writer) WriteDir(name string, mtime time.Time) error {
	if w.closed {
		return core.ErrClosed
	}
	return w.tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeDir,
		Name:     name + "/",
		Mode:     0o755,
		ModTime:  mtime,
	})
}

// WriteFile writes a file or symlink entry. A non-empty linkTarget makes
// the entry a symlink and src is ignored. A negative size spools src into
// memory first, since tar headers need the length up front.
func (w *Writer) WriteFile(name string, src io.Reader, size int64, mtime time.Time, mode int64, linkTarget string) error {
	if w.closed {
		return core.ErrClosed
	}

	if linkTarget != "" {
		if mode == 0 {
			mode = 0o777
		}
		return w.tw.WriteHeader(&tar.Header{
			Typeflag: tar.TypeSymlink,
			Name:     name,
			Linkname: linkTarget,
			Mode:     mode,
			ModTime:  mtime,
		})
	}

	if mode == 0 {
		mode = 0o644
	}

	var spool *bytes.Buffer
	if size < 0 {
		spool = &bytes.Buffer{}
		n, err := io.Copy(spool, src)
		if err != nil {
			return err
		}
		size = n
		src = spool
	}

	if err := w.tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Size:     size,
		Mode:     mode,
		ModTime:  mtime,
	}); err != nil {
		return err
	}
	if size == 0 {
		return nil
	}
	written, err := io.Copy(w.tw, src)
	if err != nil {
		return err
	}
	if written != size {
		return fmt.Errorf("entry %s: wrote %d bytes, declared %d", name, written, size)
	}
	return nil
}

// Close flushes the tar trailer and the compression filter. The underlying
// writer is not closed.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.tw.Close(); err != nil {
		return err
	}
	if w.compressor != nil {
		return w.compressor.Close()
	}
	return nil
}
