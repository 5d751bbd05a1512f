// Package zipcodec implements the carton codec interfaces over the zip
// format. File content is deflate-compressed by default; symlinks are
// stored as entries whose content is the link target, which is the
// convention tar-to-zip converters use.
package zipcodec

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"runtime"
	"time"

	"github.com/klauspost/compress/flate"

	"github.com/meigma/carton/core"
	"github.com/meigma/carton/internal/fsmode"
)

// Options configures a zipcodec Writer.
type Options struct {
	// Level is the deflate effort from 1 (fastest) to 9 (best). Zero
	// selects the default level.
	Level int
	// Store disables compression entirely and stores entries verbatim.
	Store bool
}

func (o Options) validate() error {
	if o.Level < 0 || o.Level > 9 {
		return fmt.Errorf("%w: compression level %d outside 0..9", core.ErrConfiguration, o.Level)
	}
	return nil
}

// Compile-time interface implementation check.
var _ core.WriteCodec = (*Writer)(nil)

// Writer emits archive entries as a zip file.
type Writer struct {
	zw     *zip.Writer
	method uint16
	closed bool
}

// NewWriter creates a Writer emitting to w.
func NewWriter(w io.Writer, opts Options) (*Writer, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	zw := zip.NewWriter(w)
	method := uint16(zip.Deflate)
	if opts.Store {
		method = zip.Store
	} else {
		level := flate.DefaultCompression
		if opts.Level != 0 {
			level = opts.Level
		}
		zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(out, level)
		})
	}
	return &Writer{zw: zw, method: method}, nil
}

// WriteDir writes a directory entry.
func (w *Writer) WriteDir(name string, mtime time.Time) error {
	if w.closed {
		return core.ErrClosed
	}
	hdr := &zip.FileHeader{
		Name:     name + "/",
		Method:   zip.Store,
		Modified: mtime,
	}
	hdr.SetMode(fs.ModeDir | 0o755)
	_, err := w.zw.CreateHeader(hdr)
	return err
}

// WriteFile writes a file or symlink entry. A non-empty linkTarget makes
// the entry a symlink whose content is the target path; src is ignored.
func (w *Writer) WriteFile(name string, src io.Reader, size int64, mtime time.Time, mode int64, linkTarget string) error {
	if w.closed {
		return core.ErrClosed
	}

	hdr := &zip.FileHeader{
		Name:     name,
		Method:   w.method,
		Modified: mtime,
	}

	if linkTarget != "" {
		hdr.Method = zip.Store
		hdr.SetMode(fs.ModeSymlink | 0o777)
		f, err := w.zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		_, err = io.WriteString(f, linkTarget)
		return err
	}

	setEntryMode(hdr, mode)
	f, err := w.zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	if src == nil {
		return nil
	}
	written, err := io.Copy(f, src)
	if err != nil {
		return err
	}
	if size >= 0 && written != size {
		return fmt.Errorf("entry %s: wrote %d bytes, declared %d", name, written, size)
	}
	return nil
}

// setEntryMode stores the entry permissions the way the host convention
// expects them: POSIX bits on unix-likes, DOS attribute flags on Windows.
func setEntryMode(hdr *zip.FileHeader, mode int64) {
	if runtime.GOOS == "windows" {
		hdr.ExternalAttrs = uint32(mode & (core.DOSReadOnly | core.DOSHidden))
		return
	}
	if mode == 0 {
		mode = 0o644
	}
	hdr.SetMode(fsmode.FromBits(mode))
}

// Close writes the central directory. The underlying writer is not closed.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.zw.Close()
}
