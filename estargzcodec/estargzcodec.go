// Package estargzcodec implements the carton read codec over eStargz
// blobs, the seekable tar.gz variant used for lazy-pulling container
// layers. Both gzip and zstd:chunked compressed blobs are supported.
//
// The format is write-once by construction, produced by estargz.Build, so
// this package has no write side.
package estargzcodec

import (
	"fmt"
	"io"

	"github.com/containerd/stargz-snapshotter/estargz"
	"github.com/containerd/stargz-snapshotter/estargz/zstdchunked"

	"github.com/meigma/carton/core"
)

// Compile-time interface implementation check.
var _ core.ReadCodec = (*Reader)(nil)

// Reader iterates the entries of an eStargz blob in TOC order. The TOC
// gives random access, so any entry returned by Next can be opened at any
// time.
type Reader struct {
	esr     *estargz.Reader
	entries []core.Entry
	pos     int
	closed  bool
}

// NewReader creates a Reader over an eStargz blob of the given size. The
// size is needed to locate the footer.
func NewReader(ra io.ReaderAt, size int64) (*Reader, error) {
	sr := io.NewSectionReader(ra, 0, size)

	esr, err := estargz.Open(sr,
		estargz.WithDecompressors(&zstdchunked.Decompressor{}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidArchive, err)
	}

	r := &Reader{esr: esr}
	root, ok := esr.Lookup("")
	if !ok {
		// Empty blob, nothing beyond the synthetic root.
		return r, nil
	}
	r.collect(root)
	return r, nil
}

// collect walks the TOC depth-first, omitting the synthetic root entry and
// entry types with no filesystem representation.
func (r *Reader) collect(e *estargz.TOCEntry) {
	switch e.Type {
	case "dir":
		if e.Name != "" {
			r.entries = append(r.entries, core.Entry{
				Name:    e.Name,
				Kind:    core.KindDir,
				Mode:    e.Mode & 0o777,
				ModTime: e.ModTime(),
			})
		}
		e.ForeachChild(func(baseName string, child *estargz.TOCEntry) bool {
			r.collect(child)
			return true
		})
	case "reg":
		r.entries = append(r.entries, core.Entry{
			Name:    e.Name,
			Kind:    core.KindFile,
			Mode:    e.Mode & 0o777,
			Size:    e.Size,
			ModTime: e.ModTime(),
		})
	case "symlink":
		r.entries = append(r.entries, core.Entry{
			Name:       e.Name,
			Kind:       core.KindSymlink,
			Mode:       e.Mode & 0o777,
			LinkTarget: e.LinkName,
			ModTime:    e.ModTime(),
		})
	default:
		// Hardlinks, devices, fifos and chunk continuations are skipped.
	}
}

// Next returns the next entry in TOC order. It returns io.EOF after the
// last entry.
func (r *Reader) Next() (core.Entry, error) {
	if r.closed {
		return core.Entry{}, core.ErrClosed
	}
	if r.pos >= len(r.entries) {
		return core.Entry{}, io.EOF
	}
	entry := r.entries[r.pos]
	r.pos++
	return entry, nil
}

// Open returns the content of entry, streamed from the blob's file section.
func (r *Reader) Open(entry core.Entry) (io.ReadCloser, error) {
	if r.closed {
		return nil, core.ErrClosed
	}
	fileRA, err := r.esr.OpenFile(entry.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", core.ErrInvalidArchive, entry.Name, err)
	}
	return io.NopCloser(io.NewSectionReader(fileRA, 0, entry.Size)), nil
}

// Close marks the reader closed. The underlying ReaderAt is not closed.
func (r *Reader) Close() error {
	r.closed = true
	return nil
}
