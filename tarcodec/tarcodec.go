// Package tarcodec implements the carton codec interfaces over tar streams
// with optional gzip, zstd or lz4 compression.
//
// The writer produces a tar stream wrapped in the configured compression
// filter. The reader auto-detects the filter from the stream's magic bytes,
// so an archive written with any supported compression can be opened
// without knowing how it was produced.
package tarcodec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/meigma/carton/core"
)

// Compression selects the stream filter applied around the tar data.
type Compression int

const (
	// None writes a plain uncompressed tar stream.
	None Compression = iota
	// Gzip compresses with gzip.
	Gzip
	// Zstd compresses with zstandard.
	Zstd
	// LZ4 compresses with the lz4 frame format.
	LZ4
)

// String returns the compression's conventional name.
func (c Compression) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return "none"
	}
}

// Options configures a tarcodec Writer.
type Options struct {
	// Compression selects the stream filter. The zero value is None.
	Compression Compression
	// Level is the compression effort from 1 (fastest) to 9 (best).
	// Zero selects the filter's default level.
	Level int
}

func (o Options) validate() error {
	if o.Level < 0 || o.Level > 9 {
		return fmt.Errorf("%w: compression level %d outside 0..9", core.ErrConfiguration, o.Level)
	}
	switch o.Compression {
	case None, Gzip, Zstd, LZ4:
		return nil
	default:
		return fmt.Errorf("%w: unknown compression %d", core.ErrConfiguration, int(o.Compression))
	}
}

// lz4Levels maps the 1..9 scale onto the lz4 frame levels.
var lz4Levels = [...]lz4.CompressionLevel{
	lz4.Fast,
	lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4, lz4.Level5,
	lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
}

// newCompressor wraps w in the configured compression filter. A nil return
// with nil error means no filter is needed.
func newCompressor(w io.Writer, opts Options) (io.WriteCloser, error) {
	switch opts.Compression {
	case Gzip:
		level := gzip.DefaultCompression
		if opts.Level != 0 {
			level = opts.Level
		}
		return gzip.NewWriterLevel(w, level)
	case Zstd:
		if opts.Level == 0 {
			return zstd.NewWriter(w)
		}
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(opts.Level)))
	case LZ4:
		lw := lz4.NewWriter(w)
		if err := lw.Apply(lz4.CompressionLevelOption(lz4Levels[opts.Level])); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrConfiguration, err)
		}
		return lw, nil
	default:
		return nil, nil
	}
}

// detectDecompressor sniffs the stream's leading magic bytes and returns a
// reader for the decompressed tar data. Streams without a recognized magic
// are passed through as plain tar.
func detectDecompressor(r io.Reader) (io.ReadCloser, error) {
	buf := make([]byte, 4)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}

	combined := io.MultiReader(bytes.NewReader(buf[:n]), r)

	switch {
	case n >= 2 && buf[0] == 0x1f && buf[1] == 0x8b:
		// gzip magic: 0x1f 0x8b
		return gzip.NewReader(combined)
	case n >= 4 && buf[0] == 0x28 && buf[1] == 0xb5 && buf[2] == 0x2f && buf[3] == 0xfd:
		// zstd magic: 0x28 0xb5 0x2f 0xfd
		decoder, err := zstd.NewReader(combined)
		if err != nil {
			return nil, err
		}
		return decoder.IOReadCloser(), nil
	case n >= 4 && buf[0] == 0x04 && buf[1] == 0x22 && buf[2] == 0x4d && buf[3] == 0x18:
		// lz4 frame magic: 0x04 0x22 0x4d 0x18
		return io.NopCloser(lz4.NewReader(combined)), nil
	default:
		return io.NopCloser(combined), nil
	}
}
