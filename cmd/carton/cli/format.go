package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/meigma/carton/core"
	"github.com/meigma/carton/estargzcodec"
	"github.com/meigma/carton/tarcodec"
	"github.com/meigma/carton/zipcodec"
)

// format identifies an archive container selected from a file extension.
type format int

const (
	formatTar format = iota
	formatZip
	formatEStargz
)

// detectFormat maps a file name to its archive format and, for tar, the
// compression filter.
func detectFormat(path string) (format, tarcodec.Compression, error) {
	name := strings.ToLower(path)
	switch {
	case strings.HasSuffix(name, ".tar"):
		return formatTar, tarcodec.None, nil
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return formatTar, tarcodec.Gzip, nil
	case strings.HasSuffix(name, ".tar.zst"), strings.HasSuffix(name, ".tzst"):
		return formatTar, tarcodec.Zstd, nil
	case strings.HasSuffix(name, ".tar.lz4"):
		return formatTar, tarcodec.LZ4, nil
	case strings.HasSuffix(name, ".zip"):
		return formatZip, tarcodec.None, nil
	case strings.HasSuffix(name, ".estargz"):
		return formatEStargz, tarcodec.None, nil
	default:
		return 0, 0, fmt.Errorf("unrecognized archive extension: %s", path)
	}
}

// newWriteCodec opens a write codec for the archive at path.
func newWriteCodec(w io.Writer, path string, level int) (core.WriteCodec, error) {
	f, compression, err := detectFormat(path)
	if err != nil {
		return nil, err
	}
	switch f {
	case formatZip:
		return zipcodec.NewWriter(w, zipcodec.Options{Level: level})
	case formatEStargz:
		return nil, fmt.Errorf("estargz archives are read-only")
	default:
		return tarcodec.NewWriter(w, tarcodec.Options{Compression: compression, Level: level})
	}
}

// newReadCodec opens a read codec for the archive file at path.
func newReadCodec(file *os.File, path string) (core.ReadCodec, error) {
	f, _, err := detectFormat(path)
	if err != nil {
		// Unrecognized extensions fall back to tar with compression
		// sniffing, which covers renamed tarballs.
		return tarcodec.NewReader(file)
	}
	switch f {
	case formatZip:
		info, err := file.Stat()
		if err != nil {
			return nil, err
		}
		return zipcodec.NewReader(file, info.Size())
	case formatEStargz:
		info, err := file.Stat()
		if err != nil {
			return nil, err
		}
		return estargzcodec.NewReader(file, info.Size())
	default:
		return tarcodec.NewReader(file)
	}
}
