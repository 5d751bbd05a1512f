package tarcodec

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/carton"
	"github.com/meigma/carton/core"
)

func TestWriterReader_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts Options
	}{
		{name: "uncompressed", opts: Options{}},
		{name: "gzip", opts: Options{Compression: Gzip}},
		{name: "gzip best", opts: Options{Compression: Gzip, Level: 9}},
		{name: "zstd", opts: Options{Compression: Zstd}},
		{name: "zstd fast", opts: Options{Compression: Zstd, Level: 1}},
		{name: "lz4", opts: Options{Compression: LZ4}},
		{name: "lz4 best", opts: Options{Compression: LZ4, Level: 9}},
	}

	mtime := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			w, err := NewWriter(&buf, tt.opts)
			require.NoError(t, err)

			require.NoError(t, w.WriteDir("dir", mtime))
			require.NoError(t, w.WriteFile("dir/file.txt", strings.NewReader("hello tar"), 9, mtime, 0o640, ""))
			require.NoError(t, w.WriteFile("dir/link", nil, 0, mtime, 0, "file.txt"))
			require.NoError(t, w.Close())

			r, err := NewReader(&buf)
			require.NoError(t, err)
			defer r.Close()

			entry, err := r.Next()
			require.NoError(t, err)
			assert.Equal(t, core.KindDir, entry.Kind)
			assert.Equal(t, "dir/", entry.Name)

			entry, err = r.Next()
			require.NoError(t, err)
			assert.Equal(t, core.KindFile, entry.Kind)
			assert.Equal(t, "dir/file.txt", entry.Name)
			assert.Equal(t, int64(9), entry.Size)
			assert.Equal(t, int64(0o640), entry.Mode)
			assert.True(t, entry.ModTime.Equal(mtime))

			rc, err := r.Open(entry)
			require.NoError(t, err)
			content, err := io.ReadAll(rc)
			require.NoError(t, err)
			require.NoError(t, rc.Close())
			assert.Equal(t, "hello tar", string(content))

			entry, err = r.Next()
			require.NoError(t, err)
			assert.Equal(t, core.KindSymlink, entry.Kind)
			assert.Equal(t, "file.txt", entry.LinkTarget)
			assert.Equal(t, int64(0o777), entry.Mode)

			_, err = r.Next()
			require.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestNewWriter_Options(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{name: "defaults", opts: Options{}},
		{name: "max level", opts: Options{Compression: Gzip, Level: 9}},
		{name: "level too high", opts: Options{Compression: Gzip, Level: 10}, wantErr: true},
		{name: "negative level", opts: Options{Compression: Zstd, Level: -1}, wantErr: true},
		{name: "unknown compression", opts: Options{Compression: Compression(42)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			_, err := NewWriter(&buf, tt.opts)
			if tt.wantErr {
				require.ErrorIs(t, err, core.ErrConfiguration)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestWriter_UnknownSizeSpools(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w, err := NewWriter(&buf, Options{})
	require.NoError(t, err)

	content := strings.Repeat("stream", 1000)
	require.NoError(t, w.WriteFile("streamed.txt", strings.NewReader(content), -1, time.Now(), 0, ""))
	require.NoError(t, w.Close())

	r, err := NewReader(&buf)
	require.NoError(t, err)
	defer r.Close()

	entry, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), entry.Size)

	rc, err := r.Open(entry)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
}

func TestWriter_Closed(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w, err := NewWriter(&buf, Options{})
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.ErrorIs(t, w.WriteDir("d", time.Now()), core.ErrClosed)
	require.ErrorIs(t, w.WriteFile("f", strings.NewReader("x"), 1, time.Now(), 0, ""), core.ErrClosed)
	require.NoError(t, w.Close())
}

func TestReader_SkipsUnsupportedTypes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Typeflag: tar.TypeReg, Name: "first.txt", Size: 0, Mode: 0o644}))
	require.NoError(t, tw.WriteHeader(&tar.Header{Typeflag: tar.TypeLink, Name: "hard", Linkname: "first.txt"}))
	require.NoError(t, tw.WriteHeader(&tar.Header{Typeflag: tar.TypeFifo, Name: "pipe"}))
	require.NoError(t, tw.WriteHeader(&tar.Header{Typeflag: tar.TypeReg, Name: "last.txt", Size: 0, Mode: 0o644}))
	require.NoError(t, tw.Close())

	r, err := NewReader(&buf)
	require.NoError(t, err)
	defer r.Close()

	entry, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "first.txt", entry.Name)

	entry, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "last.txt", entry.Name)

	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestReader_DefaultFileMode(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Typeflag: tar.TypeReg, Name: "bare.txt", Size: 0}))
	require.NoError(t, tw.Close())

	r, err := NewReader(&buf)
	require.NoError(t, err)
	defer r.Close()

	entry, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(0o644), entry.Mode)
}

func TestReader_OpenSequential(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w, err := NewWriter(&buf, Options{})
	require.NoError(t, err)
	require.NoError(t, w.WriteFile("a.txt", strings.NewReader("a"), 1, time.Now(), 0, ""))
	require.NoError(t, w.WriteFile("b.txt", strings.NewReader("b"), 1, time.Now(), 0, ""))
	require.NoError(t, w.Close())

	r, err := NewReader(&buf)
	require.NoError(t, err)
	defer r.Close()

	first, err := r.Next()
	require.NoError(t, err)
	second, err := r.Next()
	require.NoError(t, err)

	// Only the current entry can be opened.
	_, err = r.Open(first)
	require.ErrorIs(t, err, core.ErrInvalidArchive)

	rc, err := r.Open(second)
	require.NoError(t, err)
	_, err = io.ReadAll(rc)
	require.NoError(t, err)

	// And only once.
	_, err = r.Open(second)
	require.ErrorIs(t, err, core.ErrInvalidArchive)
}

func TestReader_GarbageStream(t *testing.T) {
	t.Parallel()

	r, err := NewReader(strings.NewReader("this is not a tar archive at all, not even close, really"))
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	require.ErrorIs(t, err, core.ErrInvalidArchive)
}

func TestCodec_EngineRoundTrip(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "pkg", "data.txt"), []byte("payload"), 0o644))

	var buf bytes.Buffer
	w, err := NewWriter(&buf, Options{Compression: Zstd})
	require.NoError(t, err)

	b := carton.NewBuilder(w, nil)
	require.NoError(t, b.AddTree("", src))
	require.NoError(t, b.Close())

	r, err := NewReader(&buf)
	require.NoError(t, err)

	dest := t.TempDir()
	require.NoError(t, carton.Extract(context.Background(), r, dest))
	require.NoError(t, r.Close())

	content, err := os.ReadFile(filepath.Join(dest, "pkg", "data.txt"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(content))
}
