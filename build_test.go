package carton

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/carton/core"
)

func TestBuilder_AddBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		wantName string
		wantErr  error
	}{
		{name: "plain name", raw: "file.txt", wantName: "file.txt"},
		{name: "nested name", raw: "dir/file.txt", wantName: "dir/file.txt"},
		{name: "backslashes converted", raw: `dir\file.txt`, wantName: "dir/file.txt"},
		{name: "outer slashes trimmed", raw: "/dir/file.txt/", wantName: "dir/file.txt"},
		{name: "whitespace trimmed", raw: "  file.txt  ", wantName: "file.txt"},
		{name: "empty name", raw: "", wantErr: ErrInvalidName},
		{name: "only slashes", raw: "///", wantErr: ErrInvalidName},
		{name: "traversal", raw: "../evil", wantErr: ErrPathTraversal},
		{name: "interior traversal", raw: "a/../../evil", wantErr: ErrPathTraversal},
		{name: "backslash traversal", raw: `a\..\..\evil`, wantErr: ErrPathTraversal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			codec := newMemCodec()
			b := NewBuilder(codec, nil)

			err := b.AddBytes(tt.raw, []byte("content"))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, codec.entries)
				return
			}
			require.NoError(t, err)
			require.Len(t, codec.entries, 1)
			assert.Equal(t, tt.wantName, codec.entries[0].entry.Name)
			assert.Equal(t, int64(7), codec.entries[0].entry.Size)
		})
	}
}

func TestBuilder_AddReader(t *testing.T) {
	t.Parallel()

	codec := newMemCodec()
	b := NewBuilder(codec, nil)

	require.NoError(t, b.AddReader("streamed.bin", strings.NewReader("stream data")))
	require.Len(t, codec.entries, 1)
	assert.Equal(t, []byte("stream data"), codec.entries[0].data)
}

func TestBuilder_AddDir(t *testing.T) {
	t.Parallel()

	codec := newMemCodec()
	b := NewBuilder(codec, nil)

	require.NoError(t, b.AddDir("some/dir"))
	require.Len(t, codec.entries, 1)
	assert.Equal(t, core.KindDir, codec.entries[0].entry.Kind)
	assert.Equal(t, "some/dir", codec.entries[0].entry.Name)
}

func TestBuilder_AddFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "source.txt")
	require.NoError(t, os.WriteFile(path, []byte("from disk"), 0o640))

	mtime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	codec := newMemCodec()
	b := NewBuilder(codec, nil)

	require.NoError(t, b.AddFile("docs/source.txt", path))
	require.Len(t, codec.entries, 1)

	got := codec.entries[0]
	assert.Equal(t, "docs/source.txt", got.entry.Name)
	assert.Equal(t, []byte("from disk"), got.data)
	assert.True(t, got.entry.ModTime.Equal(mtime), "want mtime %v, got %v", mtime, got.entry.ModTime)
	if runtime.GOOS != "windows" {
		assert.Equal(t, int64(0o640), got.entry.Mode)
	}
}

func TestBuilder_AddFileSymlink(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation requires elevation on windows")
	}

	dir := t.TempDir()
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink("target.txt", link))

	codec := newMemCodec()
	b := NewBuilder(codec, nil)

	require.NoError(t, b.AddFile("link", link))
	require.Len(t, codec.entries, 1)
	assert.Equal(t, core.KindSymlink, codec.entries[0].entry.Kind)
	assert.Equal(t, "target.txt", codec.entries[0].entry.LinkTarget)
}

func TestBuilder_WithModTime(t *testing.T) {
	t.Parallel()

	explicit := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	codec := newMemCodec()
	b := NewBuilder(codec, nil)

	before := time.Now()
	require.NoError(t, b.AddBytes("default.txt", nil))
	require.NoError(t, b.AddBytes("pinned.txt", nil, WithModTime(explicit)))

	require.Len(t, codec.entries, 2)
	assert.False(t, codec.entries[0].entry.ModTime.Before(before), "default mtime should be the current time")
	assert.True(t, codec.entries[1].entry.ModTime.Equal(explicit))
}

func TestBuilder_Filter(t *testing.T) {
	t.Parallel()

	codec := newMemCodec()
	b := NewBuilder(codec, nil)
	b.SetFilter(func(name, fsPath string) bool {
		return !strings.HasSuffix(name, ".log")
	})

	require.NoError(t, b.AddBytes("keep.txt", []byte("x")))
	require.NoError(t, b.AddBytes("drop.log", []byte("x")))

	assert.Equal(t, []string{"keep.txt"}, codec.names())
}

func TestBuilder_FilterSeesSourcePath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	var sawPath string
	codec := newMemCodec()
	b := NewBuilder(codec, nil)
	b.SetFilter(func(name, fsPath string) bool {
		sawPath = fsPath
		return true
	})

	require.NoError(t, b.AddFile("file.txt", path))
	assert.Equal(t, path, sawPath)

	// In-memory entries have no source path.
	require.NoError(t, b.AddBytes("mem.txt", nil))
	assert.Empty(t, sawPath)
}

func TestBuilder_AddTree(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub", "deep"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "top.txt"), []byte("top"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "inner.txt"), []byte("inner"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "deep", "leaf.txt"), []byte("leaf"), 0o644))

	t.Run("with prefix", func(t *testing.T) {
		t.Parallel()

		codec := newMemCodec()
		b := NewBuilder(codec, nil)
		require.NoError(t, b.AddTree("pkg", root))

		assert.Equal(t, []string{
			"pkg",
			"pkg/sub",
			"pkg/sub/deep",
			"pkg/sub/deep/leaf.txt",
			"pkg/sub/inner.txt",
			"pkg/top.txt",
		}, codec.names())
	})

	t.Run("without prefix", func(t *testing.T) {
		t.Parallel()

		codec := newMemCodec()
		b := NewBuilder(codec, nil)
		require.NoError(t, b.AddTree("", root))

		// No entry for the root directory itself.
		assert.Equal(t, []string{
			"sub",
			"sub/deep",
			"sub/deep/leaf.txt",
			"sub/inner.txt",
			"top.txt",
		}, codec.names())
	})

	t.Run("rejected directory skips subtree", func(t *testing.T) {
		t.Parallel()

		codec := newMemCodec()
		b := NewBuilder(codec, nil)
		b.SetFilter(func(name, fsPath string) bool {
			return name != "pkg/sub"
		})
		require.NoError(t, b.AddTree("pkg", root))

		assert.Equal(t, []string{"pkg", "pkg/top.txt"}, codec.names())
	})
}

func TestBuilder_Close(t *testing.T) {
	t.Parallel()

	codec := newMemCodec()
	b := NewBuilder(codec, nil)

	require.NoError(t, b.AddBytes("a.txt", []byte("a")))
	require.NoError(t, b.Close())
	assert.True(t, codec.closed)

	// A closed builder rejects further adds and tolerates repeated closes.
	require.ErrorIs(t, b.AddBytes("b.txt", []byte("b")), ErrClosed)
	require.ErrorIs(t, b.AddDir("d"), ErrClosed)
	require.ErrorIs(t, b.AddTree("p", t.TempDir()), ErrClosed)
	require.NoError(t, b.Close())
}
