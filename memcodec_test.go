package carton

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/meigma/carton/core"
)

// memCodec is an in-memory codec used to test the pack and unpack engines
// without a real archive format. It implements both WriteCodec and
// ReadCodec over the same entry slice.
type memCodec struct {
	entries []memEntry
	pos     int
	closed  bool

	// failOpen injects transient Open failures: name -> remaining failures.
	failOpen map[string]int
	// openCalls counts Open invocations per entry name.
	openCalls map[string]int
}

type memEntry struct {
	entry core.Entry
	data  []byte
}

func newMemCodec() *memCodec {
	return &memCodec{
		failOpen:  make(map[string]int),
		openCalls: make(map[string]int),
	}
}

func (m *memCodec) WriteDir(name string, mtime time.Time) error {
	m.entries = append(m.entries, memEntry{entry: core.Entry{
		Name:    name,
		Kind:    core.KindDir,
		Mode:    0o755,
		ModTime: mtime,
	}})
	return nil
}

func (m *memCodec) WriteFile(name string, src io.Reader, size int64, mtime time.Time, mode int64, linkTarget string) error {
	e := core.Entry{
		Name:       name,
		Kind:       core.KindFile,
		Mode:       mode,
		Size:       size,
		ModTime:    mtime,
		LinkTarget: linkTarget,
	}
	if linkTarget != "" {
		e.Kind = core.KindSymlink
		m.entries = append(m.entries, memEntry{entry: e})
		return nil
	}
	var buf bytes.Buffer
	if src != nil {
		if _, err := io.Copy(&buf, src); err != nil {
			return err
		}
	}
	e.Size = int64(buf.Len())
	m.entries = append(m.entries, memEntry{entry: e, data: buf.Bytes()})
	return nil
}

func (m *memCodec) Next() (core.Entry, error) {
	if m.pos >= len(m.entries) {
		return core.Entry{}, io.EOF
	}
	e := m.entries[m.pos].entry
	m.pos++
	return e, nil
}

func (m *memCodec) Open(entry core.Entry) (io.ReadCloser, error) {
	m.openCalls[entry.Name]++
	if m.failOpen[entry.Name] > 0 {
		m.failOpen[entry.Name]--
		return nil, errors.New("transient read failure")
	}
	for _, e := range m.entries {
		if e.entry.Name == entry.Name {
			return io.NopCloser(bytes.NewReader(e.data)), nil
		}
	}
	return nil, fmt.Errorf("no such entry: %s", entry.Name)
}

func (m *memCodec) Close() error {
	m.closed = true
	return nil
}

func (m *memCodec) names() []string {
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.entry.Name)
	}
	return out
}

func (m *memCodec) addFile(name, content string) {
	m.entries = append(m.entries, memEntry{
		entry: core.Entry{Name: name, Kind: core.KindFile, Mode: 0o644, Size: int64(len(content)), ModTime: time.Now()},
		data:  []byte(content),
	})
}

func (m *memCodec) addDir(name string) {
	m.entries = append(m.entries, memEntry{
		entry: core.Entry{Name: name, Kind: core.KindDir, Mode: 0o755, ModTime: time.Now()},
	})
}

func (m *memCodec) addSymlink(name, target string) {
	m.entries = append(m.entries, memEntry{
		entry: core.Entry{Name: name, Kind: core.KindSymlink, Mode: 0o777, LinkTarget: target, ModTime: time.Now()},
	})
}
