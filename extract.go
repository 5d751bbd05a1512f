package carton

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/meigma/carton/core"
	"github.com/meigma/carton/internal/fsmode"
	"github.com/meigma/carton/internal/pathname"
)

// ExtractOption configures an Extract call.
type ExtractOption func(*extractConfig)

type extractConfig struct {
	overwrite   bool
	policy      SymlinkPolicy
	stripPrefix string
	entryFilter func(Entry) bool
	nameFilter  func(string) bool
	handler     ErrorHandler
	postProcess func(Entry, string) error
	limits      ExtractLimits
	logger      *slog.Logger
}

// WithOverwrite controls whether existing files and symlinks at an entry's
// destination are replaced. When disabled, entries whose destination already
// exists are skipped without error. The default is to overwrite.
func WithOverwrite(overwrite bool) ExtractOption {
	return func(c *extractConfig) { c.overwrite = overwrite }
}

// WithSymlinkPolicy sets how symlink entries whose targets may escape the
// destination directory are handled. The default is SymlinkAllow.
func WithSymlinkPolicy(policy SymlinkPolicy) ExtractOption {
	return func(c *extractConfig) { c.policy = policy }
}

// WithStripPrefix discards the given leading path from every entry name
// before extraction. Entries not under the prefix, including an entry whose
// whole name equals the prefix, are skipped.
func WithStripPrefix(prefix string) ExtractOption {
	return func(c *extractConfig) { c.stripPrefix = prefix }
}

// WithEntryFilter restricts extraction to entries accepted by f. The filter
// sees each entry exactly once, before any filesystem object is created.
func WithEntryFilter(f func(Entry) bool) ExtractOption {
	return func(c *extractConfig) { c.entryFilter = f }
}

// WithNameFilter restricts extraction to entries whose resolved name is
// accepted by f. Directory names are passed with a trailing slash so the
// filter can tell them apart from files.
func WithNameFilter(f func(string) bool) ExtractOption {
	return func(c *extractConfig) { c.nameFilter = f }
}

// WithErrorHandler installs a recovery handler consulted when processing an
// entry fails. Without a handler the first failure aborts extraction,
// leaving already extracted entries in place.
func WithErrorHandler(h ErrorHandler) ExtractOption {
	return func(c *extractConfig) { c.handler = h }
}

// WithPostProcess registers a hook invoked with each processed entry and
// its filesystem path, including entries left untouched because the
// destination already existed. A hook error stops extraction immediately
// and is never routed through the error handler.
func WithPostProcess(f func(Entry, string) error) ExtractOption {
	return func(c *extractConfig) { c.postProcess = f }
}

// WithExtractLimits bounds the extraction. A limit violation stops
// extraction with ErrExtractLimits and is never routed through the error
// handler.
func WithExtractLimits(limits ExtractLimits) ExtractOption {
	return func(c *extractConfig) { c.limits = limits }
}

// WithLogger enables debug logging during extraction.
func WithLogger(logger *slog.Logger) ExtractOption {
	return func(c *extractConfig) { c.logger = logger }
}

// Extract reads entries from codec and materializes them under dest,
// creating dest if needed. Entry names are validated against path
// traversal, symlink targets are checked per the configured policy, and
// parent directories are created as needed.
//
// Processing failures are routed through the error handler, which decides
// whether to abort, retry the entry, skip it, or skip all further failures.
// Aborting removes everything the call created, in reverse creation order,
// and returns nil. Errors from reading the archive stream itself are not
// recoverable and end the call directly.
func Extract(ctx context.Context, codec core.ReadCodec, dest string, opts ...ExtractOption) error {
	cfg := extractConfig{
		overwrite: true,
		policy:    SymlinkAllow,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	var prefix []string
	if cfg.stripPrefix != "" {
		var err error
		if prefix, err = pathname.Split(cfg.stripPrefix); err != nil {
			return fmt.Errorf("%w: strip prefix %q: %v", ErrConfiguration, cfg.stripPrefix, err)
		}
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	ex := &extractor{
		codec:    codec,
		dest:     filepath.Clean(dest),
		cfg:      cfg,
		prefix:   prefix,
		buf:      make([]byte, copyBufferSize),
		madeDirs: make(map[string]struct{}),
	}
	ex.madeDirs[ex.dest] = struct{}{}
	return ex.run(ctx)
}

// extractor holds per-call extraction state.
type extractor struct {
	codec  core.ReadCodec
	dest   string
	cfg    extractConfig
	prefix []string

	buf       []byte
	madeDirs  map[string]struct{}
	created   []string
	fileCount int
	totalSize int64
	skipAll   bool
}

func (ex *extractor) log() *slog.Logger {
	if ex.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return ex.cfg.logger
}

func (ex *extractor) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		entry, err := ex.codec.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		name, nameErr := ex.normalizeName(entry.Name)
		if nameErr == nil {
			// The filter sees each entry exactly once, under its archived
			// name, even when the handler later asks for a retry. The
			// prefix test comes after the filter.
			if !ex.accepted(entry, name) {
				ex.log().Debug("entry filtered", "name", name)
				continue
			}
			if len(ex.prefix) > 0 {
				stripped, under := pathname.Strip(name, ex.prefix)
				if !under {
					ex.log().Debug("entry outside prefix", "name", name)
					continue
				}
				name = stripped
			}
		}

		var processed bool
	attempt:
		for {
			err := nameErr
			if err == nil {
				err = ex.process(ctx, entry, name)
			}
			if err == nil {
				processed = true
				break
			}
			if isTerminal(err) {
				return err
			}
			if ex.skipAll {
				ex.log().Debug("entry skipped", "name", entry.Name, "error", err)
				break
			}
			if ex.cfg.handler == nil {
				return err
			}
			switch ex.cfg.handler(entry, err) {
			case Abort:
				// Abort is the quiet rollback: the destination is
				// restored and the caller sees no error.
				ex.rollback()
				return nil
			case Retry:
				ex.log().Debug("retrying entry", "name", entry.Name, "error", err)
			case Skip:
				break attempt
			case SkipAll:
				ex.skipAll = true
				break attempt
			default:
				return err
			}
		}

		if processed && ex.cfg.postProcess != nil {
			path := filepath.Join(ex.dest, filepath.FromSlash(name))
			if err := ex.cfg.postProcess(entry, path); err != nil {
				return err
			}
		}
	}
}

// normalizeName canonicalizes and validates a raw entry name. Prefix
// stripping is not applied here; filters must observe the archived name.
func (ex *extractor) normalizeName(raw string) (string, error) {
	name, err := pathname.Normalize(raw)
	if err != nil {
		return "", err
	}
	if err := pathname.EnsureValid(name); err != nil {
		return "", err
	}
	return name, nil
}

func (ex *extractor) accepted(entry Entry, name string) bool {
	if ex.cfg.entryFilter != nil && !ex.cfg.entryFilter(entry) {
		return false
	}
	if ex.cfg.nameFilter != nil {
		n := name
		if entry.Kind == core.KindDir {
			n += "/"
		}
		if !ex.cfg.nameFilter(n) {
			return false
		}
	}
	return true
}

// process materializes a single entry. An existing destination with
// overwriting disabled is left alone and counts as processed.
func (ex *extractor) process(ctx context.Context, entry Entry, name string) error {
	path := filepath.Join(ex.dest, filepath.FromSlash(name))

	switch entry.Kind {
	case core.KindDir:
		return ex.writeDir(entry, path)
	case core.KindSymlink:
		return ex.writeSymlink(entry, path)
	case core.KindFile:
		return ex.writeFile(ctx, entry, path)
	default:
		return fmt.Errorf("%w: unsupported entry kind %d for %s", ErrInvalidName, entry.Kind, entry.Name)
	}
}

func (ex *extractor) writeDir(entry Entry, path string) error {
	if err := ex.ensureDirs(filepath.Dir(path)); err != nil {
		return err
	}

	preexisting := false
	if info, err := os.Lstat(path); err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%s exists and is not a directory", path)
		}
		preexisting = true
	}
	if !preexisting {
		if err := os.Mkdir(path, 0o755); err != nil {
			return err
		}
		ex.record(path)
	}
	ex.madeDirs[path] = struct{}{}

	if err := fsmode.Apply(path, entry.Mode); err != nil {
		return err
	}
	ex.log().Debug("directory extracted", "path", path)
	return nil
}

func (ex *extractor) writeFile(ctx context.Context, entry Entry, path string) error {
	if err := ex.checkLimits(entry); err != nil {
		return err
	}
	if err := ex.ensureDirs(filepath.Dir(path)); err != nil {
		return err
	}

	if info, err := os.Lstat(path); err == nil {
		if !ex.cfg.overwrite {
			ex.log().Debug("existing file kept", "path", path)
			return nil
		}
		if info.IsDir() {
			return fmt.Errorf("cannot overwrite directory %s with a file", path)
		}
		if err := os.Remove(path); err != nil {
			return err
		}
	}

	src, err := ex.codec.Open(entry)
	if err != nil {
		return err
	}
	defer src.Close()

	// O_EXCL so a concurrently planted symlink makes the open fail instead
	// of redirecting the write.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) //nolint:gosec // G304: path validated against traversal
	if err != nil {
		return err
	}

	allowed := ex.allowedBytes()
	written, copyErr := copyWithContext(ctx, f, io.LimitReader(src, allowed+1), ex.buf)
	closeErr := f.Close()
	if copyErr != nil {
		return copyErr
	}
	if closeErr != nil {
		return closeErr
	}
	if written > allowed {
		return ErrExtractLimits
	}

	ex.record(path)
	ex.fileCount++
	ex.totalSize += written

	if err := fsmode.Apply(path, entry.Mode); err != nil {
		return err
	}
	ex.log().Debug("file extracted", "path", path, "size", written)
	return nil
}

func (ex *extractor) writeSymlink(entry Entry, path string) error {
	target := entry.LinkTarget
	if target == "" {
		return fmt.Errorf("%w: empty link target for %s", ErrInvalidSymlink, entry.Name)
	}

	switch ex.cfg.policy {
	case SymlinkDisallow:
		if err := verifyLinkTarget(ex.dest, path, target); err != nil {
			return err
		}
	case SymlinkRelativizeAbsolute:
		if isSlashAbsolute(target) {
			target = filepath.Join(ex.dest, filepath.FromSlash(strings.TrimLeft(target, `/\`)))
		}
	}

	if err := ex.ensureDirs(filepath.Dir(path)); err != nil {
		return err
	}

	if _, err := os.Lstat(path); err == nil {
		if !ex.cfg.overwrite {
			ex.log().Debug("existing symlink kept", "path", path)
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
	}

	// Create in a temp location then rename so a half-created link never
	// sits at the final path.
	tmpLink := path + ".tmp"
	_ = os.Remove(tmpLink)
	if err := fsmode.Symlink(target, tmpLink); err != nil {
		return err
	}
	if err := os.Rename(tmpLink, path); err != nil {
		_ = os.Remove(tmpLink)
		return err
	}

	ex.record(path)
	ex.log().Debug("symlink extracted", "path", path, "target", target)
	return nil
}

// ensureDirs creates the directory chain down to dir, recording every
// directory it creates. A pre-existing symlink inside the destination is
// rejected so an earlier malicious entry cannot redirect later writes.
func (ex *extractor) ensureDirs(dir string) error {
	var missing []string
	for p := dir; ; {
		if _, ok := ex.madeDirs[p]; ok {
			break
		}
		info, err := os.Lstat(p)
		if err == nil {
			if info.Mode()&fs.ModeSymlink != 0 {
				// Symlinked ancestors outside the destination, such as a
				// /tmp that points elsewhere, are fine.
				if isWithinOrEqual(p, ex.dest) && p != ex.dest {
					return fmt.Errorf("%w: %s is a symlink", ErrPathTraversal, p)
				}
			} else if !info.IsDir() {
				return fmt.Errorf("%s exists and is not a directory", p)
			}
			ex.madeDirs[p] = struct{}{}
			break
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		missing = append(missing, p)
		parent := filepath.Dir(p)
		if parent == p {
			break
		}
		p = parent
	}

	for i := len(missing) - 1; i >= 0; i-- {
		if err := os.Mkdir(missing[i], 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
			return err
		}
		ex.record(missing[i])
		ex.madeDirs[missing[i]] = struct{}{}
	}
	return nil
}

// checkLimits pre-checks the declared entry size against the configured
// limits. Actual bytes are accounted after a successful copy so a retried
// entry is never counted twice.
func (ex *extractor) checkLimits(entry Entry) error {
	limits := ex.cfg.limits
	if limits.MaxFiles > 0 && ex.fileCount+1 > limits.MaxFiles {
		return ErrExtractLimits
	}
	if entry.Size >= 0 {
		if limits.MaxFileSize > 0 && entry.Size > limits.MaxFileSize {
			return ErrExtractLimits
		}
		if ex.totalSize > math.MaxInt64-entry.Size {
			return ErrExtractLimits
		}
		if limits.MaxTotalSize > 0 && ex.totalSize+entry.Size > limits.MaxTotalSize {
			return ErrExtractLimits
		}
	}
	return nil
}

// allowedBytes returns how many more bytes a single file may contribute
// before a limit is exceeded.
func (ex *extractor) allowedBytes() int64 {
	allowed := int64(math.MaxInt64 - 1)
	if limit := ex.cfg.limits.MaxFileSize; limit > 0 {
		allowed = limit
	}
	if limit := ex.cfg.limits.MaxTotalSize; limit > 0 {
		if remaining := limit - ex.totalSize; remaining < allowed {
			allowed = remaining
		}
	}
	if allowed < 0 {
		return 0
	}
	return allowed
}

func (ex *extractor) record(path string) {
	ex.created = append(ex.created, path)
}

// rollback removes everything this call created, newest first, so files go
// before the directories that contain them.
func (ex *extractor) rollback() {
	for i := len(ex.created) - 1; i >= 0; i-- {
		_ = os.Remove(ex.created[i])
	}
	ex.created = nil
}

// isTerminal reports whether err must end extraction without consulting the
// error handler.
func isTerminal(err error) bool {
	return errors.Is(err, ErrExtractLimits) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// verifyLinkTarget rejects absolute targets and relative targets that
// resolve outside the destination directory.
func verifyLinkTarget(dest, linkPath, target string) error {
	if isSlashAbsolute(target) {
		return fmt.Errorf("%w: absolute target %q", ErrInvalidSymlink, target)
	}
	resolved := filepath.Clean(filepath.Join(filepath.Dir(linkPath), filepath.FromSlash(target)))
	if !isWithinOrEqual(resolved, dest) {
		return fmt.Errorf("%w: target %q escapes destination", ErrInvalidSymlink, target)
	}
	return nil
}

// isSlashAbsolute treats a leading slash or backslash as absolute on every
// platform, matching how archive link targets are written.
func isSlashAbsolute(target string) bool {
	if target == "" {
		return false
	}
	return target[0] == '/' || target[0] == '\\' || filepath.IsAbs(target)
}

// isWithinOrEqual reports whether path is lexically within or equal to dir.
func isWithinOrEqual(path, dir string) bool {
	if path == dir {
		return true
	}
	if !strings.HasSuffix(dir, string(filepath.Separator)) {
		dir += string(filepath.Separator)
	}
	return strings.HasPrefix(path, dir)
}

// copyWithContext copies from src to dst while honoring context
// cancellation. It checks the context every 128KB to balance responsiveness
// with throughput.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader, buf []byte) (int64, error) {
	if len(buf) < copyBufferSize {
		buf = make([]byte, copyBufferSize)
	}
	buf = buf[:copyBufferSize]
	var written int64
	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return written, writeErr
			}
			written += int64(n)
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return written, nil
			}
			return written, readErr
		}
	}
}

const copyBufferSize = 128 * 1024
