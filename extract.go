package heptazip

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// OverwritePolicy controls what an extractor does when a destination path
// already exists.
type OverwritePolicy int

// Overwrite policies.
const (
	OverwriteAlways OverwritePolicy = iota
	OverwriteNever
	OverwritePrompt
)

// OverwriteDecision is supplied by the caller when OverwritePrompt needs a
// decision for a colliding path.
type OverwriteDecision func(path string) (overwrite bool, err error)

// ExtractOptions configures a call to [Reader.Extract].
type ExtractOptions struct {
	Overwrite        OverwritePolicy
	OverwriteHook    OverwriteDecision
	PreserveMetadata bool
	Limits           ResourceLimits
	// Parallel, when greater than 1, allows entries from distinct
	// non-solid folders to decode concurrently.
	Parallel int
}

// EntryFailure records one entry's extraction error without aborting the
// rest of the batch.
type EntryFailure struct {
	Path string
	Err  error
}

// ExtractResult is the aggregate outcome of an [Reader.Extract] call.
type ExtractResult struct {
	EntriesExtracted int
	EntriesFailed    int
	Failures         []EntryFailure
}

// Destination is where extracted entry bytes go. FileSystemDestination,
// MemoryDestination and NullDestination each implement it; NullDestination
// is the CRC-only sink, since Extract checks every entry's CRC itself.
type Destination interface {
	// create is called once per non-directory, non-symlink entry before
	// any bytes are written.
	create(f *File) (io.WriteCloser, error)
	// mkdir is called once per directory entry.
	mkdir(f *File) error
	// symlink is called once per symlink entry with its decoded target.
	symlink(f *File, target string) error
}

// FileSystemDestination extracts into a real directory tree on the OS
// filesystem through the os package, applying the overwrite policy and
// optional metadata preservation from its own Options.
type FileSystemDestination struct {
	Root    string
	Options ExtractOptions
}

func (d *FileSystemDestination) resolve(f *File) (string, error) {
	if err := checkDestination(f.Name); err != nil {
		return "", err
	}

	return filepath.Join(d.Root, filepath.FromSlash(strings.TrimSuffix(f.Name, "/"))), nil
}

func (d *FileSystemDestination) shouldWrite(target string) (bool, error) {
	_, err := os.Lstat(target)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}

	switch d.Options.Overwrite {
	case OverwriteAlways:
		return true, nil
	case OverwriteNever:
		return false, nil
	case OverwritePrompt:
		if d.Options.OverwriteHook == nil {
			return false, fmt.Errorf("heptazip: overwrite prompt requested with no hook: %s", target) //nolint:err113
		}

		return d.Options.OverwriteHook(target)
	default:
		return false, nil
	}
}

func (d *FileSystemDestination) mkdir(f *File) error {
	target, err := d.resolve(f)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(target, 0o755); err != nil { //nolint:mnd
		return fmt.Errorf("heptazip: error creating directory: %w", err)
	}

	return d.applyMetadata(f, target)
}

func (d *FileSystemDestination) create(f *File) (io.WriteCloser, error) {
	target, err := d.resolve(f)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil { //nolint:mnd
		return nil, fmt.Errorf("heptazip: error creating parent directory: %w", err)
	}

	ok, err := d.shouldWrite(target)
	if err != nil || !ok {
		return nopSink{}, err
	}

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644) //nolint:mnd
	if err != nil {
		return nil, fmt.Errorf("heptazip: error creating file: %w", err)
	}

	return &fsFileWriter{f: out, dst: d, entry: f}, nil
}

func (d *FileSystemDestination) symlink(f *File, target string) error {
	if err := applyPathSafety(d.Options.Limits.PathSafety, f.Name, true, filepath.Dir(f.Name), target); err != nil {
		return err
	}

	dest, err := d.resolve(f)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil { //nolint:mnd
		return fmt.Errorf("heptazip: error creating parent directory: %w", err)
	}

	ok, err := d.shouldWrite(dest)
	if err != nil || !ok {
		return err
	}

	_ = os.Remove(dest)

	if err := os.Symlink(target, dest); err != nil {
		return fmt.Errorf("heptazip: error creating symlink: %w", err)
	}

	return nil
}

func (d *FileSystemDestination) applyMetadata(f *File, target string) error {
	if !d.Options.PreserveMetadata {
		return nil
	}

	if !f.Modified.IsZero() {
		if err := os.Chtimes(target, f.Modified, f.Modified); err != nil {
			return fmt.Errorf("heptazip: error setting times: %w", err)
		}
	}

	if err := os.Chmod(target, f.Mode().Perm()); err != nil {
		return fmt.Errorf("heptazip: error setting mode: %w", err)
	}

	return nil
}

type fsFileWriter struct {
	f     *os.File
	dst   *FileSystemDestination
	entry *File
}

func (w *fsFileWriter) Write(p []byte) (int, error) { return w.f.Write(p) } //nolint:wrapcheck

func (w *fsFileWriter) Close() error {
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("heptazip: error closing file: %w", err)
	}

	return w.dst.applyMetadata(w.entry, w.f.Name())
}

type nopSink struct{}

func (nopSink) Write(p []byte) (int, error) { return len(p), nil }
func (nopSink) Close() error                { return nil }

// MemoryDestination extracts into an in-memory map keyed by archive path,
// guarded by a mutex so it's safe to use with ExtractOptions.Parallel.
type MemoryDestination struct {
	mu    sync.Mutex
	Files map[string][]byte
	Dirs  map[string]bool
	Links map[string]string
}

func NewMemoryDestination() *MemoryDestination {
	return &MemoryDestination{
		Files: make(map[string][]byte),
		Dirs:  make(map[string]bool),
		Links: make(map[string]string),
	}
}

func (d *MemoryDestination) mkdir(f *File) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Dirs[f.Name] = true

	return nil
}

func (d *MemoryDestination) create(f *File) (io.WriteCloser, error) {
	return &memoryFileWriter{dst: d, name: f.Name}, nil
}

func (d *MemoryDestination) symlink(f *File, target string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Links[f.Name] = target

	return nil
}

type memoryFileWriter struct {
	dst  *MemoryDestination
	name string
	buf  bytes.Buffer
}

func (w *memoryFileWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *memoryFileWriter) Close() error {
	w.dst.mu.Lock()
	defer w.dst.mu.Unlock()

	w.dst.Files[w.name] = w.buf.Bytes()

	return nil
}

// NullDestination discards all bytes; used with Test for CRC-only
// verification.
type NullDestination struct{}

func (NullDestination) mkdir(*File) error                   { return nil }
func (NullDestination) create(*File) (io.WriteCloser, error) { return nopSink{}, nil }
func (NullDestination) symlink(*File, string) error         { return nil }

// Extract extracts the given entries (or all entries if files is nil) to
// dst, honoring opts.Limits and opts.Parallel; the overwrite and metadata
// settings take effect through a FileSystemDestination's own Options, not
// through opts. Entries are visited in archive order; within a single
// solid folder, earlier substreams are decoded and discarded so a later
// one can be produced, never decoded twice across a single call. With
// Parallel > 1, entries without data come first and folders then decode
// concurrently, so the order across folders is not fixed.
func (z *Reader) Extract(ctx context.Context, dst Destination, files []*File, opts ExtractOptions) (*ExtractResult, error) {
	if files == nil {
		files = z.File
	}

	if opts.Limits == (ResourceLimits{}) {
		opts.Limits = DefaultResourceLimits()
	}

	byFolder := make(map[int][]*File)
	order := make([]int, 0, len(files))

	for _, f := range files {
		if f.FileHeader.isEmptyStream || f.FileHeader.isEmptyFile {
			continue
		}

		if _, ok := byFolder[f.folder]; !ok {
			order = append(order, f.folder)
		}

		byFolder[f.folder] = append(byFolder[f.folder], f)
	}

	result := &ExtractResult{}

	var mu sync.Mutex

	extractOne := func(f *File) {
		if err := z.extractEntry(ctx, dst, f, opts); err != nil {
			mu.Lock()
			result.EntriesFailed++
			result.Failures = append(result.Failures, EntryFailure{Path: f.Name, Err: err})
			mu.Unlock()

			return
		}

		mu.Lock()
		result.EntriesExtracted++
		mu.Unlock()
	}

	parallel := opts.Parallel > 1 && len(order) > 1

	// Sequentially every entry is extracted here, in archive order; in
	// parallel mode only the entries without data are.
	for _, f := range files {
		if parallel && !(f.FileHeader.isEmptyStream || f.FileHeader.isEmptyFile) {
			continue
		}

		extractOne(f)
	}

	if parallel {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Parallel)

		for _, folderIdx := range order {
			entries := byFolder[folderIdx]

			g.Go(func() error {
				for _, f := range entries {
					select {
					case <-gctx.Done():
						return ErrCancelled
					default:
					}

					extractOne(f)
				}

				return nil
			})
		}

		_ = g.Wait()
	}

	return result, nil
}

func (z *Reader) extractEntry(ctx context.Context, dst Destination, f *File, opts ExtractOptions) error {
	info := f.FileInfo()

	if info.IsDir() {
		return dst.mkdir(f)
	}

	if f.IsSymlink() {
		rc, err := f.Open()
		if err != nil {
			return err
		}
		defer rc.Close()

		buf, err := io.ReadAll(io.LimitReader(rc, 1<<16)) //nolint:mnd
		if err != nil {
			return fmt.Errorf("heptazip: error reading symlink target: %w", err)
		}

		return dst.symlink(f, string(buf))
	}

	if err := checkDestination(f.Name); err != nil && opts.Limits.PathSafety != PathSafetyDisabled {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := dst.create(f)
	if err != nil {
		return err
	}

	var packedSize uint64

	if si := z.si; !f.isEmptyStream && si != nil && si.packInfo != nil && si.unpackInfo != nil {
		first := uint64(0)
		for i := 0; i < f.folder; i++ {
			first += si.unpackInfo.folder[i].packedStreams
		}

		for j := first; j < first+si.unpackInfo.folder[f.folder].packedStreams; j++ {
			packedSize += si.packInfo.size[j]
		}
	}

	lr := newLimitedReader(ctx, rc, packedSize, opts.Limits)

	h := crc32.NewIEEE()

	if _, err := io.Copy(io.MultiWriter(out, h), lr); err != nil {
		_ = out.Close()

		return fmt.Errorf("heptazip: error extracting %s: %w", f.Name, err)
	}

	if err := out.Close(); err != nil {
		return err
	}

	if f.CRC32 != 0 && h.Sum32() != f.CRC32 {
		return &ChecksumError{Entry: f.Name}
	}

	return nil
}

// Test verifies every entry's content against its recorded CRC-32 without
// writing anything, using unlimited resource caps as specified for the
// test operation.
func (z *Reader) Test(ctx context.Context) (*ExtractResult, error) {
	limits := DefaultResourceLimits()
	limits.MaxAbsoluteBytes = 0
	limits.MaxRatio = 0

	return z.Extract(ctx, NullDestination{}, nil, ExtractOptions{Limits: limits})
}
