package heptazip

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"io"
	"strings"

	"github.com/spf13/afero"
	"go4.org/readerutil"
)

// volumeSequencer resolves a single archive name, possibly the first member
// of a ".7z.001"/".7z.002"/... split, into one contiguous io.ReaderAt plus
// the list of open volume handles that back it.
type volumeSequencer struct {
	fs afero.Fs
}

func newVolumeSequencer(fs afero.Fs) *volumeSequencer {
	return &volumeSequencer{fs: fs}
}

// open returns the combined reader, its total size, and every afero.File
// that makes it up, in volume order. name's extension decides whether this
// is a split archive: anything other than a numeric ".NNN" suffix is opened
// as a single, self-contained file.
func (vs *volumeSequencer) open(name string) (io.ReaderAt, int64, []afero.File, error) {
	first, err := vs.fs.Open(name)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("heptazip: error opening volume: %w", err)
	}

	info, err := first.Stat()
	if err != nil {
		return nil, 0, nil, fmt.Errorf("heptazip: error statting volume: %w", errors.Join(err, first.Close()))
	}

	files := []afero.File{first}

	if !isSplitExtension(name) {
		return first, info.Size(), files, nil
	}

	ext := name[len(name)-len(".001"):]
	stem := strings.TrimSuffix(name, ext)

	sr := []readerutil.SizeReaderAt{io.NewSectionReader(first, 0, info.Size())}

	for volume := 2; ; volume++ {
		next, err := vs.fs.Open(fmt.Sprintf("%s.%03d", stem, volume))
		if err != nil {
			if errors.Is(err, iofs.ErrNotExist) {
				break
			}

			return nil, 0, nil, fmt.Errorf("heptazip: error opening volume %d: %w", volume, closeAll(files, err))
		}

		files = append(files, next)

		ninfo, err := next.Stat()
		if err != nil {
			return nil, 0, nil, fmt.Errorf("heptazip: error statting volume %d: %w", volume, closeAll(files, err))
		}

		sr = append(sr, io.NewSectionReader(next, 0, ninfo.Size()))
	}

	mr := readerutil.NewMultiReaderAt(sr...)

	return mr, mr.Size(), files, nil
}

// isSplitExtension reports whether name carries the first-volume suffix of
// a numbered split, ".001".
func isSplitExtension(name string) bool {
	return len(name) >= len(".001") && name[len(name)-len(".001"):] == ".001"
}

func closeAll(files []afero.File, cause error) error {
	errs := make([]error, 0, len(files)+1)
	errs = append(errs, cause)

	for _, f := range files {
		errs = append(errs, f.Close())
	}

	return errors.Join(errs...)
}

// volumeNames returns the volume file names backing an already-opened
// ReadCloser, in the order they were opened.
func volumeNames(files []afero.File) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name()
	}

	return names
}
