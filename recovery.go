package heptazip

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/heptazip/heptazip/internal/util"
)

var signatureBytes = []byte{'7', 'z', 0xbc, 0xaf, 0x27, 0x1c}

const maxMinorVersion = 10

// RecoveryStatus reports how much of a damaged or wrapped archive
// [RecoverArchive] was able to recover.
type RecoveryStatus int

const (
	// FullRecovery means a signature was found and its start header CRC
	// validated cleanly.
	FullRecovery RecoveryStatus = iota
	// PartialRecovery means a signature was found but only after falling
	// back to an unvalidated or later candidate (e.g. the start header
	// CRC did not validate at the first candidate offset).
	PartialRecovery
	// Failed means no usable signature could be located at all.
	Failed
)

func (s RecoveryStatus) String() string {
	switch s {
	case FullRecovery:
		return "FullRecovery"
	case PartialRecovery:
		return "PartialRecovery"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// RecoveryResult is the outcome of [RecoverArchive].
type RecoveryResult struct {
	Status   RecoveryStatus
	Offset   int64
	Entries  int
	Warnings []string
}

// validVersion reports whether a signature header's version field looks
// like a real 7z archive (major is always 0; minor has stayed within a
// small range across every format revision to date).
func validVersion(major, minor byte) bool {
	return major == 0 && minor <= maxMinorVersion
}

// ScanForward searches r for the 7z signature starting at offset 0 up to
// limit bytes (1 MiB if limit <= 0), returning every offset
// where a version-plausible signature begins. This is the mechanism an
// SFX stub or other prepended garbage is discovered by: the real archive
// begins at whatever offset is returned here instead of at offset 0.
func ScanForward(r io.ReaderAt, limit int64) ([]int64, error) {
	return scanDirection(r, limit, false)
}

// ScanBackward searches r for the 7z signature working backward from the
// end of the stream, useful for trailer-style backups that append a
// second copy of the header at end-of-file.
func ScanBackward(r io.ReaderAt, size int64, limit int64) ([]int64, error) {
	offsets, err := scanDirection(r, limit, true, size)
	if err != nil {
		return nil, err
	}

	return offsets, nil
}

func scanDirection(r io.ReaderAt, limit int64, backward bool, size ...int64) ([]int64, error) {
	if limit <= 0 {
		limit = searchLimit
	}

	var offsets []int64

	if !backward {
		chunk := make([]byte, chunkSize+len(signatureBytes))

		for offset := int64(0); offset < limit; offset += chunkSize {
			n, err := r.ReadAt(chunk, offset)

			for i := 0; ; {
				idx := bytes.Index(chunk[i:n], signatureBytes)
				if idx == -1 {
					break
				}

				pos := offset + int64(i+idx)
				if versionPlausible(r, pos) {
					offsets = append(offsets, pos)
				}

				i += idx + 1
			}

			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}

				return nil, fmt.Errorf("heptazip: error scanning for signature: %w", err)
			}
		}

		return offsets, nil
	}

	if len(size) == 0 {
		return nil, errNegativeSize
	}

	total := size[0]

	scanned := int64(0)
	for end := total; end > 0 && scanned < limit; {
		start := end - chunkSize
		if start < 0 {
			start = 0
		}

		chunk := make([]byte, end-start)
		if _, err := r.ReadAt(chunk, start); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("heptazip: error scanning for signature: %w", err)
		}

		for i := len(chunk) - len(signatureBytes); i >= 0; i-- {
			if bytes.Equal(chunk[i:i+len(signatureBytes)], signatureBytes) {
				pos := start + int64(i)
				if versionPlausible(r, pos) {
					offsets = append(offsets, pos)
				}
			}
		}

		scanned += end - start
		end = start
	}

	return offsets, nil
}

func versionPlausible(r io.ReaderAt, offset int64) bool {
	var hdr [8]byte //nolint:mnd

	n, err := r.ReadAt(hdr[:], offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return false
	}

	if n < 8 { //nolint:mnd
		return false
	}

	return validVersion(hdr[6], hdr[7]) //nolint:mnd
}

// ValidateStartHeader reads and CRC-validates the start header immediately
// following the signature at offset. A nil error means the candidate is a
// genuine, uncorrupted archive start.
func ValidateStartHeader(r io.ReaderAt, offset int64) error {
	var buf [32]byte //nolint:mnd

	if _, err := r.ReadAt(buf[:], offset); err != nil {
		return fmt.Errorf("heptazip: error reading header at offset %d: %w", offset, err)
	}

	var sh signatureHeader

	if err := binary.Read(bytes.NewReader(buf[:12]), binary.LittleEndian, &sh); err != nil { //nolint:mnd
		return fmt.Errorf("heptazip: error decoding signature header: %w", err)
	}

	h := crc32.NewIEEE()
	h.Write(buf[12:32]) //nolint:mnd

	if !util.CRC32Equal(h.Sum(nil), sh.CRC) {
		return &HeaderError{Which: "signature"}
	}

	return nil
}

// RecoverArchive scans r for a 7z signature (forward from offset 0, honoring
// an SFX stub or other prepended bytes) and opens the archive at the first
// plausible offset. It composes scanning and opening into a single status
// report rather than requiring the caller to retry offsets manually.
func RecoverArchive(r io.ReaderAt, size int64) (*Reader, *RecoveryResult, error) {
	offsets, err := ScanForward(r, 0)
	if err != nil {
		return nil, nil, err
	}

	if len(offsets) == 0 {
		return nil, &RecoveryResult{Status: Failed}, errFormat
	}

	var warnings []string

	for i, off := range offsets {
		validateErr := ValidateStartHeader(r, off)

		zr, err := NewReader(io.NewSectionReader(r, off, size-off), size-off)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("offset %d: %v", off, err))

			continue
		}

		status := FullRecovery
		if validateErr != nil || i > 0 {
			status = PartialRecovery

			warnings = append(warnings, fmt.Sprintf("offset %d: header CRC did not validate cleanly", off))
		}

		return zr, &RecoveryResult{
			Status:   status,
			Offset:   off,
			Entries:  len(zr.File),
			Warnings: warnings,
		}, nil
	}

	return nil, &RecoveryResult{Status: Failed, Warnings: warnings}, errFormat
}
