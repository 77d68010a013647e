package heptazip

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// writeHeader serializes a header as the top-level kHeader record: an
// optional kMainStreamsInfo, an optional kFilesInfo, then kEnd. It's the
// inverse of readHeader and is used both for the plain (uncompressed)
// header path and to build the payload that gets folded through a folder
// when WriteOptions.EncryptHeader is set with a password; otherwise the
// header is written uncompressed.
func writeHeader(w io.Writer, h *header) error {
	if _, err := w.Write([]byte{idHeader}); err != nil {
		return fmt.Errorf("heptazip: error writing header id: %w", err)
	}

	if h.streamsInfo != nil {
		if _, err := w.Write([]byte{idMainStreams}); err != nil {
			return fmt.Errorf("heptazip: error writing header id: %w", err)
		}

		if err := writeStreamsInfo(w, h.streamsInfo); err != nil {
			return err
		}
	}

	if h.filesInfo != nil {
		if _, err := w.Write([]byte{idFilesInfo}); err != nil {
			return fmt.Errorf("heptazip: error writing header id: %w", err)
		}

		if err := writeFilesInfo(w, h.filesInfo); err != nil {
			return err
		}
	}

	_, err := w.Write([]byte{idEnd})
	if err != nil {
		err = fmt.Errorf("heptazip: error writing header end: %w", err)
	}

	return err
}

func writeStreamsInfo(w io.Writer, si *streamsInfo) error {
	if si.packInfo != nil {
		if _, err := w.Write([]byte{idPackInfo}); err != nil {
			return err //nolint:wrapcheck
		}

		if err := writePackInfo(w, si.packInfo); err != nil {
			return err
		}
	}

	if si.unpackInfo != nil {
		if _, err := w.Write([]byte{idUnpackInfo}); err != nil {
			return err //nolint:wrapcheck
		}

		if err := writeUnpackInfo(w, si.unpackInfo); err != nil {
			return err
		}
	}

	if si.subStreamsInfo != nil {
		if _, err := w.Write([]byte{idSubStreamsInfo}); err != nil {
			return err //nolint:wrapcheck
		}

		if err := writeSubStreamsInfo(w, si.subStreamsInfo, si.unpackInfo); err != nil {
			return err
		}
	}

	_, err := w.Write([]byte{idEnd})

	return err //nolint:wrapcheck
}

func writePackInfo(w io.Writer, pi *packInfo) error {
	if err := writeNumber(w, pi.position); err != nil {
		return err
	}

	if err := writeNumber(w, pi.streams); err != nil {
		return err
	}

	if _, err := w.Write([]byte{idSize}); err != nil {
		return fmt.Errorf("heptazip: error writing pack size id: %w", err)
	}

	for _, s := range pi.size {
		if err := writeNumber(w, s); err != nil {
			return err
		}
	}

	if len(pi.digest) > 0 {
		if err := writeDigests(w, pi.digest, nil); err != nil {
			return err
		}
	}

	_, err := w.Write([]byte{idEnd})

	return err //nolint:wrapcheck
}

// writeDigests writes kCRC followed by an AllAreDefined/bit-vector pair and
// the defined digests. present may be nil to mean "all defined".
func writeDigests(w io.Writer, digest []uint32, present []bool) error {
	if _, err := w.Write([]byte{idCRC}); err != nil {
		return fmt.Errorf("heptazip: error writing crc id: %w", err)
	}

	if present == nil {
		present = make([]bool, len(digest))
		for i := range present {
			present[i] = true
		}
	}

	if err := writeOptionalBoolVector(w, present); err != nil {
		return err
	}

	for i, d := range digest {
		if !present[i] {
			continue
		}

		if err := binary.Write(w, binary.LittleEndian, d); err != nil {
			return fmt.Errorf("heptazip: error writing crc: %w", err)
		}
	}

	return nil
}

func writeUnpackInfo(w io.Writer, ui *unpackInfo) error {
	if _, err := w.Write([]byte{idFolder}); err != nil {
		return fmt.Errorf("heptazip: error writing folder id: %w", err)
	}

	if err := writeNumber(w, uint64(len(ui.folder))); err != nil {
		return err
	}

	if _, err := w.Write([]byte{0}); err != nil { // not externally defined
		return fmt.Errorf("heptazip: error writing folder external flag: %w", err)
	}

	for _, f := range ui.folder {
		if err := writeFolder(w, f); err != nil {
			return err
		}
	}

	if _, err := w.Write([]byte{idCodersUnpackSize}); err != nil {
		return fmt.Errorf("heptazip: error writing coders unpack size id: %w", err)
	}

	for _, f := range ui.folder {
		for _, s := range f.size {
			if err := writeNumber(w, s); err != nil {
				return err
			}
		}
	}

	if len(ui.digest) > 0 {
		present := make([]bool, len(ui.digest))
		for i, d := range ui.digest {
			present[i] = d != 0
		}

		if err := writeDigests(w, ui.digest, present); err != nil {
			return err
		}
	}

	_, err := w.Write([]byte{idEnd})

	return err //nolint:wrapcheck
}

func writeFolder(w io.Writer, f *folder) error {
	if err := writeNumber(w, uint64(len(f.coder))); err != nil {
		return err
	}

	for _, c := range f.coder {
		flags := byte(len(c.id)) & 0x0f
		if c.in != 1 || c.out != 1 {
			flags |= 0x10
		}

		if len(c.properties) > 0 {
			flags |= 0x20
		}

		if _, err := w.Write([]byte{flags}); err != nil {
			return fmt.Errorf("heptazip: error writing coder flags: %w", err)
		}

		if _, err := w.Write(c.id); err != nil {
			return fmt.Errorf("heptazip: error writing coder id: %w", err)
		}

		if flags&0x10 != 0 {
			if err := writeNumber(w, c.in); err != nil {
				return err
			}

			if err := writeNumber(w, c.out); err != nil {
				return err
			}
		}

		if flags&0x20 != 0 {
			if err := writeNumber(w, uint64(len(c.properties))); err != nil {
				return err
			}

			if _, err := w.Write(c.properties); err != nil {
				return fmt.Errorf("heptazip: error writing coder properties: %w", err)
			}
		}
	}

	for _, bp := range f.bindPair {
		if err := writeNumber(w, bp.in); err != nil {
			return err
		}

		if err := writeNumber(w, bp.out); err != nil {
			return err
		}
	}

	if f.packedStreams > 1 {
		for _, p := range f.packed {
			if err := writeNumber(w, p); err != nil {
				return err
			}
		}
	}

	return nil
}

func writeSubStreamsInfo(w io.Writer, ssi *subStreamsInfo, ui *unpackInfo) error {
	needCounts := false

	for _, n := range ssi.streams {
		if n != 1 {
			needCounts = true
		}
	}

	if needCounts {
		if _, err := w.Write([]byte{idNumUnpackStream}); err != nil {
			return fmt.Errorf("heptazip: error writing num unpack stream id: %w", err)
		}

		for _, n := range ssi.streams {
			if err := writeNumber(w, n); err != nil {
				return err
			}
		}
	}

	if _, err := w.Write([]byte{idSize}); err != nil {
		return fmt.Errorf("heptazip: error writing substream size id: %w", err)
	}

	idx := 0

	for folderIdx, n := range ssi.streams {
		for i := uint64(0); i+1 < n; i++ {
			if err := writeNumber(w, ssi.size[idx]); err != nil {
				return err
			}

			idx++
		}

		if n > 0 {
			idx++ // last substream's size is implied, skip over it
		}

		_ = folderIdx
	}

	if len(ssi.digest) > 0 {
		present := make([]bool, 0, len(ssi.digest))
		digests := make([]uint32, 0, len(ssi.digest))
		di := 0

		for folderIdx, n := range ssi.streams {
			folderHasCRC := n == 1 && folderIdx < len(ui.digest) && ui.digest[folderIdx] != 0
			for i := uint64(0); i < n; i++ {
				if folderHasCRC {
					di++

					continue
				}

				present = append(present, true)
				digests = append(digests, ssi.digest[di])
				di++
			}
		}

		if len(digests) > 0 {
			if err := writeDigests(w, digests, present); err != nil {
				return err
			}
		}
	}

	_, err := w.Write([]byte{idEnd})

	return err //nolint:wrapcheck
}

//nolint:cyclop,funlen
func writeFilesInfo(w io.Writer, fi *filesInfo) error {
	if err := writeNumber(w, uint64(len(fi.file))); err != nil {
		return err
	}

	emptyStream := make([]bool, len(fi.file))

	var (
		emptyFile []bool
		anti      []bool
	)

	anyEmptyStream := false

	for i, f := range fi.file {
		if f.isEmptyStream {
			emptyStream[i] = true
			emptyFile = append(emptyFile, f.isEmptyFile)
			anti = append(anti, f.isAnti)
			anyEmptyStream = true
		}
	}

	if anyEmptyStream {
		if err := writeFilesInfoRecord(w, idEmptyStream, func(buf *bytes.Buffer) error {
			return writeBoolVector(buf, emptyStream)
		}); err != nil {
			return err
		}

		if err := writeFilesInfoRecord(w, idEmptyFile, func(buf *bytes.Buffer) error {
			return writeBoolVector(buf, emptyFile)
		}); err != nil {
			return err
		}

		if boolVectorAnyTrue(anti) {
			if err := writeFilesInfoRecord(w, idAnti, func(buf *bytes.Buffer) error {
				return writeBoolVector(buf, anti)
			}); err != nil {
				return err
			}
		}
	}

	if err := writeFilesInfoRecord(w, idName, func(buf *bytes.Buffer) error {
		buf.WriteByte(0) // not external

		for _, f := range fi.file {
			for _, u := range encodeUTF16(f.Name) {
				_ = binary.Write(buf, binary.LittleEndian, u)
			}

			_ = binary.Write(buf, binary.LittleEndian, uint16(0))
		}

		return nil
	}); err != nil {
		return err
	}

	if err := writeFilesInfoRecord(w, idWinAttributes, func(buf *bytes.Buffer) error {
		defined := make([]bool, len(fi.file))
		for i := range defined {
			defined[i] = true
		}

		if err := writeOptionalBoolVector(buf, defined); err != nil {
			return err
		}

		buf.WriteByte(0) // not external

		for _, f := range fi.file {
			_ = binary.Write(buf, binary.LittleEndian, f.Attributes)
		}

		return nil
	}); err != nil {
		return err
	}

	if err := writeFilesInfoRecord(w, idMTime, func(buf *bytes.Buffer) error {
		return writeFileTimes(buf, fi.file, func(f *FileHeader) time.Time { return f.Modified })
	}); err != nil {
		return err
	}

	_, err := w.Write([]byte{idEnd})

	return err //nolint:wrapcheck
}

func boolVectorAnyTrue(v []bool) bool {
	for _, b := range v {
		if b {
			return true
		}
	}

	return false
}

func writeFileTimes(buf *bytes.Buffer, files []FileHeader, pick func(*FileHeader) time.Time) error {
	defined := make([]bool, len(files))
	for i := range files {
		defined[i] = !pick(&files[i]).IsZero()
	}

	if err := writeOptionalBoolVector(buf, defined); err != nil {
		return err
	}

	buf.WriteByte(0) // not external

	for i := range files {
		if !defined[i] {
			continue
		}

		if err := binary.Write(buf, binary.LittleEndian, timeToFiletime(pick(&files[i]))); err != nil {
			return fmt.Errorf("heptazip: error writing filetime: %w", err)
		}
	}

	return nil
}

// writeFilesInfoRecord writes id, the record's encoded size, then the
// record body produced by fn, matching the Size-prefixed framing every
// FilesInfo property uses.
func writeFilesInfoRecord(w io.Writer, id byte, fn func(*bytes.Buffer) error) error {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		return err
	}

	if _, err := w.Write([]byte{id}); err != nil {
		return fmt.Errorf("heptazip: error writing files info id: %w", err)
	}

	if err := writeNumber(w, uint64(buf.Len())); err != nil {
		return err
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("heptazip: error writing files info record: %w", err)
	}

	return nil
}
