package heptazip

import (
	"bufio"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	iofs "io/fs"
	"path"
	"time"

	"github.com/bodgit/plumbing"
	"github.com/heptazip/heptazip/internal/util"
)

// signatureHeader is the fixed 32-byte block at the base of every archive:
// magic, version, a CRC of the 20 bytes that follow, and the start header.
type signatureHeader struct {
	Signature [6]byte
	Major     byte
	Minor     byte
	CRC       uint32
}

// startHeader locates and sizes the next-header block and carries its CRC.
type startHeader struct {
	Offset uint64
	Size   uint64
	CRC    uint32
}

// packInfo is the parsed PACK_INFO record: where the packed region begins
// relative to the end of the signature header, the size of each pack
// stream, and optional per-stream CRCs.
type packInfo struct {
	position uint64
	streams  uint64
	size     []uint64
	digest   []uint32
}

// coder is one entry in a folder's coder list: a method ID, its property
// blob, and how many input/output streams it exposes.
type coder struct {
	id         []byte
	in, out    uint64
	properties []byte
}

// bindPair wires one coder's output stream to another coder's input stream
// within a folder.
type bindPair struct {
	in, out uint64
}

// folder is one compression unit: an ordered coder list connected by
// bind-pairs, consuming some number of the archive's pack streams and
// producing exactly one final output stream.
type folder struct {
	in, out       uint64
	packedStreams uint64
	coder         []*coder
	bindPair      []*bindPair
	size          []uint64
	packed        []uint64
}

func (f *folder) findInBindPair(stream uint64) *bindPair {
	for _, bp := range f.bindPair {
		if bp.in == stream {
			return bp
		}
	}

	return nil
}

func (f *folder) findOutBindPair(stream uint64) *bindPair {
	for _, bp := range f.bindPair {
		if bp.out == stream {
			return bp
		}
	}

	return nil
}

// hasMethod reports whether any coder in the folder carries the given
// method ID, used to detect AES and BCJ2 folders without threading a flag
// through the header parser.
func (f *folder) hasMethod(id []byte) bool {
	for _, c := range f.coder {
		if bytesEqual(c.id, id) {
			return true
		}
	}

	return false
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func (f *folder) coderReader(readers []io.ReadCloser, index uint64, password string) (io.ReadCloser, bool, error) {
	dcomp := decompressor(f.coder[index].id)
	if dcomp == nil {
		return nil, false, &UnsupportedMethodError{ID: f.coder[index].id}
	}

	cr, err := dcomp(f.coder[index].properties, f.size[index], readers)
	if err != nil {
		return nil, false, err
	}

	crc, encrypted := cr.(CryptoReadCloser)
	if encrypted {
		if password == "" {
			return nil, true, ErrPasswordRequired
		}

		if err = crc.Password(password); err != nil {
			return nil, true, fmt.Errorf("heptazip: error setting password: %w", err)
		}
	}

	return plumbing.LimitReadCloser(cr, int64(f.size[index])), encrypted, nil //nolint:gosec
}

// CryptoReadCloser adds a Password method to decompressors that decrypt as
// part of decoding.
type CryptoReadCloser interface {
	Password(password string) error
}

// unpackSize returns the folder's final, fully-decoded size: the size
// recorded against whichever coder output isn't consumed by a bind-pair.
func (f *folder) unpackSize() uint64 {
	if len(f.size) == 0 {
		return 0
	}

	for i := len(f.size) - 1; i >= 0; i-- {
		if f.findOutBindPair(uint64(i)) == nil {
			return f.size[i]
		}
	}

	return f.size[len(f.size)-1]
}

type folderReadCloser struct {
	io.ReadCloser
	h             hash.Hash
	wc            *plumbing.WriteCounter
	size          int64
	hasEncryption bool
}

func newFolderReadCloser(rc io.ReadCloser, size int64, hasEncryption bool) *folderReadCloser {
	nrc := new(folderReadCloser)
	nrc.h = crc32.NewIEEE()
	nrc.wc = new(plumbing.WriteCounter)
	nrc.ReadCloser = plumbing.TeeReadCloser(rc, io.MultiWriter(nrc.h, nrc.wc))
	nrc.size = size
	nrc.hasEncryption = hasEncryption

	return nrc
}

func (rc *folderReadCloser) Checksum() []byte {
	return rc.h.Sum(nil)
}

func (rc *folderReadCloser) Size() int64 {
	return rc.size
}

func (rc *folderReadCloser) Seek(offset int64, whence int) (int64, error) {
	var target int64

	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = int64(rc.wc.Count()) + offset //nolint:gosec
	case io.SeekEnd:
		target = rc.Size() + offset
	default:
		return 0, errInvalidWhence
	}

	if target < 0 {
		return 0, errNegativeSeek
	}

	if uint64(target) < rc.wc.Count() {
		return 0, errSeekBackwards
	}

	if target > rc.Size() {
		return 0, errSeekEOF
	}

	if _, err := io.CopyN(io.Discard, rc, target-int64(rc.wc.Count())); err != nil { //nolint:gosec
		return 0, fmt.Errorf("heptazip: error seeking: %w", err)
	}

	return target, nil
}

// unpackInfo is the parsed UNPACK_INFO record: the folder list plus one
// optional CRC per folder.
type unpackInfo struct {
	folder []*folder
	digest []uint32
}

// subStreamsInfo is the parsed SUBSTREAMS_INFO record describing how a
// solid folder's single decoded stream is split into per-entry substreams.
type subStreamsInfo struct {
	streams []uint64
	size    []uint64
	digest  []uint32
}

// streamsInfo combines PackInfo, UnpackInfo and SubStreamsInfo: everything
// needed to locate, decode, and verify a folder's content.
type streamsInfo struct {
	packInfo       *packInfo
	unpackInfo     *unpackInfo
	subStreamsInfo *subStreamsInfo
}

func (si *streamsInfo) Folders() int {
	if si != nil && si.unpackInfo != nil {
		return len(si.unpackInfo.folder)
	}

	return 0
}

// FileFolderAndSize maps the file'th entry with a data stream to its
// folder index, its unpacked size, and its recorded CRC (entry-level if
// SubStreamsInfo carries one, else folder-level for single-stream folders).
func (si *streamsInfo) FileFolderAndSize(file int) (int, uint64, uint32) {
	var (
		folderIdx int
		streams   uint64 = 1
		crc       uint32
	)

	if si.subStreamsInfo != nil {
		total := uint64(0)

		for folderIdx, streams = range si.subStreamsInfo.streams {
			total += streams
			if uint64(file) < total { //nolint:gosec
				break
			}
		}

		if len(si.subStreamsInfo.digest) > 0 {
			crc = si.subStreamsInfo.digest[file]
		}
	}

	if streams == 1 {
		if len(si.unpackInfo.digest) > 0 {
			crc = si.unpackInfo.digest[folderIdx]
		}

		f := si.unpackInfo.folder[folderIdx]

		return folderIdx, f.size[len(f.coder)-1], crc
	}

	return folderIdx, si.subStreamsInfo.size[file], crc
}

func (si *streamsInfo) folderOffset(folderIdx int) int64 {
	offset := uint64(0)

	for i, k := 0, uint64(0); i < folderIdx; i++ {
		for j := k; j < k+si.unpackInfo.folder[i].packedStreams; j++ {
			offset += si.packInfo.size[j]
		}

		k += si.unpackInfo.folder[i].packedStreams
	}

	return int64(si.packInfo.position + offset) //nolint:gosec
}

// FolderReader builds the decoder chain for one folder: a topological walk
// of its bind-pair DAG that feeds each coder its bound inputs (section
// packs, or another coder's output) and returns the one stream nothing
// consumes.
//
//nolint:cyclop,funlen
func (si *streamsInfo) FolderReader(r io.ReaderAt, folderIdx int, password string) (*folderReadCloser, uint32, bool, error) {
	f := si.unpackInfo.folder[folderIdx]
	in := make([]io.ReadCloser, f.in)
	out := make([]io.ReadCloser, f.out)

	packedOffset := 0
	for i := 0; i < folderIdx; i++ {
		packedOffset += len(si.unpackInfo.folder[i].packed)
	}

	offset := int64(0)

	for i, input := range f.packed {
		size := int64(si.packInfo.size[packedOffset+i]) //nolint:gosec
		in[input] = util.NopCloser(bufio.NewReader(io.NewSectionReader(r, si.folderOffset(folderIdx)+offset, size)))
		offset += size
	}

	var (
		hasEncryption bool
		input, output uint64
	)

	for i, c := range f.coder {
		if c.out != 1 {
			return nil, 0, hasEncryption, errMultipleOutputStreams
		}

		for j := input; j < input+c.in; j++ {
			if in[j] != nil {
				continue
			}

			bp := f.findInBindPair(j)
			if bp == nil || out[bp.out] == nil {
				return nil, 0, hasEncryption, errNoBoundStream
			}

			in[j] = out[bp.out]
		}

		var (
			isEncrypted bool
			err         error
		)

		out[output], isEncrypted, err = f.coderReader(in[input:input+c.in], uint64(i), password) //nolint:gosec
		if err != nil {
			return nil, 0, hasEncryption, err
		}

		if isEncrypted {
			hasEncryption = true
		}

		input += c.in
		output += c.out
	}

	unbound := make([]uint64, 0, f.out)

	for i := uint64(0); i < f.out; i++ {
		if bp := f.findOutBindPair(i); bp == nil {
			unbound = append(unbound, i)
		}
	}

	if len(unbound) != 1 || out[unbound[0]] == nil {
		return nil, 0, hasEncryption, errNoUnboundStream
	}

	fr := newFolderReadCloser(out[unbound[0]], int64(f.unpackSize()), hasEncryption) //nolint:gosec

	if si.unpackInfo.digest != nil {
		return fr, si.unpackInfo.digest[folderIdx], hasEncryption, nil
	}

	return fr, 0, hasEncryption, nil
}

// filesInfo is the parsed FILES_INFO record: the ordered file headers as
// they appear in the archive.
type filesInfo struct {
	file []FileHeader
}

// header is the fully parsed next-header: stream layout plus file metadata.
type header struct {
	streamsInfo *streamsInfo
	filesInfo   *filesInfo
}

// FileHeader describes a file within a 7-zip archive.
type FileHeader struct {
	Name             string
	Created          time.Time
	Accessed         time.Time
	Modified         time.Time
	Attributes       uint32
	CRC32            uint32
	UncompressedSize uint64

	// Stream is an opaque identifier representing the compressed stream
	// that contains the file. Any File with the same value can be assumed
	// to be stored within the same stream.
	Stream int

	isEmptyStream bool
	isEmptyFile   bool
	isAnti        bool
}

// Path validates and returns h.Name as an ArchivePath. It's computed on
// demand rather than cached on the header so that a header built
// programmatically (by the Writer/Editor) can carry an unvalidated Name
// until it's actually queued.
func (h *FileHeader) Path() (ArchivePath, error) {
	return NewArchivePath(h.Name)
}

// IsAnti reports whether this is a zero-byte "delete this path" marker used
// by incremental-backup producers.
func (h *FileHeader) IsAnti() bool { return h.isAnti }

// FileInfo returns an [fs.FileInfo] for the FileHeader.
func (h *FileHeader) FileInfo() iofs.FileInfo {
	return headerFileInfo{h}
}

type headerFileInfo struct {
	fh *FileHeader
}

func (fi headerFileInfo) Name() string        { return path.Base(fi.fh.Name) }
func (fi headerFileInfo) Size() int64         { return int64(fi.fh.UncompressedSize) } //nolint:gosec
func (fi headerFileInfo) IsDir() bool         { return fi.Mode().IsDir() }
func (fi headerFileInfo) ModTime() time.Time  { return fi.fh.Modified.UTC() }
func (fi headerFileInfo) Mode() iofs.FileMode { return fi.fh.Mode() }
func (fi headerFileInfo) Type() iofs.FileMode { return fi.fh.Mode().Type() }
func (fi headerFileInfo) Sys() interface{}    { return fi.fh }

func (fi headerFileInfo) Info() (iofs.FileInfo, error) { return fi, nil }

const (
	// Unix constants. The format doesn't document them, but these are the
	// values every interoperating tool agrees on.
	sIFMT   = 0xf000
	sIFSOCK = 0xc000
	sIFLNK  = 0xa000
	sIFREG  = 0x8000
	sIFBLK  = 0x6000
	sIFDIR  = 0x4000
	sIFCHR  = 0x2000
	sIFIFO  = 0x1000
	sISUID  = 0x800
	sISGID  = 0x400
	sISVTX  = 0x200

	msdosDir      = 0x10
	msdosReadOnly = 0x01

	unixExtensionPresent = 0x8000_0000
)

// Mode returns the permission and mode bits for the FileHeader.
func (h *FileHeader) Mode() (mode iofs.FileMode) {
	// Prefer the POSIX attributes if they're present.
	if h.Attributes&unixExtensionPresent != 0 {
		mode = unixModeToFileMode(h.Attributes >> 16)
	} else {
		mode = msdosModeToFileMode(h.Attributes)
	}

	return
}

// IsSymlink reports whether the entry's attributes mark it as a symbolic
// link: either the Unix mode high nibble is S_IFLNK, or (lacking the Unix
// extension) the Windows FILE_ATTRIBUTE_REPARSE_POINT bit is set.
func (h *FileHeader) IsSymlink() bool {
	const fileAttributeReparsePoint = 0x400

	if h.Attributes&unixExtensionPresent != 0 {
		return (h.Attributes>>16)&sIFMT == sIFLNK
	}

	return h.Attributes&fileAttributeReparsePoint != 0
}

func msdosModeToFileMode(m uint32) (mode iofs.FileMode) {
	if m&msdosDir != 0 {
		mode = iofs.ModeDir | 0o777
	} else {
		mode = 0o666
	}

	if m&msdosReadOnly != 0 {
		mode &^= 0o222
	}

	return mode
}

//nolint:cyclop
func unixModeToFileMode(m uint32) iofs.FileMode {
	mode := iofs.FileMode(m & 0o777)

	switch m & sIFMT {
	case sIFBLK:
		mode |= iofs.ModeDevice
	case sIFCHR:
		mode |= iofs.ModeDevice | iofs.ModeCharDevice
	case sIFDIR:
		mode |= iofs.ModeDir
	case sIFIFO:
		mode |= iofs.ModeNamedPipe
	case sIFLNK:
		mode |= iofs.ModeSymlink
	case sIFREG:
		// nothing to do
	case sIFSOCK:
		mode |= iofs.ModeSocket
	}

	if m&sISGID != 0 {
		mode |= iofs.ModeSetgid
	}

	if m&sISUID != 0 {
		mode |= iofs.ModeSetuid
	}

	if m&sISVTX != 0 {
		mode |= iofs.ModeSticky
	}

	return mode
}

// ArchiveInfo is an aggregate view over a parsed archive: totals and
// feature flags that would otherwise require a full walk of the entry list
// to compute.
type ArchiveInfo struct {
	EntryCount            int
	TotalUncompressedSize uint64
	PackedSize            uint64
	IsSolid               bool
	HasEncryptedEntries   bool
	HasEncryptedHeader    bool
	Methods               [][]byte
	FolderCount           int
	Comment               string
}
