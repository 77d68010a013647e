package heptazip

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	iofs "io/fs"
	"sort"
	"time"

	"github.com/heptazip/heptazip/internal/bcj2"
	"github.com/heptazip/heptazip/internal/bra"
	"github.com/heptazip/heptazip/internal/delta"
)

// CompressionMethod selects the coder a [Writer] uses for entry data.
type CompressionMethod int

// Supported compression methods. PPMd is recognised by the format and by
// [UnsupportedMethodError] but has no encoder in this build; see register.go.
const (
	Copy CompressionMethod = iota
	LZMA
	LZMA2
	Deflate
	BZip2
	PPMd
	LZ4
	Zstd
	Brotli
)

func (m CompressionMethod) id() []byte {
	switch m {
	case Copy:
		return MethodCopy
	case LZMA:
		return MethodLZMA
	case LZMA2:
		return MethodLZMA2
	case Deflate:
		return MethodDeflate
	case BZip2:
		return MethodBZip2
	case LZ4:
		return MethodLZ4
	case Zstd:
		return MethodZstd
	case Brotli:
		return MethodBrotli
	case PPMd:
		return MethodPPMd
	default:
		return MethodCopy
	}
}

// Filter selects a pre-compression byte transform, applied before the
// chosen [CompressionMethod].
type Filter int

// Supported filters.
const (
	FilterNone Filter = iota
	FilterBCJX86
	FilterBCJARM
	FilterBCJARM64
	FilterBCJPPC
	FilterBCJSPARC
	FilterDelta
	FilterBCJ2
)

// SolidMode chooses whether entries share a single compressed block.
type SolidMode int

// Solid modes.
const (
	SolidOff SolidMode = iota
	SolidOn
)

// NoncePolicy controls how a Writer generates the salt/IV for encrypted
// folders.
type NoncePolicy int

// Nonce policies. NonceRandom is the only one implemented; it's the
// default and the only choice [newAESEncrypter] (crypto.go) supports in
// this build.
const (
	NonceRandom NoncePolicy = iota
)

// WriteOptions configures a [NewWriter] call. The zero value is Copy
// method, no filter, solid off, no password. The Writer does not validate
// entry names.
type WriteOptions struct {
	Method        CompressionMethod
	Level         int
	Filter        Filter
	DeltaDistance int

	Solid              SolidMode
	SolidBlockSize     uint64
	SolidFilesPerBlock int

	Password      string
	EncryptData   bool
	EncryptHeader bool

	// Deterministic sorts entries by path and zeros non-essential
	// timestamps so two runs over the same input produce byte-identical
	// archives.
	Deterministic bool

	NoncePolicy NoncePolicy

	AESCycles int
}

type writerState int

const (
	writerAcceptingEntries writerState = iota
	writerBuilding
	writerFinished
)

var (
	errWriterState      = errors.New("heptazip: write operation not permitted in current state")
	errWriterNeedSeeker = errors.New("heptazip: writer requires an io.WriteSeeker")
)

type pendingEntry struct {
	header FileHeader
	data   []byte
}

// Writer builds a 7z archive, following the placeholder-then-backfill
// discipline the format requires: [NewWriter] reserves 32 zero bytes for
// the signature header, every AddXxx call appends, and [Writer.Close]
// writes the real header and then seeks back to fill in the signature.
type Writer struct {
	w    io.WriteSeeker
	opts WriteOptions
	pw   *password
	state writerState

	pos int64

	files   []FileHeader
	folders []*folder
	packSizes []uint64

	solid   []pendingEntry
}

// NewWriter returns a Writer ready to accept entries. w must support
// Seek so Close can backfill the signature header.
func NewWriter(w io.WriteSeeker, opts WriteOptions) (*Writer, error) {
	if _, err := w.Seek(0, io.SeekStart); err != nil {
		return nil, errWriterNeedSeeker
	}

	if _, err := w.Write(make([]byte, 32)); err != nil { //nolint:mnd
		return nil, fmt.Errorf("heptazip: error writing placeholder: %w", err)
	}

	zw := &Writer{w: w, opts: opts, pos: 32}

	if opts.Password != "" {
		zw.pw = newPassword(opts.Password)
	}

	return zw, nil
}

func unixAttributes(mode uint32) uint32 {
	return unixExtensionPresent | (mode << 16)
}

// AddDir adds an empty-stream directory entry.
func (zw *Writer) AddDir(name string, modified time.Time) error {
	if zw.state != writerAcceptingEntries {
		return errWriterState
	}

	zw.files = append(zw.files, FileHeader{
		Name:          name,
		Modified:      modified,
		Attributes:    unixAttributes(sIFDIR | 0o755), //nolint:mnd
		isEmptyStream: true,
	})

	return nil
}

// AddSymlink adds a symlink entry whose content is its UTF-8 target.
func (zw *Writer) AddSymlink(name, target string, modified time.Time) error {
	if zw.state != writerAcceptingEntries {
		return errWriterState
	}

	return zw.enqueue(FileHeader{
		Name:       name,
		Modified:   modified,
		Attributes: unixAttributes(sIFLNK | 0o777), //nolint:mnd
	}, []byte(target))
}

// AddFile reads r fully and adds it as a regular file entry. Empty files
// are recorded as empty-stream/empty-file entries with no folder.
func (zw *Writer) AddFile(name string, mode iofs.FileMode, modified time.Time, r io.Reader) error {
	if zw.state != writerAcceptingEntries {
		return errWriterState
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("heptazip: error reading source: %w", err)
	}

	perm := uint32(mode.Perm()) //nolint:gosec

	fh := FileHeader{
		Name:       name,
		Modified:   modified,
		Attributes: unixAttributes(sIFREG | perm),
	}

	if len(data) == 0 {
		fh.isEmptyStream = true
		fh.isEmptyFile = true
		zw.files = append(zw.files, fh)

		return nil
	}

	return zw.enqueue(fh, data)
}

func (zw *Writer) enqueue(fh FileHeader, data []byte) error {
	fh.UncompressedSize = uint64(len(data)) //nolint:gosec
	fh.CRC32 = crc32.ChecksumIEEE(data)

	if zw.opts.Solid == SolidOff {
		if err := zw.writeNonSolidFolder(fh, data); err != nil {
			return err
		}

		return nil
	}

	zw.solid = append(zw.solid, pendingEntry{header: fh, data: data})

	if zw.shouldFlushSolid() {
		return zw.flushSolid()
	}

	return nil
}

func (zw *Writer) shouldFlushSolid() bool {
	if zw.opts.SolidFilesPerBlock > 0 && len(zw.solid) >= zw.opts.SolidFilesPerBlock {
		return true
	}

	if zw.opts.SolidBlockSize > 0 {
		var total uint64
		for _, p := range zw.solid {
			total += uint64(len(p.data))
		}

		if total >= zw.opts.SolidBlockSize {
			return true
		}
	}

	return false
}

// writeNonSolidFolder streams one entry straight through filter/compress/
// encrypt into the sink, appending exactly one folder with one pack
// stream (or four, for BCJ2).
func (zw *Writer) writeNonSolidFolder(fh FileHeader, data []byte) error {
	f, packed, err := zw.buildFolder([][]byte{data})
	if err != nil {
		return err
	}

	fh.Stream = len(zw.folders)
	zw.files = append(zw.files, fh)
	zw.folders = append(zw.folders, f)

	for _, p := range packed {
		zw.packSizes = append(zw.packSizes, uint64(len(p))) //nolint:gosec

		if _, err := zw.w.Write(p); err != nil {
			return fmt.Errorf("heptazip: error writing pack stream: %w", err)
		}

		zw.pos += int64(len(p))
	}

	return nil
}

// flushSolid compresses every buffered entry's data, concatenated, as one
// folder, recording per-substream sizes/CRCs unless exactly one entry is
// buffered.
func (zw *Writer) flushSolid() error {
	if len(zw.solid) == 0 {
		return nil
	}

	entries := zw.solid
	zw.solid = nil

	datas := make([][]byte, len(entries))
	for i, e := range entries {
		datas[i] = e.data
	}

	f, packed, err := zw.buildFolder([]([]byte){concat(datas)})
	if err != nil {
		return err
	}

	folderIdx := len(zw.folders)
	zw.folders = append(zw.folders, f)

	for _, p := range packed {
		zw.packSizes = append(zw.packSizes, uint64(len(p))) //nolint:gosec

		if _, err := zw.w.Write(p); err != nil {
			return fmt.Errorf("heptazip: error writing pack stream: %w", err)
		}

		zw.pos += int64(len(p))
	}

	if len(entries) == 1 {
		fh := entries[0].header
		fh.Stream = folderIdx
		zw.files = append(zw.files, fh)

		return nil
	}

	for _, e := range entries {
		fh := e.header
		fh.Stream = folderIdx
		zw.files = append(zw.files, fh)
	}

	return nil
}

func concat(datas [][]byte) []byte {
	var total int
	for _, d := range datas {
		total += len(d)
	}

	out := make([]byte, 0, total)
	for _, d := range datas {
		out = append(out, d...)
	}

	return out
}

// buildFolder runs one or more raw byte streams (only ever one, except
// BCJ2's split) through the configured filter, compressor, and optional
// encryption, returning the folder record plus the pack bytes to append.
//
//nolint:cyclop,funlen
func (zw *Writer) buildFolder(streams [][]byte) (*folder, [][]byte, error) {
	if zw.opts.Filter == FilterBCJ2 {
		return zw.buildBCJ2Folder(streams[0])
	}

	raw := streams[0]

	filtered, filterCoder, err := zw.applyFilter(raw)
	if err != nil {
		return nil, nil, err
	}

	var buf bytes.Buffer

	comp := compressor(zw.opts.Method.id())
	if comp == nil {
		return nil, nil, &UnsupportedMethodError{ID: zw.opts.Method.id()}
	}

	cw, props, err := comp(zw.opts.Level, &buf)
	if err != nil {
		return nil, nil, fmt.Errorf("heptazip: error building compressor: %w", err)
	}

	if _, err := cw.Write(filtered); err != nil {
		return nil, nil, fmt.Errorf("heptazip: error compressing: %w", err)
	}

	if err := cw.Close(); err != nil {
		return nil, nil, fmt.Errorf("heptazip: error finishing compression: %w", err)
	}

	compressedSize := uint64(buf.Len()) //nolint:gosec

	compressorCoder := &coder{id: zw.opts.Method.id(), in: 1, out: 1, properties: props}

	if zw.opts.EncryptData && zw.pw != nil {
		enc, cryptoProps, err := newAESEncrypter(zw.pw, zw.opts.AESCycles)
		if err != nil {
			return nil, nil, err
		}

		encrypted := padAndEncrypt(enc, buf.Bytes())

		aesCoder := &coder{id: MethodAES256, in: 1, out: 1, properties: cryptoProps}

		f := &folder{in: 2, out: 2, packedStreams: 1, packed: []uint64{0}}

		if filterCoder != nil {
			f.coder = []*coder{aesCoder, compressorCoder, filterCoder}
			f.in, f.out = 3, 3
			// coder sizes are each coder's *decoded* output size: AES
			// yields the compressed envelope, the compressor and the
			// filter both yield the (byte-preserving) plaintext length.
			f.size = []uint64{compressedSize, uint64(len(raw)), uint64(len(raw))} //nolint:gosec
			f.bindPair = []*bindPair{{in: 1, out: 0}, {in: 2, out: 1}}
		} else {
			f.coder = []*coder{aesCoder, compressorCoder}
			f.size = []uint64{compressedSize, uint64(len(raw))} //nolint:gosec
			f.bindPair = []*bindPair{{in: 1, out: 0}}
		}

		return f, [][]byte{encrypted}, nil
	}

	f := &folder{packedStreams: 1, packed: []uint64{0}}

	if filterCoder != nil {
		f.coder = []*coder{compressorCoder, filterCoder}
		f.in, f.out = 2, 2
		// Both coders' decoded output is the same length: the filter is
		// byte-preserving, so its plaintext and the compressor's
		// (filtered) output share len(raw).
		f.size = []uint64{uint64(len(raw)), uint64(len(raw))} //nolint:gosec
		f.bindPair = []*bindPair{{in: 1, out: 0}}
	} else {
		f.coder = []*coder{compressorCoder}
		f.in, f.out = 1, 1
		f.size = []uint64{uint64(len(raw))} //nolint:gosec
	}

	return f, [][]byte{buf.Bytes()}, nil
}

// applyFilter returns the filtered bytes plus the filter's coder record,
// or (raw, nil, nil) when no filter is configured.
func (zw *Writer) applyFilter(raw []byte) ([]byte, *coder, error) {
	var (
		wc    io.WriteCloser
		props []byte
	)

	var buf bytes.Buffer

	switch zw.opts.Filter {
	case FilterNone:
		return raw, nil, nil
	case FilterDelta:
		var err error

		wc, props, err = delta.NewWriter(zw.opts.DeltaDistance, &buf)
		if err != nil {
			return nil, nil, fmt.Errorf("heptazip: error building delta filter: %w", err)
		}
	case FilterBCJX86:
		wc, _, _ = bra.NewBCJWriter(0, &buf)
	case FilterBCJARM:
		wc, _, _ = bra.NewARMWriter(0, &buf)
	case FilterBCJARM64:
		wc, _, _ = bra.NewARM64Writer(0, &buf)
	case FilterBCJPPC:
		wc, _, _ = bra.NewPPCWriter(0, &buf)
	case FilterBCJSPARC:
		wc, _, _ = bra.NewSPARCWriter(0, &buf)
	case FilterBCJ2:
		return raw, nil, nil // handled by buildBCJ2Folder
	default:
		return raw, nil, nil
	}

	if _, err := wc.Write(raw); err != nil {
		return nil, nil, fmt.Errorf("heptazip: error applying filter: %w", err)
	}

	if err := wc.Close(); err != nil {
		return nil, nil, fmt.Errorf("heptazip: error finishing filter: %w", err)
	}

	return buf.Bytes(), &coder{id: zw.filterMethodID(), in: 1, out: 1, properties: props}, nil
}

func (zw *Writer) filterMethodID() []byte {
	switch zw.opts.Filter {
	case FilterDelta:
		return MethodDelta
	case FilterBCJX86:
		return MethodBCJX86
	case FilterBCJARM:
		return MethodBCJARM
	case FilterBCJARM64:
		return MethodBCJARM64
	case FilterBCJPPC:
		return MethodBCJPPC
	case FilterBCJSPARC:
		return MethodBCJSPARC
	default:
		return MethodCopy
	}
}

// buildBCJ2Folder splits raw into BCJ2's four streams, compresses
// main/call/jump with the configured method, and leaves the range-coded
// stream uncompressed, matching the topology FolderReader expects for a
// BCJ2 folder.
func (zw *Writer) buildBCJ2Folder(raw []byte) (*folder, [][]byte, error) {
	var main, call, jump, rd bytes.Buffer

	bw, err := bcj2.NewWriter([]io.Writer{&main, &call, &jump, &rd})
	if err != nil {
		return nil, nil, fmt.Errorf("heptazip: error building bcj2 filter: %w", err)
	}

	if _, err := bw.Write(raw); err != nil {
		return nil, nil, fmt.Errorf("heptazip: error running bcj2 filter: %w", err)
	}

	if err := bw.Close(); err != nil {
		return nil, nil, fmt.Errorf("heptazip: error finishing bcj2 filter: %w", err)
	}

	comp := compressor(zw.opts.Method.id())
	if comp == nil {
		return nil, nil, &UnsupportedMethodError{ID: zw.opts.Method.id()}
	}

	compressOne := func(b []byte) ([]byte, []byte, error) {
		var out bytes.Buffer

		cw, props, err := comp(zw.opts.Level, &out)
		if err != nil {
			return nil, nil, fmt.Errorf("heptazip: error building compressor: %w", err)
		}

		if _, err := cw.Write(b); err != nil {
			return nil, nil, fmt.Errorf("heptazip: error compressing: %w", err)
		}

		if err := cw.Close(); err != nil {
			return nil, nil, fmt.Errorf("heptazip: error finishing compression: %w", err)
		}

		return out.Bytes(), props, nil
	}

	mainC, mainProps, err := compressOne(main.Bytes())
	if err != nil {
		return nil, nil, err
	}

	callC, callProps, err := compressOne(call.Bytes())
	if err != nil {
		return nil, nil, err
	}

	jumpC, jumpProps, err := compressOne(jump.Bytes())
	if err != nil {
		return nil, nil, err
	}

	f := &folder{
		in:            8, //nolint:mnd
		out:           5, //nolint:mnd
		packedStreams: 4, //nolint:mnd
		packed:        []uint64{0, 1, 2, 3},
		coder: []*coder{
			{id: zw.opts.Method.id(), in: 1, out: 1, properties: mainProps},
			{id: zw.opts.Method.id(), in: 1, out: 1, properties: callProps},
			{id: zw.opts.Method.id(), in: 1, out: 1, properties: jumpProps},
			{id: MethodCopy, in: 1, out: 1},
			{id: MethodBCJ2, in: 4, out: 1},
		},
		bindPair: []*bindPair{
			{in: 4, out: 0},
			{in: 5, out: 1},
			{in: 6, out: 2},
			{in: 7, out: 3},
		},
		// Per-coder sizes are decoded-output lengths: each compressor's
		// output is its pre-compression (BCJ2-split) stream, Copy passes
		// the range-coded stream through unchanged, and BCJ2 itself
		// outputs the original, unsplit data.
		size: []uint64{
			uint64(main.Len()), //nolint:gosec
			uint64(call.Len()), //nolint:gosec
			uint64(jump.Len()), //nolint:gosec
			uint64(rd.Len()),   //nolint:gosec
			uint64(len(raw)),   //nolint:gosec
		},
	}

	return f, [][]byte{mainC, callC, jumpC, rd.Bytes()}, nil
}

// padAndEncrypt pads plaintext to a 16-byte boundary with zeros (7-Zip's
// convention; the decoder trims using the recorded unpacked size) and
// runs it through a CBC encrypter.
func padAndEncrypt(enc interface {
	CryptBlocks(dst, src []byte)
}, plaintext []byte,
) []byte {
	const blockSize = 16

	padded := plaintext
	if rem := len(plaintext) % blockSize; rem != 0 {
		padded = make([]byte, len(plaintext)+(blockSize-rem))
		copy(padded, plaintext)
	}

	out := make([]byte, len(padded))
	enc.CryptBlocks(out, padded)

	return out
}

// Close finalizes the archive: flushes any buffered solid block, writes
// the header (encrypted, if configured), and backfills the signature
// header at offset 0.
//
//nolint:cyclop,funlen
func (zw *Writer) Close() error {
	if zw.state == writerFinished {
		return errWriterState
	}

	zw.state = writerBuilding

	if zw.pw != nil {
		defer zw.pw.zero()
	}

	if err := zw.flushSolid(); err != nil {
		return err
	}

	if zw.opts.Deterministic {
		sort.Slice(zw.files, func(i, j int) bool { return zw.files[i].Name < zw.files[j].Name })

		for i := range zw.files {
			zw.files[i].Accessed = time.Time{}
			zw.files[i].Created = time.Time{}
		}
	}

	h := zw.buildHeader()

	headerOffset := zw.pos

	var headerBuf bytes.Buffer
	if err := writeHeader(&headerBuf, h); err != nil {
		return err
	}

	var (
		headerID    = byte(idHeader)
		headerBytes = headerBuf.Bytes()
	)

	if zw.opts.EncryptHeader && zw.pw != nil {
		encoded, err := zw.encodeHeaderFolder(headerBytes)
		if err != nil {
			return err
		}

		headerID = idEncodedHeader
		headerBytes = encoded
	}

	if _, err := zw.w.Write([]byte{headerID}); err != nil {
		return fmt.Errorf("heptazip: error writing header id: %w", err)
	}

	if _, err := zw.w.Write(headerBytes); err != nil {
		return fmt.Errorf("heptazip: error writing header: %w", err)
	}

	headerSize := uint64(len(headerBytes)) + 1 //nolint:gosec

	headerCRC := crc32.ChecksumIEEE(append([]byte{headerID}, headerBytes...))

	start := startHeader{
		Offset: uint64(headerOffset - 32), //nolint:gosec,mnd
		Size:   headerSize,
		CRC:    headerCRC,
	}

	var startBuf bytes.Buffer
	_ = binary.Write(&startBuf, binary.LittleEndian, start)

	sig := signatureHeader{
		Signature: [6]byte{'7', 'z', 0xbc, 0xaf, 0x27, 0x1c},
		Major:     0,
		Minor:     4, //nolint:mnd
		CRC:       crc32.ChecksumIEEE(startBuf.Bytes()),
	}

	if _, err := zw.w.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("heptazip: error seeking to start: %w", err)
	}

	if err := binary.Write(zw.w, binary.LittleEndian, sig); err != nil {
		return fmt.Errorf("heptazip: error writing signature header: %w", err)
	}

	if err := binary.Write(zw.w, binary.LittleEndian, start); err != nil {
		return fmt.Errorf("heptazip: error writing start header: %w", err)
	}

	zw.state = writerFinished

	return nil
}

// encodeHeaderFolder compresses plain with LZMA2 then AES-256, appends
// the resulting pack stream, and returns the bytes of the ENCODED_HEADER
// record (a one-folder StreamsInfo) that points at it.
func (zw *Writer) encodeHeaderFolder(plain []byte) ([]byte, error) {
	var comp bytes.Buffer

	cw, props, err := compressor(MethodLZMA2)(9, &comp) //nolint:mnd
	if err != nil {
		return nil, fmt.Errorf("heptazip: error building header compressor: %w", err)
	}

	if _, err := cw.Write(plain); err != nil {
		return nil, fmt.Errorf("heptazip: error compressing header: %w", err)
	}

	if err := cw.Close(); err != nil {
		return nil, fmt.Errorf("heptazip: error finishing header compression: %w", err)
	}

	enc, cryptoProps, err := newAESEncrypter(zw.pw, zw.opts.AESCycles)
	if err != nil {
		return nil, err
	}

	encrypted := padAndEncrypt(enc, comp.Bytes())

	if _, err := zw.w.Write(encrypted); err != nil {
		return nil, fmt.Errorf("heptazip: error writing header pack stream: %w", err)
	}

	packOffset := zw.pos - 32 //nolint:mnd
	zw.pos += int64(len(encrypted))

	f := &folder{
		in: 2, out: 2, packedStreams: 1, packed: []uint64{0},
		coder: []*coder{
			{id: MethodAES256, in: 1, out: 1, properties: cryptoProps},
			{id: MethodLZMA2, in: 1, out: 1, properties: props},
		},
		bindPair: []*bindPair{{in: 1, out: 0}},
		size:     []uint64{uint64(len(comp.Bytes())), uint64(len(plain))}, //nolint:gosec
	}

	si := &streamsInfo{
		packInfo: &packInfo{
			position: uint64(packOffset), //nolint:gosec
			streams:  1,
			size:     []uint64{uint64(len(encrypted))}, //nolint:gosec
		},
		unpackInfo: &unpackInfo{folder: []*folder{f}},
	}

	var buf bytes.Buffer
	if err := writeStreamsInfo(&buf, si); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (zw *Writer) buildHeader() *header {
	packInfo := &packInfo{
		position: 0,
		streams:  uint64(len(zw.packSizes)), //nolint:gosec
		size:     zw.packSizes,
	}

	digest := make([]uint32, 0, len(zw.folders))
	streamCount := make([]uint64, 0, len(zw.folders))
	subSizes := make([]uint64, 0)
	subDigest := make([]uint32, 0)

	entriesByFolder := make(map[int][]FileHeader)
	for _, fh := range zw.files {
		if fh.isEmptyStream {
			continue
		}

		entriesByFolder[fh.Stream] = append(entriesByFolder[fh.Stream], fh)
	}

	for i := range zw.folders {
		entries := entriesByFolder[i]

		if len(entries) == 1 {
			digest = append(digest, entries[0].CRC32)
			streamCount = append(streamCount, 1)

			continue
		}

		digest = append(digest, 0)
		streamCount = append(streamCount, uint64(len(entries))) //nolint:gosec

		for _, e := range entries {
			subSizes = append(subSizes, e.UncompressedSize)
			subDigest = append(subDigest, e.CRC32)
		}
	}

	si := &streamsInfo{
		packInfo:   packInfo,
		unpackInfo: &unpackInfo{folder: zw.folders, digest: digest},
	}

	if len(subSizes) > 0 {
		si.subStreamsInfo = &subStreamsInfo{streams: streamCount, size: trimLastPerFolder(streamCount, subSizes), digest: subDigest}
	}

	return &header{streamsInfo: si, filesInfo: &filesInfo{file: zw.files}}
}

// trimLastPerFolder drops each folder's final (implied) substream size,
// matching writeSubStreamsInfo's own omission of it on the wire.
func trimLastPerFolder(streams []uint64, sizes []uint64) []uint64 {
	out := make([]uint64, 0, len(sizes))
	idx := 0

	for _, n := range streams {
		for i := uint64(0); i+1 < n; i++ {
			out = append(out, sizes[idx])
			idx++
		}

		if n > 1 {
			idx++
		}
	}

	return out
}
