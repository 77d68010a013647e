package lzma

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ulikunitz/xz/lzma"
)

var errWriterClosed = errors.New("lzma: writer already closed")

type writeCloser struct {
	w *lzma.Writer2
}

// NewWriter returns a new raw LZMA io.WriteCloser (no .lzma container
// header in the stream itself) along with the 5-byte properties blob -
// lclppb byte plus little-endian dictionary size - that a folder records
// against the coder so NewReader can reconstruct the same configuration.
// This mirrors the header reader.go builds by hand before handing the
// stream to the classic package-level decoder.
func NewWriter(level int, w io.Writer) (io.WriteCloser, []byte, error) {
	config := lzma.Writer2Config{
		DictCap: dictCapForLevel(level),
	}

	if err := config.Verify(); err != nil {
		return nil, nil, fmt.Errorf("lzma: error verifying config: %w", err)
	}

	lw, err := config.NewWriter2(w)
	if err != nil {
		return nil, nil, fmt.Errorf("lzma: error creating writer: %w", err)
	}

	var props bytes.Buffer

	props.WriteByte(propsByte(config.Properties))
	writeUint32LE(&props, uint32(config.DictCap)) //nolint:gosec

	return &writeCloser{w: lw}, props.Bytes(), nil
}

func propsByte(p lzma.Properties) byte {
	return byte((int(p.PB)*5+int(p.LP))*9 + int(p.LC)) //nolint:mnd
}

func writeUint32LE(buf *bytes.Buffer, v uint32) {
	buf.WriteByte(byte(v))
	buf.WriteByte(byte(v >> 8))
	buf.WriteByte(byte(v >> 16))
	buf.WriteByte(byte(v >> 24))
}

// dictCapForLevel maps a 7z-style 0-9 compression level to an LZMA
// dictionary size, following the same doubling progression 7-Zip's own
// LZMA encoder uses.
func dictCapForLevel(level int) int {
	const base = 1 << 16

	if level <= 0 {
		return base
	}

	if level > 9 { //nolint:mnd
		level = 9
	}

	return base << uint(level) //nolint:gosec
}

func (wc *writeCloser) Write(p []byte) (int, error) {
	if wc.w == nil {
		return 0, errWriterClosed
	}

	n, err := wc.w.Write(p)
	if err != nil {
		err = fmt.Errorf("lzma: error writing: %w", err)
	}

	return n, err
}

func (wc *writeCloser) Close() error {
	if wc.w == nil {
		return errWriterClosed
	}

	err := wc.w.Close()
	wc.w = nil

	if err != nil {
		return fmt.Errorf("lzma: error closing: %w", err)
	}

	return nil
}
