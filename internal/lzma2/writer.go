package lzma2

import (
	"errors"
	"fmt"
	"io"

	"github.com/ulikunitz/xz/lzma"
)

var errWriterClosed = errors.New("lzma2: writer already closed")

type writeCloser struct {
	w *lzma.Writer2
}

// dictBitsForLevel picks the dictionary-size value NewWriter records in
// the single LZMA2 properties byte, using the same formula NewReader
// inverts: (2 | bit0) << (bits/2 + 11).
func dictBitsForLevel(level int) byte {
	if level < 0 {
		level = 0
	}

	if level > 9 { //nolint:mnd
		level = 9
	}

	return byte(level*4 + 4) //nolint:mnd
}

// NewWriter returns a new LZMA2 io.WriteCloser and its single-byte
// properties blob.
func NewWriter(level int, w io.Writer) (io.WriteCloser, []byte, error) {
	p := dictBitsForLevel(level)

	config := lzma.Writer2Config{
		DictCap: (2 | (int(p) & 1)) << (p/2 + 11), //nolint:mnd
	}

	if err := config.Verify(); err != nil {
		return nil, nil, fmt.Errorf("lzma2: error verifying config: %w", err)
	}

	lw, err := config.NewWriter2(w)
	if err != nil {
		return nil, nil, fmt.Errorf("lzma2: error creating writer: %w", err)
	}

	return &writeCloser{w: lw}, []byte{p}, nil
}

func (wc *writeCloser) Write(p []byte) (int, error) {
	if wc.w == nil {
		return 0, errWriterClosed
	}

	n, err := wc.w.Write(p)
	if err != nil {
		err = fmt.Errorf("lzma2: error writing: %w", err)
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
		return fmt.Errorf("lzma2: error closing: %w", err)
	}

	return nil
}
