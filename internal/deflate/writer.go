package deflate

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

var errWriterClosed = errors.New("deflate: writer already closed")

type writeCloser struct {
	fw *flate.Writer
}

// NewWriter returns a new DEFLATE io.WriteCloser. Deflate carries no
// out-of-band properties, so the returned blob is always empty.
func NewWriter(level int, w io.Writer) (io.WriteCloser, []byte, error) {
	if level <= 0 {
		level = flate.DefaultCompression
	}

	fw, err := flate.NewWriter(w, level)
	if err != nil {
		return nil, nil, fmt.Errorf("deflate: error creating writer: %w", err)
	}

	return &writeCloser{fw: fw}, nil, nil
}

func (wc *writeCloser) Write(p []byte) (int, error) {
	if wc.fw == nil {
		return 0, errWriterClosed
	}

	n, err := wc.fw.Write(p)
	if err != nil {
		err = fmt.Errorf("deflate: error writing: %w", err)
	}

	return n, err
}

func (wc *writeCloser) Close() error {
	if wc.fw == nil {
		return errWriterClosed
	}

	err := wc.fw.Close()
	wc.fw = nil

	if err != nil {
		return fmt.Errorf("deflate: error closing: %w", err)
	}

	return nil
}
