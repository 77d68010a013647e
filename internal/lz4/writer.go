package lz4

import (
	"errors"
	"fmt"
	"io"

	lz4 "github.com/pierrec/lz4/v4"
)

var errWriterClosed = errors.New("lz4: writer already closed")

type writeCloser struct {
	lw *lz4.Writer
}

// NewWriter returns a new LZ4 io.WriteCloser. 7-Zip's LZ4 method carries no
// properties blob; framing and block checksums live entirely in-stream.
func NewWriter(level int, w io.Writer) (io.WriteCloser, []byte, error) {
	lw := lz4.NewWriter(w)

	if err := lw.Apply(lz4.CompressionLevelOption(lz4.CompressionLevel(level))); err != nil { //nolint:gosec
		return nil, nil, fmt.Errorf("lz4: error configuring writer: %w", err)
	}

	return &writeCloser{lw: lw}, nil, nil
}

func (wc *writeCloser) Write(p []byte) (int, error) {
	if wc.lw == nil {
		return 0, errWriterClosed
	}

	n, err := wc.lw.Write(p)
	if err != nil {
		err = fmt.Errorf("lz4: error writing: %w", err)
	}

	return n, err
}

func (wc *writeCloser) Close() error {
	if wc.lw == nil {
		return errWriterClosed
	}

	err := wc.lw.Close()
	wc.lw = nil

	if err != nil {
		return fmt.Errorf("lz4: error closing: %w", err)
	}

	return nil
}
