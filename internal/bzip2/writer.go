package bzip2

import (
	"errors"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
)

var errWriterClosed = errors.New("bzip2: writer already closed")

type writeCloser struct {
	bw *bzip2.Writer
}

// NewWriter returns a new bzip2 io.WriteCloser. The standard library only
// ships a bzip2 reader, so encoding goes through dsnet/compress/bzip2
// instead; bzip2 carries no 7z-level properties blob.
func NewWriter(level int, w io.Writer) (io.WriteCloser, []byte, error) {
	if level <= 0 || level > 9 { //nolint:mnd
		level = 9
	}

	bw, err := bzip2.NewWriter(w, &bzip2.WriterConfig{Level: level})
	if err != nil {
		return nil, nil, fmt.Errorf("bzip2: error creating writer: %w", err)
	}

	return &writeCloser{bw: bw}, nil, nil
}

func (wc *writeCloser) Write(p []byte) (int, error) {
	if wc.bw == nil {
		return 0, errWriterClosed
	}

	n, err := wc.bw.Write(p)
	if err != nil {
		err = fmt.Errorf("bzip2: error writing: %w", err)
	}

	return n, err
}

func (wc *writeCloser) Close() error {
	if wc.bw == nil {
		return errWriterClosed
	}

	err := wc.bw.Close()
	wc.bw = nil

	if err != nil {
		return fmt.Errorf("bzip2: error closing: %w", err)
	}

	return nil
}
