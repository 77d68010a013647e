package zstd

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

var errWriterClosed = errors.New("zstd: writer already closed")

type writeCloser struct {
	zw *zstd.Encoder
}

// NewWriter returns a new Zstandard io.WriteCloser. No properties blob is
// recorded; decoding only needs the self-describing zstd frame header.
func NewWriter(level int, w io.Writer) (io.WriteCloser, []byte, error) {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(levelFor(level)))
	if err != nil {
		return nil, nil, fmt.Errorf("zstd: error creating writer: %w", err)
	}

	return &writeCloser{zw: zw}, nil, nil
}

func levelFor(level int) zstd.EncoderLevel {
	switch {
	case level <= 0:
		return zstd.SpeedDefault
	case level <= 2: //nolint:mnd
		return zstd.SpeedFastest
	case level <= 5: //nolint:mnd
		return zstd.SpeedDefault
	case level <= 8: //nolint:mnd
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

func (wc *writeCloser) Write(p []byte) (int, error) {
	if wc.zw == nil {
		return 0, errWriterClosed
	}

	n, err := wc.zw.Write(p)
	if err != nil {
		err = fmt.Errorf("zstd: error writing: %w", err)
	}

	return n, err
}

func (wc *writeCloser) Close() error {
	if wc.zw == nil {
		return errWriterClosed
	}

	err := wc.zw.Close()
	wc.zw = nil

	if err != nil {
		return fmt.Errorf("zstd: error closing: %w", err)
	}

	return nil
}
