package brotli

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

var errWriterClosed = errors.New("brotli: writer already closed")

// writeCloser buffers the whole stream so it can emit the 16-byte frame
// 7-Zip's Brotli method prepends, which records the compressed and
// uncompressed sizes up front - information only known once encoding is
// complete.
type writeCloser struct {
	w      io.Writer
	buf    bytes.Buffer
	bw     *brotli.Writer
	nbytes uint64
}

// NewWriter returns a new Brotli io.WriteCloser.
func NewWriter(level int, w io.Writer) (io.WriteCloser, []byte, error) {
	wc := &writeCloser{w: w}
	wc.bw = brotli.NewWriterLevel(&wc.buf, brotliLevel(level))

	return wc, nil, nil
}

func brotliLevel(level int) int {
	if level <= 0 {
		return brotli.DefaultCompression
	}

	if level > brotli.BestCompression {
		return brotli.BestCompression
	}

	return level
}

func (wc *writeCloser) Write(p []byte) (int, error) {
	if wc.bw == nil {
		return 0, errWriterClosed
	}

	n, err := wc.bw.Write(p)
	wc.nbytes += uint64(n) //nolint:gosec

	if err != nil {
		err = fmt.Errorf("brotli: error writing: %w", err)
	}

	return n, err
}

func (wc *writeCloser) Close() error {
	if wc.bw == nil {
		return errWriterClosed
	}

	if err := wc.bw.Close(); err != nil {
		return fmt.Errorf("brotli: error closing: %w", err)
	}

	hr := headerFrame{
		FrameMagic:       frameMagic,
		FrameSize:        frameSize,
		CompressedSize:   uint32(wc.buf.Len()),               //nolint:gosec
		BrotliMagic:      brotliMagic,
		UncompressedSize: uint16((wc.nbytes + (1 << 16) - 1) >> 16), //nolint:gosec,mnd
	}

	if err := binary.Write(wc.w, binary.LittleEndian, hr); err != nil {
		return fmt.Errorf("brotli: error writing frame: %w", err)
	}

	if _, err := io.Copy(wc.w, &wc.buf); err != nil {
		return fmt.Errorf("brotli: error writing stream: %w", err)
	}

	wc.bw = nil

	return nil
}
