package bra

import (
	"bytes"
	"fmt"
	"io"
)

// writeCloser buffers its whole input and runs conv.Convert once at Close,
// the mirror of readCloser's streaming approach: since a filter's state
// only matters within a single contiguous run and the writer side always
// sees one folder's data in full before the archive flushes, one pass
// over the complete buffer is equivalent to the streaming version used on
// read.
type writeCloser struct {
	w    io.Writer
	buf  bytes.Buffer
	conv converter
}

func newWriter(conv converter, w io.Writer) io.WriteCloser {
	return &writeCloser{w: w, conv: conv}
}

func (wc *writeCloser) Write(p []byte) (int, error) {
	return wc.buf.Write(p) //nolint:wrapcheck
}

func (wc *writeCloser) Close() error {
	b := wc.buf.Bytes()
	wc.conv.Convert(b, true)

	if _, err := wc.w.Write(b); err != nil {
		return fmt.Errorf("bra: error writing: %w", err)
	}

	return nil
}

// NewBCJWriter returns a new x86 BCJ io.WriteCloser.
func NewBCJWriter(_ int, w io.Writer) (io.WriteCloser, []byte, error) {
	return newWriter(new(bcj), w), nil, nil
}

// NewARMWriter returns a new ARM BCJ io.WriteCloser.
func NewARMWriter(_ int, w io.Writer) (io.WriteCloser, []byte, error) {
	return newWriter(new(arm), w), nil, nil
}

// NewARM64Writer returns a new ARM64 BCJ io.WriteCloser.
func NewARM64Writer(_ int, w io.Writer) (io.WriteCloser, []byte, error) {
	return newWriter(new(arm64), w), nil, nil
}

// NewPPCWriter returns a new PowerPC BCJ io.WriteCloser.
func NewPPCWriter(_ int, w io.Writer) (io.WriteCloser, []byte, error) {
	return newWriter(new(ppc), w), nil, nil
}

// NewSPARCWriter returns a new SPARC BCJ io.WriteCloser.
func NewSPARCWriter(_ int, w io.Writer) (io.WriteCloser, []byte, error) {
	return newWriter(new(sparc), w), nil, nil
}
