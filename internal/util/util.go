// Package util holds small stream-plumbing helpers shared by the codec
// packages and the folder/stream assembly code. None of it is specific to
// any one coder; it exists so coders can be written against narrow
// interfaces instead of concrete types.
package util

import (
	"bufio"
	"io"
)

// ReadCloser is the minimal interface the range-coded filters (BCJ2) and the
// flate wrapper need: byte-at-a-time reads plus the ability to release the
// underlying stream.
type ReadCloser interface {
	io.ByteReader
	io.ReadCloser
}

type byteReadCloser struct {
	io.ReadCloser
	br io.ByteReader
}

func (b byteReadCloser) ReadByte() (byte, error) {
	return b.br.ReadByte()
}

// ByteReadCloser adapts an io.ReadCloser to a ReadCloser, wrapping it in a
// bufio.Reader if it doesn't already implement io.ByteReader.
func ByteReadCloser(rc io.ReadCloser) ReadCloser {
	if brc, ok := rc.(ReadCloser); ok {
		return brc
	}

	return byteReadCloser{ReadCloser: rc, br: bufio.NewReader(rc)}
}

type nopCloser struct {
	io.Reader
}

func (nopCloser) Close() error { return nil }

// NopCloser returns an io.ReadCloser with a no-op Close method wrapping r;
// an r that is already an io.ReadCloser is returned unchanged.
// Unlike [io.NopCloser] it preserves io.ByteReader when r implements it, so
// callers that need ByteReadCloser don't pay for a second bufio wrapper.
func NopCloser(r io.Reader) io.ReadCloser {
	if rc, ok := r.(io.ReadCloser); ok {
		return rc
	}

	if br, ok := r.(io.ByteReader); ok {
		return byteReadCloser{ReadCloser: nopCloser{r}, br: br}
	}

	return nopCloser{r}
}

// SizeReadSeekCloser is a seekable, sized, closeable byte stream. Pooled
// folder decoders are stored and retrieved via this interface so the pool
// doesn't need to know about folder internals.
type SizeReadSeekCloser interface {
	io.ReadSeekCloser
	Size() int64
}

// CRC32Equal reports whether the big-endian byte slice produced by a
// hash.Hash32's Sum matches the little-endian uint32 recorded in a 7z
// header field.
func CRC32Equal(sum []byte, crc uint32) bool {
	if len(sum) != 4 {
		return false
	}

	v := uint32(sum[0])<<24 | uint32(sum[1])<<16 | uint32(sum[2])<<8 | uint32(sum[3])

	return v == crc
}
