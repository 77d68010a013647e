package delta

import (
	"fmt"
	"io"
)

type writeCloser struct {
	w     io.Writer
	state [stateSize]byte
	delta int
}

// NewWriter returns a new Delta io.WriteCloser using the given distance
// (1..256, encoded as distance-1 in the single property byte).
func NewWriter(distance int, w io.Writer) (io.WriteCloser, []byte, error) {
	if distance < 1 || distance > stateSize {
		distance = 1
	}

	return &writeCloser{w: w, delta: distance}, []byte{byte(distance - 1)}, nil
}

func (wc *writeCloser) Write(p []byte) (int, error) {
	out := make([]byte, len(p))

	var (
		buffer [stateSize]byte
		j      int
	)

	copy(buffer[:], wc.state[:wc.delta])

	for i := 0; i < len(p); {
		for j = 0; j < wc.delta && i < len(p); i++ {
			cur := p[i]
			out[i] = cur - buffer[j]
			buffer[j] = cur
			j++
		}
	}

	if j == wc.delta {
		j = 0
	}

	copy(wc.state[:], buffer[j:wc.delta])
	copy(wc.state[wc.delta-j:], buffer[:j])

	n, err := wc.w.Write(out)
	if err != nil {
		err = fmt.Errorf("delta: error writing: %w", err)
	}

	return n, err
}

func (wc *writeCloser) Close() error { return nil }
