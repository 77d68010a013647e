package bcj2

import (
	"encoding/binary"
	"fmt"
	"io"
)

// rangeEncoder is the arithmetic-coder counterpart to readCloser's decode
// loop: same bit models, same probability update, opposite direction.
type rangeEncoder struct {
	w         io.Writer
	low       uint64
	rng       uint32
	cache     byte
	cacheSize uint64
}

func newRangeEncoder(w io.Writer) *rangeEncoder {
	return &rangeEncoder{w: w, rng: 0xffffffff, cacheSize: 1}
}

func (e *rangeEncoder) shiftLow() error {
	if uint32(e.low>>32) != 0 || e.low < 0xff000000 { //nolint:mnd
		temp := e.cache

		for {
			if _, err := e.w.Write([]byte{temp + byte(e.low>>32)}); err != nil { //nolint:gosec
				return fmt.Errorf("bcj2: error writing range byte: %w", err)
			}

			temp = 0xff
			e.cacheSize--

			if e.cacheSize == 0 {
				break
			}
		}

		e.cache = byte(e.low >> 24) //nolint:gosec
	}

	e.cacheSize++
	e.low = (e.low << 8) & 0xffffffff //nolint:mnd

	return nil
}

func (e *rangeEncoder) encodeBit(prob *uint, bit bool) error {
	bound := (e.rng >> numbitModelTotalBits) * uint32(*prob) //nolint:gosec

	if !bit {
		e.rng = bound
		*prob += (bitModelTotal - *prob) >> numMoveBits
	} else {
		e.low += uint64(bound)
		e.rng -= bound
		*prob -= *prob >> numMoveBits
	}

	for e.rng < topValue {
		e.rng <<= 8

		if err := e.shiftLow(); err != nil {
			return err
		}
	}

	return nil
}

func (e *rangeEncoder) flush() error {
	for i := 0; i < 5; i++ { //nolint:mnd
		if err := e.shiftLow(); err != nil {
			return err
		}
	}

	return nil
}

// writeCloser splits x86 call/jump targets out of a single input stream
// into BCJ2's four output streams: main (everything minus the 4-byte
// targets that get pulled out), call, jump, and rd (the range-coded
// decision bits).
type writeCloser struct {
	main, call, jump io.Writer
	rc               *rangeEncoder

	sd [256 + 2]uint

	previous byte
	written  uint32
	buf      []byte
}

// NewWriter returns a new BCJ2 filter that fans one input stream out into
// the four writers the format requires, in main/call/jump/rd order.
func NewWriter(outputs []io.Writer) (io.WriteCloser, error) {
	if len(outputs) != 4 { //nolint:mnd
		return nil, errNeedFourReaders
	}

	wc := &writeCloser{
		main: outputs[0],
		call: outputs[1],
		jump: outputs[2],
		rc:   newRangeEncoder(outputs[3]),
	}

	for i := range wc.sd {
		wc.sd[i] = bitModelTotal >> 1
	}

	return wc, nil
}

func (wc *writeCloser) Write(p []byte) (int, error) {
	wc.buf = append(wc.buf, p...)

	return len(p), nil
}

//nolint:cyclop
func (wc *writeCloser) Close() error {
	b := wc.buf

	for i := 0; i < len(b); i++ {
		cur := b[i]

		if _, err := wc.main.Write([]byte{cur}); err != nil {
			return fmt.Errorf("bcj2: error writing main stream: %w", err)
		}

		wc.written++

		if !isJ(wc.previous, cur) {
			wc.previous = cur

			continue
		}

		isTarget := i+5 <= len(b)

		var dest uint32
		if isTarget {
			dest = binary.LittleEndian.Uint32(b[i+1:]) + wc.written + 4 //nolint:mnd
		}

		if err := wc.rc.encodeBit(&wc.sd[index(wc.previous, cur)], isTarget); err != nil {
			return err
		}

		if isTarget {
			w := wc.jump
			if cur == 0xe8 {
				w = wc.call
			}

			if err := binary.Write(w, binary.BigEndian, dest); err != nil {
				return fmt.Errorf("bcj2: error writing target: %w", err)
			}

			wc.previous = b[i+4]
			wc.written += 4
			i += 4
		} else {
			wc.previous = cur
		}
	}

	return wc.rc.flush() //nolint:wrapcheck
}
