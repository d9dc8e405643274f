// Package rle implements two byte-level run-length codecs: a simple
// repeat-marker variant (this file) and a PackBits-style variant
// (packbits.go). Neither has a header; both operate directly on a byte
// source and sink.
package rle

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/go-codec/lossless/errs"
)

// maxAdditionalRun is the largest additional-repetition count a single
// marker byte can carry.
const maxAdditionalRun = 255

// Encode emits every byte of src verbatim to dst. Whenever the two most
// recently emitted literal bytes are equal, the second one is followed by a
// one-byte count of additional repetitions of that value (0..255). Hitting
// that count's maximum forces the next byte to be treated as the start of a
// fresh literal run, so an unmarked continuation can never occur.
func Encode(src io.Reader, dst io.Writer) error {
	if src == nil || dst == nil {
		return errs.ErrInvalidArgument
	}

	br := bufio.NewReader(src)
	var prev byte
	havePrev := false

	for {
		c, err := br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%w: %v", errs.ErrIO, err)
		}

		if err := writeByte(dst, c); err != nil {
			return err
		}

		if havePrev && c == prev {
			extra := 0

			for extra < maxAdditionalRun {
				next, err := br.ReadByte()
				if err != nil {
					if errors.Is(err, io.EOF) {
						break
					}
					return fmt.Errorf("%w: %v", errs.ErrIO, err)
				}

				if next != c {
					if err := br.UnreadByte(); err != nil {
						return fmt.Errorf("%w: %v", errs.ErrIO, err)
					}
					break
				}

				extra++
			}

			if err := writeByte(dst, byte(extra)); err != nil {
				return err
			}

			havePrev = false
			continue
		}

		prev = c
		havePrev = true
	}
}

// Decode mirrors Encode: whenever the two most recently read bytes are
// equal, the byte following them is consumed as an additional-repetition
// count and that many extra copies of the value are emitted. A count field
// truncated by end of input is reported but does not abort decoding of
// whatever else remains.
func Decode(src io.Reader, dst io.Writer) error {
	if src == nil || dst == nil {
		return errs.ErrInvalidArgument
	}

	br := bufio.NewReader(src)
	var prev byte
	havePrev := false
	var warnings []error

	for {
		c, err := br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("%w: %v", errs.ErrIO, err)
		}

		if err := writeByte(dst, c); err != nil {
			return err
		}

		if havePrev && c == prev {
			count, err := br.ReadByte()
			if err != nil {
				warnings = append(warnings, fmt.Errorf("%w: run count truncated by end of input", errs.ErrFormat))
				havePrev = false
				continue
			}

			for i := 0; i < int(count); i++ {
				if err := writeByte(dst, c); err != nil {
					return err
				}
			}

			havePrev = false
			continue
		}

		prev = c
		havePrev = true
	}

	return errors.Join(warnings...)
}

func writeByte(dst io.Writer, c byte) error {
	var buf [1]byte
	buf[0] = c

	if _, err := dst.Write(buf[:]); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIO, err)
	}

	return nil
}
