package rle

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/go-codec/lossless/errs"
)

// PackBits parameters, named as in the TIFF/Apple PackBits convention this
// variant follows.
const (
	MinRun  = 3               // shortest run ever encoded
	MaxRun  = 130             // longest run a single block can encode
	MaxCopy = 128             // largest literal (copy) block
	maxRead = MaxCopy + MinRun - 1
)

// EncodePackBits transforms src into a sequence of count-prefixed blocks.
// A count byte in [0,127] introduces a copy block of count+1 raw bytes. A
// count byte in [-1,-128] introduces a run block: the single byte that
// follows it is repeated MinRun-1-count times.
func EncodePackBits(src io.Reader, dst io.Writer) error {
	if src == nil || dst == nil {
		return errs.ErrInvalidArgument
	}

	br := bufio.NewReader(src)
	buf := make([]byte, 0, maxRead)

	for {
		c, err := br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("%w: %v", errs.ErrIO, err)
		}

		buf = append(buf, c)

		if len(buf) >= MinRun && isRunTail(buf, c) {
			if len(buf) > MinRun {
				if err := writeCopyBlock(dst, buf[:len(buf)-MinRun]); err != nil {
					return err
				}
			}

			runLen := MinRun
			var breaker byte
			haveBreaker := false

			for runLen < MaxRun {
				next, err := br.ReadByte()
				if err != nil {
					if errors.Is(err, io.EOF) {
						break
					}
					return fmt.Errorf("%w: %v", errs.ErrIO, err)
				}

				if next != c {
					breaker = next
					haveBreaker = true
					break
				}

				runLen++
			}

			if err := writeRunBlock(dst, c, runLen); err != nil {
				return err
			}

			buf = buf[:0]

			if haveBreaker && runLen != MaxRun {
				buf = append(buf, breaker)
			}

			continue
		}

		if len(buf) == maxRead {
			if err := writeCopyBlock(dst, buf[:MaxCopy]); err != nil {
				return err
			}

			tail := append([]byte(nil), buf[MaxCopy:]...)
			buf = buf[:0]
			buf = append(buf, tail...)
		}
	}

	if len(buf) == 0 {
		return nil
	}

	if len(buf) <= MaxCopy {
		return writeCopyBlock(dst, buf)
	}

	if err := writeCopyBlock(dst, buf[:MaxCopy]); err != nil {
		return err
	}

	return writeCopyBlock(dst, buf[MaxCopy:])
}

// isRunTail reports whether the last MinRun bytes appended to buf
// (including c, just appended) are all equal to c.
func isRunTail(buf []byte, c byte) bool {
	n := len(buf)

	for i := 2; i <= MinRun; i++ {
		if buf[n-i] != c {
			return false
		}
	}

	return true
}

func writeRunBlock(dst io.Writer, c byte, runLen int) error {
	val := (MinRun - 1) - runLen

	if err := writeByte(dst, byte(val)); err != nil {
		return err
	}

	return writeByte(dst, c)
}

func writeCopyBlock(dst io.Writer, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	if err := writeByte(dst, byte(len(data)-1)); err != nil {
		return err
	}

	if _, err := dst.Write(data); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIO, err)
	}

	return nil
}

// DecodePackBits is the inverse of EncodePackBits. A block truncated by end
// of input is reported but does not abort decoding of whatever else
// remains in the stream.
func DecodePackBits(src io.Reader, dst io.Writer) error {
	if src == nil || dst == nil {
		return errs.ErrInvalidArgument
	}

	br := bufio.NewReader(src)
	var warnings []error

	for {
		cb, err := br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("%w: %v", errs.ErrIO, err)
		}

		count := int8(cb)

		if count < 0 {
			runLen := (MinRun - 1) - int(count)

			c, err := br.ReadByte()
			if err != nil {
				warnings = append(warnings, fmt.Errorf("%w: run block is too short", errs.ErrFormat))
				continue
			}

			for i := 0; i < runLen; i++ {
				if err := writeByte(dst, c); err != nil {
					return err
				}
			}

			continue
		}

		n := int(count) + 1

		for i := 0; i < n; i++ {
			c, err := br.ReadByte()
			if err != nil {
				warnings = append(warnings, fmt.Errorf("%w: copy block is too short", errs.ErrFormat))
				break
			}

			if err := writeByte(dst, c); err != nil {
				return err
			}
		}
	}

	return errors.Join(warnings...)
}
