package huffman

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-codec/lossless/bitio"
	"github.com/go-codec/lossless/errs"
)

// countFieldSize is sizeof(count_t) from the originating header format: a
// 4-byte unsigned count per header record.
const countFieldSize = 4

// Encode reads src once to build a per-byte-value frequency table, writes a
// header of (symbol, count) records terminated by (0, 0), then emits every
// input byte's root-to-leaf code followed by the end-of-stream code.
func Encode(src io.Reader, dst io.Writer) error {
	if src == nil || dst == nil {
		return errs.ErrInvalidArgument
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIO, err)
	}

	var counts [256]uint32

	for _, b := range data {
		if counts[b] == math.MaxUint32 {
			return fmt.Errorf("%w: byte value %#x occurs more than %d times", errs.ErrOverflow, b, math.MaxUint32)
		}
		counts[b]++
	}

	root := buildTree(counts)
	table := buildCodeTable(root)

	w, err := bitio.NewWriter(dst)
	if err != nil {
		return err
	}

	if err := writeHeader(w, counts); err != nil {
		return err
	}

	for _, b := range data {
		c := table[b]
		if err := w.PutBits(c.bits[:], c.length); err != nil {
			return err
		}
	}

	eofCode := table[eofSymbol]
	if err := w.PutBits(eofCode.bits[:], eofCode.length); err != nil {
		return err
	}

	_, err = w.Detach()
	return err
}

func writeHeader(w *bitio.Writer, counts [256]uint32) error {
	for v := 0; v < 256; v++ {
		if counts[v] == 0 {
			continue
		}

		if err := w.PutByte(byte(v)); err != nil {
			return err
		}

		if err := w.PutBitsNumBE(uint64(counts[v]), countFieldSize*8, countFieldSize); err != nil {
			return err
		}
	}

	if err := w.PutByte(0); err != nil {
		return err
	}

	return w.PutBitsNumBE(0, countFieldSize*8, countFieldSize)
}

// readHeader reads (symbol, count) records until it decodes a (0, 0)
// terminator. Unlike the originating ReadHeader, which leaves count
// uninitialized and so always stops after the first record regardless of
// its contents, this checks the decoded record.
func readHeader(r *bitio.Reader) ([256]uint32, error) {
	var counts [256]uint32

	for {
		sym, err := r.GetByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return counts, fmt.Errorf("%w: header truncated before terminator", errs.ErrFormat)
			}
			return counts, err
		}

		cnt, err := r.GetBitsNumBE(countFieldSize*8, countFieldSize)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return counts, fmt.Errorf("%w: header truncated before terminator", errs.ErrFormat)
			}
			return counts, err
		}

		if sym == 0 && cnt == 0 {
			return counts, nil
		}

		counts[sym] = uint32(cnt)
	}
}

// Decode is the inverse of Encode: it rebuilds the identical tree from the
// header, then walks it one bit at a time, emitting a byte each time a leaf
// is reached and terminating cleanly on the end-of-stream leaf.
func Decode(src io.Reader, dst io.Writer) error {
	if src == nil || dst == nil {
		return errs.ErrInvalidArgument
	}

	r, err := bitio.NewReader(src)
	if err != nil {
		return err
	}

	counts, err := readHeader(r)
	if err != nil {
		return err
	}

	root := buildTree(counts)

	for {
		cur := root

		for !cur.isLeaf() {
			bit, err := r.GetBit()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return fmt.Errorf("%w: input ended mid-code", errs.ErrIO)
				}
				return err
			}

			if bit == 0 {
				cur = cur.left
			} else {
				cur = cur.right
			}
		}

		if cur.value == eofSymbol {
			return nil
		}

		var buf [1]byte
		buf[0] = byte(cur.value)

		if _, err := dst.Write(buf[:]); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrIO, err)
		}
	}
}
