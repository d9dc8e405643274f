package arithmetic

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/go-codec/lossless/bitio"
	"github.com/go-codec/lossless/errs"
)

// Model selects which symbol model an Encode/Decode call drives the
// interval coder with.
type Model int

const (
	// Static builds a fixed cumulative-frequency table from a first pass
	// over the whole input and carries it in a header the decoder reads
	// back before the first symbol.
	Static Model = iota
	// Adaptive starts from a uniform distribution and updates the table
	// after every symbol, with no header.
	Adaptive
)

// coder is the interval-coder state: the live [lower, upper] bounds, the
// deferred-underflow-bit counter, and the cumulative-frequency table
// either model narrows symbols against.
type coder struct {
	ranges         [numRanges]uint16
	cumulativeProb uint16

	lower, upper  uint16
	underflowBits int

	code uint16 // decoder only

	adaptive bool
}

func maskBit(x uint) uint16 {
	return uint16(1) << (precision - (1 + x))
}

func newAdaptiveCoder() *coder {
	ranges, cumulativeProb := initializeAdaptiveRanges()

	return &coder{
		ranges:         ranges,
		cumulativeProb: cumulativeProb,
		lower:          0,
		upper:          0xFFFF,
		adaptive:       true,
	}
}

func newStaticCoder(data []byte) (*coder, error) {
	ranges, cumulativeProb, err := buildStaticRanges(data)
	if err != nil {
		return nil, err
	}

	return &coder{
		ranges:         ranges,
		cumulativeProb: cumulativeProb,
		lower:          0,
		upper:          0xFFFF,
		adaptive:       false,
	}, nil
}

// applySymbol narrows [lower, upper] to the sub-interval symbol owns. Under
// the adaptive model this also increments the symbol's count, shifts every
// higher symbol's cumulative boundary up by one, and rescales (halving
// every count) once cumulativeProb reaches maxProbability.
func (c *coder) applySymbol(symbol int) {
	rng := uint64(c.upper-c.lower) + 1

	rescaled := uint64(c.ranges[upperBound(symbol)]) * rng / uint64(c.cumulativeProb)
	c.upper = c.lower + uint16(rescaled) - 1

	rescaled = uint64(c.ranges[lowerBound(symbol)]) * rng / uint64(c.cumulativeProb)
	c.lower = c.lower + uint16(rescaled)

	if !c.adaptive {
		return
	}

	c.cumulativeProb++
	for i := upperBound(symbol); i <= upperBound(eofSymbol); i++ {
		c.ranges[i]++
	}

	if c.cumulativeProb >= maxProbability {
		c.rescaleAdaptive()
	}
}

// rescaleAdaptive halves every symbol's count (flooring counts of 1 or 2 to
// a single unit) and rebuilds the cumulative table from the halved counts.
func (c *coder) rescaleAdaptive() {
	c.cumulativeProb = 0

	var original uint16

	for i := 1; i <= upperBound(eofSymbol); i++ {
		delta := c.ranges[i] - original
		original = c.ranges[i]

		if delta <= 2 {
			c.ranges[i] = c.ranges[i-1] + 1
		} else {
			c.ranges[i] = c.ranges[i-1] + delta/2
		}

		c.cumulativeProb += c.ranges[i] - c.ranges[i-1]
	}
}

// writeEncodedBits emits every bit the current [lower, upper] interval has
// already determined (E1), and records a deferred underflow bit without
// emitting anything when the interval straddles the midpoint (E3).
func writeEncodedBits(w *bitio.Writer, c *coder) error {
	for {
		switch {
		case (c.upper & maskBit(0)) == (c.lower & maskBit(0)):
			bit := 0
			if c.upper&maskBit(0) != 0 {
				bit = 1
			}

			if err := w.PutBit(bit); err != nil {
				return err
			}

			complement := 0
			if bit == 0 {
				complement = 1
			}

			for c.underflowBits > 0 {
				if err := w.PutBit(complement); err != nil {
					return err
				}
				c.underflowBits--
			}

		case c.lower&maskBit(1) != 0 && c.upper&maskBit(1) == 0:
			c.underflowBits++
			c.lower &^= maskBit(0) | maskBit(1)
			c.upper |= maskBit(1)

		default:
			return nil
		}

		c.lower <<= 1
		c.upper <<= 1
		c.upper |= 1
	}
}

// writeRemaining flushes the one bit still needed to disambiguate the
// final interval, plus underflowBits+1 copies of its complement.
func writeRemaining(w *bitio.Writer, c *coder) error {
	bit := 0
	if c.lower&maskBit(1) != 0 {
		bit = 1
	}

	if err := w.PutBit(bit); err != nil {
		return err
	}

	complement := 0
	if bit == 0 {
		complement = 1
	}

	c.underflowBits++
	for ; c.underflowBits > 0; c.underflowBits-- {
		if err := w.PutBit(complement); err != nil {
			return err
		}
	}

	return nil
}

// initializeDecoder loads the first precision bits into code. As in
// readEncodedBits, a physical end of input is read as 0 bits: a short
// stream (such as the one encoding only end-of-stream) carries fewer than
// precision bits after its header.
func initializeDecoder(r *bitio.Reader, c *coder) error {
	c.code = 0

	for i := 0; i < precision; i++ {
		bit, err := r.GetBit()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: %v", errs.ErrIO, err)
			}
			bit = 0
		}

		c.code = (c.code << 1) | uint16(bit)
	}

	c.lower = 0
	c.upper = 0xFFFF
	return nil
}

func getUnscaledCode(c *coder) uint16 {
	rng := uint64(c.upper-c.lower) + 1
	unscaled := uint64(c.code-c.lower) + 1
	unscaled = unscaled*uint64(c.cumulativeProb) - 1
	unscaled /= rng
	return uint16(unscaled)
}

// getSymbolFromProbability binary-searches the cumulative table for the
// symbol s with ranges[s] <= probability < ranges[s+1].
func getSymbolFromProbability(probability uint16, c *coder) int {
	first := 0
	last := upperBound(eofSymbol)
	middle := last / 2

	for last >= first {
		if probability < c.ranges[lowerBound(middle)] {
			last = middle - 1
			middle = first + (last-first)/2
			continue
		}

		if probability >= c.ranges[upperBound(middle)] {
			first = middle + 1
			middle = first + (last-first)/2
			continue
		}

		return middle
	}

	return -1
}

// readEncodedBits mirrors writeEncodedBits on the decode side: it shifts
// lower, upper and code together, pulling one fresh bit into code's low
// position per shift, and XORs code's second-top bit whenever an E3
// straddle is corrected. A physical end of input while pulling a trailing
// bit is treated as an implicit 0, matching the originating decoder's
// "BitFileGetBit == EOF -> leave the shifted-in 0 alone" behavior.
func readEncodedBits(r *bitio.Reader, c *coder) error {
	for {
		switch {
		case (c.upper & maskBit(0)) == (c.lower & maskBit(0)):
			// bounds already agree; nothing to correct before shifting.

		case c.lower&maskBit(1) != 0 && c.upper&maskBit(1) == 0:
			c.lower &^= maskBit(0) | maskBit(1)
			c.upper |= maskBit(1)
			c.code ^= maskBit(1)

		default:
			return nil
		}

		c.lower <<= 1
		c.upper = (c.upper << 1) | 1
		c.code <<= 1

		bit, err := r.GetBit()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: %v", errs.ErrIO, err)
			}
			continue
		}

		c.code |= uint16(bit)
	}
}

// Encode compresses src into dst under the given model. The static model
// reads src fully to build its header before encoding a second pass over
// the buffered bytes; the adaptive model streams src in one pass and
// writes no header.
func Encode(src io.Reader, dst io.Writer, model Model) error {
	if src == nil || dst == nil {
		return errs.ErrInvalidArgument
	}

	w, err := bitio.NewWriter(dst)
	if err != nil {
		return err
	}

	if model == Static {
		return encodeStatic(src, w)
	}

	return encodeAdaptive(src, w)
}

func encodeStatic(src io.Reader, w *bitio.Writer) error {
	data, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrIO, err)
	}

	c, err := newStaticCoder(data)
	if err != nil {
		return err
	}

	if err := writeStaticHeader(w, c); err != nil {
		return err
	}

	for _, b := range data {
		c.applySymbol(int(b))
		if err := writeEncodedBits(w, c); err != nil {
			return err
		}
	}

	c.applySymbol(eofSymbol)
	if err := writeEncodedBits(w, c); err != nil {
		return err
	}

	if err := writeRemaining(w, c); err != nil {
		return err
	}

	_, err = w.Detach()
	return err
}

func encodeAdaptive(src io.Reader, w *bitio.Writer) error {
	c := newAdaptiveCoder()
	br := bufio.NewReader(src)

	for {
		b, err := br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("%w: %v", errs.ErrIO, err)
		}

		c.applySymbol(int(b))
		if err := writeEncodedBits(w, c); err != nil {
			return err
		}
	}

	c.applySymbol(eofSymbol)
	if err := writeEncodedBits(w, c); err != nil {
		return err
	}

	if err := writeRemaining(w, c); err != nil {
		return err
	}

	_, err := w.Detach()
	return err
}

// writeStaticHeader emits (symbol, count) records for every byte value
// whose final cumulative boundary differs from the one before it,
// recovering each record's raw count as the difference between successive
// cumulative entries, terminated by a (0, 0) record.
func writeStaticHeader(w *bitio.Writer, c *coder) error {
	var previous uint16

	for v := 0; v < eofSymbol; v++ {
		if c.ranges[upperBound(v)] <= previous {
			continue
		}

		if err := w.PutByte(byte(v)); err != nil {
			return err
		}

		diff := c.ranges[upperBound(v)] - previous
		if err := w.PutBitsNumBE(uint64(diff), headerCountBits, headerCountSize); err != nil {
			return err
		}

		previous = c.ranges[upperBound(v)]
	}

	if err := w.PutByte(0); err != nil {
		return err
	}

	return w.PutBitsNumBE(0, headerCountBits, headerCountSize)
}

// readStaticHeader reads (symbol, count) records until it decodes a (0, 0)
// terminator, then converts the raw per-symbol counts it collected into a
// cumulative table exactly as the encoder's first pass does. Unlike the
// originating ReadHeader, which never assigns its local before checking it
// against zero and so always stops after one record, this checks the
// record it actually decoded.
func readStaticHeader(r *bitio.Reader) (*coder, error) {
	var ranges [numRanges]uint16
	var cumulativeProb uint16

	for {
		sym, err := r.GetByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: header truncated before terminator", errs.ErrFormat)
			}
			return nil, fmt.Errorf("%w: %v", errs.ErrIO, err)
		}

		count, err := r.GetBitsNumBE(headerCountBits, headerCountSize)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: header truncated before terminator", errs.ErrFormat)
			}
			return nil, fmt.Errorf("%w: %v", errs.ErrIO, err)
		}

		if sym == 0 && count == 0 {
			break
		}

		ranges[upperBound(int(sym))] = uint16(count)
		cumulativeProb += uint16(count)
	}

	symbolCountToProbabilityRanges(&ranges, &cumulativeProb)

	return &coder{
		ranges:         ranges,
		cumulativeProb: cumulativeProb,
		lower:          0,
		upper:          0xFFFF,
		adaptive:       false,
	}, nil
}

// Decode is the inverse of Encode. For the static model it reads the
// header first; for the adaptive model it starts from the same uniform
// distribution Encode did. Every decoded symbol other than end-of-stream
// is written to dst; reaching end-of-stream terminates decoding cleanly.
func Decode(src io.Reader, dst io.Writer, model Model) error {
	if src == nil || dst == nil {
		return errs.ErrInvalidArgument
	}

	r, err := bitio.NewReader(src)
	if err != nil {
		return err
	}

	var c *coder

	if model == Static {
		c, err = readStaticHeader(r)
		if err != nil {
			return err
		}
	} else {
		c = newAdaptiveCoder()
	}

	if err := initializeDecoder(r, c); err != nil {
		return err
	}

	for {
		unscaled := getUnscaledCode(c)
		symbol := getSymbolFromProbability(unscaled, c)

		if symbol == -1 {
			return fmt.Errorf("%w: decoded probability out of range", errs.ErrFormat)
		}

		if symbol == eofSymbol {
			return nil
		}

		var buf [1]byte
		buf[0] = byte(symbol)

		if _, err := dst.Write(buf[:]); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrIO, err)
		}

		c.applySymbol(symbol)

		if err := readEncodedBits(r, c); err != nil {
			return err
		}
	}
}
