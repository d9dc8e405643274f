// Package arithmetic implements a finite-precision interval coder driven
// by either a static, header-carried order-0 symbol model or an online
// adaptive model, both over a 257-symbol alphabet (the 256 byte values plus
// a synthetic end-of-stream symbol). Both models share the E1/E3 rescaling
// and underflow-bit accumulation in arithmetic.go; this file builds the
// cumulative-frequency tables each model runs on.
package arithmetic

import (
	"fmt"
	"math"

	"github.com/go-codec/lossless/errs"
)

// eofSymbol is the synthetic symbol whose emission terminates decoding.
const eofSymbol = 256

// precision is the bit width of the interval bounds and of every
// probability_t-shaped value (cumulativeProb, ranges entries, lower/upper).
const precision = 16

// maxProbability is the rescale threshold: the two-bit headroom below
// 2^precision that keeps upper-lower from collapsing below cumulativeProb.
const maxProbability = 1 << (precision - 2)

// numRanges is len(ranges): one lower boundary per symbol (0..eofSymbol,
// with ranges[0]=0 as symbol 0's) plus the extra entry UPPER(eofSymbol).
const numRanges = eofSymbol + 2

// headerCountBits is the width of a header record's count field: two bits
// narrower than precision, since every count in the table is bounded by
// maxProbability after rescaling.
const headerCountBits = precision - 2

// headerCountSize is the byte width PutBitsNumBE/GetBitsNumBE address the
// count field as.
const headerCountSize = 2

func lowerBound(symbol int) int { return symbol }
func upperBound(symbol int) int { return symbol + 1 }

// initializeAdaptiveRanges seeds a uniform distribution: every one of the
// 257 symbols starts with count 1, so cumulativeProb starts at 257.
func initializeAdaptiveRanges() ([numRanges]uint16, uint16) {
	var ranges [numRanges]uint16

	for c := 1; c <= upperBound(eofSymbol); c++ {
		ranges[c] = ranges[c-1] + 1
	}

	return ranges, uint16(upperBound(eofSymbol))
}

// buildStaticRanges accumulates per-byte-value counts from data, rescales
// them if their sum would reach maxProbability, and converts them to a
// cumulative-frequency table with the end-of-stream symbol seeded at count
// 1, exactly as BuildProbabilityRangeList + SymbolCountToProbabilityRanges
// do together in the originating source.
func buildStaticRanges(data []byte) ([numRanges]uint16, uint16, error) {
	var counts [256]uint64
	var totalCount uint64

	for _, b := range data {
		if totalCount == math.MaxUint64 {
			return [numRanges]uint16{}, 0, fmt.Errorf("%w: input too large to count", errs.ErrOverflow)
		}

		counts[b]++
		totalCount++
	}

	if totalCount >= maxProbability {
		rescaleValue := totalCount/maxProbability + 1

		for c := range counts {
			if counts[c] > rescaleValue {
				counts[c] /= rescaleValue
			} else if counts[c] != 0 {
				counts[c] = 1
			}
		}
	}

	var ranges [numRanges]uint16
	var cumulativeProb uint16

	for c := 0; c < eofSymbol; c++ {
		ranges[upperBound(c)] = uint16(counts[c])
		cumulativeProb += uint16(counts[c])
	}

	symbolCountToProbabilityRanges(&ranges, &cumulativeProb)

	return ranges, cumulativeProb, nil
}

// symbolCountToProbabilityRanges seeds the end-of-stream symbol's count at
// 1 and turns ranges from raw per-symbol counts into a running cumulative
// total, the shared tail of both the encoder's first-pass histogram build
// and the decoder's header read.
func symbolCountToProbabilityRanges(ranges *[numRanges]uint16, cumulativeProb *uint16) {
	ranges[0] = 0
	ranges[upperBound(eofSymbol)] = 1
	(*cumulativeProb)++

	for c := 1; c <= upperBound(eofSymbol); c++ {
		ranges[c] += ranges[c-1]
	}
}
