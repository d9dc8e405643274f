// Package errs collects the error kinds shared by the bitio, rle, huffman
// and arithmetic packages so that callers can classify a failure with
// errors.Is regardless of which codec produced it.
package errs

import "errors"

var (
	// ErrInvalidArgument is returned when a required source or sink is nil.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIO is returned when the underlying byte source or sink fails, or
	// hits an unexpected EOF while a structural field is being read.
	ErrIO = errors.New("io error")

	// ErrFormat is returned when a header terminator is never reached, a
	// decoded probability falls outside the cumulative table, or a run/copy
	// block is malformed.
	ErrFormat = errors.New("format error")

	// ErrOverflow is returned when a symbol count would exceed the
	// representable range during Huffman frequency counting.
	ErrOverflow = errors.New("count overflow")

	// ErrUnsupported is returned when the host's byte order is neither
	// little- nor big-endian as far as the bit-stream layer can tell.
	ErrUnsupported = errors.New("unsupported host byte order")
)
