package bitio

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/go-codec/lossless/util"
)

func TestPutGetBitRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	bits := []int{1, 0, 1, 1, 0, 0, 0, 1, 1, 1, 0}
	for _, b := range bits {
		if err := w.PutBit(b); err != nil {
			t.Fatalf("PutBit: %v", err)
		}
	}

	if err := w.Flush(false); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	for i, want := range bits {
		got, err := r.GetBit()
		if err != nil {
			t.Fatalf("GetBit[%d]: %v", i, err)
		}
		if got != want {
			t.Fatalf("bit %d: got %d, want %d", i, got, want)
		}
	}
}

func TestFlushNoOpWhenAligned(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	for i := 0; i < 8; i++ {
		w.PutBit(1)
	}

	before := buf.Len()

	if err := w.Flush(false); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if buf.Len() != before {
		t.Fatalf("flush with bitCount==0 wrote to the underlying stream: before=%d after=%d", before, buf.Len())
	}
}

func TestPutByteGetByteBitExact(t *testing.T) {
	for shift := 1; shift <= 7; shift++ {
		t.Run("", func(t *testing.T) {
			for _, c := range []byte{0x00, 0xFF, 0x41, 0xA5, 0x80, 0x01} {
				var buf bytes.Buffer
				w, _ := NewWriter(&buf)

				// misalign the accumulator by `shift` bits first
				for i := 0; i < shift; i++ {
					w.PutBit(i & 1)
				}

				if err := w.PutByte(c); err != nil {
					t.Fatalf("PutByte: %v", err)
				}

				if err := w.Flush(false); err != nil {
					t.Fatalf("Flush: %v", err)
				}

				// Reproduce the same sequence bit by bit for comparison.
				var refBuf bytes.Buffer
				refW, _ := NewWriter(&refBuf)

				for i := 0; i < shift; i++ {
					refW.PutBit(i & 1)
				}

				for bit := 7; bit >= 0; bit-- {
					refW.PutBit(int((c >> uint(bit)) & 1))
				}

				refW.Flush(false)

				if !bytes.Equal(buf.Bytes(), refBuf.Bytes()) {
					t.Fatalf("shift=%d c=%#x: PutByte output %x != bit-by-bit output %x", shift, c, buf.Bytes(), refBuf.Bytes())
				}

				r, _ := NewReader(&buf)

				for i := 0; i < shift; i++ {
					r.GetBit()
				}

				got, err := r.GetByte()
				if err != nil {
					t.Fatalf("GetByte: %v", err)
				}

				if got != c {
					t.Fatalf("shift=%d: got byte %#x, want %#x", shift, got, c)
				}
			}
		})
	}
}

func TestPutBitsGetBitsRoundTrip(t *testing.T) {
	src := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x12}

	for n := 1; n <= 8*len(src); n++ {
		var buf bytes.Buffer
		w, _ := NewWriter(&buf)

		if err := w.PutBits(src, n); err != nil {
			t.Fatalf("n=%d PutBits: %v", n, err)
		}
		if err := w.Flush(false); err != nil {
			t.Fatalf("n=%d Flush: %v", n, err)
		}

		r, _ := NewReader(&buf)
		dst := make([]byte, (n+7)/8)

		if err := r.GetBits(dst, n); err != nil {
			t.Fatalf("n=%d GetBits: %v", n, err)
		}

		for i := 0; i < n; i++ {
			wantByte := src[i/8]
			wantBit := (wantByte >> uint(7-(i%8))) & 1

			gotByte := dst[i/8]
			gotBit := (gotByte >> uint(7-(i%8))) & 1

			if wantBit != gotBit {
				t.Fatalf("n=%d bit %d: got %d, want %d", n, i, gotBit, wantBit)
			}
		}
	}
}

func TestPutBitsNumGetBitsNumRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))

	for size := 1; size <= 8; size++ {
		max := size * 8

		for n := 0; n <= max; n++ {
			mask := uint64(0)
			if n > 0 {
				mask = ^uint64(0) >> uint(64-n)
			}

			value := rnd.Uint64() & mask

			var buf bytes.Buffer
			w, _ := NewWriter(&buf)

			if err := w.PutBitsNum(value, n, size); err != nil {
				t.Fatalf("size=%d n=%d PutBitsNum: %v", size, n, err)
			}
			if err := w.Flush(false); err != nil {
				t.Fatalf("Flush: %v", err)
			}

			r, _ := NewReader(&buf)
			got, err := r.GetBitsNum(n, size)
			if err != nil {
				t.Fatalf("size=%d n=%d GetBitsNum: %v", size, n, err)
			}

			if got != value {
				t.Fatalf("size=%d n=%d: got %#x, want %#x", size, n, got, value)
			}
		}
	}
}

func TestPutBitsNumBEGetBitsNumBERoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(2))

	for size := 1; size <= 8; size++ {
		max := size * 8

		for n := 0; n <= max; n++ {
			mask := uint64(0)
			if n > 0 {
				mask = ^uint64(0) >> uint(64-n)
			}

			value := rnd.Uint64() & mask

			var buf bytes.Buffer
			w, _ := NewWriter(&buf)

			if err := w.PutBitsNumBE(value, n, size); err != nil {
				t.Fatalf("size=%d n=%d PutBitsNumBE: %v", size, n, err)
			}
			if err := w.Flush(false); err != nil {
				t.Fatalf("Flush: %v", err)
			}

			r, _ := NewReader(&buf)
			got, err := r.GetBitsNumBE(n, size)
			if err != nil {
				t.Fatalf("size=%d n=%d GetBitsNumBE: %v", size, n, err)
			}

			if got != value {
				t.Fatalf("size=%d n=%d: got %#x, want %#x", size, n, got, value)
			}
		}
	}
}

func TestPutBitsNumBEIsIndependentOfHostOrder(t *testing.T) {
	// A full-width field's wire bytes must come out MSB-first regardless of
	// what hostByteOrder() detects, unlike PutBitsNum.
	var buf bytes.Buffer
	w, _ := NewWriter(&buf)

	if err := w.PutBitsNumBE(0x0102, 16, 2); err != nil {
		t.Fatalf("PutBitsNumBE: %v", err)
	}
	if err := w.Flush(false); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if !bytes.Equal(buf.Bytes(), []byte{0x01, 0x02}) {
		t.Fatalf("got %x, want big-endian 01 02", buf.Bytes())
	}
}

func TestRoundTripOverBufferStream(t *testing.T) {
	stream := util.NewBufferStream(nil)

	w, err := NewWriter(stream)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	if err := w.PutBits([]byte{0xDE, 0xAD}, 16); err != nil {
		t.Fatalf("PutBits: %v", err)
	}
	if err := w.Flush(false); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if err := stream.SetOffset(0); err != nil {
		t.Fatalf("SetOffset: %v", err)
	}

	r, err := NewReader(stream)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	got := make([]byte, 2)
	if err := r.GetBits(got, 16); err != nil {
		t.Fatalf("GetBits: %v", err)
	}

	if !bytes.Equal(got, []byte{0xDE, 0xAD}) {
		t.Fatalf("got %x, want de ad", got)
	}
}

func TestDetach(t *testing.T) {
	var buf bytes.Buffer
	w, _ := NewWriter(&buf)
	w.PutBit(1)
	w.PutBit(0)

	underlying, err := w.Detach()
	if err != nil {
		t.Fatalf("Detach: %v", err)
	}
	if underlying != &buf {
		t.Fatalf("Detach returned a different stream")
	}
	if buf.Len() != 1 {
		t.Fatalf("Detach should flush exactly one padded byte, got %d bytes", buf.Len())
	}

	if err := w.PutBit(1); err == nil {
		t.Fatalf("expected error writing to a detached Writer")
	}
}
