package huffman

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
	"testing/quick"

	"github.com/go-codec/lossless/errs"
	"github.com/go-codec/lossless/util"
)

// TestQuickRoundTrip checks the universal round-trip property against
// quick's own randomly generated byte slices.
func TestQuickRoundTrip(t *testing.T) {
	f := func(data []byte) bool {
		var encoded bytes.Buffer
		if err := Encode(bytes.NewReader(data), &encoded); err != nil {
			return false
		}

		var decoded bytes.Buffer
		if err := Decode(bytes.NewReader(encoded.Bytes()), &decoded); err != nil {
			return false
		}

		return bytes.Equal(decoded.Bytes(), data)
	}

	if err := quick.Check(f, nil); err != nil {
		t.Fatal(err)
	}
}

func roundTrip(t *testing.T, data []byte) []byte {
	var encoded bytes.Buffer
	if err := Encode(bytes.NewReader(data), &encoded); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var decoded bytes.Buffer
	if err := Decode(bytes.NewReader(encoded.Bytes()), &decoded); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	return decoded.Bytes()
}

func TestRoundTripEmpty(t *testing.T) {
	got := roundTrip(t, nil)
	if len(got) != 0 {
		t.Fatalf("got %v, want empty", got)
	}
}

func TestRoundTripSingleByte(t *testing.T) {
	got := roundTrip(t, []byte{0x41})
	if !bytes.Equal(got, []byte{0x41}) {
		t.Fatalf("got %v, want [0x41]", got)
	}
}

func TestRoundTripTwoSymbol(t *testing.T) {
	data := append(bytes.Repeat([]byte{0x41}, 10), 0x42)

	var encoded bytes.Buffer
	if err := Encode(bytes.NewReader(data), &encoded); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var counts [256]uint32
	counts[0x41] = 10
	counts[0x42] = 1
	table := buildCodeTable(buildTree(counts))

	// Two distinct byte values plus end-of-stream collapse to depth-1 codes
	// for the frequent symbol and depth-2 for the rarer one and EOF.
	if table[0x41].length != 1 {
		t.Fatalf("frequent symbol code length = %d, want 1", table[0x41].length)
	}

	got := roundTrip(t, data)
	if !bytes.Equal(got, data) {
		t.Fatalf("got %v, want %v", got, data)
	}
}

func TestRoundTripAllByteValues(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}

	got := roundTrip(t, data)
	if !bytes.Equal(got, data) {
		t.Fatalf("mismatch on all-distinct-byte-values input")
	}
}

func TestRoundTripRandom(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))

	for _, n := range []int{1, 2, 17, 100, 1024, 4096} {
		data := make([]byte, n)
		rnd.Read(data)

		got := roundTrip(t, data)
		if !bytes.Equal(got, data) {
			t.Fatalf("n=%d: mismatch", n)
		}
	}
}

func TestDeterministicTreeForIdenticalHistograms(t *testing.T) {
	a := []byte{0x01, 0x01, 0x01, 0x02, 0x03}
	b := []byte{0x03, 0x01, 0x02, 0x01, 0x01}

	var encA, encB bytes.Buffer
	if err := Encode(bytes.NewReader(a), &encA); err != nil {
		t.Fatalf("Encode a: %v", err)
	}
	if err := Encode(bytes.NewReader(b), &encB); err != nil {
		t.Fatalf("Encode b: %v", err)
	}

	// The header carries only the histogram, so it must be byte-identical.
	// The payload encodes each input's own symbol order through the same
	// code table, so its total length must match too.
	headerLen := (3 + 1) * (1 + countFieldSize) // three records plus (0, 0)
	if !bytes.Equal(encA.Bytes()[:headerLen], encB.Bytes()[:headerLen]) {
		t.Fatalf("identical histograms produced different headers")
	}
	if encA.Len() != encB.Len() {
		t.Fatalf("identical histograms produced different compressed lengths: %d vs %d", encA.Len(), encB.Len())
	}
}

func TestDecodeMalformedHeaderReportsFormatError(t *testing.T) {
	// A single byte of header with no terminator and nothing else: the
	// symbol read succeeds, the count field then runs off the end.
	err := Decode(bytes.NewReader([]byte{0x41}), &bytes.Buffer{})
	if err == nil {
		t.Fatalf("expected an error decoding a truncated header")
	}
	if !errors.Is(err, errs.ErrFormat) && !errors.Is(err, errs.ErrIO) {
		t.Fatalf("got %v, want ErrFormat or ErrIO", err)
	}
}

func TestRoundTripOverBufferStream(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")

	encoded := util.NewBufferStream(nil)
	if err := Encode(bytes.NewReader(data), encoded); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if err := encoded.SetOffset(0); err != nil {
		t.Fatalf("SetOffset: %v", err)
	}

	var decoded bytes.Buffer
	if err := Decode(encoded, &decoded); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if !bytes.Equal(decoded.Bytes(), data) {
		t.Fatalf("got %v, want %v", decoded.Bytes(), data)
	}
}

func TestEncodeNilArguments(t *testing.T) {
	if err := Encode(nil, &bytes.Buffer{}); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("Encode(nil, ...) = %v, want ErrInvalidArgument", err)
	}
	if err := Decode(bytes.NewReader(nil), nil); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("Decode(..., nil) = %v, want ErrInvalidArgument", err)
	}
}
