package bitstream_test

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/sabletide/flac/bitstream"
)

func TestBigUnsignedRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	w := bitstream.NewWriter(buf)
	want := new(big.Int).Lsh(big.NewInt(1), 100) // needs >64 bits
	if err := w.WriteBigUnsigned(101, want); err != nil {
		t.Fatal(err)
	}
	if err := w.ByteAlign(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r := bitstream.NewReader(bytes.NewReader(buf.Bytes()))
	got, err := r.ReadBigUnsigned(101)
	if err != nil {
		t.Fatal(err)
	}
	if got.Cmp(want) != 0 {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestBigSignedRoundTripNegative(t *testing.T) {
	buf := &bytes.Buffer{}
	w := bitstream.NewWriter(buf)
	want := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 80))
	if err := w.WriteBigSigned(82, want); err != nil {
		t.Fatal(err)
	}
	if err := w.ByteAlign(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r := bitstream.NewReader(bytes.NewReader(buf.Bytes()))
	got, err := r.ReadBigSigned(82)
	if err != nil {
		t.Fatal(err)
	}
	if got.Cmp(want) != 0 {
		t.Fatalf("got %s, want %s", got, want)
	}
}
