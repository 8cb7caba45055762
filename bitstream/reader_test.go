package bitstream_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/sabletide/flac/bitstream"
)

func TestReadUnsignedMSBFirst(t *testing.T) {
	r := bitstream.NewReader(bytes.NewReader([]byte{0xB1})) // 1011 0001
	a, err := r.ReadUnsigned(4)
	if err != nil || a != 0xB {
		t.Fatalf("a = %d, %v; want 11, nil", a, err)
	}
	b, err := r.ReadUnsigned(4)
	if err != nil || b != 0x1 {
		t.Fatalf("b = %d, %v; want 1, nil", b, err)
	}
}

func TestReadSignedTwosComplement(t *testing.T) {
	r := bitstream.NewReader(bytes.NewReader([]byte{0x80})) // 1000 0000
	v, err := r.ReadSigned(4)
	if err != nil {
		t.Fatal(err)
	}
	if v != -8 {
		t.Fatalf("v = %d; want -8", v)
	}
}

func TestByteAlignDiscardsRemainder(t *testing.T) {
	r := bitstream.NewReader(bytes.NewReader([]byte{0xFF, 0x00}))
	if _, err := r.ReadUnsigned(3); err != nil {
		t.Fatal(err)
	}
	r.ByteAlign()
	v, err := r.ReadUnsigned(8)
	if err != nil || v != 0x00 {
		t.Fatalf("v = %d, %v; want 0, nil", v, err)
	}
}

func TestUnreadSingleBit(t *testing.T) {
	r := bitstream.NewReader(bytes.NewReader([]byte{0x80}))
	bit, err := r.ReadUnsigned(1)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Unread(uint8(bit)); err != nil {
		t.Fatal(err)
	}
	again, err := r.ReadUnsigned(1)
	if err != nil || again != bit {
		t.Fatalf("again = %d, %v; want %d, nil", again, err, bit)
	}
	// A second consecutive unread without an intervening read must fail.
	if err := r.Unread(0); err != nil {
		t.Fatal(err)
	}
	if err := r.Unread(0); err == nil {
		t.Fatal("expected second Unread to fail")
	}
}

func TestLimitedUnaryStopsAtMax(t *testing.T) {
	r := bitstream.NewReader(bytes.NewReader([]byte{0xFF, 0x00}))
	count, limited, err := r.ReadLimitedUnary(0, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !limited || count != 4 {
		t.Fatalf("count=%d limited=%v; want 4, true", count, limited)
	}
	// the remaining 4 one-bits plus the stop byte are still there
	count2, limited2, err := r.ReadLimitedUnary(0, 8)
	if err != nil {
		t.Fatal(err)
	}
	if limited2 || count2 != 4 {
		t.Fatalf("count2=%d limited2=%v; want 4, false", count2, limited2)
	}
}

func TestPositionSaveRestore(t *testing.T) {
	data := []byte{0x12, 0x34, 0x56, 0x78}
	r := bitstream.NewReaderSeeker(bytes.NewReader(data))
	if _, err := r.ReadUnsigned(4); err != nil {
		t.Fatal(err)
	}
	pos, err := r.GetPos()
	if err != nil {
		t.Fatal(err)
	}
	a, err := r.ReadUnsigned(8)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.SetPos(pos); err != nil {
		t.Fatal(err)
	}
	b, err := r.ReadUnsigned(8)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("a=%d b=%d; restored read should match original", a, b)
	}
}

func TestForeignPositionRejected(t *testing.T) {
	r1 := bitstream.NewReaderSeeker(bytes.NewReader([]byte{0, 0}))
	r2 := bitstream.NewReaderSeeker(bytes.NewReader([]byte{0, 0}))
	pos, err := r1.GetPos()
	if err != nil {
		t.Fatal(err)
	}
	if err := r2.SetPos(pos); !errors.Is(err, bitstream.ErrForeignPosition) {
		t.Fatalf("err = %v; want ErrForeignPosition", err)
	}
}

func TestSubstreamEnqueueReadParity(t *testing.T) {
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01}
	parent := bitstream.NewReader(bytes.NewReader(data))
	sub, err := parent.Substream(4)
	if err != nil {
		t.Fatal(err)
	}
	got, err := sub.ReadBytes(4)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data[:4]) {
		t.Fatalf("got %#v, want %#v", got, data[:4])
	}
	rest, err := parent.ReadUnsigned(8)
	if err != nil || rest != 0x01 {
		t.Fatalf("rest = %d, %v; want 1, nil", rest, err)
	}
}

func TestSubstreamInvokesParentCallbacks(t *testing.T) {
	data := []byte{1, 2, 3}
	parent := bitstream.NewReader(bytes.NewReader(data))
	var seen []byte
	parent.AddCallback(func(b byte) { seen = append(seen, b) })
	if _, err := parent.Substream(3); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(seen, data) {
		t.Fatalf("seen = %#v, want %#v", seen, data)
	}
}

func TestQueueReaderEOF(t *testing.T) {
	r := bitstream.NewQueueReader()
	r.Enqueue([]byte{0xAB})
	v, err := r.ReadUnsigned(8)
	if err != nil || v != 0xAB {
		t.Fatalf("v = %d, %v; want 0xAB, nil", v, err)
	}
	if _, err := r.ReadUnsigned(8); !errors.Is(err, bitstream.ErrEndOfStream) && err != io.EOF {
		t.Fatalf("err = %v; want end-of-stream", err)
	}
}

func TestLittleEndianBitOrder(t *testing.T) {
	r := bitstream.NewReader(bytes.NewReader([]byte{0b00000101}))
	r.SetEndian(bitstream.LittleEndian)
	v, err := r.ReadUnsigned(3)
	if err != nil || v != 0b101 {
		t.Fatalf("v = %d, %v; want 5, nil", v, err)
	}
}
