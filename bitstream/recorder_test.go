package bitstream_test

import (
	"bytes"
	"testing"

	"github.com/sabletide/flac/bitstream"
)

func TestRecorderCopyToWriter(t *testing.T) {
	rec := bitstream.NewRecorder()
	if err := rec.WriteUnsigned(16, 0xBEEF); err != nil {
		t.Fatal(err)
	}
	if rec.BytesWritten() != 2 {
		t.Fatalf("BytesWritten() = %d, want 2", rec.BytesWritten())
	}

	buf := &bytes.Buffer{}
	w := bitstream.NewWriter(buf)
	if err := rec.Copy(w); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if got := buf.Bytes(); !bytes.Equal(got, []byte{0xBE, 0xEF}) {
		t.Fatalf("got %#v, want [0xBE 0xEF]", got)
	}
}

func TestRecorderReset(t *testing.T) {
	rec := bitstream.NewRecorder()
	if err := rec.WriteUnsigned(8, 0xFF); err != nil {
		t.Fatal(err)
	}
	rec.Reset()
	if rec.BytesWritten() != 0 || rec.BitsWritten() != 0 || len(rec.Data()) != 0 {
		t.Fatalf("recorder not empty after Reset: bytes=%d bits=%d data=%#v",
			rec.BytesWritten(), rec.BitsWritten(), rec.Data())
	}
}

func TestLimitedRecorderExceeded(t *testing.T) {
	lr := bitstream.NewLimitedRecorder(8) // 1 byte budget
	if err := lr.WriteUnsigned(8, 0xAB); err != nil {
		t.Fatal(err)
	}
	if lr.Exceeded() {
		t.Fatal("should not be exceeded after writing exactly the budget")
	}
	// one more bit pushes past the budget; the write is a silent no-op
	// that still records the sentinel error.
	if err := lr.WriteUnsigned(1, 1); err == nil {
		t.Fatal("expected ErrLimitExceeded once over budget")
	}
	if !lr.Exceeded() {
		t.Fatal("expected Exceeded() to be true once over budget")
	}
	// further writes remain silent no-ops, not panics or new distinct errors.
	if err := lr.WriteUnsigned(4, 5); err == nil {
		t.Fatal("expected continued ErrLimitExceeded after budget exceeded")
	}
}

func TestLimitedRecorderWithinBudgetNeverFails(t *testing.T) {
	lr := bitstream.NewLimitedRecorder(32)
	for i := 0; i < 4; i++ {
		if err := lr.WriteUnsigned(8, 0x11); err != nil {
			t.Fatalf("unexpected error within budget: %v", err)
		}
	}
	if lr.Exceeded() {
		t.Fatal("should not be exceeded exactly at budget")
	}
}

func TestRecorderGetPosSetPosPatch(t *testing.T) {
	rec := bitstream.NewRecorder()
	pos, err := rec.GetPos()
	if err != nil {
		t.Fatal(err)
	}
	if err := rec.WriteUnsigned(32, 0); err != nil { // placeholder
		t.Fatal(err)
	}
	if err := rec.SetPos(pos); err != nil {
		t.Fatal(err)
	}
	if err := rec.WriteUnsigned(32, 0xCAFEBABE); err != nil {
		t.Fatal(err)
	}
	want := []byte{0xCA, 0xFE, 0xBA, 0xBE}
	if got := rec.Data(); !bytes.Equal(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}
