package bitstream_test

import (
	"bytes"
	"testing"

	"github.com/sabletide/flac/bitstream"
)

func TestParseFormatExpandsMultiplier(t *testing.T) {
	actions, err := bitstream.ParseFormat("2u 3*1u 5s")
	if err != nil {
		t.Fatal(err)
	}
	want := []bitstream.FormatAction{
		{Code: 'u', Count: 2},
		{Code: 'u', Count: 1},
		{Code: 'u', Count: 1},
		{Code: 'u', Count: 1},
		{Code: 's', Count: 5},
	}
	if len(actions) != len(want) {
		t.Fatalf("got %d actions, want %d: %#v", len(actions), len(want), actions)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Fatalf("action %d = %#v, want %#v", i, actions[i], want[i])
		}
	}
}

func TestParseFormatRejectsUnknownCode(t *testing.T) {
	if _, err := bitstream.ParseFormat("3z"); err == nil {
		t.Fatal("expected error for unknown action code")
	}
}

func TestBuildParseRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	w := bitstream.NewWriter(buf)
	format := "2u 3s 19U 2b"
	if err := w.Build(format, uint32(2), int32(-3), uint64(123456), []byte{0xAA, 0xBB}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r := bitstream.NewReader(bytes.NewReader(buf.Bytes()))
	vals, err := r.Parse(format)
	if err != nil {
		t.Fatal(err)
	}
	if len(vals) != 4 {
		t.Fatalf("got %d values, want 4: %#v", len(vals), vals)
	}
	if vals[0].(uint32) != 2 {
		t.Fatalf("vals[0] = %v, want 2", vals[0])
	}
	if vals[1].(int32) != -3 {
		t.Fatalf("vals[1] = %v, want -3", vals[1])
	}
	if vals[2].(uint64) != 123456 {
		t.Fatalf("vals[2] = %v, want 123456", vals[2])
	}
	if !bytes.Equal(vals[3].([]byte), []byte{0xAA, 0xBB}) {
		t.Fatalf("vals[3] = %v, want [0xAA 0xBB]", vals[3])
	}
}

func TestBuildSkipActionsWriteZeroBits(t *testing.T) {
	rec := bitstream.NewRecorder()
	if err := rec.Build("3p 1P"); err != nil {
		t.Fatal(err)
	}
	if got := rec.BitsWritten(); got != 11 {
		t.Fatalf("BitsWritten() = %d, want 11", got)
	}
	if err := rec.ByteAlign(); err != nil {
		t.Fatal(err)
	}
	for _, b := range rec.Data() {
		if b != 0 {
			t.Fatalf("got %#v, want all-zero bytes", rec.Data())
		}
	}
}
