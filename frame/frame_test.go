package frame_test

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sabletide/flac/bitstream"
	"github.com/sabletide/flac/frame"
)

func writeFrame(t *testing.T, f *frame.Frame) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := bitstream.NewWriter(&buf)
	if err := f.Write(w); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func readFrame(t *testing.T, data []byte) *frame.Frame {
	t.Helper()
	r := bitstream.NewReader(bytes.NewReader(data))
	f, err := frame.Parse(r)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return f
}

func constantSubframe(n int, sample int32) *frame.Subframe {
	samples := make([]int32, n)
	for i := range samples {
		samples[i] = sample
	}
	return &frame.Subframe{
		SubHeader: frame.SubHeader{Pred: frame.PredConstant},
		NSamples:  n,
		Samples:   samples,
	}
}

func verbatimSubframe(samples []int32) *frame.Subframe {
	return &frame.Subframe{
		SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
		NSamples:  len(samples),
		Samples:   samples,
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	want := frame.Header{
		HasVariableBlockSize: false,
		BlockSize:            4096,
		SampleRate:           44100,
		Channels:             frame.ChannelsLR,
		BitsPerSample:        16,
		Num:                  7,
	}

	var buf bytes.Buffer
	w := bitstream.NewWriter(&buf)
	if err := frame.EncodeHeader(w, want); err != nil {
		t.Fatalf("EncodeHeader: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r := bitstream.NewReader(bytes.NewReader(buf.Bytes()))
	got, err := frame.ParseHeader(r)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("header mismatch (-want +got):\n%s", diff)
	}
}

func TestHeaderRejectsBadChecksum(t *testing.T) {
	h := frame.Header{BlockSize: 192, SampleRate: 44100, Channels: frame.ChannelsMono, BitsPerSample: 16}

	var buf bytes.Buffer
	w := bitstream.NewWriter(&buf)
	if err := frame.EncodeHeader(w, h); err != nil {
		t.Fatalf("EncodeHeader: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data := buf.Bytes()
	data[len(data)-1] ^= 0xFF

	r := bitstream.NewReader(bytes.NewReader(data))
	if _, err := frame.ParseHeader(r); err == nil {
		t.Fatal("ParseHeader: expected checksum error, got nil")
	}
}

func TestFrameRoundTripConstantMono(t *testing.T) {
	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     192,
			SampleRate:    44100,
			Channels:      frame.ChannelsMono,
			BitsPerSample: 16,
		},
		Subframes: []*frame.Subframe{constantSubframe(192, 1234)},
	}

	data := writeFrame(t, f)
	got := readFrame(t, data)

	if got.BlockSize != f.BlockSize || got.Channels != f.Channels {
		t.Fatalf("header mismatch: got %+v, want %+v", got.Header, f.Header)
	}
	if len(got.Subframes) != 1 {
		t.Fatalf("subframe count = %d, want 1", len(got.Subframes))
	}
	for i, s := range got.Subframes[0].Samples {
		if s != 1234 {
			t.Fatalf("sample[%d] = %d, want 1234", i, s)
		}
	}
}

func TestFrameRoundTripVerbatimMidSide(t *testing.T) {
	n := 16
	mid := make([]int32, n)
	side := make([]int32, n)
	left := make([]int32, n)
	right := make([]int32, n)
	for i := 0; i < n; i++ {
		left[i] = int32(i * 3)
		right[i] = int32(i*3 - i)
		m := (left[i] + right[i]) >> 1
		s := left[i] - right[i]
		mid[i] = m
		side[i] = s
	}

	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(n),
			SampleRate:    44100,
			Channels:      frame.ChannelsMidSide,
			BitsPerSample: 16,
		},
		Subframes: []*frame.Subframe{
			verbatimSubframe(append([]int32{}, mid...)),
			verbatimSubframe(append([]int32{}, side...)),
		},
	}

	data := writeFrame(t, f)
	got := readFrame(t, data)

	for i := 0; i < n; i++ {
		if got.Subframes[0].Samples[i] != left[i] {
			t.Fatalf("left[%d] = %d, want %d", i, got.Subframes[0].Samples[i], left[i])
		}
		if got.Subframes[1].Samples[i] != right[i] {
			t.Fatalf("right[%d] = %d, want %d", i, got.Subframes[1].Samples[i], right[i])
		}
	}
}

func TestFrameRejectsBadFooterChecksum(t *testing.T) {
	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     192,
			SampleRate:    44100,
			Channels:      frame.ChannelsMono,
			BitsPerSample: 16,
		},
		Subframes: []*frame.Subframe{constantSubframe(192, 42)},
	}
	data := writeFrame(t, f)
	data[len(data)-1] ^= 0xFF

	r := bitstream.NewReader(bytes.NewReader(data))
	if _, err := frame.Parse(r); err == nil {
		t.Fatal("Parse: expected footer checksum error, got nil")
	}
}
