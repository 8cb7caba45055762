package flac_test

import (
	"bytes"
	"testing"

	"github.com/sabletide/flac"
	"github.com/sabletide/flac/bitstream"
	"github.com/sabletide/flac/frame"
	"github.com/sabletide/flac/meta"
)

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

func buildFrame(i int, blockSize uint16) *frame.Frame {
	return &frame.Frame{
		Header: frame.Header{
			BlockSize:     blockSize,
			SampleRate:    44100,
			Channels:      frame.ChannelsMono,
			BitsPerSample: 16,
			Num:           uint64(i),
		},
		Subframes: []*frame.Subframe{constantSubframe(int(blockSize), int32(i*10))},
	}
}

// frameByteSize measures the encoded size of a representative frame;
// every frame built by buildFrame is a fixed-size CONSTANT subframe, so
// one measurement is valid for all of them.
func frameByteSize(t *testing.T, blockSize uint16) uint64 {
	t.Helper()
	rec := bitstream.NewRecorder()
	if err := buildFrame(0, blockSize).Write(rec.Writer); err != nil {
		t.Fatalf("measure frame size: %v", err)
	}
	if err := rec.ByteAlign(); err != nil {
		t.Fatalf("measure frame size: %v", err)
	}
	return uint64(rec.BytesWritten())
}

func buildStream(t *testing.T, nframes int, blockSize uint16, withSeekTable bool) []byte {
	t.Helper()
	info := &meta.StreamInfo{
		BlockSizeMin:  blockSize,
		BlockSizeMax:  blockSize,
		SampleRate:    44100,
		NChannels:     1,
		BitsPerSample: 16,
		NSamples:      uint64(nframes) * uint64(blockSize),
	}

	var blocks []*meta.Block
	if withSeekTable {
		frameSize := frameByteSize(t, blockSize)
		points := make([]meta.SeekPoint, nframes)
		for i := range points {
			points[i] = meta.SeekPoint{
				SampleNum: uint64(i) * uint64(blockSize),
				Offset:    uint64(i) * frameSize,
				NSamples:  blockSize,
			}
		}
		blocks = append(blocks, &meta.Block{
			Header: meta.Header{Type: meta.TypeSeekTable},
			Body:   &meta.SeekTable{Points: points},
		})
	}

	var buf bytes.Buffer
	enc, err := flac.NewEncoder(&buf, info, blocks...)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	for i := 0; i < nframes; i++ {
		if err := enc.WriteFrame(buildFrame(i, blockSize)); err != nil {
			t.Fatalf("WriteFrame %d: %v", i, err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func TestEncodeParseRoundTrip(t *testing.T) {
	data := buildStream(t, 4, 192, false)

	stream, err := flac.Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if stream.Info.NChannels != 1 || stream.Info.BitsPerSample != 16 {
		t.Fatalf("unexpected stream info: %+v", stream.Info)
	}

	for i := 0; i < 4; i++ {
		f, err := stream.ParseNext()
		if err != nil {
			t.Fatalf("ParseNext %d: %v", i, err)
		}
		want := int32(i * 10)
		for j, s := range f.Subframes[0].Samples {
			if s != want {
				t.Fatalf("frame %d sample %d = %d, want %d", i, j, s, want)
			}
		}
	}

	if _, err := stream.ParseNext(); err == nil {
		t.Fatal("expected end of stream error after last frame")
	}
}

func TestSeek(t *testing.T) {
	data := buildStream(t, 8, 256, true)

	stream, err := flac.Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	got, err := stream.Seek(3 * 256)
	if err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if got != 3*256 {
		t.Fatalf("Seek returned sample %d, want %d", got, 3*256)
	}

	f, err := stream.ParseNext()
	if err != nil {
		t.Fatalf("ParseNext after seek: %v", err)
	}
	want := int32(3 * 10)
	if f.Subframes[0].Samples[0] != want {
		t.Fatalf("sample after seek = %d, want %d", f.Subframes[0].Samples[0], want)
	}

	if _, err := stream.Seek(uint64(8 * 256)); err == nil {
		t.Fatal("expected error seeking past end of stream")
	}
}
