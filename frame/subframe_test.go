package frame

import (
	"bytes"
	"testing"

	"github.com/sabletide/flac/bitstream"
)

func writeSubframe(t *testing.T, sub *Subframe, bps uint) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := bitstream.NewWriter(&buf)
	if err := sub.encode(w, bps); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := w.ByteAlign(); err != nil {
		t.Fatalf("ByteAlign: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func readSubframe(t *testing.T, data []byte, nsamples int, bps uint) *Subframe {
	t.Helper()
	r := bitstream.NewReader(bytes.NewReader(data))
	sub, err := parseSubframe(r, nsamples, bps)
	if err != nil {
		t.Fatalf("parseSubframe: %v", err)
	}
	return sub
}

func fixedSamples() []int32 {
	samples := make([]int32, 64)
	for i := range samples {
		samples[i] = int32(i*i - 3*i + 5)
	}
	return samples
}

func TestSubframeRoundTripFixedOrder2(t *testing.T) {
	samples := fixedSamples()
	order := 2

	sub := &Subframe{
		SubHeader: SubHeader{
			Pred:                 PredFixed,
			Order:                order,
			ResidualCodingMethod: ResidualCodingMethodRice1,
			RiceSubframe: &RiceSubframe{
				PartOrder:  0,
				Partitions: []RicePartition{{Param: 4}},
			},
		},
		NSamples: len(samples),
		Samples:  samples,
	}

	data := writeSubframe(t, sub, 16)
	got := readSubframe(t, data, len(samples), 16)

	if got.Pred != PredFixed || got.Order != order {
		t.Fatalf("header mismatch: pred=%v order=%d", got.Pred, got.Order)
	}
	for i, s := range got.Samples {
		if s != samples[i] {
			t.Fatalf("sample[%d] = %d, want %d", i, s, samples[i])
		}
	}
}

func TestSubframeRoundTripWastedBits(t *testing.T) {
	full := make([]int32, 8)
	for i := range full {
		full[i] = int32(i) << 3
	}

	sub := &Subframe{
		SubHeader: SubHeader{Pred: PredVerbatim, Wasted: 3},
		NSamples:  len(full),
		Samples:   append([]int32{}, full...),
	}

	data := writeSubframe(t, sub, 16)
	got := readSubframe(t, data, len(full), 16)

	for i, s := range got.Samples {
		if s != full[i] {
			t.Fatalf("sample[%d] = %d, want %d", i, s, full[i])
		}
	}
}

func TestSubframeRoundTripEscapedPartition(t *testing.T) {
	samples := []int32{100, -5000, 3200, -8192, 42, 17, -3, 900}

	sub := &Subframe{
		SubHeader: SubHeader{
			Pred:                 PredFixed,
			Order:                0,
			ResidualCodingMethod: ResidualCodingMethodRice1,
			RiceSubframe: &RiceSubframe{
				PartOrder:  0,
				Partitions: []RicePartition{{EscapedBitsPerSample: 16}},
			},
		},
		NSamples: len(samples),
		Samples:  samples,
	}

	data := writeSubframe(t, sub, 16)
	got := readSubframe(t, data, len(samples), 16)

	for i, s := range got.Samples {
		if s != samples[i] {
			t.Fatalf("sample[%d] = %d, want %d", i, s, samples[i])
		}
	}
}

func TestSubframeRoundTripConstant(t *testing.T) {
	samples := make([]int32, 32)
	for i := range samples {
		samples[i] = -777
	}
	sub := &Subframe{
		SubHeader: SubHeader{Pred: PredConstant},
		NSamples:  len(samples),
		Samples:   samples,
	}

	data := writeSubframe(t, sub, 16)
	got := readSubframe(t, data, len(samples), 16)
	for i, s := range got.Samples {
		if s != -777 {
			t.Fatalf("sample[%d] = %d, want -777", i, s)
		}
	}
}
