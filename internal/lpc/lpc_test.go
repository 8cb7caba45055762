package lpc_test

import (
	"math"
	"testing"

	"github.com/sabletide/flac/internal/lpc"
)

func TestTukeyWindowEndpointsTaperToZero(t *testing.T) {
	w := lpc.TukeyWindow(0.5, 64)
	if len(w) != 64 {
		t.Fatalf("len(window) = %d, want 64", len(w))
	}
	if w[0] > 0.05 {
		t.Errorf("window[0] = %v, want near 0", w[0])
	}
	if w[len(w)-1] > 0.05 {
		t.Errorf("window[last] = %v, want near 0", w[len(w)-1])
	}
	mid := len(w) / 2
	if w[mid] < 0.9 {
		t.Errorf("window[mid] = %v, want near 1", w[mid])
	}
}

func TestAutocorrelateLagZeroIsEnergy(t *testing.T) {
	signal := []float64{1, 2, 3, 4}
	autoc := lpc.Autocorrelate(signal, 2)
	want := 1*1 + 2*2 + 3*3 + 4*4
	if autoc[0] != float64(want) {
		t.Errorf("autoc[0] = %v, want %v", autoc[0], want)
	}
}

func TestLevinsonDurbinRecoversSineWave(t *testing.T) {
	n := 256
	samples := make([]int32, n)
	for i := range samples {
		samples[i] = int32(1000 * math.Sin(2*math.Pi*float64(i)/32))
	}
	window := lpc.TukeyWindow(0.5, n)
	windowed := lpc.Window(samples, window)
	autoc := lpc.Autocorrelate(windowed, 8)

	coeffs, errs := lpc.LevinsonDurbin(autoc, 8)
	if len(coeffs) != 8 || len(errs) != 8 {
		t.Fatalf("unexpected output lengths: %d coeffs, %d errs", len(coeffs), len(errs))
	}

	// error should trend downward as order grows for a smooth periodic signal
	if errs[7] >= errs[0] {
		t.Errorf("order-8 error %v should be smaller than order-1 error %v", errs[7], errs[0])
	}
}

func TestEstimateBestOrderPicksWithinRange(t *testing.T) {
	errs := []float64{100, 40, 38, 37.9, 37.85}
	order := lpc.EstimateBestOrder(16, 12, 4096, errs)
	if order < 1 || order > len(errs) {
		t.Fatalf("order %d out of range [1,%d]", order, len(errs))
	}
}

func TestQuantizeCoefficientsFitsPrecision(t *testing.T) {
	coeffs := []float64{1.9, -0.8, 0.3, 0.05}
	qlp, shift := lpc.QuantizeCoefficients(coeffs, 12)
	if shift < 0 || shift > 15 {
		t.Fatalf("shift %d out of range", shift)
	}
	max := int32(1<<11) - 1
	min := -(int32(1 << 11))
	for i, q := range qlp {
		if q > max || q < min {
			t.Errorf("qlp[%d] = %d out of 12-bit signed range", i, q)
		}
	}
}

func TestQuantizeCoefficientsAllZero(t *testing.T) {
	qlp, shift := lpc.QuantizeCoefficients([]float64{0, 0, 0}, 8)
	if shift != 0 {
		t.Errorf("shift = %d, want 0", shift)
	}
	for _, q := range qlp {
		if q != 0 {
			t.Errorf("qlp = %v, want all zero", qlp)
		}
	}
}
