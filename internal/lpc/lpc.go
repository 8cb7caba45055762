// Package lpc implements the linear-prediction math behind FLAC's LPC
// subframe encoder: a Tukey window, autocorrelation, Levinson-Durbin
// recursion and coefficient quantization.
package lpc

import "math"

// TukeyWindow returns a Tukey (tapered cosine) window of length n with
// taper fraction alpha, applied to samples before autocorrelation.
func TukeyWindow(alpha float64, n int) []float64 {
	window := make([]float64, n)
	np := int(alpha / 2 * float64(n) - 1)
	if np < 1 {
		np = 1
	}
	for i := 0; i < n; i++ {
		switch {
		case i <= np:
			window[i] = (1 - math.Cos(math.Pi*float64(i)/float64(np))) / 2
		case i >= n-np-1:
			window[i] = (1 - math.Cos(math.Pi*float64(n-i-1)/float64(np))) / 2
		default:
			window[i] = 1.0
		}
	}
	return window
}

// Window multiplies samples by window elementwise, converting to
// float64 for the autocorrelation stage.
func Window(samples []int32, window []float64) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s) * window[i]
	}
	return out
}

// Autocorrelate computes the first maxLag+1 autocorrelation
// coefficients of the windowed signal.
func Autocorrelate(signal []float64, maxLag int) []float64 {
	out := make([]float64, maxLag+1)
	n := len(signal)
	for lag := 0; lag <= maxLag; lag++ {
		var sum float64
		for j := 0; j < n-lag; j++ {
			sum += signal[j] * signal[j+lag]
		}
		out[lag] = sum
	}
	return out
}

// LevinsonDurbin runs the Levinson-Durbin recursion over the given
// autocorrelation values, returning the LP coefficients for every
// order from 1 to maxOrder (coeffs[i] holds the order-(i+1)
// coefficients) along with the prediction error at each order.
func LevinsonDurbin(autoc []float64, maxOrder int) (coeffs [][]float64, errs []float64) {
	coeffs = make([][]float64, maxOrder)
	errs = make([]float64, maxOrder)

	lpc := make([]float64, maxOrder)
	err := autoc[0]
	for i := 0; i < maxOrder; i++ {
		var acc float64
		for j := 0; j < i; j++ {
			acc += lpc[j] * autoc[i-j]
		}
		k := (autoc[i+1] - acc) / err

		next := make([]float64, i+1)
		for j := 0; j < i; j++ {
			next[j] = lpc[j] - k*lpc[i-j-1]
		}
		next[i] = k
		copy(lpc, next)

		err *= 1 - k*k
		errs[i] = err
		coeffs[i] = append([]float64(nil), next...)
	}
	return coeffs, errs
}

// EstimateBestOrder picks the LPC order whose estimated encoded size
// (header bits plus expected residual bits, from the Levinson-Durbin
// error sequence) is smallest.
func EstimateBestOrder(bps, precision uint, sampleCount int, errs []float64) int {
	errScale := math.Pow(math.Log(2), 2) / float64(sampleCount*2)
	bestBits := math.MaxFloat64
	bestOrder := 1
	for i, e := range errs {
		order := i + 1
		headerBits := float64(order) * float64(bps+precision)
		if e <= 0 {
			e = 1e-9
		}
		bitsPerResidual := math.Log2(e*errScale) / 2
		subframeBits := headerBits + bitsPerResidual*float64(sampleCount-order)
		if subframeBits < bestBits {
			bestBits = subframeBits
			bestOrder = order
		}
	}
	return bestOrder
}

// QuantizeCoefficients quantizes floating-point LP coefficients to
// signed integers of the given bit precision, returning the
// coefficients and the right-shift amount that de-quantizes them.
// Quantization error is carried forward between coefficients so the
// rounding bias does not accumulate.
func QuantizeCoefficients(lpCoeff []float64, precision uint) (qlp []int32, shift int32) {
	maxCoeff := int32(1)<<(precision-1) - 1
	minCoeff := -(int32(1) << (precision - 1))
	const minShift, maxShift = 0, 15

	var maxVal float64
	for _, c := range lpCoeff {
		if a := math.Abs(c); a > maxVal {
			maxVal = a
		}
	}
	if maxVal <= 0 {
		qlp = make([]int32, len(lpCoeff))
		return qlp, 0
	}

	s := int(precision-1) - int(math.Floor(math.Log2(maxVal))) - 1
	if s < minShift {
		s = minShift
	} else if s > maxShift {
		s = maxShift
	}
	shift = int32(s)

	qlp = make([]int32, len(lpCoeff))
	var carry float64
	for i, c := range lpCoeff {
		sum := carry + c*float64(int64(1)<<uint(s))
		q := int32(math.Round(sum))
		if q > maxCoeff {
			q = maxCoeff
		} else if q < minCoeff {
			q = minCoeff
		}
		qlp[i] = q
		carry = sum - float64(q)
	}
	return qlp, shift
}
