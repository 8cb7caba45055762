package frame

import (
	"github.com/pkg/errors"

	"github.com/sabletide/flac/bitstream"
	"github.com/sabletide/flac/internal/bits"
)

// Pred specifies the prediction method used to encode
// the audio samples of a subframe.
type Pred uint8

// Subframe prediction methods.
const (
	PredConstant Pred = iota
	PredVerbatim
	PredFixed
	PredFIR
)

// ResidualCodingMethod specifies a residual coding method.
type ResidualCodingMethod uint8

// Residual coding methods.
const (
	ResidualCodingMethodRice1 ResidualCodingMethod = iota
	ResidualCodingMethodRice2
)

// RicePartition is a partition containing
// a subset of the residuals of a subframe.
type RicePartition struct {
	// Rice parameter.
	Param uint
	// Residual sample size in bits-per-sample used by escaped partitions.
	EscapedBitsPerSample uint
}

// RiceSubframe holds rice-coding subframe fields used
// by residual coding methods rice1 and rice2.
type RiceSubframe struct {
	// Partition order used by fixed and FIR linear prediction decoding
	// (for residual coding methods, rice1 and rice2).
	PartOrder int
	// Rice partitions.
	Partitions []RicePartition
}

// SubHeader specifies the prediction method and order of a subframe.
type SubHeader struct {
	// Specifies the prediction method used to encode the audio sample of the subframe.
	Pred Pred
	// Prediction order used by fixed and FIR linear prediction decoding.
	Order int
	// Wasted bits-per-sample.
	Wasted uint
	// Residual coding method used by fixed and FIR linear prediction decoding.
	ResidualCodingMethod ResidualCodingMethod
	// Coefficients' precision in bits used by FIR linear prediction decoding.
	CoeffPrec uint
	// Predictor coefficient shift needed in bits used by FIR linear prediction decoding.
	CoeffShift int32
	// Predictor coefficients used by FIR linear prediction decoding.
	Coeffs []int32
	// Rice-coding subframe fields used by residual coding methods rice1 and rice2; nil if unused.
	RiceSubframe *RiceSubframe
}

// Subframe holds the decoded audio samples of a single channel of a
// frame.
type Subframe struct {
	SubHeader
	// NSamples is the number of samples held by the subframe, equal to
	// the parent frame's block size.
	NSamples int
	// Samples holds the subframe's decoded, unshifted audio samples.
	Samples []int32
}

// fixedCoeffs maps from fixed prediction order to the LPC coefficients
// used by fixed encoding.
//
//	x_0[n] = 0
//	x_1[n] = x[n-1]
//	x_2[n] = 2*x[n-1] - x[n-2]
//	x_3[n] = 3*x[n-1] - 3*x[n-2] + x[n-3]
//	x_4[n] = 4*x[n-1] - 6*x[n-2] + 4*x[n-3] - x[n-4]
var fixedCoeffs = [...][]int32{
	0: {},
	1: {1},
	2: {2, -1},
	3: {3, -3, 1},
	4: {4, -6, 4, -1},
}

func parseSubframe(r *bitstream.Reader, nsamples int, bps uint) (*Subframe, error) {
	sub := &Subframe{NSamples: nsamples}
	sh, err := parseSubHeader(r)
	if err != nil {
		return nil, err
	}
	sub.SubHeader = sh

	effBps := bps - sh.Wasted
	switch sh.Pred {
	case PredConstant:
		err = sub.decodeConstant(r, effBps)
	case PredVerbatim:
		err = sub.decodeVerbatim(r, effBps)
	case PredFixed:
		err = sub.decodeFixed(r, effBps)
	case PredFIR:
		err = sub.decodeFIR(r, effBps)
	default:
		err = errors.Errorf("frame: unknown subframe prediction method %d", sh.Pred)
	}
	if err != nil {
		return nil, err
	}

	if sh.Wasted > 0 {
		for i, s := range sub.Samples {
			sub.Samples[i] = s << sh.Wasted
		}
	}
	return sub, nil
}

func parseSubHeader(r *bitstream.Reader) (SubHeader, error) {
	var sh SubHeader
	pad, err := r.ReadBool()
	if err != nil {
		return sh, err
	}
	if pad {
		return sh, errors.New("frame: invalid padding bit in subframe header; must be 0")
	}

	typ, err := r.ReadUnsigned(6)
	if err != nil {
		return sh, err
	}
	switch {
	case typ == 0:
		sh.Pred = PredConstant
	case typ == 1:
		sh.Pred = PredVerbatim
	case typ < 8:
		return sh, errors.Errorf("frame: invalid subframe prediction method; reserved bit pattern %06b", typ)
	case typ < 16:
		order := int(typ) & 0x07
		if order > 4 {
			return sh, errors.Errorf("frame: invalid fixed subframe order; reserved bit pattern %06b", typ)
		}
		sh.Pred = PredFixed
		sh.Order = order
	case typ < 32:
		return sh, errors.Errorf("frame: invalid subframe prediction method; reserved bit pattern %06b", typ)
	default:
		sh.Pred = PredFIR
		sh.Order = int(typ&0x1F) + 1
	}

	hasWasted, err := r.ReadBool()
	if err != nil {
		return sh, err
	}
	if hasWasted {
		n, err := r.ReadUnary(1)
		if err != nil {
			return sh, err
		}
		sh.Wasted = uint(n) + 1
	}
	return sh, nil
}

func (sub *Subframe) decodeConstant(r *bitstream.Reader, bps uint) error {
	x, err := r.ReadSigned(bps)
	if err != nil {
		return err
	}
	sub.Samples = make([]int32, sub.NSamples)
	for i := range sub.Samples {
		sub.Samples[i] = x
	}
	return nil
}

func (sub *Subframe) decodeVerbatim(r *bitstream.Reader, bps uint) error {
	sub.Samples = make([]int32, sub.NSamples)
	for i := range sub.Samples {
		x, err := r.ReadSigned(bps)
		if err != nil {
			return err
		}
		sub.Samples[i] = x
	}
	return nil
}

func (sub *Subframe) decodeFixed(r *bitstream.Reader, bps uint) error {
	order := sub.Order
	warm := make([]int32, order)
	for i := range warm {
		x, err := r.ReadSigned(bps)
		if err != nil {
			return err
		}
		warm[i] = x
	}

	residuals, err := sub.decodeResidual(r, order)
	if err != nil {
		return err
	}
	sub.Samples = predict(fixedCoeffs[order], warm, residuals, 0)
	return nil
}

func (sub *Subframe) decodeFIR(r *bitstream.Reader, bps uint) error {
	order := sub.Order
	warm := make([]int32, order)
	for i := range warm {
		x, err := r.ReadSigned(bps)
		if err != nil {
			return err
		}
		warm[i] = x
	}

	precBits, err := r.ReadUnsigned(4)
	if err != nil {
		return err
	}
	if precBits == 0xF {
		return errors.New("frame: invalid quantized LPC coefficient precision; reserved bit pattern 1111")
	}
	sub.CoeffPrec = uint(precBits) + 1

	shift, err := r.ReadSigned(5)
	if err != nil {
		return err
	}
	if shift < 0 {
		shift = 0
	}
	sub.CoeffShift = shift

	coeffs := make([]int32, order)
	for i := range coeffs {
		c, err := r.ReadSigned(sub.CoeffPrec)
		if err != nil {
			return err
		}
		coeffs[i] = c
	}
	sub.Coeffs = coeffs

	residuals, err := sub.decodeResidual(r, order)
	if err != nil {
		return err
	}
	sub.Samples = predict(coeffs, warm, residuals, uint(shift))
	return nil
}

// predict reconstructs samples from warm-up values and residuals using
// an FIR predictor defined by coeffs, shifted right by shift bits.
func predict(coeffs []int32, warm []int32, residuals []int32, shift uint) []int32 {
	samples := make([]int32, len(warm)+len(residuals))
	copy(samples, warm)
	for i := len(warm); i < len(samples); i++ {
		var sum int64
		for j, c := range coeffs {
			sum += int64(c) * int64(samples[i-j-1])
		}
		samples[i] = residuals[i-len(warm)] + int32(sum>>shift)
	}
	return samples
}

func (sub *Subframe) decodeResidual(r *bitstream.Reader, predOrder int) ([]int32, error) {
	method, err := r.ReadUnsigned(2)
	if err != nil {
		return nil, err
	}
	var paramSize uint
	switch method {
	case 0:
		sub.ResidualCodingMethod = ResidualCodingMethodRice1
		paramSize = 4
	case 1:
		sub.ResidualCodingMethod = ResidualCodingMethodRice2
		paramSize = 5
	default:
		return nil, errors.Errorf("frame: invalid residual coding method; reserved bit pattern %02b", method)
	}

	partOrderBits, err := r.ReadUnsigned(4)
	if err != nil {
		return nil, err
	}
	partOrder := int(partOrderBits)
	nparts := 1 << uint(partOrder)
	if sub.NSamples%nparts != 0 {
		return nil, errors.Errorf("frame: sample count %d not evenly divisible into %d partitions", sub.NSamples, nparts)
	}

	rs := &RiceSubframe{PartOrder: partOrder, Partitions: make([]RicePartition, nparts)}
	sub.RiceSubframe = rs

	var residuals []int32
	for i := 0; i < nparts; i++ {
		param, err := r.ReadUnsigned(paramSize)
		if err != nil {
			return nil, err
		}

		var nsamples int
		if partOrder == 0 {
			nsamples = sub.NSamples - predOrder
		} else if i != 0 {
			nsamples = sub.NSamples / nparts
		} else {
			nsamples = sub.NSamples/nparts - predOrder
		}

		escapeCode := uint32(1)<<paramSize - 1
		if param == escapeCode {
			nbits, err := r.ReadUnsigned(5)
			if err != nil {
				return nil, err
			}
			rs.Partitions[i] = RicePartition{EscapedBitsPerSample: uint(nbits)}
			for j := 0; j < nsamples; j++ {
				x, err := r.ReadSigned(uint(nbits))
				if err != nil {
					return nil, err
				}
				residuals = append(residuals, x)
			}
			continue
		}

		rs.Partitions[i] = RicePartition{Param: uint(param)}
		for j := 0; j < nsamples; j++ {
			x, err := decodeRiceResidual(r, uint(param))
			if err != nil {
				return nil, err
			}
			residuals = append(residuals, x)
		}
	}
	return residuals, nil
}

func decodeRiceResidual(r *bitstream.Reader, k uint) (int32, error) {
	high, err := r.ReadUnary(1)
	if err != nil {
		return 0, err
	}
	low, err := r.ReadUnsigned(k)
	if err != nil {
		return 0, err
	}
	folded := uint32(high)<<k | low
	return bits.DecodeZigZag(folded), nil
}

// Residuals returns the prediction residuals the subframe's current
// Pred/Order/Coeffs/CoeffShift produce against its Samples. Encoders
// use it to measure candidate predictors before committing to one;
// Samples must already be at the subframe's effective (post-wasted-bits)
// width, the same precondition encode applies internally.
func (sub *Subframe) Residuals() []int32 {
	return sub.residuals()
}

// residuals returns the prediction residuals of the subframe, recomputed
// from its warm-up samples, coefficients and decoded samples.
func (sub *Subframe) residuals() []int32 {
	order := sub.Order
	coeffs := sub.Coeffs
	shift := uint(sub.CoeffShift)
	if sub.Pred == PredFixed {
		coeffs = fixedCoeffs[order]
		shift = 0
	}
	residuals := make([]int32, sub.NSamples-order)
	for i := order; i < sub.NSamples; i++ {
		var sum int64
		for j, c := range coeffs {
			sum += int64(c) * int64(sub.Samples[i-j-1])
		}
		residuals[i-order] = sub.Samples[i] - int32(sum>>shift)
	}
	return residuals
}

// Write encodes the subframe header and body to w, using the given
// effective bits-per-sample (after accounting for inter-channel
// decorrelation, but before any wasted-bits shift). Encoders use it to
// measure a candidate subframe (e.g. against a bitstream.Recorder)
// before deciding which channel assignment or predictor to commit to.
func (sub *Subframe) Write(w *bitstream.Writer, bps uint) error {
	return sub.encode(w, bps)
}

// encode writes the subframe header and body to w, using the given
// effective bits-per-sample (after accounting for inter-channel
// decorrelation, but before any wasted-bits shift).
func (sub *Subframe) encode(w *bitstream.Writer, bps uint) error {
	if err := sub.encodeHeader(w); err != nil {
		return err
	}

	effBps := bps - sub.Wasted
	if sub.Wasted > 0 {
		full := sub.Samples
		shifted := make([]int32, len(full))
		for i, s := range full {
			shifted[i] = s >> sub.Wasted
		}
		sub.Samples = shifted
		defer func() { sub.Samples = full }()
	}

	switch sub.Pred {
	case PredConstant:
		return sub.encodeConstant(w, effBps)
	case PredVerbatim:
		return sub.encodeVerbatim(w, effBps)
	case PredFixed:
		return sub.encodeFixedOrFIR(w, effBps)
	case PredFIR:
		return sub.encodeFixedOrFIR(w, effBps)
	default:
		return errors.Errorf("frame: unknown subframe prediction method %d", sub.Pred)
	}
}

func (sub *Subframe) encodeHeader(w *bitstream.Writer) error {
	if err := w.WriteBool(false); err != nil {
		return err
	}

	var typ uint32
	switch sub.Pred {
	case PredConstant:
		typ = 0x00
	case PredVerbatim:
		typ = 0x01
	case PredFixed:
		typ = 0x08 | uint32(sub.Order)
	case PredFIR:
		typ = 0x20 | uint32(sub.Order-1)
	default:
		return errors.Errorf("frame: unknown subframe prediction method %d", sub.Pred)
	}
	if err := w.WriteUnsigned(6, typ); err != nil {
		return err
	}

	hasWasted := sub.Wasted > 0
	if err := w.WriteBool(hasWasted); err != nil {
		return err
	}
	if hasWasted {
		if err := w.WriteUnary(1, uint64(sub.Wasted-1)); err != nil {
			return err
		}
	}
	return nil
}

func (sub *Subframe) encodeConstant(w *bitstream.Writer, bps uint) error {
	samples := sub.Samples
	sample := samples[0]
	for _, s := range samples[1:] {
		if s != sample {
			return errors.Errorf("frame: constant subframe sample mismatch; expected %d, got %d", sample, s)
		}
	}
	return w.WriteSigned(bps, sample)
}

func (sub *Subframe) encodeVerbatim(w *bitstream.Writer, bps uint) error {
	if sub.NSamples != len(sub.Samples) {
		return errors.Errorf("frame: sample count mismatch; expected %d, got %d", sub.NSamples, len(sub.Samples))
	}
	for _, sample := range sub.Samples {
		if err := w.WriteSigned(bps, sample); err != nil {
			return err
		}
	}
	return nil
}

func (sub *Subframe) encodeFixedOrFIR(w *bitstream.Writer, bps uint) error {
	order := sub.Order
	for _, sample := range sub.Samples[:order] {
		if err := w.WriteSigned(bps, sample); err != nil {
			return err
		}
	}

	if sub.Pred == PredFIR {
		if err := w.WriteUnsigned(4, uint32(sub.CoeffPrec)-1); err != nil {
			return err
		}
		if err := w.WriteSigned(5, sub.CoeffShift); err != nil {
			return err
		}
		for _, c := range sub.Coeffs {
			if err := w.WriteSigned(sub.CoeffPrec, c); err != nil {
				return err
			}
		}
	}

	residuals := sub.residuals()
	return sub.encodeResidual(w, residuals)
}

func (sub *Subframe) encodeResidual(w *bitstream.Writer, residuals []int32) error {
	var method uint32
	var paramSize uint
	switch sub.ResidualCodingMethod {
	case ResidualCodingMethodRice1:
		method, paramSize = 0, 4
	case ResidualCodingMethodRice2:
		method, paramSize = 1, 5
	default:
		return errors.Errorf("frame: unknown residual coding method %d", sub.ResidualCodingMethod)
	}
	if err := w.WriteUnsigned(2, method); err != nil {
		return err
	}

	rs := sub.RiceSubframe
	if err := w.WriteUnsigned(4, uint32(rs.PartOrder)); err != nil {
		return err
	}

	nparts := 1 << uint(rs.PartOrder)
	escapeCode := uint32(1)<<paramSize - 1
	idx := 0
	for i, part := range rs.Partitions {
		var nsamples int
		if rs.PartOrder == 0 {
			nsamples = sub.NSamples - sub.Order
		} else if i != 0 {
			nsamples = sub.NSamples / nparts
		} else {
			nsamples = sub.NSamples/nparts - sub.Order
		}

		if part.EscapedBitsPerSample > 0 {
			if err := w.WriteUnsigned(paramSize, escapeCode); err != nil {
				return err
			}
			if err := w.WriteUnsigned(5, uint32(part.EscapedBitsPerSample)); err != nil {
				return err
			}
			for j := 0; j < nsamples; j++ {
				if err := w.WriteSigned(part.EscapedBitsPerSample, residuals[idx]); err != nil {
					return err
				}
				idx++
			}
			continue
		}

		if err := w.WriteUnsigned(paramSize, uint32(part.Param)); err != nil {
			return err
		}
		for j := 0; j < nsamples; j++ {
			if err := encodeRiceResidual(w, part.Param, residuals[idx]); err != nil {
				return err
			}
			idx++
		}
	}
	return nil
}

func encodeRiceResidual(w *bitstream.Writer, k uint, residual int32) error {
	folded := bits.EncodeZigZag(residual)
	high := folded >> k
	low := folded & (uint32(1)<<k - 1)
	if err := w.WriteUnary(1, uint64(high)); err != nil {
		return err
	}
	return w.WriteUnsigned(k, low)
}
