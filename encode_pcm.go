package flac

import (
	"math"
	"math/bits"

	"github.com/pkg/errors"

	"github.com/sabletide/flac/bitstream"
	"github.com/sabletide/flac/frame"
	"github.com/sabletide/flac/internal/lpc"
)

// EncoderOptions configures the subframe/channel-assignment search the
// encoder performs while turning PCM samples into FLAC frames.
type EncoderOptions struct {
	// BlockSize is the number of inter-channel samples per frame.
	BlockSize int
	// MaxLPCOrder is the highest LPC order considered; 0 disables LPC
	// and restricts the encoder to FIXED/CONSTANT/VERBATIM subframes.
	MaxLPCOrder int
	// QLPPrecision is the bit width used to quantize LPC coefficients.
	QLPPrecision uint
	// MidSide enables building left/side, side/right and mid/side
	// candidate subframes for stereo input and keeping whichever
	// channel assignment encodes smallest.
	MidSide bool
	// ExhaustiveSearch tries every LPC order up to MaxLPCOrder instead
	// of the Levinson-Durbin error curve's estimated best order.
	ExhaustiveSearch bool
	// MaxPartitionOrder bounds the Rice partition order search.
	MaxPartitionOrder int
}

// DefaultEncoderOptions returns the settings a new Encoder starts with.
func DefaultEncoderOptions() EncoderOptions {
	return EncoderOptions{
		BlockSize:         4096,
		MaxLPCOrder:       8,
		QLPPrecision:      14,
		MidSide:           true,
		MaxPartitionOrder: 6,
	}
}

func (opts EncoderOptions) withDefaults() EncoderOptions {
	d := DefaultEncoderOptions()
	if opts.BlockSize <= 0 {
		opts.BlockSize = d.BlockSize
	}
	if opts.QLPPrecision == 0 {
		opts.QLPPrecision = d.QLPPrecision
	}
	if opts.MaxPartitionOrder <= 0 {
		opts.MaxPartitionOrder = d.MaxPartitionOrder
	}
	return opts
}

// FrameSize records the encoded byte size and PCM frame count of one
// audio frame, in stream order; WriteSamples and EncodePCM append one
// entry per frame, sufficient for an external seek-table builder.
type FrameSize struct {
	ByteSize      uint32
	PCMFrameCount uint32
}

// PCMSource supplies deinterleaved PCM samples to Encoder.EncodePCM.
type PCMSource interface {
	SampleRate() uint32
	Channels() uint8
	BitsPerSample() uint8
	// ReadPCM fills out[ch][:frames] with up to maxFrames samples per
	// channel, returning the number of frames actually read; 0, nil
	// signals end of stream.
	ReadPCM(maxFrames int, out [][]int32) (frames int, err error)
}

// EncodePCM reads src to exhaustion, writing one FLAC frame per
// BlockSize-sample block (the last block may be shorter).
func (enc *Encoder) EncodePCM(src PCMSource) error {
	nchan := int(src.Channels())
	bps := src.BitsPerSample()
	buf := make([][]int32, nchan)
	for ch := range buf {
		buf[ch] = make([]int32, enc.opts.BlockSize)
	}
	for {
		n, err := src.ReadPCM(enc.opts.BlockSize, buf)
		if err != nil {
			return errors.Wrap(err, "flac: unable to read PCM samples")
		}
		if n == 0 {
			return nil
		}
		block := make([][]int32, nchan)
		for ch := range buf {
			block[ch] = buf[ch][:n]
		}
		if err := enc.WriteSamples(block, uint32(src.SampleRate()), bps); err != nil {
			return err
		}
	}
}

// WriteSamples encodes one frame of deinterleaved PCM samples (one
// slice per channel, all the same length) choosing the channel
// assignment and per-subframe prediction method that encode smallest.
func (enc *Encoder) WriteSamples(samples [][]int32, sampleRate uint32, bps uint8) error {
	n := len(samples[0])
	updatePCMChecksum(enc.md5sum, samples, bps)
	enc.nsamples += uint64(n)

	hdr := frame.Header{
		BlockSize:     uint16(n),
		SampleRate:    sampleRate,
		BitsPerSample: bps,
		Num:           enc.curFrameNum,
	}

	var subframes []*frame.Subframe
	if len(samples) == 2 && enc.opts.MidSide {
		ch, err := chooseStereoSubframes(samples[0], samples[1], uint(bps), enc.opts)
		if err != nil {
			return err
		}
		hdr.Channels = ch.assignment
		subframes = ch.subframes
	} else {
		hdr.Channels = channelAssignment(len(samples))
		subframes = make([]*frame.Subframe, len(samples))
		for ch, s := range samples {
			subframes[ch] = chooseSubframe(s, uint(bps), enc.opts)
		}
	}

	f := &frame.Frame{Header: hdr, Subframes: subframes}

	rec := bitstream.NewRecorder()
	if err := f.Write(rec.Writer); err != nil {
		return errors.Wrap(err, "flac: unable to encode audio frame")
	}
	if err := rec.ByteAlign(); err != nil {
		return err
	}
	size := uint32(rec.BytesWritten())
	enc.trackFrameSize(size)
	enc.FrameSizes = append(enc.FrameSizes, FrameSize{ByteSize: size, PCMFrameCount: uint32(n)})
	enc.curFrameNum++
	return rec.Copy(enc.w)
}

type stereoChoice struct {
	assignment frame.Channels
	subframes  []*frame.Subframe
}

// chooseStereoSubframes builds left, right, mid and side candidate
// subframes and keeps whichever pairing (independent, left/side,
// side/right, mid/side) encodes to the fewest bits.
func chooseStereoSubframes(left, right []int32, bps uint, opts EncoderOptions) (stereoChoice, error) {
	n := len(left)
	mid := make([]int32, n)
	side := make([]int32, n)
	for i := range left {
		mid[i] = (left[i] + right[i]) >> 1
		side[i] = left[i] - right[i]
	}

	leftSub := chooseSubframe(left, bps, opts)
	rightSub := chooseSubframe(right, bps, opts)
	midSub := chooseSubframe(mid, bps, opts)
	sideSub := chooseSubframe(side, bps+1, opts)

	leftBits, err := subframeBits(leftSub, bps)
	if err != nil {
		return stereoChoice{}, err
	}
	rightBits, err := subframeBits(rightSub, bps)
	if err != nil {
		return stereoChoice{}, err
	}
	midBits, err := subframeBits(midSub, bps)
	if err != nil {
		return stereoChoice{}, err
	}
	sideBits, err := subframeBits(sideSub, bps+1)
	if err != nil {
		return stereoChoice{}, err
	}

	independent := leftBits + rightBits
	leftSide := leftBits + sideBits
	sideRight := sideBits + rightBits
	midSide := midBits + sideBits

	best := independent
	choice := stereoChoice{assignment: frame.ChannelsLR, subframes: []*frame.Subframe{leftSub, rightSub}}
	if leftSide < best {
		best = leftSide
		choice = stereoChoice{assignment: frame.ChannelsLeftSide, subframes: []*frame.Subframe{leftSub, sideSub}}
	}
	if sideRight < best {
		best = sideRight
		choice = stereoChoice{assignment: frame.ChannelsSideRight, subframes: []*frame.Subframe{sideSub, rightSub}}
	}
	if midSide < best {
		choice = stereoChoice{assignment: frame.ChannelsMidSide, subframes: []*frame.Subframe{midSub, sideSub}}
	}
	return choice, nil
}

// subframeBits measures the encoded bit length of a candidate subframe.
func subframeBits(sub *frame.Subframe, bps uint) (int64, error) {
	rec := bitstream.NewRecorder()
	if err := sub.Write(rec.Writer, bps); err != nil {
		return 0, errors.Wrap(err, "flac: unable to measure candidate subframe")
	}
	return rec.BitsWritten(), nil
}

// channelAssignment maps a channel count to the non-decorrelated FLAC
// channel assignment for that many channels.
func channelAssignment(nchan int) frame.Channels {
	switch nchan {
	case 1:
		return frame.ChannelsMono
	case 2:
		return frame.ChannelsLR
	case 3:
		return frame.ChannelsLRC
	case 4:
		return frame.ChannelsLRLsRs
	case 5:
		return frame.ChannelsLRCLsRs
	case 6:
		return frame.ChannelsLRCLfeLsRs
	case 7:
		return frame.ChannelsLRCLfeCsSlSr
	default:
		return frame.ChannelsLRCLfeLsRsSlSr
	}
}

// calculateWastedBits returns the number of trailing zero bits common
// to every sample, or 0 if any sample is odd or the block is silent
// throughout (wasted bits give silence no benefit over CONSTANT).
func calculateWastedBits(samples []int32) uint {
	wasted := uint(math.MaxUint8)
	for _, s := range samples {
		w := sampleWastedBits(s)
		if w == 0 {
			return 0
		}
		if w < wasted {
			wasted = w
		}
	}
	if wasted == math.MaxUint8 {
		return 0
	}
	return wasted
}

func sampleWastedBits(s int32) uint {
	if s == 0 {
		return math.MaxUint8
	}
	return uint(bits.TrailingZeros32(uint32(s)))
}

// chooseSubframe picks the cheapest of CONSTANT, FIXED and (if enabled)
// LPC prediction for samples, computing wasted bits first and working
// against the shifted sample values throughout.
func chooseSubframe(samples []int32, bps uint, opts EncoderOptions) *frame.Subframe {
	n := len(samples)
	wasted := calculateWastedBits(samples)

	work := samples
	if wasted > 0 {
		work = make([]int32, n)
		for i, s := range samples {
			work[i] = s >> wasted
		}
	}

	if isConstant(work) {
		return &frame.Subframe{
			SubHeader: frame.SubHeader{Pred: frame.PredConstant, Wasted: wasted},
			NSamples:  n,
			Samples:   samples,
		}
	}

	fixedOrder, fixedCost := bestFixedOrder(work)

	order, coeffs, prec, shift := fixedOrder, []int32(nil), uint(0), int32(0)
	best := fixedCost
	pred := frame.PredFixed

	if opts.MaxLPCOrder > 0 && n > opts.MaxLPCOrder+1 {
		lpcOrder, lpcCoeffs, lpcPrec, lpcShift, lpcCost, ok := bestLPC(work, bps, opts)
		if ok && lpcCost < best {
			order, coeffs, prec, shift = lpcOrder, lpcCoeffs, lpcPrec, lpcShift
			best = lpcCost
			pred = frame.PredFIR
		}
	}

	tmp := &frame.Subframe{
		SubHeader: frame.SubHeader{Pred: pred, Order: order, Coeffs: coeffs, CoeffPrec: prec, CoeffShift: shift},
		NSamples:  n,
		Samples:   work,
	}
	residuals := tmp.Residuals()
	method, rs := bestRiceParameters(residuals, order, opts.MaxPartitionOrder)

	return &frame.Subframe{
		SubHeader: frame.SubHeader{
			Pred: pred, Order: order, Wasted: wasted,
			ResidualCodingMethod: method,
			CoeffPrec:            prec, CoeffShift: shift, Coeffs: coeffs,
			RiceSubframe: rs,
		},
		NSamples: n,
		Samples:  samples,
	}
}

func isConstant(samples []int32) bool {
	for _, s := range samples[1:] {
		if s != samples[0] {
			return false
		}
	}
	return true
}

// bestFixedOrder tries fixed predictor orders 0-4, returning the order
// whose residual sequence (by successive differencing) has the
// smallest absolute sum, and an estimated bit cost for it.
func bestFixedOrder(samples []int32) (order int, cost float64) {
	n := len(samples)
	maxOrder := 4
	if n-1 < maxOrder {
		maxOrder = n - 1
	}
	if maxOrder < 0 {
		maxOrder = 0
	}

	cur := samples
	bestOrder := 0
	bestSum := absSum(cur)
	for o := 1; o <= maxOrder; o++ {
		next := make([]int32, len(cur)-1)
		for i := 1; i < len(cur); i++ {
			next[i-1] = cur[i] - cur[i-1]
		}
		cur = next
		if sum := absSum(cur); sum < bestSum {
			bestSum = sum
			bestOrder = o
		}
	}
	return bestOrder, estimateResidualBits(bestSum, n-bestOrder)
}

func absSum(values []int32) uint64 {
	var sum uint64
	for _, v := range values {
		if v < 0 {
			sum += uint64(-int64(v))
		} else {
			sum += uint64(v)
		}
	}
	return sum
}

// estimateResidualBits approximates the number of bits needed to Rice
// code n residuals whose absolute values sum to absSum.
func estimateResidualBits(absSum uint64, n int) float64 {
	if n <= 0 {
		return 0
	}
	mean := float64(absSum) / float64(n)
	return float64(n) * math.Log2(mean+1)
}

// bestLPC runs the Tukey/autocorrelation/Levinson-Durbin pipeline and
// quantizes coefficients for the chosen order, returning its estimated
// bit cost for comparison against the fixed predictor.
func bestLPC(samples []int32, bps uint, opts EncoderOptions) (order int, coeffs []int32, prec uint, shift int32, cost float64, ok bool) {
	n := len(samples)
	maxOrder := opts.MaxLPCOrder
	if maxOrder > n-1 {
		maxOrder = n - 1
	}
	if maxOrder < 1 {
		return 0, nil, 0, 0, 0, false
	}

	window := lpc.TukeyWindow(0.5, n)
	windowed := lpc.Window(samples, window)
	autoc := lpc.Autocorrelate(windowed, maxOrder)
	if autoc[0] == 0 {
		return 0, nil, 0, 0, 0, false
	}

	allCoeffs, errs := lpc.LevinsonDurbin(autoc, maxOrder)
	prec = opts.QLPPrecision

	orders := []int{lpc.EstimateBestOrder(bps, prec, n, errs)}
	if opts.ExhaustiveSearch {
		orders = orders[:0]
		for o := 1; o <= maxOrder; o++ {
			orders = append(orders, o)
		}
	}

	bestCost := math.MaxFloat64
	bestOrder := 0
	var bestCoeffs []int32
	var bestShift int32
	for _, o := range orders {
		qlp, sh := lpc.QuantizeCoefficients(allCoeffs[o-1], prec)
		residualAbsSum := lpcResidualAbsSum(samples, qlp, uint(sh))
		c := float64(o)*float64(bps+prec) + estimateResidualBits(residualAbsSum, n-o)
		if c < bestCost {
			bestCost = c
			bestOrder = o
			bestCoeffs = qlp
			bestShift = sh
		}
	}
	if bestOrder == 0 {
		return 0, nil, 0, 0, 0, false
	}
	return bestOrder, bestCoeffs, prec, bestShift, bestCost, true
}

func lpcResidualAbsSum(samples []int32, coeffs []int32, shift uint) uint64 {
	order := len(coeffs)
	var sum uint64
	for i := order; i < len(samples); i++ {
		var acc int64
		for j, c := range coeffs {
			acc += int64(c) * int64(samples[i-j-1])
		}
		residual := samples[i] - int32(acc>>shift)
		if residual < 0 {
			sum += uint64(-int64(residual))
		} else {
			sum += uint64(residual)
		}
	}
	return sum
}

// bestRiceParameters chooses a Rice partition order and per-partition
// parameter minimizing the estimated encoded size of residuals.
func bestRiceParameters(residuals []int32, predOrder int, maxPartitionOrder int) (frame.ResidualCodingMethod, *frame.RiceSubframe) {
	sampleCount := len(residuals) + predOrder
	if len(residuals) == 0 {
		return frame.ResidualCodingMethodRice1, &frame.RiceSubframe{
			PartOrder:  0,
			Partitions: []frame.RicePartition{{Param: 0}},
		}
	}

	maxOrder := maximumPartitionOrder(sampleCount, predOrder, maxPartitionOrder)
	bestTotal := uint64(math.MaxUint64)
	var bestOrder int
	var bestParams []uint

	for order := 0; order <= maxOrder; order++ {
		nparts := 1 << order
		params := make([]uint, nparts)
		var total uint64
		idx := 0
		for p := 0; p < nparts; p++ {
			partSamples := sampleCount/nparts - cond(p == 0, predOrder, 0)
			var sum uint64
			for j := 0; j < partSamples; j++ {
				r := residuals[idx+j]
				if r < 0 {
					sum += uint64(-int64(r))
				} else {
					sum += uint64(r)
				}
			}
			idx += partSamples

			var k uint
			if sum > uint64(partSamples) && partSamples > 0 {
				k = uint(math.Ceil(math.Log2(float64(sum) / float64(partSamples))))
				if k > 30 {
					k = 30
				}
			}
			params[p] = k

			var partBits uint64
			if partSamples > 0 {
				if k > 0 {
					partBits = 4 + (1+uint64(k))*uint64(partSamples) + (sum >> (k - 1)) - uint64(partSamples)/2
				} else {
					partBits = 4 + uint64(partSamples) + 2*sum - uint64(partSamples)/2
				}
			}
			total += partBits
		}
		if total < bestTotal {
			bestTotal = total
			bestOrder = order
			bestParams = params
		}
	}

	method := frame.ResidualCodingMethodRice1
	for _, k := range bestParams {
		if k > 14 {
			method = frame.ResidualCodingMethodRice2
		}
	}

	partitions := make([]frame.RicePartition, len(bestParams))
	for i, k := range bestParams {
		partitions[i] = frame.RicePartition{Param: k}
	}
	return method, &frame.RiceSubframe{PartOrder: bestOrder, Partitions: partitions}
}

// maximumPartitionOrder returns the largest partition order i such that
// sampleCount divides evenly into 2^i partitions, the first partition
// still holds at least one residual, and i does not exceed the caller's
// maxPartitionOrder.
func maximumPartitionOrder(sampleCount, predOrder, maxPartitionOrder int) int {
	i := 0
	for sampleCount%(1<<i) == 0 && sampleCount/(1<<i) > predOrder && i <= maxPartitionOrder {
		i++
	}
	if i > 0 {
		return i - 1
	}
	return 0
}

func cond(c bool, a, b int) int {
	if c {
		return a
	}
	return b
}
