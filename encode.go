package flac

import (
	"crypto/md5"
	"hash"
	"io"

	"github.com/pkg/errors"

	"github.com/sabletide/flac/bitstream"
	"github.com/sabletide/flac/frame"
	"github.com/sabletide/flac/meta"
)

// Encoder writes a FLAC stream: the signature, the StreamInfo metadata
// block (and any additional blocks supplied at construction), followed
// by zero or more audio frames written through WriteFrame, WriteSamples
// or EncodePCM.
type Encoder struct {
	w    *bitstream.Writer
	Info *meta.StreamInfo

	// FrameSizes records the encoded byte size and PCM frame count of
	// every frame written so far, in stream order, sufficient for an
	// external caller to build a seek table.
	FrameSizes []FrameSize

	opts        EncoderOptions
	md5sum      hash.Hash
	curFrameNum uint64
	nsamples    uint64

	nframes      uint64
	frameSizeMin uint32
	frameSizeMax uint32

	siHeaderPos *bitstream.Pos
	siIsLast    bool
}

// NewEncoder creates a new Encoder, writing the FLAC signature and the
// given metadata blocks to w. info is encoded as the first (mandatory)
// StreamInfo block; blocks are encoded afterward in order, with the
// last one marked IsLast. If w also implements io.Seeker, Close patches
// the StreamInfo block's sample count, frame-size range and MD5 fields
// with the values accumulated from WriteSamples/EncodePCM.
func NewEncoder(w io.Writer, info *meta.StreamInfo, blocks ...*meta.Block) (*Encoder, error) {
	var bw *bitstream.Writer
	if ws, ok := w.(interface {
		io.Writer
		io.Seeker
	}); ok {
		bw = bitstream.NewWriterSeeker(ws)
	} else {
		bw = bitstream.NewWriter(w)
	}
	if err := bw.WriteBytes(flacSignature); err != nil {
		return nil, errors.Wrap(err, "flac: unable to write FLAC signature")
	}

	enc := &Encoder{w: bw, Info: info, opts: DefaultEncoderOptions().withDefaults(), md5sum: md5.New()}

	if bw.Positionable() {
		if pos, err := bw.GetPos(); err == nil {
			enc.siHeaderPos = pos
		}
	}

	enc.siIsLast = len(blocks) == 0
	siBlock := &meta.Block{
		Header: meta.Header{Type: meta.TypeStreamInfo, IsLast: enc.siIsLast},
		Body:   info,
	}
	if err := siBlock.Write(bw); err != nil {
		return nil, errors.Wrap(err, "flac: unable to write stream info block")
	}

	for i, block := range blocks {
		block.IsLast = i == len(blocks)-1
		if err := block.Write(bw); err != nil {
			return nil, errors.Wrapf(err, "flac: unable to write metadata block %d", i)
		}
	}

	return enc, nil
}

// SetOptions replaces the encoder's subframe/channel-assignment search
// settings used by WriteSamples and EncodePCM. A zero BlockSize,
// QLPPrecision or MaxPartitionOrder falls back to DefaultEncoderOptions;
// MaxLPCOrder, MidSide and ExhaustiveSearch are used as given.
func (enc *Encoder) SetOptions(opts EncoderOptions) {
	enc.opts = opts.withDefaults()
}

// WriteFrame encodes f and appends it to the stream, tracking its
// encoded size for the frame-size fields reported by FrameSizeRange.
// Use this when frames are already fully predicted (e.g. re-encoding a
// parsed stream); use WriteSamples or EncodePCM to encode raw PCM.
func (enc *Encoder) WriteFrame(f *frame.Frame) error {
	rec := bitstream.NewRecorder()
	if err := f.Write(rec.Writer); err != nil {
		return errors.Wrap(err, "flac: unable to encode audio frame")
	}
	if err := rec.ByteAlign(); err != nil {
		return err
	}
	size := uint32(rec.BytesWritten())
	enc.trackFrameSize(size)
	enc.FrameSizes = append(enc.FrameSizes, FrameSize{ByteSize: size, PCMFrameCount: uint32(f.BlockSize)})
	enc.nsamples += uint64(f.BlockSize)
	enc.curFrameNum++
	return rec.Copy(enc.w)
}

func (enc *Encoder) trackFrameSize(size uint32) {
	if enc.frameSizeMin == 0 || size < enc.frameSizeMin {
		enc.frameSizeMin = size
	}
	if size > enc.frameSizeMax {
		enc.frameSizeMax = size
	}
	enc.nframes++
}

// FrameSizeRange returns the smallest and largest encoded frame size, in
// bytes, seen so far.
func (enc *Encoder) FrameSizeRange() (min, max uint32) {
	return enc.frameSizeMin, enc.frameSizeMax
}

// Close flushes any pending writes and, if the underlying writer
// supports seeking, patches the StreamInfo block with the final sample
// count, frame-size range and MD5 signature of the audio data written
// through WriteSamples/EncodePCM.
func (enc *Encoder) Close() error {
	if enc.siHeaderPos != nil {
		enc.Info.NSamples = enc.nsamples
		enc.Info.FrameSizeMin = enc.frameSizeMin
		enc.Info.FrameSizeMax = enc.frameSizeMax
		copy(enc.Info.MD5sum[:], enc.md5sum.Sum(nil))

		if err := enc.w.SetPos(enc.siHeaderPos); err != nil {
			return errors.Wrap(err, "flac: unable to seek back to stream info block")
		}
		// header type/length and body size are both fixed regardless of
		// field values, so rewriting the whole block in place is safe.
		siBlock := &meta.Block{
			Header: meta.Header{Type: meta.TypeStreamInfo, IsLast: enc.siIsLast},
			Body:   enc.Info,
		}
		if err := siBlock.Write(enc.w); err != nil {
			return errors.Wrap(err, "flac: unable to patch stream info block")
		}
	}
	return enc.w.Flush()
}

// bytesPerSample returns the little-endian byte width FLAC's MD5
// signature packs each PCM sample into for the given bits-per-sample.
func bytesPerSample(bps uint8) int {
	return int((bps + 7) / 8)
}

// updatePCMChecksum feeds deinterleaved PCM samples into the encoder's
// running MD5 hash in interleaved, little-endian byte order, matching
// the signature FLAC decoders verify audio data against.
func updatePCMChecksum(h hash.Hash, samples [][]int32, bps uint8) {
	if len(samples) == 0 {
		return
	}
	width := bytesPerSample(bps)
	n := len(samples[0])
	buf := make([]byte, width)
	for i := 0; i < n; i++ {
		for ch := range samples {
			s := samples[ch][i]
			for b := 0; b < width; b++ {
				buf[b] = byte(s >> uint(8*b))
			}
			h.Write(buf)
		}
	}
}
