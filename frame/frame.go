// Package frame implements access to FLAC audio frames.
// FLAC encoders divide the audio stream into blocks through a process called blocking.
// A block contains uncoded audio samples from all channels in a short period of time.
// Each audio block is divided into sub-blocks, one per channel.
// There is often a correlation between the left and right channels of stereo audio.
// Using inter-channel decorrelation,
// it is possible to store only one of the channels and the difference between them,
// or store the average of the channels and their difference.
// The encoder decorrelates audio samples as follows:
//
//	mid = (left + right)/2 // average of the channels
//	side = left - right    // difference between the channels
//
// Blocks are encoded using different prediction methods and stored in frames.
// Blocks and sub-blocks contain unencoded audio samples,
// while frames and sub-frames contain encoded audio samples.
// A FLAC stream contains one or more audio frames.
package frame

import (
	"github.com/pkg/errors"

	"github.com/sabletide/flac/bitstream"
	"github.com/sabletide/flac/internal/hashutil/crc16"
	"github.com/sabletide/flac/internal/hashutil/crc8"
	"github.com/sabletide/flac/internal/utf8"
	"github.com/sabletide/flac/meta"
)

// Channels specifies the number of channels (subframes) that exist in a frame,
// their order and possible inter-channel decorrelation.
type Channels uint8

// Channel assignments.
const (
	ChannelsMono           Channels = iota // 1 channel: mono
	ChannelsLR                             // 2 channels: left, right
	ChannelsLRC                            // 3 channels: left, right, center
	ChannelsLRLsRs                         // 4 channels: left, right, left surround, right surround
	ChannelsLRCLsRs                        // 5 channels: left, right, center, left surround, right surround
	ChannelsLRCLfeLsRs                     // 6 channels: left, right, center, LFE, left surround, right surround
	ChannelsLRCLfeCsSlSr                   // 7 channels: left, right, center, LFE, center surround, side left, side right
	ChannelsLRCLfeLsRsSlSr                 // 8 channels: left, right, center, LFE, left surround, right surround, side left, side right
	ChannelsLeftSide                       // 2 channels: left, side; using inter-channel decorrelation
	ChannelsSideRight                      // 2 channels: side, right; using inter-channel decorrelation
	ChannelsMidSide                        // 2 channels: mid, side; using inter-channel decorrelation
)

var channelCounts = [...]int{
	ChannelsMono:           1,
	ChannelsLR:             2,
	ChannelsLRC:            3,
	ChannelsLRLsRs:         4,
	ChannelsLRCLsRs:        5,
	ChannelsLRCLfeLsRs:     6,
	ChannelsLRCLfeCsSlSr:   7,
	ChannelsLRCLfeLsRsSlSr: 8,
	ChannelsLeftSide:       2,
	ChannelsSideRight:      2,
	ChannelsMidSide:        2,
}

// Count returns the number of subframes (channels) stored for this channel
// assignment.
func (ch Channels) Count() int {
	return channelCounts[ch]
}

func (ch Channels) String() string {
	switch ch {
	case ChannelsMono:
		return "mono"
	case ChannelsLR:
		return "left/right"
	case ChannelsLRC:
		return "left/right/center"
	case ChannelsLRLsRs:
		return "left/right/left surround/right surround"
	case ChannelsLRCLsRs:
		return "left/right/center/left surround/right surround"
	case ChannelsLRCLfeLsRs:
		return "left/right/center/LFE/left surround/right surround"
	case ChannelsLRCLfeCsSlSr:
		return "left/right/center/LFE/center surround/side left/side right"
	case ChannelsLRCLfeLsRsSlSr:
		return "left/right/center/LFE/left surround/right surround/side left/side right"
	case ChannelsLeftSide:
		return "left/side"
	case ChannelsSideRight:
		return "side/right"
	case ChannelsMidSide:
		return "mid/side"
	default:
		return "<reserved>"
	}
}

// SyncCode marks the start of a frame header. Bit representation:
// 11111111111110.
const SyncCode = 0x3FFE

// Header contains information about the encoded samples of a frame, such
// as its block size, sample rate, channel assignment and sample size.
type Header struct {
	// Specifies if the frame has a variable (true) or fixed (false) block
	// size.
	HasVariableBlockSize bool
	// Block size in inter-channel samples.
	BlockSize uint16
	// Sample rate in Hz; 0 means the value must be taken from StreamInfo.
	SampleRate uint32
	// Channel assignment.
	Channels Channels
	// Sample size in bits-per-sample; 0 means the value must be taken
	// from StreamInfo.
	BitsPerSample uint8
	// Frame number, used by fixed block size streams, or starting sample
	// number, used by variable block size streams.
	Num uint64
}

// SampleNumber returns the frame's starting sample number.
func (h Header) SampleNumber() uint64 {
	if h.HasVariableBlockSize {
		return h.Num
	}
	return h.Num * uint64(h.BlockSize)
}

// Frame holds the header and decoded subframes of an audio frame.
type Frame struct {
	Header
	// Subframes contains one decoded subframe per channel.
	Subframes []*Subframe
}

// New parses and returns the header of the next audio frame; the
// subframes are left unparsed. Call Parse to decode a frame in full.
func New(r *bitstream.Reader) (*Frame, error) {
	h, err := ParseHeader(r)
	if err != nil {
		return nil, err
	}
	return &Frame{Header: h}, nil
}

// Parse decodes the header, subframes and footer checksum of the next
// audio frame in full. No StreamInfo is available to resolve a frame
// header field left at its "defer to StreamInfo" code-0 value; call
// ParseWithInfo when decoding frames from a stream that carries one.
func Parse(r *bitstream.Reader) (*Frame, error) {
	return parseFrame(r, nil)
}

// ParseWithInfo decodes the header, subframes and footer checksum of
// the next audio frame, resolving any header field left at its code-0
// "defer to StreamInfo" value from info and cross-checking explicit
// header fields against it; a disagreement is fatal.
func ParseWithInfo(r *bitstream.Reader, info *meta.StreamInfo) (*Frame, error) {
	return parseFrame(r, info)
}

func parseFrame(r *bitstream.Reader, info *meta.StreamInfo) (*Frame, error) {
	cs := crc16.New()
	r.AddCallback(func(b byte) { cs.Write([]byte{b}) })

	f, err := New(r)
	if err != nil {
		r.PopCallback()
		return nil, err
	}

	if info != nil {
		if err := f.resolveAgainstStreamInfo(info); err != nil {
			r.PopCallback()
			return nil, err
		}
	}

	bps := uint(f.BitsPerSample)
	nchannels := f.Channels.Count()
	f.Subframes = make([]*Subframe, nchannels)
	for ch := 0; ch < nchannels; ch++ {
		subBps := bps
		// left/side, side/right and mid/side decorrelation widen the
		// side channel by one bit.
		switch f.Channels {
		case ChannelsLeftSide, ChannelsMidSide:
			if ch == 1 {
				subBps++
			}
		case ChannelsSideRight:
			if ch == 0 {
				subBps++
			}
		}
		sub, err := parseSubframe(r, int(f.BlockSize), subBps)
		if err != nil {
			r.PopCallback()
			return nil, err
		}
		f.Subframes[ch] = sub
	}

	r.ByteAlign()

	if _, err := r.PopCallback(); err != nil {
		return nil, err
	}
	want, err := r.ReadU64(16)
	if err != nil {
		return nil, err
	}
	if got := uint64(cs.Sum16()); got != want {
		return nil, errors.Errorf("frame: footer checksum mismatch; expected 0x%04X, got 0x%04X", want, got)
	}

	f.decorrelate()
	return f, nil
}

// decorrelate converts left/side, side/right and mid/side subframes back
// into independent left/right channels.
func (f *Frame) decorrelate() {
	switch f.Channels {
	case ChannelsLeftSide:
		left, side := f.Subframes[0].Samples, f.Subframes[1].Samples
		for i, l := range left {
			side[i] = l - side[i]
		}
	case ChannelsSideRight:
		side, right := f.Subframes[0].Samples, f.Subframes[1].Samples
		for i, r := range right {
			side[i] = r + side[i]
		}
	case ChannelsMidSide:
		mid, side := f.Subframes[0].Samples, f.Subframes[1].Samples
		for i := range mid {
			s := side[i]
			m := mid[i]<<1 | (s & 1)
			mid[i] = (m + s) >> 1
			side[i] = (m - s) >> 1
		}
	}
}

// resolveAgainstStreamInfo fills in any header field left at its
// code-0 "defer to StreamInfo" value and cross-checks explicit header
// fields against the stream's StreamInfo, per the frame decode
// algorithm's cross-check step.
func (f *Frame) resolveAgainstStreamInfo(info *meta.StreamInfo) error {
	if f.SampleRate == 0 {
		f.SampleRate = info.SampleRate
	} else if info.SampleRate != 0 && f.SampleRate != info.SampleRate {
		return errors.Errorf("frame: sample rate %d disagrees with stream info sample rate %d", f.SampleRate, info.SampleRate)
	}

	if f.BitsPerSample == 0 {
		f.BitsPerSample = info.BitsPerSample
	} else if info.BitsPerSample != 0 && f.BitsPerSample != info.BitsPerSample {
		return errors.Errorf("frame: bits per sample %d disagrees with stream info bits per sample %d", f.BitsPerSample, info.BitsPerSample)
	}

	if info.NChannels != 0 && f.Channels.Count() != int(info.NChannels) {
		return errors.Errorf("frame: channel count %d disagrees with stream info channel count %d", f.Channels.Count(), info.NChannels)
	}

	if info.BlockSizeMax != 0 && f.BlockSize > info.BlockSizeMax {
		return errors.Errorf("frame: block size %d exceeds stream info maximum block size %d", f.BlockSize, info.BlockSizeMax)
	}

	return nil
}

// ParseHeader parses and returns a new frame header, verifying its
// 8-bit CRC.
func ParseHeader(r *bitstream.Reader) (Header, error) {
	cs := crc8.New()
	r.AddCallback(func(b byte) { cs.Write([]byte{b}) })
	h, err := parseHeaderFields(r)
	if _, popErr := r.PopCallback(); err == nil && popErr != nil {
		err = popErr
	}
	if err != nil {
		return h, err
	}

	want, err := r.ReadByte()
	if err != nil {
		return h, err
	}
	if got := cs.Sum8(); got != want {
		return h, errors.Errorf("frame: header checksum mismatch; expected 0x%02X, got 0x%02X", want, got)
	}
	return h, nil
}

func parseHeaderFields(r *bitstream.Reader) (Header, error) {
	var h Header
	sync, err := r.ReadUnsigned(14)
	if err != nil {
		return h, err
	}
	if sync != SyncCode {
		return h, errors.Errorf("frame: invalid sync code; expected 0x%04X, got 0x%04X", SyncCode, sync)
	}

	reserved, err := r.ReadBool()
	if err != nil {
		return h, err
	}
	if reserved {
		return h, errors.New("frame: invalid reserved bit in frame header; must be 0")
	}

	variable, err := r.ReadBool()
	if err != nil {
		return h, err
	}
	h.HasVariableBlockSize = variable

	blockSizeCode, err := r.ReadUnsigned(4)
	if err != nil {
		return h, err
	}
	sampleRateCode, err := r.ReadUnsigned(4)
	if err != nil {
		return h, err
	}
	channelCode, err := r.ReadUnsigned(4)
	if err != nil {
		return h, err
	}
	if channelCode > 10 {
		return h, errors.Errorf("frame: invalid channel assignment; reserved bit pattern %04b", channelCode)
	}
	h.Channels = Channels(channelCode)

	bpsCode, err := r.ReadUnsigned(3)
	if err != nil {
		return h, err
	}
	switch bpsCode {
	case 0:
		h.BitsPerSample = 0
	case 1:
		h.BitsPerSample = 8
	case 2:
		h.BitsPerSample = 12
	case 3, 7:
		return h, errors.Errorf("frame: invalid sample size; reserved bit pattern %03b", bpsCode)
	case 4:
		h.BitsPerSample = 16
	case 5:
		h.BitsPerSample = 20
	case 6:
		h.BitsPerSample = 24
	}

	reserved, err = r.ReadBool()
	if err != nil {
		return h, err
	}
	if reserved {
		return h, errors.New("frame: invalid reserved bit in frame header; must be 0")
	}

	num, err := utf8.Decode(r)
	if err != nil {
		return h, err
	}
	h.Num = num

	switch {
	case blockSizeCode == 0:
		return h, errors.New("frame: invalid block size; reserved bit pattern")
	case blockSizeCode == 1:
		h.BlockSize = 192
	case blockSizeCode >= 2 && blockSizeCode <= 5:
		h.BlockSize = 576 << (blockSizeCode - 2)
	case blockSizeCode == 6:
		x, err := r.ReadUnsigned(8)
		if err != nil {
			return h, err
		}
		h.BlockSize = uint16(x) + 1
	case blockSizeCode == 7:
		x, err := r.ReadUnsigned(16)
		if err != nil {
			return h, err
		}
		h.BlockSize = uint16(x) + 1
	default:
		h.BlockSize = 256 << (blockSizeCode - 8)
	}

	switch sampleRateCode {
	case 0:
		h.SampleRate = 0
	case 1:
		h.SampleRate = 88200
	case 2:
		h.SampleRate = 176400
	case 3:
		h.SampleRate = 192000
	case 4:
		h.SampleRate = 8000
	case 5:
		h.SampleRate = 16000
	case 6:
		h.SampleRate = 22050
	case 7:
		h.SampleRate = 24000
	case 8:
		h.SampleRate = 32000
	case 9:
		h.SampleRate = 44100
	case 10:
		h.SampleRate = 48000
	case 11:
		h.SampleRate = 96000
	case 12:
		x, err := r.ReadUnsigned(8)
		if err != nil {
			return h, err
		}
		h.SampleRate = uint32(x) * 1000
	case 13:
		x, err := r.ReadUnsigned(16)
		if err != nil {
			return h, err
		}
		h.SampleRate = uint32(x)
	case 14:
		x, err := r.ReadUnsigned(16)
		if err != nil {
			return h, err
		}
		h.SampleRate = uint32(x) * 10
	case 15:
		return h, errors.New("frame: invalid sample rate; reserved bit pattern 1111")
	}

	return h, nil
}

// EncodeHeader encodes the given frame header, appending its 8-bit CRC.
func EncodeHeader(w *bitstream.Writer, h Header) error {
	cs := crc8.New()
	w.AddCallback(func(b byte) { cs.Write([]byte{b}) })
	err := encodeHeaderFields(w, h)
	if _, popErr := w.PopCallback(); err == nil && popErr != nil {
		err = popErr
	}
	if err != nil {
		return err
	}
	return w.WriteByte(cs.Sum8())
}

func encodeHeaderFields(w *bitstream.Writer, h Header) error {
	if err := w.WriteUnsigned(14, SyncCode); err != nil {
		return err
	}
	if err := w.WriteBool(false); err != nil {
		return err
	}
	if err := w.WriteBool(h.HasVariableBlockSize); err != nil {
		return err
	}

	blockSizeCode, blockSizeSuffixBits, blockSizeSuffix := encodeBlockSizeCode(h.BlockSize)
	if err := w.WriteUnsigned(4, blockSizeCode); err != nil {
		return err
	}

	sampleRateCode, sampleRateSuffixBits, sampleRateSuffix := encodeSampleRateCode(h.SampleRate)
	if err := w.WriteUnsigned(4, sampleRateCode); err != nil {
		return err
	}

	if err := w.WriteUnsigned(4, uint32(h.Channels)); err != nil {
		return err
	}

	bpsCode, err := encodeBitsPerSampleCode(h.BitsPerSample)
	if err != nil {
		return err
	}
	if err := w.WriteUnsigned(3, bpsCode); err != nil {
		return err
	}

	if err := w.WriteBool(false); err != nil {
		return err
	}

	if err := utf8.Encode(w, h.Num); err != nil {
		return err
	}

	if blockSizeSuffixBits > 0 {
		if err := w.WriteUnsigned(uint(blockSizeSuffixBits), blockSizeSuffix); err != nil {
			return err
		}
	}
	if sampleRateSuffixBits > 0 {
		if err := w.WriteUnsigned(uint(sampleRateSuffixBits), sampleRateSuffix); err != nil {
			return err
		}
	}
	return nil
}

func encodeBlockSizeCode(blockSize uint16) (code uint32, suffixBits uint8, suffix uint32) {
	switch blockSize {
	case 192:
		return 0x1, 0, 0
	case 576, 1152, 2304, 4608:
		n := 0
		for v := blockSize / 576; v > 1; v >>= 1 {
			n++
		}
		return uint32(0x2 + n), 0, 0
	case 256, 512, 1024, 2048, 4096, 8192, 16384, 32768:
		n := 0
		for v := blockSize / 256; v > 1; v >>= 1 {
			n++
		}
		return uint32(0x8 + n), 0, 0
	}
	if blockSize <= 256 {
		return 0x6, 8, uint32(blockSize) - 1
	}
	return 0x7, 16, uint32(blockSize) - 1
}

func encodeSampleRateCode(sampleRate uint32) (code uint32, suffixBits uint8, suffix uint32) {
	switch sampleRate {
	case 0:
		return 0, 0, 0
	case 88200:
		return 0x1, 0, 0
	case 176400:
		return 0x2, 0, 0
	case 192000:
		return 0x3, 0, 0
	case 8000:
		return 0x4, 0, 0
	case 16000:
		return 0x5, 0, 0
	case 22050:
		return 0x6, 0, 0
	case 24000:
		return 0x7, 0, 0
	case 32000:
		return 0x8, 0, 0
	case 44100:
		return 0x9, 0, 0
	case 48000:
		return 0xA, 0, 0
	case 96000:
		return 0xB, 0, 0
	}
	switch {
	case sampleRate <= 255000 && sampleRate%1000 == 0:
		return 0xC, 8, sampleRate / 1000
	case sampleRate <= 65535:
		return 0xD, 16, sampleRate
	default:
		return 0xE, 16, sampleRate / 10
	}
}

func encodeBitsPerSampleCode(bps uint8) (uint32, error) {
	switch bps {
	case 0:
		return 0, nil
	case 8:
		return 1, nil
	case 12:
		return 2, nil
	case 16:
		return 4, nil
	case 20:
		return 5, nil
	case 24:
		return 6, nil
	default:
		return 0, errors.Errorf("frame: unsupported sample size %d", bps)
	}
}

// Write encodes the frame header, subframes and 16-bit footer checksum,
// writing the result to w.
func (f *Frame) Write(w *bitstream.Writer) error {
	cs := crc16.New()
	w.AddCallback(func(b byte) { cs.Write([]byte{b}) })

	err := f.writeBody(w)
	if _, popErr := w.PopCallback(); err == nil && popErr != nil {
		err = popErr
	}
	if err != nil {
		return err
	}
	return w.WriteUnsigned(16, uint32(cs.Sum16()))
}

func (f *Frame) writeBody(w *bitstream.Writer) error {
	if err := EncodeHeader(w, f.Header); err != nil {
		return err
	}
	bps := uint(f.BitsPerSample)
	for ch, sub := range f.Subframes {
		subBps := bps
		switch f.Channels {
		case ChannelsLeftSide, ChannelsMidSide:
			if ch == 1 {
				subBps++
			}
		case ChannelsSideRight:
			if ch == 0 {
				subBps++
			}
		}
		if err := sub.encode(w, subBps); err != nil {
			return err
		}
	}
	return w.ByteAlign()
}
