package meta

import (
	"crypto/md5"

	"github.com/pkg/errors"

	"github.com/sabletide/flac/bitstream"
)

// StreamInfo contains the basic properties of a FLAC audio stream,
// such as its sample rate and channel count.
// It is the only mandatory metadata block and must
// be present as the first metadata block of a FLAC stream.
type StreamInfo struct {
	// Minimum block size (in samples) used in the stream;
	// between 16 and 65535 samples.
	BlockSizeMin uint16
	// Maximum block size (in samples) used in the stream;
	// between 16 and 65535 samples.
	BlockSizeMax uint16
	// Minimum frame size in bytes; a 0 value implies unknown.
	FrameSizeMin uint32
	// Maximum frame size in bytes; a 0 value implies unknown.
	FrameSizeMax uint32
	// Sample rate in Hz; between 1 and 655350 Hz.
	SampleRate uint32
	// Number of channels; between 1 and 8 channels.
	NChannels uint8
	// Sample size in bits-per-sample; between 4 and 32 bits.
	BitsPerSample uint8
	// Total number of inter-channel samples in the stream.
	// One second of 44.1KHz audio will have 44100 samples regardless of the number of channels.
	// A 0 value implies unknown.
	NSamples uint64
	// MD5 checksum of the unencoded audio data.
	MD5sum [md5.Size]uint8
}

func (si *StreamInfo) parse(r *bitstream.Reader) error {
	var err error
	if si.BlockSizeMin, err = readU16(r, 16); err != nil {
		return err
	}
	if si.BlockSizeMax, err = readU16(r, 16); err != nil {
		return err
	}
	if si.FrameSizeMin, err = r.ReadUnsigned(24); err != nil {
		return err
	}
	if si.FrameSizeMax, err = r.ReadUnsigned(24); err != nil {
		return err
	}
	if si.SampleRate, err = r.ReadUnsigned(20); err != nil {
		return err
	}
	if si.SampleRate == 0 || si.SampleRate > 655350 {
		return errors.Errorf("meta: invalid stream info sample rate %d", si.SampleRate)
	}
	nchan, err := r.ReadUnsigned(3)
	if err != nil {
		return err
	}
	si.NChannels = uint8(nchan) + 1
	bps, err := r.ReadUnsigned(5)
	if err != nil {
		return err
	}
	si.BitsPerSample = uint8(bps) + 1
	if si.NSamples, err = r.ReadU64(36); err != nil {
		return err
	}
	return r.ReadBytesInto(si.MD5sum[:])
}

func (si *StreamInfo) encode(w *bitstream.Writer) error {
	if err := w.WriteUnsigned(16, uint32(si.BlockSizeMin)); err != nil {
		return err
	}
	if err := w.WriteUnsigned(16, uint32(si.BlockSizeMax)); err != nil {
		return err
	}
	if err := w.WriteUnsigned(24, si.FrameSizeMin); err != nil {
		return err
	}
	if err := w.WriteUnsigned(24, si.FrameSizeMax); err != nil {
		return err
	}
	if err := w.WriteUnsigned(20, si.SampleRate); err != nil {
		return err
	}
	if err := w.WriteUnsigned(3, uint32(si.NChannels)-1); err != nil {
		return err
	}
	if err := w.WriteUnsigned(5, uint32(si.BitsPerSample)-1); err != nil {
		return err
	}
	if err := w.WriteU64(36, si.NSamples); err != nil {
		return err
	}
	return w.WriteBytes(si.MD5sum[:])
}

func readU16(r *bitstream.Reader, n uint) (uint16, error) {
	v, err := r.ReadUnsigned(n)
	return uint16(v), err
}
