package flac

import (
	"bytes"
	"crypto/md5"
	"hash"

	"github.com/pkg/errors"

	"github.com/sabletide/flac/bitstream"
)

// PCMSink receives deinterleaved PCM samples decoded from a FLAC
// stream, one slice per channel, all of the same length.
type PCMSink interface {
	WritePCM(samples [][]int32) error
}

// Decoder drives a Stream frame-by-frame, delivering decoded PCM to a
// PCMSink and verifying the running MD5 signature against the stream's
// StreamInfo.MD5sum once decoding completes.
type Decoder struct {
	stream *Stream
	md5sum hash.Hash
}

// NewDecoder returns a Decoder driving stream.
func NewDecoder(stream *Stream) *Decoder {
	return &Decoder{stream: stream, md5sum: md5.New()}
}

// DecodeAll decodes every remaining frame of the stream, delivering
// each frame's samples to sink in channel-major order. If the stream's
// StreamInfo carries a non-zero MD5 signature, the accumulated audio
// data is checked against it once the stream is exhausted.
func (d *Decoder) DecodeAll(sink PCMSink) error {
	for {
		f, err := d.stream.ParseNext()
		if err != nil {
			if err == bitstream.ErrEndOfStream {
				break
			}
			return errors.Wrap(err, "flac: unable to decode audio frame")
		}

		samples := make([][]int32, len(f.Subframes))
		for ch, sub := range f.Subframes {
			samples[ch] = sub.Samples
		}
		updatePCMChecksum(d.md5sum, samples, d.stream.Info.BitsPerSample)

		if err := sink.WritePCM(samples); err != nil {
			return errors.Wrap(err, "flac: PCM sink rejected samples")
		}
	}

	var zero [md5.Size]byte
	if d.stream.Info.MD5sum != zero {
		if !bytes.Equal(d.md5sum.Sum(nil), d.stream.Info.MD5sum[:]) {
			return errors.New("flac: decoded audio does not match StreamInfo MD5 signature")
		}
	}
	return nil
}
