package meta

import (
	"math/bits"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/sabletide/flac/bitstream"
)

// VorbisComment contains a list of name-value pairs.
type VorbisComment struct {
	Vendor string      // vendor name
	Tags   [][2]string // list of tags, each represented by a name-value pair
}

// ChannelMask looks for a WAVEFORMATEXTENSIBLE_CHANNEL_MASK tag whose
// number of set bits matches nchannels, returning it if present. A FLAC
// decoder uses this to override the channel layout implied by
// StreamInfo.NChannels alone, per the original decoder's
// flacdec_read_vorbis_comment.
func (vc *VorbisComment) ChannelMask(nchannels uint8) (mask uint32, ok bool) {
	for _, tag := range vc.Tags {
		if !strings.EqualFold(tag[0], "WAVEFORMATEXTENSIBLE_CHANNEL_MASK") {
			continue
		}
		v, err := strconv.ParseUint(strings.TrimPrefix(tag[1], "0x"), 16, 32)
		if err != nil {
			continue
		}
		if bits.OnesCount32(uint32(v)) == int(nchannels) {
			mask, ok = uint32(v), true
		}
	}
	return mask, ok
}

func (vc *VorbisComment) parse(r *bitstream.Reader) error {
	prev := r.Endian()
	r.SetEndian(bitstream.LittleEndian)
	defer r.SetEndian(prev)

	vendorLen, err := r.ReadUnsigned(32)
	if err != nil {
		return err
	}
	vendor, err := r.ReadBytes(int(vendorLen))
	if err != nil {
		return err
	}
	vc.Vendor = string(vendor)

	count, err := r.ReadUnsigned(32)
	if err != nil {
		return err
	}
	vc.Tags = make([][2]string, count)
	for i := range vc.Tags {
		vecLen, err := r.ReadUnsigned(32)
		if err != nil {
			return err
		}
		vec, err := r.ReadBytes(int(vecLen))
		if err != nil {
			return err
		}
		vector := string(vec)
		pos := strings.IndexByte(vector, '=')
		if pos == -1 {
			return errors.Errorf("meta: unable to locate '=' in vector %q", vector)
		}
		vc.Tags[i] = [2]string{vector[:pos], vector[pos+1:]}
	}
	return nil
}

func (vc *VorbisComment) encode(w *bitstream.Writer) error {
	prev := w.Endian()
	if err := w.SetEndian(bitstream.LittleEndian); err != nil {
		return err
	}
	defer w.SetEndian(prev)

	if err := w.WriteUnsigned(32, uint32(len(vc.Vendor))); err != nil {
		return err
	}
	if err := w.WriteBytes([]byte(vc.Vendor)); err != nil {
		return err
	}
	if err := w.WriteUnsigned(32, uint32(len(vc.Tags))); err != nil {
		return err
	}
	for _, tag := range vc.Tags {
		vector := tag[0] + "=" + tag[1]
		if err := w.WriteUnsigned(32, uint32(len(vector))); err != nil {
			return err
		}
		if err := w.WriteBytes([]byte(vector)); err != nil {
			return err
		}
	}
	return nil
}
