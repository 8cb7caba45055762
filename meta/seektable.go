package meta

import "github.com/sabletide/flac/bitstream"

// PlaceholderPoint is the sample number used for placeholder seek
// points; their Offset and NSamples fields are undefined.
const PlaceholderPoint = 0xFFFFFFFFFFFFFFFF

// A SeekPoint specifies the byte offset and
// initial sample number of a given target frame.
type SeekPoint struct {
	// Sample number of the first sample in the target frame,
	// or 0xFFFFFFFFFFFFFFFF for a placeholder point.
	SampleNum uint64
	// Offset in bytes from the first byte of
	// the first frame header to the first byte of
	// the target frame's header.
	Offset uint64
	// Number of samples in the target frame.
	NSamples uint16
}

// SeekTable contains one or more pre-calculated audio frame seek points.
type SeekTable struct {
	Points []SeekPoint // one or more seek points
}

// seek points are 18 bytes each: 64-bit sample number, 64-bit byte
// offset, 16-bit sample count.
const seekPointSize = 18

func (st *SeekTable) parse(r *bitstream.Reader, length int64) error {
	n := int(length / seekPointSize)
	st.Points = make([]SeekPoint, n)
	for i := range st.Points {
		p := &st.Points[i]
		var err error
		if p.SampleNum, err = r.ReadU64(64); err != nil {
			return err
		}
		if p.Offset, err = r.ReadU64(64); err != nil {
			return err
		}
		nsamples, err := r.ReadUnsigned(16)
		if err != nil {
			return err
		}
		p.NSamples = uint16(nsamples)
	}
	return nil
}

func (st *SeekTable) encode(w *bitstream.Writer) error {
	for _, p := range st.Points {
		if err := w.WriteU64(64, p.SampleNum); err != nil {
			return err
		}
		if err := w.WriteU64(64, p.Offset); err != nil {
			return err
		}
		if err := w.WriteUnsigned(16, uint32(p.NSamples)); err != nil {
			return err
		}
	}
	return nil
}
