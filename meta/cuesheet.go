package meta

import (
	"github.com/pkg/errors"

	"github.com/sabletide/flac/bitstream"
)

// A CueSheetTrackIndex specifies a position within a track.
type CueSheetTrackIndex struct {
	// Index point offset in samples, relative to the track offset.
	Offset uint64
	// Index point number;
	// subsequently incrementing by 1 and always unique within a track.
	Num uint8
}

// A CueSheetTrack specifies the offset, number and index points of a
// track within a cue sheet.
type CueSheetTrack struct {
	// Track offset in samples, relative to the beginning of the FLAC
	// audio stream.
	Offset uint64
	// Track number; never 0, and 170 or greater only for the lead-out
	// track on CD-DA media.
	Num uint8
	// International Standard Recording Code; empty if unset.
	ISRC string
	// Specifies if the track contains audio or data.
	IsAudio bool
	// Specifies if the track has pre-emphasis.
	HasPreEmphasis bool
	// Index points of the track.
	TrackIndexes []CueSheetTrackIndex
}

// CueSheet is used to specify the track and index points within a FLAC
// audio stream, mirroring the structure of a CD-DA cue sheet.
type CueSheet struct {
	// Media catalog number, in ASCII, usually the UPC/EAN code. If the
	// media catalog number is less than 128 characters it is null
	// padded to 128 bytes.
	MCN string
	// Number of lead-in samples; only significant for CD-DA media, where
	// it is always at least 2 seconds (2*44100 samples) and no more
	// than 10 minutes' worth of audio.
	LeadInSampleCount uint64
	// Specifies if the cue sheet corresponds to a Compact Disc.
	IsCompactDisc bool
	// Tracks of the cue sheet, always terminated by a lead-out track.
	Tracks []CueSheetTrack
}

const (
	cueSheetMCNSize        = 128
	cueSheetReservedSize   = 258
	cueSheetTrackISRCSize  = 12
	cueSheetTrackResSize   = 13
	cueSheetTrackIdxResLen = 3
)

func (cs *CueSheet) parse(r *bitstream.Reader) error {
	mcn, err := r.ReadBytes(cueSheetMCNSize)
	if err != nil {
		return err
	}
	cs.MCN = trimNull(mcn)

	if cs.LeadInSampleCount, err = r.ReadU64(64); err != nil {
		return err
	}

	isCD, err := r.ReadBool()
	if err != nil {
		return err
	}
	cs.IsCompactDisc = isCD

	if err := r.Skip(7 + cueSheetReservedSize*8); err != nil {
		return err
	}

	ntracks, err := r.ReadUnsigned(8)
	if err != nil {
		return err
	}
	cs.Tracks = make([]CueSheetTrack, ntracks)
	for i := range cs.Tracks {
		t := &cs.Tracks[i]
		if t.Offset, err = r.ReadU64(64); err != nil {
			return err
		}
		num, err := r.ReadUnsigned(8)
		if err != nil {
			return err
		}
		t.Num = uint8(num)
		isrc, err := r.ReadBytes(cueSheetTrackISRCSize)
		if err != nil {
			return err
		}
		t.ISRC = trimNull(isrc)

		isAudio, err := r.ReadBool()
		if err != nil {
			return err
		}
		t.IsAudio = !isAudio // flag bit is "is data track" in the wire format
		preEmph, err := r.ReadBool()
		if err != nil {
			return err
		}
		t.HasPreEmphasis = preEmph
		if err := r.Skip(6 + cueSheetTrackResSize*8); err != nil {
			return err
		}
		nidx, err := r.ReadUnsigned(8)
		if err != nil {
			return err
		}
		t.TrackIndexes = make([]CueSheetTrackIndex, nidx)
		for j := range t.TrackIndexes {
			idx := &t.TrackIndexes[j]
			if idx.Offset, err = r.ReadU64(64); err != nil {
				return err
			}
			num, err := r.ReadUnsigned(8)
			if err != nil {
				return err
			}
			idx.Num = uint8(num)
			if err := r.Skip(cueSheetTrackIdxResLen * 8); err != nil {
				return err
			}
		}
	}
	return cs.validate()
}

func (cs *CueSheet) validate() error {
	if len(cs.Tracks) == 0 {
		return errors.New("meta: cue sheet has no tracks")
	}
	last := cs.Tracks[len(cs.Tracks)-1]
	if cs.IsCompactDisc && last.Num != 170 {
		return errors.Errorf("meta: invalid lead-out track number (%d) for compact disc cue sheet", last.Num)
	}
	for _, t := range cs.Tracks[:len(cs.Tracks)-1] {
		if t.Num == 0 {
			return errors.New("meta: cue sheet track number must not be 0")
		}
		if cs.IsCompactDisc && t.Offset%588 != 0 {
			return errors.Errorf("meta: track offset (%d) not evenly divisible by 588 samples for compact disc cue sheet", t.Offset)
		}
	}
	return nil
}

func (cs *CueSheet) encode(w *bitstream.Writer) error {
	if err := w.WriteBytes(padNull(cs.MCN, cueSheetMCNSize)); err != nil {
		return err
	}
	if err := w.WriteU64(64, cs.LeadInSampleCount); err != nil {
		return err
	}
	if err := w.WriteBool(cs.IsCompactDisc); err != nil {
		return err
	}
	if err := w.WriteUnsigned(7, 0); err != nil {
		return err
	}
	if err := w.WriteBytes(make([]byte, cueSheetReservedSize)); err != nil {
		return err
	}
	if err := w.WriteUnsigned(8, uint32(len(cs.Tracks))); err != nil {
		return err
	}
	for _, t := range cs.Tracks {
		if err := w.WriteU64(64, t.Offset); err != nil {
			return err
		}
		if err := w.WriteUnsigned(8, uint32(t.Num)); err != nil {
			return err
		}
		if err := w.WriteBytes(padNull(t.ISRC, cueSheetTrackISRCSize)); err != nil {
			return err
		}
		if err := w.WriteBool(!t.IsAudio); err != nil {
			return err
		}
		if err := w.WriteBool(t.HasPreEmphasis); err != nil {
			return err
		}
		if err := w.WriteUnsigned(6, 0); err != nil {
			return err
		}
		if err := w.WriteBytes(make([]byte, cueSheetTrackResSize)); err != nil {
			return err
		}
		if err := w.WriteUnsigned(8, uint32(len(t.TrackIndexes))); err != nil {
			return err
		}
		for _, idx := range t.TrackIndexes {
			if err := w.WriteU64(64, idx.Offset); err != nil {
				return err
			}
			if err := w.WriteUnsigned(8, uint32(idx.Num)); err != nil {
				return err
			}
			if err := w.WriteBytes(make([]byte, cueSheetTrackIdxResLen)); err != nil {
				return err
			}
		}
	}
	return nil
}

func trimNull(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func padNull(s string, n int) []byte {
	buf := make([]byte, n)
	copy(buf, s)
	return buf
}
