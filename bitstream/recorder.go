package bitstream

import (
	"io"

	"github.com/pkg/errors"
)

// recorderSink is an in-memory, randomly-addressable byte sink backing
// Recorder/LimitedRecorder.
type recorderSink struct {
	buf []byte
	pos int64
}

func (s *recorderSink) writeByte(b byte) error {
	if s.pos == int64(len(s.buf)) {
		s.buf = append(s.buf, b)
	} else {
		s.buf[s.pos] = b
	}
	s.pos++
	return nil
}

func (s *recorderSink) close() error { return nil }

func (s *recorderSink) tell() (int64, error) { return s.pos, nil }

func (s *recorderSink) seekTo(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = s.pos
	case io.SeekEnd:
		base = int64(len(s.buf))
	}
	np := base + offset
	if np < 0 || np > int64(len(s.buf)) {
		return 0, ErrNotSupported
	}
	s.pos = np
	return np, nil
}

// Recorder is a Writer backed by an in-memory buffer: its contents can be
// measured, patched via GetPos/SetPos, copied to another Writer, or
// discarded with Reset.
type Recorder struct {
	*Writer
	sink *recorderSink
}

// NewRecorder returns an empty, big-endian Recorder.
func NewRecorder() *Recorder {
	s := &recorderSink{}
	return &Recorder{Writer: &Writer{sink: s, endian: BigEndian}, sink: s}
}

// BitsWritten returns the total number of bits accepted so far, including
// any not-yet-flushed partial byte.
func (rec *Recorder) BitsWritten() int64 { return rec.Writer.bitsWritten }

// BytesWritten returns the number of whole bytes committed to the buffer.
func (rec *Recorder) BytesWritten() int64 { return rec.sink.pos }

// Data returns the recorded bytes. The slice is owned by the Recorder and
// must not be retained across a Reset.
func (rec *Recorder) Data() []byte { return rec.sink.buf }

// Reset discards all recorded data, returning the Recorder to its initial
// empty state.
func (rec *Recorder) Reset() {
	rec.sink.buf = rec.sink.buf[:0]
	rec.sink.pos = 0
	rec.Writer.pending = 0
	rec.Writer.count = 0
	rec.Writer.bitsWritten = 0
	rec.Writer.err = nil
}

// Copy writes the recorded bytes to target.
func (rec *Recorder) Copy(target *Writer) error {
	return target.WriteBytes(rec.sink.buf)
}

// LimitedRecorder is a Recorder that aborts (returning ErrLimitExceeded
// from every subsequent write) once writing would exceed a preset bit
// budget. The FLAC encoder uses this to abandon candidate subframes that
// cannot beat the best size found so far without unwinding every
// intermediate write by hand.
type LimitedRecorder struct {
	*Recorder
}

// NewLimitedRecorder returns a Recorder whose total bit budget is
// limitBits.
func NewLimitedRecorder(limitBits int64) *LimitedRecorder {
	rec := NewRecorder()
	rec.Writer.limited = true
	rec.Writer.limitBits = limitBits
	return &LimitedRecorder{Recorder: rec}
}

// Exceeded reports whether this recorder's budget has been exceeded.
func (l *LimitedRecorder) Exceeded() bool {
	return errors.Is(l.Writer.err, ErrLimitExceeded)
}
