package bitstream

import (
	"io"

	"github.com/gammazero/deque"
	"github.com/pkg/errors"
)

// byteSource is the minimal capability every Reader byte source provides:
// one byte at a time, in order.
type byteSource interface {
	readByte() (byte, error)
	close() error
}

// seekableSource is implemented by sources that support absolute seeking
// (file handles, in-memory buffers). Seeking clears the reader's partial
// state and never invokes byte callbacks.
type seekableSource interface {
	byteSource
	seekTo(offset int64, whence int) (int64, error)
}

// positionableSource is implemented by sources that can report/restore an
// exact byte offset for Reader.GetPos/SetPos. Every seekableSource is
// positionable via its current offset; a callback source always
// implements this interface, but its seekTo fails with ErrNotSupported
// unless the collaborator supplied a Seek callback.
type positionableSource interface {
	byteSource
	tell() (int64, error)
	seekTo(offset int64, whence int) (int64, error)
}

// ioSource adapts a plain io.Reader (not seekable) to byteSource.
type ioSource struct {
	r   io.Reader
	buf [1]byte
	c   io.Closer
}

// newIOSource wraps an io.Reader as a Reader byte source. If r also
// implements io.Closer, Reader.Close closes it.
func newIOSource(r io.Reader) *ioSource {
	c, _ := r.(io.Closer)
	return &ioSource{r: r, c: c}
}

func (s *ioSource) readByte() (byte, error) {
	if br, ok := s.r.(io.ByteReader); ok {
		return br.ReadByte()
	}
	if _, err := io.ReadFull(s.r, s.buf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return 0, err
	}
	return s.buf[0], nil
}

func (s *ioSource) close() error {
	if s.c != nil {
		return s.c.Close()
	}
	return nil
}

// seekIOSource adapts an io.ReadSeeker to a seekable, positionable
// byteSource -- this covers the file-handle and immutable-byte-buffer
// (bytes.Reader) cases.
type seekIOSource struct {
	*ioSource
	rs io.ReadSeeker
}

func newSeekIOSource(rs io.ReadSeeker) *seekIOSource {
	return &seekIOSource{ioSource: newIOSource(rs), rs: rs}
}

func (s *seekIOSource) seekTo(offset int64, whence int) (int64, error) {
	return s.rs.Seek(offset, whence)
}

func (s *seekIOSource) tell() (int64, error) {
	return s.rs.Seek(0, io.SeekCurrent)
}

// queueSource is a growable queue buffer (producer/consumer): bytes are
// appended at the back (Enqueue, the producer side used by
// substream/enqueue) and consumed from the front by reads. It never
// discards an unread byte, so GetPos/SetPos can rewind by index into the
// deque.
type queueSource struct {
	q   deque.Deque[byte]
	pos int
}

func newQueueSource() *queueSource {
	return &queueSource{}
}

// push appends bytes to the back of the queue (producer side).
func (s *queueSource) push(data []byte) {
	for _, b := range data {
		s.q.PushBack(b)
	}
}

func (s *queueSource) readByte() (byte, error) {
	if s.pos >= s.q.Len() {
		return 0, io.EOF
	}
	b := s.q.At(s.pos)
	s.pos++
	return b, nil
}

func (s *queueSource) close() error { return nil }

func (s *queueSource) tell() (int64, error) {
	return int64(s.pos), nil
}

func (s *queueSource) seekTo(offset int64, whence int) (int64, error) {
	var base int
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = s.pos
	case io.SeekEnd:
		base = s.q.Len()
	default:
		return 0, errors.New("queueSource: invalid whence")
	}
	np := base + int(offset)
	if np < 0 || np > s.q.Len() {
		return 0, errors.New("queueSource: seek out of range")
	}
	s.pos = np
	return int64(np), nil
}

// ByteSourceCallbacks is the external byte-source collaborator contract:
// Read must return newly available bytes (io.EOF once exhausted),
// Seek/GetPos/SetPos are optional and enable position support, Close/Free
// tear the collaborator down.
type ByteSourceCallbacks struct {
	UserData any
	Read     func(userData any) ([]byte, error)
	Seek     func(userData any, offset int64, whence int) error
	GetPos   func(userData any) (int64, error)
	SetPos   func(userData any, pos int64) error
	Close    func(userData any) error
	Free     func(userData any)
}

// callbackSource adapts a ByteSourceCallbacks collaborator. Every byte
// ever delivered by Read is retained in buf (never overwritten), matching
// the "append, not overwrite" requirement so position checkpoints remain
// valid for the life of the reader.
type callbackSource struct {
	cbs ByteSourceCallbacks
	buf []byte
	pos int
}

func newCallbackSource(cbs ByteSourceCallbacks) *callbackSource {
	return &callbackSource{cbs: cbs}
}

func (s *callbackSource) fill() error {
	if s.cbs.Read == nil {
		return ErrNotSupported
	}
	chunk, err := s.cbs.Read(s.cbs.UserData)
	s.buf = append(s.buf, chunk...)
	return err
}

func (s *callbackSource) readByte() (byte, error) {
	for s.pos >= len(s.buf) {
		if err := s.fill(); err != nil {
			return 0, err
		}
		if len(s.buf) == s.pos {
			// callback delivered no bytes and no error this round; keep
			// calling Read until it returns bytes or an error (io.EOF
			// once exhausted).
			continue
		}
	}
	b := s.buf[s.pos]
	s.pos++
	return b, nil
}

func (s *callbackSource) close() error {
	var err error
	if s.cbs.Close != nil {
		err = s.cbs.Close(s.cbs.UserData)
	}
	if s.cbs.Free != nil {
		s.cbs.Free(s.cbs.UserData)
	}
	return err
}

func (s *callbackSource) tell() (int64, error) {
	if s.cbs.GetPos != nil {
		return s.cbs.GetPos(s.cbs.UserData)
	}
	return int64(s.pos), nil
}

func (s *callbackSource) seekTo(offset int64, whence int) (int64, error) {
	if s.cbs.Seek == nil {
		return 0, ErrNotSupported
	}
	if err := s.cbs.Seek(s.cbs.UserData, offset, whence); err != nil {
		return 0, err
	}
	return s.tell()
}

// --- byte sinks (Writer side) ---

type byteSink interface {
	writeByte(b byte) error
	close() error
}

type seekableSink interface {
	byteSink
	seekTo(offset int64, whence int) (int64, error)
	tell() (int64, error)
}

// ioSink adapts a plain io.Writer.
type ioSink struct {
	w io.Writer
	c io.Closer
}

func newIOSink(w io.Writer) *ioSink {
	c, _ := w.(io.Closer)
	return &ioSink{w: w, c: c}
}

func (s *ioSink) writeByte(b byte) error {
	if bw, ok := s.w.(io.ByteWriter); ok {
		return bw.WriteByte(b)
	}
	_, err := s.w.Write([]byte{b})
	return err
}

func (s *ioSink) close() error {
	if s.c != nil {
		return s.c.Close()
	}
	return nil
}

// seekIOSink adapts an io.WriteSeeker (e.g. an *os.File) for position
// support on the writer side.
type seekIOSink struct {
	*ioSink
	ws interface {
		io.Writer
		io.Seeker
	}
}

func newSeekIOSink(ws interface {
	io.Writer
	io.Seeker
}) *seekIOSink {
	return &seekIOSink{ioSink: newIOSink(ws), ws: ws}
}

func (s *seekIOSink) seekTo(offset int64, whence int) (int64, error) {
	return s.ws.Seek(offset, whence)
}

func (s *seekIOSink) tell() (int64, error) {
	return s.ws.Seek(0, io.SeekCurrent)
}

// ByteSinkCallbacks is the external byte-sink collaborator contract.
type ByteSinkCallbacks struct {
	UserData any
	Write    func(userData any, data []byte) error
	Flush    func(userData any) error
	GetPos   func(userData any) (int64, error)
	SetPos   func(userData any, pos int64) error
	Close    func(userData any) error
	Free     func(userData any)
}

type callbackSink struct {
	cbs ByteSinkCallbacks
	pos int64
}

func newCallbackSink(cbs ByteSinkCallbacks) *callbackSink {
	return &callbackSink{cbs: cbs}
}

func (s *callbackSink) writeByte(b byte) error {
	if s.cbs.Write == nil {
		return ErrNotSupported
	}
	if err := s.cbs.Write(s.cbs.UserData, []byte{b}); err != nil {
		return err
	}
	s.pos++
	return nil
}

func (s *callbackSink) close() error {
	var err error
	if s.cbs.Close != nil {
		err = s.cbs.Close(s.cbs.UserData)
	}
	if s.cbs.Free != nil {
		s.cbs.Free(s.cbs.UserData)
	}
	return err
}

func (s *callbackSink) tell() (int64, error) {
	if s.cbs.GetPos != nil {
		return s.cbs.GetPos(s.cbs.UserData)
	}
	return s.pos, nil
}

func (s *callbackSink) seekTo(offset int64, whence int) (int64, error) {
	if s.cbs.SetPos == nil {
		return 0, ErrNotSupported
	}
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = s.pos + offset
	default:
		return 0, errors.New("callbackSink: unsupported whence")
	}
	if err := s.cbs.SetPos(s.cbs.UserData, target); err != nil {
		return 0, err
	}
	s.pos = target
	return target, nil
}
