package bufseekio

import "io"

const (
	defaultBufSize    = 4096
	minReadBufferSize = 16
)

// ReadSeeker implements buffering for an io.ReadSeeker object.
// ReadSeeker is based on bufio.Reader with
// Seek functionality added and unneeded functionality removed.
type ReadSeeker struct {
	buf []byte
	pos int64         // absolute start position of buf
	rd  io.ReadSeeker // read-seeker provided by the client
	r   int           // buf read positions within buf
	w   int           // buf write positions within buf
	err error
}

// NewReadSeeker returns a new ReadSeeker whose buffer has the default
// size.
func NewReadSeeker(rd io.ReadSeeker) *ReadSeeker {
	return NewReadSeekerSize(rd, defaultBufSize)
}

// NewReadSeekerSize returns a new ReadSeeker whose buffer has at least
// the given size. If rd is already a *ReadSeeker with a large enough
// buffer, it is returned unchanged.
func NewReadSeekerSize(rd io.ReadSeeker, size int) *ReadSeeker {
	if rs, ok := rd.(*ReadSeeker); ok && len(rs.buf) >= size {
		return rs
	}
	if size < minReadBufferSize {
		size = minReadBufferSize
	}
	return &ReadSeeker{
		buf: make([]byte, size),
		rd:  rd,
	}
}

func (b *ReadSeeker) readErr() error {
	err := b.err
	b.err = nil
	return err
}

// fill reads one chunk of data into an empty buffer.
func (b *ReadSeeker) fill() {
	n, err := b.rd.Read(b.buf)
	if n < 0 {
		panic("bufseekio: reader returned negative count from Read")
	}
	b.r, b.w = 0, n
	if err != nil {
		b.err = err
	}
}

// Read implements io.Reader.
func (b *ReadSeeker) Read(p []byte) (n int, err error) {
	n = len(p)
	if n == 0 {
		if b.r != b.w {
			return 0, nil
		}
		return 0, b.readErr()
	}
	if b.r == b.w {
		if b.err != nil {
			return 0, b.readErr()
		}
		if len(p) >= len(b.buf) {
			// large read against an empty buffer: skip it entirely
			n, err = b.rd.Read(p)
			if n < 0 {
				panic("bufseekio: reader returned negative count from Read")
			}
			b.pos += int64(n)
			if err != nil {
				b.err = err
			}
			return n, b.readErr()
		}
		b.fill()
		if b.r == b.w {
			return 0, b.readErr()
		}
	}

	n = copy(p, b.buf[b.r:b.w])
	b.r += n
	if b.r == b.w {
		b.pos += int64(b.r)
		b.r, b.w = 0, 0
	}
	return n, nil
}

// Seek implements io.Seeker. A relative seek that lands within the
// currently buffered region is served without touching the underlying
// ReadSeeker; anything else flushes the buffer and delegates.
func (b *ReadSeeker) Seek(offset int64, whence int) (int64, error) {
	if whence == io.SeekCurrent && b.r != b.w {
		cur := b.pos + int64(b.r)
		target := cur + offset
		if target >= b.pos && target <= b.pos+int64(b.w) {
			b.r = int(target - b.pos)
			return target, nil
		}
	}

	if whence == io.SeekCurrent {
		offset += b.pos + int64(b.r)
		whence = io.SeekStart
	}

	abs, err := b.rd.Seek(offset, whence)
	if err != nil {
		return 0, err
	}
	b.pos = abs
	b.r, b.w = 0, 0
	b.err = nil
	return abs, nil
}
