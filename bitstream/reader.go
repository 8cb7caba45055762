package bitstream

import (
	"io"

	"github.com/pkg/errors"
)

// Reader is a bit-granular reader over a byte source. The zero value is
// not usable; construct one with NewReader, NewReaderSeeker,
// NewQueueReader, or NewCallbackReader.
type Reader struct {
	src    byteSource
	endian Endian

	// partial byte state: count bits of pending are unread. For
	// big-endian, pending is left-justified (the next bit to read is
	// its MSB); for little-endian it is right-justified (the next bit
	// to read is its LSB). count == 0 means no bits buffered.
	pending byte
	count   uint8

	unread *uint8 // single bit of pushback, if any

	callbacks callbackStack
}

// NewReader wraps a non-seekable io.Reader as a big-endian bit reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{src: newIOSource(r), endian: BigEndian}
}

// NewReaderSeeker wraps an io.ReadSeeker (a file handle or an immutable
// byte buffer such as bytes.NewReader) giving GetPos/SetPos/Seek support.
func NewReaderSeeker(rs io.ReadSeeker) *Reader {
	return &Reader{src: newSeekIOSource(rs), endian: BigEndian}
}

// NewQueueReader returns a reader over a growable, producer/consumer
// queue buffer: bytes appended with Enqueue become readable in order.
// This is the collaborator substream/enqueue use to grow an existing
// destination reader from a parent stream.
func NewQueueReader() *Reader {
	return &Reader{src: newQueueSource(), endian: BigEndian}
}

// NewCallbackReader wraps a caller-supplied byte-source callback trio.
func NewCallbackReader(cbs ByteSourceCallbacks) *Reader {
	return &Reader{src: newCallbackSource(cbs), endian: BigEndian}
}

// Enqueue appends data to the back of a queue-backed reader's buffer. It
// panics if called on a reader not backed by NewQueueReader -- this
// mirrors a programmer error, not a runtime stream condition.
func (r *Reader) Enqueue(data []byte) {
	qs, ok := r.src.(*queueSource)
	if !ok {
		panic("bitstream: Enqueue called on a non-queue reader")
	}
	qs.push(data)
}

// Endian reports the reader's current bit-endianness.
func (r *Reader) Endian() Endian { return r.endian }

// SetEndian changes the bit-endianness of the stream. Changing
// endianness implicitly byte-aligns the stream and discards any
// partial-bit state.
func (r *Reader) SetEndian(e Endian) {
	r.byteAlignDiscard()
	r.endian = e
}

// Positionable reports whether GetPos/SetPos/Seek are usable on this
// reader -- a capability query rather than a runtime error at first use.
func (r *Reader) Positionable() bool {
	if cs, ok := r.src.(*callbackSource); ok {
		return cs.cbs.Seek != nil
	}
	_, ok := r.src.(positionableSource)
	return ok
}

// Close closes the underlying byte source. An open (non-empty) callback
// stack at this point is logged as a warning.
func (r *Reader) Close() error {
	if r.callbacks.open() {
		logger().Warn("bitstream: reader closed with an open callback stack")
	}
	return r.src.close()
}

// --- byte-level plumbing ---

// fetchByte pulls the next whole byte from the source and fires every
// registered callback on it, then loads it as the new partial state.
func (r *Reader) fetchByte() error {
	b, err := r.src.readByte()
	if err != nil {
		if err == io.EOF {
			return ErrEndOfStream
		}
		return errors.Wrap(err, "bitstream: read byte")
	}
	r.callbacks.call(b)
	r.pending = b
	r.count = 8
	return nil
}

// readBit returns the next single bit (0 or 1) of the stream.
func (r *Reader) readBit() (uint8, error) {
	if r.unread != nil {
		bit := *r.unread
		r.unread = nil
		return bit, nil
	}
	if r.count == 0 {
		if err := r.fetchByte(); err != nil {
			return 0, err
		}
	}
	var bit uint8
	if r.endian == BigEndian {
		bit = (r.pending >> 7) & 1
		r.pending <<= 1
	} else {
		bit = r.pending & 1
		r.pending >>= 1
	}
	r.count--
	return bit, nil
}

// ReadByte implements io.ByteReader, satisfied via bit-level reads so it
// composes with any partial-byte state. Used by internal/utf8.
func (r *Reader) ReadByte() (byte, error) {
	v, err := r.ReadUnsigned(8)
	return byte(v), err
}

// --- fixed-width integers ---

// ReadUnsigned reads an unsigned integer of n (1..=32) bits.
func (r *Reader) ReadUnsigned(n uint) (uint32, error) {
	if n == 0 || n > 32 {
		return 0, errors.Errorf("bitstream: ReadUnsigned: n=%d out of range", n)
	}
	v, err := r.readBitsAccum(n)
	return uint32(v), err
}

// ReadU64 reads an unsigned integer of n (1..=64) bits.
func (r *Reader) ReadU64(n uint) (uint64, error) {
	if n == 0 || n > 64 {
		return 0, errors.Errorf("bitstream: ReadU64: n=%d out of range", n)
	}
	return r.readBitsAccum(n)
}

// readBitsAccum assembles n bits into a uint64. The first bit read is the
// MSB of the result for big-endian streams, and the LSB for little-endian
// streams.
func (r *Reader) readBitsAccum(n uint) (uint64, error) {
	var v uint64
	for i := uint(0); i < n; i++ {
		bit, err := r.readBit()
		if err != nil {
			return 0, err
		}
		if r.endian == BigEndian {
			v = (v << 1) | uint64(bit)
		} else {
			v |= uint64(bit) << i
		}
	}
	return v, nil
}

// ReadSigned reads a two's-complement signed integer of n (1..=32) bits.
func (r *Reader) ReadSigned(n uint) (int32, error) {
	if n == 0 || n > 32 {
		return 0, errors.Errorf("bitstream: ReadSigned: n=%d out of range", n)
	}
	v, err := r.ReadU64(uint(n))
	if err != nil {
		return 0, err
	}
	return int32(signExtend(v, n)), nil
}

// ReadS64 reads a two's-complement signed integer of n (1..=64) bits.
func (r *Reader) ReadS64(n uint) (int64, error) {
	if n == 0 || n > 64 {
		return 0, errors.Errorf("bitstream: ReadS64: n=%d out of range", n)
	}
	v, err := r.ReadU64(n)
	if err != nil {
		return 0, err
	}
	return signExtend(v, n), nil
}

func signExtend(v uint64, n uint) int64 {
	if n == 64 {
		return int64(v)
	}
	shift := 64 - n
	return int64(v<<shift) >> shift
}

// ReadBool reads a single bit as a boolean (1 => true).
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.readBit()
	return v == 1, err
}

// --- skip ---

// Skip discards n bits. Byte callbacks still fire for each byte crossed.
func (r *Reader) Skip(n uint) error {
	for i := uint(0); i < n; i++ {
		if _, err := r.readBit(); err != nil {
			return err
		}
	}
	return nil
}

// SkipBytes discards n bytes.
func (r *Reader) SkipBytes(n uint) error {
	return r.Skip(n * 8)
}

// --- unary ---

// ReadUnary returns the count of leading bits different from stopBit
// before the next stopBit, which is itself consumed.
func (r *Reader) ReadUnary(stopBit uint8) (uint64, error) {
	var count uint64
	for {
		bit, err := r.readBit()
		if err != nil {
			return 0, err
		}
		if bit == stopBit {
			return count, nil
		}
		count++
	}
}

// ReadLimitedUnary is ReadUnary bounded by max: once max non-stop bits
// have been seen without a stop bit, it returns limited=true, having
// consumed exactly max bits.
func (r *Reader) ReadLimitedUnary(stopBit uint8, max uint64) (count uint64, limited bool, err error) {
	for count = 0; count < max; count++ {
		bit, e := r.readBit()
		if e != nil {
			return 0, false, e
		}
		if bit == stopBit {
			return count, false, nil
		}
	}
	return max, true, nil
}

// --- unread ---

// Unread pushes a single bit back onto the stream. Only one bit of
// pushback is guaranteed; a second call before an intervening read fails.
func (r *Reader) Unread(bit uint8) error {
	if r.unread != nil {
		return ErrUnreadFailed
	}
	b := bit & 1
	r.unread = &b
	return nil
}

// --- byte alignment ---

// ByteAligned reports whether the partial-byte state is at a byte
// boundary (no unread bits, and no pushed-back bit pending).
func (r *Reader) ByteAligned() bool {
	return r.count == 0 && r.unread == nil
}

// ByteAlign discards the current partial byte; a reader never pads to
// align, it throws away the unread remainder.
func (r *Reader) ByteAlign() {
	r.byteAlignDiscard()
}

func (r *Reader) byteAlignDiscard() {
	r.count = 0
	r.pending = 0
	r.unread = nil
}

// --- bulk bytes ---

// ReadBytes reads n bytes into a new slice. It takes the byte-aligned
// fast path when possible, falling back to bit-granular reads otherwise.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	out := make([]byte, n)
	if err := r.ReadBytesInto(out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadBytesInto fills buf with the next len(buf) bytes.
func (r *Reader) ReadBytesInto(buf []byte) error {
	if r.ByteAligned() {
		for i := range buf {
			if err := r.fetchByte(); err != nil {
				return err
			}
			buf[i] = r.pending
			r.count = 0
			r.pending = 0
		}
		return nil
	}
	for i := range buf {
		v, err := r.ReadUnsigned(8)
		if err != nil {
			return err
		}
		buf[i] = byte(v)
	}
	return nil
}

// --- position ---

// GetPos saves enough state to later restore the stream to this exact
// point, including the partial-byte state.
func (r *Reader) GetPos() (*Pos, error) {
	ps, ok := r.src.(positionableSource)
	if !ok {
		return nil, ErrNotSupported
	}
	off, err := ps.tell()
	if err != nil {
		return nil, err
	}
	p := &Pos{owner: r, offset: off, pending: r.pending, count: r.count}
	if r.unread != nil {
		u := *r.unread
		p.unread = &u
	}
	return p, nil
}

// SetPos restores the stream to a position previously saved with GetPos.
// A token obtained from a different Reader fails with ErrForeignPosition.
func (r *Reader) SetPos(p *Pos) error {
	if p.owner != r {
		return ErrForeignPosition
	}
	ps, ok := r.src.(positionableSource)
	if !ok {
		return ErrNotSupported
	}
	if _, err := ps.seekTo(p.offset, io.SeekStart); err != nil {
		return err
	}
	r.pending = p.pending
	r.count = p.count
	if p.unread != nil {
		u := *p.unread
		r.unread = &u
	} else {
		r.unread = nil
	}
	return nil
}

// Seek performs an absolute seek, clearing partial state. Like SetPos,
// it invokes no callbacks on skipped bytes; unlike SetPos, it does not
// restore partial-byte state.
func (r *Reader) Seek(offset int64, whence int) error {
	ps, ok := r.src.(seekableSource)
	if !ok {
		return ErrNotSupported
	}
	if _, err := ps.seekTo(offset, whence); err != nil {
		return err
	}
	r.byteAlignDiscard()
	return nil
}

// --- substreams ---

// Substream copies the next n bytes into a new reader, invoking this
// reader's callbacks on each byte as it is copied, exactly as if the
// parent had read it directly. The returned reader's own callbacks fire
// independently as its consumer reads from it.
func (r *Reader) Substream(n int) (*Reader, error) {
	sub := NewQueueReader()
	if err := r.copyInto(sub, n); err != nil {
		return nil, err
	}
	return sub, nil
}

// SubstreamInto is Substream's producer-side counterpart: it appends n
// bytes from r onto an existing queue-backed reader instead of
// allocating a new one.
func (r *Reader) SubstreamInto(dst *Reader, n int) error {
	return r.copyInto(dst, n)
}

func (r *Reader) copyInto(dst *Reader, n int) error {
	if !r.ByteAligned() {
		return errors.New("bitstream: Substream requires a byte-aligned reader")
	}
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		if err := r.fetchByte(); err != nil {
			return err
		}
		buf[i] = r.pending
		r.count = 0
		r.pending = 0
	}
	dst.Enqueue(buf)
	return nil
}

// --- callbacks ---

// AddCallback registers f to be invoked on every subsequent byte the
// stream consumes, most recently added first.
func (r *Reader) AddCallback(f func(byte)) {
	r.callbacks.push(f)
}

// PopCallback removes and returns the most recently registered callback.
func (r *Reader) PopCallback() (func(byte), error) {
	f, err := r.callbacks.pop()
	if err != nil {
		logger().Warn("bitstream: PopCallback on empty stack")
	}
	return f, err
}

// CallCallbacks synthesises a callback invocation for b without consuming
// any input, used to inject bytes already present in a position-preserved
// region.
func (r *Reader) CallCallbacks(b byte) {
	r.callbacks.call(b)
}

// --- Huffman ---

// ReadHuffman walks table one bit at a time and returns the value of the
// terminating leaf.
func (r *Reader) ReadHuffman(table *HuffmanTable) (int32, error) {
	return table.decode(r)
}
