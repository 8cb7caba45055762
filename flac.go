// Package flac provides access to FLAC (Free Lossless Audio Codec) streams.
package flac

import (
	"bufio"
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/sabletide/flac/bitstream"
	"github.com/sabletide/flac/frame"
	"github.com/sabletide/flac/internal/bufseekio"
	"github.com/sabletide/flac/meta"
)

var (
	flacSignature = []byte("fLaC") // marks the beginning of a FLAC stream
	id3Signature  = []byte("ID3")  // marks the beginning of an ID3 stream, used to skip over ID3 data

	// ErrNoSeekTable is returned by Stream.Seek when the stream has no
	// SEEKTABLE metadata block.
	ErrNoSeekTable = errors.New("flac: stream has no seek table")
	// ErrNoSeeker is returned by Stream.Seek when the underlying reader
	// does not support seeking.
	ErrNoSeeker = errors.New("flac: reader does not support seeking")
)

// Stream contains the metadata blocks and provides access to the audio
// frames of a FLAC stream.
type Stream struct {
	// The StreamInfo metadata block describes the basic properties of
	// the FLAC audio stream.
	Info *meta.StreamInfo
	// Zero or more metadata blocks, populated by Parse; nil when
	// constructed with New.
	Blocks []*meta.Block

	seekTable *meta.SeekTable
	dataStart int64

	r      *bitstream.Reader
	ts     *trackingSeeker // non-nil when the underlying reader is seekable
	closer io.Closer
}

// trackingSeeker wraps an io.ReadSeeker, tracking its current absolute
// byte offset. bitstream.Reader's own position tokens are opaque by
// design, so the seek-table logic below tracks offsets itself instead.
type trackingSeeker struct {
	rs  io.ReadSeeker
	pos int64
}

func newTrackingSeeker(rs io.ReadSeeker) *trackingSeeker {
	return &trackingSeeker{rs: rs}
}

func (t *trackingSeeker) Read(p []byte) (int, error) {
	n, err := t.rs.Read(p)
	t.pos += int64(n)
	return n, err
}

func (t *trackingSeeker) Seek(offset int64, whence int) (int64, error) {
	abs, err := t.rs.Seek(offset, whence)
	if err != nil {
		return abs, err
	}
	t.pos = abs
	return abs, nil
}

// New creates a new Stream for accessing the audio samples of r. It
// reads and parses the FLAC signature and the StreamInfo metadata block,
// but skips all other metadata blocks.
//
// Call Stream.Next to parse the frame header of the next audio frame,
// and call Stream.ParseNext to parse the entire next frame including
// audio samples.
func New(r io.Reader) (*Stream, error) {
	stream, err := newStream(r)
	if err != nil {
		return nil, err
	}
	block, err := stream.parseStreamInfo()
	if err != nil {
		return nil, err
	}
	for !block.IsLast {
		block, err = meta.New(stream.r)
		if err != nil {
			return stream, err
		}
		if err := block.Skip(); err != nil {
			return stream, err
		}
	}
	stream.dataStart = stream.tell()
	return stream, nil
}

// Parse creates a new Stream for accessing the metadata blocks and audio
// samples of r. It reads and parses the FLAC signature and all metadata
// blocks.
func Parse(r io.Reader) (*Stream, error) {
	stream, err := newStream(r)
	if err != nil {
		return nil, err
	}
	block, err := stream.parseStreamInfo()
	if err != nil {
		return nil, err
	}
	stream.Blocks = append(stream.Blocks, block)
	for !block.IsLast {
		block, err = meta.New(stream.r)
		if err != nil {
			return stream, err
		}
		if isKnownType(block.Type) {
			if err := block.Parse(); err != nil {
				return stream, err
			}
		} else if err := block.Skip(); err != nil {
			return stream, err
		}
		if block.Type == meta.TypeSeekTable {
			if st, ok := block.Body.(*meta.SeekTable); ok {
				stream.seekTable = st
			}
		}
		stream.Blocks = append(stream.Blocks, block)
	}
	stream.dataStart = stream.tell()
	return stream, nil
}

func isKnownType(t meta.Type) bool {
	return t <= meta.TypePicture
}

// ParseFile creates a new Stream for accessing the metadata blocks and
// audio samples of path. It reads and parses the FLAC signature and all
// metadata blocks.
//
// Note: the Close method of the stream must be called when finished
// using it.
func ParseFile(path string) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	stream, err := Parse(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	stream.closer = f
	return stream, nil
}

// Open creates a new Stream for accessing the audio samples of path. It
// reads and parses the FLAC signature and the StreamInfo metadata block,
// but skips all other metadata blocks.
//
// Note: the Close method of the stream must be called when finished
// using it.
func Open(path string) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	stream, err := New(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	stream.closer = f
	return stream, nil
}

func newStream(r io.Reader) (*Stream, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		ts := newTrackingSeeker(bufseekio.NewReadSeeker(rs))
		return &Stream{r: bitstream.NewReaderSeeker(ts), ts: ts}, nil
	}
	return &Stream{r: bitstream.NewReader(bufio.NewReader(r))}, nil
}

func (stream *Stream) tell() int64 {
	if stream.ts == nil {
		return 0
	}
	return stream.ts.pos
}

// Close closes the stream, releasing any resources opened by ParseFile
// or Open.
func (stream *Stream) Close() error {
	if stream.closer != nil {
		return stream.closer.Close()
	}
	return nil
}

// Next parses the frame header of the next audio frame. It returns
// bitstream.ErrEndOfStream to signal a graceful end of the FLAC stream.
//
// Call Frame.Parse to parse the audio samples of its subframes.
func (stream *Stream) Next() (*frame.Frame, error) {
	return frame.New(stream.r)
}

// ParseNext parses the entire next frame, including audio samples. It
// returns bitstream.ErrEndOfStream to signal a graceful end of the FLAC stream.
func (stream *Stream) ParseNext() (*frame.Frame, error) {
	return frame.ParseWithInfo(stream.r, stream.Info)
}

// Seek seeks to the frame containing the given absolute sample number.
// The return value is the first sample number of the frame containing
// sampleNum.
func (stream *Stream) Seek(sampleNum uint64) (uint64, error) {
	if stream.ts == nil {
		return 0, ErrNoSeeker
	}
	if stream.seekTable == nil {
		return 0, ErrNoSeekTable
	}
	if stream.Info.NSamples != 0 && sampleNum >= stream.Info.NSamples {
		return 0, errors.Errorf("flac: unable to seek to sample number %d", sampleNum)
	}

	point, err := stream.searchFromStart(sampleNum)
	if err != nil {
		return 0, err
	}
	if err := stream.r.Seek(stream.dataStart+int64(point.Offset), io.SeekStart); err != nil {
		return 0, err
	}

	for {
		offset := stream.tell()
		f, err := stream.ParseNext()
		if err != nil {
			return 0, err
		}
		if f.SampleNumber()+uint64(f.BlockSize) > sampleNum {
			if err := stream.r.Seek(offset, io.SeekStart); err != nil {
				return 0, err
			}
			return f.SampleNumber(), nil
		}
	}
}

// searchFromStart returns the last seek point not exceeding sampleNum.
func (stream *Stream) searchFromStart(sampleNum uint64) (meta.SeekPoint, error) {
	if len(stream.seekTable.Points) == 0 {
		return meta.SeekPoint{}, ErrNoSeekTable
	}
	prev := stream.seekTable.Points[0]
	for _, p := range stream.seekTable.Points {
		if p.SampleNum > sampleNum {
			break
		}
		prev = p
	}
	return prev, nil
}

// skipID3v2 skips ID3v2 metadata prepended to some FLAC files.
func (stream *Stream) skipID3v2() error {
	if _, err := stream.r.ReadBytes(2); err != nil {
		return err
	}
	sizeBuf, err := stream.r.ReadBytes(4)
	if err != nil {
		return err
	}
	size := int(sizeBuf[0])<<21 | int(sizeBuf[1])<<14 | int(sizeBuf[2])<<7 | int(sizeBuf[3])
	return stream.r.SkipBytes(uint(size))
}

// parseStreamInfo verifies the FLAC signature and parses the StreamInfo
// metadata block, which must be the first block of every FLAC stream.
func (stream *Stream) parseStreamInfo() (*meta.Block, error) {
	buf, err := stream.r.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(buf[:3], id3Signature) {
		if err := stream.skipID3v2(); err != nil {
			return nil, err
		}
		if buf, err = stream.r.ReadBytes(4); err != nil {
			return nil, err
		}
	}
	if !bytes.Equal(buf, flacSignature) {
		return nil, errors.Errorf("flac: invalid FLAC signature; expected %q, got %q", flacSignature, buf)
	}

	block, err := meta.New(stream.r)
	if err != nil {
		return nil, err
	}
	if err := block.Parse(); err != nil {
		return nil, err
	}
	si, ok := block.Body.(*meta.StreamInfo)
	if !ok {
		return nil, errors.Errorf("flac: incorrect type of first metadata block; expected *meta.StreamInfo, got %T", block.Body)
	}
	stream.Info = si
	return block, nil
}
