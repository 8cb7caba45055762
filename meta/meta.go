// Package meta implements access to FLAC metadata blocks.
//
// The following is a brief introduction to the FLAC metadata format.
// FLAC metadata is stored in blocks; each block contains a header followed by a body.
// The block header describes the body type of the block, its length in bytes,
// and specifies whether the block was the last metadata block in the FLAC stream.
// The contents of the block body depend on the type specified in the block header.
//
// As of this writing, the FLAC metadata format defines seven different types of metadata blocks
// (StreamInfo, Padding, Application, SeekTable, VorbisComment, CueSheet, Picture).
package meta

import (
	"github.com/pkg/errors"

	"github.com/sabletide/flac/bitstream"
)

// Metadata block body types.
const (
	TypeStreamInfo    Type = 0
	TypePadding       Type = 1
	TypeApplication   Type = 2
	TypeSeekTable     Type = 3
	TypeVorbisComment Type = 4
	TypeCueSheet      Type = 5
	TypePicture       Type = 6
)

// Type represents the type of a metadata block body.
type Type uint8

func (t Type) String() string {
	switch t {
	case TypeStreamInfo:
		return "stream info"
	case TypePadding:
		return "padding"
	case TypeApplication:
		return "application"
	case TypeSeekTable:
		return "seek table"
	case TypeVorbisComment:
		return "vorbis comment"
	case TypeCueSheet:
		return "cue sheet"
	case TypePicture:
		return "picture"
	default:
		return "<unknown block type>"
	}
}

// Header contains information about the
// type and length of a metadata block.
type Header struct {
	Type   Type  // metadata block body type
	Length int64 // length of body data in bytes
	IsLast bool  // specifies if the block is the last metadata block
}

// ParseHeader parses and returns a new metadata block header.
func ParseHeader(r *bitstream.Reader) (Header, error) {
	var h Header
	isLast, err := r.ReadBool()
	if err != nil {
		return h, err
	}
	h.IsLast = isLast
	typ, err := r.ReadUnsigned(7)
	if err != nil {
		return h, err
	}
	h.Type = Type(typ)
	length, err := r.ReadUnsigned(24)
	if err != nil {
		return h, err
	}
	h.Length = int64(length)
	return h, nil
}

func (h Header) encode(w *bitstream.Writer) error {
	if err := w.WriteBool(h.IsLast); err != nil {
		return err
	}
	if err := w.WriteUnsigned(7, uint32(h.Type)); err != nil {
		return err
	}
	return w.WriteUnsigned(24, uint32(h.Length))
}

// Block contains the header and body of a metadata block.
type Block struct {
	// Metadata block header.
	Header
	// Metadata block body of type *StreamInfo, *Application, ... etc.
	// Body is initially nil,
	// and gets populated by a call to Block.Parse.
	Body interface{}
	// bit reader scoped to the remaining, unread bytes of the block body.
	br *bitstream.Reader
}

// New reads and parses the header of the next metadata block, returning a
// Block whose body has not yet been decoded; call Parse or Skip to
// consume the body.
func New(r *bitstream.Reader) (*Block, error) {
	h, err := ParseHeader(r)
	if err != nil {
		return nil, err
	}
	br, err := r.Substream(int(h.Length))
	if err != nil {
		return nil, err
	}
	return &Block{Header: h, br: br}, nil
}

// Parse decodes the body of the metadata block, populating Body with a
// value of the concrete type implied by the block's Type.
func (block *Block) Parse() error {
	switch block.Type {
	case TypeStreamInfo:
		si := new(StreamInfo)
		if err := si.parse(block.br); err != nil {
			return errors.Wrap(err, "meta: unable to parse stream info")
		}
		block.Body = si
	case TypePadding:
		p := new(Padding)
		if err := p.parse(block.br, block.Length); err != nil {
			return errors.Wrap(err, "meta: unable to parse padding")
		}
		block.Body = p
	case TypeApplication:
		app := new(Application)
		if err := app.parse(block.br, block.Length); err != nil {
			return errors.Wrap(err, "meta: unable to parse application")
		}
		block.Body = app
	case TypeSeekTable:
		st := new(SeekTable)
		if err := st.parse(block.br, block.Length); err != nil {
			return errors.Wrap(err, "meta: unable to parse seek table")
		}
		block.Body = st
	case TypeVorbisComment:
		vc := new(VorbisComment)
		if err := vc.parse(block.br); err != nil {
			return errors.Wrap(err, "meta: unable to parse vorbis comment")
		}
		block.Body = vc
	case TypeCueSheet:
		cs := new(CueSheet)
		if err := cs.parse(block.br); err != nil {
			return errors.Wrap(err, "meta: unable to parse cue sheet")
		}
		block.Body = cs
	case TypePicture:
		pic := new(Picture)
		if err := pic.parse(block.br); err != nil {
			return errors.Wrap(err, "meta: unable to parse picture")
		}
		block.Body = pic
	default:
		return errors.Errorf("meta: unknown metadata block type %d", block.Type)
	}
	return nil
}

// Skip ignores the contents of the metadata block body, discarding its
// remaining bytes without populating Body.
func (block *Block) Skip() error {
	return block.br.SkipBytes(uint(block.Length))
}

// Write encodes the header and body of the metadata block and writes the
// result to w.
func (block *Block) Write(w *bitstream.Writer) error {
	rec := bitstream.NewRecorder()
	if err := block.encodeBody(rec.Writer); err != nil {
		return errors.Wrap(err, "meta: unable to encode block body")
	}
	if err := rec.ByteAlign(); err != nil {
		return err
	}
	block.Length = rec.BytesWritten()
	if err := block.Header.encode(w); err != nil {
		return err
	}
	return rec.Copy(w)
}

func (block *Block) encodeBody(w *bitstream.Writer) error {
	switch body := block.Body.(type) {
	case *StreamInfo:
		return body.encode(w)
	case *Padding:
		return body.encode(w)
	case *Application:
		return body.encode(w)
	case *SeekTable:
		return body.encode(w)
	case *VorbisComment:
		return body.encode(w)
	case *CueSheet:
		return body.encode(w)
	case *Picture:
		return body.encode(w)
	default:
		return errors.Errorf("meta: unsupported metadata block body type %T", block.Body)
	}
}
