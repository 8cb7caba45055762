package meta

import (
	"github.com/pkg/errors"

	"github.com/sabletide/flac/bitstream"
)

// Padding is a metadata block whose body consists solely of zero bytes;
// it exists to reserve space for future edits without rewriting the
// whole stream.
type Padding struct {
	Length int64
}

func (p *Padding) parse(r *bitstream.Reader, length int64) error {
	p.Length = length
	data, err := r.ReadBytes(int(length))
	if err != nil {
		return err
	}
	for _, b := range data {
		if b != 0 {
			return errors.Errorf("meta: non-zero byte in padding block")
		}
	}
	return nil
}

func (p *Padding) encode(w *bitstream.Writer) error {
	return w.WriteBytes(make([]byte, p.Length))
}
