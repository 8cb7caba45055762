// Package utf8 implements encoding and decoding of "UTF-8" coded
// numbers, the variable-length frame/sample number representation used
// in FLAC frame headers.
package utf8

import (
	"github.com/pkg/errors"

	"github.com/sabletide/flac/bitstream"
)

const (
	tx = 0x80 // 1000 0000
	t2 = 0xC0 // 1100 0000
	t3 = 0xE0 // 1110 0000
	t4 = 0xF0 // 1111 0000
	t5 = 0xF8 // 1111 1000
	t6 = 0xFC // 1111 1100
	t7 = 0xFE // 1111 1110
	t8 = 0xFF // 1111 1111

	maskx = 0x3F // 0011 1111
	mask2 = 0x1F // 0001 1111
	mask3 = 0x0F // 0000 1111
	mask4 = 0x07 // 0000 0111
	mask5 = 0x03 // 0000 0011
	mask6 = 0x01 // 0000 0001

	rune1Max = 1<<7 - 1
	rune2Max = 1<<11 - 1
	rune3Max = 1<<16 - 1
	rune4Max = 1<<21 - 1
	rune5Max = 1<<26 - 1
	rune6Max = 1<<31 - 1
	rune7Max = 1<<36 - 1
)

// Encode writes x to w using the minimal "UTF-8" coded number
// representation able to hold it.
func Encode(w *bitstream.Writer, x uint64) error {
	switch {
	case x <= rune1Max:
		return w.WriteByte(byte(x))
	case x <= rune2Max:
		return writeMultiByte(w, x, 1, t2, mask2)
	case x <= rune3Max:
		return writeMultiByte(w, x, 2, t3, mask3)
	case x <= rune4Max:
		return writeMultiByte(w, x, 3, t4, mask4)
	case x <= rune5Max:
		return writeMultiByte(w, x, 4, t5, mask5)
	case x <= rune6Max:
		return writeMultiByte(w, x, 5, t6, mask6)
	case x <= rune7Max:
		return writeMultiByte(w, x, 6, t7, 0)
	default:
		return errors.Errorf("utf8: %d does not fit in 36 bits", x)
	}
}

// writeMultiByte writes x as a leading byte (lead | the top bits of x,
// masked by leadMask) followed by l continuation bytes (10xxxxxx each).
func writeMultiByte(w *bitstream.Writer, x uint64, l int, lead byte, leadMask byte) error {
	cont := make([]byte, l)
	for i := l - 1; i >= 0; i-- {
		cont[i] = tx | byte(x&maskx)
		x >>= 6
	}
	if err := w.WriteByte(lead | (byte(x) & leadMask)); err != nil {
		return err
	}
	for _, c := range cont {
		if err := w.WriteByte(c); err != nil {
			return err
		}
	}
	return nil
}
