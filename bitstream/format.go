package bitstream

import (
	"math/big"
	"strconv"
)

// FormatAction is one decoded step of a format mini-language string: an
// action code and the bit/byte count that precedes it, if any.
type FormatAction struct {
	Code  byte
	Count int
}

// ParseFormat tokenizes a format string such as "2u 3u 5s 3u 19U 16b" into
// a flat list of actions, expanding "N*" multiplier prefixes (which apply
// to exactly the next action) into N repeated actions. Whitespace is
// ignored. An unknown action code fails with ErrBadFormat without
// partially consuming the string.
func ParseFormat(format string) ([]FormatAction, error) {
	var actions []FormatAction
	mult := 1
	i, n := 0, len(format)
	for i < n {
		c := format[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			i++
			continue
		}

		start := i
		for i < n && format[i] >= '0' && format[i] <= '9' {
			i++
		}
		numStr := format[start:i]
		if i >= n {
			return nil, ErrBadFormat
		}
		code := format[i]
		i++

		if code == '*' {
			if numStr == "" {
				return nil, ErrBadFormat
			}
			m, err := strconv.Atoi(numStr)
			if err != nil {
				return nil, ErrBadFormat
			}
			mult = m
			continue
		}

		switch code {
		case 'u', 's', 'U', 'S', 'K', 'L', 'p', 'P', 'b', 'a':
		default:
			return nil, ErrBadFormat
		}

		count := 0
		if numStr != "" {
			count, _ = strconv.Atoi(numStr)
		}
		for k := 0; k < mult; k++ {
			actions = append(actions, FormatAction{Code: code, Count: count})
		}
		mult = 1
	}
	return actions, nil
}

// Parse interprets format, reading from r, and returns the decoded values
// in order. "p"/"P"/"a" actions produce no value. Value types are:
// u->uint32, s->int32, U->uint64, S->int64, K/L->*big.Int, b->[]byte.
func (r *Reader) Parse(format string) ([]interface{}, error) {
	actions, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	var out []interface{}
	for _, a := range actions {
		var v interface{}
		var e error
		switch a.Code {
		case 'u':
			v, e = r.ReadUnsigned(uint(a.Count))
		case 's':
			v, e = r.ReadSigned(uint(a.Count))
		case 'U':
			v, e = r.ReadU64(uint(a.Count))
		case 'S':
			v, e = r.ReadS64(uint(a.Count))
		case 'K':
			v, e = r.ReadBigUnsigned(uint(a.Count))
		case 'L':
			v, e = r.ReadBigSigned(uint(a.Count))
		case 'p':
			e = r.Skip(uint(a.Count))
		case 'P':
			e = r.SkipBytes(uint(a.Count))
		case 'b':
			v, e = r.ReadBytes(a.Count)
		case 'a':
			r.ByteAlign()
		}
		if e != nil {
			return out, e
		}
		if v != nil {
			out = append(out, v)
		}
	}
	return out, nil
}

// Build is Parse's inverse: it interprets format, writing to w, consuming
// one value from values per u/s/U/S/K/L/b action in order.
func (w *Writer) Build(format string, values ...interface{}) error {
	actions, err := ParseFormat(format)
	if err != nil {
		return err
	}
	idx := 0
	next := func() interface{} {
		v := values[idx]
		idx++
		return v
	}
	for _, a := range actions {
		var e error
		switch a.Code {
		case 'u':
			e = w.WriteUnsigned(uint(a.Count), next().(uint32))
		case 's':
			e = w.WriteSigned(uint(a.Count), next().(int32))
		case 'U':
			e = w.WriteU64(uint(a.Count), next().(uint64))
		case 'S':
			e = w.WriteS64(uint(a.Count), next().(int64))
		case 'K':
			e = w.WriteBigUnsigned(uint(a.Count), next().(*big.Int))
		case 'L':
			e = w.WriteBigSigned(uint(a.Count), next().(*big.Int))
		case 'p':
			e = w.writeZeroBits(uint(a.Count))
		case 'P':
			e = w.writeZeroBytes(a.Count)
		case 'b':
			e = w.WriteBytes(next().([]byte))
		case 'a':
			e = w.ByteAlign()
		}
		if e != nil {
			return e
		}
	}
	return nil
}

func (w *Writer) writeZeroBits(n uint) error {
	for i := uint(0); i < n; i++ {
		if err := w.writeBit(0); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeZeroBytes(n int) error {
	for i := 0; i < n; i++ {
		if err := w.WriteUnsigned(8, 0); err != nil {
			return err
		}
	}
	return nil
}
