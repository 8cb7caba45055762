// Package bitstream implements the bit-granular reader/writer engine that
// drives every codec in this module. It supports big- and little-endian
// bit ordering, unary codes, Huffman decoding via a precompiled code trie
// walked one bit at a time,
// stream-position save/restore, byte callbacks for CRC/MD5 accumulation,
// substreams (bounded views over a byte range), in-memory recorders, and a
// printf-style mini-language for declarative parsing/emission of
// structured headers.
//
// The C implementation this package is modeled on signals failure by
// longjmp'ing to the nearest exception frame pushed with try/etry. Go has
// no equivalent control-transfer primitive that composes with normal
// function calls, so every operation here returns an error instead; a
// try/etry region becomes an ordinary "check the error, handle it" block.
// The one place that distinction shows up in the API is LimitedRecorder,
// which keeps accepting writes after its budget is exceeded (recording the
// first overflow) so a caller can write a whole candidate and check
// Writer.Err() once, the ergonomic equivalent of a single etry wrapped
// around the candidate region.
package bitstream
