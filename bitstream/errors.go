package bitstream

import "github.com/pkg/errors"

// Sentinel errors forming the error taxonomy of the bitstream engine.
// Codec packages built atop bitstream wrap these with errors.Wrap to add
// context; callers can still recover the sentinel with errors.Is.
var (
	// ErrEndOfStream is returned when a read operation runs past the end
	// of the underlying byte source before satisfying its request.
	ErrEndOfStream = errors.New("bitstream: end of stream")

	// ErrWriteFailure is returned when the underlying byte sink refuses a
	// write.
	ErrWriteFailure = errors.New("bitstream: write failure")

	// ErrLimitExceeded is returned by a LimitedRecorder once a write
	// would exceed its configured bit/byte budget.
	ErrLimitExceeded = errors.New("bitstream: limit exceeded")

	// ErrForeignPosition is returned by SetPos when given a position
	// token obtained from a different Reader/Writer.
	ErrForeignPosition = errors.New("bitstream: foreign position")

	// ErrBadFormat is returned by Parse/Build when the format
	// mini-language string contains an unknown action code.
	ErrBadFormat = errors.New("bitstream: bad format string")

	// ErrUnknownHuffmanValue is returned by WriteHuffman when the value
	// to encode has no entry in the table.
	ErrUnknownHuffmanValue = errors.New("bitstream: unknown huffman value")

	// ErrNotSupported is returned by operations a source/sink does not
	// implement: seeking/positioning without the right callbacks, or
	// SetPos on a non-seekable stream.
	ErrNotSupported = errors.New("bitstream: operation not supported")

	// ErrUnreadFailed is returned by Reader.Unread when more than one
	// bit of pushback is requested; only a single bit of pushback is
	// guaranteed by the contract.
	ErrUnreadFailed = errors.New("bitstream: unread failed")

	// ErrEmptyCallbackStack is returned by PopCallback when no callback
	// is registered; popping an empty stack is a programmer error.
	ErrEmptyCallbackStack = errors.New("bitstream: pop from empty callback stack")
)
