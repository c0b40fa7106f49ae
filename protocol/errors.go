package protocol

import "errors"

var (
	ErrUnknownCommand        = errors.New("Unknown command, it is not registered in the command table")
	ErrDuplicateCommand      = errors.New("Command is already registered in the command table")
	ErrInvalidFormatSpec     = errors.New("Argument format is malformed or uses an unsupported token")
	ErrArgumentCountMismatch = errors.New("Number of argument formats does not match the number of arguments")
	ErrValueOutOfRange       = errors.New("Value does not fit the board's type")
	ErrInvalidValue          = errors.New("Value cannot be represented by the requested format")
	ErrMalformedField        = errors.New("Received field cannot be decoded with the requested format")
	ErrIncompleteFrame       = errors.New("Frame is incomplete, the stream ended before the command separator")
	ErrFrameTooLarge         = errors.New("Frame is longer than the maximum frame size")
	ErrInvalidBoard          = errors.New("Board profile is invalid")
	ErrInvalidSeparators     = errors.New("Separators must be distinct, non-NUL bytes")
)

// IsFrameError reports whether err concerns a single frame. The stream is
// still usable after one, unlike after a transport error.
func IsFrameError(err error) bool {
	for _, target := range []error{
		ErrIncompleteFrame,
		ErrFrameTooLarge,
		ErrMalformedField,
		ErrArgumentCountMismatch,
		ErrInvalidFormatSpec,
		ErrUnknownCommand,
		ErrValueOutOfRange,
		ErrInvalidValue,
	} {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}
