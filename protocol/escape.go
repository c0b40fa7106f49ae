package protocol

import "fmt"

const (
	DefaultFieldSeparator   byte = ','
	DefaultCommandSeparator byte = ';'
	DefaultEscape           byte = '/'
)

// Escaper escapes and unescapes the reserved bytes of a field: the field
// separator, the command separator, the escape byte itself and NUL.
type Escaper struct {
	FieldSeparator   byte
	CommandSeparator byte
	EscapeByte       byte
}

// DefaultEscaper matches the defaults of CmdMessenger 4.
var DefaultEscaper = Escaper{
	FieldSeparator:   DefaultFieldSeparator,
	CommandSeparator: DefaultCommandSeparator,
	EscapeByte:       DefaultEscape,
}

// Validate checks the separators can frame a stream unambiguously.
func (e Escaper) Validate() error {
	if e.FieldSeparator == 0 || e.CommandSeparator == 0 || e.EscapeByte == 0 {
		return fmt.Errorf("Separators cannot be NUL: %w", ErrInvalidSeparators)
	}

	if e.FieldSeparator == e.CommandSeparator ||
		e.FieldSeparator == e.EscapeByte ||
		e.CommandSeparator == e.EscapeByte {
		return fmt.Errorf("Separators %q %q %q are not distinct: %w",
			e.FieldSeparator, e.CommandSeparator, e.EscapeByte, ErrInvalidSeparators)
	}

	return nil
}

// IsReserved reports whether b must be escaped inside a field.
func (e Escaper) IsReserved(b byte) bool {
	return b == e.FieldSeparator || b == e.CommandSeparator || b == e.EscapeByte || b == 0
}

// Escape prefixes every reserved byte in data with the escape byte.
func (e Escaper) Escape(data []byte) []byte {
	out := make([]byte, 0, len(data)+4)

	for _, b := range data {
		if e.IsReserved(b) {
			out = append(out, e.EscapeByte)
		}
		out = append(out, b)
	}

	return out
}

// Unescape reverses Escape.
//
// An escape byte followed by a byte that is not reserved was not an escape
// at all, so both bytes are kept. Firmware built with CmdMessenger behaves the
// same way, which is what keeps stray escape bytes from being dropped.
func (e Escaper) Unescape(data []byte) []byte {
	out := make([]byte, 0, len(data))
	escaped := false

	for _, b := range data {
		if escaped {
			out = e.resolve(out, b)
			escaped = false
			continue
		}

		if b == e.EscapeByte {
			escaped = true
			continue
		}

		out = append(out, b)
	}

	if escaped {
		out = append(out, e.EscapeByte)
	}

	return out
}

// resolve appends the output of an escape sequence whose second byte is b.
func (e Escaper) resolve(out []byte, b byte) []byte {
	if e.IsReserved(b) {
		return append(out, b)
	}

	return append(out, e.EscapeByte, b)
}
