package protocol

import (
	"fmt"
	"strings"
)

// Format selects the encode/decode rule used for one argument position.
type Format byte

const (
	FormatChar         Format = 'c'
	FormatByte         Format = 'b'
	FormatInt          Format = 'i'
	FormatUnsignedInt  Format = 'I'
	FormatLong         Format = 'l'
	FormatUnsignedLong Format = 'L'
	FormatFloat        Format = 'f'
	FormatDouble       Format = 'd'
	FormatString       Format = 's'
	FormatBool         Format = '?'
	FormatGuess        Format = 'g'

	// FormatRepeat applies the preceding format to every remaining argument.
	FormatRepeat Format = '*'
)

func (f Format) String() string {
	return string(rune(f))
}

// Valid reports whether f is one of the known format tokens.
func (f Format) Valid() bool {
	switch f {
	case FormatChar, FormatByte, FormatInt, FormatUnsignedInt, FormatLong,
		FormatUnsignedLong, FormatFloat, FormatDouble, FormatString, FormatBool,
		FormatGuess, FormatRepeat:
		return true
	}

	return false
}

// Formats is an ordered list of format tokens, one per argument.
type Formats []Format

func (fs Formats) String() string {
	var b strings.Builder
	for _, f := range fs {
		b.WriteByte(byte(f))
	}

	return b.String()
}

// ParseFormats turns a format string such as "ii" or "l*" into a list of
// tokens. The result is never nil, so an empty string still counts as an
// explicit "no arguments" format.
func ParseFormats(s string) (Formats, error) {
	formats := make(Formats, 0, len(s))

	for i := 0; i < len(s); i++ {
		f := Format(s[i])
		if !f.Valid() {
			return nil, fmt.Errorf("Failed to parse format '%s', unsupported token %q at %d: %w",
				s, s[i], i, ErrInvalidFormatSpec)
		}

		formats = append(formats, f)
	}

	if err := checkRepeat(formats); err != nil {
		return nil, err
	}

	return formats, nil
}

// MustParseFormats is like ParseFormats but panics on error. It is meant for
// package level command tables.
func MustParseFormats(s string) Formats {
	formats, err := ParseFormats(s)
	if err != nil {
		panic(err)
	}

	return formats
}

// GuessFormats returns n guess tokens.
func GuessFormats(n int) Formats {
	formats := make(Formats, n)
	for i := range formats {
		formats[i] = FormatGuess
	}

	return formats
}

// ExpandFormats resolves a trailing '*' against the number of positional
// arguments and checks that the resolved list covers exactly count arguments.
func ExpandFormats(formats Formats, count int) (Formats, error) {
	if err := checkRepeat(formats); err != nil {
		return nil, err
	}

	expanded := formats
	if n := len(formats); n > 0 && formats[n-1] == FormatRepeat {
		explicit := formats[:n-1]

		expanded = make(Formats, len(explicit), max(len(explicit), count))
		copy(expanded, explicit)

		last := explicit[len(explicit)-1]
		for len(expanded) < count {
			expanded = append(expanded, last)
		}
	}

	if len(expanded) != count {
		return nil, fmt.Errorf("Format '%s' resolves to %d tokens for %d arguments: %w",
			formats, len(expanded), count, ErrArgumentCountMismatch)
	}

	return expanded, nil
}

// checkRepeat enforces that '*' occurs at most once, only as the last token
// and only after at least one other token.
func checkRepeat(formats Formats) error {
	for i, f := range formats {
		if f != FormatRepeat {
			continue
		}

		if i != len(formats)-1 || i == 0 {
			return fmt.Errorf("Failed to parse format '%s', '*' must occur once, last, after another format: %w",
				formats, ErrInvalidFormatSpec)
		}
	}

	return nil
}

func max(a, b int) int {
	if a > b {
		return a
	}

	return b
}

func (fs Formats) MarshalText() ([]byte, error) {
	return []byte(fs.String()), nil
}

func (fs *Formats) UnmarshalText(text []byte) error {
	formats, err := ParseFormats(string(text))
	if err != nil {
		return err
	}

	*fs = formats
	return nil
}
