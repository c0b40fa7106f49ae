package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// EncodeValue converts v to the raw (unescaped) bytes of a field with format f.
//
// Conversions fail closed: a value of the wrong kind is rejected with
// ErrInvalidValue and a value that does not fit the board's type with
// ErrValueOutOfRange. Nothing is silently truncated.
func (c *Codec) EncodeValue(f Format, v interface{}) ([]byte, error) {
	switch f {
	case FormatChar:
		return c.encodeChar(v)

	case FormatByte:
		n, ok := toInteger(v)
		if !ok {
			return nil, invalidValue(f, v)
		}
		if !n.fitsUnsigned(math.MaxUint8) {
			return nil, outOfRange(v, "byte")
		}
		return []byte{byte(n.bits())}, nil

	case FormatInt, FormatLong:
		width := c.board.Width(f)
		n, ok := toInteger(v)
		if !ok {
			return nil, invalidValue(f, v)
		}
		min, max := SignedBounds(width)
		if !n.fitsSigned(min, max) {
			return nil, outOfRange(v, typeName(f))
		}
		return putUint(width, n.bits()), nil

	case FormatUnsignedInt, FormatUnsignedLong:
		width := c.board.Width(f)
		n, ok := toInteger(v)
		if !ok {
			return nil, invalidValue(f, v)
		}
		if !n.fitsUnsigned(UnsignedMax(width)) {
			return nil, outOfRange(v, typeName(f))
		}
		return putUint(width, n.bits()), nil

	case FormatFloat, FormatDouble:
		width := c.board.Width(f)
		x, ok := toFloat(v)
		if !ok {
			return nil, invalidValue(f, v)
		}
		limit := FloatLimit(width)
		if x > limit || x < -limit {
			return nil, outOfRange(v, typeName(f))
		}
		if width == 4 {
			return putUint(4, uint64(math.Float32bits(float32(x)))), nil
		}
		return putUint(8, math.Float64bits(x)), nil

	case FormatString:
		s, ok := toText(v)
		if !ok {
			return nil, invalidValue(f, v)
		}
		return []byte(s), nil

	case FormatBool:
		switch b := v.(type) {
		case bool:
			if b {
				return []byte{1}, nil
			}
			return []byte{0}, nil
		}
		n, ok := toInteger(v)
		if !ok || !n.fitsUnsigned(1) {
			return nil, fmt.Errorf("%v is not boolean: %w", v, ErrInvalidValue)
		}
		return []byte{byte(n.bits())}, nil

	case FormatGuess:
		return c.encodeGuess(v), nil
	}

	return nil, fmt.Errorf("Cannot encode with format %q: %w", f, ErrInvalidFormatSpec)
}

// DecodeValue converts the raw (unescaped) bytes of a field with format f
// into a Go value. Decoded values are string (c, s), uint8 (b), int64 (i, l),
// uint64 (I, L), float64 (f, d) and bool (?). Guessed fields yield int64,
// float64 or string.
//
// A char is read as Latin-1: a byte of 0x80 or above becomes the rune of the
// same value, so the result is always valid UTF-8.
func (c *Codec) DecodeValue(f Format, data []byte) (interface{}, error) {
	if width := c.board.Width(f); width > 0 && len(data) != width {
		return nil, fmt.Errorf("Format %q expects %d bytes, received %d: %w",
			f, width, len(data), ErrMalformedField)
	}

	switch f {
	case FormatChar:
		return string(rune(data[0])), nil

	case FormatByte:
		return data[0], nil

	case FormatInt, FormatLong:
		width := len(data)
		shift := uint(64 - 8*width)
		return int64(getUint(data)<<shift) >> shift, nil

	case FormatUnsignedInt, FormatUnsignedLong:
		return getUint(data), nil

	case FormatFloat, FormatDouble:
		if len(data) == 4 {
			return float64(math.Float32frombits(uint32(getUint(data)))), nil
		}
		return math.Float64frombits(getUint(data)), nil

	case FormatString:
		return trimString(data), nil

	case FormatBool:
		return data[0] != 0, nil

	case FormatGuess:
		return c.decodeGuess(data), nil
	}

	return nil, fmt.Errorf("Cannot decode with format %q: %w", f, ErrInvalidFormatSpec)
}

// ParseValue converts command line or form text into the Go value EncodeValue
// expects for format f.
func ParseValue(f Format, text string) (interface{}, error) {
	var (
		v   interface{}
		err error
	)

	switch f {
	case FormatChar, FormatString, FormatGuess:
		return text, nil
	case FormatByte, FormatUnsignedInt, FormatUnsignedLong:
		v, err = strconv.ParseUint(text, 10, 64)
	case FormatInt, FormatLong:
		v, err = strconv.ParseInt(text, 10, 64)
	case FormatFloat, FormatDouble:
		v, err = strconv.ParseFloat(text, 64)
	case FormatBool:
		v, err = strconv.ParseBool(text)
	default:
		return nil, fmt.Errorf("Cannot parse a value for format %q: %w", f, ErrInvalidFormatSpec)
	}

	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return nil, fmt.Errorf("Failed to parse '%s' as %s: %w", text, typeName(f), ErrValueOutOfRange)
		}
		return nil, fmt.Errorf("Failed to parse '%s' as %s: %w", text, typeName(f), ErrInvalidValue)
	}

	return v, nil
}

func (c *Codec) encodeChar(v interface{}) ([]byte, error) {
	var b byte

	switch ch := v.(type) {
	case byte:
		b = ch
	case rune:
		if ch < 0 || ch > math.MaxUint8 {
			return nil, fmt.Errorf("char must be a single byte, not %q: %w", ch, ErrInvalidValue)
		}
		b = byte(ch)
	case string:
		if len(ch) == 1 {
			b = ch[0]
			break
		}
		// A Latin-1 character above 0x7f takes two bytes in UTF-8
		r, size := utf8.DecodeRuneInString(ch)
		if size != len(ch) || r > math.MaxUint8 {
			return nil, fmt.Errorf("char must be a single Latin-1 character, not \"%s\": %w", ch, ErrInvalidValue)
		}
		b = byte(r)
	default:
		return nil, invalidValue(FormatChar, v)
	}

	if c.escaper.IsReserved(b) {
		return nil, fmt.Errorf("Cannot send control character %q as a char, send it as a string instead: %w",
			b, ErrValueOutOfRange)
	}

	return []byte{b}, nil
}

// encodeGuess renders v as text in a way that atoi/atof on the device
// should understand. Floats in particular can come out mangled.
func (c *Codec) encodeGuess(v interface{}) []byte {
	switch x := v.(type) {
	case string:
		return []byte(x)
	case []byte:
		return x
	}

	c.log.Warn("Sending value as text, consider a binary format instead",
		zap.String("value", fmt.Sprint(v)))

	switch x := v.(type) {
	case float32:
		return []byte(strconv.FormatFloat(float64(x), 'e', 10, 32))
	case float64:
		return []byte(strconv.FormatFloat(x, 'e', 10, 64))
	case bool:
		if x {
			return []byte("1")
		}
		return []byte("0")
	}

	if n, ok := toInteger(v); ok {
		if n.signed {
			return []byte(strconv.FormatInt(n.i, 10))
		}
		return []byte(strconv.FormatUint(n.u, 10))
	}

	if s, ok := toText(v); ok {
		return []byte(s)
	}

	return []byte(fmt.Sprint(v))
}

// decodeGuess returns an int64 for numeric text without a '.', a float64 for
// numeric text with one, and the trimmed text otherwise.
func (c *Codec) decodeGuess(data []byte) interface{} {
	c.log.Warn("Guessing the type of a received field, consider a binary format instead",
		zap.ByteString("field", data))

	text := trimString(data)

	x, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return text
	}

	if strings.Contains(text, ".") {
		return x
	}

	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return i
	}

	return text
}

func trimString(data []byte) string {
	return strings.TrimSpace(strings.Trim(string(data), "\x00"))
}

type integer struct {
	signed bool
	i      int64
	u      uint64
}

func (n integer) fitsSigned(min, max int64) bool {
	if n.signed {
		return n.i >= min && n.i <= max
	}

	return n.u <= uint64(max)
}

func (n integer) fitsUnsigned(max uint64) bool {
	if n.signed {
		return n.i >= 0 && uint64(n.i) <= max
	}

	return n.u <= max
}

// bits returns the two's complement representation of n.
func (n integer) bits() uint64 {
	if n.signed {
		return uint64(n.i)
	}

	return n.u
}

func toInteger(v interface{}) (integer, bool) {
	switch n := v.(type) {
	case int:
		return integer{signed: true, i: int64(n)}, true
	case int8:
		return integer{signed: true, i: int64(n)}, true
	case int16:
		return integer{signed: true, i: int64(n)}, true
	case int32:
		return integer{signed: true, i: int64(n)}, true
	case int64:
		return integer{signed: true, i: n}, true
	case uint:
		return integer{u: uint64(n)}, true
	case uint8:
		return integer{u: uint64(n)}, true
	case uint16:
		return integer{u: uint64(n)}, true
	case uint32:
		return integer{u: uint64(n)}, true
	case uint64:
		return integer{u: n}, true
	}

	return integer{}, false
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}

	n, ok := toInteger(v)
	if !ok {
		return 0, false
	}
	if n.signed {
		return float64(n.i), true
	}

	return float64(n.u), true
}

func toText(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	case fmt.Stringer:
		return s.String(), true
	}

	return "", false
}

func putUint(width int, bits uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], bits)

	out := make([]byte, width)
	copy(out, buf[:width])
	return out
}

func getUint(data []byte) uint64 {
	var buf [8]byte
	copy(buf[:], data)
	return binary.LittleEndian.Uint64(buf[:])
}

func typeName(f Format) string {
	switch f {
	case FormatChar:
		return "char"
	case FormatByte:
		return "byte"
	case FormatInt:
		return "int"
	case FormatUnsignedInt:
		return "unsigned int"
	case FormatLong:
		return "long"
	case FormatUnsignedLong:
		return "unsigned long"
	case FormatFloat:
		return "float"
	case FormatDouble:
		return "double"
	case FormatString:
		return "string"
	case FormatBool:
		return "bool"
	case FormatGuess:
		return "guess"
	}

	return f.String()
}

func invalidValue(f Format, v interface{}) error {
	return fmt.Errorf("Cannot send %v (%T) as %s: %w", v, v, typeName(f), ErrInvalidValue)
}

func outOfRange(v interface{}, name string) error {
	return fmt.Errorf("Value %v exceeds the size of the board's %s: %w", v, name, ErrValueOutOfRange)
}
