package protocol

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	float32Limit = 3.4028235e+38
	float64Limit = 1e308
)

// Board describes the native type widths (in bytes) of the remote device.
// Binary integer and float fields are sized and range checked against it.
type Board struct {
	IntBytes    int `toml:"int_bytes"`
	LongBytes   int `toml:"long_bytes"`
	FloatBytes  int `toml:"float_bytes"`
	DoubleBytes int `toml:"double_bytes"`
}

// Boards are the known board presets, keyed by name.
var Boards = map[string]Board{
	// ATmega based boards (Uno, Nano, Mega, Leonardo)
	"uno": {IntBytes: 2, LongBytes: 4, FloatBytes: 4, DoubleBytes: 4},

	// ARM based boards (Due, Zero)
	"due": {IntBytes: 4, LongBytes: 4, FloatBytes: 4, DoubleBytes: 8},
}

// DefaultBoard is the profile of an Arduino Uno.
var DefaultBoard = Boards["uno"]

// LookupBoard returns the preset with the given name.
func LookupBoard(name string) (Board, error) {
	b, ok := Boards[strings.ToLower(name)]
	if !ok {
		names := make([]string, 0, len(Boards))
		for n := range Boards {
			names = append(names, n)
		}
		sort.Strings(names)

		return Board{}, fmt.Errorf("Unknown board '%s', expected one of %s: %w",
			name, strings.Join(names, ", "), ErrInvalidBoard)
	}

	return b, nil
}

// Validate checks that every width is one the codec can encode.
func (b Board) Validate() error {
	for _, w := range []struct {
		name  string
		width int
	}{{"int", b.IntBytes}, {"long", b.LongBytes}} {
		switch w.width {
		case 1, 2, 4, 8:
		default:
			return fmt.Errorf("%s bytes should be 1, 2, 4 or 8, not %d: %w", w.name, w.width, ErrInvalidBoard)
		}
	}

	for _, w := range []struct {
		name  string
		width int
	}{{"float", b.FloatBytes}, {"double", b.DoubleBytes}} {
		if w.width != 4 && w.width != 8 {
			return fmt.Errorf("%s bytes should be 4 (32 bit) or 8 (64 bit), not %d: %w", w.name, w.width, ErrInvalidBoard)
		}
	}

	return nil
}

// Width returns the byte width of a binary format on this board. Textual
// formats report zero.
func (b Board) Width(f Format) int {
	switch f {
	case FormatChar, FormatByte, FormatBool:
		return 1
	case FormatInt, FormatUnsignedInt:
		return b.IntBytes
	case FormatLong, FormatUnsignedLong:
		return b.LongBytes
	case FormatFloat:
		return b.FloatBytes
	case FormatDouble:
		return b.DoubleBytes
	}

	return 0
}

// SignedBounds returns the inclusive range of a signed integer of width bytes.
func SignedBounds(width int) (min, max int64) {
	if width >= 8 {
		return math.MinInt64, math.MaxInt64
	}

	bits := uint(8*width - 1)
	return -(1 << bits), 1<<bits - 1
}

// UnsignedMax returns the largest unsigned integer of width bytes.
func UnsignedMax(width int) uint64 {
	if width >= 8 {
		return math.MaxUint64
	}

	return 1<<uint(8*width) - 1
}

// FloatLimit returns the largest magnitude accepted for a float of width bytes.
func FloatLimit(width int) float64 {
	if width == 8 {
		return float64Limit
	}

	return float32Limit
}
