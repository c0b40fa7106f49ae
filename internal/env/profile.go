package env

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"github.com/luma/cmdmessenger/protocol"
)

// Profile describes a device: how its CmdMessenger instance frames commands,
// what board it runs on and which commands its firmware understands.
//
//   field_separator = ","
//   command_separator = ";"
//   escape = "/"
//   board = "uno"
//
//   [widths]
//   int_bytes = 2
//
//   [[commands]]
//   name = "sum_two_ints"
//   format = "ii"
type Profile struct {
	FieldSeparator   string `toml:"field_separator"`
	CommandSeparator string `toml:"command_separator"`
	Escape           string `toml:"escape"`

	// Board names a preset, Widths overrides individual widths of it
	Board  string         `toml:"board"`
	Widths protocol.Board `toml:"widths"`

	// Commands in the order of the firmware's command enum
	Commands []protocol.CommandDef `toml:"commands"`
}

var ErrUnknownProfileKeys = errors.New("Profile has keys that are not understood")

func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Failed to load profile: %w", err)
	}

	profile, err := ParseProfile(string(data))
	if err != nil {
		return nil, fmt.Errorf("Failed to load profile %s: %w", path, err)
	}

	return profile, nil
}

// ParseProfile reads a profile from TOML text. Keys the profile does not
// know are an error, a typo should not silently fall back to a default.
func ParseProfile(data string) (*Profile, error) {
	var profile Profile

	meta, err := toml.Decode(data, &profile)
	if err != nil {
		return nil, fmt.Errorf("Failed to parse profile: %w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}

		return nil, fmt.Errorf("%s: %w", strings.Join(keys, ", "), ErrUnknownProfileKeys)
	}

	return &profile, nil
}

// Codec builds the codec the profile describes.
func (p *Profile) Codec(log *zap.Logger) (*protocol.Codec, error) {
	fieldSeparator, err := separator("field_separator", p.FieldSeparator)
	if err != nil {
		return nil, err
	}

	commandSeparator, err := separator("command_separator", p.CommandSeparator)
	if err != nil {
		return nil, err
	}

	escape, err := separator("escape", p.Escape)
	if err != nil {
		return nil, err
	}

	board, err := p.board()
	if err != nil {
		return nil, err
	}

	commands, err := protocol.NewCommandTableFrom(p.Commands)
	if err != nil {
		return nil, err
	}

	return protocol.NewCodec(protocol.Options{
		FieldSeparator:   fieldSeparator,
		CommandSeparator: commandSeparator,
		Escape:           escape,
		Board:            board,
		Commands:         commands,
		Log:              log,
	})
}

func (p *Profile) board() (protocol.Board, error) {
	board := protocol.DefaultBoard

	if p.Board != "" {
		preset, err := protocol.LookupBoard(p.Board)
		if err != nil {
			return protocol.Board{}, err
		}
		board = preset
	}

	if p.Widths.IntBytes != 0 {
		board.IntBytes = p.Widths.IntBytes
	}
	if p.Widths.LongBytes != 0 {
		board.LongBytes = p.Widths.LongBytes
	}
	if p.Widths.FloatBytes != 0 {
		board.FloatBytes = p.Widths.FloatBytes
	}
	if p.Widths.DoubleBytes != 0 {
		board.DoubleBytes = p.Widths.DoubleBytes
	}

	return board, nil
}

// separator returns the single byte in value, zero selects the default.
func separator(name, value string) (byte, error) {
	switch len(value) {
	case 0:
		return 0, nil
	case 1:
		return value[0], nil
	}

	return 0, fmt.Errorf("%s must be a single byte, not %q: %w", name, value, protocol.ErrInvalidSeparators)
}
