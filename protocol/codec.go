package protocol

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

type Options struct {
	// Separators, the zero value selects the CmdMessenger defaults ',' ';' '/'
	FieldSeparator   byte
	CommandSeparator byte
	Escape           byte

	// Board the remote device is compiled for, defaults to DefaultBoard
	Board Board

	// Commands must list commands in the order of the firmware's enum
	Commands *CommandTable

	// Log receives warnings about unknown commands and guessed values
	Log *zap.Logger

	// Now stamps received messages, defaults to time.Now
	Now func() time.Time

	// MaxFrameSize caps the bytes buffered for one frame, defaults to
	// DefaultMaxFrameSize
	MaxFrameSize int
}

const DefaultMaxFrameSize = 4096

// Codec encodes commands into frames and decodes frames back into commands.
// It holds no per-call state and is safe for concurrent use.
type Codec struct {
	commands *CommandTable
	board    Board
	escaper  Escaper
	log      *zap.Logger
	now      func() time.Time

	maxFrameSize int
}

func NewCodec(options Options) (*Codec, error) {
	escaper := DefaultEscaper
	escaper.FieldSeparator = orDefault(options.FieldSeparator, escaper.FieldSeparator)
	escaper.CommandSeparator = orDefault(options.CommandSeparator, escaper.CommandSeparator)
	escaper.EscapeByte = orDefault(options.Escape, escaper.EscapeByte)
	if err := escaper.Validate(); err != nil {
		return nil, err
	}

	board := options.Board
	if board == (Board{}) {
		board = DefaultBoard
	}
	if err := board.Validate(); err != nil {
		return nil, err
	}

	commands := options.Commands
	if commands == nil {
		commands = NewCommandTable()
	}

	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	now := options.Now
	if now == nil {
		now = time.Now
	}

	maxFrameSize := options.MaxFrameSize
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}

	return &Codec{
		commands: commands,
		board:    board,
		escaper:  escaper,
		log:      log,
		now:      now,

		maxFrameSize: maxFrameSize,
	}, nil
}

func (c *Codec) Commands() *CommandTable {
	return c.commands
}

func (c *Codec) Board() Board {
	return c.board
}

func (c *Codec) Escaper() Escaper {
	return c.escaper
}

// ResolveFormats returns the command called name and the formats that would
// be used to send count arguments to it.
func (c *Codec) ResolveFormats(name string, formats Formats, count int) (CommandSpec, Formats, error) {
	spec, err := c.commands.ByName(name)
	if err != nil {
		return CommandSpec{}, nil, err
	}

	resolved, err := c.resolveFormats(spec, formats, count)
	if err != nil {
		return CommandSpec{}, nil, err
	}

	return spec, resolved, nil
}

// resolveFormats picks the formats for count arguments of spec: the caller's
// override, then the registered formats, then a guess for every argument.
func (c *Codec) resolveFormats(spec CommandSpec, override Formats, count int) (Formats, error) {
	formats := override
	switch {
	case formats != nil:
	case spec.HasFormats:
		formats = spec.Formats
	default:
		formats = GuessFormats(count)
	}

	expanded, err := ExpandFormats(formats, count)
	if err != nil {
		return nil, fmt.Errorf("Failed to resolve formats for '%s': %w", spec.Name, err)
	}

	return expanded, nil
}

func orDefault(b, def byte) byte {
	if b == 0 {
		return def
	}

	return b
}
