package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/zap"
)

// ReadFrame reads bytes from r until a command separator completes a frame.
//
// r should return io.EOF when no byte arrives within its timeout. If that
// happens before anything but whitespace was read, ReadFrame returns a nil
// frame and a nil error: there was simply no message. If it happens part way
// through a frame ErrIncompleteFrame is returned, and the bytes read so far
// are lost.
//
// A frame longer than the codec's MaxFrameSize is discarded up to its command
// separator and reported as ErrFrameTooLarge, so the next call starts on a
// frame boundary.
func (c *Codec) ReadFrame(r io.ByteReader) (*Frame, error) {
	var (
		fields   = [][]byte{{}}
		raw      = make([]byte, 0, 32)
		escaped  = false
		overflow = false
	)

	for {
		b, err := r.ReadByte()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("Failed to read frame: %w", err)
			}

			if overflow {
				return nil, c.frameTooLarge()
			}

			if len(bytes.TrimSpace(raw)) == 0 {
				return nil, nil
			}

			return nil, fmt.Errorf("Incomplete message (%q): %w", raw, ErrIncompleteFrame)
		}

		if !overflow && len(raw) >= c.maxFrameSize {
			c.log.Warn("Discarding oversized frame", zap.Int("max", c.maxFrameSize))
			overflow = true
			fields, raw = nil, nil
		}

		if overflow {
			// Only the framing matters until the command separator
			switch {
			case escaped:
				escaped = false
			case b == c.escaper.EscapeByte:
				escaped = true
			case b == c.escaper.CommandSeparator:
				return nil, c.frameTooLarge()
			}
			continue
		}

		raw = append(raw, b)
		current := len(fields) - 1

		if escaped {
			fields[current] = c.escaper.resolve(fields[current], b)
			escaped = false
			continue
		}

		switch b {
		case c.escaper.EscapeByte:
			escaped = true

		case c.escaper.FieldSeparator:
			fields = append(fields, []byte{})

		case c.escaper.CommandSeparator:
			return &Frame{Fields: fields, Raw: raw, Time: c.now()}, nil

		default:
			fields[current] = append(fields[current], b)
		}
	}
}

func (c *Codec) frameTooLarge() error {
	return fmt.Errorf("Frame exceeded %d bytes: %w", c.maxFrameSize, ErrFrameTooLarge)
}

// DecodeFrame resolves the frame's command and decodes its arguments. A nil
// formats selects the command's registered formats, falling back to guessing
// every argument. Either every argument decodes or an error is returned.
//
// Unknown command ids are not an error: the message is named UnknownName and
// a warning is logged.
func (c *Codec) DecodeFrame(frame *Frame, formats Formats) (*ReceivedMessage, error) {
	idText := string(bytes.TrimSpace(frame.Fields[0]))

	id, err := strconv.Atoi(idText)
	if err != nil {
		id = Unknown.ID
	}

	spec, ok := c.commands.ByID(id)
	if !ok {
		c.log.Warn("Received unrecognized command", zap.String("id", idText))
	}

	args := frame.Fields[1:]

	resolved, err := c.resolveFormats(spec, formats, len(args))
	if err != nil {
		return nil, err
	}

	values := make([]interface{}, len(args))
	for i, field := range args {
		values[i], err = c.DecodeValue(resolved[i], field)
		if err != nil {
			return nil, fmt.Errorf("Failed to decode argument %d of '%s': %w", i, spec.Name, err)
		}
	}

	return &ReceivedMessage{
		Command: spec.Name,
		ID:      id,
		Values:  values,
		Formats: resolved,
		Time:    frame.Time,
		Raw:     frame.Raw,
	}, nil
}

// Receive reads and decodes a single frame. It returns nil, nil when no
// message arrived before r ran dry.
func (c *Codec) Receive(r io.ByteReader, formats Formats) (*ReceivedMessage, error) {
	frame, err := c.ReadFrame(r)
	if err != nil || frame == nil {
		return nil, err
	}

	return c.DecodeFrame(frame, formats)
}
