package protocol

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
)

// EncodeFrame assembles the frame for command id. values and formats must
// already be matched one to one, see Encode for '*' and format resolution.
//
// The result is `id,field1,field2;` with every field escaped.
func (c *Codec) EncodeFrame(id int, values []interface{}, formats Formats) ([]byte, error) {
	if len(values) != len(formats) {
		return nil, fmt.Errorf("Command %d has %d formats for %d arguments: %w",
			id, len(formats), len(values), ErrArgumentCountMismatch)
	}

	var buf bytes.Buffer
	buf.Write(c.escaper.Escape([]byte(strconv.Itoa(id))))

	for i, v := range values {
		field, err := c.EncodeValue(formats[i], v)
		if err != nil {
			return nil, fmt.Errorf("Failed to encode argument %d of command %d: %w", i, id, err)
		}

		buf.WriteByte(c.escaper.FieldSeparator)
		buf.Write(c.escaper.Escape(field))
	}

	buf.WriteByte(c.escaper.CommandSeparator)

	return buf.Bytes(), nil
}

// Encode looks up the command called name and encodes args with formats. A
// nil formats selects the command's registered formats, falling back to
// guessing every argument.
func (c *Codec) Encode(name string, formats Formats, args ...interface{}) ([]byte, error) {
	spec, resolved, err := c.ResolveFormats(name, formats, len(args))
	if err != nil {
		return nil, err
	}

	return c.EncodeFrame(spec.ID, args, resolved)
}

// WriteCommand encodes a command and writes it to w in a single Write call.
func (c *Codec) WriteCommand(w io.Writer, name string, formats Formats, args ...interface{}) error {
	frame, err := c.Encode(name, formats, args...)
	if err != nil {
		return err
	}

	_, err = w.Write(frame)
	return err
}
