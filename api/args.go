package api

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/luma/cmdmessenger/protocol"
)

// parseArgs converts JSON arguments into the Go values the codec expects for
// the formats the command will be sent with.
func parseArgs(
	codec *protocol.Codec,
	name string,
	override protocol.Formats,
	args []gjson.Result,
) (protocol.CommandSpec, protocol.Formats, []interface{}, error) {
	spec, formats, err := codec.ResolveFormats(name, override, len(args))
	if err != nil {
		return protocol.CommandSpec{}, nil, nil, err
	}

	values := make([]interface{}, len(args))
	for i, arg := range args {
		if values[i], err = jsonArg(formats[i], arg); err != nil {
			return protocol.CommandSpec{}, nil, nil, fmt.Errorf("Argument %d of '%s': %w", i, name, err)
		}
	}

	return spec, formats, values, nil
}

func jsonArg(f protocol.Format, arg gjson.Result) (interface{}, error) {
	switch f {
	case protocol.FormatChar, protocol.FormatString:
		if arg.Type == gjson.String {
			return arg.String(), nil
		}

	case protocol.FormatGuess:
		switch arg.Type {
		case gjson.String:
			return arg.String(), nil
		case gjson.True, gjson.False:
			return arg.Bool(), nil
		case gjson.Number:
			if strings.ContainsAny(arg.Raw, ".eE") {
				return arg.Float(), nil
			}
			return protocol.ParseValue(protocol.FormatLong, arg.Raw)
		}

	case protocol.FormatBool:
		switch arg.Type {
		case gjson.True, gjson.False:
			return arg.Bool(), nil
		case gjson.Number:
			return protocol.ParseValue(f, arg.Raw)
		}

	default:
		if arg.Type == gjson.Number {
			return protocol.ParseValue(f, arg.Raw)
		}
	}

	return nil, fmt.Errorf("Cannot use %s as format %q: %w", arg.Raw, f, protocol.ErrInvalidValue)
}
