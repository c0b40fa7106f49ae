package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/luma/cmdmessenger/protocol"
)

var (
	sendFormats  string
	replyFormats string
	waitForReply bool
)

var SendCmd = &cobra.Command{
	Use:   "send <command> [args...]",
	Short: "Send a single command to the device",
	Long: `Send a single command to the device, optionally waiting for a reply

Arguments are parsed according to the command's formats from the profile, or
--formats when given.

Usage
	cmdmessenger send sum_two_ints 4 1 --reply

`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer signalStop()

		m, _, _, err := connect(ctx, cmd)
		if err != nil {
			return err
		}

		defer func() {
			err = multierr.Append(err, m.Close())
		}()

		name, texts := args[0], args[1:]

		override, err := flagFormats(cmd, "formats", sendFormats)
		if err != nil {
			return err
		}

		_, formats, err := m.Codec().ResolveFormats(name, override, len(texts))
		if err != nil {
			return err
		}

		values, err := parseValues(formats, texts)
		if err != nil {
			return err
		}

		if err := m.SendWithFormats(name, formats, values...); err != nil {
			return err
		}

		if !waitForReply {
			return nil
		}

		replyOverride, err := flagFormats(cmd, "reply-formats", replyFormats)
		if err != nil {
			return err
		}

		msg, err := m.ReceiveWithFormats(replyOverride)
		if err != nil {
			return err
		}

		if msg == nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "No reply")
			return nil
		}

		return printMessage(cmd.OutOrStdout(), msg)
	},
}

func init() {
	flags := SendCmd.Flags()

	flags.StringVarP(&sendFormats, "formats", "f", "", "Argument formats, overriding the profile")
	flags.BoolVarP(&waitForReply, "reply", "r", false, "Wait for and print one message after sending")
	flags.StringVar(&replyFormats, "reply-formats", "", "Formats of the reply, overriding the profile")
}

// flagFormats parses a format flag, nil means the flag was not given.
func flagFormats(cmd *cobra.Command, name, value string) (protocol.Formats, error) {
	if !cmd.Flags().Changed(name) {
		return nil, nil
	}

	formats, err := protocol.ParseFormats(value)
	if err != nil {
		return nil, fmt.Errorf("Invalid --%s: %w", name, err)
	}

	return formats, nil
}

func parseValues(formats protocol.Formats, texts []string) ([]interface{}, error) {
	values := make([]interface{}, len(texts))

	for i, text := range texts {
		value, err := protocol.ParseValue(formats[i], text)
		if err != nil {
			return nil, fmt.Errorf("Argument %d: %w", i, err)
		}
		values[i] = value
	}

	return values, nil
}

func printMessage(w io.Writer, msg *protocol.ReceivedMessage) error {
	return json.NewEncoder(w).Encode(msg)
}
