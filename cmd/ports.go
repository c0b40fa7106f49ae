package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luma/cmdmessenger/transport"
)

var PortsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List the serial ports on this machine",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := transport.ListSerialPorts()
		if err != nil {
			return err
		}

		if len(ports) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No serial ports found")
			return nil
		}

		for _, port := range ports {
			fmt.Fprintln(cmd.OutOrStdout(), port)
		}

		return nil
	},
}
