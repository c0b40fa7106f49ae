package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/luma/cmdmessenger/cmd/gen"
)

var (
	// Overrides for the matching CMDMESSENGER_ variables
	device      string
	baudRate    int
	profilePath string
	readTimeout string
	settleDelay string
	debug       bool
)

var RootCmd = &cobra.Command{
	Use:   "cmdmessenger",
	Short: "Talk to CmdMessenger devices over serial or TCP",
	Long: `Talk to microcontrollers running CmdMessenger over a serial port or a
serial server.

Commands are described by a TOML profile listing the device's commands in
the order of the firmware's command enum, along with their argument formats.

Configuration is read from CMDMESSENGER_ environment variables and .env.local,
flags take precedence over both.
`,
	SilenceUsage: true,
}

func init() {
	flags := RootCmd.PersistentFlags()

	flags.StringVarP(&device, "device", "d", "", "Serial device, or tcp://host:port for a serial server")
	flags.IntVarP(&baudRate, "baud", "b", 0, "Baud rate of the serial device")
	flags.StringVarP(&profilePath, "profile", "P", "", "TOML profile describing the device's commands")
	flags.StringVar(&readTimeout, "timeout", "", "How long a read waits for a byte, e.g. 1s")
	flags.StringVar(&settleDelay, "settle", "", "How long to wait for the board to reset after opening the port")
	flags.BoolVar(&debug, "debug", false, "Log at debug level")

	RootCmd.AddCommand(SendCmd)
	RootCmd.AddCommand(ListenCmd)
	RootCmd.AddCommand(ServeCmd)
	RootCmd.AddCommand(PortsCmd)
	RootCmd.AddCommand(VersionCmd)
	RootCmd.AddCommand(gen.RootCmd)
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
