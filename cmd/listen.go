package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var listenCount int

var ListenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print messages from the device as JSON lines",
	Long: `Print messages from the device as JSON lines until interrupted

Usage
	cmdmessenger listen --count 10

`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer signalStop()

		m, _, log, err := connect(ctx, cmd)
		if err != nil {
			return err
		}

		defer func() {
			err = multierr.Append(err, m.Close())
		}()

		if err := m.Listen(ctx); err != nil {
			return err
		}

		received := 0

		for {
			select {
			case <-ctx.Done():
				log.Info("Interrupted", zap.Int("received", received))
				return nil

			case <-m.Done():
				return m.Err()

			case msg := <-m.Messages():
				if err := printMessage(cmd.OutOrStdout(), msg); err != nil {
					return err
				}

				received++
				if listenCount > 0 && received >= listenCount {
					return nil
				}
			}
		}
	},
}

func init() {
	ListenCmd.Flags().IntVarP(&listenCount, "count", "n", 0, "Exit after this many messages, 0 for no limit")
}
