package cmd

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/cmdmessenger/api"
	"github.com/luma/cmdmessenger/messenger"
	"github.com/luma/cmdmessenger/protocol"
	"github.com/luma/cmdmessenger/storage"
	"github.com/luma/cmdmessenger/transport"
)

var (
	// The host to listen on
	host string

	// The port to listen for http requests on
	httpPort string

	// The port to listen for bridge clients on
	port int

	// Disables the TCP bridge
	noBridge bool

	// Logs every bridged frame
	traceBridge bool
)

func init() {
	flags := ServeCmd.Flags()

	flags.IntVarP(&port, "port", "p", 7363, "The port to listen for bridge clients on")
	flags.StringVar(&httpPort, "http-port", "7362", "The port to listen to HTTP requests on")
	flags.StringVarP(&host, "host", "a", "0.0.0.0", "The host to listen on")
	flags.BoolVar(&noBridge, "no-bridge", false, "Do not start the TCP bridge")
	flags.BoolVar(&traceBridge, "trace", false, "Log every frame passing through the bridge")
}

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the device over HTTP and a TCP bridge",
	Long: `Serve the device over HTTP and a TCP bridge

The HTTP API sends commands and reports the latest message received for each
command. The bridge lets several TCP clients share the device, frames from
clients are written to the device and frames from the device are copied to
every client.

Usage
	cmdmessenger serve --device /dev/ttyACM0

`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer signalStop()

		m, conf, log, err := connect(ctx, cmd)
		if err != nil {
			return err
		}

		fileLimit, err := setFileLimit()
		if err != nil {
			log.Warn("Failed to raise file limit", zap.Error(err))
		} else {
			log.Info("Set file limit", zap.Uint64("fileLimit", fileLimit))
		}

		store := storage.NewInmemoryStore()

		router := api.NewRouter(api.Options{
			Sender:    m,
			Store:     store,
			DebugHTTP: conf.DebugHTTP,
			Log:       log.Named("http"),
		})

		s := &http.Server{
			Addr:    net.JoinHostPort(host, httpPort),
			Handler: router,
		}

		// Initializing the server in a goroutine so that
		// it won't block the graceful shutdown handling below
		go func() {
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Http server errored", zap.Error(err))
				signalStop()
			}
		}()

		var bridge *transport.TCP
		if !noBridge {
			bridge = transport.NewTCP(transport.Options{
				Host:      host,
				Port:      port,
				Reuseport: true,
				Codec:     m.Codec(),
				Handler:   forwardToDevice(m, log.Named("bridge")),
				Trace:     traceBridge,
				Log:       log.Named("transport"),
			})

			if err := bridge.Start(ctx); err != nil {
				return multierr.Append(err, m.Close())
			}
		}

		if err := m.Listen(ctx); err != nil {
			return multierr.Append(err, m.Close())
		}

		relayDone := make(chan struct{})
		go func() {
			defer close(relayDone)
			relay(ctx, m, store, bridge, log.Named("relay"))
		}()

		log.Info("Listening",
			zap.Any("config", conf),
			zap.String("host", host),
			zap.Int("port", port),
			zap.String("httpPort", httpPort))

		// Listen for the interrupt signal, or for the device to go away.
		var listenErr error
		select {
		case <-ctx.Done():
		case <-m.Done():
			listenErr = m.Err()
			log.Error("Lost the device", zap.Error(listenErr))
		}

		// Restore default behavior on the interrupt signal and notify user of shutdown.
		signalStop()
		log.Info("Shutting down gracefully, press Ctrl+C again to force")

		// The context is used to inform the server it has 5 seconds to finish
		// the request it is currently handling
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.SetKeepAlivesEnabled(false)

		if err := s.Shutdown(shutdownCtx); err != nil {
			log.Error("Http server forced to shutdown", zap.Error(err))
		}

		if bridge != nil {
			if err := bridge.Close(); err != nil {
				log.Error("TCP bridge forced to shutdown", zap.Error(err))
			}
		}

		<-relayDone

		if err := m.Close(); err != nil {
			log.Error("Device did not close cleanly", zap.Error(err))
		}

		if err := store.Close(); err != nil {
			log.Error("Store did not close cleanly", zap.Error(err))
		}

		log.Info("Exiting")
		return listenErr
	},
}

// relay records every message from the device and copies it to the bridge
// clients until ctx is done.
func relay(
	ctx context.Context,
	m *messenger.Messenger,
	store storage.Store,
	bridge *transport.TCP,
	log *zap.Logger,
) {
	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-m.Messages():
			if err := storage.RecordMessage(ctx, store, msg); err != nil {
				log.Warn("Failed to record message",
					zap.String("command", msg.Command),
					zap.Error(err))
			}

			if bridge == nil {
				continue
			}

			if err := bridge.Broadcast(msg.Raw); err != nil {
				log.Warn("Failed to copy message to bridge clients",
					zap.String("command", msg.Command),
					zap.Error(err))
			}
		}
	}
}

// forwardToDevice writes bridge client frames to the device as they were
// received. Frames for commands missing from the profile are still forwarded,
// the firmware may know them.
func forwardToDevice(m *messenger.Messenger, log *zap.Logger) transport.FrameHandler {
	return func(frame *protocol.Frame) error {
		idText := string(bytes.TrimSpace(frame.Fields[0]))

		id, err := strconv.Atoi(idText)
		if _, ok := m.Codec().Commands().ByID(id); err != nil || !ok {
			log.Warn("Forwarding unrecognized command", zap.String("id", idText))
		}

		return m.WriteFrame(bytes.TrimLeft(frame.Raw, " \t\r\n"))
	}
}

func setFileLimit() (uint64, error) {
	var rLimit syscall.Rlimit

	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	rLimit.Cur = rLimit.Max
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		return 0, err
	}

	return rLimit.Cur, nil
}
