package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/cmdmessenger/internal/env"
	"github.com/luma/cmdmessenger/messenger"
	"github.com/luma/cmdmessenger/protocol"
	"github.com/luma/cmdmessenger/transport"
)

var ErrNoDevice = errors.New("No device given, set CMDMESSENGER_DEVICE or pass --device")

// loadConfig reads the environment and applies any flags that were set.
func loadConfig(ctx context.Context, cmd *cobra.Command) (*env.Config, error) {
	conf, err := env.LoadConfig(ctx)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()

	if flags.Changed("device") {
		conf.Device = device
	}
	if flags.Changed("baud") {
		conf.BaudRate = baudRate
	}
	if flags.Changed("profile") {
		conf.Profile = profilePath
	}
	if flags.Changed("debug") {
		conf.Debug = debug
	}

	if flags.Changed("timeout") {
		if conf.ReadTimeout, err = time.ParseDuration(readTimeout); err != nil {
			return nil, fmt.Errorf("Invalid --timeout: %w", err)
		}
	}

	if flags.Changed("settle") {
		if conf.SettleDelay, err = time.ParseDuration(settleDelay); err != nil {
			return nil, fmt.Errorf("Invalid --settle: %w", err)
		}
	}

	if conf.Device == "" {
		return nil, ErrNoDevice
	}

	return conf, nil
}

// connect loads the profile and opens the device.
func connect(ctx context.Context, cmd *cobra.Command) (*messenger.Messenger, *env.Config, *zap.Logger, error) {
	conf, err := loadConfig(ctx, cmd)
	if err != nil {
		return nil, nil, nil, err
	}

	log, err := env.MakeLogger(conf.Debug)
	if err != nil {
		return nil, nil, nil, err
	}

	codec, err := loadCodec(conf.Profile, log)
	if err != nil {
		return nil, nil, nil, err
	}

	devicePort, err := transport.Open(transport.PortOptions{
		Device:      conf.Device,
		BaudRate:    conf.BaudRate,
		ReadTimeout: conf.ReadTimeout,
		SettleDelay: conf.SettleDelay,
		Log:         log.Named("port"),
	})
	if err != nil {
		return nil, nil, nil, err
	}

	log.Info("Connected",
		zap.String("device", conf.Device),
		zap.Int("baudRate", conf.BaudRate),
		zap.Int("commands", codec.Commands().Len()))

	m := messenger.New(messenger.Options{
		Codec:     codec,
		Port:      devicePort,
		QueueSize: conf.QueueSize,
		Log:       log.Named("messenger"),
	})

	return m, conf, log, nil
}

func loadCodec(path string, log *zap.Logger) (*protocol.Codec, error) {
	profile, err := env.LoadProfile(path)
	if err != nil {
		return nil, err
	}

	return profile.Codec(log.Named("codec"))
}
