package env

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	// Device is a serial device or tcp://host:port
	Device      string        `env:"CMDMESSENGER_DEVICE"`
	BaudRate    int           `env:"CMDMESSENGER_BAUD_RATE,default=9600"`
	ReadTimeout time.Duration `env:"CMDMESSENGER_READ_TIMEOUT,default=1s"`
	SettleDelay time.Duration `env:"CMDMESSENGER_SETTLE_DELAY,default=2s"`

	// Profile is the TOML file describing the separators, board and commands
	Profile string `env:"CMDMESSENGER_PROFILE,default=cmdmessenger.toml"`

	QueueSize int  `env:"CMDMESSENGER_QUEUE_SIZE,default=1024"`
	Debug     bool `env:"CMDMESSENGER_DEBUG"`
	DebugHTTP bool `env:"CMDMESSENGER_DEBUG_HTTP"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			panic(err)
		}
	}

	return loadConfig(ctx, envconfig.OsLookuper())
}

func loadConfig(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	config := Config{}

	if err := envconfig.ProcessWith(ctx, &config, lookuper); err != nil {
		return nil, err
	}

	return &config, nil
}
