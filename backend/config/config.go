package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

var (
	ErrEnv          = errors.New("unable to parse environment")
	ErrFlags        = errors.New("unable to parse command line arguments")
	ErrInvalidValue = errors.New("invalid configuration value")
)

// Config is read from the environment first; command line flags override it.
type Config struct {
	APIListenAddr  string `env:"API_LISTEN_ADDR"  envDefault:":8080"`
	WSListenAddr   string `env:"WS_LISTEN_ADDR"   envDefault:":8888"`
	LogLevel       string `env:"LOG_LEVEL"        envDefault:"debug"`
	SendQueueSize  int    `env:"SEND_QUEUE_SIZE"  envDefault:"256"`
	MaxMessageSize int64  `env:"MAX_MESSAGE_SIZE" envDefault:"5242880"`
}

func Load(args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrEnv, err)
	}

	fs := pflag.NewFlagSet("main", pflag.ContinueOnError)
	fs.StringVarP(&cfg.APIListenAddr, "api-listen-addr", "a", cfg.APIListenAddr, "api listen address")
	fs.StringVarP(&cfg.WSListenAddr, "ws-listen-addr", "w", cfg.WSListenAddr, "websocket listen address")
	fs.StringVarP(&cfg.LogLevel, "log-level", "l", cfg.LogLevel, "log level")
	fs.IntVarP(&cfg.SendQueueSize, "send-queue-size", "q", cfg.SendQueueSize,
		"per connection outbound queue size, events are dropped when it is full")
	fs.Int64VarP(&cfg.MaxMessageSize, "max-message-size", "m", cfg.MaxMessageSize,
		"max inbound websocket message size in bytes")
	if err := fs.Parse(args); err != nil {
		return Config{}, errors.Join(ErrFlags, err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Level returns parsed log level. Load guarantees it is valid.
func (cfg Config) Level() zerolog.Level {
	lvl, _ := zerolog.ParseLevel(cfg.LogLevel)
	return lvl
}

func (cfg Config) validate() error {
	var errs []error
	if cfg.APIListenAddr == "" {
		errs = append(errs, fmt.Errorf("%w: api listen address is empty", ErrInvalidValue))
	}
	if cfg.WSListenAddr == "" {
		errs = append(errs, fmt.Errorf("%w: websocket listen address is empty", ErrInvalidValue))
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("%w: log level %q", ErrInvalidValue, cfg.LogLevel))
	}
	if cfg.SendQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: send queue size must be positive, got %d", ErrInvalidValue, cfg.SendQueueSize))
	}
	if cfg.MaxMessageSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: max message size must be positive, got %d", ErrInvalidValue, cfg.MaxMessageSize))
	}
	return errors.Join(errs...)
}
