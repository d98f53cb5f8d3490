package metrics

import (
	"time"

	"codeberg.org/mutker/pressurebar/internal/errors"
)

const (
	defaultListenAddr      = "127.0.0.1:9465"
	defaultShutdownTimeout = 5 * time.Second
	metricsPath            = "/metrics"
)

type Config struct {
	ListenAddr      string
	ShutdownTimeout time.Duration
	Enabled         bool
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:      defaultListenAddr,
		ShutdownTimeout: defaultShutdownTimeout,
		Enabled:         false, // Disabled by default
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate the listener if metrics is enabled
	if c.Enabled && c.ListenAddr == "" {
		return errFactory.New(ErrInvalidListenAddr)
	}
	return nil
}
