package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/pressurebar/internal/config"
	"codeberg.org/mutker/pressurebar/internal/errors"
	"codeberg.org/mutker/pressurebar/internal/graphql"
	"codeberg.org/mutker/pressurebar/internal/logger"
	"codeberg.org/mutker/pressurebar/internal/metrics"
	"codeberg.org/mutker/pressurebar/internal/telemetry"
	"codeberg.org/mutker/pressurebar/internal/viewer"
)

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if errors.HasCode(err, errors.ErrHelpRequested) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, logger.IsService())
	logger.Debug().
		Str("endpoint", cfg.Endpoint).
		Bool("metrics", cfg.Metrics).
		Msg("Config loaded")
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := run(ctx); err != nil {
		logger.ErrorWithCode(err).Msg("Exiting with error")
		cancel()
		os.Exit(1)
	}

	logger.Info().Msg("Exiting...")
}

func run(ctx context.Context) error {
	errFactory := errors.New()

	metricsCfg := metrics.DefaultConfig()
	metricsCfg.Enabled = cfg.Metrics
	metricsCfg.ListenAddr = cfg.MetricsAddr

	collector, err := metrics.NewService(metricsCfg)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitMetrics, err)
	}
	defer func() {
		if err := collector.Close(); err != nil {
			logger.ErrorWithCode(err).Msg("failed to close metrics")
		}
	}()

	client := graphql.NewClient(graphql.Options{
		URL:              cfg.Endpoint,
		HandshakeTimeout: cfg.HandshakeTimeout,
	})
	defer client.Close()

	v := viewer.New(os.Stdout, telemetry.NewRenderer(cfg.Glyph), collector)

	return v.Run(ctx, client)
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
