package metrics

import (
	"context"
	"net"
	"net/http"

	"codeberg.org/mutker/pressurebar/internal/errors"
	"codeberg.org/mutker/pressurebar/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pressurebar"

type service struct {
	cfg      Config
	registry *prometheus.Registry
	server   *http.Server
	listener net.Listener
	served   chan struct{}

	snapshots prometheus.Counter
	failures  *prometheus.CounterVec
	raw       prometheus.Gauge
	fraction  prometheus.Gauge
}

// No-op implementation
type noopCollector struct{}

// NewService returns a Prometheus-backed collector serving /metrics on
// cfg.ListenAddr, or a no-op collector when metrics are disabled.
func NewService(cfg Config) (Collector, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		logger.Debug().Msg("Metrics disabled, using no-op collector")
		return &noopCollector{}, nil
	}

	s := newService(cfg)
	if err := s.register(); err != nil {
		return nil, errFactory.Wrap(ErrRegistration, err)
	}

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return nil, errFactory.WithData(ErrListen, struct {
			Addr  string
			Error string
		}{
			Addr:  cfg.ListenAddr,
			Error: err.Error(),
		})
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	s.server = &http.Server{Handler: mux}

	go s.serve()

	logger.Info().
		Str("addr", listener.Addr().String()).
		Str("path", metricsPath).
		Msg("Metrics listener started")

	return s, nil
}

func newService(cfg Config) *service {
	return &service{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
		served:   make(chan struct{}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Total number of snapshots rendered",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of terminal errors by code",
		}, []string{"code"}),
		raw: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pressure_fullscale",
			Help:      "Last raw pressure reading (0-65535)",
		}),
		fraction: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pressure_fraction",
			Help:      "Last pressure reading normalized to 0-1",
		}),
	}
}

func (s *service) register() error {
	for _, c := range []prometheus.Collector{s.snapshots, s.failures, s.raw, s.fraction} {
		if err := s.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) serve() {
	defer close(s.served)

	if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("Metrics listener stopped")
	}
}

// Addr returns the address the listener is bound to.
func (s *service) Addr() string {
	return s.listener.Addr().String()
}

func (s *service) ObserveReading(raw uint16, fraction float64) {
	s.snapshots.Inc()
	s.raw.Set(float64(raw))
	s.fraction.Set(fraction)
}

func (s *service) ObserveError(code string) {
	s.failures.WithLabelValues(code).Inc()
}

func (s *service) Close() error {
	errFactory := errors.New()

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return errFactory.Wrap(ErrServiceShutdown, err)
	}
	<-s.served

	logger.Debug().Msg("Metrics listener closed")

	return nil
}

func (*noopCollector) ObserveReading(_ uint16, _ float64) {}

func (*noopCollector) ObserveError(_ string) {}

func (*noopCollector) Close() error {
	return nil
}
