package services

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/benmeehan/findmy-agent/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// MetricsService exposes the agent's prometheus metrics over HTTP.
type MetricsService struct {
	listenAddress string
	metrics       *metrics.Metrics
	logger        zerolog.Logger

	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
}

// NewMetricsService initializes and returns a new instance of MetricsService.
func NewMetricsService(listenAddress string, m *metrics.Metrics, logger zerolog.Logger) *MetricsService {
	return &MetricsService{
		listenAddress: listenAddress,
		metrics:       m,
		logger:        logger,
	}
}

// Start binds the listen address and serves /metrics in the background.
func (m *MetricsService) Start() error {
	if m.server != nil {
		m.logger.Warn().Msg("MetricsService is already running")
		return errors.New("metrics service is already running")
	}

	listener, err := net.Listen("tcp", m.listenAddress)
	if err != nil {
		m.logger.Error().Err(err).Str("address", m.listenAddress).Msg("Failed to bind metrics listener")
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.metrics.Registry(), promhttp.HandlerOpts{}))

	m.listener = listener
	m.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error().Err(err).Msg("Metrics server stopped unexpectedly")
		}
	}()

	m.logger.Info().Str("address", listener.Addr().String()).Msg("MetricsService started")
	return nil
}

// Stop shuts the metrics server down.
func (m *MetricsService) Stop() error {
	if m.server == nil {
		m.logger.Warn().Msg("MetricsService is not running")
		return errors.New("metrics service is not running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := m.server.Shutdown(ctx)
	m.wg.Wait()

	m.server = nil
	m.listener = nil

	m.logger.Info().Msg("MetricsService stopped")
	return err
}

// Addr returns the bound address while the service is running.
func (m *MetricsService) Addr() string {
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr().String()
}
