package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// shutdownTimeout bounds the graceful shutdown of the metrics server.
const shutdownTimeout = 5 * time.Second

// Server serves the Prometheus exposition endpoint.
type Server struct {
	cfg    Config
	srv    *http.Server
	logger *slog.Logger
}

// NewServer creates a metrics server for the given gatherer.
// Config defaults are applied automatically.
func NewServer(cfg Config, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	cfg.ApplyDefaults()

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &Server{
		cfg: cfg,
		srv: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the HTTP handler serving the metrics path.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run serves until ctx is cancelled. It returns nil on graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("metrics server listening",
			"component", "metrics",
			"addr", s.cfg.ListenAddr,
			"path", s.cfg.Path,
		)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics: shutdown: %w", err)
	}
	<-errCh
	return nil
}
