package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/moviehub/catalog/internal/config"
)

const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = time.Minute
	// shutdownGrace bounds how long in-flight catalog reads may run after a
	// stop signal before the listener is torn down.
	shutdownGrace = 10 * time.Second
)

// Server couples the HTTP listener to the process lifecycle: it serves until
// the context is cancelled, then drains in-flight requests.
type Server struct {
	logger   *slog.Logger
	listener *http.Server
	stop     sync.Once
}

// New builds the listener from the configured bind address and the assembled
// handler.
func New(cfg config.Config, logger *slog.Logger, handler http.Handler) (*Server, error) {
	if handler == nil {
		return nil, errors.New("server: handler required")
	}

	addr := net.JoinHostPort(cfg.Server.Listen.Address, strconv.Itoa(cfg.Server.Listen.Port))
	return &Server{
		logger: logger.With(slog.String("agent", "lifecycle")),
		listener: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
			IdleTimeout:       idleTimeout,
		},
	}, nil
}

// Run serves until ctx is cancelled or the listener fails. On cancellation the
// context error is returned after a graceful drain, so callers can tell a
// requested stop from a crash.
func (s *Server) Run(ctx context.Context) error {
	serveErr := make(chan error, 1)

	go func() {
		s.logger.Info("http listener starting", slog.String("address", s.listener.Addr))
		err := s.listener.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("server: listen: %w", err)
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := s.shutdown(drainCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-serveErr:
		return err
	}
}

// shutdown runs at most once; overlapping cancellations wait on the first
// drain instead of racing it.
func (s *Server) shutdown(ctx context.Context) error {
	var err error
	s.stop.Do(func() {
		s.logger.Info("http listener draining", slog.String("address", s.listener.Addr))
		err = s.listener.Shutdown(ctx)
	})
	return err
}
