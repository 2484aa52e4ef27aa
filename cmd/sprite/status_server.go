package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"sprite/internal/delivery"
	"sprite/internal/event"
	"sprite/internal/logging"
	"sprite/internal/metrics"
)

const statusShutdownTimeout = 2 * time.Second

// statusServer exposes /metrics, /logs and the /events stream while the
// supervisor runs.
type statusServer struct {
	logger   *logging.Logger
	listener net.Listener
	server   *http.Server
}

func newStatusServer(addr string, registry *metrics.Registry, events *event.Bus[delivery.Event], logger *logging.Logger) (*statusServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())
	mux.Handle("/events", &eventsHandler{events: events})
	mux.Handle("/logs", &logsHandler{logger: logger})
	return &statusServer{
		logger:   logger,
		listener: listener,
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

func (s *statusServer) Addr() string {
	return s.listener.Addr().String()
}

// Run serves until ctx is done, then shuts the server down.
func (s *statusServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(s.listener)
	}()
	s.logger.Info("status server listening", map[string]string{"addr": s.Addr()})

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), statusShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("status server shutdown failed", map[string]string{"error": err.Error()})
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
