package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultAddr is the default address for the metrics server.
	DefaultAddr = ":9090"

	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
)

// Server serves /metrics on its own listener, away from client traffic.
type Server struct {
	httpServer *http.Server
	log        *slog.Logger
}

func NewServer(addr string, m *Metrics, log *slog.Logger) *Server {
	if addr == "" {
		addr = DefaultAddr
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
		},
		log: log,
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// Handler returns the server's mux.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start blocks serving until Shutdown.
func (s *Server) Start() error {
	s.log.Info("starting metrics server", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down metrics server")
	return s.httpServer.Shutdown(ctx)
}
