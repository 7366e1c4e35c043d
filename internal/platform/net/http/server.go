package http

import (
	"context"
	"errors"
	stdhttp "net/http"
	"time"

	"campaigncollector/internal/platform/config"
	"campaigncollector/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

// Server owns the chi mux and the stdlib server
type Server struct {
	addr     string
	mux      *chi.Mux
	srv      *stdhttp.Server
	shutdown time.Duration
}

// NewServer reads ADDR and the timeouts from cfg; opts see the mux before routes mount
func NewServer(cfg config.Conf, opts ...func(*chi.Mux)) *Server {
	addr := cfg.MayString("ADDR", ":4000")
	m := chi.NewRouter()
	for _, o := range opts {
		o(m)
	}
	return &Server{
		addr:     addr,
		mux:      m,
		shutdown: cfg.MayDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		srv: &stdhttp.Server{
			Addr:              addr,
			Handler:           m,
			ReadHeaderTimeout: cfg.MayDuration("READ_HEADER_TIMEOUT", 10*time.Second),
			ReadTimeout:       cfg.MayDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      cfg.MayDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:       cfg.MayDuration("IDLE_TIMEOUT", 2*time.Minute),
		},
	}
}

// Router returns the Router seam over the mux
func (s *Server) Router() Router { return AdaptChi(s.mux) }

// Handler exposes the mux for httptest
func (s *Server) Handler() stdhttp.Handler { return s.mux }

// Addr returns the listen address
func (s *Server) Addr() string { return s.addr }

// Run serves until ctx ends, then shuts down within SHUTDOWN_TIMEOUT
func (s *Server) Run(ctx context.Context) error {
	log := logger.Named("http")
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.addr).Msg("http listening")
		errc <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, stdhttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	log.Info().Dur("timeout", s.shutdown).Msg("http shutting down")
	if err := s.srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }
