package http

import (
	"context"
	"errors"
	"net/http"

	"floors-indexer/internal/config"

	"github.com/go-chi/chi/v5"
	"gitlab.com/nevasik7/alerting/logger"
)

type Server struct {
	log logger.Logger
	srv *http.Server
}

func NewServer(log logger.Logger, cfg *config.HTTPConfig, router chi.Router) *Server {
	return &Server{
		log: log,
		srv: &http.Server{
			Addr:         cfg.Addr,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Start blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Infof("HTTP server listening on %s", s.srv.Addr)

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
