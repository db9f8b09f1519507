package server

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Server wraps the control API listener.
type Server struct {
	srv *http.Server
}

// New builds an HTTP server for the control API on addr.
func New(addr string, opts Options) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           NewRouter(opts),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}}
}

// Start serves until Shutdown. It filters http.ErrServerClosed so a clean
// shutdown is not an error.
func (s *Server) Start() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
