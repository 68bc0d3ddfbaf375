package admin

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	logx "serialsched/pkg/logx"
)

const shutdownTimeout = 2 * time.Second

// Server manages the lifecycle of the admin HTTP listener.
type Server struct {
	mu   sync.Mutex
	log  logx.Logger
	srv  *http.Server
	ln   net.Listener
	addr string
}

func NewServer(log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{log: log.With(logx.String("comp", "admin"))}
}

// Start listens on addr and serves h in the background. A running server is
// replaced.
func (s *Server) Start(addr string, h http.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(context.Background())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.srv, s.ln, s.addr = srv, ln, ln.Addr().String()

	go func(addr string) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("admin server error", logx.String("addr", addr), logx.Err(err))
		}
	}(s.addr)
	s.log.Info("admin enabled", logx.String("addr", s.addr))
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(ctx)
}

func (s *Server) stopLocked(ctx context.Context) {
	if s.srv == nil {
		return
	}
	srv, addr := s.srv, s.addr
	s.srv, s.ln, s.addr = nil, nil, ""

	sctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Warn("admin shutdown error", logx.String("addr", addr), logx.Err(err))
	}
	s.log.Info("admin disabled", logx.String("addr", addr))
}

// Addr reports the actual listen address if running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
