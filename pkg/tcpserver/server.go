package tcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"
)

const acceptBackoff = 50 * time.Millisecond

// ConnHandler handles an accepted connection. It owns conn and must close it.
type ConnHandler func(conn net.Conn)

// Server wraps a plain TCP listener lifecycle.
type Server struct {
	Addr string

	logger *slog.Logger
}

// New creates a Server listening on addr.
func New(addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{Addr: addr, logger: logger}
}

// ListenAndServe listens on s.Addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, handler ConnHandler) error {
	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("tcpserver: listen %q: %w", s.Addr, err)
	}
	return s.Serve(ctx, listener, handler)
}

// Serve accepts connections from listener and runs handler for each one in
// its own goroutine. It closes listener and returns ctx.Err() once ctx is
// cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener, handler ConnHandler) error {
	if handler == nil {
		return errors.New("tcpserver: connection handler required")
	}
	defer listener.Close()

	stop := context.AfterFunc(ctx, func() {
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn("tcpserver: listener close error", "error", err)
		}
	})
	defer stop()

	s.logger.Info("tcpserver: listening", "addr", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.logger.Warn("tcpserver: accept error", "error", err)
			time.Sleep(acceptBackoff)
			continue
		}

		s.logger.Debug("tcpserver: new connection", "remote", conn.RemoteAddr().String())
		go handler(conn)
	}
}
