package sshserver

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"golang.org/x/crypto/ssh"
)

// ChannelHandler runs a chat session over an SSH channel once the client has
// asked for a shell. remote identifies the peer for logging.
type ChannelHandler func(channel ssh.Channel, remote string)

// Server wraps the SSH listener lifecycle.
type Server struct {
	Addr   string
	Config *ssh.ServerConfig

	logger *slog.Logger
}

// New creates a Server with the provided host signer. Clients are not
// authenticated at the SSH layer; the chat handshake asks for a login.
func New(addr string, signer ssh.Signer, logger *slog.Logger) *Server {
	cfg := &ssh.ServerConfig{
		NoClientAuth: true,
	}
	cfg.AddHostKey(signer)

	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		Addr:   addr,
		Config: cfg,
		logger: logger,
	}
}

// ListenAndServe starts the SSH server until the context is cancelled or an error occurs.
func (s *Server) ListenAndServe(ctx context.Context, handler ChannelHandler) error {
	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("sshserver: listen %q: %w", s.Addr, err)
	}
	return s.Serve(ctx, listener, handler)
}

// Serve accepts SSH connections from listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener, handler ChannelHandler) error {
	if handler == nil {
		return errors.New("sshserver: channel handler required")
	}
	defer listener.Close()

	stop := context.AfterFunc(ctx, func() {
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn("sshserver: listener close error", "error", err)
		}
	})
	defer stop()

	s.logger.Info("sshserver: listening", "addr", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.logger.Warn("sshserver: accept error", "error", err)
			continue
		}

		go s.handleConn(ctx, conn, handler)
	}
}

func (s *Server) handleConn(ctx context.Context, tcpConn net.Conn, handler ChannelHandler) {
	defer tcpConn.Close()

	sshConn, chans, reqs, err := ssh.NewServerConn(tcpConn, s.Config)
	if err != nil {
		s.logger.Warn("sshserver: handshake failed", "remote", tcpConn.RemoteAddr().String(), "error", err)
		return
	}
	defer sshConn.Close()

	remote := sshConn.RemoteAddr().String()
	s.logger.Info("sshserver: new connection", "remote", remote, "client", string(sshConn.ClientVersion()))

	go ssh.DiscardRequests(reqs)

	for {
		select {
		case <-ctx.Done():
			return
		case newChannel, ok := <-chans:
			if !ok {
				return
			}
			if newChannel.ChannelType() != "session" {
				_ = newChannel.Reject(ssh.UnknownChannelType, "only session channels are supported")
				continue
			}

			channel, requests, err := newChannel.Accept()
			if err != nil {
				s.logger.Warn("sshserver: channel accept failed", "remote", remote, "error", err)
				continue
			}

			go serveChannel(channel, requests, remote, handler)
		}
	}
}

// EphemeralSigner creates a temporary host key for development environments.
func EphemeralSigner() (ssh.Signer, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("sshserver: generate host key: %w", err)
	}

	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		return nil, fmt.Errorf("sshserver: create signer: %w", err)
	}

	return signer, nil
}
