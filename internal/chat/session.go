package chat

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	promptLogin      = "Insert your login.\n"
	noticeDuplicate  = "Client with given login already connected. Disconnecting...\n"
	noticeFull       = "Server is full. Disconnecting...\n"
	noticeBadLogin   = "Invalid login. Disconnecting...\n"
	noticeShutdown   = "Server is shutting down.\n"
	noticeUsage      = "Commands: m <login> <text> | l | q\n"
	noticeBadFormat  = "Invalid format. Usage: m <login> <text>\n"
	noticeQueueFull  = "Delivery queue full, try again later.\n"
	headerActiveList = "Active users:\n"
)

// SessionState is the lifecycle of one connection.
type SessionState int

const (
	SessionConnecting SessionState = iota
	SessionAuthenticating
	SessionAuthenticated
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionConnecting:
		return "connecting"
	case SessionAuthenticating:
		return "authenticating"
	case SessionAuthenticated:
		return "authenticated"
	case SessionClosed:
		return "closed"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

type session struct {
	server *Server
	log    *slog.Logger

	conn   io.ReadWriteCloser
	writer *sessionWriter
	reader *lineReader

	login string
	state SessionState

	cleanup sync.Once
}

func newSession(server *Server, conn io.ReadWriteCloser, remote string, terminal bool) *session {
	writer := newSessionWriter(conn, terminal, server.opts.WriteTimeout)

	var echo echoer
	if terminal {
		echo = newTerminalUI(writer)
	}

	return &session{
		server: server,
		log:    server.log.With("session", uuid.NewString(), "remote", remote),
		conn:   conn,
		writer: writer,
		reader: newLineReader(conn, server.opts.LineBufferSize, echo),
		state:  SessionConnecting,
	}
}

var errSessionNotReady = errors.New("session not authenticated")

func (s *session) setState(state SessionState) {
	s.log.Debug("session state", "from", s.state.String(), "to", state.String())
	s.state = state
}

func (s *session) run() {
	defer s.cleanupSession()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("session panic", "panic", r)
		}
	}()

	if err := s.authenticate(); err != nil {
		s.log.Info("login refused", "error", err)
		return
	}

	if err := s.commandLoop(); err != nil {
		s.handleReadError(err)
	}
}

// authenticate runs the handshake. On error the connection has already been
// told why and nothing was registered.
func (s *session) authenticate() error {
	s.setState(SessionAuthenticating)
	if err := s.writer.writeString(promptLogin); err != nil {
		return fmt.Errorf("%w: %v", ErrLoginRead, err)
	}

	line, err := s.reader.ReadLine()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoginRead, err)
	}

	login, err := ParseLogin(line, s.server.opts.MaxLoginLength)
	if err != nil {
		_ = s.writer.writeString(noticeBadLogin)
		return err
	}

	if !s.server.Running() {
		_ = s.writer.writeString(noticeShutdown)
		return ErrQueueClosed
	}

	info, err := s.server.registry.Login(login, s.writer)
	switch {
	case errors.Is(err, ErrAlreadyActive):
		_ = s.writer.writeString(noticeDuplicate)
		return err
	case errors.Is(err, ErrRegistryFull):
		_ = s.writer.writeString(noticeFull)
		return err
	case err != nil:
		return err
	}

	s.login = login
	s.log = s.log.With("login", login)
	s.setState(SessionAuthenticated)
	s.log.Info("session authenticated", "pending", info.Pending)

	if err := s.writer.writeString(fmt.Sprintf("Welcome, %s!\n%s", login, noticeUsage)); err != nil {
		return err
	}
	if _, err := s.server.dispatcher.ReplayOffline(login); err != nil {
		s.log.Warn("offline replay failed", "error", err)
	}
	return nil
}

func (s *session) commandLoop() error {
	for {
		line, err := s.reader.ReadLine()
		if err != nil {
			return err
		}

		quit, err := s.handleLine(line)
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
}

// handleLine executes one command and reports whether the client quit.
// Commands are only accepted once the session is authenticated.
func (s *session) handleLine(line string) (bool, error) {
	if s.state != SessionAuthenticated {
		return false, fmt.Errorf("%w: command in %s state", errSessionNotReady, s.state)
	}

	cmd, err := ParseCommand(line, s.server.opts.MaxLoginLength)
	if err != nil {
		return false, s.writer.writeString(noticeBadFormat)
	}

	switch cmd.Kind {
	case CommandMessage:
		return false, s.writer.writeString(s.send(cmd.To, cmd.Body))
	case CommandList:
		return false, s.writer.writeString(s.activeList())
	case CommandQuit:
		return true, s.writer.writeString(fmt.Sprintf("Goodbye, %s.\n", s.login))
	default:
		return false, s.writer.writeString(noticeUsage)
	}
}

func (s *session) send(to, body string) string {
	err := s.server.dispatcher.Enqueue(s.login, to, body)
	switch {
	case err == nil:
		return fmt.Sprintf("Message queued for %s.\n", to)
	case errors.Is(err, ErrUnknownRecipient):
		return fmt.Sprintf("Unknown recipient: %s\n", to)
	case errors.Is(err, ErrDeliveryQueueFull):
		return noticeQueueFull
	case errors.Is(err, ErrQueueClosed):
		return noticeShutdown
	default:
		s.log.Error("enqueue failed", "to", to, "error", err)
		return noticeUsage
	}
}

func (s *session) activeList() string {
	var b strings.Builder
	b.WriteString(headerActiveList)
	for _, login := range s.server.registry.ListActiveLogins() {
		b.WriteString(login)
		b.WriteByte('\n')
	}
	return b.String()
}

func (s *session) handleReadError(err error) {
	switch {
	case errors.Is(err, errSessionTerminated), errors.Is(err, io.EOF):
		s.log.Info("client disconnected")
	default:
		s.log.Info("connection lost", "error", err)
	}
}

func (s *session) cleanupSession() {
	s.cleanup.Do(func() {
		if s.login != "" {
			s.server.registry.Logout(s.login)
		}
		_ = s.writer.Close()
		s.setState(SessionClosed)
	})
}
