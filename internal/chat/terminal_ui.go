package chat

import (
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultWriteTimeout bounds a single write to a client that stopped reading.
const DefaultWriteTimeout = 10 * time.Second

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// sessionWriter serializes writes to a client connection. It is the Transport
// stored in the registry, so the delivery worker and the session share it.
// Terminal sessions get CRLF line endings. Writes are bounded by a deadline
// when the connection supports one; Close never waits for a pending write,
// so closing also unblocks a writer stuck on a client that stopped reading.
// A failed write closes the connection.
type sessionWriter struct {
	mu      sync.Mutex
	conn    io.WriteCloser
	crlf    bool
	timeout time.Duration
	closed  atomic.Bool
}

func newSessionWriter(conn io.WriteCloser, crlf bool, timeout time.Duration) *sessionWriter {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return &sessionWriter{conn: conn, crlf: crlf, timeout: timeout}
}

func (w *sessionWriter) Write(p []byte) (int, error) {
	if err := w.writeString(string(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *sessionWriter) writeString(s string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed.Load() {
		return io.ErrClosedPipe
	}
	if w.crlf {
		s = strings.ReplaceAll(s, "\n", "\r\n")
	}
	if d, ok := w.conn.(writeDeadliner); ok {
		_ = d.SetWriteDeadline(time.Now().Add(w.timeout))
	}
	if _, err := io.WriteString(w.conn, s); err != nil {
		_ = w.Close()
		return err
	}
	return nil
}

func (w *sessionWriter) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	return w.conn.Close()
}

// terminalUI echoes line editing for pty clients, which do not echo locally.
type terminalUI struct {
	writer *sessionWriter
}

func newTerminalUI(writer *sessionWriter) *terminalUI {
	return &terminalUI{writer: writer}
}

func (ui *terminalUI) Echo(c byte) error {
	return ui.writer.writeString(string([]byte{c}))
}

func (ui *terminalUI) Erase() error {
	return ui.writer.writeString("\b \b")
}

func (ui *terminalUI) EndLine() error {
	return ui.writer.writeString("\n")
}

func (ui *terminalUI) ControlAck(label string) error {
	return ui.writer.writeString(label + "\n")
}
