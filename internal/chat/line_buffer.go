package chat

import (
	"bufio"
	"errors"
	"io"
)

const (
	DefaultLineBufferSize = 4096

	ctrlC      = 0x03
	ctrlD      = 0x04
	backspace  = '\b'
	deleteChar = 0x7f
)

var errSessionTerminated = errors.New("session terminated")

// lineBuffer accumulates the bytes of the line being read, up to a fixed
// capacity.
type lineBuffer struct {
	data     []byte
	capacity int
}

func newLineBuffer(capacity int) *lineBuffer {
	if capacity <= 0 {
		capacity = DefaultLineBufferSize
	}
	return &lineBuffer{
		data:     make([]byte, 0, capacity),
		capacity: capacity,
	}
}

func (b *lineBuffer) Append(c byte) {
	b.data = append(b.data, c)
}

func (b *lineBuffer) TrimLast() bool {
	if n := len(b.data); n > 0 {
		b.data = b.data[:n-1]
		return true
	}
	return false
}

func (b *lineBuffer) Full() bool {
	return len(b.data) >= b.capacity
}

func (b *lineBuffer) Len() int {
	return len(b.data)
}

func (b *lineBuffer) Reset() {
	b.data = b.data[:0]
}

func (b *lineBuffer) Drain() string {
	text := string(b.data)
	b.data = b.data[:0]
	return text
}


// echoer mirrors line editing back to interactive terminals.
type echoer interface {
	Echo(c byte) error
	Erase() error
	EndLine() error
	ControlAck(label string) error
}

// lineReader splits a byte stream into newline-terminated lines. There is no
// length framing: a line longer than the buffer is cut at the buffer size and
// the remaining bytes start the next line.
type lineReader struct {
	reader *bufio.Reader
	buffer *lineBuffer
	echo   echoer
}

func newLineReader(r io.Reader, capacity int, echo echoer) *lineReader {
	return &lineReader{
		reader: bufio.NewReader(r),
		buffer: newLineBuffer(capacity),
		echo:   echo,
	}
}

// ReadLine returns the next line without its terminator. A partial line
// pending when the stream ends is returned first; the following call reports
// the end of the stream.
func (l *lineReader) ReadLine() (string, error) {
	for {
		c, err := l.reader.ReadByte()
		if err != nil {
			if l.buffer.Len() > 0 {
				return l.buffer.Drain(), nil
			}
			return "", err
		}

		switch {
		case c == '\n':
			if err := l.endLine(); err != nil {
				return "", err
			}
			return l.buffer.Drain(), nil
		case c == '\r':
			if l.echo == nil {
				continue
			}
			l.swallowLF()
			if err := l.endLine(); err != nil {
				return "", err
			}
			return l.buffer.Drain(), nil
		case l.echo != nil && (c == ctrlC || c == ctrlD):
			l.buffer.Reset()
			label := "^C"
			if c == ctrlD {
				label = "^D"
			}
			if err := l.echo.ControlAck(label); err != nil {
				return "", err
			}
			return "", errSessionTerminated
		case l.echo != nil && (c == backspace || c == deleteChar):
			if l.buffer.TrimLast() {
				if err := l.echo.Erase(); err != nil {
					return "", err
				}
			}
		case l.echo != nil && c < 0x20:
			// Other control bytes from a pty carry no text.
		default:
			l.buffer.Append(c)
			if l.echo != nil {
				if err := l.echo.Echo(c); err != nil {
					return "", err
				}
			}
			if l.buffer.Full() {
				return l.buffer.Drain(), nil
			}
		}
	}
}

func (l *lineReader) swallowLF() {
	if l.reader.Buffered() == 0 {
		return
	}
	if next, err := l.reader.ReadByte(); err == nil && next != '\n' {
		_ = l.reader.UnreadByte()
	}
}

func (l *lineReader) endLine() error {
	if l.echo == nil {
		return nil
	}
	return l.echo.EndLine()
}
