package chat

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionWriterCloseUnblocksPendingWrite(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()

	w := newSessionWriter(serverSide, false, time.Hour)
	errc := make(chan error, 1)
	go func() {
		errc <- w.writeString("nobody reads this\n")
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, w.Close())

	select {
	case err := <-errc:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("write still blocked after close")
	}
	require.ErrorIs(t, w.writeString("late\n"), io.ErrClosedPipe)
}

func TestSessionWriterTimeoutClosesConnection(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()

	w := newSessionWriter(serverSide, false, 50*time.Millisecond)
	start := time.Now()
	require.Error(t, w.writeString("stalled\n"))
	require.Less(t, time.Since(start), time.Second)

	_ = clientSide.SetReadDeadline(time.Now().Add(time.Second))
	_, err := clientSide.Read(make([]byte, 1))
	require.ErrorIs(t, err, io.EOF)
}

func TestSessionWriterTerminalLineEndings(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer clientSide.Close()

	w := newSessionWriter(serverSide, true, time.Second)
	go func() { _ = w.writeString("a\nb\n") }()

	buf := make([]byte, 6)
	_ = clientSide.SetReadDeadline(time.Now().Add(time.Second))
	_, err := io.ReadFull(clientSide, buf)
	require.NoError(t, err)
	require.Equal(t, "a\r\nb\r\n", string(buf))
}
