package sshserver

import (
	"bufio"
	"context"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestLoadOrGenerateSignerPersistsKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "host_ed25519")

	first, err := LoadOrGenerateSigner(path, nil)
	require.NoError(t, err)

	second, err := LoadOrGenerateSigner(path, nil)
	require.NoError(t, err)

	require.Equal(t, first.PublicKey().Marshal(), second.PublicKey().Marshal())
	require.Equal(t, ssh.KeyAlgoED25519, second.PublicKey().Type())
}

func TestHandleRequestAcceptsShell(t *testing.T) {
	require.True(t, handleRequest(&ssh.Request{Type: "shell"}))
	require.False(t, handleRequest(&ssh.Request{Type: "pty-req"}))
	require.False(t, handleRequest(&ssh.Request{Type: "exec"}))
}

func TestServeRunsHandlerAfterShellRequest(t *testing.T) {
	signer, err := EphemeralSigner()
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := New(listener.Addr().String(), signer, nil)
	go func() {
		_ = srv.Serve(ctx, listener, func(channel ssh.Channel, remote string) {
			_, _ = io.WriteString(channel, "Insert your login.\r\n")
			line, _ := bufio.NewReader(channel).ReadString('\r')
			_, _ = io.WriteString(channel, "Welcome, "+line[:len(line)-1]+"!\r\n")
		})
	}()

	client, err := ssh.Dial("tcp", listener.Addr().String(), &ssh.ClientConfig{
		User:            "ignored",
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         2 * time.Second,
	})
	require.NoError(t, err)
	defer client.Close()

	session, err := client.NewSession()
	require.NoError(t, err)
	defer session.Close()

	stdin, err := session.StdinPipe()
	require.NoError(t, err)
	stdout, err := session.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, session.Shell())

	reader := bufio.NewReader(stdout)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "Insert your login.\r\n", line)

	_, err = io.WriteString(stdin, "alice\r")
	require.NoError(t, err)

	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "Welcome, alice!\r\n", line)
}
