package sshserver

import (
	"sync"

	"golang.org/x/crypto/ssh"
)

// serveChannel waits for the client's shell request, then hands the channel
// to handler. Channel requests keep being answered while the handler runs.
func serveChannel(channel ssh.Channel, requests <-chan *ssh.Request, remote string, handler ChannelHandler) {
	defer channel.Close()

	if !awaitShell(requests) {
		return
	}

	var pump sync.WaitGroup
	pump.Add(1)
	go func() {
		defer pump.Done()
		for req := range requests {
			handleRequest(req)
		}
	}()

	handler(channel, remote)
	_ = channel.Close()
	pump.Wait()
}

// awaitShell drains channel requests until the client asks for a shell. It
// reports false if the request stream closed first.
func awaitShell(requests <-chan *ssh.Request) bool {
	for req := range requests {
		if handleRequest(req) {
			return true
		}
	}
	return false
}

func handleRequest(req *ssh.Request) bool {
	switch req.Type {
	case "shell":
		_ = req.Reply(true, nil)
		return true
	case "pty-req", "env", "window-change", "signal":
		_ = req.Reply(true, nil)
	default:
		_ = req.Reply(false, nil)
	}
	return false
}
