package chat

import (
	"context"
	"io"
	"sync"
)

// Shutdown stops the chat core. New sessions are refused, the delivery worker
// is woken so it can observe the closed queue, every active client is told
// the server is going away and disconnected, and whatever is still waiting in
// the delivery queue is discarded. Offline queues stay in memory. Shutdown
// then waits for the worker and all sessions, or until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	first := s.running.CompareAndSwap(true, false)
	s.mu.Unlock()

	if first {
		s.log.Info("shutting down chat server")
		s.queue.Close()

		transports := s.registry.deactivateAll()
		s.notifyShutdown(ctx, transports)

		for _, sess := range s.liveSessions() {
			_ = sess.writer.Close()
		}

		dropped := s.queue.Clear()
		s.log.Info("chat server drained", "notified", len(transports), "discarded", dropped)
	}

	if s.started.Load() {
		select {
		case <-s.workerDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	sessionsDone := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(sessionsDone)
	}()

	select {
	case <-sessionsDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// notifyShutdown sends the shutdown notice to every transport in parallel and
// closes it. Clients that do not take the notice before ctx is done are
// closed without it, which also fails any write still pending on them.
func (s *Server) notifyShutdown(ctx context.Context, transports []Transport) {
	var wg sync.WaitGroup
	for _, t := range transports {
		if t == nil {
			continue
		}
		wg.Add(1)
		go func(t Transport) {
			defer wg.Done()
			_, _ = io.WriteString(t, noticeShutdown)
			_ = t.Close()
		}(t)
	}

	notified := make(chan struct{})
	go func() {
		wg.Wait()
		close(notified)
	}()

	select {
	case <-notified:
	case <-ctx.Done():
		s.log.Warn("shutdown notice timed out, closing remaining clients")
		for _, t := range transports {
			if t != nil {
				_ = t.Close()
			}
		}
	}
}
