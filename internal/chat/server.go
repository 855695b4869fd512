package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const workerRestartDelay = 200 * time.Millisecond

var errWorkerPanic = errors.New("delivery worker panic")

// Options sizes the chat core.
type Options struct {
	Capacity          int
	MaxLoginLength    int
	LineBufferSize    int
	DeliveryQueueSize int
	WriteTimeout      time.Duration
}

// DefaultOptions returns the stock limits.
func DefaultOptions() Options {
	return Options{
		Capacity:          DefaultCapacity,
		MaxLoginLength:    DefaultMaxLoginLength,
		LineBufferSize:    DefaultLineBufferSize,
		DeliveryQueueSize: 1024,
		WriteTimeout:      DefaultWriteTimeout,
	}
}

// Server owns the registry, both queue layers and the delivery worker, and
// runs one session per connection handed to it by a listener.
type Server struct {
	opts Options
	log  *slog.Logger

	registry   *Registry
	queue      *DeliveryQueue
	dispatcher *Dispatcher
	worker     *DeliveryWorker

	running    atomic.Bool
	started    atomic.Bool
	workerDone chan struct{}

	mu       sync.Mutex
	sessions map[*session]struct{}
	wg       sync.WaitGroup
}

// NewServer builds a chat core. Zero option fields take their defaults; a
// negative DeliveryQueueSize leaves the delivery queue unbounded.
func NewServer(opts Options, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	defaults := DefaultOptions()
	if opts.Capacity <= 0 {
		opts.Capacity = defaults.Capacity
	}
	if opts.MaxLoginLength <= 0 {
		opts.MaxLoginLength = defaults.MaxLoginLength
	}
	if opts.LineBufferSize <= 0 {
		opts.LineBufferSize = defaults.LineBufferSize
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaults.WriteTimeout
	}
	if opts.DeliveryQueueSize == 0 {
		opts.DeliveryQueueSize = defaults.DeliveryQueueSize
	}

	registry := NewRegistry(opts.Capacity, WithRegistryLogger(log))
	queue := NewDeliveryQueue(opts.DeliveryQueueSize)

	s := &Server{
		opts:       opts,
		log:        log,
		registry:   registry,
		queue:      queue,
		dispatcher: NewDispatcher(registry, queue, log),
		worker:     NewDeliveryWorker(registry, queue, log),
		workerDone: make(chan struct{}),
		sessions:   make(map[*session]struct{}),
	}
	s.running.Store(true)
	return s
}

// Registry exposes the client registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Dispatcher exposes the queue engine.
func (s *Server) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// Worker exposes the delivery worker.
func (s *Server) Worker() *DeliveryWorker {
	return s.worker
}

// Running reports whether the server still accepts sessions.
func (s *Server) Running() bool {
	return s.running.Load()
}

// Run drives the delivery worker until the queue is closed, restarting it
// after a panic.
func (s *Server) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("chat: server already running")
	}
	defer close(s.workerDone)

	for {
		err := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("delivery worker panic", "panic", r)
					err = errWorkerPanic
				}
			}()
			return s.worker.Run(ctx)
		}()

		if err == nil || s.queue.Closed() {
			return nil
		}

		s.log.Warn("delivery worker crashed, restarting", "error", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(workerRestartDelay):
		}
	}
}

// HandleConn runs a line-mode session on conn and blocks until it ends.
func (s *Server) HandleConn(conn io.ReadWriteCloser, remote string) {
	s.serve(conn, remote, false)
}

// HandleTerminal runs a session for a pty client, echoing input and using
// CRLF line endings.
func (s *Server) HandleTerminal(conn io.ReadWriteCloser, remote string) {
	s.serve(conn, remote, true)
}

func (s *Server) serve(conn io.ReadWriteCloser, remote string, terminal bool) {
	sess := newSession(s, conn, remote, terminal)
	if !s.track(sess) {
		_ = sess.writer.writeString(noticeShutdown)
		_ = sess.writer.Close()
		return
	}
	defer s.untrack(sess)

	sess.run()
}

func (s *Server) track(sess *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}
	s.sessions[sess] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Server) liveSessions() []*session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}
