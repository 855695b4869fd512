package chat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
)

// WorkerState is the lifecycle state of the DeliveryWorker.
type WorkerState int32

const (
	WorkerIdle WorkerState = iota
	WorkerHasWork
	WorkerDelivering
	WorkerStopped
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerHasWork:
		return "has-work"
	case WorkerDelivering:
		return "delivering"
	case WorkerStopped:
		return "stopped"
	default:
		return fmt.Sprintf("WorkerState(%d)", int32(s))
	}
}

// DeliveryWorker is the single consumer of the delivery queue. Delivery is
// best effort: a recipient that went offline after its message was queued
// loses that message, and failed writes are logged and not retried.
type DeliveryWorker struct {
	registry *Registry
	queue    *DeliveryQueue
	log      *slog.Logger

	state     atomic.Int32
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewDeliveryWorker constructs a worker over registry and queue.
func NewDeliveryWorker(registry *Registry, queue *DeliveryQueue, log *slog.Logger) *DeliveryWorker {
	if log == nil {
		log = slog.Default()
	}
	return &DeliveryWorker{registry: registry, queue: queue, log: log}
}

// Run drains the queue until it is closed and empty. Cancelling ctx closes
// the queue.
func (w *DeliveryWorker) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, w.queue.Close)
	defer stop()

	for {
		w.setState(WorkerIdle)
		msg, ok := w.queue.Pop()
		if !ok {
			w.setState(WorkerStopped)
			w.log.Info("delivery worker stopped",
				"delivered", w.delivered.Load(), "dropped", w.dropped.Load())
			return nil
		}
		w.setState(WorkerHasWork)
		w.deliver(msg)
	}
}

func (w *DeliveryWorker) deliver(msg Message) {
	transport, ok := w.registry.transportFor(msg.To)
	if !ok {
		w.dropped.Add(1)
		w.log.Debug("recipient went offline, message dropped", "from", msg.From, "to", msg.To)
		return
	}

	w.setState(WorkerDelivering)
	if _, err := io.WriteString(transport, msg.Format()); err != nil {
		w.dropped.Add(1)
		w.log.Warn("delivery failed", "from", msg.From, "to", msg.To,
			"error", fmt.Errorf("%w: %v", ErrTransportWrite, err))
		return
	}
	w.delivered.Add(1)
}

// State returns the current worker state.
func (w *DeliveryWorker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// Delivered returns how many messages were handed to a transport.
func (w *DeliveryWorker) Delivered() uint64 {
	return w.delivered.Load()
}

// Dropped returns how many messages were discarded.
func (w *DeliveryWorker) Dropped() uint64 {
	return w.dropped.Load()
}

func (w *DeliveryWorker) setState(s WorkerState) {
	w.state.Store(int32(s))
}
