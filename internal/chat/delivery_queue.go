package chat

import "sync"

// DeliveryQueue is the global FIFO of messages ready for an active recipient.
// It has a single consumer, the DeliveryWorker, which blocks in Pop until work
// arrives or the queue is closed.
type DeliveryQueue struct {
	mu       sync.Mutex
	ready    *sync.Cond
	items    []Message
	capacity int
	closed   bool
}

// NewDeliveryQueue creates a queue that refuses new sends beyond capacity.
// A capacity <= 0 means unbounded.
func NewDeliveryQueue(capacity int) *DeliveryQueue {
	q := &DeliveryQueue{capacity: capacity}
	q.ready = sync.NewCond(&q.mu)
	return q
}

// Push appends a freshly sent message and wakes the consumer.
func (q *DeliveryQueue) Push(msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.capacity > 0 && len(q.items) >= q.capacity {
		return ErrDeliveryQueueFull
	}
	q.items = append(q.items, msg)
	q.ready.Signal()
	return nil
}

// pushReplay appends messages moved out of an offline queue. Replays bypass
// the capacity bound so that a reconnecting login never loses its backlog.
func (q *DeliveryQueue) pushReplay(msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.items = append(q.items, msgs...)
	q.ready.Signal()
	return nil
}

// Pop blocks until a message is available or the queue is closed. It keeps
// returning queued messages after Close and reports false only once the
// queue is both closed and empty.
func (q *DeliveryQueue) Pop() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.ready.Wait()
	}
	if len(q.items) == 0 {
		return Message{}, false
	}

	msg := q.items[0]
	q.items[0] = Message{}
	q.items = q.items[1:]
	return msg, true
}

// Close marks the queue closed and wakes every waiter. It is idempotent.
func (q *DeliveryQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.ready.Broadcast()
}

// Closed reports whether Close has been called.
func (q *DeliveryQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Clear discards every queued message and returns how many were dropped.
func (q *DeliveryQueue) Clear() int {
	q.mu.Lock()
	n := len(q.items)
	q.items = nil
	q.mu.Unlock()
	q.ready.Broadcast()
	return n
}

// Len returns the number of queued messages.
func (q *DeliveryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
