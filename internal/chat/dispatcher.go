package chat

import "log/slog"

// Dispatcher routes sent messages either to the global delivery queue or to
// the recipient's offline queue. Routing happens under the registry lock so
// that a login switching between active and inactive never observes a
// half-routed message.
type Dispatcher struct {
	registry *Registry
	queue    *DeliveryQueue
	log      *slog.Logger
}

// NewDispatcher wires a dispatcher to the registry and delivery queue.
func NewDispatcher(registry *Registry, queue *DeliveryQueue, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{registry: registry, queue: queue, log: log}
}

// Enqueue accepts body from one login for another. An unknown recipient is an
// error and nothing is queued. Inactive recipients get the message in their
// offline queue; so do active recipients whose backlog has not been replayed
// yet, which keeps per-recipient order intact. A login whose idle record was
// evicted to make room in a full registry is unknown again.
func (d *Dispatcher) Enqueue(from, to, body string) error {
	msg := NewMessage(from, to, body)

	return d.registry.withRecord(to, func(rec *clientRecord) error {
		if !rec.active() || rec.offline.Len() > 0 {
			rec.offline.Push(msg)
			d.log.Debug("message held offline", "from", from, "to", to, "pending", rec.offline.Len())
			return nil
		}
		return d.queue.Push(msg)
	})
}

// ReplayOffline moves the backlog of an active login into the delivery queue
// in its original order and returns how many messages were moved.
func (d *Dispatcher) ReplayOffline(login string) (int, error) {
	var moved int

	err := d.registry.withRecord(login, func(rec *clientRecord) error {
		if !rec.active() || rec.offline.Len() == 0 {
			return nil
		}

		backlog := make([]Message, 0, rec.offline.Len())
		for {
			msg, ok := rec.offline.Pop()
			if !ok {
				break
			}
			backlog = append(backlog, msg)
		}

		if err := d.queue.pushReplay(backlog); err != nil {
			rec.offline.items = backlog
			return err
		}
		moved = len(backlog)
		return nil
	})
	if err != nil {
		return 0, err
	}

	if moved > 0 {
		d.log.Info("replayed offline messages", "login", login, "count", moved)
	}
	return moved, nil
}
