package chat

import "io"

// Transport is the write side of a client's connection. Writes may come from
// the session and the delivery worker concurrently, so implementations must
// serialize them.
type Transport interface {
	io.Writer
	Close() error
}

// ClientState is the tagged lifecycle state of a ClientRecord.
type ClientState int

const (
	StateInactive ClientState = iota
	StateActive
)

func (s ClientState) String() string {
	if s == StateActive {
		return "active"
	}
	return "inactive"
}

// clientRecord is the registry-owned identity of a login. It survives logout
// so that its offline queue and identity are reused on reconnect. All fields
// are guarded by the owning Registry's lock.
type clientRecord struct {
	login     string
	state     ClientState
	transport Transport
	offline   offlineQueue
}

func newClientRecord(login string, transport Transport) *clientRecord {
	return &clientRecord{
		login:     login,
		state:     StateActive,
		transport: transport,
	}
}

func (c *clientRecord) active() bool {
	return c.state == StateActive
}

func (c *clientRecord) info() ClientInfo {
	return ClientInfo{
		Login:   c.login,
		State:   c.state,
		Pending: c.offline.Len(),
	}
}

// ClientInfo is a point-in-time copy of a record, safe to hold without the
// registry lock.
type ClientInfo struct {
	Login   string
	State   ClientState
	Pending int
}

// Active reports whether the login was bound to a live transport.
func (c ClientInfo) Active() bool {
	return c.State == StateActive
}

// offlineQueue holds messages for a login while it has no live transport.
type offlineQueue struct {
	items []Message
}

func (q *offlineQueue) Push(msg Message) {
	q.items = append(q.items, msg)
}

func (q *offlineQueue) Pop() (Message, bool) {
	if len(q.items) == 0 {
		return Message{}, false
	}
	msg := q.items[0]
	q.items[0] = Message{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return msg, true
}

func (q *offlineQueue) Len() int {
	return len(q.items)
}
