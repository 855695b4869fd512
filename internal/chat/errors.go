package chat

import "errors"

// Login errors refuse the connection without registering a session.
var (
	ErrRegistryFull  = errors.New("registry is full")
	ErrAlreadyActive = errors.New("login already active")
	ErrInvalidLogin  = errors.New("invalid login")
	ErrLoginRead     = errors.New("login read failed")
)

// Message errors are reported back to the sender; the session stays open.
var (
	ErrUnknownRecipient  = errors.New("unknown recipient")
	ErrMalformedCommand  = errors.New("malformed command")
	ErrDeliveryQueueFull = errors.New("delivery queue full")
	ErrQueueClosed       = errors.New("delivery queue closed")
)

// ErrTransportWrite marks a failed hand-off to a recipient's transport. It is
// logged and never surfaced to the sender.
var ErrTransportWrite = errors.New("transport write failed")
