package chat

import "fmt"

// Message is an addressed chat line. It is never mutated after construction.
type Message struct {
	From string
	To   string
	Body string
}

// NewMessage constructs a message value.
func NewMessage(from, to, body string) Message {
	return Message{From: from, To: to, Body: body}
}

// Format renders the message the way recipients see it.
func (m Message) Format() string {
	return fmt.Sprintf("Message from %s: %s\n", m.From, m.Body)
}
