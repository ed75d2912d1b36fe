package email

import "context"

// Message is a rendered email ready for a Sender.
type Message struct {
	To      string
	From    string
	Subject string
	Text    string
	HTML    string

	// MessageID is stable per order and message kind so a retried send
	// carries the same Message-ID as the first attempt.
	MessageID string
	Headers   map[string]string
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}
