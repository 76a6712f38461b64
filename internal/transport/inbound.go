package transport

import "context"

// Message is an inbound chat message. Command is set, without the slash,
// when the text starts with a bot command; Args holds the rest.
type Message struct {
	ChatID    int64
	UserID    int64
	Username  string
	MessageID int
	Text      string
	Command   string
	Args      string
}

// IsText reports whether the message carries anything to answer.
func (m Message) IsText() bool { return m.Text != "" }

// Callback is a pressed inline button.
type Callback struct {
	ID        string
	ChatID    int64
	UserID    int64
	Username  string
	MessageID int
	Data      string
	Action    Action
}

// Handler receives inbound updates from a transport.
type Handler interface {
	HandleMessage(ctx context.Context, m Message)
	HandleCallback(ctx context.Context, c Callback)
}
