// Package transport describes the chat front-end the bot and worker talk to.
package transport

import "context"

// Button is one inline keyboard button bound to an Action.
type Button struct {
	Text   string
	Action Action
}

// Sender delivers HTML formatted messages to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string, buttons [][]Button) (int, error)
	Edit(ctx context.Context, chatID int64, messageID int, text string, buttons [][]Button) error
	Delete(ctx context.Context, chatID int64, messageID int) error
}

// Row is a convenience for single-row keyboards.
func Row(buttons ...Button) [][]Button {
	return [][]Button{buttons}
}

// Column puts every button on its own row.
func Column(buttons ...Button) [][]Button {
	out := make([][]Button, 0, len(buttons))
	for _, b := range buttons {
		out = append(out, []Button{b})
	}
	return out
}
