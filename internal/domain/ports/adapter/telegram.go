package adapter

import "context"

// MessageSender is the port for the outbound delivery transport.
// Delivery is best-effort; the core consumes no return value beyond error
// for logging.
type MessageSender interface {
	// SendMessage delivers text to a chat. replyTo is a message id to quote,
	// 0 for none.
	SendMessage(ctx context.Context, chatID int64, text string, replyTo int) error

	// SendTyping shows the "typing..." chat action.
	SendTyping(ctx context.Context, chatID int64) error
}
