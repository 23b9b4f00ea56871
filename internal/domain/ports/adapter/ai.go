package adapter

import "context"

// Message represents a chat message sent to a model.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// AIServiceAdapter is the port for LLM completion. The core treats it as a
// black box: it may fail, and every caller must degrade gracefully when it
// does.
type AIServiceAdapter interface {
	// Chat returns only the assistant text.
	Chat(ctx context.Context, model string, messages []Message) (string, error)

	// CountTokens returns prompt tokens for the provided messages
	// (provider-specific counting; best-effort when exact isn't available).
	CountTokens(ctx context.Context, model string, messages []Message) (int, error)
}
