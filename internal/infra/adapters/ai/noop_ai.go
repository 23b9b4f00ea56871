package ai

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-companion-bot/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoopAIAdapter)(nil)

// NoopAIAdapter is the local/dev stand-in: it logs prompts instead of
// calling a real provider and returns a fixed reply.
type NoopAIAdapter struct {
	log zerolog.Logger
}

func NewNoopAIAdapter(logger *zerolog.Logger) *NoopAIAdapter {
	return &NoopAIAdapter{log: logger.With().Str("component", "NoopAI").Logger()}
}

func (a *NoopAIAdapter) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	a.log.Debug().Str("model", model).Int("messages", len(messages)).Msg("noop chat")
	return "Це тестова відповідь.", nil
}

func (a *NoopAIAdapter) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	n := 0
	for _, m := range messages {
		n += len(m.Content) / 3
	}
	return n, nil
}
