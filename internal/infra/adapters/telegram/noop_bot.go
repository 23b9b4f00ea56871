package telegram

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-companion-bot/internal/domain/ports/adapter"
)

var _ adapter.MessageSender = (*NoopSender)(nil)

// NoopSender logs outgoing messages instead of delivering them. Used in
// dev mode when no bot token is configured.
type NoopSender struct {
	log zerolog.Logger
}

func NewNoopSender(logger *zerolog.Logger) *NoopSender {
	return &NoopSender{log: logger.With().Str("component", "NoopSender").Logger()}
}

func (s *NoopSender) SendMessage(ctx context.Context, chatID int64, text string, replyTo int) error {
	select {
	case <-time.After(50 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}
	s.log.Info().Int64("chat_id", chatID).Int("reply_to", replyTo).Str("text", text).Msg("noop send")
	return nil
}

func (s *NoopSender) SendTyping(ctx context.Context, chatID int64) error {
	s.log.Debug().Int64("chat_id", chatID).Msg("noop typing")
	return nil
}
