package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-companion-bot/internal/domain/ports/adapter"
	"telegram-companion-bot/internal/infra/metrics"
)

var _ adapter.MessageSender = (*Sender)(nil)

// Sender delivers outgoing messages through the Bot API.
type Sender struct {
	bot *tgbotapi.BotAPI
}

func NewSender(token string) (*Sender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Sender{bot: bot}, nil
}

func (s *Sender) Username() string {
	return s.bot.Self.UserName
}

func (s *Sender) ID() int64 {
	return s.bot.Self.ID
}

func (s *Sender) SendMessage(ctx context.Context, chatID int64, text string, replyTo int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if replyTo != 0 {
		msg.ReplyToMessageID = replyTo
	}
	_, err := s.bot.Send(msg)
	if err != nil && msg.ParseMode != "" {
		// Markdown parse failures are common with model output; retry
		// as plain text before giving up.
		plain := tgbotapi.NewMessage(chatID, text)
		plain.ReplyToMessageID = msg.ReplyToMessageID
		_, err = s.bot.Send(plain)
	}
	metrics.MessageSent(err == nil)
	return err
}

func (s *Sender) SendTyping(ctx context.Context, chatID int64) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	_, err := s.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
	return err
}
