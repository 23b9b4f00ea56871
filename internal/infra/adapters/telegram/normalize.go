package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-companion-bot/internal/domain/model"
)

// Normalize converts a raw Bot API update into the internal inbound
// shape. It returns false for updates that carry no processable text
// message (edits, stickers, joins and so on).
func Normalize(update tgbotapi.Update, botID int64) (model.Inbound, bool) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Text == "" {
		return model.Inbound{}, false
	}
	if msg.From.IsBot {
		return model.Inbound{}, false
	}

	in := model.Inbound{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		UserID:    msg.From.ID,
		Username:  displayName(msg.From),
		Text:      msg.Text,
		IsGroup:   msg.Chat.IsGroup() || msg.Chat.IsSuperGroup(),
	}

	if r := msg.ReplyToMessage; r != nil && r.From != nil {
		in.ReplyTo = &model.ReplyTarget{
			Username: displayName(r.From),
			Content:  r.Text,
			IsBot:    r.From.ID == botID,
		}
	}

	switch {
	case msg.ForwardFrom != nil:
		in.ForwardOrigin = displayName(msg.ForwardFrom)
	case msg.ForwardFromChat != nil:
		in.ForwardOrigin = msg.ForwardFromChat.Title
	case msg.ForwardSenderName != "":
		in.ForwardOrigin = msg.ForwardSenderName
	}

	return in, true
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	return name
}
