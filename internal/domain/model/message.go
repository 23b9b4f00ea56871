package model

import "time"

// Message is one entry in a chat's rolling conversation log. Messages are
// immutable once appended; the bot's own replies carry UserID == 0.
type Message struct {
	Timestamp time.Time `json:"timestamp"`
	UserID    int64     `json:"user_id,omitempty"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	IsBot     bool      `json:"is_bot"`
}

// ReplyTarget carries the quoted message an inbound message replies to.
type ReplyTarget struct {
	Username string
	Content  string
	IsBot    bool
}

// Inbound is the normalized message object handed to the core by the
// webhook layer. Fields mirror what Telegram provides; anything optional
// is zero-valued when absent.
type Inbound struct {
	ChatID    int64
	MessageID int
	UserID    int64
	Username  string
	Text      string
	IsGroup   bool
	ReplyTo   *ReplyTarget
	// ForwardOrigin is the display name of the original author when the
	// message was forwarded into the chat; empty otherwise.
	ForwardOrigin string
}

// Forwarded reports whether the message arrived via a client forward action.
func (in *Inbound) Forwarded() bool { return in.ForwardOrigin != "" }
