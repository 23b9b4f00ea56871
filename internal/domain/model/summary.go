package model

import "time"

// Summary is the cached conversation digest used to shrink prompts once a
// chat's history grows. Regeneration timing is the SummaryCache's concern.
type Summary struct {
	Text         string    `json:"text"`
	GeneratedAt  time.Time `json:"generated_at"`
	MessageCount int       `json:"message_count"`
}
