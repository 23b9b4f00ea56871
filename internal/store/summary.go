package store

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-companion-bot/internal/domain/model"
)

// SummaryCache gates when a chat's conversation summary is regenerated and
// persists the result. The text itself is produced by an external
// LLM-backed summarizer; no regeneration logic lives here.
type SummaryCache struct {
	mu              sync.Mutex
	enabled         bool
	messagesBetween int
	timeBetween     time.Duration
	summaries       map[int64]*model.Summary

	conv *ConversationStore

	gen      uint64
	savedGen uint64

	now func() time.Time
	log zerolog.Logger
}

func NewSummaryCache(cfgEnabled bool, messagesBetween int, timeBetween time.Duration, conv *ConversationStore, logger *zerolog.Logger) *SummaryCache {
	if messagesBetween <= 0 {
		messagesBetween = 20
	}
	if timeBetween <= 0 {
		timeBetween = time.Hour
	}
	return &SummaryCache{
		enabled:         cfgEnabled,
		messagesBetween: messagesBetween,
		timeBetween:     timeBetween,
		summaries:       make(map[int64]*model.Summary),
		conv:            conv,
		now:             time.Now,
		log:             logger.With().Str("component", "SummaryCache").Logger(),
	}
}

// Due reports whether the chat's summary should be (re)generated: none
// exists yet, enough new messages accumulated, or enough time elapsed.
func (c *SummaryCache) Due(chatID int64) bool {
	if !c.enabled {
		return false
	}
	count := c.conv.MessageCount(chatID)

	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.summaries[chatID]
	if !ok {
		return true
	}
	if count-s.MessageCount >= c.messagesBetween {
		return true
	}
	return c.now().Sub(s.GeneratedAt) >= c.timeBetween
}

// Store records the freshly generated text with the current timestamp and
// message count.
func (c *SummaryCache) Store(chatID int64, text string) {
	count := c.conv.MessageCount(chatID)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summaries[chatID] = &model.Summary{
		Text:         text,
		GeneratedAt:  c.now(),
		MessageCount: count,
	}
	c.gen++
}

// Fetch returns the cached summary text, if any.
func (c *SummaryCache) Fetch(chatID int64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.summaries[chatID]
	if !ok {
		return "", false
	}
	return s.Text, true
}

func (c *SummaryCache) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen != c.savedGen
}

func (c *SummaryCache) MarkSaved(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.savedGen = gen
}
