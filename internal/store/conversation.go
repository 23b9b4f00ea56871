package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-companion-bot/internal/domain/model"
)

// Extractor is the pluggable fact/topic extraction strategy applied to
// every non-bot message appended to a conversation. Implementations are
// heuristic; a nil extractor disables extraction entirely.
type Extractor interface {
	Extract(text string) []model.Fact
}

// ConversationStore owns the per-chat rolling message logs and memory
// records. All methods are safe for concurrent use; none of them blocks on
// anything external.
type ConversationStore struct {
	mu            sync.Mutex
	maxMessages   int
	conversations map[int64][]model.Message
	memory        map[int64]*model.MemoryRecord
	extractor     Extractor

	gen      uint64
	savedGen uint64

	now func() time.Time
	log zerolog.Logger
}

func NewConversationStore(maxMessages int, extractor Extractor, logger *zerolog.Logger) *ConversationStore {
	if maxMessages <= 0 {
		maxMessages = 200
	}
	return &ConversationStore{
		maxMessages:   maxMessages,
		conversations: make(map[int64][]model.Message),
		memory:        make(map[int64]*model.MemoryRecord),
		extractor:     extractor,
		now:           time.Now,
		log:           logger.With().Str("component", "ConversationStore").Logger(),
	}
}

// Append adds a message to the chat's log, evicting from the head once the
// log exceeds maxMessages. Non-bot messages additionally run through the
// extractor and feed the chat's memory record.
func (s *ConversationStore) Append(chatID int64, msg model.Message) {
	var facts []model.Fact
	if !msg.IsBot && s.extractor != nil {
		// Extraction runs outside the lock; it only reads the message text.
		facts = s.extractor.Extract(msg.Content)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log := append(s.conversations[chatID], msg)
	if len(log) > s.maxMessages {
		log = log[len(log)-s.maxMessages:]
	}
	s.conversations[chatID] = log

	rec := s.record(chatID)
	rec.LastInteraction = s.now()
	for _, f := range facts {
		rec.Add(f, msg.UserID)
	}
	s.gen++
}

// Render produces the deterministic "Speaker: content" transcript used both
// as direct LLM context and as summarization input. Empty string for a chat
// with no history.
func (s *ConversationStore) Render(chatID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.conversations[chatID]
	if len(log) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, m := range log {
		sb.WriteString(speaker(m))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func speaker(m model.Message) string {
	if m.IsBot {
		return "Bot"
	}
	name := m.Username
	if name == "" {
		name = "Unknown"
	}
	return fmt.Sprintf("User (%s)", name)
}

// RenderTail renders only the last n transcript lines.
func (s *ConversationStore) RenderTail(chatID int64, n int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.conversations[chatID]
	if len(log) == 0 {
		return ""
	}
	if n > 0 && len(log) > n {
		log = log[len(log)-n:]
	}
	var sb strings.Builder
	for _, m := range log {
		sb.WriteString(speaker(m))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Memory returns a read-only deep copy of the chat's memory record.
func (s *ConversationStore) Memory(chatID int64) *model.MemoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.memory[chatID]
	if !ok {
		return model.NewMemoryRecord()
	}
	return rec.Clone()
}

// AddFact applies a fact to the chat's memory record. Idempotent: adding
// the same (category, value) twice leaves a single entry. Always refreshes
// the last-interaction timestamp.
func (s *ConversationStore) AddFact(chatID int64, f model.Fact, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.record(chatID)
	rec.Add(f, userID)
	rec.LastInteraction = s.now()
	s.gen++
}

// ClearMemory resets the chat's memory record, preserving only the
// last-interaction timestamp.
func (s *ConversationStore) ClearMemory(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	last := time.Time{}
	if rec, ok := s.memory[chatID]; ok {
		last = rec.LastInteraction
	}
	fresh := model.NewMemoryRecord()
	fresh.LastInteraction = last
	s.memory[chatID] = fresh
	s.gen++
}

// MessageCount returns the current length of the chat's log.
func (s *ConversationStore) MessageCount(chatID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations[chatID])
}

// CountUserMessages counts non-bot messages from one user in the chat's
// current window.
func (s *ConversationStore) CountUserMessages(chatID, userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.conversations[chatID] {
		if !m.IsBot && m.UserID == userID {
			n++
		}
	}
	return n
}

// RecentUserMessages returns up to limit most recent non-bot messages from
// the user, oldest first.
func (s *ConversationStore) RecentUserMessages(chatID, userID int64, limit int) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Message
	for _, m := range s.conversations[chatID] {
		if !m.IsBot && m.UserID == userID {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// LastInteractions reports the last-interaction timestamp per chat; used by
// the proactive messenger to find chats worth nudging.
func (s *ConversationStore) LastInteractions() map[int64]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]time.Time, len(s.memory))
	for chatID, rec := range s.memory {
		out[chatID] = rec.LastInteraction
	}
	return out
}

// ImpressionBaseline records the message count at which an impression
// generation was scheduled, preserving any existing text. Called by the
// impression engine at scheduling time.
func (s *ConversationStore) ImpressionBaseline(chatID, userID int64, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.record(chatID)
	imp := rec.Impressions[userID]
	imp.MessageCount = count
	rec.Impressions[userID] = imp
	s.gen++
}

// StoreImpression writes a completed impression text. Safe to call even if
// the record was cleared in the meantime; minimal structure is recreated.
func (s *ConversationStore) StoreImpression(chatID, userID int64, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.record(chatID)
	imp := rec.Impressions[userID]
	imp.Text = text
	imp.GeneratedAt = s.now()
	rec.Impressions[userID] = imp
	s.gen++
}

// Impression returns the stored impression for (chat, user).
func (s *ConversationStore) Impression(chatID, userID int64) (model.Impression, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.memory[chatID]
	if !ok {
		return model.Impression{}, false
	}
	imp, ok := rec.Impressions[userID]
	return imp, ok
}

// Chats lists chat ids with any recorded state, in ascending order.
func (s *ConversationStore) Chats() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[int64]struct{}, len(s.conversations)+len(s.memory))
	for id := range s.conversations {
		seen[id] = struct{}{}
	}
	for id := range s.memory {
		seen[id] = struct{}{}
	}
	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// record returns the live memory record for chatID, creating it when absent.
// Caller must hold s.mu.
func (s *ConversationStore) record(chatID int64) *model.MemoryRecord {
	rec, ok := s.memory[chatID]
	if !ok {
		rec = model.NewMemoryRecord()
		s.memory[chatID] = rec
	}
	return rec
}

// Dirty reports whether in-memory state has diverged from the last durable
// write.
func (s *ConversationStore) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen != s.savedGen
}

// MarkSaved acknowledges a confirmed write of the snapshot taken at gen.
// Mutations that landed after the snapshot keep the store dirty.
func (s *ConversationStore) MarkSaved(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.savedGen = gen
}
