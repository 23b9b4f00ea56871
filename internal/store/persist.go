package store

import (
	"strconv"
	"time"

	"telegram-companion-bot/internal/domain/model"
)

// Persisted document schema. Map keys are decimal chat/user ids (JSON
// object keys must be strings); impression jobs key as "chatId:userId".

// ChatDocument is the per-chat document combining everything the four
// chat-scoped stores hold.
type ChatDocument struct {
	Conversations      map[string][]model.Message       `json:"conversations"`
	Memory             map[string]*model.MemoryRecord   `json:"memory"`
	Sessions           map[string]*model.Session        `json:"sessions"`
	ImpressionsPending map[string]ImpressionJob         `json:"impressions_pending"`
	Summaries          map[string]*model.Summary        `json:"summaries"`
	SavedAt            time.Time                        `json:"saved_at"`
}

// GlobalDocument is the independently persisted cross-chat document.
type GlobalDocument struct {
	Users                map[string]*model.GlobalUserRecord    `json:"users"`
	ChatAnalytics        map[string]*model.ChatAnalytics       `json:"chat_analytics"`
	RelationshipAnalyses map[string]*model.RelationshipAnalysis `json:"relationship_analyses"`
	Thresholds           model.AnalysisThresholds              `json:"thresholds"`
	SavedAt              time.Time                             `json:"saved_at"`
}

// ChatGens records the store generations captured in one chat-document
// snapshot; MarkSaved with these after a confirmed write.
type ChatGens struct {
	Conversations uint64
	Sessions      uint64
	Impressions   uint64
	Summaries     uint64
}

func chatKey(id int64) string  { return strconv.FormatInt(id, 10) }
func parseKey(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil
}

// SnapshotChatDocument deep-copies the current state of the four
// chat-scoped stores into one document.
func SnapshotChatDocument(conv *ConversationStore, sessions *SessionTracker, impressions *ImpressionEngine, summaries *SummaryCache) (*ChatDocument, ChatGens) {
	doc := &ChatDocument{
		Conversations:      make(map[string][]model.Message),
		Memory:             make(map[string]*model.MemoryRecord),
		Sessions:           make(map[string]*model.Session),
		ImpressionsPending: make(map[string]ImpressionJob),
		Summaries:          make(map[string]*model.Summary),
		SavedAt:            time.Now(),
	}
	var gens ChatGens

	conv.mu.Lock()
	for id, log := range conv.conversations {
		doc.Conversations[chatKey(id)] = append([]model.Message(nil), log...)
	}
	for id, rec := range conv.memory {
		doc.Memory[chatKey(id)] = rec.Clone()
	}
	gens.Conversations = conv.gen
	conv.mu.Unlock()

	sessions.mu.Lock()
	for id, s := range sessions.sessions {
		doc.Sessions[chatKey(id)] = s.Clone()
	}
	gens.Sessions = sessions.gen
	sessions.mu.Unlock()

	impressions.mu.Lock()
	for key, job := range impressions.pending {
		doc.ImpressionsPending[key] = job
	}
	gens.Impressions = impressions.gen
	impressions.mu.Unlock()

	summaries.mu.Lock()
	for id, s := range summaries.summaries {
		cp := *s
		doc.Summaries[chatKey(id)] = &cp
	}
	gens.Summaries = summaries.gen
	summaries.mu.Unlock()

	return doc, gens
}

// RestoreChatDocument loads a previously persisted document into the
// stores. Unparseable keys are skipped; a zero-valued document leaves the
// stores empty.
func RestoreChatDocument(doc *ChatDocument, conv *ConversationStore, sessions *SessionTracker, impressions *ImpressionEngine, summaries *SummaryCache) {
	if doc == nil {
		return
	}

	conv.mu.Lock()
	for key, log := range doc.Conversations {
		if id, ok := parseKey(key); ok {
			conv.conversations[id] = append([]model.Message(nil), log...)
		}
	}
	for key, rec := range doc.Memory {
		if id, ok := parseKey(key); ok && rec != nil {
			restored := rec.Clone()
			if restored.UserInfo == nil {
				restored.UserInfo = make(map[int64]map[string]string)
			}
			if restored.Impressions == nil {
				restored.Impressions = make(map[int64]model.Impression)
			}
			conv.memory[id] = restored
		}
	}
	conv.mu.Unlock()

	sessions.mu.Lock()
	for key, s := range doc.Sessions {
		if id, ok := parseKey(key); ok && s != nil {
			sessions.sessions[id] = s.Clone()
		}
	}
	sessions.mu.Unlock()

	impressions.mu.Lock()
	for key, job := range doc.ImpressionsPending {
		impressions.pending[key] = job
	}
	impressions.mu.Unlock()

	summaries.mu.Lock()
	for key, s := range doc.Summaries {
		if id, ok := parseKey(key); ok && s != nil {
			cp := *s
			summaries.summaries[id] = &cp
		}
	}
	summaries.mu.Unlock()
}

// SnapshotGlobalDocument deep-copies the directory state.
func SnapshotGlobalDocument(d *GlobalDirectory) (*GlobalDocument, uint64) {
	doc := &GlobalDocument{
		Users:                make(map[string]*model.GlobalUserRecord),
		ChatAnalytics:        make(map[string]*model.ChatAnalytics),
		RelationshipAnalyses: make(map[string]*model.RelationshipAnalysis),
		SavedAt:              time.Now(),
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for id, u := range d.users {
		doc.Users[chatKey(id)] = u.Clone()
	}
	for id, an := range d.analytics {
		cp := model.ChatAnalytics{
			TotalMessages: an.TotalMessages,
			ActiveUsers:   make(map[int64]model.ActiveUser, len(an.ActiveUsers)),
			NeedsUpdate:   an.NeedsUpdate,
		}
		for uid, au := range an.ActiveUsers {
			cp.ActiveUsers[uid] = au
		}
		doc.ChatAnalytics[chatKey(id)] = &cp
	}
	for id, rel := range d.relationships {
		cp := model.RelationshipAnalysis{
			Relationships: append([]model.Relationship(nil), rel.Relationships...),
			LastUpdated:   rel.LastUpdated,
			NeedsUpdate:   rel.NeedsUpdate,
		}
		doc.RelationshipAnalyses[chatKey(id)] = &cp
	}
	doc.Thresholds = d.thresholds
	return doc, d.gen
}

// RestoreGlobalDocument loads a persisted global document. Persisted
// thresholds win over config so runtime adjustments survive restarts.
func RestoreGlobalDocument(doc *GlobalDocument, d *GlobalDirectory) {
	if doc == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, u := range doc.Users {
		if id, ok := parseKey(key); ok && u != nil {
			restored := u.Clone()
			if restored.Chats == nil {
				restored.Chats = make(map[int64]*model.ChatParticipation)
			}
			d.users[id] = restored
		}
	}
	for key, an := range doc.ChatAnalytics {
		if id, ok := parseKey(key); ok && an != nil {
			cp := model.ChatAnalytics{
				TotalMessages: an.TotalMessages,
				ActiveUsers:   make(map[int64]model.ActiveUser, len(an.ActiveUsers)),
				NeedsUpdate:   an.NeedsUpdate,
			}
			for uid, au := range an.ActiveUsers {
				cp.ActiveUsers[uid] = au
			}
			d.analytics[id] = &cp
		}
	}
	for key, rel := range doc.RelationshipAnalyses {
		if id, ok := parseKey(key); ok && rel != nil {
			cp := model.RelationshipAnalysis{
				Relationships: append([]model.Relationship(nil), rel.Relationships...),
				LastUpdated:   rel.LastUpdated,
				NeedsUpdate:   rel.NeedsUpdate,
			}
			d.relationships[id] = &cp
		}
	}
	if doc.Thresholds.UserUpdate > 0 {
		d.thresholds = doc.Thresholds
	}
}
