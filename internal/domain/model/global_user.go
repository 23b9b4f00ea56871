package model

import "time"

// Profile is the AI-generated cross-chat portrait of a user.
type Profile struct {
	Personality         string   `json:"personality"`
	Interests           []string `json:"interests"`
	BehaviorPatterns    []string `json:"behavior_patterns"`
	RelationshipWithBot string   `json:"relationship_with_bot"`
}

// ChatParticipation tracks one user's footprint in one chat.
type ChatParticipation struct {
	FirstSeen    time.Time `json:"first_seen"`
	LastActivity time.Time `json:"last_activity"`
	MessageCount int       `json:"message_count"`
}

// TimedImpression is one entry in the bounded cross-chat impression history.
type TimedImpression struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
}

// GlobalUserRecord is the cross-chat registry entry for one user. It is
// persisted in the global document, independently of per-chat memory.
type GlobalUserRecord struct {
	UserID             int64                        `json:"user_id"`
	Username           string                       `json:"username"`
	FirstSeen          time.Time                    `json:"first_seen"`
	LastSeen           time.Time                    `json:"last_seen"`
	TotalMessages      int                          `json:"total_messages"`
	Chats              map[int64]*ChatParticipation `json:"chats"`
	Profile            Profile                      `json:"profile"`
	Impressions        []TimedImpression            `json:"impressions"`
	NeedsProfileUpdate bool                         `json:"needs_profile_update"`
}

func NewGlobalUserRecord(userID int64, username string, now time.Time) *GlobalUserRecord {
	return &GlobalUserRecord{
		UserID:    userID,
		Username:  username,
		FirstSeen: now,
		LastSeen:  now,
		Chats:     make(map[int64]*ChatParticipation),
		Profile:   Profile{RelationshipWithBot: "neutral"},
	}
}

func (u *GlobalUserRecord) Clone() *GlobalUserRecord {
	cp := *u
	cp.Chats = make(map[int64]*ChatParticipation, len(u.Chats))
	for id, p := range u.Chats {
		pc := *p
		cp.Chats[id] = &pc
	}
	cp.Impressions = append([]TimedImpression(nil), u.Impressions...)
	cp.Profile.Interests = append([]string(nil), u.Profile.Interests...)
	cp.Profile.BehaviorPatterns = append([]string(nil), u.Profile.BehaviorPatterns...)
	return &cp
}

// Relationship is one observed relationship between chat participants.
type Relationship struct {
	UserIDs     []int64 `json:"user_ids"`
	Type        string  `json:"relationship_type"`
	Description string  `json:"description"`
}

// Mentions reports whether the relationship involves the given user.
func (r *Relationship) Mentions(userID int64) bool {
	for _, id := range r.UserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// RelationshipAnalysis is the per-chat AI-generated relationship map.
type RelationshipAnalysis struct {
	Relationships []Relationship `json:"relationships"`
	LastUpdated   time.Time      `json:"last_updated"`
	NeedsUpdate   bool           `json:"needs_update"`
}

// ActiveUser is one entry in a chat's active-user snapshot.
type ActiveUser struct {
	Username     string    `json:"username"`
	LastActivity time.Time `json:"last_activity"`
}

// ChatAnalytics is the per-chat analytics bucket of the global directory.
type ChatAnalytics struct {
	TotalMessages int                  `json:"total_messages"`
	ActiveUsers   map[int64]ActiveUser `json:"active_users"`
	NeedsUpdate   bool                 `json:"needs_update"`
}

func NewChatAnalytics() *ChatAnalytics {
	return &ChatAnalytics{ActiveUsers: make(map[int64]ActiveUser)}
}

// AnalysisThresholds gate how many new messages must accumulate before the
// corresponding analysis is flagged due again.
type AnalysisThresholds struct {
	UserUpdate         int `json:"messages_for_user_update" yaml:"messages_for_user_update"`
	ChatUpdate         int `json:"messages_for_chat_update" yaml:"messages_for_chat_update"`
	RelationshipUpdate int `json:"messages_for_relationship_update" yaml:"messages_for_relationship_update"`
}
