package model

import "time"

// Fact categories recognized by the memory record and the extraction
// strategy.
type FactCategory string

const (
	CategoryUserInfo FactCategory = "user_info"
	CategoryTopic    FactCategory = "topics_discussed"
	CategoryFact     FactCategory = "important_facts"
)

// Fact is one unit of extracted or manually added knowledge. Key is only
// meaningful for CategoryUserInfo (e.g. "name", "age"); topics and
// important facts carry the value alone.
type Fact struct {
	Category FactCategory
	Key      string
	Value    string
}

// Impression is the bot's subjective summary of one user within one chat,
// plus the bookkeeping that gates regeneration.
type Impression struct {
	Text        string    `json:"text"`
	GeneratedAt time.Time `json:"generated_at"`
	// MessageCount is the user's message count recorded when generation
	// was last scheduled. Advanced at scheduling time, not completion.
	MessageCount int `json:"message_count"`
}

// MemoryRecord is the per-chat accumulated knowledge: personal facts per
// user, discussed topics, free-text important facts, and per-user
// impressions. Mutated incrementally; only Clear replaces it wholesale.
type MemoryRecord struct {
	UserInfo        map[int64]map[string]string `json:"user_info"`
	Topics          []string                    `json:"topics_discussed"`
	Facts           []string                    `json:"important_facts"`
	Impressions     map[int64]Impression        `json:"impressions"`
	LastInteraction time.Time                   `json:"last_interaction"`
}

func NewMemoryRecord() *MemoryRecord {
	return &MemoryRecord{
		UserInfo:    make(map[int64]map[string]string),
		Topics:      make([]string, 0),
		Facts:       make([]string, 0),
		Impressions: make(map[int64]Impression),
	}
}

// Add applies one fact. Topics and important facts deduplicate by exact
// value; user info overwrites the key for that user. Returns true when the
// record actually changed.
func (m *MemoryRecord) Add(f Fact, userID int64) bool {
	switch f.Category {
	case CategoryUserInfo:
		if f.Key == "" {
			return false
		}
		if m.UserInfo == nil {
			m.UserInfo = make(map[int64]map[string]string)
		}
		info := m.UserInfo[userID]
		if info == nil {
			info = make(map[string]string)
			m.UserInfo[userID] = info
		}
		if info[f.Key] == f.Value {
			return false
		}
		info[f.Key] = f.Value
		return true
	case CategoryTopic:
		for _, t := range m.Topics {
			if t == f.Value {
				return false
			}
		}
		m.Topics = append(m.Topics, f.Value)
		return true
	case CategoryFact:
		for _, v := range m.Facts {
			if v == f.Value {
				return false
			}
		}
		m.Facts = append(m.Facts, f.Value)
		return true
	}
	return false
}

// Clone returns a deep copy safe to hand out as a read-only snapshot.
func (m *MemoryRecord) Clone() *MemoryRecord {
	cp := &MemoryRecord{
		UserInfo:        make(map[int64]map[string]string, len(m.UserInfo)),
		Topics:          append([]string(nil), m.Topics...),
		Facts:           append([]string(nil), m.Facts...),
		Impressions:     make(map[int64]Impression, len(m.Impressions)),
		LastInteraction: m.LastInteraction,
	}
	for uid, info := range m.UserInfo {
		inner := make(map[string]string, len(info))
		for k, v := range info {
			inner[k] = v
		}
		cp.UserInfo[uid] = inner
	}
	for uid, imp := range m.Impressions {
		cp.Impressions[uid] = imp
	}
	return cp
}
