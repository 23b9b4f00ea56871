package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-companion-bot/internal/domain"
	"telegram-companion-bot/internal/domain/model"
)

// GlobalDirectory is the cross-chat user registry plus chat analytics and
// relationship analyses. It is dirty-tracked and persisted independently
// from the per-chat stores.
//
// Threshold counters (messages seen at the last "due" flagging) are kept
// in memory only; after a restart the first Observe may flag analyses due
// early, which is harmless and self-corrects on the next crossing.
type GlobalDirectory struct {
	mu             sync.Mutex
	users          map[int64]*model.GlobalUserRecord
	analytics      map[int64]*model.ChatAnalytics
	relationships  map[int64]*model.RelationshipAnalysis
	thresholds     model.AnalysisThresholds
	maxImpressions int

	lastUserCheck map[int64]int // user id -> total messages at last profile flag
	lastChatCheck map[int64]int // chat id -> total messages at last analytics flag
	lastRelCheck  map[int64]int // chat id -> total messages at last relationship flag

	gen      uint64
	savedGen uint64

	now func() time.Time
	log zerolog.Logger
}

func NewGlobalDirectory(thresholds model.AnalysisThresholds, maxImpressions int, logger *zerolog.Logger) *GlobalDirectory {
	if maxImpressions <= 0 {
		maxImpressions = 5
	}
	return &GlobalDirectory{
		users:          make(map[int64]*model.GlobalUserRecord),
		analytics:      make(map[int64]*model.ChatAnalytics),
		relationships:  make(map[int64]*model.RelationshipAnalysis),
		thresholds:     thresholds,
		maxImpressions: maxImpressions,
		lastUserCheck:  make(map[int64]int),
		lastChatCheck:  make(map[int64]int),
		lastRelCheck:   make(map[int64]int),
		now:            time.Now,
		log:            logger.With().Str("component", "GlobalDirectory").Logger(),
	}
}

// Observe registers one non-bot message: creates or refreshes the user
// record, bumps counters and the chat's active-user snapshot, and evaluates
// the three independent threshold crossings. Each crossing sets its flag
// and advances its own counter, mirroring the impression engine's
// at-most-one-outstanding discipline.
func (d *GlobalDirectory) Observe(chatID, userID int64, username string) {
	if userID == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()

	u, ok := d.users[userID]
	if !ok {
		u = model.NewGlobalUserRecord(userID, username, now)
		d.users[userID] = u
	} else if u.Username != username && username != "" {
		u.Username = username
	}
	u.LastSeen = now

	part, ok := u.Chats[chatID]
	if !ok {
		part = &model.ChatParticipation{FirstSeen: now}
		u.Chats[chatID] = part
	}
	part.MessageCount++
	part.LastActivity = now
	u.TotalMessages++

	an, ok := d.analytics[chatID]
	if !ok {
		an = model.NewChatAnalytics()
		d.analytics[chatID] = an
	}
	an.TotalMessages++
	an.ActiveUsers[userID] = model.ActiveUser{Username: username, LastActivity: now}

	// Profile update due?
	if u.TotalMessages-d.lastUserCheck[userID] >= d.thresholds.UserUpdate {
		u.NeedsProfileUpdate = true
		d.lastUserCheck[userID] = u.TotalMessages
	}

	// Chat analytics update due?
	if an.TotalMessages-d.lastChatCheck[chatID] >= d.thresholds.ChatUpdate {
		an.NeedsUpdate = true
		d.lastChatCheck[chatID] = an.TotalMessages
	}

	// Relationship analysis due?
	if an.TotalMessages-d.lastRelCheck[chatID] >= d.thresholds.RelationshipUpdate {
		rel, ok := d.relationships[chatID]
		if !ok {
			rel = &model.RelationshipAnalysis{}
			d.relationships[chatID] = rel
		}
		rel.NeedsUpdate = true
		d.lastRelCheck[chatID] = an.TotalMessages
	}

	d.gen++
}

// ProfileSnapshot returns a copy of the user's record. Reading it clears
// the needs-profile-update flag: the read is the acknowledgment that a
// consumer is about to recompute the profile. Callers that only want to
// peek must use User instead.
func (d *GlobalDirectory) ProfileSnapshot(userID int64) (*model.GlobalUserRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok {
		return nil, domain.ErrUnknownUser
	}
	if u.NeedsProfileUpdate {
		u.NeedsProfileUpdate = false
		d.gen++
	}
	return u.Clone(), nil
}

// User returns a copy of the record without side effects.
func (d *GlobalDirectory) User(userID int64) (*model.GlobalUserRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok {
		return nil, domain.ErrUnknownUser
	}
	return u.Clone(), nil
}

// SaveProfile overwrites the AI-generated profile fields and clears the
// needs-update flag.
func (d *GlobalDirectory) SaveProfile(userID int64, p model.Profile) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok {
		return domain.ErrUnknownUser
	}
	u.Profile = p
	u.NeedsProfileUpdate = false
	d.gen++
	return nil
}

// SaveRelationshipAnalysis overwrites the chat's relationship entries and
// clears the needs-update flag.
func (d *GlobalDirectory) SaveRelationshipAnalysis(chatID int64, rels []model.Relationship) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rel, ok := d.relationships[chatID]
	if !ok {
		rel = &model.RelationshipAnalysis{}
		d.relationships[chatID] = rel
	}
	rel.Relationships = rels
	rel.LastUpdated = d.now()
	rel.NeedsUpdate = false
	d.gen++
}

// RecordImpression appends to the user's bounded impression history,
// evicting the chronologically oldest entry when over capacity.
func (d *GlobalDirectory) RecordImpression(userID int64, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok {
		return domain.ErrUnknownUser
	}
	u.Impressions = append(u.Impressions, model.TimedImpression{Timestamp: d.now(), Text: text})
	sort.Slice(u.Impressions, func(i, j int) bool {
		return u.Impressions[i].Timestamp.Before(u.Impressions[j].Timestamp)
	})
	if len(u.Impressions) > d.maxImpressions {
		u.Impressions = u.Impressions[len(u.Impressions)-d.maxImpressions:]
	}
	d.gen++
	return nil
}

// ChatUsers returns copies of every user who has participated in the chat.
func (d *GlobalDirectory) ChatUsers(chatID int64) []*model.GlobalUserRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*model.GlobalUserRecord
	for _, u := range d.users {
		if _, ok := u.Chats[chatID]; ok {
			out = append(out, u.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// UsersNeedingProfileUpdate lists user ids flagged for profile regeneration.
func (d *GlobalDirectory) UsersNeedingProfileUpdate() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []int64
	for id, u := range d.users {
		if u.NeedsProfileUpdate {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ChatsNeedingRelationshipUpdate lists chat ids flagged for relationship
// analysis.
func (d *GlobalDirectory) ChatsNeedingRelationshipUpdate() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []int64
	for id, rel := range d.relationships {
		if rel.NeedsUpdate {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Relationships returns a copy of the chat's relationship entries.
func (d *GlobalDirectory) Relationships(chatID int64) []model.Relationship {
	d.mu.Lock()
	defer d.mu.Unlock()
	rel, ok := d.relationships[chatID]
	if !ok {
		return nil
	}
	return append([]model.Relationship(nil), rel.Relationships...)
}

// ContextFor renders the human-readable block combining profile fields,
// the most recent impression, and relationship entries mentioning the
// user. Concatenated into LLM prompts alongside the transcript.
func (d *GlobalDirectory) ContextFor(chatID, userID int64) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("Global memory information:\n\n")

	if u, ok := d.users[userID]; ok {
		name := u.Username
		if name == "" {
			name = "Unknown"
		}
		fmt.Fprintf(&sb, "User information for %s (ID: %d):\n", name, userID)
		if u.Profile.Personality != "" {
			fmt.Fprintf(&sb, "Personality: %s\n", u.Profile.Personality)
		}
		if len(u.Profile.Interests) > 0 {
			fmt.Fprintf(&sb, "Interests: %s\n", strings.Join(u.Profile.Interests, ", "))
		}
		if len(u.Profile.BehaviorPatterns) > 0 {
			fmt.Fprintf(&sb, "Behavior patterns: %s\n", strings.Join(u.Profile.BehaviorPatterns, ", "))
		}
		if u.Profile.RelationshipWithBot != "" {
			fmt.Fprintf(&sb, "My relationship with this user: %s\n", u.Profile.RelationshipWithBot)
		}
		if n := len(u.Impressions); n > 0 {
			fmt.Fprintf(&sb, "\nMy impression of this user: %s\n", u.Impressions[n-1].Text)
		}
	}

	if rel, ok := d.relationships[chatID]; ok {
		var mine []model.Relationship
		for _, r := range rel.Relationships {
			if r.Mentions(userID) {
				mine = append(mine, r)
			}
		}
		if len(mine) > 0 {
			sb.WriteString("\nUser relationships in this chat:\n")
			for _, r := range mine {
				fmt.Fprintf(&sb, "- %s\n", r.Description)
			}
		}
	}

	return sb.String()
}

// UpdateThresholds replaces the analysis thresholds at runtime. Zero
// fields keep their current value.
func (d *GlobalDirectory) UpdateThresholds(t model.AnalysisThresholds) model.AnalysisThresholds {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t.UserUpdate > 0 {
		d.thresholds.UserUpdate = t.UserUpdate
	}
	if t.ChatUpdate > 0 {
		d.thresholds.ChatUpdate = t.ChatUpdate
	}
	if t.RelationshipUpdate > 0 {
		d.thresholds.RelationshipUpdate = t.RelationshipUpdate
	}
	d.gen++
	return d.thresholds
}

func (d *GlobalDirectory) Dirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gen != d.savedGen
}

func (d *GlobalDirectory) MarkSaved(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.savedGen = gen
}
