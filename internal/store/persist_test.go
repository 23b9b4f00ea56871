package store

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"telegram-companion-bot/internal/domain/model"
)

func chatFixture(t *testing.T) (*ConversationStore, *SessionTracker, *ImpressionEngine, *SummaryCache) {
	t.Helper()
	l := zerolog.Nop()
	conv := NewConversationStore(200, nil, &l)
	sessions := NewSessionTracker(0, &l)
	impressions := NewImpressionEngine(10, 30, conv, &l)
	summaries := NewSummaryCache(true, 20, 0, conv, &l)
	return conv, sessions, impressions, summaries
}

func TestChatDocument_RoundTrip(t *testing.T) {
	conv, sessions, impressions, summaries := chatFixture(t)

	sendUserMessages(conv, 1, 10, 12)
	conv.AddFact(1, model.Fact{Category: model.CategoryFact, Value: "любить каву"}, 10)
	sessions.Start(1, 10, "olena")
	impressions.MaybeSchedule(1, 10, "olena")
	summaries.Store(1, "підсумок розмови")

	doc, gens := SnapshotChatDocument(conv, sessions, impressions, summaries)

	// Through JSON, as the saver would write and read it.
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var restoredDoc ChatDocument
	if err := json.Unmarshal(b, &restoredDoc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	conv2, sessions2, impressions2, summaries2 := chatFixture(t)
	RestoreChatDocument(&restoredDoc, conv2, sessions2, impressions2, summaries2)

	if got := conv2.MessageCount(1); got != 13 {
		t.Errorf("MessageCount = %d, want 13", got)
	}
	if rec := conv2.Memory(1); len(rec.Facts) != 1 || rec.Facts[0] != "любить каву" {
		t.Errorf("Facts = %v", rec.Facts)
	}
	if !sessions2.IsParticipant(1, 10) {
		t.Error("session participant lost in round trip")
	}
	if jobs := impressions2.Pending(); len(jobs) != 1 || jobs[0].ChatID != 1 || jobs[0].UserID != 10 {
		t.Errorf("Pending = %+v", jobs)
	}
	if text, ok := summaries2.Fetch(1); !ok || text != "підсумок розмови" {
		t.Errorf("summary = %q,%v", text, ok)
	}

	// Acknowledging the snapshot generations leaves all stores clean.
	conv.MarkSaved(gens.Conversations)
	sessions.MarkSaved(gens.Sessions)
	impressions.MarkSaved(gens.Impressions)
	summaries.MarkSaved(gens.Summaries)
	if conv.Dirty() || sessions.Dirty() || impressions.Dirty() || summaries.Dirty() {
		t.Error("a store stayed dirty after acknowledging its snapshot generation")
	}
}

func TestGlobalDocument_RoundTrip(t *testing.T) {
	d := newTestDirectory(100, 5)
	observeN(d, 1, 10, "olena", 3)
	observeN(d, 1, 20, "ihor", 2)
	_ = d.SaveProfile(10, model.Profile{Personality: "допитлива", RelationshipWithBot: "friendly"})
	_ = d.RecordImpression(10, "перше враження")
	d.SaveRelationshipAnalysis(1, []model.Relationship{
		{UserIDs: []int64{10, 20}, Type: "friends", Description: "друзі"},
	})
	d.UpdateThresholds(model.AnalysisThresholds{UserUpdate: 70})

	doc, gen := SnapshotGlobalDocument(d)
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var restoredDoc GlobalDocument
	if err := json.Unmarshal(b, &restoredDoc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	d2 := newTestDirectory(100, 5)
	RestoreGlobalDocument(&restoredDoc, d2)

	u, err := d2.User(10)
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	if u.TotalMessages != 3 || u.Profile.Personality != "допитлива" {
		t.Errorf("restored user = %+v", u)
	}
	if len(u.Impressions) != 1 || u.Impressions[0].Text != "перше враження" {
		t.Errorf("restored impressions = %+v", u.Impressions)
	}
	if rels := d2.Relationships(1); len(rels) != 1 || rels[0].Description != "друзі" {
		t.Errorf("restored relationships = %+v", rels)
	}
	// Persisted thresholds override the configured ones.
	got := d2.UpdateThresholds(model.AnalysisThresholds{})
	if got.UserUpdate != 70 {
		t.Errorf("restored UserUpdate threshold = %d, want 70", got.UserUpdate)
	}

	d.MarkSaved(gen)
	if d.Dirty() {
		t.Error("directory stayed dirty after acknowledging its snapshot")
	}
}

func TestRestoreChatDocument_SkipsBadKeys(t *testing.T) {
	conv, sessions, impressions, summaries := chatFixture(t)
	doc := &ChatDocument{
		Conversations: map[string][]model.Message{
			"not-a-number": {{Content: "x"}},
			"7":            {{Content: "y", UserID: 10, Username: "olena"}},
		},
	}
	RestoreChatDocument(doc, conv, sessions, impressions, summaries)
	if got := conv.Chats(); len(got) != 1 || got[0] != 7 {
		t.Errorf("Chats = %v, want [7]", got)
	}
}
