package store

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"telegram-companion-bot/internal/domain/model"
)

func newTestConv(max int) *ConversationStore {
	l := zerolog.Nop()
	return NewConversationStore(max, nil, &l)
}

func userMsg(userID int64, name, text string) model.Message {
	return model.Message{Timestamp: time.Now(), UserID: userID, Username: name, Content: text}
}

func TestAppend_EvictsOldestBeyondCap(t *testing.T) {
	s := newTestConv(5)
	for i := 0; i < 8; i++ {
		s.Append(1, userMsg(10, "olena", fmt.Sprintf("msg-%d", i)))
	}
	if got := s.MessageCount(1); got != 5 {
		t.Fatalf("MessageCount = %d, want 5", got)
	}
	r := s.Render(1)
	if strings.Contains(r, "msg-2") {
		t.Errorf("evicted message still rendered:\n%s", r)
	}
	if !strings.HasPrefix(r, "User (olena): msg-3\n") {
		t.Errorf("unexpected head of transcript:\n%s", r)
	}
}

func TestRender_SpeakerFormat(t *testing.T) {
	s := newTestConv(10)
	s.Append(1, userMsg(10, "olena", "привіт"))
	s.Append(1, model.Message{UserID: 0, Username: "Bot", Content: "Привіт!", IsBot: true})
	want := "User (olena): привіт\nBot: Привіт!\n"
	if got := s.Render(1); got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestAddFact_Idempotent(t *testing.T) {
	s := newTestConv(10)
	f := model.Fact{Category: model.CategoryFact, Value: "любить каву"}
	s.AddFact(1, f, 10)
	s.AddFact(1, f, 10)
	rec := s.Memory(1)
	if len(rec.Facts) != 1 {
		t.Fatalf("Facts = %v, want exactly one entry", rec.Facts)
	}
}

func TestAddFact_UserInfoKeyedByUser(t *testing.T) {
	s := newTestConv(10)
	s.AddFact(1, model.Fact{Category: model.CategoryUserInfo, Key: "name", Value: "Олена"}, 10)
	s.AddFact(1, model.Fact{Category: model.CategoryUserInfo, Key: "name", Value: "Ігор"}, 20)
	rec := s.Memory(1)
	if rec.UserInfo[10]["name"] != "Олена" || rec.UserInfo[20]["name"] != "Ігор" {
		t.Errorf("UserInfo = %v", rec.UserInfo)
	}
}

func TestClearMemory_PreservesLastInteraction(t *testing.T) {
	s := newTestConv(10)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return at }
	s.AddFact(1, model.Fact{Category: model.CategoryTopic, Value: "музика"}, 10)
	s.ClearMemory(1)
	rec := s.Memory(1)
	if len(rec.Topics) != 0 {
		t.Errorf("Topics survived clear: %v", rec.Topics)
	}
	if !rec.LastInteraction.Equal(at) {
		t.Errorf("LastInteraction = %v, want %v", rec.LastInteraction, at)
	}
}

func TestMemory_ReturnsCopy(t *testing.T) {
	s := newTestConv(10)
	s.AddFact(1, model.Fact{Category: model.CategoryTopic, Value: "музика"}, 10)
	rec := s.Memory(1)
	rec.Topics[0] = "mutated"
	if got := s.Memory(1).Topics[0]; got != "музика" {
		t.Errorf("store mutated through returned record: %q", got)
	}
}

func TestRecentUserMessages_LimitAndOrder(t *testing.T) {
	s := newTestConv(50)
	for i := 0; i < 6; i++ {
		s.Append(1, userMsg(10, "olena", fmt.Sprintf("a-%d", i)))
		s.Append(1, userMsg(20, "ihor", fmt.Sprintf("b-%d", i)))
	}
	got := s.RecentUserMessages(1, 10, 4)
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	if got[0].Content != "a-2" || got[3].Content != "a-5" {
		t.Errorf("window = [%s..%s], want [a-2..a-5]", got[0].Content, got[3].Content)
	}
	for _, m := range got {
		if m.UserID != 10 {
			t.Errorf("foreign message in window: %+v", m)
		}
	}
}

func TestDirty_GenerationGuard(t *testing.T) {
	s := newTestConv(10)
	if s.Dirty() {
		t.Fatal("fresh store must be clean")
	}
	s.Append(1, userMsg(10, "olena", "one"))

	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	// Mutation lands between snapshot and save acknowledgment.
	s.Append(1, userMsg(10, "olena", "two"))
	s.MarkSaved(gen)
	if !s.Dirty() {
		t.Error("store acknowledged a stale snapshot as fully saved")
	}

	s.mu.Lock()
	gen = s.gen
	s.mu.Unlock()
	s.MarkSaved(gen)
	if s.Dirty() {
		t.Error("store dirty after acknowledging the current generation")
	}
}

func TestChats_SortedUnion(t *testing.T) {
	s := newTestConv(10)
	s.Append(3, userMsg(10, "olena", "x"))
	s.AddFact(1, model.Fact{Category: model.CategoryFact, Value: "f"}, 10)
	got := s.Chats()
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("Chats = %v, want [1 3]", got)
	}
}
