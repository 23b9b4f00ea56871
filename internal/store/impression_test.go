package store

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
)

func newTestEngine(min, delta int) (*ImpressionEngine, *ConversationStore) {
	l := zerolog.Nop()
	conv := NewConversationStore(500, nil, &l)
	return NewImpressionEngine(min, delta, conv, &l), conv
}

func sendUserMessages(conv *ConversationStore, chatID, userID int64, n int) {
	for i := 0; i < n; i++ {
		conv.Append(chatID, userMsg(userID, "olena", fmt.Sprintf("m-%d", i)))
	}
}

func TestMaybeSchedule_BelowMinimum(t *testing.T) {
	e, conv := newTestEngine(10, 30)
	sendUserMessages(conv, 1, 10, 9)
	if e.MaybeSchedule(1, 10, "olena") {
		t.Fatal("scheduled below the first-generation threshold")
	}
	if got := len(e.Pending()); got != 0 {
		t.Errorf("pending = %d, want 0", got)
	}
}

func TestMaybeSchedule_FirstGeneration(t *testing.T) {
	e, conv := newTestEngine(10, 30)
	sendUserMessages(conv, 1, 10, 10)
	if !e.MaybeSchedule(1, 10, "olena") {
		t.Fatal("did not schedule at the threshold")
	}
	jobs := e.Pending()
	if len(jobs) != 1 {
		t.Fatalf("pending = %d, want 1", len(jobs))
	}
	if jobs[0].CountAtSchedule != 10 {
		t.Errorf("CountAtSchedule = %d, want 10", jobs[0].CountAtSchedule)
	}
}

func TestMaybeSchedule_AtMostOneOutstanding(t *testing.T) {
	e, conv := newTestEngine(10, 30)
	sendUserMessages(conv, 1, 10, 10)
	if !e.MaybeSchedule(1, 10, "olena") {
		t.Fatal("first schedule failed")
	}
	// More traffic while the job is still outstanding must not stack jobs,
	// even past another delta.
	sendUserMessages(conv, 1, 10, 40)
	if e.MaybeSchedule(1, 10, "olena") {
		t.Error("scheduled a second job while one was outstanding")
	}
	if got := len(e.Pending()); got != 1 {
		t.Errorf("pending = %d, want 1", got)
	}
}

func TestMaybeSchedule_BaselineAdvancesAtScheduling(t *testing.T) {
	e, conv := newTestEngine(10, 30)
	sendUserMessages(conv, 1, 10, 15)
	e.MaybeSchedule(1, 10, "olena")
	e.Complete(1, 10, "перше враження")

	// 15 recorded at schedule; 44 total is delta 29 — not yet due.
	sendUserMessages(conv, 1, 10, 29)
	if e.MaybeSchedule(1, 10, "olena") {
		t.Fatal("refreshed below the delta")
	}
	sendUserMessages(conv, 1, 10, 1)
	if !e.MaybeSchedule(1, 10, "olena") {
		t.Fatal("did not refresh at the delta")
	}
	if jobs := e.Pending(); jobs[0].CountAtSchedule != 45 {
		t.Errorf("CountAtSchedule = %d, want 45", jobs[0].CountAtSchedule)
	}
}

func TestComplete_StoresTextAndClearsJob(t *testing.T) {
	e, conv := newTestEngine(10, 30)
	sendUserMessages(conv, 1, 10, 10)
	e.MaybeSchedule(1, 10, "olena")
	e.Complete(1, 10, "дружелюбна і допитлива")

	if got := len(e.Pending()); got != 0 {
		t.Fatalf("pending = %d after Complete, want 0", got)
	}
	imp, ok := conv.Impression(1, 10)
	if !ok || imp.Text != "дружелюбна і допитлива" {
		t.Errorf("Impression = %+v,%v", imp, ok)
	}
	if imp.MessageCount != 10 {
		t.Errorf("baseline = %d, want 10", imp.MessageCount)
	}
}

func TestAbandon_AllowsReschedule(t *testing.T) {
	e, conv := newTestEngine(10, 30)
	sendUserMessages(conv, 1, 10, 10)
	e.MaybeSchedule(1, 10, "olena")
	e.Abandon(1, 10)
	if got := len(e.Pending()); got != 0 {
		t.Fatalf("pending = %d after Abandon, want 0", got)
	}
	// Baseline already moved to 10; the next crossing is at 40.
	sendUserMessages(conv, 1, 10, 30)
	if !e.MaybeSchedule(1, 10, "olena") {
		t.Error("did not reschedule after Abandon at the next crossing")
	}
}
