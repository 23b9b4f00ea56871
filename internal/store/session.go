package store

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-companion-bot/internal/domain"
	"telegram-companion-bot/internal/domain/model"
)

// SessionTracker is the per-chat {Absent, Active} state machine. Expiry is
// lazy: the query that discovers an expired session also deletes it, so an
// expired session is indistinguishable from one that never started. Each
// operation is a single critical section; there is no separate
// read-then-write step to race against at the expiry boundary.
type SessionTracker struct {
	mu       sync.Mutex
	timeout  time.Duration
	sessions map[int64]*model.Session

	gen      uint64
	savedGen uint64

	now func() time.Time
	log zerolog.Logger
}

func NewSessionTracker(timeout time.Duration, logger *zerolog.Logger) *SessionTracker {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &SessionTracker{
		timeout:  timeout,
		sessions: make(map[int64]*model.Session),
		now:      time.Now,
		log:      logger.With().Str("component", "SessionTracker").Logger(),
	}
}

// Start opens a session for the chat with the user as starter and sole
// participant. An existing session (expired or not) is replaced.
func (t *SessionTracker) Start(chatID, userID int64, username string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[chatID] = model.NewSession(userID, username, t.now())
	t.gen++
}

// Touch refreshes activity and adds the user as a participant. Returns
// domain.ErrNoActiveSession when the chat has no live session (including
// one that just expired).
func (t *SessionTracker) Touch(chatID, userID int64, username string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.live(chatID)
	if s == nil {
		return domain.ErrNoActiveSession
	}
	s.Touch(userID, username, t.now())
	t.gen++
	return nil
}

// End force-closes the chat's session. Returns false when none existed.
func (t *SessionTracker) End(chatID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[chatID]; !ok {
		return false
	}
	delete(t.sessions, chatID)
	t.gen++
	return true
}

// IsActive answers whether the chat has a live session.
func (t *SessionTracker) IsActive(chatID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live(chatID) != nil
}

// IsParticipant additionally requires the user to be a session member.
func (t *SessionTracker) IsParticipant(chatID, userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.live(chatID)
	if s == nil {
		return false
	}
	_, ok := s.Participants[userID]
	return ok
}

// Starter returns the id of the user who opened the live session.
func (t *SessionTracker) Starter(chatID int64) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.live(chatID)
	if s == nil {
		return 0, false
	}
	return s.StarterID, true
}

// live returns the chat's session after the lazy-expiry check, deleting it
// when stale. Caller must hold t.mu.
func (t *SessionTracker) live(chatID int64) *model.Session {
	s, ok := t.sessions[chatID]
	if !ok {
		return nil
	}
	if s.Expired(t.now(), t.timeout) {
		delete(t.sessions, chatID)
		t.gen++
		return nil
	}
	return s
}

func (t *SessionTracker) Dirty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen != t.savedGen
}

func (t *SessionTracker) MarkSaved(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.savedGen = gen
}
