package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// ImpressionJob is one scheduled impression generation, persisted in the
// per-chat document so a restart does not forget outstanding work.
type ImpressionJob struct {
	ID              string    `json:"id"`
	ChatID          int64     `json:"chat_id"`
	UserID          int64     `json:"user_id"`
	Username        string    `json:"username"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	CountAtSchedule int       `json:"count_at_schedule"`
}

// ImpressionEngine decides when a user's impression is due for
// regeneration and tracks the outstanding jobs. Generation itself is
// performed out-of-band by the analysis worker; the engine only manages
// when to ask and where to store the answer.
type ImpressionEngine struct {
	mu           sync.Mutex
	minMessages  int
	refreshDelta int
	pending      map[string]ImpressionJob // key chatID:userID

	conv *ConversationStore

	gen      uint64
	savedGen uint64

	now func() time.Time
	log zerolog.Logger
}

func NewImpressionEngine(minMessages, refreshDelta int, conv *ConversationStore, logger *zerolog.Logger) *ImpressionEngine {
	if minMessages <= 0 {
		minMessages = 10
	}
	if refreshDelta <= 0 {
		refreshDelta = 30
	}
	return &ImpressionEngine{
		minMessages:  minMessages,
		refreshDelta: refreshDelta,
		pending:      make(map[string]ImpressionJob),
		conv:         conv,
		now:          time.Now,
		log:          logger.With().Str("component", "ImpressionEngine").Logger(),
	}
}

func jobKey(chatID, userID int64) string {
	return fmt.Sprintf("%d:%d", chatID, userID)
}

// MaybeSchedule evaluates whether the user's impression in this chat is due
// and, if so, records a pending job. The baseline message count advances at
// scheduling time, so repeated calls between threshold crossings stay
// no-ops even while generation is slow or failing. Returns true when a job
// was scheduled.
func (e *ImpressionEngine) MaybeSchedule(chatID, userID int64, username string) bool {
	count := e.conv.CountUserMessages(chatID, userID)
	if count < e.minMessages {
		return false
	}
	prior, hasPrior := e.conv.Impression(chatID, userID)

	e.mu.Lock()
	defer e.mu.Unlock()

	key := jobKey(chatID, userID)
	if _, outstanding := e.pending[key]; outstanding {
		return false
	}
	if hasPrior && prior.MessageCount > 0 && count-prior.MessageCount < e.refreshDelta {
		return false
	}

	e.pending[key] = ImpressionJob{
		ID:              ulid.Make().String(),
		ChatID:          chatID,
		UserID:          userID,
		Username:        username,
		ScheduledAt:     e.now(),
		CountAtSchedule: count,
	}
	e.gen++
	// Baseline moves now, not at completion.
	e.conv.ImpressionBaseline(chatID, userID, count)
	e.log.Debug().Int64("chat_id", chatID).Int64("user_id", userID).Int("count", count).Msg("impression scheduled")
	return true
}

// Pending returns all outstanding jobs, oldest first.
func (e *ImpressionEngine) Pending() []ImpressionJob {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ImpressionJob, 0, len(e.pending))
	for _, j := range e.pending {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Complete stores the generated text and clears the outstanding job. Safe
// to call after the chat's memory record was reset in the meantime.
func (e *ImpressionEngine) Complete(chatID, userID int64, text string) {
	e.conv.StoreImpression(chatID, userID, text)
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pending, jobKey(chatID, userID))
	e.gen++
}

// Abandon drops a job without storing anything, e.g. when the chat's
// history no longer contains the user. The next threshold crossing will
// reschedule.
func (e *ImpressionEngine) Abandon(chatID, userID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pending, jobKey(chatID, userID))
	e.gen++
}

func (e *ImpressionEngine) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen != e.savedGen
}

func (e *ImpressionEngine) MarkSaved(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.savedGen = gen
}
