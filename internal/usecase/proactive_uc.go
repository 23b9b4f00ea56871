package usecase

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-companion-bot/internal/config"
	"telegram-companion-bot/internal/domain/model"
	"telegram-companion-bot/internal/domain/ports/adapter"
	"telegram-companion-bot/internal/store"
)

// cannedOpeners are used when the model cannot produce a proactive line.
var cannedOpeners = []string{
	"Привіт! Як справи? 😊",
	"Щось тихо тут стало... Чим займаєтесь?",
	"Сумую без вас! Розкажіть, що нового?",
	"Давно не спілкувались. Як ваші справи?",
}

// Proactive occasionally writes to quiet chats on its own initiative.
// It never interrupts an active conversation: a chat that saw any message
// within the activity cooldown is skipped, as is a chat idle longer than
// the inactive cutoff.
type Proactive struct {
	cfg     config.ProactiveConfig
	persona string
	model   string

	conv      *store.ConversationStore
	directory *store.GlobalDirectory
	ai        adapter.AIServiceAdapter
	sender    adapter.MessageSender

	mu        sync.Mutex
	enabled   bool
	lastSent  map[int64]time.Time
	sentToday map[int64]int
	day       string // yyyy-mm-dd of the sentToday counters

	now  func() time.Time
	rand *rand.Rand
	log  zerolog.Logger
}

func NewProactive(cfg config.ProactiveConfig, persona, modelName string,
	conv *store.ConversationStore, directory *store.GlobalDirectory,
	ai adapter.AIServiceAdapter, sender adapter.MessageSender, logger *zerolog.Logger) *Proactive {
	return &Proactive{
		cfg:       cfg,
		persona:   persona,
		model:     modelName,
		conv:      conv,
		directory: directory,
		ai:        ai,
		sender:    sender,
		enabled:   cfg.Enabled,
		lastSent:  make(map[int64]time.Time),
		sentToday: make(map[int64]int),
		now:       time.Now,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
		log:       logger.With().Str("component", "Proactive").Logger(),
	}
}

// SetEnabled flips the runtime toggle without touching configuration.
func (p *Proactive) SetEnabled(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = on
}

func (p *Proactive) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// Status renders the current state for the /schedule command.
func (p *Proactive) Status() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	state := "вимкнено"
	if p.enabled {
		state = "увімкнено"
	}
	return fmt.Sprintf("Проактивні повідомлення: %s.\nМаксимум на день: %d, мінімальний інтервал: %s.",
		state, p.cfg.MaxPerDay, p.cfg.MinGap)
}

// Tick walks every known chat once and sends at most one proactive
// message per eligible chat. It is called from the periodic worker.
func (p *Proactive) Tick(ctx context.Context) {
	if !p.Enabled() {
		return
	}
	last := p.conv.LastInteractions()
	for _, chatID := range p.conv.Chats() {
		if ctx.Err() != nil {
			return
		}
		if !p.shouldSend(chatID, last[chatID]) {
			continue
		}
		p.send(ctx, chatID)
	}
}

// shouldSend applies the eligibility rules and the probability ramp, and
// on success reserves the slot so a concurrent tick cannot double-send.
func (p *Proactive) shouldSend(chatID int64, lastActivity time.Time) bool {
	now := p.now()
	if lastActivity.IsZero() {
		return false
	}
	idle := now.Sub(lastActivity)
	if idle < p.cfg.ActivityCooldown || idle > p.cfg.InactiveCutoff {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	day := now.Format("2006-01-02")
	if day != p.day {
		p.day = day
		p.sentToday = make(map[int64]int)
	}
	if p.sentToday[chatID] >= p.cfg.MaxPerDay {
		return false
	}

	if t, ok := p.lastSent[chatID]; ok && now.Sub(t) < p.cfg.MinGap {
		return false
	}
	// Also respect the chat's own silence: no sooner than MinGap after
	// the last human activity.
	if idle < p.cfg.MinGap {
		return false
	}

	// Probability ramps from 0 at MinGap to 30% at MaxGap.
	ramp := float64(idle-p.cfg.MinGap) / float64(p.cfg.MaxGap-p.cfg.MinGap)
	if ramp > 1 {
		ramp = 1
	}
	if p.rand.Float64() >= ramp*0.3 {
		return false
	}

	p.lastSent[chatID] = now
	p.sentToday[chatID]++
	return true
}

func (p *Proactive) send(ctx context.Context, chatID int64) {
	text := p.compose(ctx, chatID)
	if err := p.sender.SendMessage(ctx, chatID, text, 0); err != nil {
		p.log.Warn().Err(err).Int64("chat_id", chatID).Msg("proactive send failed")
		return
	}
	p.conv.Append(chatID, model.Message{
		Timestamp: p.now(),
		UserID:    0,
		Username:  "Bot",
		Content:   text,
		IsBot:     true,
	})
	p.log.Info().Int64("chat_id", chatID).Msg("proactive message sent")
}

// compose asks the model for an opener grounded in the recent transcript,
// falling back to a canned line on failure.
func (p *Proactive) compose(ctx context.Context, chatID int64) string {
	tail := p.conv.RenderTail(chatID, 10)
	var sb strings.Builder
	sb.WriteString(p.persona)
	sb.WriteString("\n\nThe chat has gone quiet. Write one short, natural message to restart the conversation. ")
	sb.WriteString("Pick up a thread from the recent messages if there is one; otherwise just check in. ")
	sb.WriteString("Reply with the message text only.\n")
	if tail != "" {
		sb.WriteString("\nRecent messages:\n")
		sb.WriteString(tail)
	}
	text, err := p.ai.Chat(ctx, p.model, []adapter.Message{{Role: "user", Content: sb.String()}})
	if err != nil || strings.TrimSpace(text) == "" {
		return cannedOpeners[p.rand.Intn(len(cannedOpeners))]
	}
	return strings.TrimSpace(text)
}
