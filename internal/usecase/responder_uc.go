package usecase

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-companion-bot/internal/config"
	"telegram-companion-bot/internal/domain/model"
	"telegram-companion-bot/internal/domain/ports/adapter"
	"telegram-companion-bot/internal/infra/logging"
	"telegram-companion-bot/internal/store"
)

// TaskPool runs deferred work off the request path.
type TaskPool interface {
	Submit(task func(ctx context.Context) error) error
}

// typing pacing: per-character delay clamped to a human-looking range.
const (
	typingPerRune = 30 * time.Millisecond
	typingMin     = time.Second
	typingMax     = 7 * time.Second
)

// Responder decides, for every inbound message, whether the bot answers
// and produces the answer. Recording always happens; answering is gated
// by chat type, triggers, replies and session membership.
type Responder struct {
	cfg config.Config

	conv        *store.ConversationStore
	sessions    *store.SessionTracker
	impressions *store.ImpressionEngine
	directory   *store.GlobalDirectory
	summaries   *store.SummaryCache

	batcher  *Batcher
	matcher  *Matcher
	prompts  *PromptBuilder
	commands *Commands
	analysis *Analysis

	ai     adapter.AIServiceAdapter
	sender adapter.MessageSender
	pool   TaskPool

	log zerolog.Logger
	now func() time.Time
}

func NewResponder(cfg config.Config,
	conv *store.ConversationStore, sessions *store.SessionTracker,
	impressions *store.ImpressionEngine, directory *store.GlobalDirectory,
	summaries *store.SummaryCache,
	batcher *Batcher, matcher *Matcher, prompts *PromptBuilder,
	commands *Commands, analysis *Analysis,
	ai adapter.AIServiceAdapter, sender adapter.MessageSender, pool TaskPool,
	logger *zerolog.Logger) *Responder {
	return &Responder{
		cfg:         cfg,
		conv:        conv,
		sessions:    sessions,
		impressions: impressions,
		directory:   directory,
		summaries:   summaries,
		batcher:     batcher,
		matcher:     matcher,
		prompts:     prompts,
		commands:    commands,
		analysis:    analysis,
		ai:          ai,
		sender:      sender,
		pool:        pool,
		log:         logger.With().Str("component", "Responder").Logger(),
		now:         time.Now,
	}
}

// HandleInbound processes one normalized update. Recording, command
// dispatch and the response decision run synchronously; batching and
// generation continue on a detached context so the webhook can return.
func (r *Responder) HandleInbound(ctx context.Context, in model.Inbound) {
	if strings.TrimSpace(in.Text) == "" {
		return
	}
	ctx = logging.WithTraceID(ctx, uuid.NewString())
	ctx = logging.WithChatID(ctx, in.ChatID)
	ctx = logging.WithUserID(ctx, in.UserID)
	log := logging.With(ctx, &r.log)

	r.record(in)

	if strings.HasPrefix(strings.TrimSpace(in.Text), "/") {
		if !r.cfg.Response.RespondToCommands {
			return
		}
		if reply, ok := r.commands.Handle(in); ok {
			if err := r.sender.SendMessage(ctx, in.ChatID, reply, in.MessageID); err != nil {
				log.Warn().Err(err).Msg("command reply failed")
			}
			return
		}
		return
	}

	if !r.shouldRespond(in, log) {
		return
	}

	// Hold for the batch window and generate off the request context so
	// webhook delivery is not tied to Telegram's HTTP timeout.
	detached := context.WithoutCancel(ctx)
	go r.respond(detached, in)
}

// record appends the message, updates the cross-chat directory and checks
// the impression threshold. It runs for every message, answered or not.
func (r *Responder) record(in model.Inbound) {
	r.conv.Append(in.ChatID, model.Message{
		Timestamp: r.now(),
		UserID:    in.UserID,
		Username:  in.Username,
		Content:   in.Text,
		IsBot:     false,
	})
	r.directory.Observe(in.ChatID, in.UserID, in.Username)
	r.impressions.MaybeSchedule(in.ChatID, in.UserID, in.Username)
}

// shouldRespond applies the decision ladder: private chats always answer;
// group chats answer on keyword trigger, on a direct reply to the bot, or
// for active-session participants. A trigger starts or extends a session;
// participant speech keeps it alive whether or not the bot answers, and
// auto-join adds bystanders silently.
func (r *Responder) shouldRespond(in model.Inbound, log *zerolog.Logger) bool {
	if !in.IsGroup {
		return true
	}
	if !r.cfg.Response.RespondInGroups {
		return false
	}

	if r.cfg.Trigger.Enabled && r.matcher.Match(in.Text) {
		r.startOrTouch(in)
		log.Debug().Msg("keyword trigger")
		return true
	}

	if in.ReplyTo != nil && in.ReplyTo.IsBot && r.cfg.Response.RespondToReplies {
		r.startOrTouch(in)
		log.Debug().Msg("reply to bot")
		return true
	}

	if r.sessions.IsActive(in.ChatID) {
		if r.sessions.IsParticipant(in.ChatID, in.UserID) {
			// Participant speech always extends the session; the flag only
			// decides whether the bot answers.
			_ = r.sessions.Touch(in.ChatID, in.UserID, in.Username)
			return r.cfg.Response.AutoReplyToParticipants
		}
		if r.cfg.Response.AutoJoinSessions {
			// Silent add: the sender becomes a participant, no reply.
			_ = r.sessions.Touch(in.ChatID, in.UserID, in.Username)
			log.Debug().Msg("joined active session")
			return false
		}
	}
	return false
}

// startOrTouch extends a live session, preserving its participants, and
// starts a fresh one only when the chat has none.
func (r *Responder) startOrTouch(in model.Inbound) {
	if err := r.sessions.Touch(in.ChatID, in.UserID, in.Username); err != nil {
		r.sessions.Start(in.ChatID, in.UserID, in.Username)
	}
}

// respond runs on its own goroutine: joins or owns the message batch,
// builds the prompt, calls the model and delivers the reply.
func (r *Responder) respond(ctx context.Context, in model.Inbound) {
	log := logging.With(ctx, &r.log)
	defer logging.TraceDuration(log, "respond")()

	userTurn := in.Text
	replyTo := in.MessageID
	if r.cfg.Batch.Enabled {
		items, owner := r.batcher.Submit(ctx, BatchKey(in), in)
		if !owner {
			return
		}
		userTurn = CombineTurn(items)
		replyTo = items[len(items)-1].MessageID
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if r.summaries.Due(in.ChatID) {
		r.scheduleSummary(in.ChatID)
	}

	summary, _ := r.summaries.Fetch(in.ChatID)
	prompt := r.prompts.Build(PromptInput{
		GlobalContext: r.directory.ContextFor(in.ChatID, in.UserID),
		MemoryContext: RenderMemoryContext(r.conv.Memory(in.ChatID), r.participantNames(in.ChatID)),
		Summary:       summary,
		Transcript:    r.conv.Render(in.ChatID),
		UserTurn:      userTurn,
	})

	if err := r.sender.SendTyping(ctx, in.ChatID); err != nil {
		log.Debug().Err(err).Msg("typing indicator failed")
	}
	if d := time.Duration(r.cfg.Response.DelaySeconds) * time.Second; d > 0 {
		r.sleep(ctx, d)
	}

	text, err := r.ai.Chat(ctx, r.cfg.AI.DefaultModel, []adapter.Message{{Role: "user", Content: prompt}})
	if err != nil {
		log.Error().Err(err).Msg("generation failed")
		// Fallback is delivered but never recorded: the transcript must
		// not learn from an apology.
		if serr := r.sender.SendMessage(ctx, in.ChatID, r.cfg.Response.FallbackText, replyTo); serr != nil {
			log.Warn().Err(serr).Msg("fallback delivery failed")
		}
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	r.sleep(ctx, typingDuration(text))
	if err := r.sender.SendMessage(ctx, in.ChatID, text, replyTo); err != nil {
		log.Warn().Err(err).Msg("reply delivery failed")
		return
	}
	r.conv.Append(in.ChatID, model.Message{
		Timestamp: r.now(),
		UserID:    0,
		Username:  "Bot",
		Content:   text,
		IsBot:     true,
	})
	r.maybeFollowUp(in.ChatID, text)
}

// maybeFollowUp occasionally schedules a second, smaller model call asking
// whether a short follow-up remark would feel natural after the reply just
// sent. Best-effort embellishment: it runs on the task pool and any failure
// is a silent no-op.
func (r *Responder) maybeFollowUp(chatID int64, reply string) {
	if r.cfg.Response.FollowUpChance <= 0 || rand.Float64() >= r.cfg.Response.FollowUpChance {
		return
	}
	err := r.pool.Submit(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		prompt := r.cfg.Bot.Persona +
			"\n\nYou just sent this reply:\n" + reply +
			"\n\nIf a short, natural follow-up remark suggests itself, write only that remark. " +
			"If the conversation needs nothing more, reply with exactly NOTHING."
		text, err := r.ai.Chat(ctx, r.cfg.AI.DefaultModel, []adapter.Message{{Role: "user", Content: prompt}})
		if err != nil {
			return nil
		}
		text = strings.TrimSpace(text)
		if text == "" || strings.EqualFold(text, "NOTHING") {
			return nil
		}
		r.sleep(ctx, typingDuration(text))
		if err := r.sender.SendMessage(ctx, chatID, text, 0); err != nil {
			return nil
		}
		r.conv.Append(chatID, model.Message{
			Timestamp: r.now(),
			UserID:    0,
			Username:  "Bot",
			Content:   text,
			IsBot:     true,
		})
		return nil
	})
	if err != nil {
		r.log.Debug().Err(err).Msg("follow-up task rejected")
	}
}

func (r *Responder) scheduleSummary(chatID int64) {
	count := r.conv.MessageCount(chatID)
	err := r.pool.Submit(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		text, err := r.analysis.Summarize(ctx, chatID)
		if err != nil {
			return fmt.Errorf("summarize chat %d: %w", chatID, err)
		}
		r.summaries.Store(chatID, text)
		r.log.Debug().Int64("chat_id", chatID).Int("messages", count).Msg("summary refreshed")
		return nil
	})
	if err != nil {
		r.log.Warn().Err(err).Msg("summary task rejected")
	}
}

// participantNames maps known user ids to display names for the memory
// context block.
func (r *Responder) participantNames(chatID int64) map[int64]string {
	names := make(map[int64]string)
	for _, u := range r.directory.ChatUsers(chatID) {
		names[u.UserID] = u.Username
	}
	return names
}

func (r *Responder) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// typingDuration paces delivery to reading speed.
func typingDuration(text string) time.Duration {
	d := time.Duration(utf8.RuneCountInString(text)) * typingPerRune
	if d < typingMin {
		return typingMin
	}
	if d > typingMax {
		return typingMax
	}
	return d
}
