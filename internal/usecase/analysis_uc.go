package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"telegram-companion-bot/internal/domain/model"
	"telegram-companion-bot/internal/domain/ports/adapter"
	"telegram-companion-bot/internal/store"
)

// Analysis performs the out-of-band LLM-backed work: impression texts,
// cross-chat user profiles, chat relationship maps and conversation
// summaries. Every method degrades to a no-op on LLM failure; nothing here
// may take down message handling.
type Analysis struct {
	conv        *store.ConversationStore
	directory   *store.GlobalDirectory
	impressions *store.ImpressionEngine

	ai      adapter.AIServiceAdapter
	model   string
	persona string
	sample  int // messages fed to impression generation

	log zerolog.Logger
}

func NewAnalysis(conv *store.ConversationStore, directory *store.GlobalDirectory, impressions *store.ImpressionEngine,
	ai adapter.AIServiceAdapter, modelName, persona string, sampleSize int, logger *zerolog.Logger) *Analysis {
	if sampleSize <= 0 {
		sampleSize = 50
	}
	return &Analysis{
		conv:        conv,
		directory:   directory,
		impressions: impressions,
		ai:          ai,
		model:       modelName,
		persona:     persona,
		sample:      sampleSize,
		log:         logger.With().Str("component", "Analysis").Logger(),
	}
}

// Summarize produces a fresh conversation summary for the chat from the
// store's transcript render.
func (a *Analysis) Summarize(ctx context.Context, chatID int64) (string, error) {
	transcript := a.conv.Render(chatID)
	if transcript == "" {
		return "", errors.New("nothing to summarize")
	}
	prompt := a.persona + "\n\nSummarize the following conversation in a few short sentences. " +
		"Keep the participants' names and the concrete facts; drop greetings and filler.\n\n" + transcript
	text, err := a.ai.Chat(ctx, a.model, []adapter.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return "", fmt.Errorf("summarize chat %d: %w", chatID, err)
	}
	return strings.TrimSpace(text), nil
}

// GenerateImpression completes one scheduled impression job: prompts the
// model with the user's recent messages plus any prior impression for
// continuity, then writes the result back through the engine and into the
// global history.
func (a *Analysis) GenerateImpression(ctx context.Context, job store.ImpressionJob) error {
	msgs := a.conv.RecentUserMessages(job.ChatID, job.UserID, a.sample)
	if len(msgs) == 0 {
		// History rotated the user out; drop the job and let the next
		// crossing reschedule.
		a.impressions.Abandon(job.ChatID, job.UserID)
		return nil
	}

	var sb strings.Builder
	sb.WriteString(a.persona)
	fmt.Fprintf(&sb, "\n\nForm your subjective impression of the user %s based on their recent messages. ", job.Username)
	sb.WriteString("Write a short paragraph in the first person: what kind of person they seem to be, how they talk to you, what stands out.\n")
	if prior, ok := a.conv.Impression(job.ChatID, job.UserID); ok && prior.Text != "" {
		sb.WriteString("\nYour previous impression, for continuity:\n")
		sb.WriteString(prior.Text)
		sb.WriteString("\n")
	}
	sb.WriteString("\nRecent messages:\n")
	for _, m := range msgs {
		fmt.Fprintf(&sb, "- %s\n", m.Content)
	}

	text, err := a.ai.Chat(ctx, a.model, []adapter.Message{{Role: "user", Content: sb.String()}})
	if err != nil {
		return fmt.Errorf("impression for %d:%d: %w", job.ChatID, job.UserID, err)
	}
	text = strings.TrimSpace(text)
	a.impressions.Complete(job.ChatID, job.UserID, text)
	if err := a.directory.RecordImpression(job.UserID, text); err != nil {
		a.log.Debug().Err(err).Int64("user_id", job.UserID).Msg("impression not recorded globally")
	}
	return nil
}

// GenerateProfile recomputes the cross-chat profile for one user. Reading
// the snapshot clears the needs-update flag, so a failed generation waits
// for the next threshold crossing rather than retrying hot.
func (a *Analysis) GenerateProfile(ctx context.Context, userID int64) error {
	u, err := a.directory.ProfileSnapshot(userID)
	if err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString(a.persona)
	sb.WriteString("\n\nAnalyze a user you have interacted with across chats and update your personal profile of them. ")
	sb.WriteString("Base it on your own perspective and instincts.\n\n")
	fmt.Fprintf(&sb, "User information:\n- Username: %s\n- User ID: %d\n- Total messages: %d\n- Active in %d chats\n",
		u.Username, u.UserID, u.TotalMessages, len(u.Chats))
	fmt.Fprintf(&sb, "\nPrevious analysis (for reference):\n- Personality: %s\n- Interests: %s\n- Behavior patterns: %s\n",
		u.Profile.Personality, strings.Join(u.Profile.Interests, ", "), strings.Join(u.Profile.BehaviorPatterns, ", "))
	sb.WriteString("\nRespond with a JSON object with fields: personality (string), interests (array of strings), " +
		"behavior_patterns (array of strings), relationship_with_bot (one of \"friendly\", \"hostile\", \"neutral\", \"formal\").")

	text, err := a.ai.Chat(ctx, a.model, []adapter.Message{{Role: "user", Content: sb.String()}})
	if err != nil {
		return fmt.Errorf("profile for user %d: %w", userID, err)
	}

	profile := parseProfile(text, u.Profile)
	return a.directory.SaveProfile(userID, profile)
}

// GenerateRelationships recomputes the relationship map for one chat. With
// fewer than two known participants there is nothing to analyze and the
// due flag is cleared with an empty result.
func (a *Analysis) GenerateRelationships(ctx context.Context, chatID int64) error {
	users := a.directory.ChatUsers(chatID)
	if len(users) < 2 {
		a.directory.SaveRelationshipAnalysis(chatID, nil)
		return nil
	}

	var sb strings.Builder
	sb.WriteString(a.persona)
	sb.WriteString("\n\nAnalyze how the users of this chat relate to each other, from your own subjective perspective.\n\nUsers in this chat:\n")
	for _, u := range users {
		count := 0
		if p, ok := u.Chats[chatID]; ok {
			count = p.MessageCount
		}
		fmt.Fprintf(&sb, "- User: %s (ID: %d), Messages: %d, Personality: %s\n",
			u.Username, u.UserID, count, u.Profile.Personality)
	}
	sb.WriteString("\nRespond with a JSON array of observations; each entry has user_ids (array of numeric IDs), " +
		"relationship_type (e.g. \"friends\", \"rivals\", \"colleagues\", \"neutral\", \"hostile\") and description. " +
		"Only include relationships you have enough data for.")

	text, err := a.ai.Chat(ctx, a.model, []adapter.Message{{Role: "user", Content: sb.String()}})
	if err != nil {
		return fmt.Errorf("relationships for chat %d: %w", chatID, err)
	}

	rels := parseRelationships(text, users)
	if len(rels) == 0 {
		// Unparseable output: store the empty result anyway so the chat is
		// not retried every cycle until the next threshold crossing.
		a.log.Debug().Int64("chat_id", chatID).Msg("relationship response not parseable")
	}
	a.directory.SaveRelationshipAnalysis(chatID, rels)
	return nil
}

// ProcessPending drains outstanding background work: all pending
// impressions, then up to maxProfiles profile updates and maxRelations
// relationship analyses. Individual failures are logged and skipped.
func (a *Analysis) ProcessPending(ctx context.Context, maxProfiles, maxRelations int) (done int) {
	for _, job := range a.impressions.Pending() {
		if ctx.Err() != nil {
			return done
		}
		if err := a.GenerateImpression(ctx, job); err != nil {
			a.log.Warn().Err(err).Int64("chat_id", job.ChatID).Int64("user_id", job.UserID).Msg("impression generation failed")
			continue
		}
		done++
	}

	for i, userID := range a.directory.UsersNeedingProfileUpdate() {
		if i >= maxProfiles || ctx.Err() != nil {
			break
		}
		if err := a.GenerateProfile(ctx, userID); err != nil {
			a.log.Warn().Err(err).Int64("user_id", userID).Msg("profile generation failed")
			continue
		}
		done++
	}

	for i, chatID := range a.directory.ChatsNeedingRelationshipUpdate() {
		if i >= maxRelations || ctx.Err() != nil {
			break
		}
		if err := a.GenerateRelationships(ctx, chatID); err != nil {
			a.log.Warn().Err(err).Int64("chat_id", chatID).Msg("relationship analysis failed")
			continue
		}
		done++
	}
	return done
}

// stripFences removes a markdown code fence around a JSON payload.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}

// parseProfile decodes the model's profile JSON, backfilling missing
// fields from the previous profile. A response that is not valid JSON is
// mined line by line.
func parseProfile(text string, prev model.Profile) model.Profile {
	p := model.Profile{}
	if err := json.Unmarshal([]byte(stripFences(text)), &p); err != nil {
		lower := strings.ToLower(text)
		p.Personality = lineAfter(lower, "personality:")
		p.Interests = splitList(lineAfter(lower, "interests:"))
		p.BehaviorPatterns = splitList(lineAfter(lower, "behavior patterns:"))
		if p.BehaviorPatterns == nil {
			p.BehaviorPatterns = splitList(lineAfter(lower, "behavior_patterns:"))
		}
		p.RelationshipWithBot = lineAfter(lower, "relationship_with_bot:")
	}
	if p.Personality == "" {
		p.Personality = prev.Personality
	}
	if len(p.Interests) == 0 {
		p.Interests = prev.Interests
	}
	if len(p.BehaviorPatterns) == 0 {
		p.BehaviorPatterns = prev.BehaviorPatterns
	}
	if p.RelationshipWithBot == "" {
		if prev.RelationshipWithBot != "" {
			p.RelationshipWithBot = prev.RelationshipWithBot
		} else {
			p.RelationshipWithBot = "neutral"
		}
	}
	return p
}

// parseRelationships decodes the model's relationship JSON. When the
// response is prose rather than JSON it is kept as one group-wide
// observation so the work is not wasted.
func parseRelationships(text string, users []*model.GlobalUserRecord) []model.Relationship {
	var rels []model.Relationship
	if err := json.Unmarshal([]byte(stripFences(text)), &rels); err == nil {
		return rels
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "relationship") && strings.Contains(lower, "user") {
		ids := make([]int64, 0, len(users))
		for _, u := range users {
			ids = append(ids, u.UserID)
		}
		return []model.Relationship{{
			UserIDs:     ids,
			Type:        "group",
			Description: strings.TrimSpace(text),
		}}
	}
	return nil
}

func lineAfter(text, marker string) string {
	i := strings.Index(text, marker)
	if i < 0 {
		return ""
	}
	rest := text[i+len(marker):]
	if j := strings.IndexByte(rest, '\n'); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
