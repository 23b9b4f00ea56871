package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"telegram-companion-bot/internal/domain/model"
)

// summaryTailLines is how many transcript lines accompany a summary; the
// summary covers the rest of the history.
const summaryTailLines = 20

// PromptBuilder assembles the final LLM prompt from persona, global user
// context, chat memory, summary and transcript. Pure templating with a
// fixed field order and token-budget truncation; unit-testable without any
// network.
type PromptBuilder struct {
	persona string
	budget  int
	enc     *tiktoken.Tiktoken
	log     zerolog.Logger
}

func NewPromptBuilder(persona string, budget int, logger *zerolog.Logger) *PromptBuilder {
	b := &PromptBuilder{
		persona: persona,
		budget:  budget,
		log:     logger.With().Str("component", "PromptBuilder").Logger(),
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		// Token counting degrades to a byte estimate; prompts still build.
		b.log.Warn().Err(err).Msg("tiktoken encoding unavailable, using byte estimate")
	} else {
		b.enc = enc
	}
	return b
}

// PromptInput carries the assembled context blocks. Empty fields are
// skipped.
type PromptInput struct {
	GlobalContext string
	MemoryContext string
	Summary       string
	Transcript    string // full deterministic render, oldest first
	UserTurn      string
}

// Build produces the prompt in the defined field order: persona, global
// context, memory, summary, transcript, user turn. When a summary is
// present only the last summaryTailLines transcript lines are kept. If the
// result exceeds the token budget, transcript lines are dropped from the
// head until it fits.
func (b *PromptBuilder) Build(in PromptInput) string {
	lines := transcriptLines(in.Transcript)
	if in.Summary != "" && len(lines) > summaryTailLines {
		lines = lines[len(lines)-summaryTailLines:]
	}

	prompt := b.assemble(in, lines)
	for b.budget > 0 && b.CountTokens(prompt) > b.budget && len(lines) > 0 {
		drop := len(lines) / 4
		if drop == 0 {
			drop = 1
		}
		lines = lines[drop:]
		prompt = b.assemble(in, lines)
	}
	return prompt
}

func (b *PromptBuilder) assemble(in PromptInput, lines []string) string {
	var sb strings.Builder
	sb.WriteString(b.persona)
	if in.GlobalContext != "" {
		sb.WriteString("\n\n")
		sb.WriteString(strings.TrimRight(in.GlobalContext, "\n"))
	}
	if in.MemoryContext != "" {
		sb.WriteString("\n\n")
		sb.WriteString(strings.TrimRight(in.MemoryContext, "\n"))
	}
	if in.Summary != "" {
		sb.WriteString("\n\nConversation summary:\n")
		sb.WriteString(strings.TrimRight(in.Summary, "\n"))
	}
	if len(lines) > 0 {
		sb.WriteString("\n\nPrevious conversation:\n")
		sb.WriteString(strings.Join(lines, "\n"))
	}
	sb.WriteString("\n\nUser message:\n")
	sb.WriteString(in.UserTurn)
	return sb.String()
}

// CountTokens counts prompt tokens, falling back to a conservative byte
// estimate when the encoder is unavailable.
func (b *PromptBuilder) CountTokens(s string) int {
	if b.enc != nil {
		return len(b.enc.Encode(s, nil, nil))
	}
	return len(s) / 3
}

func transcriptLines(t string) []string {
	t = strings.TrimRight(t, "\n")
	if t == "" {
		return nil
	}
	return strings.Split(t, "\n")
}

// RenderMemoryContext formats a chat's memory record as the "important
// information from memory" block. names resolves user ids to display
// names; unresolved ids fall back to the raw id.
func RenderMemoryContext(rec *model.MemoryRecord, names map[int64]string) string {
	if rec == nil {
		return ""
	}
	hasInfo := false
	for _, info := range rec.UserInfo {
		if len(info) > 0 {
			hasInfo = true
			break
		}
	}
	if !hasInfo && len(rec.Topics) == 0 && len(rec.Facts) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Important information from memory:\n")
	if hasInfo {
		sb.WriteString("User information:\n")
		uids := make([]int64, 0, len(rec.UserInfo))
		for uid := range rec.UserInfo {
			uids = append(uids, uid)
		}
		sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
		for _, uid := range uids {
			info := rec.UserInfo[uid]
			if len(info) == 0 {
				continue
			}
			name := names[uid]
			if name == "" {
				name = fmt.Sprintf("user %d", uid)
			}
			keys := make([]string, 0, len(info))
			for k := range info {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(&sb, "- %s (%s): %s\n", k, name, info[k])
			}
		}
	}
	if len(rec.Topics) > 0 {
		sb.WriteString("\nTopics previously discussed:\n")
		for _, t := range rec.Topics {
			fmt.Fprintf(&sb, "- %s\n", t)
		}
	}
	if len(rec.Facts) > 0 {
		sb.WriteString("\nImportant facts to remember:\n")
		for _, f := range rec.Facts {
			fmt.Fprintf(&sb, "- %s\n", f)
		}
	}
	return sb.String()
}
