package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"telegram-companion-bot/internal/domain/model"
	"telegram-companion-bot/internal/store"
)

type analysisFixture struct {
	analysis    *Analysis
	conv        *store.ConversationStore
	directory   *store.GlobalDirectory
	impressions *store.ImpressionEngine
	ai          *fakeAI
}

func newAnalysisFixture() *analysisFixture {
	log := zerolog.Nop()
	conv := store.NewConversationStore(100, nil, &log)
	directory := store.NewGlobalDirectory(model.AnalysisThresholds{UserUpdate: 50, ChatUpdate: 30, RelationshipUpdate: 40}, 5, &log)
	impressions := store.NewImpressionEngine(10, 30, conv, &log)
	ai := &fakeAI{reply: "ок"}
	return &analysisFixture{
		analysis:    NewAnalysis(conv, directory, impressions, ai, "test-model", "Ти — Анна.", 50, &log),
		conv:        conv,
		directory:   directory,
		impressions: impressions,
		ai:          ai,
	}
}

func (f *analysisFixture) say(chatID, userID int64, text string) {
	f.conv.Append(chatID, model.Message{
		Timestamp: time.Now(),
		UserID:    userID,
		Username:  "olena",
		Content:   text,
	})
}

func TestSummarize(t *testing.T) {
	f := newAnalysisFixture()

	if _, err := f.analysis.Summarize(context.Background(), 1); err == nil {
		t.Error("empty chat must not be summarizable")
	}

	f.say(1, 7, "їду завтра до Львова")
	f.ai.reply = "  Олена їде до Львова.  "
	got, err := f.analysis.Summarize(context.Background(), 1)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "Олена їде до Львова." {
		t.Errorf("summary = %q", got)
	}
}

func TestGenerateImpression_NoHistoryAbandons(t *testing.T) {
	f := newAnalysisFixture()

	job := store.ImpressionJob{ChatID: 1, UserID: 7, Username: "olena"}
	if err := f.analysis.GenerateImpression(context.Background(), job); err != nil {
		t.Fatalf("GenerateImpression: %v", err)
	}
	if len(f.ai.prompts) != 0 {
		t.Error("a user with no recorded messages must not reach the model")
	}
}

func TestGenerateImpression_StoresLocallyAndGlobally(t *testing.T) {
	f := newAnalysisFixture()
	f.say(1, 7, "люблю старе кіно")
	f.directory.Observe(1, 7, "olena")
	f.ai.reply = "Вона здається спокійною і теплою."

	job := store.ImpressionJob{ChatID: 1, UserID: 7, Username: "olena"}
	if err := f.analysis.GenerateImpression(context.Background(), job); err != nil {
		t.Fatalf("GenerateImpression: %v", err)
	}

	imp, ok := f.conv.Impression(1, 7)
	if !ok || imp.Text != "Вона здається спокійною і теплою." {
		t.Errorf("chat impression = %+v ok=%v", imp, ok)
	}
	u, err := f.directory.User(7)
	if err != nil {
		t.Fatal(err)
	}
	if len(u.Impressions) != 1 || u.Impressions[0].Text != imp.Text {
		t.Errorf("global impression history = %+v", u.Impressions)
	}
}

func TestGenerateImpression_ModelError(t *testing.T) {
	f := newAnalysisFixture()
	f.say(1, 7, "привіт")
	f.ai.err = errors.New("down")

	job := store.ImpressionJob{ChatID: 1, UserID: 7, Username: "olena"}
	if err := f.analysis.GenerateImpression(context.Background(), job); err == nil {
		t.Error("model failure must surface as an error")
	}
	if _, ok := f.conv.Impression(1, 7); ok {
		t.Error("failed generation must not store an impression")
	}
}

func TestGenerateProfile_SavesParsedJSON(t *testing.T) {
	f := newAnalysisFixture()
	f.directory.Observe(1, 7, "olena")
	f.ai.reply = "```json\n{\"personality\": \"весела\", \"interests\": [\"кіно\", \"кава\"], " +
		"\"behavior_patterns\": [\"пише вночі\"], \"relationship_with_bot\": \"friendly\"}\n```"

	if err := f.analysis.GenerateProfile(context.Background(), 7); err != nil {
		t.Fatalf("GenerateProfile: %v", err)
	}
	u, err := f.directory.User(7)
	if err != nil {
		t.Fatal(err)
	}
	if u.Profile.Personality != "весела" {
		t.Errorf("personality = %q", u.Profile.Personality)
	}
	if len(u.Profile.Interests) != 2 || u.Profile.Interests[0] != "кіно" {
		t.Errorf("interests = %v", u.Profile.Interests)
	}
	if u.Profile.RelationshipWithBot != "friendly" {
		t.Errorf("relationship = %q", u.Profile.RelationshipWithBot)
	}
}

func TestGenerateProfile_UnknownUser(t *testing.T) {
	f := newAnalysisFixture()
	if err := f.analysis.GenerateProfile(context.Background(), 99); err == nil {
		t.Error("unknown user must error before reaching the model")
	}
}

func TestGenerateRelationships_SingleUserSkipsModel(t *testing.T) {
	f := newAnalysisFixture()
	f.directory.Observe(1, 7, "olena")

	if err := f.analysis.GenerateRelationships(context.Background(), 1); err != nil {
		t.Fatalf("GenerateRelationships: %v", err)
	}
	if len(f.ai.prompts) != 0 {
		t.Error("one-user chats have nothing to analyze")
	}
}

func TestGenerateRelationships_UnparseableClearsDueFlag(t *testing.T) {
	f := newAnalysisFixture()
	f.ai.reply = "цілковита нісенітниця"
	for i := 0; i < 40; i++ {
		if i%2 == 0 {
			f.directory.Observe(1, 7, "olena")
		} else {
			f.directory.Observe(1, 8, "taras")
		}
	}
	if due := f.directory.ChatsNeedingRelationshipUpdate(); len(due) != 1 {
		t.Fatalf("due chats = %v, want [1]", due)
	}

	if err := f.analysis.GenerateRelationships(context.Background(), 1); err != nil {
		t.Fatalf("GenerateRelationships: %v", err)
	}
	if due := f.directory.ChatsNeedingRelationshipUpdate(); len(due) != 0 {
		t.Errorf("unparseable output must still clear the due flag, got %v", due)
	}
	if rels := f.directory.Relationships(1); len(rels) != 0 {
		t.Errorf("stored relationships = %+v, want none", rels)
	}
}

func TestStripFences(t *testing.T) {
	cases := []struct{ in, want string }{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n[1,2]\n```", "[1,2]"},
		{"  {\"a\":1}  ", "{\"a\":1}"},
	}
	for _, tc := range cases {
		if got := stripFences(tc.in); got != tc.want {
			t.Errorf("stripFences(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseProfile_BackfillsFromPrevious(t *testing.T) {
	prev := model.Profile{
		Personality:         "стримана",
		Interests:           []string{"книги"},
		RelationshipWithBot: "formal",
	}

	p := parseProfile(`{"personality": "відкрита"}`, prev)
	if p.Personality != "відкрита" {
		t.Errorf("personality = %q", p.Personality)
	}
	if len(p.Interests) != 1 || p.Interests[0] != "книги" {
		t.Errorf("interests must backfill, got %v", p.Interests)
	}
	if p.RelationshipWithBot != "formal" {
		t.Errorf("relationship must backfill, got %q", p.RelationshipWithBot)
	}

	p = parseProfile("{}", model.Profile{})
	if p.RelationshipWithBot != "neutral" {
		t.Errorf("relationship must default to neutral, got %q", p.RelationshipWithBot)
	}
}

func TestParseProfile_MinesProseLines(t *testing.T) {
	text := "Personality: дружня і балакуча\nInterests: музика, подорожі\nRelationship_with_bot: friendly"
	p := parseProfile(text, model.Profile{})
	if p.Personality != "дружня і балакуча" {
		t.Errorf("personality = %q", p.Personality)
	}
	if len(p.Interests) != 2 || p.Interests[1] != "подорожі" {
		t.Errorf("interests = %v", p.Interests)
	}
	if p.RelationshipWithBot != "friendly" {
		t.Errorf("relationship = %q", p.RelationshipWithBot)
	}
}

func TestParseRelationships(t *testing.T) {
	users := []*model.GlobalUserRecord{{UserID: 7}, {UserID: 8}}

	rels := parseRelationships(`[{"user_ids": [7, 8], "relationship_type": "friends", "description": "жартують разом"}]`, users)
	if len(rels) != 1 || rels[0].Type != "friends" || !rels[0].Mentions(8) {
		t.Errorf("rels = %+v", rels)
	}

	prose := parseRelationships("The users in this chat seem to have a warm relationship overall.", users)
	if len(prose) != 1 || prose[0].Type != "group" || len(prose[0].UserIDs) != 2 {
		t.Errorf("prose fallback = %+v", prose)
	}

	if got := parseRelationships("цілковита нісенітниця", users); got != nil {
		t.Errorf("unparseable text must yield nothing, got %+v", got)
	}
}

func TestProcessPending_DrainsImpressions(t *testing.T) {
	f := newAnalysisFixture()
	f.directory.Observe(1, 7, "olena")
	for i := 0; i < 10; i++ {
		f.say(1, 7, "повідомлення")
		f.impressions.MaybeSchedule(1, 7, "olena")
	}
	if len(f.impressions.Pending()) != 1 {
		t.Fatalf("pending = %d, want 1", len(f.impressions.Pending()))
	}

	done := f.analysis.ProcessPending(context.Background(), 5, 5)
	if done == 0 {
		t.Error("pending impression must be processed")
	}
	if len(f.impressions.Pending()) != 0 {
		t.Error("queue must drain")
	}
	if _, ok := f.conv.Impression(1, 7); !ok {
		t.Error("processed impression must be stored")
	}
}
