package usecase

import (
	"testing"

	"telegram-companion-bot/internal/config"
)

func defaultTriggerConfig() config.TriggerConfig {
	return config.TriggerConfig{
		Enabled:       true,
		Keywords:      []string{"Анна", "Аню"},
		CaseSensitive: false,
		WholeWordOnly: true,
	}
}

func TestMatch_WholeWord(t *testing.T) {
	m := NewMatcher(defaultTriggerConfig())

	cases := []struct {
		text string
		want bool
	}{
		{"Аню, як справи?", true},
		{"аню привіт", true},
		{"Анна тут?", true},
		{"привіт усім", false},
		// Substring inside another word must not trigger.
		{"манюня прийшла", false},
		{"саванна велика", false},
		// Glued text counts only when the keyword opens the message.
		{"Анюпривіт", true},
		{"привітАню", false},
	}
	for _, tc := range cases {
		if got := m.Match(tc.text); got != tc.want {
			t.Errorf("Match(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestMatch_Substring(t *testing.T) {
	cfg := defaultTriggerConfig()
	cfg.WholeWordOnly = false
	m := NewMatcher(cfg)

	if !m.Match("манюня прийшла") {
		t.Error("substring mode must match a keyword inside another word")
	}
	if !m.Match("скажи Аню щось") {
		t.Error("substring mode must match a standalone keyword")
	}
	if !m.Match("привітАню") {
		t.Error("substring mode must match a keyword glued to preceding text")
	}
}

func TestMatch_MustBeAtBeginning(t *testing.T) {
	cfg := defaultTriggerConfig()
	cfg.MustBeAtBeginning = true
	m := NewMatcher(cfg)

	if !m.Match("Аню, розкажи анекдот") {
		t.Error("keyword at the beginning must match")
	}
	if m.Match("розкажи Аню анекдот") {
		t.Error("keyword mid-sentence must not match in beginning-only mode")
	}
	if !m.Match("Анюрозкажи анекдот") {
		t.Error("glued keyword at the beginning must match")
	}
}

func TestMatch_IgnoredPhrases(t *testing.T) {
	cfg := defaultTriggerConfig()
	cfg.IgnoredPhrases = []string{"не відповідай"}
	m := NewMatcher(cfg)

	if m.Match("Аню, не відповідай на це") {
		t.Error("ignored phrase must suppress the trigger")
	}
	if !m.Match("Аню, відповідай") {
		t.Error("unrelated text must still trigger")
	}
}

func TestMatch_CaseSensitive(t *testing.T) {
	cfg := defaultTriggerConfig()
	cfg.CaseSensitive = true
	m := NewMatcher(cfg)

	if !m.Match("Аню, привіт") {
		t.Error("exact case must match")
	}
	if m.Match("аню, привіт") {
		t.Error("wrong case must not match in case-sensitive mode")
	}
}

func TestMatch_Disabled(t *testing.T) {
	cfg := defaultTriggerConfig()
	cfg.Enabled = false
	m := NewMatcher(cfg)
	if m.Match("Аню, привіт") {
		t.Error("disabled matcher must never match")
	}
}

func TestMatch_PunctuationSeparates(t *testing.T) {
	m := NewMatcher(defaultTriggerConfig())
	if !m.Match("привіт,Аню!") {
		t.Error("punctuation-separated keyword must match as a whole word")
	}
}
