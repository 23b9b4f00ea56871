package usecase

import (
	"strings"
	"unicode"

	"telegram-companion-bot/internal/config"
)

// Matcher implements keyword trigger evaluation. People frequently address
// the bot without proper spacing or punctuation ("привітАню"), so matching
// also runs against the text with separators stripped.
//
// Word boundaries are computed on letters/digits directly rather than with
// regexp \b, which treats Cyrillic as non-word characters.
type Matcher struct {
	cfg      config.TriggerConfig
	keywords []string
	ignored  []string
}

func NewMatcher(cfg config.TriggerConfig) *Matcher {
	m := &Matcher{cfg: cfg}
	for _, k := range cfg.Keywords {
		if !cfg.CaseSensitive {
			k = strings.ToLower(k)
		}
		if k != "" {
			m.keywords = append(m.keywords, k)
		}
	}
	for _, p := range cfg.IgnoredPhrases {
		m.ignored = append(m.ignored, strings.ToLower(p))
	}
	return m
}

// Match reports whether the text should trigger a response based on
// keyword detection alone (command markers and reply-to-bot handling are
// the responder's concern).
func (m *Matcher) Match(text string) bool {
	if !m.cfg.Enabled || len(m.keywords) == 0 {
		return false
	}

	lower := strings.ToLower(text)
	for _, phrase := range m.ignored {
		if phrase != "" && strings.Contains(lower, phrase) {
			return false
		}
	}

	check := text
	if !m.cfg.CaseSensitive {
		check = lower
	}
	// Punctuation separates words as well as spaces do.
	check = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, check)

	words := strings.Fields(check)
	glued := strings.Join(words, "")

	for _, kw := range m.keywords {
		if m.cfg.WholeWordOnly {
			if m.cfg.MustBeAtBeginning {
				if len(words) > 0 && words[0] == kw {
					return true
				}
			} else {
				for _, w := range words {
					if w == kw {
						return true
					}
				}
			}
			// Glued-keyword handling: "Аняпривіт" still counts as the
			// keyword opening the message.
			if strings.HasPrefix(glued, kw) {
				return true
			}
		} else {
			if m.cfg.MustBeAtBeginning {
				if len(words) > 0 && strings.Contains(words[0], kw) {
					return true
				}
				if strings.HasPrefix(glued, kw) {
					return true
				}
			} else {
				if strings.Contains(check, kw) || strings.Contains(glued, kw) {
					return true
				}
			}
		}
	}
	return false
}
