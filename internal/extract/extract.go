// Package extract implements the rule-based fact/topic extraction strategy
// applied to inbound messages. It is heuristic: patterns catch the
// common Ukrainian phrasings for introducing oneself, naming a topic, or
// asking the bot to remember something.
package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"telegram-companion-bot/internal/domain/model"
)

type keyedPattern struct {
	re  *regexp.Regexp
	key string
}

// RuleBased is the default Extractor. Stateless and safe for concurrent use.
type RuleBased struct {
	personal []keyedPattern
	topics   []*regexp.Regexp
	facts    []*regexp.Regexp
}

func NewRuleBased() *RuleBased {
	word := `([\p{L}'-]+)`
	phrase := `([\p{L}\p{N}\s'-]+)`
	return &RuleBased{
		personal: []keyedPattern{
			{regexp.MustCompile(`(?:мене|я) (?:звати|звуть|кличуть|називають|називаюсь) ` + word), "ім'я"},
			{regexp.MustCompile(`(?:моє|мене) (?:ім'я|звати|звуть) ` + word), "ім'я"},
			{regexp.MustCompile(`(?:мені|я маю|мій вік) (\d+) (?:рок(?:и|ів|у)|літ)`), "вік"},
			{regexp.MustCompile(`(?:я|ми) (?:живу|живемо|мешкаю|з) (?:в|у) ` + phrase), "місце"},
			{regexp.MustCompile(`(?:я|мені) (?:подобається|люблю|обожнюю) ` + phrase), "інтереси"},
			{regexp.MustCompile(`(?:моє|мені) (?:хобі|захоплення) (?:це|—|-)? ?` + phrase), "хобі"},
		},
		topics: []*regexp.Regexp{
			regexp.MustCompile(`(?:давай|можемо|хочу|цікавить|поговоримо|розкажи) про ` + phrase),
			regexp.MustCompile(`(?:мене цікавить тема|тема|питання щодо) ` + phrase),
			regexp.MustCompile(`(?:що ти думаєш про|як щодо|твоя думка про) ` + phrase),
		},
		facts: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:важливо|запам'ятай|не забудь|нагадую|важливий факт)[,:] (.*)`),
			regexp.MustCompile(`(?i)(?:запам'ятай|збережи|занотуй)[,:] (.*)`),
			regexp.MustCompile(`(?i)(?:я хочу щоб ти знала|тобі варто знати)[,:] (.*)`),
		},
	}
}

// Extract returns every fact the patterns recognize in the message text.
// Matches that are too short to be meaningful are dropped.
func (e *RuleBased) Extract(text string) []model.Fact {
	var out []model.Fact
	lower := strings.ToLower(text)

	for _, p := range e.personal {
		if m := p.re.FindStringSubmatch(lower); m != nil {
			value := strings.TrimSpace(m[1])
			if utf8.RuneCountInString(value) > 1 {
				out = append(out, model.Fact{Category: model.CategoryUserInfo, Key: p.key, Value: value})
			}
		}
	}
	for _, re := range e.topics {
		if m := re.FindStringSubmatch(lower); m != nil {
			topic := strings.TrimSpace(m[1])
			if utf8.RuneCountInString(topic) > 2 {
				out = append(out, model.Fact{Category: model.CategoryTopic, Value: topic})
			}
		}
	}
	// Fact patterns run on the original casing; the remembered text should
	// read the way the user wrote it.
	for _, re := range e.facts {
		if m := re.FindStringSubmatch(text); m != nil {
			fact := strings.TrimSpace(m[1])
			if utf8.RuneCountInString(fact) > 3 {
				out = append(out, model.Fact{Category: model.CategoryFact, Value: fact})
			}
		}
	}
	return out
}
