package usecase

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"telegram-companion-bot/internal/domain/model"
	"telegram-companion-bot/internal/store"
)

// Commands handles the slash-command surface. Every handler reads or
// mutates state synchronously and returns the reply text; none of them
// call the model.
type Commands struct {
	botName string
	canned  map[string]string // configured prefix -> fixed reply

	conv        *store.ConversationStore
	sessions    *store.SessionTracker
	impressions *store.ImpressionEngine
	directory   *store.GlobalDirectory
	proactive   *Proactive
}

func NewCommands(botName string, canned map[string]string,
	conv *store.ConversationStore, sessions *store.SessionTracker,
	impressions *store.ImpressionEngine, directory *store.GlobalDirectory,
	proactive *Proactive) *Commands {
	return &Commands{
		botName:     botName,
		canned:      canned,
		conv:        conv,
		sessions:    sessions,
		impressions: impressions,
		directory:   directory,
		proactive:   proactive,
	}
}

// Handle dispatches a slash command. The second return is false when the
// text is not a command this bot recognizes.
func (c *Commands) Handle(in model.Inbound) (string, bool) {
	text := strings.TrimSpace(in.Text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	cmd, args, _ := strings.Cut(text, " ")
	// "/memory@annabot" addresses this bot explicitly in groups.
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	args = strings.TrimSpace(args)

	switch cmd {
	case "/memory":
		return c.memory(in.ChatID), true
	case "/remember":
		return c.remember(in.ChatID, in.UserID, args), true
	case "/forget":
		c.conv.ClearMemory(in.ChatID)
		return "Добре, я забула все, що пам'ятала про цю розмову.", true
	case "/impressions":
		return c.impressionsFor(in.ChatID), true
	case "/schedule":
		return c.schedule(args), true
	case "/users":
		return c.users(in.ChatID), true
	case "/whoami":
		return c.whoami(in.ChatID, in.UserID), true
	case "/help":
		return c.help(), true
	}

	for prefix, reply := range c.canned {
		if strings.HasPrefix(text, prefix) {
			return reply, true
		}
	}
	return "", false
}

func (c *Commands) memory(chatID int64) string {
	rec := c.conv.Memory(chatID)
	if rec == nil {
		return "Я поки нічого не пам'ятаю про цю розмову."
	}
	var sb strings.Builder
	sb.WriteString("Ось що я пам'ятаю:\n")
	if len(rec.UserInfo) > 0 {
		sb.WriteString("\nПро учасників:\n")
		uids := make([]int64, 0, len(rec.UserInfo))
		for uid := range rec.UserInfo {
			uids = append(uids, uid)
		}
		sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
		for _, uid := range uids {
			keys := make([]string, 0, len(rec.UserInfo[uid]))
			for k := range rec.UserInfo[uid] {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(&sb, "- %s: %s\n", k, rec.UserInfo[uid][k])
			}
		}
	}
	if len(rec.Topics) > 0 {
		sb.WriteString("\nТеми: " + strings.Join(rec.Topics, ", ") + "\n")
	}
	if len(rec.Facts) > 0 {
		sb.WriteString("\nФакти:\n")
		for _, f := range rec.Facts {
			sb.WriteString("- " + f + "\n")
		}
	}
	if len(rec.UserInfo) == 0 && len(rec.Topics) == 0 && len(rec.Facts) == 0 {
		return "Я поки нічого не пам'ятаю про цю розмову."
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (c *Commands) remember(chatID, userID int64, args string) string {
	if args == "" {
		return "Напишіть, що саме запам'ятати: /remember <текст>"
	}
	c.conv.AddFact(chatID, model.Fact{Category: model.CategoryFact, Value: args}, userID)
	return "Запам'ятала: " + args
}

func (c *Commands) impressionsFor(chatID int64) string {
	rec := c.conv.Memory(chatID)
	if rec == nil || len(rec.Impressions) == 0 {
		return "У мене ще не склалося враження про учасників цього чату."
	}
	uids := make([]int64, 0, len(rec.Impressions))
	for uid := range rec.Impressions {
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	var sb strings.Builder
	sb.WriteString("Мої враження:\n")
	for _, uid := range uids {
		imp := rec.Impressions[uid]
		if imp.Text == "" {
			continue
		}
		name := fmt.Sprintf("користувач %d", uid)
		if u, err := c.directory.User(uid); err == nil && u.Username != "" {
			name = u.Username
		}
		fmt.Fprintf(&sb, "\n%s (%s):\n%s\n", name, imp.GeneratedAt.Format("2006-01-02"), imp.Text)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (c *Commands) schedule(args string) string {
	switch strings.ToLower(args) {
	case "on":
		c.proactive.SetEnabled(true)
		return "Добре, буду іноді писати першою 😊"
	case "off":
		c.proactive.SetEnabled(false)
		return "Гаразд, писатиму тільки у відповідь."
	case "status", "":
		return c.proactive.Status()
	default:
		return "Використання: /schedule on|off|status"
	}
}

func (c *Commands) users(chatID int64) string {
	users := c.directory.ChatUsers(chatID)
	if len(users) == 0 {
		return "Я ще нікого тут не знаю."
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	var sb strings.Builder
	sb.WriteString("Кого я тут знаю:\n")
	for _, u := range users {
		count := 0
		var last time.Time
		if p, ok := u.Chats[chatID]; ok {
			count = p.MessageCount
			last = p.LastActivity
		}
		fmt.Fprintf(&sb, "- %s: %d повідомлень, востаннє %s\n", u.Username, count, last.Format("2006-01-02 15:04"))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (c *Commands) whoami(chatID, userID int64) string {
	u, err := c.directory.User(userID)
	if err != nil {
		return "Я вас поки не знаю. Напишіть щось — познайомимось!"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Що я знаю про вас, %s:\n", u.Username)
	fmt.Fprintf(&sb, "- Повідомлень від вас: %d (у %d чатах)\n", u.TotalMessages, len(u.Chats))
	if u.Profile.Personality != "" {
		fmt.Fprintf(&sb, "- Як я вас бачу: %s\n", u.Profile.Personality)
	}
	if len(u.Profile.Interests) > 0 {
		fmt.Fprintf(&sb, "- Ваші інтереси: %s\n", strings.Join(u.Profile.Interests, ", "))
	}
	if imp, ok := c.conv.Impression(chatID, userID); ok && imp.Text != "" {
		sb.WriteString("\nМоє враження про вас тут:\n" + imp.Text)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (c *Commands) help() string {
	return fmt.Sprintf(`Я %s. Зі мною можна просто розмовляти, а ще я розумію команди:
/memory — що я пам'ятаю про цю розмову
/remember <текст> — запам'ятати щось
/forget — забути все в цьому чаті
/impressions — мої враження про учасників
/whoami — що я знаю про вас
/users — кого я знаю в цьому чаті
/schedule on|off|status — чи писати мені першою
/help — ця підказка`, c.botName)
}
