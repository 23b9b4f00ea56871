package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"telegram-companion-bot/internal/domain/model"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token string `yaml:"token"`
	Name  string `yaml:"name"`
	Mode  string `yaml:"mode"` // polling|webhook
	Port  int    `yaml:"port"` // webhook listener
	// Persona is the static character text prepended to every prompt.
	// PersonaFile, when set, is read at load time and overrides Persona.
	Persona     string `yaml:"persona"`
	PersonaFile string `yaml:"persona_file"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type TriggerConfig struct {
	Enabled           bool     `yaml:"enabled"`
	Keywords          []string `yaml:"keywords"`
	IgnoredPhrases    []string `yaml:"ignored_phrases"`
	CaseSensitive     bool     `yaml:"case_sensitive"`
	WholeWordOnly     bool     `yaml:"whole_word_only"`
	MustBeAtBeginning bool     `yaml:"must_be_at_beginning"`
}

type ResponseConfig struct {
	RespondToCommands       bool              `yaml:"respond_to_commands"`
	RespondInGroups         bool              `yaml:"respond_in_groups"`
	RespondToReplies        bool              `yaml:"respond_to_replies"`
	AutoJoinSessions        bool              `yaml:"auto_join_sessions"`
	AutoReplyToParticipants bool              `yaml:"auto_reply_to_participants"`
	DelaySeconds            int               `yaml:"delay_seconds"`
	FollowUpChance          float64           `yaml:"follow_up_chance"` // 0 disables follow-up remarks
	Commands                map[string]string `yaml:"commands"` // canned prefix -> reply
	FallbackText            string            `yaml:"fallback_text"`
}

type MemoryConfig struct {
	MaxMessages    int           `yaml:"max_messages"`
	ChatFile       string        `yaml:"chat_file"`
	GlobalFile     string        `yaml:"global_file"`
	FlushInterval  time.Duration `yaml:"flush_interval"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
}

type ImpressionConfig struct {
	MinMessages  int `yaml:"min_messages"`  // first generation threshold
	RefreshDelta int `yaml:"refresh_delta"` // new messages between refreshes
	SampleSize   int `yaml:"sample_size"`   // messages fed to generation
}

type SummaryConfig struct {
	Enabled                bool          `yaml:"enabled"`
	MessagesBetweenUpdates int           `yaml:"messages_between_updates"`
	TimeBetweenUpdates     time.Duration `yaml:"time_between_updates"`
}

type GlobalMemoryConfig struct {
	Thresholds     model.AnalysisThresholds `yaml:"analysis_thresholds"`
	MaxImpressions int                      `yaml:"max_impressions"`
}

type BatchConfig struct {
	Enabled bool          `yaml:"enabled"`
	Window  time.Duration `yaml:"window"`
}

type ProactiveConfig struct {
	Enabled          bool          `yaml:"enabled"`
	CheckInterval    time.Duration `yaml:"check_interval"`
	MinGap           time.Duration `yaml:"min_gap"`
	MaxGap           time.Duration `yaml:"max_gap"`
	MaxPerDay        int           `yaml:"max_per_day"`
	ActivityCooldown time.Duration `yaml:"activity_cooldown"`
	InactiveCutoff   time.Duration `yaml:"inactive_cutoff"`
}

type AIConfig struct {
	GeminiKey       string `yaml:"gemini_key"`
	GeminiURL       string `yaml:"gemini_url"`
	OpenAIKey       string `yaml:"openai_key"`
	DefaultModel    string `yaml:"default_model"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
	PromptBudget    int    `yaml:"prompt_budget"` // max prompt tokens
	ConcurrentLimit int    `yaml:"concurrent_limit"`
}

type AnalysisConfig struct {
	Interval             time.Duration `yaml:"interval"`
	MaxProfilesPerCycle  int           `yaml:"max_profiles_per_cycle"`
	MaxRelationsPerCycle int           `yaml:"max_relations_per_cycle"`
}

type AdminConfig struct {
	Port int `yaml:"port"` // metrics + health
}

type Config struct {
	Bot       BotConfig          `yaml:"bot"`
	Log       LogConfig          `yaml:"log"`
	Trigger   TriggerConfig      `yaml:"trigger"`
	Response  ResponseConfig     `yaml:"response"`
	Memory    MemoryConfig       `yaml:"memory"`
	Impress   ImpressionConfig   `yaml:"impressions"`
	Summary   SummaryConfig      `yaml:"summary"`
	Global    GlobalMemoryConfig `yaml:"global_memory"`
	Batch     BatchConfig        `yaml:"batch"`
	Proactive ProactiveConfig    `yaml:"proactive"`
	AI        AIConfig           `yaml:"ai"`
	Analysis  AnalysisConfig     `yaml:"analysis"`
	Admin     AdminConfig        `yaml:"admin"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	// Gates that default to on: yaml.Unmarshal leaves fields untouched
	// when the key is absent, so an explicit `false` still wins.
	cfg := Config{
		Trigger: TriggerConfig{Enabled: true},
		Response: ResponseConfig{
			RespondToCommands: true,
			RespondInGroups:   true,
			RespondToReplies:  true,
		},
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	if cfg.Bot.PersonaFile != "" {
		pb, err := os.ReadFile(cfg.Bot.PersonaFile)
		if err != nil {
			return nil, fmt.Errorf("read persona file: %w", err)
		}
		cfg.Bot.Persona = strings.TrimSpace(string(pb))
	}

	// Minimal validation
	if cfg.Bot.Token == "" && !dev {
		return nil, errors.New("bot.token is required")
	}
	if cfg.Bot.Persona == "" {
		return nil, errors.New("bot.persona or bot.persona_file is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Bot.Name == "" {
		cfg.Bot.Name = "Анна"
	}
	if cfg.Bot.Mode == "" {
		cfg.Bot.Mode = "polling"
	}
	if cfg.Bot.Port == 0 {
		cfg.Bot.Port = 8080
	}
	if cfg.Admin.Port == 0 {
		cfg.Admin.Port = 9090
	}
	if cfg.Memory.MaxMessages <= 0 {
		cfg.Memory.MaxMessages = 200
	}
	if cfg.Memory.ChatFile == "" {
		cfg.Memory.ChatFile = "memory.json"
	}
	if cfg.Memory.GlobalFile == "" {
		cfg.Memory.GlobalFile = "global_memory.json"
	}
	if cfg.Memory.FlushInterval <= 0 {
		cfg.Memory.FlushInterval = 45 * time.Second
	}
	if cfg.Memory.SessionTimeout <= 0 {
		cfg.Memory.SessionTimeout = 5 * time.Minute
	}
	if cfg.Impress.MinMessages <= 0 {
		cfg.Impress.MinMessages = 10
	}
	if cfg.Impress.RefreshDelta <= 0 {
		cfg.Impress.RefreshDelta = 30
	}
	if cfg.Impress.SampleSize <= 0 {
		cfg.Impress.SampleSize = 50
	}
	if cfg.Summary.MessagesBetweenUpdates <= 0 {
		cfg.Summary.MessagesBetweenUpdates = 20
	}
	if cfg.Summary.TimeBetweenUpdates <= 0 {
		cfg.Summary.TimeBetweenUpdates = time.Hour
	}
	if cfg.Global.Thresholds.UserUpdate <= 0 {
		cfg.Global.Thresholds.UserUpdate = 100
	}
	if cfg.Global.Thresholds.ChatUpdate <= 0 {
		cfg.Global.Thresholds.ChatUpdate = 100
	}
	if cfg.Global.Thresholds.RelationshipUpdate <= 0 {
		cfg.Global.Thresholds.RelationshipUpdate = 100
	}
	if cfg.Global.MaxImpressions <= 0 {
		cfg.Global.MaxImpressions = 5
	}
	if cfg.Batch.Window <= 0 {
		cfg.Batch.Window = 2 * time.Second
	}
	if cfg.Proactive.CheckInterval <= 0 {
		cfg.Proactive.CheckInterval = 15 * time.Minute
	}
	if cfg.Proactive.MinGap <= 0 {
		cfg.Proactive.MinGap = 4 * time.Hour
	}
	if cfg.Proactive.MaxGap <= cfg.Proactive.MinGap {
		cfg.Proactive.MaxGap = 12 * time.Hour
	}
	if cfg.Proactive.MaxPerDay <= 0 {
		cfg.Proactive.MaxPerDay = 3
	}
	if cfg.Proactive.ActivityCooldown <= 0 {
		cfg.Proactive.ActivityCooldown = 30 * time.Minute
	}
	if cfg.Proactive.InactiveCutoff <= 0 {
		cfg.Proactive.InactiveCutoff = 30 * 24 * time.Hour
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gemini-2.0-flash"
	}
	if cfg.AI.MaxOutputTokens <= 0 {
		cfg.AI.MaxOutputTokens = 1024
	}
	if cfg.AI.PromptBudget <= 0 {
		cfg.AI.PromptBudget = 6000
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 8
	}
	if cfg.Analysis.Interval <= 0 {
		cfg.Analysis.Interval = time.Minute
	}
	if cfg.Analysis.MaxProfilesPerCycle <= 0 {
		cfg.Analysis.MaxProfilesPerCycle = 3
	}
	if cfg.Analysis.MaxRelationsPerCycle <= 0 {
		cfg.Analysis.MaxRelationsPerCycle = 2
	}
	if cfg.Response.FallbackText == "" {
		cfg.Response.FallbackText = "Вибачте, виникла помилка при генерації відповіді."
	}
}
