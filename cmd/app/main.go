package main

import (
	"context"
	"errors"
	"flag"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"telegram-companion-bot/internal/config"
	"telegram-companion-bot/internal/domain/ports/adapter"
	"telegram-companion-bot/internal/extract"
	aiAdapters "telegram-companion-bot/internal/infra/adapters/ai"
	tele "telegram-companion-bot/internal/infra/adapters/telegram"
	httpapi "telegram-companion-bot/internal/infra/http"
	"telegram-companion-bot/internal/infra/logging"
	"telegram-companion-bot/internal/infra/sched"
	"telegram-companion-bot/internal/infra/storage"
	"telegram-companion-bot/internal/infra/worker"
	"telegram-companion-bot/internal/store"
	"telegram-companion-bot/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop adapters when keys are missing)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		stdlog.Fatalf("config: %v", err)
	}

	log := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		log.Info().Msg("dev mode enabled")
	}

	// ---- Stores ----
	conv := store.NewConversationStore(cfg.Memory.MaxMessages, extract.NewRuleBased(), log)
	sessions := store.NewSessionTracker(cfg.Memory.SessionTimeout, log)
	impressions := store.NewImpressionEngine(cfg.Impress.MinMessages, cfg.Impress.RefreshDelta, conv, log)
	summaries := store.NewSummaryCache(cfg.Summary.Enabled, cfg.Summary.MessagesBetweenUpdates, cfg.Summary.TimeBetweenUpdates, conv, log)
	directory := store.NewGlobalDirectory(cfg.Global.Thresholds, cfg.Global.MaxImpressions, log)

	// ---- Persistence ----
	chatFile := storage.NewJSONFile(cfg.Memory.ChatFile, log)
	globalFile := storage.NewJSONFile(cfg.Memory.GlobalFile, log)

	// Load failures are not fatal: the bot starts with empty state and
	// overwrites the damaged file on the next save.
	var chatDoc store.ChatDocument
	if err := chatFile.Load(&chatDoc); err != nil {
		log.Warn().Err(err).Msg("chat document load failed, starting empty")
		chatDoc = store.ChatDocument{}
	}
	store.RestoreChatDocument(&chatDoc, conv, sessions, impressions, summaries)

	var globalDoc store.GlobalDocument
	if err := globalFile.Load(&globalDoc); err != nil {
		log.Warn().Err(err).Msg("global document load failed, starting empty")
		globalDoc = store.GlobalDocument{}
	}
	store.RestoreGlobalDocument(&globalDoc, directory)

	// ---- AI adapter (Gemini -> OpenAI -> noop in dev) ----
	var ai adapter.AIServiceAdapter
	switch {
	case cfg.AI.GeminiKey != "":
		g, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultModel, cfg.AI.MaxOutputTokens)
		if err != nil {
			log.Fatal().Err(err).Msg("gemini adapter")
		}
		ai = aiAdapters.NewTimedAI(g, "gemini")
		log.Info().Str("model", cfg.AI.DefaultModel).Msg("AI adapter: Gemini")
	case cfg.AI.OpenAIKey != "":
		o, err := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.DefaultModel, cfg.AI.MaxOutputTokens)
		if err != nil {
			log.Fatal().Err(err).Msg("openai adapter")
		}
		ai = aiAdapters.NewTimedAI(o, "openai")
		log.Info().Str("model", cfg.AI.DefaultModel).Msg("AI adapter: OpenAI")
	case cfg.Runtime.Dev:
		ai = aiAdapters.NewNoopAIAdapter(log)
		log.Warn().Msg("AI adapter: noop (dev mode, no provider keys)")
	default:
		log.Fatal().Msg("no AI provider configured: set ai.gemini_key or ai.openai_key")
	}
	ai = aiAdapters.NewLimitedAI(ai, cfg.AI.ConcurrentLimit)

	// ---- Telegram ----
	var sender adapter.MessageSender
	var tgSender *tele.Sender
	var botID int64
	if cfg.Bot.Token != "" {
		tgSender, err = tele.NewSender(cfg.Bot.Token)
		if err != nil {
			log.Fatal().Err(err).Msg("telegram")
		}
		sender = tgSender
		botID = tgSender.ID()
		log.Info().Str("username", tgSender.Username()).Msg("telegram connected")
	} else {
		sender = tele.NewNoopSender(log)
		log.Warn().Msg("telegram: noop sender (dev mode, no token)")
	}

	// ---- Use cases ----
	pool := worker.NewPool(4, log)
	pool.Start(ctx)
	defer pool.Stop()

	matcher := usecase.NewMatcher(cfg.Trigger)
	batcher := usecase.NewBatcher(cfg.Batch.Window, log)
	prompts := usecase.NewPromptBuilder(cfg.Bot.Persona, cfg.AI.PromptBudget, log)
	analysis := usecase.NewAnalysis(conv, directory, impressions, ai, cfg.AI.DefaultModel, cfg.Bot.Persona, cfg.Impress.SampleSize, log)
	proactive := usecase.NewProactive(cfg.Proactive, cfg.Bot.Persona, cfg.AI.DefaultModel, conv, directory, ai, sender, log)
	commands := usecase.NewCommands(cfg.Bot.Name, cfg.Response.Commands, conv, sessions, impressions, directory, proactive)
	responder := usecase.NewResponder(*cfg, conv, sessions, impressions, directory, summaries,
		batcher, matcher, prompts, commands, analysis, ai, sender, pool, log)

	// ---- Transport: webhook or long polling ----
	if strings.ToLower(cfg.Bot.Mode) == "webhook" {
		webhookSrv := httpapi.NewWebhookServer(cfg.Bot.Port, responder, botID, log)
		go func() {
			if err := webhookSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("webhook server stopped")
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			_ = webhookSrv.Shutdown(sctx)
		}()
	} else {
		if tgSender == nil {
			log.Fatal().Msg("polling mode requires bot.token")
		}
		poller := tele.NewPoller(tgSender, responder, 5, log)
		go func() {
			if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("polling stopped")
			}
		}()
	}

	// ---- Admin: metrics + health ----
	adminSrv := httpapi.NewAdminServer(cfg.Admin.Port, log)
	go func() {
		if err := adminSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("admin server stopped")
		}
	}()
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = adminSrv.Shutdown(sctx)
	}()

	// ---- Workers ----
	saver := sched.NewSaverWorker(cfg.Memory.FlushInterval, conv, sessions, impressions, summaries, directory, chatFile, globalFile, log)
	go func() { _ = saver.Run(ctx) }()

	analysisWorker := sched.NewAnalysisWorker(cfg.Analysis.Interval, cfg.Analysis.MaxProfilesPerCycle, cfg.Analysis.MaxRelationsPerCycle, analysis, log)
	go func() { _ = analysisWorker.Run(ctx) }()

	proactiveWorker := sched.NewProactiveWorker(cfg.Proactive.CheckInterval, proactive, log)
	go func() { _ = proactiveWorker.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	log.Info().Msg("shutdown requested")
	cancel()
	// Give the saver a moment to run its final flush.
	time.Sleep(200 * time.Millisecond)
	saver.Flush()
}
