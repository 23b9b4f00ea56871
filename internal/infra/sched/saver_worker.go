package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-companion-bot/internal/infra/metrics"
	"telegram-companion-bot/internal/infra/storage"
	"telegram-companion-bot/internal/store"
)

// SaverWorker flushes dirty in-memory state to disk on a fixed interval
// and once more on shutdown. Stores are only marked clean after the file
// hit disk, so a failed save retries next tick.
type SaverWorker struct {
	interval time.Duration

	conv        *store.ConversationStore
	sessions    *store.SessionTracker
	impressions *store.ImpressionEngine
	summaries   *store.SummaryCache
	directory   *store.GlobalDirectory

	chatFile   *storage.JSONFile
	globalFile *storage.JSONFile

	log zerolog.Logger
}

func NewSaverWorker(interval time.Duration,
	conv *store.ConversationStore, sessions *store.SessionTracker,
	impressions *store.ImpressionEngine, summaries *store.SummaryCache,
	directory *store.GlobalDirectory,
	chatFile, globalFile *storage.JSONFile, logger *zerolog.Logger) *SaverWorker {
	return &SaverWorker{
		interval:    interval,
		conv:        conv,
		sessions:    sessions,
		impressions: impressions,
		summaries:   summaries,
		directory:   directory,
		chatFile:    chatFile,
		globalFile:  globalFile,
		log:         logger.With().Str("component", "SaverWorker").Logger(),
	}
}

func (w *SaverWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting saver worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("final flush before shutdown")
			w.Flush()
			return ctx.Err()
		case <-ticker.C:
			w.Flush()
		}
	}
}

// Flush writes each document iff something in it changed since the last
// confirmed save.
func (w *SaverWorker) Flush() {
	if w.conv.Dirty() || w.sessions.Dirty() || w.impressions.Dirty() || w.summaries.Dirty() {
		w.saveChatDocument()
	}
	if w.directory.Dirty() {
		w.saveGlobalDocument()
	}
}

func (w *SaverWorker) saveChatDocument() {
	doc, gens := store.SnapshotChatDocument(w.conv, w.sessions, w.impressions, w.summaries)
	start := time.Now()
	err := w.chatFile.Save(doc)
	metrics.DocumentSaved("chat", int(time.Since(start).Milliseconds()), err == nil)
	if err != nil {
		w.log.Error().Err(err).Msg("chat document save failed")
		return
	}
	w.conv.MarkSaved(gens.Conversations)
	w.sessions.MarkSaved(gens.Sessions)
	w.impressions.MarkSaved(gens.Impressions)
	w.summaries.MarkSaved(gens.Summaries)
	w.log.Debug().Int("chats", len(doc.Conversations)).Msg("chat document saved")
}

func (w *SaverWorker) saveGlobalDocument() {
	doc, gen := store.SnapshotGlobalDocument(w.directory)
	start := time.Now()
	err := w.globalFile.Save(doc)
	metrics.DocumentSaved("global", int(time.Since(start).Milliseconds()), err == nil)
	if err != nil {
		w.log.Error().Err(err).Msg("global document save failed")
		return
	}
	w.directory.MarkSaved(gen)
	w.log.Debug().Int("users", len(doc.Users)).Msg("global document saved")
}
