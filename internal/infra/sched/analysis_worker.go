package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-companion-bot/internal/infra/metrics"
	"telegram-companion-bot/internal/usecase"
)

// AnalysisWorker periodically drains background analysis work:
// impressions, user profiles and relationship maps.
type AnalysisWorker struct {
	interval     time.Duration
	maxProfiles  int
	maxRelations int
	analysis     *usecase.Analysis
	log          zerolog.Logger
}

func NewAnalysisWorker(interval time.Duration, maxProfiles, maxRelations int,
	analysis *usecase.Analysis, logger *zerolog.Logger) *AnalysisWorker {
	return &AnalysisWorker{
		interval:     interval,
		maxProfiles:  maxProfiles,
		maxRelations: maxRelations,
		analysis:     analysis,
		log:          logger.With().Str("component", "AnalysisWorker").Logger(),
	}
}

func (w *AnalysisWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting analysis worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping analysis worker")
			return ctx.Err()
		case <-ticker.C:
			done := w.analysis.ProcessPending(ctx, w.maxProfiles, w.maxRelations)
			metrics.AnalysisRun(true)
			if done > 0 {
				w.log.Info().Int("completed", done).Msg("analysis cycle finished")
			}
		}
	}
}
