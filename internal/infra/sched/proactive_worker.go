package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-companion-bot/internal/usecase"
)

// ProactiveWorker drives the proactive messenger on its check interval.
type ProactiveWorker struct {
	interval  time.Duration
	proactive *usecase.Proactive
	log       zerolog.Logger
}

func NewProactiveWorker(interval time.Duration, proactive *usecase.Proactive, logger *zerolog.Logger) *ProactiveWorker {
	return &ProactiveWorker{
		interval:  interval,
		proactive: proactive,
		log:       logger.With().Str("component", "ProactiveWorker").Logger(),
	}
}

func (w *ProactiveWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting proactive worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping proactive worker")
			return ctx.Err()
		case <-ticker.C:
			w.proactive.Tick(ctx)
		}
	}
}
