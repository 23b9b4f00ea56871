package telegram

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rs/zerolog"

	"telegram-companion-bot/internal/infra/metrics"
	"telegram-companion-bot/internal/usecase"
)

// Poller consumes updates over long polling and feeds them to the
// responder through a small worker fan-out, for deployments without a
// public webhook URL.
type Poller struct {
	bot       *tgbotapi.BotAPI
	responder *usecase.Responder
	workers   int
	log       zerolog.Logger
}

func NewPoller(sender *Sender, responder *usecase.Responder, workers int, logger *zerolog.Logger) *Poller {
	if workers <= 0 {
		workers = 5
	}
	return &Poller{
		bot:       sender.bot,
		responder: responder,
		workers:   workers,
		log:       logger.With().Str("component", "Poller").Logger(),
	}
}

func (p *Poller) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := p.bot.GetUpdatesChan(u)

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case up, ok := <-updateChan:
					if !ok {
						return
					}
					in, ok2 := Normalize(up, p.bot.Self.ID)
					if !ok2 {
						continue
					}
					metrics.MessageReceived(in.IsGroup)
					p.responder.HandleInbound(ctx, in)
				}
			}
		}()
	}

	p.log.Info().Int("workers", p.workers).Msg("polling for updates")
	for {
		select {
		case <-ctx.Done():
			p.bot.StopReceivingUpdates()
			close(updateChan)
			wg.Wait()
			return ctx.Err()
		case up := <-updates:
			select {
			case updateChan <- up:
			default:
				p.log.Warn().Msg("update queue full, dropping")
			}
		}
	}
}
