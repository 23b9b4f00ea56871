package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-companion-bot/internal/domain/model"
)

// Batcher coalesces rapid-fire messages under one key into a single
// logical turn. Manual bursts key per (chat, sender); forwarded bursts key
// per chat alone, because the forwarding initiator rather than the
// original author identities drives the batch.
//
// Single-flush discipline: the goroutine that opens a batch is the one
// that flushes it, exactly once, deleting the key in the same critical
// section that takes the accumulated items. Membership check and append
// happen under the same lock (atomic check-and-set), so a message either
// joins the open batch or opens a fresh one; it can never be lost between
// a flush and a delete.
type Batcher struct {
	mu      sync.Mutex
	window  time.Duration
	batches map[string]*batch

	now func() time.Time
	log zerolog.Logger
}

type batch struct {
	items      []model.Inbound
	lastUpdate time.Time
}

func NewBatcher(window time.Duration, logger *zerolog.Logger) *Batcher {
	if window <= 0 {
		window = 2 * time.Second
	}
	return &Batcher{
		window:  window,
		batches: make(map[string]*batch),
		now:     time.Now,
		log:     logger.With().Str("component", "Batcher").Logger(),
	}
}

// BatchKey derives the coalescing key for an inbound message.
func BatchKey(in model.Inbound) string {
	if in.Forwarded() {
		return fmt.Sprintf("fwd:%d", in.ChatID)
	}
	return fmt.Sprintf("%d:%d", in.ChatID, in.UserID)
}

// Submit hands a message to the batcher. The caller that opened the batch
// blocks for the hold window (extended while messages keep arriving) and
// receives all accumulated items with owner=true; joiners return
// immediately with owner=false and must suspend further processing of
// their message. Context cancellation flushes early instead of dropping.
func (b *Batcher) Submit(ctx context.Context, key string, in model.Inbound) ([]model.Inbound, bool) {
	b.mu.Lock()
	if cur, ok := b.batches[key]; ok && b.now().Sub(cur.lastUpdate) < b.window {
		cur.items = append(cur.items, in)
		cur.lastUpdate = b.now()
		b.mu.Unlock()
		return nil, false
	}
	// Either no batch, or a stale one whose owner is about to flush it:
	// open a fresh batch this caller owns. Point the key at the new batch;
	// the old owner flushes only its own.
	mine := &batch{items: []model.Inbound{in}, lastUpdate: b.now()}
	b.batches[key] = mine
	b.mu.Unlock()

	wait := b.window
	for {
		select {
		case <-ctx.Done():
			return b.take(key, mine), true
		case <-time.After(wait):
		}

		b.mu.Lock()
		idle := b.now().Sub(mine.lastUpdate)
		if idle >= b.window {
			items := mine.items
			if b.batches[key] == mine {
				delete(b.batches, key)
			}
			b.mu.Unlock()
			return items, true
		}
		wait = b.window - idle
		b.mu.Unlock()
	}
}

// take closes the batch immediately and returns whatever accumulated.
func (b *Batcher) take(key string, mine *batch) []model.Inbound {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.batches[key] == mine {
		delete(b.batches, key)
	}
	return mine.items
}

// CombineTurn renders one or more coalesced messages into a single user
// turn. Forwarded items keep their origin marker so the model knows who
// originally wrote what.
func CombineTurn(items []model.Inbound) string {
	if len(items) == 1 && items[0].ForwardOrigin == "" {
		return items[0].Text
	}
	var parts []string
	for _, it := range items {
		if it.ForwardOrigin != "" {
			parts = append(parts, fmt.Sprintf("[Переслано від %s] %s", it.ForwardOrigin, it.Text))
		} else {
			parts = append(parts, it.Text)
		}
	}
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "\n"
		}
		out += p
	}
	return out
}
