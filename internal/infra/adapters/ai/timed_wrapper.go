package ai

import (
	"context"
	"time"

	"telegram-companion-bot/internal/domain/ports/adapter"
	"telegram-companion-bot/internal/infra/metrics"
)

var _ adapter.AIServiceAdapter = (*timedAI)(nil)

// timedAI records call latency per provider and model.
type timedAI struct {
	inner    adapter.AIServiceAdapter
	provider string
}

func NewTimedAI(inner adapter.AIServiceAdapter, provider string) adapter.AIServiceAdapter {
	return &timedAI{inner: inner, provider: provider}
}

func (t *timedAI) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	start := time.Now()
	text, err := t.inner.Chat(ctx, model, messages)
	metrics.ObserveAICall(t.provider, model, int(time.Since(start).Milliseconds()), err == nil)
	return text, err
}

func (t *timedAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	return t.inner.CountTokens(ctx, model, messages)
}
