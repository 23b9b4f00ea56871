package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-companion-bot/internal/infra/adapters/telegram"
	"telegram-companion-bot/internal/infra/metrics"
	"telegram-companion-bot/internal/usecase"
)

// WebhookServer receives Bot API updates over HTTP. Telegram retries
// non-200 responses, so the handler always acknowledges; processing
// errors are logged, never surfaced.
type WebhookServer struct {
	responder *usecase.Responder
	botID     int64
	server    *http.Server
	log       zerolog.Logger
}

func NewWebhookServer(port int, responder *usecase.Responder, botID int64, logger *zerolog.Logger) *WebhookServer {
	s := &WebhookServer{
		responder: responder,
		botID:     botID,
		log:       logger.With().Str("component", "WebhookServer").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Post("/webhook", s.handleWebhook)
	r.Get("/health", handleHealth)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
	return s
}

func (s *WebhookServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("webhook server listening")
	return s.server.ListenAndServe()
}

func (s *WebhookServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *WebhookServer) handleWebhook(w http.ResponseWriter, r *http.Request) {
	defer ack(w)

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.log.Warn().Err(err).Msg("undecodable update")
		return
	}
	in, ok := telegram.Normalize(update, s.botID)
	if !ok {
		return
	}
	metrics.MessageReceived(in.IsGroup)
	s.responder.HandleInbound(r.Context(), in)
}

func ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// AdminServer exposes metrics and health on a separate port.
type AdminServer struct {
	server *http.Server
	log    zerolog.Logger
}

func NewAdminServer(port int, logger *zerolog.Logger) *AdminServer {
	metrics.MustRegister()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", handleHealth)

	return &AdminServer{
		server: &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: r},
		log:    logger.With().Str("component", "AdminServer").Logger(),
	}
}

func (s *AdminServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("admin server listening")
	return s.server.ListenAndServe()
}

func (s *AdminServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
