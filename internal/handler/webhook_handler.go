package handler

import (
	"io"
	"net/http"

	"gemcart/internal/model"
	"gemcart/internal/payment"
	"gemcart/internal/service"

	"github.com/rs/zerolog"
)

// maxWebhookBody caps webhook payload reads.
const maxWebhookBody = 1 << 16

// WebhookHandler receives payment provider webhook deliveries.
type WebhookHandler struct {
	service  service.WebhookService
	provider payment.Provider
	logger   zerolog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(service service.WebhookService, provider payment.Provider, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		service:  service,
		provider: provider,
		logger:   logger.With().Str("handler", "webhook").Logger(),
	}
}

// Handle handles POST /api/order/stripe-webhook. Once an event passes
// signature verification the response is always 200: processing failures are
// logged, not surfaced, so a non-retryable error cannot trigger a provider
// redelivery storm.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "failed to read webhook payload", h.logger)
		return
	}

	event, err := h.provider.VerifyEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeUnauthorised, "webhook signature verification failed", h.logger)
		return
	}

	if err := h.service.Process(r.Context(), event); err != nil {
		h.logger.Error().
			Err(err).
			Str("event_id", event.ID).
			Str("type", event.Type).
			Msg("webhook event processing failed")
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
