package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"gemcart/internal/payment"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestWebhookHandler_Handle(t *testing.T) {
	logger := zerolog.Nop()

	payload := []byte(`{"id": "evt_1", "type": "payment_intent.succeeded"}`)
	event := &payment.Event{
		ID:   "evt_1",
		Type: "payment_intent.succeeded",
		Data: json.RawMessage(`{"id": "pi_123"}`),
	}

	t.Run("verified event is processed", func(t *testing.T) {
		mockVerifier := new(MockEventVerifier)
		mockService := new(MockWebhookService)
		h := NewWebhookHandler(mockService, mockVerifier, logger)

		mockVerifier.On("VerifyEvent", payload, "t=1,v1=sig").Return(event, nil)
		mockService.On("Process", mock.Anything, event).Return(nil)

		req := httptest.NewRequest(http.MethodPost, "/order/stripe-webhook", bytes.NewReader(payload))
		req.Header.Set("Stripe-Signature", "t=1,v1=sig")
		rec := httptest.NewRecorder()

		h.Handle(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"received": true}`, rec.Body.String())
		mockVerifier.AssertExpectations(t)
		mockService.AssertExpectations(t)
	})

	t.Run("bad signature is rejected", func(t *testing.T) {
		mockVerifier := new(MockEventVerifier)
		mockService := new(MockWebhookService)
		h := NewWebhookHandler(mockService, mockVerifier, logger)

		mockVerifier.On("VerifyEvent", payload, "bad").Return(nil, errors.New("signature mismatch"))

		req := httptest.NewRequest(http.MethodPost, "/order/stripe-webhook", bytes.NewReader(payload))
		req.Header.Set("Stripe-Signature", "bad")
		rec := httptest.NewRecorder()

		h.Handle(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockService.AssertNotCalled(t, "Process")
	})

	t.Run("processing failure still acknowledges", func(t *testing.T) {
		mockVerifier := new(MockEventVerifier)
		mockService := new(MockWebhookService)
		h := NewWebhookHandler(mockService, mockVerifier, logger)

		mockVerifier.On("VerifyEvent", payload, "t=1,v1=sig").Return(event, nil)
		mockService.On("Process", mock.Anything, event).Return(errors.New("database error"))

		req := httptest.NewRequest(http.MethodPost, "/order/stripe-webhook", bytes.NewReader(payload))
		req.Header.Set("Stripe-Signature", "t=1,v1=sig")
		rec := httptest.NewRecorder()

		h.Handle(rec, req)

		// A non-retryable failure must not trigger provider redelivery.
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"received": true}`, rec.Body.String())
	})
}
