package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gemcart/internal/model"
	"gemcart/internal/payment"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newWebhookTestEnv() (*MockOrderRepository, *MockProvider, WebhookService) {
	orderRepo := new(MockOrderRepository)
	provider := new(MockProvider)
	service := NewWebhookService(orderRepo, provider, zerolog.Nop())
	return orderRepo, provider, service
}

func TestWebhookService_IntentSucceeded(t *testing.T) {
	ctx := context.Background()
	orderRepo, _, service := newWebhookTestEnv()

	orderRepo.On("UpdateStatusByIntent", ctx, "pi_123", model.StatusProcessing, model.SourceStripe).Return(true, nil)

	err := service.Process(ctx, &payment.Event{
		ID:   "evt_1",
		Type: "payment_intent.succeeded",
		Data: json.RawMessage(`{"id": "pi_123", "amount": 12000}`),
	})

	require.NoError(t, err)
	orderRepo.AssertExpectations(t)
}

func TestWebhookService_IntentFailedCancelsOrder(t *testing.T) {
	ctx := context.Background()
	orderRepo, _, service := newWebhookTestEnv()

	orderRepo.On("UpdateStatusByIntent", ctx, "pi_123", model.StatusCancel, model.SourceStripe).Return(true, nil)

	err := service.Process(ctx, &payment.Event{
		ID:   "evt_2",
		Type: "payment_intent.payment_failed",
		Data: json.RawMessage(`{"id": "pi_123"}`),
	})

	require.NoError(t, err)
	orderRepo.AssertExpectations(t)
}

func TestWebhookService_RedeliveredEventIsIdempotent(t *testing.T) {
	ctx := context.Background()
	orderRepo, _, service := newWebhookTestEnv()

	// The order is already processing; the guarded transition matches no row.
	orderRepo.On("UpdateStatusByIntent", ctx, "pi_123", model.StatusProcessing, model.SourceStripe).Return(false, nil)

	err := service.Process(ctx, &payment.Event{
		ID:   "evt_1",
		Type: "payment_intent.succeeded",
		Data: json.RawMessage(`{"id": "pi_123"}`),
	})

	require.NoError(t, err)
	orderRepo.AssertExpectations(t)
}

func TestWebhookService_IntentEventWithoutIDIsDropped(t *testing.T) {
	ctx := context.Background()
	orderRepo, _, service := newWebhookTestEnv()

	err := service.Process(ctx, &payment.Event{
		ID:   "evt_3",
		Type: "payment_intent.succeeded",
		Data: json.RawMessage(`{}`),
	})

	require.NoError(t, err)
	orderRepo.AssertNotCalled(t, "UpdateStatusByIntent")
}

func TestWebhookService_UnhandledEventTypeIsIgnored(t *testing.T) {
	ctx := context.Background()
	orderRepo, _, service := newWebhookTestEnv()

	err := service.Process(ctx, &payment.Event{
		ID:   "evt_4",
		Type: "customer.created",
		Data: json.RawMessage(`{"id": "cus_1"}`),
	})

	require.NoError(t, err)
	orderRepo.AssertNotCalled(t, "UpdateStatusByIntent")
}

func TestWebhookService_SucceededRefund(t *testing.T) {
	ctx := context.Background()
	orderRepo, _, service := newWebhookTestEnv()

	orderRepo.On("UpdateStatusByIntent", ctx, "pi_123", model.StatusRefunded, model.SourceStripe).Return(true, nil)
	orderRepo.On("SetRefundDetails", ctx, "pi_123", mock.MatchedBy(func(d *model.RefundDetails) bool {
		return d.RefundID == "re_1" &&
			d.Amount == 12000 &&
			d.Currency == "usd" &&
			d.Status == "succeeded" &&
			d.OccurredAt.Equal(time.Unix(1700000000, 0).UTC())
	})).Return(nil)

	err := service.Process(ctx, &payment.Event{
		ID:   "evt_5",
		Type: "refund.created",
		Data: json.RawMessage(`{
			"id": "re_1",
			"payment_intent": "pi_123",
			"amount": 12000,
			"currency": "usd",
			"reason": "requested_by_customer",
			"status": "succeeded",
			"created": 1700000000
		}`),
	})

	require.NoError(t, err)
	orderRepo.AssertExpectations(t)
}

func TestWebhookService_PendingRefundOnlyCapturesSnapshot(t *testing.T) {
	ctx := context.Background()
	orderRepo, _, service := newWebhookTestEnv()

	orderRepo.On("SetRefundDetails", ctx, "pi_123", mock.MatchedBy(func(d *model.RefundDetails) bool {
		return d.Status == "pending"
	})).Return(nil)

	err := service.Process(ctx, &payment.Event{
		ID:   "evt_6",
		Type: "refund.updated",
		Data: json.RawMessage(`{"id": "re_1", "payment_intent": "pi_123", "amount": 12000, "status": "pending"}`),
	})

	require.NoError(t, err)
	orderRepo.AssertExpectations(t)
	orderRepo.AssertNotCalled(t, "UpdateStatusByIntent")
}

func TestWebhookService_RefundResolvesIntentThroughCharge(t *testing.T) {
	ctx := context.Background()
	orderRepo, provider, service := newWebhookTestEnv()

	provider.On("ChargeIntentID", ctx, "ch_1").Return("pi_123", nil)
	orderRepo.On("UpdateStatusByIntent", ctx, "pi_123", model.StatusRefunded, model.SourceStripe).Return(true, nil)
	orderRepo.On("SetRefundDetails", ctx, "pi_123", mock.AnythingOfType("*model.RefundDetails")).Return(nil)

	err := service.Process(ctx, &payment.Event{
		ID:   "evt_7",
		Type: "refund.created",
		Data: json.RawMessage(`{"id": "re_1", "charge": "ch_1", "amount": 5000, "status": "succeeded"}`),
	})

	require.NoError(t, err)
	provider.AssertExpectations(t)
	orderRepo.AssertExpectations(t)
}

func TestWebhookService_ChargeRefunded(t *testing.T) {
	ctx := context.Background()
	orderRepo, _, service := newWebhookTestEnv()

	orderRepo.On("UpdateStatusByIntent", ctx, "pi_123", model.StatusRefunded, model.SourceStripe).Return(true, nil)
	orderRepo.On("SetRefundDetails", ctx, "pi_123", mock.MatchedBy(func(d *model.RefundDetails) bool {
		return d.RefundID == "ch_1" && d.Amount == 12000 && d.Status == "succeeded"
	})).Return(nil)

	err := service.Process(ctx, &payment.Event{
		ID:   "evt_8",
		Type: "charge.refunded",
		Data: json.RawMessage(`{
			"id": "ch_1",
			"payment_intent": "pi_123",
			"refunded": true,
			"amount_refunded": 12000,
			"currency": "usd"
		}`),
	})

	require.NoError(t, err)
	orderRepo.AssertExpectations(t)
}

func TestWebhookService_PartialChargeRefundKeepsStatus(t *testing.T) {
	ctx := context.Background()
	orderRepo, _, service := newWebhookTestEnv()

	orderRepo.On("SetRefundDetails", ctx, "pi_123", mock.AnythingOfType("*model.RefundDetails")).Return(nil)

	err := service.Process(ctx, &payment.Event{
		ID:   "evt_9",
		Type: "charge.refunded",
		Data: json.RawMessage(`{"id": "ch_1", "payment_intent": "pi_123", "refunded": false, "amount_refunded": 3000}`),
	})

	require.NoError(t, err)
	orderRepo.AssertExpectations(t)
	orderRepo.AssertNotCalled(t, "UpdateStatusByIntent")
}

func TestWebhookService_DisputeCreated(t *testing.T) {
	ctx := context.Background()
	orderRepo, _, service := newWebhookTestEnv()

	orderRepo.On("UpdateStatusByIntent", ctx, "pi_123", model.StatusChargeback, model.SourceStripe).Return(true, nil)
	orderRepo.On("SetChargebackDetails", ctx, "pi_123", mock.MatchedBy(func(d *model.ChargebackDetails) bool {
		return d.DisputeID == "dp_1" &&
			d.ChargeID == "ch_1" &&
			d.Status == "needs_response" &&
			!d.Resolved
	})).Return(nil)

	err := service.Process(ctx, &payment.Event{
		ID:   "evt_10",
		Type: "charge.dispute.created",
		Data: json.RawMessage(`{
			"id": "dp_1",
			"payment_intent": "pi_123",
			"charge": "ch_1",
			"amount": 12000,
			"currency": "usd",
			"reason": "fraudulent",
			"status": "needs_response"
		}`),
	})

	require.NoError(t, err)
	orderRepo.AssertExpectations(t)
}

func TestWebhookService_DisputeClosedIsResolved(t *testing.T) {
	ctx := context.Background()
	orderRepo, _, service := newWebhookTestEnv()

	orderRepo.On("UpdateStatusByIntent", ctx, "pi_123", model.StatusChargeback, model.SourceStripe).Return(false, nil)
	orderRepo.On("SetChargebackDetails", ctx, "pi_123", mock.MatchedBy(func(d *model.ChargebackDetails) bool {
		return d.Status == "lost" && d.Resolved
	})).Return(nil)

	err := service.Process(ctx, &payment.Event{
		ID:   "evt_11",
		Type: "charge.dispute.closed",
		Data: json.RawMessage(`{"id": "dp_1", "payment_intent": "pi_123", "status": "lost"}`),
	})

	require.NoError(t, err)
	orderRepo.AssertExpectations(t)
}

func TestWebhookService_DisputeWithoutResolvableIntentIsDropped(t *testing.T) {
	ctx := context.Background()
	orderRepo, _, service := newWebhookTestEnv()

	err := service.Process(ctx, &payment.Event{
		ID:   "evt_12",
		Type: "charge.dispute.created",
		Data: json.RawMessage(`{"id": "dp_1", "status": "needs_response"}`),
	})

	require.NoError(t, err)
	orderRepo.AssertNotCalled(t, "UpdateStatusByIntent")
	orderRepo.AssertNotCalled(t, "SetChargebackDetails")
}

func TestWebhookService_RepositoryErrorPropagates(t *testing.T) {
	ctx := context.Background()
	orderRepo, _, service := newWebhookTestEnv()

	orderRepo.On("UpdateStatusByIntent", ctx, "pi_123", model.StatusProcessing, model.SourceStripe).
		Return(false, errors.New("database error"))

	err := service.Process(ctx, &payment.Event{
		ID:   "evt_13",
		Type: "payment_intent.succeeded",
		Data: json.RawMessage(`{"id": "pi_123"}`),
	})

	assert.Error(t, err)
}
