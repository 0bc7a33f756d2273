package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gemcart/internal/model"
	"gemcart/internal/payment"
	"gemcart/internal/repository"

	"github.com/rs/zerolog"
)

// webhookService implements WebhookService.
type webhookService struct {
	orderRepo repository.OrderRepository
	provider  payment.Provider
	logger    zerolog.Logger
}

// NewWebhookService creates the payment webhook reconciler.
func NewWebhookService(orderRepo repository.OrderRepository, provider payment.Provider, logger zerolog.Logger) WebhookService {
	return &webhookService{
		orderRepo: orderRepo,
		provider:  provider,
		logger:    logger.With().Str("service", "webhook").Logger(),
	}
}

// intentEvent is the slice of a payment_intent payload the reconciler needs.
type intentEvent struct {
	ID string `json:"id"`
}

// refundEvent covers refund.created / refund.updated payloads.
type refundEvent struct {
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
	Charge        string `json:"charge"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Reason        string `json:"reason"`
	Status        string `json:"status"`
	Created       int64  `json:"created"`
}

// chargeEvent covers charge.refunded payloads.
type chargeEvent struct {
	ID             string `json:"id"`
	PaymentIntent  string `json:"payment_intent"`
	Refunded       bool   `json:"refunded"`
	AmountRefunded int64  `json:"amount_refunded"`
	Currency       string `json:"currency"`
	Created        int64  `json:"created"`
}

// disputeEvent covers charge.dispute.* payloads.
type disputeEvent struct {
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
	Charge        string `json:"charge"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Reason        string `json:"reason"`
	Status        string `json:"status"`
	Created       int64  `json:"created"`
}

// Process applies one provider event to order state.
func (s *webhookService) Process(ctx context.Context, event *payment.Event) error {
	s.logger.Debug().Str("event_id", event.ID).Str("type", event.Type).Msg("processing provider event")

	switch event.Type {
	case "payment_intent.succeeded":
		return s.applyIntentTransition(ctx, event, model.StatusProcessing)
	case "payment_intent.payment_failed":
		return s.applyIntentTransition(ctx, event, model.StatusCancel)
	case "refund.created", "refund.updated":
		return s.applyRefund(ctx, event)
	case "charge.refunded":
		return s.applyChargeRefund(ctx, event)
	case "charge.dispute.created", "charge.dispute.updated", "charge.dispute.closed":
		return s.applyDispute(ctx, event)
	default:
		s.logger.Debug().Str("type", event.Type).Msg("ignoring unhandled event type")
		return nil
	}
}

func (s *webhookService) applyIntentTransition(ctx context.Context, event *payment.Event, target model.OrderStatus) error {
	var data intentEvent
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("failed to decode payment intent event: %w", err)
	}
	if data.ID == "" {
		s.logger.Warn().Str("event_id", event.ID).Msg("payment intent event without intent id, dropped")
		return nil
	}

	matched, err := s.orderRepo.UpdateStatusByIntent(ctx, data.ID, target, model.SourceStripe)
	if err != nil {
		return err
	}
	if !matched {
		// Redelivered event or an intent this store never saw; either way
		// there is nothing to do.
		s.logger.Debug().
			Str("intent_id", data.ID).
			Str("status", string(target)).
			Msg("intent event matched no order in a different status")
	}
	return nil
}

func (s *webhookService) applyRefund(ctx context.Context, event *payment.Event) error {
	var data refundEvent
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("failed to decode refund event: %w", err)
	}

	intentID, err := s.resolveIntentID(ctx, data.PaymentIntent, data.Charge)
	if err != nil {
		return err
	}
	if intentID == "" {
		s.logger.Debug().Str("event_id", event.ID).Msg("refund event without resolvable intent, dropped")
		return nil
	}

	details := &model.RefundDetails{
		RefundID:   data.ID,
		Amount:     data.Amount,
		Currency:   data.Currency,
		Reason:     data.Reason,
		Status:     data.Status,
		OccurredAt: eventTime(data.Created),
	}

	// Only a succeeded refund moves the order; other refund states just
	// capture the snapshot.
	if data.Status == "succeeded" {
		if _, err := s.orderRepo.UpdateStatusByIntent(ctx, intentID, model.StatusRefunded, model.SourceStripe); err != nil {
			return err
		}
	}
	return s.orderRepo.SetRefundDetails(ctx, intentID, details)
}

func (s *webhookService) applyChargeRefund(ctx context.Context, event *payment.Event) error {
	var data chargeEvent
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("failed to decode charge event: %w", err)
	}
	if data.PaymentIntent == "" {
		s.logger.Debug().Str("event_id", event.ID).Msg("charge event without intent, dropped")
		return nil
	}

	details := &model.RefundDetails{
		RefundID:   data.ID,
		Amount:     data.AmountRefunded,
		Currency:   data.Currency,
		Status:     "succeeded",
		OccurredAt: eventTime(data.Created),
	}

	if data.Refunded {
		if _, err := s.orderRepo.UpdateStatusByIntent(ctx, data.PaymentIntent, model.StatusRefunded, model.SourceStripe); err != nil {
			return err
		}
	}
	return s.orderRepo.SetRefundDetails(ctx, data.PaymentIntent, details)
}

func (s *webhookService) applyDispute(ctx context.Context, event *payment.Event) error {
	var data disputeEvent
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("failed to decode dispute event: %w", err)
	}

	intentID, err := s.resolveIntentID(ctx, data.PaymentIntent, data.Charge)
	if err != nil {
		return err
	}
	if intentID == "" {
		s.logger.Debug().Str("event_id", event.ID).Msg("dispute event without resolvable intent, dropped")
		return nil
	}

	details := &model.ChargebackDetails{
		DisputeID:  data.ID,
		ChargeID:   data.Charge,
		Amount:     data.Amount,
		Currency:   data.Currency,
		Reason:     data.Reason,
		Status:     data.Status,
		Resolved:   data.Status == "won" || data.Status == "lost",
		OccurredAt: eventTime(data.Created),
	}

	if _, err := s.orderRepo.UpdateStatusByIntent(ctx, intentID, model.StatusChargeback, model.SourceStripe); err != nil {
		return err
	}
	return s.orderRepo.SetChargebackDetails(ctx, intentID, details)
}

// resolveIntentID returns the event's intent id directly, or resolves it
// through the charge when the event only carries a charge reference.
func (s *webhookService) resolveIntentID(ctx context.Context, intentID, chargeID string) (string, error) {
	if intentID != "" {
		return intentID, nil
	}
	if chargeID == "" {
		return "", nil
	}

	resolved, err := s.provider.ChargeIntentID(ctx, chargeID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve charge %s: %w", chargeID, err)
	}
	return resolved, nil
}

func eventTime(created int64) time.Time {
	if created > 0 {
		return time.Unix(created, 0).UTC()
	}
	return time.Now().UTC()
}
