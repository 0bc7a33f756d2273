package payment

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

// StripeProvider implements Provider against the Stripe API.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
	logger        zerolog.Logger
}

// NewStripeProvider constructs a Stripe-backed provider with its own API
// client instance.
func NewStripeProvider(secretKey, webhookSecret string, logger zerolog.Logger) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, nil)

	return &StripeProvider{
		api:           api,
		webhookSecret: webhookSecret,
		logger:        logger.With().Str("component", "stripe-provider").Logger(),
	}
}

// CreateIntent registers a new payment intent for the given minor-unit amount.
func (p *StripeProvider) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		p.logger.Error().Err(err).Int64("amount", amount).Msg("failed to create payment intent")
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	p.logger.Debug().Str("intent_id", pi.ID).Int64("amount", pi.Amount).Msg("payment intent created")
	return intentFromStripe(pi), nil
}

// GetIntent retrieves the current state of a payment intent.
func (p *StripeProvider) GetIntent(ctx context.Context, id string) (*Intent, error) {
	pi, err := p.api.PaymentIntents.Get(id, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		p.logger.Error().Err(err).Str("intent_id", id).Msg("failed to retrieve payment intent")
		return nil, fmt.Errorf("failed to retrieve payment intent: %w", err)
	}
	return intentFromStripe(pi), nil
}

// ChargeIntentID resolves a charge to its payment intent id.
func (p *StripeProvider) ChargeIntentID(ctx context.Context, chargeID string) (string, error) {
	ch, err := p.api.Charges.Get(chargeID, &stripe.ChargeParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		p.logger.Error().Err(err).Str("charge_id", chargeID).Msg("failed to retrieve charge")
		return "", fmt.Errorf("failed to retrieve charge: %w", err)
	}
	if ch.PaymentIntent == nil {
		return "", nil
	}
	return ch.PaymentIntent.ID, nil
}

// VerifyEvent authenticates a webhook payload against the signing secret.
func (p *StripeProvider) VerifyEvent(payload []byte, signatureHeader string) (*Event, error) {
	ev, err := webhook.ConstructEvent(payload, signatureHeader, p.webhookSecret)
	if err != nil {
		p.logger.Warn().Err(err).Msg("webhook signature verification failed")
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	return &Event{
		ID:   ev.ID,
		Type: string(ev.Type),
		Data: ev.Data.Raw,
	}, nil
}

func intentFromStripe(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}
}
