package payment

import (
	"context"
	"encoding/json"
)

// Intent is the provider-neutral view of a payment intent. Amount is in
// minor units.
type Intent struct {
	ID           string          `json:"id"`
	ClientSecret string          `json:"clientSecret,omitempty"`
	Status       string          `json:"status"`
	Amount       int64           `json:"amount"`
	Currency     string          `json:"currency"`
}

// IntentSucceeded is the provider status of a completed charge authorisation.
const IntentSucceeded = "succeeded"

// Event is a signature-verified provider webhook event. Data is the raw
// object payload for the event type.
type Event struct {
	ID   string
	Type string
	Data json.RawMessage
}

// Provider is the payment processor client. It is constructed explicitly and
// injected so tests can substitute a fake.
type Provider interface {
	// CreateIntent registers a new payment intent for the given minor-unit
	// amount and returns it with the client secret populated.
	CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*Intent, error)

	// GetIntent retrieves the current provider-side state of an intent.
	GetIntent(ctx context.Context, id string) (*Intent, error)

	// ChargeIntentID resolves the payment intent a charge belongs to, for
	// events that only carry a charge id.
	ChargeIntentID(ctx context.Context, chargeID string) (string, error)

	// VerifyEvent authenticates a raw webhook payload against its signature
	// header and returns the parsed event.
	VerifyEvent(payload []byte, signatureHeader string) (*Event, error)
}
