package service

import (
	"context"

	"gemcart/internal/model"
	"gemcart/internal/payment"

	"github.com/google/uuid"
)

// OrderService defines operations for checkout and order management.
type OrderService interface {
	// CreatePaymentIntent prices the cart server-side and registers a
	// provider payment intent for the resulting minor-unit amount.
	CreatePaymentIntent(ctx context.Context, userID string, req *model.CheckoutRequest) (*model.PaymentIntentResponse, error)

	// PlaceOrder validates payment preconditions, reserves stock for every
	// line item and persists the order, atomically when the store supports
	// transactions.
	PlaceOrder(ctx context.Context, userID string, req *model.PlaceOrderRequest) (*model.Order, error)

	// GetByID retrieves an order with items and status history. Returns nil
	// without error when no order exists.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// UpdateStatus applies an admin status transition, appending a history
	// entry. Requesting the current status is a no-op.
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) error

	// GetPaymentDetails decrypts the stored payment snapshots for the
	// super-admin read path.
	GetPaymentDetails(ctx context.Context, id uuid.UUID) (*model.PaymentDetails, error)
}

// WebhookService reconciles asynchronous payment provider events against
// order state.
type WebhookService interface {
	// Process applies one signature-verified provider event. Unknown event
	// types and events for unknown payment intents are dropped without error.
	Process(ctx context.Context, event *payment.Event) error
}
