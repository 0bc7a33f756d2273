package repository

import (
	"context"

	"gemcart/internal/checkout"
	"gemcart/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx operations shared by *pgxpool.Pool and
// pgx.Tx. Write-path methods take a Querier so the order placement
// transaction can run them either inside a transaction or, on deployments
// where transactions are unavailable, directly against the pool.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// ProductRepository defines catalogue access for order placement. Stock is
// only ever mutated through Reserve and its compensation Release.
type ProductRepository interface {
	// GetPurchasable retrieves the requested products, excluding any marked
	// discontinued. Callers compare result size against request size to
	// detect unavailable line items.
	GetPurchasable(ctx context.Context, ids []string) ([]model.Product, error)

	// Reserve atomically decrements a product's quantity and increments its
	// sell count, guarded by sufficient stock and a non-discontinued status.
	// A decrement that exhausts stock flips the product to out-of-stock.
	// Returns model.ErrOutOfStock when the guard matches no row.
	Reserve(ctx context.Context, q Querier, productID string, quantity int) error

	// Release reverses a previously applied reservation, restoring quantity
	// and sell count and reverting an out-of-stock flip.
	Release(ctx context.Context, productID string, quantity int) error
}

// OrderRepository defines order persistence and status transitions.
type OrderRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// Create inserts the order, its line items and the initial history entry.
	Create(ctx context.Context, q Querier, order *model.Order) error

	// GetByID retrieves an order with its line items and status history.
	// Returns nil without error when no order exists.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// UpdateStatusByID applies a status transition guarded by "current status
	// differs" and pushes a history entry in the same transaction. Returns
	// false when no row matched (unknown order or already in that status).
	UpdateStatusByID(ctx context.Context, id uuid.UUID, status model.OrderStatus, source model.StatusSource) (bool, error)

	// UpdateStatusByIntent is UpdateStatusByID keyed by the external payment
	// intent id.
	UpdateStatusByIntent(ctx context.Context, intentID string, status model.OrderStatus, source model.StatusSource) (bool, error)

	// SetRefundDetails replaces the refund snapshot on the order owning the
	// intent. A missing order is not an error.
	SetRefundDetails(ctx context.Context, intentID string, details *model.RefundDetails) error

	// SetChargebackDetails replaces the chargeback snapshot on the order
	// owning the intent. A missing order is not an error.
	SetChargebackDetails(ctx context.Context, intentID string, details *model.ChargebackDetails) error
}

// SettingsRepository reads the merchant's checkout policy. The policy is
// managed by the admin console; this subsystem never writes it.
type SettingsRepository interface {
	GetPolicy(ctx context.Context) (*checkout.Policy, error)
}

// InvoiceSequencer allocates strictly increasing, unique invoice numbers.
type InvoiceSequencer interface {
	// Next increments and returns the singleton counter. When q is a
	// transaction the allocation rolls back with it.
	Next(ctx context.Context, q Querier) (int64, error)
}
