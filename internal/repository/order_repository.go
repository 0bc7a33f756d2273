package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gemcart/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// orderRepository implements OrderRepository using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// BeginTx starts a new database transaction.
func (r *orderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// Create inserts the order, its line items and the initial history entry.
func (r *orderRepository) Create(ctx context.Context, q Querier, order *model.Order) error {
	giftWrap, err := json.Marshal(order.GiftWrap)
	if err != nil {
		return fmt.Errorf("failed to encode gift wrap: %w", err)
	}

	orderQuery := `
		INSERT INTO orders (
			id, invoice, user_id,
			sub_total, shipping_cost, discount, bundle_discount, gift_wrap_fee, total_amount,
			gift_wrap, payment_method, payment_intent_id, status,
			card_info, payment_intent, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err = q.Exec(ctx, orderQuery,
		order.ID, order.Invoice, order.UserID,
		order.SubTotal, order.ShippingCost, order.Discount, order.BundleDiscount, order.GiftWrapFee, order.TotalAmount,
		giftWrap, order.PaymentMethod, order.PaymentIntentID, order.Status,
		[]byte(order.CardInfo), []byte(order.PaymentIntent), order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, line_no, product_id, quantity, unit_price, product_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	batch := &pgx.Batch{}
	for i, item := range order.Cart {
		batch.Queue(itemQuery, item.ID, item.OrderID, i, item.ProductID, item.Quantity, item.UnitPrice, item.ProductType)
	}
	for _, entry := range order.StatusHistory {
		batch.Queue(
			`INSERT INTO order_status_history (order_id, status, source, occurred_at) VALUES ($1, $2, $3, $4)`,
			order.ID, entry.Status, entry.Source, entry.OccurredAt,
		)
	}

	results := q.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			r.logger.Error().
				Err(err).
				Str("order_id", order.ID.String()).
				Msg("failed to create order line items")
			return fmt.Errorf("failed to create order line items: %w", err)
		}
	}

	r.logger.Debug().
		Str("order_id", order.ID.String()).
		Int64("invoice", order.Invoice).
		Int("item_count", len(order.Cart)).
		Msg("order created successfully")

	return nil
}

// GetByID retrieves an order with its line items and status history.
func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	orderQuery := `
		SELECT id, invoice, user_id,
		       sub_total, shipping_cost, discount, bundle_discount, gift_wrap_fee, total_amount,
		       gift_wrap, payment_method, payment_intent_id, status,
		       card_info, payment_intent, refund_details, chargeback_details,
		       created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	var order model.Order
	var giftWrap, cardInfo, paymentIntent, refundDetails, chargebackDetails []byte
	err := r.pool.QueryRow(ctx, orderQuery, id).Scan(
		&order.ID, &order.Invoice, &order.UserID,
		&order.SubTotal, &order.ShippingCost, &order.Discount, &order.BundleDiscount, &order.GiftWrapFee, &order.TotalAmount,
		&giftWrap, &order.PaymentMethod, &order.PaymentIntentID, &order.Status,
		&cardInfo, &paymentIntent, &refundDetails, &chargebackDetails,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("order_id", id.String()).Msg("order not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	if err := json.Unmarshal(giftWrap, &order.GiftWrap); err != nil {
		return nil, fmt.Errorf("failed to decode gift wrap: %w", err)
	}
	order.CardInfo = cardInfo
	order.PaymentIntent = paymentIntent
	if refundDetails != nil {
		order.RefundDetails = &model.RefundDetails{}
		if err := json.Unmarshal(refundDetails, order.RefundDetails); err != nil {
			return nil, fmt.Errorf("failed to decode refund details: %w", err)
		}
	}
	if chargebackDetails != nil {
		order.ChargebackDetails = &model.ChargebackDetails{}
		if err := json.Unmarshal(chargebackDetails, order.ChargebackDetails); err != nil {
			return nil, fmt.Errorf("failed to decode chargeback details: %w", err)
		}
	}

	if err := r.loadItems(ctx, &order); err != nil {
		return nil, err
	}
	if err := r.loadHistory(ctx, &order); err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepository) loadItems(ctx context.Context, order *model.Order) error {
	query := `
		SELECT id, order_id, product_id, quantity, unit_price, product_type
		FROM order_items
		WHERE order_id = $1
		ORDER BY line_no
	`

	rows, err := r.pool.Query(ctx, query, order.ID)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to query order items")
		return fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.OrderItem
		err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.ProductType)
		if err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		order.Cart = append(order.Cart, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating order items: %w", err)
	}
	return nil
}

func (r *orderRepository) loadHistory(ctx context.Context, order *model.Order) error {
	query := `
		SELECT status, source, occurred_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, order.ID)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to query status history")
		return fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry model.StatusEntry
		if err := rows.Scan(&entry.Status, &entry.Source, &entry.OccurredAt); err != nil {
			return fmt.Errorf("failed to scan status history entry: %w", err)
		}
		order.StatusHistory = append(order.StatusHistory, entry)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating status history: %w", err)
	}
	return nil
}

// UpdateStatusByID applies a guarded status transition and pushes the history
// entry atomically.
func (r *orderRepository) UpdateStatusByID(ctx context.Context, id uuid.UUID, status model.OrderStatus, source model.StatusSource) (bool, error) {
	return r.transition(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1 AND status <> $2 RETURNING id`,
		id, status, source)
}

// UpdateStatusByIntent applies a guarded status transition keyed by the
// payment intent id.
func (r *orderRepository) UpdateStatusByIntent(ctx context.Context, intentID string, status model.OrderStatus, source model.StatusSource) (bool, error) {
	return r.transition(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE payment_intent_id = $1 AND status <> $2 RETURNING id`,
		intentID, status, source)
}

// transition runs the conditional status update and, when a row matched,
// appends the matching history entry in the same transaction. The
// status-differs guard is what makes webhook redelivery a no-op: a replayed
// event matches no row and pushes no duplicate history.
func (r *orderRepository) transition(ctx context.Context, updateQuery string, key any, status model.OrderStatus, source model.StatusSource) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin status transition")
		return false, fmt.Errorf("failed to begin status transition: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var orderID uuid.UUID
	err = tx.QueryRow(ctx, updateQuery, key, status).Scan(&orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		r.logger.Error().Err(err).Str("status", string(status)).Msg("failed to update order status")
		return false, fmt.Errorf("failed to update order status: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO order_status_history (order_id, status, source) VALUES ($1, $2, $3)`,
		orderID, status, source,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to push status history")
		return false, fmt.Errorf("failed to push status history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit status transition: %w", err)
	}

	r.logger.Info().
		Str("order_id", orderID.String()).
		Str("status", string(status)).
		Str("source", string(source)).
		Msg("order status updated")

	return true, nil
}

// SetRefundDetails replaces the refund snapshot without touching status or
// history.
func (r *orderRepository) SetRefundDetails(ctx context.Context, intentID string, details *model.RefundDetails) error {
	return r.setDetails(ctx, "refund_details", intentID, details)
}

// SetChargebackDetails replaces the chargeback snapshot without touching
// status or history.
func (r *orderRepository) SetChargebackDetails(ctx context.Context, intentID string, details *model.ChargebackDetails) error {
	return r.setDetails(ctx, "chargeback_details", intentID, details)
}

func (r *orderRepository) setDetails(ctx context.Context, column, intentID string, details any) error {
	encoded, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", column, err)
	}

	query := fmt.Sprintf(
		`UPDATE orders SET %s = $2, updated_at = NOW() WHERE payment_intent_id = $1`,
		column,
	)

	tag, err := r.pool.Exec(ctx, query, intentID, encoded)
	if err != nil {
		r.logger.Error().Err(err).Str("intent_id", intentID).Msg("failed to update payment details")
		return fmt.Errorf("failed to update %s: %w", column, err)
	}

	if tag.RowsAffected() == 0 {
		r.logger.Debug().Str("intent_id", intentID).Msg("no order for payment intent, details dropped")
	}

	return nil
}
