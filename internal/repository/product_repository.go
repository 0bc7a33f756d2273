package repository

import (
	"context"
	"fmt"

	"gemcart/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// productRepository implements ProductRepository using PostgreSQL.
type productRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool *pgxpool.Pool, logger zerolog.Logger) ProductRepository {
	return &productRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "product").Logger(),
	}
}

// GetPurchasable retrieves the requested products, excluding discontinued ones.
func (r *productRepository) GetPurchasable(ctx context.Context, ids []string) ([]model.Product, error) {
	if len(ids) == 0 {
		return []model.Product{}, nil
	}

	query := `
		SELECT id, name, price, product_type, quantity, status, sell_count, created_at
		FROM products
		WHERE id = ANY($1) AND status <> 'discontinued'
	`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		r.logger.Error().Err(err).Int("count", len(ids)).Msg("failed to query purchasable products")
		return nil, fmt.Errorf("failed to query purchasable products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.ProductType, &p.Quantity, &p.Status, &p.SellCount, &p.CreatedAt)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan product row")
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating product rows")
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// Reserve applies the guarded conditional decrement that makes concurrent
// checkouts safe: two orders racing on a product's last units see one success
// and one ErrOutOfStock, never both succeeding.
func (r *productRepository) Reserve(ctx context.Context, q Querier, productID string, quantity int) error {
	query := `
		UPDATE products
		SET quantity = quantity - $2,
		    sell_count = sell_count + $2,
		    status = CASE WHEN quantity - $2 = 0 THEN 'out-of-stock' ELSE status END
		WHERE id = $1 AND quantity >= $2 AND status <> 'discontinued'
	`

	tag, err := q.Exec(ctx, query, productID, quantity)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("product_id", productID).
			Int("quantity", quantity).
			Msg("failed to reserve stock")
		return fmt.Errorf("failed to reserve stock: %w", err)
	}

	if tag.RowsAffected() == 0 {
		r.logger.Warn().
			Str("product_id", productID).
			Int("quantity", quantity).
			Msg("stock reservation guard failed")
		return model.ErrOutOfStock
	}

	r.logger.Debug().
		Str("product_id", productID).
		Int("quantity", quantity).
		Msg("stock reserved")

	return nil
}

// Release reverses a reservation applied outside a transaction. Runs against
// the pool because the failed attempt's connection state is unknown.
func (r *productRepository) Release(ctx context.Context, productID string, quantity int) error {
	query := `
		UPDATE products
		SET quantity = quantity + $2,
		    sell_count = GREATEST(sell_count - $2, 0),
		    status = CASE WHEN status = 'out-of-stock' THEN 'in-stock' ELSE status END
		WHERE id = $1 AND status <> 'discontinued'
	`

	tag, err := r.pool.Exec(ctx, query, productID, quantity)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("product_id", productID).
			Int("quantity", quantity).
			Msg("failed to release stock")
		return fmt.Errorf("failed to release stock: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to release stock: product %s not found", productID)
	}

	r.logger.Info().
		Str("product_id", productID).
		Int("quantity", quantity).
		Msg("stock reservation released")

	return nil
}
