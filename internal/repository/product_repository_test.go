package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"gemcart/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a PostgreSQL testcontainer and returns a connection pool.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	createSchema(t, pool)

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

// createSchema creates the database schema for testing, mirroring the
// migrations.
func createSchema(t *testing.T, pool *pgxpool.Pool) {
	ctx := context.Background()

	schema := `
		CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			price DECIMAL(10,2) NOT NULL CHECK (price >= 0),
			product_type TEXT NOT NULL DEFAULT '',
			quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
			status TEXT NOT NULL DEFAULT 'in-stock',
			sell_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS settings (
			id TEXT PRIMARY KEY,
			policy JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS invoice_counters (
			id TEXT PRIMARY KEY,
			seq BIGINT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS orders (
			id UUID PRIMARY KEY,
			invoice BIGINT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			sub_total DECIMAL(10,2) NOT NULL CHECK (sub_total >= 0),
			shipping_cost DECIMAL(10,2) NOT NULL CHECK (shipping_cost >= 0),
			discount DECIMAL(10,2) NOT NULL CHECK (discount >= 0),
			bundle_discount DECIMAL(10,2) NOT NULL CHECK (bundle_discount >= 0),
			gift_wrap_fee DECIMAL(10,2) NOT NULL CHECK (gift_wrap_fee >= 0),
			total_amount DECIMAL(10,2) NOT NULL CHECK (total_amount > 0),
			gift_wrap JSONB NOT NULL DEFAULT '{}',
			payment_method TEXT NOT NULL,
			payment_intent_id TEXT UNIQUE,
			status TEXT NOT NULL DEFAULT 'pending',
			card_info JSONB,
			payment_intent JSONB,
			refund_details JSONB,
			chargeback_details JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS order_items (
			id UUID PRIMARY KEY,
			order_id UUID NOT NULL REFERENCES orders(id),
			line_no INTEGER NOT NULL DEFAULT 0,
			product_id TEXT NOT NULL REFERENCES products(id),
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			unit_price DECIMAL(10,2) NOT NULL CHECK (unit_price >= 0),
			product_type TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS order_status_history (
			id BIGSERIAL PRIMARY KEY,
			order_id UUID NOT NULL REFERENCES orders(id),
			status TEXT NOT NULL,
			source TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`

	_, err := pool.Exec(ctx, schema)
	require.NoError(t, err)
}

// seedProducts inserts test products into the database.
func seedProducts(t *testing.T, pool *pgxpool.Pool, products []model.Product) {
	ctx := context.Background()

	query := `
		INSERT INTO products (id, name, price, product_type, quantity, status, sell_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, p := range products {
		_, err := pool.Exec(ctx, query, p.ID, p.Name, p.Price, p.ProductType, p.Quantity, p.Status, p.SellCount, p.CreatedAt)
		require.NoError(t, err)
	}
}

func productState(t *testing.T, pool *pgxpool.Pool, id string) model.Product {
	t.Helper()
	var p model.Product
	err := pool.QueryRow(context.Background(),
		`SELECT id, quantity, status, sell_count FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Quantity, &p.Status, &p.SellCount)
	require.NoError(t, err)
	return p
}

func TestProductRepository_GetPurchasable(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	logger := zerolog.Nop()
	repo := NewProductRepository(pool, logger)

	now := time.Now()
	seedProducts(t, pool, []model.Product{
		{ID: "P001", Name: "Silver Ring", Price: 40.00, ProductType: "ring", Quantity: 10, Status: model.ProductInStock, CreatedAt: now},
		{ID: "P002", Name: "Gold Necklace", Price: 120.00, ProductType: "necklace", Quantity: 3, Status: model.ProductInStock, CreatedAt: now},
		{ID: "P003", Name: "Old Bracelet", Price: 15.00, ProductType: "bracelet", Quantity: 0, Status: model.ProductDiscontinued, CreatedAt: now},
		{ID: "P004", Name: "Pearl Earrings", Price: 55.00, ProductType: "earrings", Quantity: 0, Status: model.ProductOutOfStock, CreatedAt: now},
	})

	tests := []struct {
		name     string
		ids      []string
		expected []string
	}{
		{
			name:     "all purchasable",
			ids:      []string{"P001", "P002"},
			expected: []string{"P001", "P002"},
		},
		{
			name:     "discontinued excluded",
			ids:      []string{"P001", "P003"},
			expected: []string{"P001"},
		},
		{
			name:     "out-of-stock still listed",
			ids:      []string{"P004"},
			expected: []string{"P004"},
		},
		{
			name:     "unknown id excluded",
			ids:      []string{"P001", "P999"},
			expected: []string{"P001"},
		},
		{
			name:     "empty id list",
			ids:      []string{},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()

			products, err := repo.GetPurchasable(ctx, tt.ids)

			require.NoError(t, err)
			got := make([]string, 0, len(products))
			for _, p := range products {
				got = append(got, p.ID)
			}
			assert.ElementsMatch(t, tt.expected, got)
		})
	}
}

func TestProductRepository_Reserve(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	logger := zerolog.Nop()
	repo := NewProductRepository(pool, logger)

	now := time.Now()
	seedProducts(t, pool, []model.Product{
		{ID: "P001", Name: "Silver Ring", Price: 40.00, Quantity: 5, Status: model.ProductInStock, CreatedAt: now},
		{ID: "P002", Name: "Gold Necklace", Price: 120.00, Quantity: 2, Status: model.ProductInStock, CreatedAt: now},
		{ID: "P003", Name: "Old Bracelet", Price: 15.00, Quantity: 10, Status: model.ProductDiscontinued, CreatedAt: now},
	})

	ctx := context.Background()

	t.Run("decrements stock and bumps sell count", func(t *testing.T) {
		err := repo.Reserve(ctx, pool, "P001", 2)

		require.NoError(t, err)
		p := productState(t, pool, "P001")
		assert.Equal(t, 3, p.Quantity)
		assert.Equal(t, 2, p.SellCount)
		assert.Equal(t, model.ProductInStock, p.Status)
	})

	t.Run("exhausting stock flips status", func(t *testing.T) {
		err := repo.Reserve(ctx, pool, "P002", 2)

		require.NoError(t, err)
		p := productState(t, pool, "P002")
		assert.Equal(t, 0, p.Quantity)
		assert.Equal(t, model.ProductOutOfStock, p.Status)
	})

	t.Run("insufficient stock", func(t *testing.T) {
		err := repo.Reserve(ctx, pool, "P001", 100)

		assert.ErrorIs(t, err, model.ErrOutOfStock)
		// Nothing changed.
		p := productState(t, pool, "P001")
		assert.Equal(t, 3, p.Quantity)
	})

	t.Run("discontinued product", func(t *testing.T) {
		err := repo.Reserve(ctx, pool, "P003", 1)

		assert.ErrorIs(t, err, model.ErrOutOfStock)
	})

	t.Run("unknown product", func(t *testing.T) {
		err := repo.Reserve(ctx, pool, "P999", 1)

		assert.ErrorIs(t, err, model.ErrOutOfStock)
	})
}

func TestProductRepository_Reserve_NeverOversells(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	logger := zerolog.Nop()
	repo := NewProductRepository(pool, logger)

	seedProducts(t, pool, []model.Product{
		{ID: "P001", Name: "Silver Ring", Price: 40.00, Quantity: 5, Status: model.ProductInStock, CreatedAt: time.Now()},
	})

	// 20 checkouts race for 5 units; exactly 5 single-unit reservations may
	// succeed.
	const workers = 20

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- repo.Reserve(context.Background(), pool, "P001", 1)
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, model.ErrOutOfStock)
		}
	}
	assert.Equal(t, 5, succeeded)

	p := productState(t, pool, "P001")
	assert.Equal(t, 0, p.Quantity)
	assert.Equal(t, 5, p.SellCount)
	assert.Equal(t, model.ProductOutOfStock, p.Status)
}

func TestProductRepository_Release(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	logger := zerolog.Nop()
	repo := NewProductRepository(pool, logger)

	seedProducts(t, pool, []model.Product{
		{ID: "P001", Name: "Silver Ring", Price: 40.00, Quantity: 1, Status: model.ProductInStock, CreatedAt: time.Now()},
	})

	ctx := context.Background()

	require.NoError(t, repo.Reserve(ctx, pool, "P001", 1))
	p := productState(t, pool, "P001")
	require.Equal(t, model.ProductOutOfStock, p.Status)

	require.NoError(t, repo.Release(ctx, "P001", 1))

	p = productState(t, pool, "P001")
	assert.Equal(t, 1, p.Quantity)
	assert.Equal(t, 0, p.SellCount)
	assert.Equal(t, model.ProductInStock, p.Status)

	t.Run("unknown product", func(t *testing.T) {
		err := repo.Release(ctx, "P999", 1)
		assert.Error(t, err)
	})
}

func TestProductRepository_Reserve_InsideTransaction(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	logger := zerolog.Nop()
	repo := NewProductRepository(pool, logger)

	seedProducts(t, pool, []model.Product{
		{ID: "P001", Name: "Silver Ring", Price: 40.00, Quantity: 5, Status: model.ProductInStock, CreatedAt: time.Now()},
	})

	ctx := context.Background()

	// A rolled-back transaction leaves stock untouched.
	tx, err := pool.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.Reserve(ctx, tx, "P001", 3))
	require.NoError(t, tx.Rollback(ctx))

	p := productState(t, pool, "P001")
	assert.Equal(t, 5, p.Quantity)
	assert.Equal(t, 0, p.SellCount)
}
