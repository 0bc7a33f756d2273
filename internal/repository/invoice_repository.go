package repository

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

const (
	invoiceCounterID = "orders"
	invoiceSeed      = 1000
)

// invoiceSequencer implements InvoiceSequencer over a singleton counter row.
type invoiceSequencer struct {
	logger zerolog.Logger
}

// NewInvoiceSequencer creates the invoice number allocator.
func NewInvoiceSequencer(logger zerolog.Logger) InvoiceSequencer {
	return &invoiceSequencer{
		logger: logger.With().Str("repository", "invoice").Logger(),
	}
}

// Next atomically increments the counter and returns the new value, seeding
// it on first use. The upsert form absorbs the race where two requests both
// observe a missing counter. Run on a transaction, the allocation rolls back
// with the order insert.
func (s *invoiceSequencer) Next(ctx context.Context, q Querier) (int64, error) {
	query := `
		INSERT INTO invoice_counters (id, seq)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET seq = invoice_counters.seq + 1
		RETURNING seq
	`

	var seq int64
	if err := q.QueryRow(ctx, query, invoiceCounterID, invoiceSeed).Scan(&seq); err != nil {
		s.logger.Error().Err(err).Msg("failed to allocate invoice number")
		return 0, fmt.Errorf("failed to allocate invoice number: %w", err)
	}

	return seq, nil
}
