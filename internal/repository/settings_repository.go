package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gemcart/internal/checkout"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// globalSettingsID keys the singleton policy document.
const globalSettingsID = "global"

// settingsRepository implements SettingsRepository using PostgreSQL.
type settingsRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewSettingsRepository creates a new PostgreSQL-backed settings repository.
func NewSettingsRepository(pool *pgxpool.Pool, logger zerolog.Logger) SettingsRepository {
	return &settingsRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "settings").Logger(),
	}
}

// GetPolicy reads the merchant's checkout policy snapshot.
func (r *settingsRepository) GetPolicy(ctx context.Context) (*checkout.Policy, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT policy FROM settings WHERE id = $1`, globalSettingsID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("checkout policy is not configured")
		}
		r.logger.Error().Err(err).Msg("failed to query checkout policy")
		return nil, fmt.Errorf("failed to query checkout policy: %w", err)
	}

	var policy checkout.Policy
	if err := json.Unmarshal(raw, &policy); err != nil {
		r.logger.Error().Err(err).Msg("failed to decode checkout policy")
		return nil, fmt.Errorf("failed to decode checkout policy: %w", err)
	}

	return &policy, nil
}
