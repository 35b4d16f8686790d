package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/closer/internal/strategy"
)

var _ strategy.VersionedStore = (*Store)(nil)

// Load returns the highest stored strategy version.
func (s *Store) Load(ctx context.Context) (*strategy.Record, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `
		SELECT record FROM strategy_records
		ORDER BY version DESC LIMIT 1`).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, strategy.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load strategy: %v", strategy.ErrStorageUnavailable, err)
	}
	return strategy.Decode(data)
}

// Version returns a specific stored strategy version.
func (s *Store) Version(ctx context.Context, version int) (*strategy.Record, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `
		SELECT record FROM strategy_records WHERE version = $1`, version).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, strategy.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load strategy version %d: %v", strategy.ErrStorageUnavailable, version, err)
	}
	return strategy.Decode(data)
}

// Save stores r under its version, replacing any row with the same version.
func (s *Store) Save(ctx context.Context, r *strategy.Record) error {
	data, err := strategy.Encode(r)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO strategy_records (version, record, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (version) DO UPDATE SET record = EXCLUDED.record, updated_at = now()`,
		r.Version, data,
	)
	if err != nil {
		return fmt.Errorf("%w: save strategy: %v", strategy.ErrStorageUnavailable, err)
	}
	return nil
}
