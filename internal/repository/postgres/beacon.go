package postgres

import (
	"context"
	"database/sql"

	"reaper/internal/domain/beacon"
	"reaper/pkg/errors"
)

// Compile-time check
var _ beacon.Repository = (*BeaconRepository)(nil)

// BeaconRepository implements beacon.Repository using sqlx
type BeaconRepository struct {
	db DBTX
}

// NewBeaconRepository creates a new beacon repository
func NewBeaconRepository(db DBTX) *BeaconRepository {
	return &BeaconRepository{db: db}
}

// Insert stores a produced round; a duplicate round number is a no-op
func (r *BeaconRepository) Insert(ctx context.Context, round *beacon.Round) error {
	query := `
		INSERT INTO beacon_rounds (number, output, produced_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (number) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query, round.Number, round.Output, round.ProducedAt)
	return err
}

// Get retrieves a round by number
func (r *BeaconRepository) Get(ctx context.Context, number uint64) (*beacon.Round, error) {
	var round beacon.Round

	err := r.db.GetContext(ctx, &round, `SELECT * FROM beacon_rounds WHERE number = $1`, number)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrNotFound, "beacon round %d", number)
	}
	if err != nil {
		return nil, err
	}
	return &round, nil
}

// Latest retrieves the highest produced round
func (r *BeaconRepository) Latest(ctx context.Context) (*beacon.Round, error) {
	var round beacon.Round

	err := r.db.GetContext(ctx, &round, `SELECT * FROM beacon_rounds ORDER BY number DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(errors.ErrNotFound, "no beacon rounds")
	}
	if err != nil {
		return nil, err
	}
	return &round, nil
}
