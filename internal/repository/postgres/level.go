package postgres

import (
	"context"
	"database/sql"

	"reaper/internal/domain/level"
	"reaper/pkg/errors"
)

// Compile-time check
var _ level.Repository = (*LevelRepository)(nil)

// LevelRepository implements level.Repository using sqlx
type LevelRepository struct {
	db DBTX
}

// NewLevelRepository creates a new level repository
func NewLevelRepository(db DBTX) *LevelRepository {
	return &LevelRepository{db: db}
}

// Get retrieves a level's aggregate state
func (r *LevelRepository) Get(ctx context.Context, lvl int) (*level.State, error) {
	var s level.State

	err := r.db.GetContext(ctx, &s, `SELECT * FROM levels WHERE level = $1`, lvl)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrNotFound, "level %d", lvl)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetAll returns every level ordered by level number
func (r *LevelRepository) GetAll(ctx context.Context) ([]*level.State, error) {
	var states []*level.State

	if err := r.db.SelectContext(ctx, &states, `SELECT * FROM levels ORDER BY level`); err != nil {
		return nil, err
	}
	return states, nil
}

// Create inserts a new level row
func (r *LevelRepository) Create(ctx context.Context, s *level.State) error {
	query := `
		INSERT INTO levels (
			level, min_stake, max_positions, death_rate_bps,
			alive_count, total_staked, acc_rewards_per_share,
			scan_every, next_scan_at, completed_scans, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (level) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		s.Level, s.MinStake, s.MaxPositions, s.DeathRateBps,
		s.AliveCount, s.TotalStaked, s.AccRewardsPerShare,
		s.ScanEvery, s.NextScanAt, s.CompletedScans, s.UpdatedAt,
	)
	return err
}

// Update persists all mutable fields of a level
func (r *LevelRepository) Update(ctx context.Context, s *level.State) error {
	query := `
		UPDATE levels SET
			min_stake = $2, max_positions = $3, death_rate_bps = $4,
			alive_count = $5, total_staked = $6, acc_rewards_per_share = $7,
			scan_every = $8, next_scan_at = $9, completed_scans = $10,
			updated_at = $11
		WHERE level = $1`

	res, err := r.db.ExecContext(ctx, query,
		s.Level, s.MinStake, s.MaxPositions, s.DeathRateBps,
		s.AliveCount, s.TotalStaked, s.AccRewardsPerShare,
		s.ScanEvery, s.NextScanAt, s.CompletedScans, s.UpdatedAt,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(errors.ErrNotFound, "level %d", s.Level)
	}
	return nil
}
