package postgres

import (
	"context"
	"database/sql"

	"reaper/internal/domain/reset"
	"reaper/pkg/errors"
)

// Compile-time check
var _ reset.Repository = (*ResetRepository)(nil)

// ResetRepository implements reset.Repository using sqlx
type ResetRepository struct {
	db DBTX
}

// NewResetRepository creates a new reset repository
func NewResetRepository(db DBTX) *ResetRepository {
	return &ResetRepository{db: db}
}

// GetTimer retrieves the countdown singleton
func (r *ResetRepository) GetTimer(ctx context.Context) (*reset.Timer, error) {
	var t reset.Timer

	err := r.db.GetContext(ctx, &t, `SELECT deadline, last_depositor, epoch, penalty_bps, updated_at FROM reset_timer WHERE singleton`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(errors.ErrNotFound, "reset timer")
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SaveTimer upserts the countdown singleton
func (r *ResetRepository) SaveTimer(ctx context.Context, t *reset.Timer) error {
	query := `
		INSERT INTO reset_timer (singleton, deadline, last_depositor, epoch, penalty_bps, updated_at)
		VALUES (TRUE, $1, $2, $3, $4, $5)
		ON CONFLICT (singleton) DO UPDATE SET
			deadline = EXCLUDED.deadline,
			last_depositor = EXCLUDED.last_depositor,
			epoch = EXCLUDED.epoch,
			penalty_bps = EXCLUDED.penalty_bps,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query, t.Deadline, t.LastDepositor, t.Epoch, t.PenaltyBps, t.UpdatedAt)
	return err
}

// CreateEpoch inserts one executed reset with its level snapshots
func (r *ResetRepository) CreateEpoch(ctx context.Context, e *reset.Epoch) error {
	query := `
		INSERT INTO reset_epochs (epoch, penalty_bps, jackpot, winner, triggered_at)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := r.db.ExecContext(ctx, query, e.Epoch, e.PenaltyBps, e.Jackpot, e.Winner, e.TriggeredAt); err != nil {
		return err
	}

	for _, snap := range e.Levels {
		query := `
			INSERT INTO reset_level_snapshots (epoch, level, acc_rewards_per_share)
			VALUES ($1, $2, $3)`

		if _, err := r.db.ExecContext(ctx, query, e.Epoch, snap.Level, snap.Acc); err != nil {
			return err
		}
	}
	return nil
}

// ListEpochsAfter returns executed resets with epoch > after, ascending,
// snapshots attached
func (r *ResetRepository) ListEpochsAfter(ctx context.Context, after int64) ([]*reset.Epoch, error) {
	var epochs []*reset.Epoch

	query := `SELECT epoch, penalty_bps, jackpot, winner, triggered_at FROM reset_epochs WHERE epoch > $1 ORDER BY epoch`

	if err := r.db.SelectContext(ctx, &epochs, query, after); err != nil {
		return nil, err
	}
	if len(epochs) == 0 {
		return epochs, nil
	}

	var snaps []reset.LevelSnapshot
	snapQuery := `SELECT * FROM reset_level_snapshots WHERE epoch > $1 ORDER BY epoch, level`

	if err := r.db.SelectContext(ctx, &snaps, snapQuery, after); err != nil {
		return nil, err
	}

	byEpoch := make(map[int64]*reset.Epoch, len(epochs))
	for _, e := range epochs {
		e.Levels = make(map[int]reset.LevelSnapshot)
		byEpoch[e.Epoch] = e
	}
	for _, snap := range snaps {
		if e, ok := byEpoch[snap.Epoch]; ok {
			e.Levels[snap.Level] = snap
		}
	}
	return epochs, nil
}
