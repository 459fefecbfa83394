package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"reaper/internal/domain/position"
	"reaper/pkg/errors"
)

// Compile-time check
var _ position.Repository = (*PositionRepository)(nil)

// PositionRepository implements position.Repository using sqlx
type PositionRepository struct {
	db DBTX
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db DBTX) *PositionRepository {
	return &PositionRepository{db: db}
}

// Create inserts a new position
func (r *PositionRepository) Create(ctx context.Context, p *position.Position) error {
	query := `
		INSERT INTO positions (
			id, owner_id, level, amount, reward_debt, pending_rewards,
			entry_seq, synced_epoch, synced_scans, ghost_streak,
			alive, exit_kind, entered_at, last_add_at, exited_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16
		)`

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Owner, p.Level, p.Amount, p.RewardDebt, p.Pending,
		p.EntrySeq, p.SyncedEpoch, p.SyncedScans, p.GhostStreak,
		p.Alive, p.ExitKind, p.EnteredAt, p.LastAddAt, p.ExitedAt, p.UpdatedAt,
	)
	return err
}

// Update persists all mutable fields of a position
func (r *PositionRepository) Update(ctx context.Context, p *position.Position) error {
	query := `
		UPDATE positions SET
			amount = $2, reward_debt = $3, pending_rewards = $4,
			synced_epoch = $5, synced_scans = $6, ghost_streak = $7,
			alive = $8, exit_kind = $9, last_add_at = $10, exited_at = $11,
			updated_at = $12
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		p.ID, p.Amount, p.RewardDebt, p.Pending,
		p.SyncedEpoch, p.SyncedScans, p.GhostStreak,
		p.Alive, p.ExitKind, p.LastAddAt, p.ExitedAt, p.UpdatedAt,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(errors.ErrPositionNotFound, "id %s", p.ID)
	}
	return nil
}

// GetByID retrieves a position by id
func (r *PositionRepository) GetByID(ctx context.Context, id uuid.UUID) (*position.Position, error) {
	var p position.Position

	err := r.db.GetContext(ctx, &p, `SELECT * FROM positions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrPositionNotFound, "id %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetAliveByOwner retrieves the owner's alive position
func (r *PositionRepository) GetAliveByOwner(ctx context.Context, owner uuid.UUID) (*position.Position, error) {
	var p position.Position

	query := `SELECT * FROM positions WHERE owner_id = $1 AND alive`

	err := r.db.GetContext(ctx, &p, query, owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrPositionNotFound, "owner %s", owner)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListAliveByLevel returns a level's alive positions ordered by entry
func (r *PositionRepository) ListAliveByLevel(ctx context.Context, lvl int) ([]*position.Position, error) {
	var positions []*position.Position

	query := `
		SELECT * FROM positions
		WHERE level = $1 AND alive
		ORDER BY entry_seq`

	if err := r.db.SelectContext(ctx, &positions, query, lvl); err != nil {
		return nil, err
	}
	return positions, nil
}

// OldestAlive returns the level's longest-resident alive position
func (r *PositionRepository) OldestAlive(ctx context.Context, lvl int) (*position.Position, error) {
	var p position.Position

	query := `
		SELECT * FROM positions
		WHERE level = $1 AND alive
		ORDER BY entry_seq
		LIMIT 1`

	err := r.db.GetContext(ctx, &p, query, lvl)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrPositionNotFound, "level %d is empty", lvl)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByOwner returns the owner's positions newest first, dead included
func (r *PositionRepository) ListByOwner(ctx context.Context, owner uuid.UUID) ([]*position.Position, error) {
	var positions []*position.Position

	query := `
		SELECT * FROM positions
		WHERE owner_id = $1
		ORDER BY entered_at DESC`

	if err := r.db.SelectContext(ctx, &positions, query, owner); err != nil {
		return nil, err
	}
	return positions, nil
}

// NextEntrySeq allocates the next global entry sequence number
func (r *PositionRepository) NextEntrySeq(ctx context.Context) (int64, error) {
	var seq int64

	err := r.db.GetContext(ctx, &seq, `SELECT nextval('position_entry_seq')`)
	if err != nil {
		return 0, err
	}
	return seq, nil
}
