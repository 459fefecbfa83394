package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"reaper/internal/domain/breaker"
	"reaper/pkg/errors"
)

// Compile-time check
var _ breaker.Repository = (*BreakerRepository)(nil)

// BreakerRepository implements breaker.Repository using sqlx
type BreakerRepository struct {
	db DBTX
}

// NewBreakerRepository creates a new breaker repository
func NewBreakerRepository(db DBTX) *BreakerRepository {
	return &BreakerRepository{db: db}
}

// GetState retrieves the breaker singleton
func (r *BreakerRepository) GetState(ctx context.Context) (*breaker.State, error) {
	var s breaker.State

	query := `
		SELECT tripped, tripped_at, trip_reason, trip_seq,
		       hour_window_start, hourly_total, day_window_start, daily_total,
		       updated_at
		FROM breaker_state WHERE singleton`

	err := r.db.GetContext(ctx, &s, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(errors.ErrNotFound, "breaker state")
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveState upserts the breaker singleton
func (r *BreakerRepository) SaveState(ctx context.Context, s *breaker.State) error {
	query := `
		INSERT INTO breaker_state (
			singleton, tripped, tripped_at, trip_reason, trip_seq,
			hour_window_start, hourly_total, day_window_start, daily_total,
			updated_at
		) VALUES (TRUE, $1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (singleton) DO UPDATE SET
			tripped = EXCLUDED.tripped,
			tripped_at = EXCLUDED.tripped_at,
			trip_reason = EXCLUDED.trip_reason,
			trip_seq = EXCLUDED.trip_seq,
			hour_window_start = EXCLUDED.hour_window_start,
			hourly_total = EXCLUDED.hourly_total,
			day_window_start = EXCLUDED.day_window_start,
			daily_total = EXCLUDED.daily_total,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		s.Tripped, s.TrippedAt, s.TripReason, s.TripSeq,
		s.HourWindowStart, s.HourlyTotal, s.DayWindowStart, s.DailyTotal,
		s.UpdatedAt,
	)
	return err
}

// CreateProposal inserts a recovery proposal
func (r *BreakerRepository) CreateProposal(ctx context.Context, p *breaker.Proposal) error {
	query := `
		INSERT INTO breaker_proposals (
			id, proposer, trip_seq, execute_after, expires_at,
			vetoed, veto_reason, vetoed_at, executed, executed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Proposer, p.TripSeq, p.ExecuteAfter, p.ExpiresAt,
		p.Vetoed, p.VetoReason, p.VetoedAt, p.Executed, p.ExecutedAt, p.CreatedAt,
	)
	return err
}

// GetProposal retrieves a proposal by id
func (r *BreakerRepository) GetProposal(ctx context.Context, id uuid.UUID) (*breaker.Proposal, error) {
	var p breaker.Proposal

	err := r.db.GetContext(ctx, &p, `SELECT * FROM breaker_proposals WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrNotFound, "proposal %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProposal persists all mutable fields of a proposal
func (r *BreakerRepository) UpdateProposal(ctx context.Context, p *breaker.Proposal) error {
	query := `
		UPDATE breaker_proposals SET
			vetoed = $2, veto_reason = $3, vetoed_at = $4,
			executed = $5, executed_at = $6
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		p.ID, p.Vetoed, p.VetoReason, p.VetoedAt, p.Executed, p.ExecutedAt,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(errors.ErrNotFound, "proposal %s", p.ID)
	}
	return nil
}

// ListProposals returns proposals newest first
func (r *BreakerRepository) ListProposals(ctx context.Context, limit int) ([]*breaker.Proposal, error) {
	var proposals []*breaker.Proposal

	query := `SELECT * FROM breaker_proposals ORDER BY created_at DESC LIMIT $1`

	if err := r.db.SelectContext(ctx, &proposals, query, limit); err != nil {
		return nil, err
	}
	return proposals, nil
}
