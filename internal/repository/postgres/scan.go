package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"reaper/internal/domain/scan"
	"reaper/pkg/errors"
)

// Compile-time check
var _ scan.Repository = (*ScanRepository)(nil)

// ScanRepository implements scan.Repository using sqlx
type ScanRepository struct {
	db DBTX
}

// NewScanRepository creates a new scan repository
func NewScanRepository(db DBTX) *ScanRepository {
	return &ScanRepository{db: db}
}

// Create inserts a new scan. The partial unique index on (level) WHERE status
// <> 'finalized' enforces at most one open scan per level.
func (r *ScanRepository) Create(ctx context.Context, s *scan.Scan) error {
	query := `
		INSERT INTO scans (
			id, level, seq, status, commit_round, seed,
			window_opens_at, window_closes_at,
			death_count, death_capital, created_at, finalized_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.Level, s.Seq, s.Status, s.CommitRound, s.Seed,
		s.WindowOpensAt, s.WindowClosesAt,
		s.DeathCount, s.DeathCapital, s.CreatedAt, s.FinalizedAt,
	)
	return err
}

// Update persists all mutable fields of a scan
func (r *ScanRepository) Update(ctx context.Context, s *scan.Scan) error {
	query := `
		UPDATE scans SET
			status = $2, seed = $3,
			window_opens_at = $4, window_closes_at = $5,
			death_count = $6, death_capital = $7, finalized_at = $8
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		s.ID, s.Status, s.Seed,
		s.WindowOpensAt, s.WindowClosesAt,
		s.DeathCount, s.DeathCapital, s.FinalizedAt,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(errors.ErrScanNotFound, "id %s", s.ID)
	}
	return nil
}

// GetOpenByLevel returns the level's non-finalized scan
func (r *ScanRepository) GetOpenByLevel(ctx context.Context, lvl int) (*scan.Scan, error) {
	var s scan.Scan

	query := `SELECT * FROM scans WHERE level = $1 AND status <> 'finalized'`

	err := r.db.GetContext(ctx, &s, query, lvl)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrScanNotFound, "level %d has no open scan", lvl)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByID retrieves a scan by id
func (r *ScanRepository) GetByID(ctx context.Context, id uuid.UUID) (*scan.Scan, error) {
	var s scan.Scan

	err := r.db.GetContext(ctx, &s, `SELECT * FROM scans WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrScanNotFound, "id %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// RecordDeath inserts one confirmed elimination
func (r *ScanRepository) RecordDeath(ctx context.Context, d *scan.Death) error {
	query := `
		INSERT INTO scan_deaths (scan_id, owner_id, capital, recorded_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.ExecContext(ctx, query, d.ScanID, d.Owner, d.Capital, d.RecordedAt)
	return err
}

// ListDeaths returns all eliminations recorded for a scan
func (r *ScanRepository) ListDeaths(ctx context.Context, scanID uuid.UUID) ([]*scan.Death, error) {
	var deaths []*scan.Death

	query := `SELECT * FROM scan_deaths WHERE scan_id = $1 ORDER BY recorded_at`

	if err := r.db.SelectContext(ctx, &deaths, query, scanID); err != nil {
		return nil, err
	}
	return deaths, nil
}
