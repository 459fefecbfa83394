package scan

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines scan persistence operations
type Repository interface {
	// Create inserts a new scan
	Create(ctx context.Context, s *Scan) error

	// Update persists all mutable fields of a scan
	Update(ctx context.Context, s *Scan) error

	// GetOpenByLevel returns the level's non-finalized scan, ErrScanNotFound if none
	GetOpenByLevel(ctx context.Context, lvl int) (*Scan, error)

	// GetByID retrieves a scan by id
	GetByID(ctx context.Context, id uuid.UUID) (*Scan, error)

	// RecordDeath inserts one confirmed elimination
	RecordDeath(ctx context.Context, d *Death) error

	// ListDeaths returns all eliminations recorded for a scan
	ListDeaths(ctx context.Context, scanID uuid.UUID) ([]*Death, error)
}
