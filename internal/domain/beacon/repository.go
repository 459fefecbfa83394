package beacon

import (
	"context"
)

// Repository defines beacon round persistence operations
type Repository interface {
	// Insert stores a produced round; inserting the same number twice is a no-op
	Insert(ctx context.Context, r *Round) error

	// Get retrieves a round by number, ErrNotFound if not yet produced
	Get(ctx context.Context, number uint64) (*Round, error)

	// Latest retrieves the highest produced round, ErrNotFound if none
	Latest(ctx context.Context) (*Round, error)
}
