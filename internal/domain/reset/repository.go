package reset

import (
	"context"
)

// Repository defines reset timer persistence operations
type Repository interface {
	// GetTimer retrieves the singleton timer, ErrNotFound if never initialized
	GetTimer(ctx context.Context) (*Timer, error)

	// SaveTimer upserts the singleton timer
	SaveTimer(ctx context.Context, t *Timer) error

	// CreateEpoch inserts an executed reset with its level snapshots
	CreateEpoch(ctx context.Context, e *Epoch) error

	// ListEpochsAfter returns executed resets with epoch > after, ascending,
	// snapshots included
	ListEpochsAfter(ctx context.Context, after int64) ([]*Epoch, error)
}
