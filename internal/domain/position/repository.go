package position

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines position persistence operations
type Repository interface {
	// Create inserts a new position
	Create(ctx context.Context, p *Position) error

	// Update persists all mutable fields of a position
	Update(ctx context.Context, p *Position) error

	// GetByID retrieves a position by ID (alive or not)
	GetByID(ctx context.Context, id uuid.UUID) (*Position, error)

	// GetAliveByOwner retrieves the owner's alive position, ErrPositionNotFound if none
	GetAliveByOwner(ctx context.Context, owner uuid.UUID) (*Position, error)

	// ListAliveByLevel retrieves all alive positions in a level ordered by entry_seq
	ListAliveByLevel(ctx context.Context, level int) ([]*Position, error)

	// OldestAlive retrieves the alive position with the lowest entry_seq in a level
	OldestAlive(ctx context.Context, level int) (*Position, error)

	// ListByOwner retrieves the owner's full position history, newest first
	ListByOwner(ctx context.Context, owner uuid.UUID) ([]*Position, error)

	// NextEntrySeq allocates the next FIFO admission sequence number
	NextEntrySeq(ctx context.Context) (int64, error)
}
