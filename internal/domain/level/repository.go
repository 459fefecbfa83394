package level

import (
	"context"
)

// Repository defines level state persistence operations
type Repository interface {
	// Get retrieves one level's state
	Get(ctx context.Context, lvl int) (*State, error)

	// GetAll retrieves all levels ordered ascending
	GetAll(ctx context.Context) ([]*State, error)

	// Create inserts a level state row
	Create(ctx context.Context, s *State) error

	// Update persists all mutable fields of a level state
	Update(ctx context.Context, s *State) error
}
