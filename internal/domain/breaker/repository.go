package breaker

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines circuit breaker persistence operations
type Repository interface {
	// GetState retrieves the singleton breaker state, ErrNotFound if never initialized
	GetState(ctx context.Context) (*State, error)

	// SaveState upserts the singleton breaker state
	SaveState(ctx context.Context, s *State) error

	// CreateProposal inserts a recovery proposal
	CreateProposal(ctx context.Context, p *Proposal) error

	// GetProposal retrieves a proposal by id
	GetProposal(ctx context.Context, id uuid.UUID) (*Proposal, error)

	// UpdateProposal persists all mutable fields of a proposal
	UpdateProposal(ctx context.Context, p *Proposal) error

	// ListProposals returns proposals newest first
	ListProposals(ctx context.Context, limit int) ([]*Proposal, error)
}
