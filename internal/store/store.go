package store

import (
	"context"

	"reaper/internal/domain/beacon"
	"reaper/internal/domain/breaker"
	"reaper/internal/domain/level"
	"reaper/internal/domain/position"
	"reaper/internal/domain/reset"
	"reaper/internal/domain/scan"
)

// Repos bundles every repository bound to one consistency boundary
type Repos struct {
	Positions position.Repository
	Levels    level.Repository
	Scans     scan.Repository
	Reset     reset.Repository
	Breaker   breaker.Repository
	Beacon    beacon.Repository
}

// Store executes state transitions atomically. Every inbound operation runs
// to completion inside exactly one WithinTx call: either all of its writes
// land or none do. The postgres store backs this with a serializable
// transaction; the in-memory store with a single mutex.
type Store interface {
	// WithinTx runs fn against a transactional view of all repositories
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error

	// Repos returns non-transactional repositories for read paths
	Repos() Repos
}
