package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"reaper/internal/domain/beacon"
	"reaper/internal/domain/breaker"
	"reaper/internal/domain/level"
	"reaper/internal/domain/position"
	"reaper/internal/domain/reset"
	"reaper/internal/domain/scan"
	"reaper/internal/store"
)

// Compile-time check
var _ store.Store = (*Store)(nil)

// Store is an in-memory store.Store for tests and local runs. A single mutex
// is the consistency boundary; rollback restores a snapshot taken at entry.
// Repositories return and accept copies, so entities held by callers never
// alias stored state.
type Store struct {
	mu sync.Mutex
	d  *data
}

type data struct {
	positions map[uuid.UUID]position.Position
	levels    map[int]level.State
	scans     map[uuid.UUID]scan.Scan
	deaths    map[uuid.UUID][]scan.Death
	timer     *reset.Timer
	epochs    []reset.Epoch
	breaker   *breaker.State
	proposals map[uuid.UUID]breaker.Proposal
	rounds    map[uint64]beacon.Round
	entrySeq  int64
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{d: newData()}
}

func newData() *data {
	return &data{
		positions: make(map[uuid.UUID]position.Position),
		levels:    make(map[int]level.State),
		scans:     make(map[uuid.UUID]scan.Scan),
		deaths:    make(map[uuid.UUID][]scan.Death),
		proposals: make(map[uuid.UUID]breaker.Proposal),
		rounds:    make(map[uint64]beacon.Round),
	}
}

// WithinTx runs fn under the store mutex; an error restores the pre-call state
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, r store.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.d.clone()
	if err := fn(ctx, s.repos()); err != nil {
		s.d = snapshot
		return err
	}
	return nil
}

// Repos returns repositories over the live state. Reads outside WithinTx are
// not isolated from concurrent writers; tests drive the store sequentially.
func (s *Store) Repos() store.Repos {
	return s.repos()
}

func (s *Store) repos() store.Repos {
	return store.Repos{
		Positions: &positionRepo{s: s},
		Levels:    &levelRepo{s: s},
		Scans:     &scanRepo{s: s},
		Reset:     &resetRepo{s: s},
		Breaker:   &breakerRepo{s: s},
		Beacon:    &beaconRepo{s: s},
	}
}

func (d *data) clone() *data {
	c := &data{
		positions: make(map[uuid.UUID]position.Position, len(d.positions)),
		levels:    make(map[int]level.State, len(d.levels)),
		scans:     make(map[uuid.UUID]scan.Scan, len(d.scans)),
		deaths:    make(map[uuid.UUID][]scan.Death, len(d.deaths)),
		epochs:    append([]reset.Epoch(nil), d.epochs...),
		proposals: make(map[uuid.UUID]breaker.Proposal, len(d.proposals)),
		rounds:    make(map[uint64]beacon.Round, len(d.rounds)),
		entrySeq:  d.entrySeq,
	}
	for k, v := range d.positions {
		c.positions[k] = v
	}
	for k, v := range d.levels {
		c.levels[k] = v
	}
	for k, v := range d.scans {
		c.scans[k] = v
	}
	for k, v := range d.deaths {
		c.deaths[k] = append([]scan.Death(nil), v...)
	}
	for k, v := range d.proposals {
		c.proposals[k] = v
	}
	for k, v := range d.rounds {
		c.rounds[k] = v
	}
	if d.timer != nil {
		t := *d.timer
		c.timer = &t
	}
	if d.breaker != nil {
		b := *d.breaker
		c.breaker = &b
	}
	for i, e := range c.epochs {
		levels := make(map[int]reset.LevelSnapshot, len(e.Levels))
		for k, v := range e.Levels {
			levels[k] = v
		}
		c.epochs[i].Levels = levels
	}
	return c
}
