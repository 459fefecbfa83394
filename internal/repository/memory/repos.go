package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"reaper/internal/domain/beacon"
	"reaper/internal/domain/breaker"
	"reaper/internal/domain/level"
	"reaper/internal/domain/position"
	"reaper/internal/domain/reset"
	"reaper/internal/domain/scan"
	"reaper/pkg/errors"
)

type positionRepo struct{ s *Store }

func (r *positionRepo) Create(ctx context.Context, p *position.Position) error {
	r.s.d.positions[p.ID] = *p
	return nil
}

func (r *positionRepo) Update(ctx context.Context, p *position.Position) error {
	if _, ok := r.s.d.positions[p.ID]; !ok {
		return errors.Wrapf(errors.ErrPositionNotFound, "id %s", p.ID)
	}
	r.s.d.positions[p.ID] = *p
	return nil
}

func (r *positionRepo) GetByID(ctx context.Context, id uuid.UUID) (*position.Position, error) {
	p, ok := r.s.d.positions[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrPositionNotFound, "id %s", id)
	}
	return &p, nil
}

func (r *positionRepo) GetAliveByOwner(ctx context.Context, owner uuid.UUID) (*position.Position, error) {
	for _, p := range r.s.d.positions {
		if p.Owner == owner && p.Alive {
			cp := p
			return &cp, nil
		}
	}
	return nil, errors.Wrapf(errors.ErrPositionNotFound, "owner %s", owner)
}

func (r *positionRepo) ListAliveByLevel(ctx context.Context, lvl int) ([]*position.Position, error) {
	var out []*position.Position
	for _, p := range r.s.d.positions {
		if p.Level == lvl && p.Alive {
			cp := p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntrySeq < out[j].EntrySeq })
	return out, nil
}

func (r *positionRepo) OldestAlive(ctx context.Context, lvl int) (*position.Position, error) {
	all, _ := r.ListAliveByLevel(ctx, lvl)
	if len(all) == 0 {
		return nil, errors.Wrapf(errors.ErrPositionNotFound, "level %d is empty", lvl)
	}
	return all[0], nil
}

func (r *positionRepo) ListByOwner(ctx context.Context, owner uuid.UUID) ([]*position.Position, error) {
	var out []*position.Position
	for _, p := range r.s.d.positions {
		if p.Owner == owner {
			cp := p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnteredAt.After(out[j].EnteredAt) })
	return out, nil
}

func (r *positionRepo) NextEntrySeq(ctx context.Context) (int64, error) {
	r.s.d.entrySeq++
	return r.s.d.entrySeq, nil
}

type levelRepo struct{ s *Store }

func (r *levelRepo) Get(ctx context.Context, lvl int) (*level.State, error) {
	s, ok := r.s.d.levels[lvl]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "level %d", lvl)
	}
	return &s, nil
}

func (r *levelRepo) GetAll(ctx context.Context) ([]*level.State, error) {
	var out []*level.State
	for _, s := range r.s.d.levels {
		cp := s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out, nil
}

func (r *levelRepo) Create(ctx context.Context, s *level.State) error {
	if _, ok := r.s.d.levels[s.Level]; ok {
		return nil
	}
	r.s.d.levels[s.Level] = *s
	return nil
}

func (r *levelRepo) Update(ctx context.Context, s *level.State) error {
	if _, ok := r.s.d.levels[s.Level]; !ok {
		return errors.Wrapf(errors.ErrNotFound, "level %d", s.Level)
	}
	r.s.d.levels[s.Level] = *s
	return nil
}

type scanRepo struct{ s *Store }

func (r *scanRepo) Create(ctx context.Context, sc *scan.Scan) error {
	for _, existing := range r.s.d.scans {
		if existing.Level == sc.Level && existing.Status != scan.StatusFinalized {
			return errors.Wrapf(errors.ErrScanActive, "level %d", sc.Level)
		}
	}
	r.s.d.scans[sc.ID] = *sc
	return nil
}

func (r *scanRepo) Update(ctx context.Context, sc *scan.Scan) error {
	if _, ok := r.s.d.scans[sc.ID]; !ok {
		return errors.Wrapf(errors.ErrScanNotFound, "id %s", sc.ID)
	}
	r.s.d.scans[sc.ID] = *sc
	return nil
}

func (r *scanRepo) GetOpenByLevel(ctx context.Context, lvl int) (*scan.Scan, error) {
	for _, sc := range r.s.d.scans {
		if sc.Level == lvl && sc.Status != scan.StatusFinalized {
			cp := sc
			return &cp, nil
		}
	}
	return nil, errors.Wrapf(errors.ErrScanNotFound, "level %d has no open scan", lvl)
}

func (r *scanRepo) GetByID(ctx context.Context, id uuid.UUID) (*scan.Scan, error) {
	sc, ok := r.s.d.scans[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrScanNotFound, "id %s", id)
	}
	return &sc, nil
}

func (r *scanRepo) RecordDeath(ctx context.Context, d *scan.Death) error {
	r.s.d.deaths[d.ScanID] = append(r.s.d.deaths[d.ScanID], *d)
	return nil
}

func (r *scanRepo) ListDeaths(ctx context.Context, scanID uuid.UUID) ([]*scan.Death, error) {
	var out []*scan.Death
	for _, d := range r.s.d.deaths[scanID] {
		cp := d
		out = append(out, &cp)
	}
	return out, nil
}

type resetRepo struct{ s *Store }

func (r *resetRepo) GetTimer(ctx context.Context) (*reset.Timer, error) {
	if r.s.d.timer == nil {
		return nil, errors.Wrap(errors.ErrNotFound, "reset timer")
	}
	t := *r.s.d.timer
	return &t, nil
}

func (r *resetRepo) SaveTimer(ctx context.Context, t *reset.Timer) error {
	cp := *t
	r.s.d.timer = &cp
	return nil
}

func (r *resetRepo) CreateEpoch(ctx context.Context, e *reset.Epoch) error {
	cp := *e
	cp.Levels = make(map[int]reset.LevelSnapshot, len(e.Levels))
	for k, v := range e.Levels {
		cp.Levels[k] = v
	}
	r.s.d.epochs = append(r.s.d.epochs, cp)
	return nil
}

func (r *resetRepo) ListEpochsAfter(ctx context.Context, after int64) ([]*reset.Epoch, error) {
	var out []*reset.Epoch
	for _, e := range r.s.d.epochs {
		if e.Epoch > after {
			cp := e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Epoch < out[j].Epoch })
	return out, nil
}

type breakerRepo struct{ s *Store }

func (r *breakerRepo) GetState(ctx context.Context) (*breaker.State, error) {
	if r.s.d.breaker == nil {
		return nil, errors.Wrap(errors.ErrNotFound, "breaker state")
	}
	b := *r.s.d.breaker
	return &b, nil
}

func (r *breakerRepo) SaveState(ctx context.Context, b *breaker.State) error {
	cp := *b
	r.s.d.breaker = &cp
	return nil
}

func (r *breakerRepo) CreateProposal(ctx context.Context, p *breaker.Proposal) error {
	r.s.d.proposals[p.ID] = *p
	return nil
}

func (r *breakerRepo) GetProposal(ctx context.Context, id uuid.UUID) (*breaker.Proposal, error) {
	p, ok := r.s.d.proposals[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "proposal %s", id)
	}
	return &p, nil
}

func (r *breakerRepo) UpdateProposal(ctx context.Context, p *breaker.Proposal) error {
	if _, ok := r.s.d.proposals[p.ID]; !ok {
		return errors.Wrapf(errors.ErrNotFound, "proposal %s", p.ID)
	}
	r.s.d.proposals[p.ID] = *p
	return nil
}

func (r *breakerRepo) ListProposals(ctx context.Context, limit int) ([]*breaker.Proposal, error) {
	var out []*breaker.Proposal
	for _, p := range r.s.d.proposals {
		cp := p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type beaconRepo struct{ s *Store }

func (r *beaconRepo) Insert(ctx context.Context, round *beacon.Round) error {
	if _, ok := r.s.d.rounds[round.Number]; ok {
		return nil
	}
	cp := *round
	cp.Output = append([]byte(nil), round.Output...)
	r.s.d.rounds[round.Number] = cp
	return nil
}

func (r *beaconRepo) Get(ctx context.Context, number uint64) (*beacon.Round, error) {
	round, ok := r.s.d.rounds[number]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "beacon round %d", number)
	}
	return &round, nil
}

func (r *beaconRepo) Latest(ctx context.Context) (*beacon.Round, error) {
	var best *beacon.Round
	for n := range r.s.d.rounds {
		if best == nil || n > best.Number {
			round := r.s.d.rounds[n]
			best = &round
		}
	}
	if best == nil {
		return nil, errors.Wrap(errors.ErrNotFound, "no beacon rounds")
	}
	return best, nil
}
