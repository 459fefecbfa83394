package scan

import (
	"context"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"reaper/internal/adapters/config"
	"reaper/internal/domain/level"
	"reaper/internal/domain/position"
	"reaper/internal/domain/scan"
	"reaper/internal/events"
	"reaper/internal/metrics"
	ledgersvc "reaper/internal/services/ledger"
	"reaper/internal/services/payout"
	"reaper/internal/store"
	"reaper/pkg/errors"
	"reaper/pkg/logger"
)

// Service drives the death-selection lottery. Every transition is an explicit
// crank: anyone may call it, the state machine decides whether it is due.
//
//	idle -> committed   (ExecuteScan, beacon round pinned in the future)
//	committed -> active (ActivateScan, round produced, seed derived)
//	active              (SubmitDeaths, any number of batches inside the window)
//	active -> finalized (FinalizeScan, window elapsed, capital cascaded)
type Service struct {
	store   store.Store
	gateway *payout.Gateway
	pub     *events.Publisher
	game    config.GameConfig
	log     *logger.Logger
	now     func() time.Time
}

// NewService creates a new scan service
func NewService(
	st store.Store,
	gateway *payout.Gateway,
	pub *events.Publisher,
	game config.GameConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		store:   st,
		gateway: gateway,
		pub:     pub,
		game:    game,
		log:     log.With("component", "scan"),
		now:     time.Now,
	}
}

// ExecuteScan commits a new scan for a due level. The scan pins a beacon
// round that does not exist yet, so the seed is unknowable to everyone
// including the caller.
func (s *Service) ExecuteScan(ctx context.Context, lvl int) (*scan.Scan, error) {
	now := s.now()
	var committed *scan.Scan

	err := s.gateway.Execute(ctx, func(ctx context.Context, r store.Repos) error {
		ls, err := r.Levels.Get(ctx, lvl)
		if errors.Is(err, errors.ErrNotFound) {
			return errors.Wrapf(errors.ErrInvalidLevel, "level %d", lvl)
		}
		if err != nil {
			return err
		}

		if now.Before(ls.NextScanAt) {
			return errors.Wrapf(errors.ErrScanNotDue, "level %d next scan at %s", lvl, ls.NextScanAt)
		}
		if _, err := r.Scans.GetOpenByLevel(ctx, lvl); err == nil {
			return errors.Wrapf(errors.ErrScanActive, "level %d", lvl)
		} else if !errors.Is(err, errors.ErrScanNotFound) {
			return err
		}

		latest, err := r.Beacon.Latest(ctx)
		if err != nil {
			return errors.Wrap(err, "no beacon rounds observed yet")
		}

		sc := &scan.Scan{
			ID:           uuid.New(),
			Level:        lvl,
			Seq:          ls.CompletedScans + 1,
			Status:       scan.StatusCommitted,
			CommitRound:  latest.Number + s.game.CommitDelta,
			DeathCapital: decimal.Zero,
			CreatedAt:    now,
		}
		if err := r.Scans.Create(ctx, sc); err != nil {
			return errors.Wrap(err, "failed to create scan")
		}

		committed = sc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.pub.ScanCommitted(ctx, events.ScanCommitted{
		ScanID:      committed.ID,
		Level:       lvl,
		Seq:         committed.Seq,
		CommitRound: committed.CommitRound,
	})

	s.log.Infow("Scan committed",
		"scan_id", committed.ID,
		"level", lvl,
		"commit_round", committed.CommitRound,
	)
	return committed, nil
}

// ActivateScan derives the seed of a committed scan once its beacon round
// exists, and opens the submission window. Fails with ErrSeedNotReady until
// the round is produced.
func (s *Service) ActivateScan(ctx context.Context, lvl int) (*scan.Scan, error) {
	now := s.now()
	var activated *scan.Scan

	err := s.gateway.Execute(ctx, func(ctx context.Context, r store.Repos) error {
		sc, err := r.Scans.GetOpenByLevel(ctx, lvl)
		if err != nil {
			return err
		}
		if sc.Status != scan.StatusCommitted {
			return errors.Wrapf(errors.ErrSeedAlreadySet, "scan %s is %s", sc.ID, sc.Status)
		}

		round, err := r.Beacon.Get(ctx, sc.CommitRound)
		if errors.Is(err, errors.ErrNotFound) {
			return errors.Wrapf(errors.ErrSeedNotReady, "beacon round %d not produced", sc.CommitRound)
		}
		if err != nil {
			return err
		}

		closes := now.Add(s.game.SubmissionWindow)
		sc.Status = scan.StatusActive
		sc.Seed = scan.DeriveSeed(round.Output, sc.Level, sc.ID, s.game.EngineID)
		sc.WindowOpensAt = &now
		sc.WindowClosesAt = &closes
		if err := r.Scans.Update(ctx, sc); err != nil {
			return errors.Wrap(err, "failed to activate scan")
		}

		activated = sc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.pub.ScanActivated(ctx, events.ScanActivated{
		ScanID:         activated.ID,
		Level:          lvl,
		Seed:           hex.EncodeToString(activated.Seed),
		WindowClosesAt: *activated.WindowClosesAt,
	})

	s.log.Infow("Scan activated", "scan_id", activated.ID, "level", lvl)
	return activated, nil
}

// SubmitDeaths records eliminations for the active scan. Every claimed owner
// is re-verified against the lottery predicate; only true matches settle.
// False claims, unknown owners and owners already recorded dead are silently
// skipped, so adversarial or overlapping batches never block the genuine
// deaths they carry.
func (s *Service) SubmitDeaths(ctx context.Context, lvl int, owners []uuid.UUID) ([]uuid.UUID, error) {
	now := s.now()
	var accepted []uuid.UUID
	var scanID uuid.UUID

	err := s.gateway.Execute(ctx, func(ctx context.Context, r store.Repos) error {
		accepted = accepted[:0]

		sc, err := r.Scans.GetOpenByLevel(ctx, lvl)
		if err != nil {
			return err
		}
		if !sc.WindowOpen(now) {
			return errors.Wrapf(errors.ErrWindowClosed, "scan %s", sc.ID)
		}

		ls, err := r.Levels.Get(ctx, lvl)
		if err != nil {
			return err
		}

		for _, owner := range owners {
			p, err := r.Positions.GetAliveByOwner(ctx, owner)
			if errors.Is(err, errors.ErrPositionNotFound) {
				// Already dead or never existed: resubmission, skip.
				continue
			}
			if err != nil {
				return err
			}
			if p.Level != lvl {
				// Not a member of this scan's level: skip.
				continue
			}
			if !scan.IsDead(sc.Seed, owner, ls.DeathRateBps) {
				// Survivor claimed dead: a false entry never poisons the
				// batch, the rest still settles.
				continue
			}

			if err := ledgersvc.SyncPosition(ctx, r, p, ls); err != nil {
				return err
			}
			ledgersvc.Settle(p, ls)

			// Unclaimed rewards die with the position.
			capital := p.Amount.Add(p.Pending)

			p.Alive = false
			p.ExitKind = position.ExitDied
			p.Pending = decimal.Zero
			p.ExitedAt = &now
			p.UpdatedAt = now
			if err := r.Positions.Update(ctx, p); err != nil {
				return errors.Wrap(err, "failed to update dead position")
			}

			if err := r.Scans.RecordDeath(ctx, &scan.Death{
				ScanID:     sc.ID,
				Owner:      owner,
				Capital:    capital,
				RecordedAt: now,
			}); err != nil {
				return errors.Wrap(err, "failed to record death")
			}

			ls.AliveCount--
			ls.TotalStaked = ls.TotalStaked.Sub(p.Amount)

			sc.DeathCount++
			sc.DeathCapital = sc.DeathCapital.Add(capital)
			accepted = append(accepted, owner)
		}

		ls.UpdatedAt = now
		if err := r.Levels.Update(ctx, ls); err != nil {
			return errors.Wrap(err, "failed to update level state")
		}
		if err := r.Scans.Update(ctx, sc); err != nil {
			return errors.Wrap(err, "failed to update scan")
		}

		scanID = sc.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Deaths.WithLabelValues(strconv.Itoa(lvl)).Add(float64(len(accepted)))
	if len(accepted) > 0 {
		s.pub.DeathsSubmitted(ctx, events.DeathsSubmitted{
			ScanID:   scanID,
			Level:    lvl,
			Accepted: accepted,
		})
	}
	return accepted, nil
}

// FinalizeScan closes an active scan whose window has elapsed: the pooled
// death capital cascades through the split, the level's scan clock rearms.
// A scan with zero deaths finalizes with nothing to route.
func (s *Service) FinalizeScan(ctx context.Context, lvl int) (*scan.Scan, error) {
	now := s.now()
	var finalized *scan.Scan
	var outcome level.CascadeOutcome

	err := s.gateway.Execute(ctx, func(ctx context.Context, r store.Repos) error {
		sc, err := r.Scans.GetOpenByLevel(ctx, lvl)
		if err != nil {
			return err
		}
		if sc.Status != scan.StatusActive {
			return errors.Wrapf(errors.ErrSeedNotReady, "scan %s not activated", sc.ID)
		}
		if !sc.WindowElapsed(now) {
			return errors.Wrapf(errors.ErrWindowOpen, "scan %s closes at %s", sc.ID, sc.WindowClosesAt)
		}

		ls, err := r.Levels.Get(ctx, lvl)
		if err != nil {
			return err
		}

		var upstream *level.State
		upLvl, hasUpstream := ls.Upstream()
		upstreamTVL := decimal.Zero
		if hasUpstream {
			upstream, err = r.Levels.Get(ctx, upLvl)
			if err != nil {
				return errors.Wrapf(err, "upstream level %d", upLvl)
			}
			upstreamTVL = upstream.TotalStaked
		}

		split := level.CascadeSplit{
			SurvivorBps: s.game.CascadeSurvivorBps,
			UpstreamBps: s.game.CascadeUpstreamBps,
			BurnBps:     s.game.CascadeBurnBps,
			ProtocolBps: s.game.CascadeProtocolBps,
		}
		outcome = level.Cascade(sc.DeathCapital, split, ls.TotalStaked, upstreamTVL, hasUpstream)

		ls.AccRewardsPerShare = ls.AccRewardsPerShare.Add(outcome.SurvivorAccDelta)
		ls.CompletedScans++
		ls.NextScanAt = now.Add(ls.ScanEvery)
		ls.UpdatedAt = now
		if err := r.Levels.Update(ctx, ls); err != nil {
			return errors.Wrap(err, "failed to update level state")
		}

		if hasUpstream && !outcome.UpstreamAccDelta.IsZero() {
			upstream.AccRewardsPerShare = upstream.AccRewardsPerShare.Add(outcome.UpstreamAccDelta)
			upstream.UpdatedAt = now
			if err := r.Levels.Update(ctx, upstream); err != nil {
				return errors.Wrapf(err, "failed to update upstream level %d", upLvl)
			}
		}

		if outcome.Burn.Sign() > 0 {
			if err := s.gateway.Burn(ctx, r, outcome.Burn); err != nil {
				return err
			}
		}
		if outcome.Protocol.Sign() > 0 {
			if err := s.gateway.ToProtocol(ctx, r, outcome.Protocol); err != nil {
				return err
			}
		}

		sc.Status = scan.StatusFinalized
		sc.FinalizedAt = &now
		if err := r.Scans.Update(ctx, sc); err != nil {
			return errors.Wrap(err, "failed to finalize scan")
		}

		finalized = sc
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ScansFinalized.WithLabelValues(strconv.Itoa(lvl)).Inc()
	for dest, amt := range map[string]decimal.Decimal{
		"survivor": outcome.Survivor,
		"upstream": outcome.Upstream,
		"burn":     outcome.Burn,
		"protocol": outcome.Protocol,
	} {
		if v, _ := amt.Float64(); v > 0 {
			metrics.CascadedCapital.WithLabelValues(dest).Add(v)
		}
	}

	s.pub.ScanFinalized(ctx, events.ScanFinalized{
		ScanID:       finalized.ID,
		Level:        lvl,
		DeathCount:   finalized.DeathCount,
		DeathCapital: finalized.DeathCapital,
		Survivor:     outcome.Survivor,
		Upstream:     outcome.Upstream,
		Burned:       outcome.Burn,
		Protocol:     outcome.Protocol,
	})

	s.log.Infow("Scan finalized",
		"scan_id", finalized.ID,
		"level", lvl,
		"deaths", finalized.DeathCount,
		"capital", finalized.DeathCapital,
	)
	return finalized, nil
}

// GetScan returns a scan by id with its recorded deaths.
func (s *Service) GetScan(ctx context.Context, id uuid.UUID) (*scan.Scan, []*scan.Death, error) {
	r := s.store.Repos()
	sc, err := r.Scans.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	deaths, err := r.Scans.ListDeaths(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return sc, deaths, nil
}

// OpenScan returns the level's in-flight scan, ErrScanNotFound if idle.
func (s *Service) OpenScan(ctx context.Context, lvl int) (*scan.Scan, error) {
	return s.store.Repos().Scans.GetOpenByLevel(ctx, lvl)
}
