package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"reaper/internal/adapters/config"
	"reaper/internal/domain/level"
	"reaper/internal/domain/position"
	"reaper/internal/domain/reset"
	"reaper/internal/domain/token"
	"reaper/internal/events"
	"reaper/internal/metrics"
	"reaper/internal/services/payout"
	"reaper/internal/store"
	"reaper/pkg/errors"
	"reaper/pkg/logger"
)

// Service owns the position ledger: entries, stake increases, voluntary
// exits, reward claims and capacity culling. Every operation is one atomic
// state transition.
type Service struct {
	store    store.Store
	gateway  *payout.Gateway
	ledger   token.Ledger
	accounts token.Accounts
	pub      *events.Publisher
	game     config.GameConfig
	resetCfg config.ResetConfig
	log      *logger.Logger
	now      func() time.Time
}

// NewService creates a new ledger service
func NewService(
	st store.Store,
	gateway *payout.Gateway,
	ledger token.Ledger,
	accounts token.Accounts,
	pub *events.Publisher,
	game config.GameConfig,
	resetCfg config.ResetConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		store:    st,
		gateway:  gateway,
		ledger:   ledger,
		accounts: accounts,
		pub:      pub,
		game:     game,
		resetCfg: resetCfg,
		log:      log.With("component", "ledger"),
		now:      time.Now,
	}
}

// Enter creates a new position in a level. A full level evicts its
// longest-resident position first. The deposit extends the global reset
// countdown.
func (s *Service) Enter(ctx context.Context, owner uuid.UUID, lvl int, amount decimal.Decimal) (*position.Position, error) {
	now := s.now()

	var created *position.Position
	var culled *events.PositionCulled

	err := s.gateway.Execute(ctx, func(ctx context.Context, r store.Repos) error {
		ls, err := r.Levels.Get(ctx, lvl)
		if errors.Is(err, errors.ErrNotFound) {
			return errors.Wrapf(errors.ErrInvalidLevel, "level %d", lvl)
		}
		if err != nil {
			return err
		}

		if amount.LessThan(ls.MinStake) {
			return errors.Wrapf(errors.ErrStakeTooSmall, "minimum for level %d is %s", lvl, ls.MinStake)
		}

		if _, err := r.Positions.GetAliveByOwner(ctx, owner); err == nil {
			return errors.Wrapf(errors.ErrPositionExists, "owner %s", owner)
		} else if !errors.Is(err, errors.ErrPositionNotFound) {
			return err
		}

		if ls.Full() {
			culled, err = s.cullOldest(ctx, r, ls, owner, now)
			if err != nil {
				return err
			}
		}

		seq, err := r.Positions.NextEntrySeq(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to allocate entry sequence")
		}

		timer, err := s.loadTimer(ctx, r, now)
		if err != nil {
			return err
		}

		p := &position.Position{
			ID:          uuid.New(),
			Owner:       owner,
			Level:       lvl,
			Amount:      amount,
			RewardDebt:  level.RewardDebt(amount, ls.AccRewardsPerShare),
			Pending:     decimal.Zero,
			EntrySeq:    seq,
			SyncedEpoch: timer.Epoch,
			SyncedScans: ls.CompletedScans,
			Alive:       true,
			EnteredAt:   now,
			LastAddAt:   now,
			UpdatedAt:   now,
		}
		if err := r.Positions.Create(ctx, p); err != nil {
			return errors.Wrap(err, "failed to create position")
		}

		ls.AliveCount++
		ls.TotalStaked = ls.TotalStaked.Add(amount)
		ls.UpdatedAt = now
		if err := r.Levels.Update(ctx, ls); err != nil {
			return errors.Wrap(err, "failed to update level state")
		}

		if err := s.extendTimer(ctx, r, timer, owner, amount, now); err != nil {
			return err
		}

		// Deposit is the last step: any earlier failure rolls back with no
		// value having moved.
		if err := s.ledger.Transfer(ctx, payout.TransferRef(ctx), token.Account(position.PayoutAccount(owner)), s.accounts.Pool, amount); err != nil {
			return errors.Wrapf(errors.ErrTransferFailed, "deposit from %s: %v", owner, err)
		}

		created = p
		return nil
	})
	if err != nil {
		metrics.LedgerOperations.WithLabelValues("enter", "error").Inc()
		return nil, err
	}

	metrics.LedgerOperations.WithLabelValues("enter", "success").Inc()
	if culled != nil {
		s.pub.PositionCulled(ctx, *culled)
	}
	s.pub.PositionEntered(ctx, events.PositionEntered{
		Owner:    owner,
		Level:    lvl,
		Amount:   amount,
		EntrySeq: created.EntrySeq,
	})

	s.log.Infow("Position entered",
		"owner", owner,
		"level", lvl,
		"amount", amount,
	)
	return created, nil
}

// AddStake increases the caller's position. The level never changes; the
// hold clock and the global reset countdown restart.
func (s *Service) AddStake(ctx context.Context, owner uuid.UUID, amount decimal.Decimal) (*position.Position, error) {
	if amount.Sign() <= 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "amount must be positive")
	}

	now := s.now()
	var updated *position.Position

	err := s.gateway.Execute(ctx, func(ctx context.Context, r store.Repos) error {
		p, ls, err := s.loadAlive(ctx, r, owner)
		if err != nil {
			return err
		}

		if err := SyncPosition(ctx, r, p, ls); err != nil {
			return err
		}
		Settle(p, ls)

		p.Amount = p.Amount.Add(amount)
		p.RewardDebt = level.RewardDebt(p.Amount, ls.AccRewardsPerShare)
		p.LastAddAt = now
		p.UpdatedAt = now
		if err := r.Positions.Update(ctx, p); err != nil {
			return errors.Wrap(err, "failed to update position")
		}

		ls.TotalStaked = ls.TotalStaked.Add(amount)
		ls.UpdatedAt = now
		if err := r.Levels.Update(ctx, ls); err != nil {
			return errors.Wrap(err, "failed to update level state")
		}

		timer, err := s.loadTimer(ctx, r, now)
		if err != nil {
			return err
		}
		if err := s.extendTimer(ctx, r, timer, owner, amount, now); err != nil {
			return err
		}

		if err := s.ledger.Transfer(ctx, payout.TransferRef(ctx), token.Account(position.PayoutAccount(owner)), s.accounts.Pool, amount); err != nil {
			return errors.Wrapf(errors.ErrTransferFailed, "deposit from %s: %v", owner, err)
		}

		updated = p
		return nil
	})
	if err != nil {
		metrics.LedgerOperations.WithLabelValues("add_stake", "error").Inc()
		return nil, err
	}

	metrics.LedgerOperations.WithLabelValues("add_stake", "success").Inc()
	s.pub.StakeAdded(ctx, events.StakeAdded{
		Owner:     owner,
		Level:     updated.Level,
		Added:     amount,
		NewAmount: updated.Amount,
	})
	return updated, nil
}

// Extract removes the caller's position and pays out stake plus settled
// rewards. Fails with ErrPositionLocked inside the pre-scan lock window,
// while a scan is in flight, or before the minimum hold elapses.
func (s *Service) Extract(ctx context.Context, owner uuid.UUID) (decimal.Decimal, error) {
	now := s.now()
	var paid, stake, rewards decimal.Decimal
	var lvl int

	err := s.gateway.Execute(ctx, func(ctx context.Context, r store.Repos) error {
		p, ls, err := s.loadAlive(ctx, r, owner)
		if err != nil {
			return err
		}

		if ls.InLockWindow(now, s.game.LockWindow) {
			return errors.Wrapf(errors.ErrPositionLocked, "level %d scan at %s", p.Level, ls.NextScanAt)
		}
		if _, err := r.Scans.GetOpenByLevel(ctx, p.Level); err == nil {
			return errors.Wrapf(errors.ErrPositionLocked, "level %d scan in flight", p.Level)
		} else if !errors.Is(err, errors.ErrScanNotFound) {
			return err
		}
		if s.game.MinHold > 0 && now.Before(p.LastAddAt.Add(s.game.MinHold)) {
			return errors.Wrapf(errors.ErrPositionLocked, "hold until %s", p.LastAddAt.Add(s.game.MinHold))
		}

		if err := SyncPosition(ctx, r, p, ls); err != nil {
			return err
		}
		Settle(p, ls)

		stake = p.Amount
		rewards = p.Pending
		paid = stake.Add(rewards)
		lvl = p.Level

		p.Alive = false
		p.ExitKind = position.ExitExtracted
		p.Pending = decimal.Zero
		p.ExitedAt = &now
		p.UpdatedAt = now
		if err := r.Positions.Update(ctx, p); err != nil {
			return errors.Wrap(err, "failed to update position")
		}

		ls.AliveCount--
		ls.TotalStaked = ls.TotalStaked.Sub(stake)
		ls.UpdatedAt = now
		if err := r.Levels.Update(ctx, ls); err != nil {
			return errors.Wrap(err, "failed to update level state")
		}

		return s.gateway.PayUser(ctx, r, payout.KindExtract, owner, paid)
	})
	if err != nil {
		metrics.LedgerOperations.WithLabelValues("extract", "error").Inc()
		return decimal.Zero, err
	}

	metrics.LedgerOperations.WithLabelValues("extract", "success").Inc()
	s.pub.PositionExtracted(ctx, events.PositionExtracted{
		Owner:   owner,
		Level:   lvl,
		Amount:  stake,
		Rewards: rewards,
	})

	s.log.Infow("Position extracted", "owner", owner, "level", lvl, "paid", paid)
	return paid, nil
}

// ClaimRewards pays out the caller's settled rewards without touching the
// stake. Claiming is the other moment a lazily-owed reset haircut lands.
func (s *Service) ClaimRewards(ctx context.Context, owner uuid.UUID) (decimal.Decimal, error) {
	now := s.now()
	var claimed decimal.Decimal
	var lvl int

	err := s.gateway.Execute(ctx, func(ctx context.Context, r store.Repos) error {
		p, ls, err := s.loadAlive(ctx, r, owner)
		if err != nil {
			return err
		}

		if err := SyncPosition(ctx, r, p, ls); err != nil {
			return err
		}
		Settle(p, ls)

		claimed = p.Pending
		lvl = p.Level
		if claimed.IsZero() {
			// Sync results still need to land even with nothing to pay.
			p.UpdatedAt = now
			return r.Positions.Update(ctx, p)
		}

		p.Pending = decimal.Zero
		p.UpdatedAt = now
		if err := r.Positions.Update(ctx, p); err != nil {
			return errors.Wrap(err, "failed to update position")
		}

		return s.gateway.PayUser(ctx, r, payout.KindRewards, owner, claimed)
	})
	if err != nil {
		metrics.LedgerOperations.WithLabelValues("claim", "error").Inc()
		return decimal.Zero, err
	}

	metrics.LedgerOperations.WithLabelValues("claim", "success").Inc()
	if !claimed.IsZero() {
		s.pub.RewardsClaimed(ctx, events.RewardsClaimed{
			Owner:  owner,
			Level:  lvl,
			Amount: claimed,
		})
	}
	return claimed, nil
}

// GetPosition returns the owner's alive position with lazy syncs applied
// read-only (the stored row is not mutated).
func (s *Service) GetPosition(ctx context.Context, owner uuid.UUID) (*position.Position, error) {
	r := s.store.Repos()
	p, err := r.Positions.GetAliveByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	ls, err := r.Levels.Get(ctx, p.Level)
	if err != nil {
		return nil, err
	}
	if err := SyncPosition(ctx, r, p, ls); err != nil {
		return nil, err
	}
	Settle(p, ls)
	return p, nil
}

// History returns the owner's full position history, dead positions included.
func (s *Service) History(ctx context.Context, owner uuid.UUID) ([]*position.Position, error) {
	return s.store.Repos().Positions.ListByOwner(ctx, owner)
}

// Levels returns all level states.
func (s *Service) Levels(ctx context.Context) ([]*level.State, error) {
	return s.store.Repos().Levels.GetAll(ctx)
}

// loadAlive fetches the owner's alive position together with its level state
func (s *Service) loadAlive(ctx context.Context, r store.Repos, owner uuid.UUID) (*position.Position, *level.State, error) {
	p, err := r.Positions.GetAliveByOwner(ctx, owner)
	if err != nil {
		return nil, nil, err
	}
	ls, err := r.Levels.Get(ctx, p.Level)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "level %d", p.Level)
	}
	return p, ls, nil
}

// loadTimer fetches the global reset timer, initializing it on first use
func (s *Service) loadTimer(ctx context.Context, r store.Repos, now time.Time) (*reset.Timer, error) {
	timer, err := r.Reset.GetTimer(ctx)
	if errors.Is(err, errors.ErrNotFound) {
		timer = &reset.Timer{
			Deadline:   now.Add(s.resetCfg.InitialCountdown),
			PenaltyBps: s.resetCfg.PenaltyBps,
			UpdatedAt:  now,
		}
		if err := r.Reset.SaveTimer(ctx, timer); err != nil {
			return nil, errors.Wrap(err, "failed to initialize reset timer")
		}
		return timer, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load reset timer")
	}
	return timer, nil
}

// extendTimer applies the deposit-tier deadline extension and records the
// depositor as the current jackpot candidate
func (s *Service) extendTimer(ctx context.Context, r store.Repos, timer *reset.Timer, owner uuid.UUID, amount decimal.Decimal, now time.Time) error {
	ext := reset.Extension(amount, s.resetCfg.TierThresholds, s.resetCfg.TierExtensions)
	timer.Deadline = reset.ExtendDeadline(timer.Deadline, now, ext, s.resetCfg.MaxExtension)
	timer.LastDepositor = &owner
	timer.UpdatedAt = now
	return r.Reset.SaveTimer(ctx, timer)
}
