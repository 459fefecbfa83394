package reset

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"reaper/internal/adapters/config"
	"reaper/internal/domain/level"
	"reaper/internal/domain/reset"
	"reaper/internal/events"
	"reaper/internal/metrics"
	"reaper/internal/services/payout"
	"reaper/internal/store"
	"reaper/pkg/errors"
	"reaper/pkg/logger"
)

// Service owns the global reset countdown. Deposits extend the deadline
// through the ledger service; this service executes the reset once the
// deadline passes.
type Service struct {
	store   store.Store
	gateway *payout.Gateway
	pub     *events.Publisher
	cfg     config.ResetConfig
	log     *logger.Logger
	now     func() time.Time
}

// NewService creates a new reset service
func NewService(
	st store.Store,
	gateway *payout.Gateway,
	pub *events.Publisher,
	cfg config.ResetConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		store:   st,
		gateway: gateway,
		pub:     pub,
		cfg:     cfg,
		log:     log.With("component", "reset"),
		now:     time.Now,
	}
}

// TriggerReset executes the global reset if the deadline has passed. Anyone
// may call it. Level aggregates take the haircut eagerly; individual
// positions catch up lazily the next time they are touched, replaying the
// epoch snapshot recorded here. The last depositor before the deadline wins
// the jackpot cut of the haircut.
func (s *Service) TriggerReset(ctx context.Context) (*reset.Epoch, error) {
	now := s.now()
	var epoch *reset.Epoch
	var haircut decimal.Decimal

	err := s.gateway.Execute(ctx, func(ctx context.Context, r store.Repos) error {
		timer, err := r.Reset.GetTimer(ctx)
		if errors.Is(err, errors.ErrNotFound) {
			return errors.Wrap(errors.ErrDeadlineNotReached, "countdown not started")
		}
		if err != nil {
			return err
		}
		if now.Before(timer.Deadline) {
			return errors.Wrapf(errors.ErrDeadlineNotReached, "deadline at %s", timer.Deadline)
		}

		levels, err := r.Levels.GetAll(ctx)
		if err != nil {
			return err
		}

		haircut = decimal.Zero
		snapshots := make(map[int]reset.LevelSnapshot, len(levels))
		for _, ls := range levels {
			cut := level.BpsShare(ls.TotalStaked, timer.PenaltyBps)
			haircut = haircut.Add(cut)

			snapshots[ls.Level] = reset.LevelSnapshot{
				Epoch: timer.Epoch + 1,
				Level: ls.Level,
				Acc:   ls.AccRewardsPerShare,
			}

			ls.TotalStaked = ls.TotalStaked.Sub(cut)
			ls.UpdatedAt = now
			if err := r.Levels.Update(ctx, ls); err != nil {
				return errors.Wrapf(err, "failed to update level %d", ls.Level)
			}
		}

		jackpot := level.BpsShare(haircut, s.cfg.JackpotBps)
		burn := level.BpsShare(haircut, s.cfg.BurnBps)
		remainder := haircut.Sub(jackpot).Sub(burn)

		winner := timer.LastDepositor
		if winner != nil && jackpot.Sign() > 0 {
			if err := s.gateway.PayUser(ctx, r, payout.KindJackpot, *winner, jackpot); err != nil {
				return err
			}
		} else if jackpot.Sign() > 0 {
			// No depositor this epoch: the jackpot falls to the protocol.
			remainder = remainder.Add(jackpot)
			jackpot = decimal.Zero
		}
		if burn.Sign() > 0 {
			if err := s.gateway.Burn(ctx, r, burn); err != nil {
				return err
			}
		}
		if remainder.Sign() > 0 {
			if err := s.gateway.ToProtocol(ctx, r, remainder); err != nil {
				return err
			}
		}

		epoch = &reset.Epoch{
			Epoch:       timer.Epoch + 1,
			PenaltyBps:  timer.PenaltyBps,
			Jackpot:     jackpot,
			Winner:      winner,
			TriggeredAt: now,
			Levels:      snapshots,
		}
		if err := r.Reset.CreateEpoch(ctx, epoch); err != nil {
			return errors.Wrap(err, "failed to record reset epoch")
		}

		timer.Epoch = epoch.Epoch
		timer.Deadline = now.Add(s.cfg.InitialCountdown)
		timer.LastDepositor = nil
		timer.PenaltyBps = s.cfg.PenaltyBps
		timer.UpdatedAt = now
		return r.Reset.SaveTimer(ctx, timer)
	})
	if err != nil {
		return nil, err
	}

	metrics.SystemResets.Inc()
	s.pub.SystemReset(ctx, events.SystemReset{
		Epoch:      epoch.Epoch,
		PenaltyBps: epoch.PenaltyBps,
		Haircut:    haircut,
		Jackpot:    epoch.Jackpot,
		Winner:     epoch.Winner,
	})

	s.log.Infow("System reset executed",
		"epoch", epoch.Epoch,
		"haircut", haircut,
		"jackpot", epoch.Jackpot,
	)
	return epoch, nil
}

// Timer returns the current countdown state.
func (s *Service) Timer(ctx context.Context) (*reset.Timer, error) {
	return s.store.Repos().Reset.GetTimer(ctx)
}

// Due reports whether the reset can be triggered at the current time.
func (s *Service) Due(ctx context.Context) (bool, error) {
	timer, err := s.store.Repos().Reset.GetTimer(ctx)
	if errors.Is(err, errors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !s.now().Before(timer.Deadline), nil
}
