package ledger

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"reaper/internal/domain/level"
	"reaper/internal/domain/position"
	"reaper/internal/events"
	"reaper/internal/metrics"
	"reaper/internal/services/payout"
	"reaper/internal/store"
	"reaper/pkg/errors"
)

// cullOldest evicts the longest-resident position of a full level to make
// room for an incoming entry. The victim keeps a partial refund plus settled
// rewards; the forfeited remainder is split between the level's survivors
// and the burn account. Aggregates on ls are mutated in place but not
// persisted; the caller writes the level row once.
func (s *Service) cullOldest(ctx context.Context, r store.Repos, ls *level.State, entrant uuid.UUID, now time.Time) (*events.PositionCulled, error) {
	victim, err := r.Positions.OldestAlive(ctx, ls.Level)
	if err != nil {
		return nil, errors.Wrapf(err, "full level %d has no evictable position", ls.Level)
	}
	if victim.Owner == entrant {
		return nil, errors.Wrap(errors.ErrInvalidInput, "entrant already holds the oldest position")
	}

	if err := SyncPosition(ctx, r, victim, ls); err != nil {
		return nil, err
	}
	Settle(victim, ls)

	stake := victim.Amount
	refunded := level.BpsShare(stake, 10000-s.game.CullPenaltyBps)
	refund := refunded.Add(victim.Pending)
	forfeit := stake.Sub(refunded)

	victim.Alive = false
	victim.ExitKind = position.ExitCulled
	victim.Pending = decimal.Zero
	victim.ExitedAt = &now
	victim.UpdatedAt = now
	if err := r.Positions.Update(ctx, victim); err != nil {
		return nil, errors.Wrap(err, "failed to update culled position")
	}

	ls.AliveCount--
	ls.TotalStaked = ls.TotalStaked.Sub(stake)

	if err := s.gateway.PayUser(ctx, r, payout.KindCullRefund, victim.Owner, refund); err != nil {
		return nil, err
	}

	// Survivor share accrues to the remaining stakers of the same level;
	// with nobody left the whole forfeit burns.
	accDelta, _, burn := level.MiniCascade(forfeit, s.game.CullSurvivorBps, ls.TotalStaked)
	ls.AccRewardsPerShare = ls.AccRewardsPerShare.Add(accDelta)

	if burn.Sign() > 0 {
		if err := s.gateway.Burn(ctx, r, burn); err != nil {
			return nil, err
		}
	}

	metrics.Cullings.WithLabelValues(levelLabel(ls.Level)).Inc()

	return &events.PositionCulled{
		Owner:    victim.Owner,
		Level:    ls.Level,
		Refunded: refund,
		Forfeit:  forfeit,
		Evictor:  entrant,
	}, nil
}

func levelLabel(lvl int) string {
	return strconv.Itoa(lvl)
}
