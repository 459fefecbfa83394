package ledger

import (
	"context"

	"reaper/internal/domain/level"
	"reaper/internal/domain/position"
	"reaper/internal/store"
	"reaper/pkg/errors"
)

// SyncPosition catches a position up with global state it missed while
// untouched: reset-epoch haircuts and the ghost streak.
//
// Each executed reset left a per-level accumulator snapshot. Replaying missed
// epochs in order — settle rewards accrued up to the snapshot at the
// pre-haircut amount, take the haircut, re-snapshot the debt — reproduces
// exactly what an eager per-position penalty would have computed. The haircut
// value itself was already routed at trigger time; this is accounting
// catch-up only, so level aggregates are not touched here.
func SyncPosition(ctx context.Context, r store.Repos, p *position.Position, lvl *level.State) error {
	epochs, err := r.Reset.ListEpochsAfter(ctx, p.SyncedEpoch)
	if err != nil {
		return errors.Wrap(err, "failed to list reset epochs")
	}

	for _, e := range epochs {
		accAt := lvl.AccRewardsPerShare
		if snap, ok := e.Levels[p.Level]; ok {
			accAt = snap.Acc
		}

		p.Pending = p.Pending.Add(level.PendingRewards(p.Amount, accAt, p.RewardDebt))

		haircut := level.BpsShare(p.Amount, e.PenaltyBps)
		p.Amount = p.Amount.Sub(haircut)
		p.RewardDebt = level.RewardDebt(p.Amount, accAt)
		p.SyncedEpoch = e.Epoch
	}

	if lvl.CompletedScans > p.SyncedScans {
		p.GhostStreak += lvl.CompletedScans - p.SyncedScans
	}
	p.SyncedScans = lvl.CompletedScans

	return nil
}

// Settle folds rewards accrued since the last settlement into Pending and
// re-snapshots RewardDebt against the current accumulator. Callers must run
// SyncPosition first so the settlement sees a penalty-consistent amount.
func Settle(p *position.Position, lvl *level.State) {
	p.Pending = p.Pending.Add(level.PendingRewards(p.Amount, lvl.AccRewardsPerShare, p.RewardDebt))
	p.RewardDebt = level.RewardDebt(p.Amount, lvl.AccRewardsPerShare)
}
