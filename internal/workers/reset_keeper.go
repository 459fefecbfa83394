package workers

import (
	"context"
	"time"

	"reaper/internal/adapters/redis"
	resetsvc "reaper/internal/services/reset"
	"reaper/pkg/errors"
)

const resetKeeperLock = "keeper:reset"

// ResetKeeper triggers the global reset once the countdown expires. Like the
// scan keeper, it only does what any caller could do by hand.
type ResetKeeper struct {
	*BaseWorker
	reset *resetsvc.Service
	redis *redis.Client
}

// NewResetKeeper creates a new reset keeper
func NewResetKeeper(reset *resetsvc.Service, rdb *redis.Client, interval time.Duration, enabled bool) *ResetKeeper {
	return &ResetKeeper{
		BaseWorker: NewBaseWorker("reset_keeper", interval, enabled),
		reset:      reset,
		redis:      rdb,
	}
}

// Run checks the deadline and triggers the reset when due
func (k *ResetKeeper) Run(ctx context.Context) error {
	if k.redis != nil {
		ok, err := k.redis.AcquireLock(ctx, resetKeeperLock, k.Interval())
		if err != nil {
			return errors.Wrap(err, "acquire keeper lock")
		}
		if !ok {
			return nil
		}
		defer func() {
			if err := k.redis.ReleaseLock(ctx, resetKeeperLock); err != nil {
				k.Log().Warnf("Failed to release keeper lock: %v", err)
			}
		}()
	}

	due, err := k.reset.Due(ctx)
	if err != nil {
		return err
	}
	if !due {
		return nil
	}

	epoch, err := k.reset.TriggerReset(ctx)
	if errors.Is(err, errors.ErrDeadlineNotReached) {
		// Someone else triggered between the check and the call.
		return nil
	}
	if err != nil {
		return err
	}

	k.Log().Infow("Reset triggered by keeper", "epoch", epoch.Epoch)
	return nil
}
