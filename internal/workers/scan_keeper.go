package workers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"reaper/internal/adapters/redis"
	scandomain "reaper/internal/domain/scan"
	scansvc "reaper/internal/services/scan"
	"reaper/internal/store"
	"reaper/pkg/errors"
)

const scanKeeperLock = "keeper:scan"

// ScanKeeper cranks the scan state machine for every level: commit when due,
// activate when the beacon round lands, compute and submit the death set,
// finalize when the window elapses. All transitions are permissionless, the
// keeper just makes sure somebody turns the crank. A redis lock keeps
// replicas from cranking concurrently.
type ScanKeeper struct {
	*BaseWorker
	scans  *scansvc.Service
	store  store.Store
	redis  *redis.Client
	levels int
}

// NewScanKeeper creates a new scan keeper
func NewScanKeeper(scans *scansvc.Service, st store.Store, rdb *redis.Client, levels int, interval time.Duration, enabled bool) *ScanKeeper {
	return &ScanKeeper{
		BaseWorker: NewBaseWorker("scan_keeper", interval, enabled),
		scans:      scans,
		store:      st,
		redis:      rdb,
		levels:     levels,
	}
}

// Run executes one keeper pass over all levels
func (k *ScanKeeper) Run(ctx context.Context) error {
	if k.redis != nil {
		ok, err := k.redis.AcquireLock(ctx, scanKeeperLock, k.Interval())
		if err != nil {
			return errors.Wrap(err, "acquire keeper lock")
		}
		if !ok {
			return nil
		}
		defer func() {
			if err := k.redis.ReleaseLock(ctx, scanKeeperLock); err != nil {
				k.Log().Warnf("Failed to release keeper lock: %v", err)
			}
		}()
	}

	for lvl := 1; lvl <= k.levels; lvl++ {
		if err := k.crankLevel(ctx, lvl); err != nil {
			k.Log().Errorw("Keeper crank failed", "level", lvl, "error", err)
		}
	}
	return nil
}

func (k *ScanKeeper) crankLevel(ctx context.Context, lvl int) error {
	if _, err := k.scans.ExecuteScan(ctx, lvl); err != nil && !expectedCrankErr(err) {
		return err
	}
	if _, err := k.scans.ActivateScan(ctx, lvl); err != nil && !expectedCrankErr(err) {
		return err
	}

	sc, err := k.scans.OpenScan(ctx, lvl)
	if errors.Is(err, errors.ErrScanNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	now := time.Now()
	switch {
	case sc.WindowOpen(now):
		return k.submitDeaths(ctx, sc)
	case sc.WindowElapsed(now):
		_, err := k.scans.FinalizeScan(ctx, lvl)
		if err != nil && !expectedCrankErr(err) {
			return err
		}
	}
	return nil
}

// submitDeaths computes the death set from the published seed and submits it
func (k *ScanKeeper) submitDeaths(ctx context.Context, sc *scandomain.Scan) error {
	r := k.store.Repos()

	ls, err := r.Levels.Get(ctx, sc.Level)
	if err != nil {
		return err
	}
	alive, err := r.Positions.ListAliveByLevel(ctx, sc.Level)
	if err != nil {
		return err
	}

	var dead []uuid.UUID
	for _, p := range alive {
		if scandomain.IsDead(sc.Seed, p.Owner, ls.DeathRateBps) {
			dead = append(dead, p.Owner)
		}
	}
	if len(dead) == 0 {
		return nil
	}

	accepted, err := k.scans.SubmitDeaths(ctx, sc.Level, dead)
	if err != nil {
		// The window can close between the read and the submit.
		if errors.Is(err, errors.ErrWindowClosed) {
			return nil
		}
		return err
	}

	if len(accepted) > 0 {
		k.Log().Infow("Deaths submitted", "level", sc.Level, "count", len(accepted))
	}
	return nil
}

// expectedCrankErr filters states where the crank simply is not due yet
func expectedCrankErr(err error) bool {
	return errors.Is(err, errors.ErrScanNotDue) ||
		errors.Is(err, errors.ErrScanActive) ||
		errors.Is(err, errors.ErrScanNotFound) ||
		errors.Is(err, errors.ErrSeedNotReady) ||
		errors.Is(err, errors.ErrSeedAlreadySet) ||
		errors.Is(err, errors.ErrWindowOpen)
}
