package reset

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reaper/internal/adapters/config"
	tokenledger "reaper/internal/adapters/token"
	"reaper/internal/domain/level"
	"reaper/internal/domain/position"
	resetdomain "reaper/internal/domain/reset"
	"reaper/internal/domain/token"
	"reaper/internal/events"
	"reaper/internal/repository/memory"
	"reaper/internal/services/payout"
	"reaper/internal/store"
	"reaper/pkg/errors"
	"reaper/pkg/logger"
)

type fixture struct {
	svc  *Service
	st   *memory.Store
	bank *tokenledger.MemoryLedger
	acc  token.Accounts
	now  time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logger.Get()
	st := memory.NewStore()
	bank := tokenledger.NewMemoryLedger()
	accounts := token.Accounts{Pool: "pool", Burn: "burn", Protocol: "protocol"}
	bank.Mint(accounts.Pool, decimal.NewFromInt(1500))

	f := &fixture{
		st:   st,
		bank: bank,
		acc:  accounts,
		now:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	cfg := config.ResetConfig{
		InitialCountdown: 72 * time.Hour,
		MaxExtension:     72 * time.Hour,
		TierThresholds:   []decimal.Decimal{decimal.NewFromInt(10)},
		TierExtensions:   []time.Duration{15 * time.Minute},
		PenaltyBps:       500,
		JackpotBps:       5000,
		BurnBps:          3000,
	}

	gw := payout.NewGateway(st, bank, accounts, payout.Ceilings{
		SinglePayoutMax: decimal.NewFromInt(1_000_000),
		HourlyPayoutMax: decimal.NewFromInt(10_000_000),
		DailyPayoutMax:  decimal.NewFromInt(100_000_000),
	}, events.NewPublisher(nil, "test-engine", log), log)

	svc := NewService(st, gw, events.NewPublisher(nil, "test-engine", log), cfg, log)
	svc.now = func() time.Time { return f.now }
	f.svc = svc

	require.NoError(t, st.WithinTx(context.Background(), func(ctx context.Context, r store.Repos) error {
		if err := r.Levels.Create(ctx, &level.State{
			Level:              1,
			MinStake:           decimal.NewFromInt(10),
			MaxPositions:       100,
			TotalStaked:        decimal.NewFromInt(1000),
			AccRewardsPerShare: decimal.Zero,
			ScanEvery:          24 * time.Hour,
			NextScanAt:         f.now.Add(24 * time.Hour),
			UpdatedAt:          f.now,
		}); err != nil {
			return err
		}
		return r.Levels.Create(ctx, &level.State{
			Level:              2,
			MinStake:           decimal.NewFromInt(100),
			MaxPositions:       100,
			TotalStaked:        decimal.NewFromInt(500),
			AccRewardsPerShare: decimal.NewFromInt(7).Shift(11),
			ScanEvery:          12 * time.Hour,
			NextScanAt:         f.now.Add(12 * time.Hour),
			UpdatedAt:          f.now,
		})
	}))

	return f
}

func (f *fixture) saveTimer(t *testing.T, timer *resetdomain.Timer) {
	t.Helper()
	require.NoError(t, f.st.WithinTx(context.Background(), func(ctx context.Context, r store.Repos) error {
		return r.Reset.SaveTimer(ctx, timer)
	}))
}

func TestTriggerReset_NotDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.TriggerReset(ctx)
	assert.True(t, errors.Is(err, errors.ErrDeadlineNotReached), "no countdown, nothing to trigger")

	f.saveTimer(t, &resetdomain.Timer{
		Deadline:   f.now.Add(time.Hour),
		PenaltyBps: 500,
		UpdatedAt:  f.now,
	})

	_, err = f.svc.TriggerReset(ctx)
	assert.True(t, errors.Is(err, errors.ErrDeadlineNotReached))

	due, err := f.svc.Due(ctx)
	require.NoError(t, err)
	assert.False(t, due)
}

func TestTriggerReset_HaircutAndJackpot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	winner := uuid.New()

	f.saveTimer(t, &resetdomain.Timer{
		Deadline:      f.now.Add(-time.Minute),
		LastDepositor: &winner,
		Epoch:         0,
		PenaltyBps:    500,
		UpdatedAt:     f.now,
	})

	epoch, err := f.svc.TriggerReset(ctx)
	require.NoError(t, err)

	// 5% of 1500 staked: 75 haircut. 50% jackpot, 30% burn, rest protocol.
	assert.EqualValues(t, 1, epoch.Epoch)
	assert.True(t, epoch.Jackpot.Equal(decimal.RequireFromString("37.5")))
	require.NotNil(t, epoch.Winner)
	assert.Equal(t, winner, *epoch.Winner)

	wb, err := f.bank.BalanceOf(ctx, token.Account(position.PayoutAccount(winner)))
	require.NoError(t, err)
	assert.True(t, wb.Equal(decimal.RequireFromString("37.5")), "last depositor takes the jackpot")

	burn, err := f.bank.BalanceOf(ctx, f.acc.Burn)
	require.NoError(t, err)
	assert.True(t, burn.Equal(decimal.RequireFromString("22.5")))

	proto, err := f.bank.BalanceOf(ctx, f.acc.Protocol)
	require.NoError(t, err)
	assert.True(t, proto.Equal(decimal.NewFromInt(15)), "remainder to protocol, got %s", proto)

	ls1, err := f.st.Repos().Levels.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ls1.TotalStaked.Equal(decimal.NewFromInt(950)), "aggregates take the cut eagerly")
	ls2, err := f.st.Repos().Levels.Get(ctx, 2)
	require.NoError(t, err)
	assert.True(t, ls2.TotalStaked.Equal(decimal.NewFromInt(475)))

	// The epoch snapshot pins each level's accumulator for lazy replay.
	require.Contains(t, epoch.Levels, 2)
	assert.True(t, epoch.Levels[2].Acc.Equal(decimal.NewFromInt(7).Shift(11)))

	timer, err := f.svc.Timer(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, timer.Epoch)
	assert.Equal(t, f.now.Add(72*time.Hour), timer.Deadline, "countdown restarts")
	assert.Nil(t, timer.LastDepositor)

	// Deadline freshly in the future: an immediate re-trigger fails.
	_, err = f.svc.TriggerReset(ctx)
	assert.True(t, errors.Is(err, errors.ErrDeadlineNotReached))
}

func TestTriggerReset_NoDepositorJackpotFallsToProtocol(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.saveTimer(t, &resetdomain.Timer{
		Deadline:   f.now.Add(-time.Minute),
		PenaltyBps: 500,
		UpdatedAt:  f.now,
	})

	epoch, err := f.svc.TriggerReset(ctx)
	require.NoError(t, err)

	assert.True(t, epoch.Jackpot.IsZero())
	assert.Nil(t, epoch.Winner)

	proto, err := f.bank.BalanceOf(ctx, f.acc.Protocol)
	require.NoError(t, err)
	assert.True(t, proto.Equal(decimal.RequireFromString("52.5")),
		"jackpot folds into the protocol remainder, got %s", proto)
}
