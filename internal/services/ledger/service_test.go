package ledger

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
	"reaper/internal/domain/reset"
	"reaper/internal/domain/scan"
	"reaper/internal/domain/token"
	"reaper/internal/events"
	"reaper/internal/repository/memory"
	"reaper/internal/services/payout"
	"reaper/internal/store"
	"reaper/pkg/errors"
	"reaper/pkg/logger"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testGame() config.GameConfig {
	return config.GameConfig{
		EngineID: "test-engine",

		LevelMinStakes:    []decimal.Decimal{decimal.NewFromInt(10), decimal.NewFromInt(100)},
		LevelMaxPositions: []int{3, 2},
		LevelScanEvery:    []time.Duration{24 * time.Hour, 12 * time.Hour},
		LevelDeathRateBps: []int64{500, 1000},

		LockWindow:       time.Hour,
		SubmissionWindow: 30 * time.Minute,
		CommitDelta:      5,

		CascadeSurvivorBps: 3000,
		CascadeUpstreamBps: 3000,
		CascadeBurnBps:     3000,
		CascadeProtocolBps: 1000,

		CullPenaltyBps:  8000,
		CullSurvivorBps: 5000,
	}
}

func testReset() config.ResetConfig {
	return config.ResetConfig{
		InitialCountdown: 72 * time.Hour,
		MaxExtension:     72 * time.Hour,

		TierThresholds: []decimal.Decimal{decimal.NewFromInt(10), decimal.NewFromInt(1000)},
		TierExtensions: []time.Duration{15 * time.Minute, 2 * time.Hour},

		PenaltyBps: 500,
		JackpotBps: 5000,
		BurnBps:    3000,
	}
}

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
	pub := events.NewPublisher(nil, "test-engine", log)

	gw := payout.NewGateway(st, bank, accounts, payout.Ceilings{
		SinglePayoutMax: decimal.NewFromInt(1_000_000),
		HourlyPayoutMax: decimal.NewFromInt(10_000_000),
		DailyPayoutMax:  decimal.NewFromInt(100_000_000),
	}, pub, log)

	f := &fixture{st: st, bank: bank, acc: accounts, now: baseTime}

	game := testGame()
	svc := NewService(st, gw, bank, accounts, pub, game, testReset(), log)
	svc.now = func() time.Time { return f.now }
	f.svc = svc

	require.NoError(t, st.WithinTx(context.Background(), func(ctx context.Context, r store.Repos) error {
		for i := range game.LevelMinStakes {
			ls := &level.State{
				Level:              i + 1,
				MinStake:           game.LevelMinStakes[i],
				MaxPositions:       game.LevelMaxPositions[i],
				DeathRateBps:       game.LevelDeathRateBps[i],
				TotalStaked:        decimal.Zero,
				AccRewardsPerShare: decimal.Zero,
				ScanEvery:          game.LevelScanEvery[i],
				NextScanAt:         f.now.Add(game.LevelScanEvery[i]),
				UpdatedAt:          f.now,
			}
			if err := r.Levels.Create(ctx, ls); err != nil {
				return err
			}
		}
		return nil
	}))

	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) fund(owner uuid.UUID, amount int64) {
	f.bank.Mint(token.Account(position.PayoutAccount(owner)), decimal.NewFromInt(amount))
}

func (f *fixture) balance(t *testing.T, account token.Account) decimal.Decimal {
	t.Helper()
	b, err := f.bank.BalanceOf(context.Background(), account)
	require.NoError(t, err)
	return b
}

func (f *fixture) ownerBalance(t *testing.T, owner uuid.UUID) decimal.Decimal {
	t.Helper()
	return f.balance(t, token.Account(position.PayoutAccount(owner)))
}

func (f *fixture) levelState(t *testing.T, lvl int) *level.State {
	t.Helper()
	ls, err := f.st.Repos().Levels.Get(context.Background(), lvl)
	require.NoError(t, err)
	return ls
}

// bumpAcc simulates cascade rewards landing on a level: the accumulator grows
// and the pool is funded with the distributed value.
func (f *fixture) bumpAcc(t *testing.T, lvl int, reward int64) {
	t.Helper()
	require.NoError(t, f.st.WithinTx(context.Background(), func(ctx context.Context, r store.Repos) error {
		ls, err := r.Levels.Get(ctx, lvl)
		if err != nil {
			return err
		}
		delta, _, _ := level.AccDelta(decimal.NewFromInt(reward), ls.TotalStaked)
		ls.AccRewardsPerShare = ls.AccRewardsPerShare.Add(delta)
		return r.Levels.Update(ctx, ls)
	}))
	f.bank.Mint(f.acc.Pool, decimal.NewFromInt(reward))
}

func TestEnter_CreatesPosition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	f.fund(owner, 100)

	p, err := f.svc.Enter(ctx, owner, 1, decimal.NewFromInt(100))
	require.NoError(t, err)

	assert.True(t, p.Alive)
	assert.Equal(t, 1, p.Level)
	assert.EqualValues(t, 1, p.EntrySeq)
	assert.True(t, p.Amount.Equal(decimal.NewFromInt(100)))
	assert.True(t, p.RewardDebt.IsZero(), "fresh accumulator means zero debt")

	assert.True(t, f.balance(t, f.acc.Pool).Equal(decimal.NewFromInt(100)), "deposit lands in the pool")
	assert.True(t, f.ownerBalance(t, owner).IsZero())

	ls := f.levelState(t, 1)
	assert.Equal(t, 1, ls.AliveCount)
	assert.True(t, ls.TotalStaked.Equal(decimal.NewFromInt(100)))

	timer, err := f.st.Repos().Reset.GetTimer(ctx)
	require.NoError(t, err)
	assert.Equal(t, f.now.Add(72*time.Hour), timer.Deadline, "first deposit starts the countdown")
	require.NotNil(t, timer.LastDepositor)
	assert.Equal(t, owner, *timer.LastDepositor)
}

func TestEnter_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	f.fund(owner, 1000)

	_, err := f.svc.Enter(ctx, owner, 99, decimal.NewFromInt(100))
	assert.True(t, errors.Is(err, errors.ErrInvalidLevel))

	_, err = f.svc.Enter(ctx, owner, 1, decimal.NewFromInt(5))
	assert.True(t, errors.Is(err, errors.ErrStakeTooSmall))

	_, err = f.svc.Enter(ctx, owner, 1, decimal.NewFromInt(100))
	require.NoError(t, err)

	_, err = f.svc.Enter(ctx, owner, 2, decimal.NewFromInt(100))
	assert.True(t, errors.Is(err, errors.ErrPositionExists), "one alive position per owner")
}

func TestEnter_InsufficientBalanceRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	_, err := f.svc.Enter(ctx, owner, 1, decimal.NewFromInt(100))
	assert.True(t, errors.Is(err, errors.ErrTransferFailed))

	_, err = f.st.Repos().Positions.GetAliveByOwner(ctx, owner)
	assert.True(t, errors.Is(err, errors.ErrPositionNotFound), "failed entry leaves no position")

	ls := f.levelState(t, 1)
	assert.Equal(t, 0, ls.AliveCount)
	assert.True(t, ls.TotalStaked.IsZero())
}

func TestEnter_FullLevelCullsOldest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, b, c := uuid.New(), uuid.New(), uuid.New()
	f.fund(a, 100)
	f.fund(b, 200)
	f.fund(c, 300)

	_, err := f.svc.Enter(ctx, a, 2, decimal.NewFromInt(100))
	require.NoError(t, err)
	f.advance(time.Minute)
	_, err = f.svc.Enter(ctx, b, 2, decimal.NewFromInt(200))
	require.NoError(t, err)
	f.advance(time.Minute)

	// Level 2 caps at 2 positions: c's entry evicts a, the longest resident.
	_, err = f.svc.Enter(ctx, c, 2, decimal.NewFromInt(300))
	require.NoError(t, err)

	history, err := f.svc.History(ctx, a)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Alive)
	assert.Equal(t, position.ExitCulled, history[0].ExitKind)

	// 80% penalty: a keeps 20, forfeits 80. Half the forfeit accrues to b,
	// the only survivor at cull time, the other half burns.
	assert.True(t, f.ownerBalance(t, a).Equal(decimal.NewFromInt(20)), "refund is the un-penalized remainder")
	assert.True(t, f.balance(t, f.acc.Burn).Equal(decimal.NewFromInt(40)))

	bPos, err := f.svc.GetPosition(ctx, b)
	require.NoError(t, err)
	assert.True(t, bPos.Pending.Equal(decimal.NewFromInt(40)), "survivor accrues the full survivor share")

	ls := f.levelState(t, 2)
	assert.Equal(t, 2, ls.AliveCount)
	assert.True(t, ls.TotalStaked.Equal(decimal.NewFromInt(500)))

	assert.True(t, f.balance(t, f.acc.Pool).Equal(decimal.NewFromInt(540)),
		"pool holds deposits minus refund and burn")
}

func TestEnter_FailedEntryNeverTakesDeposit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	f.fund(owner, 100)

	// Corrupt level 2 so the capacity eviction fails mid-transition: the
	// level looks full but holds no evictable position.
	require.NoError(t, f.st.WithinTx(ctx, func(ctx context.Context, r store.Repos) error {
		ls, err := r.Levels.Get(ctx, 2)
		if err != nil {
			return err
		}
		ls.AliveCount = ls.MaxPositions
		return r.Levels.Update(ctx, ls)
	}))

	_, err := f.svc.Enter(ctx, owner, 2, decimal.NewFromInt(100))
	require.Error(t, err)

	assert.True(t, f.ownerBalance(t, owner).Equal(decimal.NewFromInt(100)),
		"deposit only moves once every earlier step succeeded")
	assert.True(t, f.balance(t, f.acc.Pool).IsZero())

	_, err = f.st.Repos().Positions.GetAliveByOwner(ctx, owner)
	assert.True(t, errors.Is(err, errors.ErrPositionNotFound))
}

func TestAddStake(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	f.fund(owner, 150)

	_, err := f.svc.Enter(ctx, owner, 1, decimal.NewFromInt(100))
	require.NoError(t, err)

	f.advance(time.Hour)
	p, err := f.svc.AddStake(ctx, owner, decimal.NewFromInt(50))
	require.NoError(t, err)

	assert.True(t, p.Amount.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, f.now, p.LastAddAt, "adding stake restarts the hold clock")
	assert.True(t, f.levelState(t, 1).TotalStaked.Equal(decimal.NewFromInt(150)))
}

func TestAddStake_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddStake(ctx, uuid.New(), decimal.NewFromInt(10))
	assert.True(t, errors.Is(err, errors.ErrPositionNotFound))

	owner := uuid.New()
	f.fund(owner, 100)
	_, err = f.svc.Enter(ctx, owner, 1, decimal.NewFromInt(100))
	require.NoError(t, err)

	_, err = f.svc.AddStake(ctx, owner, decimal.Zero)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestExtract_PaysStakePlusRewards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	f.fund(owner, 100)

	_, err := f.svc.Enter(ctx, owner, 1, decimal.NewFromInt(100))
	require.NoError(t, err)

	f.bumpAcc(t, 1, 10)

	paid, err := f.svc.Extract(ctx, owner)
	require.NoError(t, err)
	assert.True(t, paid.Equal(decimal.NewFromInt(110)), "stake plus accrued rewards")
	assert.True(t, f.ownerBalance(t, owner).Equal(decimal.NewFromInt(110)))

	history, err := f.svc.History(ctx, owner)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, position.ExitExtracted, history[0].ExitKind)

	ls := f.levelState(t, 1)
	assert.Equal(t, 0, ls.AliveCount)
	assert.True(t, ls.TotalStaked.IsZero())
}

func TestExtract_LockedInsideLockWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	f.fund(owner, 100)

	_, err := f.svc.Enter(ctx, owner, 1, decimal.NewFromInt(100))
	require.NoError(t, err)

	// Level 1 scans every 24h; 30m before the scan the exit door is shut.
	f.advance(23*time.Hour + 30*time.Minute)
	_, err = f.svc.Extract(ctx, owner)
	assert.True(t, errors.Is(err, errors.ErrPositionLocked))
}

func TestExtract_LockedWhileScanOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	f.fund(owner, 100)

	_, err := f.svc.Enter(ctx, owner, 1, decimal.NewFromInt(100))
	require.NoError(t, err)

	require.NoError(t, f.st.WithinTx(ctx, func(ctx context.Context, r store.Repos) error {
		return r.Scans.Create(ctx, &scan.Scan{
			ID:           uuid.New(),
			Level:        1,
			Seq:          1,
			Status:       scan.StatusCommitted,
			CommitRound:  10,
			DeathCapital: decimal.Zero,
			CreatedAt:    f.now,
		})
	}))

	_, err = f.svc.Extract(ctx, owner)
	assert.True(t, errors.Is(err, errors.ErrPositionLocked))
}

func TestExtract_MinHold(t *testing.T) {
	f := newFixture(t)
	f.svc.game.MinHold = time.Hour
	ctx := context.Background()
	owner := uuid.New()
	f.fund(owner, 100)

	_, err := f.svc.Enter(ctx, owner, 1, decimal.NewFromInt(100))
	require.NoError(t, err)

	f.advance(30 * time.Minute)
	_, err = f.svc.Extract(ctx, owner)
	assert.True(t, errors.Is(err, errors.ErrPositionLocked))

	f.advance(30 * time.Minute)
	_, err = f.svc.Extract(ctx, owner)
	assert.NoError(t, err, "hold elapsed")
}

func TestClaimRewards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	f.fund(owner, 100)

	_, err := f.svc.Enter(ctx, owner, 1, decimal.NewFromInt(100))
	require.NoError(t, err)

	f.bumpAcc(t, 1, 10)

	claimed, err := f.svc.ClaimRewards(ctx, owner)
	require.NoError(t, err)
	assert.True(t, claimed.Equal(decimal.NewFromInt(10)))
	assert.True(t, f.ownerBalance(t, owner).Equal(decimal.NewFromInt(10)))

	claimed, err = f.svc.ClaimRewards(ctx, owner)
	require.NoError(t, err)
	assert.True(t, claimed.IsZero(), "nothing accrues between claims")

	p, err := f.svc.GetPosition(ctx, owner)
	require.NoError(t, err)
	assert.True(t, p.Amount.Equal(decimal.NewFromInt(100)), "claiming never touches the stake")
}

// recordEpoch fabricates an executed reset so positions owe a lazy haircut.
func (f *fixture) recordEpoch(t *testing.T, epoch, penaltyBps int64) {
	t.Helper()
	require.NoError(t, f.st.WithinTx(context.Background(), func(ctx context.Context, r store.Repos) error {
		levels, err := r.Levels.GetAll(ctx)
		if err != nil {
			return err
		}
		snaps := make(map[int]reset.LevelSnapshot, len(levels))
		for _, ls := range levels {
			snaps[ls.Level] = reset.LevelSnapshot{Epoch: epoch, Level: ls.Level, Acc: ls.AccRewardsPerShare}
		}
		return r.Reset.CreateEpoch(ctx, &reset.Epoch{
			Epoch:       epoch,
			PenaltyBps:  penaltyBps,
			Jackpot:     decimal.Zero,
			TriggeredAt: f.now,
			Levels:      snaps,
		})
	}))
}

func TestSyncPosition_ReplaysMissedEpochs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	f.fund(owner, 100)

	_, err := f.svc.Enter(ctx, owner, 1, decimal.NewFromInt(100))
	require.NoError(t, err)

	f.recordEpoch(t, 1, 500)
	f.recordEpoch(t, 2, 500)

	p, err := f.svc.GetPosition(ctx, owner)
	require.NoError(t, err)

	// 5% off twice, compounding: 100 -> 95 -> 90.25.
	expected, _ := decimal.NewFromString("90.25")
	assert.True(t, p.Amount.Equal(expected), "missed haircuts replay in order, got %s", p.Amount)
	assert.EqualValues(t, 2, p.SyncedEpoch)

	// Reads never persist the sync; the stored row still owes it.
	again, err := f.svc.GetPosition(ctx, owner)
	require.NoError(t, err)
	assert.True(t, again.Amount.Equal(expected))
}

func TestSyncPosition_GhostStreak(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	f.fund(owner, 100)

	_, err := f.svc.Enter(ctx, owner, 1, decimal.NewFromInt(100))
	require.NoError(t, err)

	require.NoError(t, f.st.WithinTx(ctx, func(ctx context.Context, r store.Repos) error {
		ls, err := r.Levels.Get(ctx, 1)
		if err != nil {
			return err
		}
		ls.CompletedScans += 3
		return r.Levels.Update(ctx, ls)
	}))

	p, err := f.svc.GetPosition(ctx, owner)
	require.NoError(t, err)
	assert.EqualValues(t, 3, p.GhostStreak, "every survived scan extends the streak")
}
