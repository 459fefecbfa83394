package payout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tokenledger "reaper/internal/adapters/token"
	"reaper/internal/domain/level"
	"reaper/internal/domain/position"
	"reaper/internal/domain/token"
	"reaper/internal/events"
	"reaper/internal/repository/memory"
	"reaper/internal/store"
	"reaper/pkg/errors"
	"reaper/pkg/logger"
)

type fixture struct {
	gw   *Gateway
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
	bank.Mint(accounts.Pool, decimal.NewFromInt(10_000))

	f := &fixture{
		st:   st,
		bank: bank,
		acc:  accounts,
		now:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	gw := NewGateway(st, bank, accounts, Ceilings{
		SinglePayoutMax: decimal.NewFromInt(100),
		HourlyPayoutMax: decimal.NewFromInt(150),
		DailyPayoutMax:  decimal.NewFromInt(200),
	}, events.NewPublisher(nil, "test-engine", log), log)
	gw.now = func() time.Time { return f.now }
	f.gw = gw

	return f
}

func (f *fixture) pay(owner uuid.UUID, amount int64) error {
	return f.gw.Execute(context.Background(), func(ctx context.Context, r store.Repos) error {
		return f.gw.PayUser(ctx, r, KindRewards, owner, decimal.NewFromInt(amount))
	})
}

func (f *fixture) state(t *testing.T) *breakerState {
	t.Helper()
	st, err := f.st.Repos().Breaker.GetState(context.Background())
	require.NoError(t, err)
	return &breakerState{st.Tripped, st.HourlyTotal, st.DailyTotal}
}

type breakerState struct {
	tripped bool
	hourly  decimal.Decimal
	daily   decimal.Decimal
}

func TestPayUser_MetersAndPays(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()

	require.NoError(t, f.pay(owner, 50))

	b, err := f.bank.BalanceOf(context.Background(), token.Account(position.PayoutAccount(owner)))
	require.NoError(t, err)
	assert.True(t, b.Equal(decimal.NewFromInt(50)))

	st := f.state(t)
	assert.False(t, st.tripped)
	assert.True(t, st.hourly.Equal(decimal.NewFromInt(50)))
	assert.True(t, st.daily.Equal(decimal.NewFromInt(50)))
}

func TestPayUser_SingleCeilingTripsAndRollsBack(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()

	// The operation writes a level row before paying out; the trip must roll
	// that write back while the trip itself sticks.
	err := f.gw.Execute(context.Background(), func(ctx context.Context, r store.Repos) error {
		if err := r.Levels.Create(ctx, &level.State{Level: 1, TotalStaked: decimal.Zero, AccRewardsPerShare: decimal.Zero}); err != nil {
			return err
		}
		return f.gw.PayUser(ctx, r, KindExtract, owner, decimal.NewFromInt(150))
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBreakerTripped))

	assert.True(t, f.state(t).tripped, "trip survives the operation rollback")

	_, err = f.st.Repos().Levels.Get(context.Background(), 1)
	assert.True(t, errors.Is(err, errors.ErrNotFound), "operation writes rolled back")

	b, err := f.bank.BalanceOf(context.Background(), token.Account(position.PayoutAccount(owner)))
	require.NoError(t, err)
	assert.True(t, b.IsZero(), "the payment never happened")
}

func TestPayUser_HourlyCeilingTrips(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.pay(uuid.New(), 90))

	err := f.pay(uuid.New(), 90)
	assert.True(t, errors.Is(err, errors.ErrBreakerTripped), "90+90 exceeds the hourly 150")
	assert.True(t, f.state(t).tripped)
}

func TestPayUser_RejectedWhileTripped(t *testing.T) {
	f := newFixture(t)

	require.Error(t, f.pay(uuid.New(), 150))
	require.True(t, f.state(t).tripped)

	before := f.state(t).hourly
	err := f.pay(uuid.New(), 1)
	assert.True(t, errors.Is(err, errors.ErrBreakerTripped), "tripped breaker rejects every payout")
	assert.True(t, f.state(t).hourly.Equal(before), "no metering while tripped")
}

func TestRouting_GatedWhileTripped(t *testing.T) {
	f := newFixture(t)

	require.Error(t, f.pay(uuid.New(), 150))
	require.True(t, f.state(t).tripped)

	err := f.gw.Execute(context.Background(), func(ctx context.Context, r store.Repos) error {
		return f.gw.Burn(ctx, r, decimal.NewFromInt(10))
	})
	assert.True(t, errors.Is(err, errors.ErrBreakerTripped))

	err = f.gw.Execute(context.Background(), func(ctx context.Context, r store.Repos) error {
		return f.gw.ToProtocol(ctx, r, decimal.NewFromInt(10))
	})
	assert.True(t, errors.Is(err, errors.ErrBreakerTripped))
}

func TestPayUser_WindowsRoll(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.pay(uuid.New(), 90))

	f.now = f.now.Add(time.Hour)
	require.NoError(t, f.pay(uuid.New(), 90), "hourly window rolled, 90 fits again")

	st := f.state(t)
	assert.True(t, st.hourly.Equal(decimal.NewFromInt(90)))
	assert.True(t, st.daily.Equal(decimal.NewFromInt(180)), "daily window still accumulating")

	err := f.pay(uuid.New(), 30)
	assert.True(t, errors.Is(err, errors.ErrBreakerTripped), "180+30 exceeds the daily 200")
}

func TestPayUser_ZeroAmountIsNoop(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.pay(uuid.New(), 0))

	_, err := f.st.Repos().Breaker.GetState(context.Background())
	assert.True(t, errors.Is(err, errors.ErrNotFound), "nothing metered, nothing persisted")
}

func TestBurnAndProtocolRouting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.gw.Execute(ctx, func(ctx context.Context, r store.Repos) error {
		if err := f.gw.Burn(ctx, r, decimal.NewFromInt(30)); err != nil {
			return err
		}
		return f.gw.ToProtocol(ctx, r, decimal.NewFromInt(20))
	}))

	burn, err := f.bank.BalanceOf(ctx, f.acc.Burn)
	require.NoError(t, err)
	assert.True(t, burn.Equal(decimal.NewFromInt(30)))

	proto, err := f.bank.BalanceOf(ctx, f.acc.Protocol)
	require.NoError(t, err)
	assert.True(t, proto.Equal(decimal.NewFromInt(20)))
}
