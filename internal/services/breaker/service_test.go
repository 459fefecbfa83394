package breaker

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reaper/internal/adapters/config"
	brdomain "reaper/internal/domain/breaker"
	"reaper/internal/events"
	"reaper/internal/repository/memory"
	"reaper/internal/store"
	"reaper/pkg/errors"
	"reaper/pkg/logger"
)

type fixture struct {
	svc *Service
	st  *memory.Store
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logger.Get()
	st := memory.NewStore()

	f := &fixture{
		st:  st,
		now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	svc := NewService(st, events.NewPublisher(nil, "test-engine", log), config.BreakerConfig{
		Timelock: 12 * time.Hour,
		Expiry:   48 * time.Hour,
	}, log)
	svc.now = func() time.Time { return f.now }
	f.svc = svc

	return f
}

func (f *fixture) trip(t *testing.T, seq int64) {
	t.Helper()
	reason := "single payout ceiling exceeded"
	require.NoError(t, f.st.WithinTx(context.Background(), func(ctx context.Context, r store.Repos) error {
		return r.Breaker.SaveState(ctx, &brdomain.State{
			Tripped:         true,
			TrippedAt:       &f.now,
			TripReason:      &reason,
			TripSeq:         seq,
			HourWindowStart: f.now,
			HourlyTotal:     decimal.NewFromInt(600),
			DayWindowStart:  f.now,
			DailyTotal:      decimal.NewFromInt(600),
			UpdatedAt:       f.now,
		})
	}))
}

func TestProposeReset_RequiresTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ProposeReset(ctx, "ops")
	assert.True(t, errors.Is(err, errors.ErrBreakerNotTripped), "nothing ever tripped")

	require.NoError(t, f.st.WithinTx(ctx, func(ctx context.Context, r store.Repos) error {
		return r.Breaker.SaveState(ctx, &brdomain.State{
			HourWindowStart: f.now,
			HourlyTotal:     decimal.Zero,
			DayWindowStart:  f.now,
			DailyTotal:      decimal.Zero,
			UpdatedAt:       f.now,
		})
	}))

	_, err = f.svc.ProposeReset(ctx, "ops")
	assert.True(t, errors.Is(err, errors.ErrBreakerNotTripped), "armed breaker needs no recovery")
}

func TestExecuteReset_TimelockThenRearm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.trip(t, 1)

	p, err := f.svc.ProposeReset(ctx, "ops")
	require.NoError(t, err)
	assert.EqualValues(t, 1, p.TripSeq)
	assert.Equal(t, f.now.Add(12*time.Hour), p.ExecuteAfter)
	assert.Equal(t, f.now.Add(48*time.Hour), p.ExpiresAt)

	err = f.svc.ExecuteReset(ctx, p.ID)
	assert.True(t, errors.Is(err, errors.ErrTimelockActive))

	f.now = f.now.Add(12 * time.Hour)
	require.NoError(t, f.svc.ExecuteReset(ctx, p.ID))

	state, err := f.svc.State(ctx)
	require.NoError(t, err)
	assert.False(t, state.Tripped)
	assert.Nil(t, state.TripReason)
	assert.True(t, state.HourlyTotal.IsZero(), "re-arming zeroes the rolling counters")
	assert.True(t, state.DailyTotal.IsZero())
	assert.EqualValues(t, 1, state.TripSeq, "the sequence is history, not state")

	err = f.svc.ExecuteReset(ctx, p.ID)
	assert.True(t, errors.Is(err, errors.ErrProposalExecuted), "execution is one-shot")
}

func TestVetoReset_KillsProposal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.trip(t, 1)

	p, err := f.svc.ProposeReset(ctx, "ops")
	require.NoError(t, err)

	require.NoError(t, f.svc.VetoReset(ctx, p.ID, "incident still under review"))

	err = f.svc.VetoReset(ctx, p.ID, "again")
	assert.True(t, errors.Is(err, errors.ErrProposalVetoed))

	f.now = f.now.Add(13 * time.Hour)
	err = f.svc.ExecuteReset(ctx, p.ID)
	assert.True(t, errors.Is(err, errors.ErrProposalVetoed), "a veto can never be undone")
}

func TestExecuteReset_Expiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.trip(t, 1)

	p, err := f.svc.ProposeReset(ctx, "ops")
	require.NoError(t, err)

	f.now = f.now.Add(48 * time.Hour)
	err = f.svc.ExecuteReset(ctx, p.ID)
	assert.True(t, errors.Is(err, errors.ErrProposalExpired))
}

func TestExecuteReset_RetripInvalidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.trip(t, 1)

	p, err := f.svc.ProposeReset(ctx, "ops")
	require.NoError(t, err)

	// The breaker trips again while the proposal matures.
	f.trip(t, 2)

	f.now = f.now.Add(13 * time.Hour)
	err = f.svc.ExecuteReset(ctx, p.ID)
	assert.True(t, errors.Is(err, errors.ErrProposalInvalidated), "proposal pins the old trip")

	// A fresh proposal against the new trip works.
	p2, err := f.svc.ProposeReset(ctx, "ops")
	require.NoError(t, err)
	assert.EqualValues(t, 2, p2.TripSeq)

	f.now = f.now.Add(12 * time.Hour)
	require.NoError(t, f.svc.ExecuteReset(ctx, p2.ID))
}

func TestResetPayoutCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.ResetPayoutCounters(ctx), "no state is a no-op")

	f.trip(t, 1)
	require.NoError(t, f.svc.ResetPayoutCounters(ctx))

	state, err := f.svc.State(ctx)
	require.NoError(t, err)
	assert.True(t, state.HourlyTotal.IsZero())
	assert.True(t, state.DailyTotal.IsZero())
	assert.True(t, state.Tripped, "counters reset never touches the trip")
}

func TestProposals_NewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.trip(t, 1)

	first, err := f.svc.ProposeReset(ctx, "ops")
	require.NoError(t, err)
	f.now = f.now.Add(time.Hour)
	second, err := f.svc.ProposeReset(ctx, "guardian")
	require.NoError(t, err)

	list, err := f.svc.Proposals(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	list, err = f.svc.Proposals(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
