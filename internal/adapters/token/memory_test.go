package token

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reaper/pkg/errors"
)

func TestMemoryLedger_Transfer(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()
	l.Mint("pool", decimal.NewFromInt(100))

	require.NoError(t, l.Transfer(ctx, "t1", "pool", "user", decimal.NewFromInt(40)))

	pool, err := l.BalanceOf(ctx, "pool")
	require.NoError(t, err)
	assert.True(t, pool.Equal(decimal.NewFromInt(60)))

	user, err := l.BalanceOf(ctx, "user")
	require.NoError(t, err)
	assert.True(t, user.Equal(decimal.NewFromInt(40)))
}

func TestMemoryLedger_Overdraft(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()
	l.Mint("pool", decimal.NewFromInt(10))

	err := l.Transfer(ctx, "t1", "pool", "user", decimal.NewFromInt(11))
	assert.True(t, errors.Is(err, errors.ErrInsufficientBalance))

	err = l.Transfer(ctx, "t2", "pool", "user", decimal.NewFromInt(-1))
	assert.True(t, errors.Is(err, errors.ErrTransferFailed))
}

func TestMemoryLedger_DuplicateRefAppliesOnce(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()
	l.Mint("pool", decimal.NewFromInt(100))

	require.NoError(t, l.Transfer(ctx, "op:1", "pool", "user", decimal.NewFromInt(40)))
	require.NoError(t, l.Transfer(ctx, "op:1", "pool", "user", decimal.NewFromInt(40)), "resend of a settled ref is a no-op")

	pool, err := l.BalanceOf(ctx, "pool")
	require.NoError(t, err)
	assert.True(t, pool.Equal(decimal.NewFromInt(60)), "value moved exactly once")

	user, err := l.BalanceOf(ctx, "user")
	require.NoError(t, err)
	assert.True(t, user.Equal(decimal.NewFromInt(40)))
}

func TestMemoryLedger_RefDoesNotBlockFailedTransfer(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	err := l.Transfer(ctx, "op:1", "pool", "user", decimal.NewFromInt(40))
	require.True(t, errors.Is(err, errors.ErrInsufficientBalance))

	// A ref only settles on success; the retry goes through once funded.
	l.Mint("pool", decimal.NewFromInt(100))
	require.NoError(t, l.Transfer(ctx, "op:1", "pool", "user", decimal.NewFromInt(40)))

	user, err := l.BalanceOf(ctx, "user")
	require.NoError(t, err)
	assert.True(t, user.Equal(decimal.NewFromInt(40)))
}
