package token

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"reaper/internal/domain/token"
	"reaper/pkg/errors"
)

// Compile-time check
var _ token.Ledger = (*MemoryLedger)(nil)

// MemoryLedger is an in-process value ledger for tests and local runs.
// Accounts spring into existence at zero; overdrafts fail.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[token.Account]decimal.Decimal
	applied  map[string]bool
}

// NewMemoryLedger creates an empty in-memory ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[token.Account]decimal.Decimal),
		applied:  make(map[string]bool),
	}
}

// Mint credits an account out of thin air, for test setup
func (l *MemoryLedger) Mint(account token.Account, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] = l.balance(account).Add(amount)
}

// Transfer moves value between accounts, at most once per ref
func (l *MemoryLedger) Transfer(ctx context.Context, ref string, from, to token.Account, amount decimal.Decimal) error {
	if amount.Sign() < 0 {
		return errors.Wrap(errors.ErrTransferFailed, "negative amount")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.applied[ref] {
		return nil
	}
	if l.balance(from).LessThan(amount) {
		return errors.Wrapf(errors.ErrInsufficientBalance, "account %s", from)
	}
	l.balances[from] = l.balance(from).Sub(amount)
	l.balances[to] = l.balance(to).Add(amount)
	l.applied[ref] = true
	return nil
}

// BalanceOf returns an account's current balance
func (l *MemoryLedger) BalanceOf(ctx context.Context, account token.Account) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(account), nil
}

func (l *MemoryLedger) balance(account token.Account) decimal.Decimal {
	if b, ok := l.balances[account]; ok {
		return b
	}
	return decimal.Zero
}
