package token

import (
	"context"

	"github.com/shopspring/decimal"
)

// Account is an opaque value-ledger account identifier
type Account string

// String returns string representation
func (a Account) String() string {
	return string(a)
}

// Ledger is the port to the external fungible value ledger. The ledger may
// apply its own transfer tax; amounts here are amounts debited from the
// sender, not amounts received.
type Ledger interface {
	// Transfer moves value between accounts. ref is an idempotency key: the
	// ledger executes at most one transfer per ref, so a transaction retry
	// that re-sends the same transfer never moves value twice.
	Transfer(ctx context.Context, ref string, from, to Account, amount decimal.Decimal) error

	// BalanceOf returns an account's balance
	BalanceOf(ctx context.Context, account Account) (decimal.Decimal, error)
}

// Accounts groups the engine's well-known ledger accounts
type Accounts struct {
	Pool     Account
	Burn     Account
	Protocol Account
}
