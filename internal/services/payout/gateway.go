package payout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"reaper/internal/domain/breaker"
	"reaper/internal/domain/position"
	"reaper/internal/domain/token"
	"reaper/internal/events"
	"reaper/internal/metrics"
	"reaper/internal/store"
	"reaper/pkg/errors"
	"reaper/pkg/logger"
)

// Kind labels what a payout settles
type Kind string

const (
	KindExtract    Kind = "extract"
	KindRewards    Kind = "rewards"
	KindJackpot    Kind = "jackpot"
	KindCullRefund Kind = "cull_refund"
)

// String returns string representation
func (k Kind) String() string {
	return string(k)
}

// Ceilings are the breaker trip thresholds
type Ceilings struct {
	SinglePayoutMax decimal.Decimal
	HourlyPayoutMax decimal.Decimal
	DailyPayoutMax  decimal.Decimal
}

// TripError signals that a payout violated a ceiling. The surrounding
// operation rolls back, but Execute commits the trip itself in a fresh
// transaction: the payment never happens, the halt always does.
type TripError struct {
	Reason string
	Kind   Kind
	Amount decimal.Decimal
}

// Error implements the error interface
func (e *TripError) Error() string {
	return fmt.Sprintf("%s: %s payout of %s", e.Reason, e.Kind, e.Amount)
}

// Unwrap makes TripError match errors.ErrBreakerTripped
func (e *TripError) Unwrap() error {
	return errors.ErrBreakerTripped
}

// Gateway is the single chokepoint for outbound value. Every user payout is
// metered against the circuit breaker's rolling windows; burns and protocol
// routing are gated but not metered.
type Gateway struct {
	store    store.Store
	ledger   token.Ledger
	accounts token.Accounts
	ceilings Ceilings
	pub      *events.Publisher
	log      *logger.Logger
	now      func() time.Time
}

// NewGateway creates a new payout gateway
func NewGateway(st store.Store, ledger token.Ledger, accounts token.Accounts, ceilings Ceilings, pub *events.Publisher, log *logger.Logger) *Gateway {
	return &Gateway{
		store:    st,
		ledger:   ledger,
		accounts: accounts,
		ceilings: ceilings,
		pub:      pub,
		log:      log.With("component", "payout_gateway"),
		now:      time.Now,
	}
}

// Execute runs a state transition that may pay out. fn runs inside one store
// transaction; payouts within it call PayUser/Burn/ToProtocol with the
// transaction's repos. If fn fails because a payout tripped the breaker, the
// trip is committed separately before the error is returned.
//
// Every attempt of fn runs under a transfer scope seeded with one operation
// id, so the ledger refs a retried attempt generates match the refs of the
// attempt it replaces.
func (g *Gateway) Execute(ctx context.Context, fn func(ctx context.Context, r store.Repos) error) error {
	op := uuid.New()
	err := g.store.WithinTx(ctx, func(ctx context.Context, r store.Repos) error {
		return fn(WithTransferScope(ctx, op), r)
	})

	var te *TripError
	if errors.As(err, &te) {
		g.commitTrip(ctx, te)
		metrics.Payouts.WithLabelValues(te.Kind.String(), "rejected").Inc()
	}
	return err
}

// freshState initializes breaker state on first use
func freshState(now time.Time) *breaker.State {
	return &breaker.State{
		HourWindowStart: now,
		HourlyTotal:     decimal.Zero,
		DayWindowStart:  now,
		DailyTotal:      decimal.Zero,
		UpdatedAt:       now,
	}
}

func loadState(ctx context.Context, r store.Repos, now time.Time) (*breaker.State, error) {
	st, err := r.Breaker.GetState(ctx)
	if errors.Is(err, errors.ErrNotFound) {
		return freshState(now), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load breaker state")
	}
	return st, nil
}

// PayUser pays an owner from the pool within the caller's transaction,
// metering the amount against the breaker ceilings. Callers should make
// payouts the last step of their transition: the ledger transfer itself
// cannot be rolled back.
func (g *Gateway) PayUser(ctx context.Context, r store.Repos, kind Kind, owner uuid.UUID, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return nil
	}

	now := g.now()
	st, err := loadState(ctx, r, now)
	if err != nil {
		return err
	}

	st.RollWindows(now)

	if st.Tripped {
		metrics.Payouts.WithLabelValues(kind.String(), "rejected").Inc()
		return errors.Wrapf(errors.ErrBreakerTripped, "%s payout of %s rejected", kind, amount)
	}

	hourly := st.HourlyTotal.Add(amount)
	daily := st.DailyTotal.Add(amount)

	var reason string
	switch {
	case amount.GreaterThan(g.ceilings.SinglePayoutMax):
		reason = "single payout ceiling exceeded"
	case hourly.GreaterThan(g.ceilings.HourlyPayoutMax):
		reason = "hourly payout ceiling exceeded"
	case daily.GreaterThan(g.ceilings.DailyPayoutMax):
		reason = "daily payout ceiling exceeded"
	}
	if reason != "" {
		return &TripError{Reason: reason, Kind: kind, Amount: amount}
	}

	st.HourlyTotal = hourly
	st.DailyTotal = daily
	st.UpdatedAt = now
	if err := r.Breaker.SaveState(ctx, st); err != nil {
		return errors.Wrap(err, "failed to meter payout")
	}

	if err := g.ledger.Transfer(ctx, TransferRef(ctx), g.accounts.Pool, token.Account(position.PayoutAccount(owner)), amount); err != nil {
		return errors.Wrapf(errors.ErrTransferFailed, "%s payout to %s: %v", kind, owner, err)
	}

	metrics.Payouts.WithLabelValues(kind.String(), "paid").Inc()
	pv, _ := amount.Float64()
	metrics.PayoutValue.WithLabelValues(kind.String()).Add(pv)

	g.log.Debugw("Payout sent", "kind", kind, "owner", owner, "amount", amount)
	return nil
}

// Burn moves value from the pool to the burn account. Gated by the breaker,
// not metered against the spend ceilings.
func (g *Gateway) Burn(ctx context.Context, r store.Repos, amount decimal.Decimal) error {
	return g.route(ctx, r, g.accounts.Burn, amount, "burn")
}

// ToProtocol moves value from the pool to the protocol account. Gated by the
// breaker, not metered.
func (g *Gateway) ToProtocol(ctx context.Context, r store.Repos, amount decimal.Decimal) error {
	return g.route(ctx, r, g.accounts.Protocol, amount, "protocol")
}

func (g *Gateway) route(ctx context.Context, r store.Repos, to token.Account, amount decimal.Decimal, what string) error {
	if amount.Sign() <= 0 {
		return nil
	}

	st, err := loadState(ctx, r, g.now())
	if err != nil {
		return err
	}
	if st.Tripped {
		return errors.Wrapf(errors.ErrBreakerTripped, "%s routing of %s rejected", what, amount)
	}

	if err := g.ledger.Transfer(ctx, TransferRef(ctx), g.accounts.Pool, to, amount); err != nil {
		return errors.Wrapf(errors.ErrTransferFailed, "%s routing of %s: %v", what, amount, err)
	}
	return nil
}

// commitTrip persists a ceiling violation in its own transaction so the trip
// survives the rollback of the operation that caused it.
func (g *Gateway) commitTrip(ctx context.Context, te *TripError) {
	now := g.now()
	var seq int64

	err := g.store.WithinTx(ctx, func(ctx context.Context, r store.Repos) error {
		st, err := loadState(ctx, r, now)
		if err != nil {
			return err
		}
		st.RollWindows(now)
		if !st.Tripped {
			st.Trip(now, te.Reason)
		}
		seq = st.TripSeq
		st.UpdatedAt = now
		return r.Breaker.SaveState(ctx, st)
	})
	if err != nil {
		g.log.Errorf("Failed to commit breaker trip: %v", err)
		return
	}

	metrics.BreakerTrips.Inc()
	metrics.BreakerTripped.Set(1)
	g.log.Warnw("Circuit breaker tripped",
		"reason", te.Reason,
		"kind", te.Kind,
		"amount", te.Amount,
	)
	g.pub.BreakerTripped(ctx, events.BreakerTripped{TripSeq: seq, Reason: te.Reason})
}
