package payout

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

type transferScopeKey struct{}

// transferScope derives the idempotency refs for every ledger transfer made
// inside one operation. Refs are keyed by the operation id plus a counter, so
// a retried transaction attempt regenerates the same ref sequence and the
// external ledger deduplicates transfers that already settled in a failed
// attempt.
type transferScope struct {
	op   uuid.UUID
	next atomic.Int64
}

// WithTransferScope binds a fresh ref sequence for operation op to ctx.
// Execute installs one per transaction attempt; outside Execute it is only
// needed by callers that invoke PayUser or a deposit transfer directly.
func WithTransferScope(ctx context.Context, op uuid.UUID) context.Context {
	return context.WithValue(ctx, transferScopeKey{}, &transferScope{op: op})
}

// TransferRef returns the next idempotency ref for the operation bound to
// ctx. Without a bound scope it falls back to a one-off random ref.
func TransferRef(ctx context.Context) string {
	sc, ok := ctx.Value(transferScopeKey{}).(*transferScope)
	if !ok {
		return uuid.NewString()
	}
	return fmt.Sprintf("%s:%d", sc.op, sc.next.Add(1))
}
