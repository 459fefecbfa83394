package position

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Position is one owner's stake in a level. An owner holds at most one alive
// position; dead and extracted positions are kept (alive=false) and stay
// queryable indefinitely.
type Position struct {
	ID    uuid.UUID `db:"id"`
	Owner uuid.UUID `db:"owner_id"`

	// Level never changes after creation.
	Level  int             `db:"level"`
	Amount decimal.Decimal `db:"amount"`

	// RewardDebt is the accumulator snapshot taken at the last settlement:
	// amount * accRewardsPerShare / 1e12. Pending holds rewards settled but
	// not yet claimed.
	RewardDebt decimal.Decimal `db:"reward_debt"`
	Pending    decimal.Decimal `db:"pending_rewards"`

	// EntrySeq orders positions for FIFO culling.
	EntrySeq int64 `db:"entry_seq"`

	// SyncedEpoch is the last system-reset epoch applied to this position.
	// SyncedScans is the level's completed-scan count at the last sync; the
	// difference feeds GhostStreak.
	SyncedEpoch int64 `db:"synced_epoch"`
	SyncedScans int64 `db:"synced_scans"`
	GhostStreak int64 `db:"ghost_streak"`

	Alive     bool       `db:"alive"`
	ExitKind  ExitKind   `db:"exit_kind"`
	EnteredAt time.Time  `db:"entered_at"`
	LastAddAt time.Time  `db:"last_add_at"`
	ExitedAt  *time.Time `db:"exited_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

// ExitKind records how a position stopped being alive
type ExitKind string

const (
	ExitNone      ExitKind = ""
	ExitExtracted ExitKind = "extracted"
	ExitDied      ExitKind = "died"
	ExitCulled    ExitKind = "culled"
)

// Valid checks if the exit kind is valid
func (k ExitKind) Valid() bool {
	switch k {
	case ExitNone, ExitExtracted, ExitDied, ExitCulled:
		return true
	}
	return false
}

// String returns string representation
func (k ExitKind) String() string {
	return string(k)
}

// PayoutAccount returns the value-ledger account an owner is paid on
func PayoutAccount(owner uuid.UUID) string {
	return "user:" + owner.String()
}
