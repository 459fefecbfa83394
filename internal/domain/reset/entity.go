package reset

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Timer is the global reset countdown singleton. Deposits push the deadline
// out; once it passes anyone may trigger the reset.
type Timer struct {
	Deadline      time.Time  `db:"deadline"`
	LastDepositor *uuid.UUID `db:"last_depositor"`

	// Epoch counts executed resets. Positions compare their synced epoch
	// against it to discover haircuts they still owe.
	Epoch      int64 `db:"epoch"`
	PenaltyBps int64 `db:"penalty_bps"`

	UpdatedAt time.Time `db:"updated_at"`
}

// Epoch is the durable record of one executed reset. The per-level
// accumulator snapshots let a position replay missed epochs in order:
// settle rewards up to the snapshot, take the haircut, move on.
type Epoch struct {
	Epoch       int64           `db:"epoch"`
	PenaltyBps  int64           `db:"penalty_bps"`
	Jackpot     decimal.Decimal `db:"jackpot"`
	Winner      *uuid.UUID      `db:"winner"`
	TriggeredAt time.Time       `db:"triggered_at"`

	// Levels holds one snapshot per level, keyed by level number.
	Levels map[int]LevelSnapshot `db:"-"`
}

// LevelSnapshot captures a level's accumulator at the moment of a reset
type LevelSnapshot struct {
	Epoch int64           `db:"epoch"`
	Level int             `db:"level"`
	Acc   decimal.Decimal `db:"acc_rewards_per_share"`
}
