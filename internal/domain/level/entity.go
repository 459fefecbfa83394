package level

import (
	"time"

	"github.com/shopspring/decimal"
)

// State is the per-level aggregate. Every ledger operation at a level mutates
// exactly one State row, which makes the row the serialization point for the
// level.
type State struct {
	Level int `db:"level"`

	MinStake     decimal.Decimal `db:"min_stake"`
	MaxPositions int             `db:"max_positions"`
	DeathRateBps int64           `db:"death_rate_bps"`

	AliveCount  int             `db:"alive_count"`
	TotalStaked decimal.Decimal `db:"total_staked"`

	// AccRewardsPerShare is the cascade accumulator, scaled by 1e12 and kept
	// integer-valued so per-position settlement stays exact.
	AccRewardsPerShare decimal.Decimal `db:"acc_rewards_per_share"`

	ScanEvery      time.Duration `db:"scan_every"`
	NextScanAt     time.Time     `db:"next_scan_at"`
	CompletedScans int64         `db:"completed_scans"`

	UpdatedAt time.Time `db:"updated_at"`
}

// Upstream returns the level eliminated capital flows toward, and whether one
// exists. Level 1 has no upstream; its upstream share folds back into the
// same-level split.
func (s *State) Upstream() (int, bool) {
	if s.Level <= 1 {
		return 0, false
	}
	return s.Level - 1, true
}

// Full reports whether the level is at capacity
func (s *State) Full() bool {
	return s.AliveCount >= s.MaxPositions
}

// InLockWindow reports whether now falls inside the pre-scan lock window
func (s *State) InLockWindow(now time.Time, lockWindow time.Duration) bool {
	return !now.Before(s.NextScanAt.Add(-lockWindow))
}
