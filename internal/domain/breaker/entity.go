package breaker

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// State is the global circuit breaker singleton gating all outbound value.
// TripSeq increments on every trip; recovery proposals pin the sequence they
// were filed under, so a later trip permanently invalidates them.
type State struct {
	Tripped    bool       `db:"tripped"`
	TrippedAt  *time.Time `db:"tripped_at"`
	TripReason *string    `db:"trip_reason"`
	TripSeq    int64      `db:"trip_seq"`

	HourWindowStart time.Time       `db:"hour_window_start"`
	HourlyTotal     decimal.Decimal `db:"hourly_total"`
	DayWindowStart  time.Time       `db:"day_window_start"`
	DailyTotal      decimal.Decimal `db:"daily_total"`

	UpdatedAt time.Time `db:"updated_at"`
}

// RollWindows resets any rolling counter whose window has naturally elapsed
func (s *State) RollWindows(now time.Time) {
	if now.Sub(s.HourWindowStart) >= time.Hour {
		s.HourWindowStart = now
		s.HourlyTotal = decimal.Zero
	}
	if now.Sub(s.DayWindowStart) >= 24*time.Hour {
		s.DayWindowStart = now
		s.DailyTotal = decimal.Zero
	}
}

// Trip marks the breaker tripped and bumps the sequence
func (s *State) Trip(now time.Time, reason string) {
	s.Tripped = true
	s.TrippedAt = &now
	s.TripReason = &reason
	s.TripSeq++
}

// Proposal is a timelocked request to re-arm a tripped breaker
type Proposal struct {
	ID       uuid.UUID `db:"id"`
	Proposer string    `db:"proposer"`

	// TripSeq is the breaker sequence the proposal answers. A re-trip after
	// filing makes the proposal permanently non-executable.
	TripSeq int64 `db:"trip_seq"`

	ExecuteAfter time.Time `db:"execute_after"`
	ExpiresAt    time.Time `db:"expires_at"`

	Vetoed     bool       `db:"vetoed"`
	VetoReason *string    `db:"veto_reason"`
	VetoedAt   *time.Time `db:"vetoed_at"`

	Executed   bool       `db:"executed"`
	ExecutedAt *time.Time `db:"executed_at"`

	CreatedAt time.Time `db:"created_at"`
}
