package scan

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the scan lifecycle phase. At most one non-finalized scan exists
// per level.
type Status string

const (
	// StatusCommitted: the scan points at a beacon round that does not exist
	// yet; the seed is unknowable to everyone including the initiator.
	StatusCommitted Status = "committed"

	// StatusActive: the seed is derived and the submission window is open.
	StatusActive Status = "active"

	// StatusFinalized: deaths settled, capital cascaded, level back to idle.
	StatusFinalized Status = "finalized"
)

// Valid checks if the status is valid
func (s Status) Valid() bool {
	switch s {
	case StatusCommitted, StatusActive, StatusFinalized:
		return true
	}
	return false
}

// String returns string representation
func (s Status) String() string {
	return string(s)
}

// Scan is one round of the death-selection lottery for a level
type Scan struct {
	ID    uuid.UUID `db:"id"`
	Level int       `db:"level"`
	Seq   int64     `db:"seq"`

	Status Status `db:"status"`

	// CommitRound is the future beacon round the seed derives from.
	CommitRound uint64 `db:"commit_round"`
	Seed        []byte `db:"seed"`

	WindowOpensAt  *time.Time `db:"window_opens_at"`
	WindowClosesAt *time.Time `db:"window_closes_at"`

	DeathCount   int             `db:"death_count"`
	DeathCapital decimal.Decimal `db:"death_capital"`

	CreatedAt   time.Time  `db:"created_at"`
	FinalizedAt *time.Time `db:"finalized_at"`
}

// WindowOpen reports whether submissions are accepted at t
func (s *Scan) WindowOpen(t time.Time) bool {
	if s.Status != StatusActive || s.WindowOpensAt == nil || s.WindowClosesAt == nil {
		return false
	}
	return !t.Before(*s.WindowOpensAt) && t.Before(*s.WindowClosesAt)
}

// WindowElapsed reports whether the submission window has fully passed at t
func (s *Scan) WindowElapsed(t time.Time) bool {
	return s.Status == StatusActive && s.WindowClosesAt != nil && !t.Before(*s.WindowClosesAt)
}

// Death records one confirmed elimination within a scan
type Death struct {
	ScanID  uuid.UUID       `db:"scan_id"`
	Owner   uuid.UUID       `db:"owner_id"`
	Capital decimal.Decimal `db:"capital"`

	RecordedAt time.Time `db:"recorded_at"`
}
