package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Envelope fields shared by every emitted event
type Envelope struct {
	Type       string    `json:"type"`
	EngineID   string    `json:"engine_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Position lifecycle

type PositionEntered struct {
	Envelope
	Owner    uuid.UUID       `json:"owner"`
	Level    int             `json:"level"`
	Amount   decimal.Decimal `json:"amount"`
	EntrySeq int64           `json:"entry_seq"`
}

type StakeAdded struct {
	Envelope
	Owner     uuid.UUID       `json:"owner"`
	Level     int             `json:"level"`
	Added     decimal.Decimal `json:"added"`
	NewAmount decimal.Decimal `json:"new_amount"`
}

type PositionExtracted struct {
	Envelope
	Owner   uuid.UUID       `json:"owner"`
	Level   int             `json:"level"`
	Amount  decimal.Decimal `json:"amount"`
	Rewards decimal.Decimal `json:"rewards"`
}

type RewardsClaimed struct {
	Envelope
	Owner  uuid.UUID       `json:"owner"`
	Level  int             `json:"level"`
	Amount decimal.Decimal `json:"amount"`
}

type PositionCulled struct {
	Envelope
	Owner    uuid.UUID       `json:"owner"`
	Level    int             `json:"level"`
	Refunded decimal.Decimal `json:"refunded"`
	Forfeit  decimal.Decimal `json:"forfeit"`
	Evictor  uuid.UUID       `json:"evictor"`
}

// Scan lifecycle

type ScanCommitted struct {
	Envelope
	ScanID      uuid.UUID `json:"scan_id"`
	Level       int       `json:"level"`
	Seq         int64     `json:"seq"`
	CommitRound uint64    `json:"commit_round"`
}

type ScanActivated struct {
	Envelope
	ScanID         uuid.UUID `json:"scan_id"`
	Level          int       `json:"level"`
	Seed           string    `json:"seed"`
	WindowClosesAt time.Time `json:"window_closes_at"`
}

type DeathsSubmitted struct {
	Envelope
	ScanID   uuid.UUID   `json:"scan_id"`
	Level    int         `json:"level"`
	Accepted []uuid.UUID `json:"accepted"`
}

type ScanFinalized struct {
	Envelope
	ScanID       uuid.UUID       `json:"scan_id"`
	Level        int             `json:"level"`
	DeathCount   int             `json:"death_count"`
	DeathCapital decimal.Decimal `json:"death_capital"`
	Survivor     decimal.Decimal `json:"survivor"`
	Upstream     decimal.Decimal `json:"upstream"`
	Burned       decimal.Decimal `json:"burned"`
	Protocol     decimal.Decimal `json:"protocol"`
}

// System reset

type SystemReset struct {
	Envelope
	Epoch      int64           `json:"epoch"`
	PenaltyBps int64           `json:"penalty_bps"`
	Haircut    decimal.Decimal `json:"haircut"`
	Jackpot    decimal.Decimal `json:"jackpot"`
	Winner     *uuid.UUID      `json:"winner,omitempty"`
}

// Circuit breaker

type BreakerTripped struct {
	Envelope
	TripSeq int64  `json:"trip_seq"`
	Reason  string `json:"reason"`
}

type BreakerResetProposed struct {
	Envelope
	ProposalID   uuid.UUID `json:"proposal_id"`
	Proposer     string    `json:"proposer"`
	TripSeq      int64     `json:"trip_seq"`
	ExecuteAfter time.Time `json:"execute_after"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type BreakerResetVetoed struct {
	Envelope
	ProposalID uuid.UUID `json:"proposal_id"`
	Reason     string    `json:"reason"`
}

type BreakerResetExecuted struct {
	Envelope
	ProposalID uuid.UUID `json:"proposal_id"`
}

type PayoutCountersReset struct {
	Envelope
}
