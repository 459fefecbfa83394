package beacon

import (
	"time"
)

// Round is one output of the external randomness beacon. Rounds arrive in
// order over Kafka and are append-only; a round's output cannot exist before
// the beacon produces it, which is what makes future-round commitments
// unknowable.
type Round struct {
	Number     uint64    `db:"number"`
	Output     []byte    `db:"output"`
	ProducedAt time.Time `db:"produced_at"`
}
