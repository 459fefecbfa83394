package scan

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/google/uuid"
)

// DeriveSeed derives a scan's randomness from a produced beacon round output.
// Binding the level, scan id and engine id into the hash keeps seeds distinct
// across concurrent scans and engine deployments sharing one beacon.
func DeriveSeed(roundOutput []byte, lvl int, scanID uuid.UUID, engineID string) []byte {
	h := sha256.New()
	h.Write(roundOutput)

	var lvlBuf [4]byte
	binary.BigEndian.PutUint32(lvlBuf[:], uint32(lvl))
	h.Write(lvlBuf[:])

	h.Write(scanID[:])
	h.Write([]byte(engineID))

	return h.Sum(nil)
}

// IsDead is the pure elimination predicate: hash(seed, owner) mod 10000
// compared against the death rate. Anyone holding the seed can verify any
// outcome; nobody can verify before the seed exists.
func IsDead(seed []byte, owner uuid.UUID, deathRateBps int64) bool {
	h := sha256.New()
	h.Write(seed)
	h.Write(owner[:])
	sum := h.Sum(nil)

	roll := binary.BigEndian.Uint64(sum[:8]) % 10000
	return int64(roll) < deathRateBps
}
