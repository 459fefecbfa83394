package scan

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDeriveSeed_Deterministic(t *testing.T) {
	output := []byte("round-4281-output")
	scanID := uuid.MustParse("11111111-1111-1111-1111-111111111111")

	a := DeriveSeed(output, 3, scanID, "engine-a")
	b := DeriveSeed(output, 3, scanID, "engine-a")

	assert.Equal(t, a, b, "same inputs must derive the same seed")
	assert.Len(t, a, 32)
}

func TestDeriveSeed_BindsEveryInput(t *testing.T) {
	output := []byte("round-4281-output")
	scanID := uuid.New()

	base := DeriveSeed(output, 3, scanID, "engine-a")

	assert.NotEqual(t, base, DeriveSeed([]byte("round-4282-output"), 3, scanID, "engine-a"),
		"different beacon output must change the seed")
	assert.NotEqual(t, base, DeriveSeed(output, 4, scanID, "engine-a"),
		"different level must change the seed")
	assert.NotEqual(t, base, DeriveSeed(output, 3, uuid.New(), "engine-a"),
		"different scan id must change the seed")
	assert.NotEqual(t, base, DeriveSeed(output, 3, scanID, "engine-b"),
		"different engine id must change the seed")
}

func TestIsDead_Deterministic(t *testing.T) {
	seed := DeriveSeed([]byte("output"), 1, uuid.New(), "engine")
	owner := uuid.New()

	first := IsDead(seed, owner, 1500)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, IsDead(seed, owner, 1500), "verdict must be reproducible")
	}
}

func TestIsDead_RateBounds(t *testing.T) {
	seed := DeriveSeed([]byte("output"), 1, uuid.New(), "engine")
	owner := uuid.New()

	assert.False(t, IsDead(seed, owner, 0), "zero rate kills nobody")
	assert.True(t, IsDead(seed, owner, 10000), "full rate kills everybody")
}

func TestIsDead_RateMonotone(t *testing.T) {
	seed := DeriveSeed([]byte("output"), 2, uuid.New(), "engine")

	// A dead verdict at some rate stays dead at every higher rate.
	for i := 0; i < 200; i++ {
		owner := uuid.New()
		if IsDead(seed, owner, 2000) {
			assert.True(t, IsDead(seed, owner, 8000),
				"owner dead at 20%% must be dead at 80%%")
		}
		if !IsDead(seed, owner, 8000) {
			assert.False(t, IsDead(seed, owner, 2000),
				"owner alive at 80%% must be alive at 20%%")
		}
	}
}

func TestIsDead_ObservedRateNearTarget(t *testing.T) {
	seed := DeriveSeed([]byte("sampling-output"), 1, uuid.New(), "engine")

	const n = 20000
	const rateBps = 1500

	dead := 0
	for i := 0; i < n; i++ {
		if IsDead(seed, uuid.New(), rateBps) {
			dead++
		}
	}

	observed := float64(dead) / float64(n)
	assert.InDelta(t, 0.15, observed, 0.01,
		"observed death rate %f should track the configured 15%%", observed)
}
