package reset

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var (
	thresholds = []decimal.Decimal{
		decimal.NewFromInt(10),
		decimal.NewFromInt(100),
		decimal.NewFromInt(1000),
	}
	extensions = []time.Duration{
		30 * time.Second,
		2 * time.Minute,
		10 * time.Minute,
	}
)

func TestExtension_TierSelection(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		expected time.Duration
	}{
		{name: "below every tier", amount: "9.99", expected: 0},
		{name: "exactly first threshold", amount: "10", expected: 30 * time.Second},
		{name: "between tiers", amount: "99", expected: 30 * time.Second},
		{name: "second tier", amount: "100", expected: 2 * time.Minute},
		{name: "top tier", amount: "5000", expected: 10 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, _ := decimal.NewFromString(tt.amount)
			assert.Equal(t, tt.expected, Extension(amount, thresholds, extensions))
		})
	}
}

func TestExtendDeadline_Extends(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	deadline := now.Add(5 * time.Minute)

	got := ExtendDeadline(deadline, now, 2*time.Minute, time.Hour)

	assert.Equal(t, deadline.Add(2*time.Minute), got)
}

func TestExtendDeadline_CappedAtMax(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	deadline := now.Add(55 * time.Minute)

	got := ExtendDeadline(deadline, now, 10*time.Minute, time.Hour)

	assert.Equal(t, now.Add(time.Hour), got, "deadline never extends past now+max")
}

func TestExtendDeadline_NeverResurrects(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Second)

	got := ExtendDeadline(expired, now, 10*time.Minute, time.Hour)

	assert.Equal(t, expired, got, "an expired countdown stays expired until a reset restarts it")
}

func TestExtendDeadline_ZeroExtension(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	deadline := now.Add(5 * time.Minute)

	assert.Equal(t, deadline, ExtendDeadline(deadline, now, 0, time.Hour))
}
