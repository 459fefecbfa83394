package level

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestBpsShare(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		bps      int64
		expected string
	}{
		{name: "full share", amount: "100", bps: 10000, expected: "100"},
		{name: "half share", amount: "100", bps: 5000, expected: "50"},
		{name: "one bp", amount: "100", bps: 1, expected: "0.01"},
		{name: "zero bps", amount: "100", bps: 0, expected: "0"},
		{name: "fractional amount", amount: "0.0003", bps: 2500, expected: "0.000075"},
		{name: "exact no rounding", amount: "333.33", bps: 3333, expected: "111.1088889"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BpsShare(dec(tt.amount), tt.bps)
			assert.True(t, dec(tt.expected).Equal(got), "expected %s, got %s", tt.expected, got)
		})
	}
}

func TestAccDelta_Conservation(t *testing.T) {
	tests := []struct {
		name        string
		reward      string
		totalStaked string
	}{
		{name: "even split", reward: "100", totalStaked: "1000"},
		{name: "uneven split", reward: "1", totalStaked: "3"},
		{name: "tiny reward large pool", reward: "0.000000000001", totalStaked: "1000000000"},
		{name: "reward larger than pool", reward: "5000", totalStaked: "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reward := dec(tt.reward)
			tvl := dec(tt.totalStaked)

			delta, distributed, remainder := AccDelta(reward, tvl)

			assert.True(t, distributed.Add(remainder).Equal(reward),
				"distributed + remainder must equal reward: %s + %s != %s", distributed, remainder, reward)
			assert.True(t, delta.IsInteger(), "acc delta must be integer-valued, got %s", delta)
			assert.True(t, delta.Mul(tvl).Shift(-AccScaleExp).Equal(distributed),
				"delta applied to the pool must reproduce the distributed value")
			assert.True(t, remainder.GreaterThanOrEqual(decimal.Zero), "remainder is never negative")
			assert.True(t, remainder.LessThan(tvl.Shift(-AccScaleExp).Add(decimal.New(1, -AccScaleExp))),
				"remainder stays below one accumulator unit of the pool")
		})
	}
}

func TestAccDelta_EmptyPool(t *testing.T) {
	delta, distributed, remainder := AccDelta(dec("100"), decimal.Zero)

	assert.True(t, delta.IsZero(), "empty pool distributes nothing")
	assert.True(t, distributed.IsZero())
	assert.True(t, remainder.Equal(dec("100")), "whole reward falls through as remainder")
}

func TestAccDelta_ZeroReward(t *testing.T) {
	delta, distributed, remainder := AccDelta(decimal.Zero, dec("500"))

	assert.True(t, delta.IsZero())
	assert.True(t, distributed.IsZero())
	assert.True(t, remainder.IsZero())
}

func TestCascade_ValueConservation(t *testing.T) {
	split := CascadeSplit{SurvivorBps: 4500, UpstreamBps: 2500, BurnBps: 2000, ProtocolBps: 1000}

	tests := []struct {
		name        string
		dead        string
		sameTVL     string
		upstreamTVL string
		hasUpstream bool
	}{
		{name: "both pools alive", dead: "1000", sameTVL: "7777", upstreamTVL: "3333", hasUpstream: true},
		{name: "top level folds upstream into survivors", dead: "1000", sameTVL: "7777", hasUpstream: false},
		{name: "empty same pool", dead: "250.5", sameTVL: "0", upstreamTVL: "100", hasUpstream: true},
		{name: "both pools empty", dead: "99.99", sameTVL: "0", upstreamTVL: "0", hasUpstream: true},
		{name: "prime amounts", dead: "17", sameTVL: "13", upstreamTVL: "11", hasUpstream: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dead := dec(tt.dead)
			upstreamTVL := decimal.Zero
			if tt.upstreamTVL != "" {
				upstreamTVL = dec(tt.upstreamTVL)
			}

			out := Cascade(dead, split, dec(tt.sameTVL), upstreamTVL, tt.hasUpstream)

			total := out.Survivor.Add(out.Upstream).Add(out.Burn).Add(out.Protocol)
			assert.True(t, total.Equal(dead),
				"survivor + upstream + burn + protocol must equal dead capital: %s != %s", total, dead)

			if !tt.hasUpstream {
				assert.True(t, out.Upstream.IsZero(), "no upstream flow above the top level")
				assert.True(t, out.UpstreamAccDelta.IsZero())
			}
			assert.True(t, out.SurvivorAccDelta.IsInteger())
			assert.True(t, out.UpstreamAccDelta.IsInteger())
		})
	}
}

func TestCascade_BurnShareExact(t *testing.T) {
	split := CascadeSplit{SurvivorBps: 4500, UpstreamBps: 2500, BurnBps: 2000, ProtocolBps: 1000}

	out := Cascade(dec("1000"), split, dec("5000"), dec("5000"), true)

	assert.True(t, out.Burn.Equal(dec("200")), "burn is exactly 20%% of dead capital, got %s", out.Burn)
}

func TestCascade_EmptyPoolSharesFallToProtocol(t *testing.T) {
	split := CascadeSplit{SurvivorBps: 4500, UpstreamBps: 2500, BurnBps: 2000, ProtocolBps: 1000}

	out := Cascade(dec("1000"), split, decimal.Zero, decimal.Zero, true)

	assert.True(t, out.Survivor.IsZero())
	assert.True(t, out.Upstream.IsZero())
	assert.True(t, out.Burn.Equal(dec("200")))
	assert.True(t, out.Protocol.Equal(dec("800")), "undistributable shares fall to protocol, got %s", out.Protocol)
}

func TestMiniCascade_Conservation(t *testing.T) {
	tests := []struct {
		name        string
		forfeit     string
		survivorBps int64
		sameTVL     string
	}{
		{name: "typical split", forfeit: "100", survivorBps: 5000, sameTVL: "900"},
		{name: "uneven division", forfeit: "1", survivorBps: 3333, sameTVL: "7"},
		{name: "empty pool burns everything", forfeit: "42", survivorBps: 5000, sameTVL: "0"},
		{name: "all to survivors", forfeit: "10", survivorBps: 10000, sameTVL: "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forfeit := dec(tt.forfeit)

			accDelta, survivor, burn := MiniCascade(forfeit, tt.survivorBps, dec(tt.sameTVL))

			assert.True(t, survivor.Add(burn).Equal(forfeit),
				"survivor + burn must equal forfeit: %s + %s != %s", survivor, burn, forfeit)
			assert.True(t, accDelta.IsInteger())
		})
	}
}

func TestPendingRewards_RoundTrip(t *testing.T) {
	amount := dec("150")
	acc := decimal.Zero

	debt := RewardDebt(amount, acc)
	require.True(t, debt.IsZero(), "zero accumulator snapshot carries no debt")

	// Accumulator grows by a bump worth 0.1 per staked unit.
	delta, distributed, _ := AccDelta(dec("100"), dec("1000"))
	acc = acc.Add(delta)

	pending := PendingRewards(amount, acc, debt)
	assert.True(t, pending.Equal(amount.Mul(distributed).Div(dec("1000"))),
		"pending must be the stake's proportional share of the distributed value")

	// Re-snapshot, nothing further pending.
	debt = RewardDebt(amount, acc)
	assert.True(t, PendingRewards(amount, acc, debt).IsZero())
}
