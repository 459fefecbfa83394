package level

import (
	"github.com/shopspring/decimal"
)

// AccScaleExp is the decimal exponent of the reward accumulator scale (1e12).
const AccScaleExp = 12

// CascadeSplit is the basis-point split applied to eliminated capital.
type CascadeSplit struct {
	SurvivorBps int64
	UpstreamBps int64
	BurnBps     int64
	ProtocolBps int64
}

// CascadeOutcome is the exact value routing of one cascade. Survivor and
// Upstream are the amounts folded into the respective accumulators;
// Protocol absorbs every rounding remainder so the parts always sum to the
// input capital.
type CascadeOutcome struct {
	SurvivorAccDelta decimal.Decimal
	UpstreamAccDelta decimal.Decimal
	Survivor         decimal.Decimal
	Upstream         decimal.Decimal
	Burn             decimal.Decimal
	Protocol         decimal.Decimal
}

// BpsShare returns amount * bps / 10000 exactly.
func BpsShare(amount decimal.Decimal, bps int64) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(bps)).Shift(-4)
}

// AccDelta converts a reward into an integer-valued accumulator bump for a
// pool of totalStaked shares. It returns the bump, the value actually
// distributed by it, and the truncation remainder (distributed + remainder ==
// reward). A zero or empty pool distributes nothing.
func AccDelta(reward, totalStaked decimal.Decimal) (delta, distributed, remainder decimal.Decimal) {
	if totalStaked.IsZero() || reward.IsZero() {
		return decimal.Zero, decimal.Zero, reward
	}

	q, r := reward.Shift(AccScaleExp).QuoRem(totalStaked, 0)
	return q, reward.Sub(r.Shift(-AccScaleExp)), r.Shift(-AccScaleExp)
}

// Cascade routes dead capital through the four-way split. sameTVL and
// upstreamTVL are the surviving stakes of the dead position's level and its
// upstream level. hasUpstream=false folds the upstream share into the
// same-level share. A share that cannot be distributed (empty pool) falls
// through to the protocol bucket, never vanishes.
func Cascade(dead decimal.Decimal, split CascadeSplit, sameTVL, upstreamTVL decimal.Decimal, hasUpstream bool) CascadeOutcome {
	out := CascadeOutcome{
		SurvivorAccDelta: decimal.Zero,
		UpstreamAccDelta: decimal.Zero,
		Survivor:         decimal.Zero,
		Upstream:         decimal.Zero,
	}

	survivorShare := BpsShare(dead, split.SurvivorBps)
	upstreamShare := BpsShare(dead, split.UpstreamBps)
	if !hasUpstream {
		survivorShare = survivorShare.Add(upstreamShare)
		upstreamShare = decimal.Zero
	}

	out.Burn = BpsShare(dead, split.BurnBps)
	out.Protocol = dead.Sub(survivorShare).Sub(upstreamShare).Sub(out.Burn)

	delta, distributed, rem := AccDelta(survivorShare, sameTVL)
	out.SurvivorAccDelta = delta
	out.Survivor = distributed
	out.Protocol = out.Protocol.Add(rem)

	if hasUpstream {
		delta, distributed, rem = AccDelta(upstreamShare, upstreamTVL)
		out.UpstreamAccDelta = delta
		out.Upstream = distributed
		out.Protocol = out.Protocol.Add(rem)
	}

	return out
}

// MiniCascade is the culling forfeit split: a same-level-only accumulator bump
// plus burn, no upstream flow. survivorBps of the forfeit goes to survivors,
// the rest burns; undistributable remainders burn too.
func MiniCascade(forfeit decimal.Decimal, survivorBps int64, sameTVL decimal.Decimal) (accDelta, survivor, burn decimal.Decimal) {
	survivorShare := BpsShare(forfeit, survivorBps)

	delta, distributed, rem := AccDelta(survivorShare, sameTVL)
	burn = forfeit.Sub(survivorShare).Add(rem)
	return delta, distributed, burn
}

// PendingRewards computes the unsettled rewards of a stake against the
// current accumulator: amount*acc/1e12 - debt.
func PendingRewards(amount, acc, debt decimal.Decimal) decimal.Decimal {
	return amount.Mul(acc).Shift(-AccScaleExp).Sub(debt)
}

// RewardDebt computes the accumulator snapshot for a stake.
func RewardDebt(amount, acc decimal.Decimal) decimal.Decimal {
	return amount.Mul(acc).Shift(-AccScaleExp)
}
