package checkout

import "github.com/shopspring/decimal"

// feeRate is the fixed 10% platform cut. The split is computed exactly once
// at transaction creation so historical rows stay correct if the rate ever
// changes.
var feeRate = decimal.New(1, -1)

// SplitAmount divides a gross amount in minor currency units into the
// platform fee and the creator payout. The fee is floor(gross * 0.10); the
// payout is the remainder, so the two legs always sum to the gross amount.
// Callers must reject non-positive amounts before calling.
func SplitAmount(grossCents int64) (feeCents, payoutCents int64) {
	feeCents = decimal.NewFromInt(grossCents).Mul(feeRate).Floor().IntPart()
	return feeCents, grossCents - feeCents
}
