package tiers

import "github.com/shopspring/decimal"

// The five issuance stages. Each covers a 20%-wide band of a tier's supply;
// the difficulty multiplier drops as the tier sells out.
const StageCount = 5

var stageMultipliers = [StageCount]decimal.Decimal{
	decimal.RequireFromString("1.00"),
	decimal.RequireFromString("0.95"),
	decimal.RequireFromString("0.90"),
	decimal.RequireFromString("0.85"),
	decimal.RequireFromString("0.80"),
}

// StageFor buckets the cumulative minted count into one of the five stages.
// Bands are [0,20) [20,40) [40,60) [60,80) [80,∞) percent of max supply,
// clamped at stage 5. The result is frozen onto the reservation and never
// recomputed for an already-minted NFT.
func StageFor(minted, maxSupply int) int {
	if maxSupply <= 0 {
		return 1
	}
	band := minted * StageCount / maxSupply
	if band >= StageCount {
		band = StageCount - 1
	}
	if band < 0 {
		band = 0
	}
	return band + 1
}

// MultiplierFor returns the difficulty multiplier for a stage (1..5).
func MultiplierFor(stage int) decimal.Decimal {
	if stage < 1 {
		stage = 1
	}
	if stage > StageCount {
		stage = StageCount
	}
	return stageMultipliers[stage-1]
}
