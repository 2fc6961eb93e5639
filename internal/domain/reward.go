package domain

import "github.com/shopspring/decimal"

// BTCPlaces is the precision of currency amounts (satoshi).
const BTCPlaces = 8

// Revenue converts a block count into currency: blocks * (reward + fee).
// Linear in blocks, no state.
func Revenue(blocks int, blockReward, avgTxFeePerBlock float64) float64 {
	return float64(blocks) * (blockReward + avgTxFeePerBlock)
}

// RevenueBTC is Revenue computed in decimal and rounded to satoshi.
func RevenueBTC(blocks int, blockReward, avgTxFeePerBlock float64) decimal.Decimal {
	perBlock := decimal.NewFromFloat(blockReward).Add(decimal.NewFromFloat(avgTxFeePerBlock))
	return decimal.NewFromInt(int64(blocks)).Mul(perBlock).Round(BTCPlaces)
}

// BTC rounds a float amount to satoshi precision.
func BTC(amount float64) decimal.Decimal {
	return decimal.NewFromFloat(amount).Round(BTCPlaces)
}
