package types

import "github.com/shopspring/decimal"

// FloorMul returns floor(price × quantity) as an integer amount in the
// base currency. All ledger amounts are floored this way.
func FloorMul(price float64, quantity int64) int64 {
	return decimal.NewFromFloat(price).
		Mul(decimal.NewFromInt(quantity)).
		Floor().
		IntPart()
}

// FloorRate returns floor(amount × rate), used for fees and interest.
func FloorRate(amount int64, rate float64) int64 {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromFloat(rate)).
		Floor().
		IntPart()
}

// FloorConvert returns floor(price × rate), used to bring a
// foreign-currency price into the base currency.
func FloorConvert(price float64, rate float64) float64 {
	v := decimal.NewFromFloat(price).
		Mul(decimal.NewFromFloat(rate)).
		Floor()
	f, _ := v.Float64()

	return f
}
