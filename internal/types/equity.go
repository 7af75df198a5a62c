package types

// AccountEquity computes the account's net liquidation value:
//
//	equity = balance + longValue − shortCurrentValue − usedCredit + 2×shortInitialValue
//
// where shortInitialValue is the margin reserved when each short was
// opened (|quantity| × averagePrice) and shortCurrentValue marks the
// short at the supplied price. Symbols missing from prices fall back to
// the position's last mark.
func AccountEquity(account Account, positions []Position, prices map[string]float64) int64 {
	var longValue, shortCurrentValue, shortInitialValue int64

	for _, p := range positions {
		price, ok := prices[p.Symbol]
		if !ok {
			price = p.CurrentPrice
		}

		if p.IsLong() {
			longValue += FloorMul(price, p.Quantity)

			continue
		}

		if p.IsShort() {
			shortCurrentValue += FloorMul(price, p.AbsQuantity())
			shortInitialValue += FloorMul(p.AveragePrice, p.AbsQuantity())
		}
	}

	return account.Balance + longValue - shortCurrentValue - account.UsedCredit + 2*shortInitialValue
}
