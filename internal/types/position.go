package types

// Position is one user's holding in a single symbol. A position exists
// only while its quantity is non-zero; the executor deletes it the moment
// quantity returns to exactly zero.
type Position struct {
	UID    string `json:"uid" yaml:"uid"`
	Symbol string `json:"symbol" yaml:"symbol"`
	Name   string `json:"name" yaml:"name"`
	// Quantity is signed: positive = long, negative = short.
	Quantity int64 `json:"quantity" yaml:"quantity"`
	// AveragePrice is the cost basis per share for longs and the entry
	// price per share for shorts.
	AveragePrice float64 `json:"average_price" yaml:"average_price"`
	// CurrentPrice is the last mark, informational only.
	CurrentPrice float64 `json:"current_price" yaml:"current_price"`
	// Valuation is floor(|Quantity| × CurrentPrice), informational only.
	Valuation int64 `json:"valuation" yaml:"valuation"`
}

// IsLong reports whether the position is long.
func (p *Position) IsLong() bool { return p.Quantity > 0 }

// IsShort reports whether the position is short.
func (p *Position) IsShort() bool { return p.Quantity < 0 }

// AbsQuantity returns the unsigned share count.
func (p *Position) AbsQuantity() int64 {
	if p.Quantity < 0 {
		return -p.Quantity
	}

	return p.Quantity
}
