// Package oracle defines the price lookup port the ledger core depends
// on. Market-data acquisition itself lives outside the core; the core
// only sees quotes and exchange rates through Source.
package oracle

import (
	"context"

	"github.com/moznion/go-optional"
)

// Quote is a current market price for a symbol. It carries no freshness
// guarantee; prices are advisory marks, not oracle guarantees.
type Quote struct {
	Symbol   string  `json:"symbol" yaml:"symbol"`
	Name     string  `json:"name" yaml:"name"`
	Price    float64 `json:"price" yaml:"price"`
	Currency string  `json:"currency" yaml:"currency"`
	Market   string  `json:"market" yaml:"market"`
}

// Source supplies current prices and exchange rates. A None result means
// the symbol or currency is unknown or temporarily unpriceable.
type Source interface {
	// Lookup returns the current quote for a symbol.
	Lookup(ctx context.Context, symbol string) (optional.Option[Quote], error)
	// ExchangeRate returns the rate converting one unit of the given
	// currency into the base currency.
	ExchangeRate(ctx context.Context, currency string) (optional.Option[float64], error)
}
