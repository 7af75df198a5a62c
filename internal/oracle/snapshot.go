package oracle

import (
	"context"
	"time"

	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-brokerage/internal/types"
)

// Snapshot is an immutable set of base-currency prices taken at one
// point in time. Batch jobs price every forced trade in a run from the
// same snapshot instead of consulting the source mid-pass.
type Snapshot struct {
	taken  time.Time
	prices map[string]float64
	quotes map[string]Quote
}

// TakeSnapshot resolves the given symbols through the source, converting
// foreign-currency quotes into the base currency (floored). Symbols
// without a quote, or whose currency has no exchange rate, are simply
// absent from the snapshot.
func TakeSnapshot(ctx context.Context, src Source, baseCurrency string, symbols []string) (*Snapshot, error) {
	snap := &Snapshot{
		taken:  time.Now(),
		prices: make(map[string]float64, len(symbols)),
		quotes: make(map[string]Quote, len(symbols)),
	}

	for _, symbol := range symbols {
		if _, ok := snap.prices[symbol]; ok {
			continue
		}

		quoteOpt, err := src.Lookup(ctx, symbol)
		if err != nil {
			return nil, err
		}

		if quoteOpt.IsNone() {
			continue
		}

		quote := quoteOpt.Unwrap()

		price := quote.Price
		if quote.Currency != baseCurrency {
			rateOpt, err := src.ExchangeRate(ctx, quote.Currency)
			if err != nil {
				return nil, err
			}

			if rateOpt.IsNone() {
				continue
			}

			price = types.FloorConvert(quote.Price, rateOpt.Unwrap())
		}

		snap.prices[symbol] = price
		snap.quotes[symbol] = quote
	}

	return snap, nil
}

// Taken returns the time the snapshot was built.
func (s *Snapshot) Taken() time.Time {
	return s.taken
}

// Price returns the base-currency price for a symbol, if present.
func (s *Snapshot) Price(symbol string) optional.Option[float64] {
	price, ok := s.prices[symbol]
	if !ok {
		return optional.None[float64]()
	}

	return optional.Some(price)
}

// Quote returns the raw quote for a symbol, if present.
func (s *Snapshot) Quote(symbol string) optional.Option[Quote] {
	quote, ok := s.quotes[symbol]
	if !ok {
		return optional.None[Quote]()
	}

	return optional.Some(quote)
}

// Prices returns a copy of all base-currency prices in the snapshot.
func (s *Snapshot) Prices() map[string]float64 {
	out := make(map[string]float64, len(s.prices))
	for symbol, price := range s.prices {
		out[symbol] = price
	}

	return out
}
