package oracle

import (
	"context"
	"sync"

	"github.com/moznion/go-optional"
)

// StaticSource is an in-memory Source. It backs tests and offline runs;
// production wiring replaces it with a real market-data adapter.
type StaticSource struct {
	mu     sync.RWMutex
	quotes map[string]Quote
	rates  map[string]float64
}

// NewStaticSource creates a StaticSource with the given quotes and
// exchange rates.
func NewStaticSource(quotes map[string]Quote, rates map[string]float64) *StaticSource {
	s := &StaticSource{
		quotes: make(map[string]Quote, len(quotes)),
		rates:  make(map[string]float64, len(rates)),
	}

	for symbol, quote := range quotes {
		s.quotes[symbol] = quote
	}

	for currency, rate := range rates {
		s.rates[currency] = rate
	}

	return s
}

// Lookup implements Source.
func (s *StaticSource) Lookup(_ context.Context, symbol string) (optional.Option[Quote], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	quote, ok := s.quotes[symbol]
	if !ok {
		return optional.None[Quote](), nil
	}

	return optional.Some(quote), nil
}

// ExchangeRate implements Source.
func (s *StaticSource) ExchangeRate(_ context.Context, currency string) (optional.Option[float64], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rate, ok := s.rates[currency]
	if !ok {
		return optional.None[float64](), nil
	}

	return optional.Some(rate), nil
}

// SetQuote inserts or replaces a quote.
func (s *StaticSource) SetQuote(quote Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.quotes[quote.Symbol] = quote
}

// RemoveQuote deletes a symbol's quote, making it unpriceable.
func (s *StaticSource) RemoveQuote(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.quotes, symbol)
}

// SetRate inserts or replaces an exchange rate.
func (s *StaticSource) SetRate(currency string, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rates[currency] = rate
}
