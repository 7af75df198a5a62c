// Package fee computes trading fees on sale amounts.
package fee

import "github.com/rxtech-lab/argo-brokerage/internal/types"

// Schedule calculates the fee charged on a fill amount.
type Schedule interface {
	// Calculate returns the fee for the given base-currency amount.
	Calculate(amount int64) int64
	// Rate returns the proportional fee rate.
	Rate() float64
}

type rateSchedule struct {
	rate float64
}

// NewRateSchedule returns a Schedule charging floor(amount × rate).
func NewRateSchedule(rate float64) Schedule {
	return &rateSchedule{rate: rate}
}

func (s *rateSchedule) Calculate(amount int64) int64 {
	return types.FloorRate(amount, s.rate)
}

func (s *rateSchedule) Rate() float64 {
	return s.rate
}

type zeroSchedule struct{}

// NewZeroSchedule returns a Schedule that never charges a fee.
func NewZeroSchedule() Schedule {
	return &zeroSchedule{}
}

func (s *zeroSchedule) Calculate(int64) int64 { return 0 }

func (s *zeroSchedule) Rate() float64 { return 0 }
