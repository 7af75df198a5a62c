package types

// Account represents one user's ledger root: cash, the margin line, and
// realized profit tracking. Monetary fields are integer amounts in the
// base currency.
type Account struct {
	UID string `json:"uid" yaml:"uid"`
	// Balance is the non-negative cash balance.
	Balance int64 `json:"balance" yaml:"balance"`
	// UsedCredit is the amount currently borrowed against the credit line.
	// It may transiently exceed CreditLimit until the next liquidation pass.
	UsedCredit int64 `json:"used_credit" yaml:"used_credit"`
	// CreditLimit is the ceiling of the credit line.
	CreditLimit int64 `json:"credit_limit" yaml:"credit_limit"`
	// TotalRealizedProfit accumulates realized P&L from every closing fill.
	TotalRealizedProfit float64 `json:"total_realized_profit" yaml:"total_realized_profit"`
	// LastInterestDate is the calendar date (YYYY-MM-DD) interest was last
	// applied. Empty until the first accrual pass touches the account.
	LastInterestDate string `json:"last_interest_date" yaml:"last_interest_date"`
	// Version is the optimistic concurrency token maintained by the repository.
	Version int64 `json:"-" yaml:"-"`
}

// AvailableCredit returns the remaining borrowing capacity. Negative when
// the account is over its limit.
func (a *Account) AvailableCredit() int64 {
	return a.CreditLimit - a.UsedCredit
}

// ExcessCredit returns how far UsedCredit exceeds CreditLimit, or zero.
func (a *Account) ExcessCredit() int64 {
	if a.UsedCredit > a.CreditLimit {
		return a.UsedCredit - a.CreditLimit
	}

	return 0
}
