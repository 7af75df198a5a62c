package types

import "time"

// TransactionType classifies a fill in the append-only ledger.
type TransactionType string

const (
	// TransactionTypeBuy is a buy that opens or extends a long position.
	TransactionTypeBuy TransactionType = "BUY"
	// TransactionTypeSell is a sell of held shares that received cash.
	TransactionTypeSell TransactionType = "SELL"
	// TransactionTypeShort is a sell that opened or extended a short
	// position; its amount is reserved as margin, not received as cash.
	TransactionTypeShort TransactionType = "SHORT"
	// TransactionTypeCover is a buy that closed some or all of a short.
	TransactionTypeCover TransactionType = "COVER"
	// TransactionTypeReward is an administrative cash grant.
	TransactionTypeReward TransactionType = "REWARD"
)

// Transaction is a single immutable fill record. It is the audit trail
// and the input for LIFO liquidation ordering.
type Transaction struct {
	ID     string          `json:"id" yaml:"id"`
	UID    string          `json:"uid" yaml:"uid"`
	Symbol string          `json:"symbol" yaml:"symbol"`
	Name   string          `json:"name" yaml:"name"`
	Type   TransactionType `json:"type" yaml:"type"`
	Price  float64         `json:"price" yaml:"price"`
	// Quantity is the unsigned fill size.
	Quantity int64 `json:"quantity" yaml:"quantity"`
	// Amount is floor(Price × Quantity).
	Amount int64 `json:"amount" yaml:"amount"`
	Fee    int64 `json:"fee" yaml:"fee"`
	// Profit is realized P&L on the closing portion of the fill, else 0.
	Profit float64 `json:"profit" yaml:"profit"`
	// CreditUsed and CreditReleased apply to margin draws and short covers;
	// CreditRepaid applies to long-sale proceeds repaying the credit line.
	CreditUsed     int64     `json:"credit_used" yaml:"credit_used"`
	CreditReleased int64     `json:"credit_released" yaml:"credit_released"`
	CreditRepaid   int64     `json:"credit_repaid" yaml:"credit_repaid"`
	Timestamp      time.Time `json:"timestamp" yaml:"timestamp"`
}
