package types

import "time"

// PurchaseType is the side of an order.
type PurchaseType string

const (
	PurchaseTypeBuy  PurchaseType = "BUY"
	PurchaseTypeSell PurchaseType = "SELL"
)

// OrderType distinguishes interactive market orders from matcher-driven
// limit executions.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// LimitOrderStatus is the lifecycle state of a standing limit order.
// A limit order transitions out of PENDING exactly once.
type LimitOrderStatus string

const (
	LimitOrderStatusPending   LimitOrderStatus = "PENDING"
	LimitOrderStatusCompleted LimitOrderStatus = "COMPLETED"
	LimitOrderStatusFailed    LimitOrderStatus = "FAILED"
)

// LimitOrder is a standing instruction to execute once the market price
// crosses the target. The matcher is the only component that transitions
// its status; the executor never touches it.
type LimitOrder struct {
	ID     string       `json:"id" yaml:"id"`
	UID    string       `json:"uid" yaml:"uid"`
	Symbol string       `json:"symbol" yaml:"symbol"`
	Name   string       `json:"name" yaml:"name"`
	Side   PurchaseType `json:"side" yaml:"side"`
	// TargetPrice is expressed in Currency.
	TargetPrice float64          `json:"target_price" yaml:"target_price"`
	Currency    string           `json:"currency" yaml:"currency"`
	Quantity    int64            `json:"quantity" yaml:"quantity"`
	Status      LimitOrderStatus `json:"status" yaml:"status"`
	// ExecutedPrice is the base-currency price the order filled at, set
	// when the order completes.
	ExecutedPrice float64 `json:"executed_price" yaml:"executed_price"`
	// FailReason carries the executor error message when the order fails.
	FailReason string    `json:"fail_reason" yaml:"fail_reason"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" yaml:"updated_at"`
}
