// Package repository is the durable store for accounts, positions,
// transactions, and limit orders. All ledger mutations go through
// Atomic, which commits every write of one call together or none.
package repository

import (
	"context"

	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-brokerage/internal/types"
)

// Tx exposes read/write access to one account's records inside an
// atomic transaction.
type Tx interface {
	// GetAccount reads the account, failing with ErrCodeUserNotFound if
	// it does not exist.
	GetAccount(uid string) (types.Account, error)
	// UpdateAccount writes the account back. It fails with
	// ErrCodeConcurrentModification if the row changed since GetAccount.
	UpdateAccount(account types.Account) error
	// GetPosition reads the position for one symbol, if present.
	GetPosition(uid string, symbol string) (optional.Option[types.Position], error)
	// PutPosition inserts or replaces a position.
	PutPosition(position types.Position) error
	// DeletePosition removes a position that has returned to zero quantity.
	DeletePosition(uid string, symbol string) error
	// AppendTransaction appends one immutable fill record.
	AppendTransaction(transaction types.Transaction) error
}

// Repository is the account store. Atomic retries transparently on
// write conflicts and fails permanently after a bounded number of
// attempts.
type Repository interface {
	// Atomic runs fn with transactional access to the given account's
	// records, committing all writes together or none.
	Atomic(ctx context.Context, uid string, fn func(tx Tx) error) error

	CreateAccount(ctx context.Context, account types.Account) error
	GetAccount(ctx context.Context, uid string) (types.Account, error)
	// ListAccountsWithCredit returns every account with usedCredit > 0.
	ListAccountsWithCredit(ctx context.Context) ([]types.Account, error)

	ListPositions(ctx context.Context, uid string) ([]types.Position, error)

	// ListTransactions returns the account's fills, newest first.
	ListTransactions(ctx context.Context, uid string, limit int) ([]types.Transaction, error)
	// ListRecentBuyTransactions returns the account's most recent BUY and
	// COVER fills, newest first, bounded by limit. Liquidation uses this
	// as its LIFO ordering input.
	ListRecentBuyTransactions(ctx context.Context, uid string, limit int) ([]types.Transaction, error)

	CreateLimitOrder(ctx context.Context, order types.LimitOrder) error
	GetLimitOrder(ctx context.Context, id string) (optional.Option[types.LimitOrder], error)
	ListPendingLimitOrders(ctx context.Context) ([]types.LimitOrder, error)
	ListLimitOrders(ctx context.Context, uid string) ([]types.LimitOrder, error)
	// CompleteLimitOrder transitions a PENDING order to COMPLETED with its
	// executed price. Fails with ErrCodeOrderNotPending if the order
	// already left PENDING.
	CompleteLimitOrder(ctx context.Context, id string, executedPrice float64) error
	// FailLimitOrder transitions a PENDING order to FAILED with the
	// executor's error message.
	FailLimitOrder(ctx context.Context, id string, reason string) error
	// CancelLimitOrder deletes a PENDING order owned by uid.
	CancelLimitOrder(ctx context.Context, id string, uid string) error

	Close() error
}
