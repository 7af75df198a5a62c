package repository

import (
	"database/sql"

	"github.com/Masterminds/squirrel"
	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-brokerage/internal/types"
	"github.com/rxtech-lab/argo-brokerage/pkg/errors"
)

// duckTx implements Tx over one SQL transaction.
type duckTx struct {
	tx *sql.Tx
	sq squirrel.StatementBuilderType
}

// GetAccount implements Tx.
func (t *duckTx) GetAccount(uid string) (types.Account, error) {
	query := t.sq.
		Select(accountColumns).
		From("accounts").
		Where(squirrel.Eq{"uid": uid}).
		RunWith(t.tx)

	account, err := scanAccount(query.QueryRow())
	if err == sql.ErrNoRows {
		return types.Account{}, errors.Newf(errors.ErrCodeUserNotFound, "no account for uid %s", uid)
	}

	if err != nil {
		return types.Account{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query account", err)
	}

	return account, nil
}

// UpdateAccount implements Tx. The version predicate detects writers
// that slipped past the repository latch; a zero-row update surfaces as
// a write conflict and triggers a retry of the whole transaction.
func (t *duckTx) UpdateAccount(account types.Account) error {
	query := t.sq.
		Update("accounts").
		Set("balance", account.Balance).
		Set("used_credit", account.UsedCredit).
		Set("credit_limit", account.CreditLimit).
		Set("total_realized_profit", account.TotalRealizedProfit).
		Set("last_interest_date", account.LastInterestDate).
		Set("version", account.Version+1).
		Where(squirrel.Eq{"uid": account.UID, "version": account.Version}).
		RunWith(t.tx)

	result, err := query.Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to update account", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to read update result", err)
	}

	if affected == 0 {
		return errors.Newf(errors.ErrCodeConcurrentModification,
			"account %s was modified concurrently", account.UID)
	}

	return nil
}

// GetPosition implements Tx.
func (t *duckTx) GetPosition(uid string, symbol string) (optional.Option[types.Position], error) {
	query := t.sq.
		Select("uid", "symbol", "name", "quantity", "average_price", "current_price", "valuation").
		From("positions").
		Where(squirrel.Eq{"uid": uid, "symbol": symbol}).
		RunWith(t.tx)

	var position types.Position

	err := query.QueryRow().Scan(
		&position.UID,
		&position.Symbol,
		&position.Name,
		&position.Quantity,
		&position.AveragePrice,
		&position.CurrentPrice,
		&position.Valuation,
	)
	if err == sql.ErrNoRows {
		return optional.None[types.Position](), nil
	}

	if err != nil {
		return optional.None[types.Position](), errors.Wrap(errors.ErrCodeQueryFailed, "failed to query position", err)
	}

	return optional.Some(position), nil
}

// PutPosition implements Tx.
func (t *duckTx) PutPosition(position types.Position) error {
	// Raw SQL: Squirrel has no upsert syntax.
	_, err := t.tx.Exec(`
		INSERT OR REPLACE INTO positions
			(uid, symbol, name, quantity, average_price, current_price, valuation)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, position.UID, position.Symbol, position.Name, position.Quantity,
		position.AveragePrice, position.CurrentPrice, position.Valuation)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to upsert position", err)
	}

	return nil
}

// DeletePosition implements Tx.
func (t *duckTx) DeletePosition(uid string, symbol string) error {
	query := t.sq.
		Delete("positions").
		Where(squirrel.Eq{"uid": uid, "symbol": symbol}).
		RunWith(t.tx)

	if _, err := query.Exec(); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to delete position", err)
	}

	return nil
}

// AppendTransaction implements Tx.
func (t *duckTx) AppendTransaction(transaction types.Transaction) error {
	query := t.sq.
		Insert("transactions").
		Columns("id", "uid", "symbol", "name", "tx_type", "price", "quantity", "amount",
			"fee", "profit", "credit_used", "credit_released", "credit_repaid", "created_at").
		Values(transaction.ID, transaction.UID, transaction.Symbol, transaction.Name,
			transaction.Type, transaction.Price, transaction.Quantity, transaction.Amount,
			transaction.Fee, transaction.Profit, transaction.CreditUsed,
			transaction.CreditReleased, transaction.CreditRepaid, transaction.Timestamp).
		RunWith(t.tx)

	if _, err := query.Exec(); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to append transaction", err)
	}

	return nil
}
