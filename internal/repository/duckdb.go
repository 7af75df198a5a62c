package repository

import (
	"context"
	"database/sql"
	"hash/fnv"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-brokerage/internal/logger"
	"github.com/rxtech-lab/argo-brokerage/internal/types"
	"github.com/rxtech-lab/argo-brokerage/pkg/errors"
)

const lockStripes = 64

// DuckDBRepository implements Repository on an embedded DuckDB database.
//
// Isolation is per account: a striped latch serializes writers of the
// same account within the process, and an optimistic version check on
// the account row catches writers the latch cannot see. The combination
// gives the read-modify-write semantics the ledger requires without a
// database-server lock manager.
type DuckDBRepository struct {
	db         *sql.DB
	logger     *logger.Logger
	sq         squirrel.StatementBuilderType
	maxRetries int
	locks      [lockStripes]sync.Mutex
}

// NewDuckDBRepository opens (or creates) the database at path. An empty
// path opens an in-memory database.
func NewDuckDBRepository(path string, maxRetries int, log *logger.Logger) (*DuckDBRepository, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to open database", err)
	}

	r := &DuckDBRepository{
		db:         db,
		logger:     log,
		sq:         squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		maxRetries: maxRetries,
	}

	if err := r.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return r, nil
}

// initialize creates the ledger tables.
func (r *DuckDBRepository) initialize() error {
	// Sequence gives transactions a total order; LIFO liquidation and
	// history listings sort by it instead of by timestamp, which can tie.
	_, err := r.db.Exec(`CREATE SEQUENCE IF NOT EXISTS tx_seq`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to create sequence", err)
	}

	_, err = r.db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			uid TEXT PRIMARY KEY,
			balance BIGINT,
			used_credit BIGINT,
			credit_limit BIGINT,
			total_realized_profit DOUBLE,
			last_interest_date TEXT,
			version BIGINT
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to create accounts table", err)
	}

	_, err = r.db.Exec(`
		CREATE TABLE IF NOT EXISTS positions (
			uid TEXT,
			symbol TEXT,
			name TEXT,
			quantity BIGINT,
			average_price DOUBLE,
			current_price DOUBLE,
			valuation BIGINT,
			PRIMARY KEY (uid, symbol)
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to create positions table", err)
	}

	_, err = r.db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			seq BIGINT DEFAULT nextval('tx_seq'),
			id TEXT PRIMARY KEY,
			uid TEXT,
			symbol TEXT,
			name TEXT,
			tx_type TEXT,
			price DOUBLE,
			quantity BIGINT,
			amount BIGINT,
			fee BIGINT,
			profit DOUBLE,
			credit_used BIGINT,
			credit_released BIGINT,
			credit_repaid BIGINT,
			created_at TIMESTAMP
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to create transactions table", err)
	}

	_, err = r.db.Exec(`
		CREATE TABLE IF NOT EXISTS limit_orders (
			id TEXT PRIMARY KEY,
			uid TEXT,
			symbol TEXT,
			name TEXT,
			side TEXT,
			target_price DOUBLE,
			currency TEXT,
			quantity BIGINT,
			status TEXT,
			executed_price DOUBLE,
			fail_reason TEXT,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to create limit_orders table", err)
	}

	return nil
}

// Close closes the underlying database.
func (r *DuckDBRepository) Close() error {
	return r.db.Close()
}

func (r *DuckDBRepository) stripe(uid string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(uid))

	return &r.locks[h.Sum32()%lockStripes]
}

// Atomic implements Repository.
func (r *DuckDBRepository) Atomic(ctx context.Context, uid string, fn func(tx Tx) error) error {
	lock := r.stripe(uid)
	lock.Lock()
	defer lock.Unlock()

	var lastErr error

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(errors.ErrCodeTransactionFailed, "context cancelled", err)
		}

		err := r.runOnce(ctx, fn)
		if err == nil {
			return nil
		}

		if !errors.HasCode(err, errors.ErrCodeConcurrentModification) {
			return err
		}

		lastErr = err

		r.logger.Warn("retrying atomic transaction after write conflict",
			zap.String("uid", uid),
			zap.Int("attempt", attempt+1),
		)
		time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
	}

	return errors.Wrapf(errors.ErrCodeConcurrentModification, lastErr,
		"transaction for uid %s failed after %d attempts", uid, r.maxRetries)
}

func (r *DuckDBRepository) runOnce(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeTransactionFailed, "failed to begin transaction", err)
	}

	if err := fn(&duckTx{tx: sqlTx, sq: r.sq}); err != nil {
		sqlTx.Rollback()

		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeTransactionFailed, "failed to commit transaction", err)
	}

	return nil
}

const accountColumns = "uid, balance, used_credit, credit_limit, total_realized_profit, last_interest_date, version"

func scanAccount(row squirrel.RowScanner) (types.Account, error) {
	var account types.Account

	err := row.Scan(
		&account.UID,
		&account.Balance,
		&account.UsedCredit,
		&account.CreditLimit,
		&account.TotalRealizedProfit,
		&account.LastInterestDate,
		&account.Version,
	)

	return account, err
}

// CreateAccount implements Repository.
func (r *DuckDBRepository) CreateAccount(ctx context.Context, account types.Account) error {
	lock := r.stripe(account.UID)
	lock.Lock()
	defer lock.Unlock()

	existsQuery := r.sq.
		Select("COUNT(*)").
		From("accounts").
		Where(squirrel.Eq{"uid": account.UID}).
		RunWith(r.db)

	var count int
	if err := existsQuery.QueryRowContext(ctx).Scan(&count); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to check account existence", err)
	}

	if count > 0 {
		return errors.Newf(errors.ErrCodeAccountExists, "account already exists for uid %s", account.UID)
	}

	insertQuery := r.sq.
		Insert("accounts").
		Columns("uid", "balance", "used_credit", "credit_limit", "total_realized_profit", "last_interest_date", "version").
		Values(account.UID, account.Balance, account.UsedCredit, account.CreditLimit,
			account.TotalRealizedProfit, account.LastInterestDate, 0).
		RunWith(r.db)

	if _, err := insertQuery.ExecContext(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to insert account", err)
	}

	return nil
}

// GetAccount implements Repository.
func (r *DuckDBRepository) GetAccount(ctx context.Context, uid string) (types.Account, error) {
	query := r.sq.
		Select(accountColumns).
		From("accounts").
		Where(squirrel.Eq{"uid": uid}).
		RunWith(r.db)

	account, err := scanAccount(query.QueryRowContext(ctx))
	if err == sql.ErrNoRows {
		return types.Account{}, errors.Newf(errors.ErrCodeUserNotFound, "no account for uid %s", uid)
	}

	if err != nil {
		return types.Account{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query account", err)
	}

	return account, nil
}

// ListAccountsWithCredit implements Repository.
func (r *DuckDBRepository) ListAccountsWithCredit(ctx context.Context) ([]types.Account, error) {
	query := r.sq.
		Select(accountColumns).
		From("accounts").
		Where(squirrel.Gt{"used_credit": 0}).
		OrderBy("uid").
		RunWith(r.db)

	rows, err := query.QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query accounts with credit", err)
	}
	defer rows.Close()

	var accounts []types.Account

	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan account", err)
		}

		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating accounts", err)
	}

	return accounts, nil
}

// ListPositions implements Repository.
func (r *DuckDBRepository) ListPositions(ctx context.Context, uid string) ([]types.Position, error) {
	query := r.sq.
		Select("uid", "symbol", "name", "quantity", "average_price", "current_price", "valuation").
		From("positions").
		Where(squirrel.Eq{"uid": uid}).
		OrderBy("symbol").
		RunWith(r.db)

	rows, err := query.QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query positions", err)
	}
	defer rows.Close()

	var positions []types.Position

	for rows.Next() {
		var position types.Position

		err := rows.Scan(
			&position.UID,
			&position.Symbol,
			&position.Name,
			&position.Quantity,
			&position.AveragePrice,
			&position.CurrentPrice,
			&position.Valuation,
		)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan position", err)
		}

		positions = append(positions, position)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating positions", err)
	}

	return positions, nil
}

const transactionColumns = "id, uid, symbol, name, tx_type, price, quantity, amount, fee, profit, credit_used, credit_released, credit_repaid, created_at"

func (r *DuckDBRepository) listTransactions(ctx context.Context, query squirrel.SelectBuilder) ([]types.Transaction, error) {
	rows, err := query.RunWith(r.db).QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query transactions", err)
	}
	defer rows.Close()

	var transactions []types.Transaction

	for rows.Next() {
		var transaction types.Transaction

		err := rows.Scan(
			&transaction.ID,
			&transaction.UID,
			&transaction.Symbol,
			&transaction.Name,
			&transaction.Type,
			&transaction.Price,
			&transaction.Quantity,
			&transaction.Amount,
			&transaction.Fee,
			&transaction.Profit,
			&transaction.CreditUsed,
			&transaction.CreditReleased,
			&transaction.CreditRepaid,
			&transaction.Timestamp,
		)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan transaction", err)
		}

		transactions = append(transactions, transaction)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating transactions", err)
	}

	return transactions, nil
}

// ListTransactions implements Repository.
func (r *DuckDBRepository) ListTransactions(ctx context.Context, uid string, limit int) ([]types.Transaction, error) {
	query := r.sq.
		Select(transactionColumns).
		From("transactions").
		Where(squirrel.Eq{"uid": uid}).
		OrderBy("seq DESC")

	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	return r.listTransactions(ctx, query)
}

// ListRecentBuyTransactions implements Repository.
func (r *DuckDBRepository) ListRecentBuyTransactions(ctx context.Context, uid string, limit int) ([]types.Transaction, error) {
	query := r.sq.
		Select(transactionColumns).
		From("transactions").
		Where(squirrel.Eq{
			"uid":     uid,
			"tx_type": []types.TransactionType{types.TransactionTypeBuy, types.TransactionTypeCover},
		}).
		OrderBy("seq DESC")

	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	return r.listTransactions(ctx, query)
}

const limitOrderColumns = "id, uid, symbol, name, side, target_price, currency, quantity, status, executed_price, fail_reason, created_at, updated_at"

func scanLimitOrder(row squirrel.RowScanner) (types.LimitOrder, error) {
	var order types.LimitOrder

	err := row.Scan(
		&order.ID,
		&order.UID,
		&order.Symbol,
		&order.Name,
		&order.Side,
		&order.TargetPrice,
		&order.Currency,
		&order.Quantity,
		&order.Status,
		&order.ExecutedPrice,
		&order.FailReason,
		&order.CreatedAt,
		&order.UpdatedAt,
	)

	return order, err
}

// CreateLimitOrder implements Repository.
func (r *DuckDBRepository) CreateLimitOrder(ctx context.Context, order types.LimitOrder) error {
	query := r.sq.
		Insert("limit_orders").
		Columns("id", "uid", "symbol", "name", "side", "target_price", "currency", "quantity",
			"status", "executed_price", "fail_reason", "created_at", "updated_at").
		Values(order.ID, order.UID, order.Symbol, order.Name, order.Side, order.TargetPrice,
			order.Currency, order.Quantity, order.Status, order.ExecutedPrice, order.FailReason,
			order.CreatedAt, order.UpdatedAt).
		RunWith(r.db)

	if _, err := query.ExecContext(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to insert limit order", err)
	}

	return nil
}

// GetLimitOrder implements Repository.
func (r *DuckDBRepository) GetLimitOrder(ctx context.Context, id string) (optional.Option[types.LimitOrder], error) {
	query := r.sq.
		Select(limitOrderColumns).
		From("limit_orders").
		Where(squirrel.Eq{"id": id}).
		RunWith(r.db)

	order, err := scanLimitOrder(query.QueryRowContext(ctx))
	if err == sql.ErrNoRows {
		return optional.None[types.LimitOrder](), nil
	}

	if err != nil {
		return optional.None[types.LimitOrder](), errors.Wrap(errors.ErrCodeQueryFailed, "failed to query limit order", err)
	}

	return optional.Some(order), nil
}

func (r *DuckDBRepository) listLimitOrders(ctx context.Context, where squirrel.Eq) ([]types.LimitOrder, error) {
	query := r.sq.
		Select(limitOrderColumns).
		From("limit_orders").
		Where(where).
		OrderBy("created_at").
		RunWith(r.db)

	rows, err := query.QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query limit orders", err)
	}
	defer rows.Close()

	var orders []types.LimitOrder

	for rows.Next() {
		order, err := scanLimitOrder(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan limit order", err)
		}

		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating limit orders", err)
	}

	return orders, nil
}

// ListPendingLimitOrders implements Repository.
func (r *DuckDBRepository) ListPendingLimitOrders(ctx context.Context) ([]types.LimitOrder, error) {
	return r.listLimitOrders(ctx, squirrel.Eq{"status": types.LimitOrderStatusPending})
}

// ListLimitOrders implements Repository.
func (r *DuckDBRepository) ListLimitOrders(ctx context.Context, uid string) ([]types.LimitOrder, error) {
	return r.listLimitOrders(ctx, squirrel.Eq{"uid": uid})
}

// transitionLimitOrder moves a PENDING order to a terminal status. The
// status guard in the WHERE clause makes the transition happen at most
// once.
func (r *DuckDBRepository) transitionLimitOrder(ctx context.Context, id string, set map[string]any) error {
	query := r.sq.
		Update("limit_orders").
		SetMap(set).
		Set("updated_at", time.Now()).
		Where(squirrel.Eq{"id": id, "status": types.LimitOrderStatusPending}).
		RunWith(r.db)

	result, err := query.ExecContext(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to update limit order", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to read update result", err)
	}

	if affected == 0 {
		existing, err := r.GetLimitOrder(ctx, id)
		if err != nil {
			return err
		}

		if existing.IsNone() {
			return errors.Newf(errors.ErrCodeOrderNotFound, "no limit order with id %s", id)
		}

		return errors.Newf(errors.ErrCodeOrderNotPending, "limit order %s already left PENDING", id)
	}

	return nil
}

// CompleteLimitOrder implements Repository.
func (r *DuckDBRepository) CompleteLimitOrder(ctx context.Context, id string, executedPrice float64) error {
	return r.transitionLimitOrder(ctx, id, map[string]any{
		"status":         types.LimitOrderStatusCompleted,
		"executed_price": executedPrice,
	})
}

// FailLimitOrder implements Repository.
func (r *DuckDBRepository) FailLimitOrder(ctx context.Context, id string, reason string) error {
	return r.transitionLimitOrder(ctx, id, map[string]any{
		"status":      types.LimitOrderStatusFailed,
		"fail_reason": reason,
	})
}

// CancelLimitOrder implements Repository.
func (r *DuckDBRepository) CancelLimitOrder(ctx context.Context, id string, uid string) error {
	query := r.sq.
		Delete("limit_orders").
		Where(squirrel.Eq{"id": id, "uid": uid, "status": types.LimitOrderStatusPending}).
		RunWith(r.db)

	result, err := query.ExecContext(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to delete limit order", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to read delete result", err)
	}

	if affected == 0 {
		existing, err := r.GetLimitOrder(ctx, id)
		if err != nil {
			return err
		}

		if existing.IsNone() || existing.Unwrap().UID != uid {
			return errors.Newf(errors.ErrCodeOrderNotFound, "no limit order with id %s", id)
		}

		return errors.Newf(errors.ErrCodeOrderNotPending, "limit order %s already left PENDING", id)
	}

	return nil
}
