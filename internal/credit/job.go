// Package credit runs the daily interest accrual and forced-liquidation
// pass over every account that has borrowed against its credit line.
package credit

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-brokerage/internal/config"
	"github.com/rxtech-lab/argo-brokerage/internal/executor"
	"github.com/rxtech-lab/argo-brokerage/internal/logger"
	"github.com/rxtech-lab/argo-brokerage/internal/oracle"
	"github.com/rxtech-lab/argo-brokerage/internal/repository"
	"github.com/rxtech-lab/argo-brokerage/internal/types"
)

// Job accrues interest on used credit and unwinds positions for any
// account left over its credit limit. Each step commits through its own
// atomic repository transaction, so a crash mid-pass leaves the ledger
// consistent and the next run recomputes the remaining excess from
// fresh state.
type Job struct {
	repo   repository.Repository
	exec   *executor.Executor
	src    oracle.Source
	logger *logger.Logger

	baseCurrency string
	dailyRate    float64
	liqFeeRate   float64
	lookback     int
	location     *time.Location

	now func() time.Time
}

// NewJob builds the daily job from the shared configuration.
func NewJob(repo repository.Repository, exec *executor.Executor, src oracle.Source, cfg config.Config, log *logger.Logger) (*Job, error) {
	location, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	return &Job{
		repo:         repo,
		exec:         exec,
		src:          src,
		logger:       log,
		baseCurrency: cfg.BaseCurrency,
		dailyRate:    cfg.DailyInterestRate,
		liqFeeRate:   cfg.LiquidationFeeRate,
		lookback:     cfg.LiquidationLookback,
		location:     location,
		now:          time.Now,
	}, nil
}

// Run executes one interest-and-liquidation pass. Per-account failures
// are logged and skipped so one broken account cannot block the batch;
// Run itself fails only when the account listing is unavailable.
func (j *Job) Run(ctx context.Context) error {
	accounts, err := j.repo.ListAccountsWithCredit(ctx)
	if err != nil {
		return err
	}

	today := j.now().In(j.location).Format(types.InterestDateLayout)

	for _, account := range accounts {
		if err := j.accrueInterest(ctx, account.UID, today); err != nil {
			j.logger.Error("interest accrual failed",
				zap.String("uid", account.UID),
				zap.Error(err))

			continue
		}

		refreshed, err := j.repo.GetAccount(ctx, account.UID)
		if err != nil {
			j.logger.Error("failed to reread account after accrual",
				zap.String("uid", account.UID),
				zap.Error(err))

			continue
		}

		if refreshed.UsedCredit <= refreshed.CreditLimit {
			continue
		}

		if err := j.liquidate(ctx, refreshed); err != nil {
			j.logger.Error("liquidation failed",
				zap.String("uid", account.UID),
				zap.Error(err))
		}
	}

	return nil
}

// accrueInterest charges floor(usedCredit × dailyRate × days) once per
// calendar day. Accounts without a recorded date are initialized to
// today without a charge.
func (j *Job) accrueInterest(ctx context.Context, uid string, today string) error {
	return j.repo.Atomic(ctx, uid, func(tx repository.Tx) error {
		account, err := tx.GetAccount(uid)
		if err != nil {
			return err
		}

		if account.UsedCredit <= 0 {
			return nil
		}

		if account.LastInterestDate == "" {
			account.LastInterestDate = today

			return tx.UpdateAccount(account)
		}

		days := types.CalendarDays(account.LastInterestDate, j.now().In(j.location), j.location)
		if days == 0 {
			return nil
		}

		interest := decimal.NewFromInt(account.UsedCredit).
			Mul(decimal.NewFromFloat(j.dailyRate)).
			Mul(decimal.NewFromInt(int64(days))).
			Floor().IntPart()

		account.UsedCredit += interest
		account.LastInterestDate = today

		if err := tx.UpdateAccount(account); err != nil {
			return err
		}

		j.logger.Info("interest accrued",
			zap.String("uid", uid),
			zap.Int("days", days),
			zap.Int64("interest", interest),
			zap.Int64("usedCredit", account.UsedCredit))

		return nil
	})
}

// liquidate forces sells and covers until usedCredit falls back under
// the credit limit. Recently bought symbols go first, then whatever
// remains of the portfolio; every trade goes through the executor as
// its own committed fill.
func (j *Job) liquidate(ctx context.Context, account types.Account) error {
	uid := account.UID

	positions, err := j.repo.ListPositions(ctx, uid)
	if err != nil {
		return err
	}

	if len(positions) == 0 {
		j.logger.Warn("account over limit with no positions to liquidate",
			zap.String("uid", uid),
			zap.Int64("usedCredit", account.UsedCredit),
			zap.Int64("creditLimit", account.CreditLimit))

		return nil
	}

	symbols := make([]string, 0, len(positions))
	for _, position := range positions {
		symbols = append(symbols, position.Symbol)
	}

	snapshot, err := oracle.TakeSnapshot(ctx, j.src, j.baseCurrency, symbols)
	if err != nil {
		return err
	}

	recent, err := j.repo.ListRecentBuyTransactions(ctx, uid, j.lookback)
	if err != nil {
		return err
	}

	for _, symbol := range j.unwindOrder(positions, recent) {
		current, err := j.repo.GetAccount(ctx, uid)
		if err != nil {
			return err
		}

		excess := current.UsedCredit - current.CreditLimit
		if excess <= 0 {
			j.logger.Info("liquidation resolved",
				zap.String("uid", uid),
				zap.Int64("usedCredit", current.UsedCredit))

			return nil
		}

		priceOpt := snapshot.Price(symbol)
		if priceOpt.IsNone() {
			j.logger.Warn("no price for held symbol, skipping",
				zap.String("uid", uid),
				zap.String("symbol", symbol))

			continue
		}

		if err := j.unwindSymbol(ctx, uid, symbol, priceOpt.Unwrap(), excess); err != nil {
			j.logger.Error("forced trade failed",
				zap.String("uid", uid),
				zap.String("symbol", symbol),
				zap.Error(err))
		}
	}

	final, err := j.repo.GetAccount(ctx, uid)
	if err != nil {
		return err
	}

	if excess := final.UsedCredit - final.CreditLimit; excess > 0 {
		j.logger.Warn("liquidation exhausted portfolio with excess remaining",
			zap.String("uid", uid),
			zap.Int64("excess", excess))
	}

	return nil
}

// unwindOrder returns held symbols in forced-unwind order: most recent
// buys first, then any holdings the lookback window missed.
func (j *Job) unwindOrder(positions []types.Position, recent []types.Transaction) []string {
	held := make(map[string]bool, len(positions))
	for _, position := range positions {
		held[position.Symbol] = true
	}

	order := make([]string, 0, len(positions))
	seen := make(map[string]bool, len(positions))

	for _, transaction := range recent {
		if held[transaction.Symbol] && !seen[transaction.Symbol] {
			order = append(order, transaction.Symbol)
			seen[transaction.Symbol] = true
		}
	}

	for _, position := range positions {
		if !seen[position.Symbol] {
			order = append(order, position.Symbol)
		}
	}

	return order
}

// unwindSymbol sells or covers just enough shares of one symbol to
// absorb the remaining excess.
func (j *Job) unwindSymbol(ctx context.Context, uid string, symbol string, price float64, excess int64) error {
	positions, err := j.repo.ListPositions(ctx, uid)
	if err != nil {
		return err
	}

	var position *types.Position

	for i := range positions {
		if positions[i].Symbol == symbol {
			position = &positions[i]

			break
		}
	}

	if position == nil || position.Quantity == 0 || price <= 0 {
		return nil
	}

	request := types.OrderRequest{
		UID:       uid,
		Symbol:    symbol,
		Name:      position.Name,
		Price:     price,
		OrderType: types.OrderTypeMarket,
	}

	if position.IsLong() {
		// Each sold share nets roughly price×(1−fee) toward the excess.
		netPrice := decimal.NewFromFloat(price).
			Mul(decimal.NewFromFloat(1 - j.liqFeeRate))

		shares := decimal.NewFromInt(excess).Div(netPrice).Floor().IntPart() + 1
		if shares > position.Quantity {
			shares = position.Quantity
		}

		request.Quantity = shares

		proceeds, err := j.exec.ExecuteSell(ctx, request)
		if err != nil {
			return err
		}

		j.logger.Info("forced sell",
			zap.String("uid", uid),
			zap.String("symbol", symbol),
			zap.Int64("quantity", shares),
			zap.Int64("proceeds", proceeds))

		return nil
	}

	// Covering a short releases floor(averagePrice × covered) of margin.
	avg := decimal.NewFromFloat(position.AveragePrice)
	if !avg.IsPositive() {
		return nil
	}

	shares := decimal.NewFromInt(excess).Div(avg).Floor().IntPart() + 1
	if shares > position.AbsQuantity() {
		shares = position.AbsQuantity()
	}

	request.Quantity = shares

	cost, err := j.exec.ExecuteBuy(ctx, request)
	if err != nil {
		return err
	}

	j.logger.Info("forced cover",
		zap.String("uid", uid),
		zap.String("symbol", symbol),
		zap.Int64("quantity", shares),
		zap.Int64("cost", cost))

	return nil
}
