// Package executor holds the atomic buy/sell state transition. It is the
// single place position quantity, average price, cash, and credit are
// mutated; interactive orders, the liquidation job, and the limit-order
// matcher all funnel through it.
package executor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-brokerage/internal/fee"
	"github.com/rxtech-lab/argo-brokerage/internal/logger"
	"github.com/rxtech-lab/argo-brokerage/internal/repository"
	"github.com/rxtech-lab/argo-brokerage/internal/types"
	"github.com/rxtech-lab/argo-brokerage/pkg/errors"
)

// Executor applies buy and sell fills to the ledger. Prices must
// already be in the base currency; the executor is currency-agnostic.
type Executor struct {
	repo   repository.Repository
	fees   fee.Schedule
	logger *logger.Logger
	now    func() time.Time
}

// NewExecutor creates an Executor using the given fee schedule.
func NewExecutor(repo repository.Repository, fees fee.Schedule, log *logger.Logger) *Executor {
	return &Executor{
		repo:   repo,
		fees:   fees,
		logger: log,
		now:    time.Now,
	}
}

// ExecuteBuy fills a buy order and returns the total cost charged.
//
// If the account holds a short in the symbol, the buy first covers up to
// the shorted quantity, realizing profit and releasing the margin that
// was reserved at entry; any remaining shares open or extend a long.
// Funds draw cash first, then the credit line. Cover-driven buys bypass
// the funds check: they reduce risk even when the account cannot fund a
// fresh purchase.
func (e *Executor) ExecuteBuy(ctx context.Context, req types.OrderRequest) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}

	cost := types.FloorMul(req.Price, req.Quantity)

	err := e.repo.Atomic(ctx, req.UID, func(tx repository.Tx) error {
		account, err := tx.GetAccount(req.UID)
		if err != nil {
			return err
		}

		positionOpt, err := tx.GetPosition(req.UID, req.Symbol)
		if err != nil {
			return err
		}

		var currentQty int64

		var currentAvg float64

		if positionOpt.IsSome() {
			position := positionOpt.Unwrap()
			currentQty = position.Quantity
			currentAvg = position.AveragePrice
		}

		var creditToRelease int64

		var profit float64

		if currentQty < 0 {
			covered := min(-currentQty, req.Quantity)
			creditToRelease = types.FloorMul(currentAvg, covered)
			profit = mulFloat(currentAvg-req.Price, covered)
		}

		cashToUse := cost

		var creditToUse int64

		if account.Balance < cost {
			cashToUse = max(0, account.Balance)
			creditToUse = cost - cashToUse
		}

		totalAvailable := account.Balance + account.AvailableCredit()
		if totalAvailable < cost && currentQty >= 0 {
			return errors.Newf(errors.ErrCodeInsufficientFunds,
				"uid %s needs %d but has %d available including credit", req.UID, cost, totalAvailable)
		}

		newQty := currentQty + req.Quantity

		account.Balance += creditToRelease - cashToUse
		account.UsedCredit += creditToUse - creditToRelease
		account.TotalRealizedProfit += profit

		if err := tx.UpdateAccount(account); err != nil {
			return err
		}

		if newQty == 0 {
			if err := tx.DeletePosition(req.UID, req.Symbol); err != nil {
				return err
			}
		} else {
			newAvg := req.Price

			switch {
			case currentQty > 0:
				// Long add: cost-weighted average, floored.
				newAvg = floorWeightedAvg(currentAvg, currentQty, cost, newQty)
			case currentQty < 0 && newQty < 0:
				// Partial cover leaves the short entry price unchanged.
				newAvg = currentAvg
			}

			position := types.Position{
				UID:          req.UID,
				Symbol:       req.Symbol,
				Name:         req.Name,
				Quantity:     newQty,
				AveragePrice: newAvg,
				CurrentPrice: req.Price,
				Valuation:    types.FloorMul(req.Price, abs(newQty)),
			}
			if err := tx.PutPosition(position); err != nil {
				return err
			}
		}

		txType := types.TransactionTypeBuy
		if currentQty < 0 {
			txType = types.TransactionTypeCover
		}

		return tx.AppendTransaction(types.Transaction{
			ID:             uuid.New().String(),
			UID:            req.UID,
			Symbol:         req.Symbol,
			Name:           req.Name,
			Type:           txType,
			Price:          req.Price,
			Quantity:       req.Quantity,
			Amount:         cost,
			Fee:            0,
			Profit:         profit,
			CreditUsed:     creditToUse,
			CreditReleased: creditToRelease,
			Timestamp:      e.now(),
		})
	})
	if err != nil {
		return 0, err
	}

	e.logger.Info("buy executed",
		zap.String("uid", req.UID),
		zap.String("symbol", req.Symbol),
		zap.Int64("quantity", req.Quantity),
		zap.Float64("price", req.Price),
		zap.Int64("cost", cost),
	)

	return cost, nil
}

// ExecuteSell fills a sell order and returns the cash proceeds received.
//
// A sell against a long first closes up to the owned quantity, realizing
// profit against the cost basis; proceeds repay used credit before
// topping up cash. Any surplus quantity opens or extends a short, which
// reserves the full sale amount as margin rather than paying out cash.
// A sell that crosses through zero records two fills: a SELL for the
// closing leg and a SHORT for the opening leg.
func (e *Executor) ExecuteSell(ctx context.Context, req types.OrderRequest) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}

	var totalProceeds int64

	err := e.repo.Atomic(ctx, req.UID, func(tx repository.Tx) error {
		totalProceeds = 0

		account, err := tx.GetAccount(req.UID)
		if err != nil {
			return err
		}

		positionOpt, err := tx.GetPosition(req.UID, req.Symbol)
		if err != nil {
			return err
		}

		var currentQty int64

		var currentAvg float64

		if positionOpt.IsSome() {
			position := positionOpt.Unwrap()
			currentQty = position.Quantity
			currentAvg = position.AveragePrice
		}

		closeQty := min(max(currentQty, 0), req.Quantity)
		shortQty := req.Quantity - closeQty
		now := e.now()

		// Closing leg: sell held shares for cash.
		if closeQty > 0 {
			amount := types.FloorMul(req.Price, closeQty)
			saleFee := e.fees.Calculate(amount)
			proceeds := amount - saleFee
			profit := float64(proceeds - types.FloorMul(currentAvg, closeQty))

			var creditRepaid int64
			if account.UsedCredit > 0 {
				creditRepaid = min(account.UsedCredit, proceeds)
			}

			account.Balance += proceeds - creditRepaid
			account.UsedCredit -= creditRepaid
			account.TotalRealizedProfit += profit
			totalProceeds += proceeds

			err := tx.AppendTransaction(types.Transaction{
				ID:           uuid.New().String(),
				UID:          req.UID,
				Symbol:       req.Symbol,
				Name:         req.Name,
				Type:         types.TransactionTypeSell,
				Price:        req.Price,
				Quantity:     closeQty,
				Amount:       amount,
				Fee:          saleFee,
				Profit:       profit,
				CreditRepaid: creditRepaid,
				Timestamp:    now,
			})
			if err != nil {
				return err
			}
		}

		// Opening leg: short the surplus, reserving the sale amount as margin.
		if shortQty > 0 {
			amount := types.FloorMul(req.Price, shortQty)

			if account.AvailableCredit() < amount {
				return errors.Newf(errors.ErrCodeInsufficientCredit,
					"uid %s needs %d margin but has %d credit available", req.UID, amount, account.AvailableCredit())
			}

			account.UsedCredit += amount

			err := tx.AppendTransaction(types.Transaction{
				ID:         uuid.New().String(),
				UID:        req.UID,
				Symbol:     req.Symbol,
				Name:       req.Name,
				Type:       types.TransactionTypeShort,
				Price:      req.Price,
				Quantity:   shortQty,
				Amount:     amount,
				CreditUsed: amount,
				Timestamp:  now,
			})
			if err != nil {
				return err
			}
		}

		if err := tx.UpdateAccount(account); err != nil {
			return err
		}

		newQty := currentQty - req.Quantity
		if newQty == 0 {
			return tx.DeletePosition(req.UID, req.Symbol)
		}

		newAvg := currentAvg

		switch {
		case currentQty <= 0:
			// Growing short: quantity-weighted average of sale amounts.
			newAvg = floorWeightedAvg(currentAvg, -currentQty, types.FloorMul(req.Price, shortQty), -newQty)
		case newQty < 0:
			// Flip from long to short: the opening leg resets the entry price.
			newAvg = req.Price
		}

		position := types.Position{
			UID:          req.UID,
			Symbol:       req.Symbol,
			Name:         req.Name,
			Quantity:     newQty,
			AveragePrice: newAvg,
			CurrentPrice: req.Price,
			Valuation:    types.FloorMul(req.Price, abs(newQty)),
		}

		return tx.PutPosition(position)
	})
	if err != nil {
		return 0, err
	}

	e.logger.Info("sell executed",
		zap.String("uid", req.UID),
		zap.String("symbol", req.Symbol),
		zap.Int64("quantity", req.Quantity),
		zap.Float64("price", req.Price),
		zap.Int64("proceeds", totalProceeds),
	)

	return totalProceeds, nil
}

// GrantReward credits cash to an account and records a REWARD fill.
func (e *Executor) GrantReward(ctx context.Context, uid string, amount int64, note string) error {
	if amount <= 0 {
		return errors.New(errors.ErrCodeInvalidParameter, "reward amount must be positive")
	}

	err := e.repo.Atomic(ctx, uid, func(tx repository.Tx) error {
		account, err := tx.GetAccount(uid)
		if err != nil {
			return err
		}

		account.Balance += amount

		if err := tx.UpdateAccount(account); err != nil {
			return err
		}

		return tx.AppendTransaction(types.Transaction{
			ID:        uuid.New().String(),
			UID:       uid,
			Name:      note,
			Type:      types.TransactionTypeReward,
			Quantity:  1,
			Amount:    amount,
			Timestamp: e.now(),
		})
	})
	if err != nil {
		return err
	}

	e.logger.Info("reward granted",
		zap.String("uid", uid),
		zap.Int64("amount", amount),
	)

	return nil
}

// floorWeightedAvg computes floor((avg×qty + addedAmount) / newQty).
func floorWeightedAvg(avg float64, qty int64, addedAmount int64, newQty int64) float64 {
	value := decimal.NewFromFloat(avg).
		Mul(decimal.NewFromInt(qty)).
		Add(decimal.NewFromInt(addedAmount)).
		Div(decimal.NewFromInt(newQty)).
		Floor()
	f, _ := value.Float64()

	return f
}

func mulFloat(perShare float64, quantity int64) float64 {
	f, _ := decimal.NewFromFloat(perShare).
		Mul(decimal.NewFromInt(quantity)).
		Float64()

	return f
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}

	return v
}
