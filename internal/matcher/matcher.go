// Package matcher triggers standing limit orders against current market
// prices and routes the fills through the executor.
package matcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-brokerage/internal/executor"
	"github.com/rxtech-lab/argo-brokerage/internal/logger"
	"github.com/rxtech-lab/argo-brokerage/internal/oracle"
	"github.com/rxtech-lab/argo-brokerage/internal/repository"
	"github.com/rxtech-lab/argo-brokerage/internal/types"
	"github.com/rxtech-lab/argo-brokerage/pkg/errors"
)

// Matcher scans PENDING limit orders each cycle. An order whose symbol
// cannot be priced is left untouched for the next cycle; an order whose
// condition is met transitions exactly once, to COMPLETED on a clean
// fill or FAILED with the executor's message.
type Matcher struct {
	repo   repository.Repository
	exec   *executor.Executor
	src    oracle.Source
	logger *logger.Logger

	baseCurrency string
}

// NewMatcher builds a Matcher.
func NewMatcher(repo repository.Repository, exec *executor.Executor, src oracle.Source, baseCurrency string, log *logger.Logger) *Matcher {
	return &Matcher{
		repo:         repo,
		exec:         exec,
		src:          src,
		logger:       log,
		baseCurrency: baseCurrency,
	}
}

// Run executes one matching cycle. Per-order failures are logged and
// isolated; Run itself fails only when pending orders cannot be listed.
func (m *Matcher) Run(ctx context.Context) error {
	orders, err := m.repo.ListPendingLimitOrders(ctx)
	if err != nil {
		return err
	}

	for _, order := range orders {
		if err := m.match(ctx, order); err != nil {
			m.logger.Error("limit order matching failed",
				zap.String("orderId", order.ID),
				zap.String("uid", order.UID),
				zap.Error(err))
		}
	}

	return nil
}

func (m *Matcher) match(ctx context.Context, order types.LimitOrder) error {
	quoteOpt, err := m.src.Lookup(ctx, order.Symbol)
	if err != nil {
		return err
	}

	if quoteOpt.IsNone() {
		// No quote this cycle; the order stays PENDING
		return nil
	}

	quote := quoteOpt.Unwrap()

	comparePrice := quote.Price

	if quote.Currency != order.Currency {
		rateOpt, err := m.src.ExchangeRate(ctx, quote.Currency)
		if err != nil {
			return err
		}

		if rateOpt.IsNone() {
			m.logger.Warn("no exchange rate for quote currency, deferring order",
				zap.String("orderId", order.ID),
				zap.String("currency", quote.Currency))

			return nil
		}

		comparePrice = types.FloorConvert(quote.Price, rateOpt.Unwrap())
	}

	if !triggered(order.Side, comparePrice, order.TargetPrice) {
		return nil
	}

	executionPrice, err := m.executionPrice(ctx, quote)
	if err != nil {
		return err
	}

	request := types.OrderRequest{
		UID:       order.UID,
		Symbol:    order.Symbol,
		Name:      order.Name,
		Price:     executionPrice,
		Quantity:  order.Quantity,
		OrderType: types.OrderTypeLimit,
	}

	if order.Side == types.PurchaseTypeBuy {
		_, err = m.exec.ExecuteBuy(ctx, request)
	} else {
		_, err = m.exec.ExecuteSell(ctx, request)
	}

	if err != nil {
		m.logger.Warn("limit order rejected by executor",
			zap.String("orderId", order.ID),
			zap.String("uid", order.UID),
			zap.Error(err))

		return m.repo.FailLimitOrder(ctx, order.ID, err.Error())
	}

	if err := m.repo.CompleteLimitOrder(ctx, order.ID, executionPrice); err != nil {
		return err
	}

	m.logger.Info("limit order executed",
		zap.String("orderId", order.ID),
		zap.String("uid", order.UID),
		zap.String("symbol", order.Symbol),
		zap.Float64("executedPrice", executionPrice))

	return nil
}

// executionPrice converts the current quote into the base currency. The
// fill always uses the live price, never the target.
func (m *Matcher) executionPrice(ctx context.Context, quote oracle.Quote) (float64, error) {
	if quote.Currency == m.baseCurrency {
		return quote.Price, nil
	}

	rateOpt, err := m.src.ExchangeRate(ctx, quote.Currency)
	if err != nil {
		return 0, err
	}

	if rateOpt.IsNone() {
		return 0, errors.New(errors.ErrCodeRateUnavailable, "no exchange rate for "+quote.Currency)
	}

	return types.FloorConvert(quote.Price, rateOpt.Unwrap()), nil
}

// triggered reports whether the market has crossed the order's target:
// buys fire at or below it, sells at or above it.
func triggered(side types.PurchaseType, comparePrice, targetPrice float64) bool {
	if side == types.PurchaseTypeBuy {
		return comparePrice <= targetPrice
	}

	return comparePrice >= targetPrice
}
