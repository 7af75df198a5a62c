package matcher

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-brokerage/internal/executor"
	"github.com/rxtech-lab/argo-brokerage/internal/fee"
	"github.com/rxtech-lab/argo-brokerage/internal/logger"
	"github.com/rxtech-lab/argo-brokerage/internal/oracle"
	"github.com/rxtech-lab/argo-brokerage/internal/repository"
	"github.com/rxtech-lab/argo-brokerage/internal/types"
)

const matcherUID = "user-1"

type MatcherTestSuite struct {
	suite.Suite
	repo    *repository.DuckDBRepository
	source  *oracle.StaticSource
	matcher *Matcher
}

func TestMatcherSuite(t *testing.T) {
	suite.Run(t, new(MatcherTestSuite))
}

func (suite *MatcherTestSuite) SetupTest() {
	repo, err := repository.NewDuckDBRepository("", 5, logger.NewNopLogger())
	suite.Require().NoError(err)
	suite.repo = repo

	suite.source = oracle.NewStaticSource(nil, nil)

	exec := executor.NewExecutor(repo, fee.NewZeroSchedule(), logger.NewNopLogger())
	suite.matcher = NewMatcher(repo, exec, suite.source, "KRW", logger.NewNopLogger())

	err = repo.CreateAccount(context.Background(), types.Account{
		UID:     matcherUID,
		Balance: 1_000_000,
	})
	suite.Require().NoError(err)
}

func (suite *MatcherTestSuite) TearDownTest() {
	if suite.repo != nil {
		suite.repo.Close()
	}
}

func (suite *MatcherTestSuite) createOrder(side types.PurchaseType, symbol string, targetPrice float64, currency string, quantity int64) string {
	now := time.Now()
	order := types.LimitOrder{
		ID:          uuid.New().String(),
		UID:         matcherUID,
		Symbol:      symbol,
		Name:        symbol,
		Side:        side,
		TargetPrice: targetPrice,
		Currency:    currency,
		Quantity:    quantity,
		Status:      types.LimitOrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	suite.Require().NoError(suite.repo.CreateLimitOrder(context.Background(), order))

	return order.ID
}

func (suite *MatcherTestSuite) setQuote(symbol string, price float64, currency string) {
	suite.source.SetQuote(oracle.Quote{
		Symbol:   symbol,
		Name:     symbol,
		Price:    price,
		Currency: currency,
		Market:   "KOSPI",
	})
}

func (suite *MatcherTestSuite) order(id string) types.LimitOrder {
	orderOpt, err := suite.repo.GetLimitOrder(context.Background(), id)
	suite.Require().NoError(err)
	suite.Require().True(orderOpt.IsSome())

	return orderOpt.Unwrap()
}

func (suite *MatcherTestSuite) TestBuyFiresAtOrBelowTarget() {
	id := suite.createOrder(types.PurchaseTypeBuy, "AAA", 100, "KRW", 5)
	suite.setQuote("AAA", 90, "KRW")

	suite.Require().NoError(suite.matcher.Run(context.Background()))

	order := suite.order(id)
	suite.Equal(types.LimitOrderStatusCompleted, order.Status)
	// Fills at the live price, not the target
	suite.Equal(float64(90), order.ExecutedPrice)

	account, err := suite.repo.GetAccount(context.Background(), matcherUID)
	suite.Require().NoError(err)
	suite.Equal(int64(1_000_000-450), account.Balance)

	positions, err := suite.repo.ListPositions(context.Background(), matcherUID)
	suite.Require().NoError(err)
	suite.Require().Len(positions, 1)
	suite.Equal(int64(5), positions[0].Quantity)

	transactions, err := suite.repo.ListTransactions(context.Background(), matcherUID, 0)
	suite.Require().NoError(err)
	suite.Require().Len(transactions, 1)
	suite.Equal(types.TransactionTypeBuy, transactions[0].Type)
}

func (suite *MatcherTestSuite) TestBuyWaitsAboveTarget() {
	id := suite.createOrder(types.PurchaseTypeBuy, "AAA", 100, "KRW", 5)
	suite.setQuote("AAA", 110, "KRW")

	suite.Require().NoError(suite.matcher.Run(context.Background()))

	suite.Equal(types.LimitOrderStatusPending, suite.order(id).Status)
}

func (suite *MatcherTestSuite) TestSellFiresAtOrAboveTarget() {
	err := suite.repo.Atomic(context.Background(), matcherUID, func(tx repository.Tx) error {
		return tx.PutPosition(types.Position{
			UID: matcherUID, Symbol: "BBB", Name: "BBB",
			Quantity: 10, AveragePrice: 100, CurrentPrice: 100, Valuation: 1_000,
		})
	})
	suite.Require().NoError(err)

	id := suite.createOrder(types.PurchaseTypeSell, "BBB", 120, "KRW", 10)
	suite.setQuote("BBB", 120, "KRW")

	suite.Require().NoError(suite.matcher.Run(context.Background()))

	order := suite.order(id)
	suite.Equal(types.LimitOrderStatusCompleted, order.Status)
	suite.Equal(float64(120), order.ExecutedPrice)

	account, err := suite.repo.GetAccount(context.Background(), matcherUID)
	suite.Require().NoError(err)
	suite.Equal(int64(1_000_000+1_200), account.Balance)
}

func (suite *MatcherTestSuite) TestUnquotedSymbolStaysPending() {
	id := suite.createOrder(types.PurchaseTypeBuy, "GHOST", 100, "KRW", 5)

	suite.Require().NoError(suite.matcher.Run(context.Background()))

	suite.Equal(types.LimitOrderStatusPending, suite.order(id).Status)
}

func (suite *MatcherTestSuite) TestForeignQuoteComparedInOrderCurrency() {
	// Target 2200 KRW against a 1.5 USD quote at rate 1400:
	// compare price floor(1.5 × 1400) = 2100 ≤ 2200, so the buy fires
	id := suite.createOrder(types.PurchaseTypeBuy, "USD1", 2_200, "KRW", 2)
	suite.setQuote("USD1", 1.5, "USD")
	suite.source.SetRate("USD", 1_400)

	suite.Require().NoError(suite.matcher.Run(context.Background()))

	order := suite.order(id)
	suite.Equal(types.LimitOrderStatusCompleted, order.Status)
	suite.Equal(float64(2_100), order.ExecutedPrice)
}

func (suite *MatcherTestSuite) TestForeignQuoteWithoutRateDeferred() {
	id := suite.createOrder(types.PurchaseTypeBuy, "USD1", 2_200, "KRW", 2)
	suite.setQuote("USD1", 1.5, "USD")
	// No USD rate registered

	suite.Require().NoError(suite.matcher.Run(context.Background()))

	suite.Equal(types.LimitOrderStatusPending, suite.order(id).Status)
}

func (suite *MatcherTestSuite) TestRejectedOrderMarkedFailed() {
	// 5 × 90 = 450 exceeds a 100 balance with no credit line
	err := suite.repo.Atomic(context.Background(), matcherUID, func(tx repository.Tx) error {
		account, err := tx.GetAccount(matcherUID)
		if err != nil {
			return err
		}

		account.Balance = 100

		return tx.UpdateAccount(account)
	})
	suite.Require().NoError(err)

	id := suite.createOrder(types.PurchaseTypeBuy, "AAA", 100, "KRW", 5)
	suite.setQuote("AAA", 90, "KRW")

	suite.Require().NoError(suite.matcher.Run(context.Background()))

	order := suite.order(id)
	suite.Equal(types.LimitOrderStatusFailed, order.Status)
	suite.NotEmpty(order.FailReason)

	// The rejected fill left no trace on the ledger
	transactions, err := suite.repo.ListTransactions(context.Background(), matcherUID, 0)
	suite.Require().NoError(err)
	suite.Empty(transactions)
}

func (suite *MatcherTestSuite) TestOrderTransitionsExactlyOnce() {
	id := suite.createOrder(types.PurchaseTypeBuy, "AAA", 100, "KRW", 5)
	suite.setQuote("AAA", 90, "KRW")

	suite.Require().NoError(suite.matcher.Run(context.Background()))
	suite.Require().NoError(suite.matcher.Run(context.Background()))

	suite.Equal(types.LimitOrderStatusCompleted, suite.order(id).Status)

	transactions, err := suite.repo.ListTransactions(context.Background(), matcherUID, 0)
	suite.Require().NoError(err)
	suite.Len(transactions, 1)
}
