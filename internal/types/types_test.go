package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type TypesTestSuite struct {
	suite.Suite
}

func TestTypesSuite(t *testing.T) {
	suite.Run(t, new(TypesTestSuite))
}

func (suite *TypesTestSuite) TestFloorMul() {
	suite.Equal(int64(700000), FloorMul(70000, 10))
	suite.Equal(int64(350000), FloorMul(70000, 5))
	// Fractional price floors down
	suite.Equal(int64(1003), FloorMul(100.35, 10))
}

func (suite *TypesTestSuite) TestFloorRate() {
	// 0.05% sell fee
	suite.Equal(int64(350), FloorRate(700000, 0.0005))
	suite.Equal(int64(0), FloorRate(100, 0.0005))
	// 0.1% daily interest
	suite.Equal(int64(1000), FloorRate(1000000, 0.001))
}

func (suite *TypesTestSuite) TestFloorConvert() {
	suite.Equal(float64(140000), FloorConvert(100, 1400))
	suite.Equal(float64(141234), FloorConvert(100.8818, 1400))
}

func (suite *TypesTestSuite) TestAvailableAndExcessCredit() {
	account := Account{UsedCredit: 100, CreditLimit: 80}
	suite.Equal(int64(-20), account.AvailableCredit())
	suite.Equal(int64(20), account.ExcessCredit())

	account = Account{UsedCredit: 50, CreditLimit: 80}
	suite.Equal(int64(30), account.AvailableCredit())
	suite.Equal(int64(0), account.ExcessCredit())
}

func (suite *TypesTestSuite) TestOrderRequestValidate() {
	req := OrderRequest{UID: "u1", Symbol: "005930", Price: 70000, Quantity: 10, OrderType: OrderTypeMarket}
	suite.NoError(req.Validate())

	req.Quantity = 0
	suite.Error(req.Validate())

	req.Quantity = 10
	req.Price = -1
	suite.Error(req.Validate())
}

func (suite *TypesTestSuite) TestCalendarDays() {
	loc := time.UTC
	today := time.Date(2025, 3, 10, 15, 30, 0, 0, loc)

	suite.Equal(0, CalendarDays("", today, loc))
	suite.Equal(0, CalendarDays("not-a-date", today, loc))
	suite.Equal(0, CalendarDays("2025-03-10", today, loc))
	suite.Equal(1, CalendarDays("2025-03-09", today, loc))
	suite.Equal(3, CalendarDays("2025-03-07", today, loc))
	// Future dates never charge
	suite.Equal(0, CalendarDays("2025-03-11", today, loc))
}

// Equity scenarios mirror the spot checks used to validate the short
// margin formula: balance + longValue − shortCurrentValue − usedCredit
// + 2×shortInitialValue.
func (suite *TypesTestSuite) TestAccountEquity() {
	// 1. Pure cash
	acc := Account{Balance: 10_000_000}
	suite.Equal(int64(10_000_000), AccountEquity(acc, nil, nil))

	// 2. Long position, no debt
	acc = Account{Balance: 0}
	positions := []Position{{Symbol: "A", Quantity: 100, AveragePrice: 100_000, CurrentPrice: 100_000}}
	suite.Equal(int64(10_000_000), AccountEquity(acc, positions, nil))

	// 3. Long on margin: 20M holding, 10M debt
	acc = Account{Balance: 0, UsedCredit: 10_000_000}
	positions = []Position{{Symbol: "A", Quantity: 200, CurrentPrice: 100_000}}
	suite.Equal(int64(10_000_000), AccountEquity(acc, positions, nil))

	// 4. Short with profit: opened at 100M margin, now worth 90M
	acc = Account{Balance: 10_000_000, UsedCredit: 100_000_000}
	positions = []Position{{Symbol: "S", Quantity: -1000, AveragePrice: 100_000, CurrentPrice: 90_000}}
	suite.Equal(int64(20_000_000), AccountEquity(acc, positions, nil))

	// 5. Short with loss: now worth 110M
	positions = []Position{{Symbol: "S", Quantity: -1000, AveragePrice: 100_000, CurrentPrice: 110_000}}
	suite.Equal(int64(0), AccountEquity(acc, positions, nil))

	// Snapshot price overrides the stale mark
	prices := map[string]float64{"S": 90_000}
	suite.Equal(int64(20_000_000), AccountEquity(acc, positions, prices))
}
