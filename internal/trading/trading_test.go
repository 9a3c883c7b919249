package trading

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-trader/internal/models"
)

var fixedNow = time.Date(2024, 3, 13, 16, 30, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newUpdater() *PortfolioUpdater {
	return NewPortfolioUpdater(func() time.Time { return fixedNow })
}

func fill(order models.Order, qty, price, commission, fees string) models.ExecutionResult {
	p := d(price)
	filled := d(qty)
	status := models.StatusFilled
	if filled.LessThan(order.Quantity) {
		status = models.StatusPartiallyFilled
	}
	return models.ExecutionResult{
		ID:                "exec-1",
		Symbol:            order.Symbol,
		Side:              order.Side,
		Type:              order.Type,
		Status:            status,
		ExecutionPrice:    &p,
		FilledQuantity:    filled,
		RemainingQuantity: order.Quantity.Sub(filled),
		Commission:        d(commission),
		Fees:              d(fees),
	}
}

func holding(symbol, qty, avg, price string) models.Holding {
	h := models.Holding{Symbol: symbol, Quantity: d(qty), AverageCost: d(avg)}
	h.Revalue(d(price))
	return h
}

func portfolioWith(cash string, holdings ...models.Holding) models.Portfolio {
	p := models.NewPortfolio("p1", d(cash))
	for _, h := range holdings {
		p.Holdings[h.Symbol] = h
	}
	p.Recalculate()
	return p
}

func TestApply_BuyCreatesHolding(t *testing.T) {
	order := models.NewMarketOrder("AAPL", models.OrderSideBuy, d("100"))
	result := fill(order, "100", "150", "1", "0.0239")

	h, p := newUpdater().Apply(result, order, nil, portfolioWith("100000"))

	require.NotNil(t, h)
	assert.True(t, h.Quantity.Equal(d("100")))
	assert.True(t, h.AverageCost.Equal(d("150")))
	assert.True(t, h.MarketValue.Equal(d("15000")))
	assert.True(t, h.UnrealizedGainLoss.IsZero())
	assert.Equal(t, fixedNow, h.UpdatedAt)

	assert.True(t, p.CashBalance.Equal(d("84998.9761")), "cash %s", p.CashBalance)
	assert.True(t, p.InvestedAmount.Equal(d("15000")))
	assert.True(t, p.TotalValue.Equal(d("99998.9761")))
	assert.Contains(t, p.Holdings, "AAPL")
}

func TestApply_BuyUpdatesAverageCost(t *testing.T) {
	existing := holding("AAPL", "100", "150", "150")
	order := models.NewMarketOrder("AAPL", models.OrderSideBuy, d("50"))
	result := fill(order, "50", "156", "1", "0")

	h, p := newUpdater().Apply(result, order, &existing, portfolioWith("85000", existing))

	assert.True(t, h.Quantity.Equal(d("150")))
	assert.True(t, h.AverageCost.Equal(d("152")), "avg %s", h.AverageCost)
	assert.True(t, h.CurrentPrice.Equal(d("156")))
	assert.True(t, h.MarketValue.Equal(d("23400")))
	assert.True(t, h.UnrealizedGainLoss.Equal(d("600")))
	assert.True(t, p.CashBalance.Equal(d("77199")))
}

func TestApply_SellKeepsAverageCost(t *testing.T) {
	existing := holding("AAPL", "150", "152", "156")
	order := models.NewMarketOrder("AAPL", models.OrderSideSell, d("50"))
	result := fill(order, "50", "160", "1", "0.5")

	h, p := newUpdater().Apply(result, order, &existing, portfolioWith("1000", existing))

	assert.True(t, h.Quantity.Equal(d("100")))
	assert.True(t, h.AverageCost.Equal(d("152")))
	assert.True(t, h.UnrealizedGainLoss.Equal(d("800")))
	assert.True(t, p.CashBalance.Equal(d("8998.5")))
	assert.True(t, p.InvestedAmount.Equal(d("16000")))
}

func TestApply_SellToZeroPrunesHolding(t *testing.T) {
	existing := holding("AAPL", "10", "100", "100")
	other := holding("MSFT", "5", "300", "310")
	order := models.NewMarketOrder("AAPL", models.OrderSideSell, d("10"))
	result := fill(order, "10", "110", "1", "0")

	h, p := newUpdater().Apply(result, order, &existing, portfolioWith("0", existing, other))

	require.NotNil(t, h)
	assert.True(t, h.Quantity.IsZero())
	assert.NotContains(t, p.Holdings, "AAPL")
	assert.Contains(t, p.Holdings, "MSFT")
	assert.True(t, p.CashBalance.Equal(d("1099")))
	assert.True(t, p.InvestedAmount.Equal(d("1550")))
	assert.True(t, p.TotalValue.Equal(d("2649")))
}

func TestApply_NonFillIsNoOp(t *testing.T) {
	existing := holding("AAPL", "10", "100", "100")
	portfolio := portfolioWith("5000", existing)
	order := models.NewLimitOrder("AAPL", models.OrderSideBuy, d("10"), d("90"))

	for _, status := range []models.ExecutionStatus{
		models.StatusPending, models.StatusRejected, models.StatusQueued, models.StatusError,
	} {
		t.Run(string(status), func(t *testing.T) {
			result := models.ExecutionResult{Status: status, RemainingQuantity: d("10")}
			h, p := newUpdater().Apply(result, order, &existing, portfolio)
			assert.Same(t, &existing, h)
			assert.Equal(t, portfolio, p)
		})
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	existing := holding("AAPL", "10", "100", "100")
	portfolio := portfolioWith("5000", existing)
	order := models.NewMarketOrder("AAPL", models.OrderSideBuy, d("10"))

	newUpdater().Apply(fill(order, "10", "120", "1", "0"), order, &existing, portfolio)

	assert.True(t, existing.Quantity.Equal(d("10")))
	assert.True(t, portfolio.CashBalance.Equal(d("5000")))
	assert.True(t, portfolio.Holdings["AAPL"].Quantity.Equal(d("10")))
}

// Applying the same result twice double counts. Callers must dedupe by
// execution id before applying.
func TestApply_NaiveDoubleApplyDoublesPosition(t *testing.T) {
	order := models.NewMarketOrder("AAPL", models.OrderSideBuy, d("100"))
	result := fill(order, "100", "150", "1", "0")
	u := newUpdater()

	h, p := u.Apply(result, order, nil, portfolioWith("100000"))
	h, p = u.Apply(result, order, h, p)

	assert.True(t, h.Quantity.Equal(d("200")))
	assert.True(t, p.CashBalance.Equal(d("69998")))
}

func TestApply_SellWithoutHoldingGoesShort(t *testing.T) {
	order := models.NewMarketOrder("AAPL", models.OrderSideSell, d("5"))

	h, p := newUpdater().Apply(fill(order, "5", "100", "1", "0"), order, nil, portfolioWith("0"))

	assert.True(t, h.Quantity.Equal(d("-5")))
	assert.True(t, p.CashBalance.Equal(d("499")))
}

func TestSummarize(t *testing.T) {
	p := portfolioWith("1000",
		holding("AAPL", "10", "100", "120"),
		holding("MSFT", "2", "300", "250"),
	)

	s := Summarize(p)

	assert.Equal(t, 2, s.HoldingCount)
	assert.True(t, s.InvestedValue.Equal(d("1700")))
	assert.True(t, s.CostBasis.Equal(d("1600")))
	assert.True(t, s.TotalValue.Equal(d("2700")))
	assert.True(t, s.TotalPnL.Equal(d("100")))
	assert.True(t, s.TotalPnLPercent.Equal(d("6.25")))
	require.Len(t, s.Exposure, 2)
	assert.Equal(t, "AAPL", s.Exposure[0].Symbol)
	assert.True(t, s.Exposure[1].PnL.Equal(d("-100")))
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(models.NewPortfolio("p1", d("500")))

	assert.Zero(t, s.HoldingCount)
	assert.True(t, s.TotalValue.Equal(d("500")))
	assert.True(t, s.TotalPnLPercent.IsZero())
	assert.Empty(t, s.Exposure)
}
