package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "paper-trader/internal/errors"
	"paper-trader/internal/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "papersim.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testHolding(symbol, qty, avg, price string) models.Holding {
	h := models.Holding{Symbol: symbol, Quantity: d(qty), AverageCost: d(avg), UpdatedAt: time.Now().UTC()}
	h.Revalue(d(price))
	return h
}

func filledResult(id, symbol string, side models.OrderSide, qty, price string) models.ExecutionResult {
	p := d(price)
	q := models.FillQualityGood
	at := time.Date(2024, 3, 13, 16, 30, 0, 0, time.UTC)
	return models.ExecutionResult{
		ID:                id,
		OrderID:           "order-" + id,
		Symbol:            symbol,
		Side:              side,
		Type:              models.OrderTypeMarket,
		Status:            models.StatusFilled,
		ExecutionPrice:    &p,
		FilledQuantity:    d(qty),
		RemainingQuantity: decimal.Zero,
		Commission:        d("1"),
		Fees:              d("0.0239"),
		SlippageBps:       d("2.8"),
		FillQuality:       &q,
		ExecutionTime:     &at,
		Latency:           50 * time.Millisecond,
		Notes:             "market fill",
	}
}

func TestSQLiteStore_PortfolioRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := models.NewPortfolio("alpha", d("100000.25"))
	p.Holdings["AAPL"] = testHolding("AAPL", "10", "150.1234", "151")
	p.Recalculate()
	require.NoError(t, s.CreatePortfolio(ctx, p))

	got, err := s.GetPortfolio(ctx, "alpha")
	require.NoError(t, err)
	assert.True(t, got.CashBalance.Equal(d("100000.25")))
	assert.True(t, got.TotalValue.Equal(p.TotalValue))
	require.Contains(t, got.Holdings, "AAPL")
	assert.True(t, got.Holdings["AAPL"].AverageCost.Equal(d("150.1234")))
	assert.True(t, got.Holdings["AAPL"].MarketValue.Equal(d("1510")))

	ids, err := s.ListPortfolios(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, ids)
}

func TestSQLiteStore_CreatePortfolioTwice(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreatePortfolio(ctx, models.NewPortfolio("alpha", d("1"))))
	err := s.CreatePortfolio(ctx, models.NewPortfolio("alpha", d("2")))
	assert.ErrorIs(t, err, apperrors.ErrPortfolioExists)
}

func TestSQLiteStore_GetPortfolioNotFound(t *testing.T) {
	_, err := newTestStore(t).GetPortfolio(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrPortfolioNotFound)
}

func TestSQLiteStore_GetHoldingMissing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.CreatePortfolio(ctx, models.NewPortfolio("alpha", d("1"))))

	h, err := s.GetHolding(ctx, "alpha", "AAPL")
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestSQLiteStore_ApplyExecution(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.CreatePortfolio(ctx, models.NewPortfolio("alpha", d("100000"))))

	h := testHolding("AAPL", "100", "150", "150")
	p := models.NewPortfolio("alpha", d("84998.9761"))
	p.Holdings["AAPL"] = h
	p.Recalculate()
	result := filledResult("exec-1", "AAPL", models.OrderSideBuy, "100", "150")

	require.NoError(t, s.ApplyExecution(ctx, p, &h, result))

	got, err := s.GetPortfolio(ctx, "alpha")
	require.NoError(t, err)
	assert.True(t, got.CashBalance.Equal(d("84998.9761")))
	assert.True(t, got.InvestedAmount.Equal(d("15000")))

	holding, err := s.GetHolding(ctx, "alpha", "AAPL")
	require.NoError(t, err)
	require.NotNil(t, holding)
	assert.True(t, holding.Quantity.Equal(d("100")))

	applied, err := s.IsApplied(ctx, "exec-1")
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestSQLiteStore_ApplyExecutionIsAtMostOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.CreatePortfolio(ctx, models.NewPortfolio("alpha", d("100000"))))

	h := testHolding("AAPL", "100", "150", "150")
	first := models.NewPortfolio("alpha", d("85000"))
	first.Holdings["AAPL"] = h
	first.Recalculate()
	result := filledResult("exec-1", "AAPL", models.OrderSideBuy, "100", "150")
	require.NoError(t, s.ApplyExecution(ctx, first, &h, result))

	doubled := testHolding("AAPL", "200", "150", "150")
	second := models.NewPortfolio("alpha", d("70000"))
	second.Holdings["AAPL"] = doubled
	second.Recalculate()
	err := s.ApplyExecution(ctx, second, &doubled, result)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateExecution)

	got, err := s.GetPortfolio(ctx, "alpha")
	require.NoError(t, err)
	assert.True(t, got.CashBalance.Equal(d("85000")))
	assert.True(t, got.Holdings["AAPL"].Quantity.Equal(d("100")))
}

func TestSQLiteStore_ApplyExecutionDeletesClosedHolding(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := models.NewPortfolio("alpha", d("0"))
	p.Holdings["AAPL"] = testHolding("AAPL", "10", "100", "100")
	p.Recalculate()
	require.NoError(t, s.CreatePortfolio(ctx, p))

	closed := testHolding("AAPL", "0", "100", "110")
	after := models.NewPortfolio("alpha", d("1099"))
	require.NoError(t, s.ApplyExecution(ctx, after, &closed, filledResult("exec-2", "AAPL", models.OrderSideSell, "10", "110")))

	h, err := s.GetHolding(ctx, "alpha", "AAPL")
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestSQLiteStore_ApplyExecutionUnknownPortfolio(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.ApplyExecution(ctx, models.NewPortfolio("ghost", d("1")), nil, filledResult("exec-3", "AAPL", models.OrderSideBuy, "1", "1"))
	assert.ErrorIs(t, err, apperrors.ErrPortfolioNotFound)

	applied, err := s.IsApplied(ctx, "exec-3")
	require.NoError(t, err)
	assert.False(t, applied, "a failed apply must roll back the id")
}

func TestSQLiteStore_SavePortfolio(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := models.NewPortfolio("alpha", d("100"))
	p.Holdings["AAPL"] = testHolding("AAPL", "10", "100", "100")
	p.Holdings["MSFT"] = testHolding("MSFT", "1", "300", "300")
	p.Recalculate()
	require.NoError(t, s.CreatePortfolio(ctx, p))

	revalued := p.Clone()
	h := revalued.Holdings["AAPL"]
	h.Revalue(d("120"))
	revalued.Holdings["AAPL"] = h
	delete(revalued.Holdings, "MSFT")
	revalued.Recalculate()
	require.NoError(t, s.SavePortfolio(ctx, revalued))

	got, err := s.GetPortfolio(ctx, "alpha")
	require.NoError(t, err)
	assert.Len(t, got.Holdings, 1)
	assert.True(t, got.Holdings["AAPL"].UnrealizedGainLoss.Equal(d("200")))
	assert.True(t, got.TotalValue.Equal(d("1300")))
}

func TestSQLiteStore_ExecutionLog(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	filled := filledResult("exec-1", "AAPL", models.OrderSideBuy, "100", "150")
	pending := models.ExecutionResult{
		ID:                "exec-2",
		Symbol:            "MSFT",
		Side:              models.OrderSideBuy,
		Type:              models.OrderTypeLimit,
		Status:            models.StatusPending,
		FilledQuantity:    decimal.Zero,
		RemainingQuantity: d("5"),
		Commission:        decimal.Zero,
		Fees:              decimal.Zero,
		SlippageBps:       decimal.Zero,
		Notes:             "limit 300 not reached",
	}
	require.NoError(t, s.LogExecution(ctx, "alpha", filled))
	require.NoError(t, s.LogExecution(ctx, "alpha", pending))
	require.NoError(t, s.LogExecution(ctx, "beta", filledResult("exec-3", "AAPL", models.OrderSideSell, "1", "150")))

	all, err := s.GetExecutions(ctx, ExecutionFilter{PortfolioID: "alpha"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "exec-2", all[0].Result.ID)

	got := all[1].Result
	require.NotNil(t, got.ExecutionPrice)
	assert.True(t, got.ExecutionPrice.Equal(d("150")))
	assert.True(t, got.Fees.Equal(d("0.0239")))
	require.NotNil(t, got.FillQuality)
	assert.Equal(t, models.FillQualityGood, *got.FillQuality)
	assert.Equal(t, 50*time.Millisecond, got.Latency)
	assert.Equal(t, "order-exec-1", got.OrderID)
	assert.Nil(t, all[0].Result.ExecutionPrice)
	assert.Nil(t, all[0].Result.FillQuality)

	bySymbol, err := s.GetExecutions(ctx, ExecutionFilter{Symbol: "AAPL"})
	require.NoError(t, err)
	assert.Len(t, bySymbol, 2)

	byStatus, err := s.GetExecutions(ctx, ExecutionFilter{Status: models.StatusPending})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "MSFT", byStatus[0].Result.Symbol)

	limited, err := s.GetExecutions(ctx, ExecutionFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLiteStore_ExecutionLogMarksApplied(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.CreatePortfolio(ctx, models.NewPortfolio("alpha", d("100000"))))

	result := filledResult("exec-1", "AAPL", models.OrderSideBuy, "1", "150")
	h := testHolding("AAPL", "1", "150", "150")
	p := models.NewPortfolio("alpha", d("99848.9761"))
	p.Holdings["AAPL"] = h
	p.Recalculate()
	require.NoError(t, s.ApplyExecution(ctx, p, &h, result))
	require.NoError(t, s.LogExecution(ctx, "alpha", result))

	records, err := s.GetExecutions(ctx, ExecutionFilter{PortfolioID: "alpha"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Applied)
}

func TestSQLiteStore_DriverFailuresAreDatabaseErrors(t *testing.T) {
	_, err := NewSQLiteStore(filepath.Join(t.TempDir(), "missing", "papersim.db"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrDatabaseError)

	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "papersim.db"))
	require.NoError(t, err)
	require.NoError(t, s.CreatePortfolio(context.Background(), models.NewPortfolio("main", d("1000"))))
	require.NoError(t, s.Close())

	_, err = s.GetPortfolio(context.Background(), "main")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrDatabaseError)
	assert.NotErrorIs(t, err, apperrors.ErrPortfolioNotFound)
	assert.Contains(t, err.Error(), "failed to get portfolio")
}
