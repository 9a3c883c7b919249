package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"paper-trader/internal/models"
)

// Property: decimal portfolio and holding values survive a save and load
// unchanged.
func TestProperty_PortfolioRoundTripConsistency(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	symbols := []string{"AAPL", "MSFT", "GOOG", "AMZN", "NVDA"}
	n := 0

	properties.Property("save then load produces equal decimals", prop.ForAll(
		func(cashCents int64, qty int64, avgMicros int64, priceMicros int64, symbolIdx int) bool {
			n++
			id := fmt.Sprintf("prop-%d", n)
			symbol := symbols[symbolIdx%len(symbols)]

			h := models.Holding{
				Symbol:      symbol,
				Quantity:    decimal.NewFromInt(qty),
				AverageCost: decimal.New(avgMicros, -6),
			}
			h.Revalue(decimal.New(priceMicros, -6))

			p := models.NewPortfolio(id, decimal.New(cashCents, -2))
			p.Holdings[symbol] = h
			p.Recalculate()

			if err := s.CreatePortfolio(ctx, p); err != nil {
				t.Logf("Failed to create portfolio: %v", err)
				return false
			}
			got, err := s.GetPortfolio(ctx, id)
			if err != nil {
				t.Logf("Failed to load portfolio: %v", err)
				return false
			}

			gh := got.Holdings[symbol]
			return got.CashBalance.Equal(p.CashBalance) &&
				got.TotalValue.Equal(p.TotalValue) &&
				gh.Quantity.Equal(h.Quantity) &&
				gh.AverageCost.Equal(h.AverageCost) &&
				gh.UnrealizedGainLoss.Equal(h.UnrealizedGainLoss)
		},
		gen.Int64Range(0, 1_000_000_000),
		gen.Int64Range(1, 100000),
		gen.Int64Range(1_000_000, 5_000_000_000),
		gen.Int64Range(1_000_000, 5_000_000_000),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}
