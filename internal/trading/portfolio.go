package trading

import (
	"sort"

	"github.com/shopspring/decimal"

	"paper-trader/internal/models"
)

var hundred = decimal.NewFromInt(100)

// PortfolioSummary is a point-in-time view of a portfolio's value and P&L.
type PortfolioSummary struct {
	PortfolioID     string          `json:"portfolio_id"`
	CashBalance     decimal.Decimal `json:"cash_balance"`
	InvestedValue   decimal.Decimal `json:"invested_value"`
	CostBasis       decimal.Decimal `json:"cost_basis"`
	TotalValue      decimal.Decimal `json:"total_value"`
	TotalPnL        decimal.Decimal `json:"total_pnl"`
	TotalPnLPercent decimal.Decimal `json:"total_pnl_percent"`
	HoldingCount    int             `json:"holding_count"`
	Exposure        []Exposure      `json:"exposure"`
}

// Exposure is one holding's share of the invested value.
type Exposure struct {
	Symbol  string          `json:"symbol"`
	Value   decimal.Decimal `json:"value"`
	PnL     decimal.Decimal `json:"pnl"`
	Percent decimal.Decimal `json:"percent"`
}

// Summarize builds a summary from the portfolio's current holding values.
// Exposure is ordered by value, largest first.
func Summarize(p models.Portfolio) PortfolioSummary {
	summary := PortfolioSummary{
		PortfolioID:   p.ID,
		CashBalance:   p.CashBalance,
		InvestedValue: decimal.Zero,
		CostBasis:     decimal.Zero,
		TotalPnL:      decimal.Zero,
	}

	for _, symbol := range p.Symbols() {
		h := p.Holdings[symbol]
		if h.Quantity.IsZero() {
			continue
		}
		summary.HoldingCount++
		summary.InvestedValue = summary.InvestedValue.Add(h.MarketValue)
		summary.CostBasis = summary.CostBasis.Add(h.CostBasis())
		summary.TotalPnL = summary.TotalPnL.Add(h.UnrealizedGainLoss)
		summary.Exposure = append(summary.Exposure, Exposure{
			Symbol: symbol,
			Value:  h.MarketValue,
			PnL:    h.UnrealizedGainLoss,
		})
	}

	summary.TotalValue = summary.CashBalance.Add(summary.InvestedValue)
	if summary.CostBasis.IsPositive() {
		summary.TotalPnLPercent = summary.TotalPnL.Div(summary.CostBasis).Mul(hundred)
	}

	for i := range summary.Exposure {
		if summary.InvestedValue.IsPositive() {
			summary.Exposure[i].Percent = summary.Exposure[i].Value.Div(summary.InvestedValue).Mul(hundred)
		}
	}
	sort.SliceStable(summary.Exposure, func(i, j int) bool {
		return summary.Exposure[i].Value.GreaterThan(summary.Exposure[j].Value)
	})

	return summary
}
