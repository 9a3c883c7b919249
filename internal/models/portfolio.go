package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Holding represents a position in one symbol owned by one portfolio.
type Holding struct {
	Symbol             string
	Quantity           decimal.Decimal
	AverageCost        decimal.Decimal
	CurrentPrice       decimal.Decimal
	MarketValue        decimal.Decimal
	UnrealizedGainLoss decimal.Decimal
	UpdatedAt          time.Time
}

// Revalue sets the current price and recomputes market value and unrealized P&L.
func (h *Holding) Revalue(price decimal.Decimal) {
	h.CurrentPrice = price
	h.MarketValue = h.Quantity.Mul(price)
	h.UnrealizedGainLoss = h.MarketValue.Sub(h.Quantity.Mul(h.AverageCost))
}

// CostBasis returns quantity times average cost.
func (h Holding) CostBasis() decimal.Decimal {
	return h.Quantity.Mul(h.AverageCost)
}

// Portfolio holds cash and holdings keyed by symbol.
type Portfolio struct {
	ID             string
	CashBalance    decimal.Decimal
	TotalValue     decimal.Decimal
	InvestedAmount decimal.Decimal
	Holdings       map[string]Holding
	UpdatedAt      time.Time
}

// NewPortfolio creates an empty portfolio funded with cash.
func NewPortfolio(id string, cash decimal.Decimal) Portfolio {
	p := Portfolio{
		ID:          id,
		CashBalance: cash,
		Holdings:    make(map[string]Holding),
	}
	p.Recalculate()
	return p
}

// Recalculate recomputes invested amount and total value from holdings and cash.
func (p *Portfolio) Recalculate() {
	invested := decimal.Zero
	for _, h := range p.Holdings {
		invested = invested.Add(h.MarketValue)
	}
	p.InvestedAmount = invested
	p.TotalValue = p.CashBalance.Add(invested)
}

// Holding returns the holding for symbol, if any.
func (p Portfolio) Holding(symbol string) (Holding, bool) {
	h, ok := p.Holdings[symbol]
	return h, ok
}

// Clone returns a deep copy of the portfolio.
func (p Portfolio) Clone() Portfolio {
	c := p
	c.Holdings = make(map[string]Holding, len(p.Holdings))
	for k, v := range p.Holdings {
		c.Holdings[k] = v
	}
	return c
}

// Symbols returns held symbols in sorted order.
func (p Portfolio) Symbols() []string {
	symbols := make([]string, 0, len(p.Holdings))
	for s := range p.Holdings {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}
