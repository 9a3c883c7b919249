package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionResult is the outcome of simulating one order against one snapshot.
// FilledQuantity + RemainingQuantity always equals the order quantity.
type ExecutionResult struct {
	ID                string
	OrderID           string
	Symbol            string
	Side              OrderSide
	Type              OrderType
	Status            ExecutionStatus
	ExecutionPrice    *decimal.Decimal // set iff a fill occurred
	FilledQuantity    decimal.Decimal
	RemainingQuantity decimal.Decimal
	Commission        decimal.Decimal
	Fees              decimal.Decimal
	SlippageBps       decimal.Decimal
	FillQuality       *FillQuality // set iff a fill occurred
	ExecutionTime     *time.Time
	// Latency is the simulated venue latency. Nothing waits for it.
	Latency time.Duration
	Notes   string
}

// FillRatio returns filled / requested quantity.
func (r ExecutionResult) FillRatio() decimal.Decimal {
	total := r.FilledQuantity.Add(r.RemainingQuantity)
	if total.IsZero() {
		return decimal.Zero
	}
	return r.FilledQuantity.Div(total)
}

// GrossValue returns filled quantity times execution price.
func (r ExecutionResult) GrossValue() decimal.Decimal {
	if r.ExecutionPrice == nil {
		return decimal.Zero
	}
	return r.FilledQuantity.Mul(*r.ExecutionPrice)
}

// TotalCost returns commission plus fees.
func (r ExecutionResult) TotalCost() decimal.Decimal {
	return r.Commission.Add(r.Fees)
}
