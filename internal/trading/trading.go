// Package trading applies simulated executions to holdings and portfolios
// and summarizes the resulting portfolio state.
package trading

import (
	"time"

	"github.com/shopspring/decimal"

	"paper-trader/internal/models"
)

// PortfolioUpdater applies fills to a holding and its portfolio. It holds no
// state, but Apply is a read-modify-write of the values it is given: callers
// must serialize applies per portfolio and guard against applying the same
// result twice.
type PortfolioUpdater struct {
	now func() time.Time
}

// NewPortfolioUpdater creates an updater that stamps changes with clock.
// A nil clock uses time.Now.
func NewPortfolioUpdater(clock func() time.Time) *PortfolioUpdater {
	if clock == nil {
		clock = time.Now
	}
	return &PortfolioUpdater{now: clock}
}

// Apply returns the holding and portfolio after result is applied. Results
// that carry no fill return the inputs unchanged. The portfolio argument is
// not modified; the returned portfolio owns a fresh holdings map.
//
// A sell that closes the position returns a holding with zero quantity and
// removes the symbol from the returned portfolio.
func (u *PortfolioUpdater) Apply(result models.ExecutionResult, order models.Order, holding *models.Holding, portfolio models.Portfolio) (*models.Holding, models.Portfolio) {
	if !result.Status.IsFill() || result.ExecutionPrice == nil || !result.FilledQuantity.IsPositive() {
		return holding, portfolio
	}

	price := *result.ExecutionPrice
	qty := result.FilledQuantity
	gross := qty.Mul(price)
	costs := result.TotalCost()
	now := u.now()

	next := models.Holding{Symbol: order.Symbol, Quantity: decimal.Zero, AverageCost: decimal.Zero}
	if holding != nil {
		next = *holding
	}

	updated := portfolio.Clone()

	switch order.Side {
	case models.OrderSideBuy:
		total := next.Quantity.Add(qty)
		if next.Quantity.IsZero() || total.IsZero() {
			next.AverageCost = price
		} else {
			next.AverageCost = next.CostBasis().Add(gross).Div(total)
		}
		next.Quantity = total
		updated.CashBalance = updated.CashBalance.Sub(gross).Sub(costs)

	case models.OrderSideSell:
		next.Quantity = next.Quantity.Sub(qty)
		updated.CashBalance = updated.CashBalance.Add(gross).Sub(costs)

	default:
		return holding, portfolio
	}

	next.Revalue(price)
	next.UpdatedAt = now

	if next.Quantity.IsZero() {
		delete(updated.Holdings, next.Symbol)
	} else {
		updated.Holdings[next.Symbol] = next
	}
	updated.UpdatedAt = now
	updated.Recalculate()

	return &next, updated
}
