// Package broker provides market data providers and the paper broker that
// ties simulation, portfolio updates, persistence and notification together.
package broker

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	apperrors "paper-trader/internal/errors"
	"paper-trader/internal/models"
	"paper-trader/internal/store"
)

// MarketDataProvider supplies the snapshot an order is simulated against.
// Implementations return an error wrapping ErrMarketDataUnavailable when no
// price is known.
type MarketDataProvider interface {
	GetSnapshot(ctx context.Context, symbol string) (*models.MarketSnapshot, error)
}

// MarketDataProviderFunc adapts a function to MarketDataProvider.
type MarketDataProviderFunc func(ctx context.Context, symbol string) (*models.MarketSnapshot, error)

// GetSnapshot calls f.
func (f MarketDataProviderFunc) GetSnapshot(ctx context.Context, symbol string) (*models.MarketSnapshot, error) {
	return f(ctx, symbol)
}

// Broker defines the paper trading operations.
type Broker interface {
	// Orders
	Execute(ctx context.Context, portfolioID string, order models.Order) (*ExecutionReport, error)

	// Portfolios
	OpenPortfolio(ctx context.Context, id string, cash decimal.Decimal) (*models.Portfolio, error)
	Portfolio(ctx context.Context, id string) (*models.Portfolio, error)
	MarkToMarket(ctx context.Context, id string) (*models.Portfolio, error)

	// History
	History(ctx context.Context, filter store.ExecutionFilter) ([]store.ExecutionRecord, error)
}

// Tick is a price update for one symbol.
type Tick struct {
	Symbol     string
	Price      decimal.Decimal
	Volatility *decimal.Decimal
	Timestamp  time.Time
}

// ExecutionReport is the outcome of one Execute call.
type ExecutionReport struct {
	PortfolioID string
	Order       models.Order
	Snapshot    *models.MarketSnapshot
	Result      models.ExecutionResult
	// Applied reports whether the result changed the portfolio.
	Applied bool
	// Portfolio and Holding are the state after the result was applied.
	// Both are nil when nothing was applied; Holding reports zero quantity
	// when a sell closed the position.
	Portfolio *models.Portfolio
	Holding   *models.Holding
}

// Err reports a result that did not fill as an error. Queued results wrap
// ErrMarketClosed; rejected and failed results wrap ErrOrderRejected.
func (r *ExecutionReport) Err() error {
	res := r.Result
	switch res.Status {
	case models.StatusFilled, models.StatusPartiallyFilled:
		return nil
	case models.StatusQueued:
		return apperrors.NewOrderError(r.Order.ID, r.Order.Symbol, "simulate", res.Notes, apperrors.ErrMarketClosed)
	case models.StatusPending:
		return apperrors.NewOrderError(r.Order.ID, r.Order.Symbol, "simulate", res.Notes, apperrors.ErrOrderPending)
	default:
		return apperrors.NewOrderError(r.Order.ID, r.Order.Symbol, "simulate", res.Notes, apperrors.ErrOrderRejected)
	}
}
