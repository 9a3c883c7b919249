// Package models provides domain models for the paper trading simulator.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Valid reports whether s is a known side.
func (s OrderSide) Valid() bool {
	switch s {
	case OrderSideBuy, OrderSideSell:
		return true
	}
	return false
}

// OrderType represents the type of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeStop   OrderType = "STOP"
)

// Valid reports whether t is a known order type.
func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeMarket, OrderTypeLimit, OrderTypeStop:
		return true
	}
	return false
}

// ExecutionStatus is the outcome of a simulation call.
type ExecutionStatus string

const (
	StatusPending         ExecutionStatus = "PENDING"
	StatusFilled          ExecutionStatus = "FILLED"
	StatusPartiallyFilled ExecutionStatus = "PARTIALLY_FILLED"
	StatusRejected        ExecutionStatus = "REJECTED"
	StatusQueued          ExecutionStatus = "QUEUED"
	StatusError           ExecutionStatus = "ERROR"
)

// IsFill reports whether the status carries a fill that must be applied to a portfolio.
func (s ExecutionStatus) IsFill() bool {
	return s == StatusFilled || s == StatusPartiallyFilled
}

// IsTerminal reports whether the order is resolved. Pending and Queued orders
// may be re-evaluated against a later snapshot.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusPartiallyFilled, StatusRejected, StatusError:
		return true
	}
	return false
}

// FillQuality grades how favorable an execution was.
type FillQuality string

const (
	FillQualityExcellent FillQuality = "EXCELLENT"
	FillQualityGood      FillQuality = "GOOD"
	FillQualityAverage   FillQuality = "AVERAGE"
	FillQualityPoor      FillQuality = "POOR"
)

// MarketSnapshot is the market state an order is simulated against.
type MarketSnapshot struct {
	Symbol       string
	CurrentPrice decimal.Decimal
	// Volatility is an optional volatility hint (e.g. 0.02 for 2% daily).
	Volatility *decimal.Decimal
	Timestamp  time.Time
}

// HasPrice reports whether the snapshot carries a usable price.
func (s *MarketSnapshot) HasPrice() bool {
	return s != nil && s.CurrentPrice.IsPositive()
}
