package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Order represents a trade intent submitted to the simulator. It is never
// mutated by the simulator.
type Order struct {
	ID         string
	Symbol     string
	Side       OrderSide
	Type       OrderType
	Quantity   decimal.Decimal
	LimitPrice *decimal.Decimal // required iff Type == LIMIT
	StopPrice  *decimal.Decimal // required iff Type == STOP
}

// NewMarketOrder creates a market order.
func NewMarketOrder(symbol string, side OrderSide, qty decimal.Decimal) Order {
	return Order{Symbol: symbol, Side: side, Type: OrderTypeMarket, Quantity: qty}
}

// NewLimitOrder creates a limit order.
func NewLimitOrder(symbol string, side OrderSide, qty, limit decimal.Decimal) Order {
	return Order{Symbol: symbol, Side: side, Type: OrderTypeLimit, Quantity: qty, LimitPrice: &limit}
}

// NewStopOrder creates a stop order.
func NewStopOrder(symbol string, side OrderSide, qty, stop decimal.Decimal) Order {
	return Order{Symbol: symbol, Side: side, Type: OrderTypeStop, Quantity: qty, StopPrice: &stop}
}

// Validate checks the order parameters and returns a description of the
// first problem found.
func (o Order) Validate() error {
	if strings.TrimSpace(o.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	if !o.Side.Valid() {
		return fmt.Errorf("unknown side %q", o.Side)
	}
	if !o.Type.Valid() {
		return fmt.Errorf("unknown order type %q", o.Type)
	}
	if !o.Quantity.IsPositive() {
		return fmt.Errorf("quantity must be positive, got %s", o.Quantity)
	}
	switch o.Type {
	case OrderTypeLimit:
		if o.LimitPrice == nil || !o.LimitPrice.IsPositive() {
			return fmt.Errorf("limit price is required for limit orders")
		}
	case OrderTypeStop:
		if o.StopPrice == nil || !o.StopPrice.IsPositive() {
			return fmt.Errorf("stop price is required for stop orders")
		}
	}
	return nil
}

// Notional returns quantity times price.
func (o Order) Notional(price decimal.Decimal) decimal.Decimal {
	return o.Quantity.Mul(price)
}
