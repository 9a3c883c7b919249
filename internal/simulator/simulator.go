// Package simulator turns orders into simulated fills: execution price,
// filled quantity, commission, fees, slippage and fill quality.
package simulator

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"paper-trader/internal/config"
	"paper-trader/internal/models"
	"paper-trader/pkg/utils"
)

// Options carries the simulator's collaborators. Zero values get defaults.
type Options struct {
	Random      RandomSource
	Logger      zerolog.Logger
	Clock       func() time.Time
	IDGenerator func() string
}

// Simulator simulates one order against one market snapshot per call. It has
// no mutable state of its own; the random source is its only shared input.
type Simulator struct {
	slippage SlippageModel
	fees     FeeCalculator

	fillProbability        float64
	partialFillProbability float64
	partialFillMin         decimal.Decimal
	partialFillMax         decimal.Decimal

	improvementProbability      float64
	improvementMinBps           decimal.Decimal
	improvementMaxBps           decimal.Decimal
	limitPartialFillProbability float64
	limitPartialFillMin         decimal.Decimal
	limitPartialFillMax         decimal.Decimal

	stopUrgency       decimal.Decimal
	quantityPrecision int32
	pricePrecision    int32
	latency           time.Duration
	simplified        bool
	queueWhenClosed   bool
	hours             utils.MarketHours

	rng    RandomSource
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string
}

// NewSimulator builds a simulator from configuration.
func NewSimulator(cfg config.SimulatorConfig, opts Options) *Simulator {
	rng := opts.Random
	if rng == nil {
		rng = NewRandomSource(cfg.Seed)
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	newID := opts.IDGenerator
	if newID == nil {
		newID = uuid.NewString
	}

	fallback := DefaultRandomVolatility()
	var volatility VolatilityModel = fallback
	if cfg.VolatilityModel == "hint" {
		volatility = HintVolatility{
			Reference: decimal.NewFromFloat(cfg.ReferenceVolatility),
			Fallback:  fallback,
		}
	}

	return &Simulator{
		slippage: SlippageModel{
			Base:            decimal.NewFromFloat(cfg.BaseSlippageBps),
			Max:             decimal.NewFromFloat(cfg.MaxSlippageBps),
			ImpactThreshold: decimal.NewFromFloat(cfg.ImpactThreshold),
			Volatility:      volatility,
			Hours:           cfg.MarketHours,
			Sessions:        DefaultSessionMultipliers(),
		},
		fees: FeeCalculator{
			PerShare:       decimal.NewFromFloat(cfg.PerShareCommission),
			MinCommission:  decimal.NewFromFloat(cfg.MinCommission),
			MaxCommission:  decimal.NewFromFloat(cfg.MaxCommission),
			SECFeeRate:     decimal.NewFromFloat(cfg.SECFeeRate),
			TAFFeePerShare: decimal.NewFromFloat(cfg.TAFFeePerShare),
		},

		fillProbability:        cfg.FillProbability,
		partialFillProbability: cfg.PartialFillProbability,
		partialFillMin:         decimal.NewFromFloat(cfg.PartialFillMin),
		partialFillMax:         decimal.NewFromFloat(cfg.PartialFillMax),

		improvementProbability:      cfg.PriceImprovementProbability,
		improvementMinBps:           decimal.NewFromFloat(cfg.PriceImprovementMinBps),
		improvementMaxBps:           decimal.NewFromFloat(cfg.PriceImprovementMaxBps),
		limitPartialFillProbability: cfg.LimitPartialFillProbability,
		limitPartialFillMin:         decimal.NewFromFloat(cfg.LimitPartialFillMin),
		limitPartialFillMax:         decimal.NewFromFloat(cfg.LimitPartialFillMax),

		stopUrgency:       decimal.NewFromFloat(cfg.StopUrgencyMultiplier),
		quantityPrecision: cfg.QuantityPrecision,
		pricePrecision:    cfg.PricePrecision,
		latency:           cfg.SimulatedLatency,
		simplified:        cfg.Simplified,
		queueWhenClosed:   cfg.QueueWhenClosed,
		hours:             cfg.MarketHours,

		rng:    rng,
		logger: opts.Logger,
		now:    now,
		newID:  newID,
	}
}

// SlippageModel returns the market slippage model in use.
func (s *Simulator) SlippageModel() SlippageModel {
	return s.slippage
}

// FeeCalculator returns the fee schedule in use.
func (s *Simulator) FeeCalculator() FeeCalculator {
	return s.fees
}

// Simulate produces an execution result for order against snapshot. Every
// outcome, including bad input and internal faults, comes back as a result.
func (s *Simulator) Simulate(order models.Order, snapshot *models.MarketSnapshot) (result models.ExecutionResult) {
	result = s.newResult(order)

	defer func() {
		if r := recover(); r != nil {
			result = s.newResult(order)
			result.Status = models.StatusError
			result.Notes = fmt.Sprintf("internal simulation fault: %v", r)
			s.logger.Error().
				Str("symbol", order.Symbol).
				Str("execution_id", result.ID).
				Interface("panic", r).
				Msg("Simulation fault recovered")
		}
	}()

	if err := order.Validate(); err != nil {
		return reject(result, "invalid order: "+err.Error())
	}
	if !snapshot.HasPrice() {
		return reject(result, fmt.Sprintf("market data unavailable for %s", order.Symbol))
	}
	if snapshot.Symbol != "" && snapshot.Symbol != order.Symbol {
		return reject(result, fmt.Sprintf("snapshot is for %s, not %s", snapshot.Symbol, order.Symbol))
	}

	snap := *snapshot
	if snap.Timestamp.IsZero() {
		snap.Timestamp = s.now()
	}

	if s.queueWhenClosed && !s.hours.IsOpen(snap.Timestamp) {
		result.Status = models.StatusQueued
		result.Notes = fmt.Sprintf("market closed; next open %s", s.hours.NextOpen(snap.Timestamp).Format(time.RFC3339))
		return result
	}

	switch order.Type {
	case models.OrderTypeMarket:
		return s.simulateMarket(order, snap, result)
	case models.OrderTypeLimit:
		return s.simulateLimit(order, snap, result)
	case models.OrderTypeStop:
		return s.simulateStop(order, snap, result)
	default:
		result.Status = models.StatusError
		result.Notes = fmt.Sprintf("unsupported order type %q", order.Type)
		return result
	}
}

func (s *Simulator) simulateMarket(order models.Order, snap models.MarketSnapshot, result models.ExecutionResult) models.ExecutionResult {
	price := snap.CurrentPrice
	if s.simplified {
		return s.fill(result, order, snap, price, order.Quantity, decimal.Zero, "simplified market fill")
	}

	if !chance(s.rng, s.fillProbability) {
		return reject(result, "market conditions prevented fill")
	}

	slip := s.slippage.Compute(order, snap, s.rng)
	execPrice := applySlippage(price, slip, order.Side).Round(s.pricePrecision)

	qty, notes := order.Quantity, "market fill"
	if chance(s.rng, s.partialFillProbability) {
		if partial, ok := s.partialQuantity(order.Quantity, s.partialFillMin, s.partialFillMax); ok {
			qty, notes = partial, "partial market fill: limited liquidity"
		}
	}

	return s.fill(result, order, snap, execPrice, qty, slip, notes)
}

func (s *Simulator) simulateLimit(order models.Order, snap models.MarketSnapshot, result models.ExecutionResult) models.ExecutionResult {
	price := snap.CurrentPrice
	limit := *order.LimitPrice

	crossable := false
	switch order.Side {
	case models.OrderSideBuy:
		crossable = price.LessThanOrEqual(limit)
	case models.OrderSideSell:
		crossable = price.GreaterThanOrEqual(limit)
	}
	if !crossable {
		result.Notes = fmt.Sprintf("limit %s not reached (market %s)", limit, price)
		return result
	}

	execPrice, qty, notes := limit, order.Quantity, "filled at limit"
	if !s.simplified {
		if chance(s.rng, s.improvementProbability) {
			improvement := uniform(s.rng, s.improvementMinBps, s.improvementMaxBps).Div(bpsPerUnit)
			one := decimal.NewFromInt(1)
			if order.Side == models.OrderSideBuy {
				execPrice = limit.Mul(one.Sub(improvement))
			} else {
				execPrice = limit.Mul(one.Add(improvement))
			}
			execPrice = execPrice.Round(s.pricePrecision)
			notes = "filled with price improvement"
		}
		if chance(s.rng, s.limitPartialFillProbability) {
			if partial, ok := s.partialQuantity(order.Quantity, s.limitPartialFillMin, s.limitPartialFillMax); ok {
				qty, notes = partial, notes+"; partial fill"
			}
		}
	}

	return s.fill(result, order, snap, execPrice, qty, slippageBps(execPrice, price), notes)
}

func (s *Simulator) simulateStop(order models.Order, snap models.MarketSnapshot, result models.ExecutionResult) models.ExecutionResult {
	price := snap.CurrentPrice
	stop := *order.StopPrice

	triggered := false
	switch order.Side {
	case models.OrderSideSell:
		triggered = price.LessThanOrEqual(stop)
	case models.OrderSideBuy:
		triggered = price.GreaterThanOrEqual(stop)
	}
	if !triggered {
		result.Notes = fmt.Sprintf("stop %s not triggered (market %s)", stop, price)
		return result
	}

	if s.simplified {
		return s.fill(result, order, snap, price, order.Quantity, decimal.Zero, "simplified stop fill")
	}

	slip := s.slippage.Compute(order, snap, s.rng).Mul(s.stopUrgency)
	execPrice := applySlippage(price, slip, order.Side).Round(s.pricePrecision)

	return s.fill(result, order, snap, execPrice, order.Quantity, slip, fmt.Sprintf("stop %s triggered", stop))
}

// partialQuantity draws a fraction in [lo, hi] of qty, truncated to the
// quantity precision. It reports false when the draw does not yield a
// strictly partial, positive quantity.
func (s *Simulator) partialQuantity(qty, lo, hi decimal.Decimal) (decimal.Decimal, bool) {
	partial := qty.Mul(uniform(s.rng, lo, hi)).Truncate(s.quantityPrecision)
	if !partial.IsPositive() || partial.GreaterThanOrEqual(qty) {
		return qty, false
	}
	return partial, true
}

func (s *Simulator) fill(result models.ExecutionResult, order models.Order, snap models.MarketSnapshot, price, qty, slip decimal.Decimal, notes string) models.ExecutionResult {
	result.ExecutionPrice = &price
	result.FilledQuantity = qty
	result.RemainingQuantity = order.Quantity.Sub(qty)
	result.Commission = s.fees.Commission(qty, price)
	result.Fees = s.fees.Fees(qty, price)
	result.SlippageBps = slip

	if result.RemainingQuantity.IsZero() {
		result.Status = models.StatusFilled
	} else {
		result.Status = models.StatusPartiallyFilled
	}

	quality := AssessFillQuality(slip, result.FillRatio())
	result.FillQuality = &quality
	at := snap.Timestamp
	result.ExecutionTime = &at
	result.Notes = notes
	return result
}

func (s *Simulator) newResult(order models.Order) models.ExecutionResult {
	return models.ExecutionResult{
		ID:                s.newID(),
		OrderID:           order.ID,
		Symbol:            order.Symbol,
		Side:              order.Side,
		Type:              order.Type,
		Status:            models.StatusPending,
		FilledQuantity:    decimal.Zero,
		RemainingQuantity: order.Quantity,
		Commission:        decimal.Zero,
		Fees:              decimal.Zero,
		SlippageBps:       decimal.Zero,
		Latency:           s.latency,
	}
}

func reject(result models.ExecutionResult, reason string) models.ExecutionResult {
	result.Status = models.StatusRejected
	result.Notes = "rejected: " + reason
	return result
}
