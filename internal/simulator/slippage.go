package simulator

import (
	"github.com/shopspring/decimal"

	"paper-trader/internal/models"
	"paper-trader/pkg/utils"
)

var (
	bpsPerUnit     = decimal.NewFromInt(10000)
	impactSlope    = decimal.RequireFromString("0.5")
	randomnessLow  = decimal.RequireFromString("0.5")
	randomnessHigh = decimal.RequireFromString("1.5")
)

// VolatilityModel yields the volatility multiplier for a snapshot.
type VolatilityModel interface {
	Multiplier(snapshot models.MarketSnapshot, rng RandomSource) decimal.Decimal
}

// RandomVolatility draws the multiplier uniformly from [Min, Max].
type RandomVolatility struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// DefaultRandomVolatility draws from [0.8, 2.0].
func DefaultRandomVolatility() RandomVolatility {
	return RandomVolatility{
		Min: decimal.RequireFromString("0.8"),
		Max: decimal.RequireFromString("2.0"),
	}
}

// Multiplier implements VolatilityModel.
func (v RandomVolatility) Multiplier(_ models.MarketSnapshot, rng RandomSource) decimal.Decimal {
	return uniform(rng, v.Min, v.Max)
}

// HintVolatility scales the snapshot's volatility hint against Reference and
// clamps the result to the fallback's bounds. Snapshots without a hint use
// the fallback draw.
type HintVolatility struct {
	Reference decimal.Decimal
	Fallback  RandomVolatility
}

// Multiplier implements VolatilityModel.
func (v HintVolatility) Multiplier(snapshot models.MarketSnapshot, rng RandomSource) decimal.Decimal {
	if snapshot.Volatility == nil || snapshot.Volatility.IsNegative() || !v.Reference.IsPositive() {
		return v.Fallback.Multiplier(snapshot, rng)
	}
	m := snapshot.Volatility.Div(v.Reference)
	if m.LessThan(v.Fallback.Min) {
		return v.Fallback.Min
	}
	if m.GreaterThan(v.Fallback.Max) {
		return v.Fallback.Max
	}
	return m
}

// SessionMultipliers maps session phases to slippage multipliers.
type SessionMultipliers struct {
	Window     decimal.Decimal // first and last regular hour
	Regular    decimal.Decimal
	AfterHours decimal.Decimal
}

// DefaultSessionMultipliers returns 1.5 / 1.0 / 2.0.
func DefaultSessionMultipliers() SessionMultipliers {
	return SessionMultipliers{
		Window:     decimal.RequireFromString("1.5"),
		Regular:    decimal.NewFromInt(1),
		AfterHours: decimal.NewFromInt(2),
	}
}

// SlippageModel computes market slippage in basis points:
// base * volume * volatility * time-of-day * randomness, capped at Max.
type SlippageModel struct {
	Base            decimal.Decimal
	Max             decimal.Decimal
	ImpactThreshold decimal.Decimal
	Volatility      VolatilityModel
	Hours           utils.MarketHours
	Sessions        SessionMultipliers
}

// Compute returns slippage in bps for order against snapshot, within [0, Max].
func (m SlippageModel) Compute(order models.Order, snapshot models.MarketSnapshot, rng RandomSource) decimal.Decimal {
	bps := m.Base.
		Mul(m.VolumeMultiplier(order.Quantity)).
		Mul(m.Volatility.Multiplier(snapshot, rng)).
		Mul(m.TimeOfDayMultiplier(snapshot)).
		Mul(uniform(rng, randomnessLow, randomnessHigh))

	if bps.IsNegative() {
		return decimal.Zero
	}
	if bps.GreaterThan(m.Max) {
		return m.Max
	}
	return bps
}

// VolumeMultiplier grows linearly at half rate once quantity exceeds the
// impact threshold.
func (m SlippageModel) VolumeMultiplier(qty decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if !m.ImpactThreshold.IsPositive() || qty.LessThanOrEqual(m.ImpactThreshold) {
		return one
	}
	return one.Add(qty.Div(m.ImpactThreshold).Sub(one).Mul(impactSlope))
}

// TimeOfDayMultiplier looks up the snapshot's session phase.
func (m SlippageModel) TimeOfDayMultiplier(snapshot models.MarketSnapshot) decimal.Decimal {
	switch m.Hours.Phase(snapshot.Timestamp) {
	case utils.SessionOpening, utils.SessionClosing:
		return m.Sessions.Window
	case utils.SessionRegular:
		return m.Sessions.Regular
	default:
		return m.Sessions.AfterHours
	}
}

// applySlippage moves price against the order: up for buys, down for sells.
func applySlippage(price, bps decimal.Decimal, side models.OrderSide) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(bps.Div(bpsPerUnit))
	if side == models.OrderSideBuy {
		return price.Mul(factor)
	}
	return price.Div(factor)
}

// slippageBps reports |exec - reference| / reference in basis points.
func slippageBps(exec, reference decimal.Decimal) decimal.Decimal {
	if !reference.IsPositive() {
		return decimal.Zero
	}
	return exec.Sub(reference).Abs().Div(reference).Mul(bpsPerUnit)
}
