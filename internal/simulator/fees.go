package simulator

import (
	"github.com/shopspring/decimal"
)

// FeeCalculator computes per-share commission and regulatory fees.
type FeeCalculator struct {
	PerShare       decimal.Decimal
	MinCommission  decimal.Decimal
	MaxCommission  decimal.Decimal
	SECFeeRate     decimal.Decimal // fraction of trade value
	TAFFeePerShare decimal.Decimal
}

// DefaultFeeCalculator returns $0.005/share clamped to [$1, $10], SEC 8e-7 and TAF $0.000119/share.
func DefaultFeeCalculator() FeeCalculator {
	return FeeCalculator{
		PerShare:       decimal.RequireFromString("0.005"),
		MinCommission:  decimal.NewFromInt(1),
		MaxCommission:  decimal.NewFromInt(10),
		SECFeeRate:     decimal.RequireFromString("0.0000008"),
		TAFFeePerShare: decimal.RequireFromString("0.000119"),
	}
}

// Commission returns quantity * per-share rate clamped to the bounds. No fill, no commission.
func (f FeeCalculator) Commission(qty, _ decimal.Decimal) decimal.Decimal {
	if !qty.IsPositive() {
		return decimal.Zero
	}
	c := qty.Mul(f.PerShare)
	if c.LessThan(f.MinCommission) {
		return f.MinCommission
	}
	if c.GreaterThan(f.MaxCommission) {
		return f.MaxCommission
	}
	return c
}

// Fees returns the SEC fee on trade value plus the per-share TAF fee.
func (f FeeCalculator) Fees(qty, price decimal.Decimal) decimal.Decimal {
	if !qty.IsPositive() {
		return decimal.Zero
	}
	sec := qty.Mul(price).Mul(f.SECFeeRate)
	taf := qty.Mul(f.TAFFeePerShare)
	return sec.Add(taf)
}
