package simulator

import (
	"github.com/shopspring/decimal"

	"paper-trader/internal/models"
)

var (
	excellentBps     = decimal.NewFromInt(1)
	goodBps          = decimal.NewFromInt(3)
	averageBps       = decimal.NewFromInt(8)
	goodFillRatio    = decimal.RequireFromString("0.95")
	averageFillRatio = decimal.RequireFromString("0.8")
	completeFill     = decimal.NewFromInt(1)
)

// AssessFillQuality grades an execution from its slippage and fill ratio.
func AssessFillQuality(slippageBps, fillRatio decimal.Decimal) models.FillQuality {
	switch {
	case slippageBps.LessThanOrEqual(excellentBps) && fillRatio.Equal(completeFill):
		return models.FillQualityExcellent
	case slippageBps.LessThanOrEqual(goodBps) && fillRatio.GreaterThanOrEqual(goodFillRatio):
		return models.FillQualityGood
	case slippageBps.LessThanOrEqual(averageBps) && fillRatio.GreaterThanOrEqual(averageFillRatio):
		return models.FillQualityAverage
	default:
		return models.FillQualityPoor
	}
}
