package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	"paper-trader/internal/models"
	"paper-trader/pkg/utils"
)

// FormatPercent formats a percentage with sign.
func FormatPercent(value decimal.Decimal) string {
	sign := ""
	if value.IsPositive() {
		sign = "+"
	}
	return sign + value.StringFixed(2) + "%"
}

// FormatPrice formats an optional execution price.
func FormatPrice(p *decimal.Decimal) string {
	if p == nil {
		return "-"
	}
	return utils.FormatCurrency(*p)
}

// FormatQuality formats an optional fill quality.
func FormatQuality(q *models.FillQuality) string {
	if q == nil {
		return "-"
	}
	return string(*q)
}

// FormatTimestamp formats a timestamp in UTC.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

// StatusColor returns the display color for an execution status.
func StatusColor(s models.ExecutionStatus) *color.Color {
	switch s {
	case models.StatusFilled:
		return color.New(color.FgGreen, color.Bold)
	case models.StatusPartiallyFilled:
		return color.New(color.FgGreen)
	case models.StatusPending, models.StatusQueued:
		return color.New(color.FgYellow)
	case models.StatusRejected, models.StatusError:
		return color.New(color.FgRed)
	default:
		return color.New(color.Reset)
	}
}

// QualityColor returns the display color for a fill quality.
func QualityColor(q *models.FillQuality) *color.Color {
	if q == nil {
		return color.New(color.Faint)
	}
	switch *q {
	case models.FillQualityExcellent, models.FillQualityGood:
		return color.New(color.FgGreen)
	case models.FillQualityAverage:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

// ParseSide parses a side argument case-insensitively.
func ParseSide(s string) (models.OrderSide, error) {
	side := models.OrderSide(strings.ToUpper(strings.TrimSpace(s)))
	if !side.Valid() {
		return "", fmt.Errorf("unknown side %q (want buy or sell)", s)
	}
	return side, nil
}

// ParseOrderType parses an order type argument case-insensitively.
func ParseOrderType(s string) (models.OrderType, error) {
	t := models.OrderType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown order type %q (want market, limit or stop)", s)
	}
	return t, nil
}

// ParseDecimal parses a decimal argument, naming the field on failure.
func ParseDecimal(field, s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q", field, s)
	}
	return v, nil
}

// ParseTimestamp parses an RFC3339 timestamp; empty means now.
func ParseTimestamp(s string, now func() time.Time) (time.Time, error) {
	if s == "" {
		return now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q (want RFC3339)", s)
	}
	return t.UTC(), nil
}
