package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "$0.00"},
		{"1", "$1.00"},
		{"999.999", "$1,000.00"},
		{"1234.5", "$1,234.50"},
		{"1234567.891", "$1,234,567.89"},
		{"-15000", "-$15,000.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCurrency(decimal.RequireFromString(tt.in)), tt.in)
	}
}

func TestFormatPnL(t *testing.T) {
	assert.Equal(t, "+$12.50", FormatPnL(decimal.RequireFromString("12.5")))
	assert.Equal(t, "-$3.00", FormatPnL(decimal.NewFromInt(-3)))
	assert.Equal(t, "$0.00", FormatPnL(decimal.Zero))
}

func TestFormatBps(t *testing.T) {
	assert.Equal(t, "3.25 bps", FormatBps(decimal.RequireFromString("3.2499")))
}
