package simulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeeCalculator_Commission(t *testing.T) {
	f := DefaultFeeCalculator()

	tests := []struct {
		name string
		qty  string
		want string
	}{
		{"minimum applies", "100", "1"},
		{"per share", "1000", "5"},
		{"maximum applies", "5000", "10"},
		{"no fill", "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.Commission(d(tt.qty), d("150"))
			assert.True(t, got.Equal(d(tt.want)), "got %s", got)
		})
	}
}

func TestFeeCalculator_Fees(t *testing.T) {
	f := DefaultFeeCalculator()

	// SEC 15000 * 0.0000008 = 0.012, TAF 100 * 0.000119 = 0.0119
	got := f.Fees(d("100"), d("150"))
	assert.True(t, got.Equal(d("0.0239")), "got %s", got)

	assert.True(t, f.Fees(d("0"), d("150")).IsZero())
}
