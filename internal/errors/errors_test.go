package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderErrorUnwrap(t *testing.T) {
	err := NewOrderError("ord-1", "AAPL", "SELL", "exceeds holding", ErrInsufficientHoldings)

	assert.True(t, Is(err, ErrInsufficientHoldings))
	assert.Contains(t, err.Error(), "ord-1")
	assert.Contains(t, err.Error(), "exceeds holding")
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "context"))
	assert.NoError(t, Wrapf(nil, "context %d", 1))
}

func TestWrapfKeepsChain(t *testing.T) {
	err := Wrapf(ErrDuplicateExecution, "applying %s", "exec-1")

	assert.True(t, Is(err, ErrDuplicateExecution))
	assert.Equal(t, "applying exec-1: execution already applied", err.Error())
}

func TestValidationErrorMatchesConfigInvalid(t *testing.T) {
	err := fmt.Errorf("loading: %w", NewValidationError("simulator.fill_probability", 1.5, "must be within [0, 1]"))

	var ve *ValidationError
	assert.True(t, As(err, &ve))
	assert.Equal(t, "simulator.fill_probability", ve.Field)
	assert.True(t, Is(err, ErrConfigInvalid))
}

func TestDataError(t *testing.T) {
	err := NewDataError("snapshot", "MSFT", "no price", ErrMarketDataUnavailable)

	assert.True(t, Is(err, ErrMarketDataUnavailable))
	assert.Equal(t, "data error [snapshot] MSFT: no price: market data unavailable", err.Error())
}
