package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-trader/internal/models"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m), "log line: %s", buf.String())
	return m
}

func withGlobalLevel(t *testing.T, level zerolog.Level) {
	t.Helper()
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(level)
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"info":    zerolog.InfoLevel,
		"warn":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"verbose": zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestNewLoggerWithConfig_FallsBackToOut(t *testing.T) {
	withGlobalLevel(t, zerolog.InfoLevel)

	var buf bytes.Buffer
	logger := NewLoggerWithConfig(LogConfig{Level: "info", Out: &buf})
	logger.Info().Str("k", "v").Msg("hello")

	line := decodeLine(t, &buf)
	assert.Equal(t, "hello", line["message"])
	assert.Equal(t, "v", line["k"])
	assert.Contains(t, line, "caller")
}

func TestNewLoggerWithConfig_RotatingFile(t *testing.T) {
	withGlobalLevel(t, zerolog.InfoLevel)

	path := filepath.Join(t.TempDir(), "logs", "papersim.log")
	logger := NewLoggerWithConfig(LogConfig{
		Level:      "warn",
		File:       true,
		FilePath:   path,
		MaxSize:    1,
		MaxBackups: 1,
		MaxAge:     1,
	})
	logger.Info().Msg("filtered")
	logger.Warn().Msg("kept")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "kept")
	assert.NotContains(t, string(data), "filtered")
}

func TestContextHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	assert.Equal(t, zerolog.Disabled, FromContext(context.Background()).GetLevel())

	ctx := WithLogger(context.Background(), logger)
	got := WithPortfolio(WithOrderID(WithSymbol(FromContext(ctx), "AAPL"), "o-1"), "main")
	got.Info().Msg("tagged")

	line := decodeLine(t, &buf)
	assert.Equal(t, "AAPL", line["symbol"])
	assert.Equal(t, "o-1", line["order_id"])
	assert.Equal(t, "main", line["portfolio_id"])
}

func TestLogExecution(t *testing.T) {
	withGlobalLevel(t, zerolog.DebugLevel)

	price := decimal.RequireFromString("150.0375")
	quality := models.FillQualityGood
	now := time.Date(2024, 3, 13, 16, 30, 0, 0, time.UTC)

	t.Run("fill logs at info", func(t *testing.T) {
		var buf bytes.Buffer
		LogExecution(zerolog.New(&buf), models.ExecutionResult{
			ID:                "exec-1",
			Symbol:            "AAPL",
			Side:              models.OrderSideBuy,
			Type:              models.OrderTypeMarket,
			Status:            models.StatusFilled,
			ExecutionPrice:    &price,
			FilledQuantity:    decimal.NewFromInt(100),
			RemainingQuantity: decimal.Zero,
			SlippageBps:       decimal.RequireFromString("2.5"),
			FillQuality:       &quality,
			ExecutionTime:     &now,
		})

		line := decodeLine(t, &buf)
		assert.Equal(t, "info", line["level"])
		assert.Equal(t, "execution", line["event"])
		assert.Equal(t, "FILLED", line["status"])
		assert.Equal(t, "150.0375", line["price"])
		assert.Equal(t, "2.50", line["slippage_bps"])
		assert.Equal(t, "GOOD", line["fill_quality"])
	})

	t.Run("error logs at error without price", func(t *testing.T) {
		var buf bytes.Buffer
		LogExecution(zerolog.New(&buf), models.ExecutionResult{
			ID:     "exec-2",
			Symbol: "AAPL",
			Status: models.StatusError,
			Notes:  "internal simulation fault",
		})

		line := decodeLine(t, &buf)
		assert.Equal(t, "error", line["level"])
		assert.NotContains(t, line, "price")
		assert.Equal(t, "internal simulation fault", line["notes"])
	})

	t.Run("pending logs at debug", func(t *testing.T) {
		var buf bytes.Buffer
		LogExecution(zerolog.New(&buf), models.ExecutionResult{ID: "exec-3", Status: models.StatusPending})
		assert.Equal(t, "debug", decodeLine(t, &buf)["level"])
	})
}

func TestLogPortfolio(t *testing.T) {
	withGlobalLevel(t, zerolog.InfoLevel)

	var buf bytes.Buffer
	LogPortfolio(zerolog.New(&buf), models.Portfolio{
		ID:             "main",
		CashBalance:    decimal.RequireFromString("85000"),
		InvestedAmount: decimal.RequireFromString("15000"),
		TotalValue:     decimal.RequireFromString("100000"),
	})

	line := decodeLine(t, &buf)
	assert.Equal(t, "main", line["portfolio_id"])
	assert.Equal(t, "85000.00", line["cash"])
	assert.Equal(t, "100000.00", line["total"])
	assert.Equal(t, float64(0), line["holdings"])
}
