package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "paper-trader/internal/errors"
)

func TestLoadWritesTemplateAndUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	_, statErr := os.Stat(TemplatePath(dir))
	assert.NoError(t, statErr, "template should be created")

	def := DefaultSimulatorConfig()
	assert.Equal(t, def.BaseSlippageBps, cfg.Simulator.BaseSlippageBps)
	assert.Equal(t, def.FillProbability, cfg.Simulator.FillProbability)
	assert.Equal(t, 50*time.Millisecond, cfg.Simulator.SimulatedLatency)
	assert.Equal(t, 14, cfg.Simulator.MarketHours.OpenHour)
	assert.Equal(t, "default", cfg.Portfolio.DefaultID)
}

func TestLoadTemplateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	require.NoError(t, err)

	// Second load parses the template that the first one wrote.
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 0.000119, cfg.Simulator.TAFFeePerShare)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Notifications.Kafka.Brokers)
	assert.Equal(t, 10*time.Second, cfg.Notifications.Webhook.Timeout)
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	content := `
[simulator]
base_slippage_bps = 3.5
fill_probability = 1.0
simplified = true
seed = 7

[simulator.market_hours]
open_hour = 13
close_hour = 20
extended_open_hour = 8
extended_close_hour = 24
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 3.5, cfg.Simulator.BaseSlippageBps)
	assert.Equal(t, 1.0, cfg.Simulator.FillProbability)
	assert.True(t, cfg.Simulator.Simplified)
	assert.Equal(t, int64(7), cfg.Simulator.Seed)
	assert.Equal(t, 13, cfg.Simulator.MarketHours.OpenHour)
	// untouched keys keep defaults
	assert.Equal(t, 10.0, cfg.Simulator.MaxCommission)
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PAPER_TRADER_SIMULATOR_MIN_COMMISSION", "2.5")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2.5, cfg.Simulator.MinCommission)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	content := "[simulator]\nfill_probability = 1.5\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)
}

func TestSimulatorConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SimulatorConfig)
		field  string
	}{
		{"partial range inverted", func(s *SimulatorConfig) { s.PartialFillMin, s.PartialFillMax = 0.9, 0.5 }, "simulator.partial_fill_min/max"},
		{"commission bounds", func(s *SimulatorConfig) { s.MinCommission = 20 }, "simulator.min_commission"},
		{"urgency below one", func(s *SimulatorConfig) { s.StopUrgencyMultiplier = 0.5 }, "simulator.stop_urgency_multiplier"},
		{"unknown volatility model", func(s *SimulatorConfig) { s.VolatilityModel = "garch" }, "simulator.volatility_model"},
		{"hint without reference", func(s *SimulatorConfig) { s.VolatilityModel = "hint"; s.ReferenceVolatility = 0 }, "simulator.reference_volatility"},
		{"bad session", func(s *SimulatorConfig) { s.MarketHours.CloseHour = 10 }, "simulator.market_hours"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSimulatorConfig()
			tt.mutate(&s)

			err := s.Validate()
			var ve *apperrors.ValidationError
			require.True(t, apperrors.As(err, &ve), "expected validation error, got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	assert.NoError(t, DefaultSimulatorConfig().Validate())
}
