package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Paper Trader Configuration

[simulator]
# Base slippage in basis points before size, volatility and session multipliers
base_slippage_bps = 2.0
# Upper bound for market slippage in basis points
max_slippage_bps = 50.0
# Order size (shares) above which market impact grows
impact_threshold = 10000.0
# Volatility multiplier source: "random" or "hint" (uses the snapshot volatility)
volatility_model = "random"
# Volatility treated as a multiplier of 1.0 by the hint model
reference_volatility = 0.02
# Slippage multiplier applied to triggered stop orders
stop_urgency_multiplier = 1.5

# Commission per share, clamped to [min_commission, max_commission]
per_share_commission = 0.005
min_commission = 1.00
max_commission = 10.00
# Regulatory fees
sec_fee_rate = 0.0000008
taf_fee_per_share = 0.000119

# Market orders
fill_probability = 0.95
partial_fill_probability = 0.15
partial_fill_min = 0.6
partial_fill_max = 0.95

# Limit orders
price_improvement_probability = 0.20
price_improvement_min_bps = 1.0
price_improvement_max_bps = 5.0
limit_partial_fill_probability = 0.05
limit_partial_fill_min = 0.8
limit_partial_fill_max = 0.98

# Decimal places kept for partial fill quantities and execution prices
quantity_precision = 0
price_precision = 4

# Latency reported with every result (nothing waits for it)
simulated_latency = "50ms"
# Deterministic mode: no random draws, full fills at the reference price
simplified = false
# Random seed; 0 seeds from the clock
seed = 0
# Queue orders whose snapshot falls outside trading hours
queue_when_closed = true

[simulator.market_hours]
# Hours of day in UTC
open_hour = 14
close_hour = 21
extended_open_hour = 9
extended_close_hour = 24
trade_weekends = false

[portfolio]
default_id = "default"
initial_cash = 100000.0

[store]
# SQLite database path (defaults to papersim.db in the config directory)
# path = ""

[logging]
level = "info"
console = true
file = false
max_size = 100
max_backups = 7
max_age = 30

[notifications]
enabled = false
# Notification level: all, fills_only, errors_only
level = "all"

[notifications.webhook]
enabled = false
url = ""
timeout = "10s"
rate_per_second = 5.0
burst = 10

[notifications.kafka]
enabled = false
brokers = ["localhost:9092"]
topic = "paper-executions"

[market_data]
timeout = "5s"
max_attempts = 3
initial_delay = "100ms"
# Short-circuit lookups after this many consecutive failures
failure_threshold = 5
cooldown = "30s"
# Quotes older than this are treated as unavailable ("0s" disables)
max_quote_age = "0s"

[quality]
# Alert when a fill slips more than this many basis points
slippage_alert_bps = 25
window_size = 100
alert_on_rejection = true
`

// TemplatePath returns where the config template is written.
func TemplatePath(configDir string) string {
	return filepath.Join(configDir, "config.toml")
}

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := TemplatePath(configDir)
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}
