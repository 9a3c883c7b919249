package resilience

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"paper-trader/internal/config"
	"paper-trader/internal/models"
	"paper-trader/internal/notify"
)

// ExecutionQuality is the quality record kept for one execution result.
type ExecutionQuality struct {
	ExecutionID string
	OrderID     string
	PortfolioID string
	Symbol      string
	Side        models.OrderSide
	OrderType   models.OrderType
	Status      models.ExecutionStatus
	FillQuality *models.FillQuality
	SlippageBps decimal.Decimal
	FillRatio   decimal.Decimal
	Latency     time.Duration
	Notes       string
	Timestamp   time.Time
}

// ExecutionQualityTracker aggregates execution results into quality
// statistics. It implements notify.Sink so it can sit beside the other
// sinks in a MultiSink.
type ExecutionQualityTracker struct {
	mu sync.RWMutex

	// Configuration
	slippageAlertBps decimal.Decimal
	alertOnRejection bool
	windowSize       int
	maxStored        int
	now              func() time.Time

	// Metrics
	executions    []ExecutionQuality
	byStatus      map[models.ExecutionStatus]int64
	byQuality     map[models.FillQuality]int64
	totalResults  int64
	totalFills    int64
	totalSlippage decimal.Decimal
	totalRatio    decimal.Decimal
	maxSlippage   decimal.Decimal

	// Rolling window of recent fills
	recentFills []ExecutionQuality

	// Alert callback
	onAlert func(alert ExecutionAlert)
}

// ExecutionTrackerConfig holds configuration for execution tracking.
type ExecutionTrackerConfig struct {
	SlippageAlertBps    float64 // Alert when a fill slips more than this
	AlertOnRejection    bool
	WindowSize          int // Number of recent fills to track
	MaxStoredExecutions int // Maximum executions to store
}

// DefaultExecutionTrackerConfig returns default configuration.
func DefaultExecutionTrackerConfig() ExecutionTrackerConfig {
	return ExecutionTrackerConfig{
		SlippageAlertBps:    25,
		AlertOnRejection:    true,
		WindowSize:          100,
		MaxStoredExecutions: 1000,
	}
}

// TrackerConfigFrom builds tracker configuration from the quality section.
func TrackerConfigFrom(cfg config.QualityConfig) ExecutionTrackerConfig {
	c := DefaultExecutionTrackerConfig()
	c.SlippageAlertBps = cfg.SlippageAlertBps
	c.AlertOnRejection = cfg.AlertOnRejection
	if cfg.WindowSize > 0 {
		c.WindowSize = cfg.WindowSize
	}
	return c
}

// NewExecutionQualityTracker creates a new execution quality tracker.
func NewExecutionQualityTracker(cfg ExecutionTrackerConfig) *ExecutionQualityTracker {
	if cfg.WindowSize < 1 {
		cfg.WindowSize = 1
	}
	if cfg.MaxStoredExecutions < 1 {
		cfg.MaxStoredExecutions = 1
	}
	return &ExecutionQualityTracker{
		slippageAlertBps: decimal.NewFromFloat(cfg.SlippageAlertBps),
		alertOnRejection: cfg.AlertOnRejection,
		windowSize:       cfg.WindowSize,
		maxStored:        cfg.MaxStoredExecutions,
		now:              time.Now,
		executions:       make([]ExecutionQuality, 0, cfg.MaxStoredExecutions),
		byStatus:         make(map[models.ExecutionStatus]int64),
		byQuality:        make(map[models.FillQuality]int64),
		recentFills:      make([]ExecutionQuality, 0, cfg.WindowSize),
	}
}

// SetAlertCallback sets the callback for execution alerts.
func (t *ExecutionQualityTracker) SetAlertCallback(callback func(ExecutionAlert)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onAlert = callback
}

// Name implements notify.Sink.
func (t *ExecutionQualityTracker) Name() string {
	return "quality"
}

// Notify implements notify.Sink.
func (t *ExecutionQualityTracker) Notify(_ context.Context, e notify.Event) error {
	t.Record(e.PortfolioID, e.Result)
	return nil
}

// Record adds one execution result to the statistics.
func (t *ExecutionQualityTracker) Record(portfolioID string, r models.ExecutionResult) {
	exec := ExecutionQuality{
		ExecutionID: r.ID,
		OrderID:     r.OrderID,
		PortfolioID: portfolioID,
		Symbol:      r.Symbol,
		Side:        r.Side,
		OrderType:   r.Type,
		Status:      r.Status,
		FillQuality: r.FillQuality,
		SlippageBps: r.SlippageBps,
		FillRatio:   r.FillRatio(),
		Latency:     r.Latency,
		Notes:       r.Notes,
	}

	t.mu.Lock()
	exec.Timestamp = t.now()

	t.totalResults++
	t.byStatus[r.Status]++

	if r.Status.IsFill() {
		t.totalFills++
		t.totalSlippage = t.totalSlippage.Add(exec.SlippageBps)
		t.totalRatio = t.totalRatio.Add(exec.FillRatio)
		if exec.SlippageBps.GreaterThan(t.maxSlippage) {
			t.maxSlippage = exec.SlippageBps
		}
		if r.FillQuality != nil {
			t.byQuality[*r.FillQuality]++
		}

		t.recentFills = append(t.recentFills, exec)
		if len(t.recentFills) > t.windowSize {
			t.recentFills = t.recentFills[1:]
		}
	}

	t.executions = append(t.executions, exec)
	if len(t.executions) > t.maxStored {
		t.executions = t.executions[1:]
	}

	alerts := t.checkAlerts(exec)
	onAlert := t.onAlert
	t.mu.Unlock()

	if onAlert != nil {
		for _, a := range alerts {
			onAlert(a)
		}
	}
}

func (t *ExecutionQualityTracker) checkAlerts(exec ExecutionQuality) []ExecutionAlert {
	var alerts []ExecutionAlert

	if exec.Status.IsFill() && exec.SlippageBps.GreaterThan(t.slippageAlertBps) {
		alerts = append(alerts, ExecutionAlert{
			Type:        AlertHighSlippage,
			ExecutionID: exec.ExecutionID,
			Symbol:      exec.Symbol,
			Value:       exec.SlippageBps,
			Threshold:   t.slippageAlertBps,
			Message:     fmt.Sprintf("High slippage: %s bps (threshold: %s bps)", exec.SlippageBps.StringFixed(2), t.slippageAlertBps.StringFixed(2)),
			Timestamp:   exec.Timestamp,
		})
	}

	if t.alertOnRejection {
		switch exec.Status {
		case models.StatusRejected:
			alerts = append(alerts, ExecutionAlert{
				Type:        AlertOrderRejected,
				ExecutionID: exec.ExecutionID,
				Symbol:      exec.Symbol,
				Message:     exec.Notes,
				Timestamp:   exec.Timestamp,
			})
		case models.StatusError:
			alerts = append(alerts, ExecutionAlert{
				Type:        AlertSimulationError,
				ExecutionID: exec.ExecutionID,
				Symbol:      exec.Symbol,
				Message:     exec.Notes,
				Timestamp:   exec.Timestamp,
			})
		}
	}

	return alerts
}

// GetStats returns execution quality statistics.
func (t *ExecutionQualityTracker) GetStats() ExecutionStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.statsLocked()
}

func (t *ExecutionQualityTracker) statsLocked() ExecutionStats {
	stats := ExecutionStats{
		TotalResults: t.totalResults,
		TotalFills:   t.totalFills,
		ByStatus:     make(map[models.ExecutionStatus]int64, len(t.byStatus)),
		ByQuality:    make(map[models.FillQuality]int64, len(t.byQuality)),
		MaxSlippage:  t.maxSlippage,
	}
	for k, v := range t.byStatus {
		stats.ByStatus[k] = v
	}
	for k, v := range t.byQuality {
		stats.ByQuality[k] = v
	}

	if t.totalFills > 0 {
		n := decimal.NewFromInt(t.totalFills)
		stats.AvgSlippage = t.totalSlippage.Div(n)
		stats.AvgFillRatio = t.totalRatio.Div(n)
	}
	if t.totalResults > 0 {
		rejected := t.byStatus[models.StatusRejected] + t.byStatus[models.StatusError]
		stats.RejectionRate = decimal.NewFromInt(rejected).Div(decimal.NewFromInt(t.totalResults)).Mul(decimal.NewFromInt(100))
	}

	if len(t.recentFills) > 0 {
		sum := decimal.Zero
		for _, m := range t.recentFills {
			sum = sum.Add(m.SlippageBps)
		}
		stats.RecentAvgSlippage = sum.Div(decimal.NewFromInt(int64(len(t.recentFills))))
	}

	return stats
}

// GetRecentExecutions returns up to limit recent fills, oldest first.
func (t *ExecutionQualityTracker) GetRecentExecutions(limit int) []ExecutionQuality {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if limit <= 0 || limit > len(t.recentFills) {
		limit = len(t.recentFills)
	}

	result := make([]ExecutionQuality, limit)
	copy(result, t.recentFills[len(t.recentFills)-limit:])
	return result
}

// GetExecutionsBySymbol returns stored executions for a symbol.
func (t *ExecutionQualityTracker) GetExecutionsBySymbol(symbol string) []ExecutionQuality {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var result []ExecutionQuality
	for _, exec := range t.executions {
		if exec.Symbol == symbol {
			result = append(result, exec)
		}
	}
	return result
}

// GenerateReport generates an execution quality report.
func (t *ExecutionQualityTracker) GenerateReport() *QualityReport {
	t.mu.RLock()
	defer t.mu.RUnlock()

	report := &QualityReport{
		GeneratedAt: t.now(),
		Stats:       t.statsLocked(),
	}

	// Group fills by symbol
	symbolStats := make(map[string]*SymbolExecutionStats)
	for _, exec := range t.executions {
		if !exec.Status.IsFill() {
			continue
		}

		stats, ok := symbolStats[exec.Symbol]
		if !ok {
			stats = &SymbolExecutionStats{Symbol: exec.Symbol}
			symbolStats[exec.Symbol] = stats
		}

		stats.Count++
		stats.TotalSlippage = stats.TotalSlippage.Add(exec.SlippageBps)
		if exec.SlippageBps.GreaterThan(stats.MaxSlippage) {
			stats.MaxSlippage = exec.SlippageBps
		}

		if exec.SlippageBps.GreaterThan(t.slippageAlertBps) {
			report.HighSlippage = append(report.HighSlippage, exec)
		}
	}

	for _, stats := range symbolStats {
		stats.AvgSlippage = stats.TotalSlippage.Div(decimal.NewFromInt(stats.Count))
		report.BySymbol = append(report.BySymbol, *stats)
	}
	sort.Slice(report.BySymbol, func(i, j int) bool {
		return report.BySymbol[i].Symbol < report.BySymbol[j].Symbol
	})

	return report
}

// ExecutionStats holds execution quality statistics. Slippage figures are
// in basis points over fills only.
type ExecutionStats struct {
	TotalResults      int64
	TotalFills        int64
	ByStatus          map[models.ExecutionStatus]int64
	ByQuality         map[models.FillQuality]int64
	AvgSlippage       decimal.Decimal
	MaxSlippage       decimal.Decimal
	RecentAvgSlippage decimal.Decimal
	AvgFillRatio      decimal.Decimal
	RejectionRate     decimal.Decimal // percent of all results
}

// QualityReport holds a comprehensive execution quality report.
type QualityReport struct {
	GeneratedAt  time.Time
	Stats        ExecutionStats
	BySymbol     []SymbolExecutionStats
	HighSlippage []ExecutionQuality
}

// SymbolExecutionStats holds execution stats for a symbol.
type SymbolExecutionStats struct {
	Symbol        string
	Count         int64
	TotalSlippage decimal.Decimal
	AvgSlippage   decimal.Decimal
	MaxSlippage   decimal.Decimal
}

// ExecutionAlertType represents the type of execution alert.
type ExecutionAlertType string

const (
	AlertHighSlippage    ExecutionAlertType = "HIGH_SLIPPAGE"
	AlertOrderRejected   ExecutionAlertType = "ORDER_REJECTED"
	AlertSimulationError ExecutionAlertType = "SIMULATION_ERROR"
)

// ExecutionAlert represents an execution quality alert.
type ExecutionAlert struct {
	Type        ExecutionAlertType
	ExecutionID string
	Symbol      string
	Value       decimal.Decimal
	Threshold   decimal.Decimal
	Message     string
	Timestamp   time.Time
}

var _ notify.Sink = (*ExecutionQualityTracker)(nil)
