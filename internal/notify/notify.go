// Package notify delivers execution results to observability sinks.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"paper-trader/internal/config"
	"paper-trader/internal/logging"
	"paper-trader/internal/models"
)

// Event is one simulated execution as seen by a sink.
type Event struct {
	PortfolioID string
	Order       models.Order
	Result      models.ExecutionResult
	// CashBalance is the portfolio cash after the result was applied. Nil
	// when the result did not touch the portfolio.
	CashBalance *decimal.Decimal
	Timestamp   time.Time
}

// Sink receives execution events. Sinks are for observability only; a
// failing sink never changes an execution.
type Sink interface {
	Name() string
	Notify(ctx context.Context, e Event) error
}

// NotificationLevel represents the notification level filter.
type NotificationLevel string

const (
	LevelAll        NotificationLevel = "all"
	LevelFillsOnly  NotificationLevel = "fills_only"
	LevelErrorsOnly NotificationLevel = "errors_only"
)

// MultiSink fans events out to several sinks.
type MultiSink struct {
	sinks []Sink
	level NotificationLevel
	mu    sync.RWMutex
}

// NewMultiSink creates a MultiSink from configuration. The log sink is
// always attached; webhook and Kafka sinks are added when enabled.
func NewMultiSink(cfg config.NotificationConfig, logger zerolog.Logger) *MultiSink {
	ms := &MultiSink{
		sinks: []Sink{NewLogSink(logger)},
		level: NotificationLevel(cfg.Level),
	}
	if ms.level == "" {
		ms.level = LevelAll
	}

	if !cfg.Enabled {
		return ms
	}
	if cfg.Webhook.Enabled && cfg.Webhook.URL != "" {
		ms.sinks = append(ms.sinks, NewWebhookSink(cfg.Webhook))
	}
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		ms.sinks = append(ms.sinks, NewKafkaSink(cfg.Kafka))
	}
	return ms
}

// NewMultiSinkWith creates a MultiSink over the given sinks.
func NewMultiSinkWith(level NotificationLevel, sinks ...Sink) *MultiSink {
	if level == "" {
		level = LevelAll
	}
	return &MultiSink{sinks: sinks, level: level}
}

// AddSink adds a sink.
func (ms *MultiSink) AddSink(s Sink) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.sinks = append(ms.sinks, s)
}

// Name returns the name of the sink.
func (ms *MultiSink) Name() string {
	return "multi"
}

// Sinks returns the names of the attached sinks.
func (ms *MultiSink) Sinks() []string {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	names := make([]string, 0, len(ms.sinks))
	for _, s := range ms.sinks {
		names = append(names, s.Name())
	}
	return names
}

// shouldSend checks if an event passes the level filter.
func (ms *MultiSink) shouldSend(status models.ExecutionStatus) bool {
	switch ms.level {
	case LevelFillsOnly:
		return status.IsFill()
	case LevelErrorsOnly:
		return status == models.StatusError || status == models.StatusRejected
	default:
		return true
	}
}

// Notify sends the event to every sink and joins their errors.
func (ms *MultiSink) Notify(ctx context.Context, e Event) error {
	if !ms.shouldSend(e.Result.Status) {
		return nil
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	ms.mu.RLock()
	sinks := ms.sinks
	ms.mu.RUnlock()

	var errs []string
	for _, s := range sinks {
		if err := s.Notify(ctx, e); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Close closes every sink that holds resources.
func (ms *MultiSink) Close() error {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var errs []string
	for _, s := range ms.sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("closing sinks: %s", strings.Join(errs, "; "))
	}
	return nil
}

// LogSink writes events to a zerolog logger.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Name returns the name of the sink.
func (l *LogSink) Name() string {
	return "log"
}

// Notify logs the event.
func (l *LogSink) Notify(_ context.Context, e Event) error {
	logging.LogExecution(logging.WithPortfolio(l.logger, e.PortfolioID), e.Result)
	return nil
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, e Event) error

// Name returns the name of the sink.
func (f SinkFunc) Name() string {
	return "func"
}

// Notify calls f.
func (f SinkFunc) Notify(ctx context.Context, e Event) error {
	return f(ctx, e)
}
