package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"paper-trader/internal/config"
	apperrors "paper-trader/internal/errors"
	"paper-trader/internal/models"
	"paper-trader/internal/resilience"
	"paper-trader/pkg/utils"
)

// RetryingProvider bounds each lookup with a timeout and retries transient
// failures with exponential backoff.
type RetryingProvider struct {
	inner   MarketDataProvider
	timeout time.Duration
	retry   utils.RetryConfig
	logger  zerolog.Logger
}

// NewRetryingProvider wraps inner using the market data configuration.
func NewRetryingProvider(inner MarketDataProvider, cfg config.MarketDataConfig, logger zerolog.Logger) *RetryingProvider {
	retry := utils.DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialDelay > 0 {
		retry.InitialDelay = cfg.InitialDelay
	}
	retry.Retryable = isTransient

	return &RetryingProvider{
		inner:   inner,
		timeout: cfg.Timeout,
		retry:   retry,
		logger:  logger,
	}
}

// GetSnapshot implements MarketDataProvider.
func (r *RetryingProvider) GetSnapshot(ctx context.Context, symbol string) (*models.MarketSnapshot, error) {
	attempt := 0
	snap, err := utils.RetryWithResult(ctx, r.retry, func(ctx context.Context) (*models.MarketSnapshot, error) {
		attempt++
		callCtx := ctx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}

		snap, err := r.inner.GetSnapshot(callCtx, symbol)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				err = fmt.Errorf("%w: snapshot for %s after %s", apperrors.ErrTimeout, symbol, r.timeout)
			}
			r.logger.Debug().Err(err).Str("symbol", symbol).Int("attempt", attempt).Msg("Snapshot lookup failed")
			return nil, err
		}
		return snap, nil
	})
	if err != nil {
		return nil, fmt.Errorf("getting snapshot for %s: %w", symbol, err)
	}
	return snap, nil
}

// isTransient reports whether a lookup failure is worth retrying. Missing
// symbols and caller cancellation are final.
func isTransient(err error) bool {
	switch {
	case errors.Is(err, apperrors.ErrSymbolNotFound),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

// GuardedProvider short-circuits lookups while the upstream provider keeps
// failing. An open circuit reports ErrMarketDataUnavailable so the order is
// rejected instead of waiting on a dead feed.
type GuardedProvider struct {
	inner   MarketDataProvider
	breaker *resilience.CircuitBreaker
}

// NewGuardedProvider wraps inner with a circuit breaker configured from cfg.
func NewGuardedProvider(inner MarketDataProvider, cfg config.MarketDataConfig) *GuardedProvider {
	cbConfig := resilience.DefaultCircuitBreakerConfig()
	if cfg.FailureThreshold > 0 {
		cbConfig.FailureThreshold = cfg.FailureThreshold
	}
	if cfg.Cooldown > 0 {
		cbConfig.Cooldown = cfg.Cooldown
	}
	cbConfig.Counts = isTransient
	return &GuardedProvider{
		inner:   inner,
		breaker: resilience.NewCircuitBreaker("market_data", cbConfig),
	}
}

// Breaker returns the underlying circuit breaker.
func (g *GuardedProvider) Breaker() *resilience.CircuitBreaker {
	return g.breaker
}

// GetSnapshot implements MarketDataProvider.
func (g *GuardedProvider) GetSnapshot(ctx context.Context, symbol string) (*models.MarketSnapshot, error) {
	snap, err := resilience.ExecuteWithResult(g.breaker, ctx, func(ctx context.Context) (*models.MarketSnapshot, error) {
		return g.inner.GetSnapshot(ctx, symbol)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, apperrors.NewDataError("quote", symbol, err.Error(), apperrors.ErrMarketDataUnavailable)
	}
	return snap, err
}

// NewMarketDataChain builds the provider stack used by the broker: a circuit
// breaker around retried, time-bounded lookups.
func NewMarketDataChain(inner MarketDataProvider, cfg config.MarketDataConfig, logger zerolog.Logger) MarketDataProvider {
	return NewGuardedProvider(NewRetryingProvider(inner, cfg, logger), cfg)
}

var (
	_ MarketDataProvider = (*RetryingProvider)(nil)
	_ MarketDataProvider = (*GuardedProvider)(nil)
)
