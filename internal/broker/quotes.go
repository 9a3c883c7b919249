package broker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	apperrors "paper-trader/internal/errors"
	"paper-trader/internal/models"
)

// QuoteBook is an in-memory MarketDataProvider fed by price updates and
// ticks.
type QuoteBook struct {
	quotes map[string]Tick
	maxAge time.Duration
	now    func() time.Time
	mu     sync.RWMutex
}

// NewQuoteBook creates an empty quote book. Unknown symbols are reported as
// ErrSymbolNotFound and quotes older than maxAge as ErrMarketDataUnavailable;
// zero maxAge disables the staleness check.
func NewQuoteBook(maxAge time.Duration) *QuoteBook {
	return &QuoteBook{
		quotes: make(map[string]Tick),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// SetClock replaces the clock used for stamping and staleness checks.
func (q *QuoteBook) SetClock(clock func() time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.now = clock
}

// UpdatePrice updates the cached price for a symbol.
func (q *QuoteBook) UpdatePrice(symbol string, price decimal.Decimal) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t := q.quotes[symbol]
	t.Symbol = symbol
	t.Price = price
	t.Timestamp = q.now()
	q.quotes[symbol] = t
}

// ProcessTick stores a tick, keeping the previous volatility hint when the
// tick carries none.
func (q *QuoteBook) ProcessTick(tick Tick) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if tick.Timestamp.IsZero() {
		tick.Timestamp = q.now()
	}
	if tick.Volatility == nil {
		tick.Volatility = q.quotes[tick.Symbol].Volatility
	}
	q.quotes[tick.Symbol] = tick
}

// Run applies ticks from the channel until it closes or ctx is done.
func (q *QuoteBook) Run(ctx context.Context, ticks <-chan Tick) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-ticks:
			if !ok {
				return
			}
			q.ProcessTick(tick)
		}
	}
}

// Price returns the cached price for a symbol.
func (q *QuoteBook) Price(symbol string) (decimal.Decimal, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	t, ok := q.quotes[symbol]
	return t.Price, ok
}

// Symbols returns the quoted symbols in order.
func (q *QuoteBook) Symbols() []string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	symbols := make([]string, 0, len(q.quotes))
	for s := range q.quotes {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// GetSnapshot implements MarketDataProvider.
func (q *QuoteBook) GetSnapshot(ctx context.Context, symbol string) (*models.MarketSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q.mu.RLock()
	t, ok := q.quotes[symbol]
	now := q.now()
	q.mu.RUnlock()

	if !ok || !t.Price.IsPositive() {
		// Unquoted symbols match both sentinels: retrying cannot help.
		return nil, apperrors.NewDataError("quote", symbol, "no price",
			fmt.Errorf("%w: %w", apperrors.ErrSymbolNotFound, apperrors.ErrMarketDataUnavailable))
	}
	if q.maxAge > 0 && now.Sub(t.Timestamp) > q.maxAge {
		return nil, apperrors.NewDataError("quote", symbol, "stale price", apperrors.ErrMarketDataUnavailable)
	}

	return &models.MarketSnapshot{
		Symbol:       symbol,
		CurrentPrice: t.Price,
		Volatility:   t.Volatility,
		Timestamp:    t.Timestamp,
	}, nil
}

var _ MarketDataProvider = (*QuoteBook)(nil)
