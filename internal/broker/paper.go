package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "paper-trader/internal/errors"
	"paper-trader/internal/logging"
	"paper-trader/internal/models"
	"paper-trader/internal/notify"
	"paper-trader/internal/simulator"
	"paper-trader/internal/store"
	"paper-trader/internal/trading"
)

// PaperBroker executes orders against simulated fills and keeps portfolios
// in the data store.
type PaperBroker struct {
	sim        *simulator.Simulator
	updater    *trading.PortfolioUpdater
	store      store.DataStore
	marketData MarketDataProvider
	sink       notify.Sink
	logger     zerolog.Logger
	now        func() time.Time

	// Per-portfolio locks serialize read-apply-persist.
	locks map[string]*sync.Mutex
	mu    sync.Mutex
}

// PaperBrokerConfig holds the collaborators of a paper broker.
type PaperBrokerConfig struct {
	Simulator  *simulator.Simulator
	Store      store.DataStore
	MarketData MarketDataProvider
	// Sink is optional.
	Sink   notify.Sink
	Logger zerolog.Logger
	Clock  func() time.Time
}

// NewPaperBroker creates a new paper trading broker.
func NewPaperBroker(cfg PaperBrokerConfig) *PaperBroker {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &PaperBroker{
		sim:        cfg.Simulator,
		updater:    trading.NewPortfolioUpdater(clock),
		store:      cfg.Store,
		marketData: cfg.MarketData,
		sink:       cfg.Sink,
		logger:     cfg.Logger,
		now:        clock,
		locks:      make(map[string]*sync.Mutex),
	}
}

func (p *PaperBroker) lockFor(portfolioID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[portfolioID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[portfolioID] = l
	}
	return l
}

// ============================================================================
// Portfolio Methods
// ============================================================================

// OpenPortfolio creates a portfolio funded with cash. An empty id is
// replaced by a generated one.
func (p *PaperBroker) OpenPortfolio(ctx context.Context, id string, cash decimal.Decimal) (*models.Portfolio, error) {
	if cash.IsNegative() {
		return nil, apperrors.NewValidationError("cash", cash.String(), "must not be negative")
	}
	if id == "" {
		id = uuid.NewString()
	}

	portfolio := models.NewPortfolio(id, cash)
	portfolio.UpdatedAt = p.now()
	if err := p.store.CreatePortfolio(ctx, portfolio); err != nil {
		return nil, err
	}

	p.logger.Info().Str("portfolio_id", id).Str("cash", cash.StringFixed(2)).Msg("Portfolio opened")
	return &portfolio, nil
}

// Portfolio returns the stored portfolio.
func (p *PaperBroker) Portfolio(ctx context.Context, id string) (*models.Portfolio, error) {
	return p.store.GetPortfolio(ctx, id)
}

// History returns logged executions matching filter, newest first.
func (p *PaperBroker) History(ctx context.Context, filter store.ExecutionFilter) ([]store.ExecutionRecord, error) {
	return p.store.GetExecutions(ctx, filter)
}

// MarkToMarket revalues every holding at the latest snapshot price and
// saves the portfolio. Holdings without market data keep their last price.
func (p *PaperBroker) MarkToMarket(ctx context.Context, id string) (*models.Portfolio, error) {
	lock := p.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	portfolio, err := p.store.GetPortfolio(ctx, id)
	if err != nil {
		return nil, err
	}

	for _, symbol := range portfolio.Symbols() {
		snap, err := p.marketData.GetSnapshot(ctx, symbol)
		if err != nil || !snap.HasPrice() {
			p.logger.Warn().Err(err).Str("symbol", symbol).Msg("Keeping last price; no market data")
			continue
		}
		h := portfolio.Holdings[symbol]
		h.Revalue(snap.CurrentPrice)
		h.UpdatedAt = p.now()
		portfolio.Holdings[symbol] = h
	}
	portfolio.UpdatedAt = p.now()
	portfolio.Recalculate()

	if err := p.store.SavePortfolio(ctx, *portfolio); err != nil {
		return nil, err
	}
	logging.LogPortfolio(p.logger, *portfolio)
	return portfolio, nil
}

// ============================================================================
// Order Methods
// ============================================================================

// Execute runs an order end to end: pre-trade checks, snapshot lookup,
// simulation, portfolio update, execution log and notification.
//
// Pre-trade failures return an error and record nothing. Once the order
// reaches the simulator its outcome, including rejections, is logged and
// reported in the returned ExecutionReport.
func (p *PaperBroker) Execute(ctx context.Context, portfolioID string, order models.Order) (*ExecutionReport, error) {
	if err := order.Validate(); err != nil {
		return nil, apperrors.NewOrderError(order.ID, order.Symbol, "validate", err.Error(), apperrors.ErrInvalidOrder)
	}
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	logger := logging.WithSymbol(logging.WithOrderID(logging.WithPortfolio(p.logger, portfolioID), order.ID), order.Symbol)

	portfolio, err := p.store.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if err := checkHoldings(order, *portfolio); err != nil {
		return nil, err
	}

	snap, err := p.marketData.GetSnapshot(ctx, order.Symbol)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn().Err(err).Msg("No market data; simulating without snapshot")
		snap = nil
	}
	if snap != nil {
		if err := checkFunds(order, *portfolio, snap.CurrentPrice); err != nil {
			return nil, err
		}
	}

	result := p.sim.Simulate(order, snap)
	report := &ExecutionReport{
		PortfolioID: portfolioID,
		Order:       order,
		Snapshot:    snap,
		Result:      result,
	}

	if result.Status.IsFill() {
		holding, updated, err := p.ApplyResult(ctx, portfolioID, order, result)
		switch {
		case errors.Is(err, apperrors.ErrInsufficientHoldings):
			// Another sell drained the position after the pre-trade check.
			report.Result = rejectResult(result, err.Error())
		case err != nil:
			return nil, err
		default:
			report.Applied = true
			report.Holding = holding
			report.Portfolio = updated
		}
	}

	if err := p.store.LogExecution(ctx, portfolioID, report.Result); err != nil {
		logger.Error().Err(err).Str("execution_id", report.Result.ID).Msg("Failed to log execution")
	}

	p.notify(ctx, logger, report)
	return report, nil
}

// ApplyResult applies a simulated fill to a portfolio and persists it. Each
// execution id is applied at most once; a repeat returns
// ErrDuplicateExecution and leaves the portfolio unchanged.
func (p *PaperBroker) ApplyResult(ctx context.Context, portfolioID string, order models.Order, result models.ExecutionResult) (*models.Holding, *models.Portfolio, error) {
	lock := p.lockFor(portfolioID)
	lock.Lock()
	defer lock.Unlock()

	applied, err := p.store.IsApplied(ctx, result.ID)
	if err != nil {
		return nil, nil, err
	}
	if applied {
		return nil, nil, fmt.Errorf("%w: %s", apperrors.ErrDuplicateExecution, result.ID)
	}

	portfolio, err := p.store.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, nil, err
	}
	holding, err := p.store.GetHolding(ctx, portfolioID, order.Symbol)
	if err != nil {
		return nil, nil, err
	}

	if order.Side == models.OrderSideSell {
		held := decimal.Zero
		if holding != nil {
			held = holding.Quantity
		}
		if result.FilledQuantity.GreaterThan(held) {
			return nil, nil, apperrors.NewOrderError(order.ID, order.Symbol, "apply",
				fmt.Sprintf("filled %s exceeds held %s", result.FilledQuantity, held), apperrors.ErrInsufficientHoldings)
		}
	}

	nextHolding, updated := p.updater.Apply(result, order, holding, *portfolio)
	if err := p.store.ApplyExecution(ctx, updated, nextHolding, result); err != nil {
		return nil, nil, err
	}

	logging.LogPortfolio(logging.WithPortfolio(p.logger, portfolioID), updated)
	return nextHolding, &updated, nil
}

func (p *PaperBroker) notify(ctx context.Context, logger zerolog.Logger, report *ExecutionReport) {
	if p.sink == nil {
		return
	}
	event := notify.Event{
		PortfolioID: report.PortfolioID,
		Order:       report.Order,
		Result:      report.Result,
		Timestamp:   p.now(),
	}
	if report.Portfolio != nil {
		cash := report.Portfolio.CashBalance
		event.CashBalance = &cash
	}
	if err := p.sink.Notify(ctx, event); err != nil {
		logger.Warn().Err(err).Msg("Notification failed")
	}
}

// checkHoldings rejects sells larger than the current position.
func checkHoldings(order models.Order, portfolio models.Portfolio) error {
	if order.Side != models.OrderSideSell {
		return nil
	}
	h, ok := portfolio.Holding(order.Symbol)
	if !ok || h.Quantity.LessThan(order.Quantity) {
		held := decimal.Zero
		if ok {
			held = h.Quantity
		}
		return apperrors.NewOrderError(order.ID, order.Symbol, "check",
			fmt.Sprintf("sell %s exceeds held %s", order.Quantity, held), apperrors.ErrInsufficientHoldings)
	}
	return nil
}

// checkFunds rejects buys whose notional exceeds available cash. Limit buys
// are priced at the limit; everything else at the snapshot price.
func checkFunds(order models.Order, portfolio models.Portfolio, price decimal.Decimal) error {
	if order.Side != models.OrderSideBuy {
		return nil
	}
	if order.Type == models.OrderTypeLimit && order.LimitPrice != nil {
		price = *order.LimitPrice
	}
	notional := order.Notional(price)
	if notional.GreaterThan(portfolio.CashBalance) {
		return apperrors.NewOrderError(order.ID, order.Symbol, "check",
			fmt.Sprintf("notional %s exceeds cash %s", notional.StringFixed(2), portfolio.CashBalance.StringFixed(2)),
			apperrors.ErrInsufficientFunds)
	}
	return nil
}

// rejectResult turns a fill that could not be applied into a rejection.
func rejectResult(r models.ExecutionResult, reason string) models.ExecutionResult {
	qty := r.FilledQuantity.Add(r.RemainingQuantity)
	r.Status = models.StatusRejected
	r.ExecutionPrice = nil
	r.FillQuality = nil
	r.FilledQuantity = decimal.Zero
	r.RemainingQuantity = qty
	r.Commission = decimal.Zero
	r.Fees = decimal.Zero
	r.SlippageBps = decimal.Zero
	r.Notes = "rejected: " + reason
	return r
}

var _ Broker = (*PaperBroker)(nil)
