package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"paper-trader/internal/broker"
	apperrors "paper-trader/internal/errors"
	"paper-trader/internal/logging"
	"paper-trader/internal/models"
	"paper-trader/internal/notify"
	"paper-trader/internal/security"
	"paper-trader/pkg/utils"
)

// orderFlags are the order and market inputs shared by simulate and batch.
type orderFlags struct {
	orderType  string
	limit      string
	stop       string
	price      string
	volatility string
	at         string
	portfolio  string
	seed       int64
}

func (f *orderFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.orderType, "type", "t", "market", "order type: market, limit, stop")
	cmd.Flags().StringVar(&f.limit, "limit", "", "limit price (limit orders)")
	cmd.Flags().StringVar(&f.stop, "stop", "", "stop price (stop orders)")
	cmd.Flags().StringVarP(&f.price, "price", "p", "", "current market price")
	cmd.Flags().StringVar(&f.volatility, "volatility", "", "volatility hint, e.g. 0.02")
	cmd.Flags().StringVar(&f.at, "at", "", "snapshot time in RFC3339 (default: now)")
	cmd.Flags().StringVar(&f.portfolio, "portfolio", "", "portfolio id (default: portfolio.default_id)")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "random seed (overrides simulator.seed)")
}

// buildOrder parses positional symbol, side and quantity plus price flags.
func (f *orderFlags) buildOrder(args []string) (models.Order, error) {
	side, err := ParseSide(args[1])
	if err != nil {
		return models.Order{}, err
	}
	orderType, err := ParseOrderType(f.orderType)
	if err != nil {
		return models.Order{}, err
	}
	qty, err := ParseDecimal("quantity", args[2])
	if err != nil {
		return models.Order{}, err
	}
	symbol, err := security.ValidateSymbol(args[0])
	if err != nil {
		return models.Order{}, err
	}

	order := models.Order{
		Symbol:   symbol,
		Side:     side,
		Type:     orderType,
		Quantity: qty,
	}
	if f.limit != "" {
		v, err := ParseDecimal("limit price", f.limit)
		if err != nil {
			return models.Order{}, err
		}
		order.LimitPrice = &v
	}
	if f.stop != "" {
		v, err := ParseDecimal("stop price", f.stop)
		if err != nil {
			return models.Order{}, err
		}
		order.StopPrice = &v
	}
	return order, nil
}

// buildTick parses the market flags into a quote for symbol.
func (f *orderFlags) buildTick(symbol string, now func() time.Time) (broker.Tick, error) {
	if f.price == "" {
		return broker.Tick{}, errors.New("--price is required")
	}
	price, err := ParseDecimal("price", f.price)
	if err != nil {
		return broker.Tick{}, err
	}
	at, err := ParseTimestamp(f.at, now)
	if err != nil {
		return broker.Tick{}, err
	}
	tick := broker.Tick{Symbol: symbol, Price: price, Timestamp: at}
	if f.volatility != "" {
		v, err := ParseDecimal("volatility", f.volatility)
		if err != nil {
			return broker.Tick{}, err
		}
		tick.Volatility = &v
	}
	return tick, nil
}

func newSimulateCmd(app *App) *cobra.Command {
	var flags orderFlags
	var dryRun, requireFill bool

	cmd := &cobra.Command{
		Use:   "simulate <symbol> <buy|sell> <quantity>",
		Short: "Simulate one order against a market price",
		Long: `Simulate one order against a market snapshot built from --price.

Fills are applied to the portfolio, which is opened with portfolio.initial_cash
when it does not exist. Use --dry-run to simulate without touching a portfolio.
With --require-fill the command fails when the order does not fill.`,
		Example: `  papersim simulate AAPL buy 100 --price 150.25
  papersim simulate AAPL sell 50 --type limit --limit 151 --price 150.90
  papersim simulate MSFT buy 10 --type stop --stop 405 --price 406 --dry-run`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			order, err := flags.buildOrder(args)
			if err != nil {
				return err
			}
			tick, err := flags.buildTick(order.Symbol, app.now)
			if err != nil {
				return err
			}

			if dryRun {
				sim := app.newSimulator(flags.seed)
				snap := models.MarketSnapshot{
					Symbol:       tick.Symbol,
					CurrentPrice: tick.Price,
					Volatility:   tick.Volatility,
					Timestamp:    tick.Timestamp,
				}
				result := sim.Simulate(order, &snap)
				return finishReport(output, &broker.ExecutionReport{Order: order, Snapshot: &snap, Result: result}, requireFill)
			}

			e, err := app.openEnv(flags.seed)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			portfolioID := app.portfolioID(flags.portfolio)
			if err := app.ensurePortfolio(ctx, e, portfolioID); err != nil {
				return err
			}

			e.quotes.ProcessTick(tick)
			report, err := e.broker.Execute(ctx, portfolioID, order)
			if err != nil {
				return err
			}
			return finishReport(output, report, requireFill)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "simulate without a portfolio")
	cmd.Flags().BoolVar(&requireFill, "require-fill", false, "exit with an error unless the order fills")
	return cmd
}

func (a *App) portfolioID(flag string) string {
	if flag != "" {
		return flag
	}
	return a.Config.Portfolio.DefaultID
}

// ensurePortfolio opens the portfolio with the configured initial cash when
// it does not exist yet.
func (a *App) ensurePortfolio(ctx context.Context, e *env, id string) error {
	if err := security.ValidatePortfolioID(id); err != nil {
		return err
	}
	_, err := e.broker.Portfolio(ctx, id)
	if !errors.Is(err, apperrors.ErrPortfolioNotFound) {
		return err
	}
	_, err = e.broker.OpenPortfolio(ctx, id, decimal.NewFromFloat(a.Config.Portfolio.InitialCash))
	if errors.Is(err, apperrors.ErrPortfolioExists) {
		return nil
	}
	return err
}

func reportPayload(r *broker.ExecutionReport) notify.Payload {
	e := notify.Event{PortfolioID: r.PortfolioID, Order: r.Order, Result: r.Result}
	if r.Portfolio != nil {
		cash := r.Portfolio.CashBalance
		e.CashBalance = &cash
	}
	if r.Result.ExecutionTime != nil {
		e.Timestamp = *r.Result.ExecutionTime
	} else if r.Snapshot != nil {
		e.Timestamp = r.Snapshot.Timestamp
	}
	return notify.NewPayload(e)
}

// finishReport prints r and, when requireFill is set, returns its error.
func finishReport(output *Output, r *broker.ExecutionReport, requireFill bool) error {
	if err := printReport(output, r); err != nil {
		return err
	}
	if requireFill {
		return r.Err()
	}
	return nil
}

func printReport(output *Output, r *broker.ExecutionReport) error {
	if output.IsJSON() {
		return output.JSON(reportPayload(r))
	}

	res := r.Result
	output.Printf("%s %s %s %s %s\n",
		output.Colorize(StatusColor(res.Status), string(res.Status)),
		res.Side, utils.FormatQuantity(r.Order.Quantity), res.Symbol, strings.ToLower(string(res.Type)))

	if r.Snapshot != nil {
		output.Printf("  Market:     %s\n", utils.FormatCurrency(r.Snapshot.CurrentPrice))
	}
	if res.Status.IsFill() {
		output.Printf("  Price:      %s\n", FormatPrice(res.ExecutionPrice))
		output.Printf("  Filled:     %s of %s\n", utils.FormatQuantity(res.FilledQuantity), utils.FormatQuantity(r.Order.Quantity))
		output.Printf("  Slippage:   %s\n", utils.FormatBps(res.SlippageBps))
		output.Printf("  Commission: %s\n", utils.FormatCurrency(res.Commission))
		output.Printf("  Fees:       %s\n", utils.FormatCurrency(res.Fees))
		output.Printf("  Quality:    %s\n", output.Colorize(QualityColor(res.FillQuality), FormatQuality(res.FillQuality)))
	}
	if res.Notes != "" {
		output.Printf("  Notes:      %s\n", res.Notes)
	}
	output.Dim("  Execution %s (latency %s)", res.ID, res.Latency)

	if r.Portfolio != nil {
		output.Printf("  Cash:       %s\n", utils.FormatCurrency(r.Portfolio.CashBalance))
		output.Printf("  Value:      %s\n", utils.FormatCurrency(r.Portfolio.TotalValue))
	}
	return nil
}

// batchLine is one order in a JSON Lines batch file.
type batchLine struct {
	Portfolio  string           `json:"portfolio"`
	Symbol     string           `json:"symbol"`
	Side       string           `json:"side"`
	Type       string           `json:"type"`
	Quantity   decimal.Decimal  `json:"quantity"`
	LimitPrice *decimal.Decimal `json:"limit_price"`
	StopPrice  *decimal.Decimal `json:"stop_price"`
	Price      decimal.Decimal  `json:"price"`
	Volatility *decimal.Decimal `json:"volatility"`
	Timestamp  *time.Time       `json:"timestamp"`
}

func (l batchLine) order() (models.Order, error) {
	side, err := ParseSide(l.Side)
	if err != nil {
		return models.Order{}, err
	}
	typ := l.Type
	if typ == "" {
		typ = "market"
	}
	orderType, err := ParseOrderType(typ)
	if err != nil {
		return models.Order{}, err
	}
	symbol, err := security.ValidateSymbol(l.Symbol)
	if err != nil {
		return models.Order{}, err
	}
	return models.Order{
		Symbol:     symbol,
		Side:       side,
		Type:       orderType,
		Quantity:   l.Quantity,
		LimitPrice: l.LimitPrice,
		StopPrice:  l.StopPrice,
	}, nil
}

// batchSummary counts batch outcomes.
type batchSummary struct {
	Orders   int                            `json:"orders"`
	Failed   int                            `json:"failed"`
	ByStatus map[models.ExecutionStatus]int `json:"by_status"`
}

func newBatchCmd(app *App) *cobra.Command {
	var seed int64

	cmd := &cobra.Command{
		Use:   "batch [file]",
		Short: "Simulate orders from a JSON Lines file",
		Long: `Simulate a sequence of orders read from a JSON Lines file, or stdin when
the file is "-" or omitted. Each line carries the order and the market price:

  {"symbol":"AAPL","side":"buy","quantity":"100","price":"150.25"}
  {"symbol":"AAPL","side":"sell","type":"limit","quantity":"50","limit_price":"151","price":"150.9","timestamp":"2024-03-13T16:30:00Z"}

Lines that fail pre-trade checks are reported and skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("opening batch file: %w", err)
				}
				defer f.Close()
				in = f
			}

			var extra []notify.Sink
			var terminal *notify.TerminalSink
			if !output.IsJSON() {
				terminal = notify.NewTerminalSink(output.Writer(), 1024)
				terminal.SetColorEnabled(output.colorEnabled)
				extra = append(extra, terminal)
			}

			e, err := app.openEnv(seed, extra...)
			if err != nil {
				return err
			}
			defer e.Close()

			summary, err := app.runBatch(cmd.Context(), e, in, output, terminal)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSONLine(summary)
			}
			output.Println()
			output.Bold("Batch complete: %d orders, %d failed", summary.Orders, summary.Failed)
			for _, status := range []models.ExecutionStatus{
				models.StatusFilled, models.StatusPartiallyFilled, models.StatusPending,
				models.StatusQueued, models.StatusRejected, models.StatusError,
			} {
				if n := summary.ByStatus[status]; n > 0 {
					output.Printf("  %-17s %d\n", status, n)
				}
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (overrides simulator.seed)")
	return cmd
}

func (a *App) runBatch(ctx context.Context, e *env, in io.Reader, output *Output, terminal *notify.TerminalSink) (*batchSummary, error) {
	summary := &batchSummary{ByStatus: make(map[models.ExecutionStatus]int)}
	opened := make(map[string]bool)
	logger := logging.FromContext(ctx)

	scanner := bufio.NewScanner(in)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		summary.Orders++

		report, err := a.batchOrder(ctx, e, text, opened)
		if terminal != nil {
			terminal.Drain()
		}
		if err != nil {
			summary.Failed++
			logger.Warn().Err(err).Int("line", lineNo).Msg("Batch order failed")
			if output.IsJSON() {
				if err := output.JSONLine(map[string]interface{}{"line": lineNo, "error": err.Error()}); err != nil {
					return nil, err
				}
			} else {
				output.Error("line %d: %v", lineNo, err)
			}
			continue
		}

		summary.ByStatus[report.Result.Status]++
		if output.IsJSON() {
			if err := output.JSONLine(reportPayload(report)); err != nil {
				return nil, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading batch: %w", err)
	}
	return summary, nil
}

func (a *App) batchOrder(ctx context.Context, e *env, text string, opened map[string]bool) (*broker.ExecutionReport, error) {
	var line batchLine
	if err := json.Unmarshal([]byte(text), &line); err != nil {
		return nil, fmt.Errorf("decoding order: %w", err)
	}
	order, err := line.order()
	if err != nil {
		return nil, err
	}
	if !line.Price.IsPositive() {
		return nil, errors.New("price is required")
	}

	portfolioID := a.portfolioID(line.Portfolio)
	if !opened[portfolioID] {
		if err := a.ensurePortfolio(ctx, e, portfolioID); err != nil {
			return nil, err
		}
		opened[portfolioID] = true
	}

	tick := broker.Tick{Symbol: order.Symbol, Price: line.Price, Volatility: line.Volatility}
	if line.Timestamp != nil {
		tick.Timestamp = line.Timestamp.UTC()
	}
	e.quotes.ProcessTick(tick)

	return e.broker.Execute(ctx, portfolioID, order)
}
