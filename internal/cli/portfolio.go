package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"paper-trader/internal/broker"
	"paper-trader/internal/models"
	"paper-trader/internal/notify"
	"paper-trader/internal/resilience"
	"paper-trader/internal/security"
	"paper-trader/internal/store"
	"paper-trader/internal/trading"
	"paper-trader/pkg/utils"
)

func newPortfolioCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "portfolio",
		Aliases: []string{"pf"},
		Short:   "Paper portfolio management",
	}

	cmd.AddCommand(newPortfolioOpenCmd(app))
	cmd.AddCommand(newPortfolioShowCmd(app))
	cmd.AddCommand(newPortfolioValueCmd(app))
	cmd.AddCommand(newPortfolioListCmd(app))
	return cmd
}

func newPortfolioOpenCmd(app *App) *cobra.Command {
	var cash string

	cmd := &cobra.Command{
		Use:   "open [id]",
		Short: "Open a new portfolio funded with cash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			id := ""
			if len(args) == 1 {
				id = args[0]
				if err := security.ValidatePortfolioID(id); err != nil {
					return err
				}
			}

			amount, err := ParseDecimal("cash", cash)
			if err != nil {
				return err
			}

			e, err := app.openEnv(0)
			if err != nil {
				return err
			}
			defer e.Close()

			p, err := e.broker.OpenPortfolio(cmd.Context(), id, amount)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(trading.Summarize(*p))
			}
			output.Success("Opened portfolio %s with %s", p.ID, utils.FormatCurrency(p.CashBalance))
			return nil
		},
	}

	cmd.Flags().StringVar(&cash, "cash", "100000", "starting cash")
	return cmd
}

func newPortfolioShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show holdings and cash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			e, err := app.openEnv(0)
			if err != nil {
				return err
			}
			defer e.Close()

			p, err := e.broker.Portfolio(cmd.Context(), app.portfolioID(firstArg(args)))
			if err != nil {
				return err
			}
			return printPortfolio(output, *p)
		},
	}
}

func newPortfolioValueCmd(app *App) *cobra.Command {
	var prices []string

	cmd := &cobra.Command{
		Use:   "value [id]",
		Short: "Revalue holdings at new prices",
		Long: `Mark holdings to market. Prices are given as SYMBOL=PRICE pairs; holdings
without a price keep their last value.`,
		Example: `  papersim portfolio value --price AAPL=152.10 --price MSFT=410`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			e, err := app.openEnv(0)
			if err != nil {
				return err
			}
			defer e.Close()

			for _, kv := range prices {
				if err := applyPrice(e.quotes, kv); err != nil {
					return err
				}
			}

			p, err := e.broker.MarkToMarket(cmd.Context(), app.portfolioID(firstArg(args)))
			if err != nil {
				return err
			}
			return printPortfolio(output, *p)
		},
	}

	cmd.Flags().StringArrayVar(&prices, "price", nil, "SYMBOL=PRICE (repeatable)")
	return cmd
}

func newPortfolioListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List portfolio ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			e, err := app.openEnv(0)
			if err != nil {
				return err
			}
			defer e.Close()

			ids, err := e.store.ListPortfolios(cmd.Context())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				if ids == nil {
					ids = []string{}
				}
				return output.JSON(ids)
			}
			for _, id := range ids {
				output.Println(id)
			}
			return nil
		},
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func applyPrice(quotes *broker.QuoteBook, kv string) error {
	symbol, price, ok := strings.Cut(kv, "=")
	if !ok || symbol == "" {
		return fmt.Errorf("invalid price %q (want SYMBOL=PRICE)", kv)
	}
	v, err := ParseDecimal("price", price)
	if err != nil {
		return err
	}
	symbol, err = security.ValidateSymbol(symbol)
	if err != nil {
		return err
	}
	quotes.UpdatePrice(symbol, v)
	return nil
}

func printPortfolio(output *Output, p models.Portfolio) error {
	summary := trading.Summarize(p)
	if output.IsJSON() {
		return output.JSON(summary)
	}

	output.Bold("Portfolio %s", p.ID)
	output.Printf("  Cash:      %s\n", utils.FormatCurrency(summary.CashBalance))
	output.Printf("  Invested:  %s\n", utils.FormatCurrency(summary.InvestedValue))
	output.Printf("  Total:     %s\n", utils.FormatCurrency(summary.TotalValue))
	output.Printf("  P&L:       %s (%s)\n", output.FormatPnL(summary.TotalPnL), output.FormatPercent(summary.TotalPnLPercent))
	output.Println()

	if len(p.Holdings) == 0 {
		output.Dim("No holdings")
		return nil
	}

	table := NewTable(output, "SYMBOL", "QTY", "AVG COST", "PRICE", "VALUE", "P&L", "WEIGHT")
	for _, exp := range summary.Exposure {
		h := p.Holdings[exp.Symbol]
		table.AddRow(
			h.Symbol,
			utils.FormatQuantity(h.Quantity),
			utils.FormatCurrency(h.AverageCost),
			utils.FormatCurrency(h.CurrentPrice),
			utils.FormatCurrency(h.MarketValue),
			output.FormatPnL(h.UnrealizedGainLoss),
			exp.Percent.StringFixed(1)+"%",
		)
	}
	table.Render()
	return nil
}

// historyFlags select logged executions.
type historyFlags struct {
	portfolio string
	symbol    string
	status    string
	since     string
	until     string
	limit     int
}

func (f *historyFlags) register(cmd *cobra.Command, defaultLimit int) {
	cmd.Flags().StringVar(&f.portfolio, "portfolio", "", "portfolio id (default: portfolio.default_id)")
	cmd.Flags().StringVar(&f.symbol, "symbol", "", "filter by symbol")
	cmd.Flags().StringVar(&f.status, "status", "", "filter by status, e.g. filled")
	cmd.Flags().StringVar(&f.since, "since", "", "only executions recorded at or after this RFC3339 time")
	cmd.Flags().StringVar(&f.until, "until", "", "only executions recorded at or before this RFC3339 time")
	cmd.Flags().IntVarP(&f.limit, "limit", "n", defaultLimit, "maximum rows (0 for all)")
}

func (f *historyFlags) filter(app *App) (store.ExecutionFilter, error) {
	filter := store.ExecutionFilter{
		PortfolioID: app.portfolioID(f.portfolio),
		Symbol:      strings.ToUpper(f.symbol),
		Status:      models.ExecutionStatus(strings.ToUpper(f.status)),
		Limit:       f.limit,
	}
	for _, bound := range []struct {
		value string
		dst   *time.Time
	}{
		{f.since, &filter.StartDate},
		{f.until, &filter.EndDate},
	} {
		if bound.value == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, bound.value)
		if err != nil {
			return filter, fmt.Errorf("invalid time %q (want RFC3339)", bound.value)
		}
		*bound.dst = t.UTC()
	}
	return filter, nil
}

func newHistoryCmd(app *App) *cobra.Command {
	var flags historyFlags

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show logged executions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			filter, err := flags.filter(app)
			if err != nil {
				return err
			}

			e, err := app.openEnv(0)
			if err != nil {
				return err
			}
			defer e.Close()

			records, err := e.broker.History(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				payloads := make([]notify.Payload, 0, len(records))
				for _, rec := range records {
					payloads = append(payloads, recordPayload(rec))
				}
				return output.JSON(payloads)
			}

			if len(records) == 0 {
				output.Dim("No executions")
				return nil
			}

			table := NewTable(output, "TIME", "SYMBOL", "SIDE", "TYPE", "STATUS", "FILLED", "PRICE", "SLIPPAGE", "QUALITY", "APPLIED")
			for _, rec := range records {
				r := rec.Result
				applied := "no"
				if rec.Applied {
					applied = "yes"
				}
				table.AddRow(
					FormatTimestamp(rec.RecordedAt),
					r.Symbol,
					string(r.Side),
					string(r.Type),
					output.Colorize(StatusColor(r.Status), string(r.Status)),
					utils.FormatQuantity(r.FilledQuantity)+"/"+utils.FormatQuantity(r.FilledQuantity.Add(r.RemainingQuantity)),
					FormatPrice(r.ExecutionPrice),
					r.SlippageBps.StringFixed(2),
					output.Colorize(QualityColor(r.FillQuality), FormatQuality(r.FillQuality)),
					applied,
				)
			}
			table.Render()
			return nil
		},
	}

	flags.register(cmd, 20)
	return cmd
}

func recordPayload(rec store.ExecutionRecord) notify.Payload {
	r := rec.Result
	return notify.NewPayload(notify.Event{
		PortfolioID: rec.PortfolioID,
		Order:       models.Order{Quantity: r.FilledQuantity.Add(r.RemainingQuantity)},
		Result:      r,
		Timestamp:   rec.RecordedAt,
	})
}

func newQualityCmd(app *App) *cobra.Command {
	var flags historyFlags

	cmd := &cobra.Command{
		Use:   "quality",
		Short: "Summarize execution quality from the execution log",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			filter, err := flags.filter(app)
			if err != nil {
				return err
			}

			e, err := app.openEnv(0)
			if err != nil {
				return err
			}
			defer e.Close()

			records, err := e.broker.History(cmd.Context(), filter)
			if err != nil {
				return err
			}

			tracker := resilience.NewExecutionQualityTracker(resilience.TrackerConfigFrom(app.Config.Quality))
			// Oldest first so the recent window holds the latest fills.
			for i := len(records) - 1; i >= 0; i-- {
				tracker.Record(records[i].PortfolioID, records[i].Result)
			}
			report := tracker.GenerateReport()

			if output.IsJSON() {
				return output.JSON(report)
			}
			printQuality(output, report)
			return nil
		},
	}

	flags.register(cmd, 0)
	return cmd
}

func printQuality(output *Output, report *resilience.QualityReport) {
	s := report.Stats
	output.Bold("Execution Quality")
	output.Printf("  Results:        %d (%d fills)\n", s.TotalResults, s.TotalFills)
	output.Printf("  Avg Slippage:   %s\n", utils.FormatBps(s.AvgSlippage))
	output.Printf("  Max Slippage:   %s\n", utils.FormatBps(s.MaxSlippage))
	output.Printf("  Recent Avg:     %s\n", utils.FormatBps(s.RecentAvgSlippage))
	output.Printf("  Avg Fill Ratio: %s\n", s.AvgFillRatio.StringFixed(3))
	output.Printf("  Rejection Rate: %s%%\n", s.RejectionRate.StringFixed(1))
	output.Println()

	output.Bold("By Status")
	for _, status := range []models.ExecutionStatus{
		models.StatusFilled, models.StatusPartiallyFilled, models.StatusPending,
		models.StatusQueued, models.StatusRejected, models.StatusError,
	} {
		output.Printf("  %-17s %d\n", output.Colorize(StatusColor(status), string(status)), s.ByStatus[status])
	}
	output.Println()

	output.Bold("By Fill Quality")
	for _, q := range []models.FillQuality{
		models.FillQualityExcellent, models.FillQualityGood, models.FillQualityAverage, models.FillQualityPoor,
	} {
		q := q
		output.Printf("  %-10s %d\n", output.Colorize(QualityColor(&q), string(q)), s.ByQuality[q])
	}

	if len(report.BySymbol) > 0 {
		output.Println()
		table := NewTable(output, "SYMBOL", "FILLS", "AVG BPS", "MAX BPS")
		for _, sym := range report.BySymbol {
			table.AddRow(sym.Symbol, fmt.Sprint(sym.Count), sym.AvgSlippage.StringFixed(2), sym.MaxSlippage.StringFixed(2))
		}
		table.Render()
	}

	if len(report.HighSlippage) > 0 {
		output.Println()
		output.Warning("%d fills above the slippage alert threshold", len(report.HighSlippage))
	}
}
