// Package cli provides the command-line interface for the paper trading
// simulator.
package cli

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"paper-trader/internal/broker"
	"paper-trader/internal/config"
	apperrors "paper-trader/internal/errors"
	"paper-trader/internal/logging"
	"paper-trader/internal/notify"
	"paper-trader/internal/resilience"
	"paper-trader/internal/security"
	"paper-trader/internal/simulator"
	"paper-trader/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-03-15"
)

// App holds the application dependencies.
type App struct {
	Config    *config.Config
	ConfigDir string
	Logger    zerolog.Logger
	// Clock stamps quotes and results. Nil means time.Now.
	Clock func() time.Time
}

// env is the wired execution stack for one command run.
type env struct {
	quotes  *broker.QuoteBook
	sim     *simulator.Simulator
	store   *store.SQLiteStore
	broker  *broker.PaperBroker
	tracker *resilience.ExecutionQualityTracker
	sinks   *notify.MultiSink
}

func (e *env) Close() error {
	var sinkErr error
	if e.sinks != nil {
		sinkErr = e.sinks.Close()
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			return err
		}
	}
	return sinkErr
}

func (a *App) now() time.Time {
	if a.Clock != nil {
		return a.Clock()
	}
	return time.Now()
}

// newSimulator builds a simulator from config; a non-zero seed overrides
// the configured one.
func (a *App) newSimulator(seed int64) *simulator.Simulator {
	cfg := a.Config.Simulator
	if seed != 0 {
		cfg.Seed = seed
	}
	return simulator.NewSimulator(cfg, simulator.Options{
		Logger: a.Logger,
		Clock:  a.now,
	})
}

// openEnv opens the store and wires the broker with the configured sinks
// plus any extra ones.
func (a *App) openEnv(seed int64, extra ...notify.Sink) (*env, error) {
	st, err := store.NewSQLiteStore(a.Config.Store.Path)
	if err != nil {
		return nil, apperrors.Wrap(err, "opening store")
	}

	quotes := broker.NewQuoteBook(a.Config.MarketData.MaxQuoteAge)
	quotes.SetClock(a.now)

	tracker := resilience.NewExecutionQualityTracker(resilience.TrackerConfigFrom(a.Config.Quality))
	tracker.SetAlertCallback(func(alert resilience.ExecutionAlert) {
		a.Logger.Warn().
			Str("alert", string(alert.Type)).
			Str("symbol", alert.Symbol).
			Str("execution_id", alert.ExecutionID).
			Msg(alert.Message)
	})

	sinks := notify.NewMultiSink(a.Config.Notifications, a.Logger)
	sinks.AddSink(tracker)
	for _, s := range extra {
		sinks.AddSink(s)
	}

	sim := a.newSimulator(seed)
	b := broker.NewPaperBroker(broker.PaperBrokerConfig{
		Simulator:  sim,
		Store:      st,
		MarketData: broker.NewMarketDataChain(quotes, a.Config.MarketData, a.Logger),
		Sink:       sinks,
		Logger:     a.Logger,
		Clock:      a.now,
	})

	return &env{
		quotes:  quotes,
		sim:     sim,
		store:   st,
		broker:  b,
		tracker: tracker,
		sinks:   sinks,
	}, nil
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	app := &App{}

	rootCmd := &cobra.Command{
		Use:   "papersim",
		Short: "Paper trading execution simulator",
		Long: `papersim simulates order execution against market snapshots.

Orders are filled with modeled slippage, partial fills, commission and
regulatory fees, then applied to a persistent paper portfolio.

Use 'papersim <command> --help' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.load(cmd)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/paper-trader)")
	rootCmd.PersistentFlags().String("db", "", "database path (overrides store.path)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newSimulateCmd(app))
	rootCmd.AddCommand(newBatchCmd(app))
	rootCmd.AddCommand(newPortfolioCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
	rootCmd.AddCommand(newQualityCmd(app))

	return rootCmd
}

// load reads configuration and sets up logging from the global flags.
func (a *App) load(cmd *cobra.Command) error {
	dir, _ := cmd.Flags().GetString("config")
	if dir == "" {
		dir = config.DefaultConfigDir()
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Store.Path = db
	}

	a.Config = cfg
	a.ConfigDir = dir
	a.Logger = logging.NewLoggerWithConfig(logging.LogConfig{
		Level:      cfg.Logging.Level,
		Console:    cfg.Logging.Console,
		File:       cfg.Logging.File,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Out:        cmd.ErrOrStderr(),
	})

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logging.SetDebugLevel()
		a.Logger = a.Logger.Level(zerolog.DebugLevel)
	}
	cmd.SetContext(logging.WithLogger(cmd.Context(), a.Logger))
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("papersim v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := *app.Config
			cfg.Notifications.Webhook.URL = security.MaskURL(cfg.Notifications.Webhook.URL)
			if output.IsJSON() {
				return output.JSON(cfg)
			}
			showConfig(output, &cfg)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path := config.TemplatePath(app.ConfigDir)
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": path})
			}
			output.Println(path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	s := cfg.Simulator
	output.Bold("Simulator")
	output.Printf("  Base Slippage:    %.2f bps (max %.2f)\n", s.BaseSlippageBps, s.MaxSlippageBps)
	output.Printf("  Volatility Model: %s\n", s.VolatilityModel)
	output.Printf("  Fill Probability: %.2f\n", s.FillProbability)
	output.Printf("  Partial Fills:    %.2f in [%.2f, %.2f]\n", s.PartialFillProbability, s.PartialFillMin, s.PartialFillMax)
	output.Printf("  Commission:       $%.4f/share (min $%.2f, max $%.2f)\n", s.PerShareCommission, s.MinCommission, s.MaxCommission)
	output.Printf("  Simplified:       %v\n", s.Simplified)
	output.Printf("  Queue When Closed: %v\n", s.QueueWhenClosed)
	output.Println()

	output.Bold("Portfolio")
	output.Printf("  Default ID:       %s\n", cfg.Portfolio.DefaultID)
	output.Printf("  Initial Cash:     $%.2f\n", cfg.Portfolio.InitialCash)
	output.Printf("  Store:            %s\n", cfg.Store.Path)
	output.Println()

	output.Bold("Notifications")
	output.Printf("  Enabled:          %v\n", cfg.Notifications.Enabled)
	output.Printf("  Level:            %s\n", cfg.Notifications.Level)
	output.Printf("  Webhook:          %v %s\n", cfg.Notifications.Webhook.Enabled, cfg.Notifications.Webhook.URL)
	output.Printf("  Kafka:            %v\n", cfg.Notifications.Kafka.Enabled)
}
