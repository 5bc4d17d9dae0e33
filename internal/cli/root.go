// Package cli provides the scout command tree: the dashboard server plus
// terminal access to the charts, the SQL console and the assistant.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"scout-dashboard/internal/assistant"
	"scout-dashboard/internal/config"
	"scout-dashboard/internal/dataset"
	"scout-dashboard/internal/observability"
	"scout-dashboard/internal/services"
	"scout-dashboard/internal/store"
)

// Version information (set at build time).
var (
	Version   = "1.0.0"
	GitCommit = "unknown"
)

var errNoDatabase = errors.New("this command needs a database: use --driver postgres or --driver sqlite")

// app carries what every subcommand shares once the root has parsed flags.
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "scout",
		Short: "Project Scout retail analytics dashboard",
		Long: `Scout serves the Project Scout analytics dashboard over the twba_transactions
and twba_items tables, and exposes the same charts, the read-only SQL console
and the natural-language assistant from the terminal.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "version" {
				return nil
			}

			cfg, err := config.Load(a.cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = observability.NewLoggerTo(cmd.ErrOrStderr(), cfg.Logger)
			slog.SetDefault(a.logger)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: $SCOUT_CONFIG)")
	flags.String("driver", "", "data source: postgres, sqlite or csv")
	flags.String("dsn", "", "Postgres connection string")
	flags.String("sqlite", "", "path to the SQLite database")
	flags.String("log-level", "", "log level (debug|info|warn|error)")
	flags.String("log-format", "", "log format (json|text)")

	_ = rootCmd.RegisterFlagCompletionFunc("driver", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.DriverPostgres, config.DriverSQLite, config.DriverCSV}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(
		newServeCommand(a),
		newChartCommand(a),
		newQueryCommand(a),
		newPreviewCommand(a),
		newAskCommand(a),
		newSeedCommand(a),
		newVersionCommand(),
	)

	return rootCmd
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// openStore connects to the configured database. It returns a nil store for
// the csv driver.
func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	db := a.cfg.Database
	switch db.Driver {
	case config.DriverPostgres:
		return store.Open(ctx, store.DriverPostgres, db.PostgresDSN(), a.logger)
	case config.DriverSQLite:
		return store.Open(ctx, store.DriverSQLite, db.SQLitePath, a.logger)
	default:
		return nil, nil
	}
}

// requireStore is openStore for commands that cannot run on CSV files.
func (a *app) requireStore(ctx context.Context) (*store.Store, error) {
	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, errNoDatabase
	}
	return st, nil
}

// loader reads snapshots from st, or from the configured CSV exports when st
// is nil.
func (a *app) loader(st *store.Store) services.Loader {
	if st != nil {
		return services.LoaderFunc(st.Load)
	}
	db := a.cfg.Database
	csv := dataset.NewCSVLoader(db.SnapshotCacheDir, a.logger)
	return services.LoaderFunc(func(ctx context.Context) (dataset.Snapshot, error) {
		snap, err := csv.Load(ctx, db.TransactionsCSV, db.ItemsCSV)
		if err != nil {
			return dataset.Snapshot{}, err
		}
		a.logger.Debug("csv exports decoded", "records", csv.RecordsProcessed())
		return snap, nil
	})
}

// loadDashboard builds a dashboard holding one snapshot from l.
func (a *app) loadDashboard(ctx context.Context, l services.Loader) (*services.Dashboard, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Server.LoadTimeout)
	defer cancel()

	d := services.NewDashboard(a.logger)
	if err := d.Load(ctx, l); err != nil {
		return nil, fmt.Errorf("load data: %w", err)
	}
	return d, nil
}

func (a *app) console(q store.Querier) *assistant.Console {
	return assistant.NewConsole(q, a.logger,
		assistant.WithQueryTimeout(a.cfg.Console.QueryTimeout),
		assistant.WithMaxRows(a.cfg.Console.MaxRows),
	)
}

func (a *app) assistant(console *assistant.Console) *assistant.Assistant {
	c := a.cfg.Assistant
	temperature := c.Temperature
	return assistant.New(assistant.Config{
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		Model:       c.Model,
		Temperature: &temperature,
		MaxTokens:   c.MaxTokens,
		Timeout:     c.Timeout,
	}, console, a.logger)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "scout v%s (%s)\n", Version, GitCommit)
		},
	}
}
