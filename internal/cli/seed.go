package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"scout-dashboard/internal/config"
	"scout-dashboard/internal/store"
)

func newSeedCommand(a *app) *cobra.Command {
	var transactions, items string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the SQLite tables and load the CSV exports into them",
		Long: `Apply the schema migrations to the SQLite database and insert the rows of
both CSV exports. Defaults to the database.transactions_csv and
database.items_csv paths from the configuration.`,
		Example: `  scout seed --driver sqlite --sqlite scout.db \
    --transactions data/twba_transactions.csv --items data/twba_items.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Database.Driver != config.DriverSQLite {
				return fmt.Errorf("seed writes to a local SQLite database only, got driver %q", a.cfg.Database.Driver)
			}
			if transactions == "" {
				transactions = a.cfg.Database.TransactionsCSV
			}
			if items == "" {
				items = a.cfg.Database.ItemsCSV
			}

			ctx := cmd.Context()
			st, err := a.requireStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if err := st.Migrate(ctx); err != nil {
				return err
			}
			counts, err := st.SeedFiles(ctx, transactions, items)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, table := range store.Tables {
				_, _ = printer.Fprintf(out, "%s: %d rows\n", table, counts[table])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&transactions, "transactions", "", "transactions CSV export")
	cmd.Flags().StringVar(&items, "items", "", "items CSV export")

	return cmd
}
