package cli

import (
	"net/url"

	"github.com/spf13/cobra"

	"scout-dashboard/internal/analytics"
	"scout-dashboard/internal/filter"
)

// criteriaFlags holds the filter selection given on the command line.
type criteriaFlags struct {
	start, end string
	dayType    string
	genders    []string
	ages       []string
	payments   []string
	months     []string
	categories []string
}

func (f *criteriaFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.start, "start", "", "first day of the date range (YYYY-MM-DD)")
	fs.StringVar(&f.end, "end", "", "last day of the date range (YYYY-MM-DD)")
	fs.StringVar(&f.dayType, "daytype", "", "Weekday or Weekend")
	fs.StringSliceVar(&f.genders, "gender", nil, "genders to keep")
	fs.StringSliceVar(&f.ages, "age", nil, "age buckets to keep")
	fs.StringSliceVar(&f.payments, "payment", nil, "payment methods to keep")
	fs.StringSliceVar(&f.months, "month", nil, "months to keep (YYYY-MM)")
	fs.StringSliceVar(&f.categories, "category", nil, "item categories to keep")
}

// criteria goes through ParseCriteria so the CLI and the HTTP API clean
// values the same way.
func (f *criteriaFlags) criteria() filter.Criteria {
	q := url.Values{
		filter.ParamGender:   f.genders,
		filter.ParamAge:      f.ages,
		filter.ParamPayment:  f.payments,
		filter.ParamMonth:    f.months,
		filter.ParamCategory: f.categories,
	}
	q.Set(filter.ParamStart, f.start)
	q.Set(filter.ParamEnd, f.end)
	q.Set(filter.ParamDayType, f.dayType)
	return filter.ParseCriteria(q).Normalize()
}

func newChartCommand(a *app) *cobra.Command {
	var (
		crit   criteriaFlags
		output string
		tab    string
	)

	cmd := &cobra.Command{
		Use:   "chart [ID]",
		Short: "Compute a dashboard chart",
		Long: `Load the data and print one chart as a table, JSON or YAML.

Without an ID, list the chart catalog (optionally limited to one tab).`,
		Example: `  # List the tobacco charts
  scout chart --tab tobacco

  # Gender distribution of GCash shoppers in March
  scout chart general.gender --payment GCash --month 2024-03 -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				charts := analytics.Catalog()
				if tab != "" {
					charts = analytics.TabCharts(tab)
				}
				renderCatalog(cmd.OutOrStdout(), charts)
				return nil
			}
			if err := checkFormat(output); err != nil {
				return err
			}

			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			if st != nil {
				defer func() { _ = st.Close() }()
			}

			d, err := a.loadDashboard(ctx, a.loader(st))
			if err != nil {
				return err
			}
			s, err := d.Chart(args[0], crit.criteria())
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), summaryDocument(s), output)
		},
	}

	crit.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "output format (table|json|yaml)")
	cmd.Flags().StringVar(&tab, "tab", "", "limit the catalog listing to one tab")

	return cmd
}
