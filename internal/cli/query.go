package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"scout-dashboard/internal/assistant"
)

func newQueryCommand(a *app) *cobra.Command {
	var (
		output string
		input  string
	)

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Run a read-only SQL query",
		Long: `Run a single SELECT statement against the configured database.
Anything else is rejected before it reaches the database.`,
		Example: `  scout query "SELECT category, COUNT(*) FROM twba_items GROUP BY category"

  # Read the statement from a file, or from stdin with -
  scout query -f report.sql -o yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(output); err != nil {
				return err
			}
			sql, err := readStatement(cmd.InOrStdin(), args, input)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			st, err := a.requireStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			res, err := a.console(st).Run(ctx, sql)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), resultDocument(res), output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "output format (table|json|yaml)")
	cmd.Flags().StringVarP(&input, "file", "f", "", "read the statement from a file (- for stdin)")

	return cmd
}

// readStatement takes the statement from args, or from file when args is
// empty.
func readStatement(stdin io.Reader, args []string, file string) (string, error) {
	switch {
	case len(args) == 1 && file != "":
		return "", errors.New("give the statement as an argument or with --file, not both")
	case len(args) == 1:
		return args[0], nil
	case file == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", file, err)
		}
		return string(b), nil
	default:
		return "", errors.New("no SQL statement given")
	}
}

func newPreviewCommand(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:       "preview TABLE",
		Short:     "Show the first rows of a base table",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"twba_transactions", "twba_items"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(output); err != nil {
				return err
			}

			ctx := cmd.Context()
			st, err := a.requireStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			res, err := a.console(st).Preview(ctx, args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), resultDocument(res), output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "output format (table|json|yaml)")
	return cmd
}

func newAskCommand(a *app) *cobra.Command {
	var (
		output  string
		sqlOnly bool
	)

	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Answer a question about the data with generated SQL",
		Long: `Have the language model translate a question into one SELECT over the
twba_* tables, validate it, and run it through the read-only console.`,
		Example: `  scout ask "Which brands sell best to women aged 25-34?"

  # Print the generated SQL without running it
  scout ask --sql-only "Average basket by payment method"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(output); err != nil {
				return err
			}
			question := strings.Join(args, " ")
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if sqlOnly {
				sql, err := a.assistant(nil).Generate(ctx, question)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(out, sql)
				return nil
			}

			st, err := a.requireStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			ans, err := a.assistant(a.console(st)).Ask(ctx, question)
			if err != nil {
				if ans.SQL != "" {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Generated SQL:\n%s\n", ans.SQL)
				}
				return err
			}
			return render(out, answerDocument(ans), output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "output format (table|json|yaml)")
	cmd.Flags().BoolVar(&sqlOnly, "sql-only", false, "print the generated SQL without running it")
	return cmd
}

func answerDocument(ans assistant.Answer) document {
	doc := document{SQL: ans.SQL, Title: ans.Question}
	if ans.Result != nil {
		doc = resultDocument(*ans.Result)
		doc.Title = ans.Question
	}
	return doc
}
