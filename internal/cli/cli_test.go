package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const transactionsCSV = "InteractionID,TransactionDate,gender_clean,age_bucket,payment_method,basket_total\n" +
	"T1,2024-03-01 10:00:00,Female,25-34,Cash,650.5\n" +
	"T2,2024-03-02 21:15:00,Male,55+,GCash,720\n"

const itemsCSV = "InteractionID,category,brandName,productName,quantity,unitPrice,totalPrice\n" +
	"T1,Cigarettes,Marlboro,Marlboro Red,2,150,300\n" +
	"T2,Laundry,Surf,Surf Powder,3,15,45\n"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// seededDB writes both exports, seeds a fresh SQLite file from them and
// returns the flags that select it.
func seededDB(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	txPath := filepath.Join(dir, "transactions.csv")
	itemsPath := filepath.Join(dir, "items.csv")
	require.NoError(t, os.WriteFile(txPath, []byte(transactionsCSV), 0o644))
	require.NoError(t, os.WriteFile(itemsPath, []byte(itemsCSV), 0o644))

	db := []string{"--driver", "sqlite", "--sqlite", filepath.Join(dir, "scout.db"), "--log-level", "error"}
	out, err := execute(t, append([]string{"seed", "--transactions", txPath, "--items", itemsPath}, db...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "twba_transactions: 2 rows")
	assert.Contains(t, out, "twba_items: 2 rows")
	return db
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "scout v"+Version)
}

func TestChartCommand_Catalog(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, append([]string{"chart", "--tab", "tobacco"}, db...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "tobacco.brands")
	assert.NotContains(t, out, "general.gender")
}

func TestChartCommand(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, append([]string{"chart", "general.gender"}, db...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Female")
	assert.Contains(t, out, "₱650.50")
	assert.Contains(t, out, "(2 rows)")

	out, err = execute(t, append([]string{"chart", "general.gender", "--payment", "GCash", "-o", "json"}, db...)...)
	require.NoError(t, err)
	var doc document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "general.gender", doc.ID)
	assert.Equal(t, [][]string{{"Male", "1", "₱720.00"}}, doc.Rows)

	_, err = execute(t, append([]string{"chart", "general.missing"}, db...)...)
	assert.Error(t, err)

	_, err = execute(t, append([]string{"chart", "general.gender", "-o", "xml"}, db...)...)
	assert.ErrorContains(t, err, "invalid output format")
}

func TestQueryCommand(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, append([]string{"query", "-o", "yaml",
		`SELECT "InteractionID", payment_method FROM twba_transactions ORDER BY "InteractionID"`}, db...)...)
	require.NoError(t, err)
	var doc document
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, []string{"InteractionID", "payment_method"}, doc.Columns)
	assert.Equal(t, [][]string{{"T1", "Cash"}, {"T2", "GCash"}}, doc.Rows)

	_, err = execute(t, append([]string{"query", "DELETE FROM twba_items"}, db...)...)
	assert.ErrorContains(t, err, "Only SELECT")
}

func TestQueryCommand_NeedsDatabase(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "query", "SELECT 1", "--driver", "csv", "--log-level", "error",
		"--config", writeConfig(t, dir, "database:\n  transactions_csv: a.csv\n  items_csv: b.csv\n"))
	assert.ErrorIs(t, err, errNoDatabase)
}

func TestPreviewCommand(t *testing.T) {
	db := seededDB(t)

	out, err := execute(t, append([]string{"preview", "twba_items"}, db...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Marlboro Red")
	assert.Contains(t, out, "Showing 2 row(s) of twba_items.")

	_, err = execute(t, append([]string{"preview", "customers"}, db...)...)
	assert.ErrorContains(t, err, "unknown table")
}

func TestAskCommand_NotConfigured(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("SCOUT_ASSISTANT__API_KEY", "")
	db := seededDB(t)

	_, err := execute(t, append([]string{"ask", "--sql-only", "top brands"}, db...)...)
	assert.ErrorContains(t, err, "assistant not configured")
}

func TestSeedCommand_RequiresSQLite(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "seed", "--driver", "csv", "--log-level", "error",
		"--config", writeConfig(t, dir, "database:\n  transactions_csv: a.csv\n  items_csv: b.csv\n"))
	assert.ErrorContains(t, err, "SQLite database only")
}

func TestServeCommand_ValidatesAuth(t *testing.T) {
	t.Setenv("DASHBOARD_PASSWORD", "")
	t.Setenv("SCOUT_AUTH__PASSWORD", "")
	db := seededDB(t)

	_, err := execute(t, append([]string{"serve"}, db...)...)
	assert.ErrorContains(t, err, "auth password is required")
}

func TestReadStatement(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "q.sql")
	require.NoError(t, os.WriteFile(file, []byte("SELECT 2"), 0o644))

	tests := []struct {
		name    string
		args    []string
		file    string
		stdin   string
		want    string
		wantErr string
	}{
		{name: "argument", args: []string{"SELECT 1"}, want: "SELECT 1"},
		{name: "file", file: file, want: "SELECT 2"},
		{name: "stdin", file: "-", stdin: "SELECT 3", want: "SELECT 3"},
		{name: "both", args: []string{"SELECT 1"}, file: file, wantErr: "not both"},
		{name: "none", wantErr: "no SQL statement"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readStatement(strings.NewReader(tt.stdin), tt.args, tt.file)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCriteriaFlags(t *testing.T) {
	f := criteriaFlags{
		start:    "2024-03-01",
		genders:  []string{"Female", " Female", ""},
		payments: []string{"Cash"},
	}
	c := f.criteria()
	assert.Nil(t, c.DateRange, "a range needs both bounds")
	assert.Equal(t, []string{"Female"}, c.Genders)
	assert.Equal(t, []string{"Cash"}, c.PaymentMethods)

	f.end = "2024-03-31"
	require.NotNil(t, f.criteria().DateRange)
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "scout.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}
