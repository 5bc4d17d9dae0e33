// Package store reads the twba_* tables from Postgres or a local SQLite file
// and serves the read-only query console.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	TransactionsTable = "twba_transactions"
	ItemsTable        = "twba_items"
)

// Tables lists the base tables in load order.
var Tables = []string{TransactionsTable, ItemsTable}

var ErrUnknownTable = errors.New("unknown table")

// Querier runs a statement that returns rows. *sql.DB and *sql.Tx satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type Store struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

// Open connects with the named driver and pings the database. driver is
// DriverPostgres (pgx) or DriverSQLite (modernc).
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*Store, error) {
	var sqlDriver string
	switch driver {
	case DriverPostgres:
		sqlDriver = "pgx"
	case DriverSQLite:
		sqlDriver = "sqlite"
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// Every connection to ":memory:" opens a separate database.
		db.SetMaxOpenConns(1)
	}

	return New(db, driver, logger), nil
}

// New wraps an open handle.
func New(db *sql.DB, driver string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{db: db, driver: driver, logger: logger}
}

func (s *Store) DB() *sql.DB    { return s.db }
func (s *Store) Driver() string { return s.driver }

// Source labels snapshots loaded from this store.
func (s *Store) Source() string {
	return s.driver + ":" + TransactionsTable + "+" + ItemsTable
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	s.logger.Debug("closing database connection")
	return s.db.Close()
}

// QueryContext makes Store a Querier.
func (s *Store) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	return s.db.QueryContext(ctx, query, args...)
}

// KnownTable reports whether name is one of the base tables.
func KnownTable(name string) bool {
	return slices.Contains(Tables, name)
}
