package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scout-dashboard/internal/dataset"
)

func mockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, DriverPostgres, nil), mock
}

func TestFormatValue(t *testing.T) {
	manila := time.FixedZone("PHT", 8*3600)
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "NULL"},
		{"bytes", []byte("Marlboro"), "Marlboro"},
		{"string", "Cash", "Cash"},
		{"float", 650.5, "650.5"},
		{"whole float", 12.0, "12"},
		{"int", int64(34), "34"},
		{"bool", true, "true"},
		{"naive time", time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC), "2024-03-01 10:30:00"},
		{"zoned time", time.Date(2024, 3, 1, 10, 30, 0, 0, manila), "2024-03-01T10:30:00+08:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.in))
		})
	}
}

func TestQuery(t *testing.T) {
	tests := []struct {
		name          string
		limit         int
		wantRows      int
		wantTruncated bool
	}{
		{"no limit", 0, 3, false},
		{"under limit", 5, 3, false},
		{"exact limit", 3, 3, false},
		{"truncated", 2, 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := mockStore(t)
			mock.ExpectQuery("SELECT gender_clean").WillReturnRows(
				sqlmock.NewRows([]string{"gender_clean", "n"}).
					AddRow("Female", int64(4)).
					AddRow("Male", int64(3)).
					AddRow(nil, int64(1)),
			)

			got, err := Query(context.Background(), s, "SELECT gender_clean, count(*) AS n FROM twba_transactions GROUP BY 1", tt.limit)
			require.NoError(t, err)
			assert.Equal(t, []string{"gender_clean", "n"}, got.Columns)
			assert.Equal(t, tt.wantRows, got.Len())
			assert.Equal(t, tt.wantTruncated, got.Truncated)
			assert.Equal(t, []string{"Female", "4"}, got.Records[0])
		})
	}
}

func TestQuery_Error(t *testing.T) {
	s, mock := mockStore(t)
	mock.ExpectQuery("SELECT").WillReturnError(assert.AnError)

	_, err := Query(context.Background(), s, "SELECT 1", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "execute query")
}

func TestPreview(t *testing.T) {
	s, mock := mockStore(t)
	mock.ExpectQuery(`SELECT \* FROM twba_items LIMIT 100`).WillReturnRows(
		sqlmock.NewRows([]string{"InteractionID", "category"}).AddRow("T1", "Snacks"),
	)

	got, err := s.Preview(context.Background(), ItemsTable, 100)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"T1", "Snacks"}}, got.Records)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = s.Preview(context.Background(), "pg_shadow", 100)
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestLoad_Mock(t *testing.T) {
	s, mock := mockStore(t)
	mock.MatchExpectationsInOrder(false)
	mock.ExpectQuery(`SELECT \* FROM twba_transactions`).WillReturnRows(
		sqlmock.NewRows([]string{"InteractionID", "TransactionDate", "gender_clean", "payment_method", "basket_total"}).
			AddRow("T1", "2024-03-01 10:00:00", "Female", "Cash", "650.5").
			AddRow("", "2024-03-01 11:00:00", "Male", "Card", "700").
			AddRow("T2", time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC), "Male", "GCash", 820.0),
	)
	mock.ExpectQuery(`SELECT \* FROM twba_items`).WillReturnRows(
		sqlmock.NewRows([]string{"InteractionID", "category", "quantity", "unitPrice"}).
			AddRow("T1", "Snacks", "2", "15").
			AddRow("T9", "Laundry", "1", nil),
	)

	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, 2, snap.Transactions.Len(), "row without an identifier is skipped")
	assert.Equal(t, 2, snap.Items.Len())
	assert.Equal(t, "postgres:twba_transactions+twba_items", snap.Source)

	assert.True(t, snap.Items.Schema.Has(dataset.ColBasketTotal, dataset.ColPaymentMethod))
	assert.InDelta(t, 650.5, snap.Items.Rows[0].BasketTotal.Float64, 1e-9)
	assert.Equal(t, "Cash", snap.Items.Rows[0].PaymentMethod)
	assert.False(t, snap.Items.Rows[1].BasketTotal.Valid, "orphan item keeps a missing basket")
	assert.False(t, snap.Items.Rows[1].UnitPrice.Valid)
}

func TestLoad_QueryError(t *testing.T) {
	s, mock := mockStore(t)
	mock.MatchExpectationsInOrder(false)
	mock.ExpectQuery(`SELECT \* FROM twba_transactions`).WillReturnError(assert.AnError)
	mock.ExpectQuery(`SELECT \* FROM twba_items`).WillReturnRows(sqlmock.NewRows([]string{"InteractionID"}))

	_, err := s.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), TransactionsTable)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "", nil)
	assert.ErrorContains(t, err, "unsupported driver")
}

func TestMigrate_RejectsPostgres(t *testing.T) {
	s, _ := mockStore(t)
	assert.ErrorContains(t, s.Migrate(context.Background()), "sqlite store only")
}

func openSQLite(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, DriverSQLite, ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}

const transactionsCSV = "\ufeffInteractionID,TransactionDate,gender_clean,age_bucket,payment_method,basket_total,unused\n" +
	"T1,2024-03-01 10:00:00,Female,25-34,Cash,650.5,x\n" +
	"T2,2024-03-02 21:15:00,Male,55+,GCash,,x\n"

const itemsCSV = "InteractionID,category,brandName,productName,quantity,unitPrice,totalPrice\n" +
	"T1,Cigarettes,Marlboro,Marlboro Red,2,150,300\n" +
	"T1,Snacks,Oishi,Prawn Crackers,1,12,NaN\n" +
	"T2,Laundry,Surf,Surf Powder,3,15,45\n"

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	version, err := s.MigrationVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	n, err := s.Seed(ctx, TransactionsTable, strings.NewReader(transactionsCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = s.Seed(ctx, ItemsTable, strings.NewReader(itemsCSV))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, snap.Transactions.Len())
	require.Equal(t, 3, snap.Items.Len())

	t1 := snap.Transactions.Rows[0]
	assert.Equal(t, "T1", t1.ID)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), t1.Timestamp)
	assert.InDelta(t, 650.5, t1.BasketTotal.Float64, 1e-9)
	assert.False(t, snap.Transactions.Rows[1].BasketTotal.Valid, "empty cell seeds NULL")

	snacks := snap.Items.Rows[1]
	assert.Equal(t, "Snacks", snacks.Category)
	assert.InDelta(t, 12.0, snacks.TotalPrice.Float64, 1e-9, "NaN seeds NULL and the total is derived")
	assert.Equal(t, "Cash", snacks.PaymentMethod)

	rows, err := s.Preview(ctx, TransactionsTable, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, rows.Len())
	assert.Contains(t, rows.Columns, "basket_total")
}

func TestSeed_Errors(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	_, err := s.Seed(ctx, "customers", strings.NewReader("a\n1\n"))
	assert.ErrorIs(t, err, ErrUnknownTable)

	_, err = s.Seed(ctx, ItemsTable, strings.NewReader("foo,bar\n1,2\n"))
	assert.ErrorContains(t, err, "no twba_items columns")

	_, err = s.Seed(ctx, ItemsTable, strings.NewReader(""))
	assert.ErrorContains(t, err, "read header")
}
