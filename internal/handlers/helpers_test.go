package handlers

import (
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"scout-dashboard/internal/assistant"
	"scout-dashboard/internal/dataset"
	"scout-dashboard/internal/services"
)

var quiet = slog.New(slog.DiscardHandler)

func num(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }

func testDashboard(t *testing.T) *services.Dashboard {
	t.Helper()
	txnSchema := dataset.NewSchema(
		dataset.ColInteractionID, dataset.ColTransactionDate, dataset.ColTxnMonth, dataset.ColGender,
		dataset.ColAgeBucket, dataset.ColPaymentMethod, dataset.ColBasketTotal,
	)
	itemSchema := dataset.NewSchema(
		dataset.ColInteractionID, dataset.ColTransactionDate, dataset.ColCategory, dataset.ColBrand,
		dataset.ColProduct, dataset.ColQuantity, dataset.ColUnitPrice, dataset.ColTotalPrice,
	)
	tx := func(id, day, gender, payment string, total float64) dataset.Transaction {
		ts, err := time.Parse(time.DateOnly, day)
		require.NoError(t, err)
		return dataset.Transaction{
			ID: id, Timestamp: ts, Month: time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC),
			Gender: gender, AgeBucket: "25-34", PaymentMethod: payment, BasketTotal: num(total),
		}
	}
	it := func(id, category, brand string, qty float64) dataset.Item {
		return dataset.Item{
			TransactionID: id, Category: category, Brand: brand, Product: brand + " 1",
			Quantity: num(qty), UnitPrice: num(20), TotalPrice: num(qty * 20),
		}
	}

	d := services.NewDashboard(quiet)
	d.SetSnapshot(dataset.Snapshot{
		Source: "test",
		Transactions: dataset.TransactionTable{Schema: txnSchema, Rows: []dataset.Transaction{
			tx("T1", "2024-03-01", "Male", "Cash", 800),
			tx("T2", "2024-03-02", "Female", "GCash", 950),
			tx("T3", "2024-03-09", "Female", "Cash", 620),
			tx("T4", "2024-03-10", "Male", "Cash", 120),
		}},
		Items: dataset.ItemTable{Schema: itemSchema, Rows: []dataset.Item{
			it("T1", "Cigarettes", "Marlboro", 1),
			it("T2", "Laundry", "Tide", 2),
			it("T3", "Snacks", "Oishi", 4),
		}},
	})
	return d
}

func testConsole(t *testing.T) (*assistant.Console, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return assistant.NewConsole(db, quiet), mock
}

// testAssistant answers every chat completion with reply.
func testAssistant(t *testing.T, console *assistant.Console, reply string) *assistant.Assistant {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	temperature := float32(assistant.DefaultTemperature)
	return assistant.New(assistant.Config{
		APIKey:      "test-key",
		BaseURL:     srv.URL,
		Model:       assistant.DefaultModel,
		Temperature: &temperature,
		MaxTokens:   assistant.DefaultMaxTokens,
	}, console, quiet)
}

// envelope decodes a WriteSuccess/WriteError body.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env), rec.Body.String())
	return env
}
