package dataset

import (
	"database/sql"
	"time"
)

// Transaction is one checkout event. Empty strings and invalid Null values
// mean the source cell was missing or could not be coerced.
type Transaction struct {
	ID            string
	Timestamp     time.Time
	Month         time.Time
	Weekday       string
	Hour          sql.NullInt64
	TimeSegment   string
	GenderRaw     string
	Gender        string
	Age           sql.NullInt64
	AgeBucket     string
	PaymentMethod string
	BasketTotal   sql.NullFloat64
}

// Item is one product line of a transaction. Demographic and temporal fields
// are copies of the owning transaction's; BasketTotal and PaymentMethod are
// filled by JoinTransactions.
type Item struct {
	TransactionID string
	Timestamp     time.Time
	Category      string
	Brand         string
	Product       string
	SKU           string
	UnitPrice     sql.NullFloat64
	Quantity      sql.NullFloat64
	TotalPrice    sql.NullFloat64
	Gender        string
	AgeBucket     string
	Age           sql.NullInt64
	TimeSegment   string
	Weekday       string
	RoundPrice    string
	BasketTotal   sql.NullFloat64
	PaymentMethod string
}

// Revenue is the line total, falling back to unit price times quantity.
func (it Item) Revenue() (float64, bool) {
	if it.TotalPrice.Valid {
		return it.TotalPrice.Float64, true
	}
	if it.UnitPrice.Valid && it.Quantity.Valid {
		return it.UnitPrice.Float64 * it.Quantity.Float64, true
	}
	return 0, false
}

// PricePerUnit is the unit price, falling back to total price over quantity.
func (it Item) PricePerUnit() (float64, bool) {
	if it.UnitPrice.Valid {
		return it.UnitPrice.Float64, true
	}
	if it.TotalPrice.Valid && it.Quantity.Valid && it.Quantity.Float64 != 0 {
		return it.TotalPrice.Float64 / it.Quantity.Float64, true
	}
	return 0, false
}

type TransactionTable struct {
	Schema Schema
	Rows   []Transaction
}

func (t TransactionTable) Len() int    { return len(t.Rows) }
func (t TransactionTable) Empty() bool { return len(t.Rows) == 0 }

// WithRows returns a table sharing t's schema over a different row set.
func (t TransactionTable) WithRows(rows []Transaction) TransactionTable {
	return TransactionTable{Schema: t.Schema, Rows: rows}
}

type ItemTable struct {
	Schema Schema
	Rows   []Item
}

func (t ItemTable) Len() int    { return len(t.Rows) }
func (t ItemTable) Empty() bool { return len(t.Rows) == 0 }

func (t ItemTable) WithRows(rows []Item) ItemTable {
	return ItemTable{Schema: t.Schema, Rows: rows}
}

// Snapshot is the immutable pair of base tables every request reads from.
type Snapshot struct {
	Transactions TransactionTable
	Items        ItemTable
	Source       string
	LoadedAt     time.Time
}

// JoinTransactions left-joins basket total and payment method from txns onto
// items by transaction identifier. Orphan items keep missing values. The
// input tables are not modified.
func JoinTransactions(items ItemTable, txns TransactionTable) ItemTable {
	joinBasket := txns.Schema.Has(ColInteractionID, ColBasketTotal)
	joinPayment := txns.Schema.Has(ColInteractionID, ColPaymentMethod)
	if !items.Schema.Has(ColInteractionID) || (!joinBasket && !joinPayment) {
		return items
	}

	type owner struct {
		basket  sql.NullFloat64
		payment string
	}
	byID := make(map[string]owner, len(txns.Rows))
	for _, tx := range txns.Rows {
		if _, seen := byID[tx.ID]; seen {
			continue
		}
		byID[tx.ID] = owner{basket: tx.BasketTotal, payment: tx.PaymentMethod}
	}

	rows := make([]Item, len(items.Rows))
	for i, it := range items.Rows {
		o := byID[it.TransactionID]
		if joinBasket {
			it.BasketTotal = o.basket
		}
		if joinPayment {
			it.PaymentMethod = o.payment
		}
		rows[i] = it
	}

	schema := items.Schema
	if joinBasket {
		schema = schema.With(ColBasketTotal)
	}
	if joinPayment {
		schema = schema.With(ColPaymentMethod)
	}
	return ItemTable{Schema: schema, Rows: rows}
}
