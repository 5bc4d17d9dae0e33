package dataset

import (
	"database/sql"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

var ErrMissingID = errors.New("missing InteractionID")

var zonedLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z07",
	"2006-01-02T15:04:05Z07",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

var missingMarkers = map[string]bool{
	"": true, "nan": true, "none": true, "null": true, "nat": true, "<na>": true,
}

// Text trims s and maps the usual missing-value markers to "".
func Text(s string) string {
	s = strings.TrimSpace(s)
	if missingMarkers[strings.ToLower(s)] {
		return ""
	}
	return s
}

// ParseTimestamp accepts RFC3339 and the space-separated forms Postgres and
// SQLite emit, with or without an offset. Naive values are returned in UTC
// with zoned=false. Fractional seconds are always accepted.
func ParseTimestamp(s string) (t time.Time, zoned bool, ok bool) {
	s = Text(s)
	if s == "" {
		return time.Time{}, false, false
	}
	for _, layout := range zonedLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			return v, true, true
		}
	}
	for _, layout := range naiveLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			return v, false, true
		}
	}
	return time.Time{}, false, false
}

// ParseMonth reads a txn_month cell ("2024-03", "2024-03-01", or a full
// timestamp) as the first instant of that month.
func ParseMonth(s string) (time.Time, bool) {
	s = Text(s)
	if s == "" {
		return time.Time{}, false
	}
	if v, err := time.Parse("2006-01", s); err == nil {
		return v, true
	}
	v, _, ok := ParseTimestamp(s)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(v.Year(), v.Month(), 1, 0, 0, 0, 0, v.Location()), true
}

// ParseNumber coerces a cell to a float. Non-numeric, NaN and infinite
// values come back invalid rather than zero.
func ParseNumber(s string) sql.NullFloat64 {
	s = Text(s)
	if s == "" {
		return sql.NullFloat64{}
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// ParseInt accepts integral floats such as "34.0", which is how pandas
// exports a nullable integer column.
func ParseInt(s string) sql.NullInt64 {
	n := ParseNumber(s)
	if !n.Valid || n.Float64 != math.Trunc(n.Float64) {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(n.Float64), Valid: true}
}

// Decoder turns string records into rows according to a header. It is safe
// for concurrent use once built.
type Decoder struct {
	index  map[Column]int
	schema Schema
}

func NewDecoder(header []string) *Decoder {
	d := &Decoder{index: make(map[Column]int, len(header))}
	for i, name := range header {
		if c, ok := ColumnByName(name); ok {
			if _, dup := d.index[c]; !dup {
				d.index[c] = i
				d.schema.Columns |= c
			}
		}
	}
	return d
}

// Schema is the column set named by the header. Zoned is decided by the
// table builder once timestamps have been seen.
func (d *Decoder) Schema() Schema {
	return d.schema
}

// ItemSchema is Schema plus totalPrice when it can be derived from unit
// price and quantity.
func (d *Decoder) ItemSchema() Schema {
	s := d.schema
	if s.Has(ColUnitPrice, ColQuantity) {
		s = s.With(ColTotalPrice)
	}
	return s
}

func (d *Decoder) cell(rec []string, c Column) string {
	i, ok := d.index[c]
	if !ok || i >= len(rec) {
		return ""
	}
	return Text(rec[i])
}

// Transaction decodes one record. zoned reports whether its timestamp
// carried an offset.
func (d *Decoder) Transaction(rec []string) (tx Transaction, zoned bool, err error) {
	tx.ID = d.cell(rec, ColInteractionID)
	if tx.ID == "" {
		return Transaction{}, false, ErrMissingID
	}
	tx.Timestamp, zoned, _ = ParseTimestamp(d.cell(rec, ColTransactionDate))
	tx.Month, _ = ParseMonth(d.cell(rec, ColTxnMonth))
	tx.Weekday = d.cell(rec, ColTxnWeekday)
	tx.Hour = ParseInt(d.cell(rec, ColTxnHour))
	tx.TimeSegment = d.cell(rec, ColTimeSegment)
	tx.GenderRaw = d.cell(rec, ColGenderRaw)
	tx.Gender = d.cell(rec, ColGender)
	tx.Age = ParseInt(d.cell(rec, ColAge))
	tx.AgeBucket = d.cell(rec, ColAgeBucket)
	tx.PaymentMethod = d.cell(rec, ColPaymentMethod)
	tx.BasketTotal = ParseNumber(d.cell(rec, ColBasketTotal))
	return tx, zoned, nil
}

// Item decodes one item record, deriving totalPrice from unit price and
// quantity when the cell is missing.
func (d *Decoder) Item(rec []string) (it Item, zoned bool, err error) {
	it.TransactionID = d.cell(rec, ColInteractionID)
	if it.TransactionID == "" {
		return Item{}, false, ErrMissingID
	}
	it.Timestamp, zoned, _ = ParseTimestamp(d.cell(rec, ColTransactionDate))
	it.Category = d.cell(rec, ColCategory)
	it.Brand = d.cell(rec, ColBrand)
	it.Product = d.cell(rec, ColProduct)
	it.SKU = d.cell(rec, ColSKU)
	it.UnitPrice = ParseNumber(d.cell(rec, ColUnitPrice))
	it.Quantity = ParseNumber(d.cell(rec, ColQuantity))
	it.TotalPrice = ParseNumber(d.cell(rec, ColTotalPrice))
	it.Gender = d.cell(rec, ColGender)
	it.AgeBucket = d.cell(rec, ColAgeBucket)
	it.Age = ParseInt(d.cell(rec, ColAge))
	it.TimeSegment = d.cell(rec, ColTimeSegment)
	it.Weekday = d.cell(rec, ColTxnWeekday)
	it.RoundPrice = d.cell(rec, ColRoundPrice)
	it.BasketTotal = ParseNumber(d.cell(rec, ColBasketTotal))
	it.PaymentMethod = d.cell(rec, ColPaymentMethod)

	if !it.TotalPrice.Valid && it.UnitPrice.Valid && it.Quantity.Valid {
		it.TotalPrice = sql.NullFloat64{Float64: it.UnitPrice.Float64 * it.Quantity.Float64, Valid: true}
	}
	return it, zoned, nil
}

// DecodeStats counts what happened while building a table.
type DecodeStats struct {
	Rows    int
	Skipped int
}

// DecodeTransactions builds a table from a header and string records.
// Records without an identifier are skipped and counted.
func DecodeTransactions(header []string, records [][]string) (TransactionTable, DecodeStats) {
	d := NewDecoder(header)
	table := TransactionTable{Schema: d.Schema(), Rows: make([]Transaction, 0, len(records))}
	var stats DecodeStats
	for _, rec := range records {
		tx, zoned, err := d.Transaction(rec)
		if err != nil {
			stats.Skipped++
			continue
		}
		table.Schema.Zoned = table.Schema.Zoned || zoned
		table.Rows = append(table.Rows, tx)
	}
	stats.Rows = len(table.Rows)
	return table, stats
}

func DecodeItems(header []string, records [][]string) (ItemTable, DecodeStats) {
	d := NewDecoder(header)
	table := ItemTable{Schema: d.ItemSchema(), Rows: make([]Item, 0, len(records))}
	var stats DecodeStats
	for _, rec := range records {
		it, zoned, err := d.Item(rec)
		if err != nil {
			stats.Skipped++
			continue
		}
		table.Schema.Zoned = table.Schema.Zoned || zoned
		table.Rows = append(table.Rows, it)
	}
	stats.Rows = len(table.Rows)
	return table, stats
}
