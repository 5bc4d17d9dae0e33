// Package dataset holds the two base tables of the dashboard, transactions
// and their line items, together with the explicit column schema each table
// carries. Tables are values: every transformation builds a new row slice and
// leaves its input untouched.
package dataset

import (
	"math/bits"
	"strings"
)

// Column identifies one optional source column. A Schema is a set of them.
type Column uint32

const (
	ColInteractionID Column = 1 << iota
	ColTransactionDate
	ColTxnMonth
	ColTxnWeekday
	ColTxnHour
	ColTimeSegment
	ColGenderRaw
	ColGender
	ColAge
	ColAgeBucket
	ColPaymentMethod
	ColBasketTotal
	ColCategory
	ColBrand
	ColProduct
	ColSKU
	ColUnitPrice
	ColQuantity
	ColTotalPrice
	ColRoundPrice

	colSentinel
)

// Source column names as they appear in the twba_* tables and their CSV
// exports.
var columnNames = map[Column]string{
	ColInteractionID:   "InteractionID",
	ColTransactionDate: "TransactionDate",
	ColTxnMonth:        "txn_month",
	ColTxnWeekday:      "txn_weekday",
	ColTxnHour:         "txn_hour",
	ColTimeSegment:     "timeofday_segment",
	ColGenderRaw:       "Gender",
	ColGender:          "gender_clean",
	ColAge:             "Age",
	ColAgeBucket:       "age_bucket",
	ColPaymentMethod:   "payment_method",
	ColBasketTotal:     "basket_total",
	ColCategory:        "category",
	ColBrand:           "brandName",
	ColProduct:         "productName",
	ColSKU:             "sku",
	ColUnitPrice:       "unitPrice",
	ColQuantity:        "quantity",
	ColTotalPrice:      "totalPrice",
	ColRoundPrice:      "round_price_flag",
}

var columnsByName = func() map[string]Column {
	m := make(map[string]Column, len(columnNames))
	for c, name := range columnNames {
		m[strings.ToLower(name)] = c
	}
	return m
}()

func (c Column) String() string {
	if name, ok := columnNames[c]; ok {
		return name
	}
	return "unknown"
}

// ColumnByName resolves a source header to a Column, ignoring case.
func ColumnByName(name string) (Column, bool) {
	c, ok := columnsByName[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// Schema records which columns a table actually carries and whether its
// timestamps were loaded with timezone information.
type Schema struct {
	Columns Column `json:"columns"`
	Zoned   bool   `json:"zoned"`
}

func NewSchema(cols ...Column) Schema {
	var s Schema
	for _, c := range cols {
		s.Columns |= c
	}
	return s
}

// Has reports whether every given column is present.
func (s Schema) Has(cols ...Column) bool {
	for _, c := range cols {
		if s.Columns&c == 0 {
			return false
		}
	}
	return true
}

func (s Schema) With(cols ...Column) Schema {
	for _, c := range cols {
		s.Columns |= c
	}
	return s
}

// Missing lists the source names of the given columns absent from s.
func (s Schema) Missing(cols ...Column) []string {
	var out []string
	for _, c := range cols {
		if s.Columns&c == 0 {
			out = append(out, c.String())
		}
	}
	return out
}

// Names lists the present columns in declaration order.
func (s Schema) Names() []string {
	out := make([]string, 0, bits.OnesCount32(uint32(s.Columns)))
	for c := Column(1); c < colSentinel; c <<= 1 {
		if s.Columns&c != 0 {
			out = append(out, c.String())
		}
	}
	return out
}
