package filter

import (
	"net/url"
	"slices"
	"strings"
)

// Criteria is the filter selection shared by every chart. A zero Criteria
// selects everything (outlier removal aside).
type Criteria struct {
	DateRange      *DateRange `json:"date_range,omitempty"`
	Genders        []string   `json:"genders,omitempty"`
	AgeBuckets     []string   `json:"age_buckets,omitempty"`
	PaymentMethods []string   `json:"payment_methods,omitempty"`
	MonthYears     []string   `json:"month_years,omitempty"`
	WeekdayWeekend string     `json:"weekday_weekend,omitempty"`
	Categories     []string   `json:"categories,omitempty"`
}

// DateRange bounds are calendar dates as typed by the user; they are parsed
// when the filter runs so that bad input can be logged and skipped.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Query parameter names understood by ParseCriteria.
const (
	ParamStart    = "start"
	ParamEnd      = "end"
	ParamGender   = "gender"
	ParamAge      = "age"
	ParamPayment  = "payment"
	ParamMonth    = "month"
	ParamDayType  = "daytype"
	ParamCategory = "category"
)

// ParseCriteria reads criteria from query parameters. Multi-valued fields
// accept repeated keys, comma-separated lists, or both.
func ParseCriteria(q url.Values) Criteria {
	c := Criteria{
		Genders:        listParam(q, ParamGender),
		AgeBuckets:     listParam(q, ParamAge),
		PaymentMethods: listParam(q, ParamPayment),
		MonthYears:     listParam(q, ParamMonth),
		WeekdayWeekend: strings.TrimSpace(q.Get(ParamDayType)),
		Categories:     listParam(q, ParamCategory),
	}
	start, end := strings.TrimSpace(q.Get(ParamStart)), strings.TrimSpace(q.Get(ParamEnd))
	if start != "" && end != "" {
		c.DateRange = &DateRange{Start: start, End: end}
	}
	return c
}

// Encode is the inverse of ParseCriteria.
func (c Criteria) Encode() url.Values {
	q := url.Values{}
	if c.DateRange != nil {
		q.Set(ParamStart, c.DateRange.Start)
		q.Set(ParamEnd, c.DateRange.End)
	}
	for key, values := range map[string][]string{
		ParamGender:   c.Genders,
		ParamAge:      c.AgeBuckets,
		ParamPayment:  c.PaymentMethods,
		ParamMonth:    c.MonthYears,
		ParamCategory: c.Categories,
	} {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	if c.WeekdayWeekend != "" {
		q.Set(ParamDayType, c.WeekdayWeekend)
	}
	return q
}

// IsZero reports whether no criterion is set.
func (c Criteria) IsZero() bool {
	return c.DateRange == nil && len(c.Genders) == 0 && len(c.AgeBuckets) == 0 &&
		len(c.PaymentMethods) == 0 && len(c.MonthYears) == 0 && c.WeekdayWeekend == "" &&
		len(c.Categories) == 0
}

// Normalize trims values and drops empties and duplicates, keeping first
// occurrence order.
func (c Criteria) Normalize() Criteria {
	c.Genders = cleanList(c.Genders)
	c.AgeBuckets = cleanList(c.AgeBuckets)
	c.PaymentMethods = cleanList(c.PaymentMethods)
	c.MonthYears = cleanList(c.MonthYears)
	c.Categories = cleanList(c.Categories)
	c.WeekdayWeekend = strings.TrimSpace(c.WeekdayWeekend)
	if c.DateRange != nil {
		dr := DateRange{Start: strings.TrimSpace(c.DateRange.Start), End: strings.TrimSpace(c.DateRange.End)}
		if dr.Start == "" || dr.End == "" {
			c.DateRange = nil
		} else {
			c.DateRange = &dr
		}
	}
	return c
}

func listParam(q url.Values, key string) []string {
	var out []string
	for _, raw := range q[key] {
		out = append(out, strings.Split(raw, ",")...)
	}
	return cleanList(out)
}

func cleanList(values []string) []string {
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || slices.Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}
