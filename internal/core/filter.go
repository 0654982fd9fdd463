package core

import (
	"net/url"
	"slices"
	"strings"
)

// AmountRange is one of the predefined amount buckets offered by the filter.
// Both bounds are inclusive; an Unbounded range has no upper limit.
type AmountRange struct {
	ID        string
	Label     string
	From      Money
	To        Money
	Unbounded bool
}

// Contains reports whether the amount lies within the range bounds.
func (r AmountRange) Contains(m Money) bool {
	if m.Cents < r.From.Cents {
		return false
	}
	return r.Unbounded || m.Cents <= r.To.Cents
}

var predefinedRanges = []AmountRange{
	{ID: "0-100", Label: "₹0 - ₹100", From: Whole(0), To: Whole(100)},
	{ID: "100-500", Label: "₹100 - ₹500", From: Whole(100), To: Whole(500)},
	{ID: "500-1000", Label: "₹500 - ₹1000", From: Whole(500), To: Whole(1000)},
	{ID: "1000+", Label: "₹1000+", From: Whole(1000), Unbounded: true},
}

// PredefinedRanges returns the fixed amount buckets in ascending order.
func PredefinedRanges() []AmountRange {
	return slices.Clone(predefinedRanges)
}

// RangeByID looks up a predefined range.
func RangeByID(id string) (AmountRange, bool) {
	for _, r := range predefinedRanges {
		if r.ID == id {
			return r, true
		}
	}
	return AmountRange{}, false
}

// Filter is the user's current selection. Dimensions are combined with AND,
// values inside a dimension with OR. A zero-valued dimension is inactive.
type Filter struct {
	Categories []string
	Ranges     []string
	From       Date
	To         Date
}

// IsZero reports whether no filter dimension is active.
func (f Filter) IsZero() bool {
	return len(f.Categories) == 0 && len(f.Ranges) == 0 && f.From.IsZero() && f.To.IsZero()
}

// Equal compares two selections ignoring the order of multi-valued dimensions.
func (f Filter) Equal(o Filter) bool {
	return sameSet(f.Categories, o.Categories) &&
		sameSet(f.Ranges, o.Ranges) &&
		f.From.Equal(o.From.Time) &&
		f.To.Equal(o.To.Time)
}

// Values encodes the filter as query parameters, the inverse of ParseFilter.
func (f Filter) Values() url.Values {
	v := url.Values{}
	for _, c := range f.Categories {
		v.Add("category", c)
	}
	for _, r := range f.Ranges {
		v.Add("range", r)
	}
	if !f.From.IsZero() {
		v.Set("from", f.From.String())
	}
	if !f.To.IsZero() {
		v.Set("to", f.To.String())
	}
	return v
}

// HasCategory reports whether the category is selected.
func (f Filter) HasCategory(c string) bool {
	return slices.Contains(f.Categories, c)
}

// HasRange reports whether the range id is selected.
func (f Filter) HasRange(id string) bool {
	return slices.Contains(f.Ranges, id)
}

// ParseFilter reads category, range, from and to query parameters.
// Unparseable dates and unknown range ids are dropped.
func ParseFilter(q url.Values) Filter {
	var f Filter
	for _, c := range q["category"] {
		c = strings.TrimSpace(c)
		if c != "" && !slices.Contains(f.Categories, c) {
			f.Categories = append(f.Categories, c)
		}
	}
	for _, id := range q["range"] {
		id = strings.TrimSpace(id)
		if _, ok := RangeByID(id); ok && !slices.Contains(f.Ranges, id) {
			f.Ranges = append(f.Ranges, id)
		}
	}
	if d, err := ParseDate(q.Get("from")); err == nil {
		f.From = d
	}
	if d, err := ParseDate(q.Get("to")); err == nil {
		f.To = d
	}
	return f
}

// Result is the filtered subset with its aggregates.
type Result struct {
	Expenses []Expense
	Total    Money
	Count    int
}

// Apply returns the expenses matching every active dimension of the filter,
// preserving input order. An inactive filter returns the input slice itself.
// Apply never modifies its input and is safe for concurrent use.
func Apply(expenses []Expense, f Filter) Result {
	if f.IsZero() {
		return Result{Expenses: expenses, Total: Sum(expenses), Count: len(expenses)}
	}

	ranges := make([]AmountRange, 0, len(f.Ranges))
	for _, id := range f.Ranges {
		if r, ok := RangeByID(id); ok {
			ranges = append(ranges, r)
		}
	}
	// Every selected id was unknown: the dimension is inactive.
	rangeActive := len(ranges) > 0

	out := make([]Expense, 0, len(expenses))
	var total int64
	for _, e := range expenses {
		if len(f.Categories) > 0 && !slices.Contains(f.Categories, e.Category) {
			continue
		}
		if !f.From.IsZero() && e.Date.Before(f.From.Time) {
			continue
		}
		if !f.To.IsZero() && e.Date.After(f.To.Time) {
			continue
		}
		if rangeActive && !inAnyRange(e.Amount, ranges) {
			continue
		}
		out = append(out, e)
		total += e.Amount.Cents
	}
	return Result{Expenses: out, Total: Money{Cents: total}, Count: len(out)}
}

// Sum adds up the amounts of the expenses.
func Sum(expenses []Expense) Money {
	var total int64
	for _, e := range expenses {
		total += e.Amount.Cents
	}
	return Money{Cents: total}
}

// Categories returns the distinct categories in first-seen order.
func Categories(expenses []Expense) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range expenses {
		if _, ok := seen[e.Category]; ok {
			continue
		}
		seen[e.Category] = struct{}{}
		out = append(out, e.Category)
	}
	return out
}

func inAnyRange(m Money, ranges []AmountRange) bool {
	for _, r := range ranges {
		if r.Contains(m) {
			return true
		}
	}
	return false
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for _, v := range a {
		if !slices.Contains(b, v) {
			return false
		}
	}
	return true
}
