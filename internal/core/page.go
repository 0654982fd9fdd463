package core

import (
	"net/url"
	"slices"
	"strconv"
)

// DefaultPageSize is used when no valid page size is requested.
const DefaultPageSize = 5

const (
	windowRange = 3
	windowSide  = 1
)

// Page is one slice of a paginated list.
type Page struct {
	Items      []Expense
	Page       int
	PageSize   int
	TotalPages int
	TotalCount int
}

// HasPrev reports whether a previous page exists.
func (p Page) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a following page exists.
func (p Page) HasNext() bool { return p.Page < p.TotalPages }

// Paginate returns the requested page of items. Out-of-range page numbers are
// clamped into [1, TotalPages] and a non-positive size falls back to
// DefaultPageSize. An empty list has exactly one empty page.
func Paginate(items []Expense, page, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(items)
	pages := (total + size - 1) / size
	if pages < 1 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}
	start := (page - 1) * size
	end := min(start+size, total)
	return Page{
		Items:      items[start:end],
		Page:       page,
		PageSize:   size,
		TotalPages: pages,
		TotalCount: total,
	}
}

// PageWindow returns the page buttons to render for the current page. The first
// and last pages are always present, a window of up to three pages sits around
// the current one and 0 marks an ellipsis.
//
// Examples (current/total):
//
//	3/5   -> 1 2 3 4 5
//	1/10  -> 1 2 3 4 0 10
//	5/10  -> 1 0 4 5 6 0 10
//	10/10 -> 1 0 9 10
func PageWindow(current, total int) []int {
	if total < 1 {
		return []int{1}
	}
	if total <= windowRange+2*windowSide {
		out := make([]int, total)
		for i := range out {
			out[i] = i + 1
		}
		return out
	}

	start := max(2, current-windowRange/2)
	end := min(total-1, start+windowRange-1)

	out := []int{1}
	if start > 2 {
		out = append(out, 0)
	}
	for p := start; p <= end; p++ {
		out = append(out, p)
	}
	if end < total-1 {
		out = append(out, 0)
	}
	return append(out, total)
}

// PageSizeOptions returns the page sizes worth offering for a list of n items.
func PageSizeOptions(n int) []int {
	opts := []int{5}
	steps := []struct{ threshold, size int }{
		{5, 10}, {15, 20}, {25, 30}, {40, 50}, {60, 100},
	}
	for _, s := range steps {
		if n > s.threshold {
			opts = append(opts, s.size)
		}
	}
	return opts
}

// IncludePageSize adds the current size to opts, keeping them ascending, so the
// size selector can always show what is in use.
func IncludePageSize(opts []int, size int) []int {
	if size <= 0 {
		return opts
	}
	i, found := slices.BinarySearch(opts, size)
	if found {
		return opts
	}
	return slices.Insert(slices.Clone(opts), i, size)
}

// Query is the full list state carried in the URL.
type Query struct {
	Filter   Filter
	Page     int
	PageSize int
}

// ParseQuery reads the filter plus page and size parameters.
func ParseQuery(q url.Values) Query {
	out := Query{Filter: ParseFilter(q), Page: 1, PageSize: DefaultPageSize}
	if n, err := strconv.Atoi(q.Get("page")); err == nil {
		out.Page = n
	}
	if n, err := strconv.Atoi(q.Get("size")); err == nil && n > 0 {
		out.PageSize = n
	}
	return out
}

// Normalize resets the page to 1 when the filter or page size differs from the
// previous query. Page numbers are otherwise left for Paginate to clamp.
func (q Query) Normalize(prev Query) Query {
	if !q.Filter.Equal(prev.Filter) || q.PageSize != prev.PageSize {
		q.Page = 1
	}
	return q
}

// Values encodes the query as URL parameters.
func (q Query) Values() url.Values {
	v := q.Filter.Values()
	if q.Page > 1 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 && q.PageSize != DefaultPageSize {
		v.Set("size", strconv.Itoa(q.PageSize))
	}
	return v
}

// WithPage returns a copy of the query pointing at page p.
func (q Query) WithPage(p int) Query {
	q.Page = p
	return q
}
