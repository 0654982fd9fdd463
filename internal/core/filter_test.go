package core

import (
	"fmt"
	"net/url"
	"slices"
	"testing"
)

func sample() []Expense {
	return []Expense{
		{ID: "1", Title: "Groceries", Amount: Whole(50), Date: NewDate(2024, 1, 1), Category: CategoryFood},
		{ID: "2", Title: "Train", Amount: Whole(150), Date: NewDate(2024, 2, 1), Category: CategoryTravel},
		{ID: "3", Title: "Dinner", Amount: Whole(500), Date: NewDate(2024, 3, 1), Category: CategoryFood},
		{ID: "4", Title: "Shoes", Amount: Money{Cents: 120050}, Date: NewDate(2024, 3, 15), Category: CategoryShopping},
		{ID: "5", Title: "Cinema", Amount: Whole(100), Date: NewDate(2024, 4, 2), Category: CategoryEntertainment},
		{ID: "6", Title: "Misc", Amount: Whole(1000), Date: NewDate(2024, 4, 30), Category: ""},
	}
}

func ids(es []Expense) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return out
}

func TestApplyCategoryExample(t *testing.T) {
	in := sample()[:3]
	res := Apply(in, Filter{Categories: []string{CategoryFood}})
	if got := ids(res.Expenses); !slices.Equal(got, []string{"1", "3"}) {
		t.Fatalf("got %v", got)
	}
	if res.Total != Whole(550) {
		t.Fatalf("total: got %v", res.Total)
	}
	if res.Count != 2 {
		t.Fatalf("count: got %d", res.Count)
	}
}

func TestApplyEmptyFilterIsIdentity(t *testing.T) {
	in := sample()
	res := Apply(in, Filter{})
	if len(res.Expenses) != len(in) || &res.Expenses[0] != &in[0] {
		t.Fatalf("expected the input slice itself")
	}
	if res.Count != len(in) {
		t.Fatalf("count: got %d", res.Count)
	}
	if res.Total != Sum(in) {
		t.Fatalf("total: got %v", res.Total)
	}
}

func TestApplyEmptyInput(t *testing.T) {
	res := Apply(nil, Filter{Categories: []string{CategoryFood}})
	if len(res.Expenses) != 0 || res.Count != 0 || res.Total.Cents != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	res = Apply(sample(), Filter{Categories: []string{"Nope"}})
	if res.Expenses == nil || len(res.Expenses) != 0 {
		t.Fatalf("expected empty non-nil result, got %+v", res.Expenses)
	}
}

func TestApplyCategoryMembership(t *testing.T) {
	in := sample()
	sel := []string{CategoryFood, CategoryShopping}
	res := Apply(in, Filter{Categories: sel})
	for _, e := range res.Expenses {
		if !slices.Contains(sel, e.Category) {
			t.Errorf("unexpected category %q", e.Category)
		}
	}
	want := 0
	for _, e := range in {
		if slices.Contains(sel, e.Category) {
			want++
		}
	}
	if res.Count != want {
		t.Fatalf("count: got %d want %d", res.Count, want)
	}
}

func TestApplyAmountRanges(t *testing.T) {
	cases := []struct {
		ranges []string
		want   []string
	}{
		{[]string{"0-100"}, []string{"1", "5"}},
		{[]string{"100-500"}, []string{"2", "3", "5"}},
		{[]string{"500-1000"}, []string{"3", "6"}},
		{[]string{"1000+"}, []string{"4", "6"}},
		{[]string{"0-100", "1000+"}, []string{"1", "4", "5", "6"}},
		{[]string{"bogus"}, []string{"1", "2", "3", "4", "5", "6"}},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.ranges), func(t *testing.T) {
			res := Apply(sample(), Filter{Ranges: tc.ranges})
			if got := ids(res.Expenses); !slices.Equal(got, tc.want) {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestApplyDateBoundsInclusive(t *testing.T) {
	in := sample()
	cases := []struct {
		name string
		f    Filter
		want []string
	}{
		{"both", Filter{From: NewDate(2024, 2, 1), To: NewDate(2024, 3, 15)}, []string{"2", "3", "4"}},
		{"from only", Filter{From: NewDate(2024, 4, 2)}, []string{"5", "6"}},
		{"to only", Filter{To: NewDate(2024, 1, 1)}, []string{"1"}},
		{"inverted", Filter{From: NewDate(2024, 5, 1), To: NewDate(2024, 1, 1)}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Apply(in, tc.f)
			if got := ids(res.Expenses); !slices.Equal(got, tc.want) {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestApplyCombinesDimensions(t *testing.T) {
	f := Filter{
		Categories: []string{CategoryFood, CategoryTravel},
		Ranges:     []string{"100-500"},
		From:       NewDate(2024, 1, 15),
	}
	res := Apply(sample(), f)
	if got := ids(res.Expenses); !slices.Equal(got, []string{"2", "3"}) {
		t.Fatalf("got %v", got)
	}
	if res.Total != Whole(650) || res.Count != 2 {
		t.Fatalf("aggregates: %+v", res)
	}
}

func TestApplyDoesNotModifyInput(t *testing.T) {
	in := sample()
	before := slices.Clone(in)
	Apply(in, Filter{Categories: []string{CategoryTravel}, Ranges: []string{"1000+"}})
	if !slices.Equal(ids(in), ids(before)) {
		t.Fatalf("input modified")
	}
}

func TestParseFilter(t *testing.T) {
	q := url.Values{
		"category": {"Food", " Travel ", "Food", ""},
		"range":    {"0-100", "oops", "1000+"},
		"from":     {"2024-01-01"},
		"to":       {"not-a-date"},
	}
	f := ParseFilter(q)
	if !slices.Equal(f.Categories, []string{"Food", "Travel"}) {
		t.Errorf("categories: %v", f.Categories)
	}
	if !slices.Equal(f.Ranges, []string{"0-100", "1000+"}) {
		t.Errorf("ranges: %v", f.Ranges)
	}
	if f.From.String() != "2024-01-01" {
		t.Errorf("from: %v", f.From)
	}
	if !f.To.IsZero() {
		t.Errorf("to should be dropped, got %v", f.To)
	}

	back := ParseFilter(f.Values())
	if !back.Equal(f) {
		t.Errorf("values round trip: %+v vs %+v", back, f)
	}
	if !ParseFilter(url.Values{}).IsZero() {
		t.Errorf("empty query should be the zero filter")
	}
}

func TestCategoriesFirstSeen(t *testing.T) {
	got := Categories(sample())
	want := []string{CategoryFood, CategoryTravel, CategoryShopping, CategoryEntertainment, ""}
	if !slices.Equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestSummarize(t *testing.T) {
	got := Summarize(sample()[:3])
	if len(got) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got[0].Name != CategoryFood || got[0].Amount != Whole(550) || got[0].Color != "#84cc16" {
		t.Errorf("food slice: %+v", got[0])
	}
	if got[1].Name != CategoryTravel || got[1].Amount != Whole(150) {
		t.Errorf("travel slice: %+v", got[1])
	}
	if p := got[0].Percent + got[1].Percent; p < 99.99 || p > 100.01 {
		t.Errorf("percent sum: %v", p)
	}

	blank := Summarize([]Expense{{Category: ""}, {Category: "Books", Amount: Whole(1)}})
	if blank[0].Name != CategoryOther || blank[0].Percent != 0 {
		t.Errorf("blank category: %+v", blank[0])
	}
	if blank[1].Color != CategoryColor(CategoryOther) {
		t.Errorf("unknown category colour: %+v", blank[1])
	}
	if Summarize(nil) != nil {
		t.Errorf("expected nil for empty input")
	}
}

func TestCategoryColor(t *testing.T) {
	cases := map[string]string{
		CategoryFood:          "#84cc16",
		CategoryTravel:        "#22d3ee",
		CategoryShopping:      "#ec4899",
		CategoryEntertainment: "#8b5cf6",
		CategoryOther:         "#6b7280",
		"":                    "#6b7280",
		"Gadgets":             "#6b7280",
	}
	for in, want := range cases {
		if got := CategoryColor(in); got != want {
			t.Errorf("%q: got %s want %s", in, got, want)
		}
	}
}
