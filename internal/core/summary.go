package core

import "strings"

var categoryColors = map[string]string{
	CategoryFood:          "#84cc16",
	CategoryTravel:        "#22d3ee",
	CategoryShopping:      "#ec4899",
	CategoryEntertainment: "#8b5cf6",
	CategoryOther:         "#6b7280",
}

// CategoryColor returns the chart colour of a category. Unknown and blank
// categories share the Other colour.
func CategoryColor(category string) string {
	if c, ok := categoryColors[strings.TrimSpace(category)]; ok {
		return c
	}
	return categoryColors[CategoryOther]
}

// CategoryAmount is one slice of the per-category chart.
type CategoryAmount struct {
	Name    string  `json:"name"`
	Amount  Money   `json:"amount"`
	Color   string  `json:"color"`
	Percent float64 `json:"percent"`
}

// Summarize groups expenses by displayed category, in first-seen order.
func Summarize(expenses []Expense) []CategoryAmount {
	index := make(map[string]int)
	var out []CategoryAmount
	var total int64
	for _, e := range expenses {
		name := DisplayCategory(e.Category)
		i, ok := index[name]
		if !ok {
			i = len(out)
			index[name] = i
			out = append(out, CategoryAmount{Name: name, Color: CategoryColor(name)})
		}
		out[i].Amount.Cents += e.Amount.Cents
		total += e.Amount.Cents
	}
	if total > 0 {
		for i := range out {
			out[i].Percent = float64(out[i].Amount.Cents) * 100 / float64(total)
		}
	}
	return out
}
