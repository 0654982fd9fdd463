package sheets

import (
	"context"

	"spendbook/internal/core"
)

// Ports for outbound adapters.
type (
	// ExpenseMirror keeps an external copy of each user's expense set. The
	// whole set is written every time, matching how expenses are stored.
	ExpenseMirror interface {
		ReplaceUserExpenses(ctx context.Context, username string, expenses []core.Expense) error
	}
)

// Header is the first row of every mirrored tab.
var Header = []string{"ID", "Title", "Amount", "Date", "Category"}

// Row renders one expense in Header order.
func Row(e core.Expense) []string {
	return []string{e.ID, e.Title, e.Amount.Fixed(), e.Date.String(), core.DisplayCategory(e.Category)}
}
