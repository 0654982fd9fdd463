package memory

import (
	"context"
	"slices"
	"sync"

	"spendbook/internal/core"
	"spendbook/internal/sheets"
)

var _ sheets.ExpenseMirror = (*Mirror)(nil)

// Mirror records the last set written for each user.
type Mirror struct {
	mu     sync.Mutex
	tabs   map[string][]core.Expense
	writes int
}

func New() *Mirror {
	return &Mirror{tabs: make(map[string][]core.Expense)}
}

func (m *Mirror) ReplaceUserExpenses(_ context.Context, username string, expenses []core.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tabs[username] = slices.Clone(expenses)
	m.writes++
	return nil
}

// Expenses returns a copy of the user's mirrored set.
func (m *Mirror) Expenses(username string) ([]core.Expense, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list, ok := m.tabs[username]
	return slices.Clone(list), ok
}

// Rows renders the user's tab the way the spreadsheet would show it.
func (m *Mirror) Rows(username string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	list, ok := m.tabs[username]
	if !ok {
		return nil
	}
	rows := [][]string{sheets.Header}
	for _, e := range list {
		rows = append(rows, sheets.Row(e))
	}
	return rows
}

// Writes counts ReplaceUserExpenses calls.
func (m *Mirror) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
