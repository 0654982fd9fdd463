package google

import (
	"context"
	"testing"

	"spendbook/internal/core"
)

func TestQuoteTab(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"expenses_ann", "'expenses_ann'"},
		{"expenses_o'neil", "'expenses_o''neil'"},
		{"with space", "'with space'"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := quoteTab(tt.in); got != tt.want {
				t.Errorf("quoteTab(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildValues(t *testing.T) {
	values := buildValues([]core.Expense{
		{ID: "a", Title: "Lunch", Amount: core.Money{Cents: 1250}, Date: core.NewDate(2024, 1, 2), Category: "Food"},
		{ID: "b", Title: "Misc", Amount: core.Money{Cents: 100}, Date: core.NewDate(2024, 1, 3)},
	})
	if len(values) != 3 {
		t.Fatalf("rows = %d, want 3", len(values))
	}
	if values[0][0] != "ID" || values[0][4] != "Category" {
		t.Errorf("header = %v", values[0])
	}
	if values[1][2] != "12.50" || values[1][3] != "2024-01-02" {
		t.Errorf("row = %v", values[1])
	}
	if values[2][4] != "Other" {
		t.Errorf("blank category should mirror as Other, got %v", values[2][4])
	}

	if empty := buildValues(nil); len(empty) != 1 {
		t.Errorf("empty set should still write the header, got %v", empty)
	}
}

func TestNewRequiresConfig(t *testing.T) {
	if _, err := New(context.Background(), Config{}, nil); err == nil {
		t.Error("expected error without spreadsheet id")
	}
	if _, err := New(context.Background(), Config{SpreadsheetID: "x"}, nil); err == nil {
		t.Error("expected error without credentials")
	}
}

func TestTabName(t *testing.T) {
	m := &Mirror{prefix: "expenses_"}
	if got := m.TabName("ann"); got != "expenses_ann" {
		t.Errorf("TabName = %q", got)
	}
}
