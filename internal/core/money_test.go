package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"12.34", 1234, false},
		{"12,34", 1234, false},
		{"12.345", 1235, false},
		{"12.344", 1234, false},
		{"0", 0, false},
		{"0.01", 1, false},
		{".5", 50, false},
		{"7", 700, false},
		{"", 0, true},
		{"-1", 0, true},
		{"+1", 0, true},
		{"1.2.3", 0, true},
		{"abc", 0, true},
		{"1e3", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%q: got %d want %d", tc.in, got, tc.want)
		}
	}
}

func TestCentsFromFloat(t *testing.T) {
	cases := []struct {
		in   float64
		want int64
	}{
		{12.5, 1250},
		{0.1 + 0.2, 30},
		{19.999, 2000},
		{0, 0},
	}
	for _, tc := range cases {
		got, err := CentsFromFloat(tc.in)
		if err != nil {
			t.Fatalf("%v: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("%v: got %d want %d", tc.in, got, tc.want)
		}
	}
	if _, err := CentsFromFloat(-0.5); err == nil {
		t.Fatalf("expected error for negative")
	}
}

func TestMoneyFormatting(t *testing.T) {
	cases := []struct {
		cents          int64
		decimal, fixed string
		str            string
	}{
		{1250, "12.5", "12.50", "₹12.50"},
		{10000, "100", "100.00", "₹100.00"},
		{5, "0.05", "0.05", "₹0.05"},
		{0, "0", "0.00", "₹0.00"},
		{-150, "-1.5", "-1.50", "-₹1.50"},
	}
	for _, tc := range cases {
		m := Money{Cents: tc.cents}
		if got := m.Decimal(); got != tc.decimal {
			t.Errorf("%d Decimal: got %q want %q", tc.cents, got, tc.decimal)
		}
		if got := m.Fixed(); got != tc.fixed {
			t.Errorf("%d Fixed: got %q want %q", tc.cents, got, tc.fixed)
		}
		if got := m.String(); got != tc.str {
			t.Errorf("%d String: got %q want %q", tc.cents, got, tc.str)
		}
	}
}
