package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"spendbook/internal/core"
)

func newParser(t *testing.T, body string) *RequestBodyParser {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(body))
	p := NewRequestBodyParser(req)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return p
}

func TestRequestBodyParser(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantJSON bool
		key      string
		want     string
	}{
		{"form", "title=Lunch&amount=12.50", false, "title", "Lunch"},
		{"form trims", "title=+Lunch+", false, "title", "Lunch"},
		{"json string", `{"title":"Taxi"}`, true, "title", "Taxi"},
		{"json number", `{"amount":8.5}`, true, "amount", "8.5"},
		{"json number keeps decimal text", `{"amount":1.005}`, true, "amount", "1.005"},
		{"json missing key", `{"title":"Taxi"}`, true, "amount", ""},
		{"empty body", "", false, "title", ""},
		{"control characters stripped", "title=a%00b", false, "title", "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newParser(t, tt.body)
			if p.IsJSON() != tt.wantJSON {
				t.Errorf("IsJSON() = %v, want %v", p.IsJSON(), tt.wantJSON)
			}
			if got := p.Get(tt.key); got != tt.want {
				t.Errorf("Get(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestRequestBodyParser_Malformed(t *testing.T) {
	for _, body := range []string{`{"title":`, "title=%zz"} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		p := NewRequestBodyParser(req)
		err := p.Parse()
		if !errors.Is(err, errMalformedBody) {
			t.Errorf("Parse(%q) error = %v, want errMalformedBody", body, err)
		}
		if errorStatus(err) != http.StatusBadRequest {
			t.Errorf("Parse(%q) maps to %d, want 400", body, errorStatus(err))
		}
		// A second call returns the same error without re-reading.
		if err2 := p.Parse(); err2 != err {
			t.Errorf("second Parse() = %v, want %v", err2, err)
		}
	}
}

func TestParseExpenseInput(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantErr   error
		wantCents int64
		wantDate  string
	}{
		{"valid form", "title=Lunch&amount=12.5&date=2024-05-01&category=Food", nil, 1250, "2024-05-01"},
		{"valid json", `{"title":"Taxi","amount":"7","date":"2024-05-02"}`, nil, 700, "2024-05-02"},
		{"missing amount", "title=x&date=2024-05-01", core.ErrInvalidAmount, 0, ""},
		{"garbage amount", "title=x&amount=ten&date=2024-05-01", core.ErrInvalidAmount, 0, ""},
		{"missing date", "title=x&amount=1", core.ErrZeroDate, 0, ""},
		{"bad date", "title=x&amount=1&date=2024-13-45", errInvalidDate, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := ParseExpenseInput(newParser(t, tt.body))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				if errorStatus(err) != http.StatusUnprocessableEntity {
					t.Errorf("status = %d, want 422", errorStatus(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if in.Amount.Cents != tt.wantCents {
				t.Errorf("cents = %d, want %d", in.Amount.Cents, tt.wantCents)
			}
			if in.Date.String() != tt.wantDate {
				t.Errorf("date = %s, want %s", in.Date, tt.wantDate)
			}
		})
	}
}

func TestParseFormOrFail(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("email=a%40b.c"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if resp := ParseFormOrFail(req); resp != nil {
		t.Fatal("valid form rejected")
	}
	if got := req.FormValue("email"); got != "a@b.c" {
		t.Errorf("email = %q", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("email=%zz"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := ParseFormOrFail(req)
	if resp == nil {
		t.Fatal("malformed form accepted")
	}
	w := httptest.NewRecorder()
	resp.Write(w)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
