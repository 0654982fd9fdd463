package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Conventional categories offered by the expense form.
const (
	CategoryFood          = "Food"
	CategoryTravel        = "Travel"
	CategoryShopping      = "Shopping"
	CategoryEntertainment = "Entertainment"
	CategoryOther         = "Other"
)

// DateLayout is the wire and storage format of expense dates.
const DateLayout = "2006-01-02"

const maxTitleLength = 200

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Expense struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		Amount   Money  `json:"amount"`
		Date     Date   `json:"date"`
		Category string `json:"category"`
	}

	// NewExpense carries the user-editable fields of an expense.
	NewExpense struct {
		Title    string
		Amount   Money
		Date     Date
		Category string
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyTitle    = errors.New("empty title")
	ErrTitleTooLong  = fmt.Errorf("title too long (max %d characters)", maxTitleLength)
	ErrEmptyID       = errors.New("empty id")
	ErrZeroDate      = errors.New("date cannot be zero")
)

// DefaultCategories returns the categories offered by the expense form.
func DefaultCategories() []string {
	return []string{CategoryFood, CategoryTravel, CategoryShopping, CategoryEntertainment, CategoryOther}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// String returns the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	// Older records carry a full ISO timestamp; keep the calendar day.
	if len(s) > len(DateLayout) {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			*d = NewDate(t.Year(), int(t.Month()), t.Day())
			return nil
		}
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// MarshalJSON encodes the amount as a plain JSON number (12.5, 100).
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		cents, err := ParseDecimalToCents(s)
		if err != nil {
			return err
		}
		m.Cents = cents
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a number: %w", err)
	}
	cents, err := numberToCents(n)
	if err != nil {
		return err
	}
	m.Cents = cents
	return nil
}

// numberToCents rounds on the decimal text so 1.005 and "1.005" agree.
// Exponent forms have no exact decimal text and go through float64.
func numberToCents(n json.Number) (int64, error) {
	s := n.String()
	if strings.ContainsAny(s, "eE") {
		f, err := n.Float64()
		if err != nil {
			return 0, ErrInvalidAmount
		}
		return CentsFromFloat(f)
	}
	return ParseDecimalToCents(s)
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return ErrEmptyID
	}
	return e.Fields().Validate()
}

// Fields returns the editable part of the expense.
func (e Expense) Fields() NewExpense {
	return NewExpense{Title: e.Title, Amount: e.Amount, Date: e.Date, Category: e.Category}
}

func (n NewExpense) Validate() error {
	if len(strings.TrimSpace(n.Title)) == 0 {
		return ErrEmptyTitle
	}
	if utf8.RuneCountInString(n.Title) > maxTitleLength {
		return ErrTitleTooLong
	}
	if err := n.Amount.Validate(); err != nil {
		return err
	}
	if err := n.Date.Validate(); err != nil {
		return err
	}
	return nil
}

// WithID builds a stored expense from the editable fields.
func (n NewExpense) WithID(id string) Expense {
	return Expense{
		ID:       id,
		Title:    strings.TrimSpace(n.Title),
		Amount:   n.Amount,
		Date:     n.Date,
		Category: strings.TrimSpace(n.Category),
	}
}

// DisplayCategory maps a blank category to Other. Stored values are left untouched.
func DisplayCategory(category string) string {
	if strings.TrimSpace(category) == "" {
		return CategoryOther
	}
	return category
}
