package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"spendbook/internal/core"
	applog "spendbook/internal/log"
)

// repairNamespace seeds the deterministic ids given to stored records that
// lack a usable one, so a record keeps its id across loads until saved.
var repairNamespace = uuid.MustParse("6f1c2a8e-3b7d-4e59-9a04-d2b8f1e6c350")

// ExpenseRepository reads and writes a user's whole expense set.
type ExpenseRepository struct {
	kv     KV
	logger *applog.Logger
}

func NewExpenseRepository(kv KV, logger *applog.Logger) *ExpenseRepository {
	return &ExpenseRepository{kv: kv, logger: logger.WithComponent(applog.ComponentStorage)}
}

// storedExpense mirrors core.Expense but tolerates numeric and missing ids.
type storedExpense struct {
	ID       json.RawMessage `json:"id"`
	Title    string          `json:"title"`
	Amount   core.Money      `json:"amount"`
	Date     core.Date       `json:"date"`
	Category string          `json:"category"`
}

// Load returns the user's expenses in stored order. A user with nothing stored
// has an empty set. Records that cannot be decoded or fail validation are
// skipped; records with a missing or duplicate id get a generated one.
func (r *ExpenseRepository) Load(ctx context.Context, username string) ([]core.Expense, error) {
	key := KeyExpenses(username)
	raw, err := r.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return []core.Expense{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return []core.Expense{}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode expenses for %q: %w", username, err)
	}

	out := make([]core.Expense, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		var rec storedExpense
		if err := json.Unmarshal(item, &rec); err != nil {
			r.skip(ctx, username, i, err)
			continue
		}
		id := recordID(rec.ID)
		if _, dup := seen[id]; id == "" || dup {
			id = uuid.NewSHA1(repairNamespace, []byte(fmt.Sprintf("%s/%d/%s", username, i, item))).String()
			r.logger.WarnContext(ctx, "Assigned id to stored expense",
				applog.FieldUsername, username, "index", i, applog.FieldExpenseID, id)
		}
		e := core.Expense{ID: id, Title: rec.Title, Amount: rec.Amount, Date: rec.Date, Category: rec.Category}
		if err := e.Validate(); err != nil {
			r.skip(ctx, username, i, err)
			continue
		}
		seen[id] = struct{}{}
		out = append(out, e)
	}
	return out, nil
}

// Save replaces the user's stored set.
func (r *ExpenseRepository) Save(ctx context.Context, username string, expenses []core.Expense) error {
	if expenses == nil {
		expenses = []core.Expense{}
	}
	b, err := json.Marshal(expenses)
	if err != nil {
		return fmt.Errorf("encode expenses: %w", err)
	}
	if err := r.kv.Put(ctx, KeyExpenses(username), b); err != nil {
		return fmt.Errorf("save expenses: %w", err)
	}
	return nil
}

func (r *ExpenseRepository) skip(ctx context.Context, username string, index int, err error) {
	r.logger.WarnContext(ctx, "Skipping malformed stored expense",
		applog.FieldUsername, username, "index", index, applog.FieldError, err.Error())
}

// recordID accepts string ids and the numeric timestamp ids of older data.
func recordID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
