package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"spendbook/internal/amqp"
	"spendbook/internal/core"
	sheetsmem "spendbook/internal/sheets/memory"
	"spendbook/internal/storage"
	"spendbook/internal/storage/memory"
)

func setup(t *testing.T) (*storage.ExpenseRepository, *storage.UserRepository, *sheetsmem.Mirror, *MirrorWorker) {
	t.Helper()
	kv := memory.New()
	expenses := storage.NewExpenseRepository(kv, nil)
	users := storage.NewUserRepository(kv)
	mirror := sheetsmem.New()
	return expenses, users, mirror, NewMirrorWorker(expenses, users, mirror, nil)
}

func TestMirrorWorker_HandleEvent(t *testing.T) {
	expenses, _, mirror, w := setup(t)
	ctx := context.Background()

	stored := []core.Expense{
		{ID: "b", Title: "Taxi", Amount: core.Money{Cents: 800}, Date: core.NewDate(2024, 5, 2), Category: "Travel"},
		{ID: "a", Title: "Lunch", Amount: core.Money{Cents: 1250}, Date: core.NewDate(2024, 5, 1), Category: "Food"},
	}
	if err := expenses.Save(ctx, "ann", stored); err != nil {
		t.Fatal(err)
	}

	if err := w.HandleEvent(ctx, amqp.NewExpenseEvent("ann", amqp.ActionCreated, "b")); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	got, ok := mirror.Expenses("ann")
	if !ok || len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Errorf("mirrored = %+v", got)
	}

	// A delete event mirrors the smaller set.
	if err := expenses.Save(ctx, "ann", stored[1:]); err != nil {
		t.Fatal(err)
	}
	if err := w.HandleEvent(ctx, amqp.NewExpenseEvent("ann", amqp.ActionDeleted, "b")); err != nil {
		t.Fatal(err)
	}
	if got, _ := mirror.Expenses("ann"); len(got) != 1 {
		t.Errorf("after delete = %+v", got)
	}
}

func TestMirrorWorker_Reconcile(t *testing.T) {
	expenses, users, mirror, w := setup(t)
	ctx := context.Background()

	for _, name := range []string{"ann", "bob"} {
		if err := users.Create(ctx, core.User{Name: name, Email: name + "@example.com"}); err != nil {
			t.Fatal(err)
		}
	}
	if err := expenses.Save(ctx, "ann", []core.Expense{
		{ID: "1", Title: "x", Amount: core.Money{Cents: 1}, Date: core.NewDate(2024, 1, 1)},
	}); err != nil {
		t.Fatal(err)
	}

	if err := w.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if got, _ := mirror.Expenses("ann"); len(got) != 1 {
		t.Errorf("ann = %+v", got)
	}
	if got, ok := mirror.Expenses("bob"); !ok || len(got) != 0 {
		t.Errorf("bob should be mirrored as an empty tab, got %v %v", got, ok)
	}
}

type failingMirror struct{ fail string }

func (f failingMirror) ReplaceUserExpenses(_ context.Context, username string, _ []core.Expense) error {
	if username == f.fail {
		return errors.New("quota exceeded")
	}
	return nil
}

func TestMirrorWorker_ReconcileContinuesAfterFailure(t *testing.T) {
	kv := memory.New()
	users := storage.NewUserRepository(kv)
	ctx := context.Background()
	for _, name := range []string{"ann", "bob", "cid"} {
		if err := users.Create(ctx, core.User{Name: name, Email: name + "@example.com"}); err != nil {
			t.Fatal(err)
		}
	}
	w := NewMirrorWorker(storage.NewExpenseRepository(kv, nil), users, failingMirror{fail: "bob"}, nil)

	err := w.Reconcile(ctx)
	if err == nil || !strings.Contains(err.Error(), "1 of 3") {
		t.Errorf("err = %v", err)
	}
}

func TestMirrorWorker_RunReconcileStopsOnCancel(t *testing.T) {
	_, _, _, w := setup(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.RunReconcile(ctx, time.Hour) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunReconcile did not return after cancel")
	}
}
