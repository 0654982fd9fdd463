package worker

import (
	"context"
	"fmt"
	"time"

	"spendbook/internal/amqp"
	"spendbook/internal/core"
	applog "spendbook/internal/log"
	"spendbook/internal/sheets"
)

// ExpenseLoader reads a user's whole expense set.
type ExpenseLoader interface {
	Load(ctx context.Context, username string) ([]core.Expense, error)
}

// UserLister enumerates the accounts to reconcile.
type UserLister interface {
	List(ctx context.Context) ([]core.User, error)
}

// MirrorWorker copies users' expense sets to the external mirror, either on
// an event or in a periodic full pass that repairs lost events.
type MirrorWorker struct {
	expenses ExpenseLoader
	users    UserLister
	mirror   sheets.ExpenseMirror
	logger   *applog.Logger
}

func NewMirrorWorker(expenses ExpenseLoader, users UserLister, mirror sheets.ExpenseMirror, logger *applog.Logger) *MirrorWorker {
	if logger == nil {
		logger = applog.Discard()
	}
	return &MirrorWorker{
		expenses: expenses,
		users:    users,
		mirror:   mirror,
		logger:   logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleEvent re-mirrors the user named by the event. The event is only a
// trigger; the stored set is the source of truth.
func (w *MirrorWorker) HandleEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	w.logger.InfoContext(ctx, "Processing expense event",
		applog.FieldUsername, ev.Username,
		applog.FieldOperation, string(ev.Action),
		applog.FieldExpenseID, ev.ExpenseID)
	return w.mirrorUser(ctx, ev.Username)
}

// Reconcile re-mirrors every registered user. Failures are logged and the
// pass continues; the number of failed users is reported in the error.
func (w *MirrorWorker) Reconcile(ctx context.Context) error {
	users, err := w.users.List(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	failed := 0
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.mirrorUser(ctx, u.Name); err != nil {
			w.logger.ErrorContext(ctx, "Failed to reconcile user",
				applog.FieldUsername, u.Name,
				applog.FieldError, err.Error())
			failed++
		}
	}

	w.logger.InfoContext(ctx, "Reconcile completed",
		"total", len(users),
		"synced", len(users)-failed,
		"errors", failed)
	if failed > 0 {
		return fmt.Errorf("reconcile: %d of %d users failed", failed, len(users))
	}
	return nil
}

// RunReconcile reconciles once immediately and then on every tick until ctx
// ends. Errors from a pass do not stop the loop.
func (w *MirrorWorker) RunReconcile(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := w.Reconcile(ctx); err != nil && ctx.Err() == nil {
			w.logger.ErrorContext(ctx, "Periodic reconcile failed", applog.FieldError, err.Error())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *MirrorWorker) mirrorUser(ctx context.Context, username string) error {
	list, err := w.expenses.Load(ctx, username)
	if err != nil {
		return fmt.Errorf("load expenses for %s: %w", username, err)
	}
	if err := w.mirror.ReplaceUserExpenses(ctx, username, list); err != nil {
		return fmt.Errorf("mirror expenses for %s: %w", username, err)
	}
	w.logger.DebugContext(ctx, "Mirrored user", applog.FieldUsername, username, applog.FieldCount, len(list))
	return nil
}
