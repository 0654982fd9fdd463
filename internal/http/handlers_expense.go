package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"spendbook/internal/amqp"
	"spendbook/internal/core"
	applog "spendbook/internal/log"
	"spendbook/internal/services"
)

const noChangesMessage = "No changes made."

// requestQuery reads the list state from the URL. When the filter form sends
// the query it was rendered with as prev, a changed filter or page size sends
// the user back to page 1.
func requestQuery(v url.Values) core.Query {
	q := core.ParseQuery(v)
	if raw, ok := v["prev"]; ok && len(raw) > 0 {
		if pv, err := url.ParseQuery(raw[0]); err == nil {
			q = q.Normalize(core.ParseQuery(pv))
		}
	}
	return q
}

// returnQuery is the list state a mutation form was rendered with.
func returnQuery(p *RequestBodyParser, r *http.Request) core.Query {
	raw := p.Get("return")
	if raw == "" {
		raw = r.URL.Query().Get("return")
	}
	v, err := url.ParseQuery(raw)
	if err != nil {
		return core.ParseQuery(nil)
	}
	return core.ParseQuery(v)
}

func (s *Server) handleExpensesPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(ctx)
	q := requestQuery(r.URL.Query())

	data, err := s.expensePageData(r, user, q)
	if err != nil {
		s.failPage(w, r, err)
		return
	}

	status := http.StatusOK
	data.Dialog = core.ParseDialog(r.URL.Query())
	if data.Dialog.NeedsExpense() {
		e, err := s.expenses.Get(ctx, user, data.Dialog.ExpenseID)
		switch {
		case errors.Is(err, services.ErrExpenseNotFound):
			data.Dialog = core.Dialog{}
			data.Error = userMessage(err)
			status = http.StatusNotFound
		case err != nil:
			s.failPage(w, r, err)
			return
		default:
			data.Expense = e
			data.Input = inputFromExpense(e)
		}
	}
	s.renderExpenses(w, r, status, data)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		s.mutationFailed(w, r, err, nil, core.Dialog{Kind: core.DialogAdd})
		return
	}
	in, err := ParseExpenseInput(p)
	if err == nil {
		var change services.Change
		change, err = s.expenses.Create(r.Context(), currentUser(r.Context()), in)
		if err == nil {
			s.mutationDone(w, r, p, http.StatusCreated, amqp.ActionCreated, change)
			return
		}
	}
	s.mutationFailed(w, r, err, p, core.Dialog{Kind: core.DialogAdd})
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	dialog := core.Dialog{Kind: core.DialogEdit, ExpenseID: id}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		s.mutationFailed(w, r, err, nil, dialog)
		return
	}
	in, err := ParseExpenseInput(p)
	if err == nil {
		var change services.Change
		change, err = s.expenses.Update(r.Context(), currentUser(r.Context()), id, in)
		if err == nil {
			s.mutationDone(w, r, p, http.StatusOK, amqp.ActionUpdated, change)
			return
		}
	}
	s.mutationFailed(w, r, err, p, dialog)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		s.mutationFailed(w, r, err, nil, core.Dialog{})
		return
	}
	change, err := s.expenses.Delete(r.Context(), currentUser(r.Context()), id)
	if err != nil {
		s.mutationFailed(w, r, err, nil, core.Dialog{})
		return
	}
	s.mutationDone(w, r, p, http.StatusOK, amqp.ActionDeleted, change)
}

// mutationDone answers a successful write. JSON clients get the record,
// htmx gets the refreshed list with a notification, plain forms a redirect.
func (s *Server) mutationDone(w http.ResponseWriter, r *http.Request, p *RequestBodyParser, status int, action amqp.Action, change services.Change) {
	if p.IsJSON() || wantsJSON(r) {
		writeJSON(w, status, map[string]any{
			"expense": change.Expense,
			"message": change.Message,
		})
		return
	}

	q := returnQuery(p, r)
	if !isHTMX(r) {
		http.Redirect(w, r, listURL(q), http.StatusSeeOther)
		return
	}

	data, err := s.expensePageData(r, currentUser(r.Context()), q)
	if err != nil {
		s.failPage(w, r, err)
		return
	}
	body, err := s.renderString("expense_app", data)
	if err != nil {
		s.failPage(w, r, err)
		return
	}

	resp := NewHTMXResponse().
		Status(status).
		TriggerExpensesChanged(string(action), change.Expense.ID).
		TriggerDialogClose().
		PushURL(listURL(data.View.Query)).
		BodyHTML(body)
	if change.Message == noChangesMessage {
		resp.TriggerNotification(NotificationInfo, change.Message, 3000)
	} else {
		resp.TriggerSuccessNotification(change.Message)
	}
	resp.Write(w)
}

// mutationFailed reports a failed write. Plain form posts get the page back
// with the dialog still open and the typed values kept.
func (s *Server) mutationFailed(w http.ResponseWriter, r *http.Request, err error, p *RequestBodyParser, dialog core.Dialog) {
	status := errorStatus(err)
	msg := userMessage(err)
	if status == http.StatusInternalServerError {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Expense write failed",
			applog.FieldError, err.Error(),
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
	}

	if (p != nil && p.IsJSON()) || wantsJSON(r) {
		writeJSONError(w, status, msg)
		return
	}
	if isHTMX(r) || p == nil || status == http.StatusNotFound {
		ErrorResponse(status, msg).Write(w)
		return
	}

	data, derr := s.expensePageData(r, currentUser(r.Context()), returnQuery(p, r))
	if derr != nil {
		s.failPage(w, r, derr)
		return
	}
	data.Dialog = dialog
	data.Error = msg
	data.Input = inputFromParser(p)
	if dialog.NeedsExpense() {
		if e, gerr := s.expenses.Get(r.Context(), currentUser(r.Context()), dialog.ExpenseID); gerr == nil {
			data.Expense = e
		}
	}
	s.renderExpenses(w, r, status, data)
}

func (s *Server) expensePageData(r *http.Request, user string, q core.Query) (pageData, error) {
	view, err := s.expenses.Query(r.Context(), user, q)
	if err != nil {
		return pageData{}, err
	}
	return pageData{
		Title:  "Expense Dashboard",
		User:   user,
		View:   view,
		Ranges: core.PredefinedRanges(),
		Today:  today(),
		Input:  expenseInput{Date: today(), Category: core.CategoryFood},
	}, nil
}

// renderExpenses renders the whole page, or only the app region for htmx swaps.
func (s *Server) renderExpenses(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	name := "expenses.html"
	if isHTMX(r) && r.Header.Get("HX-History-Restore-Request") != "true" {
		name = "expense_app"
	}
	s.render(w, r, status, name, data)
}

func (s *Server) renderString(name string, data pageData) (string, error) {
	var b strings.Builder
	if err := s.templates.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (s *Server) failPage(w http.ResponseWriter, r *http.Request, err error) {
	applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to load expenses",
		applog.FieldError, err.Error(),
		applog.FieldPath, r.URL.Path)
	status := errorStatus(err)
	if isHTMX(r) {
		ErrorResponse(status, userMessage(err)).Write(w)
		return
	}
	http.Error(w, userMessage(err), status)
}
