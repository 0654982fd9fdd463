package http

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"spendbook/internal/core"
	applog "spendbook/internal/log"
	"spendbook/internal/services"
	appweb "spendbook/web"
)

// pageData feeds every template. Fields a page does not use stay zero.
type pageData struct {
	Title  string
	User   string
	Error  string
	Notice string

	// login and register echo
	Name  string
	Email string

	View    services.View
	Ranges  []core.AmountRange
	Dialog  core.Dialog
	Expense core.Expense
	Input   expenseInput
	Today   string
}

// expenseInput is what the user typed in the add or edit form.
type expenseInput struct {
	Title    string
	Amount   string
	Date     string
	Category string
}

func inputFromExpense(e core.Expense) expenseInput {
	return expenseInput{
		Title:    e.Title,
		Amount:   e.Amount.Fixed(),
		Date:     e.Date.String(),
		Category: e.Category,
	}
}

func inputFromParser(p *RequestBodyParser) expenseInput {
	return expenseInput{
		Title:    p.Get("title"),
		Amount:   p.Get("amount"),
		Date:     p.Get("date"),
		Category: p.Get("category"),
	}
}

var templateFuncs = template.FuncMap{
	"money":           func(m core.Money) string { return m.String() },
	"displayCategory": core.DisplayCategory,
	"percent":         func(f float64) string { return fmt.Sprintf("%.1f", f) },
	"listURL":         listURL,
	"pageURL":         func(q core.Query, p int) string { return listURL(q.WithPage(p)) },
	"dialogURL":       dialogURL,
	"encodeQuery":     func(q core.Query) string { return q.Values().Encode() },
	"rowNumber": func(p core.Page, i int) int {
		return (p.Page-1)*p.PageSize + i + 1
	},
	"add": func(a, b int) int { return a + b },
	"sub": func(a, b int) int { return a - b },
}

func parseTemplates() (*template.Template, error) {
	return template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
}

func listURL(q core.Query) string {
	if enc := q.Values().Encode(); enc != "" {
		return "/expenses?" + enc
	}
	return "/expenses"
}

func dialogURL(q core.Query, kind, id string) string {
	v := q.Values()
	v.Set("dialog", kind)
	if id != "" {
		v.Set("id", id)
	}
	return "/expenses?" + v.Encode()
}

func today() string {
	return time.Now().Format(core.DateLayout)
}

// render executes into a buffer first so a template error never leaves a
// half-written page behind.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			applog.FieldError, err.Error(),
			"template", name,
			applog.FieldOperation, applog.OpRender)
		http.Error(w, "Something went wrong, please try again.", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
