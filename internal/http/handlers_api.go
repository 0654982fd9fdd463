package http

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"spendbook/internal/core"
	applog "spendbook/internal/log"
	"spendbook/internal/sheets"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	xlsxSheet       = "Expenses"
	utf8BOM         = "\ufeff"
)

type expenseListResponse struct {
	Items      []core.Expense `json:"items"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
	TotalCount int            `json:"total_count"`
	Total      core.Money     `json:"total"`
	Categories []string       `json:"categories"`
	PageSizes  []int          `json:"page_sizes"`
}

type chartResponse struct {
	Total      core.Money            `json:"total"`
	Count      int                   `json:"count"`
	Categories []core.CategoryAmount `json:"categories"`
}

func (s *Server) handleAPIExpenses(w http.ResponseWriter, r *http.Request) {
	view, err := s.expenses.Query(r.Context(), currentUser(r.Context()), core.ParseQuery(r.URL.Query()))
	if err != nil {
		s.apiFailed(w, r, err)
		return
	}
	items := view.Page.Items
	if items == nil {
		items = []core.Expense{}
	}
	writeJSON(w, http.StatusOK, expenseListResponse{
		Items:      items,
		Page:       view.Page.Page,
		PageSize:   view.Page.PageSize,
		TotalPages: view.Page.TotalPages,
		TotalCount: view.Page.TotalCount,
		Total:      view.Result.Total,
		Categories: view.Categories,
		PageSizes:  view.PageSizes,
	})
}

func (s *Server) handleAPIChart(w http.ResponseWriter, r *http.Request) {
	view, err := s.expenses.Query(r.Context(), currentUser(r.Context()), core.ParseQuery(r.URL.Query()))
	if err != nil {
		s.apiFailed(w, r, err)
		return
	}
	cats := view.Summary
	if cats == nil {
		cats = []core.CategoryAmount{}
	}
	writeJSON(w, http.StatusOK, chartResponse{
		Total:      view.Result.Total,
		Count:      view.Result.Count,
		Categories: cats,
	})
}

// filtered returns every expense matching the request filter, ignoring paging.
func (s *Server) filtered(r *http.Request) ([]core.Expense, error) {
	all, err := s.expenses.List(r.Context(), currentUser(r.Context()))
	if err != nil {
		return nil, err
	}
	return core.Apply(all, core.ParseFilter(r.URL.Query())).Expenses, nil
}

// handleExportCSV writes the filtered expenses with a BOM so spreadsheet
// programs detect UTF-8.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.filtered(r)
	if err != nil {
		s.apiFailed(w, r, err)
		return
	}

	var buf bytes.Buffer
	buf.WriteString(utf8BOM)
	cw := csv.NewWriter(&buf)
	_ = cw.Write(sheets.Header)
	for _, e := range expenses {
		_ = cw.Write(sheets.Row(e))
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.apiFailed(w, r, err)
		return
	}

	s.logExport(r, "csv", len(expenses))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment(currentUser(r.Context()), "csv"))
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.filtered(r)
	if err != nil {
		s.apiFailed(w, r, err)
		return
	}

	f, err := buildWorkbook(expenses)
	if err != nil {
		s.apiFailed(w, r, err)
		return
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		s.apiFailed(w, r, err)
		return
	}

	s.logExport(r, "xlsx", len(expenses))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", attachment(currentUser(r.Context()), "xlsx"))
	_, _ = buf.WriteTo(w)
}

// buildWorkbook lays out one header row, one row per expense and a total row.
// Amounts are numeric cells so the spreadsheet can sum them.
func buildWorkbook(expenses []core.Expense) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return nil, err
	}

	header := make([]any, len(sheets.Header))
	for i, h := range sheets.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(xlsxSheet, "A1", &header); err != nil {
		return nil, err
	}

	for i, e := range expenses {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{e.ID, e.Title, e.Amount.Units(), e.Date.String(), core.DisplayCategory(e.Category)}
		if err := f.SetSheetRow(xlsxSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	totalRow := len(expenses) + 2
	if err := f.SetCellValue(xlsxSheet, fmt.Sprintf("B%d", totalRow), "Total"); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(xlsxSheet, fmt.Sprintf("C%d", totalRow), core.Sum(expenses).Units()); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(xlsxSheet, "A1", "E1", bold); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(xlsxSheet, fmt.Sprintf("B%d", totalRow), fmt.Sprintf("C%d", totalRow), bold); err != nil {
		return nil, err
	}
	amount, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return nil, err
	}
	if len(expenses) > 0 {
		if err := f.SetCellStyle(xlsxSheet, "C2", fmt.Sprintf("C%d", totalRow), amount); err != nil {
			return nil, err
		}
	}

	_ = f.SetColWidth(xlsxSheet, "A", "A", 38)
	_ = f.SetColWidth(xlsxSheet, "B", "B", 30)
	_ = f.SetColWidth(xlsxSheet, "C", "C", 12)
	_ = f.SetColWidth(xlsxSheet, "D", "D", 12)
	_ = f.SetColWidth(xlsxSheet, "E", "E", 16)
	return f, nil
}

func attachment(user, ext string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, user)
	return fmt.Sprintf(`attachment; filename="expenses_%s_%s.%s"`, safe, time.Now().Format("20060102"), ext)
}

func (s *Server) logExport(r *http.Request, format string, n int) {
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Expenses exported",
		applog.FieldOperation, applog.OpExport,
		"format", format,
		applog.FieldCount, n)
}

func (s *Server) apiFailed(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "API request failed",
			applog.FieldError, err.Error(),
			applog.FieldPath, r.URL.Path)
	}
	writeJSONError(w, status, userMessage(err))
}
