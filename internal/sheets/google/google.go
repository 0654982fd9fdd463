package google

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"spendbook/internal/core"
	applog "spendbook/internal/log"
	ports "spendbook/internal/sheets"
)

var _ ports.ExpenseMirror = (*Mirror)(nil)

// Config selects the spreadsheet and the service account used to write it.
type Config struct {
	SpreadsheetID string
	// TabPrefix is prepended to the username to name each user's tab.
	TabPrefix       string
	CredentialsJSON string
	CredentialsFile string
}

// Mirror writes each user's expenses to a dedicated tab of one spreadsheet.
type Mirror struct {
	svc           *gsheet.Service
	spreadsheetID string
	prefix        string
	logger        *applog.Logger

	mu   sync.Mutex
	tabs map[string]bool
}

// New creates a Sheets client using service account credentials, inline JSON
// first, then the key file.
func New(ctx context.Context, cfg Config, logger *applog.Logger) (*Mirror, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentSheets)

	var cred goption.ClientOption
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		logger.InfoContext(ctx, "Using inline JSON credentials", "json_length", len(cfg.CredentialsJSON))
		cred = goption.WithCredentialsJSON([]byte(cfg.CredentialsJSON))
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		logger.InfoContext(ctx, "Reading credentials from file", "path", cfg.CredentialsFile)
		cred = goption.WithCredentialsFile(cfg.CredentialsFile)
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}

	svc, err := gsheet.NewService(ctx, cred, goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets service created successfully", "spreadsheet_id", cfg.SpreadsheetID)

	return &Mirror{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		prefix:        cfg.TabPrefix,
		logger:        logger,
		tabs:          make(map[string]bool),
	}, nil
}

// TabName is the sheet title holding the user's expenses.
func (m *Mirror) TabName(username string) string {
	return m.prefix + username
}

// ReplaceUserExpenses clears the user's tab and writes a header plus one row
// per expense. The tab is created on first use.
func (m *Mirror) ReplaceUserExpenses(ctx context.Context, username string, expenses []core.Expense) error {
	if m.svc == nil {
		return errors.New("sheets service not initialized")
	}
	tab := m.TabName(username)
	if err := m.ensureTab(ctx, tab); err != nil {
		return err
	}

	if _, err := m.svc.Spreadsheets.Values.Clear(m.spreadsheetID, quoteTab(tab), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", tab, err)
	}

	vr := &gsheet.ValueRange{Values: buildValues(expenses)}
	if _, err := m.svc.Spreadsheets.Values.Update(m.spreadsheetID, quoteTab(tab)+"!A1", vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", tab, err)
	}

	m.logger.DebugContext(ctx, "Mirrored expenses",
		applog.FieldUsername, username,
		applog.FieldCount, len(expenses),
		"tab", tab)
	return nil
}

func (m *Mirror) ensureTab(ctx context.Context, tab string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tabs[tab] {
		return nil
	}

	ss, err := m.svc.Spreadsheets.Get(m.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			m.tabs[s.Properties.Title] = true
		}
	}
	if m.tabs[tab] {
		return nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: tab}},
	}}}
	if _, err := m.svc.Spreadsheets.BatchUpdate(m.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("create tab %s: %w", tab, err)
	}
	m.tabs[tab] = true
	m.logger.InfoContext(ctx, "Created sheet tab", "tab", tab)
	return nil
}

func buildValues(expenses []core.Expense) [][]any {
	values := make([][]any, 0, len(expenses)+1)
	values = append(values, toAny(ports.Header))
	for _, e := range expenses {
		values = append(values, toAny(ports.Row(e)))
	}
	return values
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// quoteTab wraps a sheet title for A1 notation.
func quoteTab(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}
