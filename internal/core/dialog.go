package core

import (
	"net/url"
	"strings"
)

// DialogKind names the dialog currently open on the expense page.
type DialogKind string

const (
	DialogNone   DialogKind = ""
	DialogAdd    DialogKind = "add"
	DialogEdit   DialogKind = "edit"
	DialogView   DialogKind = "view"
	DialogDelete DialogKind = "delete"
)

// Dialog is the single open dialog. Edit, View and Delete target ExpenseID;
// Add and None carry no id.
type Dialog struct {
	Kind      DialogKind
	ExpenseID string
}

// NeedsExpense reports whether the dialog targets an existing record.
func (d Dialog) NeedsExpense() bool {
	switch d.Kind {
	case DialogEdit, DialogView, DialogDelete:
		return true
	}
	return false
}

// IsOpen reports whether any dialog is shown.
func (d Dialog) IsOpen() bool { return d.Kind != DialogNone }

// ParseDialog reads the dialog and id parameters. Unknown kinds, or a
// record dialog without an id, yield the closed dialog.
func ParseDialog(q url.Values) Dialog {
	kind := DialogKind(strings.ToLower(strings.TrimSpace(q.Get("dialog"))))
	id := strings.TrimSpace(q.Get("id"))
	switch kind {
	case DialogAdd:
		return Dialog{Kind: DialogAdd}
	case DialogEdit, DialogView, DialogDelete:
		if id == "" {
			return Dialog{}
		}
		return Dialog{Kind: kind, ExpenseID: id}
	}
	return Dialog{}
}
