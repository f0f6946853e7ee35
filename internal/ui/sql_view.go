package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Ashfaaq98/dossier-console/internal/model"
)

func (ui *UI) buildSQLPage() tview.Primitive {
	ui.sqlConnDrop = tview.NewDropDown().SetLabel(" Connection: ")

	ui.sqlInput = tview.NewInputField().
		SetLabel(" SQL> ").
		SetPlaceholder("SELECT TOP 10 * FROM ...  (enter: run  ctrl+t: test  ctrl+l: tables)")
	ui.sqlInput.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			ui.runQuery(ui.sqlInput.GetText())
		}
	})
	ui.sqlInput.SetInputCapture(ui.sqlKeys)
	ui.sqlConnDrop.SetInputCapture(ui.sqlKeys)

	ui.sqlInfo = tview.NewTextView().SetDynamicColors(true)

	ui.sqlResults = tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0)
	ui.sqlResults.SetTitle(" Results ")
	ui.sqlResults.SetBorder(true)
	ui.sqlResults.SetTitleAlign(tview.AlignLeft)

	return tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(ui.sqlConnDrop, 1, 0, false).
		AddItem(ui.sqlInput, 1, 0, true).
		AddItem(ui.sqlInfo, 2, 0, false).
		AddItem(ui.sqlResults, 0, 1, false)
}

func (ui *UI) sqlKeys(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyCtrlT:
		ui.testConnection()
		return nil
	case tcell.KeyCtrlL:
		ui.listTables()
		return nil
	}
	return event
}

func (ui *UI) renderSQLConnections() {
	conns := ui.store.Connections()
	current, _ := ui.sqlConnDrop.GetCurrentOption()
	var currentID int64
	if prev := ui.sqlConnDrop.GetOptionCount(); current >= 0 && current < prev && current < len(conns) {
		currentID = conns[current].Key()
	}
	if id, ok := ui.sel.Connection(); ok && currentID == 0 {
		currentID = id
	}

	labels := make([]string, len(conns))
	selected := -1
	for i, c := range conns {
		labels[i] = tview.Escape(connectionLabel(c))
		if c.Key() == currentID {
			selected = i
		}
	}
	ui.sqlConnDrop.SetOptions(labels, nil)
	if selected < 0 && len(conns) > 0 {
		selected = 0
	}
	if selected >= 0 {
		ui.sqlConnDrop.SetCurrentOption(selected)
	}
	if len(conns) == 0 {
		ui.sqlInfo.SetText(fmt.Sprintf("[%s]No connections. Add one on the Analysis page.[-]", ui.theme.TagMuted))
	}
}

// sqlConnection returns the connection picked in the dropdown.
func (ui *UI) sqlConnection() (model.DatabaseConnection, bool) {
	index, _ := ui.sqlConnDrop.GetCurrentOption()
	conns := ui.store.Connections()
	if index < 0 || index >= len(conns) {
		ui.setStatus("[%s]Pick a connection first[-]", ui.theme.TagWarning)
		return model.DatabaseConnection{}, false
	}
	return conns[index], true
}

// withDetails resolves the request body for the picked connection, asking
// for the password once per session when SQL authentication is used.
func (ui *UI) withDetails(run func(details model.ConnectionDetails)) {
	conn, ok := ui.sqlConnection()
	if !ok || ui.opts.SQL == nil {
		return
	}
	if conn.UseWindowsAuth || strings.EqualFold(conn.DBType, model.DBTypeSQLite) {
		run(conn.Details(""))
		return
	}
	if password, ok := ui.sqlPasswords[conn.Key()]; ok {
		run(conn.Details(password))
		return
	}

	form := tview.NewForm().AddPasswordField("Password", "", 30, '*', nil)
	form.AddButton("OK", func() {
		password := form.GetFormItem(0).(*tview.InputField).GetText()
		ui.sqlPasswords[conn.Key()] = password
		ui.closeDialog()
		run(conn.Details(password))
	})
	form.AddButton("Cancel", ui.closeDialog)
	ui.openForm(form, fmt.Sprintf(" Password for %s@%s ", conn.Username, conn.ConnectionName), 50, 7)
}

func (ui *UI) testConnection() {
	ui.withDetails(func(details model.ConnectionDetails) {
		ui.sqlInfo.SetText(fmt.Sprintf("[%s]Testing connection...[-]", ui.theme.TagAccent))
		ui.background(func(ctx context.Context) {
			res, err := ui.opts.SQL.TestConnection(ctx, details)
			ui.queue(func() {
				if err != nil {
					ui.sqlInfo.SetText(fmt.Sprintf("[%s]Connection failed[-]", ui.theme.TagError))
					ui.showError(err)
					return
				}
				ui.sqlInfo.SetText(fmt.Sprintf("[%s]%s[-]\n%s  database: %s", ui.theme.TagSuccess,
					tview.Escape(res.Message), tview.Escape(res.ServerVersion), tview.Escape(res.Database)))
			})
		})
	})
}

func (ui *UI) listTables() {
	ui.withDetails(func(details model.ConnectionDetails) {
		ui.background(func(ctx context.Context) {
			res, err := ui.opts.SQL.ListTables(ctx, details)
			ui.queue(func() {
				if err != nil {
					ui.showError(err)
					return
				}
				rows := make([]map[string]any, len(res.Tables))
				for i, name := range res.Tables {
					rows[i] = map[string]any{"table": name}
				}
				ui.renderQueryResult(model.QueryResult{Success: true, Columns: []string{"table"}, Data: rows, RowCount: len(rows)})
				ui.sqlInfo.SetText(fmt.Sprintf("[%s]%d tables[-]", ui.theme.TagSuccess, len(rows)))
			})
		})
	})
}

func (ui *UI) runQuery(query string) {
	if strings.TrimSpace(query) == "" {
		return
	}
	ui.withDetails(func(details model.ConnectionDetails) {
		ui.sqlInfo.SetText(fmt.Sprintf("[%s]Running...[-]", ui.theme.TagAccent))
		ui.background(func(ctx context.Context) {
			res, err := ui.opts.SQL.ExecuteQuery(ctx, details, query)
			ui.queue(func() {
				if err != nil {
					ui.sqlInfo.SetText("")
					ui.showError(err)
					return
				}
				ui.renderQueryResult(res)
			})
		})
	})
}

func (ui *UI) renderQueryResult(res model.QueryResult) {
	t := ui.sqlResults
	t.Clear()
	if !res.HasRows() && len(res.Data) == 0 {
		ui.sqlInfo.SetText(fmt.Sprintf("[%s]%s[-]", ui.theme.TagSuccess, tview.Escape(res.Message)))
		return
	}

	cols := queryColumns(res.Columns, res.Data)
	for c, name := range cols {
		t.SetCell(0, c, tview.NewTableCell(tview.Escape(name)).
			SetTextColor(ui.theme.TableHeader).
			SetBackgroundColor(ui.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetSelectable(false))
	}
	for r, row := range res.Data {
		for c, name := range cols {
			v := row[name]
			cell := tview.NewTableCell(tview.Escape(cellValue(v))).SetTextColor(ui.theme.TableRow)
			if v == nil {
				cell.SetTextColor(ui.theme.TableRowMuted)
			}
			t.SetCell(r+1, c, cell)
		}
	}
	t.ScrollToBeginning()
	ui.sqlInfo.SetText(fmt.Sprintf("[%s]%d rows[-]", ui.theme.TagSuccess, len(res.Data)))
}
