package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Ashfaaq98/dossier-console/internal/errs"
	"github.com/Ashfaaq98/dossier-console/internal/model"
	"github.com/Ashfaaq98/dossier-console/internal/selection"
)

func (ui *UI) buildAnalysisPage() tview.Primitive {
	ui.entityList = tview.NewList().ShowSecondaryText(false)
	ui.entityList.SetTitle(" Entities (space: toggle  a: all  n: none  +: add  d: delete) ")
	ui.entityList.SetBorder(true)
	ui.entityList.SetTitleAlign(tview.AlignLeft)
	ui.entityList.SetSelectedFunc(func(index int, _, _ string, _ rune) {
		ui.toggleEntity(index)
	})
	ui.entityList.SetInputCapture(ui.entityKeys)

	ui.connList = tview.NewList()
	ui.connList.SetTitle(" Connections (enter: use  +: add  d: delete) ")
	ui.connList.SetBorder(true)
	ui.connList.SetTitleAlign(tview.AlignLeft)
	ui.connList.SetSelectedFunc(func(index int, _, _ string, _ rune) {
		ui.useConnection(index)
	})
	ui.connList.SetInputCapture(ui.connectionKeys)

	ui.paramsView = tview.NewTextView().SetDynamicColors(true)
	ui.paramsView.SetTitle(" Next analysis (k: keywords & period  p: preset  x: execute) ")
	ui.paramsView.SetBorder(true)
	ui.paramsView.SetTitleAlign(tview.AlignLeft)

	right := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(ui.connList, 0, 1, false).
		AddItem(ui.paramsView, 8, 0, false)

	return tview.NewFlex().
		AddItem(ui.entityList, 0, 1, true).
		AddItem(right, 0, 1, false)
}

// analysisKeys are shared by both lists on the analysis page.
func (ui *UI) analysisKeys(r rune) bool {
	switch r {
	case 'k':
		ui.showParamsForm()
	case 'p':
		ui.cyclePreset()
	case 'x':
		ui.runAnalysis()
	default:
		return false
	}
	return true
}

func (ui *UI) entityKeys(event *tcell.EventKey) *tcell.EventKey {
	if event.Key() != tcell.KeyRune {
		return event
	}
	switch event.Rune() {
	case ' ':
		ui.toggleEntity(ui.entityList.GetCurrentItem())
		return nil
	case 'a':
		ui.sel.SelectAll(ui.store.EntityNames())
		ui.renderEntities()
		return nil
	case 'n':
		ui.sel.DeselectAll()
		ui.renderEntities()
		return nil
	case '+':
		ui.showEntityForm()
		return nil
	case 'd':
		entities := ui.store.Entities()
		if i := ui.entityList.GetCurrentItem(); i >= 0 && i < len(entities) {
			e := entities[i]
			ui.confirm(fmt.Sprintf("Delete entity %q?", e.Name), func() {
				ui.background(func(ctx context.Context) { _ = ui.store.DeleteEntity(ctx, e.Key()) })
			})
		}
		return nil
	}
	if ui.analysisKeys(event.Rune()) {
		return nil
	}
	return event
}

func (ui *UI) connectionKeys(event *tcell.EventKey) *tcell.EventKey {
	if event.Key() != tcell.KeyRune {
		return event
	}
	switch event.Rune() {
	case '+':
		ui.showConnectionForm()
		return nil
	case 'd':
		conns := ui.store.Connections()
		if i := ui.connList.GetCurrentItem(); i >= 0 && i < len(conns) {
			c := conns[i]
			ui.confirm(fmt.Sprintf("Delete connection %q?", c.ConnectionName), func() {
				ui.background(func(ctx context.Context) { _ = ui.store.DeleteConnection(ctx, c.Key()) })
			})
		}
		return nil
	}
	if ui.analysisKeys(event.Rune()) {
		return nil
	}
	return event
}

func (ui *UI) toggleEntity(index int) {
	entities := ui.store.Entities()
	if index < 0 || index >= len(entities) {
		return
	}
	ui.sel.Toggle(entities[index].Name)
	ui.renderEntities()
}

func (ui *UI) useConnection(index int) {
	conns := ui.store.Connections()
	if index < 0 || index >= len(conns) {
		return
	}
	ui.sel.SetConnection(conns[index].Key())
	ui.renderConnections()
	ui.setStatus("[%s]Using connection %s[-]", ui.theme.TagSuccess, tview.Escape(conns[index].ConnectionName))
}

func (ui *UI) renderEntities() {
	current := ui.entityList.GetCurrentItem()
	ui.entityList.Clear()
	entities := ui.store.Entities()
	for _, e := range entities {
		ui.entityList.AddItem(tview.Escape(entityLabel(e, ui.sel.IsSelected(e.Name))), "", 0, nil)
	}
	if current >= 0 && current < len(entities) {
		ui.entityList.SetCurrentItem(current)
	}
	ui.entityList.SetTitle(fmt.Sprintf(" Entities %d/%d (space: toggle  a: all  n: none  +: add  d: delete) ",
		len(ui.sel.Selected()), len(entities)))
	ui.renderParams()
}

func (ui *UI) renderConnections() {
	current := ui.connList.GetCurrentItem()
	ui.connList.Clear()
	chosen, hasChosen := ui.sel.Connection()
	conns := ui.store.Connections()
	for _, c := range conns {
		marker := "  "
		if hasChosen && c.Key() == chosen {
			marker = "▶ "
		}
		ui.connList.AddItem(marker+tview.Escape(connectionLabel(c)), "", 0, nil)
	}
	if current >= 0 && current < len(conns) {
		ui.connList.SetCurrentItem(current)
	}
	ui.renderParams()
	ui.renderSQLConnections()
}

func (ui *UI) renderParams() {
	s := ui.sel.Snapshot()
	conn := ""
	if s.ConnectionID != nil {
		if c, ok := ui.store.Connection(*s.ConnectionID); ok {
			conn = c.ConnectionName
		} else {
			conn = fmt.Sprintf("#%d", *s.ConnectionID)
		}
	}
	ui.paramsView.SetText(tview.Escape(selectionSummary(s.Entities, s.Keywords, s.StartDate, s.EndDate, conn)))
}

var presetCycle = selection.Presets

func (ui *UI) cyclePreset() {
	s := ui.sel.Snapshot()
	now := timeNow()
	next := presetCycle[0]
	for i, p := range presetCycle {
		if start, end := p.Range(now); start == s.StartDate && end == s.EndDate {
			next = presetCycle[(i+1)%len(presetCycle)]
			break
		}
	}
	ui.sel.ApplyPreset(next, now)
	ui.renderParams()
	ui.setStatus("[%s]Period: %s[-]", ui.theme.TagAccent, next)
}

func (ui *UI) runAnalysis() {
	if _, err := ui.opts.Runner.Payload(); err != nil {
		ui.showError(err)
		return
	}
	ui.setStatus("[%s]Submitting analysis...[-]", ui.theme.TagAccent)
	ui.background(func(ctx context.Context) {
		job, err := ui.opts.Runner.Submit(ctx)
		ui.queue(func() {
			if err != nil {
				// Gateway failures arrive through the error slot.
				if errs.IsValidation(err) {
					ui.showError(err)
				}
				return
			}
			ui.setStatus("[%s]Analysis job %d submitted[-]", ui.theme.TagSuccess, job.ID)
		})
	})
}

func (ui *UI) showParamsForm() {
	s := ui.sel.Snapshot()
	form := tview.NewForm().
		AddInputField("Keywords (comma separated)", strings.Join(s.Keywords, ", "), 50, nil, nil).
		AddInputField("Start (YYYY-MM-DD)", s.StartDate, 12, nil, nil).
		AddInputField("End (YYYY-MM-DD)", s.EndDate, 12, nil, nil)
	form.AddButton("Save", func() {
		keywords := form.GetFormItem(0).(*tview.InputField).GetText()
		start := strings.TrimSpace(form.GetFormItem(1).(*tview.InputField).GetText())
		end := strings.TrimSpace(form.GetFormItem(2).(*tview.InputField).GetText())
		if err := selection.ValidateRange(start, end); err != nil {
			ui.showError(errs.Validation("dates", err.Error()))
			return
		}
		ui.sel.SetKeywordsInput(keywords)
		ui.sel.SetDateRange(start, end)
		ui.closeDialog()
		ui.renderParams()
	})
	form.AddButton("Cancel", ui.closeDialog)
	ui.openForm(form, " Analysis parameters ", 70, 11)
}

func (ui *UI) showEntityForm() {
	types := make([]string, len(model.EntityTypes))
	for i, t := range model.EntityTypes {
		types[i] = string(t)
	}
	form := tview.NewForm().
		AddInputField("Name", "", 40, nil, nil).
		AddDropDown("Type", types, 0, nil)
	form.AddButton("Add", func() {
		name := strings.TrimSpace(form.GetFormItem(0).(*tview.InputField).GetText())
		_, typ := form.GetFormItem(1).(*tview.DropDown).GetCurrentOption()
		entity := model.MonitoredEntity{Name: name, EntityType: model.EntityType(typ)}
		if err := entity.Validate(); err != nil {
			ui.showError(err)
			return
		}
		ui.closeDialog()
		ui.background(func(ctx context.Context) {
			if _, err := ui.store.AddEntity(ctx, entity); err == nil {
				ui.queue(func() { ui.setStatus("[%s]Entity %s added[-]", ui.theme.TagSuccess, tview.Escape(name)) })
			}
		})
	})
	form.AddButton("Cancel", ui.closeDialog)
	ui.openForm(form, " New entity ", 60, 9)
}

var dbTypes = []string{model.DBTypeSQLServer, model.DBTypePostgres, model.DBTypeMySQL, model.DBTypeSQLite}

func (ui *UI) showConnectionForm() {
	form := tview.NewForm().
		AddInputField("Name", "", 30, nil, nil).
		AddDropDown("Type", dbTypes, 0, nil).
		AddInputField("Server / file", "", 40, nil, nil).
		AddInputField("Port (blank: default)", "", 6, tview.InputFieldInteger, nil).
		AddInputField("Database", "", 30, nil, nil).
		AddCheckbox("Windows auth", false, nil).
		AddInputField("Username", "", 30, nil, nil).
		AddPasswordField("Password", "", 30, '*', nil)
	form.AddButton("Save", func() {
		text := func(i int) string { return strings.TrimSpace(form.GetFormItem(i).(*tview.InputField).GetText()) }
		_, dbType := form.GetFormItem(1).(*tview.DropDown).GetCurrentOption()
		port, _ := strconv.Atoi(text(3))
		conn := model.DatabaseConnection{
			ConnectionName: text(0),
			DBType:         dbType,
			Port:           port,
			DatabaseName:   text(4),
			UseWindowsAuth: form.GetFormItem(5).(*tview.Checkbox).IsChecked(),
			Username:       text(6),
		}
		if dbType == model.DBTypeSQLite {
			conn.FilePath = text(2)
		} else {
			conn.ServerAddress = text(2)
		}
		// The backend encrypts the password on create.
		conn.EncryptedPassword = form.GetFormItem(7).(*tview.InputField).GetText()
		if err := conn.Validate(); err != nil {
			ui.showError(err)
			return
		}
		password := conn.EncryptedPassword
		ui.closeDialog()
		ui.background(func(ctx context.Context) {
			created, err := ui.store.AddConnection(ctx, conn)
			if err != nil {
				return
			}
			ui.queue(func() {
				if password != "" {
					ui.sqlPasswords[created.Key()] = password
				}
				ui.setStatus("[%s]Connection %s saved[-]", ui.theme.TagSuccess, tview.Escape(created.ConnectionName))
			})
		})
	})
	form.AddButton("Cancel", ui.closeDialog)
	ui.openForm(form, " New connection ", 70, 21)
}
