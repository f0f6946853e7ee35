package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const pageDialog = "dialog"

// openDialog shows p above the current page and gives it focus. Global
// shortcuts are off until closeDialog.
func (ui *UI) openDialog(p tview.Primitive) {
	if ui.dialog {
		ui.pages.RemovePage(pageDialog)
	} else {
		ui.lastFocus = ui.app.GetFocus()
	}
	ui.dialog = true
	ui.pages.AddPage(pageDialog, p, true, true)
	ui.app.SetFocus(p)
}

func (ui *UI) closeDialog() {
	if !ui.dialog {
		return
	}
	ui.dialog = false
	ui.pages.RemovePage(pageDialog)
	if ui.lastFocus != nil {
		ui.app.SetFocus(ui.lastFocus)
	}
	ui.lastFocus = nil
}

// centered wraps p in a box of the given size in the middle of the screen.
func centered(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)
}

func (ui *UI) openForm(form *tview.Form, title string, width, height int) {
	form.SetBorder(true).SetTitle(title).SetTitleAlign(tview.AlignLeft)
	form.SetBackgroundColor(ui.theme.Surface)
	form.SetFieldBackgroundColor(ui.theme.SelectionBg)
	form.SetFieldTextColor(ui.theme.TextPrimary)
	form.SetLabelColor(ui.theme.TextMuted)
	form.SetBorderColor(ui.theme.FocusBorder)
	form.SetCancelFunc(ui.closeDialog)
	ui.openDialog(centered(form, width, height))
}

func (ui *UI) showModal(title, text string) {
	modal := tview.NewModal().
		SetText(title + "\n\n" + text).
		AddButtons([]string{"Close"}).
		SetDoneFunc(func(int, string) { ui.closeDialog() })
	ui.openDialog(modal)
}

// confirm asks a yes/no question and calls yes on confirmation.
func (ui *UI) confirm(question string, yes func()) {
	modal := tview.NewModal().
		SetText(question).
		AddButtons([]string{"Delete", "Cancel"}).
		SetDoneFunc(func(index int, _ string) {
			ui.closeDialog()
			if index == 0 {
				yes()
			}
		})
	ui.openDialog(modal)
}

const helpText = `Global
  F1-F4   switch page          Tab     next widget
  Ctrl+R  reload everything    t       cycle theme
  Esc     back to main widget  q       quit

Findings
  1-4  sort by entity/title/risk/date (again to reverse)
  0    default sort            /  search
  f    risk filter             c  clear filters
  e    export                  o  preview source
  a    analyze risk

Analysis
  space  toggle entity   a/n  select all/none
  +      add             d    delete
  Enter  use connection  k    keywords & period
  p      next preset     x    execute analysis

SQL
  Enter  run query   Ctrl+T  test   Ctrl+L  tables

Jobs
  Enter  job details`

func (ui *UI) showHelp() {
	view := tview.NewTextView().SetText(helpText)
	view.SetBorder(true).SetTitle(" Help (Esc to close) ").SetTitleAlign(tview.AlignLeft)
	view.SetBackgroundColor(ui.theme.Surface)
	view.SetTextColor(ui.theme.TextPrimary)
	view.SetBorderColor(ui.theme.FocusBorder)
	view.SetDoneFunc(func(tcell.Key) { ui.closeDialog() })
	ui.openDialog(centered(view, 64, 26))
}
