package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Ashfaaq98/dossier-console/internal/findings"
	"github.com/Ashfaaq98/dossier-console/internal/model"
)

func (ui *UI) buildJobsPage() tview.Primitive {
	ui.jobStatsView = tview.NewTextView().SetDynamicColors(true)

	ui.jobsTable = tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0)
	ui.jobsTable.SetTitle(" Execution jobs ")
	ui.jobsTable.SetBorder(true)
	ui.jobsTable.SetTitleAlign(tview.AlignLeft)
	ui.jobsTable.SetSelectedFunc(func(row, _ int) {
		jobs := ui.store.Jobs()
		if row < 1 || row > len(jobs) {
			return
		}
		j := jobs[row-1]
		text := fmt.Sprintf("Job %d\nStatus: %s\nTrigger: %s\nDuration: %s",
			j.ID, j.Status, j.TipoGatilho, findings.JobDuration(j, timeNow()))
		if j.Resultado != nil {
			text += "\n\n" + *j.Resultado
		}
		ui.showModal("Job details", text)
	})

	return tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(ui.jobStatsView, 1, 0, false).
		AddItem(ui.jobsTable, 0, 1, true)
}

func (ui *UI) jobStatusColor(s model.JobStatus) tcell.Color {
	switch s {
	case model.JobCompleted:
		return ui.theme.RiskLow
	case model.JobFailed:
		return ui.theme.RiskHigh
	case model.JobRunning:
		return ui.theme.RiskMedium
	default:
		return ui.theme.TableRowMuted
	}
}

func (ui *UI) renderJobs() {
	jobs := ui.store.Jobs()
	now := timeNow()

	t := ui.jobsTable
	row, _ := t.GetSelection()
	t.Clear()
	for col, name := range jobColumns {
		t.SetCell(0, col, tview.NewTableCell(name).
			SetTextColor(ui.theme.TableHeader).
			SetBackgroundColor(ui.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetSelectable(false))
	}
	for i, j := range jobs {
		for col, value := range jobRow(j, now) {
			cell := tview.NewTableCell(tview.Escape(value)).SetTextColor(ui.theme.TableRow)
			if col == 1 {
				cell.SetTextColor(ui.jobStatusColor(j.Status))
			}
			if col == len(jobColumns)-1 {
				cell.SetExpansion(1)
			}
			t.SetCell(i+1, col, cell)
		}
	}
	if len(jobs) == 0 {
		t.SetCell(1, 0, tview.NewTableCell("No jobs").SetTextColor(ui.theme.TableRowMuted).SetSelectable(false))
	} else if row >= 1 && row <= len(jobs) {
		t.Select(row, 0)
	} else {
		t.Select(1, 0)
	}

	ui.jobStatsView.SetText(jobStatsLine(ui.theme, findings.SummarizeJobs(jobs)))
}
