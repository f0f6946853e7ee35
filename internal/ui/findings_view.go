package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Ashfaaq98/dossier-console/internal/export"
	"github.com/Ashfaaq98/dossier-console/internal/findings"
	"github.com/Ashfaaq98/dossier-console/internal/model"
)

// riskOptions are the dropdown entries; index 0 is "all".
var riskOptions = []findings.RiskFilter{
	findings.All,
	findings.RiskFilter(model.RiskHigh),
	findings.RiskFilter(model.RiskMedium),
	findings.RiskFilter(model.RiskLow),
}

func (ui *UI) buildFindingsPage() tview.Primitive {
	ui.searchInput = tview.NewInputField().
		SetLabel(" Search: ").
		SetPlaceholder("entity, title or content")
	ui.searchInput.SetChangedFunc(func(text string) {
		ui.query.Search = text
		ui.renderFindings()
	})
	ui.searchInput.SetDoneFunc(func(key tcell.Key) {
		ui.app.SetFocus(ui.findingsTable)
		ui.highlightFocus()
	})

	labels := make([]string, len(riskOptions))
	for i, r := range riskOptions {
		labels[i] = strings.ToUpper(string(r))
	}
	ui.riskDrop = tview.NewDropDown().
		SetLabel(" Risk: ").
		SetOptions(labels, func(text string, index int) {
			if index < 0 || index >= len(riskOptions) {
				return
			}
			ui.query.Risk = riskOptions[index]
			ui.renderFindings()
		})

	ui.statsView = tview.NewTextView().SetDynamicColors(true)

	ui.findingsTable = tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0)
	ui.findingsTable.SetTitle(" Findings ")
	ui.findingsTable.SetBorder(true)
	ui.findingsTable.SetTitleAlign(tview.AlignLeft)
	ui.findingsTable.SetSelectionChangedFunc(func(row, col int) {
		ui.showFindingDetail(row)
	})
	ui.findingsTable.SetInputCapture(ui.findingsKeys)

	ui.detailView = tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true).
		SetScrollable(true)
	ui.detailView.SetTitle(" Details ")
	ui.detailView.SetBorder(true)
	ui.detailView.SetTitleAlign(tview.AlignLeft)

	ui.riskDrop.SetCurrentOption(0)

	filters := tview.NewFlex().
		AddItem(ui.searchInput, 0, 2, false).
		AddItem(ui.riskDrop, 20, 0, false).
		AddItem(ui.statsView, 0, 2, false)

	return tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(filters, 1, 0, false).
		AddItem(ui.findingsTable, 0, 3, true).
		AddItem(ui.detailView, 0, 2, false)
}

func (ui *UI) findingsKeys(event *tcell.EventKey) *tcell.EventKey {
	if event.Key() != tcell.KeyRune {
		return event
	}
	switch r := event.Rune(); r {
	case '1', '2', '3', '4':
		key, _ := sortKeyForDigit(r)
		ui.query.Sort = ui.query.Sort.Toggle(key)
		ui.renderFindings()
		ui.setStatus("[%s]Sorted by %s (%s)[-]", ui.theme.TagAccent, key, ui.query.Sort.Order)
		return nil
	case '0':
		ui.query.Sort = findings.DefaultSort
		ui.renderFindings()
		return nil
	case '/':
		ui.app.SetFocus(ui.searchInput)
		ui.highlightFocus()
		return nil
	case 'f':
		ui.app.SetFocus(ui.riskDrop)
		ui.highlightFocus()
		return nil
	case 'c':
		ui.clearFilters()
		return nil
	case 'e':
		ui.showExportDialog()
		return nil
	case 'o':
		if f, ok := ui.selectedFinding(); ok {
			ui.previewSource(f)
		}
		return nil
	case 'a':
		if f, ok := ui.selectedFinding(); ok {
			ui.analyzeFinding(f)
		}
		return nil
	}
	return event
}

func (ui *UI) clearFilters() {
	ui.query = findings.Query{Risk: findings.All, Sort: findings.DefaultSort}
	ui.searchInput.SetText("")
	ui.riskDrop.SetCurrentOption(0)
	ui.renderFindings()
	ui.setStatus("[%s]Filters cleared[-]", ui.theme.TagAccent)
}

// renderFindings applies the current query to the loaded findings and
// redraws the table, keeping the selected finding when it is still visible.
func (ui *UI) renderFindings() {
	prev, hadPrev := ui.selectedFinding()

	view, err := findings.Apply(ui.store.Findings(), ui.query)
	if err != nil {
		ui.showError(err)
		return
	}
	ui.view = view

	t := ui.findingsTable
	t.Clear()
	for col := range findingColumns {
		t.SetCell(0, col, tview.NewTableCell(headerLabel(col, ui.query.Sort)).
			SetTextColor(ui.theme.TableHeader).
			SetBackgroundColor(ui.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetSelectable(false))
	}

	selectRow := 1
	for i, f := range view {
		row := i + 1
		for col, text := range findingRow(f) {
			cell := tview.NewTableCell(tview.Escape(text)).SetTextColor(ui.theme.TableRow)
			switch col {
			case 1:
				cell.SetExpansion(1)
			case 2:
				cell.SetTextColor(ui.theme.riskColor(f.RiskLevel))
			case 4, 5:
				cell.SetTextColor(ui.theme.TableRowMuted)
			}
			t.SetCell(row, col, cell)
		}
		if hadPrev && f.ID == prev.ID {
			selectRow = row
		}
	}
	if len(view) == 0 {
		t.SetCell(1, 0, tview.NewTableCell("No findings").
			SetTextColor(ui.theme.TableRowMuted).
			SetSelectable(false))
		ui.detailView.SetText("")
	} else {
		t.Select(selectRow, 0)
		ui.showFindingDetail(selectRow)
	}

	t.SetTitle(fmt.Sprintf(" Findings (%d/%d) ", len(view), len(ui.store.Findings())))
	ui.statsView.SetText(statsLine(ui.theme, findings.Summarize(view)))
}

func (ui *UI) selectedFinding() (model.Finding, bool) {
	if ui.findingsTable == nil {
		return model.Finding{}, false
	}
	row, _ := ui.findingsTable.GetSelection()
	if row < 1 || row > len(ui.view) {
		return model.Finding{}, false
	}
	return ui.view[row-1], true
}

func (ui *UI) showFindingDetail(row int) {
	if row < 1 || row > len(ui.view) {
		return
	}
	ui.detailView.SetText(findingDetail(ui.theme, ui.view[row-1]))
	ui.detailView.ScrollToBeginning()
}

func (ui *UI) previewSource(f model.Finding) {
	if ui.opts.Source == nil || f.SourceURL == "" {
		ui.setStatus("[%s]No source to preview[-]", ui.theme.TagMuted)
		return
	}
	ui.setStatus("[%s]Fetching %s...[-]", ui.theme.TagAccent, tview.Escape(f.SourceURL))
	ui.background(func(ctx context.Context) {
		article, err := ui.opts.Source.Fetch(ctx, f.SourceURL)
		ui.queue(func() {
			if err != nil {
				ui.showError(err)
				return
			}
			title := article.Title
			if title == "" {
				title = f.Title
			}
			ui.detailView.SetText(fmt.Sprintf("[%s]%s[-]\n[%s]%s[-]\n\n%s",
				ui.theme.TagAccent, tview.Escape(title),
				ui.theme.TagMuted, tview.Escape(article.URL),
				tview.Escape(article.Text)))
			ui.detailView.ScrollToBeginning()
			ui.setStatus("[%s]Source loaded[-]", ui.theme.TagSuccess)
		})
	})
}

func (ui *UI) analyzeFinding(f model.Finding) {
	if ui.opts.Risk == nil {
		return
	}
	text := strings.TrimSpace(f.Title + "\n" + f.Content)
	ui.setStatus("[%s]Analyzing finding %d...[-]", ui.theme.TagAccent, f.ID)
	ui.background(func(ctx context.Context) {
		res, err := ui.opts.Risk.AnalyzeRisk(ctx, model.RiskAnalysisRequest{Text: text, IncludeExplanation: true})
		ui.queue(func() {
			if err != nil {
				ui.showError(err)
				return
			}
			var b strings.Builder
			fmt.Fprintf(&b, "Risk: %s (confidence %.0f%%)\n", res.RiskLevel, res.ConfidenceScore*100)
			if len(res.RiskFactors) > 0 {
				fmt.Fprintf(&b, "\nFactors: %s\n", strings.Join(res.RiskFactors, ", "))
			}
			if len(res.ComplianceFlags) > 0 {
				fmt.Fprintf(&b, "Compliance: %s\n", strings.Join(res.ComplianceFlags, ", "))
			}
			if res.Explanation != "" {
				fmt.Fprintf(&b, "\n%s", res.Explanation)
			}
			ui.showModal("Risk analysis", b.String())
		})
	})
}

func (ui *UI) showExportDialog() {
	labels := make([]string, len(export.Formats))
	for i, f := range export.Formats {
		labels[i] = strings.ToUpper(string(f))
	}
	labels = append(labels, "Cancel")

	modal := tview.NewModal().
		SetText(fmt.Sprintf("Export %d findings as:", len(ui.view))).
		AddButtons(labels).
		SetDoneFunc(func(index int, label string) {
			ui.closeDialog()
			if index < 0 || index >= len(export.Formats) {
				return
			}
			ui.exportView(export.Formats[index])
		})
	ui.openDialog(modal)
}

func (ui *UI) exportView(format export.Format) {
	report, err := export.NewReport(ui.store.Findings(), ui.query, timeNow())
	if err != nil {
		ui.showError(err)
		return
	}
	path, err := export.WriteFile(ui.opts.ExportDir, format, report)
	if err != nil {
		ui.showError(err)
		return
	}
	ui.setStatus("[%s]Exported %d findings to %s[-]", ui.theme.TagSuccess, len(report.Findings), tview.Escape(path))
}
