// Package ui is the terminal console: findings browser, analysis setup,
// jobs history and a SQL console.
package ui

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Ashfaaq98/dossier-console/internal/errs"
	"github.com/Ashfaaq98/dossier-console/internal/execution"
	"github.com/Ashfaaq98/dossier-console/internal/findings"
	"github.com/Ashfaaq98/dossier-console/internal/model"
	"github.com/Ashfaaq98/dossier-console/internal/selection"
	"github.com/Ashfaaq98/dossier-console/internal/source"
	"github.com/Ashfaaq98/dossier-console/internal/state"
)

// SQLClient runs the SQL console requests, over the SQL API or directly
type SQLClient interface {
	TestConnection(ctx context.Context, details model.ConnectionDetails) (model.ConnectionResult, error)
	ListTables(ctx context.Context, details model.ConnectionDetails) (model.TablesResult, error)
	ExecuteQuery(ctx context.Context, details model.ConnectionDetails, query string) (model.QueryResult, error)
}

// RiskAnalyzer asks the backend model for a risk verdict on free text
type RiskAnalyzer interface {
	AnalyzeRisk(ctx context.Context, req model.RiskAnalysisRequest) (model.RiskAnalysis, error)
}

// Previewer fetches the readable text behind a finding's source URL
type Previewer interface {
	Fetch(ctx context.Context, rawURL string) (source.Article, error)
}

// Options wires the console to the rest of the application. Store,
// Selection and Runner are required.
type Options struct {
	Store     *state.Store
	Selection *selection.Coordinator
	Runner    *execution.Runner
	SQL       SQLClient
	Risk      RiskAnalyzer
	Source    Previewer
	ExportDir string
	Theme     string
	Logger    *log.Logger
	// Offline browses the local snapshot instead of the backend.
	Offline bool
}

const (
	pageFindings = "findings"
	pageAnalysis = "analysis"
	pageJobs     = "jobs"
	pageSQL      = "sql"
)

// timeNow is replaced in tests.
var timeNow = time.Now

var pageOrder = []string{pageFindings, pageAnalysis, pageJobs, pageSQL}

var pageTitles = map[string]string{
	pageFindings: "Findings",
	pageAnalysis: "Analysis",
	pageJobs:     "Jobs",
	pageSQL:      "SQL",
}

// UI represents the terminal user interface
type UI struct {
	app    *tview.Application
	opts   Options
	store  *state.Store
	sel    *selection.Coordinator
	logger *log.Logger

	// Layout components
	root      *tview.Flex
	tabs      *tview.TextView
	pages     *tview.Pages
	statusBar *tview.TextView

	// Findings page
	searchInput   *tview.InputField
	riskDrop      *tview.DropDown
	statsView     *tview.TextView
	findingsTable *tview.Table
	detailView    *tview.TextView

	// Analysis page
	entityList *tview.List
	connList   *tview.List
	paramsView *tview.TextView

	// Jobs page
	jobStatsView *tview.TextView
	jobsTable    *tview.Table

	// SQL page
	sqlConnDrop  *tview.DropDown
	sqlInput     *tview.InputField
	sqlInfo      *tview.TextView
	sqlResults   *tview.Table
	sqlPasswords map[int64]string // entered per session, never stored

	// State, touched only on the UI goroutine
	query     findings.Query
	view      []model.Finding
	page      string
	theme     Theme
	themeName string

	running    bool
	dialog     bool
	lastFocus  tview.Primitive
	focusChain map[string][]tview.Primitive

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
}

// NewUI creates a new terminal user interface
func NewUI(ctx context.Context, opts Options) *UI {
	if opts.Logger == nil {
		opts.Logger = log.New(log.Writer(), "[tui] ", log.LstdFlags)
	}
	if opts.Theme == "" {
		opts.Theme = "dark"
		if !detectTrueColor() {
			opts.Theme = "high-contrast"
		}
	}

	uiCtx, cancel := context.WithCancel(ctx)
	ui := &UI{
		app:          tview.NewApplication(),
		opts:         opts,
		store:        opts.Store,
		sel:          opts.Selection,
		logger:       opts.Logger,
		query:        findings.Query{Risk: findings.All, Sort: findings.DefaultSort},
		page:         pageFindings,
		sqlPasswords: make(map[int64]string),
		ctx:          uiCtx,
		cancel:       cancel,
	}
	ui.themeName, ui.theme = themeByName(opts.Theme)

	ui.setupLayout()
	ui.setupKeybindings()
	ui.applyTheme()
	ui.renderAll()

	ui.unsubscribe = ui.store.Subscribe(func(ev state.Event) {
		ui.queue(func() { ui.onStateEvent(ev) })
	})
	return ui
}

// Start runs the application until it is stopped or ctx is done.
func (ui *UI) Start(ctx context.Context) error {
	ui.logger.Println("Starting TUI application")

	go func() {
		if err := ui.load(ui.ctx); err != nil {
			ui.logger.Printf("Initial load failed: %v", err)
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			ui.logger.Println("External context cancelled, stopping TUI")
		case <-ui.ctx.Done():
		}
		ui.cancel()
		ui.app.Stop()
	}()

	ui.startJobsHeartbeat()

	ui.running = true
	err := ui.app.Run()
	ui.running = false
	ui.unsubscribe()
	ui.logger.Printf("TUI stopped: %v", err)
	return err
}

// Stop stops the TUI application
func (ui *UI) Stop() {
	ui.logger.Println("Stopping TUI application")
	ui.cancel()
	ui.app.Stop()
}

// Refresh reloads every collection. Safe to call from any goroutine.
func (ui *UI) Refresh() {
	ui.queue(ui.reloadAll)
}

// queue runs fn on the UI goroutine. Before the app runs (tests) it runs
// fn directly.
func (ui *UI) queue(fn func()) {
	if ui.running {
		ui.app.QueueUpdateDraw(fn)
		return
	}
	fn()
}

// background runs fn off the UI goroutine so input never blocks on I/O.
func (ui *UI) background(fn func(ctx context.Context)) {
	if !ui.running {
		fn(ui.ctx)
		return
	}
	go fn(ui.ctx)
}

func (ui *UI) setupLayout() {
	ui.tabs = tview.NewTextView().SetDynamicColors(true)
	ui.statusBar = tview.NewTextView().SetDynamicColors(true)

	ui.pages = tview.NewPages().
		AddPage(pageFindings, ui.buildFindingsPage(), true, true).
		AddPage(pageAnalysis, ui.buildAnalysisPage(), true, false).
		AddPage(pageJobs, ui.buildJobsPage(), true, false).
		AddPage(pageSQL, ui.buildSQLPage(), true, false)

	ui.focusChain = map[string][]tview.Primitive{
		pageFindings: {ui.findingsTable, ui.searchInput, ui.riskDrop, ui.detailView},
		pageAnalysis: {ui.entityList, ui.connList},
		pageJobs:     {ui.jobsTable},
		pageSQL:      {ui.sqlInput, ui.sqlConnDrop, ui.sqlResults},
	}

	ui.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(ui.tabs, 1, 0, false).
		AddItem(ui.pages, 0, 1, true).
		AddItem(ui.statusBar, 1, 0, false)

	ui.app.SetRoot(ui.root, true)
	ui.app.SetFocus(ui.findingsTable)
}

func (ui *UI) setupKeybindings() {
	ui.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if ui.dialog {
			return event
		}

		switch event.Key() {
		case tcell.KeyCtrlC:
			ui.Stop()
			return nil
		case tcell.KeyF1, tcell.KeyF2, tcell.KeyF3, tcell.KeyF4:
			ui.switchPage(pageOrder[int(event.Key()-tcell.KeyF1)])
			return nil
		case tcell.KeyTab:
			ui.cycleFocus()
			return nil
		case tcell.KeyEsc:
			ui.setStatus("[%s]Ready[-]", ui.theme.TagAccent)
			ui.app.SetFocus(ui.focusChain[ui.page][0])
			return nil
		case tcell.KeyCtrlR:
			ui.reloadAll()
			return nil
		}

		// Plain keys belong to text inputs while one is focused.
		if ui.inputFocused() {
			return event
		}

		if event.Key() == tcell.KeyRune {
			switch event.Rune() {
			case 'q', 'Q':
				ui.Stop()
				return nil
			case 'r':
				ui.reloadAll()
				return nil
			case 't':
				ui.setTheme(nextThemeName(ui.themeName))
				return nil
			case '?':
				ui.showHelp()
				return nil
			}
		}
		return event
	})
}

// inputFocused reports whether a text input has focus.
func (ui *UI) inputFocused() bool {
	switch ui.app.GetFocus().(type) {
	case *tview.InputField, *tview.TextArea, *tview.DropDown:
		return true
	}
	return false
}

func (ui *UI) switchPage(name string) {
	ui.page = name
	ui.pages.SwitchToPage(name)
	ui.app.SetFocus(ui.focusChain[name][0])
	ui.renderTabs()
	ui.highlightFocus()
}

func (ui *UI) cycleFocus() {
	chain := ui.focusChain[ui.page]
	current := ui.app.GetFocus()
	next := chain[0]
	for i, p := range chain {
		if p == current {
			next = chain[(i+1)%len(chain)]
			break
		}
	}
	ui.app.SetFocus(next)
	ui.highlightFocus()
}

// highlightFocus draws the focus ring on the focused widget.
func (ui *UI) highlightFocus() {
	focused := ui.app.GetFocus()
	for _, chain := range ui.focusChain {
		for _, p := range chain {
			b, ok := p.(interface{ SetBorderColor(tcell.Color) *tview.Box })
			if !ok {
				continue
			}
			if p == focused {
				b.SetBorderColor(ui.theme.FocusBorder)
			} else {
				b.SetBorderColor(ui.theme.Border)
			}
		}
	}
}

// load fills the store from the backend, or from the snapshot when offline.
func (ui *UI) load(ctx context.Context) error {
	if ui.opts.Offline {
		return ui.store.Restore(ctx)
	}
	return ui.store.LoadAll(ctx)
}

func (ui *UI) reloadAll() {
	ui.setStatus("[%s]Refreshing...[-]", ui.theme.TagAccent)
	ui.background(func(ctx context.Context) {
		if err := ui.load(ctx); err == nil {
			ui.queue(func() { ui.setStatus("[%s]Data refreshed[-]", ui.theme.TagSuccess) })
		}
	})
}

// onStateEvent re-renders whatever a store change touched. Failures are
// taken out of the error slot and shown once.
func (ui *UI) onStateEvent(ev state.Event) {
	switch ev.Collection {
	case state.Findings:
		ui.renderFindings()
	case state.Entities:
		// A taken selection outlives entity changes.
		ui.renderEntities()
	case state.Connections:
		if id, ok := ui.sel.Connection(); ok && ev.Kind == state.Deleted {
			if _, exists := ui.store.Connection(id); !exists {
				ui.sel.ClearConnection()
			}
		}
		ui.renderConnections()
	case state.Jobs:
		ui.renderJobs()
	}
	ui.renderTabs()

	if ev.Kind == state.Failed {
		if err := ui.store.TakeError(); err != nil {
			ui.showError(err)
		}
	}
}

func (ui *UI) renderAll() {
	ui.renderTabs()
	ui.renderFindings()
	ui.renderEntities()
	ui.renderConnections()
	ui.renderJobs()
	ui.renderSQLConnections()
	ui.setStatus("[%s]Ready[-]", ui.theme.TagAccent)
}

func (ui *UI) renderTabs() {
	var b strings.Builder
	b.WriteString(fmt.Sprintf(" [%s]Dossier[-] ", ui.theme.TagAccent))
	for i, name := range pageOrder {
		if name == ui.page {
			fmt.Fprintf(&b, " [%s::b]F%d %s[-::-] ", ui.theme.TagTextPrimary, i+1, pageTitles[name])
		} else {
			fmt.Fprintf(&b, " [%s]F%d %s[-] ", ui.theme.TagMuted, i+1, pageTitles[name])
		}
	}
	if ui.store.IsLoading() {
		fmt.Fprintf(&b, " [%s]loading…[-]", ui.theme.TagWarning)
	}
	ui.tabs.SetText(b.String())
}

// setStatus writes to the status bar. Call on the UI goroutine.
func (ui *UI) setStatus(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	ui.statusBar.SetText(fmt.Sprintf("[%s]%s[-] [%s]|[-] %s [%s]| ?:help q:quit[-]",
		ui.theme.TagMuted, time.Now().Format("15:04:05"),
		ui.theme.TagMuted, message,
		ui.theme.TagMuted))
}

// showError puts a user-facing message for err in the status bar.
func (ui *UI) showError(err error) {
	color := ui.theme.TagError
	if errs.IsValidation(err) {
		color = ui.theme.TagWarning
	}
	ui.logger.Printf("error: %v", err)
	ui.setStatus("[%s]%s[-]", color, tview.Escape(errs.UserMessage(err)))
}

// startJobsHeartbeat reloads jobs while any of them is still active.
func (ui *UI) startJobsHeartbeat() {
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ui.ctx.Done():
				return
			case <-ticker.C:
				if !ui.opts.Offline && hasActiveJobs(ui.store.Jobs()) {
					_ = ui.store.LoadJobs(ui.ctx)
				}
			}
		}
	}()
}

func hasActiveJobs(jobs []model.ExecutionJob) bool {
	for _, j := range jobs {
		if !j.Status.Terminal() {
			return true
		}
	}
	return false
}

func (ui *UI) setTheme(name string) {
	ui.themeName, ui.theme = themeByName(name)
	ui.applyTheme()
	ui.renderAll()
	ui.setStatus("[%s]Theme: %s[-]", ui.theme.TagAccent, ui.themeName)
}

// applyTheme pushes theme colors to widgets
func (ui *UI) applyTheme() {
	for _, tv := range []*tview.TextView{ui.tabs, ui.statusBar, ui.statsView, ui.detailView, ui.paramsView, ui.jobStatsView, ui.sqlInfo} {
		tv.SetBackgroundColor(ui.theme.Surface)
		tv.SetTextColor(ui.theme.TextPrimary)
	}
	for _, t := range []*tview.Table{ui.findingsTable, ui.jobsTable, ui.sqlResults} {
		t.SetBackgroundColor(ui.theme.Surface)
		t.SetSelectedStyle(tcell.StyleDefault.Background(ui.theme.SelectionBg).Foreground(ui.theme.SelectionFg))
	}
	for _, l := range []*tview.List{ui.entityList, ui.connList} {
		l.SetBackgroundColor(ui.theme.Surface)
		l.SetMainTextColor(ui.theme.TextPrimary)
		l.SetSecondaryTextColor(ui.theme.TextMuted)
		l.SetSelectedTextColor(ui.theme.SelectionFg)
		l.SetSelectedBackgroundColor(ui.theme.SelectionBg)
	}
	for _, in := range []*tview.InputField{ui.searchInput, ui.sqlInput} {
		in.SetBackgroundColor(ui.theme.Surface)
		in.SetFieldBackgroundColor(ui.theme.SelectionBg)
		in.SetFieldTextColor(ui.theme.TextPrimary)
		in.SetLabelColor(ui.theme.TextMuted)
	}
	for _, d := range []*tview.DropDown{ui.riskDrop, ui.sqlConnDrop} {
		d.SetBackgroundColor(ui.theme.Surface)
		d.SetFieldBackgroundColor(ui.theme.SelectionBg)
		d.SetFieldTextColor(ui.theme.TextPrimary)
		d.SetLabelColor(ui.theme.TextMuted)
	}
	ui.highlightFocus()
}

// GetStats returns UI statistics
func (ui *UI) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"findings_loaded":  len(ui.store.Findings()),
		"findings_visible": len(ui.view),
		"entities_loaded":  len(ui.store.Entities()),
		"entities_chosen":  len(ui.sel.Selected()),
		"jobs_loaded":      len(ui.store.Jobs()),
		"page":             ui.page,
		"theme":            ui.themeName,
	}
}
