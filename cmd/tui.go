package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Ashfaaq98/dossier-console/internal/dbconn"
	"github.com/Ashfaaq98/dossier-console/internal/execution"
	"github.com/Ashfaaq98/dossier-console/internal/ingest"
	"github.com/Ashfaaq98/dossier-console/internal/selection"
	"github.com/Ashfaaq98/dossier-console/internal/source"
	"github.com/Ashfaaq98/dossier-console/internal/ui"
)

var (
	tuiOffline bool
	tuiIngest  bool
	tuiDirect  string
	tuiTheme   string
)

const (
	minColumns = 80
	minRows    = 24
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Start the interactive console",
	Long: `Start the terminal console: findings browser, analysis setup, jobs and
a SQL console. Logs go to a file so they never corrupt the screen.

Background services started with the console:
- job updates from Redis streams (when --redis is set)
- findings import from the ingest folder (with --ingest)

Examples:
  dossier tui
  dossier tui --redis redis://localhost:6379 --ingest
  dossier tui --offline
  dossier tui --direct sqlserver`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)

	tuiCmd.Flags().BoolVar(&tuiOffline, "offline", false, "Browse the local snapshot without the backend")
	tuiCmd.Flags().BoolVar(&tuiIngest, "ingest", false, "Import findings files dropped into the ingest folder")
	tuiCmd.Flags().StringVar(&tuiDirect, "direct", "", "Run the SQL console straight against the database (sqlserver, postgres, mysql, sqlite)")
	tuiCmd.Flags().StringVar(&tuiTheme, "theme", "", "Theme: dark, light, neon, high-contrast")
}

// openLogFile creates the console's log file, falling back to discard.
func openLogFile(path string) (io.Writer, func()) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return io.Discard, func() {}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return io.Discard, func() {}
	}
	return f, func() { f.Close() }
}

// canInitializeTUI tests if tcell can actually be initialized
func canInitializeTUI() bool {
	screen, err := tcell.NewScreen()
	if err != nil {
		return false
	}
	if err := screen.Init(); err != nil {
		return false
	}
	screen.Fini()
	return true
}

// terminalInfo describes the terminal for the log.
func terminalInfo() string {
	var info []string
	if t := os.Getenv("TERM"); t != "" {
		info = append(info, "TERM="+t)
	} else {
		info = append(info, "TERM=<not set>")
	}
	if p := os.Getenv("TERM_PROGRAM"); p != "" {
		info = append(info, "TERM_PROGRAM="+p)
	}
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		info = append(info, fmt.Sprintf("size=%dx%d", w, h))
	}
	return strings.Join(info, " ")
}

func runTUI(cmd *cobra.Command, args []string) error {
	// Background services stop when the console does.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	cfg := GetConfig()

	if !term.IsTerminal(int(os.Stdout.Fd())) || !canInitializeTUI() {
		return fmt.Errorf("the console needs an interactive terminal; use the CLI commands instead (dossier findings list, dossier jobs list)")
	}
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil && (w < minColumns || h < minRows) {
		fmt.Fprintf(os.Stderr, "Warning: terminal is %dx%d; the console is laid out for at least %dx%d\n", w, h, minColumns, minRows)
	}

	out, closeLog := openLogFile(cfg.Log.File)
	defer closeLog()
	logger := log.New(out, "[tui] ", log.LstdFlags)
	logger.Printf("Starting console (%s)", terminalInfo())

	// Everything logs to the file while the screen is ours.
	fileCfg := cfg
	fileCfg.Verbose = false
	a, err := newApp(fileCfg)
	if err != nil {
		return err
	}
	defer a.close()

	sel := selection.New(time.Now())
	runner := execution.New(sel, a.client, a.bus, a.state, log.New(out, "[execution] ", log.LstdFlags))

	var sqlClient ui.SQLClient = a.client
	if tuiDirect != "" {
		sqlClient = dbconn.NewClient(tuiDirect)
	}
	theme := tuiTheme
	if theme == "" {
		theme = cfg.UI.Theme
	}

	console := ui.NewUI(ctx, ui.Options{
		Store:     a.state,
		Selection: sel,
		Runner:    runner,
		SQL:       sqlClient,
		Risk:      a.client,
		Source:    source.NewFetcher(cfg.Gateway.Timeout),
		ExportDir: cfg.Export.Dir,
		Theme:     theme,
		Logger:    logger,
		Offline:   tuiOffline,
	})

	if !tuiOffline {
		hostname, _ := os.Hostname()
		consumer := fmt.Sprintf("tui-%s-%d", hostname, os.Getpid())
		go func() {
			if err := execution.WatchJobs(ctx, a.bus, a.state, consumer, nil, log.New(out, "[watch] ", log.LstdFlags)); err != nil {
				logger.Printf("Job updates stopped: %v", err)
			}
		}()
	}

	if tuiIngest {
		if err := os.MkdirAll(cfg.Ingest.Folder, 0755); err != nil {
			logger.Printf("Warning: Could not create ingest directory %s: %v", cfg.Ingest.Folder, err)
		}
		fi := ingest.NewFolderIngestor(a.cache, ingest.FolderOptions{
			Dir:      cfg.Ingest.Folder,
			Watch:    true,
			Patterns: []string{"*.jsonl", "*.json"},
			Logger:   log.New(out, "[ingest] ", log.LstdFlags),
			OnImport: func(r ingest.FileResult) {
				if r.Err == nil && tuiOffline {
					console.Refresh()
				}
			},
		})
		go func() {
			if err := fi.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Printf("Folder ingest error: %v", err)
			}
		}()
	}

	if err := console.Start(ctx); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	logger.Println("Console stopped")
	return nil
}
