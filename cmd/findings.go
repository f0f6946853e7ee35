package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/dossier-console/internal/errs"
	"github.com/Ashfaaq98/dossier-console/internal/export"
	"github.com/Ashfaaq98/dossier-console/internal/findings"
	"github.com/Ashfaaq98/dossier-console/internal/ingest"
	"github.com/Ashfaaq98/dossier-console/internal/model"
	"github.com/Ashfaaq98/dossier-console/internal/source"
)

var (
	findingsSearch  string
	findingsRisk    string
	findingsSort    string
	findingsOrder   string
	findingsLimit   int
	findingsOffline bool

	exportFormat string
	exportDir    string
	exportStdout bool

	showPreview bool

	importDir      string
	importWatch    bool
	importPatterns string
)

var findingsCmd = &cobra.Command{
	Use:   "findings",
	Short: "Browse, export and import findings",
}

var findingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List findings with search, risk filter and sorting",
	Long: `List findings in a simple text format.

Examples:
  # Newest findings first (default)
  dossier findings list

  # High risk findings about ACME, by entity name
  dossier findings list --search acme --risk alto --sort entity_name --order asc

  # Browse the local snapshot without the backend
  dossier findings list --offline`,
	RunE: runFindingsList,
}

var findingsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the filtered findings as csv, json, yaml, md or html",
	Long: `Export writes the same view "findings list" shows, with its risk summary,
to a timestamped file in the export directory.

Examples:
  dossier findings export --format csv
  dossier findings export --format html --risk alto --dir ./reports
  dossier findings export --format md --stdout`,
	RunE: runFindingsExport,
}

var findingsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one finding, optionally with its source text",
	Args:  cobra.ExactArgs(1),
	RunE:  runFindingsShow,
}

var findingsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import findings files from a folder into the local snapshot",
	Long: `Import reads .json (object or array) and .jsonl files holding findings,
upserts them into the local snapshot and moves each file to processed/ or
failed/.

Examples:
  # One-shot: import existing files and exit
  dossier findings import --dir ./data/incoming

  # Watch mode: keep importing files as collectors drop them
  dossier findings import --dir ./data/incoming --watch`,
	RunE: runFindingsImport,
}

func init() {
	rootCmd.AddCommand(findingsCmd)
	findingsCmd.AddCommand(findingsListCmd, findingsExportCmd, findingsShowCmd, findingsImportCmd)

	for _, c := range []*cobra.Command{findingsListCmd, findingsExportCmd} {
		c.Flags().StringVar(&findingsSearch, "search", "", "Case-insensitive text in entity, title or content")
		c.Flags().StringVar(&findingsRisk, "risk", "all", "Risk level: all, alto, medio, baixo")
		c.Flags().StringVar(&findingsSort, "sort", string(findings.DefaultSort.Key), "Sort column: entity_name, title, risk_level, data_coleta")
		c.Flags().StringVar(&findingsOrder, "order", string(findings.DefaultSort.Order), "Sort order: asc, desc")
		c.Flags().BoolVar(&findingsOffline, "offline", false, "Use the local snapshot instead of the backend")
	}
	findingsListCmd.Flags().IntVar(&findingsLimit, "limit", 20, "Maximum number of findings to show (0 for all)")

	findingsExportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Output format: csv, json, yaml, md, html")
	findingsExportCmd.Flags().StringVar(&exportDir, "dir", "", "Output directory (default from config, \"exports\")")
	findingsExportCmd.Flags().BoolVar(&exportStdout, "stdout", false, "Write to stdout instead of a file")

	findingsShowCmd.Flags().BoolVar(&showPreview, "preview", false, "Fetch the source page and print its readable text")
	findingsShowCmd.Flags().BoolVar(&findingsOffline, "offline", false, "Use the local snapshot instead of the backend")

	findingsImportCmd.Flags().StringVar(&importDir, "dir", "", "Directory to read files from (default from config)")
	findingsImportCmd.Flags().BoolVar(&importWatch, "watch", false, "Watch the directory for new files")
	findingsImportCmd.Flags().StringVar(&importPatterns, "pattern", "*.jsonl,*.json", "Comma-separated glob patterns to match")
}

// findingsQuery builds the view query from the list/export flags.
func findingsQuery() (findings.Query, error) {
	risk, err := findings.ParseRiskFilter(findingsRisk)
	if err != nil {
		return findings.Query{}, err
	}
	key, err := findings.ParseSortKey(findingsSort)
	if err != nil {
		return findings.Query{}, err
	}
	order, err := findings.ParseOrder(findingsOrder)
	if err != nil {
		return findings.Query{}, err
	}
	return findings.Query{Search: findingsSearch, Risk: risk, Sort: findings.Sort{Key: key, Order: order}}, nil
}

// loadFindings returns every finding from the backend, or from the local
// snapshot when offline. A backend failure falls back to a non-empty
// snapshot with a warning.
func loadFindings(ctx context.Context, a *app, offline bool) ([]model.Finding, error) {
	if offline {
		return a.cache.ListFindings(ctx)
	}
	err := a.state.LoadFindings(ctx)
	if err == nil {
		return a.state.Findings(), nil
	}
	a.state.ClearError()
	cached, cacheErr := a.cache.ListFindings(ctx)
	if cacheErr != nil || len(cached) == 0 {
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "Warning: backend unavailable (%s); showing the local snapshot.\n", errs.UserMessage(err))
	return cached, nil
}

func runFindingsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	q, err := findingsQuery()
	if err != nil {
		return err
	}
	a, err := newApp(GetConfig())
	if err != nil {
		return err
	}
	defer a.close()

	all, err := loadFindings(ctx, a, findingsOffline)
	if err != nil {
		return fmt.Errorf("failed to load findings: %w", err)
	}
	view, err := findings.Apply(all, q)
	if err != nil {
		return err
	}

	if len(view) == 0 {
		fmt.Println("No findings found.")
		return nil
	}

	stats := findings.Summarize(view)
	fmt.Printf("Found %d findings (ALTO %d, MÉDIO %d, BAIXO %d):\n\n", stats.Total, stats.High, stats.Medium, stats.Low)

	shown := view
	if findingsLimit > 0 && len(shown) > findingsLimit {
		shown = shown[:findingsLimit]
	}
	for i, f := range shown {
		fmt.Printf("%d. [%s] %s\n", i+1, strings.ToUpper(string(f.RiskLevel)), f.Title)
		fmt.Printf("   ID: %d\n", f.ID)
		fmt.Printf("   Entity: %s\n", f.EntityName)
		fmt.Printf("   Collected: %s\n", f.DataColeta)
		fmt.Printf("   Score: %.2f\n", f.RiskScore)
		if f.Categoria != "" {
			fmt.Printf("   Category: %s\n", f.Categoria)
		}
		fmt.Println()
	}
	if len(shown) < len(view) {
		fmt.Printf("... %d more (use --limit 0 to show all)\n", len(view)-len(shown))
	}
	return nil
}

func runFindingsExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}
	q, err := findingsQuery()
	if err != nil {
		return err
	}
	cfg := GetConfig()
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	all, err := loadFindings(ctx, a, findingsOffline)
	if err != nil {
		return fmt.Errorf("failed to load findings: %w", err)
	}
	report, err := export.NewReport(all, q, time.Now())
	if err != nil {
		return err
	}

	if exportStdout {
		return export.Write(os.Stdout, format, report)
	}
	dir := exportDir
	if dir == "" {
		dir = cfg.Export.Dir
	}
	path, err := export.WriteFile(dir, format, report)
	if err != nil {
		return err
	}
	fmt.Printf("Exported %d findings to %s\n", len(report.Findings), path)
	return nil
}

func runFindingsShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid finding id %q: %w", args[0], err)
	}
	cfg := GetConfig()
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	all, err := loadFindings(ctx, a, findingsOffline)
	if err != nil {
		return fmt.Errorf("failed to load findings: %w", err)
	}
	var f *model.Finding
	for i := range all {
		if all[i].ID == id {
			f = &all[i]
			break
		}
	}
	if f == nil {
		return fmt.Errorf("finding %d not found", id)
	}

	fmt.Printf("[%s] %s\n", strings.ToUpper(string(f.RiskLevel)), f.Title)
	fmt.Printf("   ID: %d\n", f.ID)
	fmt.Printf("   Entity: %s\n", f.EntityName)
	fmt.Printf("   Collected: %s\n", f.DataColeta)
	fmt.Printf("   Score: %.2f\n", f.RiskScore)
	if f.Categoria != "" {
		fmt.Printf("   Category: %s\n", f.Categoria)
	}
	if f.SourceURL != "" {
		fmt.Printf("   Source: %s\n", f.SourceURL)
	}
	if f.Content != "" {
		fmt.Printf("\n%s\n", f.Content)
	}

	if !showPreview {
		return nil
	}
	if f.SourceURL == "" {
		fmt.Println("\nNo source URL to preview.")
		return nil
	}
	article, err := source.NewFetcher(cfg.Gateway.Timeout).Fetch(ctx, f.SourceURL)
	if err != nil {
		return fmt.Errorf("failed to preview source: %w", err)
	}
	fmt.Printf("\n--- %s", article.Title)
	if article.SiteName != "" {
		fmt.Printf(" (%s)", article.SiteName)
	}
	fmt.Printf(" ---\n%s\n", article.Excerpt(4000))
	return nil
}

func runFindingsImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()
	logger := log.New(os.Stderr, "[ingest] ", log.LstdFlags)

	dir := importDir
	if dir == "" {
		dir = cfg.Ingest.Folder
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create ingest directory %s: %w", dir, err)
	}

	cache, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer cache.Close()

	var patterns []string
	for _, p := range strings.Split(importPatterns, ",") {
		if s := strings.TrimSpace(p); s != "" {
			patterns = append(patterns, s)
		}
	}

	fi := ingest.NewFolderIngestor(cache, ingest.FolderOptions{
		Dir:      dir,
		Watch:    importWatch,
		Patterns: patterns,
		Logger:   logger,
		OnImport: func(r ingest.FileResult) {
			if r.Err != nil {
				fmt.Printf("✗ %s: %v\n", r.Path, r.Err)
				return
			}
			fmt.Printf("✓ %s: %d findings (%d new, %d updated)\n", r.Path, r.Findings, r.Inserted, r.Updated)
		},
	})
	if importWatch {
		logger.Printf("Watching %s for findings files (Ctrl+C to stop)", dir)
	}
	if err := fi.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to import findings: %w", err)
	}

	t := fi.Totals()
	fmt.Printf("Imported %d files (%d failed): %d new, %d updated findings\n", t.Files, t.Failed, t.Inserted, t.Updated)
	return nil
}
