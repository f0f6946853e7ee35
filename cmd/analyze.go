package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/dossier-console/internal/execution"
	"github.com/Ashfaaq98/dossier-console/internal/model"
	"github.com/Ashfaaq98/dossier-console/internal/selection"
)

var (
	analyzeEntities   []string
	analyzeAll        bool
	analyzeKeywords   string
	analyzeStart      string
	analyzeEnd        string
	analyzePreset     string
	analyzeConnection int64
	analyzeWait       bool

	riskFindingID int64
	riskExplain   bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Submit analysis runs and score text for risk",
}

var analyzeRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Submit an analysis run for the chosen entities",
	Long: `Submit an analysis run. Entities are picked by name; keywords are comma
separated; the period is a preset or explicit dates (YYYY-MM-DD).

Examples:
  dossier analyze run --entity "ACME S.A." --connection 3 --preset 90d
  dossier analyze run --all --keywords "fraude, lavagem" --start 2024-01-01 --end 2024-06-30 --connection 3 --wait`,
	RunE: runAnalyze,
}

var analyzeRiskCmd = &cobra.Command{
	Use:   "risk [text]",
	Short: "Ask the backend model for a risk verdict on text or a finding",
	Long: `Examples:
  dossier analyze risk "Empresa investigada por lavagem de dinheiro"
  dossier analyze risk --finding 42`,
	RunE: runAnalyzeRisk,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.AddCommand(analyzeRunCmd, analyzeRiskCmd)

	f := analyzeRunCmd.Flags()
	f.StringSliceVar(&analyzeEntities, "entity", nil, "Entity name to analyze (repeatable)")
	f.BoolVar(&analyzeAll, "all", false, "Analyze every monitored entity")
	f.StringVar(&analyzeKeywords, "keywords", "", "Comma-separated keywords")
	f.StringVar(&analyzeStart, "start", "", "Start date (YYYY-MM-DD)")
	f.StringVar(&analyzeEnd, "end", "", "End date (YYYY-MM-DD)")
	f.StringVar(&analyzePreset, "preset", "30d", "Period preset: 7d, 30d, 90d, 1y (ignored with --start/--end)")
	f.Int64Var(&analyzeConnection, "connection", 0, "ID of the database connection to analyze")
	f.BoolVar(&analyzeWait, "wait", false, "Wait until the job finishes")

	analyzeRiskCmd.Flags().Int64Var(&riskFindingID, "finding", 0, "Score the title and content of this finding")
	analyzeRiskCmd.Flags().BoolVar(&riskExplain, "explain", true, "Ask for an explanation")
}

// buildSelection applies the run flags to a fresh coordinator.
func buildSelection(now time.Time, known []string) (*selection.Coordinator, error) {
	sel := selection.New(now)

	if analyzeAll {
		sel.SelectAll(known)
	} else {
		for _, name := range analyzeEntities {
			name = strings.TrimSpace(name)
			found := false
			for _, k := range known {
				if k == name {
					found = true
					break
				}
			}
			if !found {
				return nil, fmt.Errorf("unknown entity %q (see 'dossier entities list')", name)
			}
			if !sel.IsSelected(name) {
				sel.Toggle(name)
			}
		}
	}

	sel.SetKeywordsInput(analyzeKeywords)

	switch {
	case analyzeStart != "" || analyzeEnd != "":
		start, end := analyzeStart, analyzeEnd
		if start == "" || end == "" {
			return nil, fmt.Errorf("--start and --end go together")
		}
		sel.SetDateRange(start, end)
	case analyzePreset != "":
		p, err := selection.ParsePreset(analyzePreset)
		if err != nil {
			return nil, err
		}
		sel.ApplyPreset(p, now)
	}

	if analyzeConnection != 0 {
		sel.SetConnection(analyzeConnection)
	}
	return sel, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.state.LoadEntities(ctx); err != nil {
		return fmt.Errorf("failed to load entities: %w", err)
	}
	sel, err := buildSelection(time.Now(), a.state.EntityNames())
	if err != nil {
		return err
	}

	runner := execution.New(sel, a.client, a.bus, a.state, newLogger(cfg, "execution"))
	payload, err := runner.Payload()
	if err != nil {
		return err
	}
	fmt.Printf("Submitting analysis of %d entities (%s .. %s)...\n", len(payload.Entities), payload.StartDate, payload.EndDate)

	job, err := runner.Submit(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Job %d created (%s)\n", job.ID, job.Status)

	if !analyzeWait {
		return nil
	}
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()
	last := job.Status
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if err := a.state.LoadJobs(ctx); err != nil {
			a.state.ClearError()
			continue
		}
		for _, j := range a.state.Jobs() {
			if j.ID != job.ID {
				continue
			}
			if j.Status != last {
				fmt.Printf("   %s  %s\n", time.Now().Format("15:04:05"), j.Status)
				last = j.Status
			}
			if j.Status.Terminal() {
				printJob(j, time.Now())
				if j.Status == model.JobFailed {
					return fmt.Errorf("job %d failed", j.ID)
				}
				return nil
			}
		}
	}
}

func runAnalyzeRisk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	text := strings.TrimSpace(strings.Join(args, " "))
	if riskFindingID != 0 {
		text = ""
		all, err := loadFindings(ctx, a, false)
		if err != nil {
			return fmt.Errorf("failed to load findings: %w", err)
		}
		for _, f := range all {
			if f.ID == riskFindingID {
				text = strings.TrimSpace(f.Title + "\n" + f.Content)
				break
			}
		}
		if text == "" {
			return fmt.Errorf("finding %d not found", riskFindingID)
		}
	}
	if text == "" {
		return fmt.Errorf("give the text to score or --finding ID")
	}

	res, err := a.client.AnalyzeRisk(ctx, model.RiskAnalysisRequest{Text: text, IncludeExplanation: riskExplain})
	if err != nil {
		return err
	}
	fmt.Printf("Risk: %s (confidence %.0f%%)\n", strings.ToUpper(res.RiskLevel), res.ConfidenceScore*100)
	if len(res.RiskFactors) > 0 {
		fmt.Printf("Factors: %s\n", strings.Join(res.RiskFactors, ", "))
	}
	if len(res.ComplianceFlags) > 0 {
		fmt.Printf("Compliance: %s\n", strings.Join(res.ComplianceFlags, ", "))
	}
	if res.Explanation != "" {
		fmt.Printf("\n%s\n", res.Explanation)
	}
	return nil
}
