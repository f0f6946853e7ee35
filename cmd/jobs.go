package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/dossier-console/internal/bus"
	"github.com/Ashfaaq98/dossier-console/internal/execution"
	"github.com/Ashfaaq98/dossier-console/internal/findings"
	"github.com/Ashfaaq98/dossier-console/internal/model"
)

var (
	jobsLimit      int
	watchPoll      time.Duration
	watchUntilDone bool
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Follow analysis execution jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List execution jobs with their duration",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(GetConfig())
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.state.LoadJobs(cmd.Context()); err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}
		jobs := a.state.Jobs()
		if len(jobs) == 0 {
			fmt.Println("No jobs found.")
			return nil
		}
		s := findings.SummarizeJobs(jobs)
		fmt.Printf("Found %d jobs (pending %d, running %d, completed %d, failed %d):\n\n",
			s.Total, s.Pending, s.Running, s.Completed, s.Failed)

		if jobsLimit > 0 && len(jobs) > jobsLimit {
			jobs = jobs[:jobsLimit]
		}
		now := time.Now()
		for _, j := range jobs {
			printJob(j, now)
		}
		return nil
	},
}

func printJob(j model.ExecutionJob, now time.Time) {
	fmt.Printf("Job %d [%s] %s\n", j.ID, j.Status, j.TipoGatilho)
	if j.IniciadoEm != nil {
		fmt.Printf("   Started: %s\n", j.IniciadoEm.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("   Duration: %s\n", findings.JobDuration(j, now))
	if j.Resultado != nil && *j.Resultado != "" {
		fmt.Printf("   Result: %s\n", *j.Resultado)
	}
	fmt.Println()
}

var jobsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print job status changes as they happen",
	Long: `Watch follows job updates on the Redis job_updates stream. Without Redis it
polls the backend instead.

Examples:
  dossier jobs watch --redis redis://localhost:6379
  dossier jobs watch --poll 10s --until-done`,
	RunE: runJobsWatch,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd, jobsWatchCmd)

	jobsListCmd.Flags().IntVar(&jobsLimit, "limit", 20, "Maximum number of jobs to show (0 for all)")
	jobsWatchCmd.Flags().DurationVar(&watchPoll, "poll", 5*time.Second, "Polling interval when Redis is not available")
	jobsWatchCmd.Flags().BoolVar(&watchUntilDone, "until-done", false, "Exit once no job is pending or running")
}

// jobChanges reports jobs that are new or changed status since seen, and
// records them in seen.
func jobChanges(seen map[int64]model.JobStatus, jobs []model.ExecutionJob) []model.ExecutionJob {
	var changed []model.ExecutionJob
	for _, j := range jobs {
		if prev, ok := seen[j.ID]; ok && prev == j.Status {
			continue
		}
		seen[j.ID] = j.Status
		changed = append(changed, j)
	}
	return changed
}

func allDone(jobs []model.ExecutionJob) bool {
	for _, j := range jobs {
		if !j.Status.Terminal() {
			return false
		}
	}
	return true
}

func runJobsWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(GetConfig())
	if err != nil {
		return err
	}
	defer a.close()

	seen := make(map[int64]model.JobStatus)
	report := func() {
		jobs := a.state.Jobs()
		for _, j := range jobChanges(seen, jobs) {
			fmt.Printf("%s  job %d %s (%s)\n", time.Now().Format("15:04:05"), j.ID, j.Status, findings.JobDuration(j, time.Now()))
		}
		if watchUntilDone && allDone(jobs) {
			cancel()
		}
	}

	if err := a.state.LoadJobs(ctx); err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}
	report()

	if _, local := a.bus.(*bus.NullBus); !local {
		fmt.Fprintln(os.Stderr, "Following job updates on Redis (Ctrl+C to stop)")
		hostname, _ := os.Hostname()
		consumer := fmt.Sprintf("cli-%s-%d", hostname, os.Getpid())
		return execution.WatchJobs(ctx, a.bus, a.state, consumer, func(bus.JobUpdateMessage) { report() }, newLogger(a.cfg, "watch"))
	}

	fmt.Fprintf(os.Stderr, "Polling jobs every %s (Ctrl+C to stop)\n", watchPoll)
	ticker := time.NewTicker(watchPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := a.state.LoadJobs(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				fmt.Fprintf(os.Stderr, "Warning: failed to refresh jobs: %v\n", err)
				continue
			}
			report()
		}
	}
}
