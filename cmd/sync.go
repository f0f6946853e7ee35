package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh the local snapshot from the backend",
	Long: `Sync loads connections, entities, findings and jobs from the backend and
stores them in the local SQLite snapshot, so "findings list --offline" and
the console work without the backend.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(GetConfig())
		if err != nil {
			return err
		}
		defer a.close()

		start := time.Now()
		if err := a.state.LoadAll(ctx); err != nil {
			return fmt.Errorf("failed to sync: %w", err)
		}
		fmt.Printf("✓ Synced in %s\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("   Connections: %d\n", len(a.state.Connections()))
		fmt.Printf("   Entities: %d\n", len(a.state.Entities()))
		fmt.Printf("   Findings: %d\n", len(a.state.Findings()))
		fmt.Printf("   Jobs: %d\n", len(a.state.Jobs()))
		fmt.Printf("   Snapshot: %s\n", a.cfg.Database.Path)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend, SQL API, event bus and snapshot status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(GetConfig())
		if err != nil {
			return err
		}
		defer a.close()

		fmt.Printf("Data API (%s): ", a.client.BaseURL())
		if err := a.client.Health(ctx); err != nil {
			fmt.Printf("✗ %v\n", err)
		} else {
			fmt.Println("✓ healthy")
		}

		fmt.Printf("SQL API (%s): ", a.client.SQLBaseURL())
		if st, err := a.client.SQLStatus(ctx); err != nil {
			fmt.Printf("✗ %v\n", err)
		} else {
			fmt.Printf("✓ %s %s\n", st.Status, st.Version)
		}

		fmt.Print("Event bus: ")
		if err := a.bus.HealthCheck(ctx); err != nil {
			fmt.Printf("✗ %v\n", err)
		} else if stats, err := a.bus.GetStats(ctx); err == nil {
			fmt.Printf("✓ %v\n", stats["type"])
			keys := make([]string, 0, len(stats))
			for k := range stats {
				if k != "type" {
					keys = append(keys, k)
				}
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("   %s: %v\n", k, stats[k])
			}
		}

		entries, err := a.cache.SyncLog(ctx)
		if err != nil {
			return fmt.Errorf("failed to read sync log: %w", err)
		}
		fmt.Printf("Snapshot (%s):", a.cfg.Database.Path)
		if len(entries) == 0 {
			fmt.Println(" never synced")
			return nil
		}
		fmt.Println()
		for _, e := range entries {
			fmt.Printf("   %-12s %5d items  %s\n", e.Collection, e.ItemCount, e.SyncedAt.Local().Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd, statusCmd)
}
