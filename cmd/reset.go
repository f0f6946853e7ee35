package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/dossier-console/internal/bus"
)

var (
	confirmReset bool
	resetRedis   bool
	resetDB      bool
)

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the local snapshot and/or the Redis job streams",
	Long: `Reset clears the local SQLite snapshot and the console's Redis streams
(analyses, job_updates). Nothing on the backend is touched.

By default both are reset. Use --redis-only or --db-only to pick one.

Examples:
  # Reset both (asks for confirmation)
  dossier reset

  # Reset with automatic confirmation
  dossier reset --yes

  # Reset only the snapshot
  dossier reset --db-only`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().BoolVarP(&confirmReset, "yes", "y", false, "Automatically confirm reset operation")
	resetCmd.Flags().BoolVar(&resetRedis, "redis-only", false, "Reset only the Redis streams")
	resetCmd.Flags().BoolVar(&resetDB, "db-only", false, "Reset only the local snapshot")
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()

	if !resetRedis && !resetDB {
		resetRedis = true
		resetDB = true
	}
	if resetRedis && cfg.Redis.URL == "" {
		if !resetDB {
			return fmt.Errorf("no Redis URL configured (use --redis)")
		}
		resetRedis = false
	}

	var targets []string
	if resetRedis {
		targets = append(targets, "Redis job streams")
	}
	if resetDB {
		targets = append(targets, "local snapshot")
	}
	fmt.Printf("This will permanently delete: %s\n", strings.Join(targets, " and "))

	if !confirmReset {
		fmt.Print("Are you sure you want to continue? (y/N): ")
		var response string
		fmt.Scanln(&response)
		if r := strings.ToLower(response); r != "y" && r != "yes" {
			fmt.Println("Reset operation cancelled.")
			return nil
		}
	}

	if resetRedis {
		if err := resetStreams(ctx, cfg.Redis.URL); err != nil {
			if !resetDB {
				return fmt.Errorf("failed to reset Redis streams: %w", err)
			}
			fmt.Printf("Warning: Failed to reset Redis streams: %v\n", err)
		} else {
			fmt.Println("✓ Redis streams cleared")
		}
	}

	if resetDB {
		cache, err := openCache(cfg)
		if err != nil {
			return err
		}
		defer cache.Close()
		if err := cache.Reset(ctx); err != nil {
			return fmt.Errorf("failed to reset snapshot: %w", err)
		}
		fmt.Println("✓ Local snapshot cleared")
	}

	fmt.Println("Reset operation completed successfully!")
	return nil
}

func resetStreams(ctx context.Context, redisURL string) error {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	n, err := client.Del(ctx, bus.AnalysesStream, bus.JobUpdatesStream).Result()
	if err != nil {
		return fmt.Errorf("failed to delete streams: %w", err)
	}
	fmt.Printf("Deleted %d streams\n", n)
	return nil
}
