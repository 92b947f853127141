package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"Gin_postgres_redis_supply_tool/inventory"
	"Gin_postgres_redis_supply_tool/jobs"

	"github.com/spf13/cobra"
)

var jobName string

var cronStartCmd = &cobra.Command{
	Use:   "cron:start",
	Short: "Start the cron scheduler or run a single job by name",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, _, closeFn, err := openRepo()
		if err != nil {
			return err
		}
		defer closeFn()
		all := jobs.Jobs(repo, inventory.NewLedger(repo))
		out := cmd.OutOrStdout()

		if jobName != "" {
			name := strings.ToLower(jobName)
			j, ok := all[name]
			if !ok {
				return fmt.Errorf("unknown job: %s (available: %s)", jobName, strings.Join(jobs.Names(all), ", "))
			}
			fmt.Fprintf(out, "Running cron job: %s\n", name)
			return j.Run(context.Background())
		}

		fmt.Fprintln(out, "Starting cron scheduler...")
		c, err := jobs.Start(all)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		fmt.Fprintln(out, "Cron scheduler started. Press Ctrl+C to exit.")
		<-ctx.Done()
		<-c.Stop().Done()
		return nil
	},
}

func init() {
	cronStartCmd.Flags().StringVarP(&jobName, "job", "j", "", "Run a single cron job by name and exit")
	rootCmd.AddCommand(cronStartCmd)
}
