package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/edugate/internal/infrastructure/monitoring"
)

func newMetricsCmd(opts *globalOptions) *cobra.Command {
	var day string
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show the daily admission counters kept in Redis",
		RunE: func(cmd *cobra.Command, args []string) error {
			when := time.Now().UTC()
			if day != "" {
				parsed, err := time.Parse(time.DateOnly, day)
				if err != nil {
					return fmt.Errorf("invalid --day: %w", err)
				}
				when = parsed
			}

			env, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			redisMetrics := monitoring.NewRedisMetrics(env.conn.Client())
			counters, err := redisMetrics.Counters(cmd.Context(), when)
			if err != nil {
				return err
			}

			fields := make([]string, 0, len(counters))
			for f := range counters {
				fields = append(fields, f)
			}
			sort.Strings(fields)
			fmt.Fprintln(cmd.OutOrStdout(), redisMetrics.DailyKey(when))
			for _, f := range fields {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s %s\n", f, counters[f])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "day to show, YYYY-MM-DD (default today, UTC)")
	return cmd
}
