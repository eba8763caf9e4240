package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tuanbt/qslurm/internal/jobs"
)

func newJobsCmd(a *app) *cobra.Command {
	var cleanup bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List the jobs qslurm has submitted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if cleanup {
				count, err := a.registry.Cleanup()
				if err != nil {
					return fmt.Errorf("failed to clean up job records: %w", err)
				}
				a.logger.Debug("job records cleaned up", "removed", count, "state_file", a.registry.Path())
				fmt.Fprintf(out, "Removed %d finished or cancelled jobs.\n", count)
				return nil
			}

			list, err := a.registry.LoadAll()
			if err != nil {
				return fmt.Errorf("failed to load job records: %w", err)
			}
			printJobs(out, list)
			return nil
		},
	}

	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "Remove finished and cancelled records")
	return cmd
}

func printJobs(w io.Writer, list []jobs.Job) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No jobs recorded.")
		return
	}

	fmt.Fprintf(w, "%-10s %-30s %-10s %-20s %s\n", "ID", "SCRIPT", "STATUS", "SUBMITTED", "DURATION")
	fmt.Fprintln(w, strings.Repeat("-", 84))
	for _, j := range list {
		fmt.Fprintf(w, "%-10s %-30.30s %-10s %-20s %s\n",
			j.ID, j.Script, j.Status, j.SubmittedAt.Format("2006-01-02 15:04:05"), j.Duration().Round(time.Second))
	}
}
